package council

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/adam-wood/llm-council/llm"
	"github.com/adam-wood/llm-council/types"
)

// fallbackTitle names a conversation when title generation fails.
const fallbackTitle = "New Conversation"

const titleTemplate = `Generate a very short title (3-5 words maximum) that summarizes the following question.
The title should be concise and descriptive. Do not use quotes or punctuation in the title.

Question: %s

Title:`

// maxTitleLen is the display limit; longer titles are truncated with an
// ellipsis.
const maxTitleLen = 50

// GenerateTitle asks a small fast model to name a conversation after its
// first message. Any failure, including quota exhaustion, degrades to the
// fallback title; naming is never worth failing a run over.
func (o *Orchestrator) GenerateTitle(ctx context.Context, query string, timeout time.Duration) string {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	resp, err := o.client.Completion(ctx, &llm.ChatRequest{
		Model:    o.cfg.TitleModel,
		Messages: []types.Message{types.NewUserMessage(fmt.Sprintf(titleTemplate, query))},
		Timeout:  timeout,
	})
	if err != nil {
		o.logger.Debug("title generation failed", zap.Error(err))
		return fallbackTitle
	}

	title := strings.TrimSpace(resp.Content)
	title = strings.Trim(title, `"'`)
	if title == "" {
		return fallbackTitle
	}
	if len(title) > maxTitleLen {
		title = title[:maxTitleLen-3] + "..."
	}
	return title
}
