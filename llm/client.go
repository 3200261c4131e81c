// Package llm defines the model query contract used by the council
// orchestrator. Concrete backends live in subpackages (see llm/openrouter).
package llm

import (
	"context"
	"encoding/json"
	"time"

	"github.com/adam-wood/llm-council/types"
)

// ChatRequest is a single non-streaming completion request.
type ChatRequest struct {
	Model    string          `json:"model"`
	Messages []types.Message `json:"messages"`
	// Timeout overrides the client's default per-call timeout when positive.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// ChatResponse carries the assistant text for one completion.
type ChatResponse struct {
	Model   string `json:"model"`
	Content string `json:"content"`
	// ReasoningDetails is passed through opaquely when the upstream model
	// reports reasoning metadata.
	ReasoningDetails json.RawMessage `json:"reasoning_details,omitempty"`
}

// Client is the model query capability. Implementations must return a
// *types.Error with code types.ErrQuotaExceeded when the upstream account
// is out of credits; callers treat that code as non-recoverable while all
// other failures are absorbed per-call.
type Client interface {
	Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	Name() string
}
