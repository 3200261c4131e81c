package council

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/adam-wood/llm-council/llm"
	"github.com/adam-wood/llm-council/types"
)

func TestGenerateTitle(t *testing.T) {
	t.Parallel()
	client := &fakeClient{respond: func(req *llm.ChatRequest) (*llm.ChatResponse, error) {
		return &llm.ChatResponse{Content: "  \"Planning A Career Change\"  "}, nil
	}}
	o := newTestOrchestrator(client, &fakeAgents{})

	title := o.GenerateTitle(context.Background(), "should I switch jobs?", 5*time.Second)
	assert.Equal(t, "Planning A Career Change", title)

	reqs := client.requests()
	assert.Equal(t, "title-model", reqs[0].Model)
	assert.Contains(t, reqs[0].Messages[0].Content, "should I switch jobs?")
}

func TestGenerateTitleTruncatesLongTitles(t *testing.T) {
	t.Parallel()
	long := strings.Repeat("x", 60)
	client := &fakeClient{respond: func(req *llm.ChatRequest) (*llm.ChatResponse, error) {
		return &llm.ChatResponse{Content: long}, nil
	}}
	o := newTestOrchestrator(client, &fakeAgents{})

	title := o.GenerateTitle(context.Background(), "q", 0)
	assert.Len(t, title, 50)
	assert.Equal(t, long[:47]+"...", title)
}

func TestGenerateTitleFallsBackOnFailure(t *testing.T) {
	t.Parallel()
	client := &fakeClient{respond: func(req *llm.ChatRequest) (*llm.ChatResponse, error) {
		return nil, types.NewError(types.ErrUpstreamTimeout, "slow")
	}}
	o := newTestOrchestrator(client, &fakeAgents{})

	assert.Equal(t, "New Conversation", o.GenerateTitle(context.Background(), "q", time.Second))
}

func TestGenerateTitleFallsBackOnEmptyContent(t *testing.T) {
	t.Parallel()
	client := &fakeClient{respond: func(req *llm.ChatRequest) (*llm.ChatResponse, error) {
		return &llm.ChatResponse{Content: "\"\""}, nil
	}}
	o := newTestOrchestrator(client, &fakeAgents{})

	assert.Equal(t, "New Conversation", o.GenerateTitle(context.Background(), "q", time.Second))
}
