package council

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adam-wood/llm-council/agents"
	"github.com/adam-wood/llm-council/llm"
	"github.com/adam-wood/llm-council/prompt"
	"github.com/adam-wood/llm-council/types"
)

const testUser = "user_test"

type fakeAgents struct {
	active   []agents.Agent
	chairman *agents.Agent
}

func (f *fakeAgents) ListActive(string) ([]agents.Agent, error) { return f.active, nil }
func (f *fakeAgents) Chairman(string) (*agents.Agent, error)    { return f.chairman, nil }

type fakePrompts struct{}

func (fakePrompts) TemplateForModel(_, _, stage string) (string, error) {
	return prompt.Defaults()[stage].Template, nil
}

// fakeClient answers by model, recording every request. respond decides
// the outcome per request; nil respond echoes the model name.
type fakeClient struct {
	mu      sync.Mutex
	calls   []llm.ChatRequest
	respond func(req *llm.ChatRequest) (*llm.ChatResponse, error)
}

func (f *fakeClient) Completion(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, *req)
	f.mu.Unlock()
	if f.respond == nil {
		return &llm.ChatResponse{Model: req.Model, Content: "answer from " + req.Model}, nil
	}
	return f.respond(req)
}

func (f *fakeClient) Name() string { return "fake" }

func (f *fakeClient) requests() []llm.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]llm.ChatRequest, len(f.calls))
	copy(out, f.calls)
	return out
}

func testBoard() []agents.Agent {
	return []agents.Agent{
		{ID: "a1", Title: "Ethicist", Model: "model-a"},
		{ID: "a2", Title: "Technologist", Model: "model-b"},
		{ID: "a3", Title: "Strategist", Model: "model-c"},
	}
}

func newTestOrchestrator(client llm.Client, src AgentSource) *Orchestrator {
	return New(client, src, fakePrompts{}, Config{
		Models:        []string{"legacy-a", "legacy-b"},
		ChairmanModel: "chairman-model",
		TitleModel:    "title-model",
	}, nil)
}

func isStage2Request(req *llm.ChatRequest) bool {
	return strings.Contains(req.Messages[0].Content, "anonymized")
}

func isStage3Request(req *llm.ChatRequest) bool {
	return strings.Contains(req.Messages[0].Content, "Chairman of an LLM Council")
}

func TestStage1CollectsInRosterOrder(t *testing.T) {
	t.Parallel()
	client := &fakeClient{}
	o := newTestOrchestrator(client, &fakeAgents{active: testBoard()})

	results, err := o.Stage1(context.Background(), testUser, "What should I do?")
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "Ethicist", results[0].AgentTitle)
	assert.Equal(t, "Technologist", results[1].AgentTitle)
	assert.Equal(t, "Strategist", results[2].AgentTitle)
	assert.Equal(t, "answer from model-a", results[0].Response)
	// The default stage-1 template passes the question straight through.
	assert.Equal(t, "What should I do?", results[0].Prompt)
}

func TestStage1OmitsFailedAgents(t *testing.T) {
	t.Parallel()
	client := &fakeClient{respond: func(req *llm.ChatRequest) (*llm.ChatResponse, error) {
		if req.Model == "model-b" {
			return nil, types.NewError(types.ErrUpstreamError, "boom")
		}
		return &llm.ChatResponse{Model: req.Model, Content: "ok"}, nil
	}}
	o := newTestOrchestrator(client, &fakeAgents{active: testBoard()})

	results, err := o.Stage1(context.Background(), testUser, "q")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "model-a", results[0].Model)
	assert.Equal(t, "model-c", results[1].Model)
}

func TestStage1QuotaExceededPropagates(t *testing.T) {
	t.Parallel()
	client := &fakeClient{respond: func(req *llm.ChatRequest) (*llm.ChatResponse, error) {
		if req.Model == "model-b" {
			return nil, types.NewError(types.ErrQuotaExceeded, "credits exhausted")
		}
		return &llm.ChatResponse{Model: req.Model, Content: "ok"}, nil
	}}
	o := newTestOrchestrator(client, &fakeAgents{active: testBoard()})

	_, err := o.Stage1(context.Background(), testUser, "q")
	require.Error(t, err)
	assert.Equal(t, types.ErrQuotaExceeded, types.GetErrorCode(err))
}

func TestStage1LegacyRosterFromConfig(t *testing.T) {
	t.Parallel()
	client := &fakeClient{}
	o := newTestOrchestrator(client, &fakeAgents{})

	results, err := o.Stage1(context.Background(), testUser, "q")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "legacy-0", results[0].AgentID)
	assert.Equal(t, "legacy-a", results[0].AgentTitle)
	assert.Equal(t, "legacy-a", results[0].Model)
}

func TestStage1AgentPromptOverride(t *testing.T) {
	t.Parallel()
	board := testBoard()
	board[0].Prompts = map[string]string{"stage1": "As an ethicist, consider: {user_query}"}
	client := &fakeClient{}
	o := newTestOrchestrator(client, &fakeAgents{active: board})

	results, err := o.Stage1(context.Background(), testUser, "is it right?")
	require.NoError(t, err)
	assert.Equal(t, "As an ethicist, consider: is it right?", results[0].Prompt)
	assert.Equal(t, "is it right?", results[1].Prompt)
}

func TestStage2LabelsAndRankings(t *testing.T) {
	t.Parallel()
	client := &fakeClient{respond: func(req *llm.ChatRequest) (*llm.ChatResponse, error) {
		if isStage2Request(req) {
			return &llm.ChatResponse{Content: "FINAL RANKING:\n1. Response B\n2. Response A\n3. Response C"}, nil
		}
		return &llm.ChatResponse{Content: "answer from " + req.Model}, nil
	}}
	o := newTestOrchestrator(client, &fakeAgents{active: testBoard()})

	stage1, err := o.Stage1(context.Background(), testUser, "q")
	require.NoError(t, err)

	stage2, labels, err := o.Stage2(context.Background(), testUser, "q", stage1)
	require.NoError(t, err)
	require.Len(t, stage2, 3)
	require.Len(t, labels, 3)

	assert.Equal(t, LabelInfo{AgentTitle: "Ethicist", Model: "model-a"}, labels["Response A"])
	assert.Equal(t, LabelInfo{AgentTitle: "Strategist", Model: "model-c"}, labels["Response C"])

	assert.Equal(t, []string{"Response B", "Response A", "Response C"}, stage2[0].ParsedRanking)
	assert.Contains(t, stage2[0].Ranking, "FINAL RANKING")

	// Every ranker saw the same anonymized packet, labels in stage-1 order.
	assert.Contains(t, stage2[0].Prompt, "Response A:\nanswer from model-a")
	assert.Contains(t, stage2[0].Prompt, "Response C:\nanswer from model-c")
	assert.NotContains(t, stage2[0].Prompt, "Ethicist")
}

func TestStage2LegacyRosterMirrorsStage1Survivors(t *testing.T) {
	t.Parallel()
	stage1 := []Stage1Result{
		{AgentID: "legacy-0", AgentTitle: "legacy-a", Model: "legacy-a", Response: "r1"},
	}
	client := &fakeClient{respond: func(req *llm.ChatRequest) (*llm.ChatResponse, error) {
		return &llm.ChatResponse{Content: "FINAL RANKING:\n1. Response A"}, nil
	}}
	o := newTestOrchestrator(client, &fakeAgents{})

	stage2, _, err := o.Stage2(context.Background(), testUser, "q", stage1)
	require.NoError(t, err)
	// Only the model that answered stage 1 ranks, not the full config list.
	require.Len(t, stage2, 1)
	assert.Equal(t, "legacy-a", stage2[0].Model)
	assert.Equal(t, "legacy-a", stage2[0].AgentTitle)
}

func TestStage3UsesDesignatedChairman(t *testing.T) {
	t.Parallel()
	chairman := &agents.Agent{ID: "a3", Title: "Strategist", Model: "model-c"}
	client := &fakeClient{respond: func(req *llm.ChatRequest) (*llm.ChatResponse, error) {
		return &llm.ChatResponse{Content: "the synthesis"}, nil
	}}
	o := newTestOrchestrator(client, &fakeAgents{active: testBoard(), chairman: chairman})

	stage1 := []Stage1Result{{AgentTitle: "Ethicist", Model: "model-a", Response: "r1"}}
	stage2 := []Stage2Result{{AgentTitle: "Technologist", Ranking: "FINAL RANKING:\n1. Response A"}}

	result, err := o.Stage3(context.Background(), testUser, "q", stage1, stage2)
	require.NoError(t, err)
	assert.Equal(t, "Strategist", result.AgentTitle)
	assert.Equal(t, "model-c", result.Model)
	assert.Equal(t, "the synthesis", result.Response)
	assert.Contains(t, result.Prompt, "Ethicist: r1")
	assert.Contains(t, result.Prompt, "Technologist: FINAL RANKING")
}

func TestStage3FallsBackToConfiguredModel(t *testing.T) {
	t.Parallel()
	client := &fakeClient{respond: func(req *llm.ChatRequest) (*llm.ChatResponse, error) {
		return &llm.ChatResponse{Content: "synthesis"}, nil
	}}
	o := newTestOrchestrator(client, &fakeAgents{active: testBoard()})

	result, err := o.Stage3(context.Background(), testUser, "q", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "Chairman", result.AgentTitle)
	assert.Equal(t, "chairman-model", result.Model)
}

func TestStage3ChairmanFailureYieldsErrorMarker(t *testing.T) {
	t.Parallel()
	client := &fakeClient{respond: func(req *llm.ChatRequest) (*llm.ChatResponse, error) {
		return nil, types.NewError(types.ErrUpstreamTimeout, "slow")
	}}
	o := newTestOrchestrator(client, &fakeAgents{active: testBoard()})

	result, err := o.Stage3(context.Background(), testUser, "q", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "Chairman", result.AgentTitle)
	assert.Equal(t, "chairman-model", result.Model)
	assert.Equal(t, "Error: Unable to generate final synthesis.", result.Response)
	assert.NotEmpty(t, result.Prompt)
}

func TestStage3QuotaExceededPropagates(t *testing.T) {
	t.Parallel()
	client := &fakeClient{respond: func(req *llm.ChatRequest) (*llm.ChatResponse, error) {
		return nil, types.NewError(types.ErrQuotaExceeded, "credits exhausted")
	}}
	o := newTestOrchestrator(client, &fakeAgents{active: testBoard()})

	_, err := o.Stage3(context.Background(), testUser, "q", nil, nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrQuotaExceeded, types.GetErrorCode(err))
}

func TestRunFullCouncil(t *testing.T) {
	t.Parallel()
	client := &fakeClient{respond: func(req *llm.ChatRequest) (*llm.ChatResponse, error) {
		switch {
		case isStage3Request(req):
			return &llm.ChatResponse{Content: "final answer"}, nil
		case isStage2Request(req):
			return &llm.ChatResponse{Content: "FINAL RANKING:\n1. Response A\n2. Response B\n3. Response C"}, nil
		default:
			return &llm.ChatResponse{Content: "answer from " + req.Model}, nil
		}
	}}
	o := newTestOrchestrator(client, &fakeAgents{active: testBoard()})

	result, err := o.Run(context.Background(), testUser, "q")
	require.NoError(t, err)
	require.Len(t, result.Stage1, 3)
	require.Len(t, result.Stage2, 3)
	assert.Equal(t, "final answer", result.Stage3.Response)
	assert.Equal(t, "chairman-model", result.Stage3.Model)

	require.Len(t, result.Metadata.LabelToModel, 3)
	standings := result.Metadata.AggregateRankings
	require.Len(t, standings, 3)
	// All three rankers agreed, so the order is A, B, C with exact means.
	assert.Equal(t, "Ethicist", standings[0].AgentTitle)
	assert.Equal(t, 1.0, standings[0].AverageRank)
	assert.Equal(t, 3, standings[0].RankingsCount)
	assert.Equal(t, "Strategist", standings[2].AgentTitle)
	assert.Equal(t, 3.0, standings[2].AverageRank)
}

func TestRunAllModelsFailed(t *testing.T) {
	t.Parallel()
	client := &fakeClient{respond: func(req *llm.ChatRequest) (*llm.ChatResponse, error) {
		return nil, types.NewError(types.ErrUpstreamError, "down")
	}}
	o := newTestOrchestrator(client, &fakeAgents{active: testBoard()})

	result, err := o.Run(context.Background(), testUser, "q")
	require.NoError(t, err)
	assert.Empty(t, result.Stage1)
	assert.Empty(t, result.Stage2)
	assert.Equal(t, "error", result.Stage3.Model)
	assert.Equal(t, "All models failed to respond. Please try again.", result.Stage3.Response)
	assert.Empty(t, result.Metadata.LabelToModel)
	assert.Empty(t, result.Metadata.AggregateRankings)

	// The run stopped after stage 1: three calls, no ranking or synthesis.
	assert.Len(t, client.requests(), 3)
}

func TestRunQuotaExceededAborts(t *testing.T) {
	t.Parallel()
	client := &fakeClient{respond: func(req *llm.ChatRequest) (*llm.ChatResponse, error) {
		if isStage2Request(req) {
			return nil, types.NewError(types.ErrQuotaExceeded, "credits exhausted")
		}
		return &llm.ChatResponse{Content: "ok"}, nil
	}}
	o := newTestOrchestrator(client, &fakeAgents{active: testBoard()})

	result, err := o.Run(context.Background(), testUser, "q")
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, types.ErrQuotaExceeded, types.GetErrorCode(err))
}
