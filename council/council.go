package council

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/adam-wood/llm-council/agents"
	"github.com/adam-wood/llm-council/llm"
	"github.com/adam-wood/llm-council/prompt"
	"github.com/adam-wood/llm-council/types"
)

// allFailedResponse is returned as the synthesis when not a single member
// produced a stage-1 answer.
const allFailedResponse = "All models failed to respond. Please try again."

// chairmanFailedResponse is returned when the chairman call itself fails.
const chairmanFailedResponse = "Error: Unable to generate final synthesis."

// AgentSource provides the roster snapshot and the chairman designation.
type AgentSource interface {
	ListActive(userID string) ([]agents.Agent, error)
	Chairman(userID string) (*agents.Agent, error)
}

// PromptSource resolves the effective stage template for a model, with
// whatever override precedence the store implements.
type PromptSource interface {
	TemplateForModel(userID, model, stage string) (string, error)
}

// Config carries the model roster fallbacks for the orchestrator.
type Config struct {
	// Models is the legacy roster used when a user has no agents configured.
	Models []string
	// ChairmanModel synthesizes when no chairman agent is designated.
	ChairmanModel string
	// TitleModel names conversations; see GenerateTitle.
	TitleModel string
}

// Orchestrator runs the three-stage consultation. Individual model
// failures are absorbed by omission; the only model-level error that
// escapes any stage is a quota exhaustion, which callers surface to the
// client instead of silently degrading the run.
type Orchestrator struct {
	client  llm.Client
	agents  AgentSource
	prompts PromptSource
	cfg     Config
	logger  *zap.Logger
}

// New creates an orchestrator. A nil logger disables logging.
func New(client llm.Client, agentSource AgentSource, promptSource PromptSource, cfg Config, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		client:  client,
		agents:  agentSource,
		prompts: promptSource,
		cfg:     cfg,
		logger:  logger.With(zap.String("component", "council")),
	}
}

// roster returns the user's active agents, falling back to pseudo-agents
// built from the configured model list when none are set up. A roster
// read failure degrades to the legacy list rather than aborting the run.
func (o *Orchestrator) roster(userID string) []agents.Agent {
	active, err := o.agents.ListActive(userID)
	if err != nil {
		o.logger.Warn("agent roster unavailable, using configured models",
			zap.String("user_id", userID), zap.Error(err))
		active = nil
	}
	if len(active) > 0 {
		return active
	}
	legacy := make([]agents.Agent, len(o.cfg.Models))
	for i, model := range o.cfg.Models {
		legacy[i] = agents.Agent{
			ID:    fmt.Sprintf("legacy-%d", i),
			Title: model,
			Model: model,
		}
	}
	return legacy
}

// template resolves a stage template for one agent: the agent's own
// override wins, then the prompt store decides between model-specific and
// default templates.
func (o *Orchestrator) template(userID string, agent agents.Agent, stage string) (string, error) {
	if tpl, ok := agent.StagePrompt(stage); ok {
		return tpl, nil
	}
	return o.prompts.TemplateForModel(userID, agent.Model, stage)
}

// outcome is one slot of a stage fan-out, kept in dispatch order.
type outcome struct {
	agent  agents.Agent
	prompt string
	resp   *llm.ChatResponse
	err    error
}

// fanOut queries every agent concurrently with its resolved stage prompt
// and returns the outcomes in dispatch order. It never fails as a whole;
// per-agent errors stay in their slots.
func (o *Orchestrator) fanOut(ctx context.Context, userID, stage string, roster []agents.Agent, vars map[string]string) []outcome {
	slots := make([]outcome, len(roster))
	var wg sync.WaitGroup
	for i, agent := range roster {
		wg.Add(1)
		go func(i int, agent agents.Agent) {
			defer wg.Done()
			out := outcome{agent: agent}
			defer func() { slots[i] = out }()

			tpl, err := o.template(userID, agent, stage)
			if err != nil {
				out.err = err
				return
			}
			out.prompt = prompt.Render(tpl, vars)
			out.resp, out.err = o.client.Completion(ctx, &llm.ChatRequest{
				Model:    agent.Model,
				Messages: []types.Message{types.NewUserMessage(out.prompt)},
			})
		}(i, agent)
	}
	wg.Wait()
	return slots
}

// checkFatal decides whether a per-agent failure aborts the stage. Quota
// exhaustion does; everything else is logged and the agent is skipped.
func (o *Orchestrator) checkFatal(stage string, out outcome) error {
	if types.GetErrorCode(out.err) == types.ErrQuotaExceeded {
		return out.err
	}
	o.logger.Warn("agent query failed, omitting from results",
		zap.String("stage", stage),
		zap.String("agent_title", out.agent.Title),
		zap.String("model", out.agent.Model),
		zap.Error(out.err))
	return nil
}

// Stage1 collects each member's independent answer. Agents whose queries
// fail are omitted; the returned slice preserves roster order.
func (o *Orchestrator) Stage1(ctx context.Context, userID, query string) ([]Stage1Result, error) {
	roster := o.roster(userID)
	vars := map[string]string{"user_query": query}

	slots := o.fanOut(ctx, userID, prompt.Stage1, roster, vars)
	results := make([]Stage1Result, 0, len(slots))
	for _, out := range slots {
		if out.err != nil {
			if err := o.checkFatal(prompt.Stage1, out); err != nil {
				return nil, err
			}
			continue
		}
		results = append(results, Stage1Result{
			AgentID:    out.agent.ID,
			AgentTitle: out.agent.Title,
			Model:      out.agent.Model,
			Response:   out.resp.Content,
			Prompt:     out.prompt,
		})
	}
	o.logger.Info("stage 1 complete",
		zap.Int("dispatched", len(roster)), zap.Int("responded", len(results)))
	return results, nil
}

// Stage2 anonymizes the stage-1 answers as "Response A", "Response B", ...
// in stage-1 order and has every active agent rank them. The label mapping
// is returned alongside so callers can de-anonymize.
func (o *Orchestrator) Stage2(ctx context.Context, userID, query string, stage1 []Stage1Result) ([]Stage2Result, map[string]LabelInfo, error) {
	labels := make(map[string]LabelInfo, len(stage1))
	var sb strings.Builder
	for i, r := range stage1 {
		label := responseLabel(i)
		labels[label] = LabelInfo{AgentTitle: r.AgentTitle, Model: r.Model}
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "%s:\n%s", label, r.Response)
	}

	rankers := o.rankingRoster(userID, stage1)
	vars := map[string]string{
		"user_query":     query,
		"responses_text": sb.String(),
	}

	slots := o.fanOut(ctx, userID, prompt.Stage2, rankers, vars)
	results := make([]Stage2Result, 0, len(slots))
	for _, out := range slots {
		if out.err != nil {
			if err := o.checkFatal(prompt.Stage2, out); err != nil {
				return nil, nil, err
			}
			continue
		}
		results = append(results, Stage2Result{
			AgentID:       out.agent.ID,
			AgentTitle:    out.agent.Title,
			Model:         out.agent.Model,
			Ranking:       out.resp.Content,
			ParsedRanking: ParseRanking(out.resp.Content),
			Prompt:        out.prompt,
		})
	}
	o.logger.Info("stage 2 complete",
		zap.Int("dispatched", len(rankers)), zap.Int("ranked", len(results)))
	return results, labels, nil
}

// rankingRoster is the stage-2 roster. With no configured agents the
// pseudo-agents mirror the models that actually answered stage 1, not the
// full configured list.
func (o *Orchestrator) rankingRoster(userID string, stage1 []Stage1Result) []agents.Agent {
	active, err := o.agents.ListActive(userID)
	if err != nil {
		o.logger.Warn("agent roster unavailable, ranking with stage 1 models",
			zap.String("user_id", userID), zap.Error(err))
		active = nil
	}
	if len(active) > 0 {
		return active
	}
	legacy := make([]agents.Agent, len(stage1))
	for i, r := range stage1 {
		legacy[i] = agents.Agent{
			ID:    fmt.Sprintf("legacy-%d", i),
			Title: r.Model,
			Model: r.Model,
		}
	}
	return legacy
}

// Stage3 has the chairman synthesize the final answer from both prior
// stages. A chairman failure yields an error-marker result, not an error;
// only quota exhaustion aborts.
func (o *Orchestrator) Stage3(ctx context.Context, userID, query string, stage1 []Stage1Result, stage2 []Stage2Result) (Stage3Result, error) {
	chairmanTitle := "Chairman"
	chairmanModel := o.cfg.ChairmanModel
	var tpl string

	chairman, err := o.agents.Chairman(userID)
	if err != nil {
		o.logger.Warn("chairman lookup failed, using configured model", zap.Error(err))
		chairman = nil
	}
	if chairman != nil {
		chairmanModel = chairman.Model
		if chairman.Title != "" {
			chairmanTitle = chairman.Title
		}
		tpl, err = o.template(userID, *chairman, prompt.Stage3)
	} else {
		tpl, err = o.prompts.TemplateForModel(userID, chairmanModel, prompt.Stage3)
	}
	if err != nil {
		return Stage3Result{
			AgentTitle: chairmanTitle,
			Model:      chairmanModel,
			Response:   chairmanFailedResponse,
		}, nil
	}

	stage1Parts := make([]string, len(stage1))
	for i, r := range stage1 {
		stage1Parts[i] = fmt.Sprintf("%s: %s", r.AgentTitle, r.Response)
	}
	stage2Parts := make([]string, len(stage2))
	for i, r := range stage2 {
		stage2Parts[i] = fmt.Sprintf("%s: %s", r.AgentTitle, r.Ranking)
	}

	chairmanPrompt := prompt.Render(tpl, map[string]string{
		"user_query":  query,
		"stage1_text": strings.Join(stage1Parts, "\n\n"),
		"stage2_text": strings.Join(stage2Parts, "\n\n"),
	})

	resp, err := o.client.Completion(ctx, &llm.ChatRequest{
		Model:    chairmanModel,
		Messages: []types.Message{types.NewUserMessage(chairmanPrompt)},
	})
	if err != nil {
		if types.GetErrorCode(err) == types.ErrQuotaExceeded {
			return Stage3Result{}, err
		}
		o.logger.Warn("chairman query failed",
			zap.String("model", chairmanModel), zap.Error(err))
		return Stage3Result{
			AgentTitle: chairmanTitle,
			Model:      chairmanModel,
			Response:   chairmanFailedResponse,
			Prompt:     chairmanPrompt,
		}, nil
	}

	return Stage3Result{
		AgentTitle: chairmanTitle,
		Model:      chairmanModel,
		Response:   resp.Content,
		Prompt:     chairmanPrompt,
	}, nil
}

// Run executes the full consultation. When stage 1 yields nothing the run
// short-circuits with a synthetic error synthesis instead of asking agents
// to rank an empty set.
func (o *Orchestrator) Run(ctx context.Context, userID, query string) (*Result, error) {
	stage1, err := o.Stage1(ctx, userID, query)
	if err != nil {
		return nil, err
	}
	if len(stage1) == 0 {
		o.logger.Error("no council member responded")
		return &Result{
			Stage1: []Stage1Result{},
			Stage2: []Stage2Result{},
			Stage3: Stage3Result{Model: "error", Response: allFailedResponse},
		}, nil
	}

	stage2, labels, err := o.Stage2(ctx, userID, query, stage1)
	if err != nil {
		return nil, err
	}

	stage3, err := o.Stage3(ctx, userID, query, stage1, stage2)
	if err != nil {
		return nil, err
	}

	return &Result{
		Stage1: stage1,
		Stage2: stage2,
		Stage3: stage3,
		Metadata: Metadata{
			LabelToModel:      labels,
			AggregateRankings: Aggregate(stage2, labels),
		},
	}, nil
}

// responseLabel returns the anonymized label for the i-th stage-1 answer.
// Rosters past 26 members run off the alphabet; the labels stay unique but
// the parser only recognizes A through Z.
func responseLabel(i int) string {
	return "Response " + string(rune('A'+i))
}
