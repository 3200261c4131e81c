// Package prompt holds the stage prompt templates and the user-scoped
// override store. Templates use brace placeholders ({user_query},
// {responses_text}, {stage1_text}, {stage2_text}); the placeholder syntax is
// part of the stored data format and must not change.
package prompt

import "strings"

// Stage identifiers.
const (
	Stage1 = "stage1"
	Stage2 = "stage2"
	Stage3 = "stage3"
)

// Stages lists the valid stage identifiers in order.
var Stages = []string{Stage1, Stage2, Stage3}

// ValidStage reports whether the given stage name is recognized.
func ValidStage(stage string) bool {
	return stage == Stage1 || stage == Stage2 || stage == Stage3
}

// Prompt is one stage's prompt configuration.
type Prompt struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Template    string `json:"template"`
	Notes       string `json:"notes"`
}

// Render substitutes the given variables into a template. Placeholders are
// written as {name}; unknown placeholders are left untouched.
func Render(template string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

const stage2Template = `You are evaluating different responses to the following question:

Question: {user_query}

Here are the responses from different models (anonymized):

{responses_text}

Your task:
1. First, evaluate each response individually. For each response, explain what it does well and what it does poorly.
2. Then, at the very end of your response, provide a final ranking.

IMPORTANT: Your final ranking MUST be formatted EXACTLY as follows:
- Start with the line "FINAL RANKING:" (all caps, with colon)
- Then list the responses from best to worst as a numbered list
- Each line should be: number, period, space, then ONLY the response label (e.g., "1. Response A")
- Do not add any other text or explanations in the ranking section

Example of the correct format for your ENTIRE response:

Response A provides good detail on X but misses Y...
Response B is accurate but lacks depth on Z...
Response C offers the most comprehensive answer...

FINAL RANKING:
1. Response C
2. Response A
3. Response B

Now provide your evaluation and ranking:`

const stage3Template = `You are the Chairman of an LLM Council. Multiple AI models have provided responses to a user's question, and then ranked each other's responses.

Original Question: {user_query}

STAGE 1 - Individual Responses:
{stage1_text}

STAGE 2 - Peer Rankings:
{stage2_text}

Your task as Chairman is to synthesize all of this information into a single, comprehensive, accurate answer to the user's original question. Consider:
- The individual responses and their insights
- The peer rankings and what they reveal about response quality
- Any patterns of agreement or disagreement

Provide a clear, well-reasoned final answer that represents the council's collective wisdom:`

// Defaults returns a fresh copy of the built-in prompt configuration.
func Defaults() map[string]Prompt {
	return map[string]Prompt{
		Stage1: {
			Name:        "Stage 1: Initial Response",
			Description: "Prompt used to collect initial responses from council members",
			Template:    "{user_query}",
			Notes:       "Stage 1 passes the user query directly to each model. The template variable {user_query} will be replaced with the actual question.",
		},
		Stage2: {
			Name:        "Stage 2: Peer Evaluation",
			Description: "Prompt used for anonymized peer review and ranking",
			Template:    stage2Template,
			Notes:       "Variables: {user_query}, {responses_text}. The responses_text is automatically formatted with anonymized labels.",
		},
		Stage3: {
			Name:        "Stage 3: Chairman Synthesis",
			Description: "Prompt used by the chairman to synthesize the final answer",
			Template:    stage3Template,
			Notes:       "Variables: {user_query}, {stage1_text}, {stage2_text}. These are automatically populated from previous stages.",
		},
	}
}
