// Package council implements the three-stage consultation protocol:
// collect independent responses, have the members rank each other's
// answers blind, then let the chairman synthesize a final answer.
package council

// Stage1Result is one agent's answer to the user's question.
type Stage1Result struct {
	AgentID    string `json:"agent_id"`
	AgentTitle string `json:"agent_title"`
	Model      string `json:"model"`
	Response   string `json:"response"`
	Prompt     string `json:"prompt"`
}

// Stage2Result is one agent's evaluation of the anonymized answers.
type Stage2Result struct {
	AgentID       string   `json:"agent_id"`
	AgentTitle    string   `json:"agent_title"`
	Model         string   `json:"model"`
	Ranking       string   `json:"ranking"`
	ParsedRanking []string `json:"parsed_ranking"`
	Prompt        string   `json:"prompt"`
}

// Stage3Result is the chairman's synthesis.
type Stage3Result struct {
	AgentTitle string `json:"agent_title,omitempty"`
	Model      string `json:"model"`
	Response   string `json:"response"`
	Prompt     string `json:"prompt,omitempty"`
}

// LabelInfo de-anonymizes one response label.
type LabelInfo struct {
	AgentTitle string `json:"agent_title"`
	Model      string `json:"model"`
}

// Standing is one agent's aggregate position across all peer rankings.
type Standing struct {
	AgentTitle    string  `json:"agent_title"`
	Model         string  `json:"model"`
	AverageRank   float64 `json:"average_rank"`
	RankingsCount int     `json:"rankings_count"`
}

// Metadata carries the label mapping and aggregate standings for one run.
type Metadata struct {
	LabelToModel      map[string]LabelInfo `json:"label_to_model,omitempty"`
	AggregateRankings []Standing           `json:"aggregate_rankings,omitempty"`
}

// Result is the complete outcome of one council run.
type Result struct {
	Stage1   []Stage1Result `json:"stage1"`
	Stage2   []Stage2Result `json:"stage2"`
	Stage3   Stage3Result   `json:"stage3"`
	Metadata Metadata       `json:"metadata"`
}
