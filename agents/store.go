// Package agents manages the per-user council roster: agent definitions
// and the chairman designation, persisted as JSON files on disk.
package agents

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Agent is one configured council member: a persona bound to a target
// model with optional per-stage prompt overrides.
type Agent struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Role      string            `json:"role"`
	Model     string            `json:"model"`
	Prompts   map[string]string `json:"prompts"`
	Active    bool              `json:"active"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// StagePrompt returns the agent's override template for a stage, if set.
func (a *Agent) StagePrompt(stage string) (string, bool) {
	if a.Prompts == nil {
		return "", false
	}
	tpl, ok := a.Prompts[stage]
	return tpl, ok
}

// Updates carries the mutable fields of an agent; nil fields are left
// unchanged. ID and CreatedAt are immutable.
type Updates struct {
	Title   *string            `json:"title"`
	Role    *string            `json:"role"`
	Model   *string            `json:"model"`
	Prompts *map[string]string `json:"prompts"`
	Active  *bool              `json:"active"`
}

// registryData is the on-disk shape of a user's agents.json.
type registryData struct {
	Agents   []Agent `json:"agents"`
	Chairman string  `json:"chairman,omitempty"`
}

// Store persists per-user agent registries under
// <dataDir>/users/<userID>/agents.json.
type Store struct {
	dataDir string
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewStore creates an agent store rooted at dataDir.
func NewStore(dataDir string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		dataDir: dataDir,
		logger:  logger.With(zap.String("component", "agent_store")),
	}
}

func (s *Store) userFile(userID string) string {
	return filepath.Join(s.dataDir, "users", userID, "agents.json")
}

// load reads a user's registry. New users and corrupt files both start
// from the default board.
func (s *Store) load(userID string) *registryData {
	data, err := os.ReadFile(s.userFile(userID))
	if err != nil {
		return defaultRegistryData()
	}
	var reg registryData
	if err := json.Unmarshal(data, &reg); err != nil {
		s.logger.Warn("corrupt agents file, reseeding defaults", zap.String("user_id", userID), zap.Error(err))
		return defaultRegistryData()
	}
	return &reg
}

func (s *Store) save(userID string, reg *registryData) error {
	path := s.userFile(userID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create user directory: %w", err)
	}

	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return err
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tempPath, path)
}

// All returns every agent configured for a user.
func (s *Store) All(userID string) []Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.load(userID).Agents
}

// ListActive returns the user's active agents in configured order.
func (s *Store) ListActive(userID string) ([]Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.load(userID).Agents
	active := make([]Agent, 0, len(all))
	for _, a := range all {
		if a.Active {
			active = append(active, a)
		}
	}
	return active, nil
}

// ByID returns the agent with the given ID, or nil when absent.
func (s *Store) ByID(userID, agentID string) *Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findAgent(s.load(userID), agentID)
}

func findAgent(reg *registryData, agentID string) *Agent {
	for i := range reg.Agents {
		if reg.Agents[i].ID == agentID {
			a := reg.Agents[i]
			return &a
		}
	}
	return nil
}

// Create adds a new agent to the user's registry.
func (s *Store) Create(userID, title, role, model string, prompts map[string]string, active bool) (*Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prompts == nil {
		prompts = map[string]string{}
	}
	now := time.Now().UTC()
	agent := Agent{
		ID:        uuid.New().String(),
		Title:     title,
		Role:      role,
		Model:     model,
		Prompts:   prompts,
		Active:    active,
		CreatedAt: now,
		UpdatedAt: now,
	}

	reg := s.load(userID)
	reg.Agents = append(reg.Agents, agent)
	if err := s.save(userID, reg); err != nil {
		return nil, err
	}
	return &agent, nil
}

// Update applies partial updates to an agent. Returns nil when the agent
// does not exist.
func (s *Store) Update(userID, agentID string, updates Updates) (*Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg := s.load(userID)
	for i := range reg.Agents {
		if reg.Agents[i].ID != agentID {
			continue
		}
		a := &reg.Agents[i]
		if updates.Title != nil {
			a.Title = *updates.Title
		}
		if updates.Role != nil {
			a.Role = *updates.Role
		}
		if updates.Model != nil {
			a.Model = *updates.Model
		}
		if updates.Prompts != nil {
			a.Prompts = *updates.Prompts
		}
		if updates.Active != nil {
			a.Active = *updates.Active
		}
		a.UpdatedAt = time.Now().UTC()

		if err := s.save(userID, reg); err != nil {
			return nil, err
		}
		out := *a
		return &out, nil
	}
	return nil, nil
}

// Delete removes an agent. Returns false when the agent does not exist.
func (s *Store) Delete(userID, agentID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg := s.load(userID)
	kept := reg.Agents[:0]
	for _, a := range reg.Agents {
		if a.ID != agentID {
			kept = append(kept, a)
		}
	}
	if len(kept) == len(reg.Agents) {
		return false, nil
	}
	reg.Agents = kept
	if reg.Chairman == agentID {
		reg.Chairman = ""
	}
	if err := s.save(userID, reg); err != nil {
		return false, err
	}
	return true, nil
}

// SetChairman designates an agent as chairman. An empty agentID clears the
// designation (fall back to the configured default model). The agent must
// exist; validation happens here, not in the orchestrator.
func (s *Store) SetChairman(userID, agentID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg := s.load(userID)
	if agentID != "" && findAgent(reg, agentID) == nil {
		return false, nil
	}
	reg.Chairman = agentID
	if err := s.save(userID, reg); err != nil {
		return false, err
	}
	return true, nil
}

// Chairman returns the designated chairman agent, or nil when the default
// model should be used.
func (s *Store) Chairman(userID string) (*Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reg := s.load(userID)
	if reg.Chairman == "" {
		return nil, nil
	}
	return findAgent(reg, reg.Chairman), nil
}

// InitializeDefaults seeds the default board for a user that has no agents
// yet; existing agents are returned unchanged.
func (s *Store) InitializeDefaults(userID string) ([]Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg := s.load(userID)
	if len(reg.Agents) > 0 {
		return reg.Agents, nil
	}
	reg = defaultRegistryData()
	if err := s.save(userID, reg); err != nil {
		return nil, err
	}
	return reg.Agents, nil
}

// defaultRegistryData builds the default four-member personal board.
func defaultRegistryData() *registryData {
	now := time.Now().UTC()
	mk := func(title, role, model, stage1 string) Agent {
		return Agent{
			ID:      uuid.New().String(),
			Title:   title,
			Role:    role,
			Model:   model,
			Prompts: map[string]string{"stage1": stage1},
			Active:  true, CreatedAt: now, UpdatedAt: now,
		}
	}
	return &registryData{
		Agents: []Agent{
			mk(
				"Ethics & Values Advisor",
				"Provides ethical guidance and helps evaluate decisions through a moral lens, considering values, principles, and long-term consequences.",
				"anthropic/claude-sonnet-4.5",
				"You are the Ethics & Values Advisor on a personal board of directors. Evaluate the following question from an ethical perspective, considering moral principles, values, and long-term consequences:\n\n{user_query}",
			),
			mk(
				"Technology & Innovation Expert",
				"Offers technical insights, evaluates technological feasibility, and provides guidance on innovation and digital transformation.",
				"openai/gpt-5.1",
				"You are the Technology & Innovation Expert on a personal board of directors. Analyze the following question from a technical and innovation perspective:\n\n{user_query}",
			),
			mk(
				"Leadership & Strategy Coach",
				"Provides strategic guidance, leadership development advice, and helps with long-term planning and decision-making.",
				"google/gemini-3-pro-preview",
				"You are the Leadership & Strategy Coach on a personal board of directors. Provide strategic and leadership-focused guidance on:\n\n{user_query}",
			),
			mk(
				"Financial & Business Advisor",
				"Offers financial insights, business strategy, and helps evaluate economic implications of decisions.",
				"x-ai/grok-4",
				"You are the Financial & Business Advisor on a personal board of directors. Analyze the following from a financial and business perspective:\n\n{user_query}",
			),
		},
	}
}
