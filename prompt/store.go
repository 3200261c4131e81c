package prompt

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// customPrompts is the on-disk shape of a user's prompts.json.
type customPrompts struct {
	Defaults map[string]Prompt            `json:"defaults"`
	Models   map[string]map[string]Prompt `json:"models"`
}

func newCustomPrompts() *customPrompts {
	return &customPrompts{
		Defaults: make(map[string]Prompt),
		Models:   make(map[string]map[string]Prompt),
	}
}

// All is the full prompt configuration returned to API clients: the active
// defaults plus every per-model override.
type All struct {
	Defaults map[string]Prompt            `json:"defaults"`
	Models   map[string]map[string]Prompt `json:"models"`
}

// Store persists per-user prompt overrides as JSON files under
// <dataDir>/users/<userID>/prompts.json.
type Store struct {
	dataDir string
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewStore creates a prompt store rooted at dataDir.
func NewStore(dataDir string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		dataDir: dataDir,
		logger:  logger.With(zap.String("component", "prompt_store")),
	}
}

func (s *Store) userFile(userID string) string {
	return filepath.Join(s.dataDir, "users", userID, "prompts.json")
}

// load reads a user's overrides. A missing or corrupt file yields an empty
// override set; a legacy flat file (no defaults/models keys) is migrated by
// treating the whole document as the defaults section.
func (s *Store) load(userID string) *customPrompts {
	data, err := os.ReadFile(s.userFile(userID))
	if err != nil {
		return newCustomPrompts()
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		s.logger.Warn("corrupt prompts file, starting fresh", zap.String("user_id", userID), zap.Error(err))
		return newCustomPrompts()
	}

	_, hasDefaults := probe["defaults"]
	_, hasModels := probe["models"]
	if !hasDefaults && !hasModels {
		// Legacy format: stage prompts stored flat at the top level.
		legacy := newCustomPrompts()
		if err := json.Unmarshal(data, &legacy.Defaults); err != nil {
			return newCustomPrompts()
		}
		return legacy
	}

	custom := newCustomPrompts()
	if err := json.Unmarshal(data, custom); err != nil {
		return newCustomPrompts()
	}
	if custom.Defaults == nil {
		custom.Defaults = make(map[string]Prompt)
	}
	if custom.Models == nil {
		custom.Models = make(map[string]map[string]Prompt)
	}
	return custom
}

func (s *Store) save(userID string, custom *customPrompts) error {
	path := s.userFile(userID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create user directory: %w", err)
	}

	data, err := json.MarshalIndent(custom, "", "  ")
	if err != nil {
		return err
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tempPath, path)
}

// Active returns the active default prompts for a user: built-in defaults
// with the user's custom defaults layered on top.
func (s *Store) Active(userID string) map[string]Prompt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeLocked(userID)
}

func (s *Store) activeLocked(userID string) map[string]Prompt {
	active := Defaults()
	custom := s.load(userID)
	for stage, p := range custom.Defaults {
		if _, ok := active[stage]; ok {
			active[stage] = p
		}
	}
	return active
}

// ForModel returns the effective prompt for a (model, stage) pair: the
// model-specific override when present, else the active default.
func (s *Store) ForModel(userID, model, stage string) Prompt {
	s.mu.RLock()
	defer s.mu.RUnlock()

	custom := s.load(userID)
	if stages, ok := custom.Models[model]; ok {
		if p, ok := stages[stage]; ok {
			return p
		}
	}
	return s.activeLocked(userID)[stage]
}

// TemplateForModel resolves the effective template text for a (model,
// stage) pair. This is the resolver the orchestrator depends on.
func (s *Store) TemplateForModel(userID, model, stage string) (string, error) {
	if !ValidStage(stage) {
		return "", fmt.Errorf("unknown stage %q", stage)
	}
	return s.ForModel(userID, model, stage).Template, nil
}

// GetAll returns the active defaults plus every per-model override.
func (s *Store) GetAll(userID string) All {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.allLocked(userID)
}

func (s *Store) allLocked(userID string) All {
	custom := s.load(userID)
	return All{
		Defaults: s.activeLocked(userID),
		Models:   custom.Models,
	}
}

// Update stores a prompt override for a stage. An empty model updates the
// user's default; otherwise the model-specific override is written.
func (s *Store) Update(userID, stage string, p Prompt, model string) (All, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	custom := s.load(userID)
	if model != "" {
		if custom.Models[model] == nil {
			custom.Models[model] = make(map[string]Prompt)
		}
		custom.Models[model][stage] = p
	} else {
		custom.Defaults[stage] = p
	}

	if err := s.save(userID, custom); err != nil {
		return All{}, err
	}
	return s.allLocked(userID), nil
}

// Reset removes a stage's override (default or model-specific), restoring
// the built-in behavior.
func (s *Store) Reset(userID, stage, model string) (All, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	custom := s.load(userID)
	if model != "" {
		if stages, ok := custom.Models[model]; ok {
			delete(stages, stage)
			if len(stages) == 0 {
				delete(custom.Models, model)
			}
		}
	} else {
		delete(custom.Defaults, stage)
	}

	if err := s.save(userID, custom); err != nil {
		return All{}, err
	}
	return s.allLocked(userID), nil
}

// ResetAll removes every override for a user.
func (s *Store) ResetAll(userID string) (All, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.userFile(userID)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return All{}, err
	}
	return s.allLocked(userID), nil
}
