// Package store persists conversations as per-user JSON files: one file
// per conversation under <dataDir>/users/<userID>/conversations/.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/adam-wood/llm-council/council"
)

// defaultTitle is the placeholder every conversation starts with until
// title generation replaces it.
const defaultTitle = "New Conversation"

// Message is one conversation turn. User turns carry Content; assistant
// turns carry the three stage payloads instead.
type Message struct {
	Role    string                 `json:"role"`
	Content string                 `json:"content,omitempty"`
	Stage1  []council.Stage1Result `json:"stage1,omitempty"`
	Stage2  []council.Stage2Result `json:"stage2,omitempty"`
	Stage3  *council.Stage3Result  `json:"stage3,omitempty"`
}

// Conversation is the full on-disk record.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
}

// Summary is the listing view of a conversation.
type Summary struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
}

// ErrNotFound is returned when a conversation does not exist.
var ErrNotFound = fmt.Errorf("conversation not found")

// ConversationStore reads and writes per-user conversation files.
type ConversationStore struct {
	dataDir string
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewConversationStore creates a conversation store rooted at dataDir.
func NewConversationStore(dataDir string, logger *zap.Logger) *ConversationStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversationStore{
		dataDir: dataDir,
		logger:  logger.With(zap.String("component", "conversation_store")),
	}
}

func (s *ConversationStore) userDir(userID string) string {
	return filepath.Join(s.dataDir, "users", userID, "conversations")
}

func (s *ConversationStore) path(userID, conversationID string) string {
	return filepath.Join(s.userDir(userID), conversationID+".json")
}

// Create starts an empty conversation with the given ID and persists it.
func (s *ConversationStore) Create(userID, conversationID string) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := &Conversation{
		ID:        conversationID,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
		Title:     defaultTitle,
		Messages:  []Message{},
	}
	if err := s.save(conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// Get loads a conversation. Returns ErrNotFound when absent.
func (s *ConversationStore) Get(userID, conversationID string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.load(userID, conversationID)
}

func (s *ConversationStore) load(userID, conversationID string) (*Conversation, error) {
	data, err := os.ReadFile(s.path(userID, conversationID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var conv Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("failed to decode conversation %s: %w", conversationID, err)
	}
	return &conv, nil
}

func (s *ConversationStore) save(conv *Conversation) error {
	path := s.path(conv.UserID, conv.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create conversations directory: %w", err)
	}

	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return err
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tempPath, path)
}

// Delete removes a conversation. Returns false when it did not exist.
func (s *ConversationStore) Delete(userID, conversationID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(userID, conversationID))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// List returns every conversation's summary for a user, newest first.
// Unreadable files are skipped, not fatal; one corrupt conversation must
// not hide the rest of the history.
func (s *ConversationStore) List(userID string) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.userDir(userID))
	if err != nil {
		if os.IsNotExist(err) {
			return []Summary{}, nil
		}
		return nil, err
	}

	summaries := make([]Summary, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".json")
		conv, err := s.load(userID, id)
		if err != nil {
			s.logger.Warn("skipping unreadable conversation",
				zap.String("user_id", userID), zap.String("conversation_id", id), zap.Error(err))
			continue
		}
		title := conv.Title
		if title == "" {
			title = defaultTitle
		}
		summaries = append(summaries, Summary{
			ID:           conv.ID,
			CreatedAt:    conv.CreatedAt,
			Title:        title,
			MessageCount: len(conv.Messages),
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	return summaries, nil
}

// AddUserMessage appends a user turn.
func (s *ConversationStore) AddUserMessage(userID, conversationID, content string) error {
	return s.append(userID, conversationID, Message{Role: "user", Content: content})
}

// AddAssistantMessage appends an assistant turn carrying all three stages.
func (s *ConversationStore) AddAssistantMessage(userID, conversationID string, stage1 []council.Stage1Result, stage2 []council.Stage2Result, stage3 council.Stage3Result) error {
	return s.append(userID, conversationID, Message{
		Role:   "assistant",
		Stage1: stage1,
		Stage2: stage2,
		Stage3: &stage3,
	})
}

func (s *ConversationStore) append(userID, conversationID string, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, err := s.load(userID, conversationID)
	if err != nil {
		return err
	}
	conv.Messages = append(conv.Messages, msg)
	return s.save(conv)
}

// UpdateTitle replaces a conversation's title.
func (s *ConversationStore) UpdateTitle(userID, conversationID, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, err := s.load(userID, conversationID)
	if err != nil {
		return err
	}
	conv.Title = title
	return s.save(conv)
}
