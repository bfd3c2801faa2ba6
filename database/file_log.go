package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"mindcare-chatbot-backend/models"
)

var (
	ErrConversationNotFound  = errors.New("conversation not found")
	ErrInvalidConversationID = errors.New("invalid conversation id")
)

var conversationIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// FileLogStore writes one JSON document per conversation into dir.
type FileLogStore struct {
	dir string
	mu  sync.Mutex
}

func NewFileLogStore(dir string) (*FileLogStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create conversation directory: %w", err)
	}
	return &FileLogStore{dir: dir}, nil
}

func (s *FileLogStore) Save(_ context.Context, log models.ConversationLog) error {
	path, err := s.path(log.ID)
	if err != nil {
		return err
	}

	raw, err := json.MarshalIndent(log, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode conversation: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, log.ID+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write conversation: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write conversation: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write conversation: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write conversation: %w", err)
	}
	return nil
}

func (s *FileLogStore) Get(_ context.Context, id string) (*models.ConversationLog, error) {
	path, err := s.path(id)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation: %w", err)
	}

	var log models.ConversationLog
	if err := json.Unmarshal(raw, &log); err != nil {
		return nil, fmt.Errorf("failed to decode conversation %s: %w", id, err)
	}
	return &log, nil
}

// List returns up to limit conversations of username, newest id first.
// Unreadable files are skipped.
func (s *FileLogStore) List(ctx context.Context, username string, limit int) ([]models.ConversationSummary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))

	summaries := make([]models.ConversationSummary, 0, len(ids))
	for _, id := range ids {
		if limit > 0 && len(summaries) >= limit {
			break
		}
		log, err := s.Get(ctx, id)
		if err != nil || log.Username != username {
			continue
		}
		summaries = append(summaries, models.ConversationSummary{
			ID:           log.ID,
			SessionID:    log.SessionID,
			Username:     log.Username,
			MessageCount: len(log.Messages),
			UpdatedAt:    log.UpdatedAt,
		})
	}
	return summaries, nil
}

func (s *FileLogStore) path(id string) (string, error) {
	if !conversationIDPattern.MatchString(id) {
		return "", ErrInvalidConversationID
	}
	return filepath.Join(s.dir, id+".json"), nil
}
