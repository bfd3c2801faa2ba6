package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"mindcare-chatbot-backend/models"
)

var ErrSessionNotFound = errors.New("session not found")

const sessionKeyPrefix = "mindcare:session:"

type sessionEntry struct {
	state     models.ConversationState
	expiresAt time.Time
}

// MemorySessionStore keeps conversation state in process. Entries expire
// after ttl of inactivity; a zero ttl keeps them forever.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]sessionEntry
	ttl      time.Duration
	now      func() time.Time
}

func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]sessionEntry),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *MemorySessionStore) Get(_ context.Context, id string) (models.ConversationState, error) {
	s.mu.RLock()
	entry, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok || s.expired(entry) {
		return models.ConversationState{}, ErrSessionNotFound
	}
	return cloneState(entry.state), nil
}

func (s *MemorySessionStore) Save(_ context.Context, state models.ConversationState) error {
	if state.SessionID == "" {
		return fmt.Errorf("session id is required")
	}

	entry := sessionEntry{state: cloneState(state)}
	if s.ttl > 0 {
		entry.expiresAt = s.now().Add(s.ttl)
	}

	s.mu.Lock()
	s.sessions[state.SessionID] = entry
	s.mu.Unlock()
	return nil
}

func (s *MemorySessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}

// Count drops expired entries and returns how many remain.
func (s *MemorySessionStore) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, entry := range s.sessions {
		if s.expired(entry) {
			delete(s.sessions, id)
		}
	}
	return len(s.sessions), nil
}

func (s *MemorySessionStore) expired(entry sessionEntry) bool {
	return !entry.expiresAt.IsZero() && s.now().After(entry.expiresAt)
}

func cloneState(state models.ConversationState) models.ConversationState {
	out := state
	out.History = append([]models.Message(nil), state.History...)
	if state.PendingDisease != nil {
		pending := *state.PendingDisease
		out.PendingDisease = &pending
	}
	return out
}

// RedisSessionStore keeps conversation state as JSON under
// "mindcare:session:<id>" with a sliding TTL.
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, ttl: ttl}
}

func (s *RedisSessionStore) Get(ctx context.Context, id string) (models.ConversationState, error) {
	raw, err := s.client.Get(ctx, sessionKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.ConversationState{}, ErrSessionNotFound
	}
	if err != nil {
		return models.ConversationState{}, fmt.Errorf("failed to load session: %w", err)
	}

	var state models.ConversationState
	if err := json.Unmarshal(raw, &state); err != nil {
		return models.ConversationState{}, fmt.Errorf("failed to decode session: %w", err)
	}
	return state, nil
}

func (s *RedisSessionStore) Save(ctx context.Context, state models.ConversationState) error {
	if state.SessionID == "" {
		return fmt.Errorf("session id is required")
	}

	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKeyPrefix+state.SessionID, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, sessionKeyPrefix+id).Err()
}

func (s *RedisSessionStore) Count(ctx context.Context) (int, error) {
	var (
		cursor uint64
		total  int
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, sessionKeyPrefix+"*", 100).Result()
		if err != nil {
			return 0, fmt.Errorf("failed to count sessions: %w", err)
		}
		total += len(keys)
		if next == 0 {
			return total, nil
		}
		cursor = next
	}
}
