package nodes

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ContextEntry is one remembered item in a memory session.
type ContextEntry struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ContextStore persists memory entries per session. The engine only sees
// this narrow interface; backends are interchangeable.
type ContextStore interface {
	Store(ctx context.Context, sessionID string, entry ContextEntry) error
	Retrieve(ctx context.Context, sessionID string, limit int) ([]ContextEntry, error)
	Search(ctx context.Context, sessionID, query string, limit int) ([]ContextEntry, error)
	Clear(ctx context.Context, sessionID string) error
}

// ---------------------------------------------------------------------------
// In-memory backend
// ---------------------------------------------------------------------------

// InMemoryContextStore 进程内记忆存储（默认后端）
type InMemoryContextStore struct {
	mu       sync.RWMutex
	sessions map[string][]ContextEntry
}

// NewInMemoryContextStore creates an empty in-memory store.
func NewInMemoryContextStore() *InMemoryContextStore {
	return &InMemoryContextStore{sessions: make(map[string][]ContextEntry)}
}

func (s *InMemoryContextStore) Store(_ context.Context, sessionID string, entry ContextEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = append(s.sessions[sessionID], entry)
	return nil
}

// Retrieve returns the most recent entries first.
func (s *InMemoryContextStore) Retrieve(_ context.Context, sessionID string, limit int) ([]ContextEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.sessions[sessionID]
	return newestFirst(entries, limit), nil
}

// Search performs a naive substring match over entry content and tags,
// newest entries first.
func (s *InMemoryContextStore) Search(_ context.Context, sessionID, query string, limit int) ([]ContextEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterEntries(s.sessions[sessionID], query, limit), nil
}

func (s *InMemoryContextStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// ---------------------------------------------------------------------------
// Redis backend
// ---------------------------------------------------------------------------

// RedisContextStore keeps each session as a Redis list of JSON entries,
// newest at the head.
type RedisContextStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisContextStore wraps a redis client. prefix defaults to
// "flowmesh:memory"; ttl zero means entries never expire.
func NewRedisContextStore(client *redis.Client, prefix string, ttl time.Duration) *RedisContextStore {
	if prefix == "" {
		prefix = "flowmesh:memory"
	}
	return &RedisContextStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisContextStore) key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

func (s *RedisContextStore) Store(ctx context.Context, sessionID string, entry ContextEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	key := s.key(sessionID)
	if err := s.client.LPush(ctx, key, payload).Err(); err != nil {
		return fmt.Errorf("redis lpush: %w", err)
	}
	if s.ttl > 0 {
		if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
			return fmt.Errorf("redis expire: %w", err)
		}
	}
	return nil
}

func (s *RedisContextStore) Retrieve(ctx context.Context, sessionID string, limit int) ([]ContextEntry, error) {
	entries, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *RedisContextStore) Search(ctx context.Context, sessionID, query string, limit int) ([]ContextEntry, error) {
	entries, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return filterLoaded(entries, query, limit), nil
}

func (s *RedisContextStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (s *RedisContextStore) load(ctx context.Context, sessionID string) ([]ContextEntry, error) {
	raw, err := s.client.LRange(ctx, s.key(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange: %w", err)
	}
	entries := make([]ContextEntry, 0, len(raw))
	for _, item := range raw {
		var entry ContextEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ---------------------------------------------------------------------------
// Shared helpers
// ---------------------------------------------------------------------------

func newestFirst(entries []ContextEntry, limit int) []ContextEntry {
	out := make([]ContextEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, entries[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

func filterEntries(entries []ContextEntry, query string, limit int) []ContextEntry {
	return filterLoaded(newestFirst(entries, 0), query, limit)
}

// filterLoaded expects newest-first input and keeps matches only.
func filterLoaded(entries []ContextEntry, query string, limit int) []ContextEntry {
	needle := strings.ToLower(query)
	out := make([]ContextEntry, 0)
	for _, entry := range entries {
		if !matches(entry, needle) {
			continue
		}
		out = append(out, entry)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

func matches(entry ContextEntry, needle string) bool {
	if needle == "" {
		return true
	}
	if strings.Contains(strings.ToLower(entry.Content), needle) {
		return true
	}
	for _, tag := range entry.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}
