package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/kulate-stoly-api/internal/models"
	appErrors "github.com/noah-isme/kulate-stoly-api/pkg/errors"
)

// SessionRepository keeps editing sessions in Redis as JSON documents.
type SessionRepository struct {
	client *redis.Client
	prefix string
}

// NewSessionRepository constructs a Redis-backed session store.
func NewSessionRepository(client *redis.Client, prefix string) *SessionRepository {
	return &SessionRepository{client: client, prefix: prefix}
}

// Get loads the session, ErrSessionNotFound when it expired or never existed.
func (r *SessionRepository) Get(ctx context.Context, id string) (*models.Session, error) {
	raw, err := r.client.Get(ctx, r.prefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, appErrors.ErrSessionNotFound
		}
		return nil, fmt.Errorf("redis get session %s: %w", id, err)
	}
	var sess models.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session %s: %w", id, err)
	}
	return &sess, nil
}

// Save stores the session and refreshes its TTL.
func (r *SessionRepository) Save(ctx context.Context, sess *models.Session, ttl time.Duration) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", sess.ID, err)
	}
	if err := r.client.Set(ctx, r.prefix+sess.ID, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set session %s: %w", sess.ID, err)
	}
	return nil
}

// Delete removes the session.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.prefix+id).Err(); err != nil {
		return fmt.Errorf("redis delete session %s: %w", id, err)
	}
	return nil
}

// MemorySessionStore keeps sessions in process. Sessions are stored as JSON
// so callers never share a live *Session between requests.
type MemorySessionStore struct {
	mu      sync.Mutex
	entries map[string]memorySession
	now     func() time.Time
}

type memorySession struct {
	payload   []byte
	expiresAt time.Time
}

// NewMemorySessionStore constructs an in-process session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{entries: make(map[string]memorySession), now: time.Now}
}

// Get loads the session, ErrSessionNotFound when it expired or never existed.
func (s *MemorySessionStore) Get(ctx context.Context, id string) (*models.Session, error) {
	s.mu.Lock()
	entry, ok := s.entries[id]
	if ok && !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt) {
		delete(s.entries, id)
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		return nil, appErrors.ErrSessionNotFound
	}
	var sess models.Session
	if err := json.Unmarshal(entry.payload, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session %s: %w", id, err)
	}
	return &sess, nil
}

// Save stores a copy of the session. A non-positive ttl never expires.
func (s *MemorySessionStore) Save(ctx context.Context, sess *models.Session, ttl time.Duration) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", sess.ID, err)
	}
	entry := memorySession{payload: payload}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.entries[sess.ID] = entry
	s.mu.Unlock()
	return nil
}

// Delete removes the session.
func (s *MemorySessionStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
	return nil
}

// Sweep drops expired sessions and returns how many were removed.
func (s *MemorySessionStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for id, entry := range s.entries {
		if !entry.expiresAt.IsZero() && !now.Before(entry.expiresAt) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}
