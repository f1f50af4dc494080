package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/aretw0/sessiond/pkg/domain"
)

// Store implements ports.SessionStore in memory.
// Safe for concurrent use. Intended for tests and local development; it
// honors TTLs the same way the Redis adapter does (expired entries vanish
// on access).
type Store struct {
	mu    sync.RWMutex
	data  map[string]entry
	users map[string]map[string]struct{}
}

type entry struct {
	body      []byte
	expiresAt time.Time // zero = no expiry
	userID    string
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data:  make(map[string]entry),
		users: make(map[string]map[string]struct{}),
	}
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error { return nil }

// Save persists the record, serialized so the caller cannot mutate stored
// state by pointer.
func (s *Store) Save(ctx context.Context, sessionID string, record *domain.Record, ttl time.Duration) error {
	body, err := json.Marshal(record)
	if err != nil {
		return err
	}

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[sessionID] = entry{body: body, expiresAt: expiresAt, userID: record.UserID}
	if record.UserID != "" {
		set, ok := s.users[record.UserID]
		if !ok {
			set = make(map[string]struct{})
			s.users[record.UserID] = set
		}
		set[sessionID] = struct{}{}
	}
	return nil
}

// Load retrieves the record, or domain.ErrSessionNotFound.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.Record, error) {
	s.mu.RLock()
	e, ok := s.data[sessionID]
	s.mu.RUnlock()

	if !ok || e.expired(time.Now()) {
		return nil, domain.ErrSessionNotFound
	}

	var record domain.Record
	if err := json.Unmarshal(e.body, &record); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRecordInvalid, err)
	}
	record.SessionID = sessionID
	return &record, nil
}

// Delete removes the record and its index entry.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.data[sessionID]; ok && e.userID != "" {
		delete(s.users[e.userID], sessionID)
	}
	delete(s.data, sessionID)
	return nil
}

// List returns all unexpired session ids.
func (s *Store) List(ctx context.Context) ([]string, error) {
	now := time.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id, e := range s.data {
		if !e.expired(now) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// UserSessions returns the indexed session ids for a user.
func (s *Store) UserSessions(ctx context.Context, userID string) ([]string, error) {
	now := time.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for id := range s.users[userID] {
		if e, ok := s.data[id]; ok && !e.expired(now) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }
