package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/sessiond/internal/logging"
	"github.com/aretw0/sessiond/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// Store implements ports.SessionStore using Redis.
//
// Layout under the configured prefix:
//
//	<prefix><sessionID>       JSON record body, TTL backstop
//	<prefix>user:<userID>     SET of session ids owned by the user
//	<prefix>lock:<key>        advisory locks (see Locker)
//
// The user index is maintained in the same pipeline as every record write
// and delete, so per-user lookups are O(sessions-for-user) instead of a
// full keyspace scan.
type Store struct {
	client *backend.Client
	prefix string
	logger *slog.Logger
}

type Option func(*Store)

// WithPrefix sets the key prefix for session records.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithLogger configures a logger for index-repair warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: "sess:",
		logger: logging.NewNop(),
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

func (s *Store) key(sessionID string) string {
	return s.prefix + sessionID
}

func (s *Store) userKey(userID string) string {
	return s.prefix + "user:" + userID
}

// Ping verifies the Redis connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Save persists the record and updates the owner's index in one pipeline.
func (s *Store) Save(ctx context.Context, sessionID string, record *domain.Record, ttl time.Duration) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(sessionID), data, ttl)
	if record.UserID != "" {
		pipe.SAdd(ctx, s.userKey(record.UserID), sessionID)
		if ttl > 0 {
			// The index outlives any single session only as long as writes
			// keep refreshing it; a dead user's index expires with the TTL.
			pipe.Expire(ctx, s.userKey(record.UserID), ttl)
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save session to redis: %w", err)
	}
	return nil
}

// Load retrieves a record by session id.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.Record, error) {
	val, err := s.client.Get(ctx, s.key(sessionID)).Result()
	if err != nil {
		if err == backend.Nil {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session from redis: %w", err)
	}

	var record domain.Record
	if err := json.Unmarshal([]byte(val), &record); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRecordInvalid, err)
	}
	record.SessionID = sessionID

	return &record, nil
}

// Delete removes the record and prunes the owner's index. Deleting an
// absent key is a no-op.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	// The record body is the only place the owner is known, so fetch it
	// before deleting to prune the index.
	record, err := s.Load(ctx, sessionID)
	if err != nil && err != domain.ErrSessionNotFound {
		// Unparseable body: delete the key anyway, the index entry will
		// self-heal on the next UserSessions call.
		s.logger.Warn("deleting session with unreadable body", "session_id", sessionID, "err", err)
	}

	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(sessionID))
	if record != nil && record.UserID != "" {
		pipe.SRem(ctx, s.userKey(record.UserID), sessionID)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete session from redis: %w", err)
	}
	return nil
}

// List enumerates session ids by scanning keys under the prefix, skipping
// index and lock keys. This is the O(N) fallback path; per-user lookups
// should use UserSessions instead.
func (s *Store) List(ctx context.Context) ([]string, error) {
	var ids []string
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		suffix := strings.TrimPrefix(iter.Val(), s.prefix)
		if strings.HasPrefix(suffix, "user:") || strings.HasPrefix(suffix, "lock:") {
			continue
		}
		ids = append(ids, suffix)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan sessions: %w", err)
	}
	return ids, nil
}

// UserSessions returns the indexed session ids for a user. Index entries
// whose record already expired are pruned lazily before returning.
func (s *Store) UserSessions(ctx context.Context, userID string) ([]string, error) {
	members, err := s.client.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read user index: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	exists := make([]*backend.IntCmd, len(members))
	for i, id := range members {
		exists[i] = pipe.Exists(ctx, s.key(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to verify user index: %w", err)
	}

	var live, stale []string
	for i, id := range members {
		if exists[i].Val() > 0 {
			live = append(live, id)
		} else {
			stale = append(stale, id)
		}
	}

	if len(stale) > 0 {
		// Lazy repair: the record expired via TTL without going through
		// Delete, so the set still references it.
		args := make([]interface{}, len(stale))
		for i, id := range stale {
			args[i] = id
		}
		if err := s.client.SRem(ctx, s.userKey(userID), args...).Err(); err != nil {
			s.logger.Warn("failed to prune stale user index entries", "user_id", userID, "err", err)
		}
	}

	return live, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
