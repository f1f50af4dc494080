package ports

import (
	"context"
	"time"

	"github.com/aretw0/sessiond/pkg/domain"
)

// SessionStore is the adapter contract to the shared key-value host store.
//
// Implementations own key namespacing: every method operates only on keys
// under the configured prefix, and session ids passed in or returned never
// carry the prefix. Per-key get/set/delete atomicity is the only
// consistency primitive callers may rely on.
type SessionStore interface {
	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// List enumerates all session ids under the prefix.
	List(ctx context.Context) ([]string, error)

	// Load retrieves a record by session id.
	// Returns domain.ErrSessionNotFound if the key does not exist.
	Load(ctx context.Context, sessionID string) (*domain.Record, error)

	// Save persists a record with the given TTL (0 = no store-side expiry).
	// The store TTL is a backstop; expiry authority stays with the caller.
	Save(ctx context.Context, sessionID string, record *domain.Record, ttl time.Duration) error

	// Delete removes a record. Deleting an absent key is not an error.
	Delete(ctx context.Context, sessionID string) error

	// UserSessions returns the session ids indexed for userID.
	// Implementations maintain the index alongside Save/Delete; the result
	// may transiently include ids whose records are already gone.
	UserSessions(ctx context.Context, userID string) ([]string, error)

	// Close releases the store connection.
	Close() error
}
