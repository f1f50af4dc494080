package manager

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/aretw0/sessiond/internal/config"
	"github.com/aretw0/sessiond/internal/logging"
	"github.com/aretw0/sessiond/internal/metrics"
	"github.com/aretw0/sessiond/pkg/domain"
	"github.com/aretw0/sessiond/pkg/ports"
)

// Manager owns session lifecycle in the shared store: CRUD over records,
// per-user counting and invalidation, concurrency-limit eviction, and
// global expiry cleanup.
//
// The manager holds no authoritative in-process state; everything lives in
// the store, and per-key atomicity is the only consistency primitive.
// Scan-then-act sequences are not atomic as a whole: a record created
// between enumeration and a later fetch may be missed for one cycle. That
// is accepted; the cost is one extra session surviving one extra pass.
type Manager struct {
	cfg    config.Config
	store  ports.SessionStore
	locker ports.DistributedLocker
	logger *slog.Logger
	stats  *metrics.Collectors

	initialized atomic.Bool
	clock       func() time.Time
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed admission locking. Without it, Admit's
// check-then-evict sequence is racy under concurrent logins for the same
// user: both can pass the count check before either evicts.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(c *metrics.Collectors) Option {
	return func(m *Manager) {
		m.stats = c
	}
}

// WithClock overrides the time source. Tests only.
func WithClock(clock func() time.Time) Option {
	return func(m *Manager) {
		m.clock = clock
	}
}

// New creates a Session Manager over the given store. Call Initialize
// before any other operation.
func New(store ports.SessionStore, cfg config.Config, opts ...Option) *Manager {
	m := &Manager{
		cfg:    cfg,
		store:  store,
		logger: logging.NewNop(),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Initialize verifies the store connection. Safe to call more than once;
// only the first call does work.
func (m *Manager) Initialize(ctx context.Context) error {
	if m.initialized.Load() {
		return nil
	}
	if err := m.store.Ping(ctx); err != nil {
		return fmt.Errorf("failed to reach session store: %w", err)
	}
	m.initialized.Store(true)
	m.logger.Info("session manager initialized", "prefix", m.cfg.KeyPrefix)
	return nil
}

// Close releases the store connection. Safe to call without a prior
// Initialize.
func (m *Manager) Close() error {
	if !m.initialized.Swap(false) {
		return nil
	}
	return m.store.Close()
}

// Config returns the manager's immutable configuration.
func (m *Manager) Config() config.Config {
	return m.cfg
}

func (m *Manager) ready() error {
	if !m.initialized.Load() {
		return domain.ErrNotInitialized
	}
	return nil
}

// scanCtx bounds a full-keyspace walk so a slow store cannot block the
// next scheduled tick indefinitely.
func (m *Manager) scanCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.cfg.ScanTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, m.cfg.ScanTimeout)
}

// Get loads a session record. Returns domain.ErrSessionNotFound for both
// absent and store-expired records.
func (m *Manager) Get(ctx context.Context, sessionID string) (*domain.Record, error) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	record, err := m.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if record.Expired(m.clock(), m.cfg.MaxAge) {
		// Store TTL is only a backstop; expiry authority is lastAccess.
		return nil, domain.ErrSessionNotFound
	}
	return record, nil
}

// Save persists a record with the configured max age as store TTL.
func (m *Manager) Save(ctx context.Context, record *domain.Record) error {
	if err := m.ready(); err != nil {
		return err
	}
	return m.store.Save(ctx, record.SessionID, record, m.cfg.MaxAge)
}

// Touch refreshes the record's last-access time and writes it back.
func (m *Manager) Touch(ctx context.Context, record *domain.Record) error {
	if err := m.ready(); err != nil {
		return err
	}
	record.Touch(m.clock())
	return m.store.Save(ctx, record.SessionID, record, m.cfg.MaxAge)
}

// Delete removes a session. Deleting an absent session is not an error.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	if err := m.ready(); err != nil {
		return err
	}
	return m.store.Delete(ctx, sessionID)
}

// Admit inserts a new session for record.UserID, evicting the user's
// least-recently-used sessions first if the concurrency policy requires
// room. With a locker configured, count-evict-insert is one critical
// section per user.
func (m *Manager) Admit(ctx context.Context, record *domain.Record) error {
	if err := m.ready(); err != nil {
		return err
	}

	if m.locker != nil && record.UserID != "" && m.cfg.Concurrency.Enabled {
		unlock, err := m.locker.Lock(ctx, "user:"+record.UserID, m.admissionLockTTL())
		if err != nil {
			return fmt.Errorf("failed to lock user for admission: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("failed to release admission lock (will expire via TTL)",
					"user_id", record.UserID,
					"err", err,
				)
			}
		}()
	}

	if record.UserID != "" {
		if err := m.EnforceConcurrentSessionLimit(ctx, record.UserID); err != nil {
			return err
		}
	}

	return m.store.Save(ctx, record.SessionID, record, m.cfg.MaxAge)
}

// admissionLockTTL bounds how long an admission critical section may hold
// the per-user lock. Tied to the scan timeout so a slow eviction pass does
// not outlive its lock.
func (m *Manager) admissionLockTTL() time.Duration {
	if m.cfg.ScanTimeout > 0 {
		return m.cfg.ScanTimeout
	}
	return 10 * time.Second
}

// UserSessionCount returns how many live sessions a user owns. Zero for an
// unknown user is not an error.
func (m *Manager) UserSessionCount(ctx context.Context, userID string) (int, error) {
	if err := m.ready(); err != nil {
		return 0, err
	}
	ids, err := m.store.UserSessions(ctx, userID)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// InvalidateUserSessions deletes every session owned by userID. Individual
// delete failures are logged and skipped; only an enumeration failure is
// surfaced.
func (m *Manager) InvalidateUserSessions(ctx context.Context, userID string) error {
	if err := m.ready(); err != nil {
		return err
	}

	ids, err := m.store.UserSessions(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to enumerate sessions for user: %w", err)
	}

	deleted := 0
	for _, id := range ids {
		if err := m.store.Delete(ctx, id); err != nil {
			m.logger.Warn("failed to delete session during invalidation",
				"user_id", userID,
				"session_id", id,
				"err", err,
			)
			continue
		}
		deleted++
	}

	m.logger.Info("invalidated user sessions", "user_id", userID, "deleted", deleted)
	return nil
}

// EnforceConcurrentSessionLimit makes room for one new session: when the
// user already holds at least the configured maximum, the count−max+1
// least-recently-accessed sessions are deleted. LRU by lastAccess, ties
// broken by session id so eviction is deterministic. A no-op when the
// policy is disabled.
func (m *Manager) EnforceConcurrentSessionLimit(ctx context.Context, userID string) error {
	if err := m.ready(); err != nil {
		return err
	}
	if !m.cfg.Concurrency.Enabled {
		return nil
	}

	ids, err := m.store.UserSessions(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to enumerate sessions for user: %w", err)
	}

	records := make([]*domain.Record, 0, len(ids))
	for _, id := range ids {
		record, err := m.store.Load(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrSessionNotFound) {
				continue // deleted between enumeration and fetch
			}
			m.logger.Warn("skipping unreadable session during limit check",
				"session_id", id,
				"err", err,
			)
			continue
		}
		records = append(records, record)
	}

	max := m.cfg.Concurrency.MaxSessionsPerUser
	if len(records) < max {
		return nil
	}

	removeCount := len(records) - max + 1
	sortForEviction(records)

	for _, victim := range records[:removeCount] {
		if err := m.store.Delete(ctx, victim.SessionID); err != nil {
			m.logger.Warn("failed to evict session",
				"user_id", userID,
				"session_id", victim.SessionID,
				"err", err,
			)
			continue
		}
		m.logger.Info("evicted session over concurrency limit",
			"user_id", userID,
			"session_id", victim.SessionID,
			"last_access", victim.LastAccess,
		)
	}
	return nil
}

// sortForEviction orders records oldest-access first; identical lastAccess
// falls back to session id lexical order.
func sortForEviction(records []*domain.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].LastAccess != records[j].LastAccess {
			return records[i].LastAccess < records[j].LastAccess
		}
		return records[i].SessionID < records[j].SessionID
	})
}

// SessionStats scans the keyspace and classifies every record. A record is
// expired iff now−lastAccess exceeds the configured max age; unparseable
// records count as expired. Total = active + expired by construction.
func (m *Manager) SessionStats(ctx context.Context) (domain.StatsSnapshot, error) {
	if err := m.ready(); err != nil {
		return domain.StatsSnapshot{}, err
	}

	ctx, cancel := m.scanCtx(ctx)
	defer cancel()

	start := m.clock()
	defer m.stats.ObserveScan(start)

	ids, err := m.store.List(ctx)
	if err != nil {
		return domain.StatsSnapshot{}, fmt.Errorf("failed to scan sessions: %w", err)
	}

	now := m.clock()
	var snap domain.StatsSnapshot
	for _, id := range ids {
		record, err := m.store.Load(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrSessionNotFound) {
				continue // raced with a delete; not part of this snapshot
			}
			if ctx.Err() != nil {
				return domain.StatsSnapshot{}, fmt.Errorf("stats scan aborted: %w", ctx.Err())
			}
			if errors.Is(err, domain.ErrRecordInvalid) {
				snap.TotalSessions++
				snap.ExpiredSessions++
				continue
			}
			// Transient read failure: the record may be live, leave it out of
			// this snapshot rather than misclassify it.
			m.logger.Warn("skipping unreadable session during stats scan", "session_id", id, "err", err)
			continue
		}

		snap.TotalSessions++
		if record.Expired(now, m.cfg.MaxAge) {
			snap.ExpiredSessions++
		} else {
			snap.ActiveSessions++
		}
		snap.PayloadBytes += recordSize(record)
	}

	return snap, nil
}

// CleanupExpiredSessions deletes every expired or unparseable record and
// returns how many were removed. Safe to run concurrently with request
// traffic: deletions are idempotent, and a second immediate run removes
// nothing.
func (m *Manager) CleanupExpiredSessions(ctx context.Context) (int, error) {
	if err := m.ready(); err != nil {
		return 0, err
	}

	ctx, cancel := m.scanCtx(ctx)
	defer cancel()

	start := m.clock()
	defer m.stats.ObserveScan(start)

	ids, err := m.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to scan sessions: %w", err)
	}

	now := m.clock()
	cleaned := 0
	for _, id := range ids {
		record, err := m.store.Load(ctx, id)
		switch {
		case errors.Is(err, domain.ErrSessionNotFound):
			continue // already gone
		case errors.Is(err, domain.ErrRecordInvalid):
			// Unparseable record: data loss, reclaim the key.
			m.logger.Warn("deleting unparseable session record", "session_id", id, "err", err)
		case err != nil:
			if ctx.Err() != nil {
				return cleaned, fmt.Errorf("cleanup scan aborted: %w", ctx.Err())
			}
			// Transient read failure: the record may be live, never delete
			// on it. The next pass will see it again.
			m.logger.Warn("skipping unreadable session during cleanup", "session_id", id, "err", err)
			continue
		case !record.Expired(now, m.cfg.MaxAge):
			continue
		}

		if err := m.store.Delete(ctx, id); err != nil {
			m.logger.Warn("failed to delete expired session", "session_id", id, "err", err)
			continue
		}
		cleaned++
	}

	m.stats.RecordCleanup(cleaned)
	if cleaned > 0 {
		m.logger.Info("cleanup pass completed", "cleaned", cleaned)
	}
	return cleaned, nil
}

func recordSize(record *domain.Record) int64 {
	data, err := record.MarshalJSON()
	if err != nil {
		return 0
	}
	return int64(len(data))
}
