package monitor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/aretw0/sessiond/internal/config"
	"github.com/aretw0/sessiond/internal/logging"
	"github.com/aretw0/sessiond/internal/metrics"
	"github.com/aretw0/sessiond/pkg/domain"
	"github.com/aretw0/sessiond/pkg/manager"
	"github.com/aretw0/sessiond/pkg/ports"
)

// Monitor operates the manager's maintenance and observability functions
// on a schedule: periodic cleanup, rolling metrics, anomaly detection with
// rate-limited alerts. It never touches the store directly and never
// mutates session records except through the manager's API.
//
// State machine: Stopped -> Running on Start, Running -> Stopped on Stop;
// repeated calls in the same state are no-ops. Failures inside scheduled
// work are alerted and the schedule continues.
type Monitor struct {
	mgr        *manager.Manager
	logger     *slog.Logger
	collectors *metrics.Collectors
	alerter    *alerter
	clock      func() time.Time

	cleanupInterval  time.Duration
	metricsInterval  time.Duration
	sessionThreshold int
	memoryBudget     int64

	mu        sync.Mutex
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	metrics   domain.Metrics
	startedAt time.Time

	events  chan domain.Event
	sinks   []ports.EventSink
	dropped atomic.Int64
}

// Option configures the Monitor.
type Option func(*Monitor)

// WithLogger configures a logger for the Monitor.
func WithLogger(logger *slog.Logger) Option {
	return func(mo *Monitor) {
		mo.logger = logger
	}
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(c *metrics.Collectors) Option {
	return func(mo *Monitor) {
		mo.collectors = c
	}
}

// WithSink registers an additional event consumer alongside the channel.
func WithSink(sink ports.EventSink) Option {
	return func(mo *Monitor) {
		mo.sinks = append(mo.sinks, sink)
	}
}

// WithClock overrides the time source. Tests only.
func WithClock(clock func() time.Time) Option {
	return func(mo *Monitor) {
		mo.clock = clock
	}
}

// New creates a Monitor over the given manager, using the monitor section
// of the manager's configuration. Non-positive intervals fall back to the
// configuration defaults; time.NewTicker panics on them otherwise.
func New(mgr *manager.Manager, opts ...Option) *Monitor {
	cfg := mgr.Config().Monitor
	defaults := config.Default().Monitor
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = defaults.CleanupInterval
	}
	if cfg.MetricsInterval <= 0 {
		cfg.MetricsInterval = defaults.MetricsInterval
	}
	mo := &Monitor{
		mgr:              mgr,
		logger:           logging.NewNop(),
		alerter:          newAlerter(cfg.AlertCooldown),
		clock:            time.Now,
		cleanupInterval:  cfg.CleanupInterval,
		metricsInterval:  cfg.MetricsInterval,
		sessionThreshold: cfg.SessionThreshold,
		memoryBudget:     cfg.MemoryBudget,
		events:           make(chan domain.Event, max(cfg.EventBuffer, 1)),
	}
	for _, opt := range opts {
		opt(mo)
	}
	return mo
}

// Events returns the monitor's event channel. Events are dropped (and
// counted) when the buffer is full, so a stalled consumer cannot block
// the schedule.
func (mo *Monitor) Events() <-chan domain.Event {
	return mo.events
}

// DroppedEvents reports how many events were discarded due to a full
// buffer.
func (mo *Monitor) DroppedEvents() int64 {
	return mo.dropped.Load()
}

// Start begins the cleanup and metrics schedules. Starting a running
// monitor is a no-op.
func (mo *Monitor) Start() {
	mo.mu.Lock()
	if mo.running {
		mo.mu.Unlock()
		mo.logger.Info("session monitor already running")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	mo.cancel = cancel
	mo.running = true
	mo.startedAt = mo.clock()
	mo.mu.Unlock()

	mo.wg.Add(2)
	go mo.runSchedule(ctx, mo.cleanupInterval, mo.scheduledCleanup)
	go mo.runSchedule(ctx, mo.metricsInterval, mo.scheduledMetrics)

	mo.logger.Info("session monitor started",
		"cleanup_interval", mo.cleanupInterval,
		"metrics_interval", mo.metricsInterval,
	)
	mo.publish(domain.Event{Type: domain.EventMonitorStarted, Timestamp: mo.clock()})
}

// Stop cancels all scheduled work and waits for in-flight runs to finish.
// Stopping a stopped monitor is a no-op.
func (mo *Monitor) Stop() {
	mo.mu.Lock()
	if !mo.running {
		mo.mu.Unlock()
		return
	}
	mo.running = false
	cancel := mo.cancel
	mo.mu.Unlock()

	cancel()
	mo.wg.Wait()

	mo.logger.Info("session monitor stopped")
	mo.publish(domain.Event{Type: domain.EventMonitorStopped, Timestamp: mo.clock()})
}

// Running reports whether the schedules are active.
func (mo *Monitor) Running() bool {
	mo.mu.Lock()
	defer mo.mu.Unlock()
	return mo.running
}

func (mo *Monitor) runSchedule(ctx context.Context, interval time.Duration, tick func(context.Context)) {
	defer mo.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick(ctx)
		}
	}
}

func (mo *Monitor) scheduledCleanup(ctx context.Context) {
	if _, err := mo.TriggerCleanup(ctx); err != nil {
		// Already alerted inside TriggerCleanup; the schedule continues.
		mo.logger.Warn("scheduled cleanup failed", "err", err)
	}
}

func (mo *Monitor) scheduledMetrics(ctx context.Context) {
	if _, err := mo.refreshMetrics(ctx); err != nil {
		mo.logger.Warn("scheduled metrics refresh failed", "err", err)
		return
	}
	mo.CheckSessionAnomalies(ctx)
}

// TriggerCleanup synchronously runs one cleanup pass. On success the
// cleanup metrics advance and a cleanup:completed event is published; on
// failure a CLEANUP_FAILED alert is raised and the error is returned.
func (mo *Monitor) TriggerCleanup(ctx context.Context) (int, error) {
	cleaned, err := mo.mgr.CleanupExpiredSessions(ctx)
	if err != nil {
		mo.raise(domain.AlertCleanupFailed, domain.SeverityHigh,
			fmt.Sprintf("session cleanup failed: %v", err),
			map[string]any{"error": err.Error()},
		)
		return 0, err
	}

	now := mo.clock()
	mo.mu.Lock()
	mo.metrics.CleanupRuns++
	mo.metrics.LastCleanup = now
	mo.mu.Unlock()

	mo.publish(domain.Event{Type: domain.EventCleanupCompleted, Timestamp: now, CleanedCount: cleaned})
	return cleaned, nil
}

// GetMetrics returns a snapshot of the rolling metrics. The caller may
// mutate the copy freely.
func (mo *Monitor) GetMetrics() domain.Metrics {
	mo.mu.Lock()
	defer mo.mu.Unlock()
	return mo.metrics.Clone()
}

// DetailedStats pairs the monitor's rolling view with a fresh store scan.
type DetailedStats struct {
	Current domain.Metrics       `json:"current"`
	Store   domain.StatsSnapshot `json:"store"`
}

// GetDetailedStats refreshes the metrics from a fresh scan and returns
// both views. A scan failure raises a STORE_ERROR alert and is returned.
func (mo *Monitor) GetDetailedStats(ctx context.Context) (DetailedStats, error) {
	snap, err := mo.refreshMetrics(ctx)
	if err != nil {
		return DetailedStats{}, err
	}
	return DetailedStats{Current: mo.GetMetrics(), Store: snap}, nil
}

// refreshMetrics scans the store and folds the result into the rolling
// metrics. Scan failures raise STORE_ERROR.
func (mo *Monitor) refreshMetrics(ctx context.Context) (domain.StatsSnapshot, error) {
	snap, err := mo.mgr.SessionStats(ctx)
	if err != nil {
		mo.raise(domain.AlertStoreError, domain.SeverityHigh,
			fmt.Sprintf("session stats scan failed: %v", err),
			map[string]any{"error": err.Error()},
		)
		return domain.StatsSnapshot{}, err
	}

	now := mo.clock()

	mo.mu.Lock()
	mo.metrics.TotalSessions = snap.TotalSessions
	mo.metrics.ActiveSessions = snap.ActiveSessions
	mo.metrics.ExpiredSessions = snap.ExpiredSessions
	if snap.TotalSessions > mo.metrics.PeakSessions {
		mo.metrics.PeakSessions = snap.TotalSessions
	}
	if uptime := now.Sub(mo.startedAt); !mo.startedAt.IsZero() && uptime > time.Minute {
		mo.metrics.SessionsPerHour = float64(snap.TotalSessions) / uptime.Hours()
	}
	snapshot := mo.metrics.Clone()
	peak := mo.metrics.PeakSessions
	mo.mu.Unlock()

	if mo.collectors != nil {
		mo.collectors.RecordStats(snap.ActiveSessions, snap.ExpiredSessions, peak)
	}
	mo.publish(domain.Event{Type: domain.EventMetricsUpdated, Timestamp: now, Metrics: &snapshot})
	return snap, nil
}

// CheckSessionAnomalies evaluates the alert rules against a fresh scan and
// returns the alerts actually emitted (cooldown-suppressed ones are not
// returned). Best-effort: a failing scan returns an empty slice, never an
// error.
func (mo *Monitor) CheckSessionAnomalies(ctx context.Context) []domain.Alert {
	snap, err := mo.mgr.SessionStats(ctx)
	if err != nil {
		mo.logger.Warn("anomaly check skipped, stats scan failed", "err", err)
		return nil
	}

	var raised []domain.Alert
	appendIf := func(alert domain.Alert, ok bool) {
		if ok {
			raised = append(raised, alert)
		}
	}

	if mo.sessionThreshold > 0 && snap.TotalSessions > mo.sessionThreshold {
		sev := domain.SeverityHigh
		if float64(snap.TotalSessions) > 1.5*float64(mo.sessionThreshold) {
			sev = domain.SeverityCritical
		}
		appendIf(mo.raise(domain.AlertHighSessionCount, sev,
			fmt.Sprintf("session count %d exceeds threshold %d", snap.TotalSessions, mo.sessionThreshold),
			map[string]any{"total": snap.TotalSessions, "threshold": mo.sessionThreshold},
		))
	}

	if snap.TotalSessions > 0 {
		expiredPct := 100 * float64(snap.ExpiredSessions) / float64(snap.TotalSessions)
		if expiredPct > 50 {
			sev := domain.SeverityMedium
			if expiredPct > 80 {
				sev = domain.SeverityHigh
			}
			appendIf(mo.raise(domain.AlertMemoryWarning, sev,
				fmt.Sprintf("%.0f%% of sessions are expired awaiting cleanup", expiredPct),
				map[string]any{"expired": snap.ExpiredSessions, "total": snap.TotalSessions},
			))
		}
	}

	if mo.memoryBudget > 0 && snap.PayloadBytes > mo.memoryBudget {
		appendIf(mo.raise(domain.AlertMemoryWarning, domain.SeverityMedium,
			fmt.Sprintf("session payload footprint %d bytes exceeds budget %d", snap.PayloadBytes, mo.memoryBudget),
			map[string]any{"payload_bytes": snap.PayloadBytes, "budget": mo.memoryBudget},
		))
	}

	return raised
}

// raise routes one alert through cooldown, logging, metrics and the event
// channel. Returns the alert and whether it was actually emitted.
func (mo *Monitor) raise(at domain.AlertType, sev domain.Severity, msg string, meta map[string]any) (domain.Alert, bool) {
	now := mo.clock()
	alert := domain.NewAlert(at, sev, msg, now, meta)

	if !mo.alerter.admit(alert, now) {
		return alert, false
	}

	mo.logger.Warn("session alert",
		"alert_type", string(at),
		"severity", string(sev),
		"msg", msg,
	)
	if mo.collectors != nil {
		mo.collectors.RecordAlert(string(at), string(sev))
	}
	mo.publish(domain.Event{Type: domain.EventAlert, Timestamp: now, Alert: &alert})
	return alert, true
}

// publish delivers an event to the channel (non-blocking) and every
// registered sink.
func (mo *Monitor) publish(event domain.Event) {
	select {
	case mo.events <- event:
	default:
		mo.dropped.Add(1)
	}
	for _, sink := range mo.sinks {
		sink.Publish(event)
	}
}

// Report is human-readable operational guidance derived from metrics.
type Report struct {
	Summary         string         `json:"summary"`
	Metrics         domain.Metrics `json:"metrics"`
	Recommendations []string       `json:"recommendations"`
}

// GenerateReport is a pure function of the current metrics snapshot.
func (mo *Monitor) GenerateReport() Report {
	m := mo.GetMetrics()

	summary := fmt.Sprintf(
		"%d sessions tracked (%d active, %d expired), peak %d, %d cleanup runs",
		m.TotalSessions, m.ActiveSessions, m.ExpiredSessions, m.PeakSessions, m.CleanupRuns,
	)

	var recs []string
	if m.ExpiredSessions > m.ActiveSessions && m.TotalSessions > 0 {
		recs = append(recs, "more expired than active sessions: shorten the session max age or increase cleanup frequency")
	}
	if mo.sessionThreshold > 0 && float64(m.PeakSessions) > 0.8*float64(mo.sessionThreshold) {
		recs = append(recs, "peak concurrency is near the alert threshold: investigate abuse or scale the session store")
	}
	if m.CleanupRuns == 0 {
		recs = append(recs, "no cleanup has run yet: start the monitor or trigger a manual cleanup")
	}
	if len(recs) == 0 {
		recs = append(recs, "session store is healthy; no action needed")
	}

	return Report{Summary: summary, Metrics: m, Recommendations: recs}
}
