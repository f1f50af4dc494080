package domain

import "time"

// StatsSnapshot is the raw result of one stats scan over the keyspace.
// Total = Active + Expired by construction; unparseable records count as
// expired.
type StatsSnapshot struct {
	TotalSessions   int `json:"totalSessions"`
	ActiveSessions  int `json:"activeSessions"`
	ExpiredSessions int `json:"expiredSessions"`

	// PayloadBytes is the summed size of the scanned record bodies.
	// Best-effort; used only for memory-pressure heuristics.
	PayloadBytes int64 `json:"payloadBytes,omitempty"`
}

// Metrics is the monitor's rolling view. It holds no authoritative state;
// the store is the single source of truth for session existence.
type Metrics struct {
	TotalSessions   int       `json:"totalSessions"`
	ActiveSessions  int       `json:"activeSessions"`
	ExpiredSessions int       `json:"expiredSessions"`
	PeakSessions    int       `json:"peakSessions"`
	CleanupRuns     int64     `json:"cleanupRuns"`
	LastCleanup     time.Time `json:"lastCleanup"`
	SessionsPerHour float64   `json:"sessionsPerHour"`
}

// Clone returns a copy the caller may mutate freely.
func (m Metrics) Clone() Metrics {
	return m
}
