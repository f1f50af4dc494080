package domain

import "time"

// EventType defines the category of a monitor lifecycle event.
type EventType string

const (
	EventMonitorStarted   EventType = "monitor:started"
	EventMonitorStopped   EventType = "monitor:stopped"
	EventCleanupCompleted EventType = "cleanup:completed"
	EventMetricsUpdated   EventType = "metrics:updated"
	EventAlert            EventType = "alert"
)

// Event is published by the monitor on its event channel. Exactly one of
// the optional fields is set, depending on Type.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	CleanedCount int      `json:"cleanedCount,omitempty"` // cleanup:completed
	Metrics      *Metrics `json:"metrics,omitempty"`      // metrics:updated
	Alert        *Alert   `json:"alert,omitempty"`        // alert
}
