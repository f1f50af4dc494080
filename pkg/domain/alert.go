package domain

import (
	"time"

	"github.com/google/uuid"
)

// AlertType categorizes a monitor alert.
type AlertType string

const (
	AlertHighSessionCount AlertType = "HIGH_SESSION_COUNT"
	AlertCleanupFailed    AlertType = "CLEANUP_FAILED"
	AlertStoreError       AlertType = "STORE_ERROR"
	AlertMemoryWarning    AlertType = "MEMORY_WARNING"
)

// Severity ranks how urgent an alert is.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Alert is a tagged monitor event. Alerts are notifications only; the
// monitor never decides remediation.
type Alert struct {
	ID        string         `json:"id"`
	Type      AlertType      `json:"type"`
	Severity  Severity       `json:"severity"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewAlert builds an alert stamped with a fresh id and the given instant.
func NewAlert(at AlertType, sev Severity, msg string, now time.Time, meta map[string]any) Alert {
	return Alert{
		ID:        uuid.NewString(),
		Type:      at,
		Severity:  sev,
		Message:   msg,
		Timestamp: now,
		Metadata:  meta,
	}
}

// Key identifies the cooldown bucket for this alert.
func (a Alert) Key() AlertKey {
	return AlertKey{Type: a.Type, Severity: a.Severity}
}

// AlertKey is the (type, severity) pair used for cooldown suppression.
type AlertKey struct {
	Type     AlertType
	Severity Severity
}
