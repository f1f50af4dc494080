package monitor

import (
	"sync"
	"time"

	"github.com/aretw0/sessiond/pkg/domain"
)

// alerter rate-limits alert emission: one alert per (type, severity) key
// per cooldown window, no matter how often the condition re-triggers.
type alerter struct {
	cooldown time.Duration

	mu   sync.Mutex
	last map[domain.AlertKey]time.Time
}

func newAlerter(cooldown time.Duration) *alerter {
	return &alerter{
		cooldown: cooldown,
		last:     make(map[domain.AlertKey]time.Time),
	}
}

// admit reports whether the alert may be emitted now, and if so records
// the emission time.
func (a *alerter) admit(alert domain.Alert, now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := alert.Key()
	if last, ok := a.last[key]; ok && now.Sub(last) < a.cooldown {
		return false
	}
	a.last[key] = now
	return true
}
