package ports

import "github.com/aretw0/sessiond/pkg/domain"

// EventSink receives monitor lifecycle events and alerts. Implementations
// must return quickly; a slow sink delays the monitor's schedule but never
// blocks request traffic.
type EventSink interface {
	Publish(event domain.Event)
}

// EventSinkFunc adapts a plain function to an EventSink.
type EventSinkFunc func(event domain.Event)

// Publish implements EventSink.
func (f EventSinkFunc) Publish(event domain.Event) { f(event) }
