package ports

import (
	"github.com/flowforge-io/flowforge/internal/domain"
)

// EventSink receives every lifecycle event the engine emits. Delivery to
// a UI or external bus is the sink's concern; Publish must not block the
// scheduler.
type EventSink interface {
	Publish(event domain.Event)
}

// EventSource is the subscription side exposed to observers.
type EventSource interface {
	Subscribe() (<-chan domain.Event, func())
}

type nopSink struct{}

func (nopSink) Publish(domain.Event) {}

// NopSink discards every event.
func NopSink() EventSink { return nopSink{} }
