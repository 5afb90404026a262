package events

import (
	"log/slog"
	"sync"

	"github.com/flowforge-io/flowforge/internal/domain"
)

const defaultBuffer = 256

// Manager fans engine events out to subscribers. Publish never blocks the
// scheduler: a subscriber that falls behind its buffer loses events, and
// the drop is logged.
type Manager struct {
	logger *slog.Logger

	mu     sync.RWMutex
	subs   map[int]chan domain.Event
	nextID int
	closed bool
}

func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		logger: logger.With("component", "events"),
		subs:   make(map[int]chan domain.Event),
	}
}

func (m *Manager) Publish(event domain.Event) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return
	}
	for id, ch := range m.subs {
		select {
		case ch <- event:
		default:
			m.logger.Warn("subscriber buffer full, event dropped",
				"subscriber", id,
				"event", event.EventName())
		}
	}
}

func (m *Manager) Subscribe() (<-chan domain.Event, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	ch := make(chan domain.Event, defaultBuffer)
	m.subs[id] = ch

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if sub, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true
	for id, ch := range m.subs {
		delete(m.subs, id)
		close(ch)
	}
}
