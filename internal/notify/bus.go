// Package notify raises in-app dose reminders and fans them out to the
// connected clients of one user.
package notify

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Kind names a notification event.
type Kind string

const (
	// KindDue asks the user to log a dose.
	KindDue Kind = "dose_due"
	// KindCleared withdraws a prompt that was answered elsewhere.
	KindCleared Kind = "dose_cleared"
)

// Event is one message on the bus.
type Event struct {
	Kind           Kind      `json:"type"`
	MedicationID   string    `json:"medication_id"`
	MedicationName string    `json:"medication_name"`
	Dosage         string    `json:"dosage"`
	ScheduledTime  time.Time `json:"scheduled_time"`
}

// Bus delivers events to every subscriber without blocking the publisher.
// A subscriber that falls behind loses events rather than stalling others.
type Bus struct {
	logger *zap.Logger

	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{logger: logger, subs: make(map[int]chan Event)}
}

// Subscribe registers a listener with the given buffer. The returned cancel
// function unregisters it and closes the channel; it is safe to call twice.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
}

// Publish delivers e to every subscriber with room and returns how many
// received it.
func (b *Bus) Publish(e Event) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return 0
	}
	delivered := 0
	for _, ch := range b.subs {
		select {
		case ch <- e:
			delivered++
		default:
			b.logger.Warn("Notification subscriber full, dropping event",
				zap.String("kind", string(e.Kind)),
				zap.String("medication_id", e.MedicationID))
		}
	}
	return delivered
}

// Subscribers returns the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close ends every subscription. Later publishes are dropped.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
