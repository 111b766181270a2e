// internal/event/bus.go
package event

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"aac-io/internal/model"
)

// Handler observes connection events. Handlers run on the publishing
// goroutine and must not block.
type Handler func(model.ConnectionEvent)

// Bus distributes connection events to registered observers.
//
// Delivery is synchronous and in registration order. Bus is not safe for
// concurrent use; it lives inside a single connection.
type Bus struct {
	handlers []Handler
	channels []chan model.ConnectionEvent
	logger   *zap.Logger
	now      func() time.Time
}

// NewBus creates a new event bus
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		logger: logger,
		now:    time.Now,
	}
}

// Subscribe registers a handler for all events
func (b *Bus) Subscribe(h Handler) {
	if h != nil {
		b.handlers = append(b.handlers, h)
	}
}

// Channel registers a buffered channel subscriber. Events that do not fit
// into the buffer are dropped.
func (b *Bus) Channel(size int) <-chan model.ConnectionEvent {
	if size < 1 {
		size = 1
	}
	ch := make(chan model.ConnectionEvent, size)
	b.channels = append(b.channels, ch)
	return ch
}

// Publish stamps the event and delivers it to every subscriber
func (b *Bus) Publish(evt model.ConnectionEvent) model.ConnectionEvent {
	if evt.ID == uuid.Nil {
		evt.ID = uuid.New()
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = b.now()
	}

	for _, h := range b.handlers {
		h(evt)
	}

	for _, ch := range b.channels {
		select {
		case ch <- evt:
		default:
			b.logger.Warn("Event subscriber full, dropping event",
				zap.String("event_type", string(evt.Type)),
				zap.String("event_id", evt.ID.String()),
			)
		}
	}

	return evt
}

// Len returns the number of registered subscribers
func (b *Bus) Len() int {
	return len(b.handlers) + len(b.channels)
}
