package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Event types emitted by the booking flow.
const (
	TypeBookingCreated  = "booking.created"
	TypeBookingHandoff  = "booking.handoff"
	TypeBookingDegraded = "booking.degraded"
)

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// New builds an event with a JSON payload.
func New(eventType string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: eventType, Payload: data, CreatedAt: time.Now()}, nil
}

// EventHandler reacts to an event.
type EventHandler func(event Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	wg          sync.WaitGroup
	logger      *zerolog.Logger
}

// NewEventBus constructs an empty bus. A nil logger disables handler error logs.
func NewEventBus(logger *zerolog.Logger) *EventBus {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &EventBus{subscribers: make(map[string][]EventHandler), logger: logger}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type synchronously.
func (b *EventBus) Publish(event Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		if err := handler(event); err != nil {
			b.logger.Warn().Err(err).Str("event", event.Type).Msg("event handler failed")
		}
	}
}

// PublishAsync delivers the event on a separate goroutine. Use Wait to drain.
func (b *EventBus) PublishAsync(event Event) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.Publish(event)
	}()
}

// Emit marshals payload and publishes it asynchronously.
func (b *EventBus) Emit(eventType string, payload any) {
	ev, err := New(eventType, payload)
	if err != nil {
		b.logger.Error().Err(err).Str("event", eventType).Msg("encode event")
		return
	}
	b.PublishAsync(ev)
}

// Wait blocks until all asynchronous deliveries finished.
func (b *EventBus) Wait() {
	b.wg.Wait()
}
