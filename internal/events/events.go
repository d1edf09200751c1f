// Package events is the in-process pub/sub used to decouple booking
// side effects (metrics, cache invalidation) from the write path.
package events

import (
	"sync"
	"time"
)

// Event types published by the booking service.
const (
	TypeBookingCreated       = "booking.created"
	TypeBookingStatusChanged = "booking.status_changed"
	TypeBookingDeleted       = "booking.deleted"
)

// Event is a lightweight domain event.
type Event struct {
	Type      string
	Payload   any
	CreatedAt time.Time
}

// BookingCreated is the payload of TypeBookingCreated.
type BookingCreated struct {
	BookingID     int64
	BookingNumber string
	TotalPrice    float64
	PickupDates   []string
}

// BookingStatusChanged is the payload of TypeBookingStatusChanged.
type BookingStatusChanged struct {
	BookingID int64
	From      string
	To        string
	Archived  bool
}

// Handler reacts to an event.
type Handler func(event Event)

// Bus is an in-process pub/sub dispatcher. Handlers run synchronously on
// the publisher's goroutine; subscribers decide their own concurrency.
type Bus struct {
	subscribers map[string][]Handler
	mu          sync.RWMutex
}

func NewBus() *Bus {
	return &Bus{subscribers: make(map[string][]Handler)}
}

// Subscribe registers a handler for a given event type.
func (b *Bus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		handler(event)
	}
}
