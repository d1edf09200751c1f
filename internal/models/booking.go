package models

import "time"

// Status is the booking lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// statusTransitions defines the allowed lifecycle moves.
var statusTransitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// CanTransitionTo checks if the move from s to next is allowed.
// Re-entering pending/confirmed is the administrative "reopen" path and is
// always allowed from a terminal state.
func (s Status) CanTransitionTo(next Status) bool {
	if !next.Valid() {
		return false
	}
	if s == next {
		return true
	}
	if next == StatusPending || next == StatusConfirmed {
		// reopen from cancelled/completed
		if s == StatusCancelled || s == StatusCompleted {
			return true
		}
	}
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Archives reports whether entering this status auto-archives the booking.
func (s Status) Archives() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// Customer is a contact snapshot embedded in a booking, not a reference.
type Customer struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
}

// Pickup is one scheduled collection within a booking.
type Pickup struct {
	CategoryID   int64  `json:"category_id"`
	CategoryName string `json:"category_name"`
	Date         string `json:"date"`      // "YYYY-MM-DD"
	TimeSlot     string `json:"time_slot"` // "HH:mm"
	OrderNotes   string `json:"order_notes,omitempty"`
}

// BookingItem is a product snapshot taken at creation time. PickupIndex
// references a position in the booking's pickups slice.
type BookingItem struct {
	ProductID     int64   `json:"product_id"`
	Name          string  `json:"name"`
	Photo         string  `json:"photo,omitempty"`
	Quantity      int64   `json:"quantity"`
	Price         float64 `json:"price"`
	SubtotalPrice float64 `json:"subtotal_price"`
	PickupIndex   int     `json:"pickup_index"`
}

// Booking is the persisted order record. Customer, pickups, items and the
// total are immutable after creation; only status/archived mutate.
type Booking struct {
	ID            int64         `json:"id"`
	BookingNumber string        `json:"booking_number"`
	Customer      Customer      `json:"customer"`
	Pickups       []Pickup      `json:"pickups"`
	Items         []BookingItem `json:"items"`
	TotalPrice    float64       `json:"total_price"`
	Status        Status        `json:"status"`
	Archived      bool          `json:"archived"`
	ArchivedAt    *time.Time    `json:"archived_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// HasPickupOn reports whether any pickup of the booking falls on date.
func (b *Booking) HasPickupOn(date string) bool {
	for _, p := range b.Pickups {
		if p.Date == date {
			return true
		}
	}
	return false
}

// QuantityOn sums the quantities of items whose pickup falls on date.
func (b *Booking) QuantityOn(productID int64, date string) int64 {
	var total int64
	for _, it := range b.Items {
		if it.ProductID != productID {
			continue
		}
		if it.PickupIndex < 0 || it.PickupIndex >= len(b.Pickups) {
			continue
		}
		if b.Pickups[it.PickupIndex].Date == date {
			total += it.Quantity
		}
	}
	return total
}
