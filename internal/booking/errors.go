package booking

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a booking lookup matches nothing.
	ErrNotFound = errors.New("booking not found")

	// ErrDuplicateBookingNumber is returned when a generated booking number
	// collides with an existing one. Creation retries on this error.
	ErrDuplicateBookingNumber = errors.New("booking number already exists")
)

// ValidationError reports a request payload that fails structural checks.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ReferenceError reports IDs in the payload that do not resolve to live
// catalog records.
type ReferenceError struct {
	Kind string // "product" or "category"
	IDs  []int64
}

func (e *ReferenceError) Error() string {
	parts := make([]string, len(e.IDs))
	for i, id := range e.IDs {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return fmt.Sprintf("unknown %s id(s): %s", e.Kind, strings.Join(parts, ", "))
}

// CapacityShortfall names one product whose requested quantity does not fit
// on one date.
type CapacityShortfall struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Date      string `json:"date"`
	Requested int64  `json:"requested"`
	Remaining int64  `json:"remaining"`
}

// CapacityError is returned when a booking would push one or more products
// past their effective daily cap. It carries per-product detail so the
// client can shrink the exact lines that do not fit.
type CapacityError struct {
	Shortfalls []CapacityShortfall
}

func (e *CapacityError) Error() string {
	parts := make([]string, len(e.Shortfalls))
	for i, s := range e.Shortfalls {
		parts[i] = fmt.Sprintf("%s: requested %d, remaining %d on %s", s.Name, s.Requested, s.Remaining, s.Date)
	}
	return "capacity exceeded: " + strings.Join(parts, "; ")
}

// InvalidTransitionError reports a status move the lifecycle does not allow.
type InvalidTransitionError struct {
	From, To string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition booking from %s to %s", e.From, e.To)
}
