// Package booking owns booking creation and lifecycle.
package booking

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"batard/internal/events"
	"batard/internal/metrics"
	"batard/internal/models"
)

// Store is the persistence surface the service needs.
type Store interface {
	FindCategoriesByIDs(ctx context.Context, ids []int64) (map[int64]models.Category, error)
	FindProductsByIDs(ctx context.Context, ids []int64) (map[int64]models.Product, error)
	CreateBooking(ctx context.Context, b *models.Booking) error
	GetBookingByID(ctx context.Context, id int64) (*models.Booking, error)
	GetBookingByNumber(ctx context.Context, number string) (*models.Booking, error)
	ListBookings(ctx context.Context, archived *bool) ([]models.Booking, error)
	UpdateBookingStatus(ctx context.Context, id int64, status models.Status, archived bool, archivedAt *time.Time) error
	SetBookingArchived(ctx context.Context, id int64, archived bool, archivedAt *time.Time) error
	DeleteBooking(ctx context.Context, id int64) error
}

// CreateRequest is a booking submission.
type CreateRequest struct {
	Customer models.Customer `json:"customer"`
	Pickups  []PickupInput   `json:"pickups"`
	Items    []ItemInput     `json:"items"`
}

// PickupInput references a category by id; the name is snapshotted server-side.
type PickupInput struct {
	CategoryID int64  `json:"category_id"`
	Date       string `json:"date"`
	TimeSlot   string `json:"time_slot"`
	OrderNotes string `json:"order_notes"`
}

// ItemInput references a product by id; price and name are snapshotted.
type ItemInput struct {
	ProductID   int64 `json:"product_id"`
	Quantity    int64 `json:"quantity"`
	PickupIndex int   `json:"pickup_index"`
}

// Service assembles and persists bookings.
type Service struct {
	store   Store
	bus     *events.Bus
	logger  *zerolog.Logger
	retries int
	now     func() time.Time
}

func NewService(store Store, bus *events.Bus, logger *zerolog.Logger, numberRetries int) *Service {
	if numberRetries <= 0 {
		numberRetries = 5
	}
	return &Service{
		store:   store,
		bus:     bus,
		logger:  logger,
		retries: numberRetries,
		now:     time.Now,
	}
}

var (
	dateRe  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timeRe  = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// Create validates, snapshots and persists a booking. Capacity is enforced
// atomically by the store inside the creation transaction; this method only
// retries booking-number collisions.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Booking, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	categories, err := s.resolveCategories(ctx, req.Pickups)
	if err != nil {
		return nil, err
	}
	products, err := s.resolveProducts(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	b := assemble(req, categories, products)

	var lastErr error
	for attempt := 0; attempt < s.retries; attempt++ {
		b.BookingNumber = NewBookingNumber(s.now())
		err := s.store.CreateBooking(ctx, b)
		if err == nil {
			s.logger.Info().
				Str("booking_number", b.BookingNumber).
				Int64("booking_id", b.ID).
				Float64("total", b.TotalPrice).
				Msg("booking created")
			metrics.IncBookingCreated()
			s.publishCreated(b)
			return b, nil
		}
		if errors.Is(err, ErrDuplicateBookingNumber) {
			metrics.IncBookingNumberRetry()
			s.logger.Warn().Str("booking_number", b.BookingNumber).Msg("booking number collision, retrying")
			lastErr = err
			continue
		}
		var capErr *CapacityError
		if errors.As(err, &capErr) {
			metrics.IncCapacityRejected()
		}
		return nil, err
	}
	return nil, fmt.Errorf("booking number generation exhausted after %d attempts: %w", s.retries, lastErr)
}

// Get returns a booking by id.
func (s *Service) Get(ctx context.Context, id int64) (*models.Booking, error) {
	return s.store.GetBookingByID(ctx, id)
}

// GetByNumber returns a booking by its public number.
func (s *Service) GetByNumber(ctx context.Context, number string) (*models.Booking, error) {
	return s.store.GetBookingByNumber(ctx, number)
}

// List returns bookings newest first, optionally filtered by archive state.
func (s *Service) List(ctx context.Context, archived *bool) ([]models.Booking, error) {
	return s.store.ListBookings(ctx, archived)
}

// UpdateStatus moves a booking through its lifecycle. Entering completed or
// cancelled archives the booking; re-entering pending or confirmed reopens it
// (archived cleared, archivedAt nulled).
func (s *Service) UpdateStatus(ctx context.Context, id int64, next models.Status) (*models.Booking, error) {
	b, err := s.store.GetBookingByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !b.Status.CanTransitionTo(next) {
		return nil, &InvalidTransitionError{From: string(b.Status), To: string(next)}
	}
	if next == b.Status {
		// repeating the current status must not re-stamp archivedAt
		return b, nil
	}

	archived := b.Archived
	archivedAt := b.ArchivedAt
	switch {
	case next.Archives():
		archived = true
		now := s.now().UTC()
		archivedAt = &now
	case next == models.StatusPending || next == models.StatusConfirmed:
		archived = false
		archivedAt = nil
	}

	if err := s.store.UpdateBookingStatus(ctx, id, next, archived, archivedAt); err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("booking_id", id).
		Str("from", string(b.Status)).
		Str("to", string(next)).
		Bool("archived", archived).
		Msg("booking status changed")
	metrics.IncBookingStatusChanged(string(next))
	if s.bus != nil {
		s.bus.Publish(events.Event{
			Type: events.TypeBookingStatusChanged,
			Payload: events.BookingStatusChanged{
				BookingID: id,
				From:      string(b.Status),
				To:        string(next),
				Archived:  archived,
			},
		})
	}

	return s.store.GetBookingByID(ctx, id)
}

// SetArchived toggles the archive flag independently of status.
func (s *Service) SetArchived(ctx context.Context, id int64, archived bool) (*models.Booking, error) {
	var archivedAt *time.Time
	if archived {
		now := s.now().UTC()
		archivedAt = &now
	}
	if err := s.store.SetBookingArchived(ctx, id, archived, archivedAt); err != nil {
		return nil, err
	}
	return s.store.GetBookingByID(ctx, id)
}

// Delete removes a booking permanently.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteBooking(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Int64("booking_id", id).Msg("booking deleted")
	if s.bus != nil {
		s.bus.Publish(events.Event{Type: events.TypeBookingDeleted, Payload: id})
	}
	return nil
}

func (s *Service) publishCreated(b *models.Booking) {
	if s.bus == nil {
		return
	}
	dates := make([]string, 0, len(b.Pickups))
	for _, p := range b.Pickups {
		dates = append(dates, p.Date)
	}
	s.bus.Publish(events.Event{
		Type: events.TypeBookingCreated,
		Payload: events.BookingCreated{
			BookingID:     b.ID,
			BookingNumber: b.BookingNumber,
			TotalPrice:    b.TotalPrice,
			PickupDates:   dates,
		},
	})
}

func (s *Service) resolveCategories(ctx context.Context, pickups []PickupInput) (map[int64]models.Category, error) {
	ids := make([]int64, 0, len(pickups))
	seen := make(map[int64]bool)
	for _, p := range pickups {
		if !seen[p.CategoryID] {
			seen[p.CategoryID] = true
			ids = append(ids, p.CategoryID)
		}
	}

	categories, err := s.store.FindCategoriesByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve categories: %w", err)
	}
	var missing []int64
	for _, id := range ids {
		if _, ok := categories[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, &ReferenceError{Kind: "category", IDs: missing}
	}
	return categories, nil
}

func (s *Service) resolveProducts(ctx context.Context, items []ItemInput) (map[int64]models.Product, error) {
	ids := make([]int64, 0, len(items))
	seen := make(map[int64]bool)
	for _, it := range items {
		if !seen[it.ProductID] {
			seen[it.ProductID] = true
			ids = append(ids, it.ProductID)
		}
	}

	products, err := s.store.FindProductsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve products: %w", err)
	}
	var missing []int64
	for _, id := range ids {
		if _, ok := products[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, &ReferenceError{Kind: "product", IDs: missing}
	}
	return products, nil
}

// assemble snapshots catalog data into an immutable booking document.
func assemble(req CreateRequest, categories map[int64]models.Category, products map[int64]models.Product) *models.Booking {
	b := &models.Booking{
		Customer: req.Customer,
		Status:   models.StatusPending,
	}

	for _, p := range req.Pickups {
		b.Pickups = append(b.Pickups, models.Pickup{
			CategoryID:   p.CategoryID,
			CategoryName: categories[p.CategoryID].Name,
			Date:         p.Date,
			TimeSlot:     p.TimeSlot,
			OrderNotes:   strings.TrimSpace(p.OrderNotes),
		})
	}

	for _, it := range req.Items {
		product := products[it.ProductID]
		subtotal := product.Price * float64(it.Quantity)
		b.Items = append(b.Items, models.BookingItem{
			ProductID:     it.ProductID,
			Name:          product.Name,
			Photo:         product.Photo,
			Quantity:      it.Quantity,
			Price:         product.Price,
			SubtotalPrice: subtotal,
			PickupIndex:   it.PickupIndex,
		})
		b.TotalPrice += subtotal
	}

	return b
}

func validateRequest(req CreateRequest) error {
	if len(strings.TrimSpace(req.Customer.FirstName)) < 3 {
		return &ValidationError{Field: "customer.first_name", Reason: "must be at least 3 characters"}
	}
	if len(strings.TrimSpace(req.Customer.LastName)) < 3 {
		return &ValidationError{Field: "customer.last_name", Reason: "must be at least 3 characters"}
	}
	if len(strings.TrimSpace(req.Customer.Phone)) < 8 {
		return &ValidationError{Field: "customer.phone", Reason: "must be at least 8 characters"}
	}
	if !emailRe.MatchString(req.Customer.Email) {
		return &ValidationError{Field: "customer.email", Reason: "must be a valid email address"}
	}

	if len(req.Pickups) == 0 {
		return &ValidationError{Field: "pickups", Reason: "at least one pickup is required"}
	}
	for i, p := range req.Pickups {
		if !dateRe.MatchString(p.Date) {
			return &ValidationError{Field: fmt.Sprintf("pickups[%d].date", i), Reason: "must be YYYY-MM-DD"}
		}
		if _, err := time.Parse("2006-01-02", p.Date); err != nil {
			return &ValidationError{Field: fmt.Sprintf("pickups[%d].date", i), Reason: "not a calendar date"}
		}
		if !timeRe.MatchString(p.TimeSlot) {
			return &ValidationError{Field: fmt.Sprintf("pickups[%d].time_slot", i), Reason: "must be HH:mm"}
		}
	}

	if len(req.Items) == 0 {
		return &ValidationError{Field: "items", Reason: "at least one item is required"}
	}
	for i, it := range req.Items {
		if it.Quantity <= 0 {
			return &ValidationError{Field: fmt.Sprintf("items[%d].quantity", i), Reason: "must be positive"}
		}
		if it.PickupIndex < 0 || it.PickupIndex >= len(req.Pickups) {
			return &ValidationError{Field: fmt.Sprintf("items[%d].pickup_index", i), Reason: "does not reference a pickup"}
		}
	}
	return nil
}
