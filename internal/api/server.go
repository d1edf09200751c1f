// Package api exposes the bakery pickup engine over HTTP/JSON.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"batard/internal/booking"
	"batard/internal/capacity"
	"batard/internal/checkout"
	"batard/internal/models"
)

// CatalogStore is the catalog slice the handlers use: reads for the public
// checkout flow, writes for the admin seeding/maintenance surface.
type CatalogStore interface {
	GetCategories(ctx context.Context) ([]models.Category, error)
	GetCategoryByID(ctx context.Context, id int64) (*models.Category, error)
	CreateCategory(ctx context.Context, c *models.Category) error
	UpdateCategory(ctx context.Context, c *models.Category) error
	GetProducts(ctx context.Context, activeOnly bool) ([]models.Product, error)
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	CreateProduct(ctx context.Context, p *models.Product) error
	UpdateProduct(ctx context.Context, p *models.Product) error
}

// HTTPServer serves the public checkout endpoints and the admin surface.
type HTTPServer struct {
	bookings *booking.Service
	capacity *capacity.Aggregator
	catalog  CatalogStore
	planners *checkout.PlannerStore
	logger   *zerolog.Logger
	apiKey   string
	limiter  *rate.Limiter
	now      func() time.Time

	srv *http.Server
}

// NewHTTPServer wires the handlers. apiKey guards the admin routes; an empty
// key disables them entirely rather than leaving them open.
func NewHTTPServer(
	addr string,
	bookings *booking.Service,
	cap *capacity.Aggregator,
	catalog CatalogStore,
	planners *checkout.PlannerStore,
	logger *zerolog.Logger,
	apiKey string,
	rps float64,
	burst int,
) *HTTPServer {
	s := &HTTPServer{
		bookings: bookings,
		capacity: cap,
		catalog:  catalog,
		planners: planners,
		logger:   logger,
		apiKey:   apiKey,
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
		now:      time.Now,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/catalog/categories", s.instrument("categories", s.handleCategoryCollection))
	mux.HandleFunc("/api/catalog/categories/", s.instrument("category_item", s.handleCategoryResource))
	mux.HandleFunc("/api/catalog/products", s.instrument("products", s.handleProductCollection))
	mux.HandleFunc("/api/catalog/products/", s.instrument("product_item", s.handleProductResource))
	mux.HandleFunc("/api/slots", s.instrument("slots", s.handleSlots))
	mux.HandleFunc("/api/pickup-groups", s.instrument("pickup_groups", s.handlePickupGroups))
	mux.HandleFunc("/api/booking/check-capacity", s.instrument("check_capacity", s.handleCheckCapacity))
	mux.HandleFunc("/api/booking/export", s.instrument("export", s.requireAdmin(s.handleExport)))
	mux.HandleFunc("/api/booking/number/", s.instrument("booking_by_number", s.requireAdmin(s.handleBookingByNumber)))
	mux.HandleFunc("/api/booking", s.instrument("booking", s.handleBookingCollection))
	mux.HandleFunc("/api/booking/", s.instrument("booking_item", s.requireAdmin(s.handleBookingResource)))

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      requestID(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start blocks serving requests until the listener fails or Shutdown runs.
func (s *HTTPServer) Start() error {
	s.logger.Info().Str("addr", s.srv.Addr).Msg("api server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Handler exposes the routed handler for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.srv.Handler
}

// handleBookingCollection splits /api/booking between the public create and
// the admin listing.
func (s *HTTPServer) handleBookingCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.rateLimit(s.handleCreateBooking)(w, r)
	case http.MethodGet:
		s.requireAdmin(s.handleListBookings)(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps the booking error taxonomy onto HTTP statuses.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, err error) {
	var (
		vErr   *booking.ValidationError
		refErr *booking.ReferenceError
		capErr *booking.CapacityError
		trErr  *booking.InvalidTransitionError
	)
	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, vErr.Error())
	case errors.As(err, &refErr):
		// deliberately opaque: do not leak which ids exist
		writeError(w, http.StatusBadRequest, fmt.Sprintf("one or more %s references do not exist", refErr.Kind))
	case errors.As(err, &capErr):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":      "capacity exceeded",
			"shortfalls": capErr.Shortfalls,
		})
	case errors.As(err, &trErr):
		writeError(w, http.StatusConflict, trErr.Error())
	case errors.Is(err, booking.ErrNotFound):
		writeError(w, http.StatusNotFound, "booking not found")
	default:
		s.logger.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
