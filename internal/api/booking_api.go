package api

import (
	"encoding/json"
	"net/http"
	"regexp"

	"batard/internal/booking"
	"batard/internal/capacity"
)

// CheckCapacityRequest asks how much of each product still fits on a date.
type CheckCapacityRequest struct {
	Date       string  `json:"date"`
	ProductIDs []int64 `json:"product_ids"`
}

var reqDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// handleCheckCapacity is the advisory pre-check before submitting a booking.
// The numbers may be stale by the cache TTL; the create endpoint re-checks
// authoritatively.
// POST /api/booking/check-capacity
func (s *HTTPServer) handleCheckCapacity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var req CheckCapacityRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !reqDateRe.MatchString(req.Date) {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}
	if len(req.ProductIDs) == 0 {
		writeError(w, http.StatusBadRequest, "product_ids is required")
		return
	}

	availability, err := s.capacity.Check(r.Context(), req.Date, req.ProductIDs)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	byProduct := make(map[int64]capacity.Availability, len(availability))
	for id, av := range availability {
		byProduct[id] = av
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":       req.Date,
		"by_product": byProduct,
	})
}

// handleCreateBooking is the authoritative create.
// POST /api/booking
func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var req booking.CreateRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	b, err := s.bookings.Create(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	// the advisory cache is now stale for every pickup date of this booking
	dates := make([]string, 0, len(b.Pickups))
	for _, p := range b.Pickups {
		dates = append(dates, p.Date)
	}
	s.capacity.Invalidate(r.Context(), dates...)

	if sessionID := r.Header.Get("X-Session-Id"); sessionID != "" {
		s.planners.Delete(sessionID)
	}

	writeJSON(w, http.StatusCreated, b)
}
