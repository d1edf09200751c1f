package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"batard/internal/export"
	"batard/internal/models"
)

// handleListBookings returns bookings newest first.
// GET /api/booking?archived=true|false
func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	var archived *bool
	if v := r.URL.Query().Get("archived"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "archived must be true or false")
			return
		}
		archived = &b
	}

	bookings, err := s.bookings.List(r.Context(), archived)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if bookings == nil {
		bookings = []models.Booking{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

// handleBookingByNumber looks a booking up by its public number.
// GET /api/booking/number/{number}
func (s *HTTPServer) handleBookingByNumber(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use GET")
		return
	}

	number := strings.TrimPrefix(r.URL.Path, "/api/booking/number/")
	if number == "" || strings.Contains(number, "/") {
		writeError(w, http.StatusNotFound, "booking not found")
		return
	}

	b, err := s.bookings.GetByNumber(r.Context(), number)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// BookingUpdateRequest mutates status and/or the archive flag.
type BookingUpdateRequest struct {
	Status   *models.Status `json:"status,omitempty"`
	Archived *bool          `json:"archived,omitempty"`
}

// handleBookingResource dispatches /api/booking/{id} by method.
func (s *HTTPServer) handleBookingResource(w http.ResponseWriter, r *http.Request) {
	idStr := strings.TrimPrefix(r.URL.Path, "/api/booking/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusNotFound, "booking not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		b, err := s.bookings.Get(r.Context(), id)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, b)

	case http.MethodPut:
		var req BookingUpdateRequest
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.Status == nil && req.Archived == nil {
			writeError(w, http.StatusBadRequest, "nothing to update")
			return
		}
		if req.Status != nil && !req.Status.Valid() {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", *req.Status))
			return
		}

		var b *models.Booking
		if req.Status != nil {
			b, err = s.bookings.UpdateStatus(r.Context(), id, *req.Status)
			if err != nil {
				s.writeServiceError(w, err)
				return
			}
		}
		// an explicit archived flag wins over the status coupling
		if req.Archived != nil {
			b, err = s.bookings.SetArchived(r.Context(), id, *req.Archived)
			if err != nil {
				s.writeServiceError(w, err)
				return
			}
		}
		writeJSON(w, http.StatusOK, b)

	case http.MethodDelete:
		if err := s.bookings.Delete(r.Context(), id); err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleExport streams an xlsx of bookings whose pickups fall in [from, to].
// GET /api/booking/export?from=YYYY-MM-DD&to=YYYY-MM-DD
func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use GET")
		return
	}

	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if (from != "" && !reqDateRe.MatchString(from)) || (to != "" && !reqDateRe.MatchString(to)) {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}

	bookings, err := s.bookings.List(r.Context(), nil)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	filtered := bookings[:0:0]
	for _, b := range bookings {
		if bookingInRange(&b, from, to) {
			filtered = append(filtered, b)
		}
	}

	filename := fmt.Sprintf("bookings_%s.xlsx", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	if err := export.WriteBookings(w, filtered); err != nil {
		s.logger.Error().Err(err).Msg("export failed")
	}
}

// bookingInRange checks if any pickup date falls inside the bounds; empty
// bounds are open. Dates compare lexicographically in YYYY-MM-DD form.
func bookingInRange(b *models.Booking, from, to string) bool {
	for _, p := range b.Pickups {
		if (from == "" || p.Date >= from) && (to == "" || p.Date <= to) {
			return true
		}
	}
	return len(b.Pickups) == 0 && from == "" && to == ""
}
