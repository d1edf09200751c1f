package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"batard/internal/checkout"
	"batard/internal/database"
	"batard/internal/models"
	"batard/internal/schedule"
)

func checkoutGroups(cart []models.CartLine, categories []models.Category, date string) []checkout.PickupGroup {
	groups := checkout.ComputePickupGroups(cart, categories, date)
	if groups == nil {
		groups = []checkout.PickupGroup{}
	}
	return groups
}

// SlotsRequest asks for the pickable time slots of one category on one date.
type SlotsRequest struct {
	CategoryID int64  `json:"category_id"`
	Date       string `json:"date"` // YYYY-MM-DD
}

// handleSlots returns the ordered slot list for a (category, date) pair.
// POST /api/slots
func (s *HTTPServer) handleSlots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var req SlotsRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	cat, err := s.catalog.GetCategoryByID(r.Context(), req.CategoryID)
	if errors.Is(err, database.ErrNoRecord) {
		writeError(w, http.StatusBadRequest, "one or more category references do not exist")
		return
	}
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	slots, err := schedule.SlotsOn(cat, req.Date, s.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}
	if slots == nil {
		slots = []string{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"date":  req.Date,
		"slots": slots,
	})
}

// PickupGroupsRequest carries the client cart and the shared pickup date.
// With an X-Session-Id header the grouping is kept server-side so later slot
// and note selections survive between calls.
type PickupGroupsRequest struct {
	Cart []models.CartLine `json:"cart"`
	Date string            `json:"date,omitempty"`
}

// handlePickupGroups partitions the cart by schedule signature.
// POST /api/pickup-groups
func (s *HTTPServer) handlePickupGroups(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var req PickupGroupsRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	categories, err := s.catalog.GetCategories(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	if sessionID := r.Header.Get("X-Session-Id"); sessionID != "" {
		planner := s.planners.GetOrCreate(sessionID)
		if req.Date != "" {
			planner.SetDate(req.Date)
		}
		planner.SetCategories(categories)
		planner.SetCart(req.Cart)
		writeJSON(w, http.StatusOK, map[string]any{
			"date":   planner.Date(),
			"groups": planner.Groups(),
		})
		return
	}

	date := req.Date
	if date == "" {
		date = s.now().Format(schedule.DateLayout)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":   date,
		"groups": checkoutGroups(req.Cart, categories, date),
	})
}
