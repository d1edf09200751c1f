package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"batard/internal/booking"
	"batard/internal/capacity"
	"batard/internal/checkout"
	"batard/internal/database"
	"batard/internal/events"
	"batard/internal/models"
)

const testAPIKey = "test-key"

type fixture struct {
	server   *HTTPServer
	db       *database.DB
	category models.Category
	bounded  models.Product
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zerolog.Nop()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "api.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cat := models.Category{
		Name:            "Bread",
		WeekdayTime:     models.ScheduleWindow{From: "08:00", To: "12:00"},
		WeekendsTime:    models.ScheduleWindow{From: "09:00", To: "13:00"},
		SlotSizeMinutes: 30,
		LeadTimeMinutes: 60,
	}
	require.NoError(t, db.CreateCategory(context.Background(), &cat))

	capEight := int64(8)
	bounded := models.Product{Name: "Sourdough", Price: 6.5, CategoryID: cat.ID, DailyCapacity: &capEight, Active: true}
	require.NoError(t, db.CreateProduct(context.Background(), &bounded))

	svc := booking.NewService(db, events.NewBus(), &logger, 3)
	agg := capacity.NewAggregator(db)
	planners := checkout.NewPlannerStore(time.Minute)

	server := NewHTTPServer(":0", svc, agg, db, planners, &logger, testAPIKey, 100, 100)
	return &fixture{server: server, db: db, category: cat, bounded: bounded}
}

func (f *fixture) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)
	return w
}

func admin(h map[string]string) map[string]string {
	if h == nil {
		h = map[string]string{}
	}
	h["X-Api-Key"] = testAPIKey
	return h
}

func validCreateBody(f *fixture, qty int64) booking.CreateRequest {
	return booking.CreateRequest{
		Customer: models.Customer{FirstName: "Marie", LastName: "Dubois", Phone: "+33612345678", Email: "marie@example.com"},
		Pickups: []booking.PickupInput{
			{CategoryID: f.category.ID, Date: "2025-01-10", TimeSlot: "10:30"},
		},
		Items: []booking.ItemInput{
			{ProductID: f.bounded.ID, Quantity: qty, PickupIndex: 0},
		},
	}
}

func TestSlotsEndpoint(t *testing.T) {
	f := newFixture(t)

	// 2025-01-06 is a Monday in the past, so lead time does not apply
	w := f.do(t, http.MethodPost, "/api/slots", SlotsRequest{CategoryID: f.category.ID, Date: "2025-01-06"}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Date  string   `json:"date"`
		Slots []string `json:"slots"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "08:00", resp.Slots[0])
	assert.Equal(t, "12:00", resp.Slots[len(resp.Slots)-1])
	assert.Len(t, resp.Slots, 9)

	// a day the category does not serve answers an empty list, not null
	noWeekend := models.Category{
		Name:            "Cakes",
		WeekdayTime:     models.ScheduleWindow{From: "10:00", To: "16:00"},
		SlotSizeMinutes: 60,
	}
	require.NoError(t, f.db.CreateCategory(context.Background(), &noWeekend))
	// 2025-01-04 is a Saturday
	w = f.do(t, http.MethodPost, "/api/slots", SlotsRequest{CategoryID: noWeekend.ID, Date: "2025-01-04"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"slots":[]`)

	w = f.do(t, http.MethodPost, "/api/slots", SlotsRequest{CategoryID: 9999, Date: "2025-01-06"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/api/slots", SlotsRequest{CategoryID: f.category.ID, Date: "06/01/2025"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPickupGroupsEndpoint(t *testing.T) {
	f := newFixture(t)

	cart := []models.CartLine{{ProductID: f.bounded.ID, Quantity: 2, CategoryID: f.category.ID}}
	w := f.do(t, http.MethodPost, "/api/pickup-groups", PickupGroupsRequest{Cart: cart, Date: "2025-01-10"}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Date   string                 `json:"date"`
		Groups []checkout.PickupGroup `json:"groups"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Groups, 1)
	assert.Equal(t, "Bread", resp.Groups[0].CategoryNames)
	assert.Equal(t, "2025-01-10", resp.Groups[0].Date)

	// empty cart still answers with an empty list, not null
	w = f.do(t, http.MethodPost, "/api/pickup-groups", PickupGroupsRequest{Date: "2025-01-10"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"groups":[]`)
}

func TestPickupGroupsSession(t *testing.T) {
	f := newFixture(t)
	headers := map[string]string{"X-Session-Id": "sess-1"}

	cart := []models.CartLine{{ProductID: f.bounded.ID, Quantity: 2, CategoryID: f.category.ID}}
	w := f.do(t, http.MethodPost, "/api/pickup-groups", PickupGroupsRequest{Cart: cart, Date: "2025-01-10"}, headers)
	require.Equal(t, http.StatusOK, w.Code)

	// same session, new date: groups carry the new date
	w = f.do(t, http.MethodPost, "/api/pickup-groups", PickupGroupsRequest{Cart: cart, Date: "2025-01-11"}, headers)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"date":"2025-01-11"`)
}

func TestCheckCapacityEndpoint(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/booking", validCreateBody(f, 5), nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = f.do(t, http.MethodPost, "/api/booking/check-capacity",
		CheckCapacityRequest{Date: "2025-01-10", ProductIDs: []int64{f.bounded.ID}}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		ByProduct map[int64]capacity.Availability `json:"by_product"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	av := resp.ByProduct[f.bounded.ID]
	assert.EqualValues(t, 5, av.AlreadyBooked)
	require.NotNil(t, av.Remaining)
	assert.EqualValues(t, 3, *av.Remaining)

	w = f.do(t, http.MethodPost, "/api/booking/check-capacity", CheckCapacityRequest{Date: "2025-01-10"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateBookingEndpoint(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/booking", validCreateBody(f, 2), nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var created models.Booking
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Regexp(t, `^B-\d{8}-[0-9A-Z]{4}$`, created.BookingNumber)
	assert.Equal(t, 13.0, created.TotalPrice)
	assert.Equal(t, models.StatusPending, created.Status)

	t.Run("capacity exceeded", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/api/booking", validCreateBody(f, 7), nil)
		require.Equal(t, http.StatusConflict, w.Code)
		var resp struct {
			Error      string                      `json:"error"`
			Shortfalls []booking.CapacityShortfall `json:"shortfalls"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Shortfalls, 1)
		assert.EqualValues(t, 6, resp.Shortfalls[0].Remaining)
	})

	t.Run("validation failure", func(t *testing.T) {
		body := validCreateBody(f, 1)
		body.Customer.Email = "nope"
		w := f.do(t, http.MethodPost, "/api/booking", body, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown product is opaque", func(t *testing.T) {
		body := validCreateBody(f, 1)
		body.Items[0].ProductID = 9999
		w := f.do(t, http.MethodPost, "/api/booking", body, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "product references do not exist")
		assert.NotContains(t, w.Body.String(), "9999")
	})

	t.Run("unknown body field rejected", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/api/booking", map[string]any{"surprise": true}, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAdminSurface(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/booking", validCreateBody(f, 2), nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var created models.Booking
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	t.Run("requires api key", func(t *testing.T) {
		for _, req := range []struct{ method, path string }{
			{http.MethodGet, "/api/booking"},
			{http.MethodGet, "/api/booking/1"},
			{http.MethodGet, "/api/booking/number/" + created.BookingNumber},
			{http.MethodDelete, "/api/booking/1"},
			{http.MethodGet, "/api/booking/export"},
		} {
			w := f.do(t, req.method, req.path, nil, nil)
			assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", req.method, req.path)
		}
	})

	t.Run("list and lookup", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/api/booking?archived=false", nil, admin(nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), created.BookingNumber)

		w = f.do(t, http.MethodGet, "/api/booking/number/"+created.BookingNumber, nil, admin(nil))
		require.Equal(t, http.StatusOK, w.Code)

		w = f.do(t, http.MethodGet, "/api/booking/number/B-00000000-ZZZZ", nil, admin(nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("status update archives", func(t *testing.T) {
		confirmed := models.StatusConfirmed
		w := f.do(t, http.MethodPut, bookingPath(created.ID), BookingUpdateRequest{Status: &confirmed}, admin(nil))
		require.Equal(t, http.StatusOK, w.Code)

		completed := models.StatusCompleted
		w = f.do(t, http.MethodPut, bookingPath(created.ID), BookingUpdateRequest{Status: &completed}, admin(nil))
		require.Equal(t, http.StatusOK, w.Code)

		var b models.Booking
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &b))
		assert.True(t, b.Archived)
		assert.NotNil(t, b.ArchivedAt)

		// illegal move from completed
		w = f.do(t, http.MethodPut, bookingPath(created.ID), BookingUpdateRequest{Status: &completed}, admin(nil))
		require.Equal(t, http.StatusOK, w.Code) // same-status is a no-op transition

		cancelled := models.StatusCancelled
		w = f.do(t, http.MethodPut, bookingPath(created.ID), BookingUpdateRequest{Status: &cancelled}, admin(nil))
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("archive toggle", func(t *testing.T) {
		off := false
		w := f.do(t, http.MethodPut, bookingPath(created.ID), BookingUpdateRequest{Archived: &off}, admin(nil))
		require.Equal(t, http.StatusOK, w.Code)
		var b models.Booking
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &b))
		assert.False(t, b.Archived)
	})

	t.Run("export", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/api/booking/export?from=2025-01-01&to=2025-01-31", nil, admin(nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Type"), "spreadsheetml")
		assert.NotZero(t, w.Body.Len())
	})

	t.Run("delete", func(t *testing.T) {
		w := f.do(t, http.MethodDelete, bookingPath(created.ID), nil, admin(nil))
		require.Equal(t, http.StatusOK, w.Code)

		w = f.do(t, http.MethodGet, bookingPath(created.ID), nil, admin(nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func bookingPath(id int64) string {
	return "/api/booking/" + strconv.FormatInt(id, 10)
}

func TestCatalogSurface(t *testing.T) {
	f := newFixture(t)

	t.Run("public reads", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/api/catalog/categories", nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"Bread"`)

		w = f.do(t, http.MethodGet, "/api/catalog/products", nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"Sourdough"`)

		w = f.do(t, http.MethodGet, "/api/catalog/products/"+strconv.FormatInt(f.bounded.ID, 10), nil, nil)
		require.Equal(t, http.StatusOK, w.Code)

		w = f.do(t, http.MethodGet, "/api/catalog/products/9999", nil, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("mutations require api key", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/api/catalog/categories", models.Category{Name: "Tartes"}, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		w = f.do(t, http.MethodPut, "/api/catalog/products/"+strconv.FormatInt(f.bounded.ID, 10), f.bounded, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("create and update category", func(t *testing.T) {
		c := models.Category{
			Name:            "Tartes",
			WeekdayTime:     models.ScheduleWindow{From: "10:00", To: "16:00"},
			WeekendsTime:    models.ScheduleWindow{From: "10:00", To: "14:00"},
			SlotSizeMinutes: 60,
		}
		w := f.do(t, http.MethodPost, "/api/catalog/categories", c, admin(nil))
		require.Equal(t, http.StatusCreated, w.Code)
		var created models.Category
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
		require.NotZero(t, created.ID)

		created.LeadTimeMinutes = 120
		w = f.do(t, http.MethodPut, "/api/catalog/categories/"+strconv.FormatInt(created.ID, 10), created, admin(nil))
		require.Equal(t, http.StatusOK, w.Code)

		w = f.do(t, http.MethodGet, "/api/catalog/categories/"+strconv.FormatInt(created.ID, 10), nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var got models.Category
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, 120, got.LeadTimeMinutes)

		w = f.do(t, http.MethodPut, "/api/catalog/categories/9999", created, admin(nil))
		assert.Equal(t, http.StatusNotFound, w.Code)

		w = f.do(t, http.MethodPost, "/api/catalog/categories", models.Category{}, admin(nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("create and update product", func(t *testing.T) {
		stock := int64(12)
		p := models.Product{Name: "Croissant", Price: 1.8, CategoryID: f.category.ID, Stock: &stock, Active: true}
		w := f.do(t, http.MethodPost, "/api/catalog/products", p, admin(nil))
		require.Equal(t, http.StatusCreated, w.Code)
		var created models.Product
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
		require.NotZero(t, created.ID)

		created.Price = 2.1
		created.Active = false
		w = f.do(t, http.MethodPut, "/api/catalog/products/"+strconv.FormatInt(created.ID, 10), created, admin(nil))
		require.Equal(t, http.StatusOK, w.Code)

		// deactivated product drops out of the default listing
		w = f.do(t, http.MethodGet, "/api/catalog/products", nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.NotContains(t, w.Body.String(), `"Croissant"`)

		w = f.do(t, http.MethodGet, "/api/catalog/products?all=true", nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"Croissant"`)

		// creating against a missing category is rejected up front
		bad := models.Product{Name: "Orphan", Price: 1, CategoryID: 9999}
		w = f.do(t, http.MethodPost, "/api/catalog/products", bad, admin(nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestCreateBookingRateLimit(t *testing.T) {
	f := newFixture(t)
	f.server.limiter = rate.NewLimiter(1, 1)

	w := f.do(t, http.MethodPost, "/api/booking", validCreateBody(f, 1), nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = f.do(t, http.MethodPost, "/api/booking", validCreateBody(f, 1), nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}
