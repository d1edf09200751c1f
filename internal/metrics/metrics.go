package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "batard",
			Name:      "booking_created_total",
			Help:      "Count of bookings created.",
		},
	)

	bookingStatusChanged = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "batard",
			Name:      "booking_status_changed_total",
			Help:      "Count of booking status transitions by target status.",
		},
		[]string{"status"},
	)

	capacityRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "batard",
			Name:      "capacity_rejected_total",
			Help:      "Count of booking attempts rejected for capacity.",
		},
	)

	bookingNumberRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "batard",
			Name:      "booking_number_retries_total",
			Help:      "Count of booking number collisions that forced a retry.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "batard",
			Name:      "http_requests_total",
			Help:      "Count of HTTP requests by route and status code.",
		},
		[]string{"route", "code"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "batard",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   []float64{.005, .01, .05, .1, .5, 1, 2},
		},
		[]string{"route"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			bookingCreated, bookingStatusChanged, capacityRejected,
			bookingNumberRetries, httpRequests, httpDuration,
		)
	})
}

func IncBookingCreated() {
	bookingCreated.Inc()
}

func IncBookingStatusChanged(status string) {
	bookingStatusChanged.WithLabelValues(status).Inc()
}

func IncCapacityRejected() {
	capacityRejected.Inc()
}

func IncBookingNumberRetry() {
	bookingNumberRetries.Inc()
}

func ObserveHTTPRequest(route, code string, elapsed time.Duration) {
	httpRequests.WithLabelValues(route, code).Inc()
	httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
