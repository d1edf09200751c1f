package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"batard/internal/metrics"
)

// statusRecorder captures the response code for the request log and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// requestID tags every response with an X-Request-Id, honoring one supplied
// by the client.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r)
	})
}

// instrument logs the request and feeds the prometheus counters.
func (s *HTTPServer) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)

		elapsed := time.Since(start)
		metrics.ObserveHTTPRequest(route, strconv.Itoa(rec.status), elapsed)
		s.logger.Debug().
			Str("route", route).
			Str("method", r.Method).
			Int("status", rec.status).
			Dur("elapsed", elapsed).
			Str("request_id", w.Header().Get("X-Request-Id")).
			Msg("http request")
	}
}

// requireAdmin gates a handler behind the X-Api-Key header. With no key
// configured the admin surface is unreachable.
func (s *HTTPServer) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" || r.Header.Get("X-Api-Key") != s.apiKey {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

// rateLimit rejects bursts on the public booking creation endpoint.
func (s *HTTPServer) rateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next(w, r)
	}
}
