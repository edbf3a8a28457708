package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clearledger/subpay/pkg/metrics"
)

// Metrics records per-route duration and outcome counters.
func Metrics(m *metrics.BillingMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w}
			start := time.Now()

			next.ServeHTTP(rec, r)

			if rec.status == 0 {
				rec.status = http.StatusOK
			}

			// Resolved after the handler ran so chi has filled in the pattern.
			operation := r.Method + " " + routePattern(r)
			m.ObserveDuration(operation, time.Since(start))
			if rec.status < 400 {
				m.IncSuccess(operation)
			} else {
				m.IncFailure(operation, strconv.Itoa(rec.status))
			}
		})
	}
}

func routePattern(r *http.Request) string {
	if ctx := chi.RouteContext(r.Context()); ctx != nil {
		if pattern := ctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
