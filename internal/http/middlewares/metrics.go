package middlewares

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/usersvc/internal/metrics"
)

// WithMetrics registra requests, latencia e inflight. La etiqueta path usa
// el patrón de chi (/api/v1/users/{id}) y cae en NormalizePath si no hay ruta.
func WithMetrics(m *metrics.Metrics) Middleware {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			m.InflightInc()
			defer m.InflightDec()

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			path := ""
			if rc := chi.RouteContext(r.Context()); rc != nil {
				path = rc.RoutePattern()
			}
			if path == "" {
				path = metrics.NormalizePath(r.URL.Path)
			}
			m.ObserveHTTP(r.Method, path, rec.status, time.Since(start))
		})
	}
}
