package server

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/aweiler/ragserve/internal/metrics"
)

// slowRequestThreshold is the duration above which requests are logged at WARN level.
const slowRequestThreshold = time.Second

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs every request with timing and records it in the
// request metrics. Slow requests are logged at WARN level.
func LoggingMiddleware(logger *slog.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			duration := time.Since(start)
			m.HTTPRequests.WithLabelValues(r.URL.Path, strconv.Itoa(rec.status)).Inc()
			m.RequestDuration.WithLabelValues(r.URL.Path).Observe(duration.Seconds())

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", duration.Milliseconds(),
			}
			switch {
			case rec.status >= 500:
				logger.Error("request failed", attrs...)
			case duration > slowRequestThreshold:
				logger.Warn("slow request", attrs...)
			default:
				logger.Debug("request completed", attrs...)
			}
		})
	}
}
