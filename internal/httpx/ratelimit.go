package httpx

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/sundayezeilo/linkshield/internal/metrics"
)

// RateLimit allows limit requests per window per client IP, honouring
// X-Forwarded-For and X-Real-IP. route labels the rejection metric.
func RateLimit(route string, limit int, window time.Duration) Middleware {
	return httprate.Limit(limit, window,
		httprate.WithKeyByRealIP(),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			metrics.RateLimitHits.WithLabelValues(route).Inc()
			WriteError(w, http.StatusTooManyRequests, "rate_limited",
				"too many requests, please try again later", nil)
		}),
	)
}
