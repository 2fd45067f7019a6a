package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	h "guestpass/internal/delivery/http/helpers"
)

// RateLimitByIP limits each client IP to requestsPerMinute. A non-positive limit disables it.
func RateLimitByIP(requestsPerMinute int) func(http.HandlerFunc) http.HandlerFunc {
	if requestsPerMinute <= 0 {
		return func(next http.HandlerFunc) http.HandlerFunc { return next }
	}
	limit := httprate.Limit(requestsPerMinute, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			h.WriteJSONError(w, http.StatusTooManyRequests, h.ErrCodeTooManyRequests, "too many requests")
		}),
	)
	return func(next http.HandlerFunc) http.HandlerFunc {
		return limit(next).ServeHTTP
	}
}
