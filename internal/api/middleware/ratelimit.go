package middleware

import (
	"net/http"

	"github.com/meridiangw/gateway/internal/gatewayerr"
	"github.com/meridiangw/gateway/internal/ratelimit"
	pkgmiddleware "github.com/meridiangw/gateway/pkg/middleware"
)

// RateLimit enforces limiter's quota keyed by the authenticated subject when
// present, falling back to the remote address for anonymous routes.
func RateLimit(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.RemoteAddr
			if id := pkgmiddleware.GetIdentity(r.Context()); id != nil && id.Subject != "" {
				key = id.Subject
			}

			if !limiter.Allow(key) {
				WriteError(w, r, gatewayerr.NewDefault(gatewayerr.RateLimited, "rate limit exceeded"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
