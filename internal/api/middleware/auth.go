package middleware

import (
	"net/http"
	"strings"

	"github.com/meridiangw/gateway/pkg/contracts"
	pkgmiddleware "github.com/meridiangw/gateway/pkg/middleware"
)

// unauthenticatedPaths never require a bearer credential.
var unauthenticatedPaths = map[string]bool{
	"/health":  true,
	"/ready":   true,
	"/metrics": true,
}

// Auth extracts and verifies the inbound bearer credential through the
// delegated identity verifier, attaching the resolved contracts.Identity to
// the request context for downstream handlers (pkg/middleware.GetIdentity).
// Non-goals the gateway never issues credentials itself —
// this middleware is strictly a client of the auth-gateway.
func Auth(verifier contracts.IdentityVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if unauthenticatedPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			token := strings.TrimPrefix(header, "Bearer ")
			if token == header && header != "" {
				// no "Bearer " prefix; treat the raw header value as the token anyway
				token = header
			}

			identity, err := verifier.Verify(r.Context(), token)
			if err != nil {
				WriteError(w, r, err)
				return
			}

			ctx := pkgmiddleware.SetIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
