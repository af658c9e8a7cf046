// Package api wires the Gateway Facade: the chi router, its middleware
// stack, and every REST/MCP route the facade exposes.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/meridiangw/gateway/internal/api/handlers"
	apimiddleware "github.com/meridiangw/gateway/internal/api/middleware"
	"github.com/meridiangw/gateway/internal/metrics"
	"github.com/meridiangw/gateway/internal/ratelimit"
	"github.com/meridiangw/gateway/pkg/contracts"
)

// Deps bundles everything NewRouter needs to wire routes and middleware.
type Deps struct {
	Handlers       *handlers.Handlers
	Metrics        *metrics.Collectors
	Identity       contracts.IdentityVerifier
	RateLimiter    *ratelimit.Limiter
	AllowedOrigins []string
}

// NewRouter builds the full chi.Router: CORS, request ID, recovery, logging,
// telemetry, a 30s request timeout, auth, and rate limiting, ahead of the
// REST and MCP route groups.
func NewRouter(d Deps) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID", "X-API-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(apimiddleware.RequestID)
	r.Use(apimiddleware.Recoverer)
	r.Use(apimiddleware.Logger)
	r.Use(apimiddleware.Telemetry)
	r.Use(timeoutMiddleware(30 * time.Second))
	if d.Identity != nil {
		r.Use(apimiddleware.Auth(d.Identity))
	}
	if d.RateLimiter != nil {
		r.Use(apimiddleware.RateLimit(d.RateLimiter))
	}

	r.Get("/health", d.Handlers.Health)
	r.Get("/ready", d.Handlers.Ready)
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics.Handler())
	}

	r.Route("/api/services", func(sr chi.Router) {
		sr.Get("/", d.Handlers.ListServices)
		sr.Get("/{name}", d.Handlers.GetService)
		sr.Post("/{name}/activate", d.Handlers.ActivateService)
		sr.Post("/{name}/deactivate", d.Handlers.DeactivateService)
		sr.Handle("/{name}/*", http.HandlerFunc(d.Handlers.Proxy))
	})

	r.Post("/api/webhooks/{name}", d.Handlers.Webhook)

	r.Route("/mcp", func(mr chi.Router) {
		mr.Post("/intent", d.Handlers.Intent)
		mr.Post("/execute", d.Handlers.Execute)
		mr.Get("/adapters", d.Handlers.Adapters)
		mr.Get("/tools", d.Handlers.Tools)
		mr.Get("/reference", d.Handlers.Reference)
	})

	return r
}

// timeoutMiddleware bounds total request handling time as a last-resort
// guard against a hung upstream call; the Universal HTTP Client's own
// per-request timeout is expected to fire first.
func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, `{"error":"TIMEOUT","message":"request timed out"}`)
	}
}
