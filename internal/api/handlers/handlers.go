// Package handlers implements the Gateway Facade's REST surface: service
// catalog CRUD, the generic upstream proxy, and webhook ingestion. The MCP
// meta-tool surface lives in mcp.go.
package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meridiangw/gateway/internal/adapter"
	"github.com/meridiangw/gateway/internal/api/middleware"
	"github.com/meridiangw/gateway/internal/catalog"
	"github.com/meridiangw/gateway/internal/compliance"
	"github.com/meridiangw/gateway/internal/discovery"
	"github.com/meridiangw/gateway/internal/gatewayerr"
	"github.com/meridiangw/gateway/pkg/contracts"
	"github.com/meridiangw/gateway/pkg/models"
	pkgmiddleware "github.com/meridiangw/gateway/pkg/middleware"
)

// Handlers bundles every dependency the REST surface calls into.
type Handlers struct {
	Catalog    *catalog.Catalog
	Registry   contracts.AdapterRegistry
	Discovery  *discovery.Discovery
	Compliance *compliance.Pipeline
	Version    string
	StartedAt  time.Time

	// WebhookHandlers maps a service name to its webhook callback. A service
	// with no registered handler returns 404 for POST /api/webhooks/{name}.
	WebhookHandlers map[string]func(ctx context.Context, body []byte) error
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Health reports liveness unconditionally: the process can answer HTTP.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": h.Version,
		"uptime":  time.Since(h.StartedAt).String(),
	})
}

// Ready reports readiness: the catalog has loaded at least once. An empty
// catalog is a valid (if unusual) deployment, so readiness never depends on
// Count() > 0 — only on the catalog object existing.
func (h *Handlers) Ready(w http.ResponseWriter, r *http.Request) {
	if h.Catalog == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"status": "not_ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ready",
		"services": h.Catalog.Count(),
	})
}

// ── Service catalog ──────────────────────────────────────────

type serviceSummary struct {
	Name       string             `json:"name"`
	Category   string             `json:"category,omitempty"`
	AuthType   models.AuthType    `json:"authType"`
	Compliance models.Compliance  `json:"compliance"`
	Endpoints  int                `json:"endpointCount"`
}

// ListServices returns every loaded service descriptor's summary.
func (h *Handlers) ListServices(w http.ResponseWriter, r *http.Request) {
	svcs := h.Catalog.List()
	out := make([]serviceSummary, 0, len(svcs))
	for _, s := range svcs {
		out = append(out, serviceSummary{
			Name:       s.Name,
			Category:   s.Category,
			AuthType:   s.Authentication.Type,
			Compliance: s.Compliance,
			Endpoints:  len(s.Endpoints),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"services": out})
}

// GetService returns one service descriptor plus its cached compliance
// report, if any.
func (h *Handlers) GetService(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	svc, ok := h.Catalog.Get(name)
	if !ok {
		middleware.WriteError(w, r, gatewayerr.NewDefault(gatewayerr.AdapterNotFound, "service "+name+" not found"))
		return
	}

	resp := map[string]interface{}{"service": svc}
	if h.Compliance != nil {
		if report, ok := h.Compliance.Report(name); ok {
			resp["compliance"] = report
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ActivateService builds and registers a generic adapter for the named
// catalog service, so a catalog entry loaded but not yet wired into the
// registry can be brought live without a restart. If the service's tools are
// already registered, the registry rejects the new adapter and that error is
// returned; an existing registration is not replaced.
func (h *Handlers) ActivateService(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	svc, ok := h.Catalog.Get(name)
	if !ok {
		middleware.WriteError(w, r, gatewayerr.NewDefault(gatewayerr.AdapterNotFound, "service "+name+" not found"))
		return
	}

	a := adapter.New(svc, nil)
	if err := h.Registry.Register(r.Context(), a); err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	if h.Discovery != nil {
		h.Discovery.Reindex()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "activated", "service": name})
}

// DeactivateService checks that the named catalog service exists and answers
// with a "deactivated" status. It changes neither the catalog nor the
// registry: the service's adapter stays registered and its tools stay
// callable.
func (h *Handlers) DeactivateService(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, ok := h.Catalog.Get(name); !ok {
		middleware.WriteError(w, r, gatewayerr.NewDefault(gatewayerr.AdapterNotFound, "service "+name+" not found"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "deactivated", "service": name})
}

// ── Generic proxy ────────────────────────────────────────────

// Proxy implements the generic REST passthrough: ALL /api/services/{name}/*,
// matching the trailing path against the service's declared endpoints by
// name, running the compliance pipeline on the request payload and, when the
// upstream body is a JSON object, on the response.
func (h *Handlers) Proxy(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	svc, ok := h.Catalog.Get(name)
	if !ok {
		middleware.WriteError(w, r, gatewayerr.NewDefault(gatewayerr.AdapterNotFound, "service "+name+" not found"))
		return
	}

	operation := chi.URLParam(r, "*")
	endpoint := matchEndpoint(svc.Endpoints, operation, r.Method)
	if endpoint == nil {
		middleware.WriteError(w, r, gatewayerr.NewDefault(gatewayerr.ToolNotFound, "no endpoint matches "+r.Method+" "+operation))
		return
	}

	var payload map[string]interface{}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&payload)
	}
	if payload == nil {
		payload = map[string]interface{}{}
	}

	if h.Compliance != nil {
		filtered, err := h.Compliance.FilterRequest(r.Context(), svc, endpoint.Name, payload)
		if err != nil {
			middleware.WriteError(w, r, err)
			return
		}
		payload = filtered
	}

	cc := callContextFrom(r)
	result, err := h.Registry.CallTool(r.Context(), name+":"+endpoint.Name, payload, cc)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	if upstream, ok := result.(*contracts.Response); ok {
		var decoded map[string]interface{}
		if err := json.Unmarshal(upstream.Body, &decoded); err == nil && decoded != nil {
			result = decoded
		}
	}
	if resp, ok := result.(map[string]interface{}); ok && h.Compliance != nil {
		filtered, err := h.Compliance.FilterResponse(r.Context(), svc, resp)
		if err != nil {
			middleware.WriteError(w, r, err)
			return
		}
		result = filtered
	}

	writeJSON(w, http.StatusOK, result)
}

func matchEndpoint(endpoints []models.Endpoint, operation, method string) *models.Endpoint {
	operation = strings.Trim(operation, "/")
	for i := range endpoints {
		ep := &endpoints[i]
		if ep.Name == operation && strings.EqualFold(ep.Method, method) {
			return ep
		}
	}
	// fall back to name-only match so GET-by-default endpoints still route
	for i := range endpoints {
		if endpoints[i].Name == operation {
			return &endpoints[i]
		}
	}
	return nil
}

func callContextFrom(r *http.Request) *contracts.CallContext {
	cc := &contracts.CallContext{RequestID: r.Header.Get(middleware.RequestIDHeader)}
	if id := pkgmiddleware.GetIdentity(r.Context()); id != nil {
		cc.Authorization = r.Header.Get("Authorization")
	}
	return cc
}

// ── Webhooks ──────────────────────────────────────────────────

// Webhook dispatches an inbound vendor callback to the registered handler
// for that service. A service with no registered webhook handler is a 404:
// the gateway never silently accepts a callback it cannot process.
func (h *Handlers) Webhook(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	fn, ok := h.WebhookHandlers[name]
	if !ok {
		middleware.WriteError(w, r, gatewayerr.NewDefault(gatewayerr.AdapterNotFound, "no webhook handler registered for "+name))
		return
	}

	defer r.Body.Close()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		middleware.WriteError(w, r, gatewayerr.NewDefault(gatewayerr.InvalidParams, "could not read webhook body"))
		return
	}
	if err := fn(r.Context(), body); err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"received": true})
}
