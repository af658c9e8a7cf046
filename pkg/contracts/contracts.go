// Package contracts defines the boundary interfaces between the Gateway
// Facade and the five core subsystems: the Adapter Registry, the Universal
// HTTP Client, the Vendor Abstraction Layer, the Compliance Pipeline, and
// the audit sink. Each subsystem ships one concrete implementation in its
// own internal package; callers depend only on the interface here so a
// subsystem can be swapped (e.g. a different audit sink) with a one-line
// change in the composition root.
package contracts

import (
	"context"
	"net/http"

	"github.com/meridiangw/gateway/pkg/models"
)

// ── Adapter ──────────────────────────────────────────────────

// CallContext is the structured bag of per-call identity/routing data the
// registry translates into HTTP-style headers before dispatch.
type CallContext struct {
	Authorization string
	APIKey        string
	ProjectScope  string
	RequestID     string
	SessionID     string

	// Headers holds the translated HTTP-style view built by the registry:
	// Authorization, X-API-Key, X-Project-Scope, X-Request-ID, X-Session-ID.
	// Populated by registry.Registry.CallTool before the adapter is invoked.
	Headers map[string]string
}

// Header returns the translated header map, building it from the context
// fields the first time it's needed.
func (c *CallContext) Header() map[string]string {
	if c.Headers != nil {
		return c.Headers
	}
	h := map[string]string{}
	if c.Authorization != "" {
		h["Authorization"] = c.Authorization
	}
	if c.APIKey != "" {
		h["X-API-Key"] = c.APIKey
	}
	if c.ProjectScope != "" {
		h["X-Project-Scope"] = c.ProjectScope
	}
	if c.RequestID != "" {
		h["X-Request-ID"] = c.RequestID
	}
	if c.SessionID != "" {
		h["X-Session-ID"] = c.SessionID
	}
	c.Headers = h
	return h
}

// Adapter is a live object exposing one external service as a uniform
// toolset. It owns an HTTP client and its own per-service circuit breaker
// state (via that client). Initialize is idempotent.
type Adapter interface {
	ID() string
	Name() string
	Description() string
	Category() string
	Capabilities() []string
	Tools() []models.Tool
	Initialize(ctx context.Context) error
	CallTool(ctx context.Context, toolName string, args map[string]interface{}, cc *CallContext) (interface{}, error)
	Stats() models.AdapterStats
}

// MockAdapter is the restricted interface a registerMock placeholder
// satisfies: it reports a tool *count* rather than real tools, and can
// never be executed (registry.CallTool always returns MOCK_ADAPTER for it).
type MockAdapter interface {
	ID() string
	Category() string
	AuthType() models.AuthType
	ToolCount() int
}

// ── Universal HTTP Client ───────────────────────────────────

// Event is one observable boundary-crossing emitted by an HTTP client.
// Event ordering per-client is FIFO in the order requests were initiated.
type Event struct {
	Kind      string // request | response | error | circuit-breaker-open
	Service   string
	Method    string
	URL       string
	Status    int
	ErrorType string
	Message   string
	Failures  int
}

// EventSink receives client events for metrics/audit consumption.
type EventSink interface {
	Emit(Event)
}

// Request is one outbound call description handed to an HTTPClient.
type Request struct {
	Path    string
	Method  string
	Data    interface{}
	Params  map[string]string
	Headers map[string]string
}

// Response is the successful result of Do.
type Response struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// HealthStatus is the result of an HTTPClient health check.
type HealthStatus struct {
	Healthy bool
	Data    interface{}
	Error   string
}

// HTTPClient is the Universal HTTP Client's public contract.
type HTTPClient interface {
	Do(ctx context.Context, req Request) (*Response, error)
	HealthCheck(ctx context.Context) HealthStatus
	Breaker() models.CircuitBreakerSnapshot
}

// ── Vendor Abstraction ──────────────────────────────────────

// VendorAbstraction executes a category operation against whichever vendor
// is selected.
type VendorAbstraction interface {
	Execute(ctx context.Context, category, operation string, input map[string]interface{}, vendorPreference string, cc *CallContext) (interface{}, error)
	RemoveVendor(category, vendorID string) error
}

// ── Compliance Pipeline ──────────────────────────────────────

// ComplianceFilter runs the request/response data-handling filters and
// regulation validators for one service.
type ComplianceFilter interface {
	FilterRequest(ctx context.Context, svc *models.ServiceDescriptor, operation string, payload map[string]interface{}) (map[string]interface{}, error)
	FilterResponse(ctx context.Context, svc *models.ServiceDescriptor, payload map[string]interface{}) (map[string]interface{}, error)
	Validate(ctx context.Context, svc *models.ServiceDescriptor) models.ComplianceReport
}

// AuditSink persists append-only audit entries durably. Entries are never
// updated or deleted once appended.
type AuditSink interface {
	Append(ctx context.Context, entry models.AuditEntry) error
	Close() error
}

// ── Identity ─────────────────────────────────────────────────

// Identity is the verified caller identity returned by the delegated
// identity service the core is a client of (Non-goals: the core
// does not originate identities).
type Identity struct {
	Subject string
	Scopes  []string
}

// IdentityVerifier validates a bearer credential against the auth-gateway.
type IdentityVerifier interface {
	Verify(ctx context.Context, bearerToken string) (*Identity, error)
}

// ── Adapter Registry ─────────────────────────────────────────

// ResolvedTool is what Registry.ResolveTool returns for a known ID.
type ResolvedTool struct {
	CanonicalID string
	AdapterID   string
	Tool        models.Tool
}

// AdapterRegistry owns the set of live adapters and resolves tool
// identifiers, including kebab/snake alias equivalence.
type AdapterRegistry interface {
	Register(ctx context.Context, a Adapter) error
	RegisterMock(m MockAdapter) error
	ResolveTool(id string) (*ResolvedTool, bool)
	CallTool(ctx context.Context, id string, args map[string]interface{}, cc *CallContext) (interface{}, error)
	Adapters() []Adapter
	Stats() map[string]models.AdapterStats
}
