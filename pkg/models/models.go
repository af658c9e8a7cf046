// Package models holds the data types shared across the gateway: service
// descriptors loaded from the catalog, the runtime records the registry and
// discovery layer build on top of them, and the audit/compliance records the
// compliance pipeline produces.
package models

import "time"

// ── Service Descriptor ──────────────────────────────────────

// AuthType enumerates the authentication strategies the Universal HTTP
// Client knows how to inject.
type AuthType string

const (
	AuthNone   AuthType = "none"
	AuthBearer AuthType = "bearer"
	AuthAPIKey AuthType = "apikey"
	AuthBasic  AuthType = "basic"
	AuthHMAC   AuthType = "hmac"
	AuthOAuth2 AuthType = "oauth2"
)

// Authentication describes how a service's outbound calls should be signed.
type Authentication struct {
	Type AuthType `json:"type"`

	// bearer / oauth2
	Token string `json:"token,omitempty"`

	// apikey
	HeaderName string `json:"headerName,omitempty"`
	QueryParam string `json:"queryParam,omitempty"`
	APIKey     string `json:"apiKey,omitempty"`

	// basic
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`

	// hmac
	Secret string `json:"secret,omitempty"`
	Digest string `json:"digest,omitempty"` // e.g. "sha256"

	// oauth2
	ClientID     string `json:"clientId,omitempty"`
	ClientSecret string `json:"clientSecret,omitempty"`
	TokenURL     string `json:"tokenUrl,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// Compliance flags a service descriptor declares; the compliance pipeline
// only runs the validators/filters whose flag is set.
type Compliance struct {
	PCI   bool `json:"pci"`
	GDPR  bool `json:"gdpr"`
	PSD2  bool `json:"psd2"`
	SOX   bool `json:"sox"`
	HIPAA bool `json:"hipaa"`
}

// Endpoint describes one HTTP operation a service exposes. Paths may carry
// "{placeholder}" segments bound at call time.
type Endpoint struct {
	Name        string            `json:"name"`
	Method      string            `json:"method"`
	Path        string            `json:"path"`
	Description string            `json:"description,omitempty"`
	Parameters  map[string]string `json:"parameters,omitempty"`
	Responses   map[string]string `json:"responses,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
}

// ServiceDescriptor is the immutable record describing one external service.
// Loaded at startup from the service catalog; referenced by name everywhere
// downstream. Invariant: BaseURL is absolute; Authentication.Type is one of
// the AuthType constants above.
type ServiceDescriptor struct {
	Name           string            `json:"name"`
	BaseURL        string            `json:"baseUrl"`
	Authentication Authentication    `json:"authentication"`
	Endpoints      []Endpoint        `json:"endpoints,omitempty"`
	Capabilities   []string          `json:"capabilities,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	Compliance     Compliance        `json:"compliance"`

	// Category groups services for the Vendor Abstraction Layer
	// (e.g. "payments", "banking", "infrastructure"). Empty for services
	// that are not part of any abstracted category.
	Category string `json:"category,omitempty"`

	// SupportedCountries / SupportedCurrencies feed gateway.adapters.
	SupportedCountries  []string `json:"supportedCountries,omitempty"`
	SupportedCurrencies []string `json:"supportedCurrencies,omitempty"`
}

// ── Tool / Operation ─────────────────────────────────────────

// Tool is one callable operation an adapter exposes.
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	InputSchema map[string]interface{} `json:"inputSchema,omitempty"`
}

// RiskLevel classifies an operation for the discovery layer's policy gates.
type RiskLevel string

const (
	RiskLow         RiskLevel = "low"
	RiskMedium      RiskLevel = "medium"
	RiskHigh        RiskLevel = "high"
	RiskDestructive RiskLevel = "destructive"
)

// Operation is a registry entry describing one tool's contract, risk tier,
// and schema. Derived from adapters at initialization; rebuilt only on
// explicit re-index.
type Operation struct {
	ToolID         string                 `json:"tool_id"`
	Adapter        string                 `json:"adapter"`
	Name           string                 `json:"name"`
	Description    string                 `json:"description,omitempty"`
	Category       string                 `json:"category,omitempty"`
	Method         string                 `json:"method,omitempty"`
	RiskLevel      RiskLevel              `json:"risk_level"`
	RequiredParams []string               `json:"required_params,omitempty"`
	OptionalParams []string               `json:"optional_params,omitempty"`
	InputSchema    map[string]interface{} `json:"input_schema,omitempty"`
	Tags           []string               `json:"tags,omitempty"`
	IsMock         bool                   `json:"is_mock,omitempty"`
}

// ── Circuit Breaker ──────────────────────────────────────────

type BreakerState string

const (
	BreakerClosed   BreakerState = "CLOSED"
	BreakerOpen     BreakerState = "OPEN"
	BreakerHalfOpen BreakerState = "HALF_OPEN"
)

// CircuitBreakerSnapshot is a point-in-time, read-only view of a per-service
// breaker's state, safe to hand to callers without exposing the underlying
// mutex.
type CircuitBreakerSnapshot struct {
	State         BreakerState `json:"state"`
	Failures      int          `json:"failures"`
	LastFailureAt time.Time    `json:"lastFailureAt,omitempty"`
}

// ── Auth Token Cache ─────────────────────────────────────────

// TokenCacheEntry is the stateful auth record for bearer-with-refresh and
// oauth2 clients.
type TokenCacheEntry struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// ── Audit ────────────────────────────────────────────────────

// AuditEntry is an append-only record. Entries are never modified or
// deleted; Details must never contain raw PCI fields (those are masked
// upstream by the compliance pipeline before the entry is built).
type AuditEntry struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	Sequence  uint64                 `json:"sequence"`
	Action    string                 `json:"action"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// ── Compliance Cache ─────────────────────────────────────────

// ComplianceResult is one regulation validator's verdict.
type ComplianceResult struct {
	Compliant       bool     `json:"compliant"`
	Violations      []string `json:"violations,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
}

// ComplianceReport is the aggregated, cached verdict for one service.
type ComplianceReport struct {
	ServiceName string                      `json:"serviceName"`
	Overall     string                      `json:"overall"` // COMPLIANT | NON_COMPLIANT
	Regulations map[string]ComplianceResult `json:"regulations"`
	Violations  []string                    `json:"violations,omitempty"`
	LastChecked time.Time                   `json:"lastChecked"`
}

// ── Vendor Abstraction ───────────────────────────────────────

// ClientField describes one field of a stable client-facing schema.
type ClientField struct {
	Type     string `json:"type"` // number | string | boolean | integer
	Required bool   `json:"required"`
	Default  any    `json:"default,omitempty"`
}

// ClientOperationSchema is the stable, vendor-agnostic contract for one
// category operation, e.g. "payment.initializeTransaction".
type ClientOperationSchema struct {
	Operation string                 `json:"operation"`
	Fields    map[string]ClientField `json:"fields"`
}

// VendorMapping binds one category operation to a concrete adapter tool and
// an input transform for a specific vendor.
type VendorMapping struct {
	Tool      string `json:"tool"`
	Transform string `json:"transform"` // expr-lang program: input -> vendorInput
}

// Vendor is one interchangeable provider within a category.
type Vendor struct {
	ID           string                   `json:"id"`
	Adapter      string                   `json:"adapter"`
	Mappings     map[string]VendorMapping `json:"mappings"`
	DeprecatedAt *time.Time               `json:"deprecatedAt,omitempty"`
	Healthy      bool                     `json:"healthy"`
}

// CategoryAbstraction is the full Vendor Abstraction Layer record for one
// category: the stable client schema plus every registered vendor.
type CategoryAbstraction struct {
	Category string                           `json:"category"`
	Client   map[string]ClientOperationSchema `json:"client"`
	Vendors  map[string]*Vendor               `json:"vendors"`
}

// ── Stats ────────────────────────────────────────────────────

// AdapterStats is the per-adapter call counter the registry aggregates for
// health/readiness.
type AdapterStats struct {
	Calls    int64     `json:"calls"`
	Errors   int64     `json:"errors"`
	LastCall time.Time `json:"lastCall,omitempty"`
}
