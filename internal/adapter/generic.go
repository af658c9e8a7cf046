// Package adapter implements the one adapter body this repo ships: a
// generic, descriptor-driven adapter that turns any Service Descriptor's
// endpoints into callable tools via the Universal HTTP Client's
// GenerateMethods. No payment/banking-specific logic lives here; vendor-
// specific behavior belongs to the Vendor Abstraction Layer's transforms
// instead.
package adapter

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/meridiangw/gateway/internal/gatewayerr"
	"github.com/meridiangw/gateway/internal/httpclient"
	"github.com/meridiangw/gateway/pkg/contracts"
	"github.com/meridiangw/gateway/pkg/models"
)

// Generic adapts one ServiceDescriptor: it owns exactly one httpclient.Client
// (and thus one circuit breaker) and exposes one Tool per declared Endpoint.
//
// Endpoint.Parameters values follow a small convention: "<type>" for an
// optional parameter, "<type>!" for a required one, where <type> is one of
// the JSON-Schema scalar types the discovery validator understands
// (string, number, integer, boolean, array, object).
type Generic struct {
	id          string
	description string
	category    string
	descriptor  *models.ServiceDescriptor
	client      *httpclient.Client
	methods     map[string]*httpclient.BoundEndpoint
	tools       []models.Tool

	mu          sync.Mutex
	initialized bool

	calls    int64
	errors   int64
	lastCall atomic.Value // time.Time
}

// New builds a Generic adapter for svc, wiring a Client configured from the
// descriptor's authentication and an optional EventSink for metrics/audit.
func New(svc *models.ServiceDescriptor, sink contracts.EventSink) *Generic {
	client := httpclient.New(httpclient.Config{
		Name:           svc.Name,
		BaseURL:        svc.BaseURL,
		Authentication: svc.Authentication,
		Sink:           sink,
	})
	return &Generic{
		id:          svc.Name,
		description: "Generic adapter for " + svc.Name,
		category:    svc.Category,
		descriptor:  svc,
		client:      client,
	}
}

func (a *Generic) ID() string            { return a.id }
func (a *Generic) Name() string          { return a.id }
func (a *Generic) Description() string   { return a.description }
func (a *Generic) Category() string      { return a.category }
func (a *Generic) Capabilities() []string { return a.descriptor.Capabilities }

// Initialize synthesizes one Tool per endpoint and builds the bound-method
// index. Idempotent: a second call is a no-op.
func (a *Generic) Initialize(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.initialized {
		return nil
	}

	a.methods = a.client.GenerateMethods(a.descriptor.Endpoints)
	a.tools = make([]models.Tool, 0, len(a.descriptor.Endpoints))
	for _, ep := range a.descriptor.Endpoints {
		a.tools = append(a.tools, models.Tool{
			Name:        ep.Name,
			Description: ep.Description,
			InputSchema: buildInputSchema(ep.Parameters),
		})
	}
	a.initialized = true
	return nil
}

func buildInputSchema(params map[string]string) map[string]interface{} {
	if len(params) == 0 {
		return nil
	}
	properties := make(map[string]interface{}, len(params))
	var required []interface{}
	for name, spec := range params {
		typ := spec
		req := false
		if strings.HasSuffix(spec, "!") {
			typ = strings.TrimSuffix(spec, "!")
			req = true
		}
		properties[name] = map[string]interface{}{"type": typ}
		if req {
			required = append(required, name)
		}
	}
	schema := map[string]interface{}{"properties": properties}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func (a *Generic) Tools() []models.Tool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tools
}

// CallTool dispatches toolName through its BoundEndpoint, recording call
// stats 
func (a *Generic) CallTool(ctx context.Context, toolName string, args map[string]interface{}, cc *contracts.CallContext) (interface{}, error) {
	a.mu.Lock()
	method, ok := a.methods[toolName]
	a.mu.Unlock()
	if !ok {
		return nil, gatewayerr.NewDefault(gatewayerr.ToolNotFound, "unknown tool "+toolName)
	}

	var headers map[string]string
	if cc != nil {
		headers = cc.Header()
	}

	atomic.AddInt64(&a.calls, 1)
	a.lastCall.Store(time.Now())

	resp, err := method.Invoke(ctx, args, headers)
	if err != nil {
		atomic.AddInt64(&a.errors, 1)
		return nil, err
	}
	return resp, nil
}

func (a *Generic) Stats() models.AdapterStats {
	last, _ := a.lastCall.Load().(time.Time)
	return models.AdapterStats{
		Calls:    atomic.LoadInt64(&a.calls),
		Errors:   atomic.LoadInt64(&a.errors),
		LastCall: last,
	}
}

// Client exposes the underlying httpclient.Client so the facade can run
// health checks and read circuit breaker state per service.
func (a *Generic) Client() *httpclient.Client { return a.client }

var _ contracts.Adapter = (*Generic)(nil)
