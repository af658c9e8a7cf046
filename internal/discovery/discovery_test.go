package discovery_test

import (
	"context"
	"testing"

	"github.com/meridiangw/gateway/internal/discovery"
	"github.com/meridiangw/gateway/internal/gatewayerr"
	"github.com/meridiangw/gateway/pkg/contracts"
	"github.com/meridiangw/gateway/pkg/models"
)

type fakeAdapter struct {
	id       string
	category string
	tools    []models.Tool
	calls    int
	callErr  error
}

func (a *fakeAdapter) ID() string                  { return a.id }
func (a *fakeAdapter) Name() string                { return a.id }
func (a *fakeAdapter) Description() string         { return "test adapter " + a.id }
func (a *fakeAdapter) Category() string            { return a.category }
func (a *fakeAdapter) Capabilities() []string       { return []string{"payments"} }
func (a *fakeAdapter) Tools() []models.Tool        { return a.tools }
func (a *fakeAdapter) Initialize(context.Context) error { return nil }
func (a *fakeAdapter) Stats() models.AdapterStats  { return models.AdapterStats{} }
func (a *fakeAdapter) CallTool(ctx context.Context, toolName string, args map[string]interface{}, cc *contracts.CallContext) (interface{}, error) {
	a.calls++
	if a.callErr != nil {
		return nil, a.callErr
	}
	return map[string]interface{}{"ok": true}, nil
}

type fakeMock struct{ id, category string }

func (m *fakeMock) ID() string                { return m.id }
func (m *fakeMock) Category() string          { return m.category }
func (m *fakeMock) AuthType() models.AuthType { return models.AuthNone }
func (m *fakeMock) ToolCount() int            { return 3 }

type fakeRegistry struct {
	adapters []*fakeAdapter
	mocks    []*fakeMock
	byID     map[string]*fakeAdapter
}

func newFakeRegistry(adapters ...*fakeAdapter) *fakeRegistry {
	r := &fakeRegistry{byID: make(map[string]*fakeAdapter)}
	for _, a := range adapters {
		r.adapters = append(r.adapters, a)
		r.byID[a.id] = a
	}
	return r
}

func (r *fakeRegistry) Register(context.Context, contracts.Adapter) error { return nil }
func (r *fakeRegistry) RegisterMock(contracts.MockAdapter) error          { return nil }

func (r *fakeRegistry) ResolveTool(id string) (*contracts.ResolvedTool, bool) {
	for _, a := range r.adapters {
		for _, t := range a.tools {
			if a.id+":"+t.Name == id {
				return &contracts.ResolvedTool{CanonicalID: id, AdapterID: a.id, Tool: t}, true
			}
		}
	}
	return nil, false
}

func (r *fakeRegistry) CallTool(ctx context.Context, id string, args map[string]interface{}, cc *contracts.CallContext) (interface{}, error) {
	resolved, ok := r.ResolveTool(id)
	if !ok {
		return nil, gatewayerr.NewDefault(gatewayerr.ToolNotFound, "not found")
	}
	return r.byID[resolved.AdapterID].CallTool(ctx, resolved.Tool.Name, args, cc)
}

func (r *fakeRegistry) Adapters() []contracts.Adapter {
	out := make([]contracts.Adapter, len(r.adapters))
	for i, a := range r.adapters {
		out[i] = a
	}
	return out
}

func (r *fakeRegistry) Mocks() []contracts.MockAdapter {
	out := make([]contracts.MockAdapter, len(r.mocks))
	for i, m := range r.mocks {
		out[i] = m
	}
	return out
}

func (r *fakeRegistry) Stats() map[string]models.AdapterStats { return nil }

func paystack() *fakeAdapter {
	return &fakeAdapter{
		id:       "paystack",
		category: "payments",
		tools: []models.Tool{{
			Name: "initialize-transaction",
			InputSchema: map[string]interface{}{
				"required": []interface{}{"amount", "email"},
				"properties": map[string]interface{}{
					"amount": map[string]interface{}{"type": "number"},
					"email":  map[string]interface{}{"type": "string"},
				},
			},
		}},
	}
}

func TestIntentReturnsReadyToExecuteWithExample(t *testing.T) {
	d := discovery.New(newFakeRegistry(paystack()), nil)
	result := d.Intent("charge a card in nigeria", "", discovery.SearchOptions{}, 3)

	if result.Recommended == nil || result.Recommended.ToolID != "paystack:initialize-transaction" {
		t.Fatalf("expected paystack:initialize-transaction recommended, got %+v", result.Recommended)
	}
	if result.ReadyToExecute == nil {
		t.Fatal("expected ready_to_execute to be populated")
	}
	if result.ReadyToExecute.Example["email"] != "customer@example.com" {
		t.Fatalf("expected synthesized email example, got %v", result.ReadyToExecute.Example["email"])
	}
}

func TestExecuteHighRiskWithoutIdempotencyKeyIsRejected(t *testing.T) {
	a := paystack()
	r := newFakeRegistry(a)
	d := discovery.New(r, nil)

	result := d.Execute(context.Background(), "paystack:initialize-transaction",
		map[string]interface{}{"amount": 500000.0, "email": "a@b.com"}, discovery.ExecuteOptions{}, nil)

	if result.Success {
		t.Fatal("expected high-risk execute without idempotency_key to fail")
	}
	if result.Error.Code != string(gatewayerr.IdempotencyRequired) {
		t.Fatalf("expected IDEMPOTENCY_REQUIRED, got %s", result.Error.Code)
	}
	if a.calls != 0 {
		t.Fatal("expected no upstream call on policy rejection")
	}
}

func TestExecuteHighRiskWithIdempotencyKeySucceeds(t *testing.T) {
	a := paystack()
	d := discovery.New(newFakeRegistry(a), nil)

	result := d.Execute(context.Background(), "paystack:initialize-transaction",
		map[string]interface{}{"amount": 500000.0, "email": "a@b.com"},
		discovery.ExecuteOptions{IdempotencyKey: "k1"}, nil)

	if !result.Success {
		t.Fatalf("expected success, got error %+v", result.Error)
	}
	if a.calls != 1 {
		t.Fatalf("expected exactly one upstream call, got %d", a.calls)
	}
}

func TestExecuteDestructiveWithoutConfirmationIsRejected(t *testing.T) {
	a := &fakeAdapter{id: "auth-gateway", category: "infrastructure", tools: []models.Tool{{Name: "revoke-api-key"}}}
	d := discovery.New(newFakeRegistry(a), nil)

	result := d.Execute(context.Background(), "auth-gateway:revoke-api-key",
		map[string]interface{}{"key_id": "abc"}, discovery.ExecuteOptions{}, nil)

	if result.Success || result.Error.Code != string(gatewayerr.ConfirmationRequired) {
		t.Fatalf("expected CONFIRMATION_REQUIRED, got %+v", result)
	}
	if a.calls != 0 {
		t.Fatal("expected no upstream call on policy rejection")
	}
}

func TestExecuteDryRunNeverCallsAdapter(t *testing.T) {
	a := paystack()
	d := discovery.New(newFakeRegistry(a), nil)

	result := d.Execute(context.Background(), "paystack:initialize-transaction",
		map[string]interface{}{"amount": 500000.0, "email": "a@b.com"},
		discovery.ExecuteOptions{IdempotencyKey: "k1", DryRun: true}, nil)

	if !result.DryRun || result.Validation != "passed" {
		t.Fatalf("expected dry_run validation passed, got %+v", result)
	}
	if a.calls != 0 {
		t.Fatal("dry_run must never call the underlying adapter")
	}
}

func TestExecuteInvalidParamTypeRejected(t *testing.T) {
	a := paystack()
	d := discovery.New(newFakeRegistry(a), nil)

	result := d.Execute(context.Background(), "paystack:initialize-transaction",
		map[string]interface{}{"amount": "500000", "email": "a@b.com"},
		discovery.ExecuteOptions{IdempotencyKey: "k1"}, nil)

	if result.Success {
		t.Fatal("expected type-mismatched amount to fail validation")
	}
	if result.Error == nil || result.Error.Code != string(gatewayerr.InvalidParamType) {
		t.Fatalf("expected error code %s, got %+v", gatewayerr.InvalidParamType, result.Error)
	}
	if result.Error.Expected != "number" || result.Error.Received != "string" {
		t.Fatalf("expected Expected=number Received=string, got %+v", result.Error)
	}
}

func TestToolsRequiresAdapter(t *testing.T) {
	d := discovery.New(newFakeRegistry(paystack()), nil)
	if _, err := d.Tools("", "", "", 0, 0); !gatewayerr.Is(err, gatewayerr.AdapterRequired) {
		t.Fatalf("expected ADAPTER_REQUIRED, got %v", err)
	}
	if _, err := d.Tools("nonexistent", "", "", 0, 0); !gatewayerr.Is(err, gatewayerr.AdapterNotFound) {
		t.Fatalf("expected ADAPTER_NOT_FOUND, got %v", err)
	}
}

func TestAdaptersFiltersByCategory(t *testing.T) {
	d := discovery.New(newFakeRegistry(paystack(), &fakeAdapter{id: "shipbubble", category: "logistics"}), nil)
	out := d.Adapters("payments", "", "")
	if len(out) != 1 || out[0].ID != "paystack" {
		t.Fatalf("expected only paystack, got %+v", out)
	}
}
