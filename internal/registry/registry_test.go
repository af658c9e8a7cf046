package registry_test

import (
	"context"
	"testing"

	"github.com/meridiangw/gateway/internal/gatewayerr"
	"github.com/meridiangw/gateway/internal/registry"
	"github.com/meridiangw/gateway/pkg/contracts"
	"github.com/meridiangw/gateway/pkg/models"
)

type fakeAdapter struct {
	id    string
	tools []models.Tool
	calls int
}

func (a *fakeAdapter) ID() string                  { return a.id }
func (a *fakeAdapter) Name() string                { return a.id }
func (a *fakeAdapter) Description() string         { return "" }
func (a *fakeAdapter) Category() string            { return "payments" }
func (a *fakeAdapter) Capabilities() []string      { return nil }
func (a *fakeAdapter) Tools() []models.Tool        { return a.tools }
func (a *fakeAdapter) Initialize(context.Context) error { return nil }
func (a *fakeAdapter) Stats() models.AdapterStats  { return models.AdapterStats{Calls: int64(a.calls)} }
func (a *fakeAdapter) CallTool(ctx context.Context, toolName string, args map[string]interface{}, cc *contracts.CallContext) (interface{}, error) {
	a.calls++
	return map[string]interface{}{"toolName": toolName, "args": args, "headers": cc.Header()}, nil
}

func TestResolveToolKebabSnakeEquivalence(t *testing.T) {
	r := registry.New()
	a := &fakeAdapter{id: "paystack", tools: []models.Tool{{Name: "initialize-transaction"}}}
	if err := r.Register(context.Background(), a); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	snake, ok := r.ResolveTool("paystack:initialize_transaction")
	if !ok {
		t.Fatal("expected snake_case alias to resolve")
	}
	kebab, ok := r.ResolveTool("paystack:initialize-transaction")
	if !ok {
		t.Fatal("expected kebab-case id to resolve")
	}
	if snake.CanonicalID != kebab.CanonicalID {
		t.Fatalf("expected equal canonical IDs, got %q vs %q", snake.CanonicalID, kebab.CanonicalID)
	}
}

func TestRegisterRejectsCanonicalCollision(t *testing.T) {
	r := registry.New()
	a1 := &fakeAdapter{id: "svc-a", tools: []models.Tool{{Name: "do-thing"}}}
	a2 := &fakeAdapter{id: "svc-a", tools: []models.Tool{{Name: "do_thing"}}} // different instance, same adapter id and same canonical tool id

	if err := r.Register(context.Background(), a1); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.Register(context.Background(), a2); err == nil {
		t.Fatal("expected canonical tool id collision to be rejected")
	}
}

func TestRegisterIsIdempotent(t *testing.T) {
	r := registry.New()
	a := &fakeAdapter{id: "svc-a", tools: []models.Tool{{Name: "do-thing"}}}
	if err := r.Register(context.Background(), a); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.Register(context.Background(), a); err != nil {
		t.Fatalf("re-registering the same adapter instance should be idempotent, got %v", err)
	}
}

func TestCallToolTranslatesContextToHeaders(t *testing.T) {
	r := registry.New()
	a := &fakeAdapter{id: "paystack", tools: []models.Tool{{Name: "initialize_transaction"}}}
	if err := r.Register(context.Background(), a); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	result, err := r.CallTool(context.Background(), "paystack:initialize_transaction",
		map[string]interface{}{"amount": 100},
		&contracts.CallContext{Authorization: "Bearer u", RequestID: "req_1"})
	if err != nil {
		t.Fatalf("CallTool() error = %v", err)
	}
	m := result.(map[string]interface{})
	if m["toolName"] != "initialize_transaction" {
		t.Fatalf("expected tool name passed through verbatim, got %v", m["toolName"])
	}
	headers := m["headers"].(map[string]string)
	if headers["Authorization"] != "Bearer u" || headers["X-Request-ID"] != "req_1" {
		t.Fatalf("unexpected translated headers: %+v", headers)
	}
}

func TestCallToolMockAdapterReturnsMockAdapterError(t *testing.T) {
	r := registry.New()
	if err := r.RegisterMock(&registry.Mock{IDValue: "stub-bank", Count: 12, CategoryValue: "banking"}); err != nil {
		t.Fatalf("RegisterMock() error = %v", err)
	}

	_, err := r.CallTool(context.Background(), "stub-bank:transfer", nil, nil)
	if !gatewayerr.Is(err, gatewayerr.MockAdapter) {
		t.Fatalf("expected MOCK_ADAPTER, got %v", err)
	}
}

func TestResolveToolUnknownIDReturnsFalse(t *testing.T) {
	r := registry.New()
	if _, ok := r.ResolveTool("nope:nothing"); ok {
		t.Fatal("expected unknown tool id to not resolve")
	}
}
