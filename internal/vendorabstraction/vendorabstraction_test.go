package vendorabstraction_test

import (
	"context"
	"testing"
	"time"

	"github.com/meridiangw/gateway/internal/gatewayerr"
	"github.com/meridiangw/gateway/internal/vendorabstraction"
	"github.com/meridiangw/gateway/pkg/contracts"
	"github.com/meridiangw/gateway/pkg/models"
)

type fakeRegistry struct {
	calls   []string
	lastIn  map[string]interface{}
	reply   interface{}
	callErr error
}

func (r *fakeRegistry) Register(context.Context, contracts.Adapter) error { return nil }
func (r *fakeRegistry) RegisterMock(contracts.MockAdapter) error          { return nil }
func (r *fakeRegistry) ResolveTool(id string) (*contracts.ResolvedTool, bool) {
	return nil, false
}
func (r *fakeRegistry) CallTool(ctx context.Context, id string, args map[string]interface{}, cc *contracts.CallContext) (interface{}, error) {
	r.calls = append(r.calls, id)
	r.lastIn = args
	if r.callErr != nil {
		return nil, r.callErr
	}
	return r.reply, nil
}
func (r *fakeRegistry) Adapters() []contracts.Adapter                    { return nil }
func (r *fakeRegistry) Stats() map[string]models.AdapterStats           { return nil }

func paymentCategory() map[string]*models.CategoryAbstraction {
	return map[string]*models.CategoryAbstraction{
		"payment": {
			Category: "payment",
			Client: map[string]models.ClientOperationSchema{
				"initializeTransaction": {
					Operation: "initializeTransaction",
					Fields: map[string]models.ClientField{
						"amount":   {Type: "number", Required: true},
						"email":    {Type: "string", Required: true},
						"currency": {Type: "string", Required: false, Default: "NGN"},
					},
				},
			},
			Vendors: map[string]*models.Vendor{
				"paystack": {
					ID:      "paystack",
					Adapter: "paystack",
					Healthy: true,
					Mappings: map[string]models.VendorMapping{
						"initializeTransaction": {
							Tool:      "initialize-transaction",
							Transform: `{"amount_kobo": input.amount, "customer_email": input.email}`,
						},
					},
				},
			},
		},
	}
}

func TestExecuteAppliesDefaultsAndTransform(t *testing.T) {
	reg := &fakeRegistry{reply: map[string]interface{}{"status": "ok", "vendor": "paystack"}}
	l, err := vendorabstraction.New(reg, paymentCategory())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	result, err := l.Execute(context.Background(), "payment", "initializeTransaction",
		map[string]interface{}{"amount": 500000.0, "email": "a@b.com"}, "", nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if reg.lastIn["amount_kobo"] != 500000.0 || reg.lastIn["customer_email"] != "a@b.com" {
		t.Fatalf("expected transformed vendor input, got %+v", reg.lastIn)
	}
	if len(reg.calls) != 1 || reg.calls[0] != "paystack:initialize-transaction" {
		t.Fatalf("expected dispatch to paystack:initialize-transaction, got %+v", reg.calls)
	}
	m := result.(map[string]interface{})
	if _, present := m["vendor"]; present {
		t.Fatal("expected vendor identifier to be stripped from response")
	}
}

func TestExecuteMissingRequiredFieldIsSchemaViolation(t *testing.T) {
	reg := &fakeRegistry{}
	l, _ := vendorabstraction.New(reg, paymentCategory())

	_, err := l.Execute(context.Background(), "payment", "initializeTransaction",
		map[string]interface{}{"email": "a@b.com"}, "", nil)
	if !gatewayerr.Is(err, gatewayerr.SchemaViolation) {
		t.Fatalf("expected SCHEMA_VIOLATION, got %v", err)
	}
	if len(reg.calls) != 0 {
		t.Fatal("expected no adapter dispatch on schema violation")
	}
}

func TestExecuteUnknownCategoryIsAbstractionNotFound(t *testing.T) {
	l, _ := vendorabstraction.New(&fakeRegistry{}, paymentCategory())
	_, err := l.Execute(context.Background(), "shipping", "quote", nil, "", nil)
	if !gatewayerr.Is(err, gatewayerr.AbstractionNotFound) {
		t.Fatalf("expected ABSTRACTION_NOT_FOUND, got %v", err)
	}
}

func TestExecuteNoHealthyVendorIsNoVendorAvailable(t *testing.T) {
	cats := paymentCategory()
	cats["payment"].Vendors["paystack"].Healthy = false
	l, _ := vendorabstraction.New(&fakeRegistry{}, cats)

	_, err := l.Execute(context.Background(), "payment", "initializeTransaction",
		map[string]interface{}{"amount": 1.0, "email": "a@b.com"}, "", nil)
	if !gatewayerr.Is(err, gatewayerr.NoVendorAvailable) {
		t.Fatalf("expected NO_VENDOR_AVAILABLE, got %v", err)
	}
}

func TestRemoveVendorEnforcesThirtyDayGuard(t *testing.T) {
	cats := paymentCategory()
	recent := time.Now().Add(-1 * time.Hour)
	cats["payment"].Vendors["paystack"].DeprecatedAt = &recent
	l, _ := vendorabstraction.New(&fakeRegistry{}, cats)

	if err := l.RemoveVendor("payment", "paystack"); !gatewayerr.Is(err, gatewayerr.VendorRemovalTooSoon) {
		t.Fatalf("expected VENDOR_REMOVAL_TOO_SOON, got %v", err)
	}

	old := time.Now().Add(-31 * 24 * time.Hour)
	cats["payment"].Vendors["paystack"].DeprecatedAt = &old
	if err := l.RemoveVendor("payment", "paystack"); err != nil {
		t.Fatalf("expected removal to succeed after guard window, got %v", err)
	}
}
