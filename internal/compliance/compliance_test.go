package compliance_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridiangw/gateway/internal/compliance"
	"github.com/meridiangw/gateway/internal/gatewayerr"
	"github.com/meridiangw/gateway/pkg/models"
)

type memSink struct {
	entries []models.AuditEntry
}

func (m *memSink) Append(_ context.Context, e models.AuditEntry) error {
	m.entries = append(m.entries, e)
	return nil
}
func (m *memSink) Close() error { return nil }

func pciService() *models.ServiceDescriptor {
	return &models.ServiceDescriptor{Name: "paystack", Compliance: models.Compliance{PCI: true}}
}

func TestFilterRequest_MasksCardAndRemovesProhibitedFields(t *testing.T) {
	sink := &memSink{}
	p := compliance.New(compliance.DefaultFieldLists(), compliance.Config{}, sink)

	out, err := p.FilterRequest(context.Background(), pciService(), "charge-card", map[string]interface{}{
		"cardNumber": "4111111111111111",
		"cvv2":       "123",
		"amount":     1000,
	})
	require.NoError(t, err)
	assert.Equal(t, "411111******1111", out["cardNumber"])
	_, hasCVV := out["cvv2"]
	assert.False(t, hasCVV)

	for _, e := range sink.entries {
		for _, v := range e.Details {
			assert.NotEqual(t, "123", v, "raw PCI value must never reach the audit log")
		}
	}
}

func TestFilterRequest_GDPRConsentRequired(t *testing.T) {
	sink := &memSink{}
	p := compliance.New(compliance.DefaultFieldLists(), compliance.Config{}, sink)
	svc := &models.ServiceDescriptor{Name: "svc", Compliance: models.Compliance{GDPR: true}}

	_, err := p.FilterRequest(context.Background(), svc, "track-event", map[string]interface{}{
		"email": "a@b.com",
	})
	require.Error(t, err)
	assert.True(t, gatewayerr.Is(err, gatewayerr.GDPRConsentRequired))
}

func TestFilterRequest_GDPRPseudonymizesWithConsent(t *testing.T) {
	sink := &memSink{}
	p := compliance.New(compliance.DefaultFieldLists(), compliance.Config{}, sink)
	svc := &models.ServiceDescriptor{Name: "svc", Compliance: models.Compliance{GDPR: true}}

	out, err := p.FilterRequest(context.Background(), svc, "track-event", map[string]interface{}{
		"email":     "a@b.com",
		"consentId": "c1",
	})
	require.NoError(t, err)
	assert.NotEqual(t, "a@b.com", out["email"])
	assert.Regexp(t, `^pn_[0-9a-f]+$`, out["email"])
}

func TestFilterRequest_PSD2RequiresSCAAboveThreshold(t *testing.T) {
	sink := &memSink{}
	p := compliance.New(compliance.DefaultFieldLists(), compliance.Config{SCAThreshold: 30}, sink)
	svc := &models.ServiceDescriptor{Name: "svc", Compliance: models.Compliance{PSD2: true}}

	_, err := p.FilterRequest(context.Background(), svc, "transfer-funds", map[string]interface{}{
		"amount": 100.0,
	})
	require.Error(t, err)
	assert.True(t, gatewayerr.Is(err, gatewayerr.SCARequired))

	_, err = p.FilterRequest(context.Background(), svc, "transfer-funds", map[string]interface{}{
		"amount":     100.0,
		"scaFactors": []interface{}{"knowledge", "possession"},
	})
	require.NoError(t, err)
}

func TestFilterRequest_PSD2BelowThresholdPasses(t *testing.T) {
	sink := &memSink{}
	p := compliance.New(compliance.DefaultFieldLists(), compliance.Config{SCAThreshold: 30}, sink)
	svc := &models.ServiceDescriptor{Name: "svc", Compliance: models.Compliance{PSD2: true}}

	_, err := p.FilterRequest(context.Background(), svc, "transfer-funds", map[string]interface{}{
		"amount": 10.0,
	})
	require.NoError(t, err)
}

func TestValidate_AggregatesAcrossRegulations(t *testing.T) {
	p := compliance.New(compliance.DefaultFieldLists(), compliance.Config{}, nil)
	svc := &models.ServiceDescriptor{
		Name:       "svc",
		Compliance: models.Compliance{PCI: true, SOX: true},
	}

	report := p.Validate(context.Background(), svc)
	assert.Equal(t, "NON_COMPLIANT", report.Overall)
	assert.False(t, report.Regulations["pci"].Compliant)
	assert.False(t, report.Regulations["sox"].Compliant)
}

func TestMaskCardNumberBoundary(t *testing.T) {
	sink := &memSink{}
	p := compliance.New(compliance.DefaultFieldLists(), compliance.Config{}, sink)
	short := "123456789012" // 12 chars, below the 13-char masking floor
	out, err := p.FilterRequest(context.Background(), pciService(), "charge-card", map[string]interface{}{
		"cardNumber": short,
	})
	require.NoError(t, err)
	assert.Equal(t, short, out["cardNumber"])
}
