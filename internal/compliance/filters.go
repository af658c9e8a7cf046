package compliance

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/meridiangw/gateway/internal/gatewayerr"
	"github.com/meridiangw/gateway/pkg/models"
)

var paymentOperationNames = []string{"pay", "transfer", "charge", "disburse", "payout", "account"}

func isPaymentOperation(operation string) bool {
	lower := strings.ToLower(operation)
	for _, n := range paymentOperationNames {
		if strings.Contains(lower, n) {
			return true
		}
	}
	return false
}

// FilterRequest runs the enabled PCI/GDPR/PSD2 data-handling filters on an
// outbound payload, in that order.
func (p *Pipeline) FilterRequest(ctx context.Context, svc *models.ServiceDescriptor, operation string, payload map[string]interface{}) (map[string]interface{}, error) {
	out := cloneMap(payload)
	var err error

	if svc.Compliance.PCI {
		out, err = p.filterPCI(ctx, svc.Name, out)
		if err != nil {
			return nil, err
		}
	}
	if svc.Compliance.GDPR {
		out, err = p.filterGDPR(ctx, svc.Name, operation, out)
		if err != nil {
			return nil, err
		}
	}
	if svc.Compliance.PSD2 {
		if err := p.checkPSD2(ctx, svc.Name, operation, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// FilterResponse runs response-side data handling. Only PCI masking applies
// to inbound vendor payloads today; GDPR/PSD2 are request-side gates.
func (p *Pipeline) FilterResponse(ctx context.Context, svc *models.ServiceDescriptor, payload map[string]interface{}) (map[string]interface{}, error) {
	if !svc.Compliance.PCI {
		return payload, nil
	}
	out, err := p.filterPCI(ctx, svc.Name, cloneMap(payload))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// filterPCI masks card numbers, encrypts designated sensitive fields, and
// deletes strictly prohibited fields. Every removal is audited without the
// raw value ever entering the log.
func (p *Pipeline) filterPCI(ctx context.Context, service string, payload map[string]interface{}) (map[string]interface{}, error) {
	for _, field := range p.fields.ProhibitedPCIFields {
		if _, ok := payload[field]; ok {
			delete(payload, field)
			p.appendAudit(ctx, "PCI_FIELD_REMOVED", map[string]interface{}{"service": service, "field": field})
		}
	}

	if raw, ok := payload["cardNumber"]; ok {
		if s, ok := raw.(string); ok {
			payload["cardNumber"] = maskCardNumber(s)
			p.appendAudit(ctx, "PCI_FIELD_MASKED", map[string]interface{}{"service": service, "field": "cardNumber"})
		}
	}

	for _, field := range sensitiveEncryptFields {
		raw, ok := payload[field]
		if !ok {
			continue
		}
		s, ok := raw.(string)
		if !ok || len(p.cfg.EncryptionKey) == 0 {
			continue
		}
		enc, err := encryptField(p.cfg.EncryptionKey, s)
		if err != nil {
			return nil, fmt.Errorf("encrypt field %s: %w", field, err)
		}
		payload[field] = enc
		p.appendAudit(ctx, "PCI_FIELD_ENCRYPTED", map[string]interface{}{"service": service, "field": field})
	}

	return payload, nil
}

// sensitiveEncryptFields are PCI fields that are kept (not deleted) and
// encrypted when an EncryptionKey is configured; without a key, or when the
// value is not a string, they pass through unchanged.
var sensitiveEncryptFields = []string{"accountNumber", "iban"}

// filterGDPR pseudonymizes listed personal identifiers, minimizes analytics
// payloads to an allow-list, and enforces consent on any consent-requiring
// field.
func (p *Pipeline) filterGDPR(ctx context.Context, service, operation string, payload map[string]interface{}) (map[string]interface{}, error) {
	consentID, hasConsent := payload["consentId"]
	_ = consentID

	for _, field := range p.fields.ConsentFields {
		if _, present := payload[field]; present && !hasConsent {
			p.appendAudit(ctx, "GDPR_CONSENT_MISSING", map[string]interface{}{"service": service, "field": field})
			return nil, gatewayerr.NewDefault(gatewayerr.GDPRConsentRequired, fmt.Sprintf("field %q requires an accompanying consentId", field))
		}
	}

	for _, field := range p.fields.PseudonymizeFields {
		raw, ok := payload[field]
		if !ok {
			continue
		}
		s, ok := raw.(string)
		if !ok {
			continue
		}
		payload[field] = pseudonymize(p.cfg.PseudonymSalt, s)
		p.appendAudit(ctx, "GDPR_FIELD_PSEUDONYMIZED", map[string]interface{}{"service": service, "field": field})
	}

	if strings.Contains(strings.ToLower(operation), "analytics") {
		allowed := make(map[string]struct{}, len(p.fields.AnalyticsAllowList))
		for _, f := range p.fields.AnalyticsAllowList {
			allowed[f] = struct{}{}
		}
		minimized := make(map[string]interface{}, len(allowed))
		for k, v := range payload {
			if _, ok := allowed[k]; ok {
				minimized[k] = v
			}
		}
		p.appendAudit(ctx, "GDPR_PAYLOAD_MINIMIZED", map[string]interface{}{"service": service, "operation": operation})
		return minimized, nil
	}

	return payload, nil
}

// scaFactorKinds are the three factor categories PSD2 Strong Customer
// Authentication draws from; at least two distinct kinds must be present.
var scaFactorKinds = map[string]bool{"knowledge": true, "possession": true, "inherence": true}

// checkPSD2 enforces Strong Customer Authentication on payment/transfer/
// account-access operations whose amount, or 24h cumulative total, exceeds
// the configured threshold.
func (p *Pipeline) checkPSD2(ctx context.Context, service, operation string, payload map[string]interface{}) error {
	if !isPaymentOperation(operation) {
		return nil
	}

	amount, ok := amountOf(payload)
	if !ok {
		return nil
	}

	total := amount
	if ref, ok := payerReference(payload); ok {
		total = p.ledger.recordAndSum(service+"|"+ref, amount, time.Now())
	}

	if amount <= p.cfg.SCAThreshold && total <= p.cfg.SCAThreshold {
		return nil
	}

	factors, _ := payload["scaFactors"].([]interface{})
	distinct := map[string]bool{}
	for _, f := range factors {
		if s, ok := f.(string); ok && scaFactorKinds[s] {
			distinct[s] = true
		}
	}
	if len(distinct) < 2 {
		p.appendAudit(ctx, "PSD2_SCA_REQUIRED", map[string]interface{}{"service": service, "operation": operation, "amount": amount, "cumulative": total})
		return gatewayerr.NewDefault(gatewayerr.SCARequired, "strong customer authentication requires at least two distinct factors")
	}
	return nil
}

func amountOf(payload map[string]interface{}) (float64, bool) {
	raw, ok := payload["amount"]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// payerReference picks whichever of email/accountId/reference is present,
// first match wins.
func payerReference(payload map[string]interface{}) (string, bool) {
	for _, key := range []string{"email", "accountId", "reference"} {
		if v, ok := payload[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
