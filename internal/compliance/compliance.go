// Package compliance implements the Compliance Pipeline: regulation
// validators, PCI/GDPR/PSD2 data-handling filters, and the append-only
// audit log.
package compliance

import (
	"context"
	"sync"
	"time"

	"github.com/meridiangw/gateway/internal/gatewayerr"
	"github.com/meridiangw/gateway/pkg/contracts"
	"github.com/meridiangw/gateway/pkg/models"
)

// FieldLists are the PCI/GDPR configuration the pipeline reads at startup;
// kept as data, not code constants, so operators can tune
// them without a rebuild.
type FieldLists struct {
	ProhibitedPCIFields []string
	PseudonymizeFields  []string
	ConsentFields       []string
	AnalyticsAllowList  []string
}

// DefaultFieldLists mirrors 's named prohibited PCI fields.
func DefaultFieldLists() FieldLists {
	return FieldLists{
		ProhibitedPCIFields: []string{"cvv2", "cvc2", "cid", "cav2", "track1", "track2", "magneticStripe", "pin", "pinBlock"},
		PseudonymizeFields:  []string{"email", "phone", "ssn", "customerId"},
		ConsentFields:       []string{"email", "phone", "deviceId", "location"},
		AnalyticsAllowList:  []string{"amount", "currency", "category", "timestamp"},
	}
}

// Config parameterizes the PSD2/encryption behavior.
type Config struct {
	SCAThreshold  float64 // amount above which SCA is required; default 30
	EncryptionKey []byte  // 32 bytes, AES-256-GCM
	PseudonymSalt []byte
}

// Pipeline is the concrete contracts.ComplianceFilter implementation.
type Pipeline struct {
	fields FieldLists
	cfg    Config
	audit  contracts.AuditSink

	mu        sync.Mutex
	reportsMu sync.RWMutex
	reports   map[string]models.ComplianceReport

	ledger *scaLedger
}

// New builds a Pipeline with the given field lists, config, and audit sink.
func New(fields FieldLists, cfg Config, audit contracts.AuditSink) *Pipeline {
	if cfg.SCAThreshold == 0 {
		cfg.SCAThreshold = 30
	}
	return &Pipeline{
		fields:  fields,
		cfg:     cfg,
		audit:   audit,
		reports: make(map[string]models.ComplianceReport),
		ledger:  newSCALedger(),
	}
}

// Validate runs every enabled regulation's predicate against the service
// descriptor and caches the aggregated verdict.
func (p *Pipeline) Validate(ctx context.Context, svc *models.ServiceDescriptor) models.ComplianceReport {
	regs := make(map[string]models.ComplianceResult)
	overall := "COMPLIANT"
	var allViolations []string

	check := func(name string, enabled bool, fn func() models.ComplianceResult) {
		if !enabled {
			return
		}
		r := fn()
		regs[name] = r
		if !r.Compliant {
			overall = "NON_COMPLIANT"
			allViolations = append(allViolations, r.Violations...)
		}
	}

	check("pci", svc.Compliance.PCI, func() models.ComplianceResult { return validatePCI(svc) })
	check("gdpr", svc.Compliance.GDPR, func() models.ComplianceResult { return validateGDPR(svc) })
	check("psd2", svc.Compliance.PSD2, func() models.ComplianceResult { return validatePSD2(svc) })
	check("sox", svc.Compliance.SOX, func() models.ComplianceResult { return validateSOX(svc) })
	check("hipaa", svc.Compliance.HIPAA, func() models.ComplianceResult { return validateHIPAA(svc) })

	report := models.ComplianceReport{
		ServiceName: svc.Name,
		Overall:     overall,
		Regulations: regs,
		Violations:  allViolations,
		LastChecked: time.Now(),
	}

	p.reportsMu.Lock()
	p.reports[svc.Name] = report
	p.reportsMu.Unlock()

	return report
}

// Report returns the last cached Validate result for a service, if any.
func (p *Pipeline) Report(serviceName string) (models.ComplianceReport, bool) {
	p.reportsMu.RLock()
	defer p.reportsMu.RUnlock()
	r, ok := p.reports[serviceName]
	return r, ok
}

func validatePCI(svc *models.ServiceDescriptor) models.ComplianceResult {
	if t := svc.Authentication.Type; t == "" || t == models.AuthNone {
		return models.ComplianceResult{Compliant: false, Violations: []string{"PCI requires an authenticated transport"}}
	}
	return models.ComplianceResult{Compliant: true}
}

func validateGDPR(svc *models.ServiceDescriptor) models.ComplianceResult {
	return models.ComplianceResult{Compliant: true, Recommendations: []string{"ensure consentId accompanies personal-identifier fields"}}
}

func validatePSD2(svc *models.ServiceDescriptor) models.ComplianceResult {
	return models.ComplianceResult{Compliant: true, Recommendations: []string{"Strong Customer Authentication required above the configured threshold"}}
}

func validateSOX(svc *models.ServiceDescriptor) models.ComplianceResult {
	if len(svc.Metadata["auditTrail"]) == 0 {
		return models.ComplianceResult{Compliant: false, Violations: []string{"SOX requires an auditTrail metadata entry"}}
	}
	return models.ComplianceResult{Compliant: true}
}

func validateHIPAA(svc *models.ServiceDescriptor) models.ComplianceResult {
	if t := svc.Authentication.Type; t == "" || t == models.AuthNone {
		return models.ComplianceResult{Compliant: false, Violations: []string{"HIPAA requires an authenticated transport"}}
	}
	return models.ComplianceResult{Compliant: true}
}

var _ contracts.ComplianceFilter = (*Pipeline)(nil)

// appendAudit is a small helper shared by the filter methods so every
// data-handling invocation is recorded the same way.
func (p *Pipeline) appendAudit(ctx context.Context, action string, details map[string]interface{}) {
	if p.audit == nil {
		return
	}
	_ = p.audit.Append(ctx, models.AuditEntry{
		Timestamp: time.Now(),
		Action:    action,
		Details:   details,
	})
}

// errComplianceViolation is a convenience wrapper around gatewayerr.
func errComplianceViolation(message string) error {
	return gatewayerr.NewDefault(gatewayerr.ComplianceViolation, message)
}
