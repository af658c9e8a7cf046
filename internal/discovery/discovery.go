package discovery

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/meridiangw/gateway/internal/gatewayerr"
	"github.com/meridiangw/gateway/pkg/contracts"
	"github.com/meridiangw/gateway/pkg/models"
)

// Registry is the slice of contracts.AdapterRegistry the discovery layer
// needs, plus Mocks() for listing placeholder adapters — the registry
// package's concrete *registry.Registry satisfies this without discovery
// importing it directly.
type Registry interface {
	contracts.AdapterRegistry
	Mocks() []contracts.MockAdapter
}

// CatalogSource supplies service descriptors for gateway.adapters
// (supported countries/currencies, auth type).
type CatalogSource interface {
	Services() []models.ServiceDescriptor
}

// Discovery implements the MCP Discovery Layer: the operation index, the
// search engine, and the five meta-tools.
type Discovery struct {
	registry Registry
	catalog  CatalogSource
	ops      *OperationRegistry
}

// New builds a Discovery bound to a registry and catalog, and performs the
// initial index build.
func New(registry Registry, catalog CatalogSource) *Discovery {
	d := &Discovery{registry: registry, catalog: catalog, ops: NewOperationRegistry()}
	d.Reindex()
	return d
}

// Reindex rebuilds the operation index from the current registry state.
func (d *Discovery) Reindex() { d.ops.Rebuild(d.registry) }

var toolIDPattern = regexp.MustCompile(`^[a-z0-9-]+:[a-z0-9-]+$`)

// ── gateway.intent ───────────────────────────────────────────

// ReadyToExecute is the "you can call this now" shape attached to the top
// search result of gateway.intent.
type ReadyToExecute struct {
	ToolID         string                 `json:"tool_id"`
	RequiredParams []string               `json:"required_params"`
	OptionalParams []string               `json:"optional_params"`
	ParamSchemas   map[string]interface{} `json:"param_schemas,omitempty"`
	Example        map[string]interface{} `json:"example"`
	Constraints    ExecutionConstraints   `json:"constraints"`
}

// ExecutionConstraints summarizes the policy gates gateway.execute will
// enforce for this operation.
type ExecutionConstraints struct {
	RiskLevel            models.RiskLevel `json:"risk_level"`
	RequiresIdempotency  bool             `json:"requires_idempotency"`
	RequiresConfirmation bool             `json:"requires_confirmation"`
}

// Recommendation is one intent search candidate.
type Recommendation struct {
	ToolID     string  `json:"tool_id"`
	Confidence float64 `json:"confidence"`
	Why        string  `json:"why"`
}

// IntentResult is the full gateway.intent response.
type IntentResult struct {
	Recommended    *Recommendation   `json:"recommended,omitempty"`
	ReadyToExecute *ReadyToExecute   `json:"ready_to_execute,omitempty"`
	MissingInputs  []string          `json:"missing_inputs,omitempty"`
	NextStep       string            `json:"next_step"`
	Alternatives   []Recommendation  `json:"alternatives,omitempty"`
}

// Intent implements gateway.intent: natural-language search over the
// operation index.
func (d *Discovery) Intent(query, adapterHint string, opts SearchOptions, limit int) IntentResult {
	if limit <= 0 {
		limit = 3
	}
	opts.PreferredAdapter = adapterHint
	results := d.ops.Search(query, opts)
	if len(results) == 0 {
		return IntentResult{NextStep: "no matching operations found; try gateway.tools or gateway.adapters to browse"}
	}
	if len(results) > limit {
		results = results[:limit]
	}

	top := results[0]
	res := IntentResult{
		Recommended: &Recommendation{ToolID: top.Operation.ToolID, Confidence: top.Confidence, Why: top.Why},
	}
	for _, r := range results[1:] {
		res.Alternatives = append(res.Alternatives, Recommendation{ToolID: r.Operation.ToolID, Confidence: r.Confidence, Why: r.Why})
	}

	if top.NeedsSelection {
		res.NextStep = "confidence is ambiguous between the top candidates; call gateway.tools or inspect alternatives before executing"
		return res
	}

	op := top.Operation
	res.ReadyToExecute = &ReadyToExecute{
		ToolID:         op.ToolID,
		RequiredParams: op.RequiredParams,
		OptionalParams: op.OptionalParams,
		ParamSchemas:   op.InputSchema,
		Example:        synthesizeExample(op),
		Constraints: ExecutionConstraints{
			RiskLevel:            op.RiskLevel,
			RequiresIdempotency:  op.RiskLevel == models.RiskHigh,
			RequiresConfirmation: destructiveRiskNames.MatchString(op.Name),
		},
	}
	res.NextStep = fmt.Sprintf("call gateway.execute with tool_id %q", op.ToolID)
	return res
}

// ── gateway.execute ──────────────────────────────────────────

// ExecuteOptions carries the policy-gate inputs accompanying a tool call.
type ExecuteOptions struct {
	IdempotencyKey string
	Confirmed      bool
	DryRun         bool
}

// ExecuteMeta is attached to every successful gateway.execute response.
type ExecuteMeta struct {
	Adapter         string    `json:"adapter"`
	Tool            string    `json:"tool"`
	RequestID       string    `json:"request_id,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
	OperationRisk   string    `json:"risk_level"`
	OperationCat    string    `json:"category,omitempty"`
	ExecutionTimeMS int64     `json:"execution_time_ms"`
}

// ExecuteResult is the gateway.execute response envelope.
type ExecuteResult struct {
	Success         bool                   `json:"success"`
	Result          interface{}            `json:"result,omitempty"`
	Meta            *ExecuteMeta           `json:"meta,omitempty"`
	DryRun          bool                   `json:"dry_run,omitempty"`
	Validation      string                 `json:"validation,omitempty"`
	OperationMeta   *models.Operation      `json:"operation_meta,omitempty"`
	Error           *ExecuteError          `json:"error,omitempty"`
	ExecutionTimeMS int64                  `json:"execution_time_ms,omitempty"`
}

// ExecuteError is the error shape nested in a failed ExecuteResult.
type ExecuteError struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Adapter  string `json:"adapter,omitempty"`
	Tool     string `json:"tool,omitempty"`
	Expected string `json:"expected,omitempty"`
	Received string `json:"received,omitempty"`
}

// Execute implements gateway.execute's full policy pipeline: id format,
// resolution, idempotency/confirmation gates, param validation, dry-run
// short-circuit, then dispatch.
func (d *Discovery) Execute(ctx context.Context, toolID string, params map[string]interface{}, opts ExecuteOptions, cc *contracts.CallContext) ExecuteResult {
	if !toolIDPattern.MatchString(toolID) {
		return errResult(gatewayerr.InvalidToolIDFormat, "tool_id must match ^[a-z0-9-]+:[a-z0-9-]+$")
	}

	resolved, ok := d.registry.ResolveTool(toolID)
	if !ok {
		return errResult(gatewayerr.ToolNotFound, "no tool registered for id "+toolID)
	}

	op, ok := d.ops.Get(resolved.CanonicalID)
	if !ok {
		op = models.Operation{ToolID: resolved.CanonicalID, Adapter: resolved.AdapterID, Name: resolved.Tool.Name, RiskLevel: models.RiskMedium}
	}

	if op.RiskLevel == models.RiskHigh && opts.IdempotencyKey == "" {
		return errResult(gatewayerr.IdempotencyRequired, "high-risk operations require options.idempotency_key")
	}
	if destructiveRiskNames.MatchString(resolved.Tool.Name) && !opts.Confirmed {
		return errResult(gatewayerr.ConfirmationRequired, "this operation requires options.confirmed=true")
	}

	if violations := validateParams(resolved.Tool.InputSchema, params); len(violations) > 0 {
		code := primaryCode(violations)
		var expected, received string
		for _, v := range violations {
			if v.Code == code {
				expected, received = v.Expected, v.Received
				break
			}
		}
		return ExecuteResult{Success: false, Error: &ExecuteError{
			Code:     string(code),
			Message:  violationsSummary(violations),
			Expected: expected,
			Received: received,
		}}
	}

	if opts.DryRun {
		opCopy := op
		return ExecuteResult{Success: true, DryRun: true, Validation: "passed", OperationMeta: &opCopy}
	}

	start := time.Now()
	result, err := d.registry.CallTool(ctx, toolID, params, cc)
	elapsed := time.Since(start).Milliseconds()

	meta := &ExecuteMeta{
		Adapter:         resolved.AdapterID,
		Tool:            resolved.Tool.Name,
		Timestamp:       start,
		OperationRisk:   string(op.RiskLevel),
		OperationCat:    op.Category,
		ExecutionTimeMS: elapsed,
	}
	if cc != nil {
		meta.RequestID = cc.RequestID
	}

	if err != nil {
		if gatewayerr.Is(err, gatewayerr.MockAdapter) {
			return ExecuteResult{Success: false, Error: &ExecuteError{Code: string(gatewayerr.MockAdapter), Message: err.Error()}, ExecutionTimeMS: elapsed}
		}
		return ExecuteResult{Success: false, Error: &ExecuteError{
			Code:    string(gatewayerr.ExecutionError),
			Message: err.Error(),
			Adapter: resolved.AdapterID,
			Tool:    resolved.Tool.Name,
		}, ExecutionTimeMS: elapsed}
	}

	return ExecuteResult{Success: true, Result: result, Meta: meta}
}

func errResult(code gatewayerr.Code, message string) ExecuteResult {
	return ExecuteResult{Success: false, Error: &ExecuteError{Code: string(code), Message: message}}
}

// ── gateway.adapters ─────────────────────────────────────────

// AdapterSummary is one gateway.adapters catalog entry.
type AdapterSummary struct {
	ID                  string          `json:"id"`
	Name                string          `json:"name"`
	Category            string          `json:"category"`
	Capabilities        []string        `json:"capabilities,omitempty"`
	SupportedCountries  []string        `json:"supported_countries,omitempty"`
	SupportedCurrencies []string        `json:"supported_currencies,omitempty"`
	ToolCount           int             `json:"tool_count"`
	ToolCategories      []string        `json:"tool_categories,omitempty"`
	AuthType            models.AuthType `json:"auth_type,omitempty"`
	Status              string          `json:"status"`
	IsMock              bool            `json:"is_mock"`
	CommonOperations    []string        `json:"common_operations,omitempty"`
}

var commonOpNames = regexp.MustCompile(`(?i)\b(list|get|create|initialize|verify)\b`)

// Adapters implements gateway.adapters: a filtered catalog view.
func (d *Discovery) Adapters(category, capability, country string) []AdapterSummary {
	descByName := make(map[string]models.ServiceDescriptor)
	if d.catalog != nil {
		for _, s := range d.catalog.Services() {
			descByName[s.Name] = s
		}
	}

	var out []AdapterSummary
	for _, a := range d.registry.Adapters() {
		if category != "" && !strings.EqualFold(a.Category(), category) {
			continue
		}
		if capability != "" && !containsFold(a.Capabilities(), capability) {
			continue
		}
		desc := descByName[a.ID()]
		if country != "" && !containsFold(desc.SupportedCountries, country) {
			continue
		}

		var common []string
		for _, t := range a.Tools() {
			if commonOpNames.MatchString(t.Name) {
				common = append(common, t.Name)
			}
		}

		out = append(out, AdapterSummary{
			ID:                  a.ID(),
			Name:                a.Name(),
			Category:            a.Category(),
			Capabilities:        a.Capabilities(),
			SupportedCountries:  desc.SupportedCountries,
			SupportedCurrencies: desc.SupportedCurrencies,
			ToolCount:           len(a.Tools()),
			AuthType:            desc.Authentication.Type,
			Status:              "active",
			CommonOperations:    common,
		})
	}
	for _, m := range d.registry.Mocks() {
		if category != "" && !strings.EqualFold(m.Category(), category) {
			continue
		}
		out = append(out, AdapterSummary{
			ID:        m.ID(),
			Category:  m.Category(),
			ToolCount: m.ToolCount(),
			AuthType:  m.AuthType(),
			Status:    "mock",
			IsMock:    true,
		})
	}
	return out
}

func containsFold(haystack []string, needle string) bool {
	for _, h := range haystack {
		if strings.EqualFold(h, needle) {
			return true
		}
	}
	return false
}

// ── gateway.tools ────────────────────────────────────────────

// ToolSummary is one gateway.tools row.
type ToolSummary struct {
	ToolID      string           `json:"tool_id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	RiskLevel   models.RiskLevel `json:"risk_level"`
	Category    string           `json:"category,omitempty"`
}

// ToolsPage is the paginated gateway.tools response.
type ToolsPage struct {
	Tools  []ToolSummary `json:"tools"`
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// Tools implements gateway.tools: a paginated, optionally filtered,
// per-adapter tool list.
func (d *Discovery) Tools(adapter, category, search string, limit, offset int) (ToolsPage, error) {
	if adapter == "" {
		return ToolsPage{}, gatewayerr.NewDefault(gatewayerr.AdapterRequired, "adapter is required")
	}
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	found := false
	for _, a := range d.registry.Adapters() {
		if a.ID() == adapter {
			found = true
			break
		}
	}
	if !found {
		for _, m := range d.registry.Mocks() {
			if m.ID() == adapter {
				found = true
				break
			}
		}
	}
	if !found {
		return ToolsPage{}, gatewayerr.NewDefault(gatewayerr.AdapterNotFound, "adapter "+adapter+" not found")
	}

	var all []ToolSummary
	for _, op := range d.ops.All() {
		if op.Adapter != adapter {
			continue
		}
		if category != "" && !strings.EqualFold(op.Category, category) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(op.Name+" "+op.Description), strings.ToLower(search)) {
			continue
		}
		all = append(all, ToolSummary{ToolID: op.ToolID, Name: op.Name, Description: op.Description, RiskLevel: op.RiskLevel, Category: op.Category})
	}

	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return ToolsPage{Tools: all[offset:end], Total: total, Limit: limit, Offset: offset}, nil
}
