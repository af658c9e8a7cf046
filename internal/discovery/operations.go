// Package discovery implements the MCP Discovery Layer: the Operation
// Registry, the Search Engine, and the five meta-tools
// (gateway.intent, gateway.execute, gateway.adapters, gateway.tools,
// gateway.reference) that let callers find, introspect, and safely execute
// any of the underlying adapter tools without loading all of them as
// first-class MCP tools.
package discovery

import (
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/meridiangw/gateway/pkg/models"
)

var (
	lowRiskNames         = regexp.MustCompile(`(?i)\b(list|get|fetch|search|health|read|view)\b`)
	highRiskNames        = regexp.MustCompile(`(?i)\b(pay|transfer|charge|disburse|payout|authorize)\b`)
	destructiveRiskNames = regexp.MustCompile(`(?i)\b(delete|cancel|remove|revoke|rotate)\b`)
	highRiskCategories   = map[string]bool{"payments": true, "banking": true, "financial": true}
)

// classifyRisk implements 's ordering: low, then high
// (name or category), then destructive, else medium.
func classifyRisk(name, category string) models.RiskLevel {
	switch {
	case lowRiskNames.MatchString(name):
		return models.RiskLow
	case highRiskNames.MatchString(name) || highRiskCategories[strings.ToLower(category)]:
		return models.RiskHigh
	case destructiveRiskNames.MatchString(name):
		return models.RiskDestructive
	default:
		return models.RiskMedium
	}
}

// OperationRegistry is built from adapters at initialization; rebuilt only
// on explicit re-index (Rebuild).
type OperationRegistry struct {
	mu    sync.RWMutex
	byID  map[string]models.Operation
	order []string // registration order, for deterministic iteration
}

// NewOperationRegistry builds an empty registry; call Rebuild to populate it.
func NewOperationRegistry() *OperationRegistry {
	return &OperationRegistry{byID: make(map[string]models.Operation)}
}

// Rebuild derives one Operation per adapter tool (plus a placeholder per
// mock adapter) from the current state of the adapter registry.
func (o *OperationRegistry) Rebuild(reg Registry) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.byID = make(map[string]models.Operation)
	o.order = nil

	for _, a := range reg.Adapters() {
		for _, tool := range a.Tools() {
			toolID := a.ID() + ":" + strings.ReplaceAll(tool.Name, "_", "-")
			op := models.Operation{
				ToolID:         toolID,
				Adapter:        a.ID(),
				Name:           tool.Name,
				Description:    tool.Description,
				Category:       a.Category(),
				RiskLevel:      classifyRisk(tool.Name, a.Category()),
				InputSchema:    tool.InputSchema,
				RequiredParams: requiredParams(tool.InputSchema),
				OptionalParams: optionalParams(tool.InputSchema),
			}
			o.byID[toolID] = op
			o.order = append(o.order, toolID)
		}
	}
	for _, m := range reg.Mocks() {
		for i := 0; i < m.ToolCount(); i++ {
			name := "placeholder-" + strconv.Itoa(i)
			toolID := m.ID() + ":" + name
			op := models.Operation{
				ToolID:    toolID,
				Adapter:   m.ID(),
				Name:      name,
				Category:  m.Category(),
				RiskLevel: models.RiskMedium,
				IsMock:    true,
			}
			o.byID[toolID] = op
			o.order = append(o.order, toolID)
		}
	}
}

// Get returns the operation for a known tool ID.
func (o *OperationRegistry) Get(toolID string) (models.Operation, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	op, ok := o.byID[toolID]
	return op, ok
}

// All returns every indexed operation in registration order.
func (o *OperationRegistry) All() []models.Operation {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]models.Operation, 0, len(o.order))
	for _, id := range o.order {
		out = append(out, o.byID[id])
	}
	return out
}

func requiredParams(schema map[string]interface{}) []string {
	if schema == nil {
		return nil
	}
	req, _ := schema["required"].([]interface{})
	out := make([]string, 0, len(req))
	for _, r := range req {
		if s, ok := r.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func optionalParams(schema map[string]interface{}) []string {
	if schema == nil {
		return nil
	}
	props, _ := schema["properties"].(map[string]interface{})
	required := make(map[string]bool)
	for _, r := range requiredParams(schema) {
		required[r] = true
	}
	out := make([]string, 0, len(props))
	for name := range props {
		if !required[name] {
			out = append(out, name)
		}
	}
	return out
}
