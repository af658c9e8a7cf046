package registry

import (
	"context"

	"github.com/meridiangw/gateway/pkg/contracts"
	"github.com/meridiangw/gateway/pkg/models"
)

// LegacyFunc is the shape of an adapter whose callTool predates the
// three-argument (toolName, args, context) convention: it only accepts a
// single wrapped payload. The registry calls it with
// {data: args, headers: context.headers} and wraps the return value as
// {data, headers}.
type LegacyFunc func(ctx context.Context, toolName string, wrapped map[string]interface{}) (interface{}, error)

// LegacyAdapter adapts a LegacyFunc to the contracts.Adapter interface so it
// can be registered and resolved exactly like a canonical adapter; only the
// dispatch shape of CallTool differs.
type LegacyAdapter struct {
	IDValue           string
	NameValue         string
	DescriptionValue  string
	CategoryValue     string
	CapabilitiesValue []string
	ToolsValue        []models.Tool
	Fn                LegacyFunc

	stats models.AdapterStats
}

func (a *LegacyAdapter) ID() string              { return a.IDValue }
func (a *LegacyAdapter) Name() string            { return a.NameValue }
func (a *LegacyAdapter) Description() string     { return a.DescriptionValue }
func (a *LegacyAdapter) Category() string        { return a.CategoryValue }
func (a *LegacyAdapter) Capabilities() []string  { return a.CapabilitiesValue }
func (a *LegacyAdapter) Tools() []models.Tool    { return a.ToolsValue }
func (a *LegacyAdapter) Initialize(context.Context) error { return nil }
func (a *LegacyAdapter) Stats() models.AdapterStats       { return a.stats }

// CallTool wraps args and the translated headers into a single payload,
// calls the legacy function, and wraps its return value the same way the
// source system does for compatibility with pre-registry adapters.
func (a *LegacyAdapter) CallTool(ctx context.Context, toolName string, args map[string]interface{}, cc *contracts.CallContext) (interface{}, error) {
	wrapped := map[string]interface{}{
		"data":    args,
		"headers": cc.Header(),
	}
	result, err := a.Fn(ctx, toolName, wrapped)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"data":    result,
		"headers": cc.Header(),
	}, nil
}

var _ contracts.Adapter = (*LegacyAdapter)(nil)
