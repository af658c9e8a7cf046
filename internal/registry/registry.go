// Package registry implements the Adapter Registry & Tool Dispatcher: it
// owns the set of live adapters, resolves tool identifiers (including
// kebab/snake alias equivalence), and routes callTool with fully
// translated context headers.
//
// The Gateway exclusively owns one Registry; each Adapter exclusively owns
// its own HTTP client and circuit breaker state.
package registry

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/meridiangw/gateway/internal/gatewayerr"
	"github.com/meridiangw/gateway/pkg/contracts"
	"github.com/meridiangw/gateway/pkg/models"
)

type entry struct {
	adapter     contracts.Adapter
	tool        models.Tool
	canonicalID string
}

type mockEntry struct {
	mock contracts.MockAdapter
}

// Registry is the concrete AdapterRegistry implementation.
type Registry struct {
	mu sync.RWMutex

	adapters map[string]contracts.Adapter
	mocks    map[string]contracts.MockAdapter
	byID     map[string]*entry // canonical tool ID -> entry

	statsMu sync.Mutex
	stats   map[string]models.AdapterStats // keyed by adapter ID
}

// New builds an empty Registry.
func New() *Registry {
	return &Registry{
		adapters: make(map[string]contracts.Adapter),
		mocks:    make(map[string]contracts.MockAdapter),
		byID:     make(map[string]*entry),
		stats:    make(map[string]models.AdapterStats),
	}
}

// Register calls adapter.Initialize (idempotent) and indexes every declared
// tool under its canonical ID ("<adapter.id>:<kebab(tool.name)>") and its
// verbatim ID. Duplicate canonical IDs across adapters are rejected.
func (r *Registry) Register(ctx context.Context, a contracts.Adapter) error {
	if err := a.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize adapter %s: %w", a.ID(), err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, tool := range a.Tools() {
		canonical := canonicalID(a.ID(), tool.Name)
		if existing, ok := r.byID[canonical]; ok && existing.adapter != a {
			return gatewayerr.NewDefault(gatewayerr.InvalidToolID,
				fmt.Sprintf("canonical tool id %q collides across adapters %q and %q", canonical, existing.adapter.ID(), a.ID()))
		}
		e := &entry{adapter: a, tool: tool, canonicalID: canonical}
		r.byID[canonical] = e
		r.byID[verbatimID(a.ID(), tool.Name)] = e
	}

	r.adapters[a.ID()] = a
	r.statsMu.Lock()
	if _, ok := r.stats[a.ID()]; !ok {
		r.stats[a.ID()] = models.AdapterStats{}
	}
	r.statsMu.Unlock()
	return nil
}

// RegisterMock registers a placeholder adapter whose tools are a count, not
// real tools. The Operation Registry synthesizes placeholder operations for
// it; CallTool always returns MOCK_ADAPTER.
func (r *Registry) RegisterMock(m contracts.MockAdapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mocks[m.ID()] = m
	return nil
}

// canonicalID builds "<adapter-id>:<kebab-tool-name>".
func canonicalID(adapterID, toolName string) string {
	return adapterID + ":" + toKebab(toolName)
}

// verbatimID builds "<adapter-id>:<tool-name>" unchanged.
func verbatimID(adapterID, toolName string) string {
	return adapterID + ":" + toolName
}

func toKebab(s string) string { return strings.ReplaceAll(s, "_", "-") }

// ResolveTool returns {canonicalId, adapterId, tool} for a known ID.
// Kebab/snake equivalence: "initialize_transaction" and
// "initialize-transaction" resolve to the same canonical tool because both
// normalize to the same kebab-case lookup key.
func (r *Registry) ResolveTool(id string) (*contracts.ResolvedTool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adapterPart, toolPart, ok := splitToolID(id)
	if !ok {
		return nil, false
	}
	normalized := canonicalID(adapterPart, toolPart)
	e, ok := r.byID[normalized]
	if !ok {
		return nil, false
	}
	return &contracts.ResolvedTool{CanonicalID: e.canonicalID, AdapterID: e.adapter.ID(), Tool: e.tool}, true
}

func splitToolID(id string) (adapter, tool string, ok bool) {
	idx := strings.Index(id, ":")
	if idx < 0 {
		return "", "", false
	}
	return id[:idx], id[idx+1:], true
}

// CallTool resolves id, translates the call context into HTTP-style
// headers, and dispatches to the adapter. Mock adapters never execute.
func (r *Registry) CallTool(ctx context.Context, id string, args map[string]interface{}, cc *contracts.CallContext) (interface{}, error) {
	adapterPart, _, ok := splitToolID(id)
	if !ok {
		return nil, gatewayerr.NewDefault(gatewayerr.InvalidToolIDFormat, "tool id must be \"<adapter>:<tool>\"")
	}

	r.mu.RLock()
	if _, isMock := r.mocks[adapterPart]; isMock {
		r.mu.RUnlock()
		return nil, gatewayerr.NewDefault(gatewayerr.MockAdapter, "adapter "+adapterPart+" is a mock and cannot be executed")
	}
	r.mu.RUnlock()

	resolved, ok := r.ResolveTool(id)
	if !ok {
		return nil, gatewayerr.NewDefault(gatewayerr.ToolNotFound, "no tool registered for id "+id)
	}

	r.mu.RLock()
	a := r.adapters[resolved.AdapterID]
	r.mu.RUnlock()
	if a == nil {
		return nil, gatewayerr.NewDefault(gatewayerr.AdapterNotFound, "adapter "+resolved.AdapterID+" not found")
	}

	if cc == nil {
		cc = &contracts.CallContext{}
	}
	cc.Header() // force header translation before dispatch, 

	result, err := a.CallTool(ctx, resolved.Tool.Name, args, cc)
	r.recordCall(resolved.AdapterID, err)
	return result, err
}

func (r *Registry) recordCall(adapterID string, callErr error) {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	s := r.stats[adapterID]
	s.Calls++
	if callErr != nil {
		s.Errors++
	}
	s.LastCall = time.Now()
	r.stats[adapterID] = s
}

// Adapters returns every registered (non-mock) adapter.
func (r *Registry) Adapters() []contracts.Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]contracts.Adapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		out = append(out, a)
	}
	return out
}

// Mocks returns every registered mock adapter.
func (r *Registry) Mocks() []contracts.MockAdapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]contracts.MockAdapter, 0, len(r.mocks))
	for _, m := range r.mocks {
		out = append(out, m)
	}
	return out
}

// Stats aggregates per-adapter call counters for health/readiness.
func (r *Registry) Stats() map[string]models.AdapterStats {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	out := make(map[string]models.AdapterStats, len(r.stats))
	for k, v := range r.stats {
		out[k] = v
	}
	return out
}

var _ contracts.AdapterRegistry = (*Registry)(nil)
