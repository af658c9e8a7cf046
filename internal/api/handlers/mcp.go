package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/meridiangw/gateway/internal/api/middleware"
	"github.com/meridiangw/gateway/internal/discovery"
	"github.com/meridiangw/gateway/internal/gatewayerr"
)

// The five meta-tools are exposed as individual POST
// endpoints under /mcp rather than a single JSON-RPC multiplexer: the
// gateway's own REST conventions apply to its own control surface too.

type intentRequest struct {
	Query    string                  `json:"query"`
	Adapter  string                  `json:"adapter,omitempty"`
	Limit    int                     `json:"limit,omitempty"`
	Options  discovery.SearchOptions `json:"options,omitempty"`
}

// Intent handles POST /mcp/intent.
func (h *Handlers) Intent(w http.ResponseWriter, r *http.Request) {
	var req intentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, r, gatewayerr.NewDefault(gatewayerr.InvalidParams, "invalid request body"))
		return
	}
	if req.Query == "" {
		middleware.WriteError(w, r, gatewayerr.NewDefault(gatewayerr.InvalidParams, "query is required"))
		return
	}
	result := h.Discovery.Intent(req.Query, req.Adapter, req.Options, req.Limit)
	writeJSON(w, http.StatusOK, result)
}

type executeRequest struct {
	ToolID  string                 `json:"tool_id"`
	Params  map[string]interface{} `json:"params"`
	Options struct {
		IdempotencyKey string `json:"idempotency_key"`
		Confirmed      bool   `json:"confirmed"`
		DryRun         bool   `json:"dry_run"`
	} `json:"options"`
}

// Execute handles POST /mcp/execute, the sole write path into the adapter
// registry from the MCP surface.
func (h *Handlers) Execute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, r, gatewayerr.NewDefault(gatewayerr.InvalidParams, "invalid request body"))
		return
	}

	cc := callContextFrom(r)
	result := h.Discovery.Execute(r.Context(), req.ToolID, req.Params, discovery.ExecuteOptions{
		IdempotencyKey: req.Options.IdempotencyKey,
		Confirmed:      req.Options.Confirmed,
		DryRun:         req.Options.DryRun,
	}, cc)

	status := http.StatusOK
	if !result.Success {
		status = http.StatusBadRequest
		if result.Error != nil {
			status = statusForCode(result.Error.Code)
		}
	}
	writeJSON(w, status, result)
}

func statusForCode(code string) int {
	return gatewayerr.NewDefault(gatewayerr.Code(code), "").Status
}

// Adapters handles GET /mcp/adapters.
func (h *Handlers) Adapters(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	out := h.Discovery.Adapters(q.Get("category"), q.Get("capability"), q.Get("country"))
	writeJSON(w, http.StatusOK, map[string]interface{}{"adapters": out})
}

// Tools handles GET /mcp/tools.
func (h *Handlers) Tools(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	page, err := h.Discovery.Tools(q.Get("adapter"), q.Get("category"), q.Get("search"), limit, offset)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// Reference handles GET /mcp/reference.
func (h *Handlers) Reference(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	topic := q.Get("topic")
	if topic == "" {
		middleware.WriteError(w, r, gatewayerr.NewDefault(gatewayerr.InvalidParams, "topic is required"))
		return
	}
	writeJSON(w, http.StatusOK, h.Discovery.Reference(topic, q.Get("section")))
}
