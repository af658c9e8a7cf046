package httpclient

import (
	"context"
	"fmt"
	"regexp"

	"github.com/meridiangw/gateway/pkg/contracts"
	"github.com/meridiangw/gateway/pkg/models"
)

var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z0-9_]+)\}`)

// BoundEndpoint is one synthesized named operation: calling Invoke binds the
// endpoint's "{placeholder}" path segments from args, sends the remaining
// args as the body (GET/DELETE send them as query params instead), and
// issues the call through the owning Client.
type BoundEndpoint struct {
	Endpoint models.Endpoint
	client   *Client
}

// Invoke binds path placeholders from args and dispatches through the
// client. Any arg consumed as a placeholder is not also sent as body/query.
func (b *BoundEndpoint) Invoke(ctx context.Context, args map[string]interface{}, headers map[string]string) (*contracts.Response, error) {
	remaining := make(map[string]interface{}, len(args))
	for k, v := range args {
		remaining[k] = v
	}

	path := placeholderPattern.ReplaceAllStringFunc(b.Endpoint.Path, func(match string) string {
		name := match[1 : len(match)-1]
		if v, ok := remaining[name]; ok {
			delete(remaining, name)
			return fmt.Sprint(v)
		}
		return match
	})

	req := contracts.Request{Path: path, Method: b.Endpoint.Method, Headers: headers}
	switch methodOrDefault(b.Endpoint.Method) {
	case "GET", "DELETE", "HEAD":
		params := make(map[string]string, len(remaining))
		for k, v := range remaining {
			params[k] = fmt.Sprint(v)
		}
		req.Params = params
	default:
		req.Data = remaining
	}

	return b.client.Do(ctx, req)
}

// GenerateMethods synthesizes one BoundEndpoint per declared endpoint,
// keyed by endpoint name, 's generateMethods contract.
func (c *Client) GenerateMethods(endpoints []models.Endpoint) map[string]*BoundEndpoint {
	out := make(map[string]*BoundEndpoint, len(endpoints))
	for _, ep := range endpoints {
		out[ep.Name] = &BoundEndpoint{Endpoint: ep, client: c}
	}
	return out
}
