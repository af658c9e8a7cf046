// Package httpclient implements the Universal HTTP Client: a per-service
// request pipeline with authentication injection, exponential backoff
// retry, and a circuit breaker state machine. Every adapter owns exactly
// one Client for its upstream service.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"

	"github.com/meridiangw/gateway/internal/gatewayerr"
	"github.com/meridiangw/gateway/pkg/contracts"
	"github.com/meridiangw/gateway/pkg/models"
)

// Config configures one Client instance.
type Config struct {
	Name           string
	BaseURL        string
	Timeout        time.Duration // default 30s
	RetryAttempts  int           // default 3
	RetryDelay     time.Duration // default 500ms base
	Authentication models.Authentication
	Sink           contracts.EventSink // optional; nil is fine, events are dropped
}

// Client is the Universal HTTP Client. It owns exactly one http.Client, one
// circuit breaker, and (for stateful auth) one token cache.
type Client struct {
	cfg    Config
	http   *http.Client
	cb     *gobreaker.CircuitBreaker[*contracts.Response]
	tokens *tokenCache

	mu            sync.Mutex // serializes event emission (FIFO per client)
	lastFailureAt time.Time
}

// New constructs a Client with the documented defaults applied.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}

	c := &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		tokens: newTokenCache(),
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1, // allow exactly one probe while HALF_OPEN
		Interval:    0, // never reset counts while CLOSED; we count consecutive failures only
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				c.emit(contracts.Event{Kind: "circuit-breaker-open", Service: cfg.Name, Failures: 5})
			}
			log.Debug().Str("service", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	}
	c.cb = gobreaker.NewCircuitBreaker[*contracts.Response](settings)
	return c
}

// Breaker returns a read-only snapshot of the current breaker state.
func (c *Client) Breaker() models.CircuitBreakerSnapshot {
	counts := c.cb.Counts()
	var state models.BreakerState
	switch c.cb.State() {
	case gobreaker.StateOpen:
		state = models.BreakerOpen
	case gobreaker.StateHalfOpen:
		state = models.BreakerHalfOpen
	default:
		state = models.BreakerClosed
	}
	return models.CircuitBreakerSnapshot{
		State:         state,
		Failures:      int(counts.ConsecutiveFailures),
		LastFailureAt: c.lastFailureAt,
	}
}

// Do issues one outbound call: auth injection, retry, and circuit-breaker
// enforcement, emitting request/response/error events.
func (c *Client) Do(ctx context.Context, req contracts.Request) (*contracts.Response, error) {
	resp, err := c.cb.Execute(func() (*contracts.Response, error) {
		return c.doWithRetry(ctx, req)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, gatewayerr.NewDefault(gatewayerr.CircuitOpen, "circuit breaker open for "+c.cfg.Name)
		}
		return nil, err
	}
	// doWithRetry only ever returns a nil error for status < 500 (5xx is
	// retried to exhaustion and then surfaced as RETRY_EXHAUSTED above), so
	// the only remaining case to translate here is a non-retried 4xx.
	if resp.Status >= 400 {
		return resp, gatewayerr.NewDefault(gatewayerr.Upstream4xx, fmt.Sprintf("upstream status %d", resp.Status)).WithDetails(map[string]interface{}{"status": resp.Status})
	}
	return resp, nil
}

// doWithRetry runs the full retry loop and returns the *terminal* result.
// Only transport errors and 5xx responses count toward the circuit breaker:
// this function returns a non-nil error ONLY for those cases (after
// exhausting retries), so 4xx responses are reported up as a successful
// breaker execution carrying an error-bearing *Response.
func (c *Client) doWithRetry(ctx context.Context, req contracts.Request) (*contracts.Response, error) {
	var lastResp *contracts.Response
	var lastErr error
	refreshedOnce := false

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.cfg.RetryDelay
	policy.Multiplier = 2
	policy.MaxElapsedTime = 0 // bounded by attempt count, not wall clock
	policy.Reset()            // start the first interval from RetryDelay

	for attempt := 0; attempt <= c.cfg.RetryAttempts; attempt++ {
		c.emit(contracts.Event{Kind: "request", Service: c.cfg.Name, Method: req.Method, URL: req.Path})

		resp, err := c.doOnce(ctx, req)
		if err == nil {
			if resp.Status == 401 && c.cfg.Authentication.Type == models.AuthOAuth2 && !refreshedOnce {
				refreshedOnce = true
				if _, rerr := c.refreshOAuth2Token(ctx); rerr == nil {
					continue // single refresh-retry cycle, does not consume a backoff delay
				}
			}
			c.emit(contracts.Event{Kind: "response", Service: c.cfg.Name, Status: resp.Status})
			if resp.Status < 500 {
				return resp, nil // 4xx (or success) — not a breaker failure, not retried further
			}
			lastResp, lastErr = resp, fmt.Errorf("upstream status %d", resp.Status)
		} else {
			lastErr = err
		}

		c.emit(contracts.Event{Kind: "error", Service: c.cfg.Name, ErrorType: classifyError(lastErr), Message: lastErr.Error()})

		if attempt == c.cfg.RetryAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(policy.NextBackOff()):
		}
	}

	c.lastFailureAt = time.Now()
	if lastResp != nil {
		return nil, gatewayerr.NewDefault(gatewayerr.RetryExhausted, lastErr.Error()).WithDetails(map[string]interface{}{"status": lastResp.Status})
	}
	return nil, gatewayerr.NewDefault(gatewayerr.RetryExhausted, lastErr.Error())
}

func classifyError(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return "ETIMEDOUT"
	case strings.Contains(msg, "connection reset"):
		return "ECONNRESET"
	case strings.Contains(msg, "no such host"):
		return "ENOTFOUND"
	default:
		return "TRANSPORT_ERROR"
	}
}

// doOnce performs exactly one attempt: build the request, inject auth,
// send, and read the body. A non-nil error here means a transport failure
// (the kind the breaker/retry loop treats as retryable); any received HTTP
// status, including 5xx, is returned as a successful *Response.
func (c *Client) doOnce(ctx context.Context, r contracts.Request) (*contracts.Response, error) {
	u, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	u.Path = joinPath(u.Path, r.Path)
	if len(r.Params) > 0 {
		q := u.Query()
		for k, v := range r.Params {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}

	var body io.Reader
	var rawBody []byte
	if r.Data != nil {
		rawBody, err = json.Marshal(r.Data)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		body = bytes.NewReader(rawBody)
	}

	httpReq, err := http.NewRequestWithContext(ctx, methodOrDefault(r.Method), u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if r.Data != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range r.Headers {
		httpReq.Header.Set(k, v)
	}

	if err := c.injectAuth(ctx, httpReq, rawBody); err != nil {
		return nil, fmt.Errorf("auth injection: %w", err)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return &contracts.Response{Status: resp.StatusCode, Headers: resp.Header, Body: respBody}, nil
}

func methodOrDefault(m string) string {
	if m == "" {
		return http.MethodGet
	}
	return strings.ToUpper(m)
}

func joinPath(base, add string) string {
	if add == "" {
		return base
	}
	if strings.HasSuffix(base, "/") && strings.HasPrefix(add, "/") {
		return base + add[1:]
	}
	if !strings.HasSuffix(base, "/") && !strings.HasPrefix(add, "/") {
		return base + "/" + add
	}
	return base + add
}

// HealthCheck issues a lightweight GET against the service root and reports
// whether it succeeded.
func (c *Client) HealthCheck(ctx context.Context) contracts.HealthStatus {
	resp, err := c.Do(ctx, contracts.Request{Path: "/", Method: http.MethodGet})
	if err != nil {
		return contracts.HealthStatus{Healthy: false, Error: err.Error()}
	}
	return contracts.HealthStatus{Healthy: resp.Status < 500, Data: map[string]int{"status": resp.Status}}
}

func (c *Client) emit(e contracts.Event) {
	if c.cfg.Sink == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.Sink.Emit(e)
}
