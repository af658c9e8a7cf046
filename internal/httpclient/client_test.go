package httpclient_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/meridiangw/gateway/internal/gatewayerr"
	"github.com/meridiangw/gateway/internal/httpclient"
	"github.com/meridiangw/gateway/pkg/contracts"
	"github.com/meridiangw/gateway/pkg/models"
)

type recordingSink struct {
	events []contracts.Event
}

func (r *recordingSink) Emit(e contracts.Event) { r.events = append(r.events, e) }

func TestDoSuccessWithBearerAuth(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	sink := &recordingSink{}
	c := httpclient.New(httpclient.Config{
		Name:    "test-service",
		BaseURL: srv.URL,
		Authentication: models.Authentication{
			Type:  models.AuthBearer,
			Token: "secret-token",
		},
		Sink: sink,
	})

	resp, err := c.Do(context.Background(), contracts.Request{Path: "/ping", Method: http.MethodGet})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if resp.Status != 200 {
		t.Fatalf("expected 200, got %d", resp.Status)
	}
	if gotAuth != "Bearer secret-token" {
		t.Fatalf("expected bearer header, got %q", gotAuth)
	}
	if len(sink.events) == 0 {
		t.Fatal("expected at least one emitted event")
	}
}

func TestDoRetriesOn5xxThenSucceeds(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := httpclient.New(httpclient.Config{
		Name:          "flaky-service",
		BaseURL:       srv.URL,
		RetryAttempts: 3,
		RetryDelay:    1 * time.Millisecond,
	})

	resp, err := c.Do(context.Background(), contracts.Request{Path: "/", Method: http.MethodGet})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if resp.Status != 200 {
		t.Fatalf("expected eventual 200, got %d", resp.Status)
	}
	if atomic.LoadInt32(&attempts) != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestDoDoesNotRetry4xx(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := httpclient.New(httpclient.Config{
		Name:       "strict-service",
		BaseURL:    srv.URL,
		RetryDelay: 1 * time.Millisecond,
	})

	_, err := c.Do(context.Background(), contracts.Request{Path: "/", Method: http.MethodGet})
	if !gatewayerr.Is(err, gatewayerr.Upstream4xx) {
		t.Fatalf("expected UPSTREAM_4XX, got %v", err)
	}
	if atomic.LoadInt32(&attempts) != 1 {
		t.Fatalf("expected exactly 1 attempt for a 4xx, got %d", attempts)
	}
}

func TestCircuitBreakerOpensAfterFiveFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := httpclient.New(httpclient.Config{
		Name:          "unreliable-service",
		BaseURL:       srv.URL,
		RetryAttempts: 0, // New applies the default of 3; each Do call still counts as one breaker failure, so 5 calls = 5 consecutive failures
		RetryDelay:    1 * time.Millisecond,
	})

	for i := 0; i < 5; i++ {
		if _, err := c.Do(context.Background(), contracts.Request{Path: "/", Method: http.MethodGet}); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}

	snap := c.Breaker()
	if snap.State != models.BreakerOpen {
		t.Fatalf("expected breaker OPEN after 5 failures, got %s", snap.State)
	}

	_, err := c.Do(context.Background(), contracts.Request{Path: "/", Method: http.MethodGet})
	if !gatewayerr.Is(err, gatewayerr.CircuitOpen) {
		t.Fatalf("expected CIRCUIT_OPEN on 6th call, got %v", err)
	}
}

func TestAPIKeyAuthHeaderInjection(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Vendor-Key")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := httpclient.New(httpclient.Config{
		Name:    "apikey-service",
		BaseURL: srv.URL,
		Authentication: models.Authentication{
			Type:       models.AuthAPIKey,
			HeaderName: "X-Vendor-Key",
			APIKey:     "k-123",
		},
	})

	if _, err := c.Do(context.Background(), contracts.Request{Path: "/", Method: http.MethodGet}); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if gotKey != "k-123" {
		t.Fatalf("expected api key header, got %q", gotKey)
	}
}
