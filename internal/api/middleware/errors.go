package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/meridiangw/gateway/internal/gatewayerr"
)

// errorEnvelope is the canonical error payload shape: every failure the
// facade returns, regardless of which subsystem raised it, renders through
// this one shape.
type errorEnvelope struct {
	Error     string                 `json:"error"`
	Message   string                 `json:"message"`
	RequestID string                 `json:"requestId,omitempty"`
	Timestamp time.Time              `json:"ts"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// WriteError renders err as the canonical error envelope, mapping
// *gatewayerr.Error to its declared status and code, and anything else to a
// generic 500 INTERNAL_ERROR so a stray panic recovery or io error never
// leaks implementation detail to a caller.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := w.Header().Get("X-Request-ID")

	ge, ok := err.(*gatewayerr.Error)
	if !ok {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("unhandled error")
		writeEnvelope(w, http.StatusInternalServerError, errorEnvelope{
			Error:     "INTERNAL_ERROR",
			Message:   "an unexpected error occurred",
			RequestID: requestID,
			Timestamp: time.Now(),
		})
		return
	}

	writeEnvelope(w, ge.Status, errorEnvelope{
		Error:     string(ge.Code),
		Message:   ge.Message,
		RequestID: requestID,
		Timestamp: time.Now(),
		Details:   ge.Details,
	})
}

func writeEnvelope(w http.ResponseWriter, status int, env errorEnvelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

// Recoverer recovers panics in downstream handlers and renders them through
// the same error envelope instead of dropping the connection.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("recovered panic")
				WriteError(w, r, gatewayerr.NewDefault(gatewayerr.ExecutionError, "internal server error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
