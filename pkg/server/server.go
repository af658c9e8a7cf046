// Package server is the composition root: it loads configuration, builds
// every core subsystem, wires one generic adapter per catalog service into
// the registry, and assembles the Gateway Facade's chi.Router.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/meridiangw/gateway/internal/adapter"
	"github.com/meridiangw/gateway/internal/api"
	"github.com/meridiangw/gateway/internal/api/handlers"
	"github.com/meridiangw/gateway/internal/audit"
	"github.com/meridiangw/gateway/internal/catalog"
	"github.com/meridiangw/gateway/internal/compliance"
	"github.com/meridiangw/gateway/internal/config"
	"github.com/meridiangw/gateway/internal/discovery"
	"github.com/meridiangw/gateway/internal/identity"
	"github.com/meridiangw/gateway/internal/metrics"
	"github.com/meridiangw/gateway/internal/ratelimit"
	"github.com/meridiangw/gateway/internal/registry"
	"github.com/meridiangw/gateway/internal/telemetry"
	"github.com/meridiangw/gateway/pkg/contracts"
	"github.com/meridiangw/gateway/pkg/models"
)

// Server bundles the composed HTTP handler with its background resources so
// main can drive an orderly startup and shutdown.
type Server struct {
	Handler      http.Handler
	Addr         string
	auditSink    contracts.AuditSink
	telShutdown  func(context.Context) error
}

// metricsEventSink adapts metrics.Collectors into a contracts.EventSink so
// every adapter's Universal HTTP Client reports circuit state transitions
// straight into Prometheus.
type metricsEventSink struct {
	m *metrics.Collectors
}

func (s *metricsEventSink) Emit(e contracts.Event) {
	if e.Kind != "circuit-breaker-open" {
		return
	}
	s.m.CircuitState.WithLabelValues(e.Service).Set(metrics.BreakerStateValue("OPEN"))
}

// New builds the fully wired Server from environment configuration.
func New(ctx context.Context) (*Server, error) {
	cfg := config.Load()

	telShutdown, err := telemetry.Init(cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	cat := catalog.New()
	if err := cat.Load(cfg.CatalogPath); err != nil {
		log.Warn().Err(err).Str("path", cfg.CatalogPath).Msg("could not load service catalog; starting with an empty one")
	}

	auditSink, err := buildAuditSink(ctx, cfg.Audit)
	if err != nil {
		return nil, fmt.Errorf("build audit sink: %w", err)
	}

	encryptionKey, pseudonymSalt := deriveComplianceSecrets(cfg.Compliance)
	compliancePipeline := compliance.New(compliance.DefaultFieldLists(), compliance.Config{
		SCAThreshold:  cfg.Compliance.PSD2Threshold,
		EncryptionKey: encryptionKey,
		PseudonymSalt: pseudonymSalt,
	}, auditSink)

	metricsCollectors := metrics.New()
	sink := &metricsEventSink{m: metricsCollectors}

	reg := registry.New()
	if err := registerCatalog(ctx, reg, cat, sink); err != nil {
		return nil, fmt.Errorf("register catalog services: %w", err)
	}

	disc := discovery.New(reg, catalogSource{cat})

	identityVerifier := identity.New(cfg.Identity.AuthGatewayURL, cfg.Identity.JWTPublicKeyPEM)
	limiter := ratelimit.New(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.Window)

	h := &handlers.Handlers{
		Catalog:    cat,
		Registry:   reg,
		Discovery:  disc,
		Compliance: compliancePipeline,
		Version:    cfg.Version,
		StartedAt:  time.Now(),
	}

	router := api.NewRouter(api.Deps{
		Handlers:       h,
		Metrics:        metricsCollectors,
		Identity:       identityVerifier,
		RateLimiter:    limiter,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	return &Server{
		Handler:     router,
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		auditSink:   auditSink,
		telShutdown: telShutdown,
	}, nil
}

// registerCatalog builds and registers one adapter.Generic per loaded
// service descriptor, pacing the fan-out with a token-bucket limiter so a
// catalog of hundreds of services is registered at a bounded rate. Building
// and initializing an adapter makes no network call.
func registerCatalog(ctx context.Context, reg *registry.Registry, cat *catalog.Catalog, sink contracts.EventSink) error {
	startupPacer := rate.NewLimiter(rate.Limit(20), 5) // at most ~20 adapter inits/sec, burst 5

	for _, svc := range cat.List() {
		if err := startupPacer.Wait(ctx); err != nil {
			return err
		}
		a := adapter.New(svc, sink)
		if err := reg.Register(ctx, a); err != nil {
			log.Warn().Err(err).Str("service", svc.Name).Msg("skipping service that failed to initialize")
			continue
		}
	}
	return nil
}

// catalogSource adapts *catalog.Catalog to discovery.CatalogSource, which
// wants value-typed descriptors rather than pointers.
type catalogSource struct {
	cat *catalog.Catalog
}

func (c catalogSource) Services() []models.ServiceDescriptor {
	ptrs := c.cat.List()
	out := make([]models.ServiceDescriptor, 0, len(ptrs))
	for _, p := range ptrs {
		out = append(out, *p)
	}
	return out
}

func buildAuditSink(ctx context.Context, cfg config.AuditConfig) (contracts.AuditSink, error) {
	fileSink, err := audit.NewFileSink(cfg.FilePath)
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		return fileSink, nil
	}

	pgSink, err := audit.NewPostgresSink(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Warn().Err(err).Msg("could not connect postgres audit sink; continuing with file sink only")
		return fileSink, nil
	}
	return audit.NewMultiSink(fileSink, pgSink), nil
}

func deriveComplianceSecrets(cfg config.ComplianceConfig) ([]byte, []byte) {
	var key, salt []byte
	if cfg.EncryptionKey != "" {
		if k, err := compliance.DeriveKey(cfg.EncryptionKey); err == nil {
			key = k
		} else {
			log.Warn().Err(err).Msg("ENCRYPTION_KEY could not be derived; PCI field encryption is disabled")
		}
	}
	if cfg.PseudonymSalt != "" {
		salt = []byte(cfg.PseudonymSalt)
	} else {
		salt = []byte("api-integration-gateway-default-pseudonym-salt")
		log.Warn().Msg("PSEUDONYM_SALT not configured; using a fixed default, which is unsuitable for production")
	}
	return key, salt
}

// Shutdown drains background resources in dependency order: telemetry
// export, then the audit sink.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.telShutdown != nil {
		if err := s.telShutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("telemetry shutdown failed")
		}
	}
	if s.auditSink != nil {
		return s.auditSink.Close()
	}
	return nil
}
