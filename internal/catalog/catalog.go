// Package catalog loads the service catalog: a catalog.json
// enumerating {services:[{name, directory, configFile}]}, each referencing
// a Service Descriptor JSON file. Missing or invalid files are logged and
// skipped; startup continues with whatever loaded successfully.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/meridiangw/gateway/pkg/models"
)

// entry is one row of catalog.json's services array.
type entry struct {
	Name       string `json:"name"`
	Directory  string `json:"directory"`
	ConfigFile string `json:"configFile"`
}

type manifest struct {
	Services []entry `json:"services"`
}

// Catalog is the thread-safe, build-once-read-many collection of loaded
// service descriptors (Ownership: the Gateway exclusively owns
// the collection of service descriptors).
type Catalog struct {
	mu       sync.RWMutex
	services map[string]*models.ServiceDescriptor
	order    []string
}

// New returns an empty Catalog; call Load to populate it.
func New() *Catalog {
	return &Catalog{services: make(map[string]*models.ServiceDescriptor)}
}

// Load reads catalogPath (a manifest) and, for each listed service, reads
// {directory}/{configFile} as a Service Descriptor. A malformed manifest is
// a hard error; a malformed or missing individual descriptor is logged and
// skipped so the rest of the catalog still loads.
func (c *Catalog) Load(catalogPath string) error {
	raw, err := os.ReadFile(catalogPath)
	if err != nil {
		return fmt.Errorf("read catalog manifest %s: %w", catalogPath, err)
	}

	var m manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return fmt.Errorf("parse catalog manifest %s: %w", catalogPath, err)
	}

	baseDir := filepath.Dir(catalogPath)
	loaded := 0
	for _, e := range m.Services {
		descPath := filepath.Join(baseDir, e.Directory, e.ConfigFile)
		svc, err := loadDescriptor(descPath)
		if err != nil {
			log.Warn().Err(err).Str("service", e.Name).Str("path", descPath).Msg("catalog: skipping invalid service descriptor")
			continue
		}
		if svc.Name == "" {
			svc.Name = e.Name
		}
		if err := validateDescriptor(svc); err != nil {
			log.Warn().Err(err).Str("service", svc.Name).Msg("catalog: skipping service descriptor failing invariants")
			continue
		}
		c.register(svc)
		loaded++
	}

	log.Info().Int("loaded", loaded).Int("declared", len(m.Services)).Msg("service catalog loaded")
	return nil
}

func loadDescriptor(path string) (*models.ServiceDescriptor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read descriptor: %w", err)
	}
	var svc models.ServiceDescriptor
	if err := json.Unmarshal(raw, &svc); err != nil {
		return nil, fmt.Errorf("parse descriptor: %w", err)
	}
	return &svc, nil
}

// validateDescriptor enforces 's invariants: BaseURL is an
// absolute URL; authentication type is one of the known AuthType values.
func validateDescriptor(svc *models.ServiceDescriptor) error {
	if svc.BaseURL == "" {
		return fmt.Errorf("baseUrl is required")
	}
	if !(hasScheme(svc.BaseURL, "http://") || hasScheme(svc.BaseURL, "https://")) {
		return fmt.Errorf("baseUrl %q must be an absolute URL", svc.BaseURL)
	}
	switch svc.Authentication.Type {
	case models.AuthNone, models.AuthBearer, models.AuthAPIKey, models.AuthBasic, models.AuthHMAC, models.AuthOAuth2:
	default:
		return fmt.Errorf("unknown authentication type %q", svc.Authentication.Type)
	}
	return nil
}

func hasScheme(url, scheme string) bool {
	return len(url) >= len(scheme) && url[:len(scheme)] == scheme
}

func (c *Catalog) register(svc *models.ServiceDescriptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.services[svc.Name]; !exists {
		c.order = append(c.order, svc.Name)
	}
	c.services[svc.Name] = svc
}

// Register adds or replaces a service descriptor directly, bypassing the
// file manifest.
func (c *Catalog) Register(svc *models.ServiceDescriptor) {
	c.register(svc)
}

// Get returns the descriptor for name.
func (c *Catalog) Get(name string) (*models.ServiceDescriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	svc, ok := c.services[name]
	return svc, ok
}

// List returns every loaded descriptor in load order.
func (c *Catalog) List() []*models.ServiceDescriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*models.ServiceDescriptor, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.services[name])
	}
	return out
}

// Count returns the number of loaded services.
func (c *Catalog) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.services)
}
