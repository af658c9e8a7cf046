// Package vendorabstraction implements the Vendor Abstraction Layer: a
// stable, vendor-agnostic client schema per category operation, backed by
// swappable per-vendor mappings and input transforms.
package vendorabstraction

import (
	"context"
	"fmt"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/meridiangw/gateway/internal/gatewayerr"
	"github.com/meridiangw/gateway/pkg/contracts"
	"github.com/meridiangw/gateway/pkg/models"
)

// vendorRemovalGuard is the minimum time a vendor must remain marked
// deprecated before RemoveVendor will allow removal.
const vendorRemovalGuard = 30 * 24 * time.Hour

// Layer is the concrete contracts.VendorAbstraction implementation.
type Layer struct {
	registry contracts.AdapterRegistry

	categories map[string]*models.CategoryAbstraction
	programs   map[string]*vm.Program // compiled transform cache, keyed by "category/vendor/operation"
}

// New builds a Layer over the given category declarations. Transform
// programs are compiled eagerly so a bad expr-lang program fails at
// startup, not on first call.
func New(registry contracts.AdapterRegistry, categories map[string]*models.CategoryAbstraction) (*Layer, error) {
	l := &Layer{
		registry:   registry,
		categories: categories,
		programs:   make(map[string]*vm.Program),
	}
	for catName, cat := range categories {
		for vendorID, v := range cat.Vendors {
			for opName, mapping := range v.Mappings {
				key := catName + "/" + vendorID + "/" + opName
				program, err := expr.Compile(mapping.Transform, expr.Env(map[string]interface{}{"input": map[string]interface{}{}}))
				if err != nil {
					return nil, fmt.Errorf("compile transform %s: %w", key, err)
				}
				l.programs[key] = program
			}
		}
	}
	return l, nil
}

// Execute implements the 6-step algorithm from 
func (l *Layer) Execute(ctx context.Context, category, operation string, input map[string]interface{}, vendorPreference string, cc *contracts.CallContext) (interface{}, error) {
	cat, ok := l.categories[category]
	if !ok {
		return nil, gatewayerr.NewDefault(gatewayerr.AbstractionNotFound, "no abstraction registered for category "+category)
	}
	schema, ok := cat.Client[operation]
	if !ok {
		return nil, gatewayerr.NewDefault(gatewayerr.AbstractionNotFound, "no client schema for "+category+"."+operation)
	}

	validated, err := applyDefaultsAndValidate(schema, input)
	if err != nil {
		return nil, err
	}

	vendor, err := l.selectVendor(cat, vendorPreference)
	if err != nil {
		return nil, err
	}

	mapping, ok := vendor.Mappings[operation]
	if !ok {
		return nil, gatewayerr.NewDefault(gatewayerr.AbstractionNotFound, "vendor "+vendor.ID+" has no mapping for "+operation)
	}

	vendorInput, err := l.transform(category, vendor.ID, operation, validated)
	if err != nil {
		return nil, err
	}

	result, err := l.registry.CallTool(ctx, vendor.Adapter+":"+mapping.Tool, vendorInput, cc)
	if err != nil {
		return nil, err
	}

	return stripVendorIdentifiers(result, vendor.ID), nil
}

func (l *Layer) transform(category, vendorID, operation string, input map[string]interface{}) (map[string]interface{}, error) {
	program := l.programs[category+"/"+vendorID+"/"+operation]
	if program == nil {
		return input, nil
	}
	out, err := expr.Run(program, map[string]interface{}{"input": input})
	if err != nil {
		return nil, gatewayerr.NewDefault(gatewayerr.SchemaViolation, "transform failed: "+err.Error())
	}
	result, ok := out.(map[string]interface{})
	if !ok {
		return nil, gatewayerr.NewDefault(gatewayerr.SchemaViolation, "transform must return an object")
	}
	return result, nil
}

// selectVendor prefers vendorPreference if healthy and non-deprecated,
// else the first healthy, non-deprecated vendor.
func (l *Layer) selectVendor(cat *models.CategoryAbstraction, preference string) (*models.Vendor, error) {
	if preference != "" {
		if v, ok := cat.Vendors[preference]; ok && v.Healthy && v.DeprecatedAt == nil {
			return v, nil
		}
	}
	for _, v := range cat.Vendors {
		if v.Healthy && v.DeprecatedAt == nil {
			return v, nil
		}
	}
	return nil, gatewayerr.NewDefault(gatewayerr.NoVendorAvailable, "no healthy, non-deprecated vendor available for category "+cat.Category)
}

// RemoveVendor enforces the 30-day deprecation guard: a vendor can only be
// removed once it has been marked deprecated for at least vendorRemovalGuard.
func (l *Layer) RemoveVendor(category, vendorID string) error {
	cat, ok := l.categories[category]
	if !ok {
		return gatewayerr.NewDefault(gatewayerr.AbstractionNotFound, "no abstraction registered for category "+category)
	}
	v, ok := cat.Vendors[vendorID]
	if !ok {
		return gatewayerr.NewDefault(gatewayerr.AbstractionNotFound, "no vendor "+vendorID+" in category "+category)
	}
	if v.DeprecatedAt == nil {
		return gatewayerr.NewDefault(gatewayerr.VendorRemovalTooSoon, "vendor must be marked deprecated before removal")
	}
	if time.Since(*v.DeprecatedAt) < vendorRemovalGuard {
		return gatewayerr.NewDefault(gatewayerr.VendorRemovalTooSoon,
			fmt.Sprintf("vendor %s deprecated %s ago, removal requires %s", vendorID, time.Since(*v.DeprecatedAt), vendorRemovalGuard))
	}
	delete(cat.Vendors, vendorID)
	return nil
}

var _ contracts.VendorAbstraction = (*Layer)(nil)
