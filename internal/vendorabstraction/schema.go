package vendorabstraction

import (
	"fmt"
	"strings"

	"github.com/meridiangw/gateway/internal/gatewayerr"
	"github.com/meridiangw/gateway/pkg/models"
)

// applyDefaultsAndValidate copies input, fills declared defaults for absent
// optional fields, and checks required presence + scalar type per
// models.ClientField. On any violation it returns SCHEMA_VIOLATION.
func applyDefaultsAndValidate(schema models.ClientOperationSchema, input map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(input))
	for k, v := range input {
		out[k] = v
	}

	var violations []string
	for name, field := range schema.Fields {
		value, present := out[name]
		if !present {
			if field.Required {
				violations = append(violations, fmt.Sprintf("missing required field %q", name))
				continue
			}
			if field.Default != nil {
				out[name] = field.Default
			}
			continue
		}
		if !fieldTypeMatches(field.Type, value) {
			violations = append(violations, fmt.Sprintf("field %q: expected %s", name, field.Type))
		}
	}

	if len(violations) > 0 {
		return nil, gatewayerr.NewDefault(gatewayerr.SchemaViolation, strings.Join(violations, "; "))
	}
	return out, nil
}

func fieldTypeMatches(want string, value interface{}) bool {
	switch want {
	case "string":
		_, ok := value.(string)
		return ok
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "integer":
		f, ok := value.(float64)
		return ok && f == float64(int64(f))
	case "number":
		_, ok := value.(float64)
		return ok
	default:
		return true
	}
}

// stripVendorIdentifiers removes the vendor ID from a map-shaped response
// so the client surface never sees which vendor served the call. Non-map
// results pass through unchanged — they carry no vendor identifier field
// by construction.
func stripVendorIdentifiers(result interface{}, vendorID string) interface{} {
	m, ok := result.(map[string]interface{})
	if !ok {
		return result
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		lower := strings.ToLower(k)
		if lower == "vendor" || lower == "vendorid" || lower == "provider" || strings.Contains(lower, vendorID) {
			continue
		}
		out[k] = v
	}
	return out
}
