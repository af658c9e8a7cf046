package discovery

import (
	"fmt"
	"sort"
	"strings"

	"github.com/meridiangw/gateway/internal/gatewayerr"
)

// paramViolation is one parameter-validation failure, typed so the caller
// can map it onto a specific gatewayerr code instead of collapsing every
// kind of failure into one.
type paramViolation struct {
	Code     gatewayerr.Code
	Field    string
	Message  string
	Expected string
	Received string
}

// validateParams is a deliberately small, hand-rolled validator covering
// only what the meta-tools need: "type", "enum", "required", and the
// integer/number distinction. A full JSON-Schema implementation is
// out of scope for the five meta-tools; see DESIGN.md.
func validateParams(schema map[string]interface{}, args map[string]interface{}) []paramViolation {
	if schema == nil {
		return nil
	}
	var violations []paramViolation

	if req, ok := schema["required"].([]interface{}); ok {
		for _, r := range req {
			name, ok := r.(string)
			if !ok {
				continue
			}
			if _, present := args[name]; !present {
				violations = append(violations, paramViolation{
					Code:    gatewayerr.MissingRequiredParam,
					Field:   name,
					Message: fmt.Sprintf("missing required field %q", name),
				})
			}
		}
	}

	props, _ := schema["properties"].(map[string]interface{})
	for name, raw := range args {
		propSchema, ok := props[name].(map[string]interface{})
		if !ok {
			continue
		}
		if v, ok := validateField(name, propSchema, raw); ok {
			violations = append(violations, v)
		}
	}

	sort.Slice(violations, func(i, j int) bool { return violations[i].Field < violations[j].Field })
	return violations
}

func validateField(name string, propSchema map[string]interface{}, value interface{}) (paramViolation, bool) {
	wantType, _ := propSchema["type"].(string)
	if wantType != "" && !matchesType(wantType, value) {
		return paramViolation{
			Code:     gatewayerr.InvalidParamType,
			Field:    name,
			Message:  fmt.Sprintf("field %q: expected type %s, received %s", name, wantType, goTypeName(value)),
			Expected: wantType,
			Received: goTypeName(value),
		}, true
	}

	if enum, ok := propSchema["enum"].([]interface{}); ok {
		for _, e := range enum {
			if e == value {
				return paramViolation{}, false
			}
		}
		return paramViolation{
			Code:     gatewayerr.InvalidParamValue,
			Field:    name,
			Message:  fmt.Sprintf("field %q: value not in enum %v", name, enum),
			Expected: fmt.Sprintf("%v", enum),
			Received: fmt.Sprintf("%v", value),
		}, true
	}
	return paramViolation{}, false
}

func matchesType(want string, value interface{}) bool {
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
	case "array":
		_, ok := value.([]interface{})
		return ok
	case "object":
		_, ok := value.(map[string]interface{})
		return ok
	default:
		return true
	}
}

func goTypeName(value interface{}) string {
	switch value.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", value)
	}
}

// primaryCode reports the violation code gateway.execute should surface for
// the whole batch: missing-required takes priority over type/enum mismatches
// since there's nothing meaningful to validate about a field that isn't
// there.
func primaryCode(violations []paramViolation) gatewayerr.Code {
	for _, v := range violations {
		if v.Code == gatewayerr.MissingRequiredParam {
			return v.Code
		}
	}
	return violations[0].Code
}

// violationsSummary renders validation errors as one client-facing string.
func violationsSummary(violations []paramViolation) string {
	msgs := make([]string, len(violations))
	for i, v := range violations {
		msgs[i] = v.Message
	}
	return strings.Join(msgs, "; ")
}
