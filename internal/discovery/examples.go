package discovery

import (
	"strings"

	"github.com/meridiangw/gateway/pkg/models"
)

// exampleHeuristics maps a parameter-name fragment to a synthesized example
// value. Checked in order; the first fragment match wins.
var exampleHeuristics = []struct {
	fragment string
	value    interface{}
}{
	{"email", "customer@example.com"},
	{"amount", 500000},
	{"currency", "NGN"},
	{"reference", "ref_7f3a2b1c"},
	{"phone", "+2348012345678"},
	{"url", "https://example.com/webhook"},
	{"id", "id_01HX9Z"},
	{"name", "Jane Doe"},
	{"date", "2026-07-29"},
	{"country", "NG"},
}

// synthesizeExample builds one example value per required (then optional)
// parameter, using name heuristics, falling back to an enum's first member
// or a type-appropriate placeholder.
func synthesizeExample(op models.Operation) map[string]interface{} {
	out := make(map[string]interface{})
	props, _ := op.InputSchema["properties"].(map[string]interface{})

	for _, name := range append(append([]string{}, op.RequiredParams...), op.OptionalParams...) {
		var propSchema map[string]interface{}
		if props != nil {
			propSchema, _ = props[name].(map[string]interface{})
		}
		out[name] = exampleValue(name, propSchema)
	}
	return out
}

func exampleValue(name string, propSchema map[string]interface{}) interface{} {
	lower := strings.ToLower(name)
	for _, h := range exampleHeuristics {
		if strings.Contains(lower, h.fragment) {
			return h.value
		}
	}

	if propSchema != nil {
		if enum, ok := propSchema["enum"].([]interface{}); ok && len(enum) > 0 {
			return enum[0]
		}
		switch t, _ := propSchema["type"].(string); t {
		case "integer":
			return 1
		case "number":
			return 1.0
		case "boolean":
			return false
		case "array":
			return []interface{}{}
		case "object":
			return map[string]interface{}{}
		}
	}
	return "example"
}
