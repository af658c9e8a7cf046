package discovery

import "strings"

// ReferenceContent is the curated gateway.reference response. Content is
// static and gateway-focused; vendor API semantics are out of scope and
// link out to provider docs instead.
type ReferenceContent struct {
	Topic          string   `json:"topic"`
	Overview       string   `json:"overview"`
	AuthConfig     *AuthRef `json:"auth_config,omitempty"`
	Examples       []string `json:"examples,omitempty"`
	CommonErrors   []string `json:"common_errors,omitempty"`
	BestPractices  []string `json:"best_practices,omitempty"`
}

// AuthRef documents how to configure one adapter's outbound authentication.
type AuthRef struct {
	Header      string `json:"header,omitempty"`
	EnvVar      string `json:"env_var,omitempty"`
	TokenFormat string `json:"token_format,omitempty"`
}

var conceptReference = map[string]ReferenceContent{
	"authentication": {
		Topic:    "authentication",
		Overview: "Outbound calls are signed per the adapter's configured authentication.type: none, bearer, apikey, basic, hmac, or oauth2. The Universal HTTP Client injects credentials before every request; callers never see vendor secrets.",
		BestPractices: []string{
			"Never pass raw secrets through tool params; configure them as service descriptor authentication.",
			"oauth2 adapters refresh on a stale cached token automatically; a single in-flight refresh is shared across concurrent callers.",
		},
	},
	"idempotency": {
		Topic:    "idempotency",
		Overview: "Every high-risk operation (payments, transfers, disbursements) requires an idempotency_key in gateway.execute's options. Replays with the same key must be safe to submit more than once.",
		CommonErrors: []string{
			"IDEMPOTENCY_REQUIRED: the call was high-risk and options.idempotency_key was missing.",
		},
		BestPractices: []string{
			"Generate one idempotency key per logical operation attempt, not per HTTP retry.",
		},
	},
	"risk-levels": {
		Topic:    "risk-levels",
		Overview: "Every operation is classified low, medium, high, or destructive. low/medium execute freely; high requires an idempotency key; destructive requires explicit confirmation.",
		BestPractices: []string{
			"Use gateway.intent's constraints field to check an operation's risk tier before calling gateway.execute.",
		},
	},
}

// Reference implements gateway.reference: topic is an adapter ID, a tool
// ID, or a concept name.
func (d *Discovery) Reference(topic, section string) ReferenceContent {
	if content, ok := conceptReference[strings.ToLower(topic)]; ok {
		return content
	}

	if op, ok := d.ops.Get(topic); ok {
		return ReferenceContent{
			Topic:    topic,
			Overview: "Tool " + op.Name + " on adapter " + op.Adapter + " (risk: " + string(op.RiskLevel) + "). " + op.Description,
			Examples: []string{"gateway.execute({tool_id: \"" + op.ToolID + "\", params: {...}})"},
		}
	}

	for _, a := range d.registry.Adapters() {
		if a.ID() == topic {
			return ReferenceContent{
				Topic:    topic,
				Overview: a.Description(),
				AuthConfig: &AuthRef{
					EnvVar: strings.ToUpper(strings.ReplaceAll(a.ID(), "-", "_")) + "_API_KEY",
				},
				Examples: []string{"gateway.tools({adapter: \"" + a.ID() + "\"})"},
			}
		}
	}

	return ReferenceContent{Topic: topic, Overview: "no reference content found for this topic"}
}
