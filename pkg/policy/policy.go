// Package policy defines the prompt-guard configuration shape — the
// regex/webhook/anonymizer policy applied to a route's request or response
// direction — mirroring the kgateway AIPromptGuard CRD this sidecar
// enforces, plus the authorization gate deciding whether a route's policy
// is active for a given stream.
package policy

// Action names what a regex recognizer does with a match.
type Action string

const (
	Mask   Action = "MASK"
	Reject Action = "REJECT"
)

// Built-in PII recognizer names, matching AIPromptGuard's BuiltIn enum.
const (
	BuiltinSSN         = "SSN"
	BuiltinCreditCard  = "CREDIT_CARD"
	BuiltinPhoneNumber = "PHONE_NUMBER"
	BuiltinEmail       = "EMAIL"
)

// RegexMatch is one named pattern to test content against.
type RegexMatch struct {
	Pattern string `yaml:"pattern"`
	Name    string `yaml:"name"`
}

// RegexRecognizer groups explicit patterns and built-in entity recognizers
// under a single action.
type RegexRecognizer struct {
	Matches  []RegexMatch `yaml:"matches"`
	Builtins []string     `yaml:"builtins"`
	Action   Action       `yaml:"action"`
}

// HeaderMatch selects which request headers get forwarded to a webhook.
type HeaderMatch struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
	Type  string `yaml:"type"` // "EXACT" or "REGULAR_EXPRESSION"
}

// WebhookConfig addresses an external moderation webhook.
type WebhookConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	ForwardHeaders []HeaderMatch `yaml:"forwardHeaders"`
}

// CustomResponse is the body/status synthesized when a REJECT recognizer
// fires, matching prompt_guard.py's CustomResponse default.
type CustomResponse struct {
	Message    string `yaml:"message"`
	StatusCode int    `yaml:"statusCode"`
}

// DefaultCustomResponse matches the original source's default.
func DefaultCustomResponse() CustomResponse {
	return CustomResponse{
		Message:    "The request was rejected due to inappropriate content",
		StatusCode: 403,
	}
}

// DefaultMinSegmentLength is the minimum reconstructed-content length, in
// characters, the guardrail engine waits for before running guards on a
// non-final segment.
const DefaultMinSegmentLength = 50

// DefaultBoundaryPattern matches one of .?!; followed by spaces/newlines,
// or one or more bare newlines.
const DefaultBoundaryPattern = `([.?!;] +\n*|\n+)`

// ModerationConfig names an external moderation model and its credential.
type ModerationConfig struct {
	Model     string `yaml:"model"`
	AuthToken string `yaml:"authToken"`
}

// PromptGuardPolicy is the full per-route guardrail configuration, for
// both the response direction (the focus of this repository) and the
// request direction (a thinner symmetric sibling; see
// internal/sidecar's directionalPolicy).
type PromptGuardPolicy struct {
	ResponseWebhook *WebhookConfig    `yaml:"responseWebhook,omitempty"`
	ResponseRegex   []RegexRecognizer `yaml:"responseRegex,omitempty"`
	RequestWebhook  *WebhookConfig    `yaml:"requestWebhook,omitempty"`
	RequestRegex    []RegexRecognizer `yaml:"requestRegex,omitempty"`

	Moderation *ModerationConfig `yaml:"moderation,omitempty"`

	MinSegmentLength int             `yaml:"minSegmentLength,omitempty"`
	BoundaryPattern  string          `yaml:"boundaryPattern,omitempty"`
	CustomResponse   *CustomResponse `yaml:"customResponse,omitempty"`
}

// EffectiveMinSegmentLength returns the configured minimum or the default.
func (p *PromptGuardPolicy) EffectiveMinSegmentLength() int {
	if p == nil || p.MinSegmentLength <= 0 {
		return DefaultMinSegmentLength
	}
	return p.MinSegmentLength
}

// EffectiveBoundaryPattern returns the configured pattern or the default.
func (p *PromptGuardPolicy) EffectiveBoundaryPattern() string {
	if p == nil || p.BoundaryPattern == "" {
		return DefaultBoundaryPattern
	}
	return p.BoundaryPattern
}

// EffectiveCustomResponse returns the configured response or the default.
func (p *PromptGuardPolicy) EffectiveCustomResponse() CustomResponse {
	if p == nil || p.CustomResponse == nil {
		return DefaultCustomResponse()
	}
	return *p.CustomResponse
}

// HasResponseGuards reports whether any response-direction guardrail is
// configured; the engine bypasses buffering entirely when this is false.
func (p *PromptGuardPolicy) HasResponseGuards() bool {
	return p != nil && (p.ResponseWebhook != nil || len(p.ResponseRegex) > 0)
}
