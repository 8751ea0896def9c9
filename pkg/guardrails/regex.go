package guardrails

import (
	"context"
	"regexp"
	"sync"

	"github.com/cecil-the-coder/ai-provider-kit/pkg/policy"
	"github.com/cecil-the-coder/ai-provider-kit/pkg/streamguard"
)

// builtinPatterns backs the BuiltIn recognizer names from prompt_guard.py.
// They are deliberately simple (no Luhn check on credit cards, no NANP
// validation on phone numbers) — a production deployment points Builtins
// at a real PII detection engine; these exist so the default build runs
// end to end without one configured.
var builtinPatterns = map[string]*regexp.Regexp{
	policy.BuiltinSSN:         regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
	policy.BuiltinCreditCard:  regexp.MustCompile(`\b(?:\d[ -]*?){13,16}\b`),
	policy.BuiltinPhoneNumber: regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`),
	policy.BuiltinEmail:       regexp.MustCompile(`\b[\w.+-]+@[\w-]+\.[\w.-]+\b`),
}

// AnonymizerEngine is the injection seam for an external PII anonymization
// service — e.g. Microsoft Presidio's AnonymizerEngine, which the source
// extension imports directly (streamchunks.py's `from presidio_anonymizer
// import AnonymizerEngine`) — that turns a raw match into its anonymized
// replacement. RegexAnonymizer calls it once per match under the Mask
// action. When none is injected, defaultAnonymizerEngine reproduces
// Presidio's default "replace" operator: the match is swapped for
// "<ENTITY_NAME>".
type AnonymizerEngine interface {
	Anonymize(entityName, match string) string
}

type defaultAnonymizerEngine struct{}

func (defaultAnonymizerEngine) Anonymize(entityName, match string) string {
	return "<" + entityName + ">"
}

// RegexAnonymizer implements streamguard.RegexGuard by running a policy's
// explicit pattern matches and built-in entity recognizers over content,
// anonymizing matches via its AnonymizerEngine or rejecting outright per
// the recognizer's Action.
type RegexAnonymizer struct {
	mu     sync.Mutex
	cache  map[string]*regexp.Regexp
	engine AnonymizerEngine
}

// NewRegexAnonymizer returns a ready-to-use anonymizer backed by the
// default entity-tag AnonymizerEngine. Use WithAnonymizerEngine to point
// it at a real PII anonymization service instead.
func NewRegexAnonymizer() *RegexAnonymizer {
	return &RegexAnonymizer{cache: make(map[string]*regexp.Regexp), engine: defaultAnonymizerEngine{}}
}

// WithAnonymizerEngine replaces the default entity-tag engine, returning r
// for chaining at construction time.
func (r *RegexAnonymizer) WithAnonymizerEngine(e AnonymizerEngine) *RegexAnonymizer {
	if e != nil {
		r.engine = e
	}
	return r
}

func (r *RegexAnonymizer) compile(pattern string) (*regexp.Regexp, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if re, ok := r.cache[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	r.cache[pattern] = re
	return re, nil
}

// Transform implements streamguard.RegexGuard.
func (r *RegexAnonymizer) Transform(ctx context.Context, recognizers []policy.RegexRecognizer, content string) (string, bool, error) {
	modified := false
	out := content

	for _, rec := range recognizers {
		patterns := make([]namedPattern, 0, len(rec.Matches)+len(rec.Builtins))
		for _, m := range rec.Matches {
			re, err := r.compile(m.Pattern)
			if err != nil {
				return "", false, err
			}
			patterns = append(patterns, namedPattern{name: m.Name, re: re})
		}
		for _, b := range rec.Builtins {
			if re, ok := builtinPatterns[b]; ok {
				patterns = append(patterns, namedPattern{name: b, re: re})
			}
		}

		for _, p := range patterns {
			if !p.re.MatchString(out) {
				continue
			}
			switch rec.Action {
			case policy.Reject:
				return "", false, &streamguard.RegexRejection{RecognizerName: p.name}
			default: // Mask
				name := p.name
				out = p.re.ReplaceAllStringFunc(out, func(match string) string {
					return r.engine.Anonymize(name, match)
				})
				modified = true
			}
		}
	}

	return out, modified, nil
}

type namedPattern struct {
	name string
	re   *regexp.Regexp
}
