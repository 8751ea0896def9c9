package guardrails

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cecil-the-coder/ai-provider-kit/pkg/policy"
	"github.com/cecil-the-coder/ai-provider-kit/pkg/streamguard"
)

func TestRegexAnonymizer_MasksExplicitPattern(t *testing.T) {
	a := NewRegexAnonymizer()
	recs := []policy.RegexRecognizer{
		{Matches: []policy.RegexMatch{{Pattern: `secret-\d+`, Name: "token"}}, Action: policy.Mask},
	}

	out, modified, err := a.Transform(context.Background(), recs, "here is secret-123 for you")
	require.NoError(t, err)
	assert.True(t, modified)
	assert.Equal(t, "here is <token> for you", out)
}

func TestRegexAnonymizer_NoMatchLeavesContentUnchanged(t *testing.T) {
	a := NewRegexAnonymizer()
	recs := []policy.RegexRecognizer{
		{Matches: []policy.RegexMatch{{Pattern: `nope`, Name: "nope"}}, Action: policy.Mask},
	}

	out, modified, err := a.Transform(context.Background(), recs, "nothing to see here")
	require.NoError(t, err)
	assert.False(t, modified)
	assert.Equal(t, "nothing to see here", out)
}

func TestRegexAnonymizer_BuiltinSSNMasked(t *testing.T) {
	a := NewRegexAnonymizer()
	recs := []policy.RegexRecognizer{
		{Builtins: []string{policy.BuiltinSSN}, Action: policy.Mask},
	}

	out, modified, err := a.Transform(context.Background(), recs, "ssn: 123-45-6789 thanks")
	require.NoError(t, err)
	assert.True(t, modified)
	assert.Equal(t, "ssn: <"+policy.BuiltinSSN+"> thanks", out)
}

func TestRegexAnonymizer_BuiltinCreditCardMaskedWithEntityTag(t *testing.T) {
	a := NewRegexAnonymizer()
	recs := []policy.RegexRecognizer{
		{Builtins: []string{policy.BuiltinCreditCard}, Action: policy.Mask},
	}

	out, modified, err := a.Transform(context.Background(), recs, "card: 4111111111111111 on file")
	require.NoError(t, err)
	assert.True(t, modified)
	assert.Equal(t, "card: <"+policy.BuiltinCreditCard+"> on file", out)
}

type upperCaseAnonymizerEngine struct{}

func (upperCaseAnonymizerEngine) Anonymize(entityName, match string) string {
	return "[[" + entityName + "]]"
}

func TestRegexAnonymizer_WithAnonymizerEngineOverridesDefaultFormat(t *testing.T) {
	a := NewRegexAnonymizer().WithAnonymizerEngine(upperCaseAnonymizerEngine{})
	recs := []policy.RegexRecognizer{
		{Matches: []policy.RegexMatch{{Pattern: `secret-\d+`, Name: "token"}}, Action: policy.Mask},
	}

	out, modified, err := a.Transform(context.Background(), recs, "here is secret-123 for you")
	require.NoError(t, err)
	assert.True(t, modified)
	assert.Equal(t, "here is [[token]] for you", out)
}

func TestRegexAnonymizer_RejectActionReturnsStreamguardRejection(t *testing.T) {
	a := NewRegexAnonymizer()
	recs := []policy.RegexRecognizer{
		{Builtins: []string{policy.BuiltinCreditCard}, Action: policy.Reject},
	}

	_, _, err := a.Transform(context.Background(), recs, "card is 4111111111111111")
	require.Error(t, err)
	var rej *streamguard.RegexRejection
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, policy.BuiltinCreditCard, rej.RecognizerName)
}

func TestRegexAnonymizer_CachesCompiledPatterns(t *testing.T) {
	a := NewRegexAnonymizer()
	recs := []policy.RegexRecognizer{
		{Matches: []policy.RegexMatch{{Pattern: `x+`, Name: "x"}}, Action: policy.Mask},
	}

	_, _, err := a.Transform(context.Background(), recs, "xx")
	require.NoError(t, err)
	re, ok := a.cache[`x+`]
	require.True(t, ok)
	assert.True(t, re.MatchString("xxx"))
}
