package streamguard

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cecil-the-coder/ai-provider-kit/pkg/policy"
)

type failingWebhookGuard struct{}

func (failingWebhookGuard) Call(ctx context.Context, cfg policy.WebhookConfig, headers http.Header, contents []string) (bool, []string, error) {
	return false, nil, errors.New("dial tcp: connection refused")
}

type recordingAuditSink struct {
	streamID string
	detail   string
	calls    int
}

func (r *recordingAuditSink) PublishWebhookFailure(streamID, detail string) {
	r.streamID = streamID
	r.detail = detail
	r.calls++
}

func TestRunGuards_WebhookTransportFailurePublishesAuditEventAndIsNoop(t *testing.T) {
	sink := &recordingAuditSink{}
	s := newTestState(t, &policy.PromptGuardPolicy{
		ResponseWebhook: &policy.WebhookConfig{Host: "guard.internal", Port: 443},
	}).WithAuditSink(sink)
	views := []ContentView{{ChoiceIndex: 0, Content: "hello", BeginIndex: 0, EndIndex: 1}}

	result, err := s.runGuards(context.Background(), views, failingWebhookGuard{}, nil, nil)
	require.NoError(t, err)
	assert.False(t, result.modified)
	assert.Equal(t, 1, sink.calls)
	assert.Equal(t, s.ID, sink.streamID)
	assert.Contains(t, sink.detail, "connection refused")
}

type rejectingRegexGuard struct{}

func (rejectingRegexGuard) Transform(ctx context.Context, recognizers []policy.RegexRecognizer, content string) (string, bool, error) {
	return "", false, &RegexRejection{RecognizerName: "ssn"}
}

func TestRunGuards_PropagatesRegexRejection(t *testing.T) {
	s := newTestState(t, &policy.PromptGuardPolicy{
		ResponseRegex: []policy.RegexRecognizer{
			{Builtins: []string{policy.BuiltinSSN}, Action: policy.Reject},
		},
	})
	views := []ContentView{{ChoiceIndex: 0, Content: "my ssn is 123-45-6789", BeginIndex: 0, EndIndex: 1}}

	_, err := s.runGuards(context.Background(), views, nil, rejectingRegexGuard{}, nil)
	require.Error(t, err)
	var rej *RegexRejection
	assert.ErrorAs(t, err, &rej)
	assert.Equal(t, "ssn", rej.RecognizerName)
}

func TestRunGuards_NoGuardsConfiguredIsNoop(t *testing.T) {
	s := newTestState(t, &policy.PromptGuardPolicy{})
	views := []ContentView{{ChoiceIndex: 0, Content: "hello", BeginIndex: 0, EndIndex: 1}}

	result, err := s.runGuards(context.Background(), views, nil, nil, nil)
	require.NoError(t, err)
	assert.False(t, result.modified)
}
