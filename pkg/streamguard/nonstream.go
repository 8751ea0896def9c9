package streamguard

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/cecil-the-coder/ai-provider-kit/pkg/policy"
	"github.com/cecil-the-coder/ai-provider-kit/pkg/provider"
)

// GuardNonStreamingResponse applies the response-direction guardrails to a
// single, complete (non-streaming) chat-completion body. It is the
// single-shot sibling of the streaming engine: no buffering, no boundary
// alignment, no collapse — the whole body is already "final" the moment it
// arrives, so it runs the same guard stage (runGuards) the streaming
// path's final flush uses over the body's extracted contents, and writes
// any rewritten content back into the body with the adapter.
//
// It returns the (possibly rewritten) body bytes, or a *RegexRejection
// error the caller should turn into an immediate response via the route's
// CustomResponse.
func GuardNonStreamingResponse(ctx context.Context, adapter provider.Adapter, pol *policy.PromptGuardPolicy, log *logrus.Entry, body []byte, headers http.Header, webhook WebhookGuard, regex RegexGuard) ([]byte, error) {
	s := New(adapter, pol, log)

	contents, ok := adapter.ExtractContents(body)
	if !ok {
		return body, nil
	}
	views := make([]ContentView, len(contents))
	segment := make([]string, len(contents))
	for i, c := range contents {
		segment[i] = string(c)
		views[i] = ContentView{ChoiceIndex: i, Content: segment[i], BeginIndex: 0, EndIndex: 1}
	}

	result, err := s.runGuards(ctx, views, webhook, regex, headers)
	if err != nil {
		return nil, err
	}
	if !result.modified {
		return body, nil
	}

	out := body
	for choice, content := range result.newContents {
		out, err = adapter.UpdateContents(out, choice, content)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
