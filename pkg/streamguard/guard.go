package streamguard

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cecil-the-coder/ai-provider-kit/pkg/policy"
)

// WebhookGuard calls an external moderation webhook over the given
// per-choice contents. Transport failures must be returned as a non-nil
// error; the caller treats them as a no-op, never as a rejection.
type WebhookGuard interface {
	Call(ctx context.Context, cfg policy.WebhookConfig, headers http.Header, contents []string) (modified bool, newContents []string, err error)
}

// RegexGuard runs the configured regex recognizers (explicit patterns and
// built-ins) over one choice's content. It returns RegexRejection when a
// REJECT-action recognizer matches.
type RegexGuard interface {
	Transform(ctx context.Context, recognizers []policy.RegexRecognizer, content string) (newContent string, modified bool, err error)
}

// RegexRejection is returned by a RegexGuard when a REJECT-action
// recognizer matched; the caller propagates it so an immediate response can
// be synthesized from the route's CustomResponse.
type RegexRejection struct {
	RecognizerName string
}

func (e *RegexRejection) Error() string {
	return "streamguard: content rejected by regex recognizer " + e.RecognizerName
}

// guardResult carries the outcome of running both guard stages over the
// current segment.
type guardResult struct {
	modified    bool
	newContents [][]byte
}

// runGuards invokes the webhook guard, then the regex guard, over views in
// that fixed order — the regex stage must see the webhook's rewritten
// content, not the original, per the ordering invariant in SPEC_FULL.md
// §4.5. If only one guard is configured, the other is skipped entirely.
func (s *StreamState) runGuards(ctx context.Context, views []ContentView, webhook WebhookGuard, regex RegexGuard, headers http.Header) (guardResult, error) {
	contents := make([]string, len(views))
	for i, v := range views {
		contents[i] = v.Content
	}
	modified := false

	if webhook != nil && s.Policy.ResponseWebhook != nil {
		start := time.Now()
		ok, newContents, err := webhook.Call(ctx, *s.Policy.ResponseWebhook, injectTraceParent(ctx, headers), contents)
		s.metrics.ObserveWebhookDuration(time.Since(start).Seconds())
		if err != nil {
			s.log.WithError(err).Error("streamguard: webhook guard transport failure, treating as no-op")
			if s.audit != nil {
				s.audit.PublishWebhookFailure(s.ID, err.Error())
			}
		} else if ok {
			if len(newContents) != len(contents) {
				s.log.Error("streamguard: webhook guard returned mismatched choice count, discarding result")
			} else {
				contents = newContents
				modified = true
			}
		}
	}

	if regex != nil && len(s.Policy.ResponseRegex) > 0 {
		for i, c := range contents {
			newContent, ok, err := regex.Transform(ctx, s.Policy.ResponseRegex, c)
			if err != nil {
				var rej *RegexRejection
				if errors.As(err, &rej) {
					return guardResult{}, err
				}
				s.log.WithError(err).Error("streamguard: regex guard failed, leaving content unchanged")
				continue
			}
			if ok {
				contents[i] = newContent
				modified = true
			}
		}
	}

	if !modified {
		return guardResult{modified: false}, nil
	}
	out := make([][]byte, len(contents))
	for i, c := range contents {
		out[i] = []byte(c)
	}
	return guardResult{modified: true, newContents: out}, nil
}
