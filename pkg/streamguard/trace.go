package streamguard

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// traceParentKey is the context key under which the current request's W3C
// traceparent is stored. No example in this repository's dependency set
// pulls in an OpenTelemetry SDK, so span propagation here is the minimal
// thing that actually needs doing: generate a traceparent, stash it on the
// context, and copy it onto outgoing webhook request headers. It stays on
// context.Context/net/http rather than adopting tracing machinery nothing
// else in the stack uses.
type traceParentKey struct{}

// WithTraceParent returns a context carrying traceparent, generating one
// (version 00, a fresh trace-id, a fresh parent-id, sampled) if none is
// given.
func WithTraceParent(ctx context.Context, traceParent string) context.Context {
	if traceParent == "" {
		traceParent = newTraceParent()
	}
	return context.WithValue(ctx, traceParentKey{}, traceParent)
}

// TraceParentFromContext returns the traceparent stashed by
// WithTraceParent, or "" if none was set.
func TraceParentFromContext(ctx context.Context) string {
	v, _ := ctx.Value(traceParentKey{}).(string)
	return v
}

// injectTraceParent copies the context's traceparent onto a header set
// that will be sent to a webhook guard, without mutating the caller's
// original headers.
func injectTraceParent(ctx context.Context, headers http.Header) http.Header {
	tp := TraceParentFromContext(ctx)
	if tp == "" {
		return headers
	}
	out := headers.Clone()
	if out == nil {
		out = http.Header{}
	}
	out.Set("traceparent", tp)
	return out
}

func newTraceParent() string {
	traceID := uuid.New()
	spanID := uuid.New()
	return "00-" + hex32(traceID) + "-" + hex16(spanID) + "-01"
}

func hex32(id uuid.UUID) string {
	b := id[:]
	return hexEncode(b)
}

func hex16(id uuid.UUID) string {
	b := id[:8]
	return hexEncode(b)
}

const hexDigits = "0123456789abcdef"

func hexEncode(b []byte) string {
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hexDigits[v>>4]
		out[i*2+1] = hexDigits[v&0x0f]
	}
	return string(out)
}
