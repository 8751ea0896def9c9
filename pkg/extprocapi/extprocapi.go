// Package extprocapi models the Envoy ext_proc contract this sidecar
// speaks, in plain Go types rather than the generated go-control-plane/gRPC
// stubs — the wire plumbing that carries these types over gRPC is out of
// scope here; this package is the shape a Processor implementation is
// driven through.
package extprocapi

import (
	"context"
	"net/http"
)

// HttpBody is one body chunk as delivered by the ext_proc filter, mirroring
// envoy.service.ext_proc.v3.HttpBody's Body/EndOfStream fields.
type HttpBody struct {
	Body        []byte
	EndOfStream bool
}

// Direction distinguishes a request body stream from a response body
// stream; guardrail policy is configured separately per direction.
type Direction int

const (
	Request Direction = iota
	Response
)

// Processor is driven once per HTTP stream: headers first, then zero or
// more body chunks. A Processor implementation that buffers must return
// nil, nil from ProcessBody until it has enough bytes to emit, per
// streamguard.StreamState.Buffer's "call me again" contract.
type Processor interface {
	ProcessRequestHeaders(ctx context.Context, headers http.Header) error
	ProcessResponseHeaders(ctx context.Context, headers http.Header) error

	// ProcessBody consumes one HttpBody chunk for the given direction and
	// returns the bytes to forward downstream, or nil to withhold until
	// more input arrives. A non-nil error terminates the stream; callers
	// should inspect it with errors.As against *streamguard.RegexRejection
	// to distinguish an intentional guardrail rejection from a transport
	// or decode failure.
	ProcessBody(ctx context.Context, dir Direction, body HttpBody) ([]byte, error)
}
