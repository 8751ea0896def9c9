// Package sidecar wires the streaming guardrail engine, its collaborators,
// and policy configuration into an extprocapi.Processor driven per HTTP
// stream.
package sidecar

import (
	"net/http"

	"github.com/cecil-the-coder/ai-provider-kit/pkg/provider"
)

// RouteHeader names the header the control plane sets to identify which
// route (and therefore which policy and provider kind) a stream belongs
// to, mirroring rad-gateway's model-name-header idiom.
const RouteHeader = "x-ai-route"

// ProviderHeader names the header identifying the upstream wire shape for
// a stream, set by the routing layer ahead of this sidecar.
const ProviderHeader = "x-ai-provider-kind"

// routeFromHeaders extracts the route name and provider kind a stream was
// tagged with by the control plane.
func routeFromHeaders(headers http.Header) (route string, kind provider.Kind) {
	return headers.Get(RouteHeader), provider.Kind(headers.Get(ProviderHeader))
}
