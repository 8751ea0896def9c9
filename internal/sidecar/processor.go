package sidecar

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cecil-the-coder/ai-provider-kit/pkg/audit"
	"github.com/cecil-the-coder/ai-provider-kit/pkg/extprocapi"
	"github.com/cecil-the-coder/ai-provider-kit/pkg/policy"
	"github.com/cecil-the-coder/ai-provider-kit/pkg/provider"
	"github.com/cecil-the-coder/ai-provider-kit/pkg/streamguard"
)

// Loader resolves the PromptGuardPolicy configured for a route. Satisfied
// by pkg/kubeconfig.FileLoader; kept narrow so this package depends only
// on the lookup it actually needs.
type Loader interface {
	Policy(route string) (*policy.PromptGuardPolicy, bool)
}

// Config carries the shared collaborators every stream's Processor is
// built from.
type Config struct {
	Loader    Loader
	Gate      policy.Gate
	Webhook   streamguard.WebhookGuard
	Regex     streamguard.RegexGuard
	Metrics   streamguard.Recorder
	Audit     *audit.Producer
	Log       *logrus.Entry
	Principal func(headers http.Header) string
}

// Processor implements extprocapi.Processor for exactly one HTTP stream;
// the owning factory constructs a fresh one per stream, mirroring the
// per-stream Processor lifecycle in the pack's ext_proc reference.
type Processor struct {
	cfg      *Config
	streamID string
	route    string
	kind     provider.Kind
	headers  http.Header
	pol      *policy.PromptGuardPolicy

	request  *streamguard.StreamState
	response *streamguard.StreamState
}

// NewProcessor returns a Processor bound to cfg's shared collaborators.
func NewProcessor(cfg *Config) *Processor {
	return &Processor{cfg: cfg, streamID: uuid.NewString()}
}

// ProcessRequestHeaders resolves the stream's route and provider kind,
// evaluates the authorization gate, and looks up the route's policy.
func (p *Processor) ProcessRequestHeaders(ctx context.Context, headers http.Header) error {
	p.headers = headers
	route, kind := routeFromHeaders(headers)
	p.route = route
	p.kind = kind

	principal := ""
	if p.cfg.Principal != nil {
		principal = p.cfg.Principal(headers)
	}

	pol, _ := p.cfg.Loader.Policy(route)
	if p.cfg.Gate != nil && !p.cfg.Gate.Evaluate(ctx, principal, route) {
		p.cfg.Log.WithFields(logrus.Fields{"stream_id": p.streamID, "route": route}).
			Info("sidecar: policy gate denied, guardrails disabled for this stream")
		pol = &policy.PromptGuardPolicy{}
	}
	p.pol = pol
	return nil
}

// ProcessResponseHeaders is a no-op placeholder; response-direction policy
// is already resolved from ProcessRequestHeaders.
func (p *Processor) ProcessResponseHeaders(ctx context.Context, headers http.Header) error {
	return nil
}

// ProcessBody implements extprocapi.Processor, routing to the request- or
// response-direction StreamState, constructing it lazily on first use.
func (p *Processor) ProcessBody(ctx context.Context, dir extprocapi.Direction, body extprocapi.HttpBody) ([]byte, error) {
	state, err := p.stateFor(dir)
	if err != nil {
		return nil, err
	}
	out, err := state.Buffer(ctx, body.Body, body.EndOfStream, p.headers, p.cfg.Webhook, p.cfg.Regex)
	if err != nil {
		if p.cfg.Audit != nil {
			_ = p.cfg.Audit.Publish(audit.Event{
				Type:     audit.RegexRejected,
				RouteID:  p.route,
				StreamID: p.streamID,
				Detail:   err.Error(),
			})
		}
		return nil, err
	}
	return out, nil
}

func (p *Processor) stateFor(dir extprocapi.Direction) (*streamguard.StreamState, error) {
	switch dir {
	case extprocapi.Request:
		if p.request == nil {
			state, err := p.newState(directionalPolicy(p.pol, extprocapi.Request))
			if err != nil {
				return nil, err
			}
			p.request = state
		}
		return p.request, nil
	case extprocapi.Response:
		if p.response == nil {
			state, err := p.newState(directionalPolicy(p.pol, extprocapi.Response))
			if err != nil {
				return nil, err
			}
			p.response = state
		}
		return p.response, nil
	default:
		return nil, fmt.Errorf("sidecar: unknown direction %d", dir)
	}
}

func (p *Processor) newState(pol *policy.PromptGuardPolicy) (*streamguard.StreamState, error) {
	adapter, err := provider.New(p.kind)
	if err != nil {
		return nil, fmt.Errorf("sidecar: resolving provider adapter: %w", err)
	}
	log := p.cfg.Log.WithFields(logrus.Fields{"stream_id": p.streamID, "route": p.route})
	state := streamguard.New(adapter, pol, log)
	if p.cfg.Metrics != nil {
		state = state.WithRecorder(p.cfg.Metrics)
	}
	if p.cfg.Audit != nil {
		state = state.WithAuditSink(auditSink{producer: p.cfg.Audit, routeID: p.route})
	}
	return state, nil
}

// auditSink adapts *audit.Producer, which publishes route-scoped Events,
// to streamguard.AuditSink, which only knows about the current stream.
type auditSink struct {
	producer *audit.Producer
	routeID  string
}

func (a auditSink) PublishWebhookFailure(streamID, detail string) {
	_ = a.producer.Publish(audit.Event{
		Type:     audit.WebhookFailed,
		RouteID:  a.routeID,
		StreamID: streamID,
		Detail:   detail,
	})
}

// directionalPolicy narrows a route's combined policy down to just the
// webhook/regex pair relevant to dir, since StreamState.Buffer only ever
// consults the response-direction fields regardless of which direction it
// is buffering.
func directionalPolicy(pol *policy.PromptGuardPolicy, dir extprocapi.Direction) *policy.PromptGuardPolicy {
	if pol == nil {
		return &policy.PromptGuardPolicy{}
	}
	if dir == extprocapi.Request {
		return &policy.PromptGuardPolicy{
			ResponseWebhook:  pol.RequestWebhook,
			ResponseRegex:    pol.RequestRegex,
			MinSegmentLength: pol.MinSegmentLength,
			BoundaryPattern:  pol.BoundaryPattern,
			CustomResponse:   pol.CustomResponse,
		}
	}
	return pol
}
