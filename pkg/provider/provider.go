// Package provider implements the per-upstream JSON shape knowledge the
// streaming guardrail engine needs: pulling text content and token counts
// out of a provider's chunk payload, writing guarded content and usage back
// in, and classifying a chunk for the buffer.
//
// This is a tagged union, not an inheritance hierarchy: one Adapter
// implementation per upstream wire shape, dispatched by Kind. Providers
// that share a wire shape (Azure OpenAI and Mistral both speak OpenAI's
// streaming format; Vertex AI speaks Gemini's) share the same
// implementation under a different Name(), the way the original source
// shares helpers instead of subclassing.
package provider

import "github.com/cecil-the-coder/ai-provider-kit/pkg/tokens"

// Kind names a supported upstream wire shape.
type Kind string

const (
	OpenAI      Kind = "openai"
	AzureOpenAI Kind = "azure_openai"
	Anthropic   Kind = "anthropic"
	Gemini      Kind = "gemini"
	VertexAI    Kind = "vertex_ai"
	Mistral     Kind = "mistral"
)

// ChunkKind classifies a parsed chunk for the stream buffer.
type ChunkKind int

const (
	NormalText ChunkKind = iota
	NormalBinary
	Finish
	FinishNoContent
	Done
	Invalid
)

func (k ChunkKind) String() string {
	switch k {
	case NormalText:
		return "NORMAL_TEXT"
	case NormalBinary:
		return "NORMAL_BINARY"
	case Finish:
		return "FINISH"
	case FinishNoContent:
		return "FINISH_NO_CONTENT"
	case Done:
		return "DONE"
	default:
		return "INVALID"
	}
}

// Adapter is the per-provider operation set. Every method is pure over the
// payload bytes it is given; none retain state across calls. Implementations
// must tolerate absent/null JSON fields without erroring — they report
// absent/zero values instead.
type Adapter interface {
	// Name identifies the adapter for logging and metrics, distinct from
	// Kind where two Kinds share an implementation (e.g. "azure_openai"
	// vs "openai").
	Name() string

	// ExtractContents returns one text entry per choice, in upstream
	// order, or ok=false for a frame with no extractable text (binary
	// deltas, control frames).
	ExtractContents(payload []byte) (contents [][]byte, ok bool)

	// UpdateContents rewrites a single choice's text field and returns the
	// re-serialized payload with every other field preserved.
	UpdateContents(payload []byte, choiceIndex int, newContent []byte) ([]byte, error)

	// UpdateUsage writes prompt/completion token counts into the payload.
	UpdateUsage(payload []byte, t tokens.Tokens) ([]byte, error)

	// GetModel returns the model identifier reported in the payload.
	GetModel(payload []byte) string

	// Tokens reports whatever usage the payload carries. Callers
	// accumulating across chunks must account for providers (Gemini,
	// Vertex AI) that repeat the prompt count on every frame — see
	// tokens.Accumulator.
	Tokens(payload []byte) tokens.Tokens

	// Classify tags a chunk. rawData is the frame's raw SSE data field;
	// the OpenAI "[DONE]" sentinel, which has no JSON payload, is signaled
	// by isDoneSentinel. payload may be nil or may not be valid JSON;
	// implementations classify either case as Invalid.
	Classify(payload []byte, rawData []byte, isDoneSentinel bool) ChunkKind

	// IsStreamCompleted reports whether this chunk is the upstream's
	// stream-completion signal. For OpenAI-family providers this is the
	// "[DONE]" sentinel; for Anthropic and Gemini/Vertex, which have no
	// such sentinel, it is driven by the terminal event/finish-reason
	// shape instead.
	IsStreamCompleted(payload []byte, isDoneSentinel bool) bool

	// HasFunctionCallFinishReason reports whether the payload's finish
	// reason indicates a tool/function call rather than a text stop.
	HasFunctionCallFinishReason(payload []byte) bool
}

// New returns the Adapter for kind.
func New(kind Kind) (Adapter, error) {
	switch kind {
	case OpenAI:
		return &openAIAdapter{name: "openai"}, nil
	case AzureOpenAI:
		return &openAIAdapter{name: "azure_openai"}, nil
	case Mistral:
		return &openAIAdapter{name: "mistral"}, nil
	case Anthropic:
		return &anthropicAdapter{}, nil
	case Gemini:
		return &geminiAdapter{name: "gemini"}, nil
	case VertexAI:
		return &geminiAdapter{name: "vertex_ai"}, nil
	default:
		return nil, &UnsupportedKindError{Kind: kind}
	}
}

// UnsupportedKindError is returned by New for an unregistered Kind.
type UnsupportedKindError struct {
	Kind Kind
}

func (e *UnsupportedKindError) Error() string {
	return "provider: unsupported kind " + string(e.Kind)
}
