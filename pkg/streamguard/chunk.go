// Package streamguard implements the streaming response guardrail engine:
// a per-stream buffer that reassembles SSE chunks into semantic segments,
// runs regex and webhook guardrails once enough content has accumulated,
// rewrites and collapses chunks when content changes, and preserves
// aggregate token accounting across the rewrite.
package streamguard

import (
	"github.com/cecil-the-coder/ai-provider-kit/pkg/provider"
	"github.com/cecil-the-coder/ai-provider-kit/pkg/sse"
	"github.com/cecil-the-coder/ai-provider-kit/pkg/tokens"
)

// Chunk is a single parsed SSE frame plus derived metadata. Raw always
// holds the canonical bytes to emit for this chunk — whatever produced the
// Chunk is responsible for keeping Raw in sync with Payload/Contents
// whenever either is mutated.
type Chunk struct {
	Raw      []byte
	Payload  []byte
	Contents [][]byte
	Kind     provider.ChunkKind

	// IsDoneSentinel is true when this chunk is the upstream's literal
	// out-of-band completion marker (OpenAI/Azure/Mistral's "[DONE]"
	// frame), as opposed to a completion signaled through ordinary JSON
	// payload shape (Anthropic's message_stop, for instance). Passed
	// through to Adapter.IsStreamCompleted.
	IsDoneSentinel bool
}

// fromFrame builds a Chunk from a parsed SSE frame, classifying it with the
// given provider adapter.
func fromFrame(f sse.Frame, adapter provider.Adapter) Chunk {
	if f.Done {
		return Chunk{Raw: f.Raw, Kind: provider.Done, IsDoneSentinel: true}
	}
	c := Chunk{Raw: f.Raw}
	if len(f.Data) == 0 {
		c.Kind = provider.Invalid
		return c
	}
	c.Payload = f.Data
	c.Kind = adapter.Classify(f.Data, f.Data, false)
	if c.Kind == provider.NormalText || c.Kind == provider.Finish {
		if contents, ok := adapter.ExtractContents(f.Data); ok {
			c.Contents = contents
		}
	}
	return c
}

// contentLength returns the length, in characters, of content for the
// given choice index, decoding as UTF-8 when the bytes contain any
// non-ASCII byte — matching StreamChunkData.get_content_length, which
// switches from a raw byte count to a decoded rune count once non-ASCII
// bytes are present, so segment-boundary math lines up with Python/Go
// string indexing rather than raw byte counts.
func contentLength(content []byte) int {
	ascii := true
	for _, b := range content {
		if b >= 0x80 {
			ascii = false
			break
		}
	}
	if ascii {
		return len(content)
	}
	return len([]rune(string(content)))
}

// usageTokens extracts this chunk's reported Tokens via the adapter, or the
// zero value if the chunk carries no payload.
func usageTokens(c Chunk, adapter provider.Adapter) tokens.Tokens {
	if c.Payload == nil {
		return tokens.Tokens{}
	}
	return adapter.Tokens(c.Payload)
}
