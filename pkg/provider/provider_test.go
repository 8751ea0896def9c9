package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cecil-the-coder/ai-provider-kit/pkg/tokens"
)

func TestNew_UnsupportedKind(t *testing.T) {
	_, err := New(Kind("bogus"))
	require.Error(t, err)
}

func TestOpenAIAdapter_ExtractAndUpdateContents(t *testing.T) {
	a, err := New(OpenAI)
	require.NoError(t, err)

	payload := []byte(`{"id":"1","model":"gpt-4o","choices":[{"index":0,"delta":{"content":"hi"},"finish_reason":null}]}`)
	contents, ok := a.ExtractContents(payload)
	require.True(t, ok)
	require.Len(t, contents, 1)
	assert.Equal(t, "hi", string(contents[0]))

	updated, err := a.UpdateContents(payload, 0, []byte("***"))
	require.NoError(t, err)
	assert.Equal(t, "***", string(a.mustExtract(updated, t)))
	assert.Equal(t, "gpt-4o", a.GetModel(updated))
}

// mustExtract is a tiny test helper living on the concrete adapter type so
// it can be called without widening the public Adapter interface.
func (a *openAIAdapter) mustExtract(payload []byte, t *testing.T) []byte {
	t.Helper()
	contents, ok := a.ExtractContents(payload)
	require.True(t, ok)
	return contents[0]
}

func TestOpenAIAdapter_Classify(t *testing.T) {
	a, err := New(OpenAI)
	require.NoError(t, err)

	assert.Equal(t, Done, a.Classify(nil, nil, true))

	textChunk := []byte(`{"choices":[{"delta":{"content":"hi"},"finish_reason":null}]}`)
	assert.Equal(t, NormalText, a.Classify(textChunk, textChunk, false))

	finishChunk := []byte(`{"choices":[{"delta":{"content":"."},"finish_reason":"stop"}]}`)
	assert.Equal(t, Finish, a.Classify(finishChunk, finishChunk, false))

	finishNoContent := []byte(`{"choices":[{"delta":{},"finish_reason":"stop"}]}`)
	assert.Equal(t, FinishNoContent, a.Classify(finishNoContent, finishNoContent, false))
}

func TestOpenAIAdapter_UpdateUsageSkipsZero(t *testing.T) {
	a, err := New(OpenAI)
	require.NoError(t, err)
	payload := []byte(`{"usage":null}`)

	out, err := a.UpdateUsage(payload, tokens.Tokens{Prompt: 0, Completion: 5})
	require.NoError(t, err)
	assert.Equal(t, payload, out)

	out, err = a.UpdateUsage(payload, tokens.Tokens{Prompt: 10, Completion: 5})
	require.NoError(t, err)
	got := a.Tokens(out)
	assert.Equal(t, tokens.Tokens{Prompt: 10, Completion: 5}, got)
}

func TestAnthropicAdapter_ExtractByIndex(t *testing.T) {
	a, err := New(Anthropic)
	require.NoError(t, err)

	payload := []byte(`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"hello"}}`)
	contents, ok := a.ExtractContents(payload)
	require.True(t, ok)
	require.Len(t, contents, 1)
	assert.Equal(t, "hello", string(contents[0]))
}

func TestAnthropicAdapter_StreamCompletion(t *testing.T) {
	a, err := New(Anthropic)
	require.NoError(t, err)

	stop := []byte(`{"type":"message_stop"}`)
	assert.True(t, a.IsStreamCompleted(stop, false))
	assert.Equal(t, Done, a.Classify(stop, stop, false))
}

func TestGeminiAdapter_ExtractContents(t *testing.T) {
	a, err := New(Gemini)
	require.NoError(t, err)

	payload := []byte(`{"candidates":[{"content":{"parts":[{"text":"hi"}]},"finishReason":null}],"usageMetadata":{"promptTokenCount":12,"candidatesTokenCount":3}}`)
	contents, ok := a.ExtractContents(payload)
	require.True(t, ok)
	assert.Equal(t, "hi", string(contents[0]))

	got := a.Tokens(payload)
	assert.Equal(t, tokens.Tokens{Prompt: 12, Completion: 3}, got)
}

func TestVertexAIAdapter_SharesGeminiShape(t *testing.T) {
	a, err := New(VertexAI)
	require.NoError(t, err)
	assert.Equal(t, "vertex_ai", a.Name())

	payload := []byte(`{"candidates":[{"content":{"parts":[{"functionCall":{"name":"lookup"}}]},"finishReason":"STOP"}]}`)
	assert.True(t, a.HasFunctionCallFinishReason(payload))
}
