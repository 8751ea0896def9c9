package streamguard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cecil-the-coder/ai-provider-kit/pkg/policy"
	"github.com/cecil-the-coder/ai-provider-kit/pkg/provider"
	"github.com/cecil-the-coder/ai-provider-kit/pkg/tokens"
)

func usageChunk(t *testing.T, content string, prompt, completion int, finishReason string) Chunk {
	t.Helper()
	raw := openAIFrame(t, content, finishReason)
	a, err := provider.New(provider.OpenAI)
	require.NoError(t, err)
	payload := []byte(raw[len("data: ") : len(raw)-2])
	payload, err = a.UpdateUsage(payload, tokens.Tokens{Prompt: prompt, Completion: completion})
	require.NoError(t, err)
	rewritten, err := replacePayloadBytes([]byte(raw), payload)
	require.NoError(t, err)
	contents, _ := a.ExtractContents(payload)
	kind := a.Classify(payload, payload, false)
	return Chunk{Raw: rewritten, Payload: payload, Contents: contents, Kind: kind}
}

func TestCollapse_PreservesTrailingDoneChunkAndSumsCompletionTokens(t *testing.T) {
	s := newTestState(t, &policy.PromptGuardPolicy{})

	s.append(usageChunk(t, "Hello ", 10, 2, ""))
	s.append(usageChunk(t, "world.", 10, 3, "stop"))
	s.append(Chunk{Raw: []byte("data: [DONE]\n\n"), Kind: provider.Done})

	n, err := s.collapse([][]byte{[]byte("Hello world. [guarded]")}, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, n) // 1 rewritten content chunk + 1 preserved DONE trailer

	require.Len(t, s.fifo, 2)
	assert.Contains(t, string(s.fifo[0].Raw), "[guarded]")
	assert.Equal(t, "data: [DONE]\n\n", string(s.fifo[1].Raw))

	a, err := provider.New(provider.OpenAI)
	require.NoError(t, err)
	got := a.Tokens(s.fifo[0].Payload)
	assert.Equal(t, 10, got.Prompt)     // deduped, not summed
	assert.Equal(t, 5, got.Completion) // 2 + 3, additive
}

func TestCollapse_RejectsRangeWithNoContentChunk(t *testing.T) {
	s := newTestState(t, &policy.PromptGuardPolicy{})
	s.append(Chunk{Raw: []byte("data: [DONE]\n\n"), Kind: provider.Done})

	_, err := s.collapse([][]byte{[]byte("x")}, 1)
	assert.ErrorIs(t, err, ErrNoContentChunkToCollapse)
}
