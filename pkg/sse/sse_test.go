package sse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeed_SplitsCompleteFrames(t *testing.T) {
	input := []byte("data: {\"a\":1}\n\ndata: {\"a\":2}\n\n")
	frames, leftover := Feed(input)
	require.Len(t, frames, 2)
	assert.Empty(t, leftover)
	assert.Equal(t, `{"a":1}`, string(frames[0].Data))
	assert.Equal(t, `{"a":2}`, string(frames[1].Data))
}

func TestFeed_CarriesLeftoverAcrossCalls(t *testing.T) {
	first := []byte("data: {\"a\":1}\n\ndata: {\"a\":2")
	frames, leftover := Feed(first)
	require.Len(t, frames, 1)
	assert.Equal(t, []byte("data: {\"a\":2"), leftover)

	second := append(leftover, []byte("}\n\n")...)
	frames2, leftover2 := Feed(second)
	require.Len(t, frames2, 1)
	assert.Empty(t, leftover2)
	assert.Equal(t, `{"a":2}`, string(frames2[0].Data))
}

func TestFeed_ToleratesCRLFTerminator(t *testing.T) {
	input := []byte("data: {\"a\":1}\r\n\r\n")
	frames, leftover := Feed(input)
	require.Len(t, frames, 1)
	assert.Empty(t, leftover)
	assert.Equal(t, `{"a":1}`, string(frames[0].Data))
}

func TestFeed_DoneSentinel(t *testing.T) {
	input := []byte("data: [DONE]\n\n")
	frames, _ := Feed(input)
	require.Len(t, frames, 1)
	assert.True(t, frames[0].Done)
}

func TestReplacePayload_PreservesEnvelope(t *testing.T) {
	raw := []byte("event: message\ndata: {\"choices\":[{\"delta\":{\"content\":\"hi\"}}]}\n\n")
	rewritten, err := ReplacePayload(raw, []byte(`{"choices":[{"delta":{"content":"***"}}]}`))
	require.NoError(t, err)
	assert.Equal(t, "event: message\ndata: {\"choices\":[{\"delta\":{\"content\":\"***\"}}]}\n\n", string(rewritten))
}

func TestReplacePayload_NoDataField(t *testing.T) {
	raw := []byte("event: ping\n\n")
	_, err := ReplacePayload(raw, []byte(`{}`))
	assert.ErrorIs(t, err, ErrNoDataField)
}

func TestReplacePayload_MultilineDataUnsupported(t *testing.T) {
	raw := []byte("data: line1\ndata: line2\n\n")
	_, err := ReplacePayload(raw, []byte(`{}`))
	assert.ErrorIs(t, err, ErrMultilineData)
}
