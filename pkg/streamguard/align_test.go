package streamguard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cecil-the-coder/ai-provider-kit/pkg/policy"
	"github.com/cecil-the-coder/ai-provider-kit/pkg/provider"
)

// alignChunk builds a single-choice OpenAI chunk carrying content, with a
// real JSON payload so splitChunkContent's UpdateContents/ExtractContents
// round trip behaves exactly as it would on the wire.
func alignChunk(t *testing.T, content string) Chunk {
	t.Helper()
	a, err := provider.New(provider.OpenAI)
	require.NoError(t, err)
	raw := openAIFrame(t, content, "")
	payload := []byte(raw[len("data: ") : len(raw)-2])
	contents, _ := a.ExtractContents(payload)
	kind := a.Classify(payload, payload, false)
	return Chunk{Raw: []byte(raw), Payload: payload, Contents: contents, Kind: kind}
}

func extractContent(t *testing.T, c Chunk) string {
	t.Helper()
	a, err := provider.New(provider.OpenAI)
	require.NoError(t, err)
	contents, ok := a.ExtractContents(c.Payload)
	require.True(t, ok)
	require.NotEmpty(t, contents)
	return string(contents[0])
}

func TestAlign_NoBoundaryYieldsNotReady(t *testing.T) {
	s := newTestState(t, &policy.PromptGuardPolicy{})
	s.append(alignChunk(t, "no terminator here"))
	s.append(alignChunk(t, "still going"))

	_, ok := s.align()
	assert.False(t, ok)
}

// Boundary lands exactly at the end of the reconstructed content so far:
// the straddle chunk's keepBytes equals its own content length and the
// whole chunk joins the segment with no split required.
func TestAlign_BoundaryAtChunkEndPopsThroughThatChunk(t *testing.T) {
	s := newTestState(t, &policy.PromptGuardPolicy{})
	s.append(alignChunk(t, "Hello"))
	s.append(alignChunk(t, " world. "))

	chunksToPop, ok := s.align()
	require.True(t, ok)
	assert.Equal(t, 2, chunksToPop)
}

// Boundary match ends inside an earlier chunk and a later chunk carries no
// content before it at all: the straddle chunk's keepBytes is 0, so the
// segment ends at the previous chunk and the straddle chunk is left whole
// for the next round.
func TestAlign_BoundaryFullyInsideEarlierChunkPopsOnlyThatChunk(t *testing.T) {
	s := newTestState(t, &policy.PromptGuardPolicy{})
	s.append(alignChunk(t, "Hi. "))
	s.append(alignChunk(t, "more text after"))

	chunksToPop, ok := s.align()
	require.True(t, ok)
	assert.Equal(t, 1, chunksToPop)
}

// Boundary straddles the last chunk with content on both sides of it: the
// default split branch of endIndexForChoice promotes the pre-boundary
// prefix into the previous chunk and leaves the remainder in place,
// mirroring the multi-chunk boundary split (spec.md's chunks-7/8 scenario).
func TestAlign_BoundaryStraddlesChunkPromotesPrefixIntoPrevious(t *testing.T) {
	s := newTestState(t, &policy.PromptGuardPolicy{})
	s.append(alignChunk(t, "Hello "))
	s.append(alignChunk(t, "world. trailing extra"))

	chunksToPop, ok := s.align()
	require.True(t, ok)
	require.Equal(t, 1, chunksToPop)

	popped, ok := s.pop()
	require.True(t, ok)
	assert.Equal(t, "Hello world. ", extractContent(t, popped))

	require.Len(t, s.fifo, 1)
	assert.Equal(t, "trailing extra", extractContent(t, s.fifo[0]))
}

// A single chunk with a boundary in the middle and no previous chunk to
// merge the prefix into is treated as not yet reached: endIndexForChoice's
// chunkIdx==0 guard fires instead of splitting against a chunk that
// doesn't exist.
func TestAlign_BoundaryInFirstChunkWithTrailingContentIsNotYetReady(t *testing.T) {
	s := newTestState(t, &policy.PromptGuardPolicy{})
	s.append(alignChunk(t, "Hi. more"))

	_, ok := s.align()
	assert.False(t, ok)
}

// A boundary straddling a chunk that carries a multi-byte rune before the
// boundary splits cleanly on a rune boundary: the emoji stays attached to the
// promoted prefix and the suffix left behind is untouched ASCII, mirroring
// the UTF-8 straddle case from the source's utf8 chunk-data fixture.
func TestAlign_UTF8StraddleSplitsOnRuneBoundary(t *testing.T) {
	s := newTestState(t, &policy.PromptGuardPolicy{})
	s.append(alignChunk(t, "Look at this"))
	s.append(alignChunk(t, " \U0001F5B1. Neat"))

	chunksToPop, ok := s.align()
	require.True(t, ok)
	require.Equal(t, 1, chunksToPop)

	popped, ok := s.pop()
	require.True(t, ok)
	assert.Equal(t, "Look at this \U0001F5B1. ", extractContent(t, popped))

	require.Len(t, s.fifo, 1)
	assert.Equal(t, "Neat", extractContent(t, s.fifo[0]))
}
