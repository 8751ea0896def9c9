package streamguard

import (
	"context"
	"errors"
	"net/http"

	"github.com/cecil-the-coder/ai-provider-kit/pkg/provider"
	"github.com/cecil-the-coder/ai-provider-kit/pkg/sse"
)

// Buffer is the engine's main entrypoint. Feed it the next slice of
// upstream bytes, whether the upstream has signaled end of stream, and the
// request headers to forward to a webhook guard; it returns whatever bytes
// are now safe to deliver downstream, or nil with a nil error when more
// buffering is required before anything can be emitted.
//
// Buffer is safe to call repeatedly as more bytes arrive. Concurrent calls
// for the same StreamState are serialized by its mutex; a stream is
// normally driven by a single goroutine, per SPEC_FULL.md's concurrency
// model.
func (s *StreamState) Buffer(ctx context.Context, body []byte, endOfStream bool, headers http.Header, webhook WebhookGuard, regex RegexGuard) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := append(append([]byte{}, s.leftover...), body...)
	frames, leftover := sse.Feed(buf)
	s.leftover = leftover

	for _, f := range frames {
		c := fromFrame(f, s.Provider)
		s.harvestFacts(c)
		s.append(c)
		s.metrics.IncChunksReceived(s.Provider.Name())
	}

	if endOfStream && len(s.leftover) > 0 {
		s.append(Chunk{Raw: s.leftover, Kind: provider.Invalid})
		s.leftover = nil
	}

	bytesBuffered := s.bufferedBytes()
	s.metrics.ObserveBytesBuffered(s.ID, bytesBuffered)

	if !s.Policy.HasResponseGuards() {
		return s.popAll(), nil
	}

	if s.maxBufferedBytes > 0 && bytesBuffered > s.maxBufferedBytes {
		s.log.WithFields(map[string]any{
			"buffered_bytes": bytesBuffered,
			"cap":            s.maxBufferedBytes,
		}).Warn("streamguard: buffer cap exceeded, flushing unguarded")
		return s.popAll(), nil
	}

	n, err := s.doGuardrailsCheck(ctx, endOfStream, headers, webhook, regex)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		if endOfStream {
			return s.popAll(), nil
		}
		return nil, nil
	}
	return s.popN(n), nil
}

// harvestFacts updates the stream-level rolling facts from one newly
// appended chunk.
func (s *StreamState) harvestFacts(c Chunk) {
	if s.Provider.IsStreamCompleted(c.Payload, c.IsDoneSentinel) {
		s.IsCompleted = true
	}
	if c.Payload == nil {
		return
	}
	if model := s.Provider.GetModel(c.Payload); model != "" {
		s.Model = model
	}
	if t := s.Provider.Tokens(c.Payload); !t.IsZero() {
		s.Tokens = t
	}
	if s.Provider.HasFunctionCallFinishReason(c.Payload) {
		s.IsFunctionCalling = true
	}
}

// doGuardrailsCheck decides how many leading chunks form a guard-ready
// segment, runs the guards over exactly that segment's content, and
// collapses the buffer when the guards modified anything. It returns how
// many chunks are now safe to pop, or 0 if buffering should continue.
func (s *StreamState) doGuardrailsCheck(ctx context.Context, final bool, headers http.Header, webhook WebhookGuard, regex RegexGuard) (int, error) {
	if len(s.fifo) == 0 {
		return 0, nil
	}

	var n int
	if final {
		n = len(s.fifo)
	} else {
		if !s.minContentReady() {
			return 0, nil
		}
		var ok bool
		n, ok = s.align()
		if !ok {
			return 0, nil
		}
	}
	if n == 0 {
		return 0, nil
	}

	segment := s.segmentContents(n)
	views := make([]ContentView, len(segment))
	for i, c := range segment {
		views[i] = ContentView{ChoiceIndex: i, Content: c, BeginIndex: 0, EndIndex: n}
	}

	result, err := s.runGuards(ctx, views, webhook, regex, headers)
	if err != nil {
		return 0, err
	}
	if !result.modified {
		return n, nil
	}
	popped, err := s.collapse(result.newContents, n)
	if errors.Is(err, ErrNoContentChunkToCollapse) || errors.Is(err, ErrBadCollapseTarget) {
		// Invariant violation detected before any chunk was popped: collapse
		// has already logged it at critical level; abort and pop nothing.
		return 0, nil
	}
	return popped, err
}

// segmentContents sums the first n chunks' per-choice content bytes,
// giving exactly the text the guard stage should see for that range —
// distinct from the full reconstructed buffer, which may include bytes
// beyond the aligned boundary still awaiting a future round.
func (s *StreamState) segmentContents(n int) []string {
	out := make([]string, s.choiceCount())
	for i := 0; i < n && i < len(s.fifo); i++ {
		for ci, content := range s.fifo[i].Contents {
			if ci >= len(out) || content == nil {
				continue
			}
			out[ci] += string(content)
		}
	}
	return out
}
