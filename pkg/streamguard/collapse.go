package streamguard

import (
	"errors"

	"github.com/cecil-the-coder/ai-provider-kit/pkg/provider"
	"github.com/cecil-the-coder/ai-provider-kit/pkg/sse"
	"github.com/cecil-the-coder/ai-provider-kit/pkg/tokens"
)

// ErrNoContentChunkToCollapse is returned when a collapse range contains no
// rewriteable NORMAL_TEXT/FINISH chunk at all (e.g. it is entirely DONE /
// FINISH_NO_CONTENT / INVALID trailer chunks).
var ErrNoContentChunkToCollapse = errors.New("streamguard: collapse range has no content chunk")

// ErrBadCollapseTarget is returned when the chunk a collapse would rewrite
// is not NORMAL_TEXT or FINISH, indicating a prior classification or
// alignment bug.
var ErrBadCollapseTarget = errors.New("streamguard: collapse target chunk has unexpected kind")

// isPreservedTrailer reports whether a chunk's kind must pass through a
// collapse untouched: it carries no rewriteable text but must still be
// delivered to the client exactly as received.
func isPreservedTrailer(k provider.ChunkKind) bool {
	return k == provider.Done || k == provider.FinishNoContent || k == provider.Invalid
}

// collapse merges the leading collapseRange chunks into one rewritten
// chunk carrying newContents and the range's accumulated token usage,
// preserving any trailing DONE/FINISH_NO_CONTENT/INVALID chunks verbatim.
// The leading content chunks other than the last are popped and discarded
// here, so it returns the number of chunks now ready to pop: the one
// rewritten chunk plus the preserved trailers (trailing + 1).
func (s *StreamState) collapse(newContents [][]byte, collapseRange int) (int, error) {
	trailing := 0
	for i := collapseRange - 1; i >= 0; i-- {
		if !isPreservedTrailer(s.fifo[i].Kind) {
			break
		}
		trailing++
	}
	contentRange := collapseRange - trailing
	if contentRange <= 0 {
		s.log.WithField("severity", "critical").Error("streamguard: collapse range has no content chunk")
		return 0, ErrNoContentChunkToCollapse
	}

	var acc tokens.Accumulator
	for i := 0; i < contentRange; i++ {
		acc.Observe(usageTokens(s.fifo[i], s.Provider))
	}
	total := acc.Total()

	targetKind := s.fifo[contentRange-1].Kind
	if targetKind != provider.NormalText && targetKind != provider.Finish {
		s.log.WithField("severity", "critical").Error("streamguard: collapse target chunk has unexpected kind")
		return 0, ErrBadCollapseTarget
	}

	for i := 0; i < contentRange-1; i++ {
		s.pop()
	}

	head := s.fifo[0]
	newPayload := head.Payload
	var err error
	for choice, content := range newContents {
		newPayload, err = s.Provider.UpdateContents(newPayload, choice, content)
		if err != nil {
			return 0, err
		}
	}
	newPayload, err = s.Provider.UpdateUsage(newPayload, total)
	if err != nil {
		return 0, err
	}
	newRaw, err := sse.ReplacePayload(head.Raw, newPayload)
	if err != nil {
		return 0, err
	}

	contents := make([][]byte, len(newContents))
	copy(contents, newContents)
	s.fifo[0] = Chunk{Raw: newRaw, Payload: newPayload, Contents: contents, Kind: head.Kind}
	s.reconstruct()
	s.metrics.IncCollapse(s.Provider.Name())

	return trailing + 1, nil
}
