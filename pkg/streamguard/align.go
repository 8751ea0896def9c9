package streamguard

import "github.com/cecil-the-coder/ai-provider-kit/pkg/sse"

// findSegmentBoundary returns the LAST match of the stream's boundary
// regex inside content, matching find_segment_boundary's
// reversed(list(finditer(...))) behavior: later matches are preferred so a
// segment grows as large as the currently buffered content allows.
func (s *StreamState) findSegmentBoundary(choiceIndex int, content string) (BoundaryMatch, bool) {
	matches := s.boundary.FindAllStringSubmatchIndex(content, -1)
	if len(matches) == 0 {
		return BoundaryMatch{}, false
	}
	last := matches[len(matches)-1]
	start, end := last[0], last[1]
	return BoundaryMatch{
		ChoiceIndex: choiceIndex,
		Capture:     content[start:end],
		StartPos:    start,
		EndPos:      end,
	}, true
}

// straddle locates, for one choice, the chunk whose content bytes contain
// endPosBytes (the byte offset of a boundary match's end within that
// choice's reconstructed content), walking the fifo from the tail. It
// returns the index of that chunk and how many of its content bytes fall
// before the boundary (to be merged into the previous chunk when > 0 and
// < the chunk's content length).
func straddle(fifo []Chunk, choiceIndex, endPosBytes int) (chunkIdx, keepBytes int, found bool) {
	total := 0
	for i := len(fifo) - 1; i >= 0; i-- {
		var contentLen int
		if choiceIndex < len(fifo[i].Contents) && fifo[i].Contents[choiceIndex] != nil {
			contentLen = len(fifo[i].Contents[choiceIndex])
		}
		if contentLen == 0 {
			continue
		}
		bytesFromEnd := reconstructedLen(fifo, choiceIndex) - endPosBytes
		if total+contentLen < bytesFromEnd {
			total += contentLen
			continue
		}
		afterBytes := bytesFromEnd - total
		return i, contentLen - afterBytes, true
	}
	return 0, 0, false
}

func reconstructedLen(fifo []Chunk, choiceIndex int) int {
	n := 0
	for _, c := range fifo {
		if choiceIndex < len(c.Contents) && c.Contents[choiceIndex] != nil {
			n += len(c.Contents[choiceIndex])
		}
	}
	return n
}

// endIndexForChoice computes how many leading chunks (exclusive end index)
// form a complete semantic segment for one choice, splitting the straddle
// chunk against its predecessor when the boundary falls mid-chunk. It
// mutates chunk raw bytes in place via the provider adapter and the SSE
// framer when a split is required.
func (s *StreamState) endIndexForChoice(choiceIndex int, match BoundaryMatch) (endIndex int, ok bool) {
	chunkIdx, keepBytes, found := straddle(s.fifo, choiceIndex, match.EndPos)
	if !found {
		return 0, false
	}

	contentLen := len(s.fifo[chunkIdx].Contents[choiceIndex])
	switch {
	case keepBytes == contentLen:
		// Straddle chunk ends exactly at the boundary; nothing to split.
		return chunkIdx + 1, true
	case keepBytes == 0:
		// The entire straddle chunk is after the boundary; the segment
		// ends at the previous chunk.
		return chunkIdx, true
	default:
		if chunkIdx == 0 {
			// No previous chunk to merge the prefix into; treat the
			// boundary as not yet reached.
			return 0, false
		}
		if err := s.splitChunkContent(choiceIndex, chunkIdx, keepBytes); err != nil {
			s.log.WithError(err).Error("streamguard: failed to split straddle chunk at boundary")
			return 0, false
		}
		return chunkIdx, true
	}
}

// splitChunkContent moves the first keepBytes bytes of
// fifo[chunkIdx].Contents[choiceIndex] into fifo[chunkIdx-1]'s content for
// the same choice, re-canonicalizing both chunks' raw bytes.
func (s *StreamState) splitChunkContent(choiceIndex, chunkIdx, keepBytes int) error {
	cur := s.fifo[chunkIdx]
	prev := s.fifo[chunkIdx-1]

	content := cur.Contents[choiceIndex]
	prefix := append(append([]byte{}, prevContent(prev, choiceIndex)...), content[:keepBytes]...)
	suffix := append([]byte{}, content[keepBytes:]...)

	newPrev, err := s.rewriteChunkContent(prev, choiceIndex, prefix)
	if err != nil {
		return err
	}
	newCur, err := s.rewriteChunkContent(cur, choiceIndex, suffix)
	if err != nil {
		return err
	}
	s.fifo[chunkIdx-1] = newPrev
	s.fifo[chunkIdx] = newCur
	return nil
}

func prevContent(c Chunk, choiceIndex int) []byte {
	if choiceIndex < len(c.Contents) && c.Contents[choiceIndex] != nil {
		return c.Contents[choiceIndex]
	}
	return nil
}

// rewriteChunkContent rewrites one choice's content on a chunk and
// re-canonicalizes its raw bytes, leaving every other field untouched.
func (s *StreamState) rewriteChunkContent(c Chunk, choiceIndex int, newContent []byte) (Chunk, error) {
	newPayload, err := s.Provider.UpdateContents(c.Payload, choiceIndex, newContent)
	if err != nil {
		return c, err
	}
	newRaw, err := replacePayloadBytes(c.Raw, newPayload)
	if err != nil {
		return c, err
	}
	contents := append([][]byte{}, c.Contents...)
	for len(contents) <= choiceIndex {
		contents = append(contents, nil)
	}
	contents[choiceIndex] = newContent
	return Chunk{
		Raw:      newRaw,
		Payload:  newPayload,
		Contents: contents,
		Kind:     c.Kind,
	}, nil
}

// align finds, across every discovered choice, the largest shared segment
// ending at a boundary match and returns how many leading chunks make up
// that segment. It returns ok=false when any choice has no boundary match
// yet (the caller should keep buffering).
//
// Multi-choice streams whose choices arrive interleaved across disjoint
// chunk ranges (real OpenAI n>1 behavior) are not handled precisely here:
// per-choice end indices are computed independently and the minimum is
// used, which is correct only when choices are co-located in the same
// chunk range. See DESIGN.md's Open Question decision on multi-choice
// alignment.
func (s *StreamState) align() (chunksToPop int, ok bool) {
	views := s.contentViews()
	if len(views) == 0 {
		return 0, false
	}
	endIndex := -1
	for _, v := range views {
		match, found := s.findSegmentBoundary(v.ChoiceIndex, v.Content)
		if !found {
			return 0, false
		}
		ei, ok := s.endIndexForChoice(v.ChoiceIndex, match)
		if !ok {
			return 0, false
		}
		if endIndex == -1 || ei < endIndex {
			endIndex = ei
		}
	}
	if endIndex <= 0 {
		return 0, false
	}
	return endIndex, true
}

// replacePayloadBytes is a thin indirection over pkg/sse so align.go and
// collapse.go share one call site for envelope-preserving rewrite.
func replacePayloadBytes(raw, newPayload []byte) ([]byte, error) {
	return sse.ReplacePayload(raw, newPayload)
}
