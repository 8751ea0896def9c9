package streamguard

import (
	"regexp"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cecil-the-coder/ai-provider-kit/pkg/policy"
	"github.com/cecil-the-coder/ai-provider-kit/pkg/provider"
	"github.com/cecil-the-coder/ai-provider-kit/pkg/tokens"
)

// ContentView is a snapshot of one choice's reconstructed content passed to
// the guardrail stage. The engine may narrow EndIndex and truncate Content
// in place; it never mutates the buffer directly.
type ContentView struct {
	ChoiceIndex int
	Content     string
	BeginIndex  int
	EndIndex    int
}

// BoundaryMatch describes the latest sentence-boundary regex match found
// inside a ContentView.
type BoundaryMatch struct {
	ChoiceIndex int
	Capture     string
	StartPos    int
	EndPos      int
}

// StreamState holds the full mutable state of one in-flight upstream
// response: the ordered chunk queue, a per-choice reconstructed content
// shadow, leftover bytes from an incomplete SSE frame, and the rolling
// stream-level facts harvested from chunks so far.
type StreamState struct {
	ID       string
	Provider provider.Adapter
	Policy   *policy.PromptGuardPolicy

	boundary         *regexp.Regexp
	minSegmentLength int
	maxBufferedBytes int

	log     *logrus.Entry
	metrics Recorder
	audit   AuditSink

	mu            sync.Mutex
	fifo          []Chunk
	reconstructed [][]byte
	leftover      []byte

	Model             string
	Tokens            tokens.Tokens
	IsFunctionCalling bool
	IsCompleted       bool
}

// New creates a StreamState for one upstream response.
func New(adapter provider.Adapter, pol *policy.PromptGuardPolicy, log *logrus.Entry) *StreamState {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	id := uuid.NewString()
	boundary := regexp.MustCompile(pol.EffectiveBoundaryPattern())
	return &StreamState{
		ID:               id,
		Provider:         adapter,
		Policy:           pol,
		boundary:         boundary,
		minSegmentLength: pol.EffectiveMinSegmentLength(),
		log:              log.WithField("stream_id", id),
		metrics:          noopRecorder{},
	}
}

// WithRecorder attaches a metrics Recorder to the stream, replacing the
// default no-op. Returns s for chaining at construction time.
func (s *StreamState) WithRecorder(r Recorder) *StreamState {
	if r != nil {
		s.metrics = r
	}
	return s
}

// WithAuditSink attaches an AuditSink for compliance logging of webhook
// transport failures. Leaving it unset makes those events log-only.
func (s *StreamState) WithAuditSink(a AuditSink) *StreamState {
	if a != nil {
		s.audit = a
	}
	return s
}

// WithMaxBufferedBytes sets an optional per-stream buffering cap. When
// exceeded, Buffer flushes every buffered chunk unguarded rather than grow
// without bound; 0 (the default) means unbounded.
func (s *StreamState) WithMaxBufferedBytes(n int) *StreamState {
	s.maxBufferedBytes = n
	return s
}

// choiceCount returns the number of choices discovered so far.
func (s *StreamState) choiceCount() int {
	return len(s.reconstructed)
}

// append pushes chunk onto the tail, extending the per-choice reconstructed
// buffers by its Contents. A choice-count mismatch against what has
// already been discovered is logged at critical level and the mismatched
// chunk is kept anyway — losing bytes is worse than a stale choice count.
func (s *StreamState) append(chunk Chunk) {
	s.fifo = append(s.fifo, chunk)
	if chunk.Contents == nil {
		return
	}
	if s.reconstructed == nil {
		s.reconstructed = make([][]byte, len(chunk.Contents))
	}
	if len(chunk.Contents) != len(s.reconstructed) {
		s.log.WithFields(logrus.Fields{
			"severity": "critical",
			"have":     len(s.reconstructed),
			"got":      len(chunk.Contents),
		}).Error("streamguard: choice count mismatch on append")
	}
	for i, content := range chunk.Contents {
		if i >= len(s.reconstructed) {
			break
		}
		if content == nil {
			continue
		}
		s.reconstructed[i] = append(s.reconstructed[i], content...)
	}
}

// pop removes and returns the head chunk, stripping its Contents from the
// front of each reconstructed buffer. A prefix mismatch indicates a prior
// invariant violation; it is logged at critical level and the
// reconstructed buffer is left untouched rather than risk corrupting it
// further.
func (s *StreamState) pop() (Chunk, bool) {
	if len(s.fifo) == 0 {
		return Chunk{}, false
	}
	c := s.fifo[0]
	s.fifo = s.fifo[1:]
	for i, content := range c.Contents {
		if i >= len(s.reconstructed) || content == nil {
			continue
		}
		if hasPrefix(s.reconstructed[i], content) {
			s.reconstructed[i] = s.reconstructed[i][len(content):]
		} else {
			s.log.WithField("severity", "critical").
				Error("streamguard: reconstructed buffer does not start with popped chunk's content")
		}
	}
	return c, true
}

func hasPrefix(buf, prefix []byte) bool {
	if len(prefix) > len(buf) {
		return false
	}
	for i := range prefix {
		if buf[i] != prefix[i] {
			return false
		}
	}
	return true
}

// popAll removes every buffered chunk and returns the concatenation of
// their raw bytes in order.
func (s *StreamState) popAll() []byte {
	var out []byte
	for _, c := range s.fifo {
		out = append(out, c.Raw...)
	}
	s.fifo = nil
	s.reconstructed = nil
	return out
}

// popN removes the first n chunks (or all of them, whichever is fewer) and
// returns the concatenation of their raw bytes.
func (s *StreamState) popN(n int) []byte {
	if n >= len(s.fifo) {
		return s.popAll()
	}
	var out []byte
	for i := 0; i < n; i++ {
		c, _ := s.pop()
		out = append(out, c.Raw...)
	}
	return out
}

// contentViews snapshots the reconstructed buffers as UTF-8 decoded
// ContentViews, one per discovered choice.
func (s *StreamState) contentViews() []ContentView {
	views := make([]ContentView, len(s.reconstructed))
	for i, buf := range s.reconstructed {
		views[i] = ContentView{
			ChoiceIndex: i,
			Content:     string(buf),
			BeginIndex:  0,
			EndIndex:    len(s.fifo),
		}
	}
	return views
}

// reconstruct rebuilds the reconstructed buffers from the current fifo,
// used after a rewrite reorganizes content across chunks.
func (s *StreamState) reconstruct() {
	if len(s.fifo) == 0 {
		s.reconstructed = nil
		return
	}
	n := s.choiceCount()
	for _, c := range s.fifo {
		if len(c.Contents) > n {
			n = len(c.Contents)
		}
	}
	if n == 0 {
		s.reconstructed = nil
		return
	}
	buffers := make([][]byte, n)
	for _, c := range s.fifo {
		for i, content := range c.Contents {
			if content == nil {
				continue
			}
			buffers[i] = append(buffers[i], content...)
		}
	}
	s.reconstructed = buffers
}

// minContentReady reports whether every discovered choice's reconstructed
// content has reached the configured minimum segment length.
func (s *StreamState) minContentReady() bool {
	if len(s.reconstructed) == 0 {
		return false
	}
	for _, buf := range s.reconstructed {
		if contentLength(buf) < s.minSegmentLength {
			return false
		}
	}
	return true
}

// bufferedBytes sums the raw byte length currently held in the fifo, used
// for the optional backpressure cap and the total_bytes_buffered gauge.
func (s *StreamState) bufferedBytes() int {
	n := 0
	for _, c := range s.fifo {
		n += len(c.Raw)
	}
	return n
}
