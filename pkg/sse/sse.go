// Package sse frames a byte stream of Server-Sent Events into discrete
// frames, carrying leftover bytes across calls, and rewrites a single
// frame's JSON payload while preserving everything else about the frame
// byte-for-byte.
//
// This generalizes the reader-based SSE parsing in
// pkg/providers/common/streaming (which blocks on a bufio.Reader for one
// long-lived connection) to the push model an ext_proc sidecar needs: the
// caller hands over whatever bytes arrived in the current HttpBody message,
// gets back however many complete frames that yields, and keeps the
// remaining partial frame to prepend next time.
package sse

import (
	"bytes"
	"errors"
)

// ErrNoDataField is returned by ReplacePayload when a frame has no data
// field to rewrite.
var ErrNoDataField = errors.New("sse: frame has no data field")

// ErrMultilineData is returned by ReplacePayload for frames whose data
// field spans multiple lines; none of the supported providers emit these
// for chat-completion chunks, so rewriting them is not implemented.
var ErrMultilineData = errors.New("sse: multi-line data field not supported for payload rewrite")

const doneSentinel = "[DONE]"

// Frame is one complete SSE message.
type Frame struct {
	// Raw holds the exact bytes of the frame as received, including the
	// data:/event:/id: field lines and the terminating blank line.
	Raw []byte
	// Data is the decoded value of the frame's data field(s), joined with
	// "\n" per the SSE multi-line-data rule. Absent (nil) for frames with
	// no data field at all (rare; such frames are kept verbatim by callers
	// but carry no payload to classify).
	Data []byte
	// Done reports whether Data is the literal "[DONE]" sentinel OpenAI and
	// OpenAI-compatible providers send to end a stream.
	Done bool
}

// Feed splits buf (leftover bytes from a prior call concatenated with newly
// arrived bytes) into complete frames and whatever trailing bytes do not
// yet form a complete frame. The returned leftover is always a suffix of
// buf; no bytes are copied out of existence.
func Feed(buf []byte) (frames []Frame, leftover []byte) {
	start := 0
	for {
		end, ok := nextBoundary(buf, start)
		if !ok {
			break
		}
		raw := buf[start:end]
		frames = append(frames, parseFrame(raw))
		start = end
	}
	return frames, buf[start:]
}

// nextBoundary returns the index just past the first blank-line terminator
// ("\n\n" or "\r\n\r\n") found at or after from, tolerating either line
// ending so a frame can be produced regardless of which style the upstream
// used.
func nextBoundary(buf []byte, from int) (end int, ok bool) {
	for i := from; i < len(buf); i++ {
		if buf[i] != '\n' {
			continue
		}
		if i+1 < len(buf) && buf[i+1] == '\n' {
			return i + 2, true
		}
		if i >= 3 && buf[i-3] == '\r' && buf[i-2] == '\n' && buf[i-1] == '\r' {
			return i + 1, true
		}
	}
	return 0, false
}

func parseFrame(raw []byte) Frame {
	f := Frame{Raw: raw}
	var dataLines [][]byte
	for _, line := range splitLines(raw) {
		line = bytes.TrimRight(line, "\r")
		if len(line) == 0 || line[0] == ':' {
			continue
		}
		value, ok := fieldValue(line, "data")
		if !ok {
			continue
		}
		dataLines = append(dataLines, value)
	}
	if dataLines != nil {
		f.Data = bytes.Join(dataLines, []byte("\n"))
		f.Done = string(f.Data) == doneSentinel
	}
	return f
}

// splitLines splits on "\n" without discarding the final, possibly-empty
// element produced by a trailing terminator; callers trim per-line.
func splitLines(raw []byte) [][]byte {
	return bytes.Split(raw, []byte("\n"))
}

// fieldValue reports the value of a "field:" or "field: " prefixed line.
func fieldValue(line []byte, field string) (value []byte, ok bool) {
	prefix := field + ":"
	if !bytes.HasPrefix(line, []byte(prefix)) {
		return nil, false
	}
	rest := line[len(prefix):]
	if len(rest) > 0 && rest[0] == ' ' {
		rest = rest[1:]
	}
	return rest, true
}

// dataLineSpan locates the single data field line's value within raw and
// returns its byte offsets [start,end), or ok=false if there is no data
// line, or multi=true if more than one data line is present.
func dataLineSpan(raw []byte) (start, end int, multi, ok bool) {
	offset := 0
	found := false
	for _, line := range bytes.SplitAfter(raw, []byte("\n")) {
		trimmed := bytes.TrimRight(bytes.TrimSuffix(line, []byte("\n")), "\r")
		if v, isData := fieldValue(trimmed, "data"); isData {
			if found {
				return 0, 0, true, false
			}
			found = true
			valueStart := offset + (len(trimmed) - len(v))
			start, end = valueStart, valueStart+len(v)
		}
		offset += len(line)
	}
	return start, end, false, found
}

// ReplacePayload produces new frame bytes equal to raw except that the
// data field's value is replaced with newPayload. Every other byte of the
// frame — field names, other fields' values, whitespace, line endings, the
// terminating blank line — is preserved exactly.
func ReplacePayload(raw []byte, newPayload []byte) ([]byte, error) {
	start, end, multi, ok := dataLineSpan(raw)
	if multi {
		return nil, ErrMultilineData
	}
	if !ok {
		return nil, ErrNoDataField
	}
	out := make([]byte, 0, len(raw)-(end-start)+len(newPayload))
	out = append(out, raw[:start]...)
	out = append(out, newPayload...)
	out = append(out, raw[end:]...)
	return out, nil
}
