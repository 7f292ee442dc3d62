package protocol

import (
	"bytes"
)

// MaxLineSize bounds a single inbound message.
const MaxLineSize = 10 * 1024 * 1024 // 10MB

// LineBuffer splits a byte stream into newline-delimited lines.
//
// Chunks may end mid-line; the partial tail is retained until the next
// newline arrives. A tail that grows past the limit is discarded along with
// the rest of its line.
type LineBuffer struct {
	buf        []byte
	max        int
	discarding bool
	dropped    int
}

// NewLineBuffer creates a line buffer with the given line limit.
// A non-positive limit selects MaxLineSize.
func NewLineBuffer(maxLine int) *LineBuffer {
	if maxLine <= 0 {
		maxLine = MaxLineSize
	}

	return &LineBuffer{max: maxLine}
}

// Feed appends a chunk and returns every line it completed, trimmed of
// surrounding whitespace. Blank lines are skipped.
func (b *LineBuffer) Feed(chunk []byte) [][]byte {
	var lines [][]byte

	for len(chunk) > 0 {
		i := bytes.IndexByte(chunk, '\n')
		if i < 0 {
			b.appendPartial(chunk)

			break
		}

		part := chunk[:i]
		chunk = chunk[i+1:]

		if b.discarding {
			b.discarding = false

			continue
		}

		var line []byte

		if len(b.buf) > 0 {
			line = append(b.buf, part...)
			b.buf = nil
		} else {
			line = append([]byte(nil), part...)
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		lines = append(lines, line)
	}

	return lines
}

func (b *LineBuffer) appendPartial(chunk []byte) {
	if b.discarding {
		return
	}

	if len(b.buf)+len(chunk) > b.max {
		b.buf = nil
		b.discarding = true
		b.dropped++

		return
	}

	b.buf = append(b.buf, chunk...)
}

// Pending returns the number of buffered bytes of the incomplete line.
func (b *LineBuffer) Pending() int {
	return len(b.buf)
}

// Dropped returns how many oversized lines were discarded.
func (b *LineBuffer) Dropped() int {
	return b.dropped
}
