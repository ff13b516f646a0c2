// Package scale implements the weighing-scale subsystem: vendor protocol
// drivers over a serial byte stream, and a latest-wins broadcast of the
// current measurement.
package scale

// DefaultLineCapacity is the line buffer capacity used by the built-in
// vendor drivers.
const DefaultLineCapacity = 32

// LineFramer accumulates raw bytes into terminator-delimited lines with
// overflow protection. The buffer index is validated before every write,
// so no byte sequence can write past the capacity.
//
// A line completes when a terminator byte arrives, or when the buffer
// reaches capacity-1 bytes without one. Overflow is non-fatal: depending
// on DeliverPartial the truncated content is either handed to the caller
// or discarded, and framing restarts with the overflowing byte.
type LineFramer struct {
	buf            []byte
	n              int
	terminators    []byte
	deliverPartial bool

	// pending holds the byte that overflowed the previous Feed. It is
	// written into the emptied buffer on the next call, after the caller
	// has had its chance to consume the returned partial line.
	pending int
}

// NewLineFramer creates a framer with the given capacity and terminator
// set. deliverPartial selects lenient overflow framing.
func NewLineFramer(capacity int, terminators []byte, deliverPartial bool) *LineFramer {
	if capacity < 1 {
		capacity = 1
	}
	return &LineFramer{
		buf:            make([]byte, capacity),
		terminators:    terminators,
		deliverPartial: deliverPartial,
		pending:        -1,
	}
}

// Feed consumes one byte. When a line completes it is returned with
// ok=true; the slice aliases the internal buffer and is only valid
// until the next call to Feed.
// Empty lines (terminator with nothing buffered) are skipped.
func (f *LineFramer) Feed(b byte) (line []byte, ok bool) {
	if f.pending >= 0 {
		f.buf[0] = byte(f.pending)
		f.n = 1
		f.pending = -1
	}
	if f.isTerminator(b) {
		if f.n == 0 {
			return nil, false
		}
		line, f.n = f.buf[:f.n], 0
		return line, true
	}
	if f.n >= len(f.buf)-1 {
		// Overflow: close out the buffer before the write that would
		// exceed it. The overflowing byte must not be written now, the
		// returned slice aliases the buffer; it restarts the line on
		// the next call instead.
		if f.deliverPartial && f.n > 0 {
			line, ok = f.buf[:f.n], true
		}
		f.n = 0
		if len(f.buf) > 1 {
			f.pending = int(b)
		}
		return line, ok
	}
	f.buf[f.n] = b
	f.n++
	return line, ok
}

// Reset discards any partially accumulated line.
func (f *LineFramer) Reset() {
	f.n = 0
	f.pending = -1
}

func (f *LineFramer) isTerminator(b byte) bool {
	for _, t := range f.terminators {
		if b == t {
			return true
		}
	}
	return false
}
