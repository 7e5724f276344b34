package protocol

import (
	"bytes"
	"errors"
)

// FrameDelimiter terminates every frame on the wire.
const FrameDelimiter = '\n'

// ErrFrameTooLarge is returned by Feed when the accumulation buffer exceeds
// the configured maximum without a delimiter. The stream is unrecoverable at
// that point and the connection should be dropped.
var ErrFrameTooLarge = errors.New("protocol: frame exceeds maximum size")

// Framer splits an unbounded, arbitrarily chunked byte stream into complete
// newline-delimited frames. A frame may span several Feed calls and one Feed
// may complete several frames, so Next must be called repeatedly after each
// Feed until it reports no frame.
//
// The zero value is ready to use and imposes no frame size limit.
type Framer struct {
	buf []byte

	// MaxFrameSize bounds the bytes buffered without a delimiter.
	// Zero means unbounded.
	MaxFrameSize int
}

// Feed appends bytes to the accumulation buffer. It fails only when
// MaxFrameSize is set and the buffered, undelimited bytes exceed it.
func (f *Framer) Feed(p []byte) error {
	f.buf = append(f.buf, p...)
	if f.MaxFrameSize > 0 {
		// Only the bytes after the last delimiter belong to an
		// incomplete frame; complete frames awaiting Next don't count.
		tail := f.buf
		if i := bytes.LastIndexByte(f.buf, FrameDelimiter); i >= 0 {
			tail = f.buf[i+1:]
		}
		if len(tail) > f.MaxFrameSize {
			return ErrFrameTooLarge
		}
	}
	return nil
}

// Next extracts the earliest complete frame from the buffer, without its
// delimiter. It returns false when no complete frame is buffered yet.
// Empty frames (consecutive delimiters, or a delimiter as the first byte)
// are skipped, never surfaced.
func (f *Framer) Next() ([]byte, bool) {
	for {
		i := bytes.IndexByte(f.buf, FrameDelimiter)
		if i < 0 {
			return nil, false
		}

		frame := f.buf[:i:i]
		f.buf = f.buf[i+1:]

		// Tolerate CRLF peers.
		frame = bytes.TrimSuffix(frame, []byte{'\r'})
		if len(frame) == 0 {
			continue
		}

		// Copy out so the caller's frame survives buffer reuse by
		// subsequent Feed calls.
		out := make([]byte, len(frame))
		copy(out, frame)
		return out, true
	}
}

// Buffered reports how many bytes are held without a complete frame.
func (f *Framer) Buffered() int {
	return len(f.buf)
}

// Reset discards all buffered bytes.
func (f *Framer) Reset() {
	f.buf = f.buf[:0]
}
