package websocket

import (
	"bufio"
	"crypto/rand"
	"fmt"
	"io"
	"unicode/utf8"
)

// EncoderOptions configures an Encoder.
type EncoderOptions struct {
	// Mask masks every frame with a fresh random key.
	// RFC 6455 Section 5.3: client-to-server frames MUST be masked,
	// server-to-client frames MUST NOT be.
	Mask bool

	// Observer, if set, receives encode events.
	Observer Observer
}

// Encoder writes frames to a byte stream.
//
// Frames are written in call order. Callers that write the fragments of one
// message from several goroutines must serialize them (RFC 6455 Section 5.4:
// fragments of different messages must not interleave). Conn does this.
type Encoder struct {
	w        *bufio.Writer
	mask     bool
	observer Observer
}

// NewEncoder returns an Encoder writing to w.
// w is wrapped in a bufio.Writer unless it already is one.
func NewEncoder(w io.Writer, opts *EncoderOptions) *Encoder {
	if opts == nil {
		opts = &EncoderOptions{}
	}

	bw, ok := w.(*bufio.Writer)
	if !ok {
		bw = bufio.NewWriterSize(w, defaultWriteBufferSize)
	}

	return &Encoder{
		w:        bw,
		mask:     opts.Mask,
		observer: opts.Observer,
	}
}

// Encode writes f and flushes.
//
// The header gets FIN from f.Final, RSV1-RSV3 from f.RSV and the opcode from
// f.Opcode. Aggregated text attached to a continuation frame is not written.
func (e *Encoder) Encode(f Frame) error {
	wf := wireFrame(f)
	if e.mask {
		if _, err := rand.Read(wf.mask[:]); err != nil {
			return fmt.Errorf("generate mask: %w", err)
		}
		wf.masked = true
	}

	if err := writeFrame(e.w, wf); err != nil {
		return err
	}

	if e.observer != nil {
		e.observer.FrameEncoded(f)
	}
	return nil
}

// EncodeAll writes frames in order, stopping at the first error.
func (e *Encoder) EncodeAll(frames []Frame) error {
	for i, f := range frames {
		if err := e.Encode(f); err != nil {
			return fmt.Errorf("frame %d of %d: %w", i+1, len(frames), err)
		}
	}
	return nil
}

// Fragment splits a message into an initial frame followed by continuation
// frames of at most size payload bytes each.
//
// RFC 6455 Section 5.4:
//   - The first frame carries the message opcode and FIN=0 unless it is the only frame
//   - Every following frame is a ContinuationFrame, and only the last has FIN=1
//
// opts.RSV is placed on the first frame only; opts.More is ignored.
// Text payloads are cut on code point boundaries whenever size allows
// (size >= 4), so every fragment's Text view is clean. A size <= 0, or a
// payload that fits, yields a single frame.
//
// Frames share payload's backing array.
func Fragment(mt MessageType, payload []byte, size int, opts FrameOptions) ([]Frame, error) {
	op, ok := mt.opcode()
	if !ok {
		return nil, ErrInvalidMessageType
	}

	if size <= 0 || len(payload) <= size {
		return []Frame{NewMessageFrame(op, FrameOptions{RSV: opts.RSV}, payload)}, nil
	}

	var chunks [][]byte
	for len(payload) > 0 {
		n := min(size, len(payload))
		if mt == TextMessage && n < len(payload) {
			n = runeCut(payload, n)
		}
		chunks = append(chunks, payload[:n])
		payload = payload[n:]
	}

	frames := make([]Frame, 0, len(chunks))
	last := len(chunks) - 1
	for i, chunk := range chunks {
		if i == 0 {
			frames = append(frames, NewMessageFrame(op, FrameOptions{More: true, RSV: opts.RSV}, chunk))
			continue
		}
		frames = append(frames, NewContinuation(FrameOptions{More: i != last}, chunk))
	}

	return frames, nil
}

// runeCut moves a cut at n back to the start of the code point it would
// split. If that leaves nothing to emit, n is returned unchanged.
func runeCut(p []byte, n int) int {
	for i := n; i > 0 && i > n-utf8.UTFMax; i-- {
		if utf8.RuneStart(p[i]) {
			return i
		}
	}
	return n
}
