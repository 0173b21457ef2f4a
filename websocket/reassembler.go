package websocket

import (
	"bytes"
	"fmt"
)

// defaultMaxMessageSize bounds a reassembled message (32 MB).
const defaultMaxMessageSize = 32 * 1024 * 1024

// ReassemblerOptions configures a Reassembler.
//
// All fields are optional. Zero values use sensible defaults.
type ReassemblerOptions struct {
	// MaxMessageSize is the largest reassembled message accepted
	// (default: 32 MB). Exceeding it returns ErrMessageTooLarge.
	MaxMessageSize int

	// LenientUTF8 disables UTF-8 validation of text messages. Aggregated text
	// then carries U+FFFD for malformed sequences instead of failing.
	LenientUTF8 bool
}

// Reassembler rebuilds messages from data frames delivered in wire order.
//
// It implements the aggregation contract of RFC 6455 Section 5.4:
//  1. An initial text or binary frame with FIN=0 opens a message.
//  2. Each continuation frame with FIN=0 appends its payload.
//  3. The continuation frame with FIN=1 appends its payload, closes the
//     message and receives a Reassembly. For a text message the Reassembly
//     holds the UTF-8 text of the whole message.
//  4. A binary message's final frame gets no aggregated text. The whole
//     payload is returned as a Message instead.
//  5. RSV bits are neither aggregated nor checked here.
//
// Control frames may be interleaved at any point and are ignored.
//
// One Reassembler serves one connection. It is not safe for concurrent use:
// aggregation depends on byte-exact, in-order concatenation.
type Reassembler struct {
	maxSize int
	lenient bool

	active    bool
	msgType   MessageType
	buf       bytes.Buffer
	fragments int
	validator utf8Validator
}

// NewReassembler returns an idle Reassembler.
func NewReassembler(opts ReassemblerOptions) *Reassembler {
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = defaultMaxMessageSize
	}
	return &Reassembler{
		maxSize: opts.MaxMessageSize,
		lenient: opts.LenientUTF8,
	}
}

// Push feeds the next frame.
//
// Returns the complete message when f finishes one (an unfragmented text or
// binary frame, or a final continuation frame), nil otherwise. When f is the
// final fragment of a fragmented message and is a *ContinuationFrame, the
// Reassembly is attached to that same frame before Push returns.
//
// Any error resets the Reassembler; the partial message is dropped.
//
//nolint:gocyclo,cyclop // One branch per RFC 6455 Section 5.4 transition
func (r *Reassembler) Push(f Frame) (*Message, error) {
	op := f.Opcode()
	if op.IsControl() {
		return nil, nil
	}

	switch op {
	case OpText, OpBinary:
		if r.active {
			r.Reset()
			return nil, ErrExpectedContinuation
		}
		msgType, _ := messageTypeOf(op)
		payload := f.Payload()

		if len(payload) > r.maxSize {
			return nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(payload))
		}

		if f.Final() {
			// Unfragmented message: no continuation to aggregate onto.
			if msgType == TextMessage && !r.lenient {
				if err := ValidateText(payload); err != nil {
					return nil, err
				}
			}
			return &Message{Type: msgType, Payload: payload, Fragments: 1}, nil
		}

		r.active = true
		r.msgType = msgType
		r.fragments = 1
		r.buf.Reset()
		r.validator.reset()
		return nil, r.append(payload, false)

	case OpContinuation:
		if !r.active {
			return nil, ErrUnexpectedContinuation
		}
		r.fragments++
		if err := r.append(f.Payload(), f.Final()); err != nil {
			return nil, err
		}
		if !f.Final() {
			return nil, nil
		}
		return r.complete(f), nil

	default:
		return nil, fmt.Errorf("%w: 0x%X", ErrInvalidOpcode, byte(op))
	}
}

// append adds one fragment's payload, enforcing size and UTF-8 rules.
func (r *Reassembler) append(p []byte, final bool) error {
	if r.buf.Len()+len(p) > r.maxSize {
		size := r.buf.Len() + len(p)
		r.Reset()
		return fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, size)
	}
	if r.msgType == TextMessage && !r.lenient && !r.validator.feed(p, final) {
		r.Reset()
		return ErrInvalidUTF8
	}
	r.buf.Write(p)
	return nil
}

// complete closes the open message after its final fragment f.
func (r *Reassembler) complete(f Frame) *Message {
	// Copy out: buf is reused by the next message.
	payload := make([]byte, r.buf.Len())
	copy(payload, r.buf.Bytes())

	msg := &Message{Type: r.msgType, Payload: payload, Fragments: r.fragments}

	if cf, ok := f.(*ContinuationFrame); ok {
		result := &Reassembly{
			Type:      r.msgType,
			Fragments: r.fragments,
			Size:      len(payload),
		}
		if r.msgType == TextMessage {
			result.Text = decodeText(payload)
		}
		cf.attach(result)
	}

	r.Reset()
	return msg
}

// Active reports whether a fragmented message is open.
func (r *Reassembler) Active() bool {
	return r.active
}

// Reset drops any open message. Nothing is delivered for it.
func (r *Reassembler) Reset() {
	r.active = false
	r.msgType = 0
	r.fragments = 0
	r.buf.Reset()
	r.validator.reset()
}
