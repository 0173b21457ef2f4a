package websocket

import "fmt"

// Frame is a WebSocket frame as it travels through the pipeline.
//
// Frames are handed from stage to stage in wire order. The pipeline routes on
// Opcode and Final only; payload contents are opaque to it.
type Frame interface {
	// Opcode returns the frame's operation code.
	Opcode() Opcode

	// Final reports the FIN bit.
	Final() bool

	// RSV returns RSV1-RSV3 in the low three bits.
	RSV() byte

	// Payload returns the unmasked payload of this frame. Never nil.
	Payload() []byte
}

// FrameOptions holds the header fields shared by the frame constructors.
//
// The zero value describes a final frame with no reserved bits set.
type FrameOptions struct {
	// More clears the FIN bit: further continuation frames follow.
	More bool

	// RSV carries RSV1-RSV3 in its low three bits (see RSV1, RSV2, RSV3).
	// Frames keep the value as given; the encoder rejects values above 7.
	RSV byte
}

// MessageFrame is a frame with a non-continuation opcode: the first (or
// only) frame of a text or binary message, or a control frame.
type MessageFrame struct {
	opcode  Opcode
	more    bool
	rsv     byte
	payload []byte
}

var _ Frame = (*MessageFrame)(nil)

// NewMessageFrame returns a frame with the given opcode and header fields.
// A nil payload is stored as the empty payload.
func NewMessageFrame(op Opcode, opts FrameOptions, payload []byte) *MessageFrame {
	if payload == nil {
		payload = emptyPayload
	}
	return &MessageFrame{
		opcode:  op,
		more:    opts.More,
		rsv:     opts.RSV,
		payload: payload,
	}
}

// NewTextFrame returns a text frame carrying the UTF-8 encoding of text.
func NewTextFrame(opts FrameOptions, text string) *MessageFrame {
	var payload []byte
	if text != "" {
		payload = []byte(text)
	}
	return NewMessageFrame(OpText, opts, payload)
}

// NewBinaryFrame returns a binary frame carrying data.
func NewBinaryFrame(opts FrameOptions, data []byte) *MessageFrame {
	return NewMessageFrame(OpBinary, opts, data)
}

// Opcode returns the frame's operation code.
func (f *MessageFrame) Opcode() Opcode {
	return f.opcode
}

// Final reports the FIN bit.
func (f *MessageFrame) Final() bool {
	return !f.more
}

// RSV returns the reserved bits.
func (f *MessageFrame) RSV() byte {
	return f.rsv
}

// Payload returns the frame payload. Never nil.
func (f *MessageFrame) Payload() []byte {
	if f.payload == nil {
		return emptyPayload
	}
	return f.payload
}

// Text returns the payload decoded as UTF-8 (lenient).
//
// For the first frame of a fragmented message this is only the first
// fragment's text, and may end in U+FFFD if a code point was split.
func (f *MessageFrame) Text() string {
	return decodeText(f.Payload())
}

// String returns a diagnostic representation of the frame.
func (f *MessageFrame) String() string {
	return fmt.Sprintf("MessageFrame(opcode: %s, fin: %t, rsv: %d, data: %d bytes)",
		f.opcode, f.Final(), f.rsv, len(f.Payload()))
}
