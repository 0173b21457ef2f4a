// Package websocket implements RFC 6455 WebSocket framing with first-class
// support for fragmented messages.
//
// This package provides:
//   - ContinuationFrame, the value type for one fragment of a message
//   - A wire codec for RFC 6455 Section 5.2 frames
//   - Decoder and Reassembler, which rebuild fragmented messages in wire order
//     and attach the aggregated text to the terminal fragment of a text message
//   - Encoder and Fragment, which split messages into continuation frames
//   - Conn, Upgrade and Hub for serving connections
//
// RFC Reference: https://datatracker.ietf.org/doc/html/rfc6455
package websocket

import "fmt"

// Opcode is the 4-bit frame operation code (RFC 6455 Section 5.2).
//
// Opcodes 0x0-0x2 are data frames, 0x8-0xA are control frames.
// Opcodes 0x3-0x7 and 0xB-0xF are reserved for future use.
type Opcode byte

const (
	// OpContinuation indicates a continuation frame (RFC 6455 Section 5.4).
	// Carries the next fragment of a message whose first frame had FIN=0.
	OpContinuation Opcode = 0x0

	// OpText indicates a text data frame (RFC 6455 Section 5.6).
	// The reassembled message must be valid UTF-8.
	OpText Opcode = 0x1

	// OpBinary indicates a binary data frame (RFC 6455 Section 5.6).
	OpBinary Opcode = 0x2

	// OpClose indicates a close control frame (RFC 6455 Section 5.5.1).
	OpClose Opcode = 0x8

	// OpPing indicates a ping control frame (RFC 6455 Section 5.5.2).
	OpPing Opcode = 0x9

	// OpPong indicates a pong control frame (RFC 6455 Section 5.5.3).
	OpPong Opcode = 0xA
)

// String returns the RFC name of the opcode.
func (op Opcode) String() string {
	switch op {
	case OpContinuation:
		return "continuation"
	case OpText:
		return "text"
	case OpBinary:
		return "binary"
	case OpClose:
		return "close"
	case OpPing:
		return "ping"
	case OpPong:
		return "pong"
	default:
		return fmt.Sprintf("reserved(0x%X)", byte(op))
	}
}

// IsControl reports whether op is a control opcode (0x8-0xF).
//
// RFC 6455 Section 5.5: Control frames are identified by opcodes where
// the most significant bit of the opcode is 1.
//
// Control frames:
//   - Must NOT be fragmented (FIN must be 1)
//   - May be interleaved with fragmented messages
//   - Payload length must be <= 125 bytes
func (op Opcode) IsControl() bool {
	return op&0x08 != 0
}

// IsData reports whether op is a data opcode (continuation, text or binary).
func (op Opcode) IsData() bool {
	return op == OpContinuation || op == OpText || op == OpBinary
}

// isValidOpcode returns true if the opcode is defined in RFC 6455.
//
// Opcodes 0x3-0x7 and 0xB-0xF are reserved.
func isValidOpcode(op Opcode) bool {
	switch op {
	case OpContinuation, OpText, OpBinary, OpClose, OpPing, OpPong:
		return true
	default:
		return false
	}
}

// Reserved header bits, expressed in the 3-bit RSV value carried by frames.
//
// RFC 6455 Section 5.2: RSV1, RSV2 and RSV3 are reserved for extensions.
// RSV1 maps to header bit 0x40, RSV2 to 0x20 and RSV3 to 0x10.
const (
	RSV1 byte = 0x4
	RSV2 byte = 0x2
	RSV3 byte = 0x1

	// rsvMask covers every valid RSV value.
	rsvMask byte = RSV1 | RSV2 | RSV3
)
