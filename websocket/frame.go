package websocket

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// Maximum payload sizes (implementation limits).
const (
	// maxControlPayload is the maximum payload length for control frames.
	// RFC 6455 Section 5.5: Control frames must have payload <= 125 bytes.
	maxControlPayload = 125

	// defaultMaxFramePayload is the default payload limit for data frames.
	// Default: 32 MB (DecoderOptions.MaxFramePayload).
	defaultMaxFramePayload = 32 * 1024 * 1024

	// Payload length encoding thresholds (RFC 6455 Section 5.2).
	payloadLen7Bit  = 125 // 0-125: stored in 7 bits
	payloadLen16Bit = 126 // 126: followed by 16-bit length
	payloadLen64Bit = 127 // 127: followed by 64-bit length
)

// frame is the wire form of a WebSocket frame (RFC 6455 Section 5.2).
//
// Frame structure:
//
//	 0                   1                   2                   3
//	 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
//	+-+-+-+-+-------+-+-------------+-------------------------------+
//	|F|R|R|R| opcode|M| Payload len |    Extended payload length    |
//	|I|S|S|S|  (4)  |A|     (7)     |             (16/64)           |
//	|N|V|V|V|       |S|             |   (if payload len==126/127)   |
//	| |1|2|3|       |K|             |                               |
//	+-+-+-+-+-------+-+-------------+ - - - - - - - - - - - - - - - +
//	|     Extended payload length continued, if payload len == 127  |
//	+ - - - - - - - - - - - - - - - +-------------------------------+
//	|                               |Masking-key, if MASK set to 1  |
//	+-------------------------------+-------------------------------+
//	| Masking-key (continued)       |          Payload Data         |
//	+-------------------------------- - - - - - - - - - - - - - - - +
//	:                     Payload Data continued ...                :
//	+ - - - - - - - - - - - - - - - - - - - - - - - - - - - - - - - +
//	|                     Payload Data continued ...                |
//	+---------------------------------------------------------------+
type frame struct {
	// fin indicates this is the final fragment (FIN bit).
	// RFC 6455 Section 5.2: If true, this is the last fragment of a message.
	fin bool

	// rsv holds RSV1, RSV2, RSV3 as a 3-bit value (RSV1 = 0x4).
	// RFC 6455 Section 5.2: Must be 0 unless an extension owns the bit.
	rsv byte

	// opcode is the frame operation code (4 bits).
	opcode Opcode

	// masked indicates if payload is masked (MASK bit).
	// RFC 6455 Section 5.3: Client-to-server frames MUST be masked.
	masked bool

	// mask is the 32-bit masking key.
	mask [4]byte

	// payload is the unmasked frame payload.
	// Text fragments are not validated here: a code point may straddle
	// a fragment boundary, so UTF-8 is checked per message by Reassembler.
	payload []byte
}

// readLimits bounds what readFrame accepts.
type readLimits struct {
	// allowedRSV are the RSV bits owned by negotiated extensions.
	allowedRSV byte

	// maxPayload is the largest data frame payload accepted.
	maxPayload uint64
}

// readFrame reads a WebSocket frame from the buffered reader.
//
// RFC 6455 Section 5.2: Base Framing Protocol.
//
// Steps:
//  1. Read 2-byte header (FIN, RSV, opcode, MASK, payload length)
//  2. Check opcode, RSV bits against negotiated extensions, control constraints
//  3. Read extended payload length if needed (16-bit or 64-bit)
//  4. Read masking key if MASK=1 (4 bytes)
//  5. Read and unmask payload
//
// Returns:
//   - frame: parsed frame structure
//   - error: validation or I/O error
func readFrame(r *bufio.Reader, lim readLimits) (*frame, error) {
	// Step 1: Read 2-byte header.
	// Byte 0: FIN(1) RSV(3) Opcode(4)
	// Byte 1: MASK(1) PayloadLen(7)
	var header [2]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	f := &frame{
		fin:    header[0]&0x80 != 0,
		rsv:    (header[0] >> 4) & rsvMask,
		opcode: Opcode(header[0] & 0x0F),
		masked: header[1]&0x80 != 0,
	}

	// Step 2: Validate opcode, reserved bits and control constraints.
	if !isValidOpcode(f.opcode) {
		return nil, fmt.Errorf("%w: 0x%X", ErrInvalidOpcode, byte(f.opcode))
	}

	// RFC 6455 Section 5.2: a nonzero RSV bit with no extension defining it
	// fails the connection.
	if unknown := f.rsv &^ lim.allowedRSV; unknown != 0 {
		return nil, fmt.Errorf("%w: rsv=%d", ErrReservedBits, f.rsv)
	}

	// RFC 6455 Section 5.5: Control frames must NOT be fragmented.
	if f.opcode.IsControl() && !f.fin {
		return nil, ErrControlFragmented
	}

	// Step 3: Read payload length (7-bit, 16-bit, or 64-bit).
	payloadLen := uint64(header[1] & 0x7F)

	switch payloadLen {
	case payloadLen16Bit:
		var buf [2]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return nil, fmt.Errorf("read 16-bit length: %w", err)
		}
		payloadLen = uint64(binary.BigEndian.Uint16(buf[:]))
	case payloadLen64Bit:
		var buf [8]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return nil, fmt.Errorf("read 64-bit length: %w", err)
		}
		payloadLen = binary.BigEndian.Uint64(buf[:])
		// RFC 6455 Section 5.2: Most significant bit must be 0.
		if payloadLen&(1<<63) != 0 {
			return nil, ErrProtocolError
		}
	}

	if f.opcode.IsControl() && payloadLen > maxControlPayload {
		return nil, ErrControlTooLarge
	}

	if payloadLen > lim.maxPayload {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, payloadLen)
	}

	// Step 4: Read masking key if MASK=1.
	if f.masked {
		if _, err := io.ReadFull(r, f.mask[:]); err != nil {
			return nil, fmt.Errorf("read mask: %w", err)
		}
	}

	// Step 5: Read payload data.
	if payloadLen > 0 {
		f.payload = make([]byte, payloadLen)
		if _, err := io.ReadFull(r, f.payload); err != nil {
			return nil, fmt.Errorf("read payload: %w", err)
		}

		if f.masked {
			applyMask(f.payload, f.mask)
		}
	}

	return f, nil
}

// writeFrame writes a WebSocket frame to the buffered writer and flushes it.
//
// RFC 6455 Section 5.2: Base Framing Protocol.
//
// Validates opcode, RSV range and control frame constraints before encoding.
// Text payloads are not checked: a fragment may end inside a code point.
func writeFrame(w *bufio.Writer, f *frame) error {
	if !isValidOpcode(f.opcode) {
		return fmt.Errorf("%w: 0x%X", ErrInvalidOpcode, byte(f.opcode))
	}

	if f.rsv > rsvMask {
		return fmt.Errorf("%w: %d", ErrInvalidRSV, f.rsv)
	}

	if f.opcode.IsControl() {
		if !f.fin {
			return ErrControlFragmented
		}
		if len(f.payload) > maxControlPayload {
			return ErrControlTooLarge
		}
	}

	return writeFrameNoValidation(w, f)
}

// writeFrameNoValidation encodes a frame without validation.
//
// Used directly ONLY by tests that need to put protocol violations on the wire.
//
// Steps:
//  1. Write 2-byte header
//  2. Write extended payload length if needed
//  3. Write masking key if MASK=1
//  4. Write (masked copy of) payload
//  5. Flush buffer
func writeFrameNoValidation(w *bufio.Writer, f *frame) error {
	// Step 1: Write 2-byte header.
	var header [2]byte

	// Byte 0: FIN(1) RSV(3) Opcode(4)
	if f.fin {
		header[0] |= 0x80
	}
	header[0] |= (f.rsv & rsvMask) << 4
	header[0] |= byte(f.opcode) & 0x0F

	// Byte 1: MASK(1) PayloadLen(7)
	if f.masked {
		header[1] |= 0x80
	}

	payloadLen := uint64(len(f.payload))

	switch {
	case payloadLen <= payloadLen7Bit:
		header[1] |= byte(payloadLen)
	case payloadLen <= 0xFFFF:
		header[1] |= payloadLen16Bit
	default:
		header[1] |= payloadLen64Bit
	}

	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	// Step 2: Write extended payload length if needed.
	if payloadLen > payloadLen7Bit && payloadLen <= 0xFFFF {
		var buf [2]byte
		binary.BigEndian.PutUint16(buf[:], uint16(payloadLen))
		if _, err := w.Write(buf[:]); err != nil {
			return fmt.Errorf("write 16-bit length: %w", err)
		}
	} else if payloadLen > 0xFFFF {
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], payloadLen)
		if _, err := w.Write(buf[:]); err != nil {
			return fmt.Errorf("write 64-bit length: %w", err)
		}
	}

	// Step 3: Write masking key if MASK=1.
	if f.masked {
		if _, err := w.Write(f.mask[:]); err != nil {
			return fmt.Errorf("write mask: %w", err)
		}
	}

	// Step 4: Write payload, masking a copy so the caller's frame is untouched.
	if len(f.payload) > 0 {
		payload := f.payload
		if f.masked {
			payload = make([]byte, len(f.payload))
			copy(payload, f.payload)
			applyMask(payload, f.mask)
		}

		if _, err := w.Write(payload); err != nil {
			return fmt.Errorf("write payload: %w", err)
		}
	}

	// Step 5: Flush buffer.
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}

	return nil
}

// toFrame converts a decoded wire frame into its pipeline value.
// Opcode 0x0 becomes a *ContinuationFrame, everything else a *MessageFrame.
func (f *frame) toFrame() Frame {
	opts := FrameOptions{More: !f.fin, RSV: f.rsv}
	if f.opcode == OpContinuation {
		return NewContinuation(opts, f.payload)
	}
	return NewMessageFrame(f.opcode, opts, f.payload)
}

// wireFrame builds the wire form of a pipeline frame.
// Any Reassembly attached to a continuation frame is not carried over.
func wireFrame(f Frame) *frame {
	return &frame{
		fin:     f.Final(),
		rsv:     f.RSV(),
		opcode:  f.Opcode(),
		payload: f.Payload(),
	}
}

// applyMask applies the WebSocket masking algorithm to data.
//
// RFC 6455 Section 5.3: Client-to-Server Masking.
//
//	transformed-octet-i = original-octet-i XOR masking-key-octet-j
//	where j = i MOD 4
//
// XOR is reversible, so the same call masks and unmasks. data is modified in-place.
func applyMask(data []byte, mask [4]byte) {
	for i := range data {
		data[i] ^= mask[i%4]
	}
}
