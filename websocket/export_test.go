package websocket

// This file exports internal functions for the external test package.
// It is only compiled during tests.

import (
	"bufio"
	"io"
)

// RawFrameForTest describes a frame written without validation.
type RawFrameForTest struct {
	Fin     bool
	RSV     byte
	Opcode  Opcode
	Mask    bool
	Payload []byte
}

// WriteRawFrameForTest writes f to w without validation.
//
// Used to put RSV bits and other protocol violations on the wire.
// Masked frames use a fixed key.
func WriteRawFrameForTest(w io.Writer, f RawFrameForTest) error {
	return writeFrameNoValidation(bufio.NewWriter(w), &frame{
		fin:     f.Fin,
		rsv:     f.RSV,
		opcode:  f.Opcode,
		masked:  f.Mask,
		mask:    [4]byte{0x37, 0xfa, 0x21, 0x3d},
		payload: f.Payload,
	})
}
