package websocket

import (
	"bufio"
	"fmt"
	"io"
)

// Observer receives pipeline events from a Decoder or Encoder.
//
// Implementations must be safe for concurrent use when shared between
// connections. internal/metrics provides a Prometheus implementation.
type Observer interface {
	// FrameDecoded is called for every frame read from the wire.
	FrameDecoded(f Frame)

	// FrameEncoded is called for every frame written to the wire.
	FrameEncoded(f Frame)

	// MessageReassembled is called when a data message is complete.
	MessageReassembled(m *Message)

	// DecodeFailed is called when decoding fails with err.
	DecodeFailed(err error)
}

// DecoderOptions configures a Decoder.
//
// All fields are optional. Zero values use sensible defaults.
type DecoderOptions struct {
	// MaxFramePayload is the largest data frame payload accepted
	// (default: 32 MB).
	MaxFramePayload int

	// MaxMessageSize is the largest reassembled message accepted
	// (default: 32 MB).
	MaxMessageSize int

	// AllowedRSV holds the RSV bits owned by negotiated extensions.
	// Frames with any other RSV bit set fail with ErrReservedBits.
	AllowedRSV byte

	// ZeroRSVOnContinuation rejects continuation frames with RSV bits set,
	// for extensions that only mark the first frame of a message.
	ZeroRSVOnContinuation bool

	// LenientUTF8 accepts malformed UTF-8 in text messages.
	LenientUTF8 bool

	// Observer, if set, receives decode events.
	Observer Observer
}

// Decoder reads frames from a byte stream and reassembles messages.
//
// Frames are returned in wire order. When a continuation frame closes a
// fragmented text message, the returned *ContinuationFrame carries the
// aggregated text of the whole message (see ContinuationFrame.AggregatedText).
//
// A Decoder holds one reassembly context and must be used by a single
// goroutine.
type Decoder struct {
	r        *bufio.Reader
	limits   readLimits
	zeroCont bool
	reasm    *Reassembler
	observer Observer
}

// NewDecoder returns a Decoder reading from r.
// r is wrapped in a bufio.Reader unless it already is one.
func NewDecoder(r io.Reader, opts *DecoderOptions) *Decoder {
	if opts == nil {
		opts = &DecoderOptions{}
	}
	maxPayload := opts.MaxFramePayload
	if maxPayload <= 0 {
		maxPayload = defaultMaxFramePayload
	}

	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReaderSize(r, defaultReadBufferSize)
	}

	return &Decoder{
		r: br,
		limits: readLimits{
			allowedRSV: opts.AllowedRSV & rsvMask,
			maxPayload: uint64(maxPayload),
		},
		zeroCont: opts.ZeroRSVOnContinuation,
		reasm: NewReassembler(ReassemblerOptions{
			MaxMessageSize: opts.MaxMessageSize,
			LenientUTF8:    opts.LenientUTF8,
		}),
		observer: opts.Observer,
	}
}

// Next reads the next frame.
//
// msg is non-nil when f completed a data message. Control frames are
// returned as *MessageFrame and never complete a message.
func (d *Decoder) Next() (f Frame, msg *Message, err error) {
	wf, err := readFrame(d.r, d.limits)
	if err != nil {
		d.failed(err)
		return nil, nil, err
	}

	if d.zeroCont && wf.opcode == OpContinuation && wf.rsv != 0 {
		d.reasm.Reset()
		err = fmt.Errorf("%w: continuation rsv=%d", ErrReservedBits, wf.rsv)
		d.failed(err)
		return nil, nil, err
	}

	f = wf.toFrame()
	if d.observer != nil {
		d.observer.FrameDecoded(f)
	}

	msg, err = d.reasm.Push(f)
	if err != nil {
		d.failed(err)
		return nil, nil, err
	}
	if msg != nil && d.observer != nil {
		d.observer.MessageReassembled(msg)
	}

	return f, msg, nil
}

// Decode reads the next frame without reporting message completion.
func (d *Decoder) Decode() (Frame, error) {
	f, _, err := d.Next()
	return f, err
}

// ReadMessage reads frames until a data message is complete.
// Control frames read on the way are discarded.
func (d *Decoder) ReadMessage() (*Message, error) {
	for {
		_, msg, err := d.Next()
		if err != nil {
			return nil, err
		}
		if msg != nil {
			return msg, nil
		}
	}
}

// InMessage reports whether a fragmented message is open.
func (d *Decoder) InMessage() bool {
	return d.reasm.Active()
}

func (d *Decoder) failed(err error) {
	if d.observer != nil {
		d.observer.DecodeFailed(err)
	}
}
