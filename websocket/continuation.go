package websocket

import "fmt"

// emptyPayload is the canonical "no payload" value.
//
// It has zero length and zero capacity, so sharing it between frames is safe:
// nothing can be written through it, and append always allocates.
var emptyPayload = []byte{}

// ContinuationFrame is one continuation fragment (opcode 0x0) of a
// fragmented WebSocket message.
//
// RFC 6455 Section 5.4: A fragmented message is an initial text or binary
// frame with FIN=0, zero or more continuation frames with FIN=0, and a final
// continuation frame with FIN=1.
//
// The payload is held as bytes; Text is a computed UTF-8 view of those bytes.
// A decoder may attach a Reassembly to the final fragment of a message. For a
// text message it carries the whole message decoded as UTF-8, which is not the
// same as this frame's own payload. The attached result has no wire form.
//
// The zero value is a final continuation frame with RSV 0 and an empty
// payload. A ContinuationFrame is owned by one pipeline stage at a time and is
// not safe for concurrent use.
type ContinuationFrame struct {
	// more is the inverse of FIN so that the zero value is a final frame.
	more bool

	// rsv holds RSV1-RSV3 in its low three bits.
	// Propagated as-is; the encoder rejects values above 7.
	rsv byte

	payload []byte

	reassembly *Reassembly
}

var _ Frame = (*ContinuationFrame)(nil)

// NewContinuationFrame returns a final continuation frame with RSV 0 carrying data.
//
// A frame built without fragmentation flags is treated as complete in itself.
// A nil data slice is stored as the empty payload.
func NewContinuationFrame(data []byte) *ContinuationFrame {
	return NewContinuation(FrameOptions{}, data)
}

// NewContinuation returns a continuation frame with the given header fields
// carrying binary data.
func NewContinuation(opts FrameOptions, data []byte) *ContinuationFrame {
	f := &ContinuationFrame{
		more: opts.More,
		rsv:  opts.RSV,
	}
	f.SetPayload(data)
	return f
}

// NewTextContinuation returns a continuation frame carrying the UTF-8
// encoding of text. An empty text produces the empty payload.
func NewTextContinuation(opts FrameOptions, text string) *ContinuationFrame {
	f := &ContinuationFrame{
		more: opts.More,
		rsv:  opts.RSV,
	}
	f.SetText(text)
	return f
}

// NewAggregatedContinuation returns a continuation frame carrying data and
// the aggregated text of the message it terminates.
//
// Intended for decoders. data is stored as given; it is not derived from
// aggregatedText, and the two may differ.
func NewAggregatedContinuation(opts FrameOptions, data []byte, aggregatedText string) *ContinuationFrame {
	f := NewContinuation(opts, data)
	f.SetAggregatedText(aggregatedText)
	return f
}

// Opcode returns OpContinuation.
func (f *ContinuationFrame) Opcode() Opcode {
	return OpContinuation
}

// Final reports whether this is the last fragment of its message (FIN bit).
func (f *ContinuationFrame) Final() bool {
	return !f.more
}

// RSV returns the reserved bits as given at construction.
func (f *ContinuationFrame) RSV() byte {
	return f.rsv
}

// Payload returns the bytes carried by this frame alone. It is never nil.
func (f *ContinuationFrame) Payload() []byte {
	if f.payload == nil {
		return emptyPayload
	}
	return f.payload
}

// SetPayload replaces the payload. A nil slice is stored as the empty payload.
// The header fields and any attached Reassembly are left untouched.
func (f *ContinuationFrame) SetPayload(data []byte) {
	if data == nil {
		data = emptyPayload
	}
	f.payload = data
}

// Text returns the payload decoded as UTF-8.
//
// Decoding is lenient: malformed sequences become U+FFFD instead of failing.
// Use ValidateText first when strict checking is required. Text never reads
// the aggregated text.
func (f *ContinuationFrame) Text() string {
	return decodeText(f.Payload())
}

// SetText replaces the payload with the UTF-8 encoding of text.
// An empty text stores the empty payload. Nothing else is modified.
func (f *ContinuationFrame) SetText(text string) {
	if text == "" {
		f.payload = emptyPayload
		return
	}
	f.payload = []byte(text)
}

// AggregatedText returns the full text of the message this frame terminates.
//
// ok is false unless a decoder marked this frame as the final fragment of a
// text message (or SetAggregatedText was called).
func (f *ContinuationFrame) AggregatedText() (text string, ok bool) {
	if f.reassembly == nil || f.reassembly.Type != TextMessage {
		return "", false
	}
	return f.reassembly.Text, true
}

// SetAggregatedText records the full text of the message this frame
// terminates. The payload is not modified.
func (f *ContinuationFrame) SetAggregatedText(text string) {
	if f.reassembly == nil {
		f.reassembly = &Reassembly{}
	}
	f.reassembly.Type = TextMessage
	f.reassembly.Text = text
}

// ClearAggregatedText detaches any decoder result from the frame.
func (f *ContinuationFrame) ClearAggregatedText() {
	f.reassembly = nil
}

// Reassembly returns the decoder result attached to this frame, or nil.
func (f *ContinuationFrame) Reassembly() *Reassembly {
	return f.reassembly
}

// attach is called by Reassembler on the final fragment of a message.
func (f *ContinuationFrame) attach(r *Reassembly) {
	f.reassembly = r
}

// String returns a diagnostic representation of the frame.
func (f *ContinuationFrame) String() string {
	return fmt.Sprintf("ContinuationFrame(fin: %t, rsv: %d, data: %d bytes)",
		f.Final(), f.rsv, len(f.Payload()))
}
