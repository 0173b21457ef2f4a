package websocket

import (
	"errors"
	"strings"
	"testing"
)

// pushAll feeds frames in order and returns the last result.
func pushAll(t *testing.T, r *Reassembler, frames ...Frame) (*Message, error) {
	t.Helper()

	var (
		msg *Message
		err error
	)
	for i, f := range frames {
		msg, err = r.Push(f)
		if err != nil {
			return nil, err
		}
		if msg != nil && i != len(frames)-1 {
			t.Fatalf("message completed early at frame %d", i)
		}
	}
	return msg, nil
}

// TestReassembler_FragmentedText tests the aggregation contract for text.
// RFC 6455 Section 5.4: fragments are concatenated in order.
func TestReassembler_FragmentedText(t *testing.T) {
	r := NewReassembler(ReassemblerOptions{})

	first := NewTextFrame(FrameOptions{More: true}, "Hello, ")
	mid := NewTextContinuation(FrameOptions{More: true}, "World")
	last := NewTextContinuation(FrameOptions{}, "!")

	msg, err := pushAll(t, r, first, mid, last)
	if err != nil {
		t.Fatalf("Push() error: %v", err)
	}

	if msg == nil || msg.Type != TextMessage || msg.Text() != "Hello, World!" || msg.Fragments != 3 {
		t.Fatalf("message = %+v", msg)
	}

	if _, ok := mid.AggregatedText(); ok {
		t.Error("non-final fragment received aggregated text")
	}

	text, ok := last.AggregatedText()
	if !ok || text != "Hello, World!" {
		t.Errorf("AggregatedText() = %q, %v, want %q", text, ok, "Hello, World!")
	}
	if last.Text() != "!" {
		t.Errorf("final fragment Text() = %q, want %q", last.Text(), "!")
	}

	res := last.Reassembly()
	if res.Type != TextMessage || res.Fragments != 3 || res.Size != 13 {
		t.Errorf("Reassembly() = %+v", res)
	}
	if r.Active() {
		t.Error("reassembler still active after final fragment")
	}
}

// TestReassembler_FragmentedBinary tests that binary messages produce no text.
func TestReassembler_FragmentedBinary(t *testing.T) {
	r := NewReassembler(ReassemblerOptions{})

	last := NewContinuation(FrameOptions{}, []byte{0x03, 0x04})
	msg, err := pushAll(t, r,
		NewBinaryFrame(FrameOptions{More: true}, []byte{0x01, 0x02}),
		last,
	)
	if err != nil {
		t.Fatalf("Push() error: %v", err)
	}

	if msg.Type != BinaryMessage || string(msg.Payload) != "\x01\x02\x03\x04" {
		t.Errorf("message = %+v", msg)
	}
	if _, ok := last.AggregatedText(); ok {
		t.Error("binary final fragment has aggregated text")
	}
	if res := last.Reassembly(); res == nil || res.Type != BinaryMessage || res.Text != "" {
		t.Errorf("Reassembly() = %+v", res)
	}
}

// TestReassembler_Unfragmented tests single-frame messages.
func TestReassembler_Unfragmented(t *testing.T) {
	r := NewReassembler(ReassemblerOptions{})

	msg, err := r.Push(NewTextFrame(FrameOptions{}, "solo"))
	if err != nil {
		t.Fatalf("Push() error: %v", err)
	}
	if msg.Text() != "solo" || msg.Fragments != 1 {
		t.Errorf("message = %+v", msg)
	}

	if _, err := r.Push(NewTextFrame(FrameOptions{}, "\xff")); !errors.Is(err, ErrInvalidUTF8) {
		t.Errorf("Push(invalid text) = %v, want ErrInvalidUTF8", err)
	}
}

// TestReassembler_EmptyFragments tests messages made of empty frames.
func TestReassembler_EmptyFragments(t *testing.T) {
	r := NewReassembler(ReassemblerOptions{})

	last := NewTextContinuation(FrameOptions{}, "")
	msg, err := pushAll(t, r,
		NewTextFrame(FrameOptions{More: true}, ""),
		NewTextContinuation(FrameOptions{More: true}, ""),
		last,
	)
	if err != nil {
		t.Fatalf("Push() error: %v", err)
	}

	if len(msg.Payload) != 0 || msg.Fragments != 3 {
		t.Errorf("message = %+v", msg)
	}
	if text, ok := last.AggregatedText(); !ok || text != "" {
		t.Errorf("AggregatedText() = %q, %v, want \"\", true", text, ok)
	}
}

// TestReassembler_ControlInterleaved tests that control frames do not disturb reassembly.
// RFC 6455 Section 5.4: control frames MAY be injected in the middle of a fragmented message.
func TestReassembler_ControlInterleaved(t *testing.T) {
	r := NewReassembler(ReassemblerOptions{})

	msg, err := pushAll(t, r,
		NewTextFrame(FrameOptions{More: true}, "a"),
		NewMessageFrame(OpPing, FrameOptions{}, []byte("p")),
		NewTextContinuation(FrameOptions{More: true}, "b"),
		NewMessageFrame(OpPong, FrameOptions{}, nil),
		NewTextContinuation(FrameOptions{}, "c"),
	)
	if err != nil {
		t.Fatalf("Push() error: %v", err)
	}
	if msg.Text() != "abc" || msg.Fragments != 3 {
		t.Errorf("message = %+v", msg)
	}
}

// TestReassembler_RSVIgnored tests that RSV bits neither aggregate nor fail reassembly.
func TestReassembler_RSVIgnored(t *testing.T) {
	r := NewReassembler(ReassemblerOptions{})

	last := NewTextContinuation(FrameOptions{RSV: RSV3}, "y")
	msg, err := pushAll(t, r,
		NewTextFrame(FrameOptions{More: true, RSV: RSV1}, "x"),
		last,
	)
	if err != nil {
		t.Fatalf("Push() error: %v", err)
	}
	if msg.Text() != "xy" || last.RSV() != RSV3 {
		t.Errorf("message = %+v, rsv = %d", msg, last.RSV())
	}
}

// TestReassembler_Errors tests sequencing, size and encoding violations.
func TestReassembler_Errors(t *testing.T) {
	euro := []byte("€")

	tests := []struct {
		name    string
		opts    ReassemblerOptions
		frames  []Frame
		wantErr error
	}{
		{
			name:    "continuation without start",
			frames:  []Frame{NewContinuationFrame([]byte("x"))},
			wantErr: ErrUnexpectedContinuation,
		},
		{
			name: "text inside fragmented message",
			frames: []Frame{
				NewTextFrame(FrameOptions{More: true}, "a"),
				NewTextFrame(FrameOptions{}, "b"),
			},
			wantErr: ErrExpectedContinuation,
		},
		{
			name: "binary inside fragmented message",
			frames: []Frame{
				NewBinaryFrame(FrameOptions{More: true}, []byte("a")),
				NewBinaryFrame(FrameOptions{More: true}, []byte("b")),
			},
			wantErr: ErrExpectedContinuation,
		},
		{
			name: "message over limit",
			opts: ReassemblerOptions{MaxMessageSize: 5},
			frames: []Frame{
				NewBinaryFrame(FrameOptions{More: true}, []byte("abc")),
				NewContinuation(FrameOptions{}, []byte("def")),
			},
			wantErr: ErrMessageTooLarge,
		},
		{
			name:    "single frame over limit",
			opts:    ReassemblerOptions{MaxMessageSize: 2},
			frames:  []Frame{NewBinaryFrame(FrameOptions{}, []byte("abc"))},
			wantErr: ErrMessageTooLarge,
		},
		{
			name: "invalid UTF-8 in middle fragment",
			frames: []Frame{
				NewTextFrame(FrameOptions{More: true}, "a"),
				NewContinuation(FrameOptions{More: true}, []byte{0xFF}),
			},
			wantErr: ErrInvalidUTF8,
		},
		{
			name: "code point cut by end of message",
			frames: []Frame{
				NewTextFrame(FrameOptions{More: true}, "a"),
				NewContinuation(FrameOptions{}, euro[:1]),
			},
			wantErr: ErrInvalidUTF8,
		},
		{
			name:    "reserved opcode",
			frames:  []Frame{NewMessageFrame(Opcode(0x3), FrameOptions{}, nil)},
			wantErr: ErrInvalidOpcode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReassembler(tt.opts)

			_, err := pushAll(t, r, tt.frames...)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Push() error = %v, want %v", err, tt.wantErr)
			}
			if r.Active() {
				t.Error("reassembler still active after error")
			}
		})
	}
}

// TestReassembler_SplitCodePoint tests text whose code points straddle fragments.
func TestReassembler_SplitCodePoint(t *testing.T) {
	r := NewReassembler(ReassemblerOptions{})
	text := "naïve €uro"
	data := []byte(text)

	// One byte per fragment splits every multibyte code point.
	frames := []Frame{NewMessageFrame(OpText, FrameOptions{More: true}, data[:1])}
	for i := 1; i < len(data); i++ {
		frames = append(frames, NewContinuation(FrameOptions{More: i != len(data)-1}, data[i:i+1]))
	}

	msg, err := pushAll(t, r, frames...)
	if err != nil {
		t.Fatalf("Push() error: %v", err)
	}
	if msg.Text() != text {
		t.Errorf("message = %q, want %q", msg.Text(), text)
	}

	last := frames[len(frames)-1].(*ContinuationFrame)
	if agg, ok := last.AggregatedText(); !ok || agg != text {
		t.Errorf("AggregatedText() = %q, %v", agg, ok)
	}
}

// TestReassembler_Lenient tests U+FFFD substitution instead of failure.
func TestReassembler_Lenient(t *testing.T) {
	r := NewReassembler(ReassemblerOptions{LenientUTF8: true})

	last := NewContinuation(FrameOptions{}, []byte{0xFF, '!'})
	msg, err := pushAll(t, r, NewTextFrame(FrameOptions{More: true}, "hi"), last)
	if err != nil {
		t.Fatalf("Push() error: %v", err)
	}

	if text, _ := last.AggregatedText(); text != "hi�!" {
		t.Errorf("AggregatedText() = %q, want %q", text, "hi�!")
	}
	if string(msg.Payload) != "hi\xff!" {
		t.Errorf("payload = %q, raw bytes must be kept", msg.Payload)
	}
}

// TestReassembler_ReuseAfterReset tests that a reset drops the partial message.
func TestReassembler_ReuseAfterReset(t *testing.T) {
	r := NewReassembler(ReassemblerOptions{})

	if _, err := r.Push(NewTextFrame(FrameOptions{More: true}, "stale")); err != nil {
		t.Fatalf("Push() error: %v", err)
	}
	r.Reset()

	msg, err := pushAll(t, r,
		NewTextFrame(FrameOptions{More: true}, "fre"),
		NewTextContinuation(FrameOptions{}, "sh"),
	)
	if err != nil {
		t.Fatalf("Push() error: %v", err)
	}
	if msg.Text() != "fresh" {
		t.Errorf("message = %q, want %q", msg.Text(), "fresh")
	}
}

// TestReassembler_PayloadNotShared tests that delivered payloads survive the next message.
func TestReassembler_PayloadNotShared(t *testing.T) {
	r := NewReassembler(ReassemblerOptions{})

	first, err := pushAll(t, r,
		NewTextFrame(FrameOptions{More: true}, "one"),
		NewTextContinuation(FrameOptions{}, "-1"),
	)
	if err != nil {
		t.Fatalf("Push() error: %v", err)
	}
	if _, err := pushAll(t, r,
		NewTextFrame(FrameOptions{More: true}, strings.Repeat("x", 64)),
		NewTextContinuation(FrameOptions{}, "y"),
	); err != nil {
		t.Fatalf("Push() error: %v", err)
	}

	if first.Text() != "one-1" {
		t.Errorf("first message overwritten: %q", first.Text())
	}
}
