package websocket

import (
	"bytes"
	"testing"
)

// TestContinuationFrame_ZeroValue tests the default frame.
func TestContinuationFrame_ZeroValue(t *testing.T) {
	var f ContinuationFrame

	if !f.Final() {
		t.Error("zero value is not final")
	}
	if f.RSV() != 0 {
		t.Errorf("RSV() = %d, want 0", f.RSV())
	}
	if p := f.Payload(); p == nil || len(p) != 0 {
		t.Errorf("Payload() = %v, want empty non-nil", p)
	}
	if f.Text() != "" {
		t.Errorf("Text() = %q, want empty", f.Text())
	}
	if _, ok := f.AggregatedText(); ok {
		t.Error("zero value has aggregated text")
	}
	if f.Opcode() != OpContinuation {
		t.Errorf("Opcode() = %s, want continuation", f.Opcode())
	}
}

// TestContinuationFrame_Constructors tests header fields and payload of each constructor.
func TestContinuationFrame_Constructors(t *testing.T) {
	tests := []struct {
		name      string
		f         *ContinuationFrame
		wantFinal bool
		wantRSV   byte
		wantText  string
		wantAgg   bool
	}{
		{
			name:      "binary data",
			f:         NewContinuationFrame([]byte("abc")),
			wantFinal: true,
			wantText:  "abc",
		},
		{
			name:      "nil data",
			f:         NewContinuationFrame(nil),
			wantFinal: true,
			wantText:  "",
		},
		{
			name:      "non-final with rsv",
			f:         NewContinuation(FrameOptions{More: true, RSV: RSV1 | RSV3}, []byte{0x01}),
			wantFinal: false,
			wantRSV:   5,
			wantText:  "\x01",
		},
		{
			name:      "text",
			f:         NewTextContinuation(FrameOptions{More: true}, "héllo"),
			wantFinal: false,
			wantText:  "héllo",
		},
		{
			name:      "empty text",
			f:         NewTextContinuation(FrameOptions{}, ""),
			wantFinal: true,
			wantText:  "",
		},
		{
			name:      "aggregated",
			f:         NewAggregatedContinuation(FrameOptions{RSV: RSV2}, []byte("!"), "Hello, World!"),
			wantFinal: true,
			wantRSV:   RSV2,
			wantText:  "!",
			wantAgg:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.f.Final(); got != tt.wantFinal {
				t.Errorf("Final() = %v, want %v", got, tt.wantFinal)
			}
			if got := tt.f.RSV(); got != tt.wantRSV {
				t.Errorf("RSV() = %d, want %d", got, tt.wantRSV)
			}
			if got := tt.f.Text(); got != tt.wantText {
				t.Errorf("Text() = %q, want %q", got, tt.wantText)
			}
			if tt.f.Payload() == nil {
				t.Error("Payload() is nil")
			}
			if _, ok := tt.f.AggregatedText(); ok != tt.wantAgg {
				t.Errorf("AggregatedText() ok = %v, want %v", ok, tt.wantAgg)
			}
		})
	}
}

// TestContinuationFrame_RSVKeptAsGiven tests that out-of-range RSV values
// are stored unchanged; the encoder rejects them later.
func TestContinuationFrame_RSVKeptAsGiven(t *testing.T) {
	f := NewContinuation(FrameOptions{RSV: 0x0F}, nil)
	if f.RSV() != 0x0F {
		t.Errorf("RSV() = %d, want %d", f.RSV(), 0x0F)
	}
}

// TestContinuationFrame_TextRoundTrip tests that SetText then Text returns the input.
func TestContinuationFrame_TextRoundTrip(t *testing.T) {
	texts := []string{"a", "Hello, World!", "日本語", "emoji 🎉", "\u0000nul"}

	for _, text := range texts {
		var f ContinuationFrame
		f.SetText(text)

		if got := f.Text(); got != text {
			t.Errorf("Text() = %q, want %q", got, text)
		}
		if !bytes.Equal(f.Payload(), []byte(text)) {
			t.Errorf("Payload() = %x, want UTF-8 of %q", f.Payload(), text)
		}
	}
}

// TestContinuationFrame_SetTextEmpty tests that empty text yields the empty payload.
func TestContinuationFrame_SetTextEmpty(t *testing.T) {
	f := NewContinuationFrame([]byte("previous"))
	f.SetText("")

	if p := f.Payload(); p == nil || len(p) != 0 {
		t.Errorf("Payload() = %v, want empty non-nil", p)
	}
	if f.Text() != "" {
		t.Errorf("Text() = %q, want empty", f.Text())
	}
}

// TestContinuationFrame_SetPayloadNil tests nil normalization.
func TestContinuationFrame_SetPayloadNil(t *testing.T) {
	f := NewContinuationFrame([]byte("x"))
	f.SetPayload(nil)

	if p := f.Payload(); p == nil || len(p) != 0 {
		t.Errorf("Payload() = %v, want empty non-nil", p)
	}
}

// TestContinuationFrame_SettersKeepHeader tests that payload setters leave
// FIN and RSV untouched.
func TestContinuationFrame_SettersKeepHeader(t *testing.T) {
	f := NewContinuation(FrameOptions{More: true, RSV: RSV1}, []byte("a"))

	f.SetText("b")
	f.SetPayload([]byte("c"))
	f.SetAggregatedText("abc")

	if f.Final() || f.RSV() != RSV1 {
		t.Errorf("header changed: %v", f)
	}
}

// TestContinuationFrame_AggregatedTextIndependent tests that the aggregated
// text and the frame's own payload never affect each other.
func TestContinuationFrame_AggregatedTextIndependent(t *testing.T) {
	f := NewTextContinuation(FrameOptions{}, "!")

	f.SetAggregatedText("Hello, World!")
	if f.Text() != "!" {
		t.Errorf("Text() = %q after SetAggregatedText, want %q", f.Text(), "!")
	}

	f.SetText("?")
	if text, ok := f.AggregatedText(); !ok || text != "Hello, World!" {
		t.Errorf("AggregatedText() = %q, %v after SetText", text, ok)
	}

	f.ClearAggregatedText()
	if _, ok := f.AggregatedText(); ok {
		t.Error("AggregatedText() present after ClearAggregatedText")
	}
	if f.Reassembly() != nil {
		t.Error("Reassembly() present after ClearAggregatedText")
	}
	if f.Text() != "?" {
		t.Errorf("Text() = %q after ClearAggregatedText, want %q", f.Text(), "?")
	}
}

// TestContinuationFrame_EmptyAggregatedText tests that an empty aggregated
// text is still present.
func TestContinuationFrame_EmptyAggregatedText(t *testing.T) {
	var f ContinuationFrame
	f.SetAggregatedText("")

	text, ok := f.AggregatedText()
	if !ok || text != "" {
		t.Errorf("AggregatedText() = %q, %v, want \"\", true", text, ok)
	}
}

// TestContinuationFrame_BinaryReassembly tests that a binary result exposes no text.
func TestContinuationFrame_BinaryReassembly(t *testing.T) {
	var f ContinuationFrame
	f.attach(&Reassembly{Type: BinaryMessage, Fragments: 2, Size: 10})

	if _, ok := f.AggregatedText(); ok {
		t.Error("binary reassembly exposes aggregated text")
	}
	if r := f.Reassembly(); r == nil || r.Size != 10 {
		t.Errorf("Reassembly() = %+v", r)
	}
}

// TestContinuationFrame_LenientText tests U+FFFD substitution in Text.
func TestContinuationFrame_LenientText(t *testing.T) {
	f := NewContinuationFrame([]byte{'a', 0xFF, 'b'})

	if got, want := f.Text(), "a�b"; got != want {
		t.Errorf("Text() = %q, want %q", got, want)
	}
	if err := ValidateText(f.Payload()); err == nil {
		t.Error("ValidateText accepted invalid payload")
	}
}

// TestContinuationFrame_String tests the diagnostic representation.
func TestContinuationFrame_String(t *testing.T) {
	tests := []struct {
		f    *ContinuationFrame
		want string
	}{
		{&ContinuationFrame{}, "ContinuationFrame(fin: true, rsv: 0, data: 0 bytes)"},
		{NewContinuation(FrameOptions{More: true, RSV: 5}, []byte("abc")), "ContinuationFrame(fin: false, rsv: 5, data: 3 bytes)"},
		{NewAggregatedContinuation(FrameOptions{}, []byte("!"), "long text"), "ContinuationFrame(fin: true, rsv: 0, data: 1 bytes)"},
	}

	for _, tt := range tests {
		if got := tt.f.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
