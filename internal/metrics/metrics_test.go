package metrics

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/coregx/wsfrag/websocket"
)

// TestMetrics_DecodePipeline tests counting through a real Decoder.
func TestMetrics_DecodePipeline(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New("test", reg)

	var wire bytes.Buffer
	enc := websocket.NewEncoder(&wire, &websocket.EncoderOptions{Observer: m})
	frames, err := websocket.Fragment(websocket.TextMessage, []byte("Hello, World!"), 5, websocket.FrameOptions{})
	if err != nil {
		t.Fatalf("Fragment() error: %v", err)
	}
	if err := enc.EncodeAll(frames); err != nil {
		t.Fatalf("EncodeAll() error: %v", err)
	}

	dec := websocket.NewDecoder(&wire, &websocket.DecoderOptions{Observer: m})
	if _, err := dec.ReadMessage(); err != nil {
		t.Fatalf("ReadMessage() error: %v", err)
	}

	tests := []struct {
		labels []string
		want   float64
	}{
		{[]string{"text", "false", DirectionOut}, 1},
		{[]string{"continuation", "false", DirectionOut}, 1},
		{[]string{"continuation", "true", DirectionOut}, 1},
		{[]string{"text", "false", DirectionIn}, 1},
		{[]string{"continuation", "true", DirectionIn}, 1},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(m.Frames.WithLabelValues(tt.labels...)); got != tt.want {
			t.Errorf("frames_total%v = %v, want %v", tt.labels, got, tt.want)
		}
	}

	if got := testutil.ToFloat64(m.Messages.WithLabelValues("Text")); got != 1 {
		t.Errorf("messages_total{Text} = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.FragmentsPerMessage); got != 1 {
		t.Errorf("fragments_per_message series = %d, want 1", got)
	}

	// End of stream is a transport error and is not counted.
	if _, err := dec.ReadMessage(); !errors.Is(err, io.EOF) {
		t.Fatalf("ReadMessage() = %v, want io.EOF", err)
	}
	if got := testutil.CollectAndCount(m.ProtocolErrors); got != 0 {
		t.Errorf("protocol_errors_total series = %d, want 0", got)
	}
}

// TestMetrics_DecodeFailed tests error classification.
func TestMetrics_DecodeFailed(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New("test", reg)

	m.DecodeFailed(websocket.ErrUnexpectedContinuation)
	m.DecodeFailed(fmt.Errorf("wrapped: %w", websocket.ErrInvalidUTF8))
	m.DecodeFailed(websocket.ErrInvalidUTF8)
	m.DecodeFailed(io.ErrUnexpectedEOF)

	if got := testutil.ToFloat64(m.ProtocolErrors.WithLabelValues("invalid_utf8")); got != 2 {
		t.Errorf("invalid_utf8 = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ProtocolErrors.WithLabelValues("unexpected_continuation")); got != 1 {
		t.Errorf("unexpected_continuation = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.ProtocolErrors); got != 2 {
		t.Errorf("protocol_errors_total series = %d, want 2", got)
	}
}

// TestErrorKind tests labels for every decode error.
func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{websocket.ErrExpectedContinuation, "expected_continuation"},
		{websocket.ErrReservedBits, "reserved_bits"},
		{websocket.ErrMessageTooLarge, "too_large"},
		{websocket.ErrFrameTooLarge, "too_large"},
		{websocket.ErrInvalidOpcode, "invalid_opcode"},
		{websocket.ErrControlTooLarge, "bad_control_frame"},
		{websocket.ErrProtocolError, "protocol_error"},
		{io.EOF, ""},
	}

	for _, tt := range tests {
		if got := ErrorKind(tt.err); got != tt.want {
			t.Errorf("ErrorKind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

// TestMetrics_Connections tests the connection gauge.
func TestMetrics_Connections(t *testing.T) {
	m := New("", prometheus.NewRegistry())

	m.ConnOpened()
	m.ConnOpened()
	m.ConnClosed()

	if got := testutil.ToFloat64(m.ActiveConnections); got != 1 {
		t.Errorf("active_connections = %v, want 1", got)
	}
}

// TestNew_DuplicateRegistration tests that a second New on the same registry panics.
func TestNew_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	New("dup", reg)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	New("dup", reg)
}
