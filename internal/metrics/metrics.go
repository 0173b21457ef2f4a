// Package metrics provides Prometheus instrumentation for the frame pipeline.
package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/coregx/wsfrag/websocket"
)

// Direction label values.
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// Metrics holds the pipeline collectors. It implements websocket.Observer
// and is safe to share between connections.
type Metrics struct {
	Frames              *prometheus.CounterVec
	Messages            *prometheus.CounterVec
	ProtocolErrors      *prometheus.CounterVec
	FragmentsPerMessage *prometheus.HistogramVec
	MessageSize         *prometheus.HistogramVec
	ActiveConnections   prometheus.Gauge
}

var _ websocket.Observer = (*Metrics)(nil)

// New registers the collectors with reg under namespace.
// A nil reg uses prometheus.DefaultRegisterer.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "wsfrag"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		Frames: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frames_total",
				Help:      "Total number of frames by opcode, FIN bit and direction",
			},
			[]string{"opcode", "final", "direction"},
		),
		Messages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_total",
				Help:      "Total number of reassembled messages",
			},
			[]string{"type"},
		),
		ProtocolErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "protocol_errors_total",
				Help:      "Total number of decode failures by kind",
			},
			[]string{"error"},
		),
		FragmentsPerMessage: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fragments_per_message",
				Help:      "Number of frames a message was carried in",
				Buckets:   []float64{1, 2, 4, 8, 16, 64, 256, 1024},
			},
			[]string{"type"},
		),
		MessageSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "message_size_bytes",
				Help:      "Reassembled message size in bytes",
				Buckets:   []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"type"},
		),
		ActiveConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_connections",
				Help:      "Number of open WebSocket connections",
			},
		),
	}
}

// FrameDecoded counts an inbound frame.
func (m *Metrics) FrameDecoded(f websocket.Frame) {
	m.frame(f, DirectionIn)
}

// FrameEncoded counts an outbound frame.
func (m *Metrics) FrameEncoded(f websocket.Frame) {
	m.frame(f, DirectionOut)
}

func (m *Metrics) frame(f websocket.Frame, direction string) {
	m.Frames.WithLabelValues(f.Opcode().String(), strconv.FormatBool(f.Final()), direction).Inc()
}

// MessageReassembled records a completed message.
func (m *Metrics) MessageReassembled(msg *websocket.Message) {
	kind := msg.Type.String()
	m.Messages.WithLabelValues(kind).Inc()
	m.FragmentsPerMessage.WithLabelValues(kind).Observe(float64(msg.Fragments))
	m.MessageSize.WithLabelValues(kind).Observe(float64(len(msg.Payload)))
}

// DecodeFailed counts a decode failure. Transport errors are not counted.
func (m *Metrics) DecodeFailed(err error) {
	kind := ErrorKind(err)
	if kind == "" {
		return
	}
	m.ProtocolErrors.WithLabelValues(kind).Inc()
}

// ConnOpened increments the connection gauge.
func (m *Metrics) ConnOpened() {
	m.ActiveConnections.Inc()
}

// ConnClosed decrements the connection gauge.
func (m *Metrics) ConnClosed() {
	m.ActiveConnections.Dec()
}

// ErrorKind returns a low-cardinality label for a decode error, or "" for
// errors that did not come from the peer's framing.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, websocket.ErrUnexpectedContinuation):
		return "unexpected_continuation"
	case errors.Is(err, websocket.ErrExpectedContinuation):
		return "expected_continuation"
	case errors.Is(err, websocket.ErrInvalidUTF8):
		return "invalid_utf8"
	case errors.Is(err, websocket.ErrReservedBits):
		return "reserved_bits"
	case errors.Is(err, websocket.ErrMessageTooLarge), errors.Is(err, websocket.ErrFrameTooLarge):
		return "too_large"
	case errors.Is(err, websocket.ErrInvalidOpcode):
		return "invalid_opcode"
	case errors.Is(err, websocket.ErrControlFragmented), errors.Is(err, websocket.ErrControlTooLarge):
		return "bad_control_frame"
	case errors.Is(err, websocket.ErrProtocolError):
		return "protocol_error"
	default:
		return ""
	}
}
