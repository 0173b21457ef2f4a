package websocket

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"unicode/utf8"
)

// Conn represents a WebSocket connection (RFC 6455).
//
// Conn provides frame-level and message-level reading and writing,
// automatically handling:
//   - Message fragmentation (reassembly through a per-connection Decoder)
//   - Aggregated text on the final continuation frame of text messages
//   - Control frames (Ping, Pong, Close)
//   - UTF-8 validation for text messages
//   - Thread-safe writes, with fragmented messages written atomically
//
// Example Usage:
//
//	conn, err := websocket.Upgrade(w, r, nil)
//	if err != nil {
//	    return err
//	}
//	defer conn.Close()
//
//	// Read message
//	msgType, data, err := conn.Read()
//
//	// Write text message in 1 KB fragments
//	conn.WriteFragmented(websocket.TextMessage, data, 1024)
type Conn struct {
	conn net.Conn // Underlying TCP connection

	dec *Decoder // Single reader: frames and reassembly state
	enc *Encoder // Guarded by writeMu

	isServer   bool     // Server-side connection (affects masking rules)
	extensions []string // Extensions accepted during the handshake
	logger     *slog.Logger

	// Write synchronization (RFC 6455 Section 5.4)
	// "An endpoint MUST NOT send a data frame while a fragmented message is being transmitted"
	writeMu sync.Mutex

	// Close synchronization
	closeOnce sync.Once
	closed    bool
	closeMu   sync.RWMutex
}

// connConfig carries per-connection settings from the handshake.
type connConfig struct {
	decoder    DecoderOptions
	observer   Observer
	extensions []string
	logger     *slog.Logger
}

// newConn creates a new WebSocket connection (internal constructor).
//
// Called by Upgrade() after successful handshake.
func newConn(netConn net.Conn, reader *bufio.Reader, writer *bufio.Writer, isServer bool, cfg connConfig) *Conn {
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	decOpts := cfg.decoder
	decOpts.Observer = cfg.observer

	return &Conn{
		conn:       netConn,
		dec:        NewDecoder(reader, &decOpts),
		enc:        NewEncoder(writer, &EncoderOptions{Mask: !isServer, Observer: cfg.observer}),
		isServer:   isServer,
		extensions: cfg.extensions,
		logger:     cfg.logger,
	}
}

// NextFrame reads the next data frame.
//
// Frames are returned in wire order. msg is non-nil when the frame completed a
// message. If the frame is the final *ContinuationFrame of a fragmented text
// message, its AggregatedText holds the whole message.
//
// Control frames are handled here and never returned:
//   - Ping: answered with a Pong carrying the same application data
//   - Pong: ignored
//   - Close: answered with a Close frame; ErrClosed is returned
//
// Protocol errors close the connection with the matching status code.
// Not safe for concurrent use: one reader per connection.
func (c *Conn) NextFrame() (Frame, *Message, error) {
	if c.isClosed() {
		return nil, nil, ErrClosed
	}

	for {
		f, msg, err := c.dec.Next()
		if err != nil {
			if !isIOError(err) {
				c.logger.Warn("websocket protocol error",
					slog.String("remote", c.remoteAddr()),
					slog.String("error", err.Error()))
				_ = c.CloseWithCode(CloseCodeFor(err), "")
			}
			return nil, nil, err
		}

		// Control frames MAY be injected in the middle of a fragmented message.
		switch f.Opcode() {
		case OpPing:
			if err := c.Pong(f.Payload()); err != nil {
				return nil, nil, err
			}
			continue

		case OpPong:
			continue

		case OpClose:
			c.handleCloseFrame(f.Payload())
			return nil, nil, ErrClosed
		}

		return f, msg, nil
	}
}

// Read reads the next complete message from the connection.
//
// Returns:
//   - MessageType: TextMessage or BinaryMessage
//   - []byte: Complete message payload, fragments concatenated in order
//   - error: ErrClosed if connection closed, protocol errors, network errors
//
// RFC 6455 Section 5.4: "A fragmented message consists of a single frame with
// the FIN bit clear and an opcode other than 0, followed by zero or more frames
// with the FIN bit clear and the opcode set to 0, and terminated by a single
// frame with the FIN bit set and an opcode of 0."
func (c *Conn) Read() (MessageType, []byte, error) {
	for {
		_, msg, err := c.NextFrame()
		if err != nil {
			return 0, nil, err
		}
		if msg != nil {
			return msg.Type, msg.Payload, nil
		}
	}
}

// ReadText reads the next text message.
//
// Returns ErrInvalidMessageType if message is not text.
func (c *Conn) ReadText() (string, error) {
	msgType, data, err := c.Read()
	if err != nil {
		return "", err
	}

	if msgType != TextMessage {
		return "", ErrInvalidMessageType
	}

	return string(data), nil
}

// ReadJSON reads the next text message and unmarshals it into v.
//
// Returns ErrInvalidMessageType if message is not text.
func (c *Conn) ReadJSON(v any) error {
	msgType, data, err := c.Read()
	if err != nil {
		return err
	}

	if msgType != TextMessage {
		return ErrInvalidMessageType
	}

	return json.Unmarshal(data, v)
}

// Write writes a message as a single frame.
//
// Masking follows RFC 6455 Section 5.1: server frames are not masked, client
// frames are masked with a random key.
//
// Thread-Safety: Safe for concurrent writes (serialized by mutex).
func (c *Conn) Write(messageType MessageType, data []byte) error {
	return c.WriteFragmented(messageType, data, 0)
}

// WriteFragmented writes a message split into frames of at most size payload
// bytes (see Fragment). size <= 0 writes a single frame.
//
// The write lock is held for the whole sequence so that no other data frame
// is interleaved with the fragments.
func (c *Conn) WriteFragmented(messageType MessageType, data []byte, size int) error {
	if messageType == TextMessage && !utf8.Valid(data) {
		return ErrInvalidUTF8
	}

	frames, err := Fragment(messageType, data, size, FrameOptions{})
	if err != nil {
		return err
	}

	return c.writeFrames(frames)
}

// WriteFrame writes a single frame as given.
//
// The caller is responsible for RFC 6455 Section 5.4 ordering across calls:
// after a frame with FIN=0, only continuation and control frames may follow
// until a continuation frame with FIN=1.
func (c *Conn) WriteFrame(f Frame) error {
	return c.writeFrames([]Frame{f})
}

func (c *Conn) writeFrames(frames []Frame) error {
	if c.isClosed() {
		return ErrClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	return c.enc.EncodeAll(frames)
}

// WriteText writes a text message.
//
// Returns ErrInvalidUTF8 if text contains invalid UTF-8.
func (c *Conn) WriteText(text string) error {
	return c.Write(TextMessage, []byte(text))
}

// WriteJSON marshals v and sends it as a text message.
func (c *Conn) WriteJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	return c.Write(TextMessage, data)
}

// Ping sends a ping frame (for keep-alive).
//
// Application data is optional (max 125 bytes per RFC 6455 Section 5.5).
func (c *Conn) Ping(data []byte) error {
	if len(data) > maxControlPayload {
		return ErrControlTooLarge
	}
	return c.WriteFrame(NewMessageFrame(OpPing, FrameOptions{}, data))
}

// Pong sends a pong frame (response to ping or unsolicited).
//
// NextFrame answers Ping frames automatically, so manual Pong is rarely needed.
func (c *Conn) Pong(data []byte) error {
	if len(data) > maxControlPayload {
		return ErrControlTooLarge
	}
	return c.WriteFrame(NewMessageFrame(OpPong, FrameOptions{}, data))
}

// Close sends close frame and closes connection.
//
// Uses CloseNormalClosure (1000) status code.
// Idempotent - safe to call multiple times.
func (c *Conn) Close() error {
	return c.CloseWithCode(CloseNormalClosure, "")
}

// CloseWithCode sends close frame with specific status code and reason.
//
// Reason is optional UTF-8 text (max 123 bytes to fit in 125 byte frame).
// A fragmented message in flight is abandoned: its accumulated payload is
// dropped and never delivered.
//
// Idempotent - safe to call multiple times.
func (c *Conn) CloseWithCode(code CloseCode, reason string) error {
	var err error

	c.closeOnce.Do(func() {
		c.closeMu.Lock()
		c.closed = true
		c.closeMu.Unlock()

		if reason != "" && !utf8.ValidString(reason) {
			err = ErrInvalidUTF8
			if c.conn != nil {
				_ = c.conn.Close()
			}
			return
		}

		// 2 bytes status code + optional reason
		payload := make([]byte, 2+len(reason))
		payload[0] = byte(code >> 8)
		payload[1] = byte(code & 0xFF)
		copy(payload[2:], reason)
		if len(payload) > maxControlPayload {
			payload = payload[:maxControlPayload]
		}

		c.writeMu.Lock()
		writeErr := c.enc.Encode(NewMessageFrame(OpClose, FrameOptions{}, payload))
		c.writeMu.Unlock()

		// Close TCP connection even if the close frame could not be sent.
		var closeErr error
		if c.conn != nil {
			closeErr = c.conn.Close()
		}
		err = errors.Join(writeErr, closeErr)
	})

	return err
}

// handleCloseFrame processes received close frame.
//
// RFC 6455 Section 5.5.1: echo the status code back, then close.
func (c *Conn) handleCloseFrame(payload []byte) {
	code := CloseNoStatusReceived
	if len(payload) >= 2 {
		code = CloseCode(uint16(payload[0])<<8 | uint16(payload[1]))
	}

	if code == CloseNoStatusReceived {
		// 1005 must not be put on the wire.
		code = CloseNormalClosure
	}

	_ = c.CloseWithCode(code, "")
}

// Extensions returns the extension names accepted during the handshake.
func (c *Conn) Extensions() []string {
	return c.extensions
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr {
	if c.conn == nil {
		return nil
	}
	return c.conn.RemoteAddr()
}

func (c *Conn) remoteAddr() string {
	if addr := c.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

func (c *Conn) isClosed() bool {
	c.closeMu.RLock()
	defer c.closeMu.RUnlock()
	return c.closed
}

// isIOError reports whether err came from the transport rather than the peer's framing.
func isIOError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}
