// Package relay serves WebSocket clients, reassembles their fragmented
// messages and sends them back out re-fragmented, either to the sender
// (echo) or to every client (broadcast).
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coregx/wsfrag/internal/config"
	"github.com/coregx/wsfrag/internal/metrics"
	"github.com/coregx/wsfrag/websocket"
)

// maxLoggedText bounds the aggregated text written to a log record.
const maxLoggedText = 256

// HealthPath serves the liveness probe.
const HealthPath = "/healthz"

// Server is the relay HTTP server.
type Server struct {
	cfg        config.Config
	extensions []websocket.Extension
	metrics    *metrics.Metrics
	logger     *slog.Logger

	hub    *websocket.Hub
	server *http.Server

	mu       sync.Mutex
	sessions map[string]*websocket.Conn
	closed   bool
}

// New validates cfg and builds a Server.
//
// m receives pipeline events; gatherer is exposed on cfg.MetricsPath.
// In broadcast mode the hub starts immediately and stops with Close.
func New(cfg config.Config, m *metrics.Metrics, gatherer prometheus.Gatherer, logger *slog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	exts, err := config.ParseExtensions(cfg.Extensions)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:        cfg,
		extensions: exts,
		metrics:    m,
		logger:     logger,
		sessions:   make(map[string]*websocket.Conn),
	}

	if cfg.Mode == config.ModeBroadcast {
		s.hub = websocket.NewHub(&websocket.HubOptions{FragmentSize: cfg.FragmentSize})
		go s.hub.Run()
	}

	mux := http.NewServeMux()
	mux.HandleFunc(cfg.Path, s.ServeWS)
	mux.HandleFunc(HealthPath, s.serveHealth)
	if gatherer != nil {
		mux.Handle(cfg.MetricsPath, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	s.server = &http.Server{
		Addr:              cfg.Address(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// Handler returns the HTTP handler serving all endpoints.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Listen starts the server and blocks until ctx is cancelled or the
// listener fails. On cancellation it shuts down within cfg.ShutdownTimeout
// and closes every open session with 1001.
func (s *Server) Listen(ctx context.Context) error {
	s.logger.Info("relay server started",
		slog.String("address", s.server.Addr),
		slog.String("path", s.cfg.Path),
		slog.String("mode", s.cfg.Mode),
		slog.Int("fragment_size", s.cfg.FragmentSize))

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, closing relay server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()

		// Hijacked connections are not tracked by http.Server.
		s.Close()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error during shutdown", slog.String("error", err.Error()))
			return err
		}

		s.logger.Info("relay server shutdown complete")
		return nil

	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Close closes every open session with 1001 and stops the hub.
// Safe to call more than once.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	sessions := make([]*websocket.Conn, 0, len(s.sessions))
	for _, conn := range s.sessions {
		sessions = append(sessions, conn)
	}
	s.mu.Unlock()

	for _, conn := range sessions {
		_ = conn.CloseWithCode(websocket.CloseGoingAway, "server shutdown")
	}
	if s.hub != nil {
		_ = s.hub.Close()
	}
}

// SessionCount returns the number of open sessions.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// ServeWS upgrades the request and runs the session until the peer leaves.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	logger := s.logger.With(slog.String("session", id), slog.String("remote", r.RemoteAddr))

	// Upgrade fills in defaults, so options are built per request.
	opts := &websocket.UpgradeOptions{
		Extensions:     s.extensions,
		MaxMessageSize: s.cfg.MaxMessageSize,
		LenientUTF8:    s.cfg.LenientUTF8,
		Logger:         logger,
	}
	if s.metrics != nil {
		opts.Observer = s.metrics
	}

	conn, err := websocket.Upgrade(w, r, opts)
	if err != nil {
		logger.Warn("upgrade failed", slog.String("error", err.Error()))
		if !errors.Is(err, websocket.ErrHijackFailed) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
		return
	}

	if !s.track(id, conn) {
		_ = conn.CloseWithCode(websocket.CloseGoingAway, "server shutdown")
		return
	}
	defer s.untrack(id)

	if s.metrics != nil {
		s.metrics.ConnOpened()
		defer s.metrics.ConnClosed()
	}

	logger.Info("session opened", slog.Any("extensions", conn.Extensions()))

	defer conn.Close()
	if s.hub != nil {
		s.hub.Register(conn)
		defer s.hub.Unregister(conn)
	}

	s.serve(conn, logger)
}

// serve reads frames until the connection ends.
func (s *Server) serve(conn *websocket.Conn, logger *slog.Logger) {
	for {
		f, msg, err := conn.NextFrame()
		if err != nil {
			if websocket.IsCloseError(err) || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				logger.Info("session closed")
			} else {
				logger.Warn("session failed",
					slog.String("error", err.Error()),
					slog.Int("close_code", int(websocket.CloseCodeFor(err))))
			}
			return
		}

		logger.Debug("frame received",
			slog.String("opcode", f.Opcode().String()),
			slog.Bool("fin", f.Final()),
			slog.Int("rsv", int(f.RSV())),
			slog.Int("size", len(f.Payload())))

		if cf, ok := f.(*websocket.ContinuationFrame); ok {
			if text, ok := cf.AggregatedText(); ok {
				logger.Info("text message reassembled",
					slog.Int("fragments", cf.Reassembly().Fragments),
					slog.Int("size", cf.Reassembly().Size),
					slog.String("text", truncate(text, maxLoggedText)))
			}
		}

		if msg == nil {
			continue
		}

		if err := s.relay(conn, msg); err != nil {
			logger.Warn("relay failed", slog.String("error", err.Error()))
			return
		}
	}
}

// relay sends msg on according to the configured mode.
func (s *Server) relay(conn *websocket.Conn, msg *websocket.Message) error {
	if s.hub != nil {
		s.hub.Broadcast(msg)
		return nil
	}
	return conn.WriteFragmented(msg.Type, msg.Payload, s.cfg.FragmentSize)
}

func (s *Server) track(id string, conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.sessions[id] = conn
	return true
}

func (s *Server) untrack(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

type health struct {
	Status   string `json:"status"`
	Mode     string `json:"mode"`
	Sessions int    `json:"sessions"`
	Clients  int    `json:"clients,omitempty"` // hub members, broadcast mode only
}

func (s *Server) serveHealth(w http.ResponseWriter, _ *http.Request) {
	h := health{
		Status:   "healthy",
		Mode:     s.cfg.Mode,
		Sessions: s.SessionCount(),
	}
	if s.hub != nil {
		h.Clients = s.hub.ClientCount()
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h)
}

// truncate cuts s to at most n bytes on a code point boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}
