package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/fraser/skycast/internal/metrics"
	"github.com/fraser/skycast/pkg/dispatch"
	"github.com/fraser/skycast/pkg/protocol"
	"github.com/fraser/skycast/pkg/tool"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Server accepts tool invocations over WebSocket sessions and
// single-shot HTTP requests, and answers health probes independently of
// the dispatch path.
type Server struct {
	host            string
	port            int
	maxMessageBytes int

	server     *http.Server
	upgrader   websocket.Upgrader
	registry   *tool.Registry
	dispatcher *dispatch.Dispatcher
	decoder    *protocol.Decoder
	limiter    *AdmissionLimiter
	metrics    *metrics.Metrics
	logger     zerolog.Logger

	sessionsMu sync.Mutex
	sessions   map[*session]struct{}

	isShuttingDown bool
	shutdownMu     sync.RWMutex
	inFlightReqs   sync.WaitGroup
}

// Config holds server configuration
type Config struct {
	Host            string
	Port            int
	MaxSessions     int
	MaxMessageBytes int
	Registry        *tool.Registry
	Dispatcher      *dispatch.Dispatcher
	Metrics         *metrics.Metrics
	Logger          zerolog.Logger
}

// New creates a new invocation server
func New(cfg Config) (*Server, error) {
	if cfg.Port <= 0 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("tool registry is required")
	}
	if cfg.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 64
	}
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = 64 * 1024
	}

	return &Server{
		host:            cfg.Host,
		port:            cfg.Port,
		maxMessageBytes: cfg.MaxMessageBytes,
		registry:        cfg.Registry,
		dispatcher:      cfg.Dispatcher,
		decoder:         protocol.NewDecoder(cfg.MaxMessageBytes),
		limiter:         NewAdmissionLimiter(cfg.MaxSessions),
		sessions:        make(map[*session]struct{}),
		metrics:         cfg.Metrics,
		logger:          cfg.Logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}, nil
}

// Start starts the server. It returns once the listener goroutine is
// launched; fatal listen errors are logged.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.host, s.port),
		Handler: s.routes(),
	}

	s.logger.Info().
		Str("host", s.host).
		Int("port", s.port).
		Int("tools", s.registry.Len()).
		Msg("Starting invocation server")

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Invocation server error")
		}
	}()

	return nil
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/invoke", s.handleInvoke)
	mux.HandleFunc("/tools", s.handleTools)
	mux.HandleFunc("/healthz", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}
	return mux
}

// Stop gracefully stops the server, waiting for in-flight invocations
// with a timeout.
func (s *Server) Stop() error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down invocation server")

	done := make(chan struct{})
	go func() {
		s.inFlightReqs.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("All in-flight invocations completed")
	case <-time.After(30 * time.Second):
		s.logger.Warn().Msg("Shutdown timeout reached, forcing close")
	}

	// Shutdown does not cover hijacked WebSocket connections, so open
	// sessions are closed explicitly.
	for _, sess := range s.openSessions() {
		sess.close()
	}

	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
	}

	s.logger.Info().Msg("Invocation server stopped")
	return nil
}

func (s *Server) addSession(sess *session) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	s.sessions[sess] = struct{}{}
}

func (s *Server) removeSession(sess *session) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	delete(s.sessions, sess)
}

func (s *Server) openSessions() []*session {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()

	open := make([]*session, 0, len(s.sessions))
	for sess := range s.sessions {
		open = append(open, sess)
	}
	return open
}

func (s *Server) shuttingDown() bool {
	s.shutdownMu.RLock()
	defer s.shutdownMu.RUnlock()
	return s.isShuttingDown
}

// process drives one raw message through the decode, validate,
// dispatch, and encode stages. Every failure along the way is converted
// into an encoded error response; process never panics and always
// returns an encodable reply.
func (s *Server) process(ctx context.Context, raw []byte) []byte {
	inv, derr := s.decoder.Decode(raw)
	if derr != nil {
		s.logger.Warn().
			Str("code", derr.Code).
			Str("requestId", derr.ID).
			Msg("Rejected undecodable message")
		if s.metrics != nil {
			s.metrics.DecodeErrorsTotal.Inc()
		}
		return protocol.Encode(protocol.ProtocolError(derr.Code, derr.Message), derr.ID)
	}

	t, ok := s.registry.Lookup(inv.Tool)
	if !ok {
		s.logger.Warn().
			Str("tool", inv.Tool).
			Str("requestId", inv.ID).
			Msg("Unknown tool requested")
		return protocol.Encode(protocol.ToolNotFound(inv.Tool), inv.ID)
	}

	args, verr := tool.Validate(t, inv.Args)
	if verr != nil {
		s.logger.Debug().
			Str("tool", inv.Tool).
			Str("requestId", inv.ID).
			Strs("violations", verr.Violations).
			Msg("Invocation failed validation")
		return protocol.Encode(protocol.Invalid(verr.Violations), inv.ID)
	}

	start := time.Now()
	outcome := s.dispatcher.Dispatch(ctx, t, args)
	if s.metrics != nil {
		s.metrics.InvocationsTotal.WithLabelValues(t.Name, outcome.Kind).Inc()
		s.metrics.InvocationDuration.WithLabelValues(t.Name).Observe(time.Since(start).Seconds())
	}

	return protocol.Encode(outcome, inv.ID)
}

// busyResponse builds the refusal sent when admission control rejects a
// message. The correlation id is recovered best-effort so the caller
// can still match the refusal to its request.
func (s *Server) busyResponse(raw []byte) []byte {
	if s.metrics != nil {
		s.metrics.RejectedBusyTotal.Inc()
	}
	return protocol.Encode(
		protocol.ProtocolError(protocol.CodeBusy, "too many concurrent invocations"),
		protocol.RecoverID(raw),
	)
}

// handleInvoke handles single-shot HTTP invocations: one request, one
// response, then Closed.
func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.shuttingDown() {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}

	// Read one byte past the cap so the decoder can tell "at the cap"
	// from "over it".
	raw, err := io.ReadAll(io.LimitReader(r.Body, int64(s.maxMessageBytes)+1))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	if !s.limiter.TryAcquire() {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write(s.busyResponse(raw))
		return
	}
	defer s.limiter.Release()

	s.inFlightReqs.Add(1)
	defer s.inFlightReqs.Done()

	resp := s.process(r.Context(), raw)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(resp); err != nil {
		// Client went away; the pending write is dropped silently.
		s.logger.Debug().Err(err).Msg("Failed to write invoke response")
	}
}

// handleWebSocket upgrades a connection and hands it to a session loop.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.shuttingDown() {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	sess := newSession(s, conn, r.RemoteAddr)
	s.addSession(sess)
	if s.metrics != nil {
		s.metrics.SessionsTotal.Inc()
		s.metrics.SessionsActive.Inc()
	}

	go sess.run()
}

// handleHealth answers liveness probes. It is stateless, never touches
// a tool handler, and computes its snapshot fresh on every probe so a
// slow or failing downstream source cannot make the process appear
// unhealthy.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := map[string]interface{}{
		"alive": true,
		"ready": s.registry.Frozen() && s.registry.Len() > 0,
		"tools": s.registry.Len(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(status)
}

// handleTools lists the registered tools and their argument schemas.
func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	type fieldInfo struct {
		Name        string `json:"name"`
		Kind        string `json:"kind"`
		Required    bool   `json:"required"`
		Description string `json:"description,omitempty"`
	}
	type toolInfo struct {
		Name        string      `json:"name"`
		Description string      `json:"description"`
		Args        []fieldInfo `json:"args"`
	}

	tools := make([]toolInfo, 0, s.registry.Len())
	for _, name := range s.registry.Names() {
		t, ok := s.registry.Lookup(name)
		if !ok {
			continue
		}
		info := toolInfo{
			Name:        t.Name,
			Description: t.Description,
			Args:        make([]fieldInfo, 0, len(t.Schema.Fields)),
		}
		for _, field := range t.Schema.Fields {
			info.Args = append(info.Args, fieldInfo{
				Name:        field.Name,
				Kind:        string(field.Kind),
				Required:    field.Required,
				Description: field.Description,
			})
		}
		tools = append(tools, info)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"tools": tools})
}
