package server

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// session owns one WebSocket connection and drives each inbound message
// through the invocation pipeline. Messages on one connection are
// dispatched concurrently; a failed message produces an error response
// and the session keeps reading until the connection ends.
type session struct {
	id     string
	conn   *websocket.Conn
	srv    *Server
	logger zerolog.Logger

	// gorilla/websocket allows one concurrent writer per connection.
	writeMu sync.Mutex
}

func newSession(srv *Server, conn *websocket.Conn, remoteAddr string) *session {
	id, _ := gonanoid.New()
	return &session{
		id:   id,
		conn: conn,
		srv:  srv,
		logger: srv.logger.With().
			Str("sessionId", id).
			Str("ip", remoteAddr).
			Logger(),
	}
}

// run is the session loop. It returns when the connection is closed by
// either side.
func (s *session) run() {
	defer func() {
		s.srv.removeSession(s)
		s.conn.Close()
		if s.srv.metrics != nil {
			s.srv.metrics.SessionsActive.Dec()
		}
		s.logger.Info().Msg("Session closed")
	}()

	s.logger.Info().Msg("Session opened")

	// Frames up to one byte over the cap reach the decoder, which
	// answers with a message_too_large protocol error in-band. Anything
	// larger is refused at the transport: gorilla sends a 1009 close
	// frame and the connection ends.
	s.conn.SetReadLimit(int64(s.srv.maxMessageBytes) + 1)

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Error().Err(err).Msg("WebSocket error")
			}
			return
		}

		s.handleMessage(raw)
	}
}

// handleMessage admits one message and dispatches it asynchronously so
// a suspended handler does not stall the read loop.
func (s *session) handleMessage(raw []byte) {
	if !s.limiterAdmit(raw) {
		return
	}

	s.srv.inFlightReqs.Add(1)
	go func() {
		defer s.srv.limiter.Release()
		defer s.srv.inFlightReqs.Done()

		resp := s.srv.process(context.Background(), raw)
		s.write(resp)
	}()
}

func (s *session) limiterAdmit(raw []byte) bool {
	if s.srv.limiter.TryAcquire() {
		return true
	}
	s.write(s.srv.busyResponse(raw))
	return false
}

// close sends a close frame to the client and tears the connection
// down, which in turn ends the session's read loop.
func (s *session) close() {
	deadline := time.Now().Add(time.Second)
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), deadline)
	s.conn.Close()
}

// write sends one response frame. A write to a connection the client
// already closed is dropped silently.
func (s *session) write(data []byte) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.logger.Debug().Err(err).Msg("Dropping response for closed connection")
	}
}
