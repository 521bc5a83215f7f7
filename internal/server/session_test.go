package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fraser/skycast/pkg/protocol"
	"github.com/fraser/skycast/pkg/tool"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialSession(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readResponse(t *testing.T, conn *websocket.Conn) protocol.Response {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var resp protocol.Response
	require.NoError(t, json.Unmarshal(raw, &resp))
	return resp
}

func TestSession(t *testing.T) {
	srv := newTestServer(t, serverOptions{}, getWeatherStub())
	ts := httptest.NewServer(srv.routes())
	defer ts.Close()

	t.Run("should answer an invocation over the socket", func(t *testing.T) {
		conn := dialSession(t, ts)
		require.NoError(t, conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"tool":"get_weather","args":{"location":"Paris"},"id":"ws1"}`)))

		resp := readResponse(t, conn)
		assert.Equal(t, "ws1", resp.ID)
		assert.Equal(t, protocol.OutcomeSuccess, resp.Outcome)
	})

	t.Run("should survive a malformed message", func(t *testing.T) {
		conn := dialSession(t, ts)
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{broken`)))

		resp := readResponse(t, conn)
		assert.Equal(t, protocol.OutcomeProtocolError, resp.Outcome)
		require.NotNil(t, resp.Error)
		assert.Equal(t, protocol.CodeParseError, resp.Error.Code)

		// Same connection keeps working.
		require.NoError(t, conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"tool":"get_weather","args":{"location":"Paris"},"id":"ws2"}`)))
		resp = readResponse(t, conn)
		assert.Equal(t, "ws2", resp.ID)
		assert.Equal(t, protocol.OutcomeSuccess, resp.Outcome)
	})

	t.Run("should report missing tool name", func(t *testing.T) {
		conn := dialSession(t, ts)
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"args":{},"id":"ws3"}`)))

		resp := readResponse(t, conn)
		assert.Equal(t, "ws3", resp.ID)
		assert.Equal(t, protocol.OutcomeProtocolError, resp.Outcome)
		require.NotNil(t, resp.Error)
		assert.Equal(t, protocol.CodeMissingTool, resp.Error.Code)
	})
}

func TestSession_ConcurrentInvocations(t *testing.T) {
	release := make(chan struct{})
	slowFast := []tool.Tool{
		{
			Name:        "slow",
			Description: "Handler that parks until released.",
			Handler: func(ctx context.Context, args tool.Args) (interface{}, error) {
				select {
				case <-release:
				case <-ctx.Done():
				}
				return "slow done", nil
			},
		},
		{
			Name:        "fast",
			Description: "Handler that returns immediately.",
			Handler: func(ctx context.Context, args tool.Args) (interface{}, error) {
				return "fast done", nil
			},
		},
	}
	srv := newTestServer(t, serverOptions{budget: 5 * time.Second}, slowFast...)
	ts := httptest.NewServer(srv.routes())
	defer ts.Close()

	conn := dialSession(t, ts)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"tool":"slow","args":{},"id":"c1"}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"tool":"fast","args":{},"id":"c2"}`)))

	// The fast invocation is not stuck behind the slow one.
	resp := readResponse(t, conn)
	assert.Equal(t, "c2", resp.ID)
	assert.Equal(t, "fast done", resp.Value)

	close(release)
	resp = readResponse(t, conn)
	assert.Equal(t, "c1", resp.ID)
	assert.Equal(t, "slow done", resp.Value)
}

func TestSession_Busy(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	blocking := tool.Tool{
		Name:        "block",
		Description: "Handler that parks until released.",
		Handler: func(ctx context.Context, args tool.Args) (interface{}, error) {
			close(entered)
			select {
			case <-release:
			case <-ctx.Done():
			}
			return nil, nil
		},
	}
	srv := newTestServer(t, serverOptions{maxSessions: 1, budget: 5 * time.Second}, blocking)
	ts := httptest.NewServer(srv.routes())
	defer ts.Close()
	defer close(release)

	conn := dialSession(t, ts)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"tool":"block","args":{},"id":"b1"}`)))
	<-entered

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"tool":"block","args":{},"id":"b2"}`)))
	resp := readResponse(t, conn)
	assert.Equal(t, "b2", resp.ID)
	assert.Equal(t, protocol.OutcomeProtocolError, resp.Outcome)
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.CodeBusy, resp.Error.Code)
}

func TestSession_OversizedMessage(t *testing.T) {
	srv := newTestServer(t, serverOptions{maxMessageBytes: 256}, getWeatherStub())
	ts := httptest.NewServer(srv.routes())
	defer ts.Close()

	t.Run("should answer in-band at one byte over the cap", func(t *testing.T) {
		conn := dialSession(t, ts)
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, bytes.Repeat([]byte("a"), 257)))

		resp := readResponse(t, conn)
		assert.Equal(t, protocol.OutcomeProtocolError, resp.Outcome)
		require.NotNil(t, resp.Error)
		assert.Equal(t, protocol.CodeTooLarge, resp.Error.Code)

		// Connection survives the refusal.
		require.NoError(t, conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"tool":"get_weather","args":{"location":"Paris"},"id":"ov1"}`)))
		resp = readResponse(t, conn)
		assert.Equal(t, protocol.OutcomeSuccess, resp.Outcome)
	})

	t.Run("should close the connection for frames past the limit", func(t *testing.T) {
		conn := dialSession(t, ts)
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, bytes.Repeat([]byte("a"), 1024)))

		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		_, _, err := conn.ReadMessage()
		require.Error(t, err)
		assert.True(t, websocket.IsCloseError(err, websocket.CloseMessageTooBig))
	})
}

func TestSession_ClosedOnStop(t *testing.T) {
	srv := newTestServer(t, serverOptions{}, getWeatherStub())
	ts := httptest.NewServer(srv.routes())
	defer ts.Close()

	conn := dialSession(t, ts)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"tool":"get_weather","args":{"location":"Paris"},"id":"s1"}`)))
	resp := readResponse(t, conn)
	require.Equal(t, protocol.OutcomeSuccess, resp.Outcome)

	require.NoError(t, srv.Stop())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway))
}
