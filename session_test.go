package main

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wordloop/internal/config"
	"wordloop/internal/types"
)

func startTestServer(t *testing.T, app *App) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(app.setupRouter())
	t.Cleanup(server.Close)
	return server
}

func dial(t *testing.T, server *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) types.Message {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg types.Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func postControl(t *testing.T, server *httptest.Server, path string) types.ControlResponse {
	t.Helper()
	resp, err := http.Post(server.URL+path, "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body types.ControlResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func getCurrentWord(t *testing.T, server *httptest.Server) types.CurrentWordResponse {
	t.Helper()
	resp, err := http.Get(server.URL + "/api/current-word")
	require.NoError(t, err)
	defer resp.Body.Close()
	var body types.CurrentWordResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func waitForClients(t *testing.T, app *App, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return app.Registry.Count() == n }, 2*time.Second, 5*time.Millisecond)
}

// waitForBroadcasts waits until n broadcasts of msgType have settled.
func waitForBroadcasts(t *testing.T, app *App, msgType string, n int) {
	t.Helper()
	counter := app.Metrics.BroadcastsTotal.WithLabelValues(msgType)
	require.Eventually(t, func() bool { return testutil.ToFloat64(counter) == float64(n) }, 2*time.Second, 5*time.Millisecond)
}

func TestWordLoop_EndToEnd(t *testing.T) {
	app, clock := newTestApp(t)
	server := startTestServer(t, app)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dial(t, server, "/ws")
	waitForClients(t, app, 1)
	// The client's keep-alive ticker.
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	start := postControl(t, server, "/api/start-loop")
	require.True(t, start.Success)

	first := readMessage(t, conn)
	assert.Equal(t, types.WordUpdate(start.InitialWord), first)

	for i := 0; i < 3; i++ {
		// Keep-alive ticker plus the loop ticker.
		require.NoError(t, clock.BlockUntilContext(ctx, 2))
		clock.Advance(app.Loop.Interval())

		msg := readMessage(t, conn)
		assert.Equal(t, types.MessageWordUpdate, msg.Type)
		assert.True(t, app.Words.Contains(msg.Word), "unexpected word %q", msg.Word)

		current := getCurrentWord(t, server)
		require.NotNil(t, current.CurrentWord)
		assert.Equal(t, msg.Word, *current.CurrentWord)
		assert.True(t, current.IsLoopRunning)
	}

	stop := postControl(t, server, "/api/stop-loop")
	require.True(t, stop.Success)

	// Exactly one update per interval: the stop notice follows the last tick.
	assert.Equal(t, types.LoopStopped(), readMessage(t, conn))

	current := getCurrentWord(t, server)
	assert.Nil(t, current.CurrentWord)
	assert.False(t, current.IsLoopRunning)

	clock.Advance(app.Loop.Interval())
	_ = conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err := conn.ReadMessage()
	var netErr net.Error
	require.True(t, errors.As(err, &netErr) && netErr.Timeout(), "expected no message after stop, got %v", err)
}

func TestWordLoop_FanoutToEveryClient(t *testing.T) {
	app, _ := newTestApp(t)
	server := startTestServer(t, app)

	conns := []*websocket.Conn{dial(t, server, "/ws"), dial(t, server, "/ws"), dial(t, server, "/")}
	waitForClients(t, app, 3)

	start := postControl(t, server, "/api/start-loop")
	for _, conn := range conns {
		assert.Equal(t, types.WordUpdate(start.InitialWord), readMessage(t, conn))
	}

	postControl(t, server, "/api/stop-loop")
	for _, conn := range conns {
		assert.Equal(t, types.LoopStopped(), readMessage(t, conn))
	}
}

func TestWordLoop_CatchUp(t *testing.T) {
	app, _ := newTestApp(t)
	server := startTestServer(t, app)

	start := postControl(t, server, "/api/start-loop")
	waitForBroadcasts(t, app, types.MessageWordUpdate, 1)
	conn := dial(t, server, "/ws")

	assert.Equal(t, types.WordUpdate(start.InitialWord), readMessage(t, conn))
}

func TestWordLoop_CatchUpDisabled(t *testing.T) {
	app, _ := newTestApp(t, func(c *config.Config) { c.CatchUp = false })
	server := startTestServer(t, app)

	postControl(t, server, "/api/start-loop")
	waitForBroadcasts(t, app, types.MessageWordUpdate, 1)
	conn := dial(t, server, "/ws")
	waitForClients(t, app, 1)

	postControl(t, server, "/api/stop-loop")
	assert.Equal(t, types.LoopStopped(), readMessage(t, conn))
}

func TestWordLoop_NoCatchUpWhileIdle(t *testing.T) {
	app, _ := newTestApp(t)
	server := startTestServer(t, app)

	conn := dial(t, server, "/ws")
	waitForClients(t, app, 1)

	start := postControl(t, server, "/api/start-loop")
	assert.Equal(t, types.WordUpdate(start.InitialWord), readMessage(t, conn))
}

func TestWordLoop_ClientDisconnectUnregisters(t *testing.T) {
	app, _ := newTestApp(t)
	server := startTestServer(t, app)

	stay := dial(t, server, "/ws")
	leave := dial(t, server, "/ws")
	waitForClients(t, app, 2)

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	require.NoError(t, leave.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)))
	waitForClients(t, app, 1)

	start := postControl(t, server, "/api/start-loop")
	assert.Equal(t, types.WordUpdate(start.InitialWord), readMessage(t, stay))
}

func TestApp_CloseDisconnectsClients(t *testing.T) {
	app, _ := newTestApp(t)
	server := startTestServer(t, app)

	conn := dial(t, server, "/ws")
	waitForClients(t, app, 1)
	postControl(t, server, "/api/start-loop")
	readMessage(t, conn)

	app.Close()
	assert.False(t, app.Loop.IsRunning())

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.True(t, errors.As(err, &closeErr), "expected close frame, got %v", err)
	assert.Equal(t, websocket.CloseNormalClosure, closeErr.Code)
	assert.Equal(t, "Server shutting down", closeErr.Text)
	assert.Equal(t, 0, app.Registry.Count())
}

func TestWebSocket_RejectsForeignOrigin(t *testing.T) {
	app, _ := newTestApp(t)
	server := startTestServer(t, app)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	header := http.Header{"Origin": []string{"https://evil.test"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 0, app.Registry.Count())
}
