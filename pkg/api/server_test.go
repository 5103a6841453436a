package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veracity-labs/veracity/pkg/events"
)

func TestWebSocketRoute(t *testing.T) {
	manager := events.NewConnectionManager(5 * time.Second)
	srv := NewServer(testConfig(t), &stubService{}, manager)

	ts := httptest.NewServer(srv.Handler())
	// Shutdown before Close: the test server blocks until the connection
	// handlers return.
	t.Cleanup(func() {
		manager.Shutdown()
		ts.Close()
	})

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg map[string]any
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "connection.established", msg["type"])
}

func TestWebSocketRouteWithoutManager(t *testing.T) {
	srv := NewServer(testConfig(t), &stubService{}, nil)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/ws", nil, "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "WebSocket not available")
}

func TestUnknownRouteReturns404(t *testing.T) {
	srv := NewServer(testConfig(t), &stubService{}, nil)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/nope", nil, "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpointServes(t *testing.T) {
	srv := NewServer(testConfig(t), &stubService{}, nil)

	rec := doRequest(t, srv, http.MethodGet, "/metrics", nil, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
