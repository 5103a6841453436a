package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/veracity-labs/veracity/pkg/metrics"
)

// catchupBuffer is the size of the in-memory replay window. Events evicted
// from the window can no longer be caught up; the client gets a
// catchup.overflow and must re-read job state over REST.
const catchupBuffer = 256

// sendBuffer is the per-connection outbound queue. A subscriber whose queue
// fills up has stopped reading and is dropped.
const sendBuffer = 64

// maxMessageBytes caps inbound client frames. Control messages are tiny.
const maxMessageBytes = 512

const (
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
)

// bufferedEvent is one entry in the replay window.
type bufferedEvent struct {
	seq     uint64
	channel string
	payload []byte
}

// ConnectionManager manages WebSocket connections, channel subscriptions and
// the replay window. The process has one ConnectionManager instance.
type ConnectionManager struct {
	// Active connections: connection_id → *Connection
	connections map[string]*Connection
	mu          sync.RWMutex

	// Channel subscriptions: channel → set of connection_ids
	channels  map[string]map[string]bool
	channelMu sync.RWMutex

	// Replay window, in sequence order. seq is the last assigned number.
	seq    uint64
	buffer []bufferedEvent
	bufMu  sync.Mutex

	// Write timeout for WebSocket sends
	writeTimeout time.Duration
}

// Connection represents a single WebSocket client. Outbound frames go
// through send; writePump is the only goroutine that touches the socket's
// write side (gorilla connections do not support concurrent writers).
//
// subscriptions is accessed WITHOUT a lock. This is safe because all reads
// and writes (subscribe, unsubscribe, unregisterConnection) happen on the
// single goroutine that owns this connection (HandleConnection's read loop
// and its deferred cleanup).
type Connection struct {
	ID            string
	conn          *websocket.Conn
	send          chan []byte
	done          chan struct{}
	closeOnce     sync.Once
	subscriptions map[string]bool // channels this connection is subscribed to
}

// close marks the connection dead. The write pump sends a close frame and
// tears the socket down, which in turn ends the read loop.
func (c *Connection) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// enqueue hands a frame to the write pump without blocking. Returns false if
// the connection is already closed or its send buffer is full; a full buffer
// drops the connection so one stalled client cannot hold up broadcasts.
func (c *Connection) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		slog.Warn("WebSocket send buffer full, dropping subscriber",
			"connection_id", c.ID)
		c.close()
		return false
	}
}

// NewConnectionManager creates a new ConnectionManager.
func NewConnectionManager(writeTimeout time.Duration) *ConnectionManager {
	return &ConnectionManager{
		connections:  make(map[string]*Connection),
		channels:     make(map[string]map[string]bool),
		writeTimeout: writeTimeout,
	}
}

// HandleConnection manages the lifecycle of a single WebSocket connection.
// Called by the WebSocket HTTP handler after upgrade. Blocks until the
// connection closes.
func (m *ConnectionManager) HandleConnection(conn *websocket.Conn) {
	c := &Connection{
		ID:            uuid.NewString(),
		conn:          conn,
		send:          make(chan []byte, sendBuffer),
		done:          make(chan struct{}),
		subscriptions: make(map[string]bool),
	}

	m.registerConnection(c)
	defer m.unregisterConnection(c)

	go m.writePump(c)

	m.sendJSON(c, map[string]string{
		"type":          "connection.established",
		"connection_id": c.ID,
	})

	conn.SetReadLimit(maxMessageBytes)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Read loop: process client messages until the connection closes.
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("Invalid WebSocket message",
				"connection_id", c.ID, "error", err)
			continue
		}

		m.handleClientMessage(c, &msg)
	}
}

// Publish stamps the payload with the next sequence number, records it in
// the replay window and fans it out to the channel's subscribers. The
// payload must be a JSON object. Never blocks on slow subscribers.
func (m *ConnectionManager) Publish(channel string, payload []byte) {
	data, err := m.stampAndBuffer(channel, payload)
	if err != nil {
		slog.Warn("Dropping unpublishable event", "channel", channel, "error", err)
		return
	}
	m.fanOut(channel, data)
}

// Shutdown closes every active connection. Safe to call more than once.
func (m *ConnectionManager) Shutdown() {
	m.mu.RLock()
	conns := make([]*Connection, 0, len(m.connections))
	for _, c := range m.connections {
		conns = append(conns, c)
	}
	m.mu.RUnlock()

	for _, c := range conns {
		c.close()
	}
}

// ActiveConnections returns the count of active WebSocket connections.
func (m *ConnectionManager) ActiveConnections() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

// subscriberCount returns the number of subscribers for a channel.
// Unexported so tests can poll instead of sleeping.
func (m *ConnectionManager) subscriberCount(channel string) int {
	m.channelMu.RLock()
	defer m.channelMu.RUnlock()
	return len(m.channels[channel])
}

// handleClientMessage dispatches a client message to the appropriate handler.
func (m *ConnectionManager) handleClientMessage(c *Connection, msg *ClientMessage) {
	switch msg.Action {
	case "subscribe":
		if msg.Channel == "" {
			m.sendJSON(c, map[string]string{"type": "error", "message": "channel is required for subscribe"})
			return
		}
		m.subscribe(c, msg.Channel)
		m.sendJSON(c, map[string]string{
			"type":    "subscription.confirmed",
			"channel": msg.Channel,
		})
		// Replay buffered events so a late subscriber sees the job's
		// history. Best effort: no overflow signal, the client asked
		// for whatever is retained.
		m.replayBuffered(c, msg.Channel, 0, false)

	case "unsubscribe":
		if msg.Channel == "" {
			m.sendJSON(c, map[string]string{"type": "error", "message": "channel is required for unsubscribe"})
			return
		}
		m.unsubscribe(c, msg.Channel)

	case "catchup":
		if msg.Channel == "" {
			m.sendJSON(c, map[string]string{"type": "error", "message": "channel is required for catchup"})
			return
		}
		if msg.AfterSeq != nil {
			m.replayBuffered(c, msg.Channel, *msg.AfterSeq, true)
		}

	case "ping":
		m.sendJSON(c, map[string]string{"type": "pong"})
	}
}

// subscribe registers a connection for a channel. Takes effect before the
// confirmation is sent, so no event published after the confirm is missed.
func (m *ConnectionManager) subscribe(c *Connection, channel string) {
	m.channelMu.Lock()
	if _, exists := m.channels[channel]; !exists {
		m.channels[channel] = make(map[string]bool)
	}
	m.channels[channel][c.ID] = true
	m.channelMu.Unlock()

	c.subscriptions[channel] = true
}

// unsubscribe removes a connection from a channel.
func (m *ConnectionManager) unsubscribe(c *Connection, channel string) {
	m.channelMu.Lock()
	if subs, exists := m.channels[channel]; exists {
		delete(subs, c.ID)
		if len(subs) == 0 {
			delete(m.channels, channel)
		}
	}
	m.channelMu.Unlock()

	delete(c.subscriptions, channel)
}

// stampAndBuffer assigns the next sequence number, injects it into the
// payload as "seq" and appends the result to the replay window. Marshalling
// happens under the buffer lock so window order matches sequence order.
func (m *ConnectionManager) stampAndBuffer(channel string, payload []byte) ([]byte, error) {
	var obj map[string]any
	if err := json.Unmarshal(payload, &obj); err != nil {
		return nil, fmt.Errorf("event payload is not a JSON object: %w", err)
	}

	m.bufMu.Lock()
	defer m.bufMu.Unlock()

	m.seq++
	obj["seq"] = m.seq
	data, err := json.Marshal(obj)
	if err != nil {
		m.seq--
		return nil, fmt.Errorf("failed to marshal stamped event: %w", err)
	}

	m.buffer = append(m.buffer, bufferedEvent{seq: m.seq, channel: channel, payload: data})
	if len(m.buffer) > catchupBuffer {
		m.buffer = m.buffer[1:]
	}
	return data, nil
}

// bufferedSince returns the retained events for a channel with a sequence
// number greater than afterSeq, plus whether the window may have already
// evicted part of the requested range. Eviction is tracked globally, so the
// gap signal is conservative: evicted events from other channels also raise
// it when they overlap the range.
func (m *ConnectionManager) bufferedSince(channel string, afterSeq uint64) ([][]byte, bool) {
	m.bufMu.Lock()
	defer m.bufMu.Unlock()

	var out [][]byte
	for _, e := range m.buffer {
		if e.channel == channel && e.seq > afterSeq {
			out = append(out, e.payload)
		}
	}

	var gap bool
	if len(m.buffer) > 0 {
		gap = m.buffer[0].seq > afterSeq+1
	} else {
		gap = m.seq > afterSeq
	}
	return out, gap
}

// replayBuffered sends retained events past afterSeq to the client, in
// sequence order. When signalGap is set and the window no longer covers the
// requested range, a catchup.overflow message follows the replay telling the
// client to do a full REST reload instead.
func (m *ConnectionManager) replayBuffered(c *Connection, channel string, afterSeq uint64, signalGap bool) {
	events, gap := m.bufferedSince(channel, afterSeq)
	for _, evt := range events {
		if !c.enqueue(evt) {
			return
		}
	}

	if signalGap && gap {
		m.sendJSON(c, map[string]any{
			"type":     "catchup.overflow",
			"channel":  channel,
			"has_more": true,
		})
	}
}

// fanOut sends a stamped event to all connections subscribed to the channel.
func (m *ConnectionManager) fanOut(channel string, event []byte) {
	m.channelMu.RLock()
	connIDs, exists := m.channels[channel]
	if !exists {
		m.channelMu.RUnlock()
		return
	}
	// Copy IDs to avoid holding the lock during sends
	ids := make([]string, 0, len(connIDs))
	for id := range connIDs {
		ids = append(ids, id)
	}
	m.channelMu.RUnlock()

	m.mu.RLock()
	conns := make([]*Connection, 0, len(ids))
	for _, id := range ids {
		if conn, ok := m.connections[id]; ok {
			conns = append(conns, conn)
		}
	}
	m.mu.RUnlock()

	for _, conn := range conns {
		conn.enqueue(event)
	}
}

// registerConnection adds a connection to the tracking map.
func (m *ConnectionManager) registerConnection(c *Connection) {
	m.mu.Lock()
	m.connections[c.ID] = c
	m.mu.Unlock()

	metrics.WebsocketConnections.Inc()
}

// unregisterConnection removes a connection and all its subscriptions.
func (m *ConnectionManager) unregisterConnection(c *Connection) {
	// Remove from all channel subscriptions
	for ch := range c.subscriptions {
		m.unsubscribe(c, ch)
	}

	m.mu.Lock()
	delete(m.connections, c.ID)
	m.mu.Unlock()

	c.close()
	metrics.WebsocketConnections.Dec()
}

// sendJSON marshals and queues a JSON message for a single connection.
func (m *ConnectionManager) sendJSON(c *Connection, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("Failed to marshal WebSocket message",
			"connection_id", c.ID, "error", err)
		return
	}
	c.enqueue(data)
}

// writePump drains the connection's send queue onto the socket and keeps the
// client alive with periodic pings. Exits when the connection is closed or a
// write fails, closing the socket so the read loop unwinds too.
func (m *ConnectionManager) writePump(c *Connection) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(m.writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(m.writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(time.Second))
			return
		}
	}
}

// Upgrader builds the HTTP→WebSocket upgrader used by the API layer.
// Same-origin requests and requests without an Origin header are always
// accepted; anything else must match the allowed origins list ("*" opens
// the endpoint entirely).
func Upgrader(allowedOrigins []string) websocket.Upgrader {
	allowed := make(map[string]bool, len(allowedOrigins))
	allowAll := false
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}

	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || allowAll {
				return true
			}
			if allowed[origin] {
				return true
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false
			}
			return u.Host == r.Host
		},
	}
}
