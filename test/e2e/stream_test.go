package e2e

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veracity-labs/veracity/pkg/events"
)

func TestWebSocketStreamsJobLifecycle(t *testing.T) {
	gate := make(chan struct{})
	app := NewTestApp(t,
		WithSampler(&StubSampler{Release: gate}),
		ScoreInspector("visual_artifacts", 0.85, Event("visual_artifact", 4.25, 0.5, nil)),
	)

	accepted := app.SubmitVideo(t, "watched.mp4", fakeMP4(2048))
	jobID := accepted["job_id"].(string)

	conn := dialWS(t, app)
	subscribeWS(t, conn, events.JobChannel(jobID))

	// The pipeline was parked in sampling; everything from here on is live
	// fan-out, with the pre-subscribe history replayed first.
	close(gate)

	var sawProgress, sawAnomaly, completed bool
	var lastSeq float64
	deadline := time.Now().Add(15 * time.Second)
	for !completed {
		require.True(t, time.Now().Before(deadline), "no terminal status event before deadline")
		msg := readWSMessage(t, conn, 10*time.Second)

		if seq, ok := msg["seq"].(float64); ok {
			assert.Greater(t, seq, lastSeq, "sequence numbers must increase")
			lastSeq = seq
		}

		switch msg["type"] {
		case "job.progress":
			assert.Equal(t, jobID, msg["job_id"])
			sawProgress = true
		case "job.anomaly":
			ev, ok := msg["event"].(map[string]interface{})
			require.True(t, ok)
			if ev["event"] == "visual_artifact" {
				sawAnomaly = true
			}
		case "job.status":
			assert.Equal(t, jobID, msg["job_id"])
			if msg["status"] == "completed" {
				completed = true
			}
		}
	}

	assert.True(t, sawProgress, "expected at least one progress event")
	assert.True(t, sawAnomaly, "expected the anomaly to stream live")
}

func TestWebSocketReplaysHistoryOnSubscribe(t *testing.T) {
	// Subscribe only after the job finished: the retained window must hand
	// a late subscriber the whole story.
	app := NewTestApp(t,
		ScoreInspector("visual_artifacts", 0.85, Event("visual_artifact", 4.25, 0.5, nil)),
	)

	jobID, final := app.SubmitAndWait(t, "replayed.mp4", fakeMP4(2048))
	require.Equal(t, "completed", final["status"])

	conn := dialWS(t, app)
	subscribeWS(t, conn, events.JobChannel(jobID))

	var sawAnomaly, completed bool
	deadline := time.Now().Add(10 * time.Second)
	for !completed {
		require.True(t, time.Now().Before(deadline), "replay never delivered the terminal status")
		msg := readWSMessage(t, conn, 5*time.Second)
		switch msg["type"] {
		case "job.anomaly":
			sawAnomaly = true
		case "job.status":
			if msg["status"] == "completed" {
				completed = true
			}
		}
	}
	assert.True(t, sawAnomaly, "replay must include anomaly events")
}

// ────────────────────────────────────────────────────────────
// WebSocket Helpers
// ────────────────────────────────────────────────────────────

// dialWS connects to the app's WebSocket endpoint and consumes the greeting.
func dialWS(t *testing.T, app *TestApp) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(app.WSURL, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })

	hello := readWSMessage(t, conn, 5*time.Second)
	require.Equal(t, "connection.established", hello["type"])
	return conn
}

// subscribeWS subscribes to a channel and waits for the confirmation.
func subscribeWS(t *testing.T, conn *websocket.Conn, channel string) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]string{
		"action":  "subscribe",
		"channel": channel,
	}))
	confirm := readWSMessage(t, conn, 5*time.Second)
	require.Equal(t, "subscription.confirmed", confirm["type"])
	require.Equal(t, channel, confirm["channel"])
}

// readWSMessage reads one JSON frame under a deadline.
func readWSMessage(t *testing.T, conn *websocket.Conn, timeout time.Duration) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}
