package e2e

import (
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnsupportedContainerRejected(t *testing.T) {
	app := NewTestApp(t, ScoreInspector("visual_clip", 0.1))

	body := app.SubmitExpectingRejection(t, "report.pdf", []byte("%PDF-1.4 not a video"),
		http.StatusUnsupportedMediaType)
	assert.Contains(t, body["error"], ".pdf")

	// Rejection happens before identity: no record, no workspace, and the
	// staged upload is gone.
	assert.Equal(t, 0, app.Store.Len())
	entries, err := os.ReadDir(app.Config.Workspace.BasePath)
	require.NoError(t, err)
	assert.Empty(t, entries, "workspace base must stay untouched after rejection")
}

func TestDisguisedPDFRejected(t *testing.T) {
	// Extension says video, content says PDF. The sniffer wins.
	app := NewTestApp(t, ScoreInspector("visual_clip", 0.1))

	body := app.SubmitExpectingRejection(t, "movie.mp4", []byte("%PDF-1.4 still not a video"),
		http.StatusUnsupportedMediaType)
	assert.Contains(t, body["error"], "application/pdf")
	assert.Equal(t, 0, app.Store.Len())
}

func TestOversizeUploadRejected(t *testing.T) {
	app := NewTestApp(t,
		WithMaxUploadBytes(1024),
		ScoreInspector("visual_clip", 0.1),
	)

	body := app.SubmitExpectingRejection(t, "large.mp4", fakeMP4(4096),
		http.StatusRequestEntityTooLarge)
	assert.Contains(t, body["error"], "exceeds")
	assert.Equal(t, 0, app.Store.Len())
}

func TestQueueOverflowRejectsWithRetryAfter(t *testing.T) {
	// One worker wedged on a blocking job, a one-slot queue filled by the
	// second submission: the third must bounce with backpressure advice.
	started := make(chan string, 1)
	app := NewTestApp(t,
		WithWorkerCount(1),
		WithQueueCapacity(1),
		BlockingInspector("visual_clip", 30*time.Second, started),
	)

	first := app.SubmitVideo(t, "first.mp4", fakeMP4(2048))
	select {
	case <-started:
	case <-time.After(10 * time.Second):
		t.Fatal("first job never started inspecting")
	}

	app.SubmitVideo(t, "second.mp4", fakeMP4(2048))

	body := app.SubmitExpectingRejection(t, "third.mp4", fakeMP4(2048),
		http.StatusServiceUnavailable)
	assert.Contains(t, body["error"], "capacity")
	assert.EqualValues(t, 5, body["retry_after_sec"])

	// Unblock the wedged worker so pool shutdown stays quick.
	firstID, _ := first["job_id"].(string)
	require.NotEmpty(t, firstID)
	app.CancelJob(t, firstID, http.StatusAccepted)
	app.WaitForJobStatus(t, firstID, "failed")
}

func TestHealthReflectsQueuePressure(t *testing.T) {
	started := make(chan string, 1)
	app := NewTestApp(t,
		WithWorkerCount(1),
		WithQueueCapacity(1),
		BlockingInspector("visual_clip", 30*time.Second, started),
	)

	code, body := app.GetHealth(t)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])

	first := app.SubmitVideo(t, "first.mp4", fakeMP4(2048))
	select {
	case <-started:
	case <-time.After(10 * time.Second):
		t.Fatal("first job never started inspecting")
	}
	app.SubmitVideo(t, "second.mp4", fakeMP4(2048))

	code, body = app.GetHealth(t)
	require.Equal(t, http.StatusOK, code, "a saturated queue degrades, it does not kill")
	assert.Equal(t, "degraded", body["status"])
	checks, ok := body["checks"].(map[string]interface{})
	require.True(t, ok)
	queueCheck, ok := checks["queue"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "degraded", queueCheck["status"])

	firstID, _ := first["job_id"].(string)
	require.NotEmpty(t, firstID)
	app.CancelJob(t, firstID, http.StatusAccepted)
	app.WaitForJobStatus(t, firstID, "failed")
}
