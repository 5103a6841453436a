package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// ────────────────────────────────────────────────────────────
// HTTP Client Helpers
// ────────────────────────────────────────────────────────────

// SubmitVideo uploads content as the "video" multipart field and returns the
// parsed 202 response. The job ID is under "job_id".
func (app *TestApp) SubmitVideo(t *testing.T, filename string, content []byte) map[string]interface{} {
	t.Helper()
	return app.postMultipart(t, filename, content, http.StatusAccepted)
}

// SubmitExpectingRejection uploads content and asserts the given rejection
// status, returning the parsed error body.
func (app *TestApp) SubmitExpectingRejection(t *testing.T, filename string, content []byte, expectedStatus int) map[string]interface{} {
	t.Helper()
	return app.postMultipart(t, filename, content, expectedStatus)
}

// GetStatus calls GET /api/v1/analyses/:id/status.
func (app *TestApp) GetStatus(t *testing.T, jobID string) map[string]interface{} {
	t.Helper()
	return app.getJSON(t, "/api/v1/analyses/"+jobID+"/status", http.StatusOK)
}

// GetResult calls GET /api/v1/analyses/:id/result, asserting the expected
// status so gating tests can assert 409/410 bodies.
func (app *TestApp) GetResult(t *testing.T, jobID string, expectedStatus int) map[string]interface{} {
	t.Helper()
	return app.getJSON(t, "/api/v1/analyses/"+jobID+"/result", expectedStatus)
}

// GetEvents calls GET /api/v1/analyses/:id/events.
func (app *TestApp) GetEvents(t *testing.T, jobID string, expectedStatus int) map[string]interface{} {
	t.Helper()
	return app.getJSON(t, "/api/v1/analyses/"+jobID+"/events", expectedStatus)
}

// CancelJob calls DELETE /api/v1/analyses/:id.
func (app *TestApp) CancelJob(t *testing.T, jobID string, expectedStatus int) map[string]interface{} {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodDelete, app.BaseURL+"/api/v1/analyses/"+jobID, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, expectedStatus, resp.StatusCode, "DELETE analyses/%s: unexpected status", jobID)
	var result map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return result
}

// GetHealth calls GET /health without asserting the status code, returning
// both the code and the parsed body.
func (app *TestApp) GetHealth(t *testing.T) (int, map[string]interface{}) {
	t.Helper()
	resp, err := http.Get(app.BaseURL + "/health")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	var result map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return resp.StatusCode, result
}

func (app *TestApp) postMultipart(t *testing.T, filename string, content []byte, expectedStatus int) map[string]interface{} {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("video", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, app.BaseURL+"/api/v1/analyses", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, expectedStatus, resp.StatusCode, "POST analyses (%s): unexpected status", filename)
	var result map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return result
}

func (app *TestApp) getJSON(t *testing.T, path string, expectedStatus int) map[string]interface{} {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, app.BaseURL+path, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, expectedStatus, resp.StatusCode, "GET %s: unexpected status", path)
	var result map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return result
}

// ────────────────────────────────────────────────────────────
// Polling Helpers
// ────────────────────────────────────────────────────────────

// WaitForJobStatus polls the status endpoint until the job reaches one of
// the expected statuses. Returns the last full status body.
func (app *TestApp) WaitForJobStatus(t *testing.T, jobID string, expected ...string) map[string]interface{} {
	t.Helper()
	var last map[string]interface{}
	require.Eventually(t, func() bool {
		last = app.GetStatus(t, jobID)
		actual, _ := last["status"].(string)
		for _, exp := range expected {
			if actual == exp {
				return true
			}
		}
		return false
	}, 15*time.Second, 20*time.Millisecond,
		"job %s did not reach status %v (last: %v)", jobID, expected, last)
	return last
}

// WaitForProgress polls until the job's reported progress reaches min.
func (app *TestApp) WaitForProgress(t *testing.T, jobID string, min float64) {
	t.Helper()
	var last float64
	require.Eventually(t, func() bool {
		status := app.GetStatus(t, jobID)
		last, _ = status["progress"].(float64)
		return last >= min
	}, 15*time.Second, 20*time.Millisecond,
		"job %s never reported progress >= %v (last: %v)", jobID, min, last)
}

// SubmitAndWait uploads a video and blocks until the job is terminal,
// returning (jobID, final status body).
func (app *TestApp) SubmitAndWait(t *testing.T, filename string, content []byte) (string, map[string]interface{}) {
	t.Helper()
	accepted := app.SubmitVideo(t, filename, content)
	jobID, _ := accepted["job_id"].(string)
	require.NotEmpty(t, jobID)
	final := app.WaitForJobStatus(t, jobID, "completed", "failed")
	return jobID, final
}

// fakeMP4 returns bytes whose leading box sniffs as video/mp4. The rest is
// irrelevant: the stub sampler never reads it.
func fakeMP4(size int) []byte {
	b := make([]byte, size)
	copy(b, "\x00\x00\x00\x18ftypmp42")
	return b
}
