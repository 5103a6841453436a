package e2e

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// allRealNames lists the stock inspectors in the frozen v1 weight table.
var allRealNames = []string{
	"visual_clip", "visual_artifacts", "lipsync", "blink",
	"ocr_gibberish", "motion_flow", "audio_loop", "lighting", "transcript",
}

func TestAnalysisLikelyReal(t *testing.T) {
	// Every inspector scores 0.1 with zero events: weighted mean 0.1,
	// confidence 0.9.
	opts := make([]TestAppOption, 0, len(allRealNames))
	for _, name := range allRealNames {
		opts = append(opts, ScoreInspector(name, 0.1))
	}
	app := NewTestApp(t, opts...)

	jobID, final := app.SubmitAndWait(t, "clip.mp4", fakeMP4(2048))
	require.Equal(t, "completed", final["status"])
	assert.InDelta(t, 1.0, final["progress"], 1e-9)

	result := app.GetResult(t, jobID, http.StatusOK)
	assert.Equal(t, jobID, result["jobId"])
	assert.Equal(t, "LIKELY_REAL", result["label"])
	assert.InDelta(t, 0.9, result["confidence"], 1e-9)

	scores, ok := result["perInspectorScores"].(map[string]interface{})
	require.True(t, ok)
	require.Len(t, scores, len(allRealNames))
	for name, score := range scores {
		assert.InDelta(t, 0.1, score, 1e-9, "score for %s", name)
	}

	// No anomalies: the events field must be an empty array, not null.
	evs, ok := result["events"].([]interface{})
	require.True(t, ok, "events must be a JSON array")
	assert.Empty(t, evs)

	derived, ok := result["derived"].(map[string]interface{})
	require.True(t, ok)
	assert.InDelta(t, 15.0, derived["videoLength"], 1e-9)
	assert.InDelta(t, 15.0, derived["originalVideoLength"], 1e-9)
	assert.InDelta(t, 0.1, derived["visualScore"], 1e-9)
	assert.Equal(t, "v1", derived["pipelineVersion"])

	processedAt, ok := result["processedAt"].(string)
	require.True(t, ok)
	_, err := time.Parse(time.RFC3339Nano, processedAt)
	assert.NoError(t, err)
}

func TestAnalysisLikelyFake(t *testing.T) {
	app := NewTestApp(t,
		ScoreInspector("visual_clip", 0.9),
		ScoreInspector("visual_artifacts", 0.85, Event("visual_artifact", 4.25, 0.5, nil)),
		ScoreInspector("lipsync", 0.8, Event("lipsync_mismatch", 2.0, 0.5, nil)),
		ScoreInspector("blink", 0.7, Event("abnormal_blink", 6.0, 0.5, nil)),
		ScoreInspector("ocr_gibberish", 0.6),
		ScoreInspector("motion_flow", 0.75, Event("flow_spike", 1.1, 0.5, nil)),
		ScoreInspector("audio_loop", 0.5),
		ScoreInspector("lighting", 0.8, Event("light_change", 7.5, 0.5, nil)),
	)

	jobID, final := app.SubmitAndWait(t, "deepfake.mp4", fakeMP4(2048))
	require.Equal(t, "completed", final["status"])

	result := app.GetResult(t, jobID, http.StatusOK)
	assert.Equal(t, "LIKELY_FAKE", result["label"])
	// Weighted mean: (0.20·0.9 + 0.15·0.85 + 0.15·0.8 + 0.10·0.7 + 0.05·0.6
	// + 0.10·0.75 + 0.05·0.5 + 0.05·0.8) / 0.85 = 0.6675/0.85.
	assert.InDelta(t, 1.0-0.6675/0.85, result["confidence"], 1e-9)

	evs, ok := result["events"].([]interface{})
	require.True(t, ok)
	require.Len(t, evs, 5)

	// Sorted ascending by (ts, module, tag).
	want := []struct {
		module string
		tag    string
		ts     float64
	}{
		{"motion_flow", "flow_spike", 1.1},
		{"lipsync", "lipsync_mismatch", 2.0},
		{"visual_artifacts", "visual_artifact", 4.25},
		{"blink", "abnormal_blink", 6.0},
		{"lighting", "light_change", 7.5},
	}
	for i, w := range want {
		ev, ok := evs[i].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, w.module, ev["module"], "event %d module", i)
		assert.Equal(t, w.tag, ev["event"], "event %d tag", i)
		assert.InDelta(t, w.ts, ev["ts"], 1e-9, "event %d timestamp", i)
		assert.InDelta(t, 0.5, ev["dur"], 1e-9, "event %d duration", i)
	}
}

func TestInspectorTimeoutNeutralized(t *testing.T) {
	// lipsync hangs past its 200ms budget; the job must still complete,
	// scoring lipsync at the neutral 0.5 and flagging the failure.
	app := NewTestApp(t,
		ScoreInspector("visual_clip", 0.2),
		ScoreInspector("visual_artifacts", 0.2),
		BlockingInspector("lipsync", 200*time.Millisecond, nil),
		ScoreInspector("blink", 0.2),
		ScoreInspector("ocr_gibberish", 0.2),
		ScoreInspector("motion_flow", 0.2),
		ScoreInspector("audio_loop", 0.2),
		ScoreInspector("lighting", 0.2),
	)

	jobID, final := app.SubmitAndWait(t, "slow.mp4", fakeMP4(2048))
	require.Equal(t, "completed", final["status"])

	result := app.GetResult(t, jobID, http.StatusOK)
	scores, ok := result["perInspectorScores"].(map[string]interface{})
	require.True(t, ok)
	assert.InDelta(t, 0.5, scores["lipsync"], 1e-9)

	// 0.5·0.15 for lipsync plus 0.2 across the remaining 0.70 weight.
	assert.InDelta(t, 1.0-0.215/0.85, result["confidence"], 1e-9)
	assert.Equal(t, "LIKELY_REAL", result["label"])

	evs, ok := result["events"].([]interface{})
	require.True(t, ok)
	require.Len(t, evs, 1)
	ev, ok := evs[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "lipsync", ev["module"])
	assert.Equal(t, "inspector_failed", ev["event"])
	assert.InDelta(t, 0.0, ev["ts"], 1e-9)
	assert.InDelta(t, 15.0, ev["dur"], 1e-9)
	meta, ok := ev["meta"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, meta["reason"], "timed out")
}

func TestInspectorErrorNeutralized(t *testing.T) {
	app := NewTestApp(t,
		ScoreInspector("visual_clip", 0.3),
		FailingInspector("blink", errors.New("eye region not found")),
	)

	jobID, final := app.SubmitAndWait(t, "noface.mp4", fakeMP4(2048))
	require.Equal(t, "completed", final["status"])

	result := app.GetResult(t, jobID, http.StatusOK)
	scores, ok := result["perInspectorScores"].(map[string]interface{})
	require.True(t, ok)
	assert.InDelta(t, 0.5, scores["blink"], 1e-9)
	assert.InDelta(t, 0.3, scores["visual_clip"], 1e-9)

	evs, ok := result["events"].([]interface{})
	require.True(t, ok)
	require.Len(t, evs, 1)
	ev := evs[0].(map[string]interface{})
	assert.Equal(t, "blink", ev["module"])
	assert.Equal(t, "inspector_failed", ev["event"])
}

func TestDuplicateEventsCollapsed(t *testing.T) {
	// The same observation reported twice with identical (tag, ts, dur)
	// collapses to one timeline entry carrying the merged metadata.
	app := NewTestApp(t,
		ScoreInspector("visual_artifacts", 0.6,
			Event("visual_artifact", 3.00, 0.50, map[string]any{"frame": 24}),
			Event("visual_artifact", 3.00, 0.50, map[string]any{"strength": 0.9}),
		),
		ScoreInspector("visual_clip", 0.4),
	)

	jobID, final := app.SubmitAndWait(t, "dup.mp4", fakeMP4(2048))
	require.Equal(t, "completed", final["status"])

	result := app.GetResult(t, jobID, http.StatusOK)
	evs, ok := result["events"].([]interface{})
	require.True(t, ok)
	require.Len(t, evs, 1)

	ev, ok := evs[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "visual_artifacts", ev["module"])
	assert.Equal(t, "visual_artifact", ev["event"])
	assert.InDelta(t, 3.0, ev["ts"], 1e-9)
	assert.InDelta(t, 0.5, ev["dur"], 1e-9)

	meta, ok := ev["meta"].(map[string]interface{})
	require.True(t, ok)
	assert.InDelta(t, 24, meta["frame"], 1e-9)
	assert.InDelta(t, 0.9, meta["strength"], 1e-9)
}

func TestSamplingFailureFailsJob(t *testing.T) {
	app := NewTestApp(t,
		WithSampler(&StubSampler{Err: errors.New("moov atom not found")}),
		ScoreInspector("visual_clip", 0.1),
	)

	jobID, final := app.SubmitAndWait(t, "corrupt.mp4", fakeMP4(2048))
	require.Equal(t, "failed", final["status"])
	assert.Equal(t, "sampling_error", final["error_kind"])
	assert.Contains(t, final["error_detail"], "moov atom")

	failed := app.GetResult(t, jobID, http.StatusGone)
	assert.Equal(t, "sampling_error", failed["error_kind"])
	assert.Contains(t, failed["detail"], "moov atom")

	app.GetEvents(t, jobID, http.StatusGone)
	assert.False(t, app.Workspaces.Exists(jobID), "workspace must be released on failure")
}

func TestResultGatingWhileProcessing(t *testing.T) {
	gate := make(chan struct{})
	app := NewTestApp(t,
		WithSampler(&StubSampler{Release: gate}),
		ScoreInspector("visual_clip", 0.1),
	)

	accepted := app.SubmitVideo(t, "pending.mp4", fakeMP4(2048))
	jobID := accepted["job_id"].(string)

	// The job sits in sampling until the gate opens; reads must refuse
	// politely instead of blocking or erroring.
	app.WaitForJobStatus(t, jobID, "processing")

	notReady := app.GetResult(t, jobID, http.StatusConflict)
	assert.Equal(t, "processing", notReady["status"])
	assert.Contains(t, notReady["error"], "not finished")

	app.GetEvents(t, jobID, http.StatusConflict)

	close(gate)
	final := app.WaitForJobStatus(t, jobID, "completed")
	assert.InDelta(t, 1.0, final["progress"], 1e-9)
	app.GetResult(t, jobID, http.StatusOK)
}

func TestSilentVideoNeutralizesAudioInspectors(t *testing.T) {
	// No audio track: audio-dependent inspectors are neutralized, the
	// visual side still produces a verdict.
	app := NewTestApp(t,
		WithSampler(&StubSampler{NoAudio: true}),
		ScoreInspector("visual_clip", 0.2),
		WithInspector(audioRequiringDescriptor("audio_loop"), neverRuns(t)),
	)

	jobID, final := app.SubmitAndWait(t, "silent.mp4", fakeMP4(2048))
	require.Equal(t, "completed", final["status"])

	result := app.GetResult(t, jobID, http.StatusOK)
	scores := result["perInspectorScores"].(map[string]interface{})
	assert.InDelta(t, 0.5, scores["audio_loop"], 1e-9, "missing audio neutralizes the inspector")
	assert.InDelta(t, 0.2, scores["visual_clip"], 1e-9)

	evs, ok := result["events"].([]interface{})
	require.True(t, ok)
	require.Len(t, evs, 1)
	ev := evs[0].(map[string]interface{})
	assert.Equal(t, "audio_loop", ev["module"])
	assert.Equal(t, "inspector_failed", ev["event"])
	meta := ev["meta"].(map[string]interface{})
	assert.Contains(t, meta["reason"], "audio")
}
