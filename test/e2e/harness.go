// Package e2e provides end-to-end test infrastructure for the veracity
// pipeline: a fully wired in-process instance behind a real HTTP listener,
// with the ffmpeg sampler replaced by a stub and inspectors scripted per
// scenario.
package e2e

import (
	"context"
	"encoding/binary"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/veracity-labs/veracity/pkg/api"
	"github.com/veracity-labs/veracity/pkg/config"
	"github.com/veracity-labs/veracity/pkg/events"
	"github.com/veracity-labs/veracity/pkg/inspect"
	"github.com/veracity-labs/veracity/pkg/inspect/builtin"
	"github.com/veracity-labs/veracity/pkg/jobs"
	"github.com/veracity-labs/veracity/pkg/models"
	"github.com/veracity-labs/veracity/pkg/pipeline"
	"github.com/veracity-labs/veracity/pkg/queue"
	"github.com/veracity-labs/veracity/pkg/workspace"
)

// TestApp boots a complete veracity instance for e2e testing.
type TestApp struct {
	// Core
	Config     *config.Config
	Store      *jobs.Store
	Workspaces *workspace.Manager

	// Test wiring
	Sampler pipeline.Sampler // usually a *StubSampler

	// Real infrastructure
	Registry    *inspect.Registry
	Queue       *queue.Queue
	WorkerPool  *queue.WorkerPool
	ConnManager *events.ConnectionManager
	Publisher   *events.Publisher
	Service     *pipeline.Service
	Server      *api.Server

	// Runtime
	HTTP    *httptest.Server
	BaseURL string // e.g. "http://127.0.0.1:54321"
	WSURL   string // e.g. "ws://127.0.0.1:54321/api/v1/ws"

	t *testing.T
}

// scriptedEntry is one inspector queued for registration.
type scriptedEntry struct {
	desc inspect.Descriptor
	fn   inspect.Func
}

// testAppConfig holds options accumulated before creating the TestApp.
type testAppConfig struct {
	cfg            *config.Config
	sampler        pipeline.Sampler
	inspectors     []scriptedEntry
	workerCount    int
	queueCapacity  int
	maxParallel    int
	maxUploadBytes int64
	perJobTimeout  time.Duration
}

// TestAppOption configures the test app.
type TestAppOption func(*testAppConfig)

// WithConfig sets a custom config. Queue and upload knobs set via other
// options still override the corresponding config fields.
func WithConfig(cfg *config.Config) TestAppOption {
	return func(c *testAppConfig) { c.cfg = cfg }
}

// WithSampler replaces the default stub sampler.
func WithSampler(s pipeline.Sampler) TestAppOption {
	return func(c *testAppConfig) { c.sampler = s }
}

// WithInspector registers a scripted inspector. When at least one is given,
// only scripted inspectors run; otherwise the stock set is installed.
func WithInspector(desc inspect.Descriptor, fn inspect.Func) TestAppOption {
	return func(c *testAppConfig) {
		c.inspectors = append(c.inspectors, scriptedEntry{desc: desc, fn: fn})
	}
}

// WithWorkerCount sets the number of pipeline workers.
func WithWorkerCount(n int) TestAppOption {
	return func(c *testAppConfig) { c.workerCount = n }
}

// WithQueueCapacity bounds the admission queue.
func WithQueueCapacity(n int) TestAppOption {
	return func(c *testAppConfig) { c.queueCapacity = n }
}

// WithInspectorParallelism caps concurrent inspectors within one job.
func WithInspectorParallelism(n int) TestAppOption {
	return func(c *testAppConfig) { c.maxParallel = n }
}

// WithMaxUploadBytes caps accepted media size.
func WithMaxUploadBytes(n int64) TestAppOption {
	return func(c *testAppConfig) { c.maxUploadBytes = n }
}

// WithPerJobTimeout sets the overall processing budget. Rounded up to whole
// seconds because the config field carries seconds.
func WithPerJobTimeout(d time.Duration) TestAppOption {
	return func(c *testAppConfig) { c.perJobTimeout = d }
}

// NewTestApp creates and starts a full veracity test instance.
// Shutdown is registered via t.Cleanup automatically.
func NewTestApp(t *testing.T, opts ...TestAppOption) *TestApp {
	t.Helper()

	// Apply options.
	tc := &testAppConfig{
		workerCount:   2,
		queueCapacity: 16,
		maxParallel:   4,
	}
	for _, opt := range opts {
		opt(tc)
	}

	// Default config if not provided, with test-appropriate settings.
	if tc.cfg == nil {
		tc.cfg = defaultTestConfig(t)
	}
	tc.cfg.Pipeline.MaxConcurrentJobs = tc.workerCount
	tc.cfg.Pipeline.AdmissionQueueCapacity = tc.queueCapacity
	tc.cfg.Pipeline.MaxConcurrentInspectorsPerJob = tc.maxParallel
	if tc.maxUploadBytes > 0 {
		tc.cfg.Server.MaxUploadBytes = tc.maxUploadBytes
	}
	if tc.perJobTimeout > 0 {
		tc.cfg.Pipeline.PerJobTimeoutSec = int((tc.perJobTimeout + time.Second - 1) / time.Second)
	}

	// 1. Job store and per-job workspaces.
	store := jobs.NewStore()
	workspaces, err := workspace.NewManager(tc.cfg.Workspace.BasePath)
	require.NoError(t, err)

	// 2. Inspector registry: scripted entries, or the stock set.
	registry := inspect.NewRegistry()
	if len(tc.inspectors) > 0 {
		for _, in := range tc.inspectors {
			require.NoError(t, registry.Register(in.desc, in.fn))
		}
	} else {
		require.NoError(t, builtin.RegisterAll(registry))
	}
	weights, err := inspect.WeightsFor(tc.cfg.Pipeline.Version)
	require.NoError(t, err)

	// 3. Streaming infrastructure.
	connManager := events.NewConnectionManager(5 * time.Second)
	publisher := events.NewPublisher(connManager)

	// 4. Pipeline: sampler, dispatcher, orchestrator.
	sampler := tc.sampler
	if sampler == nil {
		sampler = &StubSampler{}
	}
	dispatcher := inspect.NewDispatcher(registry, tc.cfg.Pipeline.MaxConcurrentInspectorsPerJob)
	orchestrator := pipeline.NewOrchestrator(store, workspaces, sampler, dispatcher, weights, tc.cfg, publisher)

	// 5. Admission queue and worker pool.
	q := queue.NewQueue(tc.cfg.Pipeline.AdmissionQueueCapacity)
	workerPool := queue.NewWorkerPool(q, orchestrator, tc.cfg.Pipeline.MaxConcurrentJobs)
	require.NoError(t, workerPool.Start(context.Background()))

	// 6. Front-door service and HTTP server on a random port.
	service := pipeline.NewService(store, q, workerPool, tc.cfg.Server.MaxUploadBytes, tc.cfg.Pipeline.Version, publisher)
	server := api.NewServer(tc.cfg, service, connManager)
	ts := httptest.NewServer(server.Handler())

	app := &TestApp{
		Config:      tc.cfg,
		Store:       store,
		Workspaces:  workspaces,
		Sampler:     sampler,
		Registry:    registry,
		Queue:       q,
		WorkerPool:  workerPool,
		ConnManager: connManager,
		Publisher:   publisher,
		Service:     service,
		Server:      server,
		HTTP:        ts,
		BaseURL:     ts.URL,
		WSURL:       "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws",
		t:           t,
	}

	// Register cleanup in reverse-creation order. The manager closes its
	// WebSocket connections before the listener stops accepting.
	t.Cleanup(func() {
		workerPool.Stop()
		connManager.Shutdown()
		ts.Close()
	})

	return app
}

// defaultTestConfig creates a config suitable for tests that don't provide
// their own: built-in defaults with workspaces under the test's temp dir and
// budgets tight enough that a wedged pipeline fails the test, not the CI job.
func defaultTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Workspace.BasePath = filepath.Join(t.TempDir(), "workspaces")
	cfg.Pipeline.PerJobTimeoutSec = 30
	cfg.Sampler.SamplingTimeoutSec = 10
	// The health probe looks these up; nothing in e2e actually execs them.
	cfg.Sampler.FFmpegPath = fakeBinary(t, "ffmpeg")
	cfg.Sampler.FFprobePath = fakeBinary(t, "ffprobe")
	return cfg
}

// fakeBinary writes an executable stub and returns its absolute path.
func fakeBinary(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755))
	return path
}

// ────────────────────────────────────────────────────────────
// Stub Sampler
// ────────────────────────────────────────────────────────────

// StubSampler satisfies pipeline.Sampler without invoking ffmpeg. It
// fabricates a fixed-duration frame sequence and writes a real PCM WAV into
// the workspace so audio-dependent inspectors see a readable track.
type StubSampler struct {
	// DurationSec is both the original and effective duration. Default 15.
	DurationSec float64

	// FPS is the fabricated sampling cadence. Default 2. Frames are tiny
	// (64×36); scripted inspectors never look at pixels.
	FPS int

	// NoAudio fabricates a silent video: HasAudio false, no WAV written.
	NoAudio bool

	// Err, when set, is returned instead of media. Simulates decode failure.
	Err error

	// Release, when set, blocks Sample until closed (or the job is
	// cancelled). Lets tests subscribe to a job's channel before it runs.
	Release <-chan struct{}
}

const (
	stubFrameWidth  = 64
	stubFrameHeight = 36
	stubSampleRate  = 16000
)

// Sample fabricates the bundle. The WAV layout mirrors what the production
// sampler's ffmpeg invocation produces: 16-bit mono PCM at 16 kHz.
func (s *StubSampler) Sample(ctx context.Context, inputPath string, ws *workspace.Workspace) (*models.SampledMedia, error) {
	if s.Release != nil {
		select {
		case <-s.Release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.Err != nil {
		return nil, s.Err
	}

	duration := s.DurationSec
	if duration == 0 {
		duration = 15
	}
	fps := s.FPS
	if fps == 0 {
		fps = 2
	}

	n := int(duration * float64(fps))
	frames := make([]models.Frame, n)
	for i := range frames {
		frames[i] = models.Frame{
			TimestampSec: float64(i) / float64(fps),
			Width:        stubFrameWidth,
			Height:       stubFrameHeight,
			Pixels:       make([]byte, stubFrameWidth*stubFrameHeight*3),
		}
	}

	m := &models.SampledMedia{
		Frames:               frames,
		OriginalDurationSec:  duration,
		EffectiveDurationSec: duration,
		TargetFPS:            fps,
		Width:                stubFrameWidth,
		Height:               stubFrameHeight,
	}
	if !s.NoAudio {
		path := ws.Path("audio.wav")
		if err := writeSilentWAV(path, stubSampleRate, int(duration*stubSampleRate)); err != nil {
			return nil, err
		}
		m.AudioPath = path
		m.HasAudio = true
	}
	return m, nil
}

// writeSilentWAV writes a canonical 44-byte-header 16-bit mono PCM WAV of
// all-zero samples.
func writeSilentWAV(path string, sampleRate, sampleCount int) error {
	dataLen := sampleCount * 2
	buf := make([]byte, 0, 44+dataLen)

	le16 := func(v uint16) []byte { b := make([]byte, 2); binary.LittleEndian.PutUint16(b, v); return b }
	le32 := func(v uint32) []byte { b := make([]byte, 4); binary.LittleEndian.PutUint32(b, v); return b }

	buf = append(buf, "RIFF"...)
	buf = append(buf, le32(uint32(36+dataLen))...)
	buf = append(buf, "WAVE"...)
	buf = append(buf, "fmt "...)
	buf = append(buf, le32(16)...)
	buf = append(buf, le16(1)...) // PCM
	buf = append(buf, le16(1)...) // mono
	buf = append(buf, le32(uint32(sampleRate))...)
	buf = append(buf, le32(uint32(sampleRate*2))...)
	buf = append(buf, le16(2)...)
	buf = append(buf, le16(16)...)
	buf = append(buf, "data"...)
	buf = append(buf, le32(uint32(dataLen))...)
	buf = append(buf, make([]byte, dataLen)...)

	return os.WriteFile(path, buf, 0o600)
}
