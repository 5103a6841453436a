package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireAndRelease(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	ws, err := m.Acquire("job-1")
	require.NoError(t, err)
	assert.DirExists(t, ws.Dir())
	assert.True(t, m.Exists("job-1"))

	// Files inside are removed with the workspace.
	require.NoError(t, os.WriteFile(ws.Path("audio.wav"), []byte("pcm"), 0o600))

	ws.Release()
	assert.NoDirExists(t, ws.Dir())
	assert.False(t, m.Exists("job-1"))
}

func TestReleaseIdempotent(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	ws, err := m.Acquire("job-1")
	require.NoError(t, err)

	ws.Release()
	assert.NotPanics(t, ws.Release)
	assert.NoDirExists(t, ws.Dir())
}

func TestAcquireCollision(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	_, err = m.Acquire("job-1")
	require.NoError(t, err)

	_, err = m.Acquire("job-1")
	assert.Error(t, err)
}

func TestAcquireRejectsUnsafeIDs(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	for _, id := range []string{"", ".", "..", "a/b", `a\b`, "../escape"} {
		_, err := m.Acquire(id)
		assert.ErrorIs(t, err, ErrInvalidJobID, "id %q", id)
	}
}

func TestPathJoinsInsideWorkspace(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	ws, err := m.Acquire("job-1")
	require.NoError(t, err)
	defer ws.Release()

	p := ws.Path("frames", "0001.rgb")
	assert.Equal(t, filepath.Join(ws.Dir(), "frames", "0001.rgb"), p)
}

func TestSweepRemovesOnlyStaleDirs(t *testing.T) {
	base := t.TempDir()
	m, err := NewManager(base)
	require.NoError(t, err)

	stale, err := m.Acquire("stale-job")
	require.NoError(t, err)
	fresh, err := m.Acquire("fresh-job")
	require.NoError(t, err)

	// Age the stale directory past the cutoff.
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(stale.Dir(), old, old))

	s := NewSweeper(m, 30*time.Minute, time.Hour)
	s.sweep()

	assert.NoDirExists(t, stale.Dir())
	assert.DirExists(t, fresh.Dir())
}

func TestSweeperStartStop(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	s := NewSweeper(m, time.Minute, 10*time.Millisecond)
	s.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	s.Stop()

	// Stop after Stop must not block or panic.
	assert.NotPanics(t, s.Stop)
}
