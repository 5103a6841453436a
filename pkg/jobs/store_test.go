package jobs

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veracity-labs/veracity/pkg/models"
)

func newRecord(id string) *models.JobRecord {
	return &models.JobRecord{
		ID:        id,
		Status:    models.StatusPending,
		Phase:     models.PhasePending,
		Filename:  "clip.mp4",
		SizeBytes: 1024,
		CreatedAt: time.Now(),
	}
}

func TestInsertAndRead(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.Insert(newRecord("job-1")))

	snap, err := store.Read("job-1")
	require.NoError(t, err)
	assert.Equal(t, "job-1", snap.ID)
	assert.Equal(t, models.StatusPending, snap.Status)
	assert.Equal(t, "clip.mp4", snap.Filename)
}

func TestInsertDuplicate(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.Insert(newRecord("job-1")))

	err := store.Insert(newRecord("job-1"))
	assert.ErrorIs(t, err, ErrDuplicateJob)
}

func TestReadUnknown(t *testing.T) {
	store := NewStore()
	_, err := store.Read("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateUnknown(t *testing.T) {
	store := NewStore()
	err := store.Update("missing", func(r *models.JobRecord) {})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSnapshotIsolation(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.Insert(newRecord("job-1")))

	snap, err := store.Read("job-1")
	require.NoError(t, err)

	// Mutating the snapshot must not touch store state.
	snap.Status = models.StatusCompleted
	snap.Progress = 1.0

	fresh, err := store.Read("job-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, fresh.Status)
	assert.Zero(t, fresh.Progress)
}

func TestInsertClonesCallerRecord(t *testing.T) {
	store := NewStore()
	rec := newRecord("job-1")
	require.NoError(t, store.Insert(rec))

	// Caller keeps its pointer; mutating it must not leak into the store.
	rec.Status = models.StatusFailed

	snap, err := store.Read("job-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, snap.Status)
}

func TestResultVisibleWithCompletedStatus(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.Insert(newRecord("job-1")))

	// Result and status flip happen in one mutation: a reader seeing
	// completed must see the result in the same snapshot.
	err := store.Update("job-1", func(r *models.JobRecord) {
		r.Result = &models.AnalysisResult{JobID: "job-1", Label: models.LabelUncertain, Confidence: 0.5}
		r.Progress = 1.0
		r.Phase = models.PhaseCompleted
		r.Status = models.StatusCompleted
	})
	require.NoError(t, err)

	snap, err := store.Read("job-1")
	require.NoError(t, err)
	require.Equal(t, models.StatusCompleted, snap.Status)
	require.NotNil(t, snap.Result)
	assert.Equal(t, models.LabelUncertain, snap.Result.Label)
}

func TestTerminalRecordsAreImmutable(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.Insert(newRecord("job-1")))

	require.NoError(t, store.Update("job-1", func(r *models.JobRecord) {
		r.Status = models.StatusFailed
		r.Phase = models.PhaseFailed
		r.ErrorKind = models.ErrKindSampling
	}))

	err := store.Update("job-1", func(r *models.JobRecord) {
		r.Status = models.StatusCompleted
	})
	assert.ErrorIs(t, err, ErrTerminal)

	snap, err := store.Read("job-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, snap.Status)
	assert.Equal(t, models.ErrKindSampling, snap.ErrorKind)
}

func TestCountByStatus(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.Insert(newRecord("a")))
	require.NoError(t, store.Insert(newRecord("b")))
	require.NoError(t, store.Insert(newRecord("c")))
	require.NoError(t, store.Update("c", func(r *models.JobRecord) {
		r.Status = models.StatusCompleted
	}))

	counts := store.CountByStatus()
	assert.Equal(t, 2, counts[models.StatusPending])
	assert.Equal(t, 1, counts[models.StatusCompleted])
	assert.Equal(t, 3, store.Len())
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	store := NewStore()
	const jobs = 8
	for i := 0; i < jobs; i++ {
		require.NoError(t, store.Insert(newRecord(fmt.Sprintf("job-%d", i))))
	}

	var wg sync.WaitGroup
	for i := 0; i < jobs; i++ {
		id := fmt.Sprintf("job-%d", i)

		wg.Add(2)
		go func() {
			defer wg.Done()
			for p := 1; p <= 50; p++ {
				_ = store.Update(id, func(r *models.JobRecord) {
					r.Progress = float64(p) / 100
				})
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				snap, err := store.Read(id)
				require.NoError(t, err)
				assert.GreaterOrEqual(t, snap.Progress, 0.0)
				assert.LessOrEqual(t, snap.Progress, 1.0)
			}
		}()
	}
	wg.Wait()
}
