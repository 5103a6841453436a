package workspace

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Sweeper periodically removes orphaned entries under the workspace base:
// job directories left by a previous process that crashed before releasing,
// and staged upload files that were never consumed. Job state does not
// survive restarts, so anything older than maxAge is garbage.
//
// maxAge must exceed the per-job timeout: a directory older than that cannot
// belong to a live job.
type Sweeper struct {
	manager  *Manager
	maxAge   time.Duration
	interval time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper creates a sweeper over the manager's base directory.
func NewSweeper(m *Manager, maxAge, interval time.Duration) *Sweeper {
	return &Sweeper{
		manager:  m,
		maxAge:   maxAge,
		interval: interval,
	}
}

// Start launches the background sweep loop. The first sweep runs
// immediately to clear leftovers from a previous process.
func (s *Sweeper) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("Workspace sweeper started",
		"base", s.manager.Base(), "max_age", s.maxAge, "interval", s.interval)
}

// Stop signals the sweep loop to exit and waits for it to finish.
func (s *Sweeper) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("Workspace sweeper stopped")
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.done)

	s.sweep()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Sweeper) sweep() {
	entries, err := os.ReadDir(s.manager.Base())
	if err != nil {
		slog.Error("Sweep: cannot read workspace base", "error", err)
		return
	}

	cutoff := time.Now().Add(-s.maxAge)
	removed := 0
	for _, e := range entries {
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		// Directories are job workspaces; plain files are staged uploads
		// that never got consumed.
		path := filepath.Join(s.manager.Base(), e.Name())
		if err := os.RemoveAll(path); err != nil {
			slog.Warn("Sweep: failed to remove orphaned workspace entry", "path", path, "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		slog.Info("Sweep: removed orphaned workspaces", "count", removed)
	}
}
