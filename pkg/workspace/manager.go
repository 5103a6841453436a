// Package workspace manages per-job scratch directories. Every job owns a
// private directory under a common base; the orchestrator guarantees release
// on every exit path before the job's terminal status becomes visible.
package workspace

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrInvalidJobID is returned when a job ID cannot be used as a directory
// name (path separators, traversal, empty).
var ErrInvalidJobID = errors.New("invalid job id for workspace path")

// Manager allocates and releases per-job directories under a base path.
type Manager struct {
	base string
}

// NewManager creates the base directory if needed and returns a manager
// rooted there.
func NewManager(base string) (*Manager, error) {
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace base: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("create workspace base: %w", err)
	}
	return &Manager{base: abs}, nil
}

// Base returns the absolute base path all workspaces live under.
func (m *Manager) Base() string {
	return m.base
}

// Acquire creates the private directory for jobID. The directory must not
// already exist: a collision means two pipelines think they own the same job.
func (m *Manager) Acquire(jobID string) (*Workspace, error) {
	if !validJobDir(jobID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidJobID, jobID)
	}
	dir := filepath.Join(m.base, jobID)
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create workspace %s: %w", dir, err)
	}
	return &Workspace{dir: dir, base: m.base}, nil
}

// Exists reports whether a workspace directory is present for jobID.
// Used by tests asserting cleanup and by the health probe.
func (m *Manager) Exists(jobID string) bool {
	if !validJobDir(jobID) {
		return false
	}
	info, err := os.Stat(filepath.Join(m.base, jobID))
	return err == nil && info.IsDir()
}

// validJobDir accepts only plain single-element names.
func validJobDir(id string) bool {
	return id != "" && id != "." && id != ".." &&
		!strings.ContainsAny(id, `/\`) && filepath.Base(id) == id
}

// Workspace is one job's scratch directory.
type Workspace struct {
	dir  string
	base string
	once sync.Once
}

// Dir returns the workspace root.
func (w *Workspace) Dir() string {
	return w.dir
}

// Path joins elements onto the workspace root.
func (w *Workspace) Path(elem ...string) string {
	return filepath.Join(append([]string{w.dir}, elem...)...)
}

// Release deletes the directory tree. Idempotent; failures are logged and
// never propagated: a leaked temp dir must not mask the job's real outcome.
func (w *Workspace) Release() {
	w.once.Do(func() {
		// Refuse to delete anything that is not strictly inside the base.
		rel, err := filepath.Rel(w.base, w.dir)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			slog.Error("Refusing to release workspace outside base",
				"dir", w.dir, "base", w.base)
			return
		}
		if err := os.RemoveAll(w.dir); err != nil {
			slog.Warn("Failed to release workspace", "dir", w.dir, "error", err)
		}
	})
}
