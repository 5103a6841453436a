// Package jobs provides the in-memory job store. Records live for the
// process lifetime; there is no persistence across restarts.
package jobs

import (
	"errors"
	"sync"

	"github.com/veracity-labs/veracity/pkg/models"
)

var (
	// ErrDuplicateJob is returned when inserting an ID that already exists.
	ErrDuplicateJob = errors.New("job already exists")

	// ErrNotFound is returned when a job ID is unknown.
	ErrNotFound = errors.New("job not found")

	// ErrTerminal is returned when updating a job whose status is already
	// terminal. Terminal records are immutable.
	ErrTerminal = errors.New("job is in a terminal state")
)

// entry pairs a record with its own lock so mutations on one job never
// block readers or writers of another.
type entry struct {
	mu  sync.RWMutex
	rec *models.JobRecord
}

// Store maps job IDs to records. The outer lock only guards the map
// structure; per-record access goes through the entry lock.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewStore creates an empty job store.
func NewStore() *Store {
	return &Store{
		entries: make(map[string]*entry),
	}
}

// Insert adds a new record. The record is cloned on the way in so the
// caller cannot mutate store state afterwards.
func (s *Store) Insert(rec *models.JobRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[rec.ID]; ok {
		return ErrDuplicateJob
	}
	s.entries[rec.ID] = &entry{rec: rec.Clone()}
	return nil
}

// Update applies mutate to the record under its exclusive lock. The whole
// mutation is one critical section: readers observe either none or all of
// it, which is what lets the orchestrator populate a result before flipping
// status in the same call.
//
// Updates against a terminal record return ErrTerminal and leave it
// untouched.
func (s *Store) Update(id string, mutate func(*models.JobRecord)) error {
	e, err := s.lookup(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.rec.Status.Terminal() {
		return ErrTerminal
	}
	mutate(e.rec)
	return nil
}

// Remove deletes a record outright. Only the submission path uses this, to
// roll back an insert when the admission queue turns out to be full: the ID
// has not been handed to the client yet, so nobody can observe the gap.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
}

// Read returns a deep-copied snapshot of the record.
func (s *Store) Read(id string) (*models.JobRecord, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.rec.Clone(), nil
}

// Len returns the number of tracked jobs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// CountByStatus returns the number of jobs per status. Used by health and
// metrics reporting only.
func (s *Store) CountByStatus() map[models.JobStatus]int {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	counts := make(map[models.JobStatus]int, 4)
	for _, e := range entries {
		e.mu.RLock()
		counts[e.rec.Status]++
		e.mu.RUnlock()
	}
	return counts
}

func (s *Store) lookup(id string) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}
