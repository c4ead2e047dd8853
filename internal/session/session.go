// Package session keeps the per-browser analysis state between requests.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/KaramelBytes/edaloom/internal/ingest"
)

// ErrNoDataset is returned when a session has no committed upload.
var ErrNoDataset = errors.New("upload a CSV first")

// State is the committed result of the last successful upload.
type State struct {
	Result *ingest.Result
	// Report caches the last rendered report keyed by mode.
	Report    map[string][]byte
	UpdatedAt time.Time
}

// Store is a concurrency-safe map of session id to state with idle expiry.
type Store struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	states map[string]*State
}

// NewStore creates a store; ttl <= 0 disables expiry.
func NewStore(ttl time.Duration) *Store {
	return &Store{ttl: ttl, now: time.Now, states: map[string]*State{}}
}

// NewID returns a fresh session id.
func NewID() string { return uuid.NewString() }

// Commit replaces the state for id with a new successful upload. Callers only
// commit after ingest succeeded, so a failed upload never clears prior state.
func (s *Store) Commit(id string, res *ingest.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[id] = &State{Result: res, Report: map[string][]byte{}, UpdatedAt: s.now()}
}

// Get returns the state for id, or ErrNoDataset if none is live.
func (s *Store) Get(id string) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[id]
	if !ok || s.expired(st, s.now()) {
		delete(s.states, id)
		return nil, ErrNoDataset
	}
	st.UpdatedAt = s.now()
	return st, nil
}

// Report returns a cached report for mode.
func (s *Store) Report(id, mode string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[id]
	if !ok {
		return nil, false
	}
	b, ok := st.Report[mode]
	return b, ok
}

// SetReport caches a rendered report, but only if res is still the
// committed upload for id.
func (s *Store) SetReport(id string, res *ingest.Result, mode string, report []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[id]
	if !ok || st.Result != res {
		return
	}
	st.Report[mode] = report
}

// Delete drops the state for id.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, id)
}

// Len returns the number of stored sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}

// Sweep removes expired sessions and returns how many were dropped.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, st := range s.states {
		if s.expired(st, now) {
			delete(s.states, id)
			n++
		}
	}
	return n
}

func (s *Store) expired(st *State, now time.Time) bool {
	return s.ttl > 0 && now.Sub(st.UpdatedAt) > s.ttl
}
