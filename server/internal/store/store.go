package store

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/repowatch/repowatch/pkg/types"
)

// Entry is a repository's last snapshot and when it arrived.
type Entry struct {
	Repository string          `json:"repository"`
	Snapshot   *types.Snapshot `json:"snapshot"`
	UpdatedAt  time.Time       `json:"updated_at"`
	// Alerts is the number of alerts created or changed by this snapshot.
	Alerts int `json:"alerts"`
}

// Store is a thread-safe in-memory snapshot store keyed by repository.
// Entries older than the TTL are hidden from List and removed by Prune.
type Store struct {
	mu   sync.RWMutex
	data map[string]*Entry
	ttl  time.Duration
	now  func() time.Time // injectable for deterministic tests
}

// New creates a Store with the given TTL.
func New(ttl time.Duration) *Store {
	return &Store{
		data: make(map[string]*Entry),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Put stores or replaces the snapshot for repository.
// Callers must not modify snap after calling Put.
func (s *Store) Put(repository string, snap *types.Snapshot, alerts int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[repository] = &Entry{
		Repository: repository,
		Snapshot:   snap,
		UpdatedAt:  s.now(),
		Alerts:     alerts,
	}
}

// Get returns the entry for repository. It may be stale if the TTL has
// elapsed and no prune has run yet.
func (s *Store) Get(repository string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[repository]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Fresh returns the entry for repository if it was updated within the TTL.
func (s *Store) Fresh(repository string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[repository]
	if !ok || !e.UpdatedAt.After(s.now().Add(-s.ttl)) {
		return Entry{}, false
	}
	return *e, true
}

// List returns the entries updated within the TTL, ordered by repository.
func (s *Store) List() []Entry {
	s.mu.RLock()
	cutoff := s.now().Add(-s.ttl)
	out := make([]Entry, 0, len(s.data))
	for _, e := range s.data {
		if e.UpdatedAt.After(cutoff) {
			out = append(out, *e)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Repository < out[j].Repository })
	return out
}

// Count returns the number of entries held, including stale ones.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Prune removes entries not updated since now minus the TTL and returns how
// many were removed. The maintenance sweeper calls it.
func (s *Store) Prune(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now.Add(-s.ttl)
	removed := 0
	for repo, e := range s.data {
		if !e.UpdatedAt.After(cutoff) {
			delete(s.data, repo)
			removed++
		}
	}
	if removed > 0 {
		slog.Debug("store: evicted stale snapshots", "count", removed)
	}
	return removed
}
