package alerts

import (
	"sort"
	"sync"
	"time"
)

// Outcome is what Store.upsert did with a breach.
type Outcome int

const (
	OutcomeCreated Outcome = iota + 1
	OutcomeUpdated
	OutcomeUnchanged
	OutcomeSuppressed
)

// Store holds the active alert table and the bounded history log.
//
// The store guards its maps with its own lock; callers that need a
// check-then-act sequence for one key hold that key's lock (keyLocker)
// around the calls.
type Store struct {
	mu      sync.RWMutex
	active  map[Key]*Alert
	byID    map[string]Key
	history []HistoryEntry
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		active: make(map[Key]*Alert),
		byID:   make(map[string]Key),
	}
}

// upsert inserts a as the active alert for its key, or applies a severity
// change to the existing one in place. The existing record keeps its id,
// creation time, policy and escalation progress.
func (s *Store) upsert(a Alert) (Alert, Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := a.Key()
	if cur, ok := s.active[key]; ok {
		if cur.Severity == a.Severity {
			return *cur, OutcomeUnchanged
		}
		cur.Severity = a.Severity
		cur.Message = a.Message
		cur.CurrentValue = a.CurrentValue
		cur.ThresholdValue = a.ThresholdValue
		return *cur, OutcomeUpdated
	}

	rec := a
	s.active[key] = &rec
	s.byID[rec.ID] = key
	s.history = append(s.history, HistoryEntry{Action: "created", At: rec.CreatedAt, Alert: rec})
	return rec, OutcomeCreated
}

// update applies fn to the active alert for key if its id is still id.
func (s *Store) update(key Key, id string, fn func(*Alert)) (Alert, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.active[key]
	if !ok || (id != "" && cur.ID != id) {
		return Alert{}, false
	}
	fn(cur)
	return *cur, true
}

// remove resolves the active alert for key and appends it to history.
func (s *Store) remove(key Key, reason string, now time.Time) (Alert, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.active[key]
	if !ok {
		return Alert{}, false
	}
	delete(s.active, key)
	delete(s.byID, cur.ID)

	t := now
	cur.ResolvedAt = &t
	cur.ResolvedBy = reason
	s.history = append(s.history, HistoryEntry{Action: "resolved", Reason: reason, At: now, Alert: *cur})
	return *cur, true
}

// Get returns the active alert for key.
func (s *Store) Get(key Key) (Alert, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a, ok := s.active[key]; ok {
		return *a, true
	}
	return Alert{}, false
}

// Has reports whether key has an active alert.
func (s *Store) Has(key Key) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.active[key]
	return ok
}

// KeyOf finds the key of the active alert with the given id.
func (s *Store) KeyOf(id string) (Key, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.byID[id]
	return k, ok
}

// Active returns copies of all active alerts, newest first.
func (s *Store) Active() []Alert {
	s.mu.RLock()
	out := make([]Alert, 0, len(s.active))
	for _, a := range s.active {
		out = append(out, *a)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Key().String() < out[j].Key().String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// History returns up to limit entries, newest first. limit <= 0 returns all.
func (s *Store) History(limit int) []HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.history)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]HistoryEntry, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.history[i])
	}
	return out
}

// Len returns the number of active alerts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.active)
}

// HistoryLen returns the number of history entries.
func (s *Store) HistoryLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

// TrimHistory keeps the most recent limit entries and returns how many were
// dropped.
func (s *Store) TrimHistory(limit int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit < 0 || len(s.history) <= limit {
		return 0
	}
	drop := len(s.history) - limit
	kept := make([]HistoryEntry, limit)
	copy(kept, s.history[drop:])
	s.history = kept
	return drop
}
