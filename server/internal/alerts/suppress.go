package alerts

import (
	"sync"
	"time"
)

// Suppression mutes new alert processing for a key until Until.
type Suppression struct {
	Key          Key       `json:"key"`
	AlertID      string    `json:"alert_id"`
	Until        time.Time `json:"until"`
	SuppressedBy string    `json:"suppressed_by"`
	SuppressedAt time.Time `json:"suppressed_at"`
}

// Suppressions is the keyed set of active mutes.
type Suppressions struct {
	mu      sync.Mutex
	entries map[Key]Suppression
	now     func() time.Time
}

// NewSuppressions creates an empty set reading time from now.
func NewSuppressions(now func() time.Time) *Suppressions {
	if now == nil {
		now = time.Now
	}
	return &Suppressions{entries: make(map[Key]Suppression), now: now}
}

// Set creates or overwrites the suppression for key.
func (s *Suppressions) Set(key Key, alertID string, d time.Duration, actor string) Suppression {
	now := s.now()
	sup := Suppression{
		Key:          key,
		AlertID:      alertID,
		Until:        now.Add(d),
		SuppressedBy: actor,
		SuppressedAt: now,
	}
	s.mu.Lock()
	s.entries[key] = sup
	s.mu.Unlock()
	return sup
}

// IsSuppressed reports whether key is muted right now. Expired entries are
// deleted on read.
func (s *Suppressions) IsSuppressed(key Key) bool {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	sup, ok := s.entries[key]
	if !ok {
		return false
	}
	if sup.Until.After(now) {
		return true
	}
	delete(s.entries, key)
	return false
}

// Prune deletes every suppression that has expired at now.
func (s *Suppressions) Prune(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, sup := range s.entries {
		if !sup.Until.After(now) {
			delete(s.entries, k)
			n++
		}
	}
	return n
}

// Len returns the number of stored suppressions, including expired ones not
// yet pruned.
func (s *Suppressions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// List returns the stored suppressions.
func (s *Suppressions) List() []Suppression {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Suppression, 0, len(s.entries))
	for _, sup := range s.entries {
		out = append(out, sup)
	}
	return out
}
