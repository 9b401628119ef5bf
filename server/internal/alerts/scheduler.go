package alerts

import (
	"sync"
	"time"
)

// Clock is the time source for the engine. Tests substitute a manual clock.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending AfterFunc call.
type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Scheduler runs delayed tasks grouped by alert key so that every task for a
// key can be cancelled at once.
type Scheduler struct {
	clock Clock

	mu    sync.Mutex
	seq   uint64
	tasks map[Key]map[uint64]Timer
}

// NewScheduler returns a scheduler driven by clock.
func NewScheduler(clock Clock) *Scheduler {
	if clock == nil {
		clock = realClock{}
	}
	return &Scheduler{clock: clock, tasks: make(map[Key]map[uint64]Timer)}
}

// At schedules fn for key at the absolute time at. Times in the past run as
// soon as possible.
func (s *Scheduler) At(key Key, at time.Time, fn func()) {
	d := at.Sub(s.clock.Now())
	if d < 0 {
		d = 0
	}

	// Held across AfterFunc so a zero-delay task cannot finish before it is
	// registered.
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	id := s.seq
	t := s.clock.AfterFunc(d, func() {
		if !s.claim(key, id) {
			return
		}
		fn()
	})
	byKey, ok := s.tasks[key]
	if !ok {
		byKey = make(map[uint64]Timer)
		s.tasks[key] = byKey
	}
	byKey[id] = t
}

// claim removes a firing task; false means it was cancelled meanwhile.
func (s *Scheduler) claim(key Key, id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	byKey, ok := s.tasks[key]
	if !ok {
		return false
	}
	if _, ok := byKey[id]; !ok {
		return false
	}
	delete(byKey, id)
	if len(byKey) == 0 {
		delete(s.tasks, key)
	}
	return true
}

// Cancel stops every pending task for key and returns how many there were.
func (s *Scheduler) Cancel(key Key) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	byKey := s.tasks[key]
	for _, t := range byKey {
		t.Stop()
	}
	delete(s.tasks, key)
	return len(byKey)
}

// CancelAll stops every pending task.
func (s *Scheduler) CancelAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, byKey := range s.tasks {
		for _, t := range byKey {
			t.Stop()
			n++
		}
		delete(s.tasks, k)
	}
	return n
}

// Pending returns the number of tasks not yet fired or cancelled.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, byKey := range s.tasks {
		n += len(byKey)
	}
	return n
}

// PendingFor returns the number of pending tasks for key.
func (s *Scheduler) PendingFor(key Key) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks[key])
}
