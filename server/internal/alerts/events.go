package alerts

import (
	"sync"
	"time"
)

// EventType names a lifecycle event.
type EventType string

const (
	EventAlertCreated      EventType = "alert_created"
	EventAlertResolved     EventType = "alert_resolved"
	EventAlertAcknowledged EventType = "alert_acknowledged"
	EventAlertSuppressed   EventType = "alert_suppressed"
)

// Event is delivered to subscribers after the state change is committed.
type Event struct {
	Type        EventType    `json:"type"`
	Alert       Alert        `json:"alert"`
	Reason      string       `json:"reason,omitempty"`
	Suppression *Suppression `json:"suppression,omitempty"`
	At          time.Time    `json:"at"`
}

type eventBus struct {
	mu   sync.RWMutex
	next int
	subs map[int]func(Event)
}

func (b *eventBus) subscribe(fn func(Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs == nil {
		b.subs = make(map[int]func(Event))
	}
	id := b.next
	b.next++
	b.subs[id] = fn
	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// publish calls every subscriber synchronously. Subscribers must not block.
func (b *eventBus) publish(ev Event) {
	b.mu.RLock()
	fns := make([]func(Event), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()
	for _, fn := range fns {
		fn(ev)
	}
}
