package store

import (
	"sync"
	"time"
)

// ChangeOp names the kind of mutation applied to transport_events.
type ChangeOp string

const (
	OpInsert ChangeOp = "insert"
	OpUpdate ChangeOp = "update"
	OpDelete ChangeOp = "delete"
	OpReset  ChangeOp = "reset"
)

// Change is a notification that transport_events was mutated.
// Consumers re-fetch instead of trusting the payload.
type Change struct {
	Op      ChangeOp  `json:"op"`
	EventID string    `json:"event_id,omitempty"`
	At      time.Time `json:"at"`
}

// feedBuffer bounds each subscriber's backlog. A subscriber that falls
// behind loses ticks, never state: the next tick triggers a full re-fetch.
const feedBuffer = 8

// Feed fans out Change notifications to any number of subscribers.
type Feed struct {
	mu   sync.Mutex
	subs map[int]chan Change
	next int
}

// NewFeed creates an empty Feed.
func NewFeed() *Feed {
	return &Feed{subs: make(map[int]chan Change)}
}

// Subscribe registers a new listener. The returned func unsubscribes and
// closes the channel; it is safe to call more than once.
func (f *Feed) Subscribe() (<-chan Change, func()) {
	ch := make(chan Change, feedBuffer)

	f.mu.Lock()
	id := f.next
	f.next++
	f.subs[id] = ch
	f.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers c to every subscriber without blocking.
func (f *Feed) Publish(c Change) {
	if c.At.IsZero() {
		c.At = time.Now()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		select {
		case ch <- c:
		default:
		}
	}
}

// Subscribers returns the number of active listeners.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
