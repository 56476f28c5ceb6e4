package watch

import (
	"sync"
	"time"
)

// Slot holds at most one Signal and clears itself after a hold period, so
// the same signal is not handed to a downstream effect twice.
type Slot struct {
	hold time.Duration

	mu    sync.Mutex
	sig   *Signal
	gen   uint64
	timer *time.Timer
}

// NewSlot creates a Slot whose contents expire after hold.
func NewSlot(hold time.Duration) *Slot {
	return &Slot{hold: hold}
}

// Set stores sig, replacing any held signal. It reports false without
// changing anything when a signal for the same event is already held.
func (s *Slot) Set(sig Signal) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sig != nil && s.sig.Event.ID == sig.Event.ID {
		return false
	}
	s.sig = &sig
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
	}
	gen := s.gen
	s.timer = time.AfterFunc(s.hold, func() { s.expire(gen) })
	return true
}

// Take returns and clears the held signal.
func (s *Slot) Take() (Signal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sig == nil {
		return Signal{}, false
	}
	sig := *s.sig
	s.clear()
	return sig, true
}

// Peek returns the held signal without clearing it.
func (s *Slot) Peek() (Signal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sig == nil {
		return Signal{}, false
	}
	return *s.sig, true
}

func (s *Slot) expire(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen {
		s.clear()
	}
}

func (s *Slot) clear() {
	s.sig = nil
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
