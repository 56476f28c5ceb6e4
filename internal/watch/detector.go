// Package watch turns repeatedly re-fetched snapshots of today's pickups
// into one-shot "new" and "ready" signals.
package watch

import (
	"time"

	"github.com/btouchard/readyalert/internal/store"
)

// SignalKind identifies the condition a Signal reports.
type SignalKind string

const (
	SignalNew   SignalKind = "new"
	SignalReady SignalKind = "ready"
)

// Signal reports that a condition just became true for one event.
type Signal struct {
	Kind  SignalKind
	Event store.EventWithResident
}

type tracked struct {
	lastSeen time.Time
	terminal bool
}

// Detector compares each snapshot with the previous one and emits at most
// one SignalNew and one SignalReady per event id while that id is remembered.
//
// Flagged ids are forgotten once they have been absent from every snapshot
// for the retention window, so memory stays bounded in long-running
// processes. Restarting the process loses all de-duplication state.
//
// A Detector is not safe for concurrent use; one goroutine owns it.
type Detector struct {
	dedupeRetention   time.Duration
	terminalRetention time.Duration
	now               func() time.Time

	baselined  bool
	prevIDs    map[string]struct{}
	prevStatus map[string]store.Status

	flaggedNew   map[string]struct{}
	flaggedReady map[string]struct{}
	seen         map[string]*tracked
}

// NewDetector creates a Detector. dedupeRetention bounds how long a flagged
// id is remembered after it stops appearing; terminalRetention applies
// instead when its last observed status was terminal.
func NewDetector(dedupeRetention, terminalRetention time.Duration) *Detector {
	return &Detector{
		dedupeRetention:   dedupeRetention,
		terminalRetention: terminalRetention,
		now:               time.Now,
		prevIDs:           make(map[string]struct{}),
		prevStatus:        make(map[string]store.Status),
		flaggedNew:        make(map[string]struct{}),
		flaggedReady:      make(map[string]struct{}),
		seen:              make(map[string]*tracked),
	}
}

// Observe processes one snapshot and returns the signals it produced, in
// snapshot order. The first snapshot only establishes the baseline.
func (d *Detector) Observe(snapshot []store.EventWithResident) []Signal {
	now := d.now()
	ids := make(map[string]struct{}, len(snapshot))
	statuses := make(map[string]store.Status, len(snapshot))

	var signals []Signal
	for _, ev := range snapshot {
		ids[ev.ID] = struct{}{}
		statuses[ev.ID] = ev.Status
		if t, ok := d.seen[ev.ID]; ok {
			t.lastSeen = now
			t.terminal = ev.Status.Terminal()
		}

		if !d.baselined {
			continue
		}

		if _, was := d.prevIDs[ev.ID]; !was {
			if _, flagged := d.flaggedNew[ev.ID]; !flagged {
				d.flaggedNew[ev.ID] = struct{}{}
				d.track(ev, now)
				signals = append(signals, Signal{Kind: SignalNew, Event: ev})
			}
		}

		prev, known := d.prevStatus[ev.ID]
		if known && prev != store.StatusReady && ev.Status == store.StatusReady {
			if _, flagged := d.flaggedReady[ev.ID]; !flagged {
				d.flaggedReady[ev.ID] = struct{}{}
				d.track(ev, now)
				signals = append(signals, Signal{Kind: SignalReady, Event: ev})
			}
		}
	}

	d.baselined = true
	d.prevIDs = ids
	d.prevStatus = statuses
	d.evict(now)

	return signals
}

// Remembered returns how many ids are held in the flagged sets.
func (d *Detector) Remembered() int {
	return len(d.seen)
}

func (d *Detector) track(ev store.EventWithResident, now time.Time) {
	if _, ok := d.seen[ev.ID]; ok {
		return
	}
	d.seen[ev.ID] = &tracked{lastSeen: now, terminal: ev.Status.Terminal()}
}

func (d *Detector) evict(now time.Time) {
	for id, t := range d.seen {
		if _, present := d.prevIDs[id]; present {
			continue
		}
		retention := d.dedupeRetention
		if t.terminal {
			retention = d.terminalRetention
		}
		if now.Sub(t.lastSeen) < retention {
			continue
		}
		delete(d.seen, id)
		delete(d.flaggedNew, id)
		delete(d.flaggedReady, id)
	}
}
