package watch

import (
	"context"
	"log/slog"
	"time"

	"github.com/btouchard/readyalert/internal/metrics"
	"github.com/btouchard/readyalert/internal/notify"
	"github.com/btouchard/readyalert/internal/store"
)

// Feed delivers a tick whenever transport events change.
type Feed interface {
	Subscribe() (<-chan store.Change, func())
}

// Source returns the current snapshot of today's events.
type Source interface {
	FetchTodaysEvents(ctx context.Context, now time.Time) ([]store.EventWithResident, error)
}

// Watcher re-fetches the snapshot on every feed tick, runs it through a
// Detector and forwards the resulting signals to a notifier.
type Watcher struct {
	feed     Feed
	source   Source
	detector *Detector
	notifier notify.Notifier
	slots    map[SignalKind]*Slot
	now      func() time.Time
	started  chan struct{}
}

// Options configures a Watcher.
type Options struct {
	DedupeRetention   time.Duration
	TerminalRetention time.Duration
	SignalHold        time.Duration
}

// NewWatcher creates a Watcher.
func NewWatcher(feed Feed, source Source, n notify.Notifier, opts Options) *Watcher {
	return &Watcher{
		feed:     feed,
		source:   source,
		detector: NewDetector(opts.DedupeRetention, opts.TerminalRetention),
		notifier: n,
		slots: map[SignalKind]*Slot{
			SignalNew:   NewSlot(opts.SignalHold),
			SignalReady: NewSlot(opts.SignalHold),
		},
		now:     time.Now,
		started: make(chan struct{}),
	}
}

// Started is closed once Run has subscribed and taken its baseline snapshot.
func (w *Watcher) Started() <-chan struct{} {
	return w.started
}

// Run blocks until ctx is cancelled or the feed closes.
func (w *Watcher) Run(ctx context.Context) error {
	ticks, cancel := w.feed.Subscribe()
	defer cancel()

	w.Refresh(ctx)
	close(w.started)
	slog.Info("watcher started", "tracked", len(w.detector.prevIDs))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-ticks:
			if !ok {
				slog.Info("watcher feed closed")
				return nil
			}
			drain(ticks)
			w.Refresh(ctx)
		}
	}
}

// drain discards queued ticks so a burst of changes costs one re-fetch.
func drain(ticks <-chan store.Change) {
	for {
		select {
		case _, ok := <-ticks:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

// Refresh fetches one snapshot and dispatches its signals. A failed fetch
// leaves the detector state untouched.
func (w *Watcher) Refresh(ctx context.Context) {
	events, err := w.source.FetchTodaysEvents(ctx, w.now())
	if err != nil {
		slog.Warn("watcher refresh failed", "error", err)
		return
	}

	for _, sig := range w.detector.Observe(events) {
		metrics.DetectorSignalsTotal.WithLabelValues(string(sig.Kind)).Inc()
		if !w.slots[sig.Kind].Set(sig) {
			continue
		}
		w.notifier.Notify(toNotification(sig))
	}
}

// Latest returns and clears the most recent signal of kind, if it is still held.
func (w *Watcher) Latest(kind SignalKind) (Signal, bool) {
	slot, ok := w.slots[kind]
	if !ok {
		return Signal{}, false
	}
	return slot.Take()
}

func toNotification(sig Signal) notify.Event {
	ev := sig.Event
	n := notify.Event{
		EventID:      ev.ID,
		ResidentName: ev.ResidentName,
		RoomNumber:   ev.RoomNumber,
		Status:       string(ev.Status),
		PickupTime:   ev.PickupTime,
	}
	switch sig.Kind {
	case SignalReady:
		n.Kind = notify.KindReady
		n.Message = ev.ResidentName + " (Room " + ev.RoomNumber + ") is ready for pickup!"
	default:
		n.Kind = notify.KindNew
		n.Message = "New pickup scheduled: " + ev.ResidentName + " (Room " + ev.RoomNumber + ")"
	}
	return n
}
