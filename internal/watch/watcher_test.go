package watch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btouchard/readyalert/internal/notify"
	"github.com/btouchard/readyalert/internal/store"
)

type collector struct {
	mu     sync.Mutex
	events []notify.Event
}

func (c *collector) Notify(e notify.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *collector) kinds() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := []string{}
	for _, e := range c.events {
		out = append(out, e.Kind)
	}
	return out
}

func newWatchStore(t *testing.T) (*store.SQLiteStore, *store.Resident) {
	t.Helper()
	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	r := &store.Resident{FullName: "Margaret Thompson", RoomNumber: "101", IsActive: true}
	require.NoError(t, s.CreateResident(context.Background(), r))
	return s, r
}

func TestWatcher_Run_SignalsNewAndReadyOnce(t *testing.T) {
	t.Parallel()
	s, r := newWatchStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := &collector{}
	w := NewWatcher(s, s, c, Options{DedupeRetention: time.Hour, TerminalRetention: time.Hour, SignalHold: time.Hour})

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case <-w.Started():
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not start")
	}

	e, err := s.CreateEvent(ctx, store.NewEvent{ResidentID: r.ID, PickupTime: time.Now()})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(c.kinds()) == 1 }, 2*time.Second, 5*time.Millisecond)

	_, err = s.UpdateEventStatus(ctx, e.ID, store.StatusPrepping)
	require.NoError(t, err)
	_, err = s.UpdateEventStatus(ctx, e.ID, store.StatusReady)
	require.NoError(t, err)
	_, err = s.UpdateEventStatus(ctx, e.ID, store.StatusReady)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(c.kinds()) == 2 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []string{notify.KindNew, notify.KindReady}, c.kinds())

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

type failingSource struct{ calls int }

func (f *failingSource) FetchTodaysEvents(context.Context, time.Time) ([]store.EventWithResident, error) {
	f.calls++
	return nil, assert.AnError
}

func TestWatcher_Refresh_FailureKeepsState(t *testing.T) {
	t.Parallel()
	src := &failingSource{}
	w := NewWatcher(store.NewFeed(), src, &collector{}, Options{SignalHold: time.Millisecond})

	w.Refresh(context.Background())
	assert.Equal(t, 1, src.calls)
	assert.False(t, w.detector.baselined)
}

func TestWatcher_Latest_HoldsLastSignal(t *testing.T) {
	t.Parallel()
	s, r := newWatchStore(t)
	ctx := context.Background()
	w := NewWatcher(s, s, &collector{}, Options{DedupeRetention: time.Hour, TerminalRetention: time.Hour, SignalHold: time.Hour})

	w.Refresh(ctx)
	_, err := s.CreateEvent(ctx, store.NewEvent{ResidentID: r.ID, PickupTime: time.Now()})
	require.NoError(t, err)
	w.Refresh(ctx)

	sig, ok := w.Latest(SignalNew)
	require.True(t, ok)
	assert.Equal(t, "Margaret Thompson", sig.Event.ResidentName)

	_, ok = w.Latest(SignalNew)
	assert.False(t, ok)
}

func TestReadStream_ParsesDataEvents(t *testing.T) {
	t.Parallel()
	raw := ": connected\n\n" +
		"event: change\ndata: {\"op\":\"insert\",\"event_id\":\"e1\"}\n\n" +
		"data: not-json\n\n" +
		"event: change\ndata: {\"op\":\"update\",\"event_id\":\"e1\"}\n\n"

	var got []store.Change
	err := readStream(strings.NewReader(raw), func(c store.Change) { got = append(got, c) })

	assert.Error(t, err, "stream end is reported")
	require.Len(t, got, 2)
	assert.Equal(t, store.OpInsert, got[0].Op)
	assert.Equal(t, store.OpUpdate, got[1].Op)
}

func TestRemoteSource_FetchTodaysEvents(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/events", r.URL.Path)
		_ = json.NewEncoder(w).Encode([]store.EventWithResident{ev("a", store.StatusReady)})
	}))
	defer srv.Close()

	events, err := NewRemoteSource(srv.URL+"/", nil).FetchTodaysEvents(context.Background(), time.Now())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, store.StatusReady, events[0].Status)
}

func TestRemoteSource_ErrorStatus(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewRemoteSource(srv.URL, nil).FetchTodaysEvents(context.Background(), time.Now())
	assert.ErrorContains(t, err, "500")
}

func TestRemoteFeed_DeliversChanges(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("data: {\"op\":\"insert\",\"event_id\":\"e9\"}\n\n"))
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	ch, stop := NewRemoteFeed(srv.URL, 10*time.Millisecond).Subscribe()
	defer stop()

	var got []store.Change
	for len(got) < 2 {
		select {
		case c := <-ch:
			got = append(got, c)
		case <-time.After(2 * time.Second):
			t.Fatalf("received %d changes, want 2", len(got))
		}
	}
	assert.Equal(t, store.OpReset, got[0].Op, "connecting resyncs")
	assert.Equal(t, "e9", got[1].EventID)
}

func TestRemoteFeed_ReconnectResyncs(t *testing.T) {
	t.Parallel()
	var conns atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conns.Add(1)
		w.Header().Set("Content-Type", "text/event-stream")
		w.(http.Flusher).Flush()
	}))
	defer srv.Close()

	ch, stop := NewRemoteFeed(srv.URL, 10*time.Millisecond).Subscribe()
	defer stop()

	for i := range 2 {
		select {
		case c := <-ch:
			assert.Equal(t, store.OpReset, c.Op)
		case <-time.After(2 * time.Second):
			t.Fatalf("no resync tick for connection %d", i+1)
		}
	}
	assert.GreaterOrEqual(t, conns.Load(), int32(2))
}
