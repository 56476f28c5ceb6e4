package watch

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/btouchard/readyalert/internal/store"
)

// RemoteSource fetches today's events from a readyalert server.
type RemoteSource struct {
	baseURL string
	client  *http.Client
}

// NewRemoteSource creates a RemoteSource for the server at baseURL.
func NewRemoteSource(baseURL string, client *http.Client) *RemoteSource {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &RemoteSource{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// FetchTodaysEvents ignores now; the server decides what "today" is.
func (r *RemoteSource) FetchTodaysEvents(ctx context.Context, _ time.Time) ([]store.EventWithResident, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/api/events", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching events: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetching events: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var events []store.EventWithResident
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		return nil, fmt.Errorf("decoding events: %w", err)
	}
	return events, nil
}

// RemoteFeed follows a server's /api/events/stream, reconnecting after
// failures. Every (re)connect produces a tick so subscribers re-fetch
// anything missed while disconnected.
type RemoteFeed struct {
	url            string
	client         *http.Client
	reconnectDelay time.Duration
}

// NewRemoteFeed creates a RemoteFeed for the server at baseURL.
func NewRemoteFeed(baseURL string, reconnectDelay time.Duration) *RemoteFeed {
	if reconnectDelay <= 0 {
		reconnectDelay = 3 * time.Second
	}
	return &RemoteFeed{
		url:            strings.TrimRight(baseURL, "/") + "/api/events/stream",
		client:         &http.Client{}, // streaming: no overall timeout
		reconnectDelay: reconnectDelay,
	}
}

// Subscribe starts following the stream. The returned func stops it and
// closes the channel.
func (f *RemoteFeed) Subscribe() (<-chan store.Change, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan store.Change, 8)
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer close(ch)
		for {
			if err := f.follow(ctx, ch); err != nil && ctx.Err() == nil {
				slog.Warn("event stream disconnected", "url", f.url, "error", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(f.reconnectDelay):
			}
		}
	}()

	return ch, func() {
		cancel()
		<-done
	}
}

func (f *RemoteFeed) follow(ctx context.Context, ch chan<- store.Change) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}

	// Changes made between the caller's last fetch and this point were
	// never streamed.
	emit(ch, store.Change{Op: store.OpReset, At: time.Now()})

	return readStream(resp.Body, func(c store.Change) { emit(ch, c) })
}

// readStream parses server-sent events, calling fn for each data payload.
func readStream(r io.Reader, fn func(store.Change)) error {
	sc := bufio.NewScanner(r)
	var data strings.Builder
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if data.Len() > 0 {
				var c store.Change
				if err := json.Unmarshal([]byte(data.String()), &c); err != nil {
					slog.Debug("skipping malformed stream event", "error", err)
				} else {
					fn(c)
				}
				data.Reset()
			}
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return io.ErrUnexpectedEOF
}

func emit(ch chan<- store.Change, c store.Change) {
	select {
	case ch <- c:
	default:
	}
}
