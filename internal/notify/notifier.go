// Package notify fans pickup signals out to every interested channel.
package notify

import (
	"log/slog"
	"sync"
	"time"
)

// Kinds of pickup signal.
const (
	KindNew    = "event.new"
	KindReady  = "event.ready"
	KindStatus = "event.status"
)

// Event represents a pickup lifecycle notification.
type Event struct {
	Kind         string
	EventID      string
	ResidentName string
	RoomNumber   string
	Status       string
	PickupTime   time.Time
	Message      string
}

// Notifier delivers pickup notifications.
type Notifier interface {
	Notify(event Event)
}

// NotifierFunc adapts a function to a Notifier.
type NotifierFunc func(Event)

func (f NotifierFunc) Notify(event Event) { f(event) }

// Hub dispatches events to multiple notifiers.
type Hub struct {
	mu        sync.RWMutex
	notifiers []Notifier
}

// NewHub creates a Hub with the given notifiers.
func NewHub(notifiers ...Notifier) *Hub {
	return &Hub{notifiers: notifiers}
}

// Add registers a notifier after construction, for channels that depend on
// the components the hub feeds.
func (h *Hub) Add(n Notifier) {
	h.mu.Lock()
	h.notifiers = append(h.notifiers, n)
	h.mu.Unlock()
}

// Notify sends an event to all registered notifiers.
func (h *Hub) Notify(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, n := range h.notifiers {
		go n.Notify(event)
	}
}

// LogNotifier writes every event to the structured log.
type LogNotifier struct{}

func (LogNotifier) Notify(event Event) {
	slog.Info("pickup notification",
		"kind", event.Kind,
		"event_id", event.EventID,
		"resident", event.ResidentName,
		"room", event.RoomNumber,
		"status", event.Status)
}
