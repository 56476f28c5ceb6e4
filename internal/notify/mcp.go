package notify

import (
	"log/slog"
	"sync"
	"time"
)

// MCPSender abstracts the mcp-go server notification methods.
type MCPSender interface {
	SendNotificationToAllClients(method string, params map[string]any)
}

// MCPNotifier pushes pickup signals to connected MCP clients.
type MCPNotifier struct {
	sender   MCPSender
	debounce time.Duration

	mu       sync.Mutex
	lastSent map[string]time.Time // eventID → last status notification time
}

// NewMCPNotifier creates an MCPNotifier with the given debounce interval
// for status events. New and ready events are always sent immediately.
func NewMCPNotifier(sender MCPSender, debounce time.Duration) *MCPNotifier {
	if debounce <= 0 {
		debounce = 3 * time.Second
	}
	return &MCPNotifier{
		sender:   sender,
		debounce: debounce,
		lastSent: make(map[string]time.Time),
	}
}

// Notify sends an MCP notifications/message for the given event.
func (n *MCPNotifier) Notify(event Event) {
	switch event.Kind {
	case KindStatus:
		if !n.allow(event.EventID) {
			return
		}
		n.send(event, "info")
	case KindNew:
		n.send(event, "info")
	case KindReady:
		n.clearDebounce(event.EventID)
		n.send(event, "notice")
	default:
		slog.Debug("mcp notifier: unknown event kind", "kind", event.Kind)
	}
}

func (n *MCPNotifier) allow(eventID string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if last, ok := n.lastSent[eventID]; ok && time.Since(last) < n.debounce {
		return false
	}
	n.lastSent[eventID] = time.Now()
	return true
}

func (n *MCPNotifier) send(event Event, level string) {
	data := map[string]any{
		"kind":     event.Kind,
		"event_id": event.EventID,
		"resident": event.ResidentName,
		"room":     event.RoomNumber,
		"message":  event.Message,
	}
	if event.Status != "" {
		data["status"] = event.Status
	}
	n.sender.SendNotificationToAllClients("notifications/message", map[string]any{
		"level":  level,
		"logger": "readyalert",
		"data":   data,
	})
}

// clearDebounce drops the debounce entry once an event is ready.
func (n *MCPNotifier) clearDebounce(eventID string) {
	n.mu.Lock()
	delete(n.lastSent, eventID)
	n.mu.Unlock()
}
