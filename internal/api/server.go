// Package api exposes the pickup workflow over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/btouchard/readyalert/internal/api/middleware"
	"github.com/btouchard/readyalert/internal/config"
	"github.com/btouchard/readyalert/internal/pickup"
	"github.com/btouchard/readyalert/internal/push"
	"github.com/btouchard/readyalert/internal/store"
)

// ChangeFeed delivers a tick whenever transport events change.
type ChangeFeed interface {
	Subscribe() (<-chan store.Change, func())
}

// Pinger checks the store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps holds everything the HTTP handlers need.
type Deps struct {
	Pickup    *pickup.Service
	Push      *push.Gateway
	Feed      ChangeFeed
	Store     Pinger
	PushCfg   config.PushConfig
	RateLimit config.RateLimitConfig

	// MCP, when set, is mounted at /mcp.
	MCP http.Handler

	// Heartbeat is the keep-alive interval of the change stream.
	Heartbeat time.Duration
}

type handlers struct {
	*Deps
}

// NewRouter builds the HTTP handler tree.
func NewRouter(d *Deps) http.Handler {
	if d.Heartbeat <= 0 {
		d.Heartbeat = 25 * time.Second
	}
	h := &handlers{Deps: d}

	r := chi.NewRouter()
	r.Use(middleware.SecurityHeaders)

	r.Get("/health", h.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(d.RateLimit))

		r.Route("/api", func(r chi.Router) {
			r.Route("/events", func(r chi.Router) {
				r.Get("/", h.listEvents)
				r.Post("/", h.createEvent)
				r.Delete("/", h.resetEvents)
				r.Get("/stream", h.streamEvents)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", h.getEvent)
					r.Patch("/", h.updateEvent)
					r.Delete("/", h.deleteEvent)
					r.Post("/ready", h.markReady)
					r.Get("/notifications", h.listNotifications)
				})
			})

			r.Post("/send-ready-sms", h.sendReadySMS)
			r.Get("/residents", h.listResidents)
			r.Get("/keepalive", h.keepalive)
			r.Get("/test-sms", h.testSMS)

			r.Route("/push", func(r chi.Router) {
				r.Post("/subscribe", h.subscribe)
				r.Delete("/subscribe", h.unsubscribe)
				r.Post("/send", h.sendPush)
				r.Get("/debug", h.pushDebug)
				r.Get("/vapid-key", h.vapidKey)
			})
		})

		if d.MCP != nil {
			r.Handle("/mcp", d.MCP)
		}
	})

	return r
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (h *handlers) keepalive(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "Database pinged successfully",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
