package api

import (
	"net/http"
	"unicode/utf8"

	"github.com/btouchard/readyalert/internal/pickup"
	"github.com/btouchard/readyalert/internal/push"
	"github.com/btouchard/readyalert/internal/store"
)

type subscribeRequest struct {
	Subscription *struct {
		Endpoint string    `json:"endpoint"`
		Keys     push.Keys `json:"keys"`
	} `json:"subscription"`
	ViewType string `json:"viewType"`
}

func (h *handlers) subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Subscription == nil {
		writeError(w, http.StatusBadRequest, "Invalid subscription object")
		return
	}

	err := h.Push.Subscribe(r.Context(), push.SubscribeInput{
		Endpoint:  req.Subscription.Endpoint,
		Keys:      req.Subscription.Keys,
		Audience:  store.Audience(req.ViewType),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		fail(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *handlers) unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Endpoint string `json:"endpoint"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Endpoint == "" {
		writeError(w, http.StatusBadRequest, "endpoint is required")
		return
	}

	if err := h.Push.Unsubscribe(r.Context(), req.Endpoint); err != nil {
		fail(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *handlers) sendPush(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title    string `json:"title"`
		Body     string `json:"body"`
		Tag      string `json:"tag"`
		ViewType string `json:"viewType"`
		EventID  string `json:"eventId"`
		Audience string `json:"audience"`
	}
	if !decode(w, r, &req) {
		return
	}

	res, err := h.Pickup.SendPush(r.Context(), pickup.SendPushInput{
		Title:    req.Title,
		Body:     req.Body,
		Tag:      req.Tag,
		EventID:  req.EventID,
		ViewType: req.ViewType,
		Audience: req.Audience,
	})
	if err != nil {
		fail(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"sent":    res.Sent,
		"failed":  res.Failed,
		"total":   res.Total,
	})
}

type subscriptionView struct {
	ID              string `json:"id"`
	ViewType        string `json:"view_type"`
	UserAgent       string `json:"user_agent,omitempty"`
	CreatedAt       string `json:"created_at"`
	EndpointPreview string `json:"endpoint_preview"`
}

func (h *handlers) pushDebug(w http.ResponseWriter, r *http.Request) {
	subs, err := h.Push.Subscriptions(r.Context(), store.AudienceAll)
	if err != nil {
		fail(w, r, err, "")
		return
	}

	views := make([]subscriptionView, 0, len(subs))
	for _, s := range subs {
		views = append(views, subscriptionView{
			ID:              s.ID,
			ViewType:        string(s.Audience),
			UserAgent:       truncate(s.UserAgent, 50),
			CreatedAt:       s.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
			EndpointPreview: truncate(s.Endpoint, 60) + "...",
		})
	}

	var preview any
	if k := h.PushCfg.VAPIDPublicKey; k != "" {
		preview = truncate(k, 20) + "..."
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"config": map[string]any{
			"vapidPublicKeySet":     h.PushCfg.VAPIDPublicKey != "",
			"vapidPrivateKeySet":    h.PushCfg.VAPIDPrivateKey != "",
			"vapidSubjectSet":       h.PushCfg.Subject != "",
			"vapidPublicKeyPreview": preview,
		},
		"subscriptions":     views,
		"subscriptionCount": len(views),
	})
}

func (h *handlers) vapidKey(w http.ResponseWriter, r *http.Request) {
	if h.PushCfg.VAPIDPublicKey == "" {
		writeError(w, http.StatusNotFound, "push notifications are not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"publicKey": h.PushCfg.VAPIDPublicKey})
}

// truncate keeps at most n runes of s.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
