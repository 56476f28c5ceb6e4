package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/btouchard/readyalert/internal/pickup"
)

const eventNotFound = "Event not found"

func (h *handlers) listEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.Pickup.TodaysEvents(r.Context())
	if err != nil {
		fail(w, r, err, eventNotFound)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

type createEventRequest struct {
	ResidentID          string `json:"resident_id"`
	PickupTime          string `json:"pickup_time"`
	EventType           string `json:"event_type"`
	Purpose             string `json:"purpose"`
	Notes               string `json:"notes"`
	FamilyPhoneOverride string `json:"family_phone_override"`
}

func (h *handlers) createEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if !decode(w, r, &req) {
		return
	}

	var pickupAt time.Time
	if req.PickupTime != "" {
		t, err := time.Parse(time.RFC3339, req.PickupTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "pickup_time must be an RFC 3339 timestamp")
			return
		}
		pickupAt = t
	}

	ev, err := h.Pickup.CreateEvent(r.Context(), pickup.CreateEventInput{
		ResidentID:          req.ResidentID,
		PickupTime:          pickupAt,
		EventType:           req.EventType,
		Purpose:             req.Purpose,
		Notes:               req.Notes,
		FamilyPhoneOverride: req.FamilyPhoneOverride,
	})
	if err != nil {
		fail(w, r, err, "Resident not found")
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

func (h *handlers) resetEvents(w http.ResponseWriter, r *http.Request) {
	n, err := h.Pickup.ResetDemo(r.Context())
	if err != nil {
		fail(w, r, err, eventNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Demo data reset", "deleted": n})
}

func (h *handlers) getEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := h.Pickup.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err, eventNotFound)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (h *handlers) updateEvent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if !decode(w, r, &req) {
		return
	}

	ev, err := h.Pickup.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		fail(w, r, err, eventNotFound)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (h *handlers) deleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.Pickup.DeleteEvent(r.Context(), chi.URLParam(r, "id")); err != nil {
		fail(w, r, err, eventNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *handlers) markReady(w http.ResponseWriter, r *http.Request) {
	h.ready(w, r, chi.URLParam(r, "id"))
}

func (h *handlers) sendReadySMS(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EventID string `json:"eventId"`
	}
	if !decode(w, r, &req) {
		return
	}
	h.ready(w, r, req.EventID)
}

func (h *handlers) ready(w http.ResponseWriter, r *http.Request, eventID string) {
	res, err := h.Pickup.MarkReady(r.Context(), eventID)
	if err != nil {
		fail(w, r, err, eventNotFound)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) listNotifications(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := h.Pickup.Notifications(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		fail(w, r, err, eventNotFound)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *handlers) listResidents(w http.ResponseWriter, r *http.Request) {
	residents, err := h.Pickup.ListResidents(r.Context())
	if err != nil {
		fail(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, residents)
}

func (h *handlers) testSMS(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Pickup.TestSMS(r.Context()))
}
