package pickup

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/btouchard/readyalert/internal/notify"
	"github.com/btouchard/readyalert/internal/push"
	"github.com/btouchard/readyalert/internal/sms"
	"github.com/btouchard/readyalert/internal/store"
)

// CreateEventInput holds the operator-supplied fields of a new pickup.
type CreateEventInput struct {
	ResidentID          string
	PickupTime          time.Time
	EventType           string
	Purpose             string
	Notes               string
	FamilyPhoneOverride string
}

// CreateEvent schedules a pickup and announces it to every subscribed device.
// A failed announcement never fails the creation.
func (s *Service) CreateEvent(ctx context.Context, in CreateEventInput) (*store.Event, error) {
	if in.ResidentID == "" || in.PickupTime.IsZero() {
		return nil, invalid("resident_id and pickup_time are required")
	}
	eventType := store.EventType(in.EventType)
	if eventType != "" && !eventType.Valid() {
		return nil, invalid("invalid event_type %q", in.EventType)
	}

	resident, err := s.store.GetResident(ctx, in.ResidentID)
	if err != nil {
		return nil, err
	}

	ev, err := s.store.CreateEvent(ctx, store.NewEvent{
		ResidentID:          in.ResidentID,
		PickupTime:          in.PickupTime,
		EventType:           eventType,
		Purpose:             in.Purpose,
		Notes:               in.Notes,
		FamilyPhoneOverride: in.FamilyPhoneOverride,
	})
	if err != nil {
		return nil, err
	}

	pickupAt := in.PickupTime.In(s.loc).Format("3:04 PM")
	res, err := s.push.Send(ctx, push.Payload{
		Title: "New Pickup: " + resident.FullName,
		Body:  fmt.Sprintf("Room %s • %s", resident.RoomNumber, pickupAt),
		Tag:   ev.ID,
		Data:  map[string]any{"eventId": ev.ID},
	}, store.AudienceAll)
	if err != nil {
		slog.Warn("new pickup push failed", "event_id", ev.ID, "error", err)
	} else {
		slog.Debug("new pickup push sent", "event_id", ev.ID, "sent", res.Sent, "failed", res.Failed)
	}

	s.notifier.Notify(notify.Event{
		Kind:         notify.KindNew,
		EventID:      ev.ID,
		ResidentName: resident.FullName,
		RoomNumber:   resident.RoomNumber,
		Status:       string(ev.Status),
		PickupTime:   ev.PickupTime,
		Message:      fmt.Sprintf("New pickup scheduled: %s (Room %s) at %s", resident.FullName, resident.RoomNumber, pickupAt),
	})

	slog.Info("event created", "event_id", ev.ID, "resident_id", ev.ResidentID)
	return ev, nil
}

// UpdateStatus sets an event's status. Any known status is accepted from
// any other; concurrent writers resolve last-write-wins.
func (s *Service) UpdateStatus(ctx context.Context, eventID, status string) (*store.Event, error) {
	if status == "" {
		return nil, invalid("status is required")
	}
	st := store.Status(status)
	if !st.Valid() {
		names := make([]string, len(store.Statuses))
		for i, v := range store.Statuses {
			names[i] = string(v)
		}
		return nil, invalid("Invalid status. Must be one of: %s", strings.Join(names, ", "))
	}

	ev, err := s.store.UpdateEventStatus(ctx, eventID, st)
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(notify.Event{
		Kind:    notify.KindStatus,
		EventID: ev.ID,
		Status:  string(ev.Status),
		Message: "status changed to " + string(ev.Status),
	})
	return ev, nil
}

// GetEvent returns one event with its resident fields.
func (s *Service) GetEvent(ctx context.Context, eventID string) (*store.EventWithResident, error) {
	return s.store.GetEvent(ctx, eventID)
}

// TodaysEvents returns today's non-cancelled events in the facility's time zone.
func (s *Service) TodaysEvents(ctx context.Context) ([]store.EventWithResident, error) {
	return s.store.FetchTodaysEvents(ctx, s.now().In(s.loc))
}

// FetchTodaysEvents lets the Service act as a watch source. now is honoured
// as given.
func (s *Service) FetchTodaysEvents(ctx context.Context, now time.Time) ([]store.EventWithResident, error) {
	return s.store.FetchTodaysEvents(ctx, now.In(s.loc))
}

// DeleteEvent removes one event.
func (s *Service) DeleteEvent(ctx context.Context, eventID string) error {
	return s.store.DeleteEvent(ctx, eventID)
}

// ResetDemo deletes every event and returns how many were removed.
func (s *Service) ResetDemo(ctx context.Context) (int64, error) {
	n, err := s.store.ResetEvents(ctx)
	if err != nil {
		return 0, err
	}
	slog.Info("demo data reset", "events_deleted", n)
	return n, nil
}

// ListResidents returns the active residents ordered by room.
func (s *Service) ListResidents(ctx context.Context) ([]store.Resident, error) {
	return s.store.ListActiveResidents(ctx)
}

// Notifications returns the audit trail for an event, newest first.
func (s *Service) Notifications(ctx context.Context, eventID string, limit int) ([]store.NotificationEntry, error) {
	if _, err := s.store.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return s.store.ListNotifications(ctx, store.NotificationFilter{EventID: eventID, Limit: limit})
}

// SendPushInput is an operator-composed push message.
type SendPushInput struct {
	Title    string
	Body     string
	Tag      string
	EventID  string
	ViewType string
	Audience string // "all" (or empty), "admin" or "floor"
}

// SendPush delivers an ad hoc message. When it concerns an event and at
// least one device received it, an audit entry is written.
func (s *Service) SendPush(ctx context.Context, in SendPushInput) (push.Result, error) {
	if in.Title == "" || in.Body == "" {
		return push.Result{}, invalid("title and body are required")
	}
	audience, ok := store.ParseAudience(in.Audience)
	if !ok {
		return push.Result{}, invalid("invalid audience %q", in.Audience)
	}

	data := map[string]any{}
	if in.EventID != "" {
		data["eventId"] = in.EventID
	}
	if in.ViewType != "" {
		data["viewType"] = in.ViewType
	}

	res, err := s.push.Send(ctx, push.Payload{Title: in.Title, Body: in.Body, Tag: in.Tag, Data: data}, audience)
	if err != nil {
		return push.Result{}, err
	}

	if in.EventID != "" && res.Sent > 0 {
		s.audit(ctx, &store.NotificationEntry{
			EventID:   in.EventID,
			Channel:   store.ChannelPush,
			Recipient: fmt.Sprintf("%d devices", res.Sent),
			Message:   in.Title + ": " + in.Body,
			Status:    store.OutcomeSent,
		})
	}
	return res, nil
}

// SMSDiagnostics is the outcome of TestSMS.
type SMSDiagnostics struct {
	sms.Result
	Debug SMSDebug `json:"debug"`
}

// SMSDebug describes the SMS configuration without exposing secrets.
type SMSDebug struct {
	DemoPhone        string `json:"demoPhone"`
	TwilioConfigured bool   `json:"twilioConfigured"`
	FromNumber       string `json:"fromNumber"`
	DeliveryMode     string `json:"deliveryMode"`
}

// TestSMS sends a sample ready message to the demo phone.
func (s *Service) TestSMS(ctx context.Context) SMSDiagnostics {
	res := s.sms.SendReady(ctx, sms.Request{
		To:           s.demoPhone,
		ResidentName: "Test Resident",
		RoomNumber:   "101",
	})

	st := s.sms.Status()
	debug := SMSDebug{
		DemoPhone:        "NOT SET",
		TwilioConfigured: st.Configured,
		FromNumber:       st.FromNumber,
		DeliveryMode:     st.DeliveryMode,
	}
	if s.demoPhone != "" {
		debug.DemoPhone = sms.Mask(s.demoPhone)
	}
	if debug.FromNumber == "" {
		debug.FromNumber = "NOT SET"
	}
	return SMSDiagnostics{Result: res, Debug: debug}
}
