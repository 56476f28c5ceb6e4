// Package pickup implements the operator-facing use cases: scheduling
// pickups, moving them through their lifecycle and notifying everyone who
// cares when a resident is ready.
package pickup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/btouchard/readyalert/internal/metrics"
	"github.com/btouchard/readyalert/internal/notify"
	"github.com/btouchard/readyalert/internal/push"
	"github.com/btouchard/readyalert/internal/sms"
	"github.com/btouchard/readyalert/internal/store"
)

// ReasonNoPhone is reported when no recipient phone could be resolved.
const ReasonNoPhone = "no phone number configured"

// ValidationError reports invalid caller input. No side effects have
// happened when it is returned.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// SMSSender sends ready text messages.
type SMSSender interface {
	SendReady(ctx context.Context, req sms.Request) sms.Result
	Status() sms.Status
}

// Pusher fans a payload out to an audience.
type Pusher interface {
	Send(ctx context.Context, payload push.Payload, audience store.Audience) (push.Result, error)
}

// Service coordinates the store, the delivery channels and the audit log.
type Service struct {
	store     store.Store
	sms       SMSSender
	push      Pusher
	notifier  notify.Notifier
	demoPhone string
	loc       *time.Location
	now       func() time.Time
}

// Options configures a Service.
type Options struct {
	// DemoPhone, when set, receives every ready SMS.
	DemoPhone string
	Location  *time.Location
}

// NewService creates a Service. n may be nil.
func NewService(s store.Store, smsSender SMSSender, pusher Pusher, n notify.Notifier, opts Options) *Service {
	if n == nil {
		n = notify.NewHub()
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		store:     s,
		sms:       smsSender,
		push:      pusher,
		notifier:  n,
		demoPhone: strings.TrimSpace(opts.DemoPhone),
		loc:       loc,
		now:       time.Now,
	}
}

// ReadyResult is the combined outcome of MarkReady.
type ReadyResult struct {
	Success   bool   `json:"success"`
	SMSSent   bool   `json:"smsSent"`
	Reason    string `json:"reason,omitempty"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
	PushSent  int    `json:"pushSent"`
}

// MarkReady moves an event to ready and notifies the family by SMS and the
// admin desk by push. Only a missing event or a store failure while
// updating the status is returned as an error; channel failures are
// reported in the result.
func (s *Service) MarkReady(ctx context.Context, eventID string) (*ReadyResult, error) {
	if eventID == "" {
		return nil, invalid("eventId is required")
	}

	ev, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	res := &ReadyResult{Success: true}
	summary := fmt.Sprintf("%s (Room %s) is ready for pickup!", ev.ResidentName, ev.RoomNumber)

	if phone := s.recipientPhone(ev); phone == "" {
		res.Reason = ReasonNoPhone
		slog.Info("ready sms skipped", "event_id", ev.ID, "reason", ReasonNoPhone)
	} else {
		out := s.sms.SendReady(ctx, sms.Request{
			To:           phone,
			ResidentName: ev.ResidentName,
			RoomNumber:   ev.RoomNumber,
		})
		res.SMSSent = out.Success
		res.MessageID = out.MessageID
		res.Error = out.Error

		outcome := store.OutcomeSent
		if !out.Success {
			outcome = store.OutcomeFailed
		}
		s.audit(ctx, &store.NotificationEntry{
			EventID:   ev.ID,
			Channel:   store.ChannelSMS,
			Recipient: phone,
			Message:   summary,
			Status:    outcome,
			Error:     out.Error,
		})
	}

	if _, err := s.store.UpdateEventStatus(ctx, ev.ID, store.StatusReady); err != nil {
		return nil, fmt.Errorf("marking event ready: %w", err)
	}
	metrics.ReadyTransitionsTotal.Inc()

	pushed, err := s.push.Send(ctx, push.Payload{
		Title: ev.ResidentName + " is READY!",
		Body:  fmt.Sprintf("Room %s • Waiting in the lobby", ev.RoomNumber),
		Tag:   ev.ID,
		Data:  map[string]any{"eventId": ev.ID, "viewType": string(store.AudienceAdmin)},
	}, store.AudienceAdmin)
	if err != nil {
		slog.Warn("ready push failed", "event_id", ev.ID, "error", err)
	}
	res.PushSent = pushed.Sent

	if pushed.Sent > 0 {
		s.audit(ctx, &store.NotificationEntry{
			EventID:   ev.ID,
			Channel:   store.ChannelPush,
			Recipient: fmt.Sprintf("%d admin devices", pushed.Sent),
			Message:   fmt.Sprintf("%s (Room %s) is ready!", ev.ResidentName, ev.RoomNumber),
			Status:    store.OutcomeSent,
		})
	}

	s.notifier.Notify(notify.Event{
		Kind:         notify.KindReady,
		EventID:      ev.ID,
		ResidentName: ev.ResidentName,
		RoomNumber:   ev.RoomNumber,
		Status:       string(store.StatusReady),
		PickupTime:   ev.PickupTime,
		Message:      summary,
	})

	slog.Info("event marked ready",
		"event_id", ev.ID,
		"sms_sent", res.SMSSent,
		"push_sent", res.PushSent)
	return res, nil
}

// recipientPhone applies the precedence demo override, then per-event
// override, then the resident's family phone.
func (s *Service) recipientPhone(ev *store.EventWithResident) string {
	if s.demoPhone != "" {
		return s.demoPhone
	}
	return strings.TrimSpace(ev.FamilyPhone())
}

// audit appends an entry; a failure is logged and never undoes the caller's work.
func (s *Service) audit(ctx context.Context, e *store.NotificationEntry) {
	if err := s.store.AppendNotification(ctx, e); err != nil {
		slog.Warn("failed to append notification log",
			"event_id", e.EventID,
			"channel", string(e.Channel),
			"error", err)
	}
}
