package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("not found")

// Store is the persistence interface for readyalert.
type Store interface {
	// Residents
	CreateResident(ctx context.Context, r *Resident) error
	GetResident(ctx context.Context, id string) (*Resident, error)
	ListActiveResidents(ctx context.Context) ([]Resident, error)

	// Transport events
	CreateEvent(ctx context.Context, in NewEvent) (*Event, error)
	GetEvent(ctx context.Context, id string) (*EventWithResident, error)
	FetchTodaysEvents(ctx context.Context, now time.Time) ([]EventWithResident, error)
	UpdateEventStatus(ctx context.Context, id string, status Status) (*Event, error)
	DeleteEvent(ctx context.Context, id string) error
	ResetEvents(ctx context.Context) (int64, error)

	// Push subscriptions
	UpsertSubscription(ctx context.Context, s *Subscription) error
	DeleteSubscription(ctx context.Context, endpoint string) error
	ListSubscriptions(ctx context.Context, audience Audience) ([]Subscription, error)

	// Audit log
	AppendNotification(ctx context.Context, e *NotificationEntry) error
	ListNotifications(ctx context.Context, f NotificationFilter) ([]NotificationEntry, error)

	// Change feed
	Subscribe() (<-chan Change, func())

	// Maintenance
	Ping(ctx context.Context) error
	Close() error
}

// Status is the lifecycle state of a transport event.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusPrepAlert Status = "prep_alert"
	StatusPrepping  Status = "prepping"
	StatusReady     Status = "ready"
	StatusDeparted  Status = "departed"
	StatusCancelled Status = "cancelled"
)

// Statuses lists every valid status in lifecycle order.
var Statuses = []Status{
	StatusScheduled, StatusPrepAlert, StatusPrepping, StatusReady, StatusDeparted, StatusCancelled,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are expected.
func (s Status) Terminal() bool {
	return s == StatusDeparted || s == StatusCancelled
}

// EventType classifies why a resident is leaving.
type EventType string

const (
	EventFamilyPickup      EventType = "family_pickup"
	EventDoctorAppointment EventType = "doctor_appointment"
	EventFacilityVan       EventType = "facility_van"
	EventOther             EventType = "other"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	switch t {
	case EventFamilyPickup, EventDoctorAppointment, EventFacilityVan, EventOther:
		return true
	}
	return false
}

// Audience selects a subset of push subscriptions. The zero value targets all.
type Audience string

const (
	AudienceAll   Audience = ""
	AudienceAdmin Audience = "admin"
	AudienceFloor Audience = "floor"
)

// ParseAudience maps a wire value to an Audience. "all" and the empty
// string both select every device.
func ParseAudience(s string) (Audience, bool) {
	switch s {
	case "", "all":
		return AudienceAll, true
	case string(AudienceAdmin):
		return AudienceAdmin, true
	case string(AudienceFloor):
		return AudienceFloor, true
	}
	return "", false
}

// Channel is a notification delivery mechanism.
type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
)

// Outcome is the recorded result of a notification attempt.
type Outcome string

const (
	OutcomePending   Outcome = "pending"
	OutcomeSent      Outcome = "sent"
	OutcomeDelivered Outcome = "delivered"
	OutcomeFailed    Outcome = "failed"
)

// Resident is a person living at the facility.
type Resident struct {
	ID           string    `json:"id"`
	FullName     string    `json:"full_name"`
	RoomNumber   string    `json:"room_number"`
	FamilyPhone  string    `json:"family_phone,omitempty"`
	DietaryNotes string    `json:"dietary_notes,omitempty"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Event is a scheduled resident departure.
type Event struct {
	ID                  string    `json:"id"`
	ResidentID          string    `json:"resident_id"`
	PickupTime          time.Time `json:"pickup_time"`
	EventType           EventType `json:"event_type"`
	Purpose             string    `json:"purpose,omitempty"`
	Notes               string    `json:"notes,omitempty"`
	FamilyPhoneOverride string    `json:"family_phone_override,omitempty"`
	Status              Status    `json:"status"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// EventWithResident is an Event joined with its resident's display fields.
type EventWithResident struct {
	Event
	ResidentName  string `json:"resident_name"`
	RoomNumber    string `json:"room_number"`
	ResidentPhone string `json:"resident_phone,omitempty"`
}

// FamilyPhone returns the per-event override if set, else the resident's phone.
func (e EventWithResident) FamilyPhone() string {
	if e.FamilyPhoneOverride != "" {
		return e.FamilyPhoneOverride
	}
	return e.ResidentPhone
}

// NewEvent holds the fields needed to create a transport event.
type NewEvent struct {
	ResidentID          string
	PickupTime          time.Time
	EventType           EventType
	Purpose             string
	Notes               string
	FamilyPhoneOverride string
}

// Subscription is a device registered for web push.
type Subscription struct {
	ID        string    `json:"id"`
	Endpoint  string    `json:"endpoint"`
	P256dh    string    `json:"p256dh"`
	Auth      string    `json:"auth"`
	Audience  Audience  `json:"audience"`
	UserAgent string    `json:"user_agent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NotificationEntry is one append-only audit record of a delivery attempt.
type NotificationEntry struct {
	ID        int64     `json:"id"`
	EventID   string    `json:"event_id"`
	Channel   Channel   `json:"channel"`
	Recipient string    `json:"recipient"`
	Message   string    `json:"message"`
	Status    Outcome   `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NotificationFilter specifies criteria for listing audit entries.
type NotificationFilter struct {
	EventID string
	Limit   int
}
