package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestResident(t *testing.T, s *SQLiteStore, name, room, phone string) *Resident {
	t.Helper()
	r := &Resident{FullName: name, RoomNumber: room, FamilyPhone: phone, IsActive: true}
	require.NoError(t, s.CreateResident(context.Background(), r))
	return r
}

func TestSQLiteStore_Migration_CreatesTablesAndVersion(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	var version int
	err := s.db.QueryRow("SELECT MAX(version) FROM schema_version").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), version)
}

func TestSQLiteStore_ListActiveResidents_OrdersByRoomAndSkipsInactive(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	newTestResident(t, s, "Zed", "210", "")
	newTestResident(t, s, "Amy", "101", "5551234567")
	require.NoError(t, s.CreateResident(ctx, &Resident{FullName: "Gone", RoomNumber: "001", IsActive: false}))

	residents, err := s.ListActiveResidents(ctx)
	require.NoError(t, err)
	require.Len(t, residents, 2)
	assert.Equal(t, "101", residents[0].RoomNumber)
	assert.Equal(t, "210", residents[1].RoomNumber)
}

func TestSQLiteStore_GetResident_NotFound(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	_, err := s.GetResident(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_CreateAndGetEvent_JoinsResident(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	r := newTestResident(t, s, "Margaret", "101", "5551234567")
	pickup := time.Now().Add(time.Hour).Truncate(time.Second)

	e, err := s.CreateEvent(ctx, NewEvent{ResidentID: r.ID, PickupTime: pickup, Purpose: "Family visit"})
	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, e.Status)
	assert.Equal(t, EventFamilyPickup, e.EventType)

	got, err := s.GetEvent(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "Margaret", got.ResidentName)
	assert.Equal(t, "101", got.RoomNumber)
	assert.Equal(t, "5551234567", got.FamilyPhone())
	assert.True(t, pickup.Equal(got.PickupTime))
}

func TestSQLiteStore_EventFamilyPhone_PrefersOverride(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	r := newTestResident(t, s, "Harold", "104", "5551234567")
	e, err := s.CreateEvent(ctx, NewEvent{ResidentID: r.ID, PickupTime: time.Now(), FamilyPhoneOverride: "5559876543"})
	require.NoError(t, err)

	got, err := s.GetEvent(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "5559876543", got.FamilyPhone())
}

func TestSQLiteStore_GetEvent_NotFound(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	_, err := s.GetEvent(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_FetchTodaysEvents_FiltersDayAndCancelled(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	loc := time.FixedZone("facility", -5*3600)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, loc)
	r := newTestResident(t, s, "Dorothy", "112", "")

	later, err := s.CreateEvent(ctx, NewEvent{ResidentID: r.ID, PickupTime: now.Add(3 * time.Hour)})
	require.NoError(t, err)
	earlier, err := s.CreateEvent(ctx, NewEvent{ResidentID: r.ID, PickupTime: now.Add(-3 * time.Hour)})
	require.NoError(t, err)
	_, err = s.CreateEvent(ctx, NewEvent{ResidentID: r.ID, PickupTime: now.Add(24 * time.Hour)})
	require.NoError(t, err)
	_, err = s.CreateEvent(ctx, NewEvent{ResidentID: r.ID, PickupTime: now.Add(-24 * time.Hour)})
	require.NoError(t, err)
	cancelled, err := s.CreateEvent(ctx, NewEvent{ResidentID: r.ID, PickupTime: now})
	require.NoError(t, err)
	_, err = s.UpdateEventStatus(ctx, cancelled.ID, StatusCancelled)
	require.NoError(t, err)

	events, err := s.FetchTodaysEvents(ctx, now)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, earlier.ID, events[0].ID, "ordered by pickup time")
	assert.Equal(t, later.ID, events[1].ID)
}

func TestSQLiteStore_FetchTodaysEvents_EmptyIsNotNil(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	events, err := s.FetchTodaysEvents(context.Background(), time.Now())
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestSQLiteStore_UpdateEventStatus(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	r := newTestResident(t, s, "Walter", "118", "")
	e, err := s.CreateEvent(ctx, NewEvent{ResidentID: r.ID, PickupTime: time.Now()})
	require.NoError(t, err)

	updated, err := s.UpdateEventStatus(ctx, e.ID, StatusReady)
	require.NoError(t, err)
	assert.Equal(t, StatusReady, updated.Status)

	again, err := s.UpdateEventStatus(ctx, e.ID, StatusReady)
	require.NoError(t, err, "redundant transition is not an error")
	assert.Equal(t, StatusReady, again.Status)
}

func TestSQLiteStore_UpdateEventStatus_NotFound(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	_, err := s.UpdateEventStatus(context.Background(), "unknown", StatusReady)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_DeleteAndResetEvents(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	r := newTestResident(t, s, "Evelyn", "203", "")
	a, err := s.CreateEvent(ctx, NewEvent{ResidentID: r.ID, PickupTime: time.Now()})
	require.NoError(t, err)
	_, err = s.CreateEvent(ctx, NewEvent{ResidentID: r.ID, PickupTime: time.Now()})
	require.NoError(t, err)
	_, err = s.CreateEvent(ctx, NewEvent{ResidentID: r.ID, PickupTime: time.Now()})
	require.NoError(t, err)

	require.NoError(t, s.DeleteEvent(ctx, a.ID))
	assert.ErrorIs(t, s.DeleteEvent(ctx, a.ID), ErrNotFound)

	n, err := s.ResetEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestSQLiteStore_UpsertSubscription_IsIdempotentOnEndpoint(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertSubscription(ctx, &Subscription{
		Endpoint: "https://push.example/abc", P256dh: "k1", Auth: "a1", Audience: AudienceFloor,
	}))
	require.NoError(t, s.UpsertSubscription(ctx, &Subscription{
		Endpoint: "https://push.example/abc", P256dh: "k2", Auth: "a2", Audience: AudienceAdmin, UserAgent: "Safari",
	}))

	all, err := s.ListSubscriptions(ctx, AudienceAll)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "k2", all[0].P256dh)
	assert.Equal(t, "a2", all[0].Auth)
	assert.Equal(t, AudienceAdmin, all[0].Audience)
	assert.Equal(t, "Safari", all[0].UserAgent)
}

func TestSQLiteStore_ListSubscriptions_FiltersByAudience(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertSubscription(ctx, &Subscription{Endpoint: "e1", P256dh: "k", Auth: "a", Audience: AudienceAdmin}))
	require.NoError(t, s.UpsertSubscription(ctx, &Subscription{Endpoint: "e2", P256dh: "k", Auth: "a", Audience: AudienceFloor}))
	require.NoError(t, s.UpsertSubscription(ctx, &Subscription{Endpoint: "e3", P256dh: "k", Auth: "a"}))

	admin, err := s.ListSubscriptions(ctx, AudienceAdmin)
	require.NoError(t, err)
	assert.Len(t, admin, 1)

	floor, err := s.ListSubscriptions(ctx, AudienceFloor)
	require.NoError(t, err)
	assert.Len(t, floor, 2, "subscriptions without an audience default to floor")

	all, err := s.ListSubscriptions(ctx, AudienceAll)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	require.NoError(t, s.DeleteSubscription(ctx, "e1"))
	admin, err = s.ListSubscriptions(ctx, AudienceAdmin)
	require.NoError(t, err)
	assert.Empty(t, admin)
}

func TestSQLiteStore_Notifications_AppendAndList(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, s.AppendNotification(ctx, &NotificationEntry{
		EventID: "ev1", Channel: ChannelSMS, Recipient: "+15551234567", Message: "ready", Status: OutcomeSent, CreatedAt: now,
	}))
	require.NoError(t, s.AppendNotification(ctx, &NotificationEntry{
		EventID: "ev1", Channel: ChannelPush, Recipient: "2 admin devices", Message: "ready", Status: OutcomeSent, CreatedAt: now.Add(time.Second),
	}))
	failed := &NotificationEntry{EventID: "ev2", Channel: ChannelSMS, Recipient: "x", Status: OutcomeFailed, Error: "boom"}
	require.NoError(t, s.AppendNotification(ctx, failed))
	assert.NotZero(t, failed.ID)

	ev1, err := s.ListNotifications(ctx, NotificationFilter{EventID: "ev1"})
	require.NoError(t, err)
	require.Len(t, ev1, 2)
	assert.Equal(t, ChannelPush, ev1[0].Channel, "newest first")

	limited, err := s.ListNotifications(ctx, NotificationFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "boom", limited[0].Error)
}

func TestSQLiteStore_Subscribe_ReceivesEventMutations(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	changes, cancel := s.Subscribe()
	defer cancel()

	r := newTestResident(t, s, "Amy", "101", "")
	e, err := s.CreateEvent(ctx, NewEvent{ResidentID: r.ID, PickupTime: time.Now()})
	require.NoError(t, err)
	_, err = s.UpdateEventStatus(ctx, e.ID, StatusPrepping)
	require.NoError(t, err)

	first := <-changes
	assert.Equal(t, OpInsert, first.Op)
	assert.Equal(t, e.ID, first.EventID)
	second := <-changes
	assert.Equal(t, OpUpdate, second.Op)
}

func TestSQLiteStore_Ping(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	assert.NoError(t, s.Ping(context.Background()))
}

func TestSeedDemoResidents_OnlySeedsEmptyRoster(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	n, err := SeedDemoResidents(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, len(demoResidents), n)

	n, err = SeedDemoResidents(ctx, s)
	require.NoError(t, err)
	assert.Zero(t, n)
}
