package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btouchard/readyalert/internal/push"
	"github.com/btouchard/readyalert/internal/sms"
	"github.com/btouchard/readyalert/internal/store"

	"github.com/btouchard/readyalert/internal/pickup"
)

type stubSMS struct{}

func (stubSMS) SendReady(context.Context, sms.Request) sms.Result {
	return sms.Result{Success: true, MessageID: sms.MessageIDSimulated}
}
func (stubSMS) Status() sms.Status { return sms.Status{DeliveryMode: "simulated"} }

type stubPusher struct{ sent int }

func (p stubPusher) Send(context.Context, push.Payload, store.Audience) (push.Result, error) {
	return push.Result{Sent: p.sent, Total: p.sent}, nil
}

func makeReq(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func textOf(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	return result.Content[0].(mcp.TextContent).Text
}

func newTestDeps(t *testing.T, phone string, pushed int) (*pickup.Service, *store.SQLiteStore, *store.Resident) {
	t.Helper()
	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	r := &store.Resident{FullName: "Harold Jenkins", RoomNumber: "104", FamilyPhone: phone, IsActive: true}
	require.NoError(t, s.CreateResident(context.Background(), r))

	svc := pickup.NewService(s, stubSMS{}, stubPusher{sent: pushed}, nil, pickup.Options{Location: time.UTC})
	return svc, s, r
}

func createEvent(t *testing.T, s *store.SQLiteStore, r *store.Resident) *store.Event {
	t.Helper()
	ev, err := s.CreateEvent(context.Background(), store.NewEvent{ResidentID: r.ID, PickupTime: time.Now(), Purpose: "Dentist"})
	require.NoError(t, err)
	return ev
}

func TestListTodaysEvents_WhenEmpty_SaysSo(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestDeps(t, "", 0)

	result, err := ListTodaysEvents(svc, time.UTC)(context.Background(), makeReq(map[string]any{}))
	require.NoError(t, err)
	assert.Contains(t, textOf(t, result), "No pickups")
}

func TestListTodaysEvents_ListsAndFilters(t *testing.T) {
	t.Parallel()
	svc, s, r := newTestDeps(t, "", 0)
	ev := createEvent(t, s, r)
	handler := ListTodaysEvents(svc, time.UTC)

	result, err := handler(context.Background(), makeReq(map[string]any{}))
	require.NoError(t, err)
	text := textOf(t, result)
	assert.Contains(t, text, "Harold Jenkins")
	assert.Contains(t, text, ev.ID)
	assert.Contains(t, text, "Dentist")

	result, err = handler(context.Background(), makeReq(map[string]any{"status": "ready"}))
	require.NoError(t, err)
	assert.Contains(t, textOf(t, result), "No pickups")
}

func TestMarkReady_WhenMissingEventID_ReturnsError(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestDeps(t, "", 0)

	result, err := MarkReady(svc)(context.Background(), makeReq(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, textOf(t, result), "event_id is required")
}

func TestMarkReady_WhenNotFound_ReturnsError(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestDeps(t, "", 0)

	result, err := MarkReady(svc)(context.Background(), makeReq(map[string]any{"event_id": "nope"}))
	require.NoError(t, err)
	assert.Contains(t, textOf(t, result), "not found")
}

func TestMarkReady_ReportsChannels(t *testing.T) {
	t.Parallel()
	svc, s, r := newTestDeps(t, "5552345678", 2)
	ev := createEvent(t, s, r)

	result, err := MarkReady(svc)(context.Background(), makeReq(map[string]any{"event_id": ev.ID}))
	require.NoError(t, err)
	text := textOf(t, result)
	assert.Contains(t, text, "SMS: sent")
	assert.Contains(t, text, "Push: 2 admin device(s)")
}

func TestMarkReady_WithoutPhone_ReportsSkipped(t *testing.T) {
	t.Parallel()
	svc, s, r := newTestDeps(t, "", 0)
	ev := createEvent(t, s, r)

	result, err := MarkReady(svc)(context.Background(), makeReq(map[string]any{"event_id": ev.ID}))
	require.NoError(t, err)
	assert.Contains(t, textOf(t, result), "skipped (no phone number configured)")
}

func TestSetEventStatus(t *testing.T) {
	t.Parallel()
	svc, s, r := newTestDeps(t, "", 0)
	ev := createEvent(t, s, r)
	handler := SetEventStatus(svc)

	result, err := handler(context.Background(), makeReq(map[string]any{"event_id": ev.ID, "status": "prepping"}))
	require.NoError(t, err)
	assert.Contains(t, textOf(t, result), "is now prepping")

	result, err = handler(context.Background(), makeReq(map[string]any{"event_id": ev.ID, "status": "vanished"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, textOf(t, result), "Invalid status")
}

func TestSendPush_ReportsCounts(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestDeps(t, "", 3)

	result, err := SendPush(svc)(context.Background(), makeReq(map[string]any{
		"title": "Van delayed", "body": "10 minutes", "audience": "floor",
	}))
	require.NoError(t, err)
	assert.Contains(t, textOf(t, result), "Sent to 3 of 3")
}

func TestSendPush_WhenMissingBody_ReturnsError(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestDeps(t, "", 3)

	result, err := SendPush(svc)(context.Background(), makeReq(map[string]any{"title": "Van delayed"}))
	require.NoError(t, err)
	assert.Contains(t, textOf(t, result), "title and body are required")
}

func TestListNotifications_ShowsAuditTrail(t *testing.T) {
	t.Parallel()
	svc, s, r := newTestDeps(t, "5552345678", 1)
	ev := createEvent(t, s, r)
	_, err := svc.MarkReady(context.Background(), ev.ID)
	require.NoError(t, err)

	result, err := ListNotifications(svc, time.UTC)(context.Background(), makeReq(map[string]any{"event_id": ev.ID}))
	require.NoError(t, err)
	text := textOf(t, result)
	assert.Contains(t, text, "Notifications (2)")
	assert.Contains(t, text, "sms")
	assert.Contains(t, text, "1 admin devices")
}
