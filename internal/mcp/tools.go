package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/readyalert/internal/mcp/handlers"
)

func registerTools(s *server.MCPServer, deps *Deps) {
	// list_todays_events: Today's pickups with status
	s.AddTool(
		mcp.NewTool("list_todays_events",
			mcp.WithDescription("List today's scheduled pickups with resident, room, pickup time and status."),
			mcp.WithString("status",
				mcp.Description("Only show events with this status"),
				mcp.Enum("scheduled", "prep_alert", "prepping", "ready", "departed"),
			),
		),
		handlers.ListTodaysEvents(deps.Pickup, deps.Location),
	)

	// mark_ready: Mark ready and notify family + admin desk
	s.AddTool(
		mcp.NewTool("mark_ready",
			mcp.WithDescription("Mark a pickup as ready. Texts the family and pushes a notification to admin devices. Safe to repeat."),
			mcp.WithString("event_id",
				mcp.Required(),
				mcp.Description("The event ID from list_todays_events"),
			),
		),
		handlers.MarkReady(deps.Pickup),
	)

	// set_event_status: Move an event through its lifecycle
	s.AddTool(
		mcp.NewTool("set_event_status",
			mcp.WithDescription("Set the status of a pickup without sending notifications. Use mark_ready to notify the family."),
			mcp.WithString("event_id",
				mcp.Required(),
				mcp.Description("The event ID from list_todays_events"),
			),
			mcp.WithString("status",
				mcp.Required(),
				mcp.Description("New status"),
				mcp.Enum("scheduled", "prep_alert", "prepping", "ready", "departed", "cancelled"),
			),
		),
		handlers.SetEventStatus(deps.Pickup),
	)

	// send_push: Broadcast a push message
	s.AddTool(
		mcp.NewTool("send_push",
			mcp.WithDescription("Send a push notification to subscribed devices."),
			mcp.WithString("title",
				mcp.Required(),
				mcp.Description("Notification title"),
			),
			mcp.WithString("body",
				mcp.Required(),
				mcp.Description("Notification body"),
			),
			mcp.WithString("audience",
				mcp.Description("Which devices to reach (default: all)"),
				mcp.Enum("all", "admin", "floor"),
			),
			mcp.WithString("event_id",
				mcp.Description("Related event ID; the send is recorded in its notification log"),
			),
		),
		handlers.SendPush(deps.Pickup),
	)

	// list_notifications: Audit trail for an event
	s.AddTool(
		mcp.NewTool("list_notifications",
			mcp.WithDescription("Show the notification log of a pickup: every SMS and push attempt with its outcome."),
			mcp.WithString("event_id",
				mcp.Required(),
				mcp.Description("The event ID"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of entries to return (default: 20)"),
			),
		),
		handlers.ListNotifications(deps.Pickup, deps.Location),
	)
}
