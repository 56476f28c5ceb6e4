// Package handlers implements the MCP tool handlers.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/readyalert/internal/pickup"
	"github.com/btouchard/readyalert/internal/store"
)

// ListTodaysEvents returns a handler that lists today's pickups.
func ListTodaysEvents(svc *pickup.Service, loc *time.Location) server.ToolHandlerFunc {
	if loc == nil {
		loc = time.UTC
	}
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		status, _ := args["status"].(string)

		events, err := svc.TodaysEvents(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to load events: %s", err)), nil
		}

		var sb strings.Builder
		count := 0
		for _, ev := range events {
			if status != "" && string(ev.Status) != status {
				continue
			}
			count++
			fmt.Fprintf(&sb, "%s **%s** (Room %s) · %s at %s\n",
				statusIcon(ev.Status), ev.ResidentName, ev.RoomNumber, ev.Status,
				ev.PickupTime.In(loc).Format("3:04 PM"))
			fmt.Fprintf(&sb, "  ID: %s | Type: %s\n", ev.ID, ev.EventType)
			if ev.Purpose != "" {
				fmt.Fprintf(&sb, "  Purpose: %s\n", ev.Purpose)
			}
			sb.WriteString("\n")
		}

		if count == 0 {
			return mcp.NewToolResultText("No pickups scheduled for today."), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("🗓️ Today's pickups (%d)\n\n%s", count, sb.String())), nil
	}
}

// MarkReady returns a handler that runs the ready notification flow.
func MarkReady(svc *pickup.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		eventID, _ := args["event_id"].(string)
		if eventID == "" {
			return mcp.NewToolResultError("event_id is required"), nil
		}

		res, err := svc.MarkReady(ctx, eventID)
		if err != nil {
			return toolError(err, eventID), nil
		}

		var sb strings.Builder
		sb.WriteString("✅ Marked ready\n\n")
		switch {
		case res.Reason != "":
			fmt.Fprintf(&sb, "SMS: skipped (%s)\n", res.Reason)
		case res.SMSSent:
			fmt.Fprintf(&sb, "SMS: sent (%s)\n", res.MessageID)
		default:
			fmt.Fprintf(&sb, "SMS: failed (%s)\n", res.Error)
		}
		fmt.Fprintf(&sb, "Push: %d admin device(s)\n", res.PushSent)

		return mcp.NewToolResultText(sb.String()), nil
	}
}

// SetEventStatus returns a handler that changes an event's status.
func SetEventStatus(svc *pickup.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		eventID, _ := args["event_id"].(string)
		status, _ := args["status"].(string)
		if eventID == "" {
			return mcp.NewToolResultError("event_id is required"), nil
		}

		ev, err := svc.UpdateStatus(ctx, eventID, status)
		if err != nil {
			return toolError(err, eventID), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("%s Event %s is now %s", statusIcon(ev.Status), ev.ID, ev.Status)), nil
	}
}

func toolError(err error, eventID string) *mcp.CallToolResult {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return mcp.NewToolResultError(fmt.Sprintf("event %s not found", eventID))
	case pickup.IsValidation(err):
		return mcp.NewToolResultError(err.Error())
	default:
		return mcp.NewToolResultError(fmt.Sprintf("operation failed: %s", err))
	}
}

func statusIcon(s store.Status) string {
	switch s {
	case store.StatusScheduled:
		return "🕒"
	case store.StatusPrepAlert:
		return "🔔"
	case store.StatusPrepping:
		return "🔄"
	case store.StatusReady:
		return "✅"
	case store.StatusDeparted:
		return "🚗"
	case store.StatusCancelled:
		return "🚫"
	default:
		return "❓"
	}
}
