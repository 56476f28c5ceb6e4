package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/readyalert/internal/pickup"
)

// SendPush returns a handler that broadcasts an ad hoc push message.
func SendPush(svc *pickup.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		title, _ := args["title"].(string)
		body, _ := args["body"].(string)
		eventID, _ := args["event_id"].(string)

		audience, _ := args["audience"].(string)

		res, err := svc.SendPush(ctx, pickup.SendPushInput{
			Title:    title,
			Body:     body,
			EventID:  eventID,
			Audience: audience,
		})
		if err != nil {
			return toolError(err, eventID), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf("📣 Sent to %d of %d device(s) (%d failed)", res.Sent, res.Total, res.Failed)), nil
	}
}

// ListNotifications returns a handler that shows an event's audit trail.
func ListNotifications(svc *pickup.Service, loc *time.Location) server.ToolHandlerFunc {
	if loc == nil {
		loc = time.UTC
	}
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		eventID, _ := args["event_id"].(string)
		if eventID == "" {
			return mcp.NewToolResultError("event_id is required"), nil
		}

		limit := 20
		if l, ok := args["limit"].(float64); ok && l > 0 {
			limit = int(l)
		}

		entries, err := svc.Notifications(ctx, eventID, limit)
		if err != nil {
			return toolError(err, eventID), nil
		}
		if len(entries) == 0 {
			return mcp.NewToolResultText("No notifications recorded for this event."), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "📜 Notifications (%d)\n\n", len(entries))
		for _, e := range entries {
			fmt.Fprintf(&sb, "[%s] %s → %s: %s\n", e.CreatedAt.In(loc).Format("3:04:05 PM"), e.Channel, e.Recipient, e.Status)
			fmt.Fprintf(&sb, "  %s\n", e.Message)
			if e.Error != "" {
				fmt.Fprintf(&sb, "  Error: %s\n", e.Error)
			}
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}
