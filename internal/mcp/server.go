// Package mcp exposes pickup operations as MCP tools for operator assistants.
package mcp

import (
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/readyalert/internal/pickup"
)

// Deps holds shared dependencies injected into MCP handlers.
type Deps struct {
	Pickup   *pickup.Service
	Location *time.Location
	Version  string
}

// NewServer creates and configures the MCP server with all tools registered.
func NewServer(deps *Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"ReadyAlert",
		deps.Version,
		server.WithToolCapabilities(true),
		server.WithLogging(),
	)

	registerTools(s, deps)

	return s
}
