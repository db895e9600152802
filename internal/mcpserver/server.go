package mcpserver

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates a configured MCP server with all Convert tools registered.
func NewMCPServer(api API, defaults Defaults, logger *slog.Logger, version string) *server.MCPServer {
	s := server.NewMCPServer("convertapi", version)
	h := NewHandlers(api, defaults, logger)

	s.AddTool(ToolListExperiences, h.HandleListExperiences)
	s.AddTool(ToolGetExperience, h.HandleGetExperience)
	s.AddTool(ToolGetExperienceStats, h.HandleGetExperienceStats)
	s.AddTool(ToolGetDailyReport, h.HandleGetDailyReport)
	s.AddTool(ToolGetAggregatedReport, h.HandleGetAggregatedReport)
	s.AddTool(ToolDecodeCookie, h.HandleDecodeCookie)

	return s
}
