// convert-mcp exposes Convert.com experiences, reports and cookie decoding as
// MCP tools over stdio.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/campaigntrip/convertapi/internal/config"
	"github.com/campaigntrip/convertapi/internal/convert"
	"github.com/campaigntrip/convertapi/internal/logging"
	"github.com/campaigntrip/convertapi/internal/mcpserver"
	"github.com/campaigntrip/convertapi/internal/traces"
)

// Build info - set by ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.RequireAPICredentials(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// stdout carries the MCP protocol; logs go to stderr.
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()
	shutdown, err := traces.Init(ctx, cfg.OTLPEndpoint, Version, logger)
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
	} else {
		defer func() { _ = shutdown(context.Background()) }()
	}

	client := convert.NewClient(convert.ConfigFrom(cfg, logger, 0))
	defaults := mcpserver.Defaults{AccountID: cfg.AccountID, ProjectID: cfg.ProjectID}

	s := mcpserver.NewMCPServer(client, defaults, logger, Version)
	if err := server.ServeStdio(s); err != nil {
		logger.Error("MCP server error", "error", err)
		os.Exit(1)
	}
}
