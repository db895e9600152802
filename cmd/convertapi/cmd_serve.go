package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/campaigntrip/convertapi/internal/server"
	"github.com/campaigntrip/convertapi/internal/traces"
)

func newServeCmd(a *app) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the cookie inspector HTTP server",
		Long: `Serves POST /v1/cookies/decode plus health and metrics endpoints.
Id resolution is enabled when API credentials are configured.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port != "" {
				a.cfg.Port = port
			}

			shutdown, err := traces.Init(cmd.Context(), a.cfg.OTLPEndpoint, Version, a.logger)
			if err != nil {
				a.logger.Warn("tracing disabled", "error", err)
			} else {
				defer func() { _ = shutdown(context.Background()) }()
			}

			srv, err := server.New(a.cfg,
				server.WithLogger(a.logger),
				server.WithVersion(Version),
			)
			if err != nil {
				return err
			}
			return srv.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "Listen port (default from PORT)")
	return cmd
}
