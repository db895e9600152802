// convertapi is a command-line client for the Convert.com REST API: experience
// stats and reports, visitor cookie decoding and the inspector server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/campaigntrip/convertapi/internal/config"
	"github.com/campaigntrip/convertapi/internal/convert"
	"github.com/campaigntrip/convertapi/internal/logging"
)

// Build info - set by ldflags
var Version = "dev"

// app carries the state shared by every subcommand.
type app struct {
	// Global flags
	applicationID string
	secret        string
	verbose       int
	quiet         bool
	configPath    string
	logFormat     string

	cfg    *config.Config
	logger *slog.Logger
	stdout io.Writer
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "convertapi",
		Short: "Convert.com API client: experience stats, reports and cookie decoding",
		Long: `convertapi talks to the Convert.com REST API (v2) with HMAC-signed requests.

Credentials come from flags, then CONVERT_* environment variables (a .env file
is honoured), then an optional YAML profile given with --config.

JSON results are written to stdout; logs go to stderr.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	root.PersistentFlags().StringVarP(&a.applicationID, "applicationId", "a", "", "API application ID (or set CONVERT_APPLICATION_ID)")
	root.PersistentFlags().StringVarP(&a.secret, "secret", "s", "", "API secret key (or set CONVERT_SECRET)")
	root.PersistentFlags().CountVarP(&a.verbose, "verbose", "v", "Verbose logging; repeat to dump request and response bodies")
	root.PersistentFlags().BoolVarP(&a.quiet, "quiet", "q", false, "Only log errors")
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML credentials profile (or set CONVERT_CONFIG)")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "Log format: text or json (default from LOG_FORMAT)")

	root.AddCommand(newStatsCmd(a))
	root.AddCommand(newReportCmd(a))
	root.AddCommand(newExperiencesCmd(a))
	root.AddCommand(newProjectsCmd(a))
	root.AddCommand(newCookieCmd(a))
	root.AddCommand(newCookieDataCmd(a))
	root.AddCommand(newServeCmd(a))

	return root
}

// setup loads configuration and builds the logger. Flags win over the
// environment, which wins over the profile.
func (a *app) setup(cmd *cobra.Command) error {
	if a.stdout == nil {
		a.stdout = cmd.OutOrStdout()
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.applicationID != "" {
		cfg.ApplicationID = a.applicationID
	}
	if a.secret != "" {
		cfg.Secret = a.secret
	}
	if a.logFormat != "" {
		if !config.ValidLogFormat(a.logFormat) {
			return fmt.Errorf("--log-format must be text or json, got %q", a.logFormat)
		}
		cfg.LogFormat = a.logFormat
	}
	a.cfg = cfg

	level := cfg.LogLevel
	if a.verbose > 0 || a.quiet {
		level = logging.LevelForFlags(a.verbose, a.quiet)
	}
	a.logger = logging.NewWithWriter(cmd.ErrOrStderr(), level, cfg.LogFormat)
	return nil
}

// client builds an API client, failing before any network call when
// credentials are missing.
func (a *app) client() (*convert.Client, error) {
	if err := a.cfg.RequireAPICredentials(); err != nil {
		return nil, err
	}
	return convert.NewClient(convert.ConfigFrom(a.cfg, a.logger, a.verbose)), nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{}
	if err := newRootCmd(a).ExecuteContext(ctx); err != nil {
		logger := a.logger
		if logger == nil {
			logger = logging.New(logging.LevelInfo, config.DefaultLogFormat)
		}
		logger.Error(err.Error())
		stop()
		os.Exit(1)
	}
}

// printJSON writes v to stdout with two-space indentation.
func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
