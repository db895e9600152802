package convert

import (
	"log/slog"
	"time"

	"github.com/campaigntrip/convertapi/internal/config"
	"github.com/campaigntrip/convertapi/internal/retry"
)

// DefaultRetryDelay is the first backoff when retries are enabled.
const DefaultRetryDelay = 500 * time.Millisecond

// ConfigFrom maps application configuration onto client configuration.
func ConfigFrom(cfg *config.Config, logger *slog.Logger, verbose int) Config {
	return Config{
		BaseURL:       cfg.APIURL,
		ApplicationID: cfg.ApplicationID,
		Secret:        cfg.Secret,
		Timeout:       cfg.Timeout,
		Retry:         retry.Policy{MaxAttempts: cfg.MaxAttempts, BaseDelay: DefaultRetryDelay},
		Verbose:       verbose,
		Logger:        logger,
	}
}
