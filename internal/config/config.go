// Package config handles application configuration from environment variables
// and an optional YAML profile.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrMissingCredential is returned when an operation needs a credential or
// identifier that was not supplied.
var ErrMissingCredential = errors.New("missing required argument")

// Config holds all application configuration
type Config struct {
	// Convert API
	APIURL        string
	ApplicationID string
	Secret        string
	AccountID     string
	ProjectID     string
	Timeout       time.Duration
	MaxAttempts   int // 1 disables retries

	// Logging
	LogLevel  string
	LogFormat string // "text" or "json"

	// Inspector server
	Port           string
	Env            string // "development", "production"
	OTLPEndpoint   string
	CORSOrigins    []string
	RateLimitRPM   int // per client IP on /v1; 0 disables
	RateLimitBurst int
}

// Profile is the on-disk YAML form of the credentials.
type Profile struct {
	APIURL        string `yaml:"api_url"`
	ApplicationID string `yaml:"application_id"`
	Secret        string `yaml:"secret"`
	AccountID     string `yaml:"account_id"`
	ProjectID     string `yaml:"project_id"`
}

const (
	DefaultAPIURL      = "https://api.convert.com/api/v2"
	DefaultTimeout     = 30 * time.Second
	DefaultMaxAttempts = 1
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "text"
	DefaultPort        = "8080"
	DefaultEnv         = "development"
	DefaultRateLimit   = 120
	DefaultRateBurst   = 20
)

// Load reads configuration. Sources are layered: defaults, then the YAML
// profile at profilePath (or $CONVERT_CONFIG), then environment variables.
// A .env file in the working directory is loaded first if present.
func Load(profilePath string) (*Config, error) {
	_ = godotenv.Load()

	if profilePath == "" {
		profilePath = os.Getenv("CONVERT_CONFIG")
	}

	var p Profile
	if profilePath != "" {
		loaded, err := LoadProfile(profilePath)
		if err != nil {
			return nil, err
		}
		p = *loaded
	}

	cfg := &Config{
		APIURL:         getEnv("CONVERT_API_URL", orDefault(p.APIURL, DefaultAPIURL)),
		ApplicationID:  getEnv("CONVERT_APPLICATION_ID", p.ApplicationID),
		Secret:         getEnv("CONVERT_SECRET", p.Secret),
		AccountID:      getEnv("CONVERT_ACCOUNT_ID", p.AccountID),
		ProjectID:      getEnv("CONVERT_PROJECT_ID", p.ProjectID),
		Timeout:        getEnvDuration("CONVERT_TIMEOUT", DefaultTimeout),
		MaxAttempts:    int(getEnvInt64("CONVERT_MAX_ATTEMPTS", DefaultMaxAttempts)),
		LogLevel:       getEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat:      getEnv("LOG_FORMAT", DefaultLogFormat),
		Port:           getEnv("PORT", DefaultPort),
		Env:            getEnv("ENV", DefaultEnv),
		OTLPEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		CORSOrigins:    getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		RateLimitRPM:   int(getEnvInt64("RATE_LIMIT_RPM", DefaultRateLimit)),
		RateLimitBurst: int(getEnvInt64("RATE_LIMIT_BURST", DefaultRateBurst)),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadProfile reads a YAML credentials profile.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", path, err)
	}
	return &p, nil
}

// Validate checks that the loaded values are usable. Credentials are not
// checked here since cookie decoding works without them.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("CONVERT_API_URL must be an absolute http(s) URL")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("CONVERT_TIMEOUT must be positive")
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("CONVERT_MAX_ATTEMPTS must be at least 1")
	}
	if c.RateLimitRPM < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_RPM and RATE_LIMIT_BURST must not be negative")
	}
	if !ValidLogFormat(c.LogFormat) {
		return fmt.Errorf("LOG_FORMAT must be text or json")
	}
	return nil
}

// ValidLogFormat reports whether format is one the logger understands.
func ValidLogFormat(format string) bool {
	return format == "text" || format == "json"
}

// RequireAPICredentials checks the credentials every API call needs.
func (c *Config) RequireAPICredentials() error {
	return requireAll("", []field{
		{"applicationId", c.ApplicationID},
		{"secret", c.Secret},
	})
}

// RequireResolveCredentials checks everything id resolution needs, in the
// order the flags are documented.
func (c *Config) RequireResolveCredentials() error {
	return requireAll(" when using --resolveIds", []field{
		{"applicationId", c.ApplicationID},
		{"secret", c.Secret},
		{"accountId", c.AccountID},
		{"projectId", c.ProjectID},
	})
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

type field struct {
	name  string
	value string
}

func requireAll(suffix string, fields []field) error {
	for _, f := range fields {
		if f.value == "" {
			return fmt.Errorf("%w '%s'%s", ErrMissingCredential, f.name, suffix)
		}
	}
	return nil
}

func orDefault(value, defaultValue string) string {
	if value != "" {
		return value
	}
	return defaultValue
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping blanks.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// getEnvDuration accepts Go durations ("45s") or whole seconds ("45").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
