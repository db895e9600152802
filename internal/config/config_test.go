package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper to set env vars and clean up after
func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	os.Setenv(key, value)
	t.Cleanup(func() {
		if !had {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, old)
		}
	})
}

func clearConvertEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"CONVERT_CONFIG", "CONVERT_API_URL", "CONVERT_APPLICATION_ID", "CONVERT_SECRET",
		"CONVERT_ACCOUNT_ID", "CONVERT_PROJECT_ID", "CONVERT_TIMEOUT", "CONVERT_MAX_ATTEMPTS",
		"LOG_LEVEL", "LOG_FORMAT", "CORS_ALLOWED_ORIGINS", "RATE_LIMIT_RPM", "RATE_LIMIT_BURST",
	} {
		setEnv(t, k, "")
	}
}

func writeProfile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "convert.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearConvertEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultAPIURL, cfg.APIURL)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, DefaultMaxAttempts, cfg.MaxAttempts)
	assert.Equal(t, DefaultLogFormat, cfg.LogFormat)
	assert.Equal(t, DefaultRateLimit, cfg.RateLimitRPM)
	assert.Equal(t, DefaultRateBurst, cfg.RateLimitBurst)
	assert.Empty(t, cfg.ApplicationID)
}

func TestLoad_EnvOverridesProfile(t *testing.T) {
	clearConvertEnv(t)
	path := writeProfile(t, `
application_id: profile-app
secret: profile-secret
account_id: "1001"
project_id: "2002"
`)
	setEnv(t, "CONVERT_SECRET", "env-secret")
	setEnv(t, "CONVERT_TIMEOUT", "45")
	setEnv(t, "CONVERT_MAX_ATTEMPTS", "3")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "profile-app", cfg.ApplicationID)
	assert.Equal(t, "env-secret", cfg.Secret)
	assert.Equal(t, "1001", cfg.AccountID)
	assert.Equal(t, "2002", cfg.ProjectID)
	assert.Equal(t, 45*time.Second, cfg.Timeout)
	assert.Equal(t, 3, cfg.MaxAttempts)
}

func TestLoad_ProfileFromEnv(t *testing.T) {
	clearConvertEnv(t)
	path := writeProfile(t, "application_id: from-env-path\n")
	setEnv(t, "CONVERT_CONFIG", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-env-path", cfg.ApplicationID)
}

func TestLoad_MissingProfile(t *testing.T) {
	clearConvertEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "read profile")
}

func TestLoad_BadProfile(t *testing.T) {
	clearConvertEnv(t)
	path := writeProfile(t, "application_id: [unterminated\n")

	_, err := Load(path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "parse profile")
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			APIURL:      DefaultAPIURL,
			Timeout:     time.Second,
			MaxAttempts: 1,
			LogFormat:   "text",
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid config", func(*Config) {}, ""},
		{"relative url", func(c *Config) { c.APIURL = "/api/v2" }, "CONVERT_API_URL"},
		{"bad scheme", func(c *Config) { c.APIURL = "ftp://api.convert.com" }, "CONVERT_API_URL"},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, "CONVERT_TIMEOUT"},
		{"zero attempts", func(c *Config) { c.MaxAttempts = 0 }, "CONVERT_MAX_ATTEMPTS"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "LOG_FORMAT"},
		{"negative rate limit", func(c *Config) { c.RateLimitRPM = -1 }, "RATE_LIMIT_RPM"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestRequireResolveCredentials_Order(t *testing.T) {
	cfg := &Config{}
	err := cfg.RequireResolveCredentials()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingCredential))
	assert.Contains(t, err.Error(), "'applicationId' when using --resolveIds")

	cfg.ApplicationID = "app"
	assert.Contains(t, cfg.RequireResolveCredentials().Error(), "'secret'")

	cfg.Secret = "s"
	assert.Contains(t, cfg.RequireResolveCredentials().Error(), "'accountId'")

	cfg.AccountID = "1"
	assert.Contains(t, cfg.RequireResolveCredentials().Error(), "'projectId'")

	cfg.ProjectID = "2"
	assert.NoError(t, cfg.RequireResolveCredentials())
}

func TestRequireAPICredentials(t *testing.T) {
	cfg := &Config{ApplicationID: "app"}
	err := cfg.RequireAPICredentials()
	assert.ErrorIs(t, err, ErrMissingCredential)
	assert.NotContains(t, err.Error(), "--resolveIds")

	cfg.Secret = "s"
	assert.NoError(t, cfg.RequireAPICredentials())
}

func TestConfig_IsDevelopment(t *testing.T) {
	cfg := &Config{Env: "development"}
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())

	cfg.Env = "production"
	assert.False(t, cfg.IsDevelopment())
	assert.True(t, cfg.IsProduction())
}

func TestGetEnv(t *testing.T) {
	setEnv(t, "TEST_VAR", "custom_value")

	assert.Equal(t, "custom_value", getEnv("TEST_VAR", "default"))
	assert.Equal(t, "default", getEnv("NONEXISTENT_VAR", "default"))
}

func TestGetEnvInt64(t *testing.T) {
	setEnv(t, "TEST_INT", "42")
	setEnv(t, "TEST_INVALID", "not_a_number")

	assert.Equal(t, int64(42), getEnvInt64("TEST_INT", 0))
	assert.Equal(t, int64(99), getEnvInt64("NONEXISTENT_VAR", 99))
	assert.Equal(t, int64(99), getEnvInt64("TEST_INVALID", 99)) // Falls back on parse error
}

func TestGetEnvDuration(t *testing.T) {
	setEnv(t, "TEST_DUR", "1m30s")
	setEnv(t, "TEST_SECS", "12")
	setEnv(t, "TEST_BAD", "soon")

	assert.Equal(t, 90*time.Second, getEnvDuration("TEST_DUR", time.Second))
	assert.Equal(t, 12*time.Second, getEnvDuration("TEST_SECS", time.Second))
	assert.Equal(t, time.Second, getEnvDuration("TEST_BAD", time.Second))
}

func TestGetEnvList(t *testing.T) {
	setEnv(t, "TEST_LIST", " https://a.example , ,https://b.example")
	setEnv(t, "TEST_BLANK", " , ")

	assert.Equal(t, []string{"https://a.example", "https://b.example"}, getEnvList("TEST_LIST", nil))
	assert.Equal(t, []string{"*"}, getEnvList("TEST_BLANK", []string{"*"}))
	assert.Equal(t, []string{"*"}, getEnvList("NONEXISTENT_VAR", []string{"*"}))
}
