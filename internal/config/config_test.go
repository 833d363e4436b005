package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scribe/internal/models"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, "database:\n  primary:\n    dsn: postgres://localhost/scribe\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, 2, cfg.Worker.Concurrency)
	assert.Equal(t, 3, cfg.Worker.MaxAttempts)
	assert.Equal(t, "transcription", cfg.Worker.Queue)
	assert.Equal(t, 2*time.Second, cfg.BackoffBase())
	assert.Equal(t, 300*time.Second, cfg.Transcription.Timeout)
	assert.Equal(t, int64(199), cfg.Billing.OverageRatePerHourCents)
	assert.Equal(t, CompletionNone, cfg.Completion.Provider)
	assert.NotNil(t, cfg.Billing.Plans)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_FileValues(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: SQLite
  local:
    dsn: /tmp/scribe.db
worker:
  concurrency: 4
  job_timeout: 10m
completion:
  provider: ollama
  base_url: http://localhost:11434
  model: llama3
billing:
  overage_rate_per_hour_cents: 250
  plans:
    starter: 120
    pro: 600
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "/tmp/scribe.db", cfg.Database.Local.DSN)
	assert.Equal(t, 4, cfg.Worker.Concurrency)
	assert.Equal(t, 10*time.Minute, cfg.Worker.JobTimeout)
	assert.Equal(t, CompletionOllama, cfg.Completion.Provider)
	assert.Equal(t, int64(250), cfg.Billing.OverageRatePerHourCents)
	assert.Equal(t, map[string]float64{"starter": 120, "pro": 600}, cfg.Billing.Plans)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "worker:\n  concurrency: 4\n")
	t.Setenv("SCRIBE_WORKER_CONCURRENCY", "8")
	t.Setenv("DATABASE_URL", "postgres://env/scribe")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("GEMINI_API_KEY", "gm-test")
	t.Setenv("SCRIBE_COMPLETION_PROVIDER", "openai")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Worker.Concurrency)
	assert.Equal(t, "postgres://env/scribe", cfg.Database.Primary.DSN)
	assert.Equal(t, "sk-test", cfg.Completion.APIKey)
	assert.Equal(t, "sk-test", cfg.Transcription.APIKey)
}

func TestLoadConfig_CompletionKeyFollowsProvider(t *testing.T) {
	path := writeConfig(t, "completion:\n  provider: gemini\n")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("GEMINI_API_KEY", "gm-test")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "gm-test", cfg.Completion.APIKey)

	t.Setenv("SCRIBE_COMPLETION_API_KEY", "explicit")
	cfg, err = LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "explicit", cfg.Completion.APIKey)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := LoadConfig(writeConfig(t, "database:\n  primary:\n    dsn: postgres://localhost/scribe\n"))
	require.NoError(t, err)
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		msg    string
	}{
		{"missing postgres dsn", func(c *Config) { c.Database.Primary.DSN = "" }, "database.primary.dsn"},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, "database.driver"},
		{"no redis", func(c *Config) { c.Redis.Address = "" }, "redis.address"},
		{"zero concurrency", func(c *Config) { c.Worker.Concurrency = 0 }, "worker.concurrency"},
		{"zero attempts", func(c *Config) { c.Worker.MaxAttempts = 0 }, "worker.max_attempts"},
		{"bad storage", func(c *Config) { c.Storage.Driver = "s3" }, "storage.driver"},
		{"fastwhisper without url", func(c *Config) { c.Transcription.BaseURL = "" }, "transcription.base_url"},
		{"openai transcription without key", func(c *Config) {
			c.Transcription.Provider = TranscriberOpenAI
			c.Transcription.APIKey = ""
		}, "transcription.api_key"},
		{"gemini without key", func(c *Config) {
			c.Completion.Provider = CompletionGemini
			c.Completion.APIKey = ""
		}, "completion.api_key"},
		{"ollama without url", func(c *Config) { c.Completion.Provider = CompletionOllama }, "completion.base_url"},
		{"unknown completion", func(c *Config) { c.Completion.Provider = "bard" }, "completion.provider"},
		{"negative plan", func(c *Config) { c.Billing.Plans["pro"] = -1 }, "billing.plans"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			cfg.Completion.APIKey = ""
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, models.ErrConfiguration)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestLogConfigApply(t *testing.T) {
	assert.NoError(t, LogConfig{Level: "debug", Format: "json"}.Apply())
	assert.NoError(t, LogConfig{Level: "info", Format: "text"}.Apply())
	assert.Error(t, LogConfig{Level: "loud"}.Apply())
	assert.Error(t, LogConfig{Level: "info", Format: "xml"}.Apply())
}
