package config

import (
	"fmt"

	"scribe/internal/models"
)

// Validate checks that every enabled driver and provider has what it needs.
func (c *Config) Validate() error {
	// Database
	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.Primary.DSN == "" {
			return invalid("database.primary.dsn is required for the postgres driver")
		}
	case DriverSQLite:
		if c.Database.Local.DSN == "" {
			return invalid("database.local.dsn is required for the sqlite driver")
		}
	default:
		return invalid("database.driver must be %q or %q, got %q", DriverPostgres, DriverSQLite, c.Database.Driver)
	}

	// Redis
	if c.Redis.Address == "" {
		return invalid("redis.address is required")
	}

	// Worker
	if c.Worker.Concurrency <= 0 {
		return invalid("worker.concurrency must be a positive integer")
	}
	if c.Worker.Queue == "" {
		return invalid("worker.queue is required")
	}
	if c.Worker.MaxAttempts < 1 {
		return invalid("worker.max_attempts must be at least 1")
	}
	if c.Worker.BackoffBaseMS <= 0 {
		return invalid("worker.backoff_base_ms must be positive")
	}

	// Storage
	switch c.Storage.Driver {
	case StorageLocal:
		if c.Storage.LocalRoot == "" {
			return invalid("storage.local_root is required for the local driver")
		}
	case StorageGCS:
	default:
		return invalid("storage.driver must be %q or %q, got %q", StorageLocal, StorageGCS, c.Storage.Driver)
	}

	// Transcription
	switch c.Transcription.Provider {
	case TranscriberFastWhisper:
		if c.Transcription.BaseURL == "" {
			return invalid("transcription.base_url is required for the fastwhisper provider")
		}
	case TranscriberOpenAI:
		if c.Transcription.APIKey == "" {
			return invalid("transcription.api_key is required for the openai provider")
		}
	default:
		return invalid("transcription.provider must be %q or %q, got %q", TranscriberFastWhisper, TranscriberOpenAI, c.Transcription.Provider)
	}

	// Completion
	switch c.Completion.Provider {
	case CompletionNone:
	case CompletionOpenAI, CompletionGemini:
		if c.Completion.APIKey == "" {
			return invalid("completion.api_key is required for the %s provider", c.Completion.Provider)
		}
	case CompletionOllama:
		if c.Completion.BaseURL == "" {
			return invalid("completion.base_url is required for the ollama provider")
		}
	default:
		return invalid("completion.provider %q is not supported", c.Completion.Provider)
	}

	if c.Translation.MaxChunkChars < 0 {
		return invalid("translation.max_chunk_chars must not be negative")
	}

	// Billing
	if c.Billing.OverageRatePerHourCents < 0 {
		return invalid("billing.overage_rate_per_hour_cents must not be negative")
	}
	for plan, minutes := range c.Billing.Plans {
		if plan == "" {
			return invalid("billing.plans contains an empty plan id")
		}
		if minutes < 0 {
			return invalid("billing.plans included minutes for plan '%s' must not be negative", plan)
		}
	}

	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", models.ErrConfiguration, fmt.Sprintf(format, args...))
}
