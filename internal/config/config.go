package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Supported drivers and providers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	StorageLocal = "local"
	StorageGCS   = "gcs"

	TranscriberFastWhisper = "fastwhisper"
	TranscriberOpenAI      = "openai"

	CompletionNone   = "none"
	CompletionOpenAI = "openai"
	CompletionGemini = "gemini"
	CompletionOllama = "ollama"
)

type Config struct {
	Database struct {
		Driver  string `mapstructure:"driver"`
		Primary struct {
			DSN string `mapstructure:"dsn"`
		} `mapstructure:"primary"`
		Local struct {
			DSN string `mapstructure:"dsn"`
		} `mapstructure:"local"`
	} `mapstructure:"database"`

	Redis struct {
		Address  string `mapstructure:"address"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	Worker struct {
		Concurrency     int           `mapstructure:"concurrency"`
		Queue           string        `mapstructure:"queue"`
		MaxAttempts     int           `mapstructure:"max_attempts"`
		BackoffBaseMS   int           `mapstructure:"backoff_base_ms"`
		JobTimeout      time.Duration `mapstructure:"job_timeout"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	} `mapstructure:"worker"`

	Storage struct {
		Driver             string `mapstructure:"driver"`
		LocalRoot          string `mapstructure:"local_root"`
		GCSCredentialsFile string `mapstructure:"gcs_credentials_file"`
		GCSEndpoint        string `mapstructure:"gcs_endpoint"`
	} `mapstructure:"storage"`

	Transcription struct {
		Provider     string        `mapstructure:"provider"`
		BaseURL      string        `mapstructure:"base_url"`
		APIKey       string        `mapstructure:"api_key"`
		DefaultModel string        `mapstructure:"default_model"` // openai only; gateway size names map to it
		Timeout      time.Duration `mapstructure:"timeout"`
	} `mapstructure:"transcription"`

	Completion struct {
		Provider string        `mapstructure:"provider"`
		BaseURL  string        `mapstructure:"base_url"`
		APIKey   string        `mapstructure:"api_key"`
		Model    string        `mapstructure:"model"`
		Timeout  time.Duration `mapstructure:"timeout"`
	} `mapstructure:"completion"`

	Translation struct {
		MaxChunkChars int `mapstructure:"max_chunk_chars"`
	} `mapstructure:"translation"`

	Billing struct {
		OverageRatePerHourCents int64 `mapstructure:"overage_rate_per_hour_cents"`
		// Plans maps a plan ID to its included minutes per month.
		Plans map[string]float64 `mapstructure:"plans"`
	} `mapstructure:"billing"`

	Server struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"server"`

	Log LogConfig `mapstructure:"log"`
}

// LogConfig selects the logrus level and formatter.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.primary.dsn", "")
	v.SetDefault("database.local.dsn", "scribe.db")

	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("worker.concurrency", 2)
	v.SetDefault("worker.queue", "transcription")
	v.SetDefault("worker.max_attempts", 3)
	v.SetDefault("worker.backoff_base_ms", 2000)
	v.SetDefault("worker.job_timeout", 30*time.Minute)
	v.SetDefault("worker.shutdown_timeout", 30*time.Second)

	v.SetDefault("storage.driver", StorageLocal)
	v.SetDefault("storage.local_root", "./media")
	v.SetDefault("storage.gcs_credentials_file", "")
	v.SetDefault("storage.gcs_endpoint", "")

	v.SetDefault("transcription.provider", TranscriberFastWhisper)
	v.SetDefault("transcription.base_url", "http://localhost:8000")
	v.SetDefault("transcription.api_key", "")
	v.SetDefault("transcription.default_model", "")
	v.SetDefault("transcription.timeout", 300*time.Second)

	v.SetDefault("completion.provider", CompletionNone)
	v.SetDefault("completion.base_url", "")
	v.SetDefault("completion.api_key", "")
	v.SetDefault("completion.model", "")
	v.SetDefault("completion.timeout", 120*time.Second)

	v.SetDefault("translation.max_chunk_chars", 4000)

	v.SetDefault("billing.overage_rate_per_hour_cents", 199)

	v.SetDefault("server.addr", ":8080")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// LoadConfig reads config.yaml from the working directory or
// $HOME/.config/scribe, unless configFile names one explicitly. Environment
// variables prefixed SCRIBE_ override file values.
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "scribe"))
		}
	}

	v.SetEnvPrefix("SCRIBE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Conventional variable names, honored after the prefixed form.
	_ = v.BindEnv("database.primary.dsn", "SCRIBE_DATABASE_PRIMARY_DSN", "DATABASE_URL")
	_ = v.BindEnv("redis.address", "SCRIBE_REDIS_ADDRESS", "REDIS_ADDR")
	_ = v.BindEnv("transcription.api_key", "SCRIBE_TRANSCRIPTION_API_KEY", "OPENAI_API_KEY")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configFile != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		log.Debug("no config file found, using defaults and environment")
	} else {
		log.Debugf("using config file %s", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()
	return &cfg, nil
}

func (c *Config) normalize() {
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	c.Transcription.Provider = strings.ToLower(strings.TrimSpace(c.Transcription.Provider))
	c.Completion.Provider = strings.ToLower(strings.TrimSpace(c.Completion.Provider))
	if c.Completion.Provider == "" {
		c.Completion.Provider = CompletionNone
	}
	if c.Completion.APIKey == "" {
		switch c.Completion.Provider {
		case CompletionOpenAI:
			c.Completion.APIKey = os.Getenv("OPENAI_API_KEY")
		case CompletionGemini:
			c.Completion.APIKey = os.Getenv("GEMINI_API_KEY")
		}
	}
	if c.Billing.Plans == nil {
		c.Billing.Plans = map[string]float64{}
	}
}

// BackoffBase is the first retry delay.
func (c *Config) BackoffBase() time.Duration {
	return time.Duration(c.Worker.BackoffBaseMS) * time.Millisecond
}

// Apply configures the global logrus logger.
func (l LogConfig) Apply() error {
	level, err := log.ParseLevel(l.Level)
	if err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	log.SetLevel(level)
	switch strings.ToLower(l.Format) {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		return fmt.Errorf("log.format must be text or json, got %q", l.Format)
	}
	return nil
}
