package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"scribe/internal/config"
	"scribe/internal/ledger"
	"scribe/internal/services"
	"scribe/internal/store"
	"scribe/internal/store/local"
	"scribe/internal/store/objects"
	"scribe/internal/store/primary"
	"scribe/internal/worker"
)

// Database is what both store drivers provide.
type Database interface {
	store.JobStore
	store.UsageStore
	store.BillingSync
	Migrate(ctx context.Context) error
	Close()
}

type App struct {
	Config *config.Config

	DB        Database
	JobStore  store.JobStore
	Usage     store.UsageStore
	Billing   store.BillingSync
	Objects   store.ObjectStore
	JobClient store.JobClient

	Transcriber services.Transcriber
	Completer   services.CompletionService
	// Translator and Summarizer are nil when no completion provider is set.
	Translator services.Translator
	Summarizer services.SummaryService

	Ledger    *ledger.Ledger
	Processor *worker.Processor
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{Config: cfg}

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"database", app.initDatabase},
		{"object store", app.initObjectStore},
		{"job client", app.initJobClient},
		{"transcriber", app.initTranscriber},
		{"completion service", app.initCompletionService},
		{"translation and summary", app.initPostProcessing},
		{"ledger", app.initLedger},
		{"processor", app.initProcessor},
	}
	for _, step := range steps {
		if err := step.fn(ctx); err != nil {
			app.Close()
			return nil, fmt.Errorf("init %s: %w", step.name, err)
		}
	}

	log.WithFields(log.Fields{
		"database":      cfg.Database.Driver,
		"storage":       cfg.Storage.Driver,
		"transcription": app.Transcriber.Name(),
		"completion":    app.Completer.Name(),
	}).Info("Application initialization complete.")
	return app, nil
}

// RedisOpt is the asynq connection for clients and servers.
func (a *App) RedisOpt() asynq.RedisClientOpt {
	return RedisOpt(a.Config)
}

func RedisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
}

// --- Private Helper Methods ---

func (a *App) initDatabase(ctx context.Context) error {
	var db Database
	switch a.Config.Database.Driver {
	case config.DriverPostgres:
		ps, err := primary.NewPrimaryStore(ctx, a.Config.Database.Primary.DSN)
		if err != nil {
			return err
		}
		db = ps
	case config.DriverSQLite:
		ls, err := local.Open(ctx, a.Config.Database.Local.DSN)
		if err != nil {
			return err
		}
		db = ls
	default:
		return fmt.Errorf("unsupported database driver %q", a.Config.Database.Driver)
	}
	a.DB = db
	a.JobStore = db
	a.Usage = db
	a.Billing = db
	return nil
}

func (a *App) initObjectStore(ctx context.Context) error {
	cfg := a.Config.Storage
	switch cfg.Driver {
	case config.StorageGCS:
		gcs, err := objects.NewGCSStore(ctx, objects.GCSConfig{
			CredentialsFile: cfg.GCSCredentialsFile,
			Endpoint:        cfg.GCSEndpoint,
		})
		if err != nil {
			return err
		}
		a.Objects = gcs
	default:
		ls, err := objects.NewLocalStore(cfg.LocalRoot)
		if err != nil {
			return err
		}
		a.Objects = ls
	}
	return nil
}

func (a *App) initJobClient(ctx context.Context) error {
	jc, err := store.NewAsynqJobClient(a.RedisOpt(), store.DispatchOptions{
		Queue:       a.Config.Worker.Queue,
		MaxAttempts: a.Config.Worker.MaxAttempts,
		Timeout:     a.Config.Worker.JobTimeout,
	})
	if err != nil {
		return err
	}
	a.JobClient = jc
	return nil
}

func (a *App) initTranscriber(ctx context.Context) error {
	cfg := a.Config.Transcription
	switch cfg.Provider {
	case config.TranscriberOpenAI:
		t, err := services.NewOpenAITranscriber(cfg.APIKey, cfg.BaseURL, cfg.DefaultModel)
		if err != nil {
			return err
		}
		a.Transcriber = t
	default:
		t, err := services.NewFastWhisperTranscriber(cfg.BaseURL, cfg.APIKey, &http.Client{})
		if err != nil {
			return err
		}
		a.Transcriber = t
	}
	return nil
}

func (a *App) initCompletionService(ctx context.Context) error {
	cfg := a.Config.Completion
	switch cfg.Provider {
	case config.CompletionOpenAI:
		a.Completer = services.NewOpenAIProvider(cfg.APIKey, cfg.BaseURL, cfg.Model)
	case config.CompletionGemini:
		g, err := services.NewGeminiProvider(ctx, cfg.APIKey, cfg.Model)
		if err != nil {
			return err
		}
		a.Completer = g
	case config.CompletionOllama:
		a.Completer = services.NewOllamaProvider(cfg.BaseURL, cfg.Model, &http.Client{})
	default:
		log.Info("No completion provider configured; translation and summaries are disabled.")
		a.Completer = services.NewDisabledCompletionService(cfg.Provider)
	}
	return nil
}

func (a *App) initPostProcessing(ctx context.Context) error {
	if a.Completer.Status() != services.ProviderStatusActive {
		return nil
	}
	translator, err := services.NewCompletionTranslator(a.Completer, a.Config.Translation.MaxChunkChars)
	if err != nil {
		return err
	}
	a.Translator = translator
	a.Summarizer = services.NewCompletionSummaryService(a.Completer)
	return nil
}

func (a *App) initLedger(ctx context.Context) error {
	a.Ledger = ledger.New(a.Usage, a.Config.Billing.Plans, a.Config.Billing.OverageRatePerHourCents)
	return nil
}

func (a *App) initProcessor(ctx context.Context) error {
	deps := worker.Deps{
		Jobs:                 a.JobStore,
		Objects:              a.Objects,
		Transcriber:          a.Transcriber,
		Translator:           a.Translator,
		Summarizer:           a.Summarizer,
		Ledger:               a.Ledger,
		TranscriptionTimeout: a.Config.Transcription.Timeout,
		CompletionTimeout:    a.Config.Completion.Timeout,
	}
	p, err := worker.NewProcessor(deps)
	if err != nil {
		return err
	}
	a.Processor = p
	return nil
}

// Close releases every initialized resource. Safe on a partial App.
func (a *App) Close() {
	if a.JobClient != nil {
		if err := a.JobClient.Close(); err != nil {
			log.Warnf("Error closing job client: %v", err)
		}
	}
	if c, ok := a.Completer.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			log.Warnf("Error closing completion service: %v", err)
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
