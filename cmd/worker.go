package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"scribe/internal/app"
	"scribe/internal/worker"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the background job worker",
	Long:  `Starts the Asynq worker process that consumes transcription jobs from the queue.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get application context: %w", err)
		}

		if err := runWorker(appInstance); err != nil {
			log.Errorf("Worker exited with error: %v", err)
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

// runWorker initializes and runs the Asynq worker server.
func runWorker(appInstance *app.App) error {
	cfg := appInstance.Config

	srv := worker.NewServer(appInstance.RedisOpt(), worker.ServerConfig{
		Concurrency:     cfg.Worker.Concurrency,
		Queue:           cfg.Worker.Queue,
		BackoffBase:     cfg.BackoffBase(),
		ShutdownTimeout: cfg.Worker.ShutdownTimeout,
	})

	mux := asynq.NewServeMux()
	worker.RegisterHandlers(mux, appInstance.Processor)

	log.Infof("Starting Asynq worker server (Concurrency: %d, Queue: %s)...", cfg.Worker.Concurrency, cfg.Worker.Queue)
	if err := srv.Start(mux); err != nil {
		return fmt.Errorf("failed to start Asynq server: %w", err)
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	log.Info("Shutdown signal received. Initiating graceful shutdown...")
	srv.Shutdown()

	log.Info("Worker shutdown complete.")
	return nil
}
