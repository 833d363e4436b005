package worker

import (
	"context"
	"math"
	"time"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"
)

const (
	defaultBackoffBase = 2 * time.Second
	maxBackoff         = 5 * time.Minute
)

// ServerConfig configures the queue consumer.
type ServerConfig struct {
	Concurrency     int
	Queue           string
	BackoffBase     time.Duration
	ShutdownTimeout time.Duration
}

// NewServer builds an asynq server for the transcription queue.
func NewServer(redis asynq.RedisClientOpt, cfg ServerConfig) *asynq.Server {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	queues := map[string]int{cfg.Queue: 1}
	return asynq.NewServer(redis, asynq.Config{
		Concurrency:     cfg.Concurrency,
		Queues:          queues,
		RetryDelayFunc:  RetryDelay(cfg.BackoffBase),
		ShutdownTimeout: cfg.ShutdownTimeout,
		Logger:          log.StandardLogger(),
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			taskID, _ := asynq.GetTaskID(ctx)
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			log.WithFields(log.Fields{
				"task_id":   taskID,
				"type":      task.Type(),
				"retried":   retried,
				"max_retry": maxRetry,
			}).Errorf("task failed: %v", err)
		}),
	})
}

// RetryDelay returns exponential backoff from base, doubling per retry and
// capped at five minutes.
func RetryDelay(base time.Duration) asynq.RetryDelayFunc {
	if base <= 0 {
		base = defaultBackoffBase
	}
	return func(n int, _ error, _ *asynq.Task) time.Duration {
		if n < 0 {
			n = 0
		}
		d := float64(base) * math.Pow(2, float64(n))
		if d > float64(maxBackoff) {
			return maxBackoff
		}
		return time.Duration(d)
	}
}
