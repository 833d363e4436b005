package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"scribe/internal/tasks"
)

// RegisterHandlers attaches the job handler to the mux.
func RegisterHandlers(mux *asynq.ServeMux, p *Processor) {
	log.Infof("Registering %s handler (stages: %v)", tasks.TypeProcessJob, p.StageNames())
	mux.HandleFunc(tasks.TypeProcessJob, HandleProcessJob(p))
}

// HandleProcessJob runs one delivery of a job task. Errors that cannot
// succeed on redelivery skip the remaining retries.
func HandleProcessJob(p *Processor) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		payload, err := tasks.ParseProcessJobPayload(t.Payload())
		if err != nil {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}

		err = p.Process(ctx, payload.JobID, IsFinalAttempt(ctx))
		if err != nil && !Retryable(err) {
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		return err
	}
}

// IsFinalAttempt reports whether this delivery is the last one the queue
// will make. Outside a queue delivery every attempt is final.
func IsFinalAttempt(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return true
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		return true
	}
	return retried >= maxRetry
}
