package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"scribe/internal/tasks"
)

// ErrAlreadyQueued is returned when a job already has a live or archived task.
var ErrAlreadyQueued = errors.New("job already queued")

// DispatchOptions controls how job tasks are enqueued.
type DispatchOptions struct {
	Queue       string
	MaxAttempts int           // total deliveries, first one included
	Timeout     time.Duration // per delivery; zero uses the asynq default
}

// AsynqJobClient is a concrete JobClient backed by Redis.
type AsynqJobClient struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	opts      DispatchOptions
}

// Ensure it implements JobClient
var _ JobClient = (*AsynqJobClient)(nil)

func NewAsynqJobClient(redis asynq.RedisClientOpt, opts DispatchOptions) (*AsynqJobClient, error) {
	if redis.Addr == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}
	if opts.Queue == "" {
		opts.Queue = tasks.QueueTranscription
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return &AsynqJobClient{
		client:    asynq.NewClient(redis),
		inspector: asynq.NewInspector(redis),
		opts:      opts,
	}, nil
}

func (jc *AsynqJobClient) Close() error {
	return errors.Join(jc.client.Close(), jc.inspector.Close())
}

// taskOptions are the enqueue options for a job. The task ID is the job ID so
// a job cannot sit in the queue twice.
func (jc *AsynqJobClient) taskOptions(jobID string) []asynq.Option {
	opts := []asynq.Option{
		asynq.Queue(jc.opts.Queue),
		asynq.MaxRetry(jc.opts.MaxAttempts - 1),
		asynq.TaskID(jobID),
	}
	if jc.opts.Timeout > 0 {
		opts = append(opts, asynq.Timeout(jc.opts.Timeout))
	}
	return opts
}

// DispatchJob enqueues a job for processing.
func (jc *AsynqJobClient) DispatchJob(ctx context.Context, jobID string) (*asynq.TaskInfo, error) {
	task, err := tasks.NewProcessJobTask(jobID)
	if err != nil {
		return nil, err
	}
	info, err := jc.client.EnqueueContext(ctx, task, jc.taskOptions(jobID)...)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
			return nil, fmt.Errorf("dispatch job %s: %w", jobID, ErrAlreadyQueued)
		}
		log.WithField("job_id", jobID).Errorf("enqueue failed: %v", err)
		return nil, fmt.Errorf("dispatch job %s: %w", jobID, err)
	}
	log.WithFields(log.Fields{
		"job_id":    jobID,
		"queue":     info.Queue,
		"max_retry": info.MaxRetry,
	}).Debug("job dispatched")
	return info, nil
}

// ListDead returns archived tasks, the ones whose attempts ran out or that
// failed with a non-retryable error.
func (jc *AsynqJobClient) ListDead(ctx context.Context, limit int) ([]*asynq.TaskInfo, error) {
	if limit <= 0 {
		limit = 20
	}
	infos, err := jc.inspector.ListArchivedTasks(jc.opts.Queue, asynq.PageSize(limit))
	if err != nil {
		if errors.Is(err, asynq.ErrQueueNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("list dead tasks: %w", err)
	}
	return infos, nil
}

// Requeue moves an archived task back to pending.
func (jc *AsynqJobClient) Requeue(ctx context.Context, taskID string) error {
	if err := jc.inspector.RunTask(jc.opts.Queue, taskID); err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			return fmt.Errorf("task %s: %w", taskID, ErrNotFound)
		}
		return fmt.Errorf("requeue task %s: %w", taskID, err)
	}
	log.WithField("task_id", taskID).Info("dead task requeued")
	return nil
}
