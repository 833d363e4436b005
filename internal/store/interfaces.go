package store

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/hibiken/asynq"
	"scribe/internal/models"
)

// --- Job Client ---

type JobClient interface {
	// DispatchJob enqueues a job for processing with at-least-once delivery.
	DispatchJob(ctx context.Context, jobID string) (*asynq.TaskInfo, error)
	// ListDead returns tasks whose delivery attempts were exhausted.
	ListDead(ctx context.Context, limit int) ([]*asynq.TaskInfo, error)
	// Requeue moves a dead task back to pending. Never automatic.
	Requeue(ctx context.Context, taskID string) error
	Close() error
}

// --- Job Store ---

type JobStore interface {
	CreateJob(ctx context.Context, job *models.Job) error
	// GetJob returns the job with its files in position order.
	GetJob(ctx context.Context, id string) (*models.Job, error)
	// UpdateJobProgress sets status and raises progress; progress never
	// decreases. Returns ErrConflict for terminal jobs.
	UpdateJobProgress(ctx context.Context, id, status string, progress int) error
	CompleteJob(ctx context.Context, id string, result json.RawMessage) error
	FailJob(ctx context.Context, id, message string) error

	Ping(ctx context.Context) error
}

// --- Usage Store ---

// AllocateFunc decides an allocation from facts read under the org lock.
type AllocateFunc func(facts models.BillingFacts) (models.UsageAllocation, error)

type UsageStore interface {
	// GetBillingFacts reads subscription, usage since the given instant,
	// credit balance and over-limit flag for an org.
	GetBillingFacts(ctx context.Context, orgID string, since time.Time) (models.BillingFacts, error)
	// ApplyUsage serializes per org: it re-reads facts, calls allocate,
	// debits credits, flags over-limit and writes one usage record, all in
	// one transaction. A job that already has a record gets its stored
	// allocation back and nothing is written.
	ApplyUsage(ctx context.Context, orgID, jobID string, minutes float64, since time.Time, allocate AllocateFunc) (models.UsageAllocation, error)
	ListUsage(ctx context.Context, orgID string, limit, offset int) ([]*models.UsageRecord, error)
}

// --- Object Store ---

// ObjectStore opens media inputs by bucket and key.
type ObjectStore interface {
	Open(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// --- Billing Sync ---

// BillingSync is the write side of subscriptions and credit grants. Payment
// reconciliation lives elsewhere; operators use this to seed an org.
type BillingSync interface {
	UpsertSubscription(ctx context.Context, sub *models.Subscription) error
	GrantCredits(ctx context.Context, orgID string, minutes float64) error
}
