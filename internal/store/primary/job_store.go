package primary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"scribe/internal/models"
	"scribe/internal/store"
)

// --- Job Store Implementation ---

// CreateJob inserts a job and its files in one transaction. Missing status
// defaults to queued.
func (s *StoreImpl) CreateJob(ctx context.Context, job *models.Job) error {
	params, err := json.Marshal(job.Params)
	if err != nil {
		return fmt.Errorf("encode job params: %w", err)
	}
	tasks, err := json.Marshal(job.Tasks)
	if err != nil {
		return fmt.Errorf("encode job tasks: %w", err)
	}
	if job.Status == "" {
		job.Status = models.JobStatusQueued
	}
	now := time.Now().UTC()

	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO jobs (id, org_id, user_id, status, progress, params, tasks, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
			job.ID, job.OrgID, job.UserID, job.Status, job.Progress, params, tasks, now,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("job %s already exists: %w", job.ID, store.ErrDuplicate)
			}
			return fmt.Errorf("failed to insert job: %w", err)
		}

		for i := range job.Files {
			f := &job.Files[i]
			f.JobID = job.ID
			err := tx.QueryRow(ctx, `
				INSERT INTO job_files (job_id, position, original_name, mime_type, bucket, storage_key)
				VALUES ($1, $2, $3, $4, $5, $6)
				RETURNING id`,
				job.ID, f.Position, f.OriginalName, f.MIMEType, f.Bucket, f.Key,
			).Scan(&f.ID)
			if err != nil {
				if isUniqueViolation(err) {
					return fmt.Errorf("file position %d repeated for job %s: %w", f.Position, job.ID, store.ErrDuplicate)
				}
				return fmt.Errorf("failed to insert job file: %w", err)
			}
		}
		job.CreatedAt, job.UpdatedAt = now, now
		return nil
	})
}

// GetJob returns a job with its files ordered by position.
func (s *StoreImpl) GetJob(ctx context.Context, id string) (*models.Job, error) {
	job := &models.Job{}
	var params, tasks, result []byte
	err := s.db.QueryRow(ctx, `
		SELECT id, org_id, user_id, status, progress, params, tasks, result, error, created_at, updated_at
		FROM jobs WHERE id = $1`, id,
	).Scan(
		&job.ID, &job.OrgID, &job.UserID, &job.Status, &job.Progress,
		&params, &tasks, &result, &job.Error, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("job %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get job %s: %w", id, err)
	}
	if err := json.Unmarshal(params, &job.Params); err != nil {
		return nil, fmt.Errorf("decode params of job %s: %w", id, err)
	}
	if err := json.Unmarshal(tasks, &job.Tasks); err != nil {
		return nil, fmt.Errorf("decode tasks of job %s: %w", id, err)
	}
	if len(result) > 0 {
		job.Result = json.RawMessage(result)
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, job_id, position, original_name, mime_type, bucket, storage_key
		FROM job_files WHERE job_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query files of job %s: %w", id, err)
	}
	files, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.File, error) {
		var f models.File
		err := row.Scan(&f.ID, &f.JobID, &f.Position, &f.OriginalName, &f.MIMEType, &f.Bucket, &f.Key)
		return f, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan files of job %s: %w", id, err)
	}
	job.Files = files
	return job, nil
}

// UpdateJobProgress moves a live job to status and raises its progress.
func (s *StoreImpl) UpdateJobProgress(ctx context.Context, id, status string, progress int) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE jobs SET status = $2, progress = GREATEST(progress, $3), updated_at = $4
		WHERE id = $1 AND status IN ('queued', 'processing')`,
		id, status, clampProgress(progress), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update progress of job %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return s.missOrConflict(ctx, id)
	}
	return nil
}

// CompleteJob stores the result and marks the job completed at 100.
func (s *StoreImpl) CompleteJob(ctx context.Context, id string, result json.RawMessage) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE jobs SET status = 'completed', progress = 100, result = $2, error = NULL, updated_at = $3
		WHERE id = $1 AND status IN ('queued', 'processing')`,
		id, []byte(result), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to complete job %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return s.missOrConflict(ctx, id)
	}
	return nil
}

// FailJob marks the job failed with a readable message. Progress is kept.
func (s *StoreImpl) FailJob(ctx context.Context, id, message string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE jobs SET status = 'failed', error = $2, updated_at = $3
		WHERE id = $1 AND status IN ('queued', 'processing')`,
		id, message, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to fail job %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return s.missOrConflict(ctx, id)
	}
	return nil
}

func (s *StoreImpl) missOrConflict(ctx context.Context, id string) error {
	var status string
	err := s.db.QueryRow(ctx, `SELECT status FROM jobs WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("job %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to read status of job %s: %w", id, err)
	}
	return fmt.Errorf("job %s is %s: %w", id, status, store.ErrConflict)
}

func clampProgress(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}
