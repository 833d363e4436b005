package local

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"scribe/internal/models"
	"scribe/internal/store"
)

// CreateJob inserts a job and its files in one transaction.
func (s *Store) CreateJob(ctx context.Context, job *models.Job) error {
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
	now := s.timestamp()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO jobs (id, org_id, user_id, status, progress, params, tasks, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			job.ID, job.OrgID, job.UserID, job.Status, job.Progress, string(params), string(tasks), now, now,
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
			res, err := tx.ExecContext(ctx, `
				INSERT INTO job_files (job_id, position, original_name, mime_type, bucket, storage_key)
				VALUES (?, ?, ?, ?, ?, ?)`,
				job.ID, f.Position, f.OriginalName, f.MIMEType, f.Bucket, f.Key,
			)
			if err != nil {
				if isUniqueViolation(err) {
					return fmt.Errorf("file position %d repeated for job %s: %w", f.Position, job.ID, store.ErrDuplicate)
				}
				return fmt.Errorf("failed to insert job file: %w", err)
			}
			if f.ID, err = res.LastInsertId(); err != nil {
				return fmt.Errorf("read job file id: %w", err)
			}
		}
		job.CreatedAt, job.UpdatedAt = now, now
		return nil
	})
}

// GetJob returns a job with its files ordered by position.
func (s *Store) GetJob(ctx context.Context, id string) (*models.Job, error) {
	job := &models.Job{}
	var params, tasks string
	var result sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, org_id, user_id, status, progress, params, tasks, result, error, created_at, updated_at
		FROM jobs WHERE id = ?`, id,
	).Scan(
		&job.ID, &job.OrgID, &job.UserID, &job.Status, &job.Progress,
		&params, &tasks, &result, &job.Error, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("job %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get job %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(params), &job.Params); err != nil {
		return nil, fmt.Errorf("decode params of job %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(tasks), &job.Tasks); err != nil {
		return nil, fmt.Errorf("decode tasks of job %s: %w", id, err)
	}
	if result.Valid && result.String != "" {
		job.Result = json.RawMessage(result.String)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, job_id, position, original_name, mime_type, bucket, storage_key
		FROM job_files WHERE job_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query files of job %s: %w", id, err)
	}
	defer rows.Close()
	job.Files = []models.File{}
	for rows.Next() {
		var f models.File
		if err := rows.Scan(&f.ID, &f.JobID, &f.Position, &f.OriginalName, &f.MIMEType, &f.Bucket, &f.Key); err != nil {
			return nil, fmt.Errorf("failed to scan file of job %s: %w", id, err)
		}
		job.Files = append(job.Files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating files of job %s: %w", id, err)
	}
	return job, nil
}

// UpdateJobProgress moves a live job to status and raises its progress.
func (s *Store) UpdateJobProgress(ctx context.Context, id, status string, progress int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, progress = MAX(progress, ?), updated_at = ?
		WHERE id = ? AND status IN ('queued', 'processing')`,
		status, clampProgress(progress), s.timestamp(), id)
	if err != nil {
		return fmt.Errorf("failed to update progress of job %s: %w", id, err)
	}
	return s.checkAffected(ctx, res, id)
}

// CompleteJob stores the result and marks the job completed at 100.
func (s *Store) CompleteJob(ctx context.Context, id string, result json.RawMessage) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = 'completed', progress = 100, result = ?, error = NULL, updated_at = ?
		WHERE id = ? AND status IN ('queued', 'processing')`,
		string(result), s.timestamp(), id)
	if err != nil {
		return fmt.Errorf("failed to complete job %s: %w", id, err)
	}
	return s.checkAffected(ctx, res, id)
}

// FailJob marks the job failed with a readable message. Progress is kept.
func (s *Store) FailJob(ctx context.Context, id, message string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = 'failed', error = ?, updated_at = ?
		WHERE id = ? AND status IN ('queued', 'processing')`,
		message, s.timestamp(), id)
	if err != nil {
		return fmt.Errorf("failed to fail job %s: %w", id, err)
	}
	return s.checkAffected(ctx, res, id)
}

func (s *Store) checkAffected(ctx context.Context, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for job %s: %w", id, err)
	}
	if n > 0 {
		return nil
	}
	var status string
	err = s.db.QueryRowContext(ctx, `SELECT status FROM jobs WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("job %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to read status of job %s: %w", id, err)
	}
	return fmt.Errorf("job %s is %s: %w", id, status, store.ErrConflict)
}

func clampProgress(p int) int {
	return max(0, min(100, p))
}
