package local

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS orgs (
		id         TEXT PRIMARY KEY,
		over_limit INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS subscriptions (
		org_id             TEXT PRIMARY KEY REFERENCES orgs(id),
		status             TEXT NOT NULL,
		plan_id            TEXT NOT NULL,
		current_period_end TIMESTAMP,
		updated_at         TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS credit_balances (
		org_id     TEXT PRIMARY KEY REFERENCES orgs(id),
		minutes    REAL NOT NULL DEFAULT 0 CHECK (minutes >= 0),
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS jobs (
		id         TEXT PRIMARY KEY,
		org_id     TEXT,
		user_id    TEXT,
		status     TEXT NOT NULL CHECK (status IN ('queued', 'processing', 'completed', 'failed')),
		progress   INTEGER NOT NULL DEFAULT 0 CHECK (progress BETWEEN 0 AND 100),
		params     TEXT NOT NULL DEFAULT '{}',
		tasks      TEXT NOT NULL DEFAULT '{}',
		result     TEXT,
		error      TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS job_files (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id        TEXT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
		position      INTEGER NOT NULL,
		original_name TEXT NOT NULL,
		mime_type     TEXT NOT NULL DEFAULT '',
		bucket        TEXT NOT NULL,
		storage_key   TEXT NOT NULL,
		UNIQUE (job_id, position)
	)`,
	`CREATE TABLE IF NOT EXISTS usage_records (
		id                   TEXT PRIMARY KEY,
		org_id               TEXT NOT NULL,
		job_id               TEXT NOT NULL UNIQUE,
		minutes              REAL NOT NULL,
		amount_cents         INTEGER NOT NULL DEFAULT 0,
		covered_included     REAL NOT NULL DEFAULT 0,
		credits_used         REAL NOT NULL DEFAULT 0,
		remaining_over_limit REAL NOT NULL DEFAULT 0,
		created_at           TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS usage_records_org_created_idx ON usage_records (org_id, created_at)`,
}

// Migrate creates the tables the pipeline and ledger need.
func (s *Store) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d failed: %w", i+1, err)
		}
	}
	return nil
}
