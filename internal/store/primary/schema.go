package primary

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// schema is applied in order by Migrate. Every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS orgs (
		id         TEXT PRIMARY KEY,
		over_limit BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS subscriptions (
		org_id             TEXT PRIMARY KEY REFERENCES orgs(id),
		status             TEXT NOT NULL,
		plan_id            TEXT NOT NULL,
		current_period_end TIMESTAMPTZ,
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS credit_balances (
		org_id     TEXT PRIMARY KEY REFERENCES orgs(id),
		minutes    DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (minutes >= 0),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS jobs (
		id         TEXT PRIMARY KEY,
		org_id     TEXT,
		user_id    TEXT,
		status     TEXT NOT NULL CHECK (status IN ('queued', 'processing', 'completed', 'failed')),
		progress   INTEGER NOT NULL DEFAULT 0 CHECK (progress BETWEEN 0 AND 100),
		params     JSONB NOT NULL DEFAULT '{}',
		tasks      JSONB NOT NULL DEFAULT '{}',
		result     JSONB,
		error      TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS jobs_org_id_idx ON jobs (org_id)`,
	`CREATE TABLE IF NOT EXISTS job_files (
		id            BIGSERIAL PRIMARY KEY,
		job_id        TEXT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
		position      INTEGER NOT NULL,
		original_name TEXT NOT NULL,
		mime_type     TEXT NOT NULL DEFAULT '',
		bucket        TEXT NOT NULL,
		storage_key   TEXT NOT NULL,
		UNIQUE (job_id, position)
	)`,
	`CREATE TABLE IF NOT EXISTS usage_records (
		id                   UUID PRIMARY KEY,
		org_id               TEXT NOT NULL,
		job_id               TEXT NOT NULL UNIQUE,
		minutes              DOUBLE PRECISION NOT NULL,
		amount_cents         BIGINT NOT NULL DEFAULT 0,
		covered_included     DOUBLE PRECISION NOT NULL DEFAULT 0,
		credits_used         DOUBLE PRECISION NOT NULL DEFAULT 0,
		remaining_over_limit DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS usage_records_org_created_idx ON usage_records (org_id, created_at DESC)`,
}

// Migrate creates the tables the pipeline and ledger need.
func (s *StoreImpl) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d failed: %w", i+1, err)
		}
	}
	log.Infof("postgres schema up to date (%d statements)", len(schema))
	return nil
}
