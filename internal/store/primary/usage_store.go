package primary

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"scribe/internal/models"
	"scribe/internal/store"
)

// GetBillingFacts reads the ledger inputs for an org outside any lock.
func (s *StoreImpl) GetBillingFacts(ctx context.Context, orgID string, since time.Time) (models.BillingFacts, error) {
	return readBillingFacts(ctx, s.db, orgID, since)
}

// ApplyUsage bills one job. Concurrent calls for the same org queue on a
// transaction-scoped advisory lock, so the facts allocate sees stay true
// until commit.
func (s *StoreImpl) ApplyUsage(ctx context.Context, orgID, jobID string, minutes float64, since time.Time, allocate store.AllocateFunc) (models.UsageAllocation, error) {
	var alloc models.UsageAllocation
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, orgID); err != nil {
			return fmt.Errorf("lock org %s: %w", orgID, err)
		}

		existing, err := usageRecordForJob(ctx, tx, jobID)
		if err == nil {
			alloc = existing.Allocation()
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		facts, err := readBillingFacts(ctx, tx, orgID, since)
		if err != nil {
			return err
		}
		a, err := allocate(facts)
		if err != nil {
			return err
		}

		if a.CreditsUsed > 0 {
			tag, err := tx.Exec(ctx, `
				UPDATE credit_balances SET minutes = minutes - $2, updated_at = now()
				WHERE org_id = $1 AND minutes >= $2`, orgID, a.CreditsUsed)
			if err != nil {
				return fmt.Errorf("debit credits of org %s: %w", orgID, err)
			}
			if tag.RowsAffected() == 0 {
				return fmt.Errorf("credit balance of org %s changed during billing: %w", orgID, store.ErrConflict)
			}
		}
		if a.RemainingOverLimit > 0 {
			if _, err := tx.Exec(ctx, `
				INSERT INTO orgs (id, over_limit) VALUES ($1, TRUE)
				ON CONFLICT (id) DO UPDATE SET over_limit = TRUE, updated_at = now()`, orgID); err != nil {
				return fmt.Errorf("flag org %s over limit: %w", orgID, err)
			}
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO usage_records (id, org_id, job_id, minutes, amount_cents, covered_included, credits_used, remaining_over_limit, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			uuid.New(), orgID, jobID, a.Minutes, a.AmountCents, a.CoveredIncluded, a.CreditsUsed, a.RemainingOverLimit, time.Now().UTC(),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("usage for job %s already recorded: %w", jobID, store.ErrDuplicate)
			}
			return fmt.Errorf("failed to insert usage record: %w", err)
		}
		alloc = a
		return nil
	})
	if err != nil {
		return models.UsageAllocation{}, err
	}
	return alloc, nil
}

// ListUsage returns an org's usage records, newest first.
func (s *StoreImpl) ListUsage(ctx context.Context, orgID string, limit, offset int) ([]*models.UsageRecord, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, org_id, job_id, minutes, amount_cents, covered_included, credits_used, remaining_over_limit, created_at
		FROM usage_records
		WHERE org_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, orgID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage_records: %w", err)
	}
	defer rows.Close()

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.UsageRecord, error) {
		var r models.UsageRecord
		err := row.Scan(&r.ID, &r.OrgID, &r.JobID, &r.Minutes, &r.AmountCents,
			&r.CoveredIncluded, &r.CreditsUsed, &r.RemainingOverLimit, &r.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan usage record: %w", err)
		}
		return &r, nil
	})
	return records, err
}

// UpsertSubscription creates the org if needed and replaces its subscription.
func (s *StoreImpl) UpsertSubscription(ctx context.Context, sub *models.Subscription) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if err := ensureOrg(ctx, tx, sub.OrgID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO subscriptions (org_id, status, plan_id, current_period_end, updated_at)
			VALUES ($1, $2, $3, $4, now())
			ON CONFLICT (org_id) DO UPDATE
			SET status = EXCLUDED.status, plan_id = EXCLUDED.plan_id,
			    current_period_end = EXCLUDED.current_period_end, updated_at = now()`,
			sub.OrgID, sub.Status, sub.PlanID, sub.CurrentPeriodEnd)
		if err != nil {
			return fmt.Errorf("failed to upsert subscription for org %s: %w", sub.OrgID, err)
		}
		return nil
	})
}

// GrantCredits adds prepaid minutes to an org's balance.
func (s *StoreImpl) GrantCredits(ctx context.Context, orgID string, minutes float64) error {
	if minutes <= 0 {
		return fmt.Errorf("%w: credit grant must be positive", models.ErrValidation)
	}
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if err := ensureOrg(ctx, tx, orgID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO credit_balances (org_id, minutes, updated_at) VALUES ($1, $2, now())
			ON CONFLICT (org_id) DO UPDATE SET minutes = credit_balances.minutes + EXCLUDED.minutes, updated_at = now()`,
			orgID, minutes)
		if err != nil {
			return fmt.Errorf("failed to grant credits to org %s: %w", orgID, err)
		}
		return nil
	})
}

func ensureOrg(ctx context.Context, q querier, orgID string) error {
	if _, err := q.Exec(ctx, `INSERT INTO orgs (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, orgID); err != nil {
		return fmt.Errorf("failed to ensure org %s: %w", orgID, err)
	}
	return nil
}

func readBillingFacts(ctx context.Context, q querier, orgID string, since time.Time) (models.BillingFacts, error) {
	var facts models.BillingFacts

	sub := &models.Subscription{}
	err := q.QueryRow(ctx, `
		SELECT org_id, status, plan_id, current_period_end FROM subscriptions WHERE org_id = $1`, orgID,
	).Scan(&sub.OrgID, &sub.Status, &sub.PlanID, &sub.CurrentPeriodEnd)
	switch {
	case err == nil:
		facts.Subscription = sub
	case errors.Is(err, pgx.ErrNoRows):
	default:
		return facts, fmt.Errorf("failed to read subscription of org %s: %w", orgID, err)
	}

	if err := q.QueryRow(ctx, `
		SELECT COALESCE(SUM(minutes), 0) FROM usage_records WHERE org_id = $1 AND created_at >= $2`,
		orgID, since.UTC(),
	).Scan(&facts.UsageThisMonth); err != nil {
		return facts, fmt.Errorf("failed to sum usage of org %s: %w", orgID, err)
	}

	err = q.QueryRow(ctx, `SELECT minutes FROM credit_balances WHERE org_id = $1`, orgID).Scan(&facts.Credits)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return facts, fmt.Errorf("failed to read credits of org %s: %w", orgID, err)
	}

	err = q.QueryRow(ctx, `SELECT over_limit FROM orgs WHERE id = $1`, orgID).Scan(&facts.OverLimit)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return facts, fmt.Errorf("failed to read org %s: %w", orgID, err)
	}
	return facts, nil
}

func usageRecordForJob(ctx context.Context, q querier, jobID string) (*models.UsageRecord, error) {
	var r models.UsageRecord
	err := q.QueryRow(ctx, `
		SELECT id, org_id, job_id, minutes, amount_cents, covered_included, credits_used, remaining_over_limit, created_at
		FROM usage_records WHERE job_id = $1`, jobID,
	).Scan(&r.ID, &r.OrgID, &r.JobID, &r.Minutes, &r.AmountCents,
		&r.CoveredIncluded, &r.CreditsUsed, &r.RemainingOverLimit, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read usage of job %s: %w", jobID, err)
	}
	return &r, nil
}
