package local

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"scribe/internal/models"
	"scribe/internal/store"
)

// GetBillingFacts reads the ledger inputs for an org.
func (s *Store) GetBillingFacts(ctx context.Context, orgID string, since time.Time) (models.BillingFacts, error) {
	return readBillingFacts(ctx, s.db, orgID, since)
}

// ApplyUsage bills one job inside a single transaction. The store holds one
// connection, so concurrent callers run one after another.
func (s *Store) ApplyUsage(ctx context.Context, orgID, jobID string, minutes float64, since time.Time, allocate store.AllocateFunc) (models.UsageAllocation, error) {
	var alloc models.UsageAllocation
	err := s.withTx(ctx, func(tx *sql.Tx) error {
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
		now := s.timestamp()

		if a.CreditsUsed > 0 {
			res, err := tx.ExecContext(ctx, `
				UPDATE credit_balances SET minutes = minutes - ?, updated_at = ?
				WHERE org_id = ? AND minutes >= ?`, a.CreditsUsed, now, orgID, a.CreditsUsed)
			if err != nil {
				return fmt.Errorf("debit credits of org %s: %w", orgID, err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return fmt.Errorf("credit balance of org %s changed during billing: %w", orgID, store.ErrConflict)
			}
		}
		if a.RemainingOverLimit > 0 {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO orgs (id, over_limit, created_at, updated_at) VALUES (?, 1, ?, ?)
				ON CONFLICT (id) DO UPDATE SET over_limit = 1, updated_at = excluded.updated_at`,
				orgID, now, now); err != nil {
				return fmt.Errorf("flag org %s over limit: %w", orgID, err)
			}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO usage_records (id, org_id, job_id, minutes, amount_cents, covered_included, credits_used, remaining_over_limit, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.NewString(), orgID, jobID, a.Minutes, a.AmountCents, a.CoveredIncluded, a.CreditsUsed, a.RemainingOverLimit, now,
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
func (s *Store) ListUsage(ctx context.Context, orgID string, limit, offset int) ([]*models.UsageRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, org_id, job_id, minutes, amount_cents, covered_included, credits_used, remaining_over_limit, created_at
		FROM usage_records
		WHERE org_id = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?`, orgID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage_records: %w", err)
	}
	defer rows.Close()

	var records []*models.UsageRecord
	for rows.Next() {
		r, err := scanUsageRecord(rows)
		if err != nil {
			return records, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return records, fmt.Errorf("error iterating usage records: %w", err)
	}
	return records, nil
}

// UpsertSubscription creates the org if needed and replaces its subscription.
func (s *Store) UpsertSubscription(ctx context.Context, sub *models.Subscription) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		now := s.timestamp()
		if err := ensureOrg(ctx, tx, sub.OrgID, now); err != nil {
			return err
		}
		var periodEnd any
		if sub.CurrentPeriodEnd != nil {
			periodEnd = sub.CurrentPeriodEnd.UTC()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO subscriptions (org_id, status, plan_id, current_period_end, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (org_id) DO UPDATE
			SET status = excluded.status, plan_id = excluded.plan_id,
			    current_period_end = excluded.current_period_end, updated_at = excluded.updated_at`,
			sub.OrgID, sub.Status, sub.PlanID, periodEnd, now)
		if err != nil {
			return fmt.Errorf("failed to upsert subscription for org %s: %w", sub.OrgID, err)
		}
		return nil
	})
}

// GrantCredits adds prepaid minutes to an org's balance.
func (s *Store) GrantCredits(ctx context.Context, orgID string, minutes float64) error {
	if minutes <= 0 {
		return fmt.Errorf("%w: credit grant must be positive", models.ErrValidation)
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		now := s.timestamp()
		if err := ensureOrg(ctx, tx, orgID, now); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO credit_balances (org_id, minutes, updated_at) VALUES (?, ?, ?)
			ON CONFLICT (org_id) DO UPDATE SET minutes = credit_balances.minutes + excluded.minutes, updated_at = excluded.updated_at`,
			orgID, minutes, now)
		if err != nil {
			return fmt.Errorf("failed to grant credits to org %s: %w", orgID, err)
		}
		return nil
	})
}

func ensureOrg(ctx context.Context, q execer, orgID string, now time.Time) error {
	if _, err := q.ExecContext(ctx, `
		INSERT INTO orgs (id, over_limit, created_at, updated_at) VALUES (?, 0, ?, ?)
		ON CONFLICT (id) DO NOTHING`, orgID, now, now); err != nil {
		return fmt.Errorf("failed to ensure org %s: %w", orgID, err)
	}
	return nil
}

func readBillingFacts(ctx context.Context, q execer, orgID string, since time.Time) (models.BillingFacts, error) {
	var facts models.BillingFacts

	sub := &models.Subscription{}
	err := q.QueryRowContext(ctx, `
		SELECT org_id, status, plan_id, current_period_end FROM subscriptions WHERE org_id = ?`, orgID,
	).Scan(&sub.OrgID, &sub.Status, &sub.PlanID, &sub.CurrentPeriodEnd)
	switch {
	case err == nil:
		facts.Subscription = sub
	case errors.Is(err, sql.ErrNoRows):
	default:
		return facts, fmt.Errorf("failed to read subscription of org %s: %w", orgID, err)
	}

	if err := q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(minutes), 0.0) FROM usage_records WHERE org_id = ? AND created_at >= ?`,
		orgID, since.UTC(),
	).Scan(&facts.UsageThisMonth); err != nil {
		return facts, fmt.Errorf("failed to sum usage of org %s: %w", orgID, err)
	}

	err = q.QueryRowContext(ctx, `SELECT minutes FROM credit_balances WHERE org_id = ?`, orgID).Scan(&facts.Credits)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return facts, fmt.Errorf("failed to read credits of org %s: %w", orgID, err)
	}

	err = q.QueryRowContext(ctx, `SELECT over_limit FROM orgs WHERE id = ?`, orgID).Scan(&facts.OverLimit)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return facts, fmt.Errorf("failed to read org %s: %w", orgID, err)
	}
	return facts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUsageRecord(row rowScanner) (*models.UsageRecord, error) {
	var r models.UsageRecord
	var id string
	err := row.Scan(&id, &r.OrgID, &r.JobID, &r.Minutes, &r.AmountCents,
		&r.CoveredIncluded, &r.CreditsUsed, &r.RemainingOverLimit, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	if r.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid usage record id %q: %w", id, err)
	}
	return &r, nil
}

func usageRecordForJob(ctx context.Context, q execer, jobID string) (*models.UsageRecord, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, org_id, job_id, minutes, amount_cents, covered_included, credits_used, remaining_over_limit, created_at
		FROM usage_records WHERE job_id = ?`, jobID)
	r, err := scanUsageRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read usage of job %s: %w", jobID, err)
	}
	return r, nil
}
