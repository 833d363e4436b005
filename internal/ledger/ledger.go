// Package ledger decides whether an org may start a job and bills the
// minutes a finished job consumed.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"scribe/internal/models"
	"scribe/internal/store"
)

// DefaultRatePerHourCents is the overage price when none is configured.
const DefaultRatePerHourCents int64 = 199

// Ledger is the usage metering and entitlement engine.
type Ledger struct {
	store            store.UsageStore
	plans            map[string]float64 // plan ID -> included minutes per month
	ratePerHourCents int64
	now              func() time.Time
}

// Option customizes a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source used for the monthly window.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New creates a Ledger over a usage store.
func New(s store.UsageStore, plans map[string]float64, ratePerHourCents int64, opts ...Option) *Ledger {
	if ratePerHourCents <= 0 {
		ratePerHourCents = DefaultRatePerHourCents
	}
	normalized := make(map[string]float64, len(plans))
	for id, minutes := range plans {
		normalized[strings.ToLower(id)] = minutes
	}
	l := &Ledger{
		store:            s,
		plans:            normalized,
		ratePerHourCents: ratePerHourCents,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// IncludedMinutes returns the monthly allowance of a plan. Plan IDs match
// case-insensitively. Unknown plans include nothing.
func (l *Ledger) IncludedMinutes(planID string) float64 {
	minutes, ok := l.plans[strings.ToLower(planID)]
	if !ok && planID != "" {
		log.Warnf("ledger: no included minutes configured for plan %q", planID)
	}
	return minutes
}

// MonthStart is the start of the current calendar month in UTC.
func (l *Ledger) MonthStart() time.Time {
	now := l.now().UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// CanStartJob reports whether an org may start a new job. The evaluated
// facts are returned whatever the outcome. The over-limit flag plays no part.
func (l *Ledger) CanStartJob(ctx context.Context, orgID string) (models.Entitlement, error) {
	facts, err := l.store.GetBillingFacts(ctx, orgID, l.MonthStart())
	if err != nil {
		return models.Entitlement{}, fmt.Errorf("read billing facts for org %s: %w", orgID, err)
	}

	active := facts.Subscription.Active()
	included := 0.0
	if facts.Subscription != nil {
		included = l.IncludedMinutes(facts.Subscription.PlanID)
	}

	return models.Entitlement{
		Allowed:            (active && facts.UsageThisMonth < included) || facts.Credits > 0,
		SubscriptionActive: active,
		UsageThisMonth:     facts.UsageThisMonth,
		Credits:            facts.Credits,
	}, nil
}

// ApplyUsage bills minutes consumed by a job. Non-positive minutes are a
// no-op. Calling it again for the same job returns the first allocation.
func (l *Ledger) ApplyUsage(ctx context.Context, orgID, jobID string, minutes float64) (models.UsageAllocation, error) {
	if minutes <= 0 {
		return models.UsageAllocation{}, nil
	}

	alloc, err := l.store.ApplyUsage(ctx, orgID, jobID, minutes, l.MonthStart(), func(facts models.BillingFacts) (models.UsageAllocation, error) {
		in := AllocationInput{
			Minutes:            minutes,
			SubscriptionActive: facts.Subscription.Active(),
			UsageThisMonth:     facts.UsageThisMonth,
			Credits:            facts.Credits,
			RatePerHourCents:   l.ratePerHourCents,
		}
		if facts.Subscription != nil {
			in.IncludedMinutes = l.IncludedMinutes(facts.Subscription.PlanID)
		}
		return Allocate(in)
	})
	if err != nil {
		return models.UsageAllocation{}, fmt.Errorf("apply usage for job %s: %w", jobID, err)
	}

	log.WithFields(log.Fields{
		"org_id":       orgID,
		"job_id":       jobID,
		"minutes":      alloc.Minutes,
		"included":     alloc.CoveredIncluded,
		"credits":      alloc.CreditsUsed,
		"overage":      alloc.RemainingOverLimit,
		"amount_cents": alloc.AmountCents,
	}).Info("usage applied")
	return alloc, nil
}

// ListUsage returns an org's usage records, newest first.
func (l *Ledger) ListUsage(ctx context.Context, orgID string, limit, offset int) ([]*models.UsageRecord, error) {
	records, err := l.store.ListUsage(ctx, orgID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage records from store: %w", err)
	}
	return records, nil
}
