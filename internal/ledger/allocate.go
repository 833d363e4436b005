package ledger

import (
	"fmt"
	"math"

	"scribe/internal/models"
)

// epsilon absorbs float rounding in the allocation sum check.
const epsilon = 1e-9

// AllocationInput holds everything Allocate needs. It is built from
// BillingFacts plus plan configuration.
type AllocationInput struct {
	Minutes            float64
	SubscriptionActive bool
	IncludedMinutes    float64
	UsageThisMonth     float64
	Credits            float64
	RatePerHourCents   int64
}

// Allocate splits consumed minutes across included allowance, prepaid
// credits and overage. It has no side effects.
func Allocate(in AllocationInput) (models.UsageAllocation, error) {
	if in.Minutes <= 0 {
		return models.UsageAllocation{}, nil
	}

	includedRemaining := 0.0
	if in.SubscriptionActive {
		includedRemaining = math.Max(0, in.IncludedMinutes-in.UsageThisMonth)
	}

	remainder := in.Minutes
	covered := math.Min(includedRemaining, remainder)
	remainder -= covered

	creditsUsed := 0.0
	if remainder > 0 {
		creditsUsed = math.Min(math.Max(0, in.Credits), remainder)
		remainder -= creditsUsed
	}

	var amount int64
	if remainder > 0 {
		amount = OverageCents(remainder, in.RatePerHourCents)
	} else {
		remainder = 0
	}

	alloc := models.UsageAllocation{
		Minutes:            in.Minutes,
		AmountCents:        amount,
		CoveredIncluded:    covered,
		CreditsUsed:        creditsUsed,
		RemainingOverLimit: remainder,
	}
	if err := CheckInvariant(alloc); err != nil {
		return models.UsageAllocation{}, err
	}
	return alloc, nil
}

// OverageCents prices minutes at a per-hour rate, rounded up to a whole cent.
func OverageCents(minutes float64, ratePerHourCents int64) int64 {
	if minutes <= 0 || ratePerHourCents <= 0 {
		return 0
	}
	return int64(math.Ceil(minutes * float64(ratePerHourCents) / 60))
}

// CheckInvariant verifies covered + credits + overage == minutes.
func CheckInvariant(a models.UsageAllocation) error {
	sum := a.CoveredIncluded + a.CreditsUsed + a.RemainingOverLimit
	if math.Abs(sum-a.Minutes) > epsilon || a.CoveredIncluded < 0 || a.CreditsUsed < 0 || a.RemainingOverLimit < 0 {
		return fmt.Errorf("%w: covered=%v credits=%v overage=%v minutes=%v",
			models.ErrLedgerInvariant, a.CoveredIncluded, a.CreditsUsed, a.RemainingOverLimit, a.Minutes)
	}
	return nil
}
