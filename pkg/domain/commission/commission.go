// Package commission describes referral split policy and payout outcomes.
package commission

import (
	"fmt"

	"github.com/amirasaad/mlmcore/pkg/domain"
	"github.com/amirasaad/mlmcore/pkg/money"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Outcome is the result class of a distribution attempt.
type Outcome string

const (
	OutcomePaid        Outcome = "paid"
	OutcomeAlreadyPaid Outcome = "already_paid"
	OutcomeSkipped     Outcome = "skipped"
)

// Skip reasons.
const (
	ReasonOrderNotCompleted = "order_not_completed"
	ReasonNoUpline          = "no_upline"
	ReasonZeroShares        = "zero_shares"
	ReasonNoSponsor         = "no_sponsor"
	ReasonNotPartner        = "not_partner"
	ReasonInactiveSponsor   = "inactive_sponsor"
	ReasonDisabled          = "disabled"
)

// Policy is the referral split configuration.
// LevelRates are percentages of the pool, index 0 being the direct parent.
type Policy struct {
	PoolPercent     decimal.Decimal
	LevelRates      []decimal.Decimal
	ActivationBonus money.Amount
}

// DefaultPolicy is 50% of the order base split 10/5/2.5 across three levels.
func DefaultPolicy() Policy {
	return Policy{
		PoolPercent: decimal.NewFromInt(50),
		LevelRates: []decimal.Decimal{
			decimal.NewFromInt(10),
			decimal.NewFromInt(5),
			decimal.RequireFromString("2.5"),
		},
		ActivationBonus: 50000,
	}
}

// Validate rejects negative or out-of-range percentages.
func (p Policy) Validate() error {
	hundred := decimal.NewFromInt(100)
	if p.PoolPercent.IsNegative() || p.PoolPercent.GreaterThan(hundred) {
		return fmt.Errorf("%w: pool percent %s out of range", domain.ErrValidation, p.PoolPercent)
	}
	total := decimal.Zero
	for i, r := range p.LevelRates {
		if r.IsNegative() {
			return fmt.Errorf("%w: level %d rate is negative", domain.ErrValidation, i+1)
		}
		total = total.Add(r)
	}
	if total.GreaterThan(hundred) {
		return fmt.Errorf("%w: level rates sum to %s%%", domain.ErrValidation, total)
	}
	if p.ActivationBonus < 0 {
		return fmt.Errorf("%w: activation bonus is negative", domain.ErrValidation)
	}
	return nil
}

// Levels is the number of upline levels the policy pays.
func (p Policy) Levels() int { return len(p.LevelRates) }

// Pool returns base × PoolPercent, half-up.
func (p Policy) Pool(base money.Amount) (money.Amount, error) {
	return base.Percent(p.PoolPercent)
}

// Share is the payout to a single upline level.
type Share struct {
	Level  int          `json:"level"`
	UserID uuid.UUID    `json:"user_id"`
	Amount money.Amount `json:"amount"`
}

// Result reports what a distribution did.
type Result struct {
	Outcome    Outcome      `json:"outcome"`
	TxnID      *uuid.UUID   `json:"txn_id,omitempty"`
	LevelsPaid int          `json:"levels_paid"`
	Pool       money.Amount `json:"pool"`
	Shares     []Share      `json:"shares,omitempty"`
	Reason     string       `json:"reason,omitempty"`
}

// Skipped builds a Skipped result.
func Skipped(reason string) Result {
	return Result{Outcome: OutcomeSkipped, Reason: reason}
}

// OrderOperationID is the idempotency key of an order's referral split.
func OrderOperationID(orderID uuid.UUID) string {
	return fmt.Sprintf("order:%s:referral_split:v1", orderID)
}

// ActivationOperationID is the idempotency key of a partner activation bonus.
func ActivationOperationID(userID uuid.UUID) string {
	return fmt.Sprintf("user:%s:activation_bonus:v1", userID)
}
