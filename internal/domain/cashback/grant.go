package cashback

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tourism/backoffice/internal/domain/shared"
)

// GrantStatus represents the status of a cashback grant
type GrantStatus string

const (
	GrantStatusActive  GrantStatus = "ACTIVE"
	GrantStatusUsed    GrantStatus = "USED"
	GrantStatusExpired GrantStatus = "EXPIRED"
)

// IsValid checks if the status is a valid GrantStatus
func (s GrantStatus) IsValid() bool {
	switch s {
	case GrantStatusActive, GrantStatusUsed, GrantStatusExpired:
		return true
	}
	return false
}

// String returns the string representation of GrantStatus
func (s GrantStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no transition leaves this status
func (s GrantStatus) IsTerminal() bool {
	return s == GrantStatusUsed || s == GrantStatusExpired
}

// CanTransitionTo checks if the status can transition to the target status
func (s GrantStatus) CanTransitionTo(target GrantStatus) bool {
	switch s {
	case GrantStatusActive:
		return target == GrantStatusUsed || target == GrantStatusExpired
	case GrantStatusUsed, GrantStatusExpired:
		return false // Terminal states
	}
	return false
}

// Grant is a ledger entry: cashback a sale earned under a campaign.
// The client owning the grant is the client of SaleID.
type Grant struct {
	shared.BaseEntity
	SaleID           uuid.UUID
	CampaignID       uuid.UUID
	Status           GrantStatus
	Amount           decimal.Decimal
	ExpiresAt        time.Time
	ConsumedBySaleID *uuid.UUID
	UsedAt           *time.Time
	ExpiredAt        *time.Time
}

// NewGrant creates an ACTIVE grant
func NewGrant(saleID, campaignID uuid.UUID, amount decimal.Decimal, expiresAt, now time.Time) (*Grant, error) {
	if saleID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_SALE", "Grant must belong to a sale")
	}
	if campaignID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CAMPAIGN", "Grant must reference a campaign")
	}
	if amount.IsNegative() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Grant amount cannot be negative")
	}
	return &Grant{
		BaseEntity: shared.NewBaseEntityAt(now),
		SaleID:     saleID,
		CampaignID: campaignID,
		Status:     GrantStatusActive,
		Amount:     amount,
		ExpiresAt:  expiresAt,
	}, nil
}

// IsApplicableAt reports whether the grant can still be spent at now
func (g *Grant) IsApplicableAt(now time.Time) bool {
	return g.Status == GrantStatusActive && g.ExpiresAt.After(now)
}

// IsDueForExpiry reports whether the daily sweep should expire the grant
func (g *Grant) IsDueForExpiry(now time.Time) bool {
	return g.Status == GrantStatusActive && g.ExpiresAt.Before(now)
}

// MarkUsed settles the grant against the sale that consumed it
func (g *Grant) MarkUsed(bySaleID uuid.UUID, at time.Time) error {
	if !g.Status.CanTransitionTo(GrantStatusUsed) {
		return shared.NewDomainError("INVALID_STATE", "Cannot use a grant in "+g.Status.String()+" status")
	}
	g.Status = GrantStatusUsed
	g.ConsumedBySaleID = &bySaleID
	g.UsedAt = &at
	g.Touch(at)
	return nil
}

// MarkExpired closes the grant once its validity window elapsed
func (g *Grant) MarkExpired(at time.Time) error {
	if !g.Status.CanTransitionTo(GrantStatusExpired) {
		return shared.NewDomainError("INVALID_STATE", "Cannot expire a grant in "+g.Status.String()+" status")
	}
	g.Status = GrantStatusExpired
	g.ExpiredAt = &at
	g.Touch(at)
	return nil
}

// SumAmounts totals the amounts of the given grants
func SumAmounts(grants []Grant) decimal.Decimal {
	total := decimal.Zero
	for _, g := range grants {
		total = total.Add(g.Amount)
	}
	return total
}

// SelectGrantsToConsume walks grants in the given order (oldest expiry first)
// and takes whole grants until their sum reaches limit. The applied amount is
// min(sum(selected), limit); the part of the last grant above limit is not refunded.
func SelectGrantsToConsume(grants []Grant, limit decimal.Decimal) ([]Grant, decimal.Decimal) {
	if !limit.IsPositive() {
		return nil, decimal.Zero
	}
	selected := make([]Grant, 0, len(grants))
	sum := decimal.Zero
	for _, g := range grants {
		if sum.GreaterThanOrEqual(limit) {
			break
		}
		selected = append(selected, g)
		sum = sum.Add(g.Amount)
	}
	return selected, decimal.Min(sum, limit)
}

// ShrinkProportionally scales grant amounts down so they sum to ceiling.
// Each amount is multiplied by ceiling/sum and rounded to cents; the last grant
// absorbs the rounding difference. Grants are returned unchanged when their sum
// already fits. The returned slice holds copies; the input is not modified.
func ShrinkProportionally(grants []Grant, ceiling decimal.Decimal) ([]Grant, bool) {
	sum := SumAmounts(grants)
	if len(grants) == 0 || sum.LessThanOrEqual(ceiling) {
		return grants, false
	}
	if ceiling.IsNegative() {
		ceiling = decimal.Zero
	}

	out := make([]Grant, len(grants))
	copy(out, grants)

	allocated := decimal.Zero
	for i := range out {
		if i == len(out)-1 {
			last := ceiling.Sub(allocated)
			if last.IsNegative() {
				last = decimal.Zero
			}
			out[i].Amount = last
			break
		}
		scaled := out[i].Amount.Mul(ceiling).Div(sum).Round(2)
		out[i].Amount = scaled
		allocated = allocated.Add(scaled)
	}
	return out, true
}
