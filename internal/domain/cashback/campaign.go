package cashback

import (
	"bytes"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tourism/backoffice/internal/domain/shared"
)

// AnchorType selects which sale date starts a grant's validity countdown
type AnchorType string

const (
	AnchorPurchase AnchorType = "PURCHASE"
	AnchorCheckIn  AnchorType = "CHECKIN"
	AnchorCheckOut AnchorType = "CHECKOUT"
)

// IsValid checks if the anchor is a valid AnchorType
func (a AnchorType) IsValid() bool {
	switch a {
	case AnchorPurchase, AnchorCheckIn, AnchorCheckOut:
		return true
	}
	return false
}

// String returns the string representation of AnchorType
func (a AnchorType) String() string {
	return string(a)
}

// AnchorDates carries the sale dates a campaign may count from
type AnchorDates struct {
	Purchase time.Time
	CheckIn  time.Time
	CheckOut time.Time
}

var hundred = decimal.NewFromInt(100)

// Campaign is a promotional rule: earn Percentage back on the net total of a
// sale recorded while the campaign runs, valid for ValidityDays after the anchor date.
type Campaign struct {
	shared.BaseEntity
	Name         string
	Percentage   decimal.Decimal
	ValidityDays int
	StartDate    time.Time
	EndDate      time.Time
	Anchor       AnchorType
}

// NewCampaign creates a new cashback campaign
func NewCampaign(name string, percentage decimal.Decimal, validityDays int, startDate, endDate time.Time, anchor AnchorType) (*Campaign, error) {
	c := &Campaign{
		BaseEntity:   shared.NewBaseEntity(),
		Name:         name,
		Percentage:   percentage,
		ValidityDays: validityDays,
		StartDate:    startDate,
		EndDate:      endDate,
		Anchor:       anchor,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the campaign invariants
func (c *Campaign) Validate() error {
	if c.Name == "" {
		return shared.NewDomainError("INVALID_CAMPAIGN", "Campaign name cannot be empty")
	}
	if !c.StartDate.Before(c.EndDate) {
		return shared.NewDomainError("INVALID_CAMPAIGN", "Campaign start date must be before its end date")
	}
	if !c.Percentage.IsPositive() {
		return shared.NewDomainError("INVALID_CAMPAIGN", "Campaign percentage must be positive")
	}
	if c.ValidityDays <= 0 {
		return shared.NewDomainError("INVALID_CAMPAIGN", "Campaign validity days must be positive")
	}
	if !c.Anchor.IsValid() {
		return shared.NewDomainError("INVALID_CAMPAIGN", "Campaign anchor must be PURCHASE, CHECKIN or CHECKOUT")
	}
	return nil
}

// IsRunningAt reports whether now falls inside [StartDate, EndDate]
func (c *Campaign) IsRunningAt(now time.Time) bool {
	return !now.Before(c.StartDate) && !now.After(c.EndDate)
}

// AnchorDate picks the date the validity countdown starts from
func (c *Campaign) AnchorDate(dates AnchorDates) time.Time {
	switch c.Anchor {
	case AnchorCheckIn:
		return dates.CheckIn
	case AnchorCheckOut:
		return dates.CheckOut
	default:
		return dates.Purchase
	}
}

// ExpiryFor moves the anchor date to the last millisecond of its day in loc
// and adds ValidityDays calendar days.
func (c *Campaign) ExpiryFor(dates AnchorDates, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return EndOfDay(c.AnchorDate(dates), loc).AddDate(0, 0, c.ValidityDays)
}

// GrantAmount returns the cashback earned on netTotal, rounded to cents
func (c *Campaign) GrantAmount(netTotal decimal.Decimal) decimal.Decimal {
	if !netTotal.IsPositive() {
		return decimal.Zero
	}
	return netTotal.Mul(c.Percentage).Div(hundred).Round(2)
}

// EndOfDay returns 23:59:59.999 of t's calendar day in loc
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 23, 59, 59, int(999*time.Millisecond), loc)
}

// SelectBestCampaign returns the running campaign with the highest percentage.
// Equal percentages are resolved by the lowest ID so repeated calls agree.
// Returns nil when no campaign is running at now.
func SelectBestCampaign(campaigns []Campaign, now time.Time) *Campaign {
	var best *Campaign
	for i := range campaigns {
		c := &campaigns[i]
		if !c.IsRunningAt(now) {
			continue
		}
		if best == nil {
			best = c
			continue
		}
		switch cmp := c.Percentage.Cmp(best.Percentage); {
		case cmp > 0:
			best = c
		case cmp == 0 && bytes.Compare(c.ID[:], best.ID[:]) < 0:
			best = c
		}
	}
	return best
}
