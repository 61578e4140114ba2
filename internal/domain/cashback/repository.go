package cashback

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CampaignRepository defines the interface for cashback campaign persistence
type CampaignRepository interface {
	// FindByID finds a campaign by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Campaign, error)

	// FindRunningAt returns every campaign whose [start, end] window contains now
	FindRunningAt(ctx context.Context, now time.Time) ([]Campaign, error)

	// Save creates or updates a campaign
	Save(ctx context.Context, campaign *Campaign) error
}

// GrantRepository defines the interface for cashback grant persistence
type GrantRepository interface {
	// FindByID finds a grant by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Grant, error)

	// FindApplicableForClient returns ACTIVE grants expiring after now that were
	// earned by non-cancelled sales of the client, ordered by expires_at then id
	FindApplicableForClient(ctx context.Context, clientID uuid.UUID, now time.Time) ([]Grant, error)

	// FindConsumedBySale returns the grants a sale has consumed, oldest expiry first
	FindConsumedBySale(ctx context.Context, saleID uuid.UUID) ([]Grant, error)

	// FindLatestEarnedBySale returns the most recent grant earned by a sale, or nil
	FindLatestEarnedBySale(ctx context.Context, saleID uuid.UUID) (*Grant, error)

	// FindEarnedBySale returns every grant earned by a sale
	FindEarnedBySale(ctx context.Context, saleID uuid.UUID) ([]Grant, error)

	// Create persists a new grant
	Create(ctx context.Context, grant *Grant) error

	// UpdateAmount overwrites the stored amount of a grant
	UpdateAmount(ctx context.Context, id uuid.UUID, amount decimal.Decimal, at time.Time) error

	// DeleteActive removes a grant only while it is still ACTIVE.
	// Returns false when the grant was already settled or expired.
	DeleteActive(ctx context.Context, id uuid.UUID) (bool, error)

	// DeleteBySale removes every grant earned by a sale
	DeleteBySale(ctx context.Context, saleID uuid.UUID) error

	// MarkUsedIfActive performs the status-guarded ACTIVE -> USED transition.
	// Returns false when another writer already moved the grant out of ACTIVE.
	MarkUsedIfActive(ctx context.Context, id, consumingSaleID uuid.UUID, at time.Time) (bool, error)

	// ExpireDue moves every ACTIVE grant with expires_at < now to EXPIRED
	// and returns the number of grants transitioned
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
}
