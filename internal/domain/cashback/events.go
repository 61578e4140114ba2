package cashback

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tourism/backoffice/internal/domain/shared"
)

// Aggregate and event type names
const (
	AggregateTypeGrant = "CashbackGrant"

	EventTypeGrantIssued   = "CashbackGrantIssued"
	EventTypeGrantsSettled = "CashbackGrantsSettled"
	EventTypeGrantsExpired = "CashbackGrantsExpired"
)

// GrantIssuedEvent is raised when a sale earns a new grant
type GrantIssuedEvent struct {
	shared.BaseDomainEvent
	SaleID     uuid.UUID       `json:"sale_id"`
	CampaignID uuid.UUID       `json:"campaign_id"`
	Amount     decimal.Decimal `json:"amount"`
	ExpiresAt  time.Time       `json:"expires_at"`
}

// NewGrantIssuedEvent creates a GrantIssuedEvent
func NewGrantIssuedEvent(g *Grant, at time.Time) *GrantIssuedEvent {
	return &GrantIssuedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeGrantIssued, AggregateTypeGrant, g.ID, at),
		SaleID:          g.SaleID,
		CampaignID:      g.CampaignID,
		Amount:          g.Amount,
		ExpiresAt:       g.ExpiresAt,
	}
}

// GrantsSettledEvent is raised when a sale consumes grants
type GrantsSettledEvent struct {
	shared.BaseDomainEvent
	ConsumingSaleID uuid.UUID   `json:"consuming_sale_id"`
	GrantIDs        []uuid.UUID `json:"grant_ids"`
}

// NewGrantsSettledEvent creates a GrantsSettledEvent keyed by the consuming sale
func NewGrantsSettledEvent(consumingSaleID uuid.UUID, grantIDs []uuid.UUID, at time.Time) *GrantsSettledEvent {
	return &GrantsSettledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeGrantsSettled, AggregateTypeGrant, consumingSaleID, at),
		ConsumingSaleID: consumingSaleID,
		GrantIDs:        grantIDs,
	}
}

// GrantsExpiredEvent summarizes one expiry sweep
type GrantsExpiredEvent struct {
	shared.BaseDomainEvent
	Count  int64     `json:"count"`
	Cutoff time.Time `json:"cutoff"`
}

// NewGrantsExpiredEvent creates a GrantsExpiredEvent
func NewGrantsExpiredEvent(count int64, cutoff time.Time) *GrantsExpiredEvent {
	return &GrantsExpiredEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeGrantsExpired, AggregateTypeGrant, uuid.Nil, cutoff),
		Count:           count,
		Cutoff:          cutoff,
	}
}
