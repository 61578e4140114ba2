package sales

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tourism/backoffice/internal/domain/shared"
)

// Aggregate and event type names
const (
	AggregateTypeSale = "Sale"

	EventTypeSaleRecorded  = "SaleRecorded"
	EventTypeSaleCancelled = "SaleCancelled"
	EventTypeSaleDeleted   = "SaleDeleted"
)

// Recording kinds carried by SaleRecordedEvent
const (
	RecordingCreated = "CREATED"
	RecordingUpdated = "UPDATED"
)

// SaleRecordedEvent is raised after a sale is created or edited
type SaleRecordedEvent struct {
	shared.BaseDomainEvent
	Kind             string          `json:"kind"`
	ClientID         uuid.UUID       `json:"client_id"`
	SellerID         uuid.UUID       `json:"seller_id"`
	TourOperatorID   uuid.UUID       `json:"tour_operator_id"`
	GrossTotal       decimal.Decimal `json:"gross_total"`
	TotalDiscount    decimal.Decimal `json:"total_discount"`
	AppliedCashback  decimal.Decimal `json:"applied_cashback"`
	NetTotal         decimal.Decimal `json:"net_total"`
	SellerCommission decimal.Decimal `json:"seller_commission"`
	AgencyCommission decimal.Decimal `json:"agency_commission"`
	Version          int             `json:"version"`
}

// NewSaleRecordedEvent snapshots the sale totals
func NewSaleRecordedEvent(s *Sale, kind string, at time.Time) *SaleRecordedEvent {
	return &SaleRecordedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeSaleRecorded, AggregateTypeSale, s.ID, at),
		Kind:             kind,
		ClientID:         s.ClientID,
		SellerID:         s.SellerID,
		TourOperatorID:   s.TourOperatorID,
		GrossTotal:       s.GrossTotal,
		TotalDiscount:    s.TotalDiscount,
		AppliedCashback:  s.AppliedCashback,
		NetTotal:         s.NetTotal,
		SellerCommission: s.SellerCommission,
		AgencyCommission: s.AgencyCommission,
		Version:          s.Version,
	}
}

// SaleCancelledEvent is raised when a sale is flagged as cancelled
type SaleCancelledEvent struct {
	shared.BaseDomainEvent
	ClientID uuid.UUID `json:"client_id"`
}

// NewSaleCancelledEvent creates a SaleCancelledEvent
func NewSaleCancelledEvent(s *Sale, at time.Time) *SaleCancelledEvent {
	return &SaleCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSaleCancelled, AggregateTypeSale, s.ID, at),
		ClientID:        s.ClientID,
	}
}

// SaleDeletedEvent is raised when a sale is physically removed
type SaleDeletedEvent struct {
	shared.BaseDomainEvent
	ClientID uuid.UUID `json:"client_id"`
}

// NewSaleDeletedEvent creates a SaleDeletedEvent
func NewSaleDeletedEvent(s *Sale, at time.Time) *SaleDeletedEvent {
	return &SaleDeletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSaleDeleted, AggregateTypeSale, s.ID, at),
		ClientID:        s.ClientID,
	}
}
