package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tourism/backoffice/internal/domain/sales"
)

// SellerCommissionRateModel stores the seller rate per tour operator
type SellerCommissionRateModel struct {
	BaseModel
	SellerID        uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_seller_commission_pair,priority:1"`
	TourOperatorID  uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_seller_commission_pair,priority:2"`
	CashRate        decimal.Decimal `gorm:"type:decimal(7,4);not null;default:0"`
	InstallmentRate decimal.Decimal `gorm:"type:decimal(7,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (SellerCommissionRateModel) TableName() string {
	return "seller_commission_rates"
}

// ToDomain converts the persistence model to a domain SellerCommissionRate
func (m *SellerCommissionRateModel) ToDomain() *sales.SellerCommissionRate {
	return &sales.SellerCommissionRate{
		SellerID:        m.SellerID,
		TourOperatorID:  m.TourOperatorID,
		CashRate:        m.CashRate,
		InstallmentRate: m.InstallmentRate,
	}
}

// TourOperatorCommissionRateModel stores what a tour operator pays the agency
type TourOperatorCommissionRateModel struct {
	BaseModel
	TourOperatorID         uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex"`
	HostingCashRate        decimal.Decimal `gorm:"type:decimal(7,4);not null;default:0"`
	HostingInstallmentRate decimal.Decimal `gorm:"type:decimal(7,4);not null;default:0"`
	TicketCashRate         decimal.Decimal `gorm:"type:decimal(7,4);not null;default:0"`
	TicketInstallmentRate  decimal.Decimal `gorm:"type:decimal(7,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (TourOperatorCommissionRateModel) TableName() string {
	return "tour_operator_commission_rates"
}

// ToDomain converts the persistence model to a domain TourOperatorCommissionRate
func (m *TourOperatorCommissionRateModel) ToDomain() *sales.TourOperatorCommissionRate {
	return &sales.TourOperatorCommissionRate{
		TourOperatorID:         m.TourOperatorID,
		HostingCashRate:        m.HostingCashRate,
		HostingInstallmentRate: m.HostingInstallmentRate,
		TicketCashRate:         m.TicketCashRate,
		TicketInstallmentRate:  m.TicketInstallmentRate,
	}
}
