package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tourism/backoffice/internal/domain/cashback"
)

// CashbackCampaignModel is the persistence model for a cashback campaign
type CashbackCampaignModel struct {
	BaseModel
	Name         string              `gorm:"type:varchar(120);not null"`
	Percentage   decimal.Decimal     `gorm:"type:decimal(7,4);not null"`
	ValidityDays int                 `gorm:"not null"`
	StartDate    time.Time           `gorm:"not null;index"`
	EndDate      time.Time           `gorm:"not null;index"`
	Anchor       cashback.AnchorType `gorm:"type:varchar(20);not null"`

	Grants []CashbackGrantModel `gorm:"foreignKey:CampaignID;references:ID"`
}

// TableName returns the table name for GORM
func (CashbackCampaignModel) TableName() string {
	return "cashback_campaigns"
}

// ToDomain converts the persistence model to a domain Campaign
func (m *CashbackCampaignModel) ToDomain() *cashback.Campaign {
	return &cashback.Campaign{
		BaseEntity:   m.BaseModel.ToDomain(),
		Name:         m.Name,
		Percentage:   m.Percentage,
		ValidityDays: m.ValidityDays,
		StartDate:    m.StartDate,
		EndDate:      m.EndDate,
		Anchor:       m.Anchor,
	}
}

// FromDomain populates the persistence model from a domain Campaign
func (m *CashbackCampaignModel) FromDomain(c *cashback.Campaign) {
	m.FromDomainBaseEntity(c.BaseEntity)
	m.Name = c.Name
	m.Percentage = c.Percentage
	m.ValidityDays = c.ValidityDays
	m.StartDate = c.StartDate.UTC()
	m.EndDate = c.EndDate.UTC()
	m.Anchor = c.Anchor
}

// CashbackGrantModel is the persistence model for a cashback grant
type CashbackGrantModel struct {
	BaseModel
	SaleID           uuid.UUID            `gorm:"type:uuid;not null;index"`
	CampaignID       uuid.UUID            `gorm:"type:uuid;not null;index"`
	Status           cashback.GrantStatus `gorm:"type:varchar(20);not null;default:'ACTIVE';index:idx_cashback_grants_status_expiry,priority:1"`
	Amount           decimal.Decimal      `gorm:"type:decimal(18,2);not null"`
	ExpiresAt        time.Time            `gorm:"not null;index:idx_cashback_grants_status_expiry,priority:2"`
	ConsumedBySaleID *uuid.UUID           `gorm:"type:uuid;index"`
	UsedAt           *time.Time
	ExpiredAt        *time.Time
}

// TableName returns the table name for GORM
func (CashbackGrantModel) TableName() string {
	return "cashback_grants"
}

// ToDomain converts the persistence model to a domain Grant
func (m *CashbackGrantModel) ToDomain() *cashback.Grant {
	return &cashback.Grant{
		BaseEntity:       m.BaseModel.ToDomain(),
		SaleID:           m.SaleID,
		CampaignID:       m.CampaignID,
		Status:           m.Status,
		Amount:           m.Amount,
		ExpiresAt:        m.ExpiresAt,
		ConsumedBySaleID: m.ConsumedBySaleID,
		UsedAt:           m.UsedAt,
		ExpiredAt:        m.ExpiredAt,
	}
}

// FromDomain populates the persistence model from a domain Grant
func (m *CashbackGrantModel) FromDomain(g *cashback.Grant) {
	m.FromDomainBaseEntity(g.BaseEntity)
	m.SaleID = g.SaleID
	m.CampaignID = g.CampaignID
	m.Status = g.Status
	m.Amount = g.Amount
	m.ExpiresAt = g.ExpiresAt.UTC()
	m.ConsumedBySaleID = g.ConsumedBySaleID
	m.UsedAt = utcPtr(g.UsedAt)
	m.ExpiredAt = utcPtr(g.ExpiredAt)
}

// CashbackGrantModelFromDomain creates a new persistence model from a domain Grant
func CashbackGrantModelFromDomain(g *cashback.Grant) *CashbackGrantModel {
	m := &CashbackGrantModel{}
	m.FromDomain(g)
	return m
}

// AllModels lists every model for AutoMigrate in tests and local tooling
func AllModels() []interface{} {
	return []interface{}{
		&SaleModel{},
		&SaleCompanionModel{},
		&SaleHostingModel{},
		&SaleTicketModel{},
		&InvoiceModel{},
		&SellerCommissionRateModel{},
		&TourOperatorCommissionRateModel{},
		&CashbackCampaignModel{},
		&CashbackGrantModel{},
	}
}
