package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tourism/backoffice/internal/domain/sales"
)

// SaleModel is the persistence model for the Sale aggregate root.
type SaleModel struct {
	AggregateModel
	ExternalID       string               `gorm:"type:varchar(100);not null;index"`
	SellerID         uuid.UUID            `gorm:"type:uuid;not null;index"`
	TourOperatorID   uuid.UUID            `gorm:"type:uuid;not null;index"`
	ClientID         uuid.UUID            `gorm:"type:uuid;not null;index"`
	PaymentMethod    sales.PaymentMethod  `gorm:"type:varchar(20);not null"`
	SaleDate         time.Time            `gorm:"not null"`
	CheckIn          time.Time            `gorm:"not null"`
	CheckOut         time.Time            `gorm:"not null"`
	TicketDiscount   decimal.Decimal      `gorm:"type:decimal(18,2);not null;default:0"`
	HostingDiscount  decimal.Decimal      `gorm:"type:decimal(18,2);not null;default:0"`
	Note             string               `gorm:"type:text"`
	Cancelled        bool                 `gorm:"not null;default:false;index"`
	TotalHostings    decimal.Decimal      `gorm:"type:decimal(18,2);not null;default:0"`
	TotalTickets     decimal.Decimal      `gorm:"type:decimal(18,2);not null;default:0"`
	GrossTotal       decimal.Decimal      `gorm:"type:decimal(18,2);not null;default:0"`
	AppliedCashback  decimal.Decimal      `gorm:"type:decimal(18,2);not null;default:0"`
	TotalDiscount    decimal.Decimal      `gorm:"type:decimal(18,2);not null;default:0"`
	NetTotal         decimal.Decimal      `gorm:"type:decimal(18,2);not null;default:0"`
	SellerCommission decimal.Decimal      `gorm:"type:decimal(18,2);not null;default:0"`
	AgencyCommission decimal.Decimal      `gorm:"type:decimal(18,2);not null;default:0"`
	Companions       []SaleCompanionModel `gorm:"foreignKey:SaleID;references:ID;constraint:OnDelete:CASCADE"`
	Hostings         []SaleHostingModel   `gorm:"foreignKey:SaleID;references:ID;constraint:OnDelete:CASCADE"`
	Tickets          []SaleTicketModel    `gorm:"foreignKey:SaleID;references:ID;constraint:OnDelete:CASCADE"`

	// Declared for the foreign keys only; never loaded or saved through the sale
	Invoice        *InvoiceModel        `gorm:"foreignKey:SaleID;references:ID"`
	EarnedGrants   []CashbackGrantModel `gorm:"foreignKey:SaleID;references:ID"`
	ConsumedGrants []CashbackGrantModel `gorm:"foreignKey:ConsumedBySaleID;references:ID"`
}

// TableName returns the table name for GORM
func (SaleModel) TableName() string {
	return "sales"
}

// ToDomain converts the persistence model to a domain Sale
func (m *SaleModel) ToDomain() *sales.Sale {
	s := &sales.Sale{
		BaseAggregateRoot: m.AggregateModel.ToDomainAggregateRoot(),
		SaleDetails: sales.SaleDetails{
			ExternalID:      m.ExternalID,
			SellerID:        m.SellerID,
			TourOperatorID:  m.TourOperatorID,
			ClientID:        m.ClientID,
			PaymentMethod:   m.PaymentMethod,
			SaleDate:        m.SaleDate,
			CheckIn:         m.CheckIn,
			CheckOut:        m.CheckOut,
			TicketDiscount:  m.TicketDiscount,
			HostingDiscount: m.HostingDiscount,
			Note:            m.Note,
		},
		Cancelled:        m.Cancelled,
		TotalHostings:    m.TotalHostings,
		TotalTickets:     m.TotalTickets,
		GrossTotal:       m.GrossTotal,
		AppliedCashback:  m.AppliedCashback,
		TotalDiscount:    m.TotalDiscount,
		NetTotal:         m.NetTotal,
		SellerCommission: m.SellerCommission,
		AgencyCommission: m.AgencyCommission,
		Companions:       make([]sales.Companion, len(m.Companions)),
		Hostings:         make([]sales.HostingLine, len(m.Hostings)),
		Tickets:          make([]sales.TicketLine, len(m.Tickets)),
	}
	for i, c := range m.Companions {
		s.Companions[i] = sales.Companion{ID: c.ID, SaleID: c.SaleID, ClientID: c.ClientID}
	}
	for i, h := range m.Hostings {
		s.Hostings[i] = sales.HostingLine{ID: h.ID, SaleID: h.SaleID, HostingID: h.HostingID, Rooms: h.Rooms, Price: h.Price}
	}
	for i, t := range m.Tickets {
		s.Tickets[i] = sales.TicketLine{
			ID:        t.ID,
			SaleID:    t.SaleID,
			TicketID:  t.TicketID,
			VisitDate: t.VisitDate,
			Adults:    t.Adults,
			Children:  t.Children,
			HalfPrice: t.HalfPrice,
			Price:     t.Price,
		}
	}
	return s
}

// FromDomain populates the persistence model from a domain Sale
func (m *SaleModel) FromDomain(s *sales.Sale) {
	m.FromDomainAggregateRoot(s.BaseAggregateRoot)
	m.ExternalID = s.ExternalID
	m.SellerID = s.SellerID
	m.TourOperatorID = s.TourOperatorID
	m.ClientID = s.ClientID
	m.PaymentMethod = s.PaymentMethod
	m.SaleDate = s.SaleDate.UTC()
	m.CheckIn = s.CheckIn.UTC()
	m.CheckOut = s.CheckOut.UTC()
	m.TicketDiscount = s.TicketDiscount
	m.HostingDiscount = s.HostingDiscount
	m.Note = s.Note
	m.Cancelled = s.Cancelled
	m.TotalHostings = s.TotalHostings
	m.TotalTickets = s.TotalTickets
	m.GrossTotal = s.GrossTotal
	m.AppliedCashback = s.AppliedCashback
	m.TotalDiscount = s.TotalDiscount
	m.NetTotal = s.NetTotal
	m.SellerCommission = s.SellerCommission
	m.AgencyCommission = s.AgencyCommission

	m.Companions = make([]SaleCompanionModel, len(s.Companions))
	for i, c := range s.Companions {
		m.Companions[i] = SaleCompanionModel{ID: c.ID, SaleID: s.ID, ClientID: c.ClientID}
	}
	m.Hostings = make([]SaleHostingModel, len(s.Hostings))
	for i, h := range s.Hostings {
		m.Hostings[i] = SaleHostingModel{ID: h.ID, SaleID: s.ID, HostingID: h.HostingID, Rooms: h.Rooms, Price: h.Price}
	}
	m.Tickets = make([]SaleTicketModel, len(s.Tickets))
	for i, t := range s.Tickets {
		m.Tickets[i] = SaleTicketModel{
			ID:        t.ID,
			SaleID:    s.ID,
			TicketID:  t.TicketID,
			VisitDate: t.VisitDate.UTC(),
			Adults:    t.Adults,
			Children:  t.Children,
			HalfPrice: t.HalfPrice,
			Price:     t.Price,
		}
	}
}

// SaleModelFromDomain creates a new persistence model from a domain Sale
func SaleModelFromDomain(s *sales.Sale) *SaleModel {
	m := &SaleModel{}
	m.FromDomain(s)
	return m
}

// SaleCompanionModel links a travelling companion to a sale
type SaleCompanionModel struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key"`
	SaleID   uuid.UUID `gorm:"type:uuid;not null;index"`
	ClientID uuid.UUID `gorm:"type:uuid;not null;index"`
}

// TableName returns the table name for GORM
func (SaleCompanionModel) TableName() string {
	return "sale_companions"
}

// SaleHostingModel is a hosting line of a sale
type SaleHostingModel struct {
	ID        uuid.UUID       `gorm:"type:uuid;primary_key"`
	SaleID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	HostingID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Rooms     int             `gorm:"not null;default:0"`
	Price     decimal.Decimal `gorm:"type:decimal(18,2);not null"`
}

// TableName returns the table name for GORM
func (SaleHostingModel) TableName() string {
	return "sale_hostings"
}

// SaleTicketModel is a ticket line of a sale
type SaleTicketModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	SaleID    uuid.UUID `gorm:"type:uuid;not null;index"`
	TicketID  uuid.UUID `gorm:"type:uuid;not null;index"`
	VisitDate time.Time
	Adults    int             `gorm:"not null;default:0"`
	Children  int             `gorm:"not null;default:0"`
	HalfPrice int             `gorm:"not null;default:0"`
	Price     decimal.Decimal `gorm:"type:decimal(18,2);not null"`
}

// TableName returns the table name for GORM
func (SaleTicketModel) TableName() string {
	return "sale_tickets"
}

// InvoiceModel is the persistence model for the invoice kept 1:1 with a sale
type InvoiceModel struct {
	BaseModel
	SaleID          uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	Issued          bool      `gorm:"not null;default:false"`
	Number          string    `gorm:"type:varchar(60)"`
	IssuedAt        *time.Time
	ReceiptIssued   bool   `gorm:"not null;default:false"`
	ReceiptNumber   string `gorm:"type:varchar(60)"`
	ReceiptIssuedAt *time.Time
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "sale_invoices"
}

// ToDomain converts the persistence model to a domain Invoice
func (m *InvoiceModel) ToDomain() *sales.Invoice {
	return &sales.Invoice{
		BaseEntity: m.BaseModel.ToDomain(),
		SaleID:     m.SaleID,
		InvoiceDetails: sales.InvoiceDetails{
			Issued:          m.Issued,
			Number:          m.Number,
			IssuedAt:        m.IssuedAt,
			ReceiptIssued:   m.ReceiptIssued,
			ReceiptNumber:   m.ReceiptNumber,
			ReceiptIssuedAt: m.ReceiptIssuedAt,
		},
	}
}

// FromDomain populates the persistence model from a domain Invoice
func (m *InvoiceModel) FromDomain(inv *sales.Invoice) {
	m.FromDomainBaseEntity(inv.BaseEntity)
	m.SaleID = inv.SaleID
	m.Issued = inv.Issued
	m.Number = inv.Number
	m.IssuedAt = utcPtr(inv.IssuedAt)
	m.ReceiptIssued = inv.ReceiptIssued
	m.ReceiptNumber = inv.ReceiptNumber
	m.ReceiptIssuedAt = utcPtr(inv.ReceiptIssuedAt)
}
