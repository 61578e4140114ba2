package sales

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tourism/backoffice/internal/domain/cashback"
	"github.com/tourism/backoffice/internal/domain/shared"
)

// Companion links another client travelling on the sale
type Companion struct {
	ID       uuid.UUID
	SaleID   uuid.UUID
	ClientID uuid.UUID
}

// HostingLine is a booked hosting on the sale
type HostingLine struct {
	ID        uuid.UUID
	SaleID    uuid.UUID
	HostingID uuid.UUID
	Rooms     int
	Price     decimal.Decimal
}

// TicketLine is a booked attraction ticket on the sale
type TicketLine struct {
	ID        uuid.UUID
	SaleID    uuid.UUID
	TicketID  uuid.UUID
	VisitDate time.Time
	Adults    int
	Children  int
	HalfPrice int
	Price     decimal.Decimal
}

// SaleDetails are the header fields supplied when recording or editing a sale
type SaleDetails struct {
	ExternalID      string
	SellerID        uuid.UUID
	TourOperatorID  uuid.UUID
	ClientID        uuid.UUID
	PaymentMethod   PaymentMethod
	SaleDate        time.Time
	CheckIn         time.Time
	CheckOut        time.Time
	TicketDiscount  decimal.Decimal
	HostingDiscount decimal.Decimal
	Note            string
}

// Validate checks required header fields
func (d SaleDetails) Validate() error {
	if d.ExternalID == "" {
		return shared.NewDomainError("MISSING_FIELD", "Tour operator external id is required")
	}
	if len(d.ExternalID) > 100 {
		return shared.NewDomainError("INVALID_INPUT", "Tour operator external id cannot exceed 100 characters")
	}
	if d.SellerID == uuid.Nil {
		return shared.NewDomainError("MISSING_FIELD", "Seller is required")
	}
	if d.TourOperatorID == uuid.Nil {
		return shared.NewDomainError("MISSING_FIELD", "Tour operator is required")
	}
	if d.ClientID == uuid.Nil {
		return shared.NewDomainError("MISSING_FIELD", "Client is required")
	}
	if !d.PaymentMethod.IsValid() {
		return shared.NewDomainError("INVALID_PAYMENT_METHOD", "Payment method is not supported")
	}
	if d.SaleDate.IsZero() {
		return shared.NewDomainError("MISSING_FIELD", "Sale date is required")
	}
	if d.CheckIn.IsZero() || d.CheckOut.IsZero() {
		return shared.NewDomainError("MISSING_FIELD", "Check-in and check-out dates are required")
	}
	if d.CheckOut.Before(d.CheckIn) {
		return shared.NewDomainError("INVALID_DATE", "Check-out cannot be before check-in")
	}
	if d.TicketDiscount.IsNegative() || d.HostingDiscount.IsNegative() {
		return shared.NewDomainError("INVALID_DISCOUNT", "Discounts cannot be negative")
	}
	return nil
}

// Sale is one commercial transaction of the agency.
// Line items are owned by the sale and always replaced together with it.
type Sale struct {
	shared.BaseAggregateRoot
	SaleDetails
	Cancelled bool

	TotalHostings    decimal.Decimal
	TotalTickets     decimal.Decimal
	GrossTotal       decimal.Decimal
	AppliedCashback  decimal.Decimal
	TotalDiscount    decimal.Decimal
	NetTotal         decimal.Decimal
	SellerCommission decimal.Decimal
	AgencyCommission decimal.Decimal

	Companions []Companion
	Hostings   []HostingLine
	Tickets    []TicketLine
}

// NewSale creates a new sale with no lines
func NewSale(details SaleDetails, now time.Time) (*Sale, error) {
	if err := details.Validate(); err != nil {
		return nil, err
	}
	return &Sale{
		BaseAggregateRoot: shared.NewBaseAggregateRootAt(now),
		SaleDetails:       details,
		TotalHostings:     decimal.Zero,
		TotalTickets:      decimal.Zero,
		GrossTotal:        decimal.Zero,
		AppliedCashback:   decimal.Zero,
		TotalDiscount:     decimal.Zero,
		NetTotal:          decimal.Zero,
		SellerCommission:  decimal.Zero,
		AgencyCommission:  decimal.Zero,
	}, nil
}

// ReviseDetails replaces the header fields of an existing sale and bumps its version
func (s *Sale) ReviseDetails(details SaleDetails, now time.Time) error {
	if err := details.Validate(); err != nil {
		return err
	}
	s.SaleDetails = details
	s.Revise(now)
	return nil
}

// ReplaceLines discards every companion, hosting and ticket line and
// installs the given ones with fresh identities
func (s *Sale) ReplaceLines(companionIDs []uuid.UUID, hostings []HostingLine, tickets []TicketLine) error {
	companions := make([]Companion, 0, len(companionIDs))
	seen := make(map[uuid.UUID]struct{}, len(companionIDs))
	for _, id := range companionIDs {
		if id == uuid.Nil {
			return shared.NewDomainError("INVALID_COMPANION", "Companion id cannot be empty")
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		companions = append(companions, Companion{ID: uuid.New(), SaleID: s.ID, ClientID: id})
	}

	hostingLines := make([]HostingLine, 0, len(hostings))
	for _, h := range hostings {
		if h.HostingID == uuid.Nil {
			return shared.NewDomainError("MISSING_FIELD", "Hosting line requires a hosting")
		}
		if h.Rooms < 0 {
			return shared.NewDomainError("INVALID_INPUT", "Room count cannot be negative")
		}
		if h.Price.IsNegative() {
			return shared.NewDomainError("INVALID_PRICE", "Hosting price cannot be negative")
		}
		h.ID = uuid.New()
		h.SaleID = s.ID
		hostingLines = append(hostingLines, h)
	}

	ticketLines := make([]TicketLine, 0, len(tickets))
	for _, tl := range tickets {
		if tl.TicketID == uuid.Nil {
			return shared.NewDomainError("MISSING_FIELD", "Ticket line requires a ticket")
		}
		if tl.Adults < 0 || tl.Children < 0 || tl.HalfPrice < 0 {
			return shared.NewDomainError("INVALID_INPUT", "Ticket counts cannot be negative")
		}
		if tl.Price.IsNegative() {
			return shared.NewDomainError("INVALID_PRICE", "Ticket price cannot be negative")
		}
		tl.ID = uuid.New()
		tl.SaleID = s.ID
		ticketLines = append(ticketLines, tl)
	}

	s.Companions = companions
	s.Hostings = hostingLines
	s.Tickets = ticketLines
	return nil
}

// ComputeTotals recomputes the breakdown from the current lines and
// discounts, applying up to availableCashback
func (s *Sale) ComputeTotals(availableCashback decimal.Decimal) (Totals, error) {
	hostingPrices := make([]decimal.Decimal, len(s.Hostings))
	for i, h := range s.Hostings {
		hostingPrices[i] = h.Price
	}
	ticketPrices := make([]decimal.Decimal, len(s.Tickets))
	for i, tl := range s.Tickets {
		ticketPrices[i] = tl.Price
	}
	return ComputeTotals(hostingPrices, ticketPrices, s.HostingDiscount, s.TicketDiscount, availableCashback)
}

// ApplyTotals stores a computed breakdown and the commissions derived from it
func (s *Sale) ApplyTotals(t Totals, sellerRate *SellerCommissionRate, operatorRate *TourOperatorCommissionRate) {
	s.TotalHostings = t.TotalHostings
	s.TotalTickets = t.TotalTickets
	s.GrossTotal = t.GrossTotal
	s.AppliedCashback = t.AppliedCashback
	s.TotalDiscount = t.TotalDiscount
	s.NetTotal = t.NetTotal
	s.SellerCommission = ComputeSellerCommission(t.NetTotal, sellerRate, s.PaymentMethod)
	s.AgencyCommission = ComputeAgencyCommission(t, s.HostingDiscount, s.TicketDiscount, operatorRate, s.PaymentMethod)
}

// AnchorDates exposes the dates a cashback campaign may count from
func (s *Sale) AnchorDates() cashback.AnchorDates {
	return cashback.AnchorDates{
		Purchase: s.SaleDate,
		CheckIn:  s.CheckIn,
		CheckOut: s.CheckOut,
	}
}

// Cancel flags the sale as cancelled. Returns false if it already was.
func (s *Sale) Cancel(now time.Time) bool {
	if s.Cancelled {
		return false
	}
	s.Cancelled = true
	s.Revise(now)
	s.RecordEvent(NewSaleCancelledEvent(s, now))
	return true
}

// DatesDiffer reports whether any anchor-relevant date differs between two headers
func DatesDiffer(a, b SaleDetails) bool {
	return !a.SaleDate.Equal(b.SaleDate) || !a.CheckIn.Equal(b.CheckIn) || !a.CheckOut.Equal(b.CheckOut)
}
