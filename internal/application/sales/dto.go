package sales

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tourism/backoffice/internal/domain/cashback"
	"github.com/tourism/backoffice/internal/domain/sales"
)

// HostingInput is a hosting line as requested by the caller
type HostingInput struct {
	HostingID uuid.UUID
	Rooms     int
	Price     decimal.Decimal
}

// TicketInput is a ticket line as requested by the caller
type TicketInput struct {
	TicketID  uuid.UUID
	VisitDate time.Time
	Adults    int
	Children  int
	HalfPrice int
	Price     decimal.Decimal
}

// SaleInput is the normalized request to record or edit a sale.
// Amounts, dates and references are already parsed; localized strings never reach this layer.
type SaleInput struct {
	Details      sales.SaleDetails
	CompanionIDs []uuid.UUID
	Hostings     []HostingInput
	Tickets      []TicketInput
	Invoice      sales.InvoiceDetails
}

func (in SaleInput) hostingLines() []sales.HostingLine {
	lines := make([]sales.HostingLine, len(in.Hostings))
	for i, h := range in.Hostings {
		lines[i] = sales.HostingLine{HostingID: h.HostingID, Rooms: h.Rooms, Price: h.Price}
	}
	return lines
}

func (in SaleInput) ticketLines() []sales.TicketLine {
	lines := make([]sales.TicketLine, len(in.Tickets))
	for i, t := range in.Tickets {
		lines[i] = sales.TicketLine{
			TicketID:  t.TicketID,
			VisitDate: t.VisitDate,
			Adults:    t.Adults,
			Children:  t.Children,
			HalfPrice: t.HalfPrice,
			Price:     t.Price,
		}
	}
	return lines
}

// Validate runs every check that does not need stored state, so malformed
// requests are rejected before a transaction is opened
func (in SaleInput) Validate(now time.Time) error {
	draft, err := sales.NewSale(in.Details, now)
	if err != nil {
		return err
	}
	if err := draft.ReplaceLines(in.CompanionIDs, in.hostingLines(), in.ticketLines()); err != nil {
		return err
	}
	if _, err := draft.ComputeTotals(decimal.Zero); err != nil {
		return err
	}
	_, err = sales.NewInvoice(draft.ID, in.Invoice, now)
	return err
}

// SaleResult is what a committed sale operation produced
type SaleResult struct {
	Sale *sales.Sale
	// Grant is the cashback the sale earned, nil when no campaign applied
	Grant   *cashback.Grant
	Invoice *sales.Invoice
	// ConsumedGrants are the grants settled against this sale
	ConsumedGrants []cashback.Grant
}
