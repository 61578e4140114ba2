package handler

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	appsales "github.com/tourism/backoffice/internal/application/sales"
	"github.com/tourism/backoffice/internal/domain/cashback"
	"github.com/tourism/backoffice/internal/domain/sales"
	"github.com/tourism/backoffice/internal/domain/shared"
	"github.com/tourism/backoffice/internal/interfaces/http/dto"
	"github.com/tourism/backoffice/internal/interfaces/http/locale"
)

// SaleRequest is the body of create and update sale requests.
// Amounts and dates arrive as the back office renders them: "1.234,56" and "31/12/2025".
type SaleRequest struct {
	ExternalID      string               `json:"external_id" binding:"required,max=100"`
	SellerID        string               `json:"seller_id" binding:"required,uuid"`
	TourOperatorID  string               `json:"tour_operator_id" binding:"required,uuid"`
	ClientID        string               `json:"client_id" binding:"required,uuid"`
	PaymentMethod   string               `json:"payment_method" binding:"required,oneof=CASH PIX DEBIT_CARD BANK_SLIP CREDIT_CARD INSTALLMENT"`
	SaleDate        string               `json:"sale_date" binding:"required,br_date"`
	CheckIn         string               `json:"check_in" binding:"required,br_date"`
	CheckOut        string               `json:"check_out" binding:"required,br_date"`
	TicketDiscount  string               `json:"ticket_discount" binding:"omitempty,brl_money"`
	HostingDiscount string               `json:"hosting_discount" binding:"omitempty,brl_money"`
	Note            string               `json:"note" binding:"max=2000"`
	CompanionIDs    []string             `json:"companion_ids" binding:"omitempty,dive,uuid"`
	Hostings        []HostingLineRequest `json:"hostings" binding:"omitempty,dive"`
	Tickets         []TicketLineRequest  `json:"tickets" binding:"omitempty,dive"`
	Invoice         InvoiceRequest       `json:"invoice"`
}

// HostingLineRequest is one booked hosting
type HostingLineRequest struct {
	HostingID string `json:"hosting_id" binding:"required,uuid"`
	Rooms     int    `json:"rooms" binding:"min=1"`
	Price     string `json:"price" binding:"required,brl_money"`
}

// TicketLineRequest is one booked attraction ticket
type TicketLineRequest struct {
	TicketID  string `json:"ticket_id" binding:"required,uuid"`
	VisitDate string `json:"visit_date" binding:"required,br_date"`
	Adults    int    `json:"adults" binding:"min=0"`
	Children  int    `json:"children" binding:"min=0"`
	HalfPrice int    `json:"half_price" binding:"min=0"`
	Price     string `json:"price" binding:"required,brl_money"`
}

// InvoiceRequest is the invoice and receipt state of the sale
type InvoiceRequest struct {
	Issued          bool   `json:"issued"`
	Number          string `json:"number" binding:"max=60"`
	IssuedAt        string `json:"issued_at" binding:"omitempty,br_date"`
	ReceiptIssued   bool   `json:"receipt_issued"`
	ReceiptNumber   string `json:"receipt_number" binding:"max=60"`
	ReceiptIssuedAt string `json:"receipt_issued_at" binding:"omitempty,br_date"`
}

// inputParser collects one detail per rejected field
type inputParser struct {
	loc     *time.Location
	details []dto.ValidationDetail
}

func (p *inputParser) fail(field string, err error) {
	code := "INVALID_INPUT"
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code = domainErr.Code
	}
	p.details = append(p.details, dto.ValidationDetail{Field: field, Message: err.Error(), Code: code})
}

func (p *inputParser) id(field, s string) uuid.UUID {
	id, err := uuid.Parse(s)
	if err != nil {
		p.fail(field, shared.NewDomainError("INVALID_INPUT", "Must be a valid UUID"))
		return uuid.Nil
	}
	return id
}

func (p *inputParser) date(field, s string) time.Time {
	t, err := locale.ParseDate(s, p.loc)
	if err != nil {
		p.fail(field, err)
	}
	return t
}

func (p *inputParser) optionalDate(field, s string) *time.Time {
	t, err := locale.ParseOptionalDate(s, p.loc)
	if err != nil {
		p.fail(field, err)
	}
	return t
}

func (p *inputParser) money(field, s string) decimal.Decimal {
	d, err := locale.ParseMoney(s)
	if err != nil {
		p.fail(field, err)
	}
	return d
}

func (p *inputParser) optionalMoney(field, s string) decimal.Decimal {
	d, err := locale.ParseOptionalMoney(s)
	if err != nil {
		p.fail(field, err)
	}
	return d
}

// ToInput converts the localized request into the typed application input.
// Dates are read in loc. Every field that fails to parse is reported.
func (r *SaleRequest) ToInput(loc *time.Location) (appsales.SaleInput, []dto.ValidationDetail) {
	p := &inputParser{loc: loc}

	in := appsales.SaleInput{
		Details: sales.SaleDetails{
			ExternalID:      r.ExternalID,
			SellerID:        p.id("seller_id", r.SellerID),
			TourOperatorID:  p.id("tour_operator_id", r.TourOperatorID),
			ClientID:        p.id("client_id", r.ClientID),
			PaymentMethod:   sales.PaymentMethod(r.PaymentMethod),
			SaleDate:        p.date("sale_date", r.SaleDate),
			CheckIn:         p.date("check_in", r.CheckIn),
			CheckOut:        p.date("check_out", r.CheckOut),
			TicketDiscount:  p.optionalMoney("ticket_discount", r.TicketDiscount),
			HostingDiscount: p.optionalMoney("hosting_discount", r.HostingDiscount),
			Note:            r.Note,
		},
		Invoice: sales.InvoiceDetails{
			Issued:          r.Invoice.Issued,
			Number:          r.Invoice.Number,
			IssuedAt:        p.optionalDate("invoice.issued_at", r.Invoice.IssuedAt),
			ReceiptIssued:   r.Invoice.ReceiptIssued,
			ReceiptNumber:   r.Invoice.ReceiptNumber,
			ReceiptIssuedAt: p.optionalDate("invoice.receipt_issued_at", r.Invoice.ReceiptIssuedAt),
		},
	}

	for i, s := range r.CompanionIDs {
		in.CompanionIDs = append(in.CompanionIDs, p.id(fmt.Sprintf("companion_ids[%d]", i), s))
	}
	for i, h := range r.Hostings {
		prefix := fmt.Sprintf("hostings[%d]", i)
		in.Hostings = append(in.Hostings, appsales.HostingInput{
			HostingID: p.id(prefix+".hosting_id", h.HostingID),
			Rooms:     h.Rooms,
			Price:     p.money(prefix+".price", h.Price),
		})
	}
	for i, t := range r.Tickets {
		prefix := fmt.Sprintf("tickets[%d]", i)
		in.Tickets = append(in.Tickets, appsales.TicketInput{
			TicketID:  p.id(prefix+".ticket_id", t.TicketID),
			VisitDate: p.date(prefix+".visit_date", t.VisitDate),
			Adults:    t.Adults,
			Children:  t.Children,
			HalfPrice: t.HalfPrice,
			Price:     p.money(prefix+".price", t.Price),
		})
	}

	return in, p.details
}

// HostingLineResponse is a booked hosting in responses
type HostingLineResponse struct {
	ID        uuid.UUID `json:"id"`
	HostingID uuid.UUID `json:"hosting_id"`
	Rooms     int       `json:"rooms"`
	Price     float64   `json:"price"`
}

// TicketLineResponse is a booked ticket in responses
type TicketLineResponse struct {
	ID        uuid.UUID `json:"id"`
	TicketID  uuid.UUID `json:"ticket_id"`
	VisitDate string    `json:"visit_date"`
	Adults    int       `json:"adults"`
	Children  int       `json:"children"`
	HalfPrice int       `json:"half_price"`
	Price     float64   `json:"price"`
}

// InvoiceResponse is the invoice state in responses
type InvoiceResponse struct {
	Issued          bool   `json:"issued"`
	Number          string `json:"number,omitempty"`
	IssuedAt        string `json:"issued_at,omitempty"`
	ReceiptIssued   bool   `json:"receipt_issued"`
	ReceiptNumber   string `json:"receipt_number,omitempty"`
	ReceiptIssuedAt string `json:"receipt_issued_at,omitempty"`
}

// GrantResponse is a cashback grant in responses
type GrantResponse struct {
	ID               uuid.UUID  `json:"id"`
	SaleID           uuid.UUID  `json:"sale_id"`
	CampaignID       uuid.UUID  `json:"campaign_id"`
	Status           string     `json:"status"`
	Amount           float64    `json:"amount"`
	AmountDisplay    string     `json:"amount_display"`
	ExpiresAt        time.Time  `json:"expires_at"`
	ConsumedBySaleID *uuid.UUID `json:"consumed_by_sale_id,omitempty"`
	UsedAt           *time.Time `json:"used_at,omitempty"`
	ExpiredAt        *time.Time `json:"expired_at,omitempty"`
}

// SaleResponse is a recorded sale with its totals, lines, invoice and cashback
type SaleResponse struct {
	ID             uuid.UUID `json:"id"`
	Version        int       `json:"version"`
	ExternalID     string    `json:"external_id"`
	SellerID       uuid.UUID `json:"seller_id"`
	TourOperatorID uuid.UUID `json:"tour_operator_id"`
	ClientID       uuid.UUID `json:"client_id"`
	PaymentMethod  string    `json:"payment_method"`
	SaleDate       string    `json:"sale_date"`
	CheckIn        string    `json:"check_in"`
	CheckOut       string    `json:"check_out"`
	Note           string    `json:"note,omitempty"`
	Cancelled      bool      `json:"cancelled"`

	TicketDiscount   float64 `json:"ticket_discount"`
	HostingDiscount  float64 `json:"hosting_discount"`
	TotalHostings    float64 `json:"total_hostings"`
	TotalTickets     float64 `json:"total_tickets"`
	GrossTotal       float64 `json:"gross_total"`
	AppliedCashback  float64 `json:"applied_cashback"`
	TotalDiscount    float64 `json:"total_discount"`
	NetTotal         float64 `json:"net_total"`
	SellerCommission float64 `json:"seller_commission"`
	AgencyCommission float64 `json:"agency_commission"`

	GrossTotalDisplay      string `json:"gross_total_display"`
	AppliedCashbackDisplay string `json:"applied_cashback_display"`
	TotalDiscountDisplay   string `json:"total_discount_display"`
	NetTotalDisplay        string `json:"net_total_display"`

	CompanionIDs   []uuid.UUID           `json:"companion_ids"`
	Hostings       []HostingLineResponse `json:"hostings"`
	Tickets        []TicketLineResponse  `json:"tickets"`
	Invoice        *InvoiceResponse      `json:"invoice,omitempty"`
	EarnedGrant    *GrantResponse        `json:"earned_grant,omitempty"`
	ConsumedGrants []GrantResponse       `json:"consumed_grants"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ToSaleResponse renders a sale without its cashback and invoice
func ToSaleResponse(s *sales.Sale, loc *time.Location) SaleResponse {
	resp := SaleResponse{
		ID:             s.ID,
		Version:        s.Version,
		ExternalID:     s.ExternalID,
		SellerID:       s.SellerID,
		TourOperatorID: s.TourOperatorID,
		ClientID:       s.ClientID,
		PaymentMethod:  s.PaymentMethod.String(),
		SaleDate:       locale.FormatDate(s.SaleDate, loc),
		CheckIn:        locale.FormatDate(s.CheckIn, loc),
		CheckOut:       locale.FormatDate(s.CheckOut, loc),
		Note:           s.Note,
		Cancelled:      s.Cancelled,

		TicketDiscount:   s.TicketDiscount.InexactFloat64(),
		HostingDiscount:  s.HostingDiscount.InexactFloat64(),
		TotalHostings:    s.TotalHostings.InexactFloat64(),
		TotalTickets:     s.TotalTickets.InexactFloat64(),
		GrossTotal:       s.GrossTotal.InexactFloat64(),
		AppliedCashback:  s.AppliedCashback.InexactFloat64(),
		TotalDiscount:    s.TotalDiscount.InexactFloat64(),
		NetTotal:         s.NetTotal.InexactFloat64(),
		SellerCommission: s.SellerCommission.InexactFloat64(),
		AgencyCommission: s.AgencyCommission.InexactFloat64(),

		GrossTotalDisplay:      locale.FormatMoney(s.GrossTotal),
		AppliedCashbackDisplay: locale.FormatMoney(s.AppliedCashback),
		TotalDiscountDisplay:   locale.FormatMoney(s.TotalDiscount),
		NetTotalDisplay:        locale.FormatMoney(s.NetTotal),

		CompanionIDs:   make([]uuid.UUID, 0, len(s.Companions)),
		Hostings:       make([]HostingLineResponse, 0, len(s.Hostings)),
		Tickets:        make([]TicketLineResponse, 0, len(s.Tickets)),
		ConsumedGrants: []GrantResponse{},

		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
	for _, c := range s.Companions {
		resp.CompanionIDs = append(resp.CompanionIDs, c.ClientID)
	}
	for _, h := range s.Hostings {
		resp.Hostings = append(resp.Hostings, HostingLineResponse{
			ID:        h.ID,
			HostingID: h.HostingID,
			Rooms:     h.Rooms,
			Price:     h.Price.InexactFloat64(),
		})
	}
	for _, t := range s.Tickets {
		resp.Tickets = append(resp.Tickets, TicketLineResponse{
			ID:        t.ID,
			TicketID:  t.TicketID,
			VisitDate: locale.FormatDate(t.VisitDate, loc),
			Adults:    t.Adults,
			Children:  t.Children,
			HalfPrice: t.HalfPrice,
			Price:     t.Price.InexactFloat64(),
		})
	}
	return resp
}

// ToSaleResultResponse renders an engine result
func ToSaleResultResponse(r *appsales.SaleResult, loc *time.Location) SaleResponse {
	resp := ToSaleResponse(r.Sale, loc)
	if r.Invoice != nil {
		resp.Invoice = toInvoiceResponse(r.Invoice, loc)
	}
	if r.Grant != nil {
		g := ToGrantResponse(*r.Grant)
		resp.EarnedGrant = &g
	}
	for _, g := range r.ConsumedGrants {
		resp.ConsumedGrants = append(resp.ConsumedGrants, ToGrantResponse(g))
	}
	return resp
}

func toInvoiceResponse(inv *sales.Invoice, loc *time.Location) *InvoiceResponse {
	resp := &InvoiceResponse{
		Issued:        inv.Issued,
		Number:        inv.Number,
		ReceiptIssued: inv.ReceiptIssued,
		ReceiptNumber: inv.ReceiptNumber,
	}
	if inv.IssuedAt != nil {
		resp.IssuedAt = locale.FormatDate(*inv.IssuedAt, loc)
	}
	if inv.ReceiptIssuedAt != nil {
		resp.ReceiptIssuedAt = locale.FormatDate(*inv.ReceiptIssuedAt, loc)
	}
	return resp
}

// ToGrantResponse renders a cashback grant
func ToGrantResponse(g cashback.Grant) GrantResponse {
	return GrantResponse{
		ID:               g.ID,
		SaleID:           g.SaleID,
		CampaignID:       g.CampaignID,
		Status:           g.Status.String(),
		Amount:           g.Amount.InexactFloat64(),
		AmountDisplay:    locale.FormatMoney(g.Amount),
		ExpiresAt:        g.ExpiresAt,
		ConsumedBySaleID: g.ConsumedBySaleID,
		UsedAt:           g.UsedAt,
		ExpiredAt:        g.ExpiredAt,
	}
}
