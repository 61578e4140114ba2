package sales

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// SellerCommissionRate is the seller's share for sales of one tour operator
type SellerCommissionRate struct {
	SellerID        uuid.UUID
	TourOperatorID  uuid.UUID
	CashRate        decimal.Decimal
	InstallmentRate decimal.Decimal
}

// RateFor picks the cash or installment column
func (r *SellerCommissionRate) RateFor(method PaymentMethod) decimal.Decimal {
	if r == nil {
		return decimal.Zero
	}
	if method.IsInstallment() {
		return r.InstallmentRate
	}
	return r.CashRate
}

// TourOperatorCommissionRate is what the tour operator pays the agency,
// split by line kind and payment column
type TourOperatorCommissionRate struct {
	TourOperatorID         uuid.UUID
	HostingCashRate        decimal.Decimal
	HostingInstallmentRate decimal.Decimal
	TicketCashRate         decimal.Decimal
	TicketInstallmentRate  decimal.Decimal
}

// HostingRateFor picks the hosting rate column
func (r *TourOperatorCommissionRate) HostingRateFor(method PaymentMethod) decimal.Decimal {
	if r == nil {
		return decimal.Zero
	}
	if method.IsInstallment() {
		return r.HostingInstallmentRate
	}
	return r.HostingCashRate
}

// TicketRateFor picks the ticket rate column
func (r *TourOperatorCommissionRate) TicketRateFor(method PaymentMethod) decimal.Decimal {
	if r == nil {
		return decimal.Zero
	}
	if method.IsInstallment() {
		return r.TicketInstallmentRate
	}
	return r.TicketCashRate
}

// ComputeSellerCommission returns netTotal * rate / 100, rounded to cents
func ComputeSellerCommission(netTotal decimal.Decimal, rate *SellerCommissionRate, method PaymentMethod) decimal.Decimal {
	return netTotal.Mul(rate.RateFor(method)).Div(hundred).Round(2)
}

// ComputeAgencyCommission applies the hosting and ticket rates to their
// subtotals net of the matching explicit discount and sums the two.
// Applied cashback does not reduce the agency commission.
func ComputeAgencyCommission(t Totals, hostingDiscount, ticketDiscount decimal.Decimal, rate *TourOperatorCommissionRate, method PaymentMethod) decimal.Decimal {
	hosting := t.TotalHostings.Sub(hostingDiscount).Mul(rate.HostingRateFor(method)).Div(hundred)
	ticket := t.TotalTickets.Sub(ticketDiscount).Mul(rate.TicketRateFor(method)).Div(hundred)
	return hosting.Add(ticket).Round(2)
}
