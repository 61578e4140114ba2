package sales

import (
	"github.com/shopspring/decimal"
	"github.com/tourism/backoffice/internal/domain/shared"
)

// Totals is the monetary breakdown of a sale.
//
//	NetTotal      = GrossTotal - TotalDiscount
//	TotalDiscount = ExplicitDiscount + AppliedCashback
//	AppliedCashback <= GrossTotal - ExplicitDiscount
type Totals struct {
	TotalHostings    decimal.Decimal
	TotalTickets     decimal.Decimal
	GrossTotal       decimal.Decimal
	ExplicitDiscount decimal.Decimal
	AppliedCashback  decimal.Decimal
	TotalDiscount    decimal.Decimal
	NetTotal         decimal.Decimal
}

// CashbackCeiling is the most cashback the sale can absorb
func (t Totals) CashbackCeiling() decimal.Decimal {
	return t.GrossTotal.Sub(t.ExplicitDiscount)
}

// ComputeTotals sums line prices, applies explicit discounts and then up to
// availableCashback, never letting the net total drop below zero.
func ComputeTotals(hostingPrices, ticketPrices []decimal.Decimal, hostingDiscount, ticketDiscount, availableCashback decimal.Decimal) (Totals, error) {
	if hostingDiscount.IsNegative() || ticketDiscount.IsNegative() {
		return Totals{}, shared.NewDomainError("INVALID_DISCOUNT", "Discounts cannot be negative")
	}
	if availableCashback.IsNegative() {
		return Totals{}, shared.NewDomainError("INVALID_CASHBACK", "Available cashback cannot be negative")
	}

	totalHostings, err := sumPrices(hostingPrices)
	if err != nil {
		return Totals{}, err
	}
	totalTickets, err := sumPrices(ticketPrices)
	if err != nil {
		return Totals{}, err
	}

	t := Totals{
		TotalHostings:    totalHostings,
		TotalTickets:     totalTickets,
		GrossTotal:       totalHostings.Add(totalTickets),
		ExplicitDiscount: ticketDiscount.Add(hostingDiscount),
	}
	ceiling := t.CashbackCeiling()
	if ceiling.IsNegative() {
		return Totals{}, shared.NewDomainError("INVALID_DISCOUNT", "Discounts cannot exceed the sale gross total")
	}

	t.AppliedCashback = decimal.Min(availableCashback, ceiling)
	t.TotalDiscount = t.ExplicitDiscount.Add(t.AppliedCashback)
	t.NetTotal = t.GrossTotal.Sub(t.TotalDiscount)
	return t, nil
}

func sumPrices(prices []decimal.Decimal) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, p := range prices {
		if p.IsNegative() {
			return decimal.Zero, shared.NewDomainError("INVALID_PRICE", "Line price cannot be negative")
		}
		total = total.Add(p)
	}
	return total, nil
}
