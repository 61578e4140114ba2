package handler

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSaleRequest() SaleRequest {
	return SaleRequest{
		ExternalID:      "OP-1",
		SellerID:        testSellerID.String(),
		TourOperatorID:  testOperatorID.String(),
		ClientID:        testClientID.String(),
		PaymentMethod:   "CREDIT_CARD",
		SaleDate:        "10/01/2026",
		CheckIn:         "20/01/2026",
		CheckOut:        "25/01/2026",
		TicketDiscount:  "",
		HostingDiscount: "1.000,50",
		CompanionIDs:    []string{testSellerID.String()},
		Hostings:        []HostingLineRequest{{HostingID: testHostingID.String(), Rooms: 2, Price: "2.500,00"}},
		Tickets:         []TicketLineRequest{{TicketID: testTicketID.String(), VisitDate: "21/01/2026", Adults: 2, Children: 1, Price: "R$ 450,90"}},
		Invoice:         InvoiceRequest{ReceiptIssued: true, ReceiptNumber: "RC-9", ReceiptIssuedAt: "11/01/2026"},
	}
}

func TestSaleRequest_ToInput(t *testing.T) {
	req := validSaleRequest()

	in, details := req.ToInput(saoPaulo)

	require.Empty(t, details)
	assert.Equal(t, testClientID, in.Details.ClientID)
	assert.True(t, in.Details.PaymentMethod.IsInstallment())
	assert.Equal(t, time.Date(2026, 1, 20, 0, 0, 0, 0, saoPaulo), in.Details.CheckIn)
	assert.True(t, in.Details.TicketDiscount.IsZero())
	assert.True(t, in.Details.HostingDiscount.Equal(decimal.RequireFromString("1000.50")))
	require.Len(t, in.CompanionIDs, 1)
	assert.Equal(t, testSellerID, in.CompanionIDs[0])

	require.Len(t, in.Hostings, 1)
	assert.Equal(t, 2, in.Hostings[0].Rooms)
	assert.True(t, in.Hostings[0].Price.Equal(decimal.NewFromInt(2500)))

	require.Len(t, in.Tickets, 1)
	assert.Equal(t, time.Date(2026, 1, 21, 0, 0, 0, 0, saoPaulo), in.Tickets[0].VisitDate)
	assert.True(t, in.Tickets[0].Price.Equal(decimal.RequireFromString("450.90")))

	assert.False(t, in.Invoice.Issued)
	assert.Nil(t, in.Invoice.IssuedAt)
	require.NotNil(t, in.Invoice.ReceiptIssuedAt)
	assert.Equal(t, time.Date(2026, 1, 11, 0, 0, 0, 0, saoPaulo), *in.Invoice.ReceiptIssuedAt)
}

func TestSaleRequest_ToInput_ReportsEveryBadField(t *testing.T) {
	req := validSaleRequest()
	req.ClientID = "nope"
	req.CheckOut = "31/02/2026"
	req.Hostings[0].Price = "12,345"
	req.Tickets[0].VisitDate = "2026-01-21"
	req.CompanionIDs = []string{"x"}

	_, details := req.ToInput(saoPaulo)

	fields := map[string]string{}
	for _, d := range details {
		fields[d.Field] = d.Code
	}
	assert.Equal(t, map[string]string{
		"client_id":             "INVALID_INPUT",
		"check_out":             "INVALID_DATE",
		"hostings[0].price":     "INVALID_MONEY",
		"tickets[0].visit_date": "INVALID_DATE",
		"companion_ids[0]":      "INVALID_INPUT",
	}, fields)
}

func TestToSaleResponse_Display(t *testing.T) {
	sale := sampleSale()

	resp := ToSaleResponse(sale, saoPaulo)

	assert.Equal(t, 1534.56, resp.GrossTotal)
	assert.Equal(t, "R$ 1.534,56", resp.GrossTotalDisplay)
	assert.Equal(t, "R$ 50,00", resp.AppliedCashbackDisplay)
	assert.Equal(t, "20/01/2026", resp.CheckIn)
	require.Len(t, resp.Hostings, 1)
	assert.Equal(t, 1234.56, resp.Hostings[0].Price)
	assert.NotNil(t, resp.CompanionIDs)
	assert.Nil(t, resp.EarnedGrant)
}
