package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/tourism/backoffice/internal/domain/cashback"
	"github.com/tourism/backoffice/internal/domain/sales"
	"gorm.io/gorm"
)

var testNow = time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)

func newTestSale(t *testing.T, clientID uuid.UUID) *sales.Sale {
	t.Helper()
	sale, err := sales.NewSale(sales.SaleDetails{
		ExternalID:     "OP-1001",
		SellerID:       uuid.New(),
		TourOperatorID: uuid.New(),
		ClientID:       clientID,
		PaymentMethod:  sales.PaymentMethodCash,
		SaleDate:       testNow,
		CheckIn:        testNow.AddDate(0, 0, 10),
		CheckOut:       testNow.AddDate(0, 0, 14),
		Note:           "ocean view",
	}, testNow)
	require.NoError(t, err)

	require.NoError(t, sale.ReplaceLines(
		[]uuid.UUID{uuid.New()},
		[]sales.HostingLine{{HostingID: uuid.New(), Rooms: 1, Price: decimal.NewFromInt(200)}},
		[]sales.TicketLine{{TicketID: uuid.New(), VisitDate: testNow.AddDate(0, 0, 11), Adults: 2, Price: decimal.NewFromInt(50)}},
	))
	totals, err := sale.ComputeTotals(decimal.Zero)
	require.NoError(t, err)
	sale.ApplyTotals(totals, nil, nil)
	return sale
}

func createTestSale(t *testing.T, db *gorm.DB, clientID uuid.UUID) *sales.Sale {
	t.Helper()
	sale := newTestSale(t, clientID)
	require.NoError(t, NewGormSaleRepository(db).Create(context.Background(), sale))
	return sale
}

func createTestCampaign(t *testing.T, db *gorm.DB) *cashback.Campaign {
	t.Helper()
	campaign, err := cashback.NewCampaign("Low season", decimal.NewFromInt(5), 30,
		testNow.AddDate(0, -1, 0), testNow.AddDate(0, 1, 0), cashback.AnchorPurchase)
	require.NoError(t, err)
	require.NoError(t, NewGormCashbackCampaignRepository(db).Save(context.Background(), campaign))
	return campaign
}

func createTestGrant(t *testing.T, db *gorm.DB, saleID uuid.UUID, amount int64, expiresAt time.Time) *cashback.Grant {
	t.Helper()
	grant, err := cashback.NewGrant(saleID, createTestCampaign(t, db).ID, decimal.NewFromInt(amount), expiresAt, testNow)
	require.NoError(t, err)
	require.NoError(t, NewGormCashbackGrantRepository(db).Create(context.Background(), grant))
	return grant
}

// newGrantFor builds an unsaved grant of a saved campaign
func newGrantFor(t *testing.T, db *gorm.DB, saleID uuid.UUID) *cashback.Grant {
	t.Helper()
	grant, err := cashback.NewGrant(saleID, createTestCampaign(t, db).ID, decimal.NewFromInt(25), testNow.AddDate(0, 0, 30), testNow)
	require.NoError(t, err)
	return grant
}
