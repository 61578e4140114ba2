package persistence

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tourism/backoffice/internal/domain/sales"
	"github.com/tourism/backoffice/internal/domain/shared"
	"github.com/tourism/backoffice/internal/infrastructure/persistence/models"
	"github.com/tourism/backoffice/internal/infrastructure/persistence/persistencetest"
)

func TestGormCommissionRateRepository(t *testing.T) {
	db := persistencetest.NewDB(t)
	repo := NewGormCommissionRateRepository(db)
	ctx := context.Background()

	sellerID, operatorID := uuid.New(), uuid.New()
	require.NoError(t, db.Create(&models.SellerCommissionRateModel{
		BaseModel:       models.BaseModel{ID: uuid.New(), CreatedAt: testNow, UpdatedAt: testNow},
		SellerID:        sellerID,
		TourOperatorID:  operatorID,
		CashRate:        decimal.NewFromInt(5),
		InstallmentRate: decimal.NewFromInt(3),
	}).Error)
	require.NoError(t, db.Create(&models.TourOperatorCommissionRateModel{
		BaseModel:              models.BaseModel{ID: uuid.New(), CreatedAt: testNow, UpdatedAt: testNow},
		TourOperatorID:         operatorID,
		HostingCashRate:        decimal.NewFromInt(12),
		HostingInstallmentRate: decimal.NewFromInt(10),
		TicketCashRate:         decimal.NewFromInt(8),
		TicketInstallmentRate:  decimal.NewFromInt(6),
	}).Error)

	seller, err := repo.FindSellerRate(ctx, sellerID, operatorID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(3).Equal(seller.RateFor(sales.PaymentMethodInstallment)))
	assert.True(t, decimal.NewFromInt(5).Equal(seller.RateFor(sales.PaymentMethodPix)))

	operator, err := repo.FindTourOperatorRate(ctx, operatorID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(12).Equal(operator.HostingRateFor(sales.PaymentMethodCash)))
	assert.True(t, decimal.NewFromInt(6).Equal(operator.TicketRateFor(sales.PaymentMethodCreditCard)))

	_, err = repo.FindSellerRate(ctx, sellerID, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
	_, err = repo.FindTourOperatorRate(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
