package persistence

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tourism/backoffice/internal/domain/sales"
	"github.com/tourism/backoffice/internal/domain/shared"
	"github.com/tourism/backoffice/internal/infrastructure/persistence/persistencetest"
)

func TestGormInvoiceRepository_Upsert(t *testing.T) {
	db := persistencetest.NewDB(t)
	repo := NewGormInvoiceRepository(db)
	ctx := context.Background()
	sale := createTestSale(t, db, uuid.New())

	invoice, err := sales.NewInvoice(sale.ID, sales.InvoiceDetails{}, testNow)
	require.NoError(t, err)
	require.NoError(t, repo.Upsert(ctx, invoice))

	issuedAt := testNow.AddDate(0, 0, 1)
	require.NoError(t, invoice.Apply(sales.InvoiceDetails{Issued: true, Number: "NF-0042", IssuedAt: &issuedAt}, issuedAt))
	require.NoError(t, repo.Upsert(ctx, invoice))

	t.Run("a second invoice for the same sale overwrites the first", func(t *testing.T) {
		other, err := sales.NewInvoice(sale.ID, sales.InvoiceDetails{ReceiptIssued: true, ReceiptNumber: "R-7"}, testNow)
		require.NoError(t, err)
		require.NoError(t, repo.Upsert(ctx, other))

		found, err := repo.FindBySale(ctx, sale.ID)
		require.NoError(t, err)
		assert.Equal(t, invoice.ID, found.ID)
		assert.False(t, found.Issued)
		assert.True(t, found.ReceiptIssued)
		assert.Equal(t, "R-7", found.ReceiptNumber)
	})

	require.NoError(t, repo.DeleteBySale(ctx, sale.ID))
	_, err = repo.FindBySale(ctx, sale.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormInvoiceRepository_IssuedFields(t *testing.T) {
	db := persistencetest.NewDB(t)
	repo := NewGormInvoiceRepository(db)
	ctx := context.Background()
	sale := createTestSale(t, db, uuid.New())

	issuedAt := testNow
	invoice, err := sales.NewInvoice(sale.ID, sales.InvoiceDetails{Issued: true, Number: "NF-1", IssuedAt: &issuedAt}, testNow)
	require.NoError(t, err)
	require.NoError(t, repo.Upsert(ctx, invoice))

	found, err := repo.FindBySale(ctx, sale.ID)
	require.NoError(t, err)
	assert.True(t, found.Issued)
	assert.Equal(t, "NF-1", found.Number)
	require.NotNil(t, found.IssuedAt)
	assert.True(t, issuedAt.Equal(*found.IssuedAt))
}
