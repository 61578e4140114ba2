package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tourism/backoffice/internal/domain/cashback"
	"github.com/tourism/backoffice/internal/domain/shared"
	"github.com/tourism/backoffice/internal/infrastructure/persistence/persistencetest"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestGormCashbackGrantRepository_FindApplicableForClient(t *testing.T) {
	db := persistencetest.NewDB(t)
	repo := NewGormCashbackGrantRepository(db)
	saleRepo := NewGormSaleRepository(db)
	ctx := context.Background()

	clientID := uuid.New()
	sale := createTestSale(t, db, clientID)

	later := createTestGrant(t, db, sale.ID, 30, testNow.AddDate(0, 0, 20))
	sooner := createTestGrant(t, db, sale.ID, 10, testNow.AddDate(0, 0, 5))
	createTestGrant(t, db, sale.ID, 99, testNow.Add(-time.Hour))

	used := createTestGrant(t, db, sale.ID, 15, testNow.AddDate(0, 0, 8))
	ok, err := repo.MarkUsedIfActive(ctx, used.ID, createTestSale(t, db, clientID).ID, testNow)
	require.NoError(t, err)
	require.True(t, ok)

	otherClientSale := createTestSale(t, db, uuid.New())
	createTestGrant(t, db, otherClientSale.ID, 40, testNow.AddDate(0, 0, 3))

	cancelledSale := createTestSale(t, db, clientID)
	createTestGrant(t, db, cancelledSale.ID, 70, testNow.AddDate(0, 0, 2))
	require.True(t, cancelledSale.Cancel(testNow))
	require.NoError(t, saleRepo.Update(ctx, cancelledSale))

	grants, err := repo.FindApplicableForClient(ctx, clientID, testNow)
	require.NoError(t, err)
	require.Len(t, grants, 2)
	assert.Equal(t, sooner.ID, grants[0].ID)
	assert.Equal(t, later.ID, grants[1].ID)
	assert.Equal(t, cashback.GrantStatusActive, grants[0].Status)
	assert.True(t, decimal.NewFromInt(10).Equal(grants[0].Amount))
}

func TestGormCashbackGrantRepository_MarkUsedIfActive(t *testing.T) {
	db := persistencetest.NewDB(t)
	repo := NewGormCashbackGrantRepository(db)
	ctx := context.Background()
	sale := createTestSale(t, db, uuid.New())
	consumer := createTestSale(t, db, uuid.New()).ID

	grant := createTestGrant(t, db, sale.ID, 50, testNow.AddDate(0, 0, 5))

	ok, err := repo.MarkUsedIfActive(ctx, grant.ID, consumer, testNow)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkUsedIfActive(ctx, grant.ID, sale.ID, testNow)
	require.NoError(t, err)
	assert.False(t, ok, "a USED grant cannot be claimed twice")

	stored, err := repo.FindByID(ctx, grant.ID)
	require.NoError(t, err)
	assert.Equal(t, cashback.GrantStatusUsed, stored.Status)
	require.NotNil(t, stored.ConsumedBySaleID)
	assert.Equal(t, consumer, *stored.ConsumedBySaleID)
	require.NotNil(t, stored.UsedAt)

	consumed, err := repo.FindConsumedBySale(ctx, consumer)
	require.NoError(t, err)
	require.Len(t, consumed, 1)
	assert.Equal(t, grant.ID, consumed[0].ID)

	t.Run("past expiry is not claimable", func(t *testing.T) {
		stale := createTestGrant(t, db, sale.ID, 20, testNow.Add(-time.Minute))
		ok, err := repo.MarkUsedIfActive(ctx, stale.ID, consumer, testNow)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestGormCashbackGrantRepository_ExpireDue(t *testing.T) {
	db := persistencetest.NewDB(t)
	repo := NewGormCashbackGrantRepository(db)
	ctx := context.Background()
	sale := createTestSale(t, db, uuid.New())

	due1 := createTestGrant(t, db, sale.ID, 10, testNow.AddDate(0, 0, -2))
	createTestGrant(t, db, sale.ID, 10, testNow.AddDate(0, 0, -1))
	fresh := createTestGrant(t, db, sale.ID, 10, testNow.AddDate(0, 0, 3))
	usedDue := createTestGrant(t, db, sale.ID, 10, testNow.AddDate(0, 0, 1))
	ok, err := repo.MarkUsedIfActive(ctx, usedDue.ID, createTestSale(t, db, uuid.New()).ID, testNow)
	require.NoError(t, err)
	require.True(t, ok)

	later := testNow.AddDate(0, 0, 2)
	count, err := repo.ExpireDue(ctx, later)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	count, err = repo.ExpireDue(ctx, later)
	require.NoError(t, err)
	assert.Zero(t, count, "second sweep must be a no-op")

	g, err := repo.FindByID(ctx, due1.ID)
	require.NoError(t, err)
	assert.Equal(t, cashback.GrantStatusExpired, g.Status)
	assert.NotNil(t, g.ExpiredAt)

	g, err = repo.FindByID(ctx, usedDue.ID)
	require.NoError(t, err)
	assert.Equal(t, cashback.GrantStatusUsed, g.Status)

	g, err = repo.FindByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, cashback.GrantStatusActive, g.Status)
}

func TestGormCashbackGrantRepository_EarnedBySale(t *testing.T) {
	db := persistencetest.NewDB(t)
	repo := NewGormCashbackGrantRepository(db)
	ctx := context.Background()
	sale := createTestSale(t, db, uuid.New())

	latest, err := repo.FindLatestEarnedBySale(ctx, sale.ID)
	require.NoError(t, err)
	assert.Nil(t, latest)

	grant := createTestGrant(t, db, sale.ID, 12, testNow.AddDate(0, 1, 0))

	latest, err = repo.FindLatestEarnedBySale(ctx, sale.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, grant.ID, latest.ID)

	earned, err := repo.FindEarnedBySale(ctx, sale.ID)
	require.NoError(t, err)
	assert.Len(t, earned, 1)

	require.NoError(t, repo.UpdateAmount(ctx, grant.ID, decimal.RequireFromString("7.50"), testNow))
	stored, err := repo.FindByID(ctx, grant.ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("7.5").Equal(stored.Amount))

	assert.ErrorIs(t, repo.UpdateAmount(ctx, uuid.New(), decimal.Zero, testNow), shared.ErrNotFound)
}

func TestGormCashbackGrantRepository_DeleteActive(t *testing.T) {
	db := persistencetest.NewDB(t)
	repo := NewGormCashbackGrantRepository(db)
	ctx := context.Background()
	sale := createTestSale(t, db, uuid.New())

	active := createTestGrant(t, db, sale.ID, 10, testNow.AddDate(0, 0, 5))
	used := createTestGrant(t, db, sale.ID, 10, testNow.AddDate(0, 0, 5))
	_, err := repo.MarkUsedIfActive(ctx, used.ID, createTestSale(t, db, uuid.New()).ID, testNow)
	require.NoError(t, err)

	deleted, err := repo.DeleteActive(ctx, active.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repo.DeleteActive(ctx, used.ID)
	require.NoError(t, err)
	assert.False(t, deleted, "settled grants are never deleted")

	require.NoError(t, repo.DeleteBySale(ctx, sale.ID))
	_, err = repo.FindByID(ctx, used.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormCashbackGrantRepository_ForeignKeys(t *testing.T) {
	db := persistencetest.NewDB(t)
	repo := NewGormCashbackGrantRepository(db)
	ctx := context.Background()
	sale := createTestSale(t, db, uuid.New())
	campaign := createTestCampaign(t, db)

	t.Run("unknown earning sale", func(t *testing.T) {
		orphan, err := cashback.NewGrant(uuid.New(), campaign.ID, decimal.NewFromInt(10), testNow.AddDate(0, 0, 5), testNow)
		require.NoError(t, err)
		assert.ErrorIs(t, repo.Create(ctx, orphan), shared.ErrIntegrityViolation)
	})

	t.Run("unknown campaign", func(t *testing.T) {
		orphan, err := cashback.NewGrant(sale.ID, uuid.New(), decimal.NewFromInt(10), testNow.AddDate(0, 0, 5), testNow)
		require.NoError(t, err)
		assert.ErrorIs(t, repo.Create(ctx, orphan), shared.ErrIntegrityViolation)
	})

	t.Run("unknown consuming sale", func(t *testing.T) {
		grant := createTestGrant(t, db, sale.ID, 10, testNow.AddDate(0, 0, 5))
		_, err := repo.MarkUsedIfActive(ctx, grant.ID, uuid.New(), testNow)
		assert.ErrorIs(t, err, shared.ErrIntegrityViolation)

		stored, err := repo.FindByID(ctx, grant.ID)
		require.NoError(t, err)
		assert.Equal(t, cashback.GrantStatusActive, stored.Status)
	})

	t.Run("sale with grants cannot be removed", func(t *testing.T) {
		assert.ErrorIs(t, NewGormSaleRepository(db).Delete(ctx, sale.ID), shared.ErrIntegrityViolation)
	})
}

func newMockGrantRepository(t *testing.T) (*GormCashbackGrantRepository, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	return NewGormCashbackGrantRepository(gormDB), mock, mockDB
}

func TestGormCashbackGrantRepository_GuardedUpdateSQL(t *testing.T) {
	t.Run("settlement is conditioned on ACTIVE and unexpired", func(t *testing.T) {
		repo, mock, mockDB := newMockGrantRepository(t)
		defer mockDB.Close()

		grantID := uuid.New()
		mock.ExpectExec(`UPDATE "cashback_grants" SET .* WHERE id = \$\d+ AND status = \$\d+ AND expires_at > \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		ok, err := repo.MarkUsedIfActive(context.Background(), grantID, uuid.New(), testNow)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("expiry is conditioned on ACTIVE and past due", func(t *testing.T) {
		repo, mock, mockDB := newMockGrantRepository(t)
		defer mockDB.Close()

		mock.ExpectExec(`UPDATE "cashback_grants" SET .* WHERE status = \$\d+ AND expires_at < \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 3))

		count, err := repo.ExpireDue(context.Background(), testNow)
		require.NoError(t, err)
		assert.Equal(t, int64(3), count)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("deadlock surfaces as a concurrency conflict", func(t *testing.T) {
		repo, mock, mockDB := newMockGrantRepository(t)
		defer mockDB.Close()

		mock.ExpectExec(`UPDATE "cashback_grants"`).
			WillReturnError(&pgconn.PgError{Code: "40P01"})

		_, err := repo.ExpireDue(context.Background(), testNow)
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	})
}
