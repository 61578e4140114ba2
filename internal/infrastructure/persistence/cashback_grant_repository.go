package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tourism/backoffice/internal/domain/cashback"
	"github.com/tourism/backoffice/internal/domain/shared"
	"github.com/tourism/backoffice/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormCashbackGrantRepository implements cashback.GrantRepository using GORM.
// Every transition out of ACTIVE is a single UPDATE conditioned on the current
// status, so concurrent writers resolve by RowsAffected instead of by locks.
type GormCashbackGrantRepository struct {
	db *gorm.DB
}

// NewGormCashbackGrantRepository creates a new GormCashbackGrantRepository
func NewGormCashbackGrantRepository(db *gorm.DB) *GormCashbackGrantRepository {
	return &GormCashbackGrantRepository{db: db}
}

func toGrants(rows []models.CashbackGrantModel) []cashback.Grant {
	grants := make([]cashback.Grant, len(rows))
	for i := range rows {
		grants[i] = *rows[i].ToDomain()
	}
	return grants
}

// FindByID finds a grant by ID
func (r *GormCashbackGrantRepository) FindByID(ctx context.Context, id uuid.UUID) (*cashback.Grant, error) {
	var model models.CashbackGrantModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// FindApplicableForClient returns ACTIVE, unexpired grants earned by
// non-cancelled sales of the client, oldest expiry first
func (r *GormCashbackGrantRepository) FindApplicableForClient(ctx context.Context, clientID uuid.UUID, now time.Time) ([]cashback.Grant, error) {
	var rows []models.CashbackGrantModel
	if err := r.db.WithContext(ctx).
		Model(&models.CashbackGrantModel{}).
		Select("cashback_grants.*").
		Joins("JOIN sales ON sales.id = cashback_grants.sale_id").
		Where("sales.client_id = ? AND sales.cancelled = ?", clientID, false).
		Where("cashback_grants.status = ? AND cashback_grants.expires_at > ?", cashback.GrantStatusActive, now.UTC()).
		Order("cashback_grants.expires_at ASC, cashback_grants.id ASC").
		Find(&rows).Error; err != nil {
		return nil, translateError(err)
	}
	return toGrants(rows), nil
}

// FindConsumedBySale returns the grants a sale has consumed, oldest expiry first
func (r *GormCashbackGrantRepository) FindConsumedBySale(ctx context.Context, saleID uuid.UUID) ([]cashback.Grant, error) {
	var rows []models.CashbackGrantModel
	if err := r.db.WithContext(ctx).
		Where("consumed_by_sale_id = ? AND status = ?", saleID, cashback.GrantStatusUsed).
		Order("expires_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, translateError(err)
	}
	return toGrants(rows), nil
}

// FindLatestEarnedBySale returns the most recent grant earned by a sale, or nil
func (r *GormCashbackGrantRepository) FindLatestEarnedBySale(ctx context.Context, saleID uuid.UUID) (*cashback.Grant, error) {
	var model models.CashbackGrantModel
	err := r.db.WithContext(ctx).
		Where("sale_id = ?", saleID).
		Order("created_at DESC, id DESC").
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// FindEarnedBySale returns every grant earned by a sale
func (r *GormCashbackGrantRepository) FindEarnedBySale(ctx context.Context, saleID uuid.UUID) ([]cashback.Grant, error) {
	var rows []models.CashbackGrantModel
	if err := r.db.WithContext(ctx).
		Where("sale_id = ?", saleID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, translateError(err)
	}
	return toGrants(rows), nil
}

// Create persists a new grant
func (r *GormCashbackGrantRepository) Create(ctx context.Context, grant *cashback.Grant) error {
	return translateError(r.db.WithContext(ctx).Create(models.CashbackGrantModelFromDomain(grant)).Error)
}

// UpdateAmount overwrites the stored amount of a grant
func (r *GormCashbackGrantRepository) UpdateAmount(ctx context.Context, id uuid.UUID, amount decimal.Decimal, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.CashbackGrantModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"amount":     amount,
			"updated_at": at.UTC(),
		})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// DeleteActive removes a grant only while it is still ACTIVE
func (r *GormCashbackGrantRepository) DeleteActive(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("id = ? AND status = ?", id, cashback.GrantStatusActive).
		Delete(&models.CashbackGrantModel{})
	if result.Error != nil {
		return false, translateError(result.Error)
	}
	return result.RowsAffected > 0, nil
}

// DeleteBySale removes every grant earned by a sale
func (r *GormCashbackGrantRepository) DeleteBySale(ctx context.Context, saleID uuid.UUID) error {
	return translateError(r.db.WithContext(ctx).
		Where("sale_id = ?", saleID).
		Delete(&models.CashbackGrantModel{}).Error)
}

// MarkUsedIfActive performs the guarded ACTIVE -> USED transition.
// A grant past its expiry is not claimable even before the sweep has run.
func (r *GormCashbackGrantRepository) MarkUsedIfActive(ctx context.Context, id, consumingSaleID uuid.UUID, at time.Time) (bool, error) {
	at = at.UTC()
	result := r.db.WithContext(ctx).
		Model(&models.CashbackGrantModel{}).
		Where("id = ? AND status = ? AND expires_at > ?", id, cashback.GrantStatusActive, at).
		Updates(map[string]interface{}{
			"status":              cashback.GrantStatusUsed,
			"consumed_by_sale_id": consumingSaleID,
			"used_at":             at,
			"updated_at":          at,
		})
	if result.Error != nil {
		return false, translateError(result.Error)
	}
	return result.RowsAffected == 1, nil
}

// ExpireDue moves every ACTIVE grant with expires_at < now to EXPIRED
func (r *GormCashbackGrantRepository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	now = now.UTC()
	result := r.db.WithContext(ctx).
		Model(&models.CashbackGrantModel{}).
		Where("status = ? AND expires_at < ?", cashback.GrantStatusActive, now).
		Updates(map[string]interface{}{
			"status":     cashback.GrantStatusExpired,
			"expired_at": now,
			"updated_at": now,
		})
	if result.Error != nil {
		return 0, translateError(result.Error)
	}
	return result.RowsAffected, nil
}

// Ensure GormCashbackGrantRepository implements GrantRepository
var _ cashback.GrantRepository = (*GormCashbackGrantRepository)(nil)
