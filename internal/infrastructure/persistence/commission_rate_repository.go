package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/tourism/backoffice/internal/domain/sales"
	"github.com/tourism/backoffice/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormCommissionRateRepository implements sales.CommissionRateRepository using GORM
type GormCommissionRateRepository struct {
	db *gorm.DB
}

// NewGormCommissionRateRepository creates a new GormCommissionRateRepository
func NewGormCommissionRateRepository(db *gorm.DB) *GormCommissionRateRepository {
	return &GormCommissionRateRepository{db: db}
}

// FindSellerRate returns the rate for a (seller, tour operator) pair
func (r *GormCommissionRateRepository) FindSellerRate(ctx context.Context, sellerID, tourOperatorID uuid.UUID) (*sales.SellerCommissionRate, error) {
	var model models.SellerCommissionRateModel
	if err := r.db.WithContext(ctx).
		Where("seller_id = ? AND tour_operator_id = ?", sellerID, tourOperatorID).
		First(&model).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// FindTourOperatorRate returns the rates a tour operator pays the agency
func (r *GormCommissionRateRepository) FindTourOperatorRate(ctx context.Context, tourOperatorID uuid.UUID) (*sales.TourOperatorCommissionRate, error) {
	var model models.TourOperatorCommissionRateModel
	if err := r.db.WithContext(ctx).
		Where("tour_operator_id = ?", tourOperatorID).
		First(&model).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// Ensure GormCommissionRateRepository implements CommissionRateRepository
var _ sales.CommissionRateRepository = (*GormCommissionRateRepository)(nil)
