package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tourism/backoffice/internal/domain/cashback"
	"github.com/tourism/backoffice/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCashbackCampaignRepository implements cashback.CampaignRepository using GORM
type GormCashbackCampaignRepository struct {
	db *gorm.DB
}

// NewGormCashbackCampaignRepository creates a new GormCashbackCampaignRepository
func NewGormCashbackCampaignRepository(db *gorm.DB) *GormCashbackCampaignRepository {
	return &GormCashbackCampaignRepository{db: db}
}

// FindByID finds a campaign by ID
func (r *GormCashbackCampaignRepository) FindByID(ctx context.Context, id uuid.UUID) (*cashback.Campaign, error) {
	var model models.CashbackCampaignModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// FindRunningAt returns every campaign whose window contains now,
// highest percentage first
func (r *GormCashbackCampaignRepository) FindRunningAt(ctx context.Context, now time.Time) ([]cashback.Campaign, error) {
	var rows []models.CashbackCampaignModel
	at := now.UTC()
	if err := r.db.WithContext(ctx).
		Where("start_date <= ? AND end_date >= ?", at, at).
		Order("percentage DESC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, translateError(err)
	}

	campaigns := make([]cashback.Campaign, len(rows))
	for i := range rows {
		campaigns[i] = *rows[i].ToDomain()
	}
	return campaigns, nil
}

// Save creates or updates a campaign
func (r *GormCashbackCampaignRepository) Save(ctx context.Context, campaign *cashback.Campaign) error {
	model := &models.CashbackCampaignModel{}
	model.FromDomain(campaign)
	return translateError(r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(model).Error)
}

// Ensure GormCashbackCampaignRepository implements CampaignRepository
var _ cashback.CampaignRepository = (*GormCashbackCampaignRepository)(nil)
