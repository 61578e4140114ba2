package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/tourism/backoffice/internal/domain/sales"
	"github.com/tourism/backoffice/internal/domain/shared"
	"github.com/tourism/backoffice/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSaleRepository implements sales.SaleRepository using GORM
type GormSaleRepository struct {
	db *gorm.DB
}

// NewGormSaleRepository creates a new GormSaleRepository
func NewGormSaleRepository(db *gorm.DB) *GormSaleRepository {
	return &GormSaleRepository{db: db}
}

func (r *GormSaleRepository) withLines(db *gorm.DB) *gorm.DB {
	return db.Preload("Companions").Preload("Hostings").Preload("Tickets")
}

// FindByID finds a sale with its companions, hosting and ticket lines
func (r *GormSaleRepository) FindByID(ctx context.Context, id uuid.UUID) (*sales.Sale, error) {
	var model models.SaleModel
	if err := r.withLines(r.db.WithContext(ctx)).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// FindByIDForUpdate loads the sale with SELECT ... FOR UPDATE so concurrent
// edits of the same sale serialize on the row until the transaction ends
func (r *GormSaleRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*sales.Sale, error) {
	var model models.SaleModel
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	if err := r.loadLines(ctx, &model); err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

func (r *GormSaleRepository) loadLines(ctx context.Context, model *models.SaleModel) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("sale_id = ?", model.ID).Find(&model.Companions).Error; err != nil {
		return translateError(err)
	}
	if err := db.Where("sale_id = ?", model.ID).Find(&model.Hostings).Error; err != nil {
		return translateError(err)
	}
	if err := db.Where("sale_id = ?", model.ID).Find(&model.Tickets).Error; err != nil {
		return translateError(err)
	}
	return nil
}

// Create persists a new sale with its lines
func (r *GormSaleRepository) Create(ctx context.Context, sale *sales.Sale) error {
	model := models.SaleModelFromDomain(sale)
	return translateError(r.db.WithContext(ctx).Create(model).Error)
}

// Update writes header fields and totals guarded by the optimistic version.
// Lines are untouched; see ReplaceLines.
func (r *GormSaleRepository) Update(ctx context.Context, sale *sales.Sale) error {
	model := models.SaleModelFromDomain(sale)
	result := r.db.WithContext(ctx).
		Model(&models.SaleModel{}).
		Where("id = ? AND version = ?", sale.ID, sale.Version-1).
		Updates(map[string]interface{}{
			"external_id":       model.ExternalID,
			"seller_id":         model.SellerID,
			"tour_operator_id":  model.TourOperatorID,
			"client_id":         model.ClientID,
			"payment_method":    model.PaymentMethod,
			"sale_date":         model.SaleDate,
			"check_in":          model.CheckIn,
			"check_out":         model.CheckOut,
			"ticket_discount":   model.TicketDiscount,
			"hosting_discount":  model.HostingDiscount,
			"note":              model.Note,
			"cancelled":         model.Cancelled,
			"total_hostings":    model.TotalHostings,
			"total_tickets":     model.TotalTickets,
			"gross_total":       model.GrossTotal,
			"applied_cashback":  model.AppliedCashback,
			"total_discount":    model.TotalDiscount,
			"net_total":         model.NetTotal,
			"seller_commission": model.SellerCommission,
			"agency_commission": model.AgencyCommission,
			"version":           model.Version,
			"updated_at":        model.UpdatedAt,
		})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.SaleModel{}).Where("id = ?", sale.ID).Count(&count).Error; err != nil {
			return translateError(err)
		}
		if count == 0 {
			return shared.ErrNotFound
		}
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// UpdateTotals writes the totals and commissions of a sale created earlier
// in the same transaction, once the cashback it absorbs is known
func (r *GormSaleRepository) UpdateTotals(ctx context.Context, sale *sales.Sale) error {
	model := models.SaleModelFromDomain(sale)
	result := r.db.WithContext(ctx).
		Model(&models.SaleModel{}).
		Where("id = ?", sale.ID).
		Updates(map[string]interface{}{
			"total_hostings":    model.TotalHostings,
			"total_tickets":     model.TotalTickets,
			"gross_total":       model.GrossTotal,
			"applied_cashback":  model.AppliedCashback,
			"total_discount":    model.TotalDiscount,
			"net_total":         model.NetTotal,
			"seller_commission": model.SellerCommission,
			"agency_commission": model.AgencyCommission,
		})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ReplaceLines deletes every stored line of the sale and inserts the current ones
func (r *GormSaleRepository) ReplaceLines(ctx context.Context, sale *sales.Sale) error {
	model := models.SaleModelFromDomain(sale)
	db := r.db.WithContext(ctx)

	if err := r.deleteLines(db, sale.ID); err != nil {
		return err
	}
	if len(model.Companions) > 0 {
		if err := db.Create(&model.Companions).Error; err != nil {
			return translateError(err)
		}
	}
	if len(model.Hostings) > 0 {
		if err := db.Create(&model.Hostings).Error; err != nil {
			return translateError(err)
		}
	}
	if len(model.Tickets) > 0 {
		if err := db.Create(&model.Tickets).Error; err != nil {
			return translateError(err)
		}
	}
	return nil
}

func (r *GormSaleRepository) deleteLines(db *gorm.DB, saleID uuid.UUID) error {
	for _, line := range []interface{}{&models.SaleCompanionModel{}, &models.SaleHostingModel{}, &models.SaleTicketModel{}} {
		if err := db.Where("sale_id = ?", saleID).Delete(line).Error; err != nil {
			return translateError(err)
		}
	}
	return nil
}

// Delete removes a sale and its lines
func (r *GormSaleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := r.db.WithContext(ctx)
	if err := r.deleteLines(db, id); err != nil {
		return err
	}
	result := db.Delete(&models.SaleModel{}, "id = ?", id)
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Ensure GormSaleRepository implements SaleRepository
var _ sales.SaleRepository = (*GormSaleRepository)(nil)
