package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/tourism/backoffice/internal/domain/sales"
	"github.com/tourism/backoffice/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormInvoiceRepository implements sales.InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// FindBySale finds the invoice of a sale
func (r *GormInvoiceRepository) FindBySale(ctx context.Context, saleID uuid.UUID) (*sales.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).First(&model, "sale_id = ?", saleID).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// Upsert inserts the invoice or overwrites the existing row of the same sale
func (r *GormInvoiceRepository) Upsert(ctx context.Context, invoice *sales.Invoice) error {
	model := &models.InvoiceModel{}
	model.FromDomain(invoice)
	return translateError(r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "sale_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"issued", "number", "issued_at",
				"receipt_issued", "receipt_number", "receipt_issued_at",
				"updated_at",
			}),
		}).
		Create(model).Error)
}

// DeleteBySale removes the invoice of a sale, if any
func (r *GormInvoiceRepository) DeleteBySale(ctx context.Context, saleID uuid.UUID) error {
	return translateError(r.db.WithContext(ctx).Delete(&models.InvoiceModel{}, "sale_id = ?", saleID).Error)
}

// Ensure GormInvoiceRepository implements InvoiceRepository
var _ sales.InvoiceRepository = (*GormInvoiceRepository)(nil)
