package sales

import (
	"context"

	"github.com/google/uuid"
)

// SaleRepository defines the interface for sale persistence
type SaleRepository interface {
	// FindByID finds a sale with its companions, hosting and ticket lines
	FindByID(ctx context.Context, id uuid.UUID) (*Sale, error)

	// FindByIDForUpdate is FindByID holding a row lock on the sale until the
	// enclosing transaction ends
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Sale, error)

	// Create persists a new sale with its lines
	Create(ctx context.Context, sale *Sale) error

	// Update persists header fields and totals of an existing sale. The stored
	// version must be sale.Version-1, otherwise ErrConcurrencyConflict is returned.
	Update(ctx context.Context, sale *Sale) error

	// UpdateTotals rewrites the computed totals and commissions of a stored
	// sale. Header fields and the version are left as they are.
	UpdateTotals(ctx context.Context, sale *Sale) error

	// ReplaceLines deletes every stored line of the sale and inserts the current ones
	ReplaceLines(ctx context.Context, sale *Sale) error

	// Delete removes a sale and its lines
	Delete(ctx context.Context, id uuid.UUID) error
}

// InvoiceRepository defines the interface for invoice persistence
type InvoiceRepository interface {
	// FindBySale finds the invoice of a sale
	FindBySale(ctx context.Context, saleID uuid.UUID) (*Invoice, error)

	// Upsert creates the invoice or updates the existing one of the same sale
	Upsert(ctx context.Context, invoice *Invoice) error

	// DeleteBySale removes the invoice of a sale, if any
	DeleteBySale(ctx context.Context, saleID uuid.UUID) error
}

// CommissionRateRepository looks up the static commission tables
type CommissionRateRepository interface {
	// FindSellerRate returns the rate for a (seller, tour operator) pair
	FindSellerRate(ctx context.Context, sellerID, tourOperatorID uuid.UUID) (*SellerCommissionRate, error)

	// FindTourOperatorRate returns the rates a tour operator pays the agency
	FindTourOperatorRate(ctx context.Context, tourOperatorID uuid.UUID) (*TourOperatorCommissionRate, error)
}
