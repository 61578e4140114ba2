package sales

import (
	"time"

	"github.com/google/uuid"
	"github.com/tourism/backoffice/internal/domain/shared"
)

// InvoiceDetails is the issuance and receipt state supplied with a sale
type InvoiceDetails struct {
	Issued          bool
	Number          string
	IssuedAt        *time.Time
	ReceiptIssued   bool
	ReceiptNumber   string
	ReceiptIssuedAt *time.Time
}

// Invoice is the fiscal record kept 1:1 with a sale
type Invoice struct {
	shared.BaseEntity
	SaleID uuid.UUID
	InvoiceDetails
}

// NewInvoice creates the invoice record for a sale
func NewInvoice(saleID uuid.UUID, details InvoiceDetails, now time.Time) (*Invoice, error) {
	if saleID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_SALE", "Invoice must belong to a sale")
	}
	inv := &Invoice{
		BaseEntity: shared.NewBaseEntityAt(now),
		SaleID:     saleID,
	}
	if err := inv.Apply(details, now); err != nil {
		return nil, err
	}
	return inv, nil
}

// Apply overwrites the invoice state. Numbers and dates are dropped when the
// matching document is not issued.
func (i *Invoice) Apply(details InvoiceDetails, now time.Time) error {
	if len(details.Number) > 60 || len(details.ReceiptNumber) > 60 {
		return shared.NewDomainError("INVALID_INPUT", "Invoice and receipt numbers cannot exceed 60 characters")
	}
	if !details.Issued {
		details.Number = ""
		details.IssuedAt = nil
	}
	if !details.ReceiptIssued {
		details.ReceiptNumber = ""
		details.ReceiptIssuedAt = nil
	}
	i.InvoiceDetails = details
	i.Touch(now)
	return nil
}
