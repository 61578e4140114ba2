package sales

import (
	"context"

	"github.com/tourism/backoffice/internal/domain/cashback"
	"github.com/tourism/backoffice/internal/domain/sales"
)

// TransactionScope runs a sale operation as one unit of work.
// All repository operations performed through the provided repositories are
// committed or rolled back together.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	// If the function succeeds, the transaction is committed.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to every repository a sale
// operation touches. All repositories returned share the same transaction.
type TransactionalRepositories interface {
	// SaleRepo returns the sale repository scoped to the current transaction
	SaleRepo() sales.SaleRepository
	// InvoiceRepo returns the invoice repository scoped to the current transaction
	InvoiceRepo() sales.InvoiceRepository
	// CommissionRateRepo returns the commission rate lookup scoped to the current transaction
	CommissionRateRepo() sales.CommissionRateRepository
	// GrantRepo returns the cashback grant repository scoped to the current transaction
	GrantRepo() cashback.GrantRepository
	// CampaignRepo returns the cashback campaign repository scoped to the current transaction
	CampaignRepo() cashback.CampaignRepository
}

// NoOpTransactionScope is a transaction scope that doesn't actually use transactions.
// This is useful for testing with mocked repositories.
type NoOpTransactionScope struct {
	saleRepo           sales.SaleRepository
	invoiceRepo        sales.InvoiceRepository
	commissionRateRepo sales.CommissionRateRepository
	grantRepo          cashback.GrantRepository
	campaignRepo       cashback.CampaignRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(
	saleRepo sales.SaleRepository,
	invoiceRepo sales.InvoiceRepository,
	commissionRateRepo sales.CommissionRateRepository,
	grantRepo cashback.GrantRepository,
	campaignRepo cashback.CampaignRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		saleRepo:           saleRepo,
		invoiceRepo:        invoiceRepo,
		commissionRateRepo: commissionRateRepo,
		grantRepo:          grantRepo,
		campaignRepo:       campaignRepo,
	}
}

// Execute runs the function without a real transaction.
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// SaleRepo returns the sale repository.
func (s *NoOpTransactionScope) SaleRepo() sales.SaleRepository {
	return s.saleRepo
}

// InvoiceRepo returns the invoice repository.
func (s *NoOpTransactionScope) InvoiceRepo() sales.InvoiceRepository {
	return s.invoiceRepo
}

// CommissionRateRepo returns the commission rate repository.
func (s *NoOpTransactionScope) CommissionRateRepo() sales.CommissionRateRepository {
	return s.commissionRateRepo
}

// GrantRepo returns the cashback grant repository.
func (s *NoOpTransactionScope) GrantRepo() cashback.GrantRepository {
	return s.grantRepo
}

// CampaignRepo returns the cashback campaign repository.
func (s *NoOpTransactionScope) CampaignRepo() cashback.CampaignRepository {
	return s.campaignRepo
}

// Ensure NoOpTransactionScope implements both interfaces
var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
