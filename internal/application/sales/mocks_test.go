package sales

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/tourism/backoffice/internal/domain/cashback"
	"github.com/tourism/backoffice/internal/domain/sales"
	"github.com/tourism/backoffice/internal/domain/shared"
)

// MockSaleRepository is a mock implementation of SaleRepository
type MockSaleRepository struct {
	mock.Mock
}

func (m *MockSaleRepository) FindByID(ctx context.Context, id uuid.UUID) (*sales.Sale, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sales.Sale), args.Error(1)
}

func (m *MockSaleRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*sales.Sale, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sales.Sale), args.Error(1)
}

func (m *MockSaleRepository) Create(ctx context.Context, sale *sales.Sale) error {
	args := m.Called(ctx, sale)
	return args.Error(0)
}

func (m *MockSaleRepository) Update(ctx context.Context, sale *sales.Sale) error {
	args := m.Called(ctx, sale)
	return args.Error(0)
}

func (m *MockSaleRepository) UpdateTotals(ctx context.Context, sale *sales.Sale) error {
	args := m.Called(ctx, sale)
	return args.Error(0)
}

func (m *MockSaleRepository) ReplaceLines(ctx context.Context, sale *sales.Sale) error {
	args := m.Called(ctx, sale)
	return args.Error(0)
}

func (m *MockSaleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockInvoiceRepository is a mock implementation of InvoiceRepository
type MockInvoiceRepository struct {
	mock.Mock
}

func (m *MockInvoiceRepository) FindBySale(ctx context.Context, saleID uuid.UUID) (*sales.Invoice, error) {
	args := m.Called(ctx, saleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sales.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) Upsert(ctx context.Context, invoice *sales.Invoice) error {
	args := m.Called(ctx, invoice)
	return args.Error(0)
}

func (m *MockInvoiceRepository) DeleteBySale(ctx context.Context, saleID uuid.UUID) error {
	args := m.Called(ctx, saleID)
	return args.Error(0)
}

// MockCommissionRateRepository is a mock implementation of CommissionRateRepository
type MockCommissionRateRepository struct {
	mock.Mock
}

func (m *MockCommissionRateRepository) FindSellerRate(ctx context.Context, sellerID, tourOperatorID uuid.UUID) (*sales.SellerCommissionRate, error) {
	args := m.Called(ctx, sellerID, tourOperatorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sales.SellerCommissionRate), args.Error(1)
}

func (m *MockCommissionRateRepository) FindTourOperatorRate(ctx context.Context, tourOperatorID uuid.UUID) (*sales.TourOperatorCommissionRate, error) {
	args := m.Called(ctx, tourOperatorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sales.TourOperatorCommissionRate), args.Error(1)
}

// MockGrantRepository is a mock implementation of GrantRepository
type MockGrantRepository struct {
	mock.Mock
}

func (m *MockGrantRepository) FindByID(ctx context.Context, id uuid.UUID) (*cashback.Grant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cashback.Grant), args.Error(1)
}

func (m *MockGrantRepository) FindApplicableForClient(ctx context.Context, clientID uuid.UUID, now time.Time) ([]cashback.Grant, error) {
	args := m.Called(ctx, clientID, now)
	return args.Get(0).([]cashback.Grant), args.Error(1)
}

func (m *MockGrantRepository) FindConsumedBySale(ctx context.Context, saleID uuid.UUID) ([]cashback.Grant, error) {
	args := m.Called(ctx, saleID)
	return args.Get(0).([]cashback.Grant), args.Error(1)
}

func (m *MockGrantRepository) FindLatestEarnedBySale(ctx context.Context, saleID uuid.UUID) (*cashback.Grant, error) {
	args := m.Called(ctx, saleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cashback.Grant), args.Error(1)
}

func (m *MockGrantRepository) FindEarnedBySale(ctx context.Context, saleID uuid.UUID) ([]cashback.Grant, error) {
	args := m.Called(ctx, saleID)
	return args.Get(0).([]cashback.Grant), args.Error(1)
}

func (m *MockGrantRepository) Create(ctx context.Context, grant *cashback.Grant) error {
	args := m.Called(ctx, grant)
	return args.Error(0)
}

func (m *MockGrantRepository) UpdateAmount(ctx context.Context, id uuid.UUID, amount decimal.Decimal, at time.Time) error {
	args := m.Called(ctx, id, amount, at)
	return args.Error(0)
}

func (m *MockGrantRepository) DeleteActive(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockGrantRepository) DeleteBySale(ctx context.Context, saleID uuid.UUID) error {
	args := m.Called(ctx, saleID)
	return args.Error(0)
}

func (m *MockGrantRepository) MarkUsedIfActive(ctx context.Context, id, consumingSaleID uuid.UUID, at time.Time) (bool, error) {
	args := m.Called(ctx, id, consumingSaleID, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockGrantRepository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

// MockCampaignRepository is a mock implementation of CampaignRepository
type MockCampaignRepository struct {
	mock.Mock
}

func (m *MockCampaignRepository) FindByID(ctx context.Context, id uuid.UUID) (*cashback.Campaign, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cashback.Campaign), args.Error(1)
}

func (m *MockCampaignRepository) FindRunningAt(ctx context.Context, now time.Time) ([]cashback.Campaign, error) {
	args := m.Called(ctx, now)
	return args.Get(0).([]cashback.Campaign), args.Error(1)
}

func (m *MockCampaignRepository) Save(ctx context.Context, campaign *cashback.Campaign) error {
	args := m.Called(ctx, campaign)
	return args.Error(0)
}

// MockEventPublisher records published events
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}
