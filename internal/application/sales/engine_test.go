package sales

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	appcashback "github.com/tourism/backoffice/internal/application/cashback"
	"github.com/tourism/backoffice/internal/domain/cashback"
	"github.com/tourism/backoffice/internal/domain/sales"
	"github.com/tourism/backoffice/internal/domain/shared"
	"go.uber.org/zap"
)

var testNow = time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)

type engineFixture struct {
	saleRepo     *MockSaleRepository
	invoiceRepo  *MockInvoiceRepository
	rateRepo     *MockCommissionRateRepository
	grantRepo    *MockGrantRepository
	campaignRepo *MockCampaignRepository
	publisher    *MockEventPublisher
	engine       *SaleTransactionEngine
}

func newEngineFixture() *engineFixture {
	f := &engineFixture{
		saleRepo:     new(MockSaleRepository),
		invoiceRepo:  new(MockInvoiceRepository),
		rateRepo:     new(MockCommissionRateRepository),
		grantRepo:    new(MockGrantRepository),
		campaignRepo: new(MockCampaignRepository),
		publisher:    new(MockEventPublisher),
	}
	scope := NewNoOpTransactionScope(f.saleRepo, f.invoiceRepo, f.rateRepo, f.grantRepo, f.campaignRepo)
	lifecycle := appcashback.NewLifecycleManager(f.grantRepo, f.campaignRepo, time.UTC, zap.NewNop())
	f.engine = NewSaleTransactionEngine(scope, lifecycle, EngineConfig{}, zap.NewNop())
	f.engine.SetEventPublisher(f.publisher)
	f.engine.SetClock(func() time.Time { return testNow })
	return f
}

func (f *engineFixture) noCommissionRates() {
	f.rateRepo.On("FindSellerRate", mock.Anything, mock.Anything, mock.Anything).Return(nil, shared.ErrNotFound)
	f.rateRepo.On("FindTourOperatorRate", mock.Anything, mock.Anything).Return(nil, shared.ErrNotFound)
}

func (f *engineFixture) noCampaigns() {
	f.campaignRepo.On("FindRunningAt", mock.Anything, mock.Anything).Return([]cashback.Campaign{}, nil)
}

func (f *engineFixture) acceptPublish() {
	f.publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)
}

func testDetails(clientID uuid.UUID) sales.SaleDetails {
	return sales.SaleDetails{
		ExternalID:     "OP-2201",
		SellerID:       uuid.New(),
		TourOperatorID: uuid.New(),
		ClientID:       clientID,
		PaymentMethod:  sales.PaymentMethodCash,
		SaleDate:       testNow,
		CheckIn:        time.Date(2025, 3, 20, 14, 0, 0, 0, time.UTC),
		CheckOut:       time.Date(2025, 3, 24, 11, 0, 0, 0, time.UTC),
	}
}

func testInput(details sales.SaleDetails, hostingPrice, ticketPrice int64) SaleInput {
	in := SaleInput{Details: details}
	if hostingPrice > 0 {
		in.Hostings = []HostingInput{{HostingID: uuid.New(), Rooms: 1, Price: decimal.NewFromInt(hostingPrice)}}
	}
	if ticketPrice > 0 {
		in.Tickets = []TicketInput{{TicketID: uuid.New(), VisitDate: details.CheckIn, Adults: 2, Price: decimal.NewFromInt(ticketPrice)}}
	}
	return in
}

// storedSale builds a sale as it would be loaded from the database
func storedSale(t *testing.T, details sales.SaleDetails, hostingPrice int64, cashbackApplied int64) *sales.Sale {
	t.Helper()
	sale, err := sales.NewSale(details, testNow.AddDate(0, 0, -1))
	require.NoError(t, err)
	require.NoError(t, sale.ReplaceLines(nil,
		[]sales.HostingLine{{HostingID: uuid.New(), Rooms: 1, Price: decimal.NewFromInt(hostingPrice)}}, nil))
	totals, err := sale.ComputeTotals(decimal.NewFromInt(cashbackApplied))
	require.NoError(t, err)
	sale.ApplyTotals(totals, nil, nil)
	return sale
}

func activeGrant(t *testing.T, amount int64, expiresAt time.Time) cashback.Grant {
	t.Helper()
	g, err := cashback.NewGrant(uuid.New(), uuid.New(), decimal.NewFromInt(amount), expiresAt, testNow.AddDate(0, -1, 0))
	require.NoError(t, err)
	return *g
}

func runningCampaign(t *testing.T, pct int64, anchor cashback.AnchorType) *cashback.Campaign {
	t.Helper()
	c, err := cashback.NewCampaign("Autumn", decimal.NewFromInt(pct), 30, testNow.AddDate(0, 0, -5), testNow.AddDate(0, 0, 5), anchor)
	require.NoError(t, err)
	return c
}

func TestCreateSale_WithoutCashbackOrCampaign(t *testing.T) {
	f := newEngineFixture()
	clientID := uuid.New()
	in := testInput(testDetails(clientID), 150, 50)

	f.grantRepo.On("FindApplicableForClient", mock.Anything, clientID, testNow).Return([]cashback.Grant{}, nil)
	f.rateRepo.On("FindSellerRate", mock.Anything, in.Details.SellerID, in.Details.TourOperatorID).
		Return(&sales.SellerCommissionRate{CashRate: decimal.NewFromInt(10), InstallmentRate: decimal.NewFromInt(5)}, nil)
	f.rateRepo.On("FindTourOperatorRate", mock.Anything, in.Details.TourOperatorID).
		Return(&sales.TourOperatorCommissionRate{HostingCashRate: decimal.NewFromInt(12), TicketCashRate: decimal.NewFromInt(8)}, nil)
	f.saleRepo.On("Create", mock.Anything, mock.AnythingOfType("*sales.Sale")).Return(nil)
	f.noCampaigns()
	f.invoiceRepo.On("Upsert", mock.Anything, mock.AnythingOfType("*sales.Invoice")).Return(nil)
	f.acceptPublish()

	result, err := f.engine.CreateSale(context.Background(), in)
	require.NoError(t, err)

	sale := result.Sale
	assert.True(t, sale.GrossTotal.Equal(decimal.NewFromInt(200)))
	assert.True(t, sale.AppliedCashback.IsZero())
	assert.True(t, sale.NetTotal.Equal(decimal.NewFromInt(200)))
	assert.True(t, sale.SellerCommission.Equal(decimal.NewFromInt(20)))
	assert.True(t, sale.AgencyCommission.Equal(decimal.NewFromInt(22)))
	assert.Equal(t, 1, sale.Version)
	assert.Nil(t, result.Grant)
	assert.Empty(t, result.ConsumedGrants)
	require.NotNil(t, result.Invoice)
	assert.Equal(t, sale.ID, result.Invoice.SaleID)
	assert.Empty(t, sale.PendingEvents())

	f.saleRepo.AssertExpectations(t)
	f.invoiceRepo.AssertExpectations(t)
	f.publisher.AssertNumberOfCalls(t, "Publish", 1)
}

func TestCreateSale_CashbackCappedAtGrossTotal(t *testing.T) {
	f := newEngineFixture()
	clientID := uuid.New()
	in := testInput(testDetails(clientID), 0, 40)
	grant := activeGrant(t, 50, testNow.AddDate(0, 0, 10))

	f.grantRepo.On("FindApplicableForClient", mock.Anything, clientID, testNow).Return([]cashback.Grant{grant}, nil)
	f.grantRepo.On("MarkUsedIfActive", mock.Anything, grant.ID, mock.Anything, testNow).Return(true, nil)
	f.noCommissionRates()
	f.saleRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.saleRepo.On("UpdateTotals", mock.Anything, mock.MatchedBy(func(s *sales.Sale) bool {
		return s.AppliedCashback.Equal(decimal.NewFromInt(40)) && s.NetTotal.IsZero()
	})).Return(nil)
	f.noCampaigns()
	f.invoiceRepo.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	f.acceptPublish()

	result, err := f.engine.CreateSale(context.Background(), in)
	require.NoError(t, err)

	assert.True(t, result.Sale.AppliedCashback.Equal(decimal.NewFromInt(40)))
	assert.True(t, result.Sale.NetTotal.IsZero())
	require.Len(t, result.ConsumedGrants, 1)
	assert.Equal(t, cashback.GrantStatusUsed, result.ConsumedGrants[0].Status)
	assert.Equal(t, result.Sale.ID, *result.ConsumedGrants[0].ConsumedBySaleID)
	assert.True(t, result.ConsumedGrants[0].Amount.Equal(decimal.NewFromInt(50)), "grant is consumed whole")
	f.grantRepo.AssertExpectations(t)
	f.saleRepo.AssertExpectations(t)
}

func TestCreateSale_SkipsGrantClaimedByConcurrentSale(t *testing.T) {
	f := newEngineFixture()
	clientID := uuid.New()
	in := testInput(testDetails(clientID), 200, 0)
	lost := activeGrant(t, 30, testNow.AddDate(0, 0, 2))
	won := activeGrant(t, 20, testNow.AddDate(0, 0, 9))

	f.grantRepo.On("FindApplicableForClient", mock.Anything, clientID, testNow).Return([]cashback.Grant{lost, won}, nil)
	f.grantRepo.On("MarkUsedIfActive", mock.Anything, lost.ID, mock.Anything, testNow).Return(false, nil)
	f.grantRepo.On("MarkUsedIfActive", mock.Anything, won.ID, mock.Anything, testNow).Return(true, nil)
	f.noCommissionRates()
	f.saleRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.saleRepo.On("UpdateTotals", mock.Anything, mock.Anything).Return(nil)
	f.noCampaigns()
	f.invoiceRepo.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	f.acceptPublish()

	result, err := f.engine.CreateSale(context.Background(), in)
	require.NoError(t, err)

	require.Len(t, result.ConsumedGrants, 1)
	assert.Equal(t, won.ID, result.ConsumedGrants[0].ID)
	assert.True(t, result.Sale.AppliedCashback.Equal(decimal.NewFromInt(20)))
	assert.True(t, result.Sale.NetTotal.Equal(decimal.NewFromInt(180)))
}

func TestCreateSale_WritesSaleBeforeClaimingGrants(t *testing.T) {
	f := newEngineFixture()
	clientID := uuid.New()
	in := testInput(testDetails(clientID), 100, 0)
	grant := activeGrant(t, 30, testNow.AddDate(0, 0, 4))

	var calls []string
	record := func(name string) func(mock.Arguments) {
		return func(mock.Arguments) { calls = append(calls, name) }
	}
	f.grantRepo.On("FindApplicableForClient", mock.Anything, clientID, testNow).
		Run(record("FindApplicableForClient")).Return([]cashback.Grant{grant}, nil)
	f.grantRepo.On("MarkUsedIfActive", mock.Anything, grant.ID, mock.Anything, testNow).
		Run(record("MarkUsedIfActive")).Return(true, nil)
	f.noCommissionRates()
	f.saleRepo.On("Create", mock.Anything, mock.Anything).Run(record("Create")).Return(nil)
	f.saleRepo.On("UpdateTotals", mock.Anything, mock.Anything).Run(record("UpdateTotals")).Return(nil)
	f.noCampaigns()
	f.invoiceRepo.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	f.acceptPublish()

	result, err := f.engine.CreateSale(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, []string{"Create", "FindApplicableForClient", "MarkUsedIfActive", "UpdateTotals"}, calls)
	assert.True(t, result.Sale.NetTotal.Equal(decimal.NewFromInt(70)))
	assert.Equal(t, 1, result.Sale.Version)
}

func TestCreateSale_NoCashbackSkipsTotalsRewrite(t *testing.T) {
	f := newEngineFixture()
	clientID := uuid.New()

	f.grantRepo.On("FindApplicableForClient", mock.Anything, clientID, testNow).Return([]cashback.Grant{}, nil)
	f.noCommissionRates()
	f.saleRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.noCampaigns()
	f.invoiceRepo.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	f.acceptPublish()

	_, err := f.engine.CreateSale(context.Background(), testInput(testDetails(clientID), 100, 0))
	require.NoError(t, err)
	f.saleRepo.AssertNotCalled(t, "UpdateTotals", mock.Anything, mock.Anything)
}

func TestCreateSale_IssuesGrantUnderBestRunningCampaign(t *testing.T) {
	f := newEngineFixture()
	clientID := uuid.New()
	in := testInput(testDetails(clientID), 150, 50)
	low := runningCampaign(t, 5, cashback.AnchorPurchase)
	best := runningCampaign(t, 10, cashback.AnchorCheckIn)

	f.grantRepo.On("FindApplicableForClient", mock.Anything, clientID, testNow).Return([]cashback.Grant{}, nil)
	f.noCommissionRates()
	f.saleRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.campaignRepo.On("FindRunningAt", mock.Anything, testNow).Return([]cashback.Campaign{*low, *best}, nil)
	f.grantRepo.On("Create", mock.Anything, mock.MatchedBy(func(g *cashback.Grant) bool {
		return g.CampaignID == best.ID && g.Amount.Equal(decimal.NewFromInt(20))
	})).Return(nil)
	f.invoiceRepo.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	f.publisher.On("Publish", mock.Anything, mock.MatchedBy(func(events []shared.DomainEvent) bool {
		return len(events) == 2 &&
			events[0].EventType() == sales.EventTypeSaleRecorded &&
			events[1].EventType() == cashback.EventTypeGrantIssued
	})).Return(nil)

	result, err := f.engine.CreateSale(context.Background(), in)
	require.NoError(t, err)

	require.NotNil(t, result.Grant)
	assert.Equal(t, cashback.GrantStatusActive, result.Grant.Status)
	assert.Equal(t, result.Sale.ID, result.Grant.SaleID)
	expected := time.Date(2025, 4, 19, 23, 59, 59, int(999*time.Millisecond), time.UTC)
	assert.True(t, expected.Equal(result.Grant.ExpiresAt), "got %s", result.Grant.ExpiresAt)
	f.grantRepo.AssertExpectations(t)
	f.publisher.AssertExpectations(t)
}

func TestCreateSale_RejectsInvalidInputBeforeTransaction(t *testing.T) {
	f := newEngineFixture()
	details := testDetails(uuid.New())
	details.ExternalID = ""

	_, err := f.engine.CreateSale(context.Background(), testInput(details, 100, 0))
	require.Error(t, err)

	var domainErr *shared.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "MISSING_FIELD", domainErr.Code)
	f.grantRepo.AssertNotCalled(t, "FindApplicableForClient", mock.Anything, mock.Anything, mock.Anything)
	f.saleRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateSale_PersistenceFailureRollsBack(t *testing.T) {
	f := newEngineFixture()
	clientID := uuid.New()

	f.grantRepo.On("FindApplicableForClient", mock.Anything, clientID, testNow).Return([]cashback.Grant{}, nil)
	f.noCommissionRates()
	f.saleRepo.On("Create", mock.Anything, mock.Anything).Return(errors.New("connection reset by peer"))

	_, err := f.engine.CreateSale(context.Background(), testInput(testDetails(clientID), 100, 0))
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrTransactionFailed)
	f.invoiceRepo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestCreateSale_CommissionLookupFailureAborts(t *testing.T) {
	f := newEngineFixture()
	clientID := uuid.New()

	f.grantRepo.On("FindApplicableForClient", mock.Anything, clientID, testNow).Return([]cashback.Grant{}, nil)
	f.rateRepo.On("FindSellerRate", mock.Anything, mock.Anything, mock.Anything).Return(nil, context.DeadlineExceeded)

	_, err := f.engine.CreateSale(context.Background(), testInput(testDetails(clientID), 100, 0))
	assert.ErrorIs(t, err, shared.ErrTransactionFailed)
	f.saleRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestUpdateSale_RejectsCancelledSale(t *testing.T) {
	f := newEngineFixture()
	details := testDetails(uuid.New())
	existing := storedSale(t, details, 100, 0)
	existing.Cancelled = true

	f.saleRepo.On("FindByIDForUpdate", mock.Anything, existing.ID).Return(existing, nil)

	_, err := f.engine.UpdateSale(context.Background(), existing.ID, testInput(details, 120, 0))
	assert.ErrorIs(t, err, shared.ErrInvalidState)
	f.saleRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestUpdateSale_NotFound(t *testing.T) {
	f := newEngineFixture()
	id := uuid.New()
	f.saleRepo.On("FindByIDForUpdate", mock.Anything, id).Return(nil, shared.ErrNotFound)

	_, err := f.engine.UpdateSale(context.Background(), id, testInput(testDetails(uuid.New()), 120, 0))
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestUpdateSale_ShrinksSettledCashbackToNewCeiling(t *testing.T) {
	f := newEngineFixture()
	details := testDetails(uuid.New())
	existing := storedSale(t, details, 200, 100)
	used := activeGrant(t, 100, testNow.AddDate(0, 0, 20))
	require.NoError(t, used.MarkUsed(existing.ID, testNow.AddDate(0, 0, -1)))

	f.saleRepo.On("FindByIDForUpdate", mock.Anything, existing.ID).Return(existing, nil)
	f.grantRepo.On("FindConsumedBySale", mock.Anything, existing.ID).Return([]cashback.Grant{used}, nil)
	f.grantRepo.On("UpdateAmount", mock.Anything, used.ID, mock.MatchedBy(func(d decimal.Decimal) bool {
		return d.Equal(decimal.NewFromInt(60))
	}), testNow).Return(nil)
	f.noCommissionRates()
	f.saleRepo.On("Update", mock.Anything, existing).Return(nil)
	f.saleRepo.On("ReplaceLines", mock.Anything, existing).Return(nil)
	f.grantRepo.On("FindLatestEarnedBySale", mock.Anything, existing.ID).Return(nil, nil)
	f.noCampaigns()
	f.invoiceRepo.On("FindBySale", mock.Anything, existing.ID).Return(nil, shared.ErrNotFound)
	f.invoiceRepo.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	f.acceptPublish()

	result, err := f.engine.UpdateSale(context.Background(), existing.ID, testInput(details, 60, 0))
	require.NoError(t, err)

	assert.Equal(t, 2, result.Sale.Version)
	assert.True(t, result.Sale.AppliedCashback.Equal(decimal.NewFromInt(60)))
	assert.True(t, result.Sale.NetTotal.IsZero())
	require.Len(t, result.ConsumedGrants, 1)
	assert.True(t, result.ConsumedGrants[0].Amount.Equal(decimal.NewFromInt(60)))
	assert.Equal(t, cashback.GrantStatusUsed, result.ConsumedGrants[0].Status)
	f.grantRepo.AssertExpectations(t)
}

func TestUpdateSale_RemovesGrantOfLapsedCampaign(t *testing.T) {
	f := newEngineFixture()
	details := testDetails(uuid.New())
	existing := storedSale(t, details, 200, 0)
	lapsed, err := cashback.NewCampaign("Summer", decimal.NewFromInt(10), 30,
		testNow.AddDate(0, -2, 0), testNow.AddDate(0, 0, -1), cashback.AnchorPurchase)
	require.NoError(t, err)
	earned, err := cashback.NewGrant(existing.ID, lapsed.ID, decimal.NewFromInt(20), testNow.AddDate(0, 1, 0), testNow.AddDate(0, 0, -3))
	require.NoError(t, err)

	f.saleRepo.On("FindByIDForUpdate", mock.Anything, existing.ID).Return(existing, nil)
	f.grantRepo.On("FindConsumedBySale", mock.Anything, existing.ID).Return([]cashback.Grant{}, nil)
	f.noCommissionRates()
	f.saleRepo.On("Update", mock.Anything, existing).Return(nil)
	f.saleRepo.On("ReplaceLines", mock.Anything, existing).Return(nil)
	f.grantRepo.On("FindLatestEarnedBySale", mock.Anything, existing.ID).Return(earned, nil)
	f.campaignRepo.On("FindByID", mock.Anything, lapsed.ID).Return(lapsed, nil)
	f.grantRepo.On("DeleteActive", mock.Anything, earned.ID).Return(true, nil)
	f.noCampaigns()
	f.invoiceRepo.On("FindBySale", mock.Anything, existing.ID).Return(&sales.Invoice{SaleID: existing.ID}, nil)
	f.invoiceRepo.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	f.acceptPublish()

	result, err := f.engine.UpdateSale(context.Background(), existing.ID, testInput(details, 250, 0))
	require.NoError(t, err)

	assert.Nil(t, result.Grant)
	assert.True(t, result.Sale.NetTotal.Equal(decimal.NewFromInt(250)))
	f.grantRepo.AssertCalled(t, "DeleteActive", mock.Anything, earned.ID)
	f.grantRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestUpdateSale_ReissuesGrantWhenNetTotalChanges(t *testing.T) {
	f := newEngineFixture()
	details := testDetails(uuid.New())
	existing := storedSale(t, details, 200, 0)
	campaign := runningCampaign(t, 10, cashback.AnchorPurchase)
	earned, err := cashback.NewGrant(existing.ID, campaign.ID, decimal.NewFromInt(20), testNow.AddDate(0, 1, 0), testNow.AddDate(0, 0, -1))
	require.NoError(t, err)

	f.saleRepo.On("FindByIDForUpdate", mock.Anything, existing.ID).Return(existing, nil)
	f.grantRepo.On("FindConsumedBySale", mock.Anything, existing.ID).Return([]cashback.Grant{}, nil)
	f.noCommissionRates()
	f.saleRepo.On("Update", mock.Anything, existing).Return(nil)
	f.saleRepo.On("ReplaceLines", mock.Anything, existing).Return(nil)
	f.grantRepo.On("FindLatestEarnedBySale", mock.Anything, existing.ID).Return(earned, nil)
	f.campaignRepo.On("FindByID", mock.Anything, campaign.ID).Return(campaign, nil)
	f.campaignRepo.On("FindRunningAt", mock.Anything, testNow).Return([]cashback.Campaign{*campaign}, nil)
	f.grantRepo.On("DeleteActive", mock.Anything, earned.ID).Return(true, nil)
	f.grantRepo.On("Create", mock.Anything, mock.MatchedBy(func(g *cashback.Grant) bool {
		return g.Amount.Equal(decimal.NewFromInt(30))
	})).Return(nil)
	f.invoiceRepo.On("FindBySale", mock.Anything, existing.ID).Return(nil, shared.ErrNotFound)
	f.invoiceRepo.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	f.acceptPublish()

	result, err := f.engine.UpdateSale(context.Background(), existing.ID, testInput(details, 300, 0))
	require.NoError(t, err)

	require.NotNil(t, result.Grant)
	assert.NotEqual(t, earned.ID, result.Grant.ID)
	assert.True(t, result.Grant.Amount.Equal(decimal.NewFromInt(30)))
	f.grantRepo.AssertExpectations(t)
}

func TestUpdateSale_KeepsGrantWhenNothingChanged(t *testing.T) {
	f := newEngineFixture()
	details := testDetails(uuid.New())
	existing := storedSale(t, details, 200, 0)
	campaign := runningCampaign(t, 10, cashback.AnchorPurchase)
	earned, err := cashback.NewGrant(existing.ID, campaign.ID, decimal.NewFromInt(20), testNow.AddDate(0, 1, 0), testNow.AddDate(0, 0, -1))
	require.NoError(t, err)

	f.saleRepo.On("FindByIDForUpdate", mock.Anything, existing.ID).Return(existing, nil)
	f.grantRepo.On("FindConsumedBySale", mock.Anything, existing.ID).Return([]cashback.Grant{}, nil)
	f.noCommissionRates()
	f.saleRepo.On("Update", mock.Anything, existing).Return(nil)
	f.saleRepo.On("ReplaceLines", mock.Anything, existing).Return(nil)
	f.grantRepo.On("FindLatestEarnedBySale", mock.Anything, existing.ID).Return(earned, nil)
	f.campaignRepo.On("FindByID", mock.Anything, campaign.ID).Return(campaign, nil)
	f.campaignRepo.On("FindRunningAt", mock.Anything, testNow).Return([]cashback.Campaign{*campaign}, nil)
	f.invoiceRepo.On("FindBySale", mock.Anything, existing.ID).Return(nil, shared.ErrNotFound)
	f.invoiceRepo.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	f.acceptPublish()

	in := testInput(details, 200, 0)
	in.Details.Note = "late check-out requested"
	result, err := f.engine.UpdateSale(context.Background(), existing.ID, in)
	require.NoError(t, err)

	assert.Equal(t, earned.ID, result.Grant.ID)
	f.grantRepo.AssertNotCalled(t, "DeleteActive", mock.Anything, mock.Anything)
	f.grantRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestUpdateSale_SettledGrantIsNotReissued(t *testing.T) {
	f := newEngineFixture()
	details := testDetails(uuid.New())
	existing := storedSale(t, details, 200, 0)
	earned, err := cashback.NewGrant(existing.ID, uuid.New(), decimal.NewFromInt(20), testNow.AddDate(0, 1, 0), testNow.AddDate(0, 0, -1))
	require.NoError(t, err)
	require.NoError(t, earned.MarkUsed(uuid.New(), testNow.AddDate(0, 0, -1)))

	f.saleRepo.On("FindByIDForUpdate", mock.Anything, existing.ID).Return(existing, nil)
	f.grantRepo.On("FindConsumedBySale", mock.Anything, existing.ID).Return([]cashback.Grant{}, nil)
	f.noCommissionRates()
	f.saleRepo.On("Update", mock.Anything, existing).Return(nil)
	f.saleRepo.On("ReplaceLines", mock.Anything, existing).Return(nil)
	f.grantRepo.On("FindLatestEarnedBySale", mock.Anything, existing.ID).Return(earned, nil)
	f.invoiceRepo.On("FindBySale", mock.Anything, existing.ID).Return(nil, shared.ErrNotFound)
	f.invoiceRepo.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	f.acceptPublish()

	result, err := f.engine.UpdateSale(context.Background(), existing.ID, testInput(details, 500, 0))
	require.NoError(t, err)

	assert.Equal(t, earned.ID, result.Grant.ID)
	f.campaignRepo.AssertNotCalled(t, "FindRunningAt", mock.Anything, mock.Anything)
	f.grantRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestUpdateSale_VersionConflictIsTransactionFailed(t *testing.T) {
	f := newEngineFixture()
	details := testDetails(uuid.New())
	existing := storedSale(t, details, 200, 0)

	f.saleRepo.On("FindByIDForUpdate", mock.Anything, existing.ID).Return(existing, nil)
	f.grantRepo.On("FindConsumedBySale", mock.Anything, existing.ID).Return([]cashback.Grant{}, nil)
	f.noCommissionRates()
	f.saleRepo.On("Update", mock.Anything, existing).Return(shared.ErrConcurrencyConflict)

	_, err := f.engine.UpdateSale(context.Background(), existing.ID, testInput(details, 210, 0))
	assert.ErrorIs(t, err, shared.ErrTransactionFailed)
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestCancelSale_IsIdempotent(t *testing.T) {
	f := newEngineFixture()
	existing := storedSale(t, testDetails(uuid.New()), 200, 0)

	f.saleRepo.On("FindByIDForUpdate", mock.Anything, existing.ID).Return(existing, nil)
	f.saleRepo.On("Update", mock.Anything, existing).Return(nil).Once()
	f.publisher.On("Publish", mock.Anything, mock.MatchedBy(func(events []shared.DomainEvent) bool {
		return len(events) == 1 && events[0].EventType() == sales.EventTypeSaleCancelled
	})).Return(nil).Once()

	sale, err := f.engine.CancelSale(context.Background(), existing.ID)
	require.NoError(t, err)
	assert.True(t, sale.Cancelled)
	assert.Equal(t, 2, sale.Version)

	sale, err = f.engine.CancelSale(context.Background(), existing.ID)
	require.NoError(t, err)
	assert.True(t, sale.Cancelled)
	assert.Equal(t, 2, sale.Version)

	f.saleRepo.AssertNumberOfCalls(t, "Update", 1)
	f.publisher.AssertExpectations(t)
}

func TestDeleteSale_RefusedWhenSaleConsumedCashback(t *testing.T) {
	f := newEngineFixture()
	existing := storedSale(t, testDetails(uuid.New()), 200, 20)
	used := activeGrant(t, 20, testNow.AddDate(0, 0, 20))
	require.NoError(t, used.MarkUsed(existing.ID, testNow))

	f.saleRepo.On("FindByIDForUpdate", mock.Anything, existing.ID).Return(existing, nil)
	f.grantRepo.On("FindConsumedBySale", mock.Anything, existing.ID).Return([]cashback.Grant{used}, nil)

	err := f.engine.DeleteSale(context.Background(), existing.ID)
	assert.ErrorIs(t, err, shared.ErrIntegrityViolation)
	f.saleRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestDeleteSale_RefusedWhenEarnedGrantWasSpent(t *testing.T) {
	f := newEngineFixture()
	existing := storedSale(t, testDetails(uuid.New()), 200, 0)
	earned, err := cashback.NewGrant(existing.ID, uuid.New(), decimal.NewFromInt(20), testNow.AddDate(0, 1, 0), testNow)
	require.NoError(t, err)
	require.NoError(t, earned.MarkUsed(uuid.New(), testNow))

	f.saleRepo.On("FindByIDForUpdate", mock.Anything, existing.ID).Return(existing, nil)
	f.grantRepo.On("FindConsumedBySale", mock.Anything, existing.ID).Return([]cashback.Grant{}, nil)
	f.grantRepo.On("FindEarnedBySale", mock.Anything, existing.ID).Return([]cashback.Grant{*earned}, nil)

	err = f.engine.DeleteSale(context.Background(), existing.ID)
	assert.ErrorIs(t, err, shared.ErrIntegrityViolation)
	f.grantRepo.AssertNotCalled(t, "DeleteBySale", mock.Anything, mock.Anything)
}

func TestDeleteSale_RemovesSaleWithActiveGrantAndInvoice(t *testing.T) {
	f := newEngineFixture()
	existing := storedSale(t, testDetails(uuid.New()), 200, 0)
	earned, err := cashback.NewGrant(existing.ID, uuid.New(), decimal.NewFromInt(20), testNow.AddDate(0, 1, 0), testNow)
	require.NoError(t, err)

	f.saleRepo.On("FindByIDForUpdate", mock.Anything, existing.ID).Return(existing, nil)
	f.grantRepo.On("FindConsumedBySale", mock.Anything, existing.ID).Return([]cashback.Grant{}, nil)
	f.grantRepo.On("FindEarnedBySale", mock.Anything, existing.ID).Return([]cashback.Grant{*earned}, nil)
	f.grantRepo.On("DeleteActive", mock.Anything, earned.ID).Return(true, nil)
	f.grantRepo.On("DeleteBySale", mock.Anything, existing.ID).Return(nil)
	f.invoiceRepo.On("DeleteBySale", mock.Anything, existing.ID).Return(nil)
	f.saleRepo.On("Delete", mock.Anything, existing.ID).Return(nil)
	f.publisher.On("Publish", mock.Anything, mock.MatchedBy(func(events []shared.DomainEvent) bool {
		return len(events) == 1 && events[0].EventType() == sales.EventTypeSaleDeleted
	})).Return(nil)

	require.NoError(t, f.engine.DeleteSale(context.Background(), existing.ID))
	f.saleRepo.AssertExpectations(t)
	f.grantRepo.AssertExpectations(t)
	f.invoiceRepo.AssertExpectations(t)
	f.publisher.AssertExpectations(t)
}

func TestCreateSale_PublishFailureDoesNotFailOperation(t *testing.T) {
	f := newEngineFixture()
	clientID := uuid.New()

	f.grantRepo.On("FindApplicableForClient", mock.Anything, clientID, testNow).Return([]cashback.Grant{}, nil)
	f.noCommissionRates()
	f.saleRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.noCampaigns()
	f.invoiceRepo.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	f.publisher.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker unavailable"))

	result, err := f.engine.CreateSale(context.Background(), testInput(testDetails(clientID), 100, 0))
	require.NoError(t, err)
	assert.NotNil(t, result.Sale)
}
