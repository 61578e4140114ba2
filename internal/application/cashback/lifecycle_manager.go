package cashback

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tourism/backoffice/internal/domain/cashback"
	"github.com/tourism/backoffice/internal/domain/sales"
	"github.com/tourism/backoffice/internal/domain/shared"
	"github.com/tourism/backoffice/internal/infrastructure/logger"
	"github.com/tourism/backoffice/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// ConsumeResult describes the grants a sale claimed
type ConsumeResult struct {
	Grants  []cashback.Grant
	Applied decimal.Decimal
	// LostRaces counts candidates another writer settled or expired first
	LostRaces int
}

// GrantIDs returns the ids of the claimed grants
func (r *ConsumeResult) GrantIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(r.Grants))
	for i, g := range r.Grants {
		ids[i] = g.ID
	}
	return ids
}

// LifecycleManager governs cashback grants: lookup, settlement, issuance and expiry.
// Every transition out of ACTIVE is a status-guarded update, so settlement and
// expiry racing on the same grant resolve to whichever commits first.
type LifecycleManager struct {
	grantRepo      cashback.GrantRepository
	campaignRepo   cashback.CampaignRepository
	location       *time.Location
	logger         *zap.Logger
	metrics        *telemetry.SaleMetrics
	eventPublisher shared.EventPublisher
}

// NewLifecycleManager creates a new LifecycleManager.
// location defines calendar days for grant expiry.
func NewLifecycleManager(
	grantRepo cashback.GrantRepository,
	campaignRepo cashback.CampaignRepository,
	location *time.Location,
	logger *zap.Logger,
) *LifecycleManager {
	if location == nil {
		location = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LifecycleManager{
		grantRepo:    grantRepo,
		campaignRepo: campaignRepo,
		location:     location,
		logger:       logger,
	}
}

func (m *LifecycleManager) log(ctx context.Context) *logger.ContextLogger {
	return logger.WithLogger(ctx, m.logger)
}

// SetMetrics sets the metrics recorder
func (m *LifecycleManager) SetMetrics(metrics *telemetry.SaleMetrics) {
	m.metrics = metrics
}

// SetEventPublisher sets the event publisher used after standalone operations
func (m *LifecycleManager) SetEventPublisher(publisher shared.EventPublisher) {
	m.eventPublisher = publisher
}

// Location returns the calendar location used for expiry computation
func (m *LifecycleManager) Location() *time.Location {
	return m.location
}

// WithRepositories returns a copy bound to the given repositories, typically
// the ones of an open transaction
func (m *LifecycleManager) WithRepositories(grantRepo cashback.GrantRepository, campaignRepo cashback.CampaignRepository) *LifecycleManager {
	clone := *m
	clone.grantRepo = grantRepo
	clone.campaignRepo = campaignRepo
	return &clone
}

// FindApplicableGrants returns the client's spendable grants, oldest expiry first
func (m *LifecycleManager) FindApplicableGrants(ctx context.Context, clientID uuid.UUID, now time.Time) ([]cashback.Grant, error) {
	if clientID == uuid.Nil {
		return nil, shared.NewDomainError("MISSING_FIELD", "Client is required")
	}
	return m.grantRepo.FindApplicableForClient(ctx, clientID, now)
}

// SettleGrants moves the given grants from ACTIVE to USED on behalf of the
// consuming sale. Grants that are no longer ACTIVE are left untouched, so
// repeating the call is a no-op. Returns the ids that actually transitioned.
func (m *LifecycleManager) SettleGrants(ctx context.Context, grantIDs []uuid.UUID, consumingSaleID uuid.UUID, now time.Time) ([]uuid.UUID, error) {
	settled := make([]uuid.UUID, 0, len(grantIDs))
	for _, id := range grantIDs {
		ok, err := m.grantRepo.MarkUsedIfActive(ctx, id, consumingSaleID, now)
		if err != nil {
			return nil, err
		}
		if ok {
			settled = append(settled, id)
		}
	}
	return settled, nil
}

// ConsumeForSale claims the client's grants oldest expiry first until their
// sum reaches limit. Grants are consumed whole. A candidate lost to a
// concurrent settlement or expiry is skipped and the next one is tried.
func (m *LifecycleManager) ConsumeForSale(ctx context.Context, clientID, saleID uuid.UUID, limit decimal.Decimal, now time.Time) (*ConsumeResult, error) {
	result := &ConsumeResult{Applied: decimal.Zero}
	if !limit.IsPositive() {
		return result, nil
	}

	remaining, err := m.FindApplicableGrants(ctx, clientID, now)
	if err != nil {
		return nil, err
	}

	claimedSum := decimal.Zero
	for len(remaining) > 0 && claimedSum.LessThan(limit) {
		selected, _ := cashback.SelectGrantsToConsume(remaining, limit.Sub(claimedSum))
		if len(selected) == 0 {
			break
		}
		remaining = remaining[len(selected):]

		for _, g := range selected {
			ok, err := m.grantRepo.MarkUsedIfActive(ctx, g.ID, saleID, now)
			if err != nil {
				return nil, err
			}
			if !ok {
				result.LostRaces++
				m.log(ctx).Info("Cashback grant claimed by another writer, skipping",
					zap.String("grant_id", g.ID.String()),
					zap.String("sale_id", saleID.String()))
				continue
			}
			if err := g.MarkUsed(saleID, now); err != nil {
				return nil, err
			}
			result.Grants = append(result.Grants, g)
			claimedSum = claimedSum.Add(g.Amount)
		}
	}

	result.Applied = decimal.Min(claimedSum, limit)
	if result.LostRaces > 0 && m.metrics != nil {
		m.metrics.RecordGrantRacesLost(ctx, int64(result.LostRaces))
	}
	return result, nil
}

// BestCampaign returns the running campaign with the highest percentage, or nil
func (m *LifecycleManager) BestCampaign(ctx context.Context, now time.Time) (*cashback.Campaign, error) {
	campaigns, err := m.campaignRepo.FindRunningAt(ctx, now)
	if err != nil {
		return nil, err
	}
	return cashback.SelectBestCampaign(campaigns, now), nil
}

// MaybeIssueGrant creates an ACTIVE grant for the sale under the best running
// campaign. Returns nil when no campaign is running.
func (m *LifecycleManager) MaybeIssueGrant(ctx context.Context, sale *sales.Sale, netTotal decimal.Decimal, now time.Time) (*cashback.Grant, error) {
	campaign, err := m.BestCampaign(ctx, now)
	if err != nil {
		return nil, err
	}
	if campaign == nil {
		return nil, nil
	}
	return m.IssueGrant(ctx, sale, campaign, netTotal, now)
}

// IssueGrant creates an ACTIVE grant for the sale under the given campaign.
// The grant expires ValidityDays after the end of the campaign's anchor day.
// Returns nil without writing when the earned amount rounds to zero.
func (m *LifecycleManager) IssueGrant(ctx context.Context, sale *sales.Sale, campaign *cashback.Campaign, netTotal decimal.Decimal, now time.Time) (*cashback.Grant, error) {
	amount := campaign.GrantAmount(netTotal)
	if !amount.IsPositive() {
		return nil, nil
	}

	expiresAt := campaign.ExpiryFor(sale.AnchorDates(), m.location)
	grant, err := cashback.NewGrant(sale.ID, campaign.ID, amount, expiresAt, now)
	if err != nil {
		return nil, err
	}
	if err := m.grantRepo.Create(ctx, grant); err != nil {
		return nil, err
	}
	return grant, nil
}

// ExpireDueGrants moves every ACTIVE grant with expiry before now to EXPIRED.
// Safe to run concurrently with sales and to repeat: only ACTIVE rows are touched.
func (m *LifecycleManager) ExpireDueGrants(ctx context.Context, now time.Time) (int64, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "cashback", "expire_due_grants")
	defer span.End()

	count, err := m.grantRepo.ExpireDue(ctx, now)
	if err != nil {
		telemetry.RecordError(span, err)
		return 0, err
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrGrantsExpired, count)
	telemetry.SetOK(span)

	if m.metrics != nil && count > 0 {
		m.metrics.RecordGrantsExpired(ctx, count)
	}
	if m.eventPublisher != nil && count > 0 {
		if err := m.eventPublisher.Publish(ctx, cashback.NewGrantsExpiredEvent(count, now)); err != nil {
			m.log(ctx).Warn("Failed to publish grants expired event", zap.Error(err))
		}
	}
	return count, nil
}
