package sales

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	appcashback "github.com/tourism/backoffice/internal/application/cashback"
	"github.com/tourism/backoffice/internal/domain/cashback"
	"github.com/tourism/backoffice/internal/domain/sales"
	"github.com/tourism/backoffice/internal/domain/shared"
	"github.com/tourism/backoffice/internal/infrastructure/logger"
	"github.com/tourism/backoffice/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Default transaction budgets
const (
	DefaultCreateTimeout = 10 * time.Second
	DefaultUpdateTimeout = 30 * time.Second
)

// EngineConfig bounds the sale transactions
type EngineConfig struct {
	CreateTimeout time.Duration
	UpdateTimeout time.Duration
}

// SaleTransactionEngine records and edits sales. Each operation computes
// totals, settles and issues cashback, computes commissions and writes the
// sale, its lines and its invoice inside one transaction.
type SaleTransactionEngine struct {
	scope          TransactionScope
	cashback       *appcashback.LifecycleManager
	cfg            EngineConfig
	logger         *zap.Logger
	metrics        *telemetry.SaleMetrics
	eventPublisher shared.EventPublisher
	now            func() time.Time
}

// NewSaleTransactionEngine creates a new SaleTransactionEngine.
// The lifecycle manager is rebound to each transaction's repositories.
func NewSaleTransactionEngine(
	scope TransactionScope,
	lifecycle *appcashback.LifecycleManager,
	cfg EngineConfig,
	logger *zap.Logger,
) *SaleTransactionEngine {
	if cfg.CreateTimeout <= 0 {
		cfg.CreateTimeout = DefaultCreateTimeout
	}
	if cfg.UpdateTimeout <= 0 {
		cfg.UpdateTimeout = DefaultUpdateTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SaleTransactionEngine{
		scope:    scope,
		cashback: lifecycle,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// SetMetrics sets the metrics recorder
func (e *SaleTransactionEngine) SetMetrics(metrics *telemetry.SaleMetrics) {
	e.metrics = metrics
}

// SetEventPublisher sets the publisher for events raised by committed operations
func (e *SaleTransactionEngine) SetEventPublisher(publisher shared.EventPublisher) {
	e.eventPublisher = publisher
}

// SetClock overrides the time source
func (e *SaleTransactionEngine) SetClock(now func() time.Time) {
	e.now = now
}

// CreateSale records a new sale.
//
// Inside one transaction it writes the sale with its lines, claims the
// client's spendable grants oldest expiry first up to what the sale can
// absorb, rewrites the totals and commissions with the applied cashback,
// issues a grant under the best running campaign and writes the invoice.
// Any failure rolls every write back.
func (e *SaleTransactionEngine) CreateSale(ctx context.Context, in SaleInput) (*SaleResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.CreateTimeout)
	defer cancel()
	ctx, span := telemetry.StartServiceSpan(ctx, "sale", "create",
		telemetry.WithAttribute(telemetry.SpanAttrClientID, in.Details.ClientID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrPaymentMethod, string(in.Details.PaymentMethod)),
	)
	defer span.End()

	started := time.Now()
	now := e.now().UTC()
	if err := in.Validate(now); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	sale, err := sales.NewSale(in.Details, now)
	if err != nil {
		return nil, err
	}
	if err := sale.ReplaceLines(in.CompanionIDs, in.hostingLines(), in.ticketLines()); err != nil {
		return nil, err
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrSaleID, sale.ID.String())

	var result *SaleResult
	err = e.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		r, err := e.create(ctx, repos, sale, in, now)
		result = r
		return err
	})
	if err != nil {
		return nil, e.fail(ctx, span, "create", started, sale.ID, err)
	}

	e.committed(ctx, span, telemetry.SaleKindCreated, "create", started, result)
	return result, nil
}

func (e *SaleTransactionEngine) create(ctx context.Context, repos TransactionalRepositories, sale *sales.Sale, in SaleInput, now time.Time) (*SaleResult, error) {
	lifecycle := e.cashback.WithRepositories(repos.GrantRepo(), repos.CampaignRepo())

	sellerRate, operatorRate, err := e.commissionRates(ctx, repos, sale)
	if err != nil {
		return nil, err
	}
	base, err := sale.ComputeTotals(decimal.Zero)
	if err != nil {
		return nil, err
	}
	sale.ApplyTotals(base, sellerRate, operatorRate)

	// settled grants reference the sale row, so it is written before any claim
	if err := repos.SaleRepo().Create(ctx, sale); err != nil {
		return nil, err
	}
	consumed, err := lifecycle.ConsumeForSale(ctx, sale.ClientID, sale.ID, base.CashbackCeiling(), now)
	if err != nil {
		return nil, err
	}
	if consumed.Applied.IsPositive() {
		totals, err := sale.ComputeTotals(consumed.Applied)
		if err != nil {
			return nil, err
		}
		sale.ApplyTotals(totals, sellerRate, operatorRate)
		if err := repos.SaleRepo().UpdateTotals(ctx, sale); err != nil {
			return nil, err
		}
	}

	grant, err := lifecycle.MaybeIssueGrant(ctx, sale, sale.NetTotal, now)
	if err != nil {
		return nil, err
	}

	invoice, err := sales.NewInvoice(sale.ID, in.Invoice, now)
	if err != nil {
		return nil, err
	}
	if err := repos.InvoiceRepo().Upsert(ctx, invoice); err != nil {
		return nil, err
	}

	sale.RecordEvent(sales.NewSaleRecordedEvent(sale, sales.RecordingCreated, now))
	if len(consumed.Grants) > 0 {
		sale.RecordEvent(cashback.NewGrantsSettledEvent(sale.ID, consumed.GrantIDs(), now))
	}
	if grant != nil {
		sale.RecordEvent(cashback.NewGrantIssuedEvent(grant, now))
	}

	return &SaleResult{
		Sale:           sale,
		Grant:          grant,
		Invoice:        invoice,
		ConsumedGrants: consumed.Grants,
	}, nil
}

// UpdateSale edits an existing sale.
//
// The sale row is locked for the whole transaction. Lines are replaced
// wholesale and totals recomputed. Cashback already settled against the sale
// is shrunk proportionally when the edited sale can no longer absorb it. The
// grant the sale earned is reconciled with the campaigns running now, and the
// invoice is upserted.
func (e *SaleTransactionEngine) UpdateSale(ctx context.Context, id uuid.UUID, in SaleInput) (*SaleResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.UpdateTimeout)
	defer cancel()
	ctx, span := telemetry.StartServiceSpan(ctx, "sale", "update",
		telemetry.WithAttribute(telemetry.SpanAttrSaleID, id.String()),
	)
	defer span.End()

	started := time.Now()
	now := e.now().UTC()
	if err := in.Validate(now); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var result *SaleResult
	err := e.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		r, err := e.update(ctx, repos, id, in, now)
		result = r
		return err
	})
	if err != nil {
		return nil, e.fail(ctx, span, "update", started, id, err)
	}

	e.committed(ctx, span, telemetry.SaleKindUpdated, "update", started, result)
	return result, nil
}

func (e *SaleTransactionEngine) update(ctx context.Context, repos TransactionalRepositories, id uuid.UUID, in SaleInput, now time.Time) (*SaleResult, error) {
	lifecycle := e.cashback.WithRepositories(repos.GrantRepo(), repos.CampaignRepo())
	grantRepo := repos.GrantRepo()

	sale, err := repos.SaleRepo().FindByIDForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if sale.Cancelled {
		return nil, shared.NewDomainError("INVALID_STATE", "Cancelled sales cannot be edited")
	}

	previous := sale.SaleDetails
	previousGross := sale.GrossTotal
	previousNet := sale.NetTotal

	if err := sale.ReviseDetails(in.Details, now); err != nil {
		return nil, err
	}
	if err := sale.ReplaceLines(in.CompanionIDs, in.hostingLines(), in.ticketLines()); err != nil {
		return nil, err
	}

	consumed, err := grantRepo.FindConsumedBySale(ctx, sale.ID)
	if err != nil {
		return nil, err
	}
	base, err := sale.ComputeTotals(decimal.Zero)
	if err != nil {
		return nil, err
	}
	consumed, err = e.shrinkConsumed(ctx, grantRepo, sale.ID, consumed, base.CashbackCeiling(), now)
	if err != nil {
		return nil, err
	}

	totals, err := sale.ComputeTotals(cashback.SumAmounts(consumed))
	if err != nil {
		return nil, err
	}
	if err := e.applyTotals(ctx, repos, sale, totals); err != nil {
		return nil, err
	}
	if err := repos.SaleRepo().Update(ctx, sale); err != nil {
		return nil, err
	}
	if err := repos.SaleRepo().ReplaceLines(ctx, sale); err != nil {
		return nil, err
	}

	changed := sales.DatesDiffer(previous, sale.SaleDetails) ||
		!previousGross.Equal(sale.GrossTotal) ||
		!previousNet.Equal(sale.NetTotal)
	grant, err := e.reconcileGrant(ctx, lifecycle, grantRepo, repos.CampaignRepo(), sale, changed, now)
	if err != nil {
		return nil, err
	}

	invoice, err := repos.InvoiceRepo().FindBySale(ctx, sale.ID)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		invoice, err = sales.NewInvoice(sale.ID, in.Invoice, now)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		if err := invoice.Apply(in.Invoice, now); err != nil {
			return nil, err
		}
	}
	if err := repos.InvoiceRepo().Upsert(ctx, invoice); err != nil {
		return nil, err
	}

	sale.RecordEvent(sales.NewSaleRecordedEvent(sale, sales.RecordingUpdated, now))
	return &SaleResult{
		Sale:           sale,
		Grant:          grant,
		Invoice:        invoice,
		ConsumedGrants: consumed,
	}, nil
}

// shrinkConsumed scales the settled grants down to ceiling when the edited
// sale can no longer absorb them. Settled grants stay USED; only their stored
// amount changes.
func (e *SaleTransactionEngine) shrinkConsumed(ctx context.Context, grantRepo cashback.GrantRepository, saleID uuid.UUID, consumed []cashback.Grant, ceiling decimal.Decimal, now time.Time) ([]cashback.Grant, error) {
	shrunk, changed := cashback.ShrinkProportionally(consumed, ceiling)
	if !changed {
		return consumed, nil
	}
	for i := range shrunk {
		if shrunk[i].Amount.Equal(consumed[i].Amount) {
			continue
		}
		if err := grantRepo.UpdateAmount(ctx, shrunk[i].ID, shrunk[i].Amount, now); err != nil {
			return nil, err
		}
	}
	e.log(ctx).Info("Settled cashback shrunk to fit edited sale",
		zap.String("sale_id", saleID.String()),
		zap.String("previous", cashback.SumAmounts(consumed).String()),
		zap.String("ceiling", ceiling.String()),
	)
	return shrunk, nil
}

// reconcileGrant keeps the grant earned by an edited sale consistent with the
// campaigns running now. An ACTIVE grant whose campaign lapsed is deleted. A
// new grant replaces the ACTIVE one when the sale changed or a different
// campaign is now the best match. Settled or expired grants are final and
// block reissue.
func (e *SaleTransactionEngine) reconcileGrant(
	ctx context.Context,
	lifecycle *appcashback.LifecycleManager,
	grantRepo cashback.GrantRepository,
	campaignRepo cashback.CampaignRepository,
	sale *sales.Sale,
	changed bool,
	now time.Time,
) (*cashback.Grant, error) {
	current, err := grantRepo.FindLatestEarnedBySale(ctx, sale.ID)
	if err != nil {
		return nil, err
	}
	if current != nil && current.Status.IsTerminal() {
		return current, nil
	}

	if current != nil {
		campaign, err := campaignRepo.FindByID(ctx, current.CampaignID)
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}
		if campaign == nil || !campaign.IsRunningAt(now) {
			deleted, err := grantRepo.DeleteActive(ctx, current.ID)
			if err != nil {
				return nil, err
			}
			if !deleted {
				return grantRepo.FindByID(ctx, current.ID)
			}
			e.log(ctx).Info("Removed cashback grant of lapsed campaign",
				zap.String("sale_id", sale.ID.String()),
				zap.String("grant_id", current.ID.String()),
				zap.String("campaign_id", current.CampaignID.String()),
			)
			current = nil
		}
	}

	best, err := lifecycle.BestCampaign(ctx, now)
	if err != nil {
		return nil, err
	}
	if best == nil {
		return current, nil
	}
	if current != nil && !changed && current.CampaignID == best.ID {
		return current, nil
	}

	if current != nil {
		deleted, err := grantRepo.DeleteActive(ctx, current.ID)
		if err != nil {
			return nil, err
		}
		if !deleted {
			return grantRepo.FindByID(ctx, current.ID)
		}
	}

	grant, err := lifecycle.IssueGrant(ctx, sale, best, sale.NetTotal, now)
	if err != nil {
		return nil, err
	}
	if grant != nil {
		sale.RecordEvent(cashback.NewGrantIssuedEvent(grant, now))
	}
	return grant, nil
}

// applyTotals stores totals and commissions. A missing rate row yields zero
// commission for that side.
func (e *SaleTransactionEngine) applyTotals(ctx context.Context, repos TransactionalRepositories, sale *sales.Sale, totals sales.Totals) error {
	sellerRate, operatorRate, err := e.commissionRates(ctx, repos, sale)
	if err != nil {
		return err
	}
	sale.ApplyTotals(totals, sellerRate, operatorRate)
	return nil
}

// commissionRates looks up both rate rows of a sale. A missing row is
// logged and returned as nil, which yields zero commission.
func (e *SaleTransactionEngine) commissionRates(ctx context.Context, repos TransactionalRepositories, sale *sales.Sale) (*sales.SellerCommissionRate, *sales.TourOperatorCommissionRate, error) {
	rates := repos.CommissionRateRepo()

	sellerRate, err := rates.FindSellerRate(ctx, sale.SellerID, sale.TourOperatorID)
	if errors.Is(err, shared.ErrNotFound) {
		e.log(ctx).Warn("No seller commission rate, commission is zero",
			zap.String("seller_id", sale.SellerID.String()),
			zap.String("tour_operator_id", sale.TourOperatorID.String()))
		sellerRate, err = nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	operatorRate, err := rates.FindTourOperatorRate(ctx, sale.TourOperatorID)
	if errors.Is(err, shared.ErrNotFound) {
		e.log(ctx).Warn("No tour operator commission rate, agency commission is zero",
			zap.String("tour_operator_id", sale.TourOperatorID.String()))
		operatorRate, err = nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return sellerRate, operatorRate, nil
}

// CancelSale flags a sale as cancelled. Cancelling twice is a no-op.
// Grants the sale earned stop being spendable; settled grants are untouched.
func (e *SaleTransactionEngine) CancelSale(ctx context.Context, id uuid.UUID) (*sales.Sale, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.CreateTimeout)
	defer cancel()
	ctx, span := telemetry.StartServiceSpan(ctx, "sale", "cancel",
		telemetry.WithAttribute(telemetry.SpanAttrSaleID, id.String()),
	)
	defer span.End()

	started := time.Now()
	now := e.now().UTC()

	var sale *sales.Sale
	var changed bool
	err := e.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		s, err := repos.SaleRepo().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		sale = s
		if changed = s.Cancel(now); !changed {
			return nil
		}
		return repos.SaleRepo().Update(ctx, s)
	})
	if err != nil {
		return nil, e.fail(ctx, span, "cancel", started, id, err)
	}

	e.metrics.RecordTransactionDuration(ctx, "cancel", time.Since(started), true)
	if changed {
		e.metrics.RecordSaleRecorded(ctx, telemetry.SaleKindCancelled, string(sale.PaymentMethod), sale.NetTotal)
		e.publish(ctx, sale.DrainEvents()...)
		e.log(ctx).Info("Sale cancelled", zap.String("sale_id", id.String()))
	}
	telemetry.SetOK(span)
	return sale, nil
}

// DeleteSale physically removes a sale with its lines, invoice and the grants
// it earned. It is refused when the sale took part in a settlement, either by
// consuming grants or by earning a grant another sale consumed.
func (e *SaleTransactionEngine) DeleteSale(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.UpdateTimeout)
	defer cancel()
	ctx, span := telemetry.StartServiceSpan(ctx, "sale", "delete",
		telemetry.WithAttribute(telemetry.SpanAttrSaleID, id.String()),
	)
	defer span.End()

	started := time.Now()
	now := e.now().UTC()

	var sale *sales.Sale
	err := e.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		s, err := repos.SaleRepo().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		sale = s
		return e.delete(ctx, repos, s)
	})
	if err != nil {
		return e.fail(ctx, span, "delete", started, id, err)
	}

	e.metrics.RecordTransactionDuration(ctx, "delete", time.Since(started), true)
	e.metrics.RecordSaleRecorded(ctx, telemetry.SaleKindDeleted, string(sale.PaymentMethod), sale.NetTotal)
	e.publish(ctx, sales.NewSaleDeletedEvent(sale, now))
	e.log(ctx).Info("Sale deleted", zap.String("sale_id", id.String()))
	telemetry.SetOK(span)
	return nil
}

func (e *SaleTransactionEngine) delete(ctx context.Context, repos TransactionalRepositories, sale *sales.Sale) error {
	grantRepo := repos.GrantRepo()

	consumed, err := grantRepo.FindConsumedBySale(ctx, sale.ID)
	if err != nil {
		return err
	}
	if len(consumed) > 0 {
		return shared.NewDomainError("INTEGRITY_VIOLATION", "Sale consumed cashback and cannot be deleted")
	}

	earned, err := grantRepo.FindEarnedBySale(ctx, sale.ID)
	if err != nil {
		return err
	}
	for _, g := range earned {
		switch g.Status {
		case cashback.GrantStatusUsed:
			return shared.NewDomainError("INTEGRITY_VIOLATION", "Cashback earned by this sale was already used by another sale")
		case cashback.GrantStatusActive:
			deleted, err := grantRepo.DeleteActive(ctx, g.ID)
			if err != nil {
				return err
			}
			if !deleted {
				return shared.NewDomainError("INTEGRITY_VIOLATION", "Cashback earned by this sale was settled concurrently")
			}
		}
	}

	if err := grantRepo.DeleteBySale(ctx, sale.ID); err != nil {
		return err
	}
	if err := repos.InvoiceRepo().DeleteBySale(ctx, sale.ID); err != nil {
		return err
	}
	return repos.SaleRepo().Delete(ctx, sale.ID)
}

// GetSale returns a sale with its invoice, the grant it earned and the grants it consumed
func (e *SaleTransactionEngine) GetSale(ctx context.Context, id uuid.UUID) (*SaleResult, error) {
	var result *SaleResult
	err := e.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		sale, err := repos.SaleRepo().FindByID(ctx, id)
		if err != nil {
			return err
		}
		invoice, err := repos.InvoiceRepo().FindBySale(ctx, id)
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return err
		}
		grant, err := repos.GrantRepo().FindLatestEarnedBySale(ctx, id)
		if err != nil {
			return err
		}
		consumed, err := repos.GrantRepo().FindConsumedBySale(ctx, id)
		if err != nil {
			return err
		}
		result = &SaleResult{Sale: sale, Grant: grant, Invoice: invoice, ConsumedGrants: consumed}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// committed records metrics, logs and publishes events of a successful create or update
func (e *SaleTransactionEngine) committed(ctx context.Context, span trace.Span, kind telemetry.SaleKind, operation string, started time.Time, result *SaleResult) {
	sale := result.Sale
	elapsed := time.Since(started)

	telemetry.SetAttributes(span,
		telemetry.SpanAttrSaleVersion, sale.Version,
		telemetry.SpanAttrNetTotal, sale.NetTotal.String(),
		telemetry.SpanAttrAppliedCashback, sale.AppliedCashback.String(),
		telemetry.SpanAttrGrantCount, len(result.ConsumedGrants),
	)
	telemetry.SetOK(span)

	e.metrics.RecordTransactionDuration(ctx, operation, elapsed, true)
	e.metrics.RecordSaleRecorded(ctx, kind, string(sale.PaymentMethod), sale.NetTotal)
	if kind == telemetry.SaleKindCreated {
		e.metrics.RecordCashbackApplied(ctx, sale.AppliedCashback)
		e.metrics.RecordGrantsSettled(ctx, int64(len(result.ConsumedGrants)))
	}

	fields := []zap.Field{
		zap.String("sale_id", sale.ID.String()),
		zap.Int("version", sale.Version),
		zap.String("gross_total", sale.GrossTotal.String()),
		zap.String("applied_cashback", sale.AppliedCashback.String()),
		zap.String("net_total", sale.NetTotal.String()),
		zap.Int("grants_settled", len(result.ConsumedGrants)),
		zap.Duration("elapsed", elapsed),
	}
	issued := false
	for _, ev := range sale.PendingEvents() {
		if ev.EventType() == cashback.EventTypeGrantIssued {
			issued = true
		}
	}
	if result.Grant != nil {
		fields = append(fields, zap.String("grant_id", result.Grant.ID.String()))
	}
	if issued {
		e.metrics.RecordGrantsIssued(ctx, 1)
	}
	e.log(ctx).Info("Sale "+string(kind), fields...)

	e.publish(ctx, sale.DrainEvents()...)
}

// fail logs the cause of a rolled back operation and maps it for the caller.
// Domain errors carry a specific reason and pass through; anything else,
// including timeouts, deadlocks and version conflicts, becomes TRANSACTION_FAILED.
func (e *SaleTransactionEngine) fail(ctx context.Context, span trace.Span, operation string, started time.Time, saleID uuid.UUID, err error) error {
	telemetry.RecordError(span, err)
	e.metrics.RecordTransactionDuration(ctx, operation, time.Since(started), false)

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) && !errors.Is(err, shared.ErrConcurrencyConflict) {
		e.log(ctx).Info("Sale "+operation+" rejected",
			zap.String("sale_id", saleID.String()),
			zap.String("code", domainErr.Code),
			zap.String("reason", domainErr.Message))
		return err
	}

	e.log(ctx).Error("Sale "+operation+" rolled back",
		zap.String("sale_id", saleID.String()),
		zap.Duration("elapsed", time.Since(started)),
		zap.Error(err))
	return shared.ErrTransactionFailed
}

// log carries the request, idempotency and trace ids found in ctx
func (e *SaleTransactionEngine) log(ctx context.Context) *logger.ContextLogger {
	return logger.WithLogger(ctx, e.logger)
}

// publish delivers events after commit. Failures are logged and never undo the committed result.
func (e *SaleTransactionEngine) publish(ctx context.Context, events ...shared.DomainEvent) {
	if e.eventPublisher == nil || len(events) == 0 {
		return
	}
	if err := e.eventPublisher.Publish(ctx, events...); err != nil {
		e.log(ctx).Warn("Failed to publish sale events", zap.Error(err))
	}
}
