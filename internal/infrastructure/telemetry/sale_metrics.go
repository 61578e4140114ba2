package telemetry

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// SaleKind labels sale recordings.
type SaleKind string

const (
	SaleKindCreated   SaleKind = "created"
	SaleKindUpdated   SaleKind = "updated"
	SaleKindCancelled SaleKind = "cancelled"
	SaleKindDeleted   SaleKind = "deleted"
)

// SaleMetricsConfig configures NewSaleMetrics.
type SaleMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
}

// SaleMetrics holds the instruments for sale recording and the cashback lifecycle.
// A nil *SaleMetrics is valid and records nothing.
type SaleMetrics struct {
	salesRecorded       *Counter
	netTotal            *AmountCounter
	cashbackApplied     *AmountCounter
	grantsIssued        *Counter
	grantsSettled       *Counter
	grantsExpired       *Counter
	grantRacesLost      *Counter
	transactionDuration *Histogram

	logger *zap.Logger
}

// ErrMeterNil is returned when no meter is supplied.
var ErrMeterNil = &MetricsError{Op: "NewSaleMetrics", Err: "meter cannot be nil"}

// MetricsError is a metrics construction error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}

// NewSaleMetrics creates the sale and cashback instruments on cfg.Meter.
func NewSaleMetrics(cfg SaleMetricsConfig) (*SaleMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	sm := &SaleMetrics{logger: cfg.Logger}
	var err error

	counters := []struct {
		target      **Counter
		name        string
		description string
		unit        string
	}{
		{&sm.salesRecorded, "backoffice_sales_recorded_total", "Sales committed by kind", "{sale}"},
		{&sm.grantsIssued, "backoffice_cashback_grants_issued_total", "Cashback grants issued", "{grant}"},
		{&sm.grantsSettled, "backoffice_cashback_grants_settled_total", "Cashback grants consumed by a sale", "{grant}"},
		{&sm.grantsExpired, "backoffice_cashback_grants_expired_total", "Cashback grants expired by the sweep", "{grant}"},
		{&sm.grantRacesLost, "backoffice_cashback_grant_races_lost_total", "Grants skipped because a concurrent sale consumed them first", "{grant}"},
	}
	for _, c := range counters {
		if *c.target, err = NewCounter(cfg.Meter, c.name, c.description, c.unit); err != nil {
			return nil, err
		}
	}

	if sm.netTotal, err = NewAmountCounter(cfg.Meter, "backoffice_sales_net_total", "Net total of committed sales", "{BRL}"); err != nil {
		return nil, err
	}
	if sm.cashbackApplied, err = NewAmountCounter(cfg.Meter, "backoffice_cashback_applied_total", "Cashback applied as discount", "{BRL}"); err != nil {
		return nil, err
	}

	sm.transactionDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "backoffice_sale_transaction_duration_seconds",
		Description: "Duration of sale transactions",
		Unit:        "s",
		Boundaries:  TransactionDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	return sm, nil
}

// RecordSaleRecorded counts a committed sale and adds its net total.
func (sm *SaleMetrics) RecordSaleRecorded(ctx context.Context, kind SaleKind, paymentMethod string, net decimal.Decimal) {
	if sm == nil {
		return
	}
	sm.salesRecorded.Inc(ctx, AttrSaleKind.String(string(kind)), AttrPaymentMethod.String(paymentMethod))
	if kind == SaleKindCreated || kind == SaleKindUpdated {
		sm.netTotal.Add(ctx, net.InexactFloat64(), AttrSaleKind.String(string(kind)))
	}
}

// RecordCashbackApplied adds the cashback used as discount by a sale.
func (sm *SaleMetrics) RecordCashbackApplied(ctx context.Context, amount decimal.Decimal) {
	if sm == nil || !amount.IsPositive() {
		return
	}
	sm.cashbackApplied.Add(ctx, amount.InexactFloat64())
}

// RecordGrantsIssued counts issued grants.
func (sm *SaleMetrics) RecordGrantsIssued(ctx context.Context, n int64) {
	if sm == nil || n <= 0 {
		return
	}
	sm.grantsIssued.Add(ctx, n)
}

// RecordGrantsSettled counts grants moved to USED.
func (sm *SaleMetrics) RecordGrantsSettled(ctx context.Context, n int64) {
	if sm == nil || n <= 0 {
		return
	}
	sm.grantsSettled.Add(ctx, n)
}

// RecordGrantsExpired counts grants moved to EXPIRED.
func (sm *SaleMetrics) RecordGrantsExpired(ctx context.Context, n int64) {
	if sm == nil || n <= 0 {
		return
	}
	sm.grantsExpired.Add(ctx, n)
}

// RecordGrantRacesLost counts grants another transaction consumed first.
func (sm *SaleMetrics) RecordGrantRacesLost(ctx context.Context, n int64) {
	if sm == nil || n <= 0 {
		return
	}
	sm.grantRacesLost.Add(ctx, n)
	sm.logger.Debug("cashback grants lost to concurrent sales", zap.Int64("count", n))
}

// RecordTransactionDuration records how long a sale transaction took.
func (sm *SaleMetrics) RecordTransactionDuration(ctx context.Context, operation string, d time.Duration, success bool) {
	if sm == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	sm.transactionDuration.RecordDuration(ctx, d, AttrOperation.String(operation), AttrOutcome.String(outcome))
}
