// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// ReconciliationMetrics provides business metrics for the reconciliation
// service. It tracks payment intake, reconciliation activity and remittance
// imports, plus point-in-time backlog gauges.
type ReconciliationMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	paymentCreatedTotal    *Counter
	paymentReconciledTotal *Counter
	allocationAmountTotal  *Counter
	remittanceImportTotal  *Counter
	remittanceLineTotal    *Counter
	batchItemTotal         *Counter

	// Histogram metrics
	importDuration *Histogram

	// Gauge metrics (point-in-time values)
	openPaymentCount     *Gauge
	unappliedAmountCents *Gauge

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	backlogProvider BacklogProvider
}

// BacklogProvider provides reconciliation backlog data for periodic metrics
// collection. This interface lets the telemetry layer query payment state
// without depending on the persistence layer directly.
type BacklogProvider interface {
	// CountOpenPayments returns the number of payments not yet fully reconciled
	CountOpenPayments(ctx context.Context) (int64, error)

	// TotalUnappliedAmount returns the sum of unapplied amounts across open payments
	TotalUnappliedAmount(ctx context.Context) (decimal.Decimal, error)
}

// ReconciliationMetricsConfig holds configuration for reconciliation metrics.
type ReconciliationMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	CollectInterval time.Duration // Default: 5 minutes
	BacklogProvider BacklogProvider
}

// NewReconciliationMetrics creates a new ReconciliationMetrics instance.
func NewReconciliationMetrics(cfg ReconciliationMetricsConfig) (*ReconciliationMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	rm := &ReconciliationMetrics{
		meter:           cfg.Meter,
		logger:          logger,
		stopChan:        make(chan struct{}),
		backlogProvider: cfg.BacklogProvider,
	}

	var err error

	rm.paymentCreatedTotal, err = NewCounter(
		cfg.Meter,
		"recon_payment_created_total",
		"Total number of payments recorded",
		"{payments}",
	)
	if err != nil {
		return nil, err
	}

	rm.paymentReconciledTotal, err = NewCounter(
		cfg.Meter,
		"recon_payment_reconciled_total",
		"Total number of payment reconciliations by method",
		"{payments}",
	)
	if err != nil {
		return nil, err
	}

	rm.allocationAmountTotal, err = NewCounter(
		cfg.Meter,
		"recon_allocation_amount_total",
		"Total amount allocated to claims in cents",
		"{cents}",
	)
	if err != nil {
		return nil, err
	}

	rm.remittanceImportTotal, err = NewCounter(
		cfg.Meter,
		"recon_remittance_import_total",
		"Total number of remittance file imports by outcome",
		"{imports}",
	)
	if err != nil {
		return nil, err
	}

	rm.remittanceLineTotal, err = NewCounter(
		cfg.Meter,
		"recon_remittance_line_total",
		"Total number of remittance lines processed by outcome",
		"{lines}",
	)
	if err != nil {
		return nil, err
	}

	rm.batchItemTotal, err = NewCounter(
		cfg.Meter,
		"recon_batch_item_total",
		"Total number of batch reconciliation items by outcome",
		"{items}",
	)
	if err != nil {
		return nil, err
	}

	rm.importDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "recon_import_duration_seconds",
		Description: "Remittance import duration distribution in seconds",
		Unit:        "s",
		Boundaries:  ImportDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	rm.openPaymentCount, err = NewGauge(
		cfg.Meter,
		"recon_open_payment_count",
		"Number of payments not yet fully reconciled",
		"{payments}",
	)
	if err != nil {
		return nil, err
	}

	rm.unappliedAmountCents, err = NewGauge(
		cfg.Meter,
		"recon_unapplied_amount_cents",
		"Total unapplied payment amount in cents",
		"{cents}",
	)
	if err != nil {
		return nil, err
	}

	return rm, nil
}

// =============================================================================
// Payment Metrics
// =============================================================================

// ReconcileMethod labels how a payment was reconciled.
type ReconcileMethod string

const (
	ReconcileMethodManual ReconcileMethod = "manual"
	ReconcileMethodAuto   ReconcileMethod = "auto"
	ReconcileMethodBatch  ReconcileMethod = "batch"
)

// RecordPaymentCreated records a payment intake event.
func (rm *ReconciliationMetrics) RecordPaymentCreated(ctx context.Context, payerID string) {
	rm.paymentCreatedTotal.Inc(ctx, AttrPayerID.String(payerID))
}

// RecordPaymentReconciled records a completed reconciliation.
func (rm *ReconciliationMetrics) RecordPaymentReconciled(ctx context.Context, payerID string, method ReconcileMethod) {
	rm.paymentReconciledTotal.Inc(ctx,
		AttrPayerID.String(payerID),
		AttrReconcileMethod.String(string(method)),
	)
}

// RecordAllocationAmount records the amount applied to claims.
// The amount is converted to cents for the counter.
func (rm *ReconciliationMetrics) RecordAllocationAmount(ctx context.Context, payerID string, amount decimal.Decimal) {
	cents := amount.Mul(decimal.NewFromInt(100)).IntPart()
	rm.allocationAmountTotal.Add(ctx, cents, AttrPayerID.String(payerID))
}

// =============================================================================
// Remittance Import Metrics
// =============================================================================

// ImportOutcome labels the result of a remittance file import.
type ImportOutcome string

const (
	ImportOutcomeSuccess   ImportOutcome = "success"
	ImportOutcomeDuplicate ImportOutcome = "duplicate"
	ImportOutcomeFailed    ImportOutcome = "failed"
)

// LineOutcome labels the result of a single remittance line.
type LineOutcome string

const (
	LineOutcomeMatched   LineOutcome = "matched"
	LineOutcomeUnmatched LineOutcome = "unmatched"
	LineOutcomeError     LineOutcome = "error"
)

// RecordImport records a remittance file import with its outcome and duration.
func (rm *ReconciliationMetrics) RecordImport(ctx context.Context, fileType string, outcome ImportOutcome, duration time.Duration) {
	rm.remittanceImportTotal.Inc(ctx,
		AttrFileType.String(fileType),
		AttrImportOutcome.String(string(outcome)),
	)
	rm.importDuration.RecordDuration(ctx, duration, AttrFileType.String(fileType))
}

// RecordImportLines records remittance line outcomes for an import.
func (rm *ReconciliationMetrics) RecordImportLines(ctx context.Context, fileType string, outcome LineOutcome, count int64) {
	if count <= 0 {
		return
	}
	rm.remittanceLineTotal.Add(ctx, count,
		AttrFileType.String(fileType),
		AttrImportOutcome.String(string(outcome)),
	)
}

// =============================================================================
// Batch Reconciliation Metrics
// =============================================================================

// BatchItemOutcome labels the result of a single batch reconciliation item.
type BatchItemOutcome string

const (
	BatchItemSucceeded BatchItemOutcome = "succeeded"
	BatchItemFailed    BatchItemOutcome = "failed"
)

// RecordBatchItems records batch reconciliation item outcomes.
func (rm *ReconciliationMetrics) RecordBatchItems(ctx context.Context, outcome BatchItemOutcome, count int64) {
	if count <= 0 {
		return
	}
	rm.batchItemTotal.Add(ctx, count, AttrBatchOutcome.String(string(outcome)))
}

// =============================================================================
// Periodic Collection
// =============================================================================

// StartPeriodicCollection starts periodic collection of backlog gauge metrics.
// This is non-blocking; use Stop() to stop collection.
func (rm *ReconciliationMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	rm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}

		go rm.runPeriodicCollection(ctx, interval)
	})
}

// runPeriodicCollection runs the periodic collection loop.
func (rm *ReconciliationMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Collect immediately on start
	rm.collectBacklogMetrics(ctx)

	for {
		select {
		case <-rm.stopChan:
			rm.logger.Info("Stopping periodic reconciliation metrics collection")
			return
		case <-ctx.Done():
			rm.logger.Info("Context cancelled, stopping periodic reconciliation metrics collection")
			return
		case <-ticker.C:
			rm.collectBacklogMetrics(ctx)
		}
	}
}

// collectBacklogMetrics collects the backlog gauge metrics.
func (rm *ReconciliationMetrics) collectBacklogMetrics(ctx context.Context) {
	if rm.backlogProvider == nil {
		rm.logger.Debug("No backlog provider configured, skipping backlog metrics collection")
		return
	}

	openCount, err := rm.backlogProvider.CountOpenPayments(ctx)
	if err != nil {
		rm.logger.Warn("Failed to count open payments for metrics", zap.Error(err))
	} else {
		rm.openPaymentCount.Record(ctx, openCount)
	}

	unapplied, err := rm.backlogProvider.TotalUnappliedAmount(ctx)
	if err != nil {
		rm.logger.Warn("Failed to sum unapplied amounts for metrics", zap.Error(err))
	} else {
		rm.unappliedAmountCents.Record(ctx, unapplied.Mul(decimal.NewFromInt(100)).IntPart())
	}
}

// Stop stops the periodic collection.
func (rm *ReconciliationMetrics) Stop() {
	rm.stopOnce.Do(func() {
		close(rm.stopChan)
	})
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewReconciliationMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
