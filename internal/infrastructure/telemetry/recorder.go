package telemetry

import (
	"context"
	"time"

	reconapp "github.com/remitflow/backend/internal/application/reconciliation"
	"github.com/shopspring/decimal"
)

// Recorder adapts ReconciliationMetrics to the application layer's
// MetricsRecorder interface. A nil inner metrics instance makes every
// method a no-op, so wiring stays unconditional in main.
type Recorder struct {
	metrics *ReconciliationMetrics
}

// NewRecorder creates a Recorder around the given metrics instance.
func NewRecorder(metrics *ReconciliationMetrics) *Recorder {
	return &Recorder{metrics: metrics}
}

// PaymentCreated records a payment intake event.
func (r *Recorder) PaymentCreated(ctx context.Context, payerID string) {
	if r.metrics == nil {
		return
	}
	r.metrics.RecordPaymentCreated(ctx, payerID)
}

// PaymentReconciled records a completed reconciliation.
func (r *Recorder) PaymentReconciled(ctx context.Context, payerID, method string) {
	if r.metrics == nil {
		return
	}
	r.metrics.RecordPaymentReconciled(ctx, payerID, ReconcileMethod(method))
}

// AllocationApplied records the amount applied to claims.
func (r *Recorder) AllocationApplied(ctx context.Context, payerID string, amount decimal.Decimal) {
	if r.metrics == nil {
		return
	}
	r.metrics.RecordAllocationAmount(ctx, payerID, amount)
}

// RemittanceImported records a remittance file import.
func (r *Recorder) RemittanceImported(ctx context.Context, fileType, outcome string, duration time.Duration) {
	if r.metrics == nil {
		return
	}
	r.metrics.RecordImport(ctx, fileType, ImportOutcome(outcome), duration)
}

// RemittanceLines records remittance line outcomes.
func (r *Recorder) RemittanceLines(ctx context.Context, fileType, outcome string, count int64) {
	if r.metrics == nil {
		return
	}
	r.metrics.RecordImportLines(ctx, fileType, LineOutcome(outcome), count)
}

// BatchItems records batch reconciliation item outcomes.
func (r *Recorder) BatchItems(ctx context.Context, outcome string, count int64) {
	if r.metrics == nil {
		return
	}
	r.metrics.RecordBatchItems(ctx, BatchItemOutcome(outcome), count)
}

var _ reconapp.MetricsRecorder = (*Recorder)(nil)
