package reconciliation

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Metric label values emitted by the services
const (
	MetricMethodManual = "manual"
	MetricMethodAuto   = "auto"

	MetricImportSuccess   = "success"
	MetricImportDuplicate = "duplicate"
	MetricImportFailed    = "failed"

	MetricLineMatched   = "matched"
	MetricLineUnmatched = "unmatched"
	MetricLineError     = "error"

	MetricBatchSucceeded = "succeeded"
	MetricBatchFailed    = "failed"
)

// MetricsRecorder receives business metric events from the reconciliation
// services. Implementations must be safe for concurrent use.
type MetricsRecorder interface {
	PaymentCreated(ctx context.Context, payerID string)
	PaymentReconciled(ctx context.Context, payerID, method string)
	AllocationApplied(ctx context.Context, payerID string, amount decimal.Decimal)
	RemittanceImported(ctx context.Context, fileType, outcome string, duration time.Duration)
	RemittanceLines(ctx context.Context, fileType, outcome string, count int64)
	BatchItems(ctx context.Context, outcome string, count int64)
}

// noopMetrics discards every event. Services use it until a real recorder
// is attached via SetMetrics.
type noopMetrics struct{}

func (noopMetrics) PaymentCreated(context.Context, string)                            {}
func (noopMetrics) PaymentReconciled(context.Context, string, string)                 {}
func (noopMetrics) AllocationApplied(context.Context, string, decimal.Decimal)        {}
func (noopMetrics) RemittanceImported(context.Context, string, string, time.Duration) {}
func (noopMetrics) RemittanceLines(context.Context, string, string, int64)            {}
func (noopMetrics) BatchItems(context.Context, string, int64)                         {}
