package reconciliation

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/remitflow/backend/internal/domain/shared"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Batch item outcome states
const (
	BatchItemSucceeded = "SUCCEEDED"
	BatchItemFailed    = "FAILED"
	BatchItemSkipped   = "SKIPPED"
)

// DefaultBatchConcurrency bounds parallel reconciliations in a batch
const DefaultBatchConcurrency = 5

// MaxBatchSize caps how many items one batch request may carry
const MaxBatchSize = 500

// BatchReconcileItem is one payment's allocation instruction within a batch
type BatchReconcileItem struct {
	PaymentID   uuid.UUID           `json:"payment_id" binding:"required"`
	Allocations []AllocationRequest `json:"allocations" binding:"required,min=1"`
	Notes       string              `json:"notes"`
}

// BatchReconcileRequest reconciles many payments in one call
type BatchReconcileRequest struct {
	Items       []BatchReconcileItem `json:"items" binding:"required,min=1"`
	StopOnError bool                 `json:"stop_on_error"`
	Concurrency int                  `json:"concurrency"`
}

// BatchItemResult is the outcome of one batch item, in input order
type BatchItemResult struct {
	PaymentID    uuid.UUID `json:"payment_id"`
	Status       string    `json:"status"`
	ErrorCode    string    `json:"error_code,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Warnings     []string  `json:"warnings,omitempty"`
}

// BatchReconcileResponse summarizes a batch run. Completed items stay
// committed even when later items fail.
type BatchReconcileResponse struct {
	Total     int               `json:"total"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Skipped   int               `json:"skipped"`
	Results   []BatchItemResult `json:"results"`
}

// BatchReconcileService runs reconciliations over many payments with bounded
// concurrency. Each item is an independent unit of work: one item's failure
// never rolls back another's commit.
type BatchReconcileService struct {
	payments     *PaymentService
	metrics      MetricsRecorder
	concurrency  int
	maxBatchSize int
	logger       *zap.Logger
}

// NewBatchReconcileService creates a new BatchReconcileService
func NewBatchReconcileService(payments *PaymentService, logger *zap.Logger) *BatchReconcileService {
	return &BatchReconcileService{
		payments:     payments,
		metrics:      noopMetrics{},
		concurrency:  DefaultBatchConcurrency,
		maxBatchSize: MaxBatchSize,
		logger:       logger,
	}
}

// SetLimits overrides the default chunk concurrency and batch size cap.
func (s *BatchReconcileService) SetLimits(concurrency, maxBatchSize int) {
	if concurrency > 0 {
		s.concurrency = concurrency
	}
	if maxBatchSize > 0 {
		s.maxBatchSize = maxBatchSize
	}
}

// SetMetrics attaches a business metrics recorder
func (s *BatchReconcileService) SetMetrics(m MetricsRecorder) {
	if m != nil {
		s.metrics = m
	}
}

// Reconcile processes the batch. Items run concurrently in chunks of the
// concurrency limit; chunks run in order. With StopOnError set, no new chunk
// starts after a chunk that produced a failure, and the untouched remainder
// is reported as skipped.
func (s *BatchReconcileService) Reconcile(ctx context.Context, req BatchReconcileRequest) (*BatchReconcileResponse, error) {
	if len(req.Items) == 0 {
		return nil, shared.NewDomainError("VALIDATION", "Batch must contain at least one item")
	}
	if len(req.Items) > s.maxBatchSize {
		return nil, shared.NewDomainError("VALIDATION", "Batch exceeds the maximum item count")
	}
	if err := s.checkDuplicatePayments(req.Items); err != nil {
		return nil, err
	}

	concurrency := req.Concurrency
	if concurrency <= 0 {
		concurrency = s.concurrency
	}

	results := make([]BatchItemResult, len(req.Items))
	var mu sync.Mutex
	failed := false

	for start := 0; start < len(req.Items); start += concurrency {
		if err := ctx.Err(); err != nil {
			s.markSkipped(results, start, req.Items)
			break
		}
		if req.StopOnError && failed {
			s.markSkipped(results, start, req.Items)
			break
		}

		end := start + concurrency
		if end > len(req.Items) {
			end = len(req.Items)
		}

		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				result := s.processItem(ctx, req.Items[i])
				mu.Lock()
				results[i] = result
				if result.Status == BatchItemFailed {
					failed = true
				}
				mu.Unlock()
				return nil
			})
		}
		// Workers report outcomes through results, never through errgroup
		_ = g.Wait()
	}

	resp := &BatchReconcileResponse{Total: len(req.Items), Results: results}
	for _, r := range results {
		switch r.Status {
		case BatchItemSucceeded:
			resp.Succeeded++
		case BatchItemFailed:
			resp.Failed++
		case BatchItemSkipped:
			resp.Skipped++
		}
	}

	s.metrics.BatchItems(ctx, MetricBatchSucceeded, int64(resp.Succeeded))
	s.metrics.BatchItems(ctx, MetricBatchFailed, int64(resp.Failed))

	s.logger.Info("batch reconcile finished",
		zap.Int("total", resp.Total),
		zap.Int("succeeded", resp.Succeeded),
		zap.Int("failed", resp.Failed),
		zap.Int("skipped", resp.Skipped))

	return resp, nil
}

func (s *BatchReconcileService) processItem(ctx context.Context, item BatchReconcileItem) BatchItemResult {
	result := BatchItemResult{PaymentID: item.PaymentID}

	resp, err := s.payments.Reconcile(ctx, item.PaymentID, ReconcileRequest{
		Allocations: item.Allocations,
		Notes:       item.Notes,
	})
	if err != nil {
		result.Status = BatchItemFailed
		var domainErr *shared.DomainError
		if errors.As(err, &domainErr) {
			result.ErrorCode = domainErr.Code
			result.ErrorMessage = domainErr.Message
		} else {
			result.ErrorCode = "INTERNAL"
			result.ErrorMessage = err.Error()
		}
		return result
	}

	result.Status = BatchItemSucceeded
	for _, ne := range resp.NotificationErrors {
		result.Warnings = append(result.Warnings, ne.Message)
	}
	return result
}

// checkDuplicatePayments rejects batches that touch the same payment twice;
// concurrent items against one aggregate would just trade version conflicts
func (s *BatchReconcileService) checkDuplicatePayments(items []BatchReconcileItem) error {
	seen := make(map[uuid.UUID]bool, len(items))
	for _, item := range items {
		if seen[item.PaymentID] {
			return shared.NewDomainError("VALIDATION", "Batch contains the same payment more than once")
		}
		seen[item.PaymentID] = true
	}
	return nil
}

func (s *BatchReconcileService) markSkipped(results []BatchItemResult, from int, items []BatchReconcileItem) {
	for i := from; i < len(items); i++ {
		results[i] = BatchItemResult{PaymentID: items[i].PaymentID, Status: BatchItemSkipped}
	}
}
