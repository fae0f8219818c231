package reconciliation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	domain "github.com/remitflow/backend/internal/domain/reconciliation"
	"github.com/remitflow/backend/internal/domain/reconciliation/acl"
	"go.uber.org/zap"
)

// DefaultAgingCacheTTL bounds how stale a cached aging report may be
const DefaultAgingCacheTTL = 15 * time.Minute

// ReportCache caches serialized reports. Get returns nil on a miss. Cache
// failures are soft: callers fall back to rebuilding the report.
type ReportCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// AgingReportRequest parameterizes an AR aging report
type AgingReportRequest struct {
	AsOfDate  *time.Time `form:"as_of_date"`
	PayerID   *uuid.UUID `form:"payer_id"`
	ProgramID *uuid.UUID `form:"program_id"`
	Refresh   bool       `form:"refresh"`
}

// AgingReportService builds AR aging reports from outstanding claims,
// cache-aside with a short TTL
type AgingReportService struct {
	claimQuery acl.ClaimQueryService
	cache      ReportCache
	ttl        time.Duration
	logger     *zap.Logger
}

// NewAgingReportService creates a new AgingReportService
func NewAgingReportService(claimQuery acl.ClaimQueryService, cache ReportCache, ttl time.Duration, logger *zap.Logger) *AgingReportService {
	if ttl <= 0 {
		ttl = DefaultAgingCacheTTL
	}
	return &AgingReportService{
		claimQuery: claimQuery,
		cache:      cache,
		ttl:        ttl,
		logger:     logger,
	}
}

// GetAgingReport returns the aging report for the request, from cache when
// fresh enough. Refresh forces a rebuild.
func (s *AgingReportService) GetAgingReport(ctx context.Context, req AgingReportRequest) (*domain.AgingReport, error) {
	asOf := time.Now()
	if req.AsOfDate != nil {
		asOf = *req.AsOfDate
	}
	asOf = asOf.Truncate(24 * time.Hour)

	key := s.cacheKey(asOf, req)
	if !req.Refresh && s.cache != nil {
		if cached, err := s.cache.Get(ctx, key); err != nil {
			s.logger.Warn("aging report cache read failed", zap.String("key", key), zap.Error(err))
		} else if cached != nil {
			var report domain.AgingReport
			if err := json.Unmarshal(cached, &report); err == nil {
				return &report, nil
			}
			s.logger.Warn("aging report cache entry unreadable, rebuilding", zap.String("key", key))
		}
	}

	query := acl.ClaimQuery{OutstandingOnly: true}
	query.PayerID = req.PayerID
	query.ProgramID = req.ProgramID

	claims, err := s.claimQuery.FindClaims(ctx, query)
	if err != nil {
		return nil, err
	}

	report := domain.BuildAgingReport(asOf, claims)

	if s.cache != nil {
		if data, err := json.Marshal(report); err == nil {
			if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
				s.logger.Warn("aging report cache write failed", zap.String("key", key), zap.Error(err))
			}
		}
	}

	return report, nil
}

func (s *AgingReportService) cacheKey(asOf time.Time, req AgingReportRequest) string {
	payer := "all"
	if req.PayerID != nil {
		payer = req.PayerID.String()
	}
	program := "all"
	if req.ProgramID != nil {
		program = req.ProgramID.String()
	}
	return fmt.Sprintf("reports:aging:%s:%s:%s", asOf.Format("2006-01-02"), payer, program)
}
