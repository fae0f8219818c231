package reconciliation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	domain "github.com/remitflow/backend/internal/domain/reconciliation"
	"github.com/remitflow/backend/internal/domain/reconciliation/acl"
	"github.com/remitflow/backend/internal/domain/shared"
	"github.com/stretchr/testify/mock"
)

// =============================================================================
// Mock Repositories and Ports
// =============================================================================

// MockPaymentRepository is a mock implementation of domain.PaymentRepository
type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) Save(ctx context.Context, payment *domain.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockPaymentRepository) SaveWithLock(ctx context.Context, payment *domain.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindByReferenceNumber(ctx context.Context, payerID uuid.UUID, referenceNumber string) (*domain.Payment, error) {
	args := m.Called(ctx, payerID, referenceNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindAll(ctx context.Context, filter domain.PaymentFilter) (shared.Paginated[*domain.Payment], error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(shared.Paginated[*domain.Payment]), args.Error(1)
}

func (m *MockPaymentRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Payment, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Payment), args.Error(1)
}

func (m *MockPaymentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockPaymentRepository) CountByStatus(ctx context.Context) (map[domain.ReconciliationStatus]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[domain.ReconciliationStatus]int64), args.Error(1)
}

// MockRemittanceRepository is a mock implementation of domain.RemittanceRepository
type MockRemittanceRepository struct {
	mock.Mock
}

func (m *MockRemittanceRepository) Save(ctx context.Context, remittance *domain.RemittanceInfo) error {
	args := m.Called(ctx, remittance)
	return args.Error(0)
}

func (m *MockRemittanceRepository) Update(ctx context.Context, remittance *domain.RemittanceInfo) error {
	args := m.Called(ctx, remittance)
	return args.Error(0)
}

func (m *MockRemittanceRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.RemittanceInfo, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RemittanceInfo), args.Error(1)
}

func (m *MockRemittanceRepository) FindByFileHash(ctx context.Context, hash string) (*domain.RemittanceInfo, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RemittanceInfo), args.Error(1)
}

func (m *MockRemittanceRepository) FindByPayerAndNumber(ctx context.Context, payerID uuid.UUID, remittanceNumber string) (*domain.RemittanceInfo, error) {
	args := m.Called(ctx, payerID, remittanceNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RemittanceInfo), args.Error(1)
}

func (m *MockRemittanceRepository) FindAll(ctx context.Context, filter domain.RemittanceFilter) (shared.Paginated[*domain.RemittanceInfo], error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(shared.Paginated[*domain.RemittanceInfo]), args.Error(1)
}

// MockClaimQueryService is a mock implementation of acl.ClaimQueryService
type MockClaimQueryService struct {
	mock.Mock
}

func (m *MockClaimQueryService) GetClaim(ctx context.Context, claimID uuid.UUID) (*acl.ClaimRef, error) {
	args := m.Called(ctx, claimID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*acl.ClaimRef), args.Error(1)
}

func (m *MockClaimQueryService) GetClaims(ctx context.Context, claimIDs []uuid.UUID) ([]acl.ClaimRef, error) {
	args := m.Called(ctx, claimIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]acl.ClaimRef), args.Error(1)
}

func (m *MockClaimQueryService) FindClaims(ctx context.Context, query acl.ClaimQuery) ([]acl.ClaimRef, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]acl.ClaimRef), args.Error(1)
}

func (m *MockClaimQueryService) FindClaimsByNumbers(ctx context.Context, claimNumbers []string) ([]acl.ClaimRef, error) {
	args := m.Called(ctx, claimNumbers)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]acl.ClaimRef), args.Error(1)
}

// MockClaimStatusNotifier is a mock implementation of acl.ClaimStatusNotifier
type MockClaimStatusNotifier struct {
	mock.Mock
}

func (m *MockClaimStatusNotifier) NotifyClaimPaid(ctx context.Context, claimID uuid.UUID, status acl.ClaimPaymentStatus) error {
	args := m.Called(ctx, claimID, status)
	return args.Error(0)
}

func (m *MockClaimStatusNotifier) RevertClaimPayment(ctx context.Context, claimID, paymentID uuid.UUID) error {
	args := m.Called(ctx, claimID, paymentID)
	return args.Error(0)
}

// MockPayerRegistry is a mock implementation of acl.PayerRegistry
type MockPayerRegistry struct {
	mock.Mock
}

func (m *MockPayerRegistry) GetPayer(ctx context.Context, payerID uuid.UUID) (*acl.PayerRef, error) {
	args := m.Called(ctx, payerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*acl.PayerRef), args.Error(1)
}

func (m *MockPayerRegistry) FindPayerByCode(ctx context.Context, code string) (*acl.PayerRef, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*acl.PayerRef), args.Error(1)
}

// MockReportCache is a mock implementation of ReportCache
type MockReportCache struct {
	mock.Mock
}

func (m *MockReportCache) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockReportCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

// MockFileArchiver is a mock implementation of FileArchiver
type MockFileArchiver struct {
	mock.Mock
}

func (m *MockFileArchiver) Archive(ctx context.Context, key string, content []byte, contentType string) error {
	args := m.Called(ctx, key, content, contentType)
	return args.Error(0)
}

// MockRemittanceParser is a mock implementation of RemittanceParser
type MockRemittanceParser struct {
	mock.Mock
	fileType domain.FileType
}

func (m *MockRemittanceParser) FileType() domain.FileType {
	return m.fileType
}

func (m *MockRemittanceParser) Parse(ctx context.Context, content []byte) (*ParsedRemittance, error) {
	args := m.Called(ctx, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ParsedRemittance), args.Error(1)
}

// staticParserRegistry serves a fixed parser for every file type
type staticParserRegistry struct {
	parser RemittanceParser
}

func (r *staticParserRegistry) ParserFor(fileType domain.FileType) (RemittanceParser, bool) {
	if r.parser == nil {
		return nil, false
	}
	return r.parser, true
}

func (r *staticParserRegistry) CustomParser(mapping *FieldMapping) (RemittanceParser, error) {
	if mapping == nil || len(mapping.Columns) == 0 {
		return nil, errors.New("field mapping must define at least one column")
	}
	if r.parser == nil {
		return nil, errors.New("no parser configured")
	}
	return r.parser, nil
}

// recordingTxManager runs the unit of work inline and counts invocations
type recordingTxManager struct {
	calls int
	fail  error
}

func (m *recordingTxManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	if err := fn(ctx); err != nil {
		return err
	}
	return m.fail
}
