package reconciliation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	domain "github.com/remitflow/backend/internal/domain/reconciliation"
	"github.com/remitflow/backend/internal/domain/reconciliation/acl"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type importFixture struct {
	*paymentServiceFixture
	parser   *MockRemittanceParser
	archiver *MockFileArchiver
	service  *RemittanceImportService
}

func newImportFixture() *importFixture {
	base := newPaymentServiceFixture()
	f := &importFixture{
		paymentServiceFixture: base,
		parser:                &MockRemittanceParser{fileType: domain.FileTypeCSV},
		archiver:              new(MockFileArchiver),
	}
	f.service = NewRemittanceImportService(
		base.remittanceRepo,
		base.paymentRepo,
		base.service,
		&staticParserRegistry{parser: f.parser},
		f.archiver,
		zap.NewNop(),
	)
	return f
}

func parsedFixture(payerCode string, lines ...ParsedLine) *ParsedRemittance {
	return &ParsedRemittance{
		PayerCode:      payerCode,
		PayerName:      "Acme Health Plan",
		CheckNumber:    "CHK-42",
		RemittanceDate: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		Lines:          lines,
	}
}

func parsedLine(n int, claimNumber string, paid float64) ParsedLine {
	return ParsedLine{
		LineNumber:   n,
		ClaimNumber:  claimNumber,
		BilledAmount: decimal.NewFromFloat(paid),
		PaidAmount:   decimal.NewFromFloat(paid),
	}
}

func TestRemittanceImportService_Import_Success(t *testing.T) {
	f := newImportFixture()
	payerID := uuid.New()
	claim := acl.ClaimRef{ClaimID: uuid.New(), ClaimNumber: "CLM-1", PayerID: payerID}
	content := []byte("claim,paid\nCLM-1,350.00\nCLM-2,150.00\n")

	f.remittanceRepo.On("FindByFileHash", mock.Anything, mock.AnythingOfType("string")).Return(nil, nil)
	f.remittanceRepo.On("FindByPayerAndNumber", mock.Anything, payerID, "CHK-42").Return(nil, nil)
	f.parser.On("Parse", mock.Anything, content).
		Return(parsedFixture("ACME", parsedLine(1, "CLM-1", 350.00), parsedLine(2, "CLM-2", 150.00)), nil)
	f.payerRegistry.On("FindPayerByCode", mock.Anything, "ACME").
		Return(&acl.PayerRef{PayerID: payerID, Name: "Acme Health Plan", PayerCode: "ACME"}, nil)
	f.claimQuery.On("FindClaimsByNumbers", mock.Anything, []string{"CLM-1", "CLM-2"}).
		Return([]acl.ClaimRef{claim}, nil)
	f.remittanceRepo.On("Save", mock.Anything, mock.AnythingOfType("*reconciliation.RemittanceInfo")).Return(nil)
	f.paymentRepo.On("Save", mock.Anything, mock.AnythingOfType("*reconciliation.Payment")).Return(nil)
	f.archiver.On("Archive", mock.Anything, mock.AnythingOfType("string"), content, "text/csv").Return(nil)
	f.remittanceRepo.On("Update", mock.Anything, mock.AnythingOfType("*reconciliation.RemittanceInfo")).Return(nil)

	var progressCalls int
	resp, err := f.service.Import(context.Background(), ImportRemittanceRequest{
		FileType: "CSV",
		FileName: "acme.csv",
		Content:  content,
		Progress: func(processed, total int) { progressCalls++ },
	})

	require.NoError(t, err)
	assert.Equal(t, 2, resp.Remittance.DetailCount)
	assert.Equal(t, "CHK-42", resp.Remittance.RemittanceNumber)
	assert.True(t, resp.Remittance.TotalAmount.Equal(decimal.NewFromFloat(500.00)))
	assert.NotEmpty(t, resp.Remittance.ArchiveKey)

	// Line tallies: CLM-1 matched a claim, CLM-2 did not
	assert.Equal(t, 2, resp.DetailsProcessed)
	assert.Equal(t, 1, resp.ClaimsMatched)
	assert.Equal(t, 1, resp.ClaimsUnmatched)
	assert.True(t, resp.TotalAmount.Equal(decimal.NewFromFloat(500.00)))
	assert.True(t, resp.MatchedAmount.Equal(decimal.NewFromFloat(350.00)))
	assert.True(t, resp.UnmatchedAmount.Equal(decimal.NewFromFloat(150.00)))

	// A payment is created for the full remittance amount, linked back
	require.NotNil(t, resp.Payment)
	assert.True(t, resp.Payment.PaymentAmount.Equal(decimal.NewFromFloat(500.00)))
	assert.Equal(t, "CHECK", resp.Payment.PaymentMethod)
	assert.Equal(t, resp.Remittance.ID, *resp.Payment.RemittanceID)

	// CLM-2 was not found in the Claims system: warning, not failure
	require.Len(t, resp.Warnings, 1)
	assert.Contains(t, resp.Warnings[0], "CLM-2")
	assert.Equal(t, 2, progressCalls)
}

func TestRemittanceImportService_Import_DuplicateFileRejected(t *testing.T) {
	f := newImportFixture()
	content := []byte("dup")
	existing := createRemittanceForPayment(t, uuid.New(), uuid.New())

	f.remittanceRepo.On("FindByFileHash", mock.Anything, mock.AnythingOfType("string")).Return(existing, nil)

	_, err := f.service.Import(context.Background(), ImportRemittanceRequest{
		FileType: "CSV",
		FileName: "dup.csv",
		Content:  content,
	})

	requireDomainErrorCode(t, err, "DUPLICATE_IMPORT")
	f.remittanceRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestRemittanceImportService_Import_ReexportedFileRejectedByNumber(t *testing.T) {
	f := newImportFixture()
	payerID := uuid.New()
	claim := acl.ClaimRef{ClaimID: uuid.New(), ClaimNumber: "CLM-1", PayerID: payerID}
	content := []byte("claim,paid\nCLM-1,350.00\n")
	// The same advice exported again with a trailing newline: the bytes and
	// hash differ, the remittance number does not
	reexport := append(append([]byte{}, content...), '\n')

	var saved *domain.RemittanceInfo
	f.remittanceRepo.On("FindByFileHash", mock.Anything, mock.AnythingOfType("string")).Return(nil, nil).Twice()
	f.parser.On("Parse", mock.Anything, mock.Anything).
		Return(parsedFixture("ACME", parsedLine(1, "CLM-1", 350.00)), nil).Twice()
	f.payerRegistry.On("FindPayerByCode", mock.Anything, "ACME").
		Return(&acl.PayerRef{PayerID: payerID, Name: "Acme Health Plan", PayerCode: "ACME"}, nil).Twice()
	f.remittanceRepo.On("FindByPayerAndNumber", mock.Anything, payerID, "CHK-42").Return(nil, nil).Once()
	f.claimQuery.On("FindClaimsByNumbers", mock.Anything, []string{"CLM-1"}).
		Return([]acl.ClaimRef{claim}, nil).Once()
	f.remittanceRepo.On("Save", mock.Anything, mock.AnythingOfType("*reconciliation.RemittanceInfo")).
		Run(func(args mock.Arguments) { saved = args.Get(1).(*domain.RemittanceInfo) }).
		Return(nil).Once()
	f.paymentRepo.On("Save", mock.Anything, mock.AnythingOfType("*reconciliation.Payment")).Return(nil).Once()
	f.archiver.On("Archive", mock.Anything, mock.AnythingOfType("string"), content, "text/csv").Return(nil).Once()
	f.remittanceRepo.On("Update", mock.Anything, mock.AnythingOfType("*reconciliation.RemittanceInfo")).Return(nil).Once()

	first, err := f.service.Import(context.Background(), ImportRemittanceRequest{
		FileType: "CSV",
		FileName: "acme.csv",
		Content:  content,
	})
	require.NoError(t, err)
	assert.Equal(t, "CHK-42", first.Remittance.RemittanceNumber)
	require.NotNil(t, saved)

	f.remittanceRepo.On("FindByPayerAndNumber", mock.Anything, payerID, "CHK-42").Return(saved, nil).Once()

	_, err = f.service.Import(context.Background(), ImportRemittanceRequest{
		FileType: "CSV",
		FileName: "acme-reexport.csv",
		Content:  reexport,
	})

	requireDomainErrorCode(t, err, "DUPLICATE_IMPORT")
	// Only the first import produced a payment
	f.paymentRepo.AssertNumberOfCalls(t, "Save", 1)
}

func TestRemittanceImportService_Import_NoUsableLines(t *testing.T) {
	f := newImportFixture()
	content := []byte("garbage")

	f.remittanceRepo.On("FindByFileHash", mock.Anything, mock.AnythingOfType("string")).Return(nil, nil)
	f.parser.On("Parse", mock.Anything, content).Return(&ParsedRemittance{
		LineErrors: []LineError{{Line: 1, Message: "unparseable"}},
	}, nil)

	_, err := f.service.Import(context.Background(), ImportRemittanceRequest{
		FileType: "CSV",
		FileName: "bad.csv",
		Content:  content,
	})

	requireDomainErrorCode(t, err, "REMITTANCE_PARSE")
}

func TestRemittanceImportService_Import_UnknownPayerCode(t *testing.T) {
	f := newImportFixture()
	content := []byte("x")

	f.remittanceRepo.On("FindByFileHash", mock.Anything, mock.AnythingOfType("string")).Return(nil, nil)
	f.parser.On("Parse", mock.Anything, content).
		Return(parsedFixture("WHO", parsedLine(1, "CLM-1", 10)), nil)
	f.payerRegistry.On("FindPayerByCode", mock.Anything, "WHO").Return(nil, nil)

	_, err := f.service.Import(context.Background(), ImportRemittanceRequest{
		FileType: "CSV",
		FileName: "x.csv",
		Content:  content,
	})

	requireDomainErrorCode(t, err, "VALIDATION")
}

func TestRemittanceImportService_Import_ExplicitPayerOverridesFile(t *testing.T) {
	f := newImportFixture()
	payerID := uuid.New()
	content := []byte("y")

	f.remittanceRepo.On("FindByFileHash", mock.Anything, mock.AnythingOfType("string")).Return(nil, nil)
	f.parser.On("Parse", mock.Anything, content).
		Return(parsedFixture("IGNORED", parsedLine(1, "CLM-1", 10)), nil)
	f.payerRegistry.On("GetPayer", mock.Anything, payerID).
		Return(&acl.PayerRef{PayerID: payerID, Name: "Override Payer"}, nil)
	f.remittanceRepo.On("FindByPayerAndNumber", mock.Anything, payerID, mock.AnythingOfType("string")).Return(nil, nil)
	f.claimQuery.On("FindClaimsByNumbers", mock.Anything, mock.Anything).Return([]acl.ClaimRef{}, nil)
	f.remittanceRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
	f.paymentRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
	f.archiver.On("Archive", mock.Anything, mock.Anything, content, "text/csv").Return(nil)
	f.remittanceRepo.On("Update", mock.Anything, mock.Anything).Return(nil)

	resp, err := f.service.Import(context.Background(), ImportRemittanceRequest{
		FileType: "CSV",
		FileName: "y.csv",
		Content:  content,
		PayerID:  &payerID,
	})

	require.NoError(t, err)
	assert.Equal(t, payerID, resp.Remittance.PayerID)
	f.payerRegistry.AssertNotCalled(t, "FindPayerByCode", mock.Anything, mock.Anything)
}

func TestRemittanceImportService_Import_ArchiveFailureIsWarning(t *testing.T) {
	f := newImportFixture()
	payerID := uuid.New()
	content := []byte("z")

	f.remittanceRepo.On("FindByFileHash", mock.Anything, mock.AnythingOfType("string")).Return(nil, nil)
	f.parser.On("Parse", mock.Anything, content).
		Return(parsedFixture("ACME", parsedLine(1, "CLM-1", 10)), nil)
	f.payerRegistry.On("FindPayerByCode", mock.Anything, "ACME").
		Return(&acl.PayerRef{PayerID: payerID, Name: "Acme"}, nil)
	f.remittanceRepo.On("FindByPayerAndNumber", mock.Anything, payerID, mock.AnythingOfType("string")).Return(nil, nil)
	f.claimQuery.On("FindClaimsByNumbers", mock.Anything, mock.Anything).Return([]acl.ClaimRef{}, nil)
	f.remittanceRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
	f.paymentRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
	f.archiver.On("Archive", mock.Anything, mock.Anything, content, "text/csv").
		Return(assert.AnError)

	resp, err := f.service.Import(context.Background(), ImportRemittanceRequest{
		FileType: "CSV",
		FileName: "z.csv",
		Content:  content,
	})

	require.NoError(t, err)
	assert.Empty(t, resp.Remittance.ArchiveKey)
	require.NotEmpty(t, resp.Warnings)
	assert.Contains(t, resp.Warnings[len(resp.Warnings)-1], "archive")
	f.remittanceRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestRemittanceImportService_Import_InvalidFileType(t *testing.T) {
	f := newImportFixture()

	_, err := f.service.Import(context.Background(), ImportRemittanceRequest{
		FileType: "XML",
		FileName: "a.xml",
		Content:  []byte("x"),
	})

	requireDomainErrorCode(t, err, "VALIDATION")
}

func TestRemittanceImportService_Import_CustomRequiresMapping(t *testing.T) {
	f := newImportFixture()

	f.remittanceRepo.On("FindByFileHash", mock.Anything, mock.AnythingOfType("string")).Return(nil, nil)

	_, err := f.service.Import(context.Background(), ImportRemittanceRequest{
		FileType: "CUSTOM",
		FileName: "export.txt",
		Content:  []byte("x"),
	})

	requireDomainErrorCode(t, err, "VALIDATION")
	f.remittanceRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestRemittanceImportService_Import_CustomUsesMappingParser(t *testing.T) {
	f := newImportFixture()
	payerID := uuid.New()
	content := []byte("ref|gross|net\nCLM-1|10.00|10.00\n")

	f.remittanceRepo.On("FindByFileHash", mock.Anything, mock.AnythingOfType("string")).Return(nil, nil)
	f.parser.On("Parse", mock.Anything, content).
		Return(parsedFixture("ACME", parsedLine(1, "CLM-1", 10)), nil)
	f.payerRegistry.On("FindPayerByCode", mock.Anything, "ACME").
		Return(&acl.PayerRef{PayerID: payerID, Name: "Acme"}, nil)
	f.remittanceRepo.On("FindByPayerAndNumber", mock.Anything, payerID, mock.AnythingOfType("string")).Return(nil, nil)
	f.claimQuery.On("FindClaimsByNumbers", mock.Anything, mock.Anything).Return([]acl.ClaimRef{}, nil)
	f.remittanceRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
	f.paymentRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
	f.archiver.On("Archive", mock.Anything, mock.Anything, content, "application/octet-stream").Return(nil)
	f.remittanceRepo.On("Update", mock.Anything, mock.Anything).Return(nil)

	resp, err := f.service.Import(context.Background(), ImportRemittanceRequest{
		FileType: "CUSTOM",
		FileName: "export.txt",
		Content:  content,
		MappingConfig: &FieldMapping{
			Columns: map[string]string{
				"claim_number":  "ref",
				"billed_amount": "gross",
				"paid_amount":   "net",
			},
			Delimiter: "|",
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "CUSTOM", resp.Remittance.FileType)
}

func TestRemittanceImportService_Import_PaymentFailureAbortsUnitOfWork(t *testing.T) {
	f := newImportFixture()
	tx := &recordingTxManager{}
	f.service.SetTransactionManager(tx)
	payerID := uuid.New()
	content := []byte("claim,paid\nCLM-1,10.00\n")

	f.remittanceRepo.On("FindByFileHash", mock.Anything, mock.AnythingOfType("string")).Return(nil, nil)
	f.parser.On("Parse", mock.Anything, content).
		Return(parsedFixture("ACME", parsedLine(1, "CLM-1", 10)), nil)
	f.payerRegistry.On("FindPayerByCode", mock.Anything, "ACME").
		Return(&acl.PayerRef{PayerID: payerID, Name: "Acme"}, nil)
	f.remittanceRepo.On("FindByPayerAndNumber", mock.Anything, payerID, mock.AnythingOfType("string")).Return(nil, nil)
	f.claimQuery.On("FindClaimsByNumbers", mock.Anything, mock.Anything).Return([]acl.ClaimRef{}, nil)
	f.remittanceRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
	f.paymentRepo.On("Save", mock.Anything, mock.Anything).Return(assert.AnError)

	_, err := f.service.Import(context.Background(), ImportRemittanceRequest{
		FileType: "CSV",
		FileName: "w.csv",
		Content:  content,
	})

	// Both writes ran inside the one unit of work, which the payment failure
	// aborted before anything downstream of it
	require.Error(t, err)
	assert.Equal(t, 1, tx.calls)
	f.archiver.AssertNotCalled(t, "Archive", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.remittanceRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestRemittanceImportService_Import_CommitFailureFailsImport(t *testing.T) {
	f := newImportFixture()
	tx := &recordingTxManager{fail: assert.AnError}
	f.service.SetTransactionManager(tx)
	payerID := uuid.New()
	content := []byte("claim,paid\nCLM-1,10.00\n")

	f.remittanceRepo.On("FindByFileHash", mock.Anything, mock.AnythingOfType("string")).Return(nil, nil)
	f.parser.On("Parse", mock.Anything, content).
		Return(parsedFixture("ACME", parsedLine(1, "CLM-1", 10)), nil)
	f.payerRegistry.On("FindPayerByCode", mock.Anything, "ACME").
		Return(&acl.PayerRef{PayerID: payerID, Name: "Acme"}, nil)
	f.remittanceRepo.On("FindByPayerAndNumber", mock.Anything, payerID, mock.AnythingOfType("string")).Return(nil, nil)
	f.claimQuery.On("FindClaimsByNumbers", mock.Anything, mock.Anything).Return([]acl.ClaimRef{}, nil)
	f.remittanceRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
	f.paymentRepo.On("Save", mock.Anything, mock.Anything).Return(nil)

	_, err := f.service.Import(context.Background(), ImportRemittanceRequest{
		FileType: "CSV",
		FileName: "w.csv",
		Content:  content,
	})

	require.ErrorIs(t, err, assert.AnError)
	f.archiver.AssertNotCalled(t, "Archive", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
