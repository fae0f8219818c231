package reconciliation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	domain "github.com/remitflow/backend/internal/domain/reconciliation"
	"github.com/remitflow/backend/internal/domain/reconciliation/acl"
	"github.com/remitflow/backend/internal/domain/shared"
	"github.com/remitflow/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ParsedLine is one claim line extracted from a remittance file
type ParsedLine struct {
	LineNumber      int
	ClaimNumber     string
	PatientName     string
	ServiceDate     *time.Time
	BilledAmount    decimal.Decimal
	PaidAmount      decimal.Decimal
	AdjustmentCodes map[string]decimal.Decimal
}

// LineError reports a remittance line that could not be parsed
type LineError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// ParsedRemittance is the format-independent result of parsing a file
type ParsedRemittance struct {
	PayerCode        string
	PayerName        string
	RemittanceNumber string
	CheckNumber      string
	RemittanceDate   time.Time
	Lines            []ParsedLine
	LineErrors       []LineError
}

// RemittanceParser turns one file format into a ParsedRemittance.
// Implementations tolerate bad lines: a malformed line becomes a LineError,
// not a parse failure.
type RemittanceParser interface {
	FileType() domain.FileType
	Parse(ctx context.Context, content []byte) (*ParsedRemittance, error)
}

// FieldMapping tells the custom parser which source column carries each
// remittance field. Keys are the canonical field names the CSV parser uses
// (claim_number, billed_amount, paid_amount, patient_name, service_date,
// adjustment_codes, payer_code, payer_name, check_number, remittance_number,
// remittance_date); values are the column headers in the uploaded file.
type FieldMapping struct {
	Columns    map[string]string `json:"columns" binding:"required"`
	Delimiter  string            `json:"delimiter"`
	DateFormat string            `json:"date_format"`
}

// ParserRegistry resolves the parser for a file type
type ParserRegistry interface {
	ParserFor(fileType domain.FileType) (RemittanceParser, bool)

	// CustomParser builds a parser for CUSTOM files from the caller-supplied
	// field mapping
	CustomParser(mapping *FieldMapping) (RemittanceParser, error)
}

// TransactionManager runs a function inside one storage transaction;
// repository calls made with the inner context join it
type TransactionManager interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

type nopTransactionManager struct{}

func (nopTransactionManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// FileArchiver stores raw remittance files for audit
type FileArchiver interface {
	Archive(ctx context.Context, key string, content []byte, contentType string) error
}

// ImportProgress reports lines processed so far; used to stream progress on
// large files
type ImportProgress func(processed, total int)

// ImportRemittanceRequest represents one remittance file to ingest
type ImportRemittanceRequest struct {
	FileType      string
	FileName      string
	Content       []byte
	PayerID       *uuid.UUID    // Overrides payer resolution from file content
	PaymentMethod string        // Defaults from the file (check number => CHECK, else EFT)
	MappingConfig *FieldMapping // Required for CUSTOM files, ignored otherwise
	AutoReconcile bool
	Progress      ImportProgress
}

// ImportRemittanceResponse reports the ingested remittance, the payment it
// produced, how the detail lines fared against the Claims system, and
// per-line parse errors
type ImportRemittanceResponse struct {
	Remittance       *RemittanceResponse    `json:"remittance"`
	Payment          *PaymentResponse       `json:"payment"`
	Auto             *AutoReconcileResponse `json:"auto_reconcile,omitempty"`
	DetailsProcessed int                    `json:"details_processed"`
	ClaimsMatched    int                    `json:"claims_matched"`
	ClaimsUnmatched  int                    `json:"claims_unmatched"`
	TotalAmount      decimal.Decimal        `json:"total_amount"`
	MatchedAmount    decimal.Decimal        `json:"matched_amount"`
	UnmatchedAmount  decimal.Decimal        `json:"unmatched_amount"`
	LineErrors       []LineError            `json:"line_errors,omitempty"`
	Warnings         []string               `json:"warnings,omitempty"`
}

// RemittanceListFilter defines filtering options for remittance list queries
type RemittanceListFilter struct {
	Search   string     `form:"search"`
	PayerID  *uuid.UUID `form:"payer_id"`
	FileType string     `form:"file_type"`
	DateFrom *time.Time `form:"date_from"`
	DateTo   *time.Time `form:"date_to"`
	Page     int        `form:"page"`
	PageSize int        `form:"page_size"`
}

// RemittanceImportService ingests remittance advice files: parse, dedupe,
// resolve claims, record the remittance and its payment, archive the raw file
type RemittanceImportService struct {
	remittanceRepo domain.RemittanceRepository
	paymentRepo    domain.PaymentRepository
	payments       *PaymentService
	parsers        ParserRegistry
	archiver       FileArchiver
	tx             TransactionManager
	metrics        MetricsRecorder
	logger         *zap.Logger
}

// NewRemittanceImportService creates a new RemittanceImportService
func NewRemittanceImportService(
	remittanceRepo domain.RemittanceRepository,
	paymentRepo domain.PaymentRepository,
	payments *PaymentService,
	parsers ParserRegistry,
	archiver FileArchiver,
	logger *zap.Logger,
) *RemittanceImportService {
	return &RemittanceImportService{
		remittanceRepo: remittanceRepo,
		paymentRepo:    paymentRepo,
		payments:       payments,
		parsers:        parsers,
		archiver:       archiver,
		tx:             nopTransactionManager{},
		metrics:        noopMetrics{},
		logger:         logger,
	}
}

// SetMetrics attaches a business metrics recorder
func (s *RemittanceImportService) SetMetrics(m MetricsRecorder) {
	if m != nil {
		s.metrics = m
	}
}

// SetTransactionManager makes the remittance and its payment commit in one
// storage transaction
func (s *RemittanceImportService) SetTransactionManager(tx TransactionManager) {
	if tx != nil {
		s.tx = tx
	}
}

// Import ingests one remittance file. A remittance number already imported
// for the same payer is rejected, as is byte-identical file content.
// Malformed lines are skipped and reported; the import fails only when no
// line is usable.
func (s *RemittanceImportService) Import(ctx context.Context, req ImportRemittanceRequest) (*ImportRemittanceResponse, error) {
	start := time.Now()

	if len(req.Content) == 0 {
		return nil, shared.NewDomainError("VALIDATION", "File content cannot be empty")
	}
	fileType := domain.FileType(req.FileType)
	if !fileType.IsValid() {
		return nil, shared.NewDomainError("VALIDATION", fmt.Sprintf("Invalid file type %q", req.FileType))
	}

	sum := sha256.Sum256(req.Content)
	fileHash := hex.EncodeToString(sum[:])

	existing, err := s.remittanceRepo.FindByFileHash(ctx, fileHash)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.metrics.RemittanceImported(ctx, string(fileType), MetricImportDuplicate, time.Since(start))
		return nil, shared.NewDomainError("DUPLICATE_IMPORT",
			fmt.Sprintf("This file was already imported on %s as remittance %s",
				existing.ImportedAt.Format("2006-01-02"), existing.ID))
	}

	parser, err := s.resolveParser(fileType, req.MappingConfig)
	if err != nil {
		return nil, err
	}
	parsed, err := parser.Parse(ctx, req.Content)
	if err != nil {
		s.metrics.RemittanceImported(ctx, string(fileType), MetricImportFailed, time.Since(start))
		return nil, shared.NewDomainError("REMITTANCE_PARSE", err.Error())
	}
	if len(parsed.Lines) == 0 {
		s.metrics.RemittanceImported(ctx, string(fileType), MetricImportFailed, time.Since(start))
		return nil, shared.NewDomainError("REMITTANCE_PARSE", "No usable claim lines found in file")
	}

	payer, err := s.resolvePayer(ctx, req, parsed)
	if err != nil {
		return nil, err
	}

	// Duplicate detection keys on the payer's remittance numbering, not the
	// file bytes: the same advice re-exported with cosmetic differences must
	// still be caught.
	remittanceNumber := remittanceNumberFor(parsed, fileHash)
	duplicate, err := s.remittanceRepo.FindByPayerAndNumber(ctx, payer.PayerID, remittanceNumber)
	if err != nil {
		return nil, err
	}
	if duplicate != nil {
		s.metrics.RemittanceImported(ctx, string(fileType), MetricImportDuplicate, time.Since(start))
		return nil, shared.NewDomainError("DUPLICATE_IMPORT",
			fmt.Sprintf("Remittance %s was already imported for this payer on %s",
				remittanceNumber, duplicate.ImportedAt.Format("2006-01-02")))
	}

	details, resolveWarnings, err := s.resolveDetails(ctx, parsed, req.Progress)
	if err != nil {
		return nil, err
	}

	remittance, err := domain.NewRemittanceInfo(
		payer.PayerID,
		payer.Name,
		remittanceNumber,
		parsed.RemittanceDate,
		parsed.CheckNumber,
		fileType,
		req.FileName,
		fileHash,
		details,
	)
	if err != nil {
		return nil, err
	}

	// The remittance and its payment are one financial fact; neither may
	// exist without the other.
	var payment *domain.Payment
	err = s.tx.Do(ctx, func(txCtx context.Context) error {
		if err := s.remittanceRepo.Save(txCtx, remittance); err != nil {
			return err
		}
		created, err := s.createPaymentFromRemittance(txCtx, req, remittance)
		if err != nil {
			return err
		}
		payment = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	warnings := resolveWarnings
	if key, archiveErr := s.archiveFile(ctx, remittance, req.Content); archiveErr != nil {
		s.logger.Warn("remittance archive failed",
			zap.String("remittance_id", remittance.ID.String()),
			zap.Error(archiveErr))
		warnings = append(warnings, fmt.Sprintf("file archive failed: %v", archiveErr))
	} else if key != "" {
		remittance.SetArchiveKey(key)
		if err := s.remittanceRepo.Update(ctx, remittance); err != nil {
			return nil, err
		}
	}

	resp := &ImportRemittanceResponse{
		Remittance: toRemittanceResponse(remittance, true),
		Payment:    toPaymentResponse(payment),
		LineErrors: parsed.LineErrors,
		Warnings:   warnings,
	}
	tallyDetails(resp, remittance)

	if req.AutoReconcile {
		auto, err := s.payments.AutoReconcile(ctx, payment.ID, AutoReconcileRequest{})
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("auto-reconcile failed: %v", err))
			resp.Warnings = warnings
		} else {
			resp.Auto = auto
			resp.Payment = auto.Payment
		}
	}

	s.metrics.RemittanceImported(ctx, string(fileType), MetricImportSuccess, time.Since(start))
	s.metrics.RemittanceLines(ctx, string(fileType), MetricLineMatched, int64(resp.ClaimsMatched))
	s.metrics.RemittanceLines(ctx, string(fileType), MetricLineUnmatched, int64(resp.ClaimsUnmatched))
	s.metrics.RemittanceLines(ctx, string(fileType), MetricLineError, int64(len(parsed.LineErrors)))

	s.logger.Info("remittance imported",
		zap.String("remittance_id", remittance.ID.String()),
		zap.String("remittance_number", remittance.RemittanceNumber),
		zap.String("payment_id", payment.ID.String()),
		zap.String("file_type", string(fileType)),
		zap.Int("lines", len(parsed.Lines)),
		zap.Int("matched", resp.ClaimsMatched),
		zap.Int("line_errors", len(parsed.LineErrors)))

	return resp, nil
}

// GetRemittance gets a remittance with details by ID
func (s *RemittanceImportService) GetRemittance(ctx context.Context, id uuid.UUID) (*RemittanceResponse, error) {
	remittance, err := s.remittanceRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if remittance == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Remittance not found")
	}
	return toRemittanceResponse(remittance, true), nil
}

// ListRemittances returns remittances matching the filter, without details
func (s *RemittanceImportService) ListRemittances(ctx context.Context, filter RemittanceListFilter) (shared.Paginated[*RemittanceResponse], error) {
	domainFilter := domain.RemittanceFilter{
		Filter:   shared.DefaultFilter(),
		PayerID:  filter.PayerID,
		DateFrom: filter.DateFrom,
		DateTo:   filter.DateTo,
	}
	domainFilter.Search = filter.Search
	if filter.Page > 0 {
		domainFilter.Page = filter.Page
	}
	if filter.PageSize > 0 {
		domainFilter.PageSize = filter.PageSize
	}
	if filter.FileType != "" {
		ft := domain.FileType(filter.FileType)
		if !ft.IsValid() {
			return shared.Paginated[*RemittanceResponse]{}, shared.NewDomainError("VALIDATION",
				fmt.Sprintf("Invalid file type filter %q", filter.FileType))
		}
		domainFilter.FileType = &ft
	}

	page, err := s.remittanceRepo.FindAll(ctx, domainFilter)
	if err != nil {
		return shared.Paginated[*RemittanceResponse]{}, err
	}
	items := make([]*RemittanceResponse, 0, len(page.Items))
	for _, r := range page.Items {
		items = append(items, toRemittanceResponse(r, false))
	}
	return shared.NewPaginated(items, page.Total, page.Page, page.PageSize), nil
}

// ===================== Helpers =====================

// resolveParser picks the parser for the file type. CUSTOM files carry their
// own column mapping and get a parser built from it.
func (s *RemittanceImportService) resolveParser(fileType domain.FileType, mapping *FieldMapping) (RemittanceParser, error) {
	if fileType == domain.FileTypeCustom {
		if mapping == nil {
			return nil, shared.NewDomainError("VALIDATION",
				"Custom file imports require a field mapping configuration")
		}
		parser, err := s.parsers.CustomParser(mapping)
		if err != nil {
			return nil, shared.NewDomainError("VALIDATION", err.Error())
		}
		return parser, nil
	}

	parser, ok := s.parsers.ParserFor(fileType)
	if !ok {
		return nil, shared.NewDomainError("VALIDATION",
			fmt.Sprintf("No parser registered for file type %q", fileType))
	}
	return parser, nil
}

// remittanceNumberFor picks the advice's identifying number: the number
// printed on it, else its check/trace number, else one derived from the file
// content so manual exports without numbering still dedupe.
func remittanceNumberFor(parsed *ParsedRemittance, fileHash string) string {
	switch {
	case parsed.RemittanceNumber != "":
		return parsed.RemittanceNumber
	case parsed.CheckNumber != "":
		return parsed.CheckNumber
	default:
		return "RMT-" + fileHash[:12]
	}
}

// tallyDetails fills the per-line match counts and amounts from the
// remittance's resolved details
func tallyDetails(resp *ImportRemittanceResponse, remittance *domain.RemittanceInfo) {
	matchedAmount := decimal.Zero
	matched := 0
	for i := range remittance.Details {
		d := &remittance.Details[i]
		if d.ClaimID != nil {
			matched++
			matchedAmount = matchedAmount.Add(d.PaidAmount)
		}
	}
	resp.DetailsProcessed = len(remittance.Details)
	resp.ClaimsMatched = matched
	resp.ClaimsUnmatched = len(remittance.Details) - matched
	resp.TotalAmount = remittance.TotalAmount
	resp.MatchedAmount = matchedAmount
	resp.UnmatchedAmount = remittance.TotalAmount.Sub(matchedAmount)
}

func (s *RemittanceImportService) resolvePayer(ctx context.Context, req ImportRemittanceRequest, parsed *ParsedRemittance) (*acl.PayerRef, error) {
	if req.PayerID != nil {
		payer, err := s.payments.payerRegistry.GetPayer(ctx, *req.PayerID)
		if err != nil {
			return nil, err
		}
		if payer == nil {
			return nil, shared.NewDomainError("NOT_FOUND", "Payer not found")
		}
		return payer, nil
	}

	if parsed.PayerCode == "" {
		return nil, shared.NewDomainError("VALIDATION",
			"File does not identify the payer; supply payer_id explicitly")
	}
	payer, err := s.payments.payerRegistry.FindPayerByCode(ctx, parsed.PayerCode)
	if err != nil {
		return nil, err
	}
	if payer == nil {
		return nil, shared.NewDomainError("VALIDATION",
			fmt.Sprintf("Unknown payer code %q in remittance file", parsed.PayerCode))
	}
	return payer, nil
}

// resolveDetails links parsed lines to claims by claim number where possible.
// Unresolved lines are kept; matching stays heuristic rather than mandatory.
func (s *RemittanceImportService) resolveDetails(ctx context.Context, parsed *ParsedRemittance, progress ImportProgress) ([]domain.RemittanceDetailInput, []string, error) {
	numbers := make([]string, 0, len(parsed.Lines))
	seen := make(map[string]bool, len(parsed.Lines))
	for _, line := range parsed.Lines {
		if !seen[line.ClaimNumber] {
			seen[line.ClaimNumber] = true
			numbers = append(numbers, line.ClaimNumber)
		}
	}

	claims, err := s.payments.claimQuery.FindClaimsByNumbers(ctx, numbers)
	if err != nil {
		return nil, nil, err
	}
	claimsByNumber := make(map[string]uuid.UUID, len(claims))
	for _, c := range claims {
		claimsByNumber[c.ClaimNumber] = c.ClaimID
	}

	var warnings []string
	details := make([]domain.RemittanceDetailInput, 0, len(parsed.Lines))
	for i, line := range parsed.Lines {
		detail := domain.RemittanceDetailInput{
			LineNumber:      line.LineNumber,
			ClaimNumber:     line.ClaimNumber,
			PatientName:     line.PatientName,
			ServiceDate:     line.ServiceDate,
			BilledAmount:    line.BilledAmount,
			PaidAmount:      line.PaidAmount,
			AdjustmentCodes: line.AdjustmentCodes,
		}
		if claimID, ok := claimsByNumber[line.ClaimNumber]; ok {
			id := claimID
			detail.ClaimID = &id
		} else {
			warnings = append(warnings, fmt.Sprintf("line %d: claim number %q not found", line.LineNumber, line.ClaimNumber))
		}
		details = append(details, detail)

		if progress != nil {
			progress(i+1, len(parsed.Lines))
		}
	}
	return details, warnings, nil
}

func (s *RemittanceImportService) createPaymentFromRemittance(ctx context.Context, req ImportRemittanceRequest, remittance *domain.RemittanceInfo) (*domain.Payment, error) {
	method := domain.PaymentMethod(req.PaymentMethod)
	if req.PaymentMethod == "" {
		method = domain.PaymentMethodEFT
		if remittance.CheckNumber != "" {
			method = domain.PaymentMethodCheck
		}
	}

	reference := remittance.CheckNumber
	if reference == "" {
		reference = remittance.RemittanceNumber
	}

	payment, err := domain.NewPayment(
		remittance.PayerID,
		remittance.PayerName,
		valueobject.NewMoneyUSD(remittance.TotalAmount),
		method,
		remittance.RemittanceDate,
		reference,
	)
	if err != nil {
		return nil, err
	}
	payment.CheckNumber = remittance.CheckNumber
	if err := payment.AttachRemittance(remittance.ID); err != nil {
		return nil, err
	}
	if err := s.paymentRepo.Save(ctx, payment); err != nil {
		return nil, err
	}
	return payment, nil
}

func (s *RemittanceImportService) archiveFile(ctx context.Context, remittance *domain.RemittanceInfo, content []byte) (string, error) {
	if s.archiver == nil {
		return "", nil
	}
	key := fmt.Sprintf("remittances/%s/%s_%s",
		remittance.RemittanceDate.Format("2006/01"),
		remittance.ID, remittance.FileName)
	if err := s.archiver.Archive(ctx, key, content, contentTypeFor(remittance.FileType)); err != nil {
		return "", err
	}
	return key, nil
}

func contentTypeFor(fileType domain.FileType) string {
	switch fileType {
	case domain.FileTypeCSV:
		return "text/csv"
	case domain.FileTypeExcel:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case domain.FileTypePDF:
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
