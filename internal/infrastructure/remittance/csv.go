package remitfile

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	app "github.com/remitflow/backend/internal/application/reconciliation"
	domain "github.com/remitflow/backend/internal/domain/reconciliation"
	"github.com/shopspring/decimal"
)

// CSV column names. Header metadata columns (payer_code, payer_name,
// check_number, remittance_number, remittance_date) are read from the first
// data row that carries them; claim columns are read per line.
const (
	colClaimNumber      = "claim_number"
	colPatientName      = "patient_name"
	colServiceDate      = "service_date"
	colBilledAmount     = "billed_amount"
	colPaidAmount       = "paid_amount"
	colAdjustmentCodes  = "adjustment_codes"
	colPayerCode        = "payer_code"
	colPayerName        = "payer_name"
	colCheckNumber      = "check_number"
	colRemittanceNumber = "remittance_number"
	colRemittanceDate   = "remittance_date"
)

const csvDateFormat = "2006-01-02"

// requiredClaimColumns must be present for any row-oriented remittance file
var requiredClaimColumns = []string{colClaimNumber, colBilledAmount, colPaidAmount}

// CSVParser parses remittance advice exported as CSV. Adjustment codes are
// encoded per line as "CODE:AMOUNT" pairs separated by semicolons, e.g.
// "CO-45:50.00;PR-1:10.00".
type CSVParser struct{}

// NewCSVParser creates a new CSVParser
func NewCSVParser() *CSVParser {
	return &CSVParser{}
}

// FileType returns the file type this parser handles
func (p *CSVParser) FileType() domain.FileType {
	return domain.FileTypeCSV
}

// Parse extracts claim lines from CSV content. Malformed lines are reported
// as LineErrors, not failures.
func (p *CSVParser) Parse(ctx context.Context, content []byte) (*app.ParsedRemittance, error) {
	reader, err := newRowReader(content, ',')
	if err != nil {
		return nil, fmt.Errorf("invalid CSV file: %w", err)
	}
	if err := reader.readHeader(); err != nil {
		return nil, fmt.Errorf("invalid CSV header: %w", err)
	}
	if missing := reader.missingHeaders(requiredClaimColumns); len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}

	result := &app.ParsedRemittance{}

	lineNumber := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		row, err := reader.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.LineErrors = append(result.LineErrors, app.LineError{
				Line:    reader.line(),
				Message: err.Error(),
			})
			continue
		}
		if row.empty() {
			continue
		}

		captureFileMetadata(result, row.get, csvDateFormat)

		line, lineErr := parseClaimLine(row.get, row.line, csvDateFormat)
		if lineErr != nil {
			result.LineErrors = append(result.LineErrors, *lineErr)
			continue
		}
		lineNumber++
		line.LineNumber = lineNumber
		result.Lines = append(result.Lines, *line)
	}

	if result.RemittanceDate.IsZero() {
		result.RemittanceDate = time.Now()
	}

	return result, nil
}

// parseAdjustmentCodes parses "CODE:AMOUNT" pairs separated by semicolons
func parseAdjustmentCodes(raw string) (map[string]decimal.Decimal, error) {
	codes := make(map[string]decimal.Decimal)
	for _, pair := range strings.Split(raw, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		code, amountStr, found := strings.Cut(pair, ":")
		if !found || strings.TrimSpace(code) == "" {
			return nil, fmt.Errorf("invalid adjustment code entry %q", pair)
		}
		amount, err := decimal.NewFromString(strings.TrimSpace(amountStr))
		if err != nil {
			return nil, fmt.Errorf("invalid adjustment amount in %q", pair)
		}
		codes[strings.TrimSpace(code)] = amount
	}
	if len(codes) == 0 {
		return nil, nil
	}
	return codes, nil
}

// Ensure CSVParser implements the interface
var _ app.RemittanceParser = (*CSVParser)(nil)
