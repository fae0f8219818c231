package remitfile

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	app "github.com/remitflow/backend/internal/application/reconciliation"
	"github.com/shopspring/decimal"
)

var (
	errEmptyFile     = errors.New("file is empty")
	errBadEncoding   = errors.New("file is not valid UTF-8")
	errMissingHeader = errors.New("header row is missing")
)

// rowReader reads delimited remittance files row by row. It strips a UTF-8
// BOM, rejects non-UTF-8 content, tolerates lazy quoting and rows with a
// field count different from the header.
type rowReader struct {
	reader  *csv.Reader
	headers []string
	index   map[string]int
	row     int
}

func newRowReader(content []byte, delimiter rune) (*rowReader, error) {
	content = bytes.TrimPrefix(content, []byte{0xEF, 0xBB, 0xBF})
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, errEmptyFile
	}
	if !utf8.Valid(content) {
		return nil, errBadEncoding
	}

	cr := csv.NewReader(bytes.NewReader(content))
	cr.Comma = delimiter
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	return &rowReader{reader: cr, index: make(map[string]int)}, nil
}

// readHeader consumes the header row and builds the column index
func (r *rowReader) readHeader() error {
	record, err := r.reader.Read()
	if err == io.EOF {
		return errMissingHeader
	}
	if err != nil {
		return fmt.Errorf("reading header: %w", err)
	}
	r.row = 1
	r.headers = make([]string, len(record))
	for i, h := range record {
		name := strings.TrimSpace(h)
		r.headers[i] = name
		r.index[name] = i
	}
	if len(r.headers) == 0 {
		return errMissingHeader
	}
	return nil
}

func (r *rowReader) hasHeader(name string) bool {
	_, ok := r.index[name]
	return ok
}

// missingHeaders returns the required column names absent from the header
func (r *rowReader) missingHeaders(required []string) []string {
	var missing []string
	for _, name := range required {
		if !r.hasHeader(name) {
			missing = append(missing, name)
		}
	}
	return missing
}

// next reads the next data row, returning io.EOF after the last one
func (r *rowReader) next() (*fileRow, error) {
	record, err := r.reader.Read()
	r.row++
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("row %d: %w", r.row, err)
	}

	values := make(map[string]string, len(r.headers))
	for i, name := range r.headers {
		if i < len(record) {
			values[name] = strings.TrimSpace(record[i])
		} else {
			values[name] = ""
		}
	}
	return &fileRow{line: r.row, values: values}, nil
}

// line returns the 1-based number of the row last read
func (r *rowReader) line() int {
	return r.row
}

// fileRow is one data row keyed by header name
type fileRow struct {
	line   int
	values map[string]string
}

func (f *fileRow) get(name string) string {
	return f.values[name]
}

func (f *fileRow) empty() bool {
	for _, v := range f.values {
		if v != "" {
			return false
		}
	}
	return true
}

// colGetter looks a canonical column up in the current row. The plain CSV
// parser reads canonical names directly; the mapping parser translates them
// to the customer's source columns first.
type colGetter func(name string) string

// captureFileMetadata fills file-level fields from the first row carrying them
func captureFileMetadata(result *app.ParsedRemittance, get colGetter, dateFormat string) {
	if result.PayerCode == "" {
		result.PayerCode = get(colPayerCode)
	}
	if result.PayerName == "" {
		result.PayerName = get(colPayerName)
	}
	if result.CheckNumber == "" {
		result.CheckNumber = get(colCheckNumber)
	}
	if result.RemittanceNumber == "" {
		result.RemittanceNumber = get(colRemittanceNumber)
	}
	if result.RemittanceDate.IsZero() {
		if raw := get(colRemittanceDate); raw != "" {
			if d, err := time.Parse(dateFormat, raw); err == nil {
				result.RemittanceDate = d
			}
		}
	}
}

// parseClaimLine turns one data row into a ParsedLine. Validation problems
// come back as a LineError so the caller can keep reading.
func parseClaimLine(get colGetter, line int, dateFormat string) (*app.ParsedLine, *app.LineError) {
	claimNumber := get(colClaimNumber)
	if claimNumber == "" {
		return nil, &app.LineError{Line: line, Message: "claim_number is required"}
	}

	billed, err := decimal.NewFromString(get(colBilledAmount))
	if err != nil {
		return nil, &app.LineError{Line: line,
			Message: fmt.Sprintf("invalid billed_amount %q", get(colBilledAmount))}
	}
	paid, err := decimal.NewFromString(get(colPaidAmount))
	if err != nil {
		return nil, &app.LineError{Line: line,
			Message: fmt.Sprintf("invalid paid_amount %q", get(colPaidAmount))}
	}
	if paid.IsNegative() {
		return nil, &app.LineError{Line: line, Message: "paid_amount cannot be negative"}
	}

	parsed := &app.ParsedLine{
		ClaimNumber:  claimNumber,
		PatientName:  get(colPatientName),
		BilledAmount: billed,
		PaidAmount:   paid,
	}

	if raw := get(colServiceDate); raw != "" {
		d, err := time.Parse(dateFormat, raw)
		if err != nil {
			return nil, &app.LineError{Line: line,
				Message: fmt.Sprintf("invalid service_date %q", raw)}
		}
		parsed.ServiceDate = &d
	}

	if raw := get(colAdjustmentCodes); raw != "" {
		codes, err := parseAdjustmentCodes(raw)
		if err != nil {
			return nil, &app.LineError{Line: line, Message: err.Error()}
		}
		parsed.AdjustmentCodes = codes
	}

	return parsed, nil
}
