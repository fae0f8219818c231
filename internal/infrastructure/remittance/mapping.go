package remitfile

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	app "github.com/remitflow/backend/internal/application/reconciliation"
	domain "github.com/remitflow/backend/internal/domain/reconciliation"
)

// MappingParser parses delimited files whose columns do not follow the
// canonical CSV layout. A FieldMapping names, per canonical field, the
// customer's source column, plus the delimiter and date format the file uses.
type MappingParser struct {
	mapping    *app.FieldMapping
	delimiter  rune
	dateFormat string
}

// NewMappingParser creates a parser for one mapping configuration. The
// mapping must cover at least claim_number, billed_amount and paid_amount.
func NewMappingParser(mapping *app.FieldMapping) (*MappingParser, error) {
	if mapping == nil || len(mapping.Columns) == 0 {
		return nil, fmt.Errorf("field mapping must define at least one column")
	}
	for _, name := range requiredClaimColumns {
		if strings.TrimSpace(mapping.Columns[name]) == "" {
			return nil, fmt.Errorf("field mapping must map %s to a source column", name)
		}
	}

	delimiter := ','
	if mapping.Delimiter != "" {
		r, size := utf8.DecodeRuneInString(mapping.Delimiter)
		if r == utf8.RuneError || size != len(mapping.Delimiter) {
			return nil, fmt.Errorf("delimiter must be a single character")
		}
		delimiter = r
	}

	dateFormat := mapping.DateFormat
	if dateFormat == "" {
		dateFormat = csvDateFormat
	}

	return &MappingParser{mapping: mapping, delimiter: delimiter, dateFormat: dateFormat}, nil
}

// FileType returns the file type this parser handles
func (p *MappingParser) FileType() domain.FileType {
	return domain.FileTypeCustom
}

// Parse extracts claim lines, translating the customer's column names to the
// canonical fields through the mapping. Malformed lines are reported as
// LineErrors, not failures.
func (p *MappingParser) Parse(ctx context.Context, content []byte) (*app.ParsedRemittance, error) {
	reader, err := newRowReader(content, p.delimiter)
	if err != nil {
		return nil, fmt.Errorf("invalid custom file: %w", err)
	}
	if err := reader.readHeader(); err != nil {
		return nil, fmt.Errorf("invalid custom file header: %w", err)
	}
	if missing := p.missingSourceColumns(reader); len(missing) > 0 {
		return nil, fmt.Errorf("mapped columns not found in file: %s", strings.Join(missing, ", "))
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

		get := p.getter(row)
		captureFileMetadata(result, get, p.dateFormat)

		line, lineErr := parseClaimLine(get, row.line, p.dateFormat)
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

// getter resolves canonical column names to the row's source columns
func (p *MappingParser) getter(row *fileRow) colGetter {
	return func(name string) string {
		source, ok := p.mapping.Columns[name]
		if !ok {
			return ""
		}
		return row.get(source)
	}
}

// missingSourceColumns returns mapped source columns absent from the header
func (p *MappingParser) missingSourceColumns(reader *rowReader) []string {
	var missing []string
	for _, canonical := range requiredClaimColumns {
		source := p.mapping.Columns[canonical]
		if !reader.hasHeader(source) {
			missing = append(missing, source)
		}
	}
	return missing
}

// Ensure MappingParser implements the interface
var _ app.RemittanceParser = (*MappingParser)(nil)
