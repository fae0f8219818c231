package remitfile

import (
	"context"
	"fmt"
	"strings"
	"time"

	app "github.com/remitflow/backend/internal/application/reconciliation"
	domain "github.com/remitflow/backend/internal/domain/reconciliation"
	"github.com/shopspring/decimal"
)

const ediDateFormat = "20060102"

// EDI835Parser parses X12 835 (electronic remittance advice) payloads.
// Segments are terminated by '~' and elements separated by '*'; when an ISA
// envelope is present the element separator is taken from it. Only the
// segments relevant to reconciliation are read:
//
//	BPR  payment date
//	TRN  check/EFT trace number
//	N1   payer name and identification (PR loop)
//	CLP  claim payment line (claim number, billed, paid)
//	NM1  patient name (QC qualifier)
//	DTM  service date (qualifiers 232 and 472)
//	CAS  claim adjustments (group + reason code, amount)
type EDI835Parser struct{}

// NewEDI835Parser creates a new EDI835Parser
func NewEDI835Parser() *EDI835Parser {
	return &EDI835Parser{}
}

// FileType returns the file type this parser handles
func (p *EDI835Parser) FileType() domain.FileType {
	return domain.FileTypeEDI835
}

// Parse extracts claim lines from an 835 payload. Malformed claim segments
// become LineErrors; the parse fails only when the payload is not an 835.
func (p *EDI835Parser) Parse(ctx context.Context, content []byte) (*app.ParsedRemittance, error) {
	raw := strings.TrimSpace(string(content))
	if raw == "" {
		return nil, fmt.Errorf("file is empty")
	}

	elementSep := "*"
	if strings.HasPrefix(raw, "ISA") && len(raw) > 3 {
		elementSep = string(raw[3])
	}

	segments := splitSegments(raw)
	if len(segments) == 0 {
		return nil, fmt.Errorf("no segments found")
	}

	result := &app.ParsedRemittance{}
	var current *app.ParsedLine
	inPayerLoop := false
	sawTransaction := false
	lineNumber := 0

	flush := func() {
		if current != nil {
			lineNumber++
			current.LineNumber = lineNumber
			result.Lines = append(result.Lines, *current)
			current = nil
		}
	}

	for i, seg := range segments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		elements := strings.Split(seg, elementSep)
		switch elements[0] {
		case "ST":
			if len(elements) > 1 && elements[1] == "835" {
				sawTransaction = true
			}

		case "BPR":
			if raw := element(elements, 16); raw != "" {
				if d, err := time.Parse(ediDateFormat, raw); err == nil {
					result.RemittanceDate = d
				}
			}

		case "TRN":
			// The TRN02 trace number identifies the remittance advice itself
			result.CheckNumber = element(elements, 2)
			result.RemittanceNumber = element(elements, 2)

		case "N1":
			inPayerLoop = element(elements, 1) == "PR"
			if inPayerLoop {
				result.PayerName = element(elements, 2)
				result.PayerCode = element(elements, 4)
			}

		case "CLP":
			flush()
			claimNumber := element(elements, 1)
			if claimNumber == "" {
				result.LineErrors = append(result.LineErrors, app.LineError{
					Line:    i + 1,
					Message: "CLP segment missing claim number",
				})
				continue
			}
			billed, billedErr := elementDecimal(elements, 3)
			paid, paidErr := elementDecimal(elements, 4)
			if billedErr != nil || paidErr != nil {
				result.LineErrors = append(result.LineErrors, app.LineError{
					Line:    i + 1,
					Message: fmt.Sprintf("CLP segment for claim %s has invalid amounts", claimNumber),
				})
				continue
			}
			current = &app.ParsedLine{
				ClaimNumber:  claimNumber,
				BilledAmount: billed,
				PaidAmount:   paid,
			}

		case "NM1":
			if current != nil && element(elements, 1) == "QC" {
				current.PatientName = patientName(element(elements, 4), element(elements, 3))
			}

		case "DTM":
			if current != nil {
				qualifier := element(elements, 1)
				if qualifier == "232" || qualifier == "472" {
					if d, err := time.Parse(ediDateFormat, element(elements, 2)); err == nil {
						current.ServiceDate = &d
					}
				}
			}

		case "CAS":
			if current == nil {
				continue
			}
			group := element(elements, 1)
			// CAS carries up to six (reason, amount, quantity) triplets
			for idx := 2; idx+1 < len(elements); idx += 3 {
				reason := element(elements, idx)
				if reason == "" {
					break
				}
				amount, err := elementDecimal(elements, idx+1)
				if err != nil {
					continue
				}
				if current.AdjustmentCodes == nil {
					current.AdjustmentCodes = make(map[string]decimal.Decimal)
				}
				code := group + "-" + reason
				current.AdjustmentCodes[code] = current.AdjustmentCodes[code].Add(amount)
			}

		case "SE", "GE", "IEA":
			flush()
		}
	}
	flush()

	if !sawTransaction && len(result.Lines) == 0 {
		return nil, fmt.Errorf("not an 835 transaction")
	}
	if result.RemittanceDate.IsZero() {
		result.RemittanceDate = time.Now()
	}

	return result, nil
}

// splitSegments splits on the '~' terminator, trimming per-segment whitespace
func splitSegments(raw string) []string {
	parts := strings.Split(raw, "~")
	segments := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			segments = append(segments, part)
		}
	}
	return segments
}

func element(elements []string, idx int) string {
	if idx >= len(elements) {
		return ""
	}
	return strings.TrimSpace(elements[idx])
}

func elementDecimal(elements []string, idx int) (decimal.Decimal, error) {
	raw := element(elements, idx)
	if raw == "" {
		return decimal.Zero, fmt.Errorf("element %d is empty", idx)
	}
	return decimal.NewFromString(raw)
}

func patientName(first, last string) string {
	switch {
	case first == "":
		return last
	case last == "":
		return first
	default:
		return first + " " + last
	}
}

// Ensure EDI835Parser implements the interface
var _ app.RemittanceParser = (*EDI835Parser)(nil)
