package reconciliation

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/remitflow/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// FileType identifies the format of an ingested remittance file
type FileType string

const (
	FileTypeEDI835 FileType = "EDI835"
	FileTypeCSV    FileType = "CSV"
	FileTypeExcel  FileType = "EXCEL"
	FileTypePDF    FileType = "PDF"
	FileTypeCustom FileType = "CUSTOM"
)

// IsValid checks if the file type is valid
func (t FileType) IsValid() bool {
	switch t {
	case FileTypeEDI835, FileTypeCSV, FileTypeExcel, FileTypePDF, FileTypeCustom:
		return true
	}
	return false
}

// String returns the string representation of FileType
func (t FileType) String() string {
	return string(t)
}

// AdjustmentCodes holds the payer adjustment codes and amounts reported on a
// remittance line, keyed by code (for example CO-45). Stored as JSONB.
type AdjustmentCodes map[string]decimal.Decimal

// Value implements driver.Valuer
func (c AdjustmentCodes) Value() (driver.Value, error) {
	if c == nil {
		return "{}", nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (c *AdjustmentCodes) Scan(value any) error {
	if value == nil {
		*c = AdjustmentCodes{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into AdjustmentCodes", value)
	}
	return json.Unmarshal(data, c)
}

// RemittanceDetail is one claim line from a remittance file. Details are the
// immutable record of what the payer asserted; corrections happen on the
// Payment side, never here.
type RemittanceDetail struct {
	ID              uuid.UUID       `json:"id"`
	RemittanceID    uuid.UUID       `json:"remittance_id"`
	LineNumber      int             `json:"line_number"`
	ClaimNumber     string          `json:"claim_number"`
	ClaimID         *uuid.UUID      `json:"claim_id,omitempty"`
	PatientName     string          `json:"patient_name,omitempty"`
	ServiceDate     *time.Time      `json:"service_date,omitempty"`
	BilledAmount    decimal.Decimal `json:"billed_amount"`
	PaidAmount      decimal.Decimal `json:"paid_amount"`
	AdjustmentCodes AdjustmentCodes `json:"adjustment_codes"`
}

// IsResolved returns true when the line has been matched to a known claim
func (d *RemittanceDetail) IsResolved() bool {
	return d.ClaimID != nil
}

// RemittanceDetailInput is one parsed line used to build a RemittanceInfo
type RemittanceDetailInput struct {
	LineNumber      int
	ClaimNumber     string
	ClaimID         *uuid.UUID
	PatientName     string
	ServiceDate     *time.Time
	BilledAmount    decimal.Decimal
	PaidAmount      decimal.Decimal
	AdjustmentCodes AdjustmentCodes
}

// RemittanceInfo is the aggregate root for an ingested remittance advice.
// Once created it is append-only history: details never change, and the only
// mutation is resolving detail lines to claim IDs.
type RemittanceInfo struct {
	shared.BaseAggregateRoot
	PayerID          uuid.UUID          `json:"payer_id"`
	PayerName        string             `json:"payer_name"`
	RemittanceNumber string             `json:"remittance_number"`
	RemittanceDate   time.Time          `json:"remittance_date"`
	CheckNumber      string             `json:"check_number,omitempty"`
	TotalAmount      decimal.Decimal    `json:"total_amount"`
	FileType         FileType           `json:"file_type"`
	FileName         string             `json:"file_name"`
	FileHash         string             `json:"file_hash"`
	ArchiveKey       string             `json:"archive_key,omitempty"`
	ImportedAt       time.Time          `json:"imported_at"`
	Details          []RemittanceDetail `json:"details"`
}

// NewRemittanceInfo creates a remittance record from a parsed file. The
// remittance number identifies the advice within the payer's numbering; it
// is what duplicate imports are detected on.
func NewRemittanceInfo(
	payerID uuid.UUID,
	payerName string,
	remittanceNumber string,
	remittanceDate time.Time,
	checkNumber string,
	fileType FileType,
	fileName string,
	fileHash string,
	details []RemittanceDetailInput,
) (*RemittanceInfo, error) {
	if payerID == uuid.Nil {
		return nil, shared.NewDomainError("VALIDATION", "Payer ID cannot be empty")
	}
	if remittanceNumber == "" {
		return nil, shared.NewDomainError("VALIDATION", "Remittance number cannot be empty")
	}
	if !fileType.IsValid() {
		return nil, shared.NewDomainError("VALIDATION", fmt.Sprintf("Invalid file type %q", fileType))
	}
	if fileName == "" {
		return nil, shared.NewDomainError("VALIDATION", "File name cannot be empty")
	}
	if fileHash == "" {
		return nil, shared.NewDomainError("VALIDATION", "File hash cannot be empty")
	}
	if len(details) == 0 {
		return nil, shared.NewDomainError("VALIDATION", "Remittance must contain at least one detail line")
	}
	if remittanceDate.IsZero() {
		remittanceDate = time.Now()
	}

	r := &RemittanceInfo{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		PayerID:           payerID,
		PayerName:         payerName,
		RemittanceNumber:  remittanceNumber,
		RemittanceDate:    remittanceDate,
		CheckNumber:       checkNumber,
		FileType:          fileType,
		FileName:          fileName,
		FileHash:          fileHash,
		ImportedAt:        time.Now(),
	}

	total := decimal.Zero
	for _, in := range details {
		if in.ClaimNumber == "" {
			return nil, shared.NewDomainError("VALIDATION",
				fmt.Sprintf("Detail line %d has no claim number", in.LineNumber))
		}
		if in.PaidAmount.IsNegative() {
			return nil, shared.NewDomainError("VALIDATION",
				fmt.Sprintf("Detail line %d has a negative paid amount", in.LineNumber))
		}
		codes := in.AdjustmentCodes
		if codes == nil {
			codes = AdjustmentCodes{}
		}
		r.Details = append(r.Details, RemittanceDetail{
			ID:              uuid.New(),
			RemittanceID:    r.ID,
			LineNumber:      in.LineNumber,
			ClaimNumber:     in.ClaimNumber,
			ClaimID:         in.ClaimID,
			PatientName:     in.PatientName,
			ServiceDate:     in.ServiceDate,
			BilledAmount:    in.BilledAmount,
			PaidAmount:      in.PaidAmount,
			AdjustmentCodes: codes,
		})
		total = total.Add(in.PaidAmount)
	}
	r.TotalAmount = total

	r.AddDomainEvent(NewRemittanceImportedEvent(r))

	return r, nil
}

// SetArchiveKey records where the raw file was archived
func (r *RemittanceInfo) SetArchiveKey(key string) {
	r.ArchiveKey = key
	r.UpdatedAt = time.Now()
}

// ResolveDetail links a detail line to a claim in the Claims system
func (r *RemittanceInfo) ResolveDetail(detailID, claimID uuid.UUID) error {
	for i := range r.Details {
		if r.Details[i].ID == detailID {
			r.Details[i].ClaimID = &claimID
			r.UpdatedAt = time.Now()
			return nil
		}
	}
	return shared.NewDomainError("NOT_FOUND", "Remittance detail not found")
}

// ClaimNumbers returns the distinct claim numbers referenced by this remittance
func (r *RemittanceInfo) ClaimNumbers() []string {
	seen := make(map[string]bool, len(r.Details))
	numbers := make([]string, 0, len(r.Details))
	for i := range r.Details {
		n := r.Details[i].ClaimNumber
		if !seen[n] {
			seen[n] = true
			numbers = append(numbers, n)
		}
	}
	return numbers
}

// ResolvedClaimIDs returns the set of claim IDs resolved from detail lines
func (r *RemittanceInfo) ResolvedClaimIDs() map[uuid.UUID]bool {
	ids := make(map[uuid.UUID]bool)
	for i := range r.Details {
		if r.Details[i].ClaimID != nil {
			ids[*r.Details[i].ClaimID] = true
		}
	}
	return ids
}

// RemittanceImportedEvent is raised when a remittance file is ingested
type RemittanceImportedEvent struct {
	shared.BaseDomainEvent
	PayerID          uuid.UUID       `json:"payer_id"`
	RemittanceNumber string          `json:"remittance_number"`
	FileType         FileType        `json:"file_type"`
	FileName         string          `json:"file_name"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	LineCount        int             `json:"line_count"`
}

// NewRemittanceImportedEvent creates a RemittanceImportedEvent
func NewRemittanceImportedEvent(r *RemittanceInfo) *RemittanceImportedEvent {
	return &RemittanceImportedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventRemittanceImported, "RemittanceInfo", r.ID),
		PayerID:          r.PayerID,
		RemittanceNumber: r.RemittanceNumber,
		FileType:         r.FileType,
		FileName:         r.FileName,
		TotalAmount:      r.TotalAmount,
		LineCount:        len(r.Details),
	}
}
