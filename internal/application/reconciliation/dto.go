package reconciliation

import (
	"time"

	"github.com/google/uuid"
	"github.com/remitflow/backend/internal/domain/reconciliation"
	"github.com/shopspring/decimal"
)

// PaymentResponse represents a payment in API responses
type PaymentResponse struct {
	ID                uuid.UUID              `json:"id"`
	PayerID           uuid.UUID              `json:"payer_id"`
	PayerName         string                 `json:"payer_name"`
	PaymentDate       time.Time              `json:"payment_date"`
	PaymentAmount     decimal.Decimal        `json:"payment_amount"`
	AllocatedAmount   decimal.Decimal        `json:"allocated_amount"`
	UnallocatedAmount decimal.Decimal        `json:"unallocated_amount"`
	PaymentMethod     string                 `json:"payment_method"`
	ReferenceNumber   string                 `json:"reference_number"`
	CheckNumber       string                 `json:"check_number,omitempty"`
	RemittanceID      *uuid.UUID             `json:"remittance_id,omitempty"`
	Status            string                 `json:"status"`
	ExceptionReason   string                 `json:"exception_reason,omitempty"`
	Notes             string                 `json:"notes,omitempty"`
	ClaimPayments     []ClaimPaymentResponse `json:"claim_payments"`
	CreatedAt         time.Time              `json:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
	Version           int                    `json:"version"`
}

// ClaimPaymentResponse represents one claim allocation in API responses
type ClaimPaymentResponse struct {
	ID          uuid.UUID            `json:"id"`
	ClaimID     uuid.UUID            `json:"claim_id"`
	ClaimNumber string               `json:"claim_number"`
	PaidAmount  decimal.Decimal      `json:"paid_amount"`
	Adjustments []AdjustmentResponse `json:"adjustments"`
	CreatedAt   time.Time            `json:"created_at"`
}

// AdjustmentResponse represents one adjustment in API responses
type AdjustmentResponse struct {
	ID          uuid.UUID       `json:"id"`
	Type        string          `json:"type"`
	Code        string          `json:"code,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
}

// RemittanceResponse represents a remittance in API responses
type RemittanceResponse struct {
	ID               uuid.UUID                  `json:"id"`
	PayerID          uuid.UUID                  `json:"payer_id"`
	PayerName        string                     `json:"payer_name"`
	RemittanceNumber string                     `json:"remittance_number"`
	RemittanceDate   time.Time                  `json:"remittance_date"`
	CheckNumber      string                     `json:"check_number,omitempty"`
	TotalAmount      decimal.Decimal            `json:"total_amount"`
	FileType         string                     `json:"file_type"`
	FileName         string                     `json:"file_name"`
	ArchiveKey       string                     `json:"archive_key,omitempty"`
	ImportedAt       time.Time                  `json:"imported_at"`
	DetailCount      int                        `json:"detail_count"`
	Details          []RemittanceDetailResponse `json:"details,omitempty"`
}

// RemittanceDetailResponse represents one remittance line in API responses
type RemittanceDetailResponse struct {
	ID              uuid.UUID                  `json:"id"`
	LineNumber      int                        `json:"line_number"`
	ClaimNumber     string                     `json:"claim_number"`
	ClaimID         *uuid.UUID                 `json:"claim_id,omitempty"`
	PatientName     string                     `json:"patient_name,omitempty"`
	ServiceDate     *time.Time                 `json:"service_date,omitempty"`
	BilledAmount    decimal.Decimal            `json:"billed_amount"`
	PaidAmount      decimal.Decimal            `json:"paid_amount"`
	AdjustmentCodes map[string]decimal.Decimal `json:"adjustment_codes,omitempty"`
}

func toPaymentResponse(p *reconciliation.Payment) *PaymentResponse {
	resp := &PaymentResponse{
		ID:                p.ID,
		PayerID:           p.PayerID,
		PayerName:         p.PayerName,
		PaymentDate:       p.PaymentDate,
		PaymentAmount:     p.PaymentAmount,
		AllocatedAmount:   p.AllocatedAmount(),
		UnallocatedAmount: p.UnallocatedAmount(),
		PaymentMethod:     p.PaymentMethod.String(),
		ReferenceNumber:   p.ReferenceNumber,
		CheckNumber:       p.CheckNumber,
		RemittanceID:      p.RemittanceID,
		Status:            p.Status.String(),
		ExceptionReason:   p.ExceptionReason,
		Notes:             p.Notes,
		ClaimPayments:     make([]ClaimPaymentResponse, 0, len(p.ClaimPayments)),
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
		Version:           p.GetVersion(),
	}
	for i := range p.ClaimPayments {
		resp.ClaimPayments = append(resp.ClaimPayments, toClaimPaymentResponse(&p.ClaimPayments[i]))
	}
	return resp
}

func toClaimPaymentResponse(cp *reconciliation.ClaimPayment) ClaimPaymentResponse {
	resp := ClaimPaymentResponse{
		ID:          cp.ID,
		ClaimID:     cp.ClaimID,
		ClaimNumber: cp.ClaimNumber,
		PaidAmount:  cp.PaidAmount,
		Adjustments: make([]AdjustmentResponse, 0, len(cp.Adjustments)),
		CreatedAt:   cp.CreatedAt,
	}
	for _, adj := range cp.Adjustments {
		resp.Adjustments = append(resp.Adjustments, AdjustmentResponse{
			ID:          adj.ID,
			Type:        string(adj.Type),
			Code:        adj.Code,
			Amount:      adj.Amount,
			Description: adj.Description,
		})
	}
	return resp
}

func toRemittanceResponse(r *reconciliation.RemittanceInfo, includeDetails bool) *RemittanceResponse {
	resp := &RemittanceResponse{
		ID:               r.ID,
		PayerID:          r.PayerID,
		PayerName:        r.PayerName,
		RemittanceNumber: r.RemittanceNumber,
		RemittanceDate:   r.RemittanceDate,
		CheckNumber:      r.CheckNumber,
		TotalAmount:      r.TotalAmount,
		FileType:         r.FileType.String(),
		FileName:         r.FileName,
		ArchiveKey:       r.ArchiveKey,
		ImportedAt:       r.ImportedAt,
		DetailCount:      len(r.Details),
	}
	if includeDetails {
		resp.Details = make([]RemittanceDetailResponse, 0, len(r.Details))
		for i := range r.Details {
			d := &r.Details[i]
			resp.Details = append(resp.Details, RemittanceDetailResponse{
				ID:              d.ID,
				LineNumber:      d.LineNumber,
				ClaimNumber:     d.ClaimNumber,
				ClaimID:         d.ClaimID,
				PatientName:     d.PatientName,
				ServiceDate:     d.ServiceDate,
				BilledAmount:    d.BilledAmount,
				PaidAmount:      d.PaidAmount,
				AdjustmentCodes: d.AdjustmentCodes,
			})
		}
	}
	return resp
}
