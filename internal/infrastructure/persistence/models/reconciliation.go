package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/remitflow/backend/internal/domain/reconciliation"
	"github.com/shopspring/decimal"
)

// PaymentModel is the persistence model for reconciliation.Payment
type PaymentModel struct {
	AggregateModel
	PayerID         uuid.UUID       `gorm:"type:uuid;not null;index;index:idx_payments_payer_reference,unique"`
	PayerName       string          `gorm:"size:255;not null"`
	PaymentDate     time.Time       `gorm:"not null;index"`
	PaymentAmount   decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	PaymentMethod   string          `gorm:"size:20;not null"`
	ReferenceNumber string          `gorm:"size:100;not null;index:idx_payments_payer_reference,unique"`
	CheckNumber     string          `gorm:"size:100"`
	RemittanceID    *uuid.UUID      `gorm:"type:uuid;index"`
	Status          string          `gorm:"size:30;not null;index"`
	ExceptionReason string          `gorm:"type:text"`
	Notes           string          `gorm:"type:text"`

	ClaimPayments []ClaimPaymentModel `gorm:"foreignKey:PaymentID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for PaymentModel
func (PaymentModel) TableName() string {
	return "payments"
}

// ClaimPaymentModel is the persistence model for reconciliation.ClaimPayment
type ClaimPaymentModel struct {
	BaseModel
	PaymentID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	ClaimID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	ClaimNumber string          `gorm:"size:100;not null"`
	PaidAmount  decimal.Decimal `gorm:"type:numeric(14,2);not null"`

	Adjustments []PaymentAdjustmentModel `gorm:"foreignKey:ClaimPaymentID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for ClaimPaymentModel
func (ClaimPaymentModel) TableName() string {
	return "claim_payments"
}

// PaymentAdjustmentModel is the persistence model for reconciliation.PaymentAdjustment
type PaymentAdjustmentModel struct {
	ID             uuid.UUID       `gorm:"type:uuid;primary_key"`
	ClaimPaymentID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Type           string          `gorm:"size:20;not null"`
	Code           string          `gorm:"size:20"`
	Amount         decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	Description    string          `gorm:"type:text"`
}

// TableName specifies the table name for PaymentAdjustmentModel
func (PaymentAdjustmentModel) TableName() string {
	return "payment_adjustments"
}

// RemittanceModel is the persistence model for reconciliation.RemittanceInfo
type RemittanceModel struct {
	AggregateModel
	PayerID          uuid.UUID       `gorm:"type:uuid;not null;index;index:idx_remittances_payer_number,unique"`
	PayerName        string          `gorm:"size:255;not null"`
	RemittanceNumber string          `gorm:"size:100;not null;index:idx_remittances_payer_number,unique"`
	RemittanceDate   time.Time       `gorm:"not null;index"`
	CheckNumber      string          `gorm:"size:100"`
	TotalAmount      decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	FileType         string          `gorm:"size:20;not null"`
	FileName         string          `gorm:"size:255;not null"`
	FileHash         string          `gorm:"size:64;not null;uniqueIndex"`
	ArchiveKey       string          `gorm:"size:512"`
	ImportedAt       time.Time       `gorm:"not null"`

	Details []RemittanceDetailModel `gorm:"foreignKey:RemittanceID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for RemittanceModel
func (RemittanceModel) TableName() string {
	return "remittances"
}

// RemittanceDetailModel is the persistence model for reconciliation.RemittanceDetail
type RemittanceDetailModel struct {
	ID              uuid.UUID                      `gorm:"type:uuid;primary_key"`
	RemittanceID    uuid.UUID                      `gorm:"type:uuid;not null;index"`
	LineNumber      int                            `gorm:"not null"`
	ClaimNumber     string                         `gorm:"size:100;not null;index"`
	ClaimID         *uuid.UUID                     `gorm:"type:uuid;index"`
	PatientName     string                         `gorm:"size:255"`
	ServiceDate     *time.Time                     ``
	BilledAmount    decimal.Decimal                `gorm:"type:numeric(14,2);not null"`
	PaidAmount      decimal.Decimal                `gorm:"type:numeric(14,2);not null"`
	AdjustmentCodes reconciliation.AdjustmentCodes `gorm:"type:jsonb"`
}

// TableName specifies the table name for RemittanceDetailModel
func (RemittanceDetailModel) TableName() string {
	return "remittance_details"
}

// ===================== Conversions =====================

// ToDomain converts PaymentModel to the domain aggregate
func (m *PaymentModel) ToDomain() *reconciliation.Payment {
	p := &reconciliation.Payment{
		PayerID:         m.PayerID,
		PayerName:       m.PayerName,
		PaymentDate:     m.PaymentDate,
		PaymentAmount:   m.PaymentAmount,
		PaymentMethod:   reconciliation.PaymentMethod(m.PaymentMethod),
		ReferenceNumber: m.ReferenceNumber,
		CheckNumber:     m.CheckNumber,
		RemittanceID:    m.RemittanceID,
		Status:          reconciliation.ReconciliationStatus(m.Status),
		ExceptionReason: m.ExceptionReason,
		Notes:           m.Notes,
		ClaimPayments:   make([]reconciliation.ClaimPayment, 0, len(m.ClaimPayments)),
	}
	m.PopulateAggregateRoot(&p.BaseAggregateRoot)
	for i := range m.ClaimPayments {
		p.ClaimPayments = append(p.ClaimPayments, *m.ClaimPayments[i].ToDomain())
	}
	return p
}

// PaymentModelFromDomain converts the domain aggregate to PaymentModel
func PaymentModelFromDomain(p *reconciliation.Payment) *PaymentModel {
	m := &PaymentModel{
		PayerID:         p.PayerID,
		PayerName:       p.PayerName,
		PaymentDate:     p.PaymentDate,
		PaymentAmount:   p.PaymentAmount,
		PaymentMethod:   p.PaymentMethod.String(),
		ReferenceNumber: p.ReferenceNumber,
		CheckNumber:     p.CheckNumber,
		RemittanceID:    p.RemittanceID,
		Status:          p.Status.String(),
		ExceptionReason: p.ExceptionReason,
		Notes:           p.Notes,
		ClaimPayments:   make([]ClaimPaymentModel, 0, len(p.ClaimPayments)),
	}
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	for i := range p.ClaimPayments {
		m.ClaimPayments = append(m.ClaimPayments, *ClaimPaymentModelFromDomain(&p.ClaimPayments[i]))
	}
	return m
}

// ToDomain converts ClaimPaymentModel to the domain entity
func (m *ClaimPaymentModel) ToDomain() *reconciliation.ClaimPayment {
	cp := &reconciliation.ClaimPayment{
		ID:          m.ID,
		PaymentID:   m.PaymentID,
		ClaimID:     m.ClaimID,
		ClaimNumber: m.ClaimNumber,
		PaidAmount:  m.PaidAmount,
		Adjustments: make([]reconciliation.PaymentAdjustment, 0, len(m.Adjustments)),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	for _, adj := range m.Adjustments {
		cp.Adjustments = append(cp.Adjustments, reconciliation.PaymentAdjustment{
			ID:             adj.ID,
			ClaimPaymentID: adj.ClaimPaymentID,
			Type:           reconciliation.AdjustmentType(adj.Type),
			Code:           adj.Code,
			Amount:         adj.Amount,
			Description:    adj.Description,
		})
	}
	return cp
}

// ClaimPaymentModelFromDomain converts the domain entity to ClaimPaymentModel
func ClaimPaymentModelFromDomain(cp *reconciliation.ClaimPayment) *ClaimPaymentModel {
	m := &ClaimPaymentModel{
		BaseModel: BaseModel{
			ID:        cp.ID,
			CreatedAt: cp.CreatedAt,
			UpdatedAt: cp.UpdatedAt,
		},
		PaymentID:   cp.PaymentID,
		ClaimID:     cp.ClaimID,
		ClaimNumber: cp.ClaimNumber,
		PaidAmount:  cp.PaidAmount,
		Adjustments: make([]PaymentAdjustmentModel, 0, len(cp.Adjustments)),
	}
	for _, adj := range cp.Adjustments {
		m.Adjustments = append(m.Adjustments, PaymentAdjustmentModel{
			ID:             adj.ID,
			ClaimPaymentID: adj.ClaimPaymentID,
			Type:           string(adj.Type),
			Code:           adj.Code,
			Amount:         adj.Amount,
			Description:    adj.Description,
		})
	}
	return m
}

// ToDomain converts RemittanceModel to the domain aggregate
func (m *RemittanceModel) ToDomain() *reconciliation.RemittanceInfo {
	r := &reconciliation.RemittanceInfo{
		PayerID:          m.PayerID,
		PayerName:        m.PayerName,
		RemittanceNumber: m.RemittanceNumber,
		RemittanceDate:   m.RemittanceDate,
		CheckNumber:      m.CheckNumber,
		TotalAmount:      m.TotalAmount,
		FileType:         reconciliation.FileType(m.FileType),
		FileName:         m.FileName,
		FileHash:         m.FileHash,
		ArchiveKey:       m.ArchiveKey,
		ImportedAt:       m.ImportedAt,
		Details:          make([]reconciliation.RemittanceDetail, 0, len(m.Details)),
	}
	m.PopulateAggregateRoot(&r.BaseAggregateRoot)
	for _, d := range m.Details {
		r.Details = append(r.Details, reconciliation.RemittanceDetail{
			ID:              d.ID,
			RemittanceID:    d.RemittanceID,
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
	return r
}

// RemittanceModelFromDomain converts the domain aggregate to RemittanceModel
func RemittanceModelFromDomain(r *reconciliation.RemittanceInfo) *RemittanceModel {
	m := &RemittanceModel{
		PayerID:          r.PayerID,
		PayerName:        r.PayerName,
		RemittanceNumber: r.RemittanceNumber,
		RemittanceDate:   r.RemittanceDate,
		CheckNumber:      r.CheckNumber,
		TotalAmount:      r.TotalAmount,
		FileType:         r.FileType.String(),
		FileName:         r.FileName,
		FileHash:         r.FileHash,
		ArchiveKey:       r.ArchiveKey,
		ImportedAt:       r.ImportedAt,
		Details:          make([]RemittanceDetailModel, 0, len(r.Details)),
	}
	m.FromDomainAggregateRoot(r.BaseAggregateRoot)
	for _, d := range r.Details {
		m.Details = append(m.Details, RemittanceDetailModel{
			ID:              d.ID,
			RemittanceID:    d.RemittanceID,
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
	return m
}
