package reconciliation

import (
	"github.com/google/uuid"
	"github.com/remitflow/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

const aggregateTypePayment = "Payment"

// Event type constants
const (
	EventPaymentCreated          = "payment.created"
	EventPaymentAllocated        = "payment.allocated"
	EventPaymentReconciled       = "payment.reconciled"
	EventReconciliationUndone    = "payment.reconciliation_undone"
	EventPaymentExceptionFlagged = "payment.exception_flagged"
	EventPaymentExceptionCleared = "payment.exception_cleared"
	EventRemittanceImported      = "remittance.imported"
)

// PaymentCreatedEvent is raised when a payment is recorded
type PaymentCreatedEvent struct {
	shared.BaseDomainEvent
	PayerID         uuid.UUID       `json:"payer_id"`
	PaymentAmount   decimal.Decimal `json:"payment_amount"`
	PaymentMethod   PaymentMethod   `json:"payment_method"`
	ReferenceNumber string          `json:"reference_number"`
}

// NewPaymentCreatedEvent creates a PaymentCreatedEvent
func NewPaymentCreatedEvent(p *Payment) *PaymentCreatedEvent {
	return &PaymentCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventPaymentCreated, aggregateTypePayment, p.ID),
		PayerID:         p.PayerID,
		PaymentAmount:   p.PaymentAmount,
		PaymentMethod:   p.PaymentMethod,
		ReferenceNumber: p.ReferenceNumber,
	}
}

// PaymentAllocatedEvent is raised when an allocation request is applied
type PaymentAllocatedEvent struct {
	shared.BaseDomainEvent
	AllocatedAmount decimal.Decimal      `json:"allocated_amount"`
	TotalAllocated  decimal.Decimal      `json:"total_allocated"`
	Status          ReconciliationStatus `json:"status"`
}

// NewPaymentAllocatedEvent creates a PaymentAllocatedEvent
func NewPaymentAllocatedEvent(p *Payment, requestAmount decimal.Decimal) *PaymentAllocatedEvent {
	return &PaymentAllocatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventPaymentAllocated, aggregateTypePayment, p.ID),
		AllocatedAmount: requestAmount,
		TotalAllocated:  p.AllocatedAmount(),
		Status:          p.Status,
	}
}

// PaymentReconciledEvent is raised when a payment becomes fully reconciled
type PaymentReconciledEvent struct {
	shared.BaseDomainEvent
	PayerID       uuid.UUID       `json:"payer_id"`
	PaymentAmount decimal.Decimal `json:"payment_amount"`
	ClaimCount    int             `json:"claim_count"`
}

// NewPaymentReconciledEvent creates a PaymentReconciledEvent
func NewPaymentReconciledEvent(p *Payment) *PaymentReconciledEvent {
	return &PaymentReconciledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventPaymentReconciled, aggregateTypePayment, p.ID),
		PayerID:         p.PayerID,
		PaymentAmount:   p.PaymentAmount,
		ClaimCount:      len(p.ClaimPayments),
	}
}

// ReconciliationUndoneEvent is raised when allocations are removed
type ReconciliationUndoneEvent struct {
	shared.BaseDomainEvent
	AffectedClaimIDs []uuid.UUID `json:"affected_claim_ids"`
}

// NewReconciliationUndoneEvent creates a ReconciliationUndoneEvent
func NewReconciliationUndoneEvent(p *Payment, claimIDs []uuid.UUID) *ReconciliationUndoneEvent {
	return &ReconciliationUndoneEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventReconciliationUndone, aggregateTypePayment, p.ID),
		AffectedClaimIDs: claimIDs,
	}
}

// PaymentExceptionFlaggedEvent is raised when a payment is flagged for review
type PaymentExceptionFlaggedEvent struct {
	shared.BaseDomainEvent
	Reason string `json:"reason"`
}

// NewPaymentExceptionFlaggedEvent creates a PaymentExceptionFlaggedEvent
func NewPaymentExceptionFlaggedEvent(p *Payment, reason string) *PaymentExceptionFlaggedEvent {
	return &PaymentExceptionFlaggedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventPaymentExceptionFlagged, aggregateTypePayment, p.ID),
		Reason:          reason,
	}
}

// PaymentExceptionClearedEvent is raised when the exception flag is removed
type PaymentExceptionClearedEvent struct {
	shared.BaseDomainEvent
	Status ReconciliationStatus `json:"status"`
}

// NewPaymentExceptionClearedEvent creates a PaymentExceptionClearedEvent
func NewPaymentExceptionClearedEvent(p *Payment) *PaymentExceptionClearedEvent {
	return &PaymentExceptionClearedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventPaymentExceptionCleared, aggregateTypePayment, p.ID),
		Status:          p.Status,
	}
}
