package reconciliation

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/remitflow/backend/internal/domain/shared"
	"github.com/remitflow/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// PaymentMethod represents how a payer payment was tendered
type PaymentMethod string

const (
	PaymentMethodEFT        PaymentMethod = "EFT"
	PaymentMethodCheck      PaymentMethod = "CHECK"
	PaymentMethodCreditCard PaymentMethod = "CREDIT_CARD"
	PaymentMethodCash       PaymentMethod = "CASH"
	PaymentMethodOther      PaymentMethod = "OTHER"
)

// IsValid checks if the payment method is valid
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodEFT, PaymentMethodCheck, PaymentMethodCreditCard,
		PaymentMethodCash, PaymentMethodOther:
		return true
	}
	return false
}

// String returns the string representation of PaymentMethod
func (m PaymentMethod) String() string {
	return string(m)
}

// ReconciliationStatus represents the allocation lifecycle of a Payment
type ReconciliationStatus string

const (
	StatusUnreconciled        ReconciliationStatus = "UNRECONCILED"         // No amount allocated yet
	StatusPartiallyReconciled ReconciliationStatus = "PARTIALLY_RECONCILED" // 0 < allocated < total
	StatusReconciled          ReconciliationStatus = "RECONCILED"           // allocated == total
	StatusException           ReconciliationStatus = "EXCEPTION"            // Flagged data conflict, needs review
)

// IsValid checks if the status is a valid ReconciliationStatus
func (s ReconciliationStatus) IsValid() bool {
	switch s {
	case StatusUnreconciled, StatusPartiallyReconciled, StatusReconciled, StatusException:
		return true
	}
	return false
}

// String returns the string representation of ReconciliationStatus
func (s ReconciliationStatus) String() string {
	return string(s)
}

// CanAllocate returns true if allocations can be applied in this status
func (s ReconciliationStatus) CanAllocate() bool {
	return s == StatusUnreconciled || s == StatusPartiallyReconciled
}

// AdjustmentType classifies a non-paid reduction applied during reconciliation
type AdjustmentType string

const (
	AdjustmentContractual AdjustmentType = "CONTRACTUAL"
	AdjustmentDeductible  AdjustmentType = "DEDUCTIBLE"
	AdjustmentCoinsurance AdjustmentType = "COINSURANCE"
	AdjustmentCopay       AdjustmentType = "COPAY"
	AdjustmentNoncovered  AdjustmentType = "NONCOVERED"
	AdjustmentTransfer    AdjustmentType = "TRANSFER"
	AdjustmentOther       AdjustmentType = "OTHER"
)

// IsValid checks if the adjustment type is valid
func (t AdjustmentType) IsValid() bool {
	switch t {
	case AdjustmentContractual, AdjustmentDeductible, AdjustmentCoinsurance,
		AdjustmentCopay, AdjustmentNoncovered, AdjustmentTransfer, AdjustmentOther:
		return true
	}
	return false
}

// PaymentAdjustment is a non-paid reduction recorded against a claim payment.
// Owned by its ClaimPayment.
type PaymentAdjustment struct {
	ID             uuid.UUID       `json:"id"`
	ClaimPaymentID uuid.UUID       `json:"claim_payment_id"`
	Type           AdjustmentType  `json:"type"`
	Code           string          `json:"code"`
	Amount         decimal.Decimal `json:"amount"`
	Description    string          `json:"description,omitempty"`
}

// ClaimPayment is the amount of a Payment allocated to one claim, with its
// adjustments. Owned exclusively by its Payment; references the claim by ID.
type ClaimPayment struct {
	ID          uuid.UUID           `json:"id"`
	PaymentID   uuid.UUID           `json:"payment_id"`
	ClaimID     uuid.UUID           `json:"claim_id"`
	ClaimNumber string              `json:"claim_number"`
	PaidAmount  decimal.Decimal     `json:"paid_amount"`
	Adjustments []PaymentAdjustment `json:"adjustments"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// AdjustmentTotal returns the sum of this claim payment's adjustments
func (cp *ClaimPayment) AdjustmentTotal() decimal.Decimal {
	total := decimal.Zero
	for _, adj := range cp.Adjustments {
		total = total.Add(adj.Amount)
	}
	return total
}

// AllocatedAmount returns paid amount plus adjustments
func (cp *ClaimPayment) AllocatedAmount() decimal.Decimal {
	return cp.PaidAmount.Add(cp.AdjustmentTotal())
}

// AdjustmentInput describes one adjustment in an allocation request
type AdjustmentInput struct {
	Type        AdjustmentType
	Code        string
	Amount      decimal.Decimal
	Description string
}

// ClaimAllocation describes one claim's share of an allocation request
type ClaimAllocation struct {
	ClaimID     uuid.UUID
	ClaimNumber string
	Amount      decimal.Decimal
	Adjustments []AdjustmentInput
}

// AllocatedTotal returns paid amount plus adjustment amounts for the request line
func (a ClaimAllocation) AllocatedTotal() decimal.Decimal {
	total := a.Amount
	for _, adj := range a.Adjustments {
		total = total.Add(adj.Amount)
	}
	return total
}

// Payment is the aggregate root for a payer payment under reconciliation.
// It owns its ClaimPayments (and their adjustments); claims themselves are
// owned by the external Claims system and referenced by ID only.
type Payment struct {
	shared.BaseAggregateRoot
	PayerID         uuid.UUID            `json:"payer_id"`
	PayerName       string               `json:"payer_name"`
	PaymentDate     time.Time            `json:"payment_date"`
	PaymentAmount   decimal.Decimal      `json:"payment_amount"`
	PaymentMethod   PaymentMethod        `json:"payment_method"`
	ReferenceNumber string               `json:"reference_number"`
	CheckNumber     string               `json:"check_number,omitempty"`
	RemittanceID    *uuid.UUID           `json:"remittance_id,omitempty"`
	Status          ReconciliationStatus `json:"status"`
	ExceptionReason string               `json:"exception_reason,omitempty"`
	Notes           string               `json:"notes,omitempty"`
	ClaimPayments   []ClaimPayment       `json:"claim_payments"`
}

// NewPayment creates a new unreconciled payment
func NewPayment(
	payerID uuid.UUID,
	payerName string,
	amount valueobject.Money,
	method PaymentMethod,
	paymentDate time.Time,
	referenceNumber string,
) (*Payment, error) {
	if payerID == uuid.Nil {
		return nil, shared.NewDomainError("VALIDATION", "Payer ID cannot be empty")
	}
	if payerName == "" {
		return nil, shared.NewDomainError("VALIDATION", "Payer name cannot be empty")
	}
	if !amount.IsPositive() {
		return nil, shared.NewDomainError("VALIDATION", "Payment amount must be positive")
	}
	if !method.IsValid() {
		return nil, shared.NewDomainError("VALIDATION", fmt.Sprintf("Invalid payment method %q", method))
	}
	if paymentDate.IsZero() {
		return nil, shared.NewDomainError("VALIDATION", "Payment date is required")
	}

	p := &Payment{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		PayerID:           payerID,
		PayerName:         payerName,
		PaymentDate:       paymentDate,
		PaymentAmount:     amount.Amount(),
		PaymentMethod:     method,
		ReferenceNumber:   referenceNumber,
		Status:            StatusUnreconciled,
		ClaimPayments:     []ClaimPayment{},
	}

	p.AddDomainEvent(NewPaymentCreatedEvent(p))

	return p, nil
}

// AllocatedAmount returns the total already allocated across claim payments,
// including adjustments.
func (p *Payment) AllocatedAmount() decimal.Decimal {
	total := decimal.Zero
	for i := range p.ClaimPayments {
		total = total.Add(p.ClaimPayments[i].AllocatedAmount())
	}
	return total
}

// UnallocatedAmount returns the amount not yet allocated to any claim
func (p *Payment) UnallocatedAmount() decimal.Decimal {
	return p.PaymentAmount.Sub(p.AllocatedAmount())
}

// Allocate applies an allocation request to the payment. The request is
// validated as a whole; on any failure nothing is applied.
func (p *Payment) Allocate(allocations []ClaimAllocation, notes string) error {
	if p.Status == StatusException {
		return shared.NewDomainError("INVALID_STATE",
			"Cannot allocate a payment flagged as exception; clear the exception first")
	}
	if len(allocations) == 0 {
		return shared.NewDomainError("VALIDATION", "At least one claim allocation is required")
	}

	seen := make(map[uuid.UUID]bool, len(allocations))
	requestTotal := decimal.Zero
	for _, alloc := range allocations {
		if alloc.ClaimID == uuid.Nil {
			return shared.NewDomainError("VALIDATION", "Claim ID cannot be empty")
		}
		if seen[alloc.ClaimID] {
			return shared.NewDomainError("DUPLICATE_CLAIM_ALLOCATION",
				fmt.Sprintf("Claim %s appears more than once in the allocation request", alloc.ClaimID))
		}
		seen[alloc.ClaimID] = true

		if alloc.Amount.IsNegative() {
			return shared.NewDomainError("VALIDATION", "Paid amount cannot be negative")
		}
		for _, adj := range alloc.Adjustments {
			if !adj.Type.IsValid() {
				return shared.NewDomainError("VALIDATION", fmt.Sprintf("Invalid adjustment type %q", adj.Type))
			}
			if adj.Amount.IsNegative() {
				return shared.NewDomainError("VALIDATION", "Adjustment amount cannot be negative")
			}
		}
		lineTotal := alloc.AllocatedTotal()
		if !lineTotal.IsPositive() {
			return shared.NewDomainError("VALIDATION",
				fmt.Sprintf("Allocation for claim %s must have a positive total", alloc.ClaimID))
		}
		requestTotal = requestTotal.Add(lineTotal)
	}

	newTotal := p.AllocatedAmount().Add(requestTotal)
	if newTotal.GreaterThan(p.PaymentAmount) {
		return shared.NewDomainError("OVER_ALLOCATION",
			fmt.Sprintf("Allocation of %s would exceed payment amount %s (already allocated %s)",
				requestTotal.StringFixed(2), p.PaymentAmount.StringFixed(2), p.AllocatedAmount().StringFixed(2)))
	}

	now := time.Now()
	for _, alloc := range allocations {
		p.upsertClaimPayment(alloc, now)
	}
	if notes != "" {
		p.Notes = notes
	}

	p.rederiveStatus()
	p.UpdatedAt = now

	p.AddDomainEvent(NewPaymentAllocatedEvent(p, requestTotal))
	if p.Status == StatusReconciled {
		p.AddDomainEvent(NewPaymentReconciledEvent(p))
	}

	return nil
}

// upsertClaimPayment merges an allocation line into an existing claim payment
// or creates a new one.
func (p *Payment) upsertClaimPayment(alloc ClaimAllocation, now time.Time) {
	for i := range p.ClaimPayments {
		if p.ClaimPayments[i].ClaimID == alloc.ClaimID {
			cp := &p.ClaimPayments[i]
			cp.PaidAmount = cp.PaidAmount.Add(alloc.Amount)
			for _, adj := range alloc.Adjustments {
				cp.Adjustments = append(cp.Adjustments, PaymentAdjustment{
					ID:             uuid.New(),
					ClaimPaymentID: cp.ID,
					Type:           adj.Type,
					Code:           adj.Code,
					Amount:         adj.Amount,
					Description:    adj.Description,
				})
			}
			cp.UpdatedAt = now
			return
		}
	}

	cp := ClaimPayment{
		ID:          uuid.New(),
		PaymentID:   p.ID,
		ClaimID:     alloc.ClaimID,
		ClaimNumber: alloc.ClaimNumber,
		PaidAmount:  alloc.Amount,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, adj := range alloc.Adjustments {
		cp.Adjustments = append(cp.Adjustments, PaymentAdjustment{
			ID:             uuid.New(),
			ClaimPaymentID: cp.ID,
			Type:           adj.Type,
			Code:           adj.Code,
			Amount:         adj.Amount,
			Description:    adj.Description,
		})
	}
	p.ClaimPayments = append(p.ClaimPayments, cp)
}

// ClearAllocations removes all claim payments from the payment. Idempotent:
// clearing an already-clean payment is a no-op. Returns the claim IDs that
// were affected.
func (p *Payment) ClearAllocations() []uuid.UUID {
	if len(p.ClaimPayments) == 0 {
		return nil
	}

	affected := make([]uuid.UUID, 0, len(p.ClaimPayments))
	for i := range p.ClaimPayments {
		affected = append(affected, p.ClaimPayments[i].ClaimID)
	}

	now := time.Now()
	p.ClaimPayments = []ClaimPayment{}
	p.rederiveStatus()
	p.UpdatedAt = now

	p.AddDomainEvent(NewReconciliationUndoneEvent(p, affected))

	return affected
}

// FlagException marks the payment as an exception requiring manual review.
// Reachable from any state.
func (p *Payment) FlagException(reason string) error {
	if reason == "" {
		return shared.NewDomainError("VALIDATION", "Exception reason is required")
	}
	p.Status = StatusException
	p.ExceptionReason = reason
	p.UpdatedAt = time.Now()
	p.AddDomainEvent(NewPaymentExceptionFlaggedEvent(p, reason))
	return nil
}

// ClearException removes the exception flag and rederives the status from
// the allocated amounts.
func (p *Payment) ClearException() error {
	if p.Status != StatusException {
		return shared.NewDomainError("INVALID_STATE", "Payment is not flagged as exception")
	}
	now := time.Now()
	p.ExceptionReason = ""
	p.Status = StatusUnreconciled
	p.rederiveStatus()
	p.UpdatedAt = now
	p.AddDomainEvent(NewPaymentExceptionClearedEvent(p))
	return nil
}

// rederiveStatus recomputes the status from allocated vs total. The exception
// flag is sticky: a flagged payment keeps its status until explicitly cleared.
func (p *Payment) rederiveStatus() {
	if p.Status == StatusException {
		return
	}
	allocated := p.AllocatedAmount()
	switch {
	case allocated.IsZero():
		p.Status = StatusUnreconciled
	case allocated.Equal(p.PaymentAmount):
		p.Status = StatusReconciled
	default:
		p.Status = StatusPartiallyReconciled
	}
}

// CanDelete returns nil if the payment may be deleted. Payments with any
// claim payment are part of the financial audit trail and must not be
// deleted; undo the reconciliation first.
func (p *Payment) CanDelete() error {
	if len(p.ClaimPayments) > 0 {
		return shared.NewDomainError("PAYMENT_HAS_ALLOCATIONS",
			"Payment has claim allocations and cannot be deleted; undo the reconciliation first")
	}
	return nil
}

// AttachRemittance links the payment to the remittance that produced it.
// Set once at ingestion time.
func (p *Payment) AttachRemittance(remittanceID uuid.UUID) error {
	if p.RemittanceID != nil {
		return shared.NewDomainError("INVALID_STATE", "Payment is already linked to a remittance")
	}
	p.RemittanceID = &remittanceID
	p.UpdatedAt = time.Now()
	return nil
}

// FindClaimPayment returns the claim payment for a claim ID, or nil
func (p *Payment) FindClaimPayment(claimID uuid.UUID) *ClaimPayment {
	for i := range p.ClaimPayments {
		if p.ClaimPayments[i].ClaimID == claimID {
			return &p.ClaimPayments[i]
		}
	}
	return nil
}

// SetNotes sets the free-form notes
func (p *Payment) SetNotes(notes string) {
	p.Notes = notes
	p.UpdatedAt = time.Now()
}

// GetPaymentAmountMoney returns the payment amount as Money
func (p *Payment) GetPaymentAmountMoney() valueobject.Money {
	return valueobject.NewMoneyUSD(p.PaymentAmount)
}

// IsReconciled returns true if the payment is fully reconciled
func (p *Payment) IsReconciled() bool {
	return p.Status == StatusReconciled
}

// IsException returns true if the payment is flagged as exception
func (p *Payment) IsException() bool {
	return p.Status == StatusException
}
