// Package acl holds the anti-corruption layer between the reconciliation
// bounded context and the external Claims system. Claims are owned elsewhere;
// reconciliation sees them only through these read models and ports.
package acl

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ClaimPaymentStatus is the payment status reported back to the Claims system
type ClaimPaymentStatus string

const (
	ClaimStatusSubmitted     ClaimPaymentStatus = "SUBMITTED"
	ClaimStatusPartiallyPaid ClaimPaymentStatus = "PARTIALLY_PAID"
	ClaimStatusPaid          ClaimPaymentStatus = "PAID"
	ClaimStatusDenied        ClaimPaymentStatus = "DENIED"
)

// IsValid checks if the claim payment status is valid
func (s ClaimPaymentStatus) IsValid() bool {
	switch s {
	case ClaimStatusSubmitted, ClaimStatusPartiallyPaid, ClaimStatusPaid, ClaimStatusDenied:
		return true
	}
	return false
}

// ClaimRef is a read model of an external claim, as much of it as
// reconciliation needs for matching, allocation validation and aging.
type ClaimRef struct {
	ClaimID           uuid.UUID          `json:"claim_id"`
	ClaimNumber       string             `json:"claim_number"`
	PayerID           uuid.UUID          `json:"payer_id"`
	PayerName         string             `json:"payer_name"`
	ProgramID         uuid.UUID          `json:"program_id"`
	ProgramName       string             `json:"program_name"`
	PatientName       string             `json:"patient_name"`
	ServiceDate       time.Time          `json:"service_date"`
	BilledAmount      decimal.Decimal    `json:"billed_amount"`
	PaidAmount        decimal.Decimal    `json:"paid_amount"`
	OutstandingAmount decimal.Decimal    `json:"outstanding_amount"`
	Status            ClaimPaymentStatus `json:"status"`
}

// HasOutstanding returns true if the claim still has an unpaid balance
func (c ClaimRef) HasOutstanding() bool {
	return c.OutstandingAmount.IsPositive()
}

// PayerRef is a read model of a payer from the payer registry
type PayerRef struct {
	PayerID   uuid.UUID `json:"payer_id"`
	Name      string    `json:"name"`
	PayerCode string    `json:"payer_code"`
	Active    bool      `json:"active"`
}
