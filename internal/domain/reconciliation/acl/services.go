package acl

import (
	"context"

	"github.com/google/uuid"
)

// ClaimQuery is the filter for claim lookups against the Claims system
type ClaimQuery struct {
	PayerID         *uuid.UUID
	ProgramID       *uuid.UUID
	OutstandingOnly bool
	ClaimIDs        []uuid.UUID
	Limit           int
}

// ClaimQueryService reads claims from the external Claims system
type ClaimQueryService interface {
	// GetClaim returns a single claim by ID
	GetClaim(ctx context.Context, claimID uuid.UUID) (*ClaimRef, error)

	// GetClaims returns claims by IDs, preserving no particular order.
	// Unknown IDs are simply absent from the result.
	GetClaims(ctx context.Context, claimIDs []uuid.UUID) ([]ClaimRef, error)

	// FindClaims returns claims matching the query
	FindClaims(ctx context.Context, query ClaimQuery) ([]ClaimRef, error)

	// FindClaimsByNumbers resolves human-facing claim numbers, as they
	// appear on remittance advice, to claims. Unknown numbers are absent
	// from the result.
	FindClaimsByNumbers(ctx context.Context, claimNumbers []string) ([]ClaimRef, error)
}

// ClaimStatusNotifier pushes payment status changes back to the Claims system.
// Calls are best-effort; the caller records failures for retry rather than
// rolling back reconciliation state.
type ClaimStatusNotifier interface {
	// NotifyClaimPaid reports a new payment status for a claim
	NotifyClaimPaid(ctx context.Context, claimID uuid.UUID, status ClaimPaymentStatus) error

	// RevertClaimPayment asks the Claims system to roll back the status
	// change produced by the given payment
	RevertClaimPayment(ctx context.Context, claimID, paymentID uuid.UUID) error
}

// PayerRegistry resolves payers from the master payer list
type PayerRegistry interface {
	// GetPayer returns a payer by ID
	GetPayer(ctx context.Context, payerID uuid.UUID) (*PayerRef, error)

	// FindPayerByCode resolves a payer identifier found in a remittance file
	FindPayerByCode(ctx context.Context, code string) (*PayerRef, error)
}
