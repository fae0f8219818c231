package claims

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/remitflow/backend/internal/domain/reconciliation/acl"
)

// InMemory is a stub Claims system and payer registry backed by maps. It is
// used in local development and tests, where no Claims service is running.
type InMemory struct {
	mu       sync.RWMutex
	claims   map[uuid.UUID]acl.ClaimRef
	byNumber map[string]uuid.UUID
	payers   map[uuid.UUID]acl.PayerRef
	byCode   map[string]uuid.UUID

	// statuses records the last status pushed per claim
	statuses map[uuid.UUID]acl.ClaimPaymentStatus
}

// NewInMemory creates an empty in-memory Claims stub
func NewInMemory() *InMemory {
	return &InMemory{
		claims:   make(map[uuid.UUID]acl.ClaimRef),
		byNumber: make(map[string]uuid.UUID),
		payers:   make(map[uuid.UUID]acl.PayerRef),
		byCode:   make(map[string]uuid.UUID),
		statuses: make(map[uuid.UUID]acl.ClaimPaymentStatus),
	}
}

// SeedClaim adds or replaces a claim
func (m *InMemory) SeedClaim(claim acl.ClaimRef) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.claims[claim.ClaimID] = claim
	if claim.ClaimNumber != "" {
		m.byNumber[claim.ClaimNumber] = claim.ClaimID
	}
}

// SeedPayer adds or replaces a payer
func (m *InMemory) SeedPayer(payer acl.PayerRef) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payers[payer.PayerID] = payer
	if payer.PayerCode != "" {
		m.byCode[payer.PayerCode] = payer.PayerID
	}
}

// LastStatus returns the last payment status pushed for a claim
func (m *InMemory) LastStatus(claimID uuid.UUID) (acl.ClaimPaymentStatus, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	status, ok := m.statuses[claimID]
	return status, ok
}

// GetClaim returns a claim by ID, nil if absent
func (m *InMemory) GetClaim(ctx context.Context, claimID uuid.UUID) (*acl.ClaimRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if claim, ok := m.claims[claimID]; ok {
		return &claim, nil
	}
	return nil, nil
}

// GetClaims returns claims by IDs; unknown IDs are absent from the result
func (m *InMemory) GetClaims(ctx context.Context, claimIDs []uuid.UUID) ([]acl.ClaimRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]acl.ClaimRef, 0, len(claimIDs))
	for _, id := range claimIDs {
		if claim, ok := m.claims[id]; ok {
			result = append(result, claim)
		}
	}
	return result, nil
}

// FindClaims returns claims matching the query
func (m *InMemory) FindClaims(ctx context.Context, query acl.ClaimQuery) ([]acl.ClaimRef, error) {
	if len(query.ClaimIDs) > 0 {
		return m.GetClaims(ctx, query.ClaimIDs)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []acl.ClaimRef
	for _, claim := range m.claims {
		if query.PayerID != nil && claim.PayerID != *query.PayerID {
			continue
		}
		if query.ProgramID != nil && claim.ProgramID != *query.ProgramID {
			continue
		}
		if query.OutstandingOnly && !claim.HasOutstanding() {
			continue
		}
		result = append(result, claim)
		if query.Limit > 0 && len(result) >= query.Limit {
			break
		}
	}
	return result, nil
}

// FindClaimsByNumbers resolves claim numbers; unknown numbers are absent
func (m *InMemory) FindClaimsByNumbers(ctx context.Context, claimNumbers []string) ([]acl.ClaimRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]acl.ClaimRef, 0, len(claimNumbers))
	for _, number := range claimNumbers {
		if id, ok := m.byNumber[number]; ok {
			result = append(result, m.claims[id])
		}
	}
	return result, nil
}

// NotifyClaimPaid records the payment status for a claim
func (m *InMemory) NotifyClaimPaid(ctx context.Context, claimID uuid.UUID, status acl.ClaimPaymentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[claimID] = status
	return nil
}

// RevertClaimPayment rolls the claim's status back to SUBMITTED
func (m *InMemory) RevertClaimPayment(ctx context.Context, claimID, paymentID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[claimID] = acl.ClaimStatusSubmitted
	return nil
}

// GetPayer returns a payer by ID, nil if absent
func (m *InMemory) GetPayer(ctx context.Context, payerID uuid.UUID) (*acl.PayerRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if payer, ok := m.payers[payerID]; ok {
		return &payer, nil
	}
	return nil, nil
}

// FindPayerByCode resolves a payer code, nil if no payer carries it
func (m *InMemory) FindPayerByCode(ctx context.Context, code string) (*acl.PayerRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.byCode[code]; ok {
		payer := m.payers[id]
		return &payer, nil
	}
	return nil, nil
}

// Interface assertions
var (
	_ acl.ClaimQueryService   = (*InMemory)(nil)
	_ acl.ClaimStatusNotifier = (*InMemory)(nil)
	_ acl.PayerRegistry       = (*InMemory)(nil)
)
