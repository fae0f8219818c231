package reconciliation

import (
	"sort"

	"github.com/google/uuid"
	"github.com/remitflow/backend/internal/domain/reconciliation/acl"
	"github.com/shopspring/decimal"
)

// Match scoring weights. Scores are deterministic: the same payment and
// candidate set always produce the same ranked suggestions.
const (
	scoreRemittanceHit    = 40 // Claim appears in the payment's linked remittance
	scoreAmountMatch      = 30 // Claim outstanding equals the unallocated amount
	scoreDateProximityMax = 15 // Full marks at zero days, linear decay to zero at the window edge
	scoreSamePayer        = 15 // Claim belongs to the payment's payer

	// DateProximityWindowDays is the service-date window for proximity scoring
	DateProximityWindowDays = 90

	// DefaultAutoReconcileThreshold is the minimum confidence for
	// auto-reconciliation when the caller does not supply one
	DefaultAutoReconcileThreshold = 80
)

// amountMatchEpsilon tolerates sub-cent representation noise in amounts
var amountMatchEpsilon = decimal.NewFromFloat(0.01)

// MatchSuggestion is one ranked candidate claim for a payment
type MatchSuggestion struct {
	ClaimID           uuid.UUID       `json:"claim_id"`
	ClaimNumber       string          `json:"claim_number"`
	PatientName       string          `json:"patient_name,omitempty"`
	ServiceDate       string          `json:"service_date,omitempty"`
	OutstandingAmount decimal.Decimal `json:"outstanding_amount"`
	SuggestedAmount   decimal.Decimal `json:"suggested_amount"`
	Confidence        int             `json:"confidence"`
	RemittanceHit     bool            `json:"remittance_hit"`
}

// MatchService scores candidate claims against a payment. Pure computation:
// no storage, no side effects.
type MatchService struct{}

// NewMatchService creates a MatchService
func NewMatchService() *MatchService {
	return &MatchService{}
}

// SuggestMatches ranks candidate claims for the payment. remittanceClaims is
// the set of claim IDs resolved from the payment's linked remittance (empty
// when the payment has none). Candidates without outstanding balance are
// skipped. Suggested amounts are assigned greedily in rank order against the
// payment's unallocated amount.
func (s *MatchService) SuggestMatches(
	p *Payment,
	candidates []acl.ClaimRef,
	remittanceClaims map[uuid.UUID]bool,
) []MatchSuggestion {
	unallocated := p.UnallocatedAmount()
	if !unallocated.IsPositive() {
		return []MatchSuggestion{}
	}

	suggestions := make([]MatchSuggestion, 0, len(candidates))
	for _, claim := range candidates {
		if !claim.HasOutstanding() {
			continue
		}
		if p.FindClaimPayment(claim.ClaimID) != nil {
			continue
		}

		score := 0
		hit := remittanceClaims[claim.ClaimID]
		if hit {
			score += scoreRemittanceHit
		}
		if claim.OutstandingAmount.Sub(unallocated).Abs().LessThan(amountMatchEpsilon) {
			score += scoreAmountMatch
		}
		score += s.dateProximityScore(p, claim)
		if claim.PayerID == p.PayerID {
			score += scoreSamePayer
		}

		sugg := MatchSuggestion{
			ClaimID:           claim.ClaimID,
			ClaimNumber:       claim.ClaimNumber,
			PatientName:       claim.PatientName,
			OutstandingAmount: claim.OutstandingAmount,
			Confidence:        score,
			RemittanceHit:     hit,
		}
		if !claim.ServiceDate.IsZero() {
			sugg.ServiceDate = claim.ServiceDate.Format("2006-01-02")
		}
		suggestions = append(suggestions, sugg)
	}

	// Highest confidence first; ties broken by claim ID for determinism
	sort.Slice(suggestions, func(i, j int) bool {
		if suggestions[i].Confidence != suggestions[j].Confidence {
			return suggestions[i].Confidence > suggestions[j].Confidence
		}
		return suggestions[i].ClaimID.String() < suggestions[j].ClaimID.String()
	})

	remaining := unallocated
	for i := range suggestions {
		if !remaining.IsPositive() {
			suggestions[i].SuggestedAmount = decimal.Zero
			continue
		}
		amount := suggestions[i].OutstandingAmount
		if amount.GreaterThan(remaining) {
			amount = remaining
		}
		suggestions[i].SuggestedAmount = amount
		remaining = remaining.Sub(amount)
	}

	return suggestions
}

// dateProximityScore scores how close the claim's service date is to the
// payment date: full marks at zero days apart, declining linearly to zero at
// the window edge.
func (s *MatchService) dateProximityScore(p *Payment, claim acl.ClaimRef) int {
	if claim.ServiceDate.IsZero() || p.PaymentDate.IsZero() {
		return 0
	}
	days := int(p.PaymentDate.Sub(claim.ServiceDate).Hours() / 24)
	if days < 0 {
		days = -days
	}
	if days >= DateProximityWindowDays {
		return 0
	}
	return scoreDateProximityMax * (DateProximityWindowDays - days) / DateProximityWindowDays
}
