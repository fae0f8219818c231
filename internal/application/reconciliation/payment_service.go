package reconciliation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	domain "github.com/remitflow/backend/internal/domain/reconciliation"
	"github.com/remitflow/backend/internal/domain/reconciliation/acl"
	"github.com/remitflow/backend/internal/domain/shared"
	"github.com/remitflow/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentService provides application-level payment and reconciliation
// operations
type PaymentService struct {
	paymentRepo    domain.PaymentRepository
	remittanceRepo domain.RemittanceRepository
	claimQuery     acl.ClaimQueryService
	claimNotifier  acl.ClaimStatusNotifier
	payerRegistry  acl.PayerRegistry
	matcher        *domain.MatchService
	metrics        MetricsRecorder
	autoThreshold  int
	logger         *zap.Logger
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(
	paymentRepo domain.PaymentRepository,
	remittanceRepo domain.RemittanceRepository,
	claimQuery acl.ClaimQueryService,
	claimNotifier acl.ClaimStatusNotifier,
	payerRegistry acl.PayerRegistry,
	matcher *domain.MatchService,
	logger *zap.Logger,
) *PaymentService {
	return &PaymentService{
		paymentRepo:    paymentRepo,
		remittanceRepo: remittanceRepo,
		claimQuery:     claimQuery,
		claimNotifier:  claimNotifier,
		payerRegistry:  payerRegistry,
		matcher:        matcher,
		metrics:        noopMetrics{},
		autoThreshold:  domain.DefaultAutoReconcileThreshold,
		logger:         logger,
	}
}

// SetAutoReconcileThreshold overrides the default confidence threshold used
// when an auto-reconcile request does not carry one.
func (s *PaymentService) SetAutoReconcileThreshold(threshold int) {
	if threshold > 0 && threshold <= 100 {
		s.autoThreshold = threshold
	}
}

// SetMetrics attaches a business metrics recorder
func (s *PaymentService) SetMetrics(m MetricsRecorder) {
	if m != nil {
		s.metrics = m
	}
}

// ===================== Requests =====================

// CreatePaymentRequest represents a request to record a payer payment
type CreatePaymentRequest struct {
	PayerID         uuid.UUID       `json:"payer_id" binding:"required"`
	PaymentDate     time.Time       `json:"payment_date" binding:"required"`
	PaymentAmount   decimal.Decimal `json:"payment_amount" binding:"required"`
	PaymentMethod   string          `json:"payment_method" binding:"required"`
	ReferenceNumber string          `json:"reference_number" binding:"required"`
	CheckNumber     string          `json:"check_number"`
	Notes           string          `json:"notes"`
}

// UpdatePaymentRequest represents a request to update mutable payment fields
type UpdatePaymentRequest struct {
	CheckNumber *string `json:"check_number"`
	Notes       *string `json:"notes"`
}

// AllocationRequest is one claim's share of a reconcile request
type AllocationRequest struct {
	ClaimID     uuid.UUID           `json:"claim_id" binding:"required"`
	Amount      decimal.Decimal     `json:"amount"`
	Adjustments []AdjustmentRequest `json:"adjustments"`
}

// AdjustmentRequest is one adjustment line in a reconcile request
type AdjustmentRequest struct {
	Type        string          `json:"type" binding:"required"`
	Code        string          `json:"code"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	Description string          `json:"description"`
}

// ReconcileRequest represents a manual allocation of a payment to claims
type ReconcileRequest struct {
	Allocations []AllocationRequest `json:"allocations" binding:"required,min=1"`
	Notes       string              `json:"notes"`
}

// AutoReconcileRequest tunes automatic reconciliation
type AutoReconcileRequest struct {
	ConfidenceThreshold *int `json:"confidence_threshold"`
}

// FlagExceptionRequest flags a payment for manual review
type FlagExceptionRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// UpdatedClaim reports one claim status transition pushed to the Claims
// system as a result of reconciliation
type UpdatedClaim struct {
	ClaimID        uuid.UUID `json:"claim_id"`
	ClaimNumber    string    `json:"claim_number"`
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
}

// NotificationError reports a claim the Claims system could not be told
// about. The reconciliation itself stays committed; these are retried via
// RetryClaimNotifications.
type NotificationError struct {
	ClaimID     uuid.UUID `json:"claim_id"`
	ClaimNumber string    `json:"claim_number,omitempty"`
	Message     string    `json:"message"`
}

// ReconcileResponse carries the updated payment, the claim status changes
// pushed downstream, and any notification failures
type ReconcileResponse struct {
	Payment            *PaymentResponse    `json:"payment"`
	UpdatedClaims      []UpdatedClaim      `json:"updated_claims"`
	NotificationErrors []NotificationError `json:"notification_errors,omitempty"`
}

// AutoReconcileResponse reports what auto-reconciliation applied
type AutoReconcileResponse struct {
	Payment            *PaymentResponse         `json:"payment"`
	AppliedCount       int                      `json:"applied_count"`
	Applied            []domain.MatchSuggestion `json:"applied"`
	Skipped            []domain.MatchSuggestion `json:"skipped"`
	UpdatedClaims      []UpdatedClaim           `json:"updated_claims"`
	NotificationErrors []NotificationError      `json:"notification_errors,omitempty"`
}

// PaymentListFilter defines filtering options for payment list queries
type PaymentListFilter struct {
	Search   string     `form:"search"`
	PayerID  *uuid.UUID `form:"payer_id"`
	Status   string     `form:"status"`
	Method   string     `form:"method"`
	DateFrom *time.Time `form:"date_from"`
	DateTo   *time.Time `form:"date_to"`
	Page     int        `form:"page"`
	PageSize int        `form:"page_size"`
}

// ===================== CRUD Operations =====================

// CreatePayment records a new payer payment
func (s *PaymentService) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*PaymentResponse, error) {
	payer, err := s.payerRegistry.GetPayer(ctx, req.PayerID)
	if err != nil {
		return nil, err
	}
	if payer == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Payer not found")
	}

	existing, err := s.paymentRepo.FindByReferenceNumber(ctx, req.PayerID, req.ReferenceNumber)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, shared.NewDomainError("ALREADY_EXISTS",
			fmt.Sprintf("A payment with reference %q already exists for this payer", req.ReferenceNumber))
	}

	payment, err := domain.NewPayment(
		req.PayerID,
		payer.Name,
		valueobject.NewMoneyUSD(req.PaymentAmount),
		domain.PaymentMethod(req.PaymentMethod),
		req.PaymentDate,
		req.ReferenceNumber,
	)
	if err != nil {
		return nil, err
	}
	payment.CheckNumber = req.CheckNumber
	if req.Notes != "" {
		payment.SetNotes(req.Notes)
	}

	if err := s.paymentRepo.Save(ctx, payment); err != nil {
		return nil, err
	}

	s.metrics.PaymentCreated(ctx, payment.PayerID.String())
	s.logger.Info("payment recorded",
		zap.String("payment_id", payment.ID.String()),
		zap.String("payer_id", payment.PayerID.String()),
		zap.String("amount", payment.PaymentAmount.StringFixed(2)),
		zap.String("method", payment.PaymentMethod.String()))

	return toPaymentResponse(payment), nil
}

// GetPayment gets a payment by ID
func (s *PaymentService) GetPayment(ctx context.Context, id uuid.UUID) (*PaymentResponse, error) {
	payment, err := s.loadPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	return toPaymentResponse(payment), nil
}

// ListPayments returns payments matching the filter
func (s *PaymentService) ListPayments(ctx context.Context, filter PaymentListFilter) (shared.Paginated[*PaymentResponse], error) {
	domainFilter := domain.PaymentFilter{
		Filter:   shared.DefaultFilter(),
		PayerID:  filter.PayerID,
		DateFrom: filter.DateFrom,
		DateTo:   filter.DateTo,
	}
	domainFilter.Search = filter.Search
	if filter.Page > 0 {
		domainFilter.Page = filter.Page
	}
	if filter.PageSize > 0 {
		domainFilter.PageSize = filter.PageSize
	}
	if filter.Status != "" {
		status := domain.ReconciliationStatus(filter.Status)
		if !status.IsValid() {
			return shared.Paginated[*PaymentResponse]{}, shared.NewDomainError("VALIDATION",
				fmt.Sprintf("Invalid status filter %q", filter.Status))
		}
		domainFilter.Status = &status
	}
	if filter.Method != "" {
		method := domain.PaymentMethod(filter.Method)
		if !method.IsValid() {
			return shared.Paginated[*PaymentResponse]{}, shared.NewDomainError("VALIDATION",
				fmt.Sprintf("Invalid method filter %q", filter.Method))
		}
		domainFilter.Method = &method
	}

	page, err := s.paymentRepo.FindAll(ctx, domainFilter)
	if err != nil {
		return shared.Paginated[*PaymentResponse]{}, err
	}

	items := make([]*PaymentResponse, 0, len(page.Items))
	for _, p := range page.Items {
		items = append(items, toPaymentResponse(p))
	}
	return shared.NewPaginated(items, page.Total, page.Page, page.PageSize), nil
}

// UpdatePayment updates the mutable fields of a payment
func (s *PaymentService) UpdatePayment(ctx context.Context, id uuid.UUID, req UpdatePaymentRequest) (*PaymentResponse, error) {
	payment, err := s.loadPayment(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.CheckNumber != nil {
		payment.CheckNumber = *req.CheckNumber
	}
	if req.Notes != nil {
		payment.SetNotes(*req.Notes)
	}

	if err := s.paymentRepo.SaveWithLock(ctx, payment); err != nil {
		return nil, err
	}
	return toPaymentResponse(payment), nil
}

// DeletePayment removes an unallocated payment
func (s *PaymentService) DeletePayment(ctx context.Context, id uuid.UUID) error {
	payment, err := s.loadPayment(ctx, id)
	if err != nil {
		return err
	}
	if err := payment.CanDelete(); err != nil {
		return err
	}
	if err := s.paymentRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("payment deleted", zap.String("payment_id", id.String()))
	return nil
}

// ===================== Reconciliation Operations =====================

// Reconcile applies a manual allocation of the payment across claims
func (s *PaymentService) Reconcile(ctx context.Context, id uuid.UUID, req ReconcileRequest) (*ReconcileResponse, error) {
	payment, err := s.loadPayment(ctx, id)
	if err != nil {
		return nil, err
	}

	allocations, claims, err := s.resolveAllocations(ctx, payment, req.Allocations)
	if err != nil {
		return nil, err
	}

	if err := payment.Allocate(allocations, req.Notes); err != nil {
		return nil, err
	}
	if err := s.paymentRepo.SaveWithLock(ctx, payment); err != nil {
		return nil, err
	}

	updated, notifErrs := s.notifyClaims(ctx, payment, claims)

	total := decimal.Zero
	for _, a := range allocations {
		total = total.Add(a.Amount)
	}
	s.metrics.PaymentReconciled(ctx, payment.PayerID.String(), MetricMethodManual)
	s.metrics.AllocationApplied(ctx, payment.PayerID.String(), total)

	s.logger.Info("payment reconciled",
		zap.String("payment_id", payment.ID.String()),
		zap.String("status", payment.Status.String()),
		zap.Int("claims", len(allocations)),
		zap.Int("notification_failures", len(notifErrs)))

	return &ReconcileResponse{
		Payment:            toPaymentResponse(payment),
		UpdatedClaims:      updated,
		NotificationErrors: notifErrs,
	}, nil
}

// UndoReconciliation removes all allocations from the payment and asks the
// Claims system to roll back the corresponding status changes
func (s *PaymentService) UndoReconciliation(ctx context.Context, id uuid.UUID) (*ReconcileResponse, error) {
	payment, err := s.loadPayment(ctx, id)
	if err != nil {
		return nil, err
	}

	affected := payment.ClearAllocations()
	if err := s.paymentRepo.SaveWithLock(ctx, payment); err != nil {
		return nil, err
	}

	var notifErrs []NotificationError
	for _, claimID := range affected {
		if err := s.claimNotifier.RevertClaimPayment(ctx, claimID, payment.ID); err != nil {
			s.logger.Warn("claim payment revert failed",
				zap.String("payment_id", payment.ID.String()),
				zap.String("claim_id", claimID.String()),
				zap.Error(err))
			notifErrs = append(notifErrs, NotificationError{
				ClaimID: claimID,
				Message: fmt.Sprintf("failed to revert claim %s: %v", claimID, err),
			})
		}
	}

	return &ReconcileResponse{
		Payment:            toPaymentResponse(payment),
		UpdatedClaims:      []UpdatedClaim{},
		NotificationErrors: notifErrs,
	}, nil
}

// SuggestedMatches ranks candidate claims for the payment
func (s *PaymentService) SuggestedMatches(ctx context.Context, id uuid.UUID) ([]domain.MatchSuggestion, error) {
	payment, err := s.loadPayment(ctx, id)
	if err != nil {
		return nil, err
	}

	candidates, remittanceClaims, err := s.matchInputs(ctx, payment)
	if err != nil {
		return nil, err
	}

	return s.matcher.SuggestMatches(payment, candidates, remittanceClaims), nil
}

// AutoReconcile allocates the payment to its highest-confidence candidate
// claims. Only suggestions at or above the confidence threshold are applied.
func (s *PaymentService) AutoReconcile(ctx context.Context, id uuid.UUID, req AutoReconcileRequest) (*AutoReconcileResponse, error) {
	threshold := s.autoThreshold
	if req.ConfidenceThreshold != nil {
		threshold = *req.ConfidenceThreshold
	}
	if threshold < 0 || threshold > 100 {
		return nil, shared.NewDomainError("VALIDATION", "Confidence threshold must be between 0 and 100")
	}

	payment, err := s.loadPayment(ctx, id)
	if err != nil {
		return nil, err
	}

	candidates, remittanceClaims, err := s.matchInputs(ctx, payment)
	if err != nil {
		return nil, err
	}

	suggestions := s.matcher.SuggestMatches(payment, candidates, remittanceClaims)

	claimsByID := make(map[uuid.UUID]acl.ClaimRef, len(candidates))
	for _, c := range candidates {
		claimsByID[c.ClaimID] = c
	}

	var applied, skipped []domain.MatchSuggestion
	var allocations []domain.ClaimAllocation
	affected := make([]acl.ClaimRef, 0)
	for _, sugg := range suggestions {
		if sugg.Confidence < threshold || !sugg.SuggestedAmount.IsPositive() {
			skipped = append(skipped, sugg)
			continue
		}
		applied = append(applied, sugg)
		allocations = append(allocations, domain.ClaimAllocation{
			ClaimID:     sugg.ClaimID,
			ClaimNumber: sugg.ClaimNumber,
			Amount:      sugg.SuggestedAmount,
		})
		affected = append(affected, claimsByID[sugg.ClaimID])
	}

	resp := &AutoReconcileResponse{
		AppliedCount: len(applied),
		Applied:      applied,
		Skipped:      skipped,
	}

	if len(allocations) == 0 {
		resp.Payment = toPaymentResponse(payment)
		return resp, nil
	}

	if err := payment.Allocate(allocations, ""); err != nil {
		return nil, err
	}
	if err := s.paymentRepo.SaveWithLock(ctx, payment); err != nil {
		return nil, err
	}

	resp.Payment = toPaymentResponse(payment)
	resp.UpdatedClaims, resp.NotificationErrors = s.notifyClaims(ctx, payment, affected)

	total := decimal.Zero
	for _, a := range allocations {
		total = total.Add(a.Amount)
	}
	s.metrics.PaymentReconciled(ctx, payment.PayerID.String(), MetricMethodAuto)
	s.metrics.AllocationApplied(ctx, payment.PayerID.String(), total)

	s.logger.Info("payment auto-reconciled",
		zap.String("payment_id", payment.ID.String()),
		zap.Int("threshold", threshold),
		zap.Int("applied", len(applied)),
		zap.Int("skipped", len(skipped)))

	return resp, nil
}

// FlagException flags a payment for manual review
func (s *PaymentService) FlagException(ctx context.Context, id uuid.UUID, req FlagExceptionRequest) (*PaymentResponse, error) {
	payment, err := s.loadPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := payment.FlagException(req.Reason); err != nil {
		return nil, err
	}
	if err := s.paymentRepo.SaveWithLock(ctx, payment); err != nil {
		return nil, err
	}
	return toPaymentResponse(payment), nil
}

// ClearException removes the exception flag from a payment
func (s *PaymentService) ClearException(ctx context.Context, id uuid.UUID) (*PaymentResponse, error) {
	payment, err := s.loadPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := payment.ClearException(); err != nil {
		return nil, err
	}
	if err := s.paymentRepo.SaveWithLock(ctx, payment); err != nil {
		return nil, err
	}
	return toPaymentResponse(payment), nil
}

// RetryClaimNotifications re-sends payment status notifications for every
// claim the payment is allocated to. Used after downstream outages. When
// notifications still fail the caller gets a downstream error; the
// reconciliation state itself is unaffected.
func (s *PaymentService) RetryClaimNotifications(ctx context.Context, id uuid.UUID) (*ReconcileResponse, error) {
	payment, err := s.loadPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(payment.ClaimPayments) == 0 {
		return nil, shared.NewDomainError("INVALID_STATE", "Payment has no claim allocations to notify about")
	}

	claimIDs := make([]uuid.UUID, 0, len(payment.ClaimPayments))
	for i := range payment.ClaimPayments {
		claimIDs = append(claimIDs, payment.ClaimPayments[i].ClaimID)
	}
	claims, err := s.claimQuery.GetClaims(ctx, claimIDs)
	if err != nil {
		return nil, err
	}

	updated, notifErrs := s.notifyClaims(ctx, payment, claims)
	if len(notifErrs) > 0 {
		return nil, shared.NewDomainError("DOWNSTREAM_NOTIFICATION",
			fmt.Sprintf("%d of %d claim notifications still failing", len(notifErrs), len(claims)))
	}
	return &ReconcileResponse{
		Payment:       toPaymentResponse(payment),
		UpdatedClaims: updated,
	}, nil
}

// ===================== Helpers =====================

func (s *PaymentService) loadPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	payment, err := s.paymentRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Payment not found")
	}
	return payment, nil
}

// resolveAllocations validates the requested claims against the Claims
// system and converts the request into domain allocations
func (s *PaymentService) resolveAllocations(
	ctx context.Context,
	payment *domain.Payment,
	requests []AllocationRequest,
) ([]domain.ClaimAllocation, []acl.ClaimRef, error) {
	claimIDs := make([]uuid.UUID, 0, len(requests))
	for _, r := range requests {
		claimIDs = append(claimIDs, r.ClaimID)
	}

	claims, err := s.claimQuery.GetClaims(ctx, claimIDs)
	if err != nil {
		return nil, nil, err
	}
	claimsByID := make(map[uuid.UUID]acl.ClaimRef, len(claims))
	for _, c := range claims {
		claimsByID[c.ClaimID] = c
	}

	allocations := make([]domain.ClaimAllocation, 0, len(requests))
	for _, r := range requests {
		claim, ok := claimsByID[r.ClaimID]
		if !ok {
			return nil, nil, shared.NewDomainError("NOT_FOUND",
				fmt.Sprintf("Claim %s not found", r.ClaimID))
		}
		if claim.PayerID != payment.PayerID {
			return nil, nil, shared.NewDomainError("INVALID_CLAIM_PAYER",
				fmt.Sprintf("Claim %s belongs to a different payer", claim.ClaimNumber))
		}

		alloc := domain.ClaimAllocation{
			ClaimID:     r.ClaimID,
			ClaimNumber: claim.ClaimNumber,
			Amount:      r.Amount,
		}
		for _, adj := range r.Adjustments {
			alloc.Adjustments = append(alloc.Adjustments, domain.AdjustmentInput{
				Type:        domain.AdjustmentType(adj.Type),
				Code:        adj.Code,
				Amount:      adj.Amount,
				Description: adj.Description,
			})
		}
		allocations = append(allocations, alloc)
	}

	return allocations, claims, nil
}

// notifyClaims pushes payment statuses to the Claims system and reports each
// transition. Failures do not roll back reconciliation state; they come back
// as notification errors for the caller to surface and retry.
func (s *PaymentService) notifyClaims(ctx context.Context, payment *domain.Payment, claims []acl.ClaimRef) ([]UpdatedClaim, []NotificationError) {
	updated := make([]UpdatedClaim, 0, len(claims))
	var failures []NotificationError
	for _, claim := range claims {
		cp := payment.FindClaimPayment(claim.ClaimID)
		if cp == nil {
			continue
		}
		status := acl.ClaimStatusPartiallyPaid
		if cp.AllocatedAmount().GreaterThanOrEqual(claim.OutstandingAmount) {
			status = acl.ClaimStatusPaid
		}
		if err := s.claimNotifier.NotifyClaimPaid(ctx, claim.ClaimID, status); err != nil {
			s.logger.Warn("claim status notification failed",
				zap.String("payment_id", payment.ID.String()),
				zap.String("claim_id", claim.ClaimID.String()),
				zap.Error(err))
			failures = append(failures, NotificationError{
				ClaimID:     claim.ClaimID,
				ClaimNumber: claim.ClaimNumber,
				Message:     fmt.Sprintf("failed to notify claim %s: %v", claim.ClaimNumber, err),
			})
			continue
		}
		updated = append(updated, UpdatedClaim{
			ClaimID:        claim.ClaimID,
			ClaimNumber:    claim.ClaimNumber,
			PreviousStatus: string(claim.Status),
			NewStatus:      string(status),
		})
	}
	return updated, failures
}

// matchInputs gathers matcher inputs: the payer's outstanding claims and the
// claim IDs resolved from the payment's linked remittance
func (s *PaymentService) matchInputs(ctx context.Context, payment *domain.Payment) ([]acl.ClaimRef, map[uuid.UUID]bool, error) {
	candidates, err := s.claimQuery.FindClaims(ctx, acl.ClaimQuery{
		PayerID:         &payment.PayerID,
		OutstandingOnly: true,
	})
	if err != nil {
		return nil, nil, err
	}

	remittanceClaims := map[uuid.UUID]bool{}
	if payment.RemittanceID != nil {
		remittance, err := s.remittanceRepo.FindByID(ctx, *payment.RemittanceID)
		if err != nil {
			return nil, nil, err
		}
		if remittance != nil {
			remittanceClaims = remittance.ResolvedClaimIDs()
		}
	}

	return candidates, remittanceClaims, nil
}
