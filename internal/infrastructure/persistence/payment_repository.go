package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/remitflow/backend/internal/domain/reconciliation"
	"github.com/shopspring/decimal"
	"github.com/remitflow/backend/internal/domain/shared"
	"github.com/remitflow/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormPaymentRepository implements reconciliation.PaymentRepository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// Save creates a new payment with its claim payments and adjustments. It
// joins any transaction carried by the context.
func (r *GormPaymentRepository) Save(ctx context.Context, payment *reconciliation.Payment) error {
	model := models.PaymentModelFromDomain(payment)
	return dbFor(ctx, r.db).Create(model).Error
}

// SaveWithLock saves with optimistic locking on the version column. Claim
// payments are replaced wholesale inside the same transaction so the
// aggregate stays consistent.
func (r *GormPaymentRepository) SaveWithLock(ctx context.Context, payment *reconciliation.Payment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var currentVersion int
		if err := tx.
			Model(&models.PaymentModel{}).
			Where("id = ?", payment.ID).
			Select("version").
			Scan(&currentVersion).Error; err != nil {
			return err
		}

		if currentVersion != payment.GetVersion() {
			return shared.NewDomainError("CONCURRENCY_CONFLICT",
				"The payment has been modified by another user")
		}

		payment.IncrementVersion()
		model := models.PaymentModelFromDomain(payment)

		result := tx.
			Model(&models.PaymentModel{}).
			Where("id = ? AND version = ?", payment.ID, currentVersion).
			Select("payer_id", "payer_name", "payment_date", "payment_amount",
				"payment_method", "reference_number", "check_number", "remittance_id",
				"status", "exception_reason", "notes", "version", "updated_at").
			Updates(model)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.NewDomainError("CONCURRENCY_CONFLICT",
				"The payment has been modified by another user")
		}

		if err := tx.Where("payment_id = ?", payment.ID).
			Delete(&models.ClaimPaymentModel{}).Error; err != nil {
			return err
		}
		if len(model.ClaimPayments) > 0 {
			if err := tx.Create(model.ClaimPayments).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// FindByID finds a payment by ID with claim payments and adjustments
func (r *GormPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*reconciliation.Payment, error) {
	var model models.PaymentModel
	if err := r.db.WithContext(ctx).
		Preload("ClaimPayments").
		Preload("ClaimPayments.Adjustments").
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByReferenceNumber finds a payment by payer and reference number
func (r *GormPaymentRepository) FindByReferenceNumber(ctx context.Context, payerID uuid.UUID, referenceNumber string) (*reconciliation.Payment, error) {
	var model models.PaymentModel
	if err := r.db.WithContext(ctx).
		Preload("ClaimPayments").
		Preload("ClaimPayments.Adjustments").
		First(&model, "payer_id = ? AND reference_number = ?", payerID, referenceNumber).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll finds payments matching the filter, paginated
func (r *GormPaymentRepository) FindAll(ctx context.Context, filter reconciliation.PaymentFilter) (shared.Paginated[*reconciliation.Payment], error) {
	query := r.db.WithContext(ctx).Model(&models.PaymentModel{})

	if filter.PayerID != nil {
		query = query.Where("payer_id = ?", *filter.PayerID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", filter.Status.String())
	}
	if filter.Method != nil {
		query = query.Where("payment_method = ?", filter.Method.String())
	}
	if filter.DateFrom != nil {
		query = query.Where("payment_date >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		query = query.Where("payment_date <= ?", *filter.DateTo)
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		query = query.Where(
			"reference_number ILIKE ? OR check_number ILIKE ? OR payer_name ILIKE ?",
			pattern, pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return shared.Paginated[*reconciliation.Payment]{}, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	orderBy := ValidateSortField(filter.OrderBy, PaymentSortFields, "payment_date")
	orderDir := ValidateSortOrder(filter.OrderDir)

	var paymentModels []models.PaymentModel
	if err := query.
		Order(orderBy + " " + orderDir).
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Preload("ClaimPayments").
		Preload("ClaimPayments.Adjustments").
		Find(&paymentModels).Error; err != nil {
		return shared.Paginated[*reconciliation.Payment]{}, err
	}

	payments := make([]*reconciliation.Payment, 0, len(paymentModels))
	for i := range paymentModels {
		payments = append(payments, paymentModels[i].ToDomain())
	}
	return shared.NewPaginated(payments, total, page, pageSize), nil
}

// FindByIDs finds multiple payments by ID
func (r *GormPaymentRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*reconciliation.Payment, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var paymentModels []models.PaymentModel
	if err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Preload("ClaimPayments").
		Preload("ClaimPayments.Adjustments").
		Find(&paymentModels).Error; err != nil {
		return nil, err
	}
	payments := make([]*reconciliation.Payment, 0, len(paymentModels))
	for i := range paymentModels {
		payments = append(payments, paymentModels[i].ToDomain())
	}
	return payments, nil
}

// Delete removes a payment
func (r *GormPaymentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.PaymentModel{}, "id = ?", id).Error
}

// CountByStatus returns payment counts grouped by status
func (r *GormPaymentRepository) CountByStatus(ctx context.Context) (map[reconciliation.ReconciliationStatus]int64, error) {
	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	if err := r.db.WithContext(ctx).
		Model(&models.PaymentModel{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[reconciliation.ReconciliationStatus]int64, len(rows))
	for _, r := range rows {
		counts[reconciliation.ReconciliationStatus(r.Status)] = r.Count
	}
	return counts, nil
}

// CountOpenPayments returns the number of payments still carrying an
// unapplied balance. Feeds the backlog gauge metrics.
func (r *GormPaymentRepository) CountOpenPayments(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PaymentModel{}).
		Where("status IN ?", openStatuses()).
		Count(&count).Error
	return count, err
}

// TotalUnappliedAmount returns the sum of unapplied amounts across open
// payments: payment totals minus everything allocated to claims, including
// adjustments.
func (r *GormPaymentRepository) TotalUnappliedAmount(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.WithContext(ctx).Raw(`
		SELECT COALESCE(SUM(p.payment_amount), 0)
		     - COALESCE((
		         SELECT SUM(cp.paid_amount)
		         FROM claim_payments cp
		         JOIN payments pp ON pp.id = cp.payment_id
		         WHERE pp.status IN ?
		       ), 0)
		     - COALESCE((
		         SELECT SUM(adj.amount)
		         FROM payment_adjustments adj
		         JOIN claim_payments cp ON cp.id = adj.claim_payment_id
		         JOIN payments pp ON pp.id = cp.payment_id
		         WHERE pp.status IN ?
		       ), 0)
		FROM payments p
		WHERE p.status IN ?`,
		openStatuses(), openStatuses(), openStatuses()).
		Scan(&total).Error
	return total, err
}

func openStatuses() []string {
	return []string{
		string(reconciliation.StatusUnreconciled),
		string(reconciliation.StatusPartiallyReconciled),
	}
}

// Ensure GormPaymentRepository implements the interface
var _ reconciliation.PaymentRepository = (*GormPaymentRepository)(nil)
