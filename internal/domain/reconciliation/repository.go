package reconciliation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/remitflow/backend/internal/domain/shared"
)

// PaymentFilter narrows payment list queries
type PaymentFilter struct {
	shared.Filter
	PayerID  *uuid.UUID
	Status   *ReconciliationStatus
	Method   *PaymentMethod
	DateFrom *time.Time
	DateTo   *time.Time
}

// PaymentRepository persists Payment aggregates with their claim payments
// and adjustments
type PaymentRepository interface {
	// Save persists a new payment
	Save(ctx context.Context, payment *Payment) error

	// SaveWithLock persists changes using optimistic locking on the version
	// column. Returns a concurrency conflict error when the stored version
	// does not match the aggregate's.
	SaveWithLock(ctx context.Context, payment *Payment) error

	// FindByID loads a payment with its claim payments and adjustments
	FindByID(ctx context.Context, id uuid.UUID) (*Payment, error)

	// FindByReferenceNumber looks a payment up by payer reference number
	FindByReferenceNumber(ctx context.Context, payerID uuid.UUID, referenceNumber string) (*Payment, error)

	// FindAll returns payments matching the filter, paginated
	FindAll(ctx context.Context, filter PaymentFilter) (shared.Paginated[*Payment], error)

	// FindByIDs loads multiple payments by ID
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*Payment, error)

	// Delete removes a payment. Callers must check Payment.CanDelete first.
	Delete(ctx context.Context, id uuid.UUID) error

	// CountByStatus returns payment counts grouped by status
	CountByStatus(ctx context.Context) (map[ReconciliationStatus]int64, error)
}

// RemittanceFilter narrows remittance list queries
type RemittanceFilter struct {
	shared.Filter
	PayerID  *uuid.UUID
	FileType *FileType
	DateFrom *time.Time
	DateTo   *time.Time
}

// RemittanceRepository persists RemittanceInfo aggregates with their details
type RemittanceRepository interface {
	// Save persists a new remittance with all detail lines
	Save(ctx context.Context, remittance *RemittanceInfo) error

	// Update persists changes to an existing remittance (detail resolution,
	// archive key)
	Update(ctx context.Context, remittance *RemittanceInfo) error

	// FindByID loads a remittance with its details
	FindByID(ctx context.Context, id uuid.UUID) (*RemittanceInfo, error)

	// FindByFileHash returns the remittance previously imported from the
	// same file content, or nil
	FindByFileHash(ctx context.Context, hash string) (*RemittanceInfo, error)

	// FindByPayerAndNumber returns the payer's remittance with the given
	// remittance number, or nil. Remittance numbers are unique per payer.
	FindByPayerAndNumber(ctx context.Context, payerID uuid.UUID, remittanceNumber string) (*RemittanceInfo, error)

	// FindAll returns remittances matching the filter, paginated, without
	// detail lines
	FindAll(ctx context.Context, filter RemittanceFilter) (shared.Paginated[*RemittanceInfo], error)
}
