package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/remitflow/backend/internal/domain/reconciliation"
	"github.com/remitflow/backend/internal/domain/shared"
	"github.com/remitflow/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newMockPaymentRepository creates a GormPaymentRepository with a mocked SQL connection
func newMockPaymentRepository(t *testing.T) (*GormPaymentRepository, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return NewGormPaymentRepository(gormDB), mock, mockDB
}

func paymentRows(id, payerID uuid.UUID, version int, status string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "created_at", "updated_at", "version",
		"payer_id", "payer_name", "payment_date", "payment_amount",
		"payment_method", "reference_number", "check_number",
		"remittance_id", "status", "exception_reason", "notes",
	}).AddRow(
		id, time.Now(), time.Now(), version,
		payerID, "Acme Health Plan", time.Now(), decimal.NewFromFloat(1000.00),
		"EFT", "EFT-1", "", nil, status, "", "")
}

func TestGormPaymentRepository_FindByID(t *testing.T) {
	t.Run("finds existing payment with claim payments", func(t *testing.T) {
		repo, mock, mockDB := newMockPaymentRepository(t)
		defer mockDB.Close()

		paymentID := uuid.New()
		payerID := uuid.New()
		claimPaymentID := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "payments" WHERE id = \$1 ORDER BY .* LIMIT .*`).
			WithArgs(paymentID, 1).
			WillReturnRows(paymentRows(paymentID, payerID, 1, "PARTIALLY_RECONCILED"))

		claimRows := sqlmock.NewRows([]string{
			"id", "created_at", "updated_at",
			"payment_id", "claim_id", "claim_number", "paid_amount",
		}).AddRow(
			claimPaymentID, time.Now(), time.Now(),
			paymentID, uuid.New(), "CLM-1", decimal.NewFromFloat(400.00))
		mock.ExpectQuery(`SELECT \* FROM "claim_payments" WHERE "claim_payments"\."payment_id" = \$1`).
			WithArgs(paymentID).
			WillReturnRows(claimRows)

		adjRows := sqlmock.NewRows([]string{
			"id", "claim_payment_id", "type", "code", "amount", "description",
		}).AddRow(
			uuid.New(), claimPaymentID, "CONTRACTUAL", "CO-45", decimal.NewFromFloat(100.00), "")
		mock.ExpectQuery(`SELECT \* FROM "payment_adjustments" WHERE "payment_adjustments"\."claim_payment_id" = \$1`).
			WithArgs(claimPaymentID).
			WillReturnRows(adjRows)

		payment, err := repo.FindByID(context.Background(), paymentID)

		require.NoError(t, err)
		require.NotNil(t, payment)
		assert.Equal(t, paymentID, payment.ID)
		assert.Equal(t, reconciliation.StatusPartiallyReconciled, payment.Status)
		require.Len(t, payment.ClaimPayments, 1)
		require.Len(t, payment.ClaimPayments[0].Adjustments, 1)
		assert.True(t, payment.AllocatedAmount().Equal(decimal.NewFromFloat(500.00)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns nil for non-existent payment", func(t *testing.T) {
		repo, mock, mockDB := newMockPaymentRepository(t)
		defer mockDB.Close()

		paymentID := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "payments" WHERE id = \$1 ORDER BY .* LIMIT .*`).
			WithArgs(paymentID, 1).
			WillReturnError(gorm.ErrRecordNotFound)

		payment, err := repo.FindByID(context.Background(), paymentID)

		assert.NoError(t, err)
		assert.Nil(t, payment)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormPaymentRepository_SaveWithLock(t *testing.T) {
	newDomainPayment := func(t *testing.T) *reconciliation.Payment {
		p, err := reconciliation.NewPayment(
			uuid.New(),
			"Acme Health Plan",
			valueobject.NewMoneyUSDFromFloat(1000.00),
			reconciliation.PaymentMethodEFT,
			time.Now(),
			"EFT-1",
		)
		require.NoError(t, err)
		return p
	}

	t.Run("version mismatch returns concurrency conflict", func(t *testing.T) {
		repo, mock, mockDB := newMockPaymentRepository(t)
		defer mockDB.Close()

		payment := newDomainPayment(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT .*version.* FROM "payments" WHERE id = \$1`).
			WithArgs(payment.ID).
			WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(7))
		mock.ExpectRollback()

		err := repo.SaveWithLock(context.Background(), payment)

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "CONCURRENCY_CONFLICT", domainErr.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stale update (zero rows) returns concurrency conflict", func(t *testing.T) {
		repo, mock, mockDB := newMockPaymentRepository(t)
		defer mockDB.Close()

		payment := newDomainPayment(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT .*version.* FROM "payments" WHERE id = \$1`).
			WithArgs(payment.ID).
			WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(payment.GetVersion()))
		mock.ExpectExec(`UPDATE "payments" SET .* WHERE id = \$\d+ AND version = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := repo.SaveWithLock(context.Background(), payment)

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "CONCURRENCY_CONFLICT", domainErr.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormPaymentRepository_Delete(t *testing.T) {
	repo, mock, mockDB := newMockPaymentRepository(t)
	defer mockDB.Close()

	paymentID := uuid.New()

	mock.ExpectExec(`DELETE FROM "payments" WHERE id = \$1`).
		WithArgs(paymentID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.Delete(context.Background(), paymentID))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormPaymentRepository_CountByStatus(t *testing.T) {
	repo, mock, mockDB := newMockPaymentRepository(t)
	defer mockDB.Close()

	rows := sqlmock.NewRows([]string{"status", "count"}).
		AddRow("UNRECONCILED", int64(3)).
		AddRow("RECONCILED", int64(5))
	mock.ExpectQuery(`SELECT status, COUNT\(\*\) as count FROM "payments" GROUP BY .*`).
		WillReturnRows(rows)

	counts, err := repo.CountByStatus(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(3), counts[reconciliation.StatusUnreconciled])
	assert.Equal(t, int64(5), counts[reconciliation.StatusReconciled])
	assert.NoError(t, mock.ExpectationsWereMet())
}
