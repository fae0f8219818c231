package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/remitflow/backend/internal/domain/reconciliation"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newMockRemittanceRepository creates a GormRemittanceRepository with a mocked SQL connection
func newMockRemittanceRepository(t *testing.T) (*GormRemittanceRepository, sqlmock.Sqlmock, *sql.DB) {
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

	return NewGormRemittanceRepository(gormDB), mock, mockDB
}

func remittanceRows(id, payerID uuid.UUID, fileHash string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "created_at", "updated_at", "version",
		"payer_id", "payer_name", "remittance_number", "remittance_date", "check_number",
		"total_amount", "file_type", "file_name", "file_hash",
		"archive_key", "imported_at",
	}).AddRow(
		id, time.Now(), time.Now(), 1,
		payerID, "Acme Health Plan", "RA-2026-100", time.Now(), "CHK-100",
		decimal.NewFromFloat(500.00), "CSV", "era_20260815.csv", fileHash,
		"", time.Now())
}

func TestGormRemittanceRepository_FindByID(t *testing.T) {
	t.Run("finds remittance with details ordered by line number", func(t *testing.T) {
		repo, mock, mockDB := newMockRemittanceRepository(t)
		defer mockDB.Close()

		remittanceID := uuid.New()
		payerID := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "remittances" WHERE id = \$1 ORDER BY .* LIMIT .*`).
			WithArgs(remittanceID, 1).
			WillReturnRows(remittanceRows(remittanceID, payerID, "abc123"))

		detailRows := sqlmock.NewRows([]string{
			"id", "remittance_id", "line_number", "claim_number", "claim_id",
			"patient_name", "service_date", "billed_amount", "paid_amount", "adjustment_codes",
		}).
			AddRow(uuid.New(), remittanceID, 1, "CLM-1", uuid.New(),
				"Pat One", time.Now(), decimal.NewFromFloat(300.00), decimal.NewFromFloat(250.00), []byte(`{"CO-45":"50.00"}`)).
			AddRow(uuid.New(), remittanceID, 2, "CLM-2", nil,
				"Pat Two", nil, decimal.NewFromFloat(300.00), decimal.NewFromFloat(250.00), nil)
		mock.ExpectQuery(`SELECT \* FROM "remittance_details" WHERE "remittance_details"\."remittance_id" = \$1 ORDER BY remittance_details\.line_number ASC`).
			WithArgs(remittanceID).
			WillReturnRows(detailRows)

		remittance, err := repo.FindByID(context.Background(), remittanceID)

		require.NoError(t, err)
		require.NotNil(t, remittance)
		assert.Equal(t, remittanceID, remittance.ID)
		require.Len(t, remittance.Details, 2)
		assert.Equal(t, 1, remittance.Details[0].LineNumber)
		assert.Equal(t, "CLM-2", remittance.Details[1].ClaimNumber)
		assert.Nil(t, remittance.Details[1].ClaimID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns nil for non-existent remittance", func(t *testing.T) {
		repo, mock, mockDB := newMockRemittanceRepository(t)
		defer mockDB.Close()

		remittanceID := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "remittances" WHERE id = \$1 ORDER BY .* LIMIT .*`).
			WithArgs(remittanceID, 1).
			WillReturnError(gorm.ErrRecordNotFound)

		remittance, err := repo.FindByID(context.Background(), remittanceID)

		assert.NoError(t, err)
		assert.Nil(t, remittance)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormRemittanceRepository_FindByFileHash(t *testing.T) {
	t.Run("finds remittance imported from the same file", func(t *testing.T) {
		repo, mock, mockDB := newMockRemittanceRepository(t)
		defer mockDB.Close()

		remittanceID := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "remittances" WHERE file_hash = \$1 ORDER BY .* LIMIT .*`).
			WithArgs("abc123", 1).
			WillReturnRows(remittanceRows(remittanceID, uuid.New(), "abc123"))

		remittance, err := repo.FindByFileHash(context.Background(), "abc123")

		require.NoError(t, err)
		require.NotNil(t, remittance)
		assert.Equal(t, "abc123", remittance.FileHash)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns nil when no remittance matches the hash", func(t *testing.T) {
		repo, mock, mockDB := newMockRemittanceRepository(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT \* FROM "remittances" WHERE file_hash = \$1 ORDER BY .* LIMIT .*`).
			WithArgs("deadbeef", 1).
			WillReturnError(gorm.ErrRecordNotFound)

		remittance, err := repo.FindByFileHash(context.Background(), "deadbeef")

		assert.NoError(t, err)
		assert.Nil(t, remittance)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormRemittanceRepository_FindByPayerAndNumber(t *testing.T) {
	t.Run("finds the payer's remittance with the given number", func(t *testing.T) {
		repo, mock, mockDB := newMockRemittanceRepository(t)
		defer mockDB.Close()

		remittanceID := uuid.New()
		payerID := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "remittances" WHERE payer_id = \$1 AND remittance_number = \$2 ORDER BY .* LIMIT .*`).
			WithArgs(payerID, "RA-2026-100", 1).
			WillReturnRows(remittanceRows(remittanceID, payerID, "abc123"))

		remittance, err := repo.FindByPayerAndNumber(context.Background(), payerID, "RA-2026-100")

		require.NoError(t, err)
		require.NotNil(t, remittance)
		assert.Equal(t, "RA-2026-100", remittance.RemittanceNumber)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns nil when the payer never sent that number", func(t *testing.T) {
		repo, mock, mockDB := newMockRemittanceRepository(t)
		defer mockDB.Close()

		payerID := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "remittances" WHERE payer_id = \$1 AND remittance_number = \$2 ORDER BY .* LIMIT .*`).
			WithArgs(payerID, "RA-404", 1).
			WillReturnError(gorm.ErrRecordNotFound)

		remittance, err := repo.FindByPayerAndNumber(context.Background(), payerID, "RA-404")

		assert.NoError(t, err)
		assert.Nil(t, remittance)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormRemittanceRepository_FindAll(t *testing.T) {
	repo, mock, mockDB := newMockRemittanceRepository(t)
	defer mockDB.Close()

	payerID := uuid.New()

	mock.ExpectQuery(`SELECT count\(\*\) FROM "remittances" WHERE payer_id = \$1`).
		WithArgs(payerID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT \* FROM "remittances" WHERE payer_id = \$1 ORDER BY remittance_date DESC LIMIT .*`).
		WithArgs(payerID, 20).
		WillReturnRows(remittanceRows(uuid.New(), payerID, "abc123"))

	filter := reconciliation.RemittanceFilter{PayerID: &payerID}
	result, err := repo.FindAll(context.Background(), filter)

	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Total)
	require.Len(t, result.Items, 1)
	assert.Equal(t, payerID, result.Items[0].PayerID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
