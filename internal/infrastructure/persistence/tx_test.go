package persistence

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockTxManager(t *testing.T) (*TxManager, *gorm.DB, sqlmock.Sqlmock, *sql.DB) {
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

	return NewTxManager(gormDB), gormDB, mock, mockDB
}

func TestTxManager_Do_CommitsOnSuccess(t *testing.T) {
	manager, gormDB, mock, mockDB := newMockTxManager(t)
	defer mockDB.Close()

	mock.ExpectBegin()
	mock.ExpectCommit()

	var innerCtx context.Context
	err := manager.Do(context.Background(), func(ctx context.Context) error {
		innerCtx = ctx
		return nil
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	// The inner context carries the transaction handle repositories join
	tx, ok := innerCtx.Value(txContextKey{}).(*gorm.DB)
	require.True(t, ok)
	assert.NotSame(t, gormDB, tx)
}

func TestTxManager_Do_RollsBackOnError(t *testing.T) {
	manager, _, mock, mockDB := newMockTxManager(t)
	defer mockDB.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := manager.Do(context.Background(), func(ctx context.Context) error {
		return assert.AnError
	})

	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBFor(t *testing.T) {
	_, gormDB, _, mockDB := newMockTxManager(t)
	defer mockDB.Close()

	t.Run("returns the transaction from the context when present", func(t *testing.T) {
		tx := gormDB.Session(&gorm.Session{})
		ctx := context.WithValue(context.Background(), txContextKey{}, tx)
		assert.Same(t, tx, dbFor(ctx, gormDB))
	})

	t.Run("falls back to the plain connection otherwise", func(t *testing.T) {
		assert.NotNil(t, dbFor(context.Background(), gormDB))
	})
}
