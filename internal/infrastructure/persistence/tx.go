package persistence

import (
	"context"

	"gorm.io/gorm"
)

// txContextKey carries an open transaction handle through a context so that
// repositories called inside TxManager.Do join the same database transaction.
type txContextKey struct{}

// TxManager runs a unit of work inside a single database transaction. It
// implements the application layer's TransactionManager port.
type TxManager struct {
	db *gorm.DB
}

// NewTxManager creates a new TxManager
func NewTxManager(db *gorm.DB) *TxManager {
	return &TxManager{db: db}
}

// Do executes fn inside one transaction. The transaction handle travels in the
// context passed to fn; any repository write made with that context commits or
// rolls back together.
func (m *TxManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txContextKey{}, tx))
	})
}

// dbFor returns the transaction handle carried by ctx, or the repository's
// own connection when no transaction is open.
func dbFor(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txContextKey{}).(*gorm.DB); ok {
		return tx
	}
	return db.WithContext(ctx)
}
