package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nexuscrm/salescrm/internal/infrastructure/database"
	"github.com/nexuscrm/salescrm/pkg/query"
)

// txContextKey is the key for storing transaction in context
type txContextKey struct{}

// TransactionManager runs units of work in a database transaction carried
// through the context, so repositories called inside fn join it.
type TransactionManager struct {
	conn *database.Connection
}

// NewTransactionManager creates a new TransactionManager
func NewTransactionManager(conn *database.Connection) *TransactionManager {
	return &TransactionManager{conn: conn}
}

// WithTransaction executes fn within a database transaction.
// The transaction is rolled back if fn returns an error or panics and
// committed if fn returns nil. Nested calls reuse the outer transaction.
func (tm *TransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ExtractTx(ctx) != nil {
		return fn(ctx)
	}

	tx, err := tm.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(InjectTx(ctx, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed: %w (rollback error: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// InjectTx injects a transaction into the context
func InjectTx(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

// ExtractTx extracts a transaction from the context
func ExtractTx(ctx context.Context) *sql.Tx {
	if tx, ok := ctx.Value(txContextKey{}).(*sql.Tx); ok {
		return tx
	}
	return nil
}

// txExecutor rebinds placeholders before running on a transaction.
type txExecutor struct {
	tx      *sql.Tx
	dialect query.Dialect
}

func (e *txExecutor) QueryContext(ctx context.Context, q string, args ...interface{}) (*sql.Rows, error) {
	return e.tx.QueryContext(ctx, e.dialect.Rebind(q), args...)
}

func (e *txExecutor) QueryRowContext(ctx context.Context, q string, args ...interface{}) *sql.Row {
	return e.tx.QueryRowContext(ctx, e.dialect.Rebind(q), args...)
}

func (e *txExecutor) ExecContext(ctx context.Context, q string, args ...interface{}) (sql.Result, error) {
	return e.tx.ExecContext(ctx, e.dialect.Rebind(q), args...)
}
