package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/garyjia/toolcrib/internal/application/port"
	"github.com/garyjia/toolcrib/internal/infrastructure/persistence/sqldb"
)

// getExecutor returns the transaction carried by ctx or the pool
func getExecutor(ctx context.Context, db *sqlx.DB) sqlx.ExtContext {
	return sqldb.Executor(ctx, db)
}

// requireTx returns the transaction carried by ctx or port.ErrNoTransaction
func requireTx(ctx context.Context) (*sqlx.Tx, error) {
	tx := sqldb.TxFromContext(ctx)
	if tx == nil {
		return nil, port.ErrNoTransaction
	}
	return tx, nil
}

// affectedOne reports whether a conditional update matched exactly one row
func affectedOne(n int64) bool {
	return n == 1
}
