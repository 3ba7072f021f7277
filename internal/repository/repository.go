package repository

import (
	"context"
	"database/sql"
	"time"
)

// Querier is satisfied by both *sql.DB and *sql.Tx. Repository methods that
// must participate in a caller-owned transactional scope take it explicitly;
// passing nil makes the repository fall back to its own connection pool.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TxManager owns the lifecycle of a transactional scope. The scope carries a
// bounded timeout; on error or timeout everything inside fn is rolled back.
type TxManager interface {
	WithinTx(ctx context.Context, timeout time.Duration, fn func(ctx context.Context, q Querier) error) error
}
