package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/guisedstore/storefront/internal/repository"
)

// SQLTxManager begins and finishes transactional scopes over a single
// *sql.DB. It is injected into the services and workers rather than held as
// package state so ownership and lifecycle stay explicit.
type SQLTxManager struct {
	db *sql.DB
}

func NewSQLTxManager(db *sql.DB) *SQLTxManager {
	return &SQLTxManager{db: db}
}

func (m *SQLTxManager) WithinTx(ctx context.Context, timeout time.Duration, fn func(ctx context.Context, q repository.Querier) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			slog.Error("rollback failed", "error", rbErr, "cause", err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// querier resolves the effective query target: the caller's transactional
// scope when one was passed, the repository's own pool otherwise.
func querier(q repository.Querier, db *sql.DB) repository.Querier {
	if q != nil {
		return q
	}
	return db
}
