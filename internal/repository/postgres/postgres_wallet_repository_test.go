package repository_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/guisedstore/storefront/internal/models"
	repository "github.com/guisedstore/storefront/internal/repository/postgres"
	pkgerrors "github.com/guisedstore/storefront/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPostgresWalletRepository_AdjustBalance(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	repo := repository.NewPostgresWalletRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		delta := decimal.NewFromInt(-150)
		mock.ExpectQuery("UPDATE wallets").
			WithArgs(delta, "wallet-1").
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("50.00"))

		balance, err := repo.AdjustBalance(ctx, nil, "wallet-1", delta)
		assert.NoError(t, err)
		assert.True(t, balance.Equal(decimal.NewFromInt(50)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("InsufficientFunds", func(t *testing.T) {
		delta := decimal.NewFromInt(-500)
		// the guard in the WHERE clause filters the row out, so no row comes back
		mock.ExpectQuery("UPDATE wallets").
			WithArgs(delta, "wallet-1").
			WillReturnError(sql.ErrNoRows)

		_, err := repo.AdjustBalance(ctx, nil, "wallet-1", delta)
		assert.ErrorIs(t, err, pkgerrors.ErrInsufficientFunds)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DatabaseError", func(t *testing.T) {
		delta := decimal.NewFromInt(10)
		mock.ExpectQuery("UPDATE wallets").
			WithArgs(delta, "wallet-1").
			WillReturnError(fmt.Errorf("database error"))

		_, err := repo.AdjustBalance(ctx, nil, "wallet-1", delta)
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresWalletRepository_CompleteTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	repo := repository.NewPostgresWalletRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		mock.ExpectExec("UPDATE wallet_transactions").
			WithArgs(models.StatusCompleted, "txn-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.CompleteTransaction(ctx, nil, "txn-1")
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("AlreadyResolved", func(t *testing.T) {
		// only pending transactions can change status
		mock.ExpectExec("UPDATE wallet_transactions").
			WithArgs(models.StatusCompleted, "txn-1").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.CompleteTransaction(ctx, nil, "txn-1")
		assert.ErrorIs(t, err, pkgerrors.ErrStaleState)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresWalletRepository_CreateTransaction(t *testing.T) {
	db, _, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	repo := repository.NewPostgresWalletRepository(db)
	ctx := context.Background()

	t.Run("NilTransaction", func(t *testing.T) {
		err := repo.CreateTransaction(ctx, nil, nil)
		assert.ErrorIs(t, err, pkgerrors.ErrNilTransaction)
	})

	t.Run("InvalidType", func(t *testing.T) {
		err := repo.CreateTransaction(ctx, nil, &models.Transaction{
			WalletID: "wallet-1",
			Amount:   decimal.NewFromInt(10),
			Type:     "refund",
			Status:   models.StatusPending,
		})
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidTransactionType)
	})

	t.Run("NonPositiveAmount", func(t *testing.T) {
		err := repo.CreateTransaction(ctx, nil, &models.Transaction{
			WalletID: "wallet-1",
			Amount:   decimal.Zero,
			Type:     models.TypeDebit,
			Status:   models.StatusPending,
		})
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidInput)
	})
}
