package repository

import (
	"context"

	"github.com/guisedstore/storefront/internal/models"
	"github.com/shopspring/decimal"
)

type WalletRepository interface {
	Create(ctx context.Context, q Querier, userID string) (*models.Wallet, error)
	GetByUserID(ctx context.Context, q Querier, userID string) (*models.Wallet, error)
	// GetByUserIDForUpdate takes an exclusive row lock on the wallet; it must
	// only be called inside a transactional scope.
	GetByUserIDForUpdate(ctx context.Context, q Querier, userID string) (*models.Wallet, error)
	CreateTransaction(ctx context.Context, q Querier, tx *models.Transaction) error
	CompleteTransaction(ctx context.Context, q Querier, transactionID string) error
	FailTransaction(ctx context.Context, q Querier, transactionID string) error
	// AdjustBalance applies delta atomically and fails with
	// ErrInsufficientFunds when the result would be negative.
	AdjustBalance(ctx context.Context, q Querier, walletID string, delta decimal.Decimal) (decimal.Decimal, error)
	ListTransactions(ctx context.Context, walletID string, page, limit int) ([]models.Transaction, int, error)
}
