package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/guisedstore/storefront/internal/infrastructure/observability"
	"github.com/guisedstore/storefront/internal/models"
	"github.com/guisedstore/storefront/internal/repository"
	pkgerrors "github.com/guisedstore/storefront/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type PostgresWalletRepository struct {
	db *sql.DB
}

func NewPostgresWalletRepository(db *sql.DB) *PostgresWalletRepository {
	return &PostgresWalletRepository{db: db}
}

func (r *PostgresWalletRepository) observe(method string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	observability.RepositoryCalls.WithLabelValues(method, status).Inc()
	observability.RepositoryDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
}

func (r *PostgresWalletRepository) Create(ctx context.Context, q repository.Querier, userID string) (*models.Wallet, error) {
	var err error
	start := time.Now()
	defer func() { r.observe("CreateWallet", start, err) }()

	wallet := &models.Wallet{
		ID:      uuid.NewString(),
		UserID:  userID,
		Balance: decimal.Zero,
	}
	query := `INSERT INTO wallets (id, user_id, balance) VALUES ($1, $2, $3) RETURNING created_at, updated_at`
	err = querier(q, r.db).QueryRowContext(ctx, query, wallet.ID, wallet.UserID, wallet.Balance).
		Scan(&wallet.CreatedAt, &wallet.UpdatedAt)
	if err != nil {
		slog.Error("failed to create wallet", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}
	return wallet, nil
}

func (r *PostgresWalletRepository) GetByUserID(ctx context.Context, q repository.Querier, userID string) (*models.Wallet, error) {
	return r.getByUserID(ctx, q, userID, false)
}

func (r *PostgresWalletRepository) GetByUserIDForUpdate(ctx context.Context, q repository.Querier, userID string) (*models.Wallet, error) {
	return r.getByUserID(ctx, q, userID, true)
}

func (r *PostgresWalletRepository) getByUserID(ctx context.Context, q repository.Querier, userID string, forUpdate bool) (*models.Wallet, error) {
	var err error
	start := time.Now()
	defer func() { r.observe("GetWalletByUserID", start, err) }()

	query := `SELECT id, user_id, balance, created_at, updated_at FROM wallets WHERE user_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var wallet models.Wallet
	err = querier(q, r.db).QueryRowContext(ctx, query, userID).
		Scan(&wallet.ID, &wallet.UserID, &wallet.Balance, &wallet.CreatedAt, &wallet.UpdatedAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		err = pkgerrors.ErrWalletNotFound
		return nil, err
	}
	if err != nil {
		slog.Error("failed to get wallet", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return &wallet, nil
}

func (r *PostgresWalletRepository) CreateTransaction(ctx context.Context, q repository.Querier, tx *models.Transaction) error {
	var err error
	tracer := otel.Tracer("wallet-repository")
	ctx, span := tracer.Start(ctx, "CreateTransaction")
	defer span.End()

	start := time.Now()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		r.observe("CreateTransaction", start, err)
	}()

	if tx == nil {
		err = pkgerrors.ErrNilTransaction
		return err
	}
	if tx.Type != models.TypeCredit && tx.Type != models.TypeDebit {
		err = pkgerrors.ErrInvalidTransactionType
		slog.Error("invalid transaction type", "type", tx.Type, "error", err)
		return err
	}
	if tx.Status != models.StatusPending && tx.Status != models.StatusCompleted && tx.Status != models.StatusFailed {
		err = pkgerrors.ErrInvalidTransactionStatus
		slog.Error("invalid transaction status", "status", tx.Status, "error", err)
		return err
	}
	if !tx.Amount.IsPositive() {
		err = fmt.Errorf("%w: amount must be positive", pkgerrors.ErrInvalidInput)
		slog.Error("invalid transaction amount", "amount", tx.Amount, "error", err)
		return err
	}

	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}

	span.SetAttributes(
		attribute.String("wallet_id", tx.WalletID),
		attribute.String("type", string(tx.Type)),
		attribute.String("status", string(tx.Status)),
	)

	query := `INSERT INTO wallet_transactions (id, wallet_id, amount, type, status, description)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at`
	err = querier(q, r.db).QueryRowContext(ctx, query, tx.ID, tx.WalletID, tx.Amount, tx.Type, tx.Status, tx.Description).
		Scan(&tx.CreatedAt)
	if err != nil {
		slog.Error("failed to create wallet transaction", "wallet_id", tx.WalletID, "type", tx.Type, "error", err)
		return fmt.Errorf("failed to create wallet transaction: %w", err)
	}
	return nil
}

// CompleteTransaction moves a pending transaction to completed. It must run
// in the same scope as the balance adjustment that authorizes it.
func (r *PostgresWalletRepository) CompleteTransaction(ctx context.Context, q repository.Querier, transactionID string) error {
	return r.setTransactionStatus(ctx, q, transactionID, models.StatusCompleted)
}

func (r *PostgresWalletRepository) FailTransaction(ctx context.Context, q repository.Querier, transactionID string) error {
	return r.setTransactionStatus(ctx, q, transactionID, models.StatusFailed)
}

func (r *PostgresWalletRepository) setTransactionStatus(ctx context.Context, q repository.Querier, transactionID string, status models.StatusType) error {
	var err error
	start := time.Now()
	defer func() { r.observe("SetTransactionStatus", start, err) }()

	// completed transactions are immutable
	query := `UPDATE wallet_transactions SET status = $1 WHERE id = $2 AND status = 'pending'`
	res, err := querier(q, r.db).ExecContext(ctx, query, status, transactionID)
	if err != nil {
		slog.Error("failed to update transaction status", "transaction_id", transactionID, "status", status, "error", err)
		return fmt.Errorf("failed to update transaction status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		err = pkgerrors.ErrStaleState
		return err
	}
	return nil
}

// AdjustBalance is the single write path for wallet balances. The guard in
// the UPDATE keeps the balance non-negative under concurrent debits.
func (r *PostgresWalletRepository) AdjustBalance(ctx context.Context, q repository.Querier, walletID string, delta decimal.Decimal) (decimal.Decimal, error) {
	var err error
	tracer := otel.Tracer("wallet-repository")
	ctx, span := tracer.Start(ctx, "AdjustBalance")
	defer span.End()

	start := time.Now()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		r.observe("AdjustBalance", start, err)
	}()

	query := `UPDATE wallets
		SET balance = balance + $1, updated_at = NOW()
		WHERE id = $2 AND balance + $1 >= 0
		RETURNING balance`
	var newBalance decimal.Decimal
	err = querier(q, r.db).QueryRowContext(ctx, query, delta, walletID).Scan(&newBalance)
	if stderrors.Is(err, sql.ErrNoRows) {
		err = pkgerrors.ErrInsufficientFunds
		return decimal.Zero, err
	}
	if err != nil {
		slog.Error("failed to adjust balance", "wallet_id", walletID, "delta", delta, "error", err)
		return decimal.Zero, fmt.Errorf("failed to adjust balance: %w", err)
	}
	return newBalance, nil
}

func (r *PostgresWalletRepository) ListTransactions(ctx context.Context, walletID string, page, limit int) ([]models.Transaction, int, error) {
	var err error
	start := time.Now()
	defer func() { r.observe("ListTransactions", start, err) }()

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	var total int
	if err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM wallet_transactions WHERE wallet_id = $1`, walletID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	query := `SELECT id, wallet_id, amount, type, status, description, created_at
		FROM wallet_transactions
		WHERE wallet_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, query, walletID, limit, (page-1)*limit)
	if err != nil {
		slog.Error("failed to list transactions", "wallet_id", walletID, "error", err)
		return nil, 0, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []models.Transaction
	for rows.Next() {
		var tx models.Transaction
		if err = rows.Scan(&tx.ID, &tx.WalletID, &tx.Amount, &tx.Type, &tx.Status, &tx.Description, &tx.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, tx)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return transactions, total, nil
}
