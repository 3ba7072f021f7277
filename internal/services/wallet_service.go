package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/guisedstore/storefront/internal/models"
	"github.com/guisedstore/storefront/internal/repository"
	pkgerrors "github.com/guisedstore/storefront/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

const walletTxTimeout = 10 * time.Second

type WalletView struct {
	Wallet       *models.Wallet       `json:"wallet"`
	Transactions []models.Transaction `json:"transactions"`
}

type WalletService interface {
	GetWallet(ctx context.Context, userID string) (*WalletView, error)
	AddMoney(ctx context.Context, userID string, amount decimal.Decimal) (*models.Transaction, decimal.Decimal, error)
	DeductMoney(ctx context.Context, userID string, amount decimal.Decimal, description string) (*models.Transaction, decimal.Decimal, error)
	ListTransactions(ctx context.Context, userID string, page, limit int) ([]models.Transaction, int, error)
}

type walletService struct {
	txManager  repository.TxManager
	walletRepo repository.WalletRepository
}

func NewWalletService(txManager repository.TxManager, walletRepo repository.WalletRepository) *walletService {
	return &walletService{txManager: txManager, walletRepo: walletRepo}
}

func (s *walletService) GetWallet(ctx context.Context, userID string) (*WalletView, error) {
	wallet, err := s.walletRepo.GetByUserID(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	transactions, _, err := s.walletRepo.ListTransactions(ctx, wallet.ID, 1, 10)
	if err != nil {
		return nil, err
	}
	return &WalletView{Wallet: wallet, Transactions: transactions}, nil
}

// AddMoney records a completed credit and moves the balance inside one
// transactional scope, keeping the ledger and the balance in step.
func (s *walletService) AddMoney(ctx context.Context, userID string, amount decimal.Decimal) (*models.Transaction, decimal.Decimal, error) {
	tracer := otel.Tracer("wallet-service")
	ctx, span := tracer.Start(ctx, "AddMoney")
	defer span.End()

	if !amount.IsPositive() {
		return nil, decimal.Zero, pkgerrors.ErrInvalidInput
	}

	var credit *models.Transaction
	var newBalance decimal.Decimal
	err := s.txManager.WithinTx(ctx, walletTxTimeout, func(ctx context.Context, q repository.Querier) error {
		wallet, err := s.walletRepo.GetByUserIDForUpdate(ctx, q, userID)
		if err != nil {
			return err
		}

		credit = &models.Transaction{
			WalletID:    wallet.ID,
			Amount:      amount,
			Type:        models.TypeCredit,
			Status:      models.StatusCompleted,
			Description: "Money added to wallet",
		}
		if err := s.walletRepo.CreateTransaction(ctx, q, credit); err != nil {
			return err
		}

		newBalance, err = s.walletRepo.AdjustBalance(ctx, q, wallet.ID, amount)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "add money failed")
		slog.Error("failed to add money", "user_id", userID, "amount", amount, "error", err)
		return nil, decimal.Zero, err
	}

	slog.Info("money added to wallet", "user_id", userID, "amount", amount, "balance", newBalance)
	return credit, newBalance, nil
}

func (s *walletService) DeductMoney(ctx context.Context, userID string, amount decimal.Decimal, description string) (*models.Transaction, decimal.Decimal, error) {
	tracer := otel.Tracer("wallet-service")
	ctx, span := tracer.Start(ctx, "DeductMoney")
	defer span.End()

	if !amount.IsPositive() {
		return nil, decimal.Zero, pkgerrors.ErrInvalidInput
	}
	if description == "" {
		description = "Purchase payment"
	}

	var debit *models.Transaction
	var newBalance decimal.Decimal
	err := s.txManager.WithinTx(ctx, walletTxTimeout, func(ctx context.Context, q repository.Querier) error {
		wallet, err := s.walletRepo.GetByUserIDForUpdate(ctx, q, userID)
		if err != nil {
			return err
		}

		debit = &models.Transaction{
			WalletID:    wallet.ID,
			Amount:      amount,
			Type:        models.TypeDebit,
			Status:      models.StatusCompleted,
			Description: description,
		}
		if err := s.walletRepo.CreateTransaction(ctx, q, debit); err != nil {
			return err
		}

		newBalance, err = s.walletRepo.AdjustBalance(ctx, q, wallet.ID, amount.Neg())
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "deduct money failed")
		slog.Error("failed to deduct money", "user_id", userID, "amount", amount, "error", err)
		return nil, decimal.Zero, err
	}

	slog.Info("money deducted from wallet", "user_id", userID, "amount", amount, "balance", newBalance)
	return debit, newBalance, nil
}

func (s *walletService) ListTransactions(ctx context.Context, userID string, page, limit int) ([]models.Transaction, int, error) {
	wallet, err := s.walletRepo.GetByUserID(ctx, nil, userID)
	if err != nil {
		return nil, 0, err
	}
	return s.walletRepo.ListTransactions(ctx, wallet.ID, page, limit)
}
