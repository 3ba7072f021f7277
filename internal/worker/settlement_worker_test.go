package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/guisedstore/storefront/internal/models"
	"github.com/guisedstore/storefront/internal/repository"
	pkgerrors "github.com/guisedstore/storefront/pkg/errors"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTxManager struct{}

func (f *fakeTxManager) WithinTx(ctx context.Context, _ time.Duration, fn func(ctx context.Context, q repository.Querier) error) error {
	return fn(ctx, nil)
}

type transitionCall struct {
	from   models.OrderStatus
	to     models.OrderStatus
	reason string
}

type fakeOrderRepo struct {
	order       *models.Order
	getErr      error
	transitions []transitionCall
}

func (f *fakeOrderRepo) Create(ctx context.Context, q repository.Querier, order *models.Order) error {
	return nil
}

func (f *fakeOrderRepo) GetByID(ctx context.Context, q repository.Querier, id string) (*models.Order, error) {
	return f.order, f.getErr
}

func (f *fakeOrderRepo) GetByIDForUpdate(ctx context.Context, q repository.Querier, id string) (*models.Order, error) {
	return f.order, f.getErr
}

func (f *fakeOrderRepo) Transition(ctx context.Context, q repository.Querier, id string, from, to models.OrderStatus, reason string) error {
	if f.order.Status != from {
		return pkgerrors.ErrStaleState
	}
	f.order.Status = to
	f.order.FailureReason = reason
	f.transitions = append(f.transitions, transitionCall{from: from, to: to, reason: reason})
	return nil
}

func (f *fakeOrderRepo) List(ctx context.Context, userID string, page, limit int, status models.OrderStatus) ([]models.Order, int, error) {
	return nil, 0, nil
}

func (f *fakeOrderRepo) ListItems(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	return nil, nil
}

type fakeWalletRepo struct {
	wallet    *models.Wallet
	completed []string
	failed    []string
	adjusted  []decimal.Decimal
}

func (f *fakeWalletRepo) Create(ctx context.Context, q repository.Querier, userID string) (*models.Wallet, error) {
	return f.wallet, nil
}

func (f *fakeWalletRepo) GetByUserID(ctx context.Context, q repository.Querier, userID string) (*models.Wallet, error) {
	return f.wallet, nil
}

func (f *fakeWalletRepo) GetByUserIDForUpdate(ctx context.Context, q repository.Querier, userID string) (*models.Wallet, error) {
	return f.wallet, nil
}

func (f *fakeWalletRepo) CreateTransaction(ctx context.Context, q repository.Querier, tx *models.Transaction) error {
	return nil
}

func (f *fakeWalletRepo) CompleteTransaction(ctx context.Context, q repository.Querier, transactionID string) error {
	f.completed = append(f.completed, transactionID)
	return nil
}

func (f *fakeWalletRepo) FailTransaction(ctx context.Context, q repository.Querier, transactionID string) error {
	f.failed = append(f.failed, transactionID)
	return nil
}

func (f *fakeWalletRepo) AdjustBalance(ctx context.Context, q repository.Querier, walletID string, delta decimal.Decimal) (decimal.Decimal, error) {
	next := f.wallet.Balance.Add(delta)
	if next.IsNegative() {
		return decimal.Zero, pkgerrors.ErrInsufficientFunds
	}
	f.wallet.Balance = next
	f.adjusted = append(f.adjusted, delta)
	return next, nil
}

func (f *fakeWalletRepo) ListTransactions(ctx context.Context, walletID string, page, limit int) ([]models.Transaction, int, error) {
	return nil, 0, nil
}

type fetchResult struct {
	msg kafkago.Message
	err error
}

// scriptedReader plays back a fixed sequence of fetch results and ends the
// run loop with context.Canceled once the script is exhausted.
type scriptedReader struct {
	script    []fetchResult
	next      int
	committed []kafkago.Message
}

func (r *scriptedReader) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	if r.next >= len(r.script) {
		return kafkago.Message{}, context.Canceled
	}
	res := r.script[r.next]
	r.next++
	return res.msg, res.err
}

func (r *scriptedReader) CommitMessages(ctx context.Context, msgs ...kafkago.Message) error {
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *scriptedReader) Close() error { return nil }

func pendingOrder(total int64) *models.Order {
	return &models.Order{
		ID:            "order-1",
		UserID:        "user-1",
		Status:        models.OrderPending,
		TotalAmount:   decimal.NewFromInt(total),
		TransactionID: "txn-1",
	}
}

func TestSettlementWorker_Settle(t *testing.T) {
	ctx := context.Background()

	t.Run("Settled", func(t *testing.T) {
		orderRepo := &fakeOrderRepo{order: pendingOrder(150)}
		walletRepo := &fakeWalletRepo{wallet: &models.Wallet{ID: "wallet-1", UserID: "user-1", Balance: decimal.NewFromInt(200)}}
		w := NewSettlementWorker(nil, &fakeTxManager{}, orderRepo, walletRepo)

		err := w.Settle(ctx, "order-1")
		require.NoError(t, err)

		assert.Equal(t, models.OrderProcessing, orderRepo.order.Status)
		assert.True(t, walletRepo.wallet.Balance.Equal(decimal.NewFromInt(50)))
		assert.Equal(t, []string{"txn-1"}, walletRepo.completed)
		assert.Empty(t, walletRepo.failed)
	})

	t.Run("InsufficientFunds", func(t *testing.T) {
		orderRepo := &fakeOrderRepo{order: pendingOrder(150)}
		walletRepo := &fakeWalletRepo{wallet: &models.Wallet{ID: "wallet-1", UserID: "user-1", Balance: decimal.NewFromInt(100)}}
		w := NewSettlementWorker(nil, &fakeTxManager{}, orderRepo, walletRepo)

		// terminal business failure, not a retryable error
		err := w.Settle(ctx, "order-1")
		require.NoError(t, err)

		assert.Equal(t, models.OrderFailed, orderRepo.order.Status)
		assert.Equal(t, "insufficient wallet balance", orderRepo.order.FailureReason)
		assert.True(t, walletRepo.wallet.Balance.Equal(decimal.NewFromInt(100)))
		assert.Empty(t, walletRepo.adjusted)
		assert.Equal(t, []string{"txn-1"}, walletRepo.failed)
	})

	t.Run("DuplicateDelivery", func(t *testing.T) {
		order := pendingOrder(150)
		order.Status = models.OrderProcessing
		orderRepo := &fakeOrderRepo{order: order}
		walletRepo := &fakeWalletRepo{wallet: &models.Wallet{ID: "wallet-1", UserID: "user-1", Balance: decimal.NewFromInt(200)}}
		w := NewSettlementWorker(nil, &fakeTxManager{}, orderRepo, walletRepo)

		err := w.Settle(ctx, "order-1")
		require.NoError(t, err)

		// nothing moves twice
		assert.True(t, walletRepo.wallet.Balance.Equal(decimal.NewFromInt(200)))
		assert.Empty(t, walletRepo.adjusted)
		assert.Empty(t, walletRepo.completed)
		assert.Empty(t, orderRepo.transitions)
	})

	t.Run("OrderMissing", func(t *testing.T) {
		orderRepo := &fakeOrderRepo{getErr: pkgerrors.ErrOrderNotFound}
		w := NewSettlementWorker(nil, &fakeTxManager{}, orderRepo, &fakeWalletRepo{})

		// acknowledged rather than retried forever
		err := w.Settle(ctx, "order-unknown")
		assert.NoError(t, err)
	})
}

func TestSettlementWorker_Run_RecoversFromFetchErrors(t *testing.T) {
	reader := &scriptedReader{script: []fetchResult{
		{err: errors.New("broker unreachable")},
		{msg: kafkago.Message{Value: []byte(`{"order_id":"order-1"}`)}},
	}}
	orderRepo := &fakeOrderRepo{order: pendingOrder(150)}
	walletRepo := &fakeWalletRepo{wallet: &models.Wallet{ID: "wallet-1", UserID: "user-1", Balance: decimal.NewFromInt(200)}}

	w := NewSettlementWorker(reader, &fakeTxManager{}, orderRepo, walletRepo)
	w.fetchBackoff = 0

	w.Run(context.Background())

	// the transient fetch error must not stop consumption
	assert.Equal(t, models.OrderProcessing, orderRepo.order.Status)
	require.Len(t, reader.committed, 1)
}
