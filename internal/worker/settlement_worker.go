package worker

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"log/slog"
	"time"

	"github.com/guisedstore/storefront/internal/infrastructure/observability"
	"github.com/guisedstore/storefront/internal/models"
	"github.com/guisedstore/storefront/internal/repository"
	pkgerrors "github.com/guisedstore/storefront/pkg/errors"
	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	settlementTxTimeout = 30 * time.Second
	settlementBackoff   = 5 * time.Second
	settlementAttempts  = 5
)

// MessageReader is the slice of kafka.Reader the workers need; fetch and
// commit are separate so a message is acknowledged only after it was
// handled.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// SettlementWorker consumes settlement messages one at a time and performs
// the debit that finalizes a pending order. Concurrency across wallets comes
// from running more worker instances; correctness under contention rests on
// the row locks taken inside the transactional scope.
type SettlementWorker struct {
	reader     MessageReader
	txManager  repository.TxManager
	orderRepo  repository.OrderRepository
	walletRepo repository.WalletRepository

	// pause between fetch attempts while the broker is unreachable
	fetchBackoff time.Duration
}

func NewSettlementWorker(
	reader MessageReader,
	txManager repository.TxManager,
	orderRepo repository.OrderRepository,
	walletRepo repository.WalletRepository,
) *SettlementWorker {
	return &SettlementWorker{
		reader:       reader,
		txManager:    txManager,
		orderRepo:    orderRepo,
		walletRepo:   walletRepo,
		fetchBackoff: settlementBackoff,
	}
}

func (w *SettlementWorker) Run(ctx context.Context) {
	for {
		msg, err := w.reader.FetchMessage(ctx)
		if err != nil {
			if stderrors.Is(err, context.Canceled) || stderrors.Is(err, io.EOF) {
				return
			}
			slog.Error("failed to fetch settlement message", "error", err)
			time.Sleep(w.fetchBackoff)
			continue
		}

		var payload models.SettlementMessage
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			slog.Error("malformed settlement message", "value", string(msg.Value), "error", err)
			w.commit(ctx, msg)
			continue
		}

		// Transient failures are retried with a fixed backoff; after the
		// attempt budget the message is committed anyway so a poison message
		// cannot wedge the partition.
		for attempt := 1; ; attempt++ {
			err = w.Settle(ctx, payload.OrderID)
			if err == nil {
				break
			}
			if ctx.Err() != nil {
				return
			}
			if attempt >= settlementAttempts {
				slog.Error("giving up on settlement message", "order_id", payload.OrderID, "attempts", attempt, "error", err)
				observability.SettlementProcessed.WithLabelValues("poison").Inc()
				break
			}
			slog.Error("settlement failed, retrying", "order_id", payload.OrderID, "attempt", attempt, "error", err)
			time.Sleep(settlementBackoff)
		}

		w.commit(ctx, msg)
	}
}

func (w *SettlementWorker) commit(ctx context.Context, msg kafkago.Message) {
	if err := w.reader.CommitMessages(ctx, msg); err != nil {
		slog.Error("failed to commit settlement message", "error", err)
	}
}

func (w *SettlementWorker) Close() error {
	return w.reader.Close()
}

// Settle performs the debit for one order. A nil return means the message
// may be acknowledged: settled, terminal business failure, duplicate
// delivery and permanently-missing order all count. An error means the
// scope rolled back and the message should be retried.
//
// Lock order is fixed - order row first, then wallet row - so concurrent
// settlements against the same wallet cannot deadlock.
func (w *SettlementWorker) Settle(ctx context.Context, orderID string) error {
	tracer := otel.Tracer("settlement-worker")
	ctx, span := tracer.Start(ctx, "Settle")
	span.SetAttributes(attribute.String("order_id", orderID))
	defer span.End()

	var outcome string
	err := w.txManager.WithinTx(ctx, settlementTxTimeout, func(ctx context.Context, q repository.Querier) error {
		order, err := w.orderRepo.GetByIDForUpdate(ctx, q, orderID)
		if stderrors.Is(err, pkgerrors.ErrOrderNotFound) {
			// the order can never be found again; do not retry
			slog.Error("order not found for settlement", "order_id", orderID)
			outcome = "missing"
			return nil
		}
		if err != nil {
			return err
		}

		// The row is locked, so a non-pending status means a previous
		// delivery already handled this order.
		if order.Status != models.OrderPending {
			slog.Info("order already settled, skipping duplicate delivery", "order_id", orderID, "status", order.Status)
			outcome = "duplicate"
			return nil
		}

		wallet, err := w.walletRepo.GetByUserIDForUpdate(ctx, q, order.UserID)
		if err != nil {
			return err
		}

		// Funds may have moved since the checkout pre-check.
		if wallet.Balance.LessThan(order.TotalAmount) {
			if err := w.orderRepo.Transition(ctx, q, order.ID, models.OrderPending, models.OrderFailed, "insufficient wallet balance"); err != nil {
				return err
			}
			if order.TransactionID != "" {
				if err := w.walletRepo.FailTransaction(ctx, q, order.TransactionID); err != nil && !stderrors.Is(err, pkgerrors.ErrStaleState) {
					return err
				}
			}
			slog.Info("order failed at settlement", "order_id", orderID, "balance", wallet.Balance, "total", order.TotalAmount)
			outcome = "insufficient_funds"
			return nil
		}

		if _, err := w.walletRepo.AdjustBalance(ctx, q, wallet.ID, order.TotalAmount.Neg()); err != nil {
			return err
		}
		if err := w.walletRepo.CompleteTransaction(ctx, q, order.TransactionID); err != nil {
			return err
		}
		if err := w.orderRepo.Transition(ctx, q, order.ID, models.OrderPending, models.OrderProcessing, ""); err != nil {
			return err
		}

		slog.Info("order settled", "order_id", orderID, "total", order.TotalAmount)
		outcome = "settled"
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "settlement failed")
		return err
	}

	observability.SettlementProcessed.WithLabelValues(outcome).Inc()
	return nil
}
