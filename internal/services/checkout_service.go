package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/guisedstore/storefront/internal/infrastructure/kafka"
	"github.com/guisedstore/storefront/internal/models"
	"github.com/guisedstore/storefront/internal/repository"
	pkgerrors "github.com/guisedstore/storefront/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

const checkoutTxTimeout = 30 * time.Second

type CheckoutService interface {
	Checkout(ctx context.Context, userID string) (*models.Order, error)
	GetOrder(ctx context.Context, userID, orderID string) (*models.Order, error)
	ListOrders(ctx context.Context, userID string, page, limit int, status models.OrderStatus) ([]models.Order, int, error)
	CancelOrder(ctx context.Context, userID, orderID string) error
}

type checkoutService struct {
	txManager       repository.TxManager
	cartRepo        repository.CartRepository
	orderRepo       repository.OrderRepository
	walletRepo      repository.WalletRepository
	settlementQueue kafka.Producer
}

func NewCheckoutService(
	txManager repository.TxManager,
	cartRepo repository.CartRepository,
	orderRepo repository.OrderRepository,
	walletRepo repository.WalletRepository,
	settlementQueue kafka.Producer,
) *checkoutService {
	return &checkoutService{
		txManager:       txManager,
		cartRepo:        cartRepo,
		orderRepo:       orderRepo,
		walletRepo:      walletRepo,
		settlementQueue: settlementQueue,
	}
}

// Checkout converts the user's active cart into a pending order and hands it
// to the settlement queue. The order, its debit transaction, the item
// snapshots and the cart conversion commit in one transactional scope; the
// settlement message is published only after the commit so a consumer can
// never observe an order that does not exist.
func (s *checkoutService) Checkout(ctx context.Context, userID string) (*models.Order, error) {
	tracer := otel.Tracer("checkout-service")
	ctx, span := tracer.Start(ctx, "Checkout")
	defer span.End()

	var order *models.Order
	err := s.txManager.WithinTx(ctx, checkoutTxTimeout, func(ctx context.Context, q repository.Querier) error {
		cart, err := s.cartRepo.GetActiveWithItems(ctx, q, userID)
		if stderrors.Is(err, pkgerrors.ErrCartNotFound) {
			return pkgerrors.ErrEmptyCart
		}
		if err != nil {
			return err
		}
		if len(cart.Items) == 0 {
			return pkgerrors.ErrEmptyCart
		}

		// Total comes from the price snapshots on the cart items, not the
		// live catalog, so concurrent price edits cannot change the amount.
		total := cart.Total()

		wallet, err := s.walletRepo.GetByUserID(ctx, q, userID)
		if err != nil {
			return err
		}
		// Pre-check only; funds are not reserved. Settlement re-validates
		// under an exclusive row lock.
		if wallet.Balance.LessThan(total) {
			return pkgerrors.ErrInsufficientFunds
		}

		debit := &models.Transaction{
			WalletID:    wallet.ID,
			Amount:      total,
			Type:        models.TypeDebit,
			Status:      models.StatusPending,
			Description: "Order payment",
		}
		if err := s.walletRepo.CreateTransaction(ctx, q, debit); err != nil {
			return err
		}

		order = &models.Order{
			UserID:        userID,
			CartID:        cart.ID,
			Status:        models.OrderPending,
			TotalAmount:   total,
			PaymentMethod: "wallet",
			TransactionID: debit.ID,
			Items:         snapshotItems(cart.Items),
		}
		if err := s.orderRepo.Create(ctx, q, order); err != nil {
			return err
		}

		return s.cartRepo.MarkConverted(ctx, q, cart.ID)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "checkout failed")
		slog.Error("checkout failed", "user_id", userID, "error", err)
		return nil, err
	}

	if err := s.settlementQueue.Send(ctx, order.ID, models.SettlementMessage{OrderID: order.ID}); err != nil {
		// The order is committed and pending; without the message it will
		// never settle, so this must be loud.
		slog.Error("failed to enqueue order for settlement", "order_id", order.ID, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to enqueue settlement")
		return nil, fmt.Errorf("%w: failed to enqueue order for settlement", pkgerrors.ErrInternal)
	}

	slog.Info("order placed", "order_id", order.ID, "user_id", userID, "total", order.TotalAmount)
	return order, nil
}

func snapshotItems(items []models.CartItem) []models.OrderItem {
	out := make([]models.OrderItem, 0, len(items))
	for _, item := range items {
		orderItem := models.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		}
		if item.Product != nil {
			orderItem.Snapshot = models.ProductSnapshot{
				Name:        item.Product.Name,
				Description: item.Product.Description,
			}
			if item.Product.Category != nil {
				orderItem.Snapshot.Category = item.Product.Category.Name
			}
		}
		out = append(out, orderItem)
	}
	return out
}

func (s *checkoutService) GetOrder(ctx context.Context, userID, orderID string) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, nil, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, pkgerrors.ErrOrderNotFound
	}
	items, err := s.orderRepo.ListItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

func (s *checkoutService) ListOrders(ctx context.Context, userID string, page, limit int, status models.OrderStatus) ([]models.Order, int, error) {
	orders, total, err := s.orderRepo.List(ctx, userID, page, limit, status)
	if err != nil {
		return nil, 0, err
	}
	for i := range orders {
		items, err := s.orderRepo.ListItems(ctx, orders[i].ID)
		if err != nil {
			return nil, 0, err
		}
		orders[i].Items = items
	}
	return orders, total, nil
}

// CancelOrder is only valid while the order is still pending. No funds were
// reserved at checkout, so there is nothing to refund; the pending debit is
// marked failed so the ledger records the outcome.
func (s *checkoutService) CancelOrder(ctx context.Context, userID, orderID string) error {
	tracer := otel.Tracer("checkout-service")
	ctx, span := tracer.Start(ctx, "CancelOrder")
	defer span.End()

	err := s.txManager.WithinTx(ctx, checkoutTxTimeout, func(ctx context.Context, q repository.Querier) error {
		order, err := s.orderRepo.GetByIDForUpdate(ctx, q, orderID)
		if err != nil {
			return err
		}
		if order.UserID != userID {
			return pkgerrors.ErrOrderNotFound
		}

		if err := s.orderRepo.Transition(ctx, q, orderID, models.OrderPending, models.OrderCancelled, "cancelled by user"); err != nil {
			if stderrors.Is(err, pkgerrors.ErrStaleState) {
				return pkgerrors.ErrOrderNotCancellable
			}
			return err
		}

		if order.TransactionID != "" {
			if err := s.walletRepo.FailTransaction(ctx, q, order.TransactionID); err != nil && !stderrors.Is(err, pkgerrors.ErrStaleState) {
				return err
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cancel failed")
		slog.Error("cancel order failed", "order_id", orderID, "user_id", userID, "error", err)
		return err
	}

	slog.Info("order cancelled", "order_id", orderID, "user_id", userID)
	return nil
}
