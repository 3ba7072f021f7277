package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/guisedstore/storefront/internal/infrastructure/observability"
	"github.com/guisedstore/storefront/internal/models"
	"github.com/guisedstore/storefront/internal/repository"
	pkgerrors "github.com/guisedstore/storefront/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type PostgresOrderRepository struct {
	db *sql.DB
}

func NewPostgresOrderRepository(db *sql.DB) *PostgresOrderRepository {
	return &PostgresOrderRepository{db: db}
}

func (r *PostgresOrderRepository) observe(method string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	observability.RepositoryCalls.WithLabelValues(method, status).Inc()
	observability.RepositoryDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
}

func (r *PostgresOrderRepository) Create(ctx context.Context, q repository.Querier, order *models.Order) error {
	var err error
	tracer := otel.Tracer("order-repository")
	ctx, span := tracer.Start(ctx, "CreateOrder")
	defer span.End()

	start := time.Now()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		r.observe("CreateOrder", start, err)
	}()

	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if order.Status == "" {
		order.Status = models.OrderPending
	}
	if order.PaymentMethod == "" {
		order.PaymentMethod = "wallet"
	}

	span.SetAttributes(
		attribute.String("order_id", order.ID),
		attribute.String("user_id", order.UserID),
	)

	query := `INSERT INTO orders (id, user_id, cart_id, status, total_amount, payment_method, transaction_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at, updated_at`
	err = querier(q, r.db).QueryRowContext(ctx, query,
		order.ID, order.UserID, order.CartID, order.Status, order.TotalAmount,
		order.PaymentMethod, nullString(order.TransactionID),
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		slog.Error("failed to create order", "user_id", order.UserID, "cart_id", order.CartID, "error", err)
		return fmt.Errorf("failed to create order: %w", err)
	}

	itemQuery := `INSERT INTO order_items (id, order_id, product_id, quantity, price, product_snapshot)
		VALUES ($1, $2, $3, $4, $5, $6)`
	for i := range order.Items {
		item := &order.Items[i]
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		item.OrderID = order.ID

		snapshot, mErr := json.Marshal(item.Snapshot)
		if mErr != nil {
			err = fmt.Errorf("failed to marshal product snapshot: %w", mErr)
			return err
		}
		if _, err = querier(q, r.db).ExecContext(ctx, itemQuery,
			item.ID, item.OrderID, item.ProductID, item.Quantity, item.Price, snapshot); err != nil {
			slog.Error("failed to create order item", "order_id", order.ID, "product_id", item.ProductID, "error", err)
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}

	slog.Info("order created", "order_id", order.ID, "user_id", order.UserID, "total", order.TotalAmount)
	return nil
}

func (r *PostgresOrderRepository) GetByID(ctx context.Context, q repository.Querier, id string) (*models.Order, error) {
	return r.getByID(ctx, q, id, false)
}

func (r *PostgresOrderRepository) GetByIDForUpdate(ctx context.Context, q repository.Querier, id string) (*models.Order, error) {
	return r.getByID(ctx, q, id, true)
}

func (r *PostgresOrderRepository) getByID(ctx context.Context, q repository.Querier, id string, forUpdate bool) (*models.Order, error) {
	var err error
	start := time.Now()
	defer func() { r.observe("GetOrderByID", start, err) }()

	query := `SELECT id, user_id, cart_id, status, total_amount, payment_method,
		COALESCE(transaction_id::text, ''), COALESCE(failure_reason, ''), created_at, updated_at
		FROM orders WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var order models.Order
	err = querier(q, r.db).QueryRowContext(ctx, query, id).Scan(
		&order.ID, &order.UserID, &order.CartID, &order.Status, &order.TotalAmount,
		&order.PaymentMethod, &order.TransactionID, &order.FailureReason,
		&order.CreatedAt, &order.UpdatedAt,
	)
	if stderrors.Is(err, sql.ErrNoRows) {
		err = pkgerrors.ErrOrderNotFound
		return nil, err
	}
	if err != nil {
		slog.Error("failed to get order", "order_id", id, "error", err)
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &order, nil
}

// Transition fails with ErrStaleState when the row is not in the expected
// status, which makes duplicate settlement deliveries a no-op.
func (r *PostgresOrderRepository) Transition(ctx context.Context, q repository.Querier, id string, from, to models.OrderStatus, reason string) error {
	var err error
	tracer := otel.Tracer("order-repository")
	ctx, span := tracer.Start(ctx, "TransitionOrder")
	span.SetAttributes(
		attribute.String("order_id", id),
		attribute.String("from", string(from)),
		attribute.String("to", string(to)),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		r.observe("TransitionOrder", start, err)
	}()

	query := `UPDATE orders
		SET status = $1, failure_reason = NULLIF($2, ''), updated_at = NOW()
		WHERE id = $3 AND status = $4`
	res, err := querier(q, r.db).ExecContext(ctx, query, to, reason, id, from)
	if err != nil {
		slog.Error("failed to transition order", "order_id", id, "from", from, "to", to, "error", err)
		return fmt.Errorf("failed to transition order: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		err = pkgerrors.ErrStaleState
		return err
	}

	slog.Info("order transitioned", "order_id", id, "from", from, "to", to)
	return nil
}

func (r *PostgresOrderRepository) List(ctx context.Context, userID string, page, limit int, status models.OrderStatus) ([]models.Order, int, error) {
	var err error
	start := time.Now()
	defer func() { r.observe("ListOrders", start, err) }()

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	countQuery := `SELECT COUNT(*) FROM orders WHERE user_id = $1 AND ($2 = '' OR status::text = $2)`
	var total int
	if err = r.db.QueryRowContext(ctx, countQuery, userID, string(status)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	query := `SELECT id, user_id, cart_id, status, total_amount, payment_method,
		COALESCE(transaction_id::text, ''), COALESCE(failure_reason, ''), created_at, updated_at
		FROM orders
		WHERE user_id = $1 AND ($2 = '' OR status::text = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`
	rows, err := r.db.QueryContext(ctx, query, userID, string(status), limit, (page-1)*limit)
	if err != nil {
		slog.Error("failed to list orders", "user_id", userID, "error", err)
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var order models.Order
		if err = rows.Scan(
			&order.ID, &order.UserID, &order.CartID, &order.Status, &order.TotalAmount,
			&order.PaymentMethod, &order.TransactionID, &order.FailureReason,
			&order.CreatedAt, &order.UpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate orders: %w", err)
	}
	return orders, total, nil
}

func (r *PostgresOrderRepository) ListItems(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	var err error
	start := time.Now()
	defer func() { r.observe("ListOrderItems", start, err) }()

	query := `SELECT id, order_id, product_id, quantity, price, product_snapshot
		FROM order_items WHERE order_id = $1 ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		slog.Error("failed to list order items", "order_id", orderID, "error", err)
		return nil, fmt.Errorf("failed to list order items: %w", err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var item models.OrderItem
		var snapshot []byte
		if err = rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.Price, &snapshot); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		if err = json.Unmarshal(snapshot, &item.Snapshot); err != nil {
			return nil, fmt.Errorf("failed to unmarshal product snapshot: %w", err)
		}
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate order items: %w", err)
	}
	return items, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
