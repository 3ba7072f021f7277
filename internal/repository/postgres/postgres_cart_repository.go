package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/guisedstore/storefront/internal/models"
	"github.com/guisedstore/storefront/internal/repository"
	pkgerrors "github.com/guisedstore/storefront/pkg/errors"
	"github.com/shopspring/decimal"
)

type PostgresCartRepository struct {
	db *sql.DB
}

func NewPostgresCartRepository(db *sql.DB) *PostgresCartRepository {
	return &PostgresCartRepository{db: db}
}

func (r *PostgresCartRepository) GetOrCreateActive(ctx context.Context, userID string) (*models.Cart, error) {
	cart, err := r.getActive(ctx, nil, userID)
	if err == nil {
		return cart, nil
	}
	if !stderrors.Is(err, pkgerrors.ErrCartNotFound) {
		return nil, err
	}

	cart = &models.Cart{ID: uuid.NewString(), UserID: userID, Status: models.CartActive}
	query := `INSERT INTO carts (id, user_id, status) VALUES ($1, $2, $3) RETURNING created_at, updated_at`
	if err := r.db.QueryRowContext(ctx, query, cart.ID, cart.UserID, cart.Status).
		Scan(&cart.CreatedAt, &cart.UpdatedAt); err != nil {
		slog.Error("failed to create cart", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}
	return cart, nil
}

func (r *PostgresCartRepository) getActive(ctx context.Context, q repository.Querier, userID string) (*models.Cart, error) {
	query := `SELECT id, user_id, status, created_at, updated_at FROM carts WHERE user_id = $1 AND status = 'active'`
	var cart models.Cart
	err := querier(q, r.db).QueryRowContext(ctx, query, userID).
		Scan(&cart.ID, &cart.UserID, &cart.Status, &cart.CreatedAt, &cart.UpdatedAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrCartNotFound
	}
	if err != nil {
		slog.Error("failed to get active cart", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to get active cart: %w", err)
	}
	return &cart, nil
}

func (r *PostgresCartRepository) GetActiveWithItems(ctx context.Context, q repository.Querier, userID string) (*models.Cart, error) {
	cart, err := r.getActive(ctx, q, userID)
	if err != nil {
		return nil, err
	}

	query := `SELECT ci.id, ci.cart_id, ci.product_id, ci.quantity, ci.price, ci.created_at,
		p.id, p.name, p.description, COALESCE(p.image, ''), p.status, p.price, p.category_id,
		c.id, c.name, COALESCE(c.description, '')
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		JOIN categories c ON c.id = p.category_id
		WHERE ci.cart_id = $1
		ORDER BY ci.created_at`
	rows, err := querier(q, r.db).QueryContext(ctx, query, cart.ID)
	if err != nil {
		slog.Error("failed to load cart items", "cart_id", cart.ID, "error", err)
		return nil, fmt.Errorf("failed to load cart items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.CartItem
		var product models.Product
		var category models.Category
		if err := rows.Scan(
			&item.ID, &item.CartID, &item.ProductID, &item.Quantity, &item.Price, &item.CreatedAt,
			&product.ID, &product.Name, &product.Description, &product.Image, &product.Status,
			&product.Price, &product.CategoryID,
			&category.ID, &category.Name, &category.Description,
		); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		product.Category = &category
		item.Product = &product
		cart.Items = append(cart.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cart items: %w", err)
	}
	return cart, nil
}

func (r *PostgresCartRepository) AddItem(ctx context.Context, cartID, productID string, quantity int32, price decimal.Decimal) error {
	// merge with an existing line for the same product and refresh the
	// price snapshot
	query := `INSERT INTO cart_items (id, cart_id, product_id, quantity, price)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (cart_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, price = EXCLUDED.price`
	if _, err := r.db.ExecContext(ctx, query, uuid.NewString(), cartID, productID, quantity, price); err != nil {
		slog.Error("failed to add cart item", "cart_id", cartID, "product_id", productID, "error", err)
		return fmt.Errorf("failed to add cart item: %w", err)
	}
	return nil
}

func (r *PostgresCartRepository) UpdateItemQuantity(ctx context.Context, userID, itemID string, quantity int32) error {
	query := `UPDATE cart_items SET quantity = $1
		WHERE id = $2 AND cart_id IN (SELECT id FROM carts WHERE user_id = $3 AND status = 'active')`
	res, err := r.db.ExecContext(ctx, query, quantity, itemID, userID)
	if err != nil {
		slog.Error("failed to update cart item", "item_id", itemID, "error", err)
		return fmt.Errorf("failed to update cart item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return pkgerrors.ErrCartItemNotFound
	}
	return nil
}

func (r *PostgresCartRepository) RemoveItem(ctx context.Context, userID, itemID string) error {
	query := `DELETE FROM cart_items
		WHERE id = $1 AND cart_id IN (SELECT id FROM carts WHERE user_id = $2 AND status = 'active')`
	res, err := r.db.ExecContext(ctx, query, itemID, userID)
	if err != nil {
		slog.Error("failed to remove cart item", "item_id", itemID, "error", err)
		return fmt.Errorf("failed to remove cart item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return pkgerrors.ErrCartItemNotFound
	}
	return nil
}

func (r *PostgresCartRepository) Clear(ctx context.Context, cartID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		slog.Error("failed to clear cart", "cart_id", cartID, "error", err)
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

func (r *PostgresCartRepository) MarkConverted(ctx context.Context, q repository.Querier, cartID string) error {
	query := `UPDATE carts SET status = 'converted', updated_at = NOW() WHERE id = $1 AND status = 'active'`
	res, err := querier(q, r.db).ExecContext(ctx, query, cartID)
	if err != nil {
		slog.Error("failed to convert cart", "cart_id", cartID, "error", err)
		return fmt.Errorf("failed to convert cart: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return pkgerrors.ErrStaleState
	}
	return nil
}
