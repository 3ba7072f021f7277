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
)

type PostgresProductRepository struct {
	db *sql.DB
}

func NewPostgresProductRepository(db *sql.DB) *PostgresProductRepository {
	return &PostgresProductRepository{db: db}
}

const productColumns = `p.id, p.name, p.description, COALESCE(p.image, ''), p.status, p.price, p.category_id,
	c.id, c.name, COALESCE(c.description, ''), p.created_at, p.updated_at`

func scanProduct(row interface {
	Scan(dest ...any) error
}) (*models.Product, error) {
	var p models.Product
	var c models.Category
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Image, &p.Status, &p.Price, &p.CategoryID,
		&c.ID, &c.Name, &c.Description, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Category = &c
	return &p, nil
}

func (r *PostgresProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	query := `SELECT ` + productColumns + `
		FROM products p JOIN categories c ON c.id = p.category_id
		WHERE p.id = $1`
	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrProductNotFound
	}
	if err != nil {
		slog.Error("failed to get product", "product_id", id, "error", err)
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return product, nil
}

func (r *PostgresProductRepository) List(ctx context.Context, filter repository.ProductFilter) ([]models.Product, int, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = 10
	}
	status := filter.Status
	if status == "" {
		status = models.ProductPublished
	}

	where := ` WHERE p.status = $1
		AND ($2 = '' OR c.name = $2)
		AND ($3::numeric IS NULL OR p.price >= $3)
		AND ($4::numeric IS NULL OR p.price <= $4)`
	args := []any{string(status), filter.Category, filter.MinPrice, filter.MaxPrice}

	var total int
	countQuery := `SELECT COUNT(*) FROM products p JOIN categories c ON c.id = p.category_id` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	query := `SELECT ` + productColumns + `
		FROM products p JOIN categories c ON c.id = p.category_id` + where + `
		ORDER BY p.name
		LIMIT $5 OFFSET $6`
	rows, err := r.db.QueryContext(ctx, query, append(args, limit, (page-1)*limit)...)
	if err != nil {
		slog.Error("failed to list products", "error", err)
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products, err := collectProducts(rows)
	if err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func (r *PostgresProductRepository) ListAll(ctx context.Context) ([]models.Product, error) {
	query := `SELECT ` + productColumns + `
		FROM products p JOIN categories c ON c.id = p.category_id
		ORDER BY p.created_at`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		slog.Error("failed to list all products", "error", err)
		return nil, fmt.Errorf("failed to list all products: %w", err)
	}
	defer rows.Close()
	return collectProducts(rows)
}

func collectProducts(rows *sql.Rows) ([]models.Product, error) {
	var products []models.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, *product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}
	return products, nil
}

func (r *PostgresProductRepository) Create(ctx context.Context, p *models.Product) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = models.ProductDraft
	}
	query := `INSERT INTO products (id, name, description, image, status, price, category_id)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7) RETURNING created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, p.ID, p.Name, p.Description, p.Image, p.Status, p.Price, p.CategoryID).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		slog.Error("failed to create product", "name", p.Name, "error", err)
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

func (r *PostgresProductRepository) Update(ctx context.Context, p *models.Product) error {
	query := `UPDATE products
		SET name = $1, description = $2, image = NULLIF($3, ''), status = $4, price = $5, category_id = $6, updated_at = NOW()
		WHERE id = $7 RETURNING updated_at`
	err := r.db.QueryRowContext(ctx, query, p.Name, p.Description, p.Image, p.Status, p.Price, p.CategoryID, p.ID).
		Scan(&p.UpdatedAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return pkgerrors.ErrProductNotFound
	}
	if err != nil {
		slog.Error("failed to update product", "product_id", p.ID, "error", err)
		return fmt.Errorf("failed to update product: %w", err)
	}
	return nil
}

func (r *PostgresProductRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		slog.Error("failed to delete product", "product_id", id, "error", err)
		return fmt.Errorf("failed to delete product: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return pkgerrors.ErrProductNotFound
	}
	return nil
}

func (r *PostgresProductRepository) Categories(ctx context.Context) ([]models.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, COALESCE(description, '') FROM categories ORDER BY name`)
	if err != nil {
		slog.Error("failed to list categories", "error", err)
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var categories []models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate categories: %w", err)
	}
	return categories, nil
}
