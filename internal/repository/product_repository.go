package repository

import (
	"context"

	"github.com/guisedstore/storefront/internal/models"
	"github.com/shopspring/decimal"
)

type ProductFilter struct {
	Category string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Status   models.ProductStatus
	Page     int
	Limit    int
}

type ProductRepository interface {
	GetByID(ctx context.Context, id string) (*models.Product, error)
	List(ctx context.Context, filter ProductFilter) ([]models.Product, int, error)
	// ListAll streams every product with its category, used by the full
	// index resynchronization.
	ListAll(ctx context.Context) ([]models.Product, error)
	Create(ctx context.Context, p *models.Product) error
	Update(ctx context.Context, p *models.Product) error
	Delete(ctx context.Context, id string) error
	Categories(ctx context.Context) ([]models.Category, error)
}
