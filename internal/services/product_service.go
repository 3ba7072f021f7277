package service

import (
	"context"
	"log/slog"

	"github.com/guisedstore/storefront/internal/infrastructure/kafka"
	"github.com/guisedstore/storefront/internal/infrastructure/redis"
	"github.com/guisedstore/storefront/internal/infrastructure/search"
	"github.com/guisedstore/storefront/internal/models"
	"github.com/guisedstore/storefront/internal/repository"
	pkgerrors "github.com/guisedstore/storefront/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

type ProductService interface {
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	ListProducts(ctx context.Context, filter repository.ProductFilter) ([]models.Product, int, error)
	Search(ctx context.Context, query string, limit int) ([]search.Hit, int, error)
	Categories(ctx context.Context) ([]models.Category, error)
	CreateProduct(ctx context.Context, p *models.Product) error
	UpdateProduct(ctx context.Context, p *models.Product) error
	DeleteProduct(ctx context.Context, id string) error
}

type productService struct {
	productRepo repository.ProductRepository
	indexQueue  kafka.Producer
	cache       redis.RedisClient
	index       search.Index
}

func NewProductService(
	productRepo repository.ProductRepository,
	indexQueue kafka.Producer,
	cache redis.RedisClient,
	index search.Index,
) *productService {
	return &productService{
		productRepo: productRepo,
		indexQueue:  indexQueue,
		cache:       cache,
		index:       index,
	}
}

func (s *productService) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	return s.productRepo.GetByID(ctx, id)
}

func (s *productService) ListProducts(ctx context.Context, filter repository.ProductFilter) ([]models.Product, int, error) {
	return s.productRepo.List(ctx, filter)
}

func (s *productService) Search(ctx context.Context, query string, limit int) ([]search.Hit, int, error) {
	if query == "" {
		return nil, 0, pkgerrors.ErrInvalidInput
	}
	return s.index.Search(ctx, query, limit)
}

func (s *productService) Categories(ctx context.Context) ([]models.Category, error) {
	return s.productRepo.Categories(ctx)
}

func (s *productService) CreateProduct(ctx context.Context, p *models.Product) error {
	tracer := otel.Tracer("product-service")
	ctx, span := tracer.Start(ctx, "CreateProduct")
	defer span.End()

	if p.Name == "" || p.CategoryID == "" || p.Price.IsNegative() {
		return pkgerrors.ErrInvalidInput
	}
	if err := s.productRepo.Create(ctx, p); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create product failed")
		return err
	}
	s.afterMutation(ctx, models.IndexActionIndex, p.ID)
	return nil
}

func (s *productService) UpdateProduct(ctx context.Context, p *models.Product) error {
	tracer := otel.Tracer("product-service")
	ctx, span := tracer.Start(ctx, "UpdateProduct")
	defer span.End()

	if err := s.productRepo.Update(ctx, p); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update product failed")
		return err
	}
	s.afterMutation(ctx, models.IndexActionUpdate, p.ID)
	return nil
}

func (s *productService) DeleteProduct(ctx context.Context, id string) error {
	tracer := otel.Tracer("product-service")
	ctx, span := tracer.Start(ctx, "DeleteProduct")
	defer span.End()

	if err := s.productRepo.Delete(ctx, id); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete product failed")
		return err
	}
	s.afterMutation(ctx, models.IndexActionDelete, id)
	return nil
}

// afterMutation runs once the relational write has committed: it queues the
// index sync and drops cached responses that may now be stale. Neither
// failure rolls the mutation back; the resync at startup covers lost index
// messages.
func (s *productService) afterMutation(ctx context.Context, action, productID string) {
	if err := s.indexQueue.Send(ctx, productID, models.IndexSyncMessage{Action: action, ProductID: productID}); err != nil {
		slog.Error("failed to queue index sync", "action", action, "product_id", productID, "error", err)
	}

	for _, pattern := range []string{"products:*", "product:*", "categories:*", "search:*"} {
		if err := s.cache.InvalidatePattern(ctx, pattern); err != nil {
			slog.Error("failed to invalidate cache", "pattern", pattern, "error", err)
		}
	}
}
