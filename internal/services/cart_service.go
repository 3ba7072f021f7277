package service

import (
	"context"
	"log/slog"

	"github.com/guisedstore/storefront/internal/models"
	"github.com/guisedstore/storefront/internal/repository"
	pkgerrors "github.com/guisedstore/storefront/pkg/errors"
)

type CartService interface {
	GetCart(ctx context.Context, userID string) (*models.Cart, error)
	AddToCart(ctx context.Context, userID, productID string, quantity int32) (*models.Cart, error)
	UpdateItem(ctx context.Context, userID, itemID string, quantity int32) (*models.Cart, error)
	RemoveItem(ctx context.Context, userID, itemID string) (*models.Cart, error)
	ClearCart(ctx context.Context, userID string) error
}

type cartService struct {
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
}

func NewCartService(cartRepo repository.CartRepository, productRepo repository.ProductRepository) *cartService {
	return &cartService{cartRepo: cartRepo, productRepo: productRepo}
}

func (s *cartService) GetCart(ctx context.Context, userID string) (*models.Cart, error) {
	cart, err := s.cartRepo.GetOrCreateActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.cartRepo.GetActiveWithItems(ctx, nil, cart.UserID)
}

// AddToCart snapshots the product's current price onto the cart item so a
// later catalog edit cannot change what the user will pay.
func (s *cartService) AddToCart(ctx context.Context, userID, productID string, quantity int32) (*models.Cart, error) {
	if quantity < 1 {
		return nil, pkgerrors.ErrInvalidInput
	}

	product, err := s.productRepo.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	cart, err := s.cartRepo.GetOrCreateActive(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.cartRepo.AddItem(ctx, cart.ID, productID, quantity, product.Price); err != nil {
		return nil, err
	}

	slog.Info("item added to cart", "user_id", userID, "product_id", productID, "quantity", quantity)
	return s.cartRepo.GetActiveWithItems(ctx, nil, userID)
}

func (s *cartService) UpdateItem(ctx context.Context, userID, itemID string, quantity int32) (*models.Cart, error) {
	if quantity < 1 {
		return nil, pkgerrors.ErrInvalidInput
	}
	if err := s.cartRepo.UpdateItemQuantity(ctx, userID, itemID, quantity); err != nil {
		return nil, err
	}
	return s.cartRepo.GetActiveWithItems(ctx, nil, userID)
}

func (s *cartService) RemoveItem(ctx context.Context, userID, itemID string) (*models.Cart, error) {
	if err := s.cartRepo.RemoveItem(ctx, userID, itemID); err != nil {
		return nil, err
	}
	return s.cartRepo.GetActiveWithItems(ctx, nil, userID)
}

func (s *cartService) ClearCart(ctx context.Context, userID string) error {
	cart, err := s.cartRepo.GetActiveWithItems(ctx, nil, userID)
	if err != nil {
		return err
	}
	return s.cartRepo.Clear(ctx, cart.ID)
}
