package repository

import (
	"context"

	"github.com/guisedstore/storefront/internal/models"
	"github.com/shopspring/decimal"
)

type CartRepository interface {
	GetOrCreateActive(ctx context.Context, userID string) (*models.Cart, error)
	// GetActiveWithItems returns ErrCartNotFound when the user has no active
	// cart. Items carry their product and category.
	GetActiveWithItems(ctx context.Context, q Querier, userID string) (*models.Cart, error)
	// AddItem snapshots price as the unit price at add time; adding a product
	// already in the cart merges quantities and refreshes the snapshot.
	AddItem(ctx context.Context, cartID, productID string, quantity int32, price decimal.Decimal) error
	UpdateItemQuantity(ctx context.Context, userID, itemID string, quantity int32) error
	RemoveItem(ctx context.Context, userID, itemID string) error
	Clear(ctx context.Context, cartID string) error
	// MarkConverted flips an active cart to converted; ErrStaleState when the
	// cart is no longer active.
	MarkConverted(ctx context.Context, q Querier, cartID string) error
}
