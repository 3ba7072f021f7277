package repository

import (
	"context"

	"github.com/guisedstore/storefront/internal/models"
)

type OrderRepository interface {
	// Create inserts the order and its item snapshots in the caller's scope.
	Create(ctx context.Context, q Querier, order *models.Order) error
	GetByID(ctx context.Context, q Querier, id string) (*models.Order, error)
	// GetByIDForUpdate takes an exclusive row lock on the order row.
	GetByIDForUpdate(ctx context.Context, q Querier, id string) (*models.Order, error)
	// Transition is a guarded compare-and-swap: it fails with ErrStaleState
	// when the order's current status does not match from.
	Transition(ctx context.Context, q Querier, id string, from, to models.OrderStatus, reason string) error
	List(ctx context.Context, userID string, page, limit int, status models.OrderStatus) ([]models.Order, int, error)
	ListItems(ctx context.Context, orderID string) ([]models.OrderItem, error)
}
