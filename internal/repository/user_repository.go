package repository

import (
	"context"

	"github.com/guisedstore/storefront/internal/models"
)

type UserRepository interface {
	// Create inserts the user in the caller's scope so registration can
	// commit the user and their wallet together.
	Create(ctx context.Context, q Querier, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}
