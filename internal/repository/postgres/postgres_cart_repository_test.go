package repository_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	repository "github.com/guisedstore/storefront/internal/repository/postgres"
	pkgerrors "github.com/guisedstore/storefront/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestPostgresCartRepository_MarkConverted(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	repo := repository.NewPostgresCartRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		mock.ExpectExec("UPDATE carts").
			WithArgs("cart-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.MarkConverted(ctx, nil, "cart-1")
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("AlreadyConverted", func(t *testing.T) {
		mock.ExpectExec("UPDATE carts").
			WithArgs("cart-1").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.MarkConverted(ctx, nil, "cart-1")
		assert.ErrorIs(t, err, pkgerrors.ErrStaleState)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
