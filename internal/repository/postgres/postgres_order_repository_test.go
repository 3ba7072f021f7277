package repository_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/guisedstore/storefront/internal/models"
	repository "github.com/guisedstore/storefront/internal/repository/postgres"
	pkgerrors "github.com/guisedstore/storefront/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestPostgresOrderRepository_Transition(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	repo := repository.NewPostgresOrderRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		mock.ExpectExec("UPDATE orders").
			WithArgs(models.OrderProcessing, "", "order-1", models.OrderPending).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.Transition(ctx, nil, "order-1", models.OrderPending, models.OrderProcessing, "")
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("StaleState", func(t *testing.T) {
		// row is no longer in the expected status; duplicate deliveries and
		// races with cancellation land here
		mock.ExpectExec("UPDATE orders").
			WithArgs(models.OrderCancelled, "cancelled by user", "order-1", models.OrderPending).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Transition(ctx, nil, "order-1", models.OrderPending, models.OrderCancelled, "cancelled by user")
		assert.ErrorIs(t, err, pkgerrors.ErrStaleState)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresOrderRepository_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	repo := repository.NewPostgresOrderRepository(db)
	ctx := context.Background()

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM orders").
			WithArgs("order-unknown").
			WillReturnError(sql.ErrNoRows)

		order, err := repo.GetByID(ctx, nil, "order-unknown")
		assert.Nil(t, order)
		assert.ErrorIs(t, err, pkgerrors.ErrOrderNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
