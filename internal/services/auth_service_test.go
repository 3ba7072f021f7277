package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/guisedstore/storefront/internal/models"
	"github.com/guisedstore/storefront/internal/repository"
	pkgerrors "github.com/guisedstore/storefront/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scopeQuerier is a marker handed out by scopedTxManager so tests can assert
// that calls ran inside the same transactional scope.
type scopeQuerier struct{}

func (scopeQuerier) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return nil, nil
}

func (scopeQuerier) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return nil, nil
}

func (scopeQuerier) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return nil
}

type scopedTxManager struct {
	scope      scopeQuerier
	rolledBack bool
}

func (m *scopedTxManager) WithinTx(ctx context.Context, _ time.Duration, fn func(ctx context.Context, q repository.Querier) error) error {
	err := fn(ctx, m.scope)
	if err != nil {
		m.rolledBack = true
	}
	return err
}

type fakeUserRepo struct {
	user      *models.User
	getErr    error
	created   []*models.User
	createQ   repository.Querier
	createErr error
}

func (f *fakeUserRepo) Create(ctx context.Context, q repository.Querier, user *models.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	user.ID = "user-1"
	f.created = append(f.created, user)
	f.createQ = q
	return nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	return f.user, f.getErr
}

func (f *fakeUserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return f.user, f.getErr
}

func TestAuthService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		txm := &scopedTxManager{}
		userRepo := &fakeUserRepo{}
		walletRepo := &fakeWalletRepo{wallet: &models.Wallet{ID: "wallet-1", UserID: "user-1"}}
		svc := NewAuthService(txm, userRepo, walletRepo, newNoopRedis(), "secret")

		userID, err := svc.Register(ctx, "alice", "password")
		require.NoError(t, err)
		assert.Equal(t, "user-1", userID)

		// user and wallet are created in the same scope
		require.Len(t, userRepo.created, 1)
		assert.Equal(t, []string{"user-1"}, walletRepo.createdFor)
		assert.Equal(t, txm.scope, userRepo.createQ)
		assert.Equal(t, txm.scope, walletRepo.createQ)
		assert.False(t, txm.rolledBack)
	})

	t.Run("WalletCreateFailureRollsBackUser", func(t *testing.T) {
		txm := &scopedTxManager{}
		userRepo := &fakeUserRepo{}
		walletRepo := &fakeWalletRepo{createErr: errors.New("insert failed")}
		svc := NewAuthService(txm, userRepo, walletRepo, newNoopRedis(), "secret")

		_, err := svc.Register(ctx, "alice", "password")
		assert.ErrorIs(t, err, pkgerrors.ErrInternal)
		assert.True(t, txm.rolledBack, "the user insert must not survive a failed wallet insert")
	})

	t.Run("UsernameExists", func(t *testing.T) {
		txm := &scopedTxManager{}
		userRepo := &fakeUserRepo{createErr: pkgerrors.ErrUsernameExists}
		walletRepo := &fakeWalletRepo{}
		svc := NewAuthService(txm, userRepo, walletRepo, newNoopRedis(), "secret")

		_, err := svc.Register(ctx, "alice", "password")
		assert.ErrorIs(t, err, pkgerrors.ErrUsernameExists)
		assert.Empty(t, walletRepo.createdFor)
	})

	t.Run("EmptyInput", func(t *testing.T) {
		svc := NewAuthService(&scopedTxManager{}, &fakeUserRepo{}, &fakeWalletRepo{}, newNoopRedis(), "secret")

		_, err := svc.Register(ctx, "", "password")
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidInput)
	})
}

type noopRedis struct{}

func newNoopRedis() *noopRedis { return &noopRedis{} }

func (n *noopRedis) Get(ctx context.Context, key string) (string, error) { return "", nil }

func (n *noopRedis) Set(ctx context.Context, key string, value interface{}, _ time.Duration) error {
	return nil
}

func (n *noopRedis) Del(ctx context.Context, key string) error { return nil }

func (n *noopRedis) InvalidatePattern(ctx context.Context, pattern string) error { return nil }

func (n *noopRedis) Close() error { return nil }
