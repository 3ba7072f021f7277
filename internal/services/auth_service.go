package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/guisedstore/storefront/internal/infrastructure/redis"
	"github.com/guisedstore/storefront/internal/models"
	"github.com/guisedstore/storefront/internal/repository"
	pkgerrors "github.com/guisedstore/storefront/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/crypto/bcrypt"
)

const registerTxTimeout = 10 * time.Second

type AuthService interface {
	Register(ctx context.Context, username, password string) (string, error)
	Login(ctx context.Context, username, password string) (string, error)
}

type authService struct {
	txManager   repository.TxManager
	userRepo    repository.UserRepository
	walletRepo  repository.WalletRepository
	redisClient redis.RedisClient
	jwtSecret   string
}

func NewAuthService(txManager repository.TxManager, userRepo repository.UserRepository, walletRepo repository.WalletRepository, redisClient redis.RedisClient, jwtSecret string) *authService {
	return &authService{
		txManager:   txManager,
		userRepo:    userRepo,
		walletRepo:  walletRepo,
		redisClient: redisClient,
		jwtSecret:   jwtSecret,
	}
}

// Register creates the user and their wallet; every user has exactly one.
func (s *authService) Register(ctx context.Context, username, password string) (string, error) {
	tracer := otel.Tracer("auth-service")
	ctx, span := tracer.Start(ctx, "Register")
	defer span.End()

	if username == "" || password == "" {
		span.SetStatus(codes.Error, "empty username or password")
		return "", pkgerrors.ErrInvalidInput
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "password hashing failed")
		slog.Error("failed to hash password", "username", username, "error", err)
		return "", fmt.Errorf("%w: failed to hash password", pkgerrors.ErrInternal)
	}

	user := &models.User{
		Username:     username,
		PasswordHash: string(hash),
	}
	// User and wallet commit together: a user row without its wallet would
	// break every wallet operation for that account with no way to recover.
	err = s.txManager.WithinTx(ctx, registerTxTimeout, func(ctx context.Context, q repository.Querier) error {
		if err := s.userRepo.Create(ctx, q, user); err != nil {
			return err
		}
		_, err := s.walletRepo.Create(ctx, q, user.ID)
		return err
	})
	if err != nil {
		if stderrors.Is(err, pkgerrors.ErrUsernameExists) {
			span.SetStatus(codes.Error, "username already exists")
			return "", err
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "registration failed")
		slog.Error("failed to register user", "username", username, "error", err)
		return "", fmt.Errorf("%w: failed to register user", pkgerrors.ErrInternal)
	}

	slog.Info("user registered", "user_id", user.ID, "username", username)
	return user.ID, nil
}

func (s *authService) Login(ctx context.Context, username, password string) (string, error) {
	tracer := otel.Tracer("auth-service")
	ctx, span := tracer.Start(ctx, "Login")
	defer span.End()

	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		slog.Error("failed to login", "username", username, "error", err)
		return "", pkgerrors.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		slog.Error("invalid password", "username", username)
		return "", pkgerrors.ErrInvalidCredentials
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		slog.Error("failed to generate JWT", "error", err)
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	if err := s.redisClient.Set(ctx, fmt.Sprintf("user:%s:token", user.ID), tokenString, time.Hour); err != nil {
		slog.Error("failed to cache JWT", "user_id", user.ID, "error", err)
	}

	slog.Info("user logged in", "username", username, "user_id", user.ID)
	return tokenString, nil
}
