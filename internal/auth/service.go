// Package auth provides admin session management: local email/password
// authentication, JWT access/refresh pairs, and token authorization backed by
// the user store.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/verdantlabs/chat-admin/internal/config"
	"github.com/verdantlabs/chat-admin/internal/store"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// UserStore is the slice of the data layer the auth service depends on.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (store.User, error)
	UpdateUserLastLogin(ctx context.Context, id uuid.UUID) error
	CreateUser(ctx context.Context, params store.CreateUserParams) (store.User, error)
}

type Service struct {
	store        UserStore
	tokenManager *TokenManager
}

func NewService(cfg config.SessionConfig, st UserStore) (*Service, error) {
	tm, err := NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, "chat-admin")
	if err != nil {
		return nil, err
	}
	return &Service{store: st, tokenManager: tm}, nil
}

// AuthenticateLocal verifies email/password credentials and issues a token
// pair. Unknown users and wrong passwords are indistinguishable to the caller.
func (s *Service) AuthenticateLocal(ctx context.Context, email, password string) (*TokenPair, store.User, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.User{}, ErrInvalidCredentials
		}
		return nil, store.User{}, fmt.Errorf("lookup user: %w", err)
	}

	match, err := VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, store.User{}, err
	}
	if !match {
		return nil, store.User{}, ErrInvalidCredentials
	}

	if err := s.store.UpdateUserLastLogin(ctx, user.ID); err != nil {
		return nil, store.User{}, fmt.Errorf("update last login: %w", err)
	}

	pair, err := s.tokenManager.Generate(user.ID, user.Email)
	if err != nil {
		return nil, store.User{}, err
	}
	return pair, user, nil
}

// Refresh exchanges a valid refresh token for a new token pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, store.User, error) {
	userID, err := s.tokenManager.ValidateRefresh(refreshToken)
	if err != nil {
		return nil, store.User{}, ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.User{}, ErrInvalidToken
		}
		return nil, store.User{}, fmt.Errorf("lookup user: %w", err)
	}

	pair, err := s.tokenManager.Generate(user.ID, user.Email)
	if err != nil {
		return nil, store.User{}, err
	}
	return pair, user, nil
}

// AuthorizeAccessToken resolves a bearer or cookie token to the user it was
// issued for.
func (s *Service) AuthorizeAccessToken(ctx context.Context, token string) (store.User, error) {
	userID, err := s.tokenManager.ValidateAccess(token)
	if err != nil {
		return store.User{}, err
	}
	return s.store.GetUserByID(ctx, userID)
}

// EnsureBootstrapAdmin creates the configured admin account if the email is
// not yet registered. An existing user with the same email is left untouched.
func (s *Service) EnsureBootstrapAdmin(ctx context.Context, cfg config.BootstrapConfig) error {
	if cfg.AdminEmail == "" {
		return nil
	}

	if _, err := s.store.GetUserByEmail(ctx, cfg.AdminEmail); err == nil {
		return nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("lookup bootstrap admin: %w", err)
	}

	hash, err := HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}

	_, err = s.store.CreateUser(ctx, store.CreateUserParams{
		Email:        cfg.AdminEmail,
		Name:         cfg.AdminName,
		PasswordHash: hash,
		Role:         store.RoleAdmin,
	})
	if err != nil && !errors.Is(err, store.ErrDuplicate) {
		return fmt.Errorf("create bootstrap admin: %w", err)
	}
	return nil
}
