// Package adminlimit manages per-user daily token caps for the admin surface.
package adminlimit

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/verdantlabs/chat-admin/internal/store"
)

var (
	ErrServiceUnavailable = errors.New("admin limit service not initialized")
	ErrInvalidCap         = errors.New("max_tokens_per_day must be positive")
	ErrUnknownUser        = errors.New("unknown user")
)

// Store is the data-layer slice the limit service requires.
type Store interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (store.User, error)
	GetUserLimit(ctx context.Context, userID uuid.UUID) (store.UserLimit, error)
	UpsertUserLimit(ctx context.Context, userID uuid.UUID, maxTokensPerDay int64) (store.UserLimit, error)
	DeleteUserLimit(ctx context.Context, userID uuid.UUID) error
	ListUserLimits(ctx context.Context) ([]store.UserLimit, error)
}

// Service wraps store helpers for admin limit management.
type Service struct {
	store      Store
	defaultCap int64
}

func NewService(st Store, defaultDailyTokenCap int64) *Service {
	return &Service{store: st, defaultCap: defaultDailyTokenCap}
}

// Effective describes the cap applied to a user and whether it comes from an
// explicit override row.
type Effective struct {
	UserID          uuid.UUID `json:"userId"`
	MaxTokensPerDay int64     `json:"maxTokensPerDay"`
	Override        bool      `json:"override"`
}

// Get returns the user's effective daily cap.
func (s *Service) Get(ctx context.Context, userID uuid.UUID) (Effective, error) {
	if s == nil || s.store == nil {
		return Effective{}, ErrServiceUnavailable
	}

	limit, err := s.store.GetUserLimit(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Effective{UserID: userID, MaxTokensPerDay: s.defaultCap}, nil
		}
		return Effective{}, err
	}
	return Effective{UserID: userID, MaxTokensPerDay: limit.MaxTokensPerDay, Override: true}, nil
}

// Set creates or replaces the user's cap override after verifying the user
// exists.
func (s *Service) Set(ctx context.Context, userID uuid.UUID, maxTokensPerDay int64) (store.UserLimit, error) {
	if s == nil || s.store == nil {
		return store.UserLimit{}, ErrServiceUnavailable
	}
	if maxTokensPerDay <= 0 {
		return store.UserLimit{}, ErrInvalidCap
	}
	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.UserLimit{}, ErrUnknownUser
		}
		return store.UserLimit{}, err
	}
	return s.store.UpsertUserLimit(ctx, userID, maxTokensPerDay)
}

// Remove deletes the override; the user falls back to the default cap.
func (s *Service) Remove(ctx context.Context, userID uuid.UUID) error {
	if s == nil || s.store == nil {
		return ErrServiceUnavailable
	}
	return s.store.DeleteUserLimit(ctx, userID)
}

// List returns all explicit overrides.
func (s *Service) List(ctx context.Context) ([]store.UserLimit, error) {
	if s == nil || s.store == nil {
		return nil, ErrServiceUnavailable
	}
	return s.store.ListUserLimits(ctx)
}
