package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// UserLimit is the per-user daily token cap override. Absence of a row means
// the configured default cap applies.
type UserLimit struct {
	UserID          uuid.UUID `json:"userId"`
	MaxTokensPerDay int64     `json:"maxTokensPerDay"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// GetUserLimit returns the limit row for the user, or pgx.ErrNoRows.
func (s *Store) GetUserLimit(ctx context.Context, userID uuid.UUID) (UserLimit, error) {
	var limit UserLimit
	err := s.pool.QueryRow(ctx, `
		SELECT user_id, max_tokens_per_day, updated_at
		FROM user_limits
		WHERE user_id = $1`,
		userID,
	).Scan(&limit.UserID, &limit.MaxTokensPerDay, &limit.UpdatedAt)
	return limit, err
}

// UpsertUserLimit creates or replaces the user's daily cap.
func (s *Store) UpsertUserLimit(ctx context.Context, userID uuid.UUID, maxTokensPerDay int64) (UserLimit, error) {
	var limit UserLimit
	err := s.pool.QueryRow(ctx, `
		INSERT INTO user_limits (user_id, max_tokens_per_day)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET
			max_tokens_per_day = EXCLUDED.max_tokens_per_day,
			updated_at = now()
		RETURNING user_id, max_tokens_per_day, updated_at`,
		userID, maxTokensPerDay,
	).Scan(&limit.UserID, &limit.MaxTokensPerDay, &limit.UpdatedAt)
	if err != nil {
		return UserLimit{}, fmt.Errorf("upsert user limit: %w", err)
	}
	return limit, nil
}

// DeleteUserLimit removes the override, reverting the user to the default cap.
func (s *Store) DeleteUserLimit(ctx context.Context, userID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM user_limits WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete user limit: %w", err)
	}
	return nil
}

// ListUserLimits returns all explicit limit rows ordered by user id.
func (s *Store) ListUserLimits(ctx context.Context) ([]UserLimit, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id, max_tokens_per_day, updated_at
		FROM user_limits
		ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list user limits: %w", err)
	}
	defer rows.Close()

	limits := make([]UserLimit, 0)
	for rows.Next() {
		var limit UserLimit
		if err := rows.Scan(&limit.UserID, &limit.MaxTokensPerDay, &limit.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan user limit: %w", err)
		}
		limits = append(limits, limit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user limits: %w", err)
	}
	return limits, nil
}
