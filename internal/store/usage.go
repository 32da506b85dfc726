package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// UsageDelta is one increment against a (user, day) counter row.
type UsageDelta struct {
	UserID         uuid.UUID
	Day            time.Time
	Tokens         int64
	Messages       int64
	ConversationID string
}

// DailyUsage is one aggregated day for a single user.
type DailyUsage struct {
	Day          time.Time `json:"date"`
	TokensUsed   int64     `json:"tokensUsed"`
	MessagesSent int64     `json:"messagesSent"`
}

// DailyTotals is one aggregated day across all users.
type DailyTotals struct {
	Day          time.Time `json:"date"`
	TokensUsed   int64     `json:"tokensUsed"`
	MessagesSent int64     `json:"messagesSent"`
	UniqueUsers  int64     `json:"uniqueUsers"`
}

// UpsertDailyUsage inserts or increments the counter row for (user, day) in a
// single statement. The uniqueness constraint on (user_id, day) makes the
// increment safe under concurrent first-of-day writers: both the insert and
// the conflict branch are resolved by the database, never by an
// application-held read.
func (s *Store) UpsertDailyUsage(ctx context.Context, delta UsageDelta) error {
	conversation := pgtype.Text{String: delta.ConversationID, Valid: delta.ConversationID != ""}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO usage_stats (id, user_id, day, tokens_used, messages_sent, conversation_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, day) DO UPDATE SET
			tokens_used = usage_stats.tokens_used + EXCLUDED.tokens_used,
			messages_sent = usage_stats.messages_sent + EXCLUDED.messages_sent,
			conversation_id = COALESCE(EXCLUDED.conversation_id, usage_stats.conversation_id),
			updated_at = now()`,
		uuid.New(), delta.UserID, delta.Day, delta.Tokens, delta.Messages, conversation,
	)
	if err != nil {
		return fmt.Errorf("upsert daily usage: %w", err)
	}
	return nil
}

// SumTokensForDay returns the total tokens recorded for the user on the given
// day. Written as a SUM so the result stays correct even if the
// one-row-per-day invariant is ever relaxed.
func (s *Store) SumTokensForDay(ctx context.Context, userID uuid.UUID, day time.Time) (int64, error) {
	var total int64
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(tokens_used), 0)
		FROM usage_stats
		WHERE user_id = $1 AND day = $2`,
		userID, day,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum tokens for day: %w", err)
	}
	return total, nil
}

// UserUsageRange returns per-day aggregates for one user over an inclusive
// day range, ascending by day. Days without activity are omitted.
func (s *Store) UserUsageRange(ctx context.Context, userID uuid.UUID, start, end time.Time) ([]DailyUsage, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT day, SUM(tokens_used), SUM(messages_sent)
		FROM usage_stats
		WHERE user_id = $1 AND day BETWEEN $2 AND $3
		GROUP BY day
		ORDER BY day`,
		userID, start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("query user usage range: %w", err)
	}
	defer rows.Close()

	result := make([]DailyUsage, 0)
	for rows.Next() {
		var du DailyUsage
		if err := rows.Scan(&du.Day, &du.TokensUsed, &du.MessagesSent); err != nil {
			return nil, fmt.Errorf("scan user usage row: %w", err)
		}
		result = append(result, du)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user usage rows: %w", err)
	}
	return result, nil
}

// TotalUsageRange returns per-day aggregates across all users over an
// inclusive day range, ascending by day, with a distinct-user count per day.
func (s *Store) TotalUsageRange(ctx context.Context, start, end time.Time) ([]DailyTotals, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT day, SUM(tokens_used), SUM(messages_sent), COUNT(DISTINCT user_id)
		FROM usage_stats
		WHERE day BETWEEN $1 AND $2
		GROUP BY day
		ORDER BY day`,
		start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("query total usage range: %w", err)
	}
	defer rows.Close()

	result := make([]DailyTotals, 0)
	for rows.Next() {
		var dt DailyTotals
		if err := rows.Scan(&dt.Day, &dt.TokensUsed, &dt.MessagesSent, &dt.UniqueUsers); err != nil {
			return nil, fmt.Errorf("scan total usage row: %w", err)
		}
		result = append(result, dt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate total usage rows: %w", err)
	}
	return result, nil
}
