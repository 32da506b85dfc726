// Package usage implements the daily usage accounting core: idempotent
// per-(user, day) counter upserts, the advisory daily token quota check, and
// date-range aggregation for the admin stats surface.
package usage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/verdantlabs/chat-admin/internal/store"
	"github.com/verdantlabs/chat-admin/internal/timeutil"
)

var (
	ErrMissingUser   = errors.New("user id required")
	ErrNegativeCount = errors.New("token and message counts must be non-negative")
	ErrInvalidRange  = timeutil.ErrInvalidRange
)

// Store is the slice of the data layer the accounting core depends on.
type Store interface {
	UpsertDailyUsage(ctx context.Context, delta store.UsageDelta) error
	SumTokensForDay(ctx context.Context, userID uuid.UUID, day time.Time) (int64, error)
	GetUserLimit(ctx context.Context, userID uuid.UUID) (store.UserLimit, error)
	UserUsageRange(ctx context.Context, userID uuid.UUID, start, end time.Time) ([]store.DailyUsage, error)
	TotalUsageRange(ctx context.Context, start, end time.Time) ([]store.DailyTotals, error)
}

// Metrics receives counter increments that were successfully recorded.
type Metrics interface {
	RecordUsage(tokens, messages int64)
}

// Service exposes usage accounting shared by the ingestion path and the admin
// stats surface.
type Service struct {
	store      Store
	defaultCap int64
	metrics    Metrics
	now        func() time.Time
}

func NewService(st Store, defaultDailyTokenCap int64) *Service {
	return &Service{
		store:      st,
		defaultCap: defaultDailyTokenCap,
		now:        time.Now,
	}
}

// SetMetrics attaches an optional metrics sink.
func (s *Service) SetMetrics(m Metrics) { s.metrics = m }

// Event is one unit of recorded usage. TotalTokens is authoritative when
// non-zero; otherwise the sum of prompt and completion tokens is recorded.
// Messages defaults to 1 when zero.
type Event struct {
	UserID           uuid.UUID
	ConversationID   string
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
	Messages         int64
}

func (e Event) effectiveTokens() int64 {
	if e.TotalTokens != 0 {
		return e.TotalTokens
	}
	return e.PromptTokens + e.CompletionTokens
}

// Record adds the event's counts to today's counter row for the user. "Today"
// is captured once per call and truncated to a UTC day, so the write cannot
// straddle a day boundary. The store-level upsert keeps concurrent callers
// from duplicating rows or losing increments.
func (s *Service) Record(ctx context.Context, event Event) error {
	if event.UserID == uuid.Nil {
		return ErrMissingUser
	}
	if event.PromptTokens < 0 || event.CompletionTokens < 0 || event.TotalTokens < 0 || event.Messages < 0 {
		return ErrNegativeCount
	}

	messages := event.Messages
	if messages == 0 {
		messages = 1
	}

	tokens := event.effectiveTokens()
	err := s.store.UpsertDailyUsage(ctx, store.UsageDelta{
		UserID:         event.UserID,
		Day:            timeutil.TruncateToDay(s.now()),
		Tokens:         tokens,
		Messages:       messages,
		ConversationID: event.ConversationID,
	})
	if err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.RecordUsage(tokens, messages)
	}
	return nil
}

// HasExceededDailyLimit reports whether the user's cumulative tokens for today
// have reached their cap. The comparison is inclusive: a user exactly at the
// cap has exceeded it. Users without a user_limits row get the default cap.
func (s *Service) HasExceededDailyLimit(ctx context.Context, userID uuid.UUID) (bool, error) {
	if userID == uuid.Nil {
		return false, ErrMissingUser
	}

	capTokens := s.defaultCap
	limit, err := s.store.GetUserLimit(ctx, userID)
	switch {
	case err == nil:
		capTokens = limit.MaxTokensPerDay
	case errors.Is(err, pgx.ErrNoRows):
		// No override configured; the default applies.
	default:
		return false, err
	}

	used, err := s.store.SumTokensForDay(ctx, userID, timeutil.TruncateToDay(s.now()))
	if err != nil {
		return false, err
	}
	return used >= capTokens, nil
}

// UserRange returns the user's per-day aggregates over the inclusive day
// range, ascending. Days with no activity are omitted.
func (s *Service) UserRange(ctx context.Context, userID uuid.UUID, start, end time.Time) ([]store.DailyUsage, error) {
	if userID == uuid.Nil {
		return nil, ErrMissingUser
	}
	r, err := timeutil.NewDayRange(start, end)
	if err != nil {
		return nil, err
	}
	return s.store.UserUsageRange(ctx, userID, r.Start(), r.End())
}

// TotalRange returns all-users per-day aggregates over the inclusive day
// range, ascending, including the distinct-user count per day.
func (s *Service) TotalRange(ctx context.Context, start, end time.Time) ([]store.DailyTotals, error) {
	r, err := timeutil.NewDayRange(start, end)
	if err != nil {
		return nil, err
	}
	return s.store.TotalUsageRange(ctx, r.Start(), r.End())
}

// Totals is the folded summary the stats endpoint returns alongside the
// per-day sequence.
type Totals struct {
	TotalTokens   int64 `json:"totalTokens"`
	TotalMessages int64 `json:"totalMessages"`
	MaxUsers      int64 `json:"maxUsers"`
}

// SummarizeRange folds a per-day sequence into running totals: token and
// message sums plus the maximum per-day unique-user count.
func SummarizeRange(days []store.DailyTotals) Totals {
	var t Totals
	for _, day := range days {
		t.TotalTokens += day.TokensUsed
		t.TotalMessages += day.MessagesSent
		if day.UniqueUsers > t.MaxUsers {
			t.MaxUsers = day.UniqueUsers
		}
	}
	return t
}
