package usage

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/verdantlabs/chat-admin/internal/store"
)

type counterKey struct {
	userID uuid.UUID
	day    time.Time
}

type counterRow struct {
	tokens       int64
	messages     int64
	conversation string
	inserts      int
}

// fakeStore mirrors the relational store's semantics in memory: one row per
// (user, day), atomic increments, grouped range queries.
type fakeStore struct {
	mu     sync.Mutex
	rows   map[counterKey]*counterRow
	limits map[uuid.UUID]int64
	err    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rows:   make(map[counterKey]*counterRow),
		limits: make(map[uuid.UUID]int64),
	}
}

func (f *fakeStore) UpsertDailyUsage(ctx context.Context, delta store.UsageDelta) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	key := counterKey{userID: delta.UserID, day: delta.Day}
	row, ok := f.rows[key]
	if !ok {
		row = &counterRow{}
		f.rows[key] = row
	}
	row.inserts++
	row.tokens += delta.Tokens
	row.messages += delta.Messages
	if delta.ConversationID != "" {
		row.conversation = delta.ConversationID
	}
	return nil
}

func (f *fakeStore) SumTokensForDay(ctx context.Context, userID uuid.UUID, day time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	if row, ok := f.rows[counterKey{userID: userID, day: day}]; ok {
		return row.tokens, nil
	}
	return 0, nil
}

func (f *fakeStore) GetUserLimit(ctx context.Context, userID uuid.UUID) (store.UserLimit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cap, ok := f.limits[userID]; ok {
		return store.UserLimit{UserID: userID, MaxTokensPerDay: cap}, nil
	}
	return store.UserLimit{}, pgx.ErrNoRows
}

func (f *fakeStore) UserUsageRange(ctx context.Context, userID uuid.UUID, start, end time.Time) ([]store.DailyUsage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]store.DailyUsage, 0)
	for key, row := range f.rows {
		if key.userID != userID || key.day.Before(start) || key.day.After(end) {
			continue
		}
		result = append(result, store.DailyUsage{Day: key.day, TokensUsed: row.tokens, MessagesSent: row.messages})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Day.Before(result[j].Day) })
	return result, nil
}

func (f *fakeStore) TotalUsageRange(ctx context.Context, start, end time.Time) ([]store.DailyTotals, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	byDay := make(map[time.Time]*store.DailyTotals)
	users := make(map[time.Time]map[uuid.UUID]struct{})
	for key, row := range f.rows {
		if key.day.Before(start) || key.day.After(end) {
			continue
		}
		dt, ok := byDay[key.day]
		if !ok {
			dt = &store.DailyTotals{Day: key.day}
			byDay[key.day] = dt
			users[key.day] = make(map[uuid.UUID]struct{})
		}
		dt.TokensUsed += row.tokens
		dt.MessagesSent += row.messages
		users[key.day][key.userID] = struct{}{}
	}
	result := make([]store.DailyTotals, 0, len(byDay))
	for day, dt := range byDay {
		dt.UniqueUsers = int64(len(users[day]))
		result = append(result, *dt)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Day.Before(result[j].Day) })
	return result, nil
}

func newTestService(f *fakeStore, now time.Time) *Service {
	svc := NewService(f, 10_000)
	svc.now = func() time.Time { return now }
	return svc
}

func TestRecordAccumulatesIntoSingleRow(t *testing.T) {
	fs := newFakeStore()
	now := time.Date(2025, 2, 10, 14, 30, 0, 0, time.UTC)
	svc := newTestService(fs, now)
	userID := uuid.New()

	if err := svc.Record(context.Background(), Event{UserID: userID, TotalTokens: 100, Messages: 1}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := svc.Record(context.Background(), Event{UserID: userID, TotalTokens: 50, Messages: 1}); err != nil {
		t.Fatalf("record: %v", err)
	}

	if len(fs.rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(fs.rows))
	}
	day := time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)
	row := fs.rows[counterKey{userID: userID, day: day}]
	if row == nil {
		t.Fatalf("expected row keyed on UTC midnight")
	}
	if row.tokens != 150 || row.messages != 2 {
		t.Fatalf("unexpected counters tokens=%d messages=%d", row.tokens, row.messages)
	}
}

func TestRecordConcurrentCallersLoseNothing(t *testing.T) {
	fs := newFakeStore()
	now := time.Date(2025, 2, 10, 9, 0, 0, 0, time.UTC)
	svc := newTestService(fs, now)
	userID := uuid.New()

	const callers = 50
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := svc.Record(context.Background(), Event{UserID: userID, TotalTokens: 10}); err != nil {
				t.Errorf("record: %v", err)
			}
		}()
	}
	wg.Wait()

	if len(fs.rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(fs.rows))
	}
	for _, row := range fs.rows {
		if row.tokens != callers*10 {
			t.Fatalf("expected %d tokens, got %d", callers*10, row.tokens)
		}
		if row.messages != callers {
			t.Fatalf("expected %d messages, got %d", callers, row.messages)
		}
	}
}

func TestRecordDerivesTokensFromPromptAndCompletion(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs, time.Now())
	userID := uuid.New()

	err := svc.Record(context.Background(), Event{
		UserID:           userID,
		PromptTokens:     30,
		CompletionTokens: 12,
		TotalTokens:      0,
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	for _, row := range fs.rows {
		if row.tokens != 42 {
			t.Fatalf("expected derived 42 tokens, got %d", row.tokens)
		}
	}
}

func TestRecordKeepsLastConversationID(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs, time.Now())
	userID := uuid.New()

	ctx := context.Background()
	if err := svc.Record(ctx, Event{UserID: userID, TotalTokens: 1, ConversationID: "conv-a"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := svc.Record(ctx, Event{UserID: userID, TotalTokens: 1, ConversationID: "conv-b"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := svc.Record(ctx, Event{UserID: userID, TotalTokens: 1}); err != nil {
		t.Fatalf("record: %v", err)
	}
	for _, row := range fs.rows {
		if row.conversation != "conv-b" {
			t.Fatalf("expected last non-empty conversation id, got %q", row.conversation)
		}
	}
}

func TestRecordRejectsBadInput(t *testing.T) {
	svc := newTestService(newFakeStore(), time.Now())

	if err := svc.Record(context.Background(), Event{TotalTokens: 5}); !errors.Is(err, ErrMissingUser) {
		t.Fatalf("expected ErrMissingUser, got %v", err)
	}
	if err := svc.Record(context.Background(), Event{UserID: uuid.New(), TotalTokens: -5}); !errors.Is(err, ErrNegativeCount) {
		t.Fatalf("expected ErrNegativeCount, got %v", err)
	}
}

func TestHasExceededDailyLimitBoundary(t *testing.T) {
	fs := newFakeStore()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(fs, now)
	userID := uuid.New()
	ctx := context.Background()

	// No limit row: default cap of 10,000 applies.
	if err := svc.Record(ctx, Event{UserID: userID, TotalTokens: 9_999}); err != nil {
		t.Fatalf("record: %v", err)
	}
	exceeded, err := svc.HasExceededDailyLimit(ctx, userID)
	if err != nil {
		t.Fatalf("limit check: %v", err)
	}
	if exceeded {
		t.Fatalf("9,999 tokens should be under the default cap")
	}

	if err := svc.Record(ctx, Event{UserID: userID, TotalTokens: 1}); err != nil {
		t.Fatalf("record: %v", err)
	}
	exceeded, err = svc.HasExceededDailyLimit(ctx, userID)
	if err != nil {
		t.Fatalf("limit check: %v", err)
	}
	if !exceeded {
		t.Fatalf("reaching the cap exactly counts as exceeded")
	}
}

func TestHasExceededDailyLimitUsesOverride(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs, time.Now())
	userID := uuid.New()
	fs.limits[userID] = 100
	ctx := context.Background()

	if err := svc.Record(ctx, Event{UserID: userID, TotalTokens: 100}); err != nil {
		t.Fatalf("record: %v", err)
	}
	exceeded, err := svc.HasExceededDailyLimit(ctx, userID)
	if err != nil {
		t.Fatalf("limit check: %v", err)
	}
	if !exceeded {
		t.Fatalf("override cap of 100 should be exceeded at 100 tokens")
	}
}

func TestTotalRangeCountsDistinctUsers(t *testing.T) {
	fs := newFakeStore()
	day1 := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)
	userA := uuid.New()
	userB := uuid.New()
	ctx := context.Background()

	svc := newTestService(fs, day1)
	if err := svc.Record(ctx, Event{UserID: userA, TotalTokens: 10}); err != nil {
		t.Fatalf("record: %v", err)
	}
	// Second event for A on day 1 must not inflate the distinct count.
	if err := svc.Record(ctx, Event{UserID: userA, TotalTokens: 5}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := svc.Record(ctx, Event{UserID: userB, TotalTokens: 20}); err != nil {
		t.Fatalf("record: %v", err)
	}

	svc.now = func() time.Time { return day2 }
	if err := svc.Record(ctx, Event{UserID: userA, TotalTokens: 7}); err != nil {
		t.Fatalf("record: %v", err)
	}

	days, err := svc.TotalRange(ctx, day1, day2)
	if err != nil {
		t.Fatalf("total range: %v", err)
	}
	if len(days) != 2 {
		t.Fatalf("expected 2 days, got %d", len(days))
	}
	if days[0].UniqueUsers != 2 || days[1].UniqueUsers != 1 {
		t.Fatalf("unexpected unique users [%d, %d]", days[0].UniqueUsers, days[1].UniqueUsers)
	}

	totals := SummarizeRange(days)
	if totals.MaxUsers != 2 {
		t.Fatalf("expected max users 2, got %d", totals.MaxUsers)
	}
	if totals.TotalTokens != 42 {
		t.Fatalf("expected 42 total tokens, got %d", totals.TotalTokens)
	}
	if totals.TotalMessages != 4 {
		t.Fatalf("expected 4 total messages, got %d", totals.TotalMessages)
	}
}

func TestUserRangeOrdersAscendingAndOmitsQuietDays(t *testing.T) {
	fs := newFakeStore()
	userID := uuid.New()
	ctx := context.Background()
	day1 := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	day3 := day1.AddDate(0, 0, 2)

	svc := newTestService(fs, day3)
	if err := svc.Record(ctx, Event{UserID: userID, TotalTokens: 30}); err != nil {
		t.Fatalf("record: %v", err)
	}
	svc.now = func() time.Time { return day1 }
	if err := svc.Record(ctx, Event{UserID: userID, TotalTokens: 10}); err != nil {
		t.Fatalf("record: %v", err)
	}

	days, err := svc.UserRange(ctx, userID, day1, day3)
	if err != nil {
		t.Fatalf("user range: %v", err)
	}
	if len(days) != 2 {
		t.Fatalf("expected 2 active days (no zero-fill), got %d", len(days))
	}
	if !days[0].Day.Equal(day1) || !days[1].Day.Equal(day3) {
		t.Fatalf("expected ascending days [%v, %v], got [%v, %v]", day1, day3, days[0].Day, days[1].Day)
	}
}

func TestRangeValidation(t *testing.T) {
	svc := newTestService(newFakeStore(), time.Now())
	start := time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC)

	if _, err := svc.TotalRange(context.Background(), start, start.AddDate(0, 0, -1)); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
	if _, err := svc.UserRange(context.Background(), uuid.Nil, start, start); !errors.Is(err, ErrMissingUser) {
		t.Fatalf("expected ErrMissingUser, got %v", err)
	}
}

func TestRecordPropagatesStoreFailure(t *testing.T) {
	fs := newFakeStore()
	fs.err = errors.New("connection reset")
	svc := newTestService(fs, time.Now())

	if err := svc.Record(context.Background(), Event{UserID: uuid.New(), TotalTokens: 1}); err == nil {
		t.Fatalf("expected store failure to surface")
	}
}
