// Package ingest adapts chat-model usage reports into the usage accounting
// core. The tracker is a callback wrapper bound to the user and conversation
// of a chat invocation; accounting is best effort and must never break the
// surrounding chat flow.
package ingest

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/openai/openai-go/v3"

	usageservice "github.com/verdantlabs/chat-admin/internal/services/usage"
)

// Tracker records the token usage reported by completed model invocations for
// one user/conversation pair.
type Tracker struct {
	usage          *usageservice.Service
	logger         *slog.Logger
	userID         uuid.UUID
	conversationID string
}

func NewTracker(svc *usageservice.Service, logger *slog.Logger, userID uuid.UUID, conversationID string) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		usage:          svc,
		logger:         logger,
		userID:         userID,
		conversationID: conversationID,
	}
}

// Report is a provider-agnostic usage report.
type Report struct {
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
}

// HandleCompletion records the usage attached to a chat completion response.
// Responses without usage are ignored.
func (t *Tracker) HandleCompletion(ctx context.Context, completion *openai.ChatCompletion) {
	if completion == nil {
		return
	}
	usage := completion.Usage
	if usage.PromptTokens == 0 && usage.CompletionTokens == 0 && usage.TotalTokens == 0 {
		return
	}
	t.HandleReport(ctx, &Report{
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		TotalTokens:      usage.TotalTokens,
	})
}

// HandleReport records a raw usage report. A nil report is a no-op. Store
// failures are logged and swallowed: a lost usage update is acceptable, a
// broken chat response is not.
func (t *Tracker) HandleReport(ctx context.Context, report *Report) {
	if t == nil || t.usage == nil || report == nil {
		return
	}

	err := t.usage.Record(ctx, usageservice.Event{
		UserID:           t.userID,
		ConversationID:   t.conversationID,
		PromptTokens:     report.PromptTokens,
		CompletionTokens: report.CompletionTokens,
		TotalTokens:      report.TotalTokens,
	})
	if err != nil {
		t.logger.Error("record token usage",
			"user_id", t.userID.String(),
			"conversation_id", t.conversationID,
			"error", err,
		)
	}
}
