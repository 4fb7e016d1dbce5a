package flow

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Majidul17068/carevoice/internal/genai"
	"github.com/Majidul17068/carevoice/internal/models"
	"github.com/Majidul17068/carevoice/internal/notify"
	"github.com/Majidul17068/carevoice/internal/store"
)

// Finalizer turns a completed conversation into a narrative summary, persists
// the record, and delivers the manager notification. Persistence and
// notification are fire-and-forget from the state machine's perspective:
// failures are logged, never raised.
type Finalizer struct {
	llm        genai.ClientInterface
	store      store.Store
	notifier   notify.Notifier
	recipients []string
}

// NewFinalizer creates a finalization flow with the given collaborators.
func NewFinalizer(llm genai.ClientInterface, st store.Store, notifier notify.Notifier, recipients []string) *Finalizer {
	return &Finalizer{llm: llm, store: st, notifier: notifier, recipients: recipients}
}

// BuildRequest composes the summarization request. Given the same responses
// the request is deterministic: answers follow the original question order,
// and the framing fields come straight from the conversation. It reads a
// locked copy so a live session cannot tear the request.
func (f *Finalizer) BuildRequest(conv *models.Conversation) models.SummaryRequest {
	v := conv.View()
	req := models.SummaryRequest{
		EditedNarrative: v.EditedNarrative,
		ResidentName:    v.ResidentName,
		ScenarioType:    v.ScenarioType,
		EventType:       v.EventType,
		ReportingPerson: v.ReportingPerson,
	}
	for _, question := range v.Questions {
		if answer, ok := v.Responses[question]; ok {
			req.Responses = append(req.Responses, models.QA{Question: question, Answer: answer})
		}
	}
	return req
}

// SetEditedNarrative records a user-supplied rewrite; the summary will be
// re-derived from it instead of the structured responses.
func (f *Finalizer) SetEditedNarrative(conv *models.Conversation, narrative string) {
	conv.SetEditedNarrative(narrative)
}

// Finalize requests the summary, stores it on the conversation, and persists
// the snapshot. The first save inserts; later saves touch only the summary.
func (f *Finalizer) Finalize(ctx context.Context, conv *models.Conversation) string {
	req := f.BuildRequest(conv)
	summary := f.llm.Summarize(ctx, req)
	conv.SetSummary(summary)

	if err := f.store.SaveConversation(conv.Snapshot()); err != nil {
		slog.Error("Finalizer.Finalize: persistence failed", "id", conv.ID, "error", err)
	}
	slog.Info("Finalizer.Finalize: conversation finalized",
		"id", conv.ID, "summaryLen", len(summary), "edited", req.EditedNarrative != "")
	return summary
}

// Notify delivers the manager notification. Idempotent per call; invoked again
// after a post-session summary edit.
func (f *Finalizer) Notify(ctx context.Context, conv *models.Conversation) {
	v := conv.View()
	fields := models.NotificationFields{
		ConversationID:  v.ID,
		ResidentName:    v.ResidentName,
		ScenarioType:    v.ScenarioType,
		EventType:       v.EventType,
		ReportingPerson: v.ReportingPerson,
		Summary:         v.Summary,
	}
	if err := f.notifier.Notify(ctx, f.recipients, fields); err != nil {
		slog.Error("Finalizer.Notify: notification failed", "id", conv.ID, "error", err)
	}
}

// ApplyEdit re-derives the summary from an edited account after the session
// has completed, updates only the stored summary, and re-notifies.
func (f *Finalizer) ApplyEdit(ctx context.Context, conv *models.Conversation, editedNarrative string) (string, error) {
	trimmed := strings.TrimSpace(editedNarrative)
	if trimmed == "" {
		return "", models.ErrNoSummary
	}

	f.SetEditedNarrative(conv, trimmed)
	summary := f.llm.Summarize(ctx, f.BuildRequest(conv))
	conv.SetSummary(summary)

	if err := f.store.UpdateSummary(conv.ID, summary, true); err != nil {
		slog.Error("Finalizer.ApplyEdit: summary update failed", "id", conv.ID, "error", err)
		return "", err
	}
	f.Notify(ctx, conv)
	slog.Info("Finalizer.ApplyEdit: summary replaced", "id", conv.ID, "summaryLen", len(summary))
	return summary, nil
}
