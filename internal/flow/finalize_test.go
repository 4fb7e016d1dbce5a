package flow

import (
	"context"
	"errors"
	"testing"

	"github.com/Majidul17068/carevoice/internal/models"
	"github.com/Majidul17068/carevoice/internal/notify"
	"github.com/Majidul17068/carevoice/internal/store"
)

func finalizerFixture() (*Finalizer, *mockLLM, *store.InMemoryStore, *notify.MockNotifier) {
	llm := &mockLLM{summary: "1. Title of the Incident\nFall in the lounge."}
	st := store.NewInMemoryStore()
	notifier := notify.NewMockNotifier()
	f := NewFinalizer(llm, st, notifier, []string{"manager@example.com"})
	return f, llm, st, notifier
}

func answeredConversation() *models.Conversation {
	conv := models.NewConversation("res-1", "Margaret Hill", "agent-1", "Nurse Okafor")
	conv.ScenarioType = models.ScenarioIncident
	conv.EventType = models.EventTypeFall
	conv.Questions = []string{"Where did the event take place?", "When did the event happen?"}
	conv.RecordResponse("When did the event happen?", "around 3 pm")
	conv.RecordResponse("Where did the event take place?", "in the lounge")
	return conv
}

func TestBuildRequestFollowsQuestionOrder(t *testing.T) {
	f, _, _, _ := finalizerFixture()
	conv := answeredConversation()

	req := f.BuildRequest(conv)
	if len(req.Responses) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(req.Responses))
	}
	// Answers come back in script order regardless of answer order.
	if req.Responses[0].Question != "Where did the event take place?" {
		t.Errorf("first response out of order: %q", req.Responses[0].Question)
	}
	if req.Responses[1].Answer != "around 3 pm" {
		t.Errorf("unexpected second answer: %q", req.Responses[1].Answer)
	}
	if req.ResidentName != "Margaret Hill" || req.ReportingPerson != "Nurse Okafor" {
		t.Errorf("framing fields wrong: %+v", req)
	}
}

func TestBuildRequestOmitsUnanswered(t *testing.T) {
	f, _, _, _ := finalizerFixture()
	conv := answeredConversation()
	conv.Questions = append(conv.Questions, "Were there any witnesses?")
	conv.RecordSkip("Were there any witnesses?")

	req := f.BuildRequest(conv)
	for _, qa := range req.Responses {
		if qa.Question == "Were there any witnesses?" {
			t.Error("skipped question must not appear in the summary request")
		}
	}
}

func TestFinalizePersistsOnce(t *testing.T) {
	f, llm, st, _ := finalizerFixture()
	conv := answeredConversation()

	summary := f.Finalize(context.Background(), conv)
	if summary != llm.summary {
		t.Errorf("unexpected summary %q", summary)
	}
	if conv.Summary != summary {
		t.Error("summary must be stored on the conversation")
	}
	if st.SaveCount() != 1 {
		t.Errorf("expected one save, got %d", st.SaveCount())
	}
	snap, err := st.GetConversation(conv.ID)
	if err != nil {
		t.Fatalf("snapshot missing: %v", err)
	}
	if snap.Summary != summary || snap.ResidentName != "Margaret Hill" {
		t.Errorf("snapshot fields wrong: %+v", snap)
	}
}

func TestNotifySendsFields(t *testing.T) {
	f, _, _, notifier := finalizerFixture()
	conv := answeredConversation()
	conv.Summary = "the summary"

	f.Notify(context.Background(), conv)
	if notifier.CallCount() != 1 {
		t.Fatalf("expected one notification, got %d", notifier.CallCount())
	}
	call := notifier.Calls[0]
	if call.Fields.ConversationID != conv.ID || call.Fields.Summary != "the summary" {
		t.Errorf("unexpected notification fields: %+v", call.Fields)
	}
}

func TestApplyEditReplacesSummaryAndRenotifies(t *testing.T) {
	f, llm, st, notifier := finalizerFixture()
	conv := answeredConversation()

	f.Finalize(context.Background(), conv)
	f.Notify(context.Background(), conv)

	llm.summary = "1. Title of the Incident\nRevised account."
	summary, err := f.ApplyEdit(context.Background(), conv, "The resident actually tripped over a chair.")
	if err != nil {
		t.Fatalf("ApplyEdit failed: %v", err)
	}
	if summary != llm.summary {
		t.Errorf("unexpected revised summary %q", summary)
	}
	if !conv.SummaryEdited {
		t.Error("edit must flag the summary as edited")
	}
	if llm.lastReq.EditedNarrative == "" {
		t.Error("summarizer must receive the edited account")
	}

	snap, err := st.GetConversation(conv.ID)
	if err != nil {
		t.Fatalf("snapshot missing: %v", err)
	}
	if snap.Summary != summary || !snap.SummaryEdited {
		t.Errorf("stored summary not replaced: %+v", snap)
	}
	if notifier.CallCount() != 2 {
		t.Errorf("expected a second notification after the edit, got %d", notifier.CallCount())
	}
}

func TestApplyEditRejectsEmptyAccount(t *testing.T) {
	f, _, _, notifier := finalizerFixture()
	conv := answeredConversation()

	if _, err := f.ApplyEdit(context.Background(), conv, "   "); !errors.Is(err, models.ErrNoSummary) {
		t.Fatalf("expected ErrNoSummary, got %v", err)
	}
	if notifier.CallCount() != 0 {
		t.Error("a rejected edit must not notify")
	}
}

func TestApplyEditUnsavedConversation(t *testing.T) {
	f, _, _, notifier := finalizerFixture()
	conv := answeredConversation()
	// Never finalized, so the store has no row to update.
	if _, err := f.ApplyEdit(context.Background(), conv, "Edited account."); !errors.Is(err, models.ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound, got %v", err)
	}
	if notifier.CallCount() != 0 {
		t.Error("a failed edit must not notify")
	}
}
