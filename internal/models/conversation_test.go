package models

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestNewConversationDefaults(t *testing.T) {
	conv := NewConversation("r1", "Doris May", "s1", "Asha")
	if conv.ID == "" {
		t.Fatal("expected a generated id")
	}
	if conv.Cursor != CursorNotStarted {
		t.Errorf("expected cursor sentinel %d, got %d", CursorNotStarted, conv.Cursor)
	}
	if conv.Status != StatusAwaitingClassification {
		t.Errorf("expected initial status %q, got %q", StatusAwaitingClassification, conv.Status)
	}
	if conv.ScenarioType != ScenarioUnset {
		t.Errorf("expected unset scenario, got %q", conv.ScenarioType)
	}
	if len(conv.Responses) != 0 || len(conv.Messages) != 0 {
		t.Error("expected empty responses and messages")
	}

	other := NewConversation("r1", "Doris May", "s1", "Asha")
	if other.ID == conv.ID {
		t.Error("expected unique ids per conversation")
	}
}

func TestAdvanceAndCurrentQuestion(t *testing.T) {
	conv := NewConversation("r1", "Doris", "s1", "Asha")
	conv.Questions = []string{"q1", "q2"}

	if _, ok := conv.CurrentQuestion(); ok {
		t.Error("expected no current question before first advance")
	}
	if !conv.Advance() {
		t.Fatal("expected first advance to land on a question")
	}
	if q, _ := conv.CurrentQuestion(); q != "q1" {
		t.Errorf("expected q1, got %q", q)
	}
	if !conv.Advance() {
		t.Fatal("expected second advance to land on a question")
	}
	if conv.Advance() {
		t.Error("expected script to be exhausted")
	}
	if _, ok := conv.CurrentQuestion(); ok {
		t.Error("expected no current question past the end")
	}
}

func TestUpgradeScenarioStickiness(t *testing.T) {
	conv := NewConversation("r1", "Doris", "s1", "Asha")

	conv.UpgradeScenario(ScenarioIncident)
	if conv.ScenarioType != ScenarioIncident {
		t.Fatalf("expected incident, got %q", conv.ScenarioType)
	}

	conv.UpgradeScenario(ScenarioAccident)
	if conv.ScenarioType != ScenarioAccident {
		t.Fatalf("expected upgrade to accident, got %q", conv.ScenarioType)
	}

	// Accident never downgrades back to incident within a session.
	conv.UpgradeScenario(ScenarioIncident)
	if conv.ScenarioType != ScenarioAccident {
		t.Errorf("expected accident to stick, got %q", conv.ScenarioType)
	}

	conv.UpgradeScenario(ScenarioUnset)
	if conv.ScenarioType != ScenarioAccident {
		t.Errorf("expected unset to be ignored, got %q", conv.ScenarioType)
	}
}

func TestAppendOnlyGrows(t *testing.T) {
	conv := NewConversation("r1", "Doris", "s1", "Asha")
	conv.Append(SenderSystem, KindQuestion, "first?", "Q1")
	conv.Append(SenderUser, KindAnswer, "an answer", "Q1")
	conv.Append(SenderSystem, KindError, "please repeat", "Q1")

	if len(conv.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(conv.Messages))
	}
	if conv.Messages[0].Kind != KindQuestion || conv.Messages[1].Kind != KindAnswer {
		t.Error("messages out of order")
	}
	if conv.CountMessages(KindQuestion) != 1 || conv.CountMessages(KindAnswer) != 1 || conv.CountMessages(KindError) != 1 {
		t.Error("CountMessages mismatch")
	}
}

func TestRecordResponseLastWriteWins(t *testing.T) {
	conv := NewConversation("r1", "Doris", "s1", "Asha")
	conv.RecordResponse("where?", "the lounge")
	conv.RecordResponse("where?", "the garden")
	if conv.Responses["where?"] != "the garden" {
		t.Errorf("expected last write to win, got %q", conv.Responses["where?"])
	}
}

func TestSnapshotProjection(t *testing.T) {
	conv := NewConversation("r1", "Doris May", "s1", "Asha")
	conv.ScenarioType = ScenarioAccident
	conv.EventType = EventTypeFall
	conv.Summary = "a summary"
	conv.SummaryEdited = true
	conv.Append(SenderSystem, KindInfo, "hello", "")

	snap := conv.Snapshot()
	if snap.ID != conv.ID {
		t.Error("snapshot id mismatch")
	}
	if snap.ScenarioType != ScenarioAccident || snap.EventType != EventTypeFall {
		t.Error("snapshot classification mismatch")
	}
	if snap.ReportingAgent != "Asha" || snap.ReportingAgentID != "s1" {
		t.Error("snapshot reporting agent mismatch")
	}
	if len(snap.Messages) != 1 {
		t.Fatalf("expected 1 message in snapshot, got %d", len(snap.Messages))
	}
	if !snap.SummaryEdited || snap.Summary != "a summary" {
		t.Error("snapshot summary mismatch")
	}

	// The snapshot holds its own copy of the log.
	conv.Append(SenderSystem, KindInfo, "later", "")
	if len(snap.Messages) != 1 {
		t.Error("snapshot should not observe later appends")
	}
}

func TestSetEventType(t *testing.T) {
	conv := NewConversation("r1", "Doris", "s1", "Asha")
	if err := conv.SetEventType(EventTypeFall); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conv.EventType != EventTypeFall {
		t.Errorf("expected Fall, got %q", conv.EventType)
	}

	if err := conv.SetEventType(EventType("Volcano")); !errors.Is(err, ErrInvalidEventType) {
		t.Fatalf("expected ErrInvalidEventType, got %v", err)
	}
	if conv.EventType != EventTypeFall {
		t.Errorf("rejected category must not overwrite, got %q", conv.EventType)
	}
}

func TestViewIsDeepCopy(t *testing.T) {
	conv := NewConversation("r1", "Doris", "s1", "Asha")
	conv.BindQuestions([]string{"q1"})
	conv.Append(SenderSystem, KindQuestion, "q1", "Q1")
	conv.RecordResponse("q1", "original")

	view := conv.View()
	view.Messages[0].Text = "tampered"
	view.Responses["q1"] = "tampered"
	view.Questions[0] = "tampered"

	if conv.Messages[0].Text != "q1" {
		t.Error("mutating the view log leaked into the conversation")
	}
	if conv.Responses["q1"] != "original" {
		t.Error("mutating the view responses leaked into the conversation")
	}
	if conv.Questions[0] != "q1" {
		t.Error("mutating the view script leaked into the conversation")
	}
}

func TestViewDuringConcurrentMutation(t *testing.T) {
	conv := NewConversation("r1", "Doris", "s1", "Asha")
	conv.BindQuestions([]string{"q1", "q2"})

	var wg sync.WaitGroup
	done := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			conv.Append(SenderSystem, KindQuestion, "next question", "Q1")
			conv.RecordResponse("q1", "an answer")
			conv.UpdateInjury(func(in *Injury) { in.RiskDetected = !in.RiskDetected })
			conv.SetStatus(StatusCollecting)
			conv.UpgradeScenario(ScenarioAccident)
		}
		close(done)
	}()

	// Mirrors a session-log read arriving while the dialogue is mid-script.
	for {
		if _, err := json.Marshal(conv.View()); err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
		select {
		case <-done:
			wg.Wait()
			return
		default:
		}
	}
}

func TestSweepEligible(t *testing.T) {
	cutoff := time.Now().UTC()

	conv := NewConversation("r1", "Doris", "s1", "Asha")
	conv.Status = StatusNotified
	conv.UpdatedAt = cutoff.Add(-time.Hour)
	if !conv.SweepEligible(cutoff) {
		t.Error("expected stale notified conversation to be eligible")
	}

	conv.UpdatedAt = cutoff.Add(time.Hour)
	if conv.SweepEligible(cutoff) {
		t.Error("recently touched conversation must not be eligible")
	}

	active := NewConversation("r2", "Eric", "s1", "Asha")
	active.Status = StatusCollecting
	active.UpdatedAt = cutoff.Add(-time.Hour)
	if active.SweepEligible(cutoff) {
		t.Error("live conversation must not be eligible regardless of age")
	}
}

func TestIsValidEventType(t *testing.T) {
	if !IsValidEventType(EventTypeNearMiss) {
		t.Error("expected Near miss to be valid")
	}
	if IsValidEventType(EventType("Volcano")) {
		t.Error("expected unknown event type to be invalid")
	}
}
