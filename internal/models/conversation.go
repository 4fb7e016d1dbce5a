// Package models defines the core data structures for CareVoice.
//
// It includes the Conversation record for one incident/accident report session,
// the append-only message log, and the injury sub-record shared across modules.
package models

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ScenarioType classifies the reported event.
type ScenarioType string

const (
	// ScenarioUnset means classification has not completed yet.
	ScenarioUnset ScenarioType = ""
	// ScenarioIncident is an event without physical injury.
	ScenarioIncident ScenarioType = "incident"
	// ScenarioAccident is an event involving physical injury.
	ScenarioAccident ScenarioType = "accident"
)

// EventType is the fixed category list a report must fall into.
type EventType string

const (
	EventTypeFall            EventType = "Fall"
	EventTypeBehaviour       EventType = "Behaviour"
	EventTypeMedication      EventType = "Medication"
	EventTypeSkinIntegrity   EventType = "Skin integrity"
	EventTypeEnvironmental   EventType = "Environmental"
	EventTypeAbsconding      EventType = "Absconding"
	EventTypePhysicalAssault EventType = "Physical Assault"
	EventTypeSelfHarm        EventType = "Self harm"
	EventTypeIPCRelated      EventType = "IPC related"
	EventTypeNearMiss        EventType = "Near miss"
	EventTypeMissingPerson   EventType = "Missing person"
	EventTypeOther           EventType = "Other"
)

// EventTypes lists every selectable event category in display order.
var EventTypes = []EventType{
	EventTypeFall,
	EventTypeBehaviour,
	EventTypeMedication,
	EventTypeSkinIntegrity,
	EventTypeEnvironmental,
	EventTypeAbsconding,
	EventTypePhysicalAssault,
	EventTypeSelfHarm,
	EventTypeIPCRelated,
	EventTypeNearMiss,
	EventTypeMissingPerson,
	EventTypeOther,
}

// IsValidEventType checks if the given event type is one of the fixed categories.
func IsValidEventType(et EventType) bool {
	for _, known := range EventTypes {
		if et == known {
			return true
		}
	}
	return false
}

// ConversationStatus tracks where a session is in its lifecycle.
type ConversationStatus string

const (
	// StatusCollecting means the question script is being walked.
	StatusCollecting ConversationStatus = "collecting"
	// StatusAwaitingClassification means the scenario gate question is pending.
	StatusAwaitingClassification ConversationStatus = "awaiting-classification-confirmation"
	// StatusAwaitingInjuryDetail means the injury sub-flow is active.
	StatusAwaitingInjuryDetail ConversationStatus = "awaiting-injury-detail"
	// StatusFinalizing means answers are being summarized and persisted.
	StatusFinalizing ConversationStatus = "finalizing"
	// StatusNotified is the normal terminal status.
	StatusNotified ConversationStatus = "notified"
	// StatusStopped means the session was cancelled before completion.
	StatusStopped ConversationStatus = "stopped"
)

// MessageSender identifies who produced a log entry.
type MessageSender string

const (
	SenderSystem MessageSender = "system"
	SenderUser   MessageSender = "user"
	SenderStatus MessageSender = "status"
)

// MessageKind classifies a log entry.
type MessageKind string

const (
	// KindQuestion marks a question prompt; logged exactly once per question asked.
	KindQuestion MessageKind = "question"
	// KindAnswer marks an accepted user answer; at most one per question.
	KindAnswer MessageKind = "answer"
	// KindInfo marks informational messages, including rejected user utterances.
	KindInfo MessageKind = "info"
	// KindError marks reprompts and fallback notices.
	KindError MessageKind = "error"
)

// Message is one entry in the conversation's append-only audit log.
type Message struct {
	Sender     MessageSender `json:"sender"`
	Text       string        `json:"text"`
	Kind       MessageKind   `json:"kind"`
	QuestionID string        `json:"question_id,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
}

// InjurySize is the closed size choice offered in the injury branch.
type InjurySize string

const (
	InjurySizeUnset  InjurySize = ""
	InjurySizeSmall  InjurySize = "Small"
	InjurySizeMedium InjurySize = "Medium"
	InjurySizeLarge  InjurySize = "Large"
)

// InjuryConfirmation is a tri-state answer to the injury confirmation question.
type InjuryConfirmation string

const (
	InjuryUnconfirmed InjuryConfirmation = ""
	InjuryConfirmed   InjuryConfirmation = "confirmed"
	InjuryDenied      InjuryConfirmation = "denied"
)

// Injury is the sub-record populated by the injury branch of the dialogue.
type Injury struct {
	RiskDetected         bool               `json:"risk_detected"`
	MentionedInNarrative bool               `json:"mentioned_in_narrative"`
	Confirmed            InjuryConfirmation `json:"confirmed,omitempty"`
	Size                 InjurySize         `json:"size,omitempty"`
	Location             string             `json:"location,omitempty"`
	AskedConfirmation    bool               `json:"asked_confirmation"`
	AskedSize            bool               `json:"asked_size"`
	AskedLocation        bool               `json:"asked_location"`
}

// CursorNotStarted is the sentinel cursor value before the first question.
const CursorNotStarted = -1

// Error variables for better error handling and testability
var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrConversationStopped  = errors.New("conversation is stopped")
	ErrEmptyReportingPerson = errors.New("reporting person cannot be empty")
	ErrEmptyResidentName    = errors.New("resident name cannot be empty")
	ErrInvalidEventType     = errors.New("invalid event type")
	ErrNoSummary            = errors.New("conversation has no summary")
	ErrSessionActive        = errors.New("another report session is active on this station")
)

// Conversation is one report session. It is created empty, driven through the
// question script by the dialogue engine, and never reused across sessions.
//
// The dialogue goroutine mutates it while HTTP handlers read it, so every
// mutation goes through a method holding the internal lock and concurrent
// readers take a View copy instead of touching the live struct.
type Conversation struct {
	mu sync.Mutex

	ID                string             `json:"id"`
	ResidentID        string             `json:"resident_id"`
	ResidentName      string             `json:"resident_name"`
	ReportingPersonID string             `json:"reporting_person_id"`
	ReportingPerson   string             `json:"reporting_person"`
	ScenarioType      ScenarioType       `json:"scenario_type"`
	EventType         EventType          `json:"event_type,omitempty"`
	Questions         []string           `json:"questions"`
	Cursor            int                `json:"cursor"`
	Responses         map[string]string  `json:"responses"`
	Injury            Injury             `json:"injury"`
	Messages          []Message          `json:"messages"`
	Unanswered        []string           `json:"unanswered_questions,omitempty"`
	EditedNarrative   string             `json:"edited_narrative,omitempty"`
	Summary           string             `json:"summary,omitempty"`
	SummaryEdited     bool               `json:"summary_edited"`
	Status            ConversationStatus `json:"status"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// NewConversation creates an empty report session with a fresh unique id.
func NewConversation(residentID, residentName, reportingPersonID, reportingPerson string) *Conversation {
	now := time.Now().UTC()
	return &Conversation{
		ID:                uuid.NewString(),
		ResidentID:        residentID,
		ResidentName:      residentName,
		ReportingPersonID: reportingPersonID,
		ReportingPerson:   reportingPerson,
		Cursor:            CursorNotStarted,
		Responses:         make(map[string]string),
		Status:            StatusAwaitingClassification,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// Append adds a message to the audit log. The log is append-only; entries are
// never mutated or removed.
func (c *Conversation) Append(sender MessageSender, kind MessageKind, text, questionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Messages = append(c.Messages, Message{
		Sender:     sender,
		Text:       text,
		Kind:       kind,
		QuestionID: questionID,
		Timestamp:  time.Now().UTC(),
	})
	c.UpdatedAt = time.Now().UTC()
}

// CurrentQuestion returns the question at the cursor, or false when the cursor
// is before the first question or past the end of the script.
func (c *Conversation) CurrentQuestion() (string, bool) {
	if c.Cursor < 0 || c.Cursor >= len(c.Questions) {
		return "", false
	}
	return c.Questions[c.Cursor], true
}

// Advance moves the cursor to the next question and reports whether the script
// still has questions left. The cursor only ever moves forward.
func (c *Conversation) Advance() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Cursor++
	return c.Cursor < len(c.Questions)
}

// RecordResponse stores the accepted answer for a question. Last write wins if
// a question is revisited.
func (c *Conversation) RecordResponse(question, answer string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Responses[question] = answer
	c.UpdatedAt = time.Now().UTC()
}

// RecordSkip marks a question as unanswered after retry exhaustion.
func (c *Conversation) RecordSkip(question string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Unanswered = append(c.Unanswered, question)
	c.UpdatedAt = time.Now().UTC()
}

// UpgradeScenario sets the scenario type, never downgrading accident back to
// incident. Injury confirmation is sticky for the remainder of the session.
func (c *Conversation) UpgradeScenario(st ScenarioType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ScenarioType == ScenarioAccident && st == ScenarioIncident {
		return
	}
	if st != ScenarioUnset {
		c.ScenarioType = st
	}
}

// SetStatus moves the conversation to the given lifecycle status.
func (c *Conversation) SetStatus(status ConversationStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Status = status
	c.UpdatedAt = time.Now().UTC()
}

// CurrentStatus returns the lifecycle status under the conversation lock.
func (c *Conversation) CurrentStatus() ConversationStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Status
}

// BindQuestions attaches the classified question script.
func (c *Conversation) BindQuestions(questions []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Questions = append([]string(nil), questions...)
	c.UpdatedAt = time.Now().UTC()
}

// SetEventType records the report's event category. Only members of the fixed
// category list are accepted.
func (c *Conversation) SetEventType(et EventType) error {
	if !IsValidEventType(et) {
		return ErrInvalidEventType
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.EventType = et
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// UpdateInjury applies a mutation to the injury sub-record under the lock.
func (c *Conversation) UpdateInjury(fn func(*Injury)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.Injury)
	c.UpdatedAt = time.Now().UTC()
}

// SetEditedNarrative records a user-supplied rewrite of the account. A blank
// rewrite clears it and the edited flag follows.
func (c *Conversation) SetEditedNarrative(narrative string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.EditedNarrative = strings.TrimSpace(narrative)
	c.SummaryEdited = c.EditedNarrative != ""
	c.UpdatedAt = time.Now().UTC()
}

// SetSummary stores the generated summary text.
func (c *Conversation) SetSummary(summary string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Summary = summary
	c.UpdatedAt = time.Now().UTC()
}

// SweepEligible reports whether the conversation reached a terminal status
// and has not been touched since the cutoff.
func (c *Conversation) SweepEligible(cutoff time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Status != StatusNotified && c.Status != StatusStopped {
		return false
	}
	return !c.UpdatedAt.After(cutoff)
}

// View returns a deep copy taken under the lock, safe to marshal or inspect
// while the dialogue goroutine keeps mutating the live conversation.
func (c *Conversation) View() *Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	messages := make([]Message, len(c.Messages))
	copy(messages, c.Messages)
	responses := make(map[string]string, len(c.Responses))
	for q, a := range c.Responses {
		responses[q] = a
	}
	return &Conversation{
		ID:                c.ID,
		ResidentID:        c.ResidentID,
		ResidentName:      c.ResidentName,
		ReportingPersonID: c.ReportingPersonID,
		ReportingPerson:   c.ReportingPerson,
		ScenarioType:      c.ScenarioType,
		EventType:         c.EventType,
		Questions:         append([]string(nil), c.Questions...),
		Cursor:            c.Cursor,
		Responses:         responses,
		Injury:            c.Injury,
		Messages:          messages,
		Unanswered:        append([]string(nil), c.Unanswered...),
		EditedNarrative:   c.EditedNarrative,
		Summary:           c.Summary,
		SummaryEdited:     c.SummaryEdited,
		Status:            c.Status,
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
	}
}

// CountMessages returns the number of log entries with the given kind.
func (c *Conversation) CountMessages(kind MessageKind) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, m := range c.Messages {
		if m.Kind == kind {
			n++
		}
	}
	return n
}

// Snapshot is the persistence projection of a Conversation.
type Snapshot struct {
	ID               string       `json:"conversation_id"`
	ScenarioType     ScenarioType `json:"scenario_type"`
	ResidentID       string       `json:"resident_id"`
	ResidentName     string       `json:"resident_name"`
	ReportingAgentID string       `json:"reporting_agent_id"`
	ReportingAgent   string       `json:"reporting_agent"`
	EventType        EventType    `json:"event_type,omitempty"`
	Messages         []Message    `json:"messages"`
	Summary          string       `json:"summary"`
	SummaryEdited    bool         `json:"summary_edited"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// Snapshot builds the persistence projection for the current state.
func (c *Conversation) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs := make([]Message, len(c.Messages))
	copy(msgs, c.Messages)
	return Snapshot{
		ID:               c.ID,
		ScenarioType:     c.ScenarioType,
		ResidentID:       c.ResidentID,
		ResidentName:     c.ResidentName,
		ReportingAgentID: c.ReportingPersonID,
		ReportingAgent:   c.ReportingPerson,
		EventType:        c.EventType,
		Messages:         msgs,
		Summary:          c.Summary,
		SummaryEdited:    c.SummaryEdited,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}
