// Package models defines collaborator exchange types for CareVoice.
package models

// EventAnalysis is the Language Model's verdict on a narrative answer.
type EventAnalysis struct {
	HasInjuryRisk        bool         `json:"has_injury_risk"`
	Likelihood           int          `json:"likelihood"` // 0..100
	Reasoning            string       `json:"reasoning"`
	InjuryMentioned      bool         `json:"injury_mentioned"`
	MentionDetails       string       `json:"mention_details,omitempty"`
	Classification       ScenarioType `json:"classification"`
	ClassificationReason string       `json:"classification_reason,omitempty"`
	// Fallback flags a substituted cautionary default after a collaborator failure.
	Fallback bool `json:"fallback,omitempty"`
}

// QA is one question/answer pair in original script order.
type QA struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// SummaryRequest carries the framing fields the summarizer requires.
type SummaryRequest struct {
	Responses       []QA         `json:"responses"`
	EditedNarrative string       `json:"edited_narrative,omitempty"` // replaces Responses when set
	ResidentName    string       `json:"resident_name"`
	ScenarioType    ScenarioType `json:"scenario_type"`
	EventType       EventType    `json:"event_type"`
	ReportingPerson string       `json:"reporting_person"`
}

// NotificationFields is the template payload handed to the notifier.
type NotificationFields struct {
	ConversationID  string       `json:"conversation_id"`
	ResidentName    string       `json:"resident_name"`
	ScenarioType    ScenarioType `json:"scenario_type"`
	EventType       EventType    `json:"event_type"`
	ReportingPerson string       `json:"reporting_person"`
	Summary         string       `json:"summary"`
}
