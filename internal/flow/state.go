// Package flow implements the dialogue orchestration engine for CareVoice:
// the state machine that classifies the scenario, walks the question script,
// runs the conditional injury sub-flow, and drives finalization.
package flow

// State represents a specific state within the dialogue state machine.
type State string

const (
	// StateNotStarted is the initial state before the welcome lines.
	StateNotStarted State = "NOT_STARTED"
	// StateClassifying asks the physical-harm gate question.
	StateClassifying State = "CLASSIFYING_SCENARIO"
	// StateAsking walks the bound question script one question at a time.
	StateAsking State = "ASKING_QUESTION"
	// StateInjuryConfirm asks the yes/no physical-injury confirmation.
	StateInjuryConfirm State = "INJURY_CONFIRM"
	// StateInjurySize presents the closed Small/Medium/Large choice.
	StateInjurySize State = "INJURY_SIZE"
	// StateInjuryLocation captures the free-form injury location.
	StateInjuryLocation State = "INJURY_LOCATION"
	// StateFinalizing offers the edit round-trip.
	StateFinalizing State = "FINALIZING"
	// StateAwaitingEdit captures the edit decision and optional rewrite.
	StateAwaitingEdit State = "AWAITING_EDIT_DECISION"
	// StateNotifying generates the summary, persists, and notifies.
	StateNotifying State = "NOTIFYING"
	// StateDone is the normal terminal state.
	StateDone State = "DONE"
	// StateStopped is reachable from any state via an explicit stop.
	StateStopped State = "STOPPED"
)

// Question ids used in the message log alongside the per-script "Q1".."QN".
const (
	QuestionIDGate           = "Q0"
	QuestionIDInjuryConfirm  = "INJURY_CONFIRM"
	QuestionIDInjurySize     = "INJURY_SIZE"
	QuestionIDInjuryLocation = "INJURY_LOCATION"
	QuestionIDEditDecision   = "EDIT_DECISION"
	QuestionIDEditedAccount  = "EDITED_ACCOUNT"
	QuestionIDNotifyDecision = "NOTIFY_DECISION"
)
