package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Majidul17068/carevoice/internal/genai"
	"github.com/Majidul17068/carevoice/internal/models"
	"github.com/Majidul17068/carevoice/internal/notify"
	"github.com/Majidul17068/carevoice/internal/speech"
	"github.com/Majidul17068/carevoice/internal/store"
	"github.com/Majidul17068/carevoice/internal/validate"
)

// Default dialogue timing and retry constants
const (
	// DefaultGateDuration bounds the capture for the yes/no classification gate.
	DefaultGateDuration = 15 * time.Second
	// DefaultAnswerDuration bounds the capture for narrative answers.
	DefaultAnswerDuration = 120 * time.Second
	// DefaultMaxSilenceRetries is the per-question budget for empty captures.
	// Validation failures are tracked separately and retried without bound.
	DefaultMaxSilenceRetries = 3
)

// Dependencies bundles the collaborators the dialogue engine drives.
type Dependencies struct {
	Registry   *Registry
	Engine     speech.Engine
	LLM        genai.ClientInterface
	Store      store.Store
	Notifier   notify.Notifier
	Recipients []string
}

// Opts holds configuration options for the dialogue engine.
type Opts struct {
	GateDuration      time.Duration
	AnswerDuration    time.Duration
	MaxSilenceRetries int
	CaptureOptions    []speech.Option
}

// Option defines a configuration option for the dialogue engine.
type Option func(*Opts)

// WithGateDuration overrides the classification gate capture duration.
func WithGateDuration(d time.Duration) Option {
	return func(o *Opts) { o.GateDuration = d }
}

// WithAnswerDuration overrides the per-question capture duration.
func WithAnswerDuration(d time.Duration) Option {
	return func(o *Opts) { o.AnswerDuration = d }
}

// WithMaxSilenceRetries overrides the empty-capture retry budget.
func WithMaxSilenceRetries(n int) Option {
	return func(o *Opts) { o.MaxSilenceRetries = n }
}

// WithCaptureOptions passes options through to the underlying capture loop.
func WithCaptureOptions(opts ...speech.Option) Option {
	return func(o *Opts) { o.CaptureOptions = append(o.CaptureOptions, opts...) }
}

// Dialogue is the stateful controller for report sessions. One Dialogue serves
// one speech engine (one reporting station); concurrent sessions use disjoint
// Conversation instances from the shared registry.
type Dialogue struct {
	registry  *Registry
	engine    speech.Engine
	capturer  *speech.Capturer
	llm       genai.ClientInterface
	finalizer *Finalizer
	opts      Opts

	mu      sync.Mutex
	cancels map[string]context.CancelFunc

	// One microphone, one reporter: the station serves a single live
	// session, claimed before Run starts listening.
	sessionMu sync.Mutex
	activeID  string
}

// NewDialogue creates a dialogue engine with the given collaborators.
func NewDialogue(deps Dependencies, options ...Option) *Dialogue {
	opts := Opts{
		GateDuration:      DefaultGateDuration,
		AnswerDuration:    DefaultAnswerDuration,
		MaxSilenceRetries: DefaultMaxSilenceRetries,
	}
	for _, opt := range options {
		opt(&opts)
	}
	slog.Debug("flow.NewDialogue: engine created",
		"gateDuration", opts.GateDuration,
		"answerDuration", opts.AnswerDuration,
		"maxSilenceRetries", opts.MaxSilenceRetries)
	return &Dialogue{
		registry:  deps.Registry,
		engine:    deps.Engine,
		capturer:  speech.NewCapturer(deps.Engine, deps.LLM, opts.CaptureOptions...),
		llm:       deps.LLM,
		finalizer: NewFinalizer(deps.LLM, deps.Store, deps.Notifier, deps.Recipients),
		opts:      opts,
	}
}

// Finalizer exposes the finalization flow, for the edit round-trip surface.
func (d *Dialogue) Finalizer() *Finalizer {
	return d.finalizer
}

// Claim reserves the station's speech engine for the given conversation.
// It fails with models.ErrSessionActive while another session holds it, and
// is idempotent for the holder. Run claims on entry; callers that need to
// reject a concurrent start before launching Run can claim up front.
func (d *Dialogue) Claim(conversationID string) error {
	d.sessionMu.Lock()
	defer d.sessionMu.Unlock()
	if d.activeID != "" && d.activeID != conversationID {
		return fmt.Errorf("%w: conversation %s", models.ErrSessionActive, d.activeID)
	}
	d.activeID = conversationID
	return nil
}

func (d *Dialogue) releaseStation(conversationID string) {
	d.sessionMu.Lock()
	defer d.sessionMu.Unlock()
	if d.activeID == conversationID {
		d.activeID = ""
	}
}

// Run drives one conversation from welcome to completion. It blocks until the
// session reaches a terminal state, and returns an error only for caller
// mistakes (unknown id, stopped conversation, busy station); collaborator
// failures are absorbed per the fail-soft policy.
func (d *Dialogue) Run(ctx context.Context, conversationID string) error {
	conv, err := d.registry.Get(conversationID)
	if err != nil {
		slog.Error("Dialogue.Run: unknown conversation", "id", conversationID)
		return err
	}
	if conv.CurrentStatus() == models.StatusStopped {
		slog.Warn("Dialogue.Run: refusing stopped conversation", "id", conversationID)
		return models.ErrConversationStopped
	}
	if err := d.Claim(conversationID); err != nil {
		slog.Warn("Dialogue.Run: station busy", "id", conversationID, "error", err)
		return err
	}
	defer d.releaseStation(conversationID)

	ctx, cancel := context.WithCancel(ctx)
	d.trackCancel(conversationID, cancel)
	defer d.clearCancel(conversationID)

	state := StateNotStarted
	slog.Info("Dialogue.Run: session starting", "id", conv.ID, "resident", conv.ResidentName)

	for state != StateDone && state != StateStopped {
		if ctx.Err() != nil {
			state = d.markStopped(conv)
			break
		}

		switch state {
		case StateNotStarted:
			state = d.welcome(ctx, conv)
		case StateClassifying:
			state = d.classifyScenario(ctx, conv)
		case StateAsking:
			state = d.askNextQuestion(ctx, conv)
		case StateInjuryConfirm:
			state = d.confirmInjury(ctx, conv)
		case StateInjurySize:
			state = d.askInjurySize(ctx, conv)
		case StateInjuryLocation:
			state = d.askInjuryLocation(ctx, conv)
		case StateFinalizing:
			state = d.offerEdit(ctx, conv)
		case StateAwaitingEdit:
			state = d.captureEditDecision(ctx, conv)
		case StateNotifying:
			state = d.finalizeAndNotify(ctx, conv)
		default:
			slog.Error("Dialogue.Run: unexpected state", "id", conv.ID, "state", state)
			state = d.markStopped(conv)
		}
	}

	slog.Info("Dialogue.Run: session ended", "id", conv.ID, "state", state, "status", conv.CurrentStatus())
	return nil
}

// Stop cancels any in-flight capture for the conversation and marks it
// stopped. The conversation object stays intact for inspection.
func (d *Dialogue) Stop(conversationID string) error {
	conv, err := d.registry.Get(conversationID)
	if err != nil {
		return err
	}

	d.mu.Lock()
	cancel := d.cancels[conversationID]
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	} else {
		// No session running; mark directly.
		conv.SetStatus(models.StatusStopped)
	}
	slog.Info("Dialogue.Stop: stop requested", "id", conversationID, "wasRunning", cancel != nil)
	return nil
}

func (d *Dialogue) trackCancel(id string, cancel context.CancelFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancels == nil {
		d.cancels = make(map[string]context.CancelFunc)
	}
	d.cancels[id] = cancel
}

func (d *Dialogue) clearCancel(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.cancels, id)
}

func (d *Dialogue) markStopped(conv *models.Conversation) State {
	conv.SetStatus(models.StatusStopped)
	conv.Append(models.SenderStatus, models.KindInfo, stopNotice, "")
	if err := d.engine.StopListening(); err != nil {
		slog.Warn("Dialogue.markStopped: failed to halt recognition", "id", conv.ID, "error", err)
	}
	return StateStopped
}

// say logs a system message and speaks it. Synthesis failures are logged and
// absorbed; the log entry is the source of truth for what was said.
func (d *Dialogue) say(ctx context.Context, conv *models.Conversation, kind models.MessageKind, text, questionID string) {
	conv.Append(models.SenderSystem, kind, text, questionID)
	if err := d.engine.Speak(ctx, text); err != nil {
		slog.Warn("Dialogue.say: synthesis failed", "id", conv.ID, "error", err)
	}
}

// capture runs one listen cycle. A cancelled context surfaces as ok=false.
func (d *Dialogue) capture(ctx context.Context, conv *models.Conversation, maxDuration time.Duration, correctGrammar bool) (string, bool) {
	text, err := d.capturer.Capture(ctx, maxDuration, correctGrammar)
	if err != nil {
		if ctx.Err() == nil {
			slog.Warn("Dialogue.capture: capture failed, treating as no response", "id", conv.ID, "error", err)
			return "", true
		}
		return "", false
	}
	return text, true
}

// welcome emits the opening lines and hands over to classification.
func (d *Dialogue) welcome(ctx context.Context, conv *models.Conversation) State {
	d.say(ctx, conv, models.KindInfo, fmt.Sprintf(welcomeTemplate, conv.ReportingPerson), "")
	d.say(ctx, conv, models.KindInfo, fmt.Sprintf(condolenceTemplate, conv.ResidentName), "")
	conv.SetStatus(models.StatusAwaitingClassification)
	return StateClassifying
}

// classifyScenario asks the physical-harm gate question and binds the script.
// The gate is a binary question with no retry cap: it self-loops on anything
// but a recognizable yes or no.
func (d *Dialogue) classifyScenario(ctx context.Context, conv *models.Conversation) State {
	d.say(ctx, conv, models.KindQuestion, gateQuestion, QuestionIDGate)

	for {
		text, ok := d.capture(ctx, conv, d.opts.GateDuration, false)
		if !ok {
			return d.markStopped(conv)
		}

		lowered := strings.ToLower(text)
		switch {
		case strings.Contains(lowered, "no"):
			conv.Append(models.SenderUser, models.KindAnswer, text, QuestionIDGate)
			return d.bindScript(ctx, conv, models.ScenarioIncident, IncidentQuestions())
		case strings.Contains(lowered, "yes"):
			conv.Append(models.SenderUser, models.KindAnswer, text, QuestionIDGate)
			return d.bindScript(ctx, conv, models.ScenarioAccident, AccidentQuestions())
		case text == "":
			d.say(ctx, conv, models.KindError, noCatchReprompt, "")
		default:
			conv.Append(models.SenderUser, models.KindInfo, text, QuestionIDGate)
			d.say(ctx, conv, models.KindError, gateReprompt, "")
		}
	}
}

func (d *Dialogue) bindScript(ctx context.Context, conv *models.Conversation, scenario models.ScenarioType, questions []string) State {
	conv.UpgradeScenario(scenario)
	conv.BindQuestions(questions)
	conv.SetStatus(models.StatusCollecting)
	slog.Info("Dialogue.bindScript: scenario classified", "id", conv.ID, "scenario", scenario, "questions", len(questions))
	d.say(ctx, conv, models.KindInfo, fmt.Sprintf(scriptIntro, scenario), "")
	return StateAsking
}

// askNextQuestion advances the cursor and runs the ask/capture/validate loop
// for one question. Silence failures consume the bounded retry budget;
// validation failures reprompt without bound. On budget exhaustion the
// question is skipped with a logged notice and the form moves on.
func (d *Dialogue) askNextQuestion(ctx context.Context, conv *models.Conversation) State {
	if !conv.Advance() {
		conv.SetStatus(models.StatusFinalizing)
		return StateFinalizing
	}

	question, _ := conv.CurrentQuestion()
	questionID := fmt.Sprintf("Q%d", conv.Cursor+1)
	kind := questionKind(question)
	d.say(ctx, conv, models.KindQuestion, question, questionID)

	answer, outcome := d.collectAnswer(ctx, conv, question, questionID, kind, true)
	switch outcome {
	case outcomeStopped:
		return d.markStopped(conv)
	case outcomeSkipped:
		return StateAsking
	}

	if question == narrativeQuestion {
		return d.analyzeNarrative(ctx, conv, answer)
	}
	return StateAsking
}

type answerOutcome int

const (
	outcomeAccepted answerOutcome = iota
	outcomeSkipped
	outcomeStopped
)

// collectAnswer runs the capture/validate loop for one already-announced
// question and records the accepted answer. Empty captures are "no response"
// (bounded retries); validation failures are corrective reprompts (unbounded).
func (d *Dialogue) collectAnswer(ctx context.Context, conv *models.Conversation, question, questionID string, kind validate.Kind, correctGrammar bool) (string, answerOutcome) {
	silenceAttempts := 0
	for {
		text, ok := d.capture(ctx, conv, d.opts.AnswerDuration, correctGrammar)
		if !ok {
			return "", outcomeStopped
		}

		if text == "" {
			silenceAttempts++
			if silenceAttempts >= d.opts.MaxSilenceRetries {
				slog.Warn("Dialogue.collectAnswer: silence budget exhausted, skipping",
					"id", conv.ID, "questionID", questionID, "attempts", silenceAttempts)
				conv.RecordSkip(question)
				d.say(ctx, conv, models.KindError, skipNotice, questionID)
				return "", outcomeSkipped
			}
			d.say(ctx, conv, models.KindError, noCatchReprompt, questionID)
			continue
		}

		if !validate.Validate(kind, text) {
			conv.Append(models.SenderUser, models.KindInfo, text, questionID)
			d.say(ctx, conv, models.KindError, correctionPrompt(kind), questionID)
			continue
		}

		conv.Append(models.SenderUser, models.KindAnswer, text, questionID)
		conv.RecordResponse(question, text)
		if kind == validate.KindEventType {
			if err := conv.SetEventType(matchEventType(text)); err != nil {
				slog.Warn("Dialogue.collectAnswer: event type rejected",
					"id", conv.ID, "questionID", questionID, "error", err)
			}
		}
		return text, outcomeAccepted
	}
}

// analyzeNarrative sends the narrative answer to the event-analysis capability
// and routes into the injury branch when risk is detected. A failed analysis
// substitutes the cautionary assume-risk default, so the branch is still asked.
func (d *Dialogue) analyzeNarrative(ctx context.Context, conv *models.Conversation, narrative string) State {
	analysis := d.llm.AnalyzeEvent(ctx, narrative)
	conv.UpdateInjury(func(in *models.Injury) {
		in.RiskDetected = analysis.HasInjuryRisk
		in.MentionedInNarrative = analysis.InjuryMentioned
	})
	conv.UpgradeScenario(analysis.Classification)

	slog.Info("Dialogue.analyzeNarrative: verdict applied",
		"id", conv.ID,
		"hasInjuryRisk", analysis.HasInjuryRisk,
		"injuryMentioned", analysis.InjuryMentioned,
		"classification", conv.ScenarioType,
		"fallback", analysis.Fallback)

	if analysis.Fallback {
		d.say(ctx, conv, models.KindError, analysisFallback, "")
	}

	switch {
	case analysis.HasInjuryRisk && analysis.InjuryMentioned:
		// The narrative already states an injury; skip confirmation.
		conv.UpgradeScenario(models.ScenarioAccident)
		conv.SetStatus(models.StatusAwaitingInjuryDetail)
		return StateInjurySize
	case analysis.HasInjuryRisk:
		conv.SetStatus(models.StatusAwaitingInjuryDetail)
		return StateInjuryConfirm
	default:
		return StateAsking
	}
}

// confirmInjury asks the yes/no injury confirmation. A yes upgrades the
// scenario to accident and is sticky for the rest of the session; a no
// resumes the main script. The silence budget applies like any question.
func (d *Dialogue) confirmInjury(ctx context.Context, conv *models.Conversation) State {
	conv.UpdateInjury(func(in *models.Injury) { in.AskedConfirmation = true })
	d.say(ctx, conv, models.KindQuestion, injuryConfirmQuestion, QuestionIDInjuryConfirm)

	silenceAttempts := 0
	for {
		text, ok := d.capture(ctx, conv, d.opts.GateDuration, false)
		if !ok {
			return d.markStopped(conv)
		}

		if text == "" {
			silenceAttempts++
			if silenceAttempts >= d.opts.MaxSilenceRetries {
				conv.RecordSkip(injuryConfirmQuestion)
				d.say(ctx, conv, models.KindError, skipNotice, QuestionIDInjuryConfirm)
				d.say(ctx, conv, models.KindInfo, injurySkipNotice, "")
				conv.SetStatus(models.StatusCollecting)
				return StateAsking
			}
			d.say(ctx, conv, models.KindError, noCatchReprompt, QuestionIDInjuryConfirm)
			continue
		}

		lowered := strings.ToLower(text)
		switch {
		case strings.Contains(lowered, "no"):
			conv.Append(models.SenderUser, models.KindAnswer, text, QuestionIDInjuryConfirm)
			conv.UpdateInjury(func(in *models.Injury) { in.Confirmed = models.InjuryDenied })
			conv.SetStatus(models.StatusCollecting)
			return StateAsking
		case strings.Contains(lowered, "yes"):
			conv.Append(models.SenderUser, models.KindAnswer, text, QuestionIDInjuryConfirm)
			conv.UpdateInjury(func(in *models.Injury) { in.Confirmed = models.InjuryConfirmed })
			conv.UpgradeScenario(models.ScenarioAccident)
			return StateInjurySize
		default:
			conv.Append(models.SenderUser, models.KindInfo, text, QuestionIDInjuryConfirm)
			d.say(ctx, conv, models.KindError, yesNoReprompt, QuestionIDInjuryConfirm)
		}
	}
}

// askInjurySize presents the closed Small/Medium/Large choice.
func (d *Dialogue) askInjurySize(ctx context.Context, conv *models.Conversation) State {
	conv.UpdateInjury(func(in *models.Injury) { in.AskedSize = true })
	d.say(ctx, conv, models.KindQuestion, injurySizeQuestion, QuestionIDInjurySize)

	answer, outcome := d.collectAnswer(ctx, conv, injurySizeQuestion, QuestionIDInjurySize, validate.KindInjurySize, false)
	switch outcome {
	case outcomeStopped:
		return d.markStopped(conv)
	case outcomeAccepted:
		conv.UpdateInjury(func(in *models.Injury) { in.Size = matchInjurySize(answer) })
	}
	return StateInjuryLocation
}

// askInjuryLocation captures the free-form injury location and resumes the
// main script. The injury branch never touches the main cursor.
func (d *Dialogue) askInjuryLocation(ctx context.Context, conv *models.Conversation) State {
	conv.UpdateInjury(func(in *models.Injury) { in.AskedLocation = true })
	d.say(ctx, conv, models.KindQuestion, injuryLocationQuestion, QuestionIDInjuryLocation)

	answer, outcome := d.collectAnswer(ctx, conv, injuryLocationQuestion, QuestionIDInjuryLocation, validate.KindFreeForm, true)
	switch outcome {
	case outcomeStopped:
		return d.markStopped(conv)
	case outcomeAccepted:
		conv.UpdateInjury(func(in *models.Injury) { in.Location = answer })
	}
	conv.SetStatus(models.StatusCollecting)
	return StateAsking
}

// offerEdit announces the edit opportunity once the script is exhausted.
func (d *Dialogue) offerEdit(ctx context.Context, conv *models.Conversation) State {
	conv.SetStatus(models.StatusFinalizing)
	d.say(ctx, conv, models.KindQuestion, editQuestion, QuestionIDEditDecision)
	return StateAwaitingEdit
}

// captureEditDecision captures the yes/no edit decision and, on yes, the
// edited account that replaces the structured responses for summarization.
// Silence or an unrecognized answer defaults to no edits.
func (d *Dialogue) captureEditDecision(ctx context.Context, conv *models.Conversation) State {
	silenceAttempts := 0
	for {
		text, ok := d.capture(ctx, conv, d.opts.GateDuration, false)
		if !ok {
			return d.markStopped(conv)
		}

		if text == "" {
			silenceAttempts++
			if silenceAttempts >= d.opts.MaxSilenceRetries {
				conv.RecordSkip(editQuestion)
				d.say(ctx, conv, models.KindInfo, "No changes requested; I'll prepare the report.", QuestionIDEditDecision)
				return StateNotifying
			}
			d.say(ctx, conv, models.KindError, noCatchReprompt, QuestionIDEditDecision)
			continue
		}

		lowered := strings.ToLower(text)
		switch {
		case strings.Contains(lowered, "no"):
			conv.Append(models.SenderUser, models.KindAnswer, text, QuestionIDEditDecision)
			return StateNotifying
		case strings.Contains(lowered, "yes"):
			conv.Append(models.SenderUser, models.KindAnswer, text, QuestionIDEditDecision)
			return d.captureEditedAccount(ctx, conv)
		default:
			conv.Append(models.SenderUser, models.KindInfo, text, QuestionIDEditDecision)
			d.say(ctx, conv, models.KindError, yesNoReprompt, QuestionIDEditDecision)
		}
	}
}

func (d *Dialogue) captureEditedAccount(ctx context.Context, conv *models.Conversation) State {
	d.say(ctx, conv, models.KindQuestion, editPrompt, QuestionIDEditedAccount)

	answer, outcome := d.collectAnswer(ctx, conv, editPrompt, QuestionIDEditedAccount, validate.KindFreeForm, true)
	switch outcome {
	case outcomeStopped:
		return d.markStopped(conv)
	case outcomeAccepted:
		d.finalizer.SetEditedNarrative(conv, answer)
	}
	return StateNotifying
}

// finalizeAndNotify generates the summary, persists the conversation, asks
// the notify-manager question, and sends the notification. The notification
// goes out regardless of the answer given; both branches of the original flow
// call the send routine and that observed contract is preserved here.
func (d *Dialogue) finalizeAndNotify(ctx context.Context, conv *models.Conversation) State {
	summary := d.finalizer.Finalize(ctx, conv)
	d.say(ctx, conv, models.KindInfo, summaryIntro, "")
	conv.Append(models.SenderSystem, models.KindInfo, summary, "")

	d.say(ctx, conv, models.KindQuestion, notifyQuestion, QuestionIDNotifyDecision)
	silenceAttempts := 0
	for {
		text, ok := d.capture(ctx, conv, d.opts.GateDuration, false)
		if !ok {
			return d.markStopped(conv)
		}

		if text == "" {
			silenceAttempts++
			if silenceAttempts >= d.opts.MaxSilenceRetries {
				conv.RecordSkip(notifyQuestion)
				break
			}
			d.say(ctx, conv, models.KindError, noCatchReprompt, QuestionIDNotifyDecision)
			continue
		}

		lowered := strings.ToLower(text)
		if strings.Contains(lowered, "no") || strings.Contains(lowered, "yes") {
			conv.Append(models.SenderUser, models.KindAnswer, text, QuestionIDNotifyDecision)
			break
		}
		conv.Append(models.SenderUser, models.KindInfo, text, QuestionIDNotifyDecision)
		d.say(ctx, conv, models.KindError, yesNoReprompt, QuestionIDNotifyDecision)
	}

	d.finalizer.Notify(ctx, conv)
	d.say(ctx, conv, models.KindInfo, closingMessage, "")
	conv.SetStatus(models.StatusNotified)
	return StateDone
}

// matchEventType extracts the first matching event category from an accepted
// enumerated-choice answer.
func matchEventType(answer string) models.EventType {
	lowered := strings.ToLower(answer)
	for _, et := range models.EventTypes {
		if strings.Contains(lowered, strings.ToLower(string(et))) {
			return et
		}
	}
	// The validator passed on a variant spelling.
	switch {
	case strings.Contains(lowered, "behavior"):
		return models.EventTypeBehaviour
	case strings.Contains(lowered, "other"):
		return models.EventTypeOther
	}
	return models.EventTypeOther
}

// matchInjurySize extracts the chosen size from a validated size answer.
func matchInjurySize(answer string) models.InjurySize {
	lowered := strings.ToLower(answer)
	switch {
	case strings.Contains(lowered, "small"):
		return models.InjurySizeSmall
	case strings.Contains(lowered, "medium"):
		return models.InjurySizeMedium
	case strings.Contains(lowered, "large"):
		return models.InjurySizeLarge
	}
	return models.InjurySizeUnset
}
