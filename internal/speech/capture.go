package speech

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Default capture timing constants
const (
	// DefaultPollInterval is how often the capture loop checks for new text.
	DefaultPollInterval = 250 * time.Millisecond
	// DefaultSilenceThreshold ends a capture after this much steady-state silence.
	DefaultSilenceThreshold = 2 * time.Second
	// DefaultInitialGrace tolerates the user's think-time before the first utterance.
	DefaultInitialGrace = 10 * time.Second
)

// GrammarCorrector post-processes captured text. Implementations fail soft:
// on error they return the input unchanged rather than raising.
type GrammarCorrector interface {
	CorrectGrammar(ctx context.Context, text string) string
}

// Opts holds configuration options for a Capturer.
type Opts struct {
	PollInterval     time.Duration
	SilenceThreshold time.Duration
	InitialGrace     time.Duration
}

// Option defines a configuration option for a Capturer.
type Option func(*Opts)

// WithPollInterval overrides how often the loop polls the engine.
func WithPollInterval(d time.Duration) Option {
	return func(o *Opts) { o.PollInterval = d }
}

// WithSilenceThreshold overrides the steady-state silence threshold.
func WithSilenceThreshold(d time.Duration) Option {
	return func(o *Opts) { o.SilenceThreshold = d }
}

// WithInitialGrace overrides the first-utterance grace period.
func WithInitialGrace(d time.Duration) Option {
	return func(o *Opts) { o.InitialGrace = d }
}

// Capturer drives one bounded-duration, silence-terminated listen cycle
// against a speech engine and returns the raw (optionally grammar-corrected)
// text. A Capturer belongs to a single session and is not safe for concurrent
// Capture calls; the engine handles its own cross-thread synchronization.
type Capturer struct {
	engine    Engine
	corrector GrammarCorrector
	opts      Opts
}

// NewCapturer creates a capture loop over the given engine. The corrector may
// be nil, in which case grammar correction requests are skipped.
func NewCapturer(engine Engine, corrector GrammarCorrector, options ...Option) *Capturer {
	opts := Opts{
		PollInterval:     DefaultPollInterval,
		SilenceThreshold: DefaultSilenceThreshold,
		InitialGrace:     DefaultInitialGrace,
	}
	for _, opt := range options {
		opt(&opts)
	}
	slog.Debug("speech.NewCapturer: capturer created",
		"pollInterval", opts.PollInterval,
		"silenceThreshold", opts.SilenceThreshold,
		"initialGrace", opts.InitialGrace)
	return &Capturer{engine: engine, corrector: corrector, opts: opts}
}

// Capture listens for up to maxDuration, ending early once speech has been
// heard and the silence threshold elapses with no new text. It returns the
// accumulated text, or "" if nothing was recognized before the deadline.
// An empty return is a valid outcome, not an error.
//
// When correctGrammar is true and a corrector is configured, the raw text is
// passed through the corrector before returning; that call is synchronous and
// may itself take several seconds.
func (c *Capturer) Capture(ctx context.Context, maxDuration time.Duration, correctGrammar bool) (string, error) {
	slog.Debug("Capturer.Capture: starting listen cycle", "maxDuration", maxDuration, "correctGrammar", correctGrammar)

	if err := c.engine.StartListening(ctx); err != nil {
		slog.Error("Capturer.Capture: failed to start recognition", "error", err)
		return "", err
	}
	defer func() {
		if err := c.engine.StopListening(); err != nil {
			slog.Warn("Capturer.Capture: failed to stop recognition", "error", err)
		}
	}()

	deadline := time.Now().Add(maxDuration)
	lastActivity := time.Now()
	accumulated := ""

	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("Capturer.Capture: cancelled mid-capture", "accumulatedLen", len(accumulated))
			return "", ctx.Err()
		case <-ticker.C:
		}

		current := c.engine.Transcript()
		if current != accumulated {
			accumulated = current
			lastActivity = time.Now()
		}

		silence := time.Since(lastActivity)
		if accumulated != "" && silence >= c.opts.SilenceThreshold {
			slog.Debug("Capturer.Capture: silence threshold reached", "silence", silence, "textLen", len(accumulated))
			break
		}
		if accumulated == "" && silence >= c.opts.InitialGrace {
			// Nothing heard at all within the first-utterance grace period.
			slog.Debug("Capturer.Capture: initial grace elapsed with no speech", "grace", c.opts.InitialGrace)
			break
		}
		if time.Now().After(deadline) {
			slog.Debug("Capturer.Capture: max duration reached", "textLen", len(accumulated))
			break
		}
	}

	text := strings.TrimSpace(accumulated)
	if text == "" {
		slog.Debug("Capturer.Capture: no speech recognized")
		return "", nil
	}

	if correctGrammar && c.corrector != nil {
		corrected := c.corrector.CorrectGrammar(ctx, text)
		if strings.TrimSpace(corrected) != "" {
			text = strings.TrimSpace(corrected)
		}
	}

	slog.Debug("Capturer.Capture: captured response", "textLen", len(text))
	return text, nil
}
