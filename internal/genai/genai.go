// Package genai provides the Language Model collaborator for CareVoice using
// the OpenAI-compatible chat completions API.
//
// Every exported call fails soft: on a collaborator error it logs and returns
// a clearly-flagged safe default instead of raising, so the dialogue never
// halts because the model is unavailable.
package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/Majidul17068/carevoice/internal/models"
)

// SummaryFallback is returned when summarization fails.
const SummaryFallback = "An error occurred during scenario summarization."

// chatService defines the minimal interface for chat completions.
type chatService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// ClientInterface is the Language Model contract the dialogue engine consumes.
// All methods are fail-soft.
type ClientInterface interface {
	CorrectGrammar(ctx context.Context, text string) string
	AnalyzeEvent(ctx context.Context, narrative string) models.EventAnalysis
	Summarize(ctx context.Context, req models.SummaryRequest) string
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey  string
	BaseURL string
	Model   openai.ChatModel
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(u string) Option {
	return func(o *Opts) { o.BaseURL = u }
}

// WithModel overrides the chat model.
func WithModel(m openai.ChatModel) Option {
	return func(o *Opts) { o.Model = m }
}

// Client wraps the chat completions service for grammar correction, event
// analysis and report summarization.
type Client struct {
	chat  chatService
	model openai.ChatModel
}

// NewClient initializes a GenAI client. The API key falls back to the
// OPENAI_API_KEY environment variable when not provided via options.
func NewClient(options ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range options {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	if cfg.Model == "" {
		cfg.Model = openai.ChatModelGPT4oMini
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	cli := openai.NewClient(reqOpts...)
	slog.Debug("genai.NewClient: client created", "model", cfg.Model, "baseURL_set", cfg.BaseURL != "")
	return &Client{chat: &cli.Chat.Completions, model: cfg.Model}, nil
}

const grammarSystemPrompt = "You are an expert language model that corrects grammatical errors in spoken " +
	"care-home incident reports, preserves proper nouns (staff names, witness names, places), keeps " +
	"time and date expressions intact, and converts sentences to past tense. Return only the corrected " +
	"sentence with no explanation. For single-word responses or short category phrases, return them as-is. " +
	"Do not censor sensitive or violent words."

// CorrectGrammar returns a cleaned-up past-tense rendering of the raw spoken
// text. On any failure the raw text is returned unchanged.
func (c *Client) CorrectGrammar(ctx context.Context, text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ""
	}

	content, err := c.complete(ctx, grammarSystemPrompt, trimmed)
	if err != nil {
		slog.Warn("Client.CorrectGrammar: falling back to raw text", "error", err)
		return trimmed
	}
	corrected := strings.TrimSpace(content)
	if corrected == "" {
		slog.Warn("Client.CorrectGrammar: empty completion, falling back to raw text")
		return trimmed
	}
	slog.Debug("Client.CorrectGrammar: corrected", "inLen", len(trimmed), "outLen", len(corrected))
	return corrected
}

const analysisSystemPrompt = "You analyze a care-home event narrative for injury risk. Respond with a " +
	"single JSON object and nothing else, with these fields: " +
	`"has_injury_risk" (boolean), "likelihood" (integer 0-100), "reasoning" (string), ` +
	`"injury_mentioned" (boolean, true when the narrative already states an injury occurred), ` +
	`"mention_details" (string), "classification" ("incident" or "accident"), ` +
	`"classification_reason" (string). An event is an accident when someone was physically harmed, ` +
	"however minor; otherwise it is an incident."

// AnalyzeEvent asks the model whether a narrative indicates injury risk and how
// the event should be classified. On failure it returns a cautionary default
// that assumes injury risk, biasing toward the safer classification.
func (c *Client) AnalyzeEvent(ctx context.Context, narrative string) models.EventAnalysis {
	content, err := c.complete(ctx, analysisSystemPrompt, narrative)
	if err != nil {
		slog.Warn("Client.AnalyzeEvent: analysis failed, assuming injury risk", "error", err)
		return fallbackAnalysis(err.Error())
	}

	analysis, err := parseAnalysis(content)
	if err != nil {
		slog.Warn("Client.AnalyzeEvent: unparseable verdict, assuming injury risk", "error", err)
		return fallbackAnalysis(err.Error())
	}
	slog.Debug("Client.AnalyzeEvent: verdict received",
		"hasInjuryRisk", analysis.HasInjuryRisk,
		"injuryMentioned", analysis.InjuryMentioned,
		"classification", analysis.Classification)
	return analysis
}

// fallbackAnalysis is the substituted verdict after a collaborator failure.
func fallbackAnalysis(reason string) models.EventAnalysis {
	return models.EventAnalysis{
		HasInjuryRisk:        true,
		Likelihood:           50,
		Reasoning:            "event analysis unavailable; assuming injury risk as a precaution",
		Classification:       models.ScenarioAccident,
		ClassificationReason: reason,
		Fallback:             true,
	}
}

// parseAnalysis decodes the model's JSON verdict, tolerating code fences.
func parseAnalysis(content string) (models.EventAnalysis, error) {
	cleaned := strings.TrimSpace(content)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var analysis models.EventAnalysis
	if err := json.Unmarshal([]byte(cleaned), &analysis); err != nil {
		return models.EventAnalysis{}, fmt.Errorf("failed to decode analysis verdict: %w", err)
	}
	if analysis.Classification != models.ScenarioIncident && analysis.Classification != models.ScenarioAccident {
		return models.EventAnalysis{}, fmt.Errorf("unexpected classification %q", analysis.Classification)
	}
	return analysis, nil
}

const summarySystemPrompt = "You are a report writing expert. Generate the report strictly from the " +
	"question-and-answer context provided, structured as: 1. Title of the Incident. 2. Descriptive " +
	"Summary (a narrative paragraph with time, location, people involved and actions taken). " +
	"3. Key Findings. 4. Recommendations. 5. Action Taken. Do not add or infer information that is " +
	"not explicitly stated, and do not censor sensitive or violent words."

// Summarize produces the narrative report for a completed conversation. Given
// the same request, the composed model input is deterministic. On failure a
// flagged fallback string is returned.
func (c *Client) Summarize(ctx context.Context, req models.SummaryRequest) string {
	userPrompt := BuildSummaryInput(req)
	content, err := c.complete(ctx, summarySystemPrompt, userPrompt)
	if err != nil {
		slog.Warn("Client.Summarize: summarization failed", "error", err)
		return SummaryFallback
	}
	summary := strings.TrimSpace(content)
	if summary == "" {
		slog.Warn("Client.Summarize: empty completion")
		return SummaryFallback
	}
	slog.Debug("Client.Summarize: summary generated", "length", len(summary))
	return summary
}

// BuildSummaryInput composes the combined description sent to the summarizer,
// keeping the original question order.
func BuildSummaryInput(req models.SummaryRequest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "This is a report about a %s involving resident %s, reported by %s.\n",
		req.ScenarioType, req.ResidentName, req.ReportingPerson)
	if req.EventType != "" {
		fmt.Fprintf(&sb, "Event type: %s.\n", req.EventType)
	}
	if req.EditedNarrative != "" {
		fmt.Fprintf(&sb, "Staff-edited account of the event:\n%s\n", req.EditedNarrative)
		return sb.String()
	}
	for i, qa := range req.Responses {
		fmt.Fprintf(&sb, "%d. %s: %s\n", i+1, qa.Question, qa.Answer)
	}
	return sb.String()
}

// complete issues one chat completion with a system and user message.
func (c *Client) complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.chat.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}
