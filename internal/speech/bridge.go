package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// DefaultBridgeTimeout bounds each HTTP call to the transcript bridge.
const DefaultBridgeTimeout = 5 * time.Second

// BridgeOpts holds configuration options for the transcript bridge engine.
type BridgeOpts struct {
	BaseURL string
	Timeout time.Duration
}

// BridgeOption defines a configuration option for the bridge engine.
type BridgeOption func(*BridgeOpts)

// WithBaseURL sets the transcript bridge base URL.
func WithBaseURL(u string) BridgeOption {
	return func(o *BridgeOpts) { o.BaseURL = u }
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) BridgeOption {
	return func(o *BridgeOpts) { o.Timeout = d }
}

// BridgeEngine implements Engine against a voice transcript bridge service:
// the process that owns the microphone and speaker (for example an Azure
// speech SDK sidecar) and exposes the recognized text over HTTP.
//
// The bridge pushes recognized fragments into a per-conversation buffer; this
// engine polls that buffer. All access to the locally cached transcript is
// guarded by a single lock shared between the fetch goroutine and Transcript
// readers.
type BridgeEngine struct {
	baseURL        string
	client         *http.Client
	conversationID string

	mu         sync.Mutex
	transcript string
	listening  bool
	stopPoll   chan struct{}
}

type bridgeTextResponse struct {
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text"`
}

// NewBridgeEngine creates a transcript bridge engine for one conversation.
func NewBridgeEngine(conversationID string, options ...BridgeOption) (*BridgeEngine, error) {
	var cfg BridgeOpts
	for _, opt := range options {
		opt(&cfg)
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("transcript bridge base URL not set")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultBridgeTimeout
	}
	slog.Debug("speech.NewBridgeEngine: bridge engine created", "baseURL", cfg.BaseURL, "conversationID", conversationID)
	return &BridgeEngine{
		baseURL:        cfg.BaseURL,
		client:         &http.Client{Timeout: cfg.Timeout},
		conversationID: conversationID,
	}, nil
}

// StartListening resets the bridge's per-conversation buffer and begins
// mirroring it into the local transcript.
func (b *BridgeEngine) StartListening(ctx context.Context) error {
	b.mu.Lock()
	if b.listening {
		b.mu.Unlock()
		return nil
	}
	b.transcript = ""
	b.listening = true
	stop := make(chan struct{})
	b.stopPoll = stop
	b.mu.Unlock()

	if err := b.get(ctx, "/reset-user-text/"); err != nil {
		slog.Warn("BridgeEngine.StartListening: transcript reset failed", "error", err, "conversationID", b.conversationID)
	}

	go b.mirror(ctx, stop)
	return nil
}

// mirror polls the bridge for newly recognized text until stopped.
func (b *BridgeEngine) mirror(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(DefaultPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		text, err := b.fetchText(ctx)
		if err != nil {
			slog.Warn("BridgeEngine.mirror: transcript fetch failed", "error", err, "conversationID", b.conversationID)
			continue
		}
		b.mu.Lock()
		if b.listening && text != "" {
			b.transcript = text
		}
		b.mu.Unlock()
	}
}

// StopListening stops mirroring. The accumulated transcript remains readable.
func (b *BridgeEngine) StopListening() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.listening {
		return nil
	}
	b.listening = false
	close(b.stopPoll)
	b.stopPoll = nil
	return nil
}

// Transcript returns the text recognized since the last StartListening.
func (b *BridgeEngine) Transcript() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.transcript
}

// Speak asks the bridge to synthesize text and blocks until the bridge reports
// playback has finished.
func (b *BridgeEngine) Speak(ctx context.Context, text string) error {
	payload, err := json.Marshal(map[string]string{
		"conversation_id": b.conversationID,
		"text":            text,
	})
	if err != nil {
		return fmt.Errorf("failed to encode speak payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/speak/", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build speak request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("speak request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("speak request returned status %d", resp.StatusCode)
	}

	// The bridge reports is_speaking until playback completes; wait it out so
	// the capture that follows does not hear the prompt itself.
	return b.waitForPlayback(ctx)
}

func (b *BridgeEngine) waitForPlayback(ctx context.Context) error {
	ticker := time.NewTicker(DefaultPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		speaking, err := b.fetchIsSpeaking(ctx)
		if err != nil {
			slog.Warn("BridgeEngine.waitForPlayback: speaking status fetch failed", "error", err)
			return nil
		}
		if !speaking {
			return nil
		}
	}
}

func (b *BridgeEngine) fetchText(ctx context.Context) (string, error) {
	body, err := b.getBody(ctx, "/get-user-text/")
	if err != nil {
		return "", err
	}
	var parsed bridgeTextResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode transcript response: %w", err)
	}
	return parsed.Text, nil
}

func (b *BridgeEngine) fetchIsSpeaking(ctx context.Context) (bool, error) {
	body, err := b.getBody(ctx, "/get-is-speaking/")
	if err != nil {
		return false, err
	}
	var parsed struct {
		ConversationID string `json:"conversation_id"`
		IsSpeaking     bool   `json:"is_speaking"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return false, fmt.Errorf("failed to decode speaking status: %w", err)
	}
	return parsed.IsSpeaking, nil
}

func (b *BridgeEngine) get(ctx context.Context, path string) error {
	_, err := b.getBody(ctx, path)
	return err
}

func (b *BridgeEngine) getBody(ctx context.Context, path string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s%s?conversation_id=%s", b.baseURL, path, url.QueryEscape(b.conversationID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build bridge request: %w", err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bridge request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bridge returned status %d for %s", resp.StatusCode, path)
	}
	return io.ReadAll(resp.Body)
}
