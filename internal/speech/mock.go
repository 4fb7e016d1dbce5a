package speech

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MockUtterance is one scripted fragment the mock engine will "recognize"
// after the given delay from StartListening.
type MockUtterance struct {
	Delay time.Duration
	Text  string
}

// MockEngine is a scriptable in-memory speech engine for tests and dry runs.
// Each StartListening consumes the next scripted capture; an exhausted script
// yields silence.
type MockEngine struct {
	mu         sync.Mutex
	script     [][]MockUtterance
	captureIdx int
	startedAt  time.Time
	listening  bool
	Spoken     []string // every Speak call, in order
}

// NewMockEngine creates a mock engine with no scripted speech.
func NewMockEngine() *MockEngine {
	return &MockEngine{}
}

// QueueCapture appends one scripted capture: the utterances heard during one
// StartListening/StopListening cycle.
func (m *MockEngine) QueueCapture(utterances ...MockUtterance) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, utterances)
}

// QueueAnswer is shorthand for a capture that hears one immediate utterance.
func (m *MockEngine) QueueAnswer(text string) {
	m.QueueCapture(MockUtterance{Delay: 0, Text: text})
}

// QueueSilence appends a capture during which nothing is heard.
func (m *MockEngine) QueueSilence() {
	m.QueueCapture()
}

// StartListening arms the next scripted capture.
func (m *MockEngine) StartListening(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startedAt = time.Now()
	m.listening = true
	return nil
}

// StopListening ends the current capture and advances the script.
func (m *MockEngine) StopListening() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listening {
		m.listening = false
		m.captureIdx++
	}
	return nil
}

// Transcript returns the scripted fragments whose delays have elapsed.
func (m *MockEngine) Transcript() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.listening || m.captureIdx >= len(m.script) {
		return ""
	}
	elapsed := time.Since(m.startedAt)
	var parts []string
	for _, u := range m.script[m.captureIdx] {
		if elapsed >= u.Delay {
			parts = append(parts, u.Text)
		}
	}
	return strings.Join(parts, " ")
}

// Speak records the text; playback is instantaneous.
func (m *MockEngine) Speak(ctx context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Spoken = append(m.Spoken, text)
	return nil
}
