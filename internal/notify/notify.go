// Package notify delivers manager notifications for completed reports.
//
// Delivery is fire-and-forget from the dialogue engine's perspective:
// failures are logged by callers, never raised into the flow.
package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/Majidul17068/carevoice/internal/models"
)

// Notifier is a pluggable notification delivery abstraction.
type Notifier interface {
	// Notify sends the report notification to every recipient. Implementations
	// are idempotent per call; callers may invoke Notify more than once across
	// an edit round-trip.
	Notify(ctx context.Context, recipients []string, fields models.NotificationFields) error
}

// RenderBody formats the shared notification text used by all backends.
func RenderBody(fields models.NotificationFields) string {
	return fmt.Sprintf(
		"Care home %s report for resident %s (event type: %s), reported by %s.\n\nReference: %s\n\n%s",
		fields.ScenarioType, fields.ResidentName, fields.EventType,
		fields.ReportingPerson, fields.ConversationID, fields.Summary)
}

// MockNotifier records notifications for tests.
type MockNotifier struct {
	mu    sync.Mutex
	Calls []MockCall
	Err   error // returned by Notify when set
}

// MockCall is one recorded Notify invocation.
type MockCall struct {
	Recipients []string
	Fields     models.NotificationFields
}

// NewMockNotifier creates an empty recording notifier.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

// Notify records the call and returns the configured error, if any.
func (m *MockNotifier) Notify(ctx context.Context, recipients []string, fields models.NotificationFields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, MockCall{Recipients: append([]string(nil), recipients...), Fields: fields})
	return m.Err
}

// CallCount returns how many notifications were recorded.
func (m *MockNotifier) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
