package flow

import (
	"log/slog"
	"sync"
	"time"

	"github.com/Majidul17068/carevoice/internal/models"
)

// Registry holds the active conversations for one hosting process, keyed by
// conversation id. It is an explicit object owned by the hosting application,
// passed by reference to the dialogue engine; concurrent creation and removal
// are guarded by its own lock. Each conversation belongs to exactly one
// active session, so no cross-session locking is needed beyond this map.
type Registry struct {
	mu            sync.RWMutex
	conversations map[string]*models.Conversation
}

// NewRegistry creates an empty conversation registry.
func NewRegistry() *Registry {
	return &Registry{conversations: make(map[string]*models.Conversation)}
}

// Create starts a new empty conversation and registers it.
func (r *Registry) Create(residentID, residentName, reportingPersonID, reportingPerson string) *models.Conversation {
	conv := models.NewConversation(residentID, residentName, reportingPersonID, reportingPerson)
	r.mu.Lock()
	r.conversations[conv.ID] = conv
	r.mu.Unlock()
	slog.Debug("Registry.Create: conversation registered", "id", conv.ID, "resident", residentName)
	return conv
}

// Get retrieves a registered conversation. An unknown id is a caller error
// and is surfaced immediately as ErrConversationNotFound.
func (r *Registry) Get(id string) (*models.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conv, ok := r.conversations[id]
	if !ok {
		return nil, models.ErrConversationNotFound
	}
	return conv, nil
}

// Remove unregisters a conversation. The conversation object itself remains
// valid for inspection by holders of the pointer.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.conversations, id)
	r.mu.Unlock()
	slog.Debug("Registry.Remove: conversation unregistered", "id", id)
}

// SweepTerminal removes finished conversations whose last activity is older
// than the retention window and returns how many were removed. Finished
// sessions stay registered for the post-session edit window; the store keeps
// their snapshots permanently.
func (r *Registry) SweepTerminal(retention time.Duration) int {
	cutoff := time.Now().UTC().Add(-retention)
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, conv := range r.conversations {
		if !conv.SweepEligible(cutoff) {
			continue
		}
		delete(r.conversations, id)
		removed++
	}
	if removed > 0 {
		slog.Info("Registry.SweepTerminal: finished conversations removed", "removed", removed, "retention", retention)
	}
	return removed
}

// Len returns the number of registered conversations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conversations)
}
