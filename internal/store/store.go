// Package store provides storage backends for CareVoice conversation records.
//
// It includes an in-memory store for tests and development, plus SQLite and
// PostgreSQL backends behind the same interface. Saves follow upsert
// semantics: the first save inserts the full snapshot; subsequent saves after
// a summary edit update only the summary fields.
package store

import (
	"log/slog"
	"sync"

	"github.com/Majidul17068/carevoice/internal/models"
)

// Store is the persistence collaborator contract for conversation snapshots.
type Store interface {
	// SaveConversation inserts the snapshot, or updates only the summary
	// fields when the conversation was already saved.
	SaveConversation(snap models.Snapshot) error

	// UpdateSummary replaces the stored summary for an existing conversation.
	UpdateSummary(id, summary string, edited bool) error

	// GetConversation retrieves a saved snapshot, or ErrConversationNotFound.
	GetConversation(id string) (*models.Snapshot, error)

	// Close releases any underlying resources.
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithDSN sets the database DSN (file path for SQLite, URL for Postgres).
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// InMemoryStore is a mutex-guarded in-memory store.
type InMemoryStore struct {
	mu    sync.RWMutex
	snaps map[string]models.Snapshot
	saves int
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{snaps: make(map[string]models.Snapshot)}
}

// SaveConversation inserts or, for an existing id, updates summary fields only.
func (s *InMemoryStore) SaveConversation(snap models.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if existing, ok := s.snaps[snap.ID]; ok {
		existing.Summary = snap.Summary
		existing.SummaryEdited = snap.SummaryEdited
		existing.UpdatedAt = snap.UpdatedAt
		s.snaps[snap.ID] = existing
		slog.Debug("InMemoryStore.SaveConversation: summary updated", "id", snap.ID)
		return nil
	}
	s.snaps[snap.ID] = snap
	slog.Debug("InMemoryStore.SaveConversation: inserted", "id", snap.ID)
	return nil
}

// UpdateSummary replaces the summary of a stored conversation.
func (s *InMemoryStore) UpdateSummary(id, summary string, edited bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snaps[id]
	if !ok {
		return models.ErrConversationNotFound
	}
	snap.Summary = summary
	snap.SummaryEdited = edited
	s.snaps[id] = snap
	return nil
}

// GetConversation retrieves a stored snapshot by id.
func (s *InMemoryStore) GetConversation(id string) (*models.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snaps[id]
	if !ok {
		return nil, models.ErrConversationNotFound
	}
	out := snap
	return &out, nil
}

// SaveCount returns how many SaveConversation calls were made. Test aid.
func (s *InMemoryStore) SaveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }
