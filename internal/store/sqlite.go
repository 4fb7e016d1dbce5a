// Package store provides storage backends for CareVoice conversation records.
//
// This file implements the SQLite-backed store, the default backend.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Majidul17068/carevoice/internal/models"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists conversation snapshots in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN (a file path).
// The containing directory is created if it does not exist.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(cfg.DSN)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run SQLite migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// SaveConversation inserts the snapshot; if the conversation already exists,
// only the summary fields are updated.
func (s *SQLiteStore) SaveConversation(snap models.Snapshot) error {
	messages, err := json.Marshal(snap.Messages)
	if err != nil {
		return fmt.Errorf("failed to encode messages for %s: %w", snap.ID, err)
	}
	_, err = s.db.Exec(`
		INSERT INTO conversations (id, scenario_type, resident_id, resident_name, reporting_agent_id, reporting_agent, event_type, messages, summary, summary_edited, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET summary = excluded.summary, summary_edited = excluded.summary_edited, updated_at = excluded.updated_at`,
		snap.ID, snap.ScenarioType, snap.ResidentID, snap.ResidentName, snap.ReportingAgentID,
		snap.ReportingAgent, snap.EventType, string(messages), snap.Summary, snap.SummaryEdited,
		snap.CreatedAt, snap.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveConversation failed", "error", err, "id", snap.ID)
		return fmt.Errorf("failed to save conversation %s: %w", snap.ID, err)
	}
	slog.Debug("SQLiteStore SaveConversation succeeded", "id", snap.ID)
	return nil
}

// UpdateSummary replaces the stored summary for an existing conversation.
func (s *SQLiteStore) UpdateSummary(id, summary string, edited bool) error {
	res, err := s.db.Exec(`UPDATE conversations SET summary = ?, summary_edited = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		summary, edited, id)
	if err != nil {
		slog.Error("SQLiteStore UpdateSummary failed", "error", err, "id", id)
		return fmt.Errorf("failed to update summary for %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check summary update for %s: %w", id, err)
	}
	if affected == 0 {
		return models.ErrConversationNotFound
	}
	return nil
}

// GetConversation retrieves a saved snapshot by id.
func (s *SQLiteStore) GetConversation(id string) (*models.Snapshot, error) {
	row := s.db.QueryRow(`
		SELECT id, scenario_type, resident_id, resident_name, reporting_agent_id, reporting_agent, event_type, messages, summary, summary_edited, created_at, updated_at
		FROM conversations WHERE id = ?`, id)

	var snap models.Snapshot
	var messages string
	err := row.Scan(&snap.ID, &snap.ScenarioType, &snap.ResidentID, &snap.ResidentName,
		&snap.ReportingAgentID, &snap.ReportingAgent, &snap.EventType, &messages,
		&snap.Summary, &snap.SummaryEdited, &snap.CreatedAt, &snap.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, models.ErrConversationNotFound
	}
	if err != nil {
		slog.Error("SQLiteStore GetConversation scan failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to load conversation %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(messages), &snap.Messages); err != nil {
		return nil, fmt.Errorf("failed to decode messages for %s: %w", id, err)
	}
	return &snap, nil
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
