// Package store provides storage backends for CareVoice conversation records.
//
// This file implements the PostgreSQL-backed store for shared deployments.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	_ "embed"

	_ "github.com/lib/pq"

	"github.com/Majidul17068/carevoice/internal/models"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists conversation snapshots in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store with the given DSN.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run Postgres migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

// SaveConversation inserts the snapshot; if the conversation already exists,
// only the summary fields are updated.
func (s *PostgresStore) SaveConversation(snap models.Snapshot) error {
	messages, err := json.Marshal(snap.Messages)
	if err != nil {
		return fmt.Errorf("failed to encode messages for %s: %w", snap.ID, err)
	}
	_, err = s.db.Exec(`
		INSERT INTO conversations (id, scenario_type, resident_id, resident_name, reporting_agent_id, reporting_agent, event_type, messages, summary, summary_edited, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET summary = EXCLUDED.summary, summary_edited = EXCLUDED.summary_edited, updated_at = EXCLUDED.updated_at`,
		snap.ID, snap.ScenarioType, snap.ResidentID, snap.ResidentName, snap.ReportingAgentID,
		snap.ReportingAgent, snap.EventType, string(messages), snap.Summary, snap.SummaryEdited,
		snap.CreatedAt, snap.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveConversation failed", "error", err, "id", snap.ID)
		return fmt.Errorf("failed to save conversation %s: %w", snap.ID, err)
	}
	slog.Debug("PostgresStore SaveConversation succeeded", "id", snap.ID)
	return nil
}

// UpdateSummary replaces the stored summary for an existing conversation.
func (s *PostgresStore) UpdateSummary(id, summary string, edited bool) error {
	res, err := s.db.Exec(`UPDATE conversations SET summary = $1, summary_edited = $2, updated_at = NOW() WHERE id = $3`,
		summary, edited, id)
	if err != nil {
		slog.Error("PostgresStore UpdateSummary failed", "error", err, "id", id)
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
func (s *PostgresStore) GetConversation(id string) (*models.Snapshot, error) {
	row := s.db.QueryRow(`
		SELECT id, scenario_type, resident_id, resident_name, reporting_agent_id, reporting_agent, event_type, messages, summary, summary_edited, created_at, updated_at
		FROM conversations WHERE id = $1`, id)

	var snap models.Snapshot
	var messages string
	err := row.Scan(&snap.ID, &snap.ScenarioType, &snap.ResidentID, &snap.ResidentName,
		&snap.ReportingAgentID, &snap.ReportingAgent, &snap.EventType, &messages,
		&snap.Summary, &snap.SummaryEdited, &snap.CreatedAt, &snap.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, models.ErrConversationNotFound
	}
	if err != nil {
		slog.Error("PostgresStore GetConversation scan failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to load conversation %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(messages), &snap.Messages); err != nil {
		return nil, fmt.Errorf("failed to decode messages for %s: %w", id, err)
	}
	return &snap, nil
}

// Close closes the underlying database handle.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
