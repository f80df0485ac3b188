// Package store provides storage backends for the registration engine.
//
// This file implements an SQLite-backed store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/azhar-edu/regbot/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	// Apply options
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	// Determine DSN (required)
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	// Ensure the directory exists
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	slog.Debug("SQLite database directory verified/created", "dir", dir)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	// Run migrations to ensure tables exist
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) SaveDraft(session models.SessionState) error {
	payload, err := json.Marshal(session)
	if err != nil {
		slog.Error("SQLiteStore SaveDraft marshal failed", "error", err, "sessionID", session.SessionID)
		return fmt.Errorf("failed to marshal session draft: %w", err)
	}
	_, err = s.db.Exec(`INSERT INTO session_drafts (session_id, payload, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(session_id) DO UPDATE SET payload = excluded.payload, updated_at = CURRENT_TIMESTAMP`,
		session.SessionID, string(payload))
	if err != nil {
		slog.Error("SQLiteStore SaveDraft failed", "error", err, "sessionID", session.SessionID)
		return fmt.Errorf("failed to upsert draft for %s: %w", session.SessionID, err)
	}
	slog.Debug("SQLiteStore SaveDraft succeeded", "sessionID", session.SessionID)
	return nil
}

func (s *SQLiteStore) GetDraft(sessionID string) (*models.SessionState, error) {
	var payload string
	err := s.db.QueryRow(`SELECT payload FROM session_drafts WHERE session_id = ?`, sessionID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetDraft query failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to query draft for %s: %w", sessionID, err)
	}
	var session models.SessionState
	if err := json.Unmarshal([]byte(payload), &session); err != nil {
		slog.Error("SQLiteStore GetDraft unmarshal failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to unmarshal draft for %s: %w", sessionID, err)
	}
	slog.Debug("SQLiteStore GetDraft succeeded", "sessionID", sessionID)
	return &session, nil
}

func (s *SQLiteStore) DeleteDraft(sessionID string) error {
	_, err := s.db.Exec(`DELETE FROM session_drafts WHERE session_id = ?`, sessionID)
	if err != nil {
		slog.Error("SQLiteStore DeleteDraft failed", "error", err, "sessionID", sessionID)
		return fmt.Errorf("failed to delete draft for %s: %w", sessionID, err)
	}
	return nil
}

func (s *SQLiteStore) SaveRegistration(reg models.Registration) error {
	payload, err := json.Marshal(reg.Values)
	if err != nil {
		slog.Error("SQLiteStore SaveRegistration marshal failed", "error", err, "number", reg.Number)
		return fmt.Errorf("failed to marshal registration values: %w", err)
	}
	_, err = s.db.Exec(`INSERT INTO registrations (number, session_id, payload, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(number) DO UPDATE SET payload = excluded.payload, status = excluded.status, updated_at = excluded.updated_at`,
		reg.Number, reg.SessionID, string(payload), string(reg.Status), reg.CreatedAt, reg.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveRegistration failed", "error", err, "number", reg.Number)
		return fmt.Errorf("failed to upsert registration %s: %w", reg.Number, err)
	}
	slog.Debug("SQLiteStore SaveRegistration succeeded", "number", reg.Number, "sessionID", reg.SessionID)
	return nil
}

func (s *SQLiteStore) GetRegistration(number string) (*models.Registration, error) {
	row := s.db.QueryRow(`SELECT number, session_id, payload, status, created_at, updated_at FROM registrations WHERE number = ?`, number)
	reg, err := scanRegistration(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetRegistration failed", "error", err, "number", number)
		return nil, fmt.Errorf("failed to query registration %s: %w", number, err)
	}
	return reg, nil
}

func (s *SQLiteStore) SaveDocument(doc models.DocumentRecord) error {
	_, err := s.db.Exec(`INSERT INTO documents (session_id, field_id, batch_id, ord, file_ref, filename, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, field_id, batch_id, ord) DO UPDATE SET file_ref = excluded.file_ref, filename = excluded.filename, uploaded_at = excluded.uploaded_at`,
		doc.SessionID, doc.FieldID, doc.BatchID, doc.Order, doc.FileRef, doc.Filename, doc.UploadedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveDocument failed", "error", err, "sessionID", doc.SessionID, "fieldID", doc.FieldID)
		return fmt.Errorf("failed to upsert document for %s/%s: %w", doc.SessionID, doc.FieldID, err)
	}
	slog.Debug("SQLiteStore SaveDocument succeeded", "sessionID", doc.SessionID, "fieldID", doc.FieldID, "batchID", doc.BatchID)
	return nil
}

func (s *SQLiteStore) ListDocuments(sessionID string) ([]models.DocumentRecord, error) {
	rows, err := s.db.Query(`SELECT session_id, field_id, batch_id, ord, file_ref, filename, uploaded_at
		FROM documents WHERE session_id = ? ORDER BY field_id, batch_id, ord`, sessionID)
	if err != nil {
		slog.Error("SQLiteStore ListDocuments query failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to query documents for %s: %w", sessionID, err)
	}
	defer rows.Close()
	return collectDocuments(rows)
}

func (s *SQLiteStore) AddTriggerLog(log models.TriggerLog) error {
	_, err := s.db.Exec(`INSERT INTO trigger_logs (id, trigger_id, session_id, message, fired_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		log.ID, log.TriggerID, log.SessionID, log.Message, log.FiredAt)
	if err != nil {
		slog.Error("SQLiteStore AddTriggerLog failed", "error", err, "triggerID", log.TriggerID, "sessionID", log.SessionID)
		return fmt.Errorf("failed to insert trigger log: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListTriggerLogs(sessionID string) ([]models.TriggerLog, error) {
	rows, err := s.db.Query(`SELECT id, trigger_id, session_id, message, fired_at FROM trigger_logs WHERE session_id = ? ORDER BY fired_at`, sessionID)
	if err != nil {
		slog.Error("SQLiteStore ListTriggerLogs query failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to query trigger logs for %s: %w", sessionID, err)
	}
	defer rows.Close()
	return collectTriggerLogs(rows)
}

func (s *SQLiteStore) SaveRating(rating models.Rating) error {
	_, err := s.db.Exec(`INSERT INTO ratings (id, session_id, prompt_id, category, score, feedback, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET score = excluded.score, feedback = excluded.feedback`,
		rating.ID, rating.SessionID, rating.PromptID, nilIfEmpty(rating.Category), rating.Score, nilIfEmpty(rating.Feedback), rating.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveRating failed", "error", err, "sessionID", rating.SessionID)
		return fmt.Errorf("failed to upsert rating for %s: %w", rating.SessionID, err)
	}
	slog.Debug("SQLiteStore SaveRating succeeded", "sessionID", rating.SessionID, "score", rating.Score)
	return nil
}

func (s *SQLiteStore) ListRatings(sessionID string) ([]models.Rating, error) {
	rows, err := s.db.Query(`SELECT id, session_id, prompt_id, category, score, feedback, created_at FROM ratings WHERE session_id = ? ORDER BY created_at`, sessionID)
	if err != nil {
		slog.Error("SQLiteStore ListRatings query failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to query ratings for %s: %w", sessionID, err)
	}
	defer rows.Close()
	return collectRatings(rows)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
