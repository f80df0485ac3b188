// Package store provides storage backends for the registration engine.
//
// This file implements a PostgreSQL-backed store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/azhar-edu/regbot/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	// Apply options
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	// Determine DSN (required)
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	// Configure connection pool for better performance
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	// Run migrations to ensure tables exist
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run Postgres migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) SaveDraft(session models.SessionState) error {
	payload, err := json.Marshal(session)
	if err != nil {
		slog.Error("PostgresStore SaveDraft marshal failed", "error", err, "sessionID", session.SessionID)
		return fmt.Errorf("failed to marshal session draft: %w", err)
	}
	_, err = s.db.Exec(`INSERT INTO session_drafts (session_id, payload, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (session_id) DO UPDATE SET payload = EXCLUDED.payload, updated_at = NOW()`,
		session.SessionID, payload)
	if err != nil {
		slog.Error("PostgresStore SaveDraft failed", "error", err, "sessionID", session.SessionID)
		return fmt.Errorf("failed to upsert draft for %s: %w", session.SessionID, err)
	}
	slog.Debug("PostgresStore SaveDraft succeeded", "sessionID", session.SessionID)
	return nil
}

func (s *PostgresStore) GetDraft(sessionID string) (*models.SessionState, error) {
	var payload []byte
	err := s.db.QueryRow(`SELECT payload FROM session_drafts WHERE session_id = $1`, sessionID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetDraft query failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to query draft for %s: %w", sessionID, err)
	}
	var session models.SessionState
	if err := json.Unmarshal(payload, &session); err != nil {
		slog.Error("PostgresStore GetDraft unmarshal failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to unmarshal draft for %s: %w", sessionID, err)
	}
	return &session, nil
}

func (s *PostgresStore) DeleteDraft(sessionID string) error {
	_, err := s.db.Exec(`DELETE FROM session_drafts WHERE session_id = $1`, sessionID)
	if err != nil {
		slog.Error("PostgresStore DeleteDraft failed", "error", err, "sessionID", sessionID)
		return fmt.Errorf("failed to delete draft for %s: %w", sessionID, err)
	}
	return nil
}

func (s *PostgresStore) SaveRegistration(reg models.Registration) error {
	payload, err := json.Marshal(reg.Values)
	if err != nil {
		slog.Error("PostgresStore SaveRegistration marshal failed", "error", err, "number", reg.Number)
		return fmt.Errorf("failed to marshal registration values: %w", err)
	}
	_, err = s.db.Exec(`INSERT INTO registrations (number, session_id, payload, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (number) DO UPDATE SET payload = EXCLUDED.payload, status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`,
		reg.Number, reg.SessionID, payload, string(reg.Status), reg.CreatedAt, reg.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveRegistration failed", "error", err, "number", reg.Number)
		return fmt.Errorf("failed to upsert registration %s: %w", reg.Number, err)
	}
	slog.Debug("PostgresStore SaveRegistration succeeded", "number", reg.Number, "sessionID", reg.SessionID)
	return nil
}

func (s *PostgresStore) GetRegistration(number string) (*models.Registration, error) {
	row := s.db.QueryRow(`SELECT number, session_id, payload, status, created_at, updated_at FROM registrations WHERE number = $1`, number)
	reg, err := scanRegistration(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetRegistration failed", "error", err, "number", number)
		return nil, fmt.Errorf("failed to query registration %s: %w", number, err)
	}
	return reg, nil
}

func (s *PostgresStore) SaveDocument(doc models.DocumentRecord) error {
	_, err := s.db.Exec(`INSERT INTO documents (session_id, field_id, batch_id, ord, file_ref, filename, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_id, field_id, batch_id, ord) DO UPDATE SET file_ref = EXCLUDED.file_ref, filename = EXCLUDED.filename, uploaded_at = EXCLUDED.uploaded_at`,
		doc.SessionID, doc.FieldID, doc.BatchID, doc.Order, doc.FileRef, doc.Filename, doc.UploadedAt)
	if err != nil {
		slog.Error("PostgresStore SaveDocument failed", "error", err, "sessionID", doc.SessionID, "fieldID", doc.FieldID)
		return fmt.Errorf("failed to upsert document for %s/%s: %w", doc.SessionID, doc.FieldID, err)
	}
	return nil
}

func (s *PostgresStore) ListDocuments(sessionID string) ([]models.DocumentRecord, error) {
	rows, err := s.db.Query(`SELECT session_id, field_id, batch_id, ord, file_ref, filename, uploaded_at
		FROM documents WHERE session_id = $1 ORDER BY field_id, batch_id, ord`, sessionID)
	if err != nil {
		slog.Error("PostgresStore ListDocuments query failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to query documents for %s: %w", sessionID, err)
	}
	defer rows.Close()
	return collectDocuments(rows)
}

func (s *PostgresStore) AddTriggerLog(log models.TriggerLog) error {
	_, err := s.db.Exec(`INSERT INTO trigger_logs (id, trigger_id, session_id, message, fired_at) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`,
		log.ID, log.TriggerID, log.SessionID, log.Message, log.FiredAt)
	if err != nil {
		slog.Error("PostgresStore AddTriggerLog failed", "error", err, "triggerID", log.TriggerID, "sessionID", log.SessionID)
		return fmt.Errorf("failed to insert trigger log: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListTriggerLogs(sessionID string) ([]models.TriggerLog, error) {
	rows, err := s.db.Query(`SELECT id, trigger_id, session_id, message, fired_at FROM trigger_logs WHERE session_id = $1 ORDER BY fired_at`, sessionID)
	if err != nil {
		slog.Error("PostgresStore ListTriggerLogs query failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to query trigger logs for %s: %w", sessionID, err)
	}
	defer rows.Close()
	return collectTriggerLogs(rows)
}

func (s *PostgresStore) SaveRating(rating models.Rating) error {
	_, err := s.db.Exec(`INSERT INTO ratings (id, session_id, prompt_id, category, score, feedback, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET score = EXCLUDED.score, feedback = EXCLUDED.feedback`,
		rating.ID, rating.SessionID, rating.PromptID, nilIfEmpty(rating.Category), rating.Score, nilIfEmpty(rating.Feedback), rating.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveRating failed", "error", err, "sessionID", rating.SessionID)
		return fmt.Errorf("failed to upsert rating for %s: %w", rating.SessionID, err)
	}
	return nil
}

func (s *PostgresStore) ListRatings(sessionID string) ([]models.Rating, error) {
	rows, err := s.db.Query(`SELECT id, session_id, prompt_id, category, score, feedback, created_at FROM ratings WHERE session_id = $1 ORDER BY created_at`, sessionID)
	if err != nil {
		slog.Error("PostgresStore ListRatings query failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to query ratings for %s: %w", sessionID, err)
	}
	defer rows.Close()
	return collectRatings(rows)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
