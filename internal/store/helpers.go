// Package store provides shared scanning helpers for the SQL backends.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/azhar-edu/regbot/internal/models"
)

// nilIfEmpty returns nil for empty strings so optional columns store NULL
// instead of empty text.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// rowScanner abstracts sql.Row and sql.Rows for shared scan helpers.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanRegistration scans one registration row, decoding the JSON payload
// into the typed value map.
func scanRegistration(row rowScanner) (*models.Registration, error) {
	var reg models.Registration
	var payload, status string
	if err := row.Scan(&reg.Number, &reg.SessionID, &payload, &status, &reg.CreatedAt, &reg.UpdatedAt); err != nil {
		return nil, err
	}
	reg.Status = models.RegistrationStatus(status)
	if err := json.Unmarshal([]byte(payload), &reg.Values); err != nil {
		return nil, fmt.Errorf("failed to unmarshal registration payload: %w", err)
	}
	return &reg, nil
}

func collectDocuments(rows *sql.Rows) ([]models.DocumentRecord, error) {
	var out []models.DocumentRecord
	for rows.Next() {
		var d models.DocumentRecord
		if err := rows.Scan(&d.SessionID, &d.FieldID, &d.BatchID, &d.Order, &d.FileRef, &d.Filename, &d.UploadedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document row: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate document rows: %w", err)
	}
	return out, nil
}

func collectTriggerLogs(rows *sql.Rows) ([]models.TriggerLog, error) {
	var out []models.TriggerLog
	for rows.Next() {
		var l models.TriggerLog
		if err := rows.Scan(&l.ID, &l.TriggerID, &l.SessionID, &l.Message, &l.FiredAt); err != nil {
			return nil, fmt.Errorf("failed to scan trigger log row: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate trigger log rows: %w", err)
	}
	return out, nil
}

func collectRatings(rows *sql.Rows) ([]models.Rating, error) {
	var out []models.Rating
	for rows.Next() {
		var r models.Rating
		var category, feedback sql.NullString
		if err := rows.Scan(&r.ID, &r.SessionID, &r.PromptID, &category, &r.Score, &feedback, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rating row: %w", err)
		}
		r.Category = category.String
		r.Feedback = feedback.String
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rating rows: %w", err)
	}
	return out, nil
}
