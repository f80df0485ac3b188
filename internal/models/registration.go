// Package models defines persisted registration entities.
package models

import "time"

// Registration is a confirmed registration persisted durably, keyed by its
// registration number. Upserts are idempotent.
type Registration struct {
	Number    string                `json:"number"`
	SessionID string                `json:"session_id"`
	Values    map[string]FieldValue `json:"values"`
	Status    RegistrationStatus    `json:"status"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// DocumentRecord is the durable metadata row for one uploaded file, keyed by
// (session id, field, batch, order) so re-applied uploads stay idempotent.
type DocumentRecord struct {
	SessionID  string    `json:"session_id"`
	FieldID    string    `json:"field_id"`
	BatchID    string    `json:"batch_id"`
	Order      int       `json:"order"`
	FileRef    string    `json:"file_ref"`
	Filename   string    `json:"filename"`
	UploadedAt time.Time `json:"uploaded_at"`
}
