// Package session implements the per-user conversation session: its
// lifecycle, history bookkeeping, and the manager that serializes access
// per session id and shadow-writes every mutation to the durable store.
package session

import (
	"time"

	"github.com/azhar-edu/regbot/internal/models"
)

// DefaultTTL is how long a session stays alive without explicit extension.
const DefaultTTL = 24 * time.Hour

// New creates a fresh session positioned at the given first step.
func New(sessionID, userID, firstStep string, ttl time.Duration) *models.SessionState {
	now := time.Now()
	return &models.SessionState{
		SessionID:   sessionID,
		UserID:      userID,
		CurrentStep: firstStep,
		Phase:       models.PhaseCollecting,
		Status:      models.SessionStatusActive,
		Values:      make(map[string]models.FieldValue),
		Documents:   make(map[string]models.DocumentUpload),
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
}

// SetField writes a field value and records the mutation in the edit
// history. It returns "create" for a first write and "update" when an
// existing value changed; unchanged writes return "" and record nothing.
func SetField(s *models.SessionState, fieldID string, value models.FieldValue) string {
	if s.Values == nil {
		s.Values = make(map[string]models.FieldValue)
	}
	old, existed := s.Values[fieldID]
	if existed && old == value {
		return ""
	}

	action := "create"
	oldStr := ""
	if existed && !old.IsZero() {
		action = "update"
		oldStr = old.String()
	}

	s.Values[fieldID] = value
	delete(s.ValidationErrors, fieldID)
	s.EditHistory = append(s.EditHistory, models.EditEntry{
		FieldID:   fieldID,
		OldValue:  oldStr,
		NewValue:  value.String(),
		Action:    action,
		Timestamp: time.Now(),
	})
	if len(s.EditHistory) > models.MaxHistoryEntries {
		s.EditHistory = s.EditHistory[len(s.EditHistory)-models.MaxHistoryEntries:]
	}
	s.UpdatedAt = time.Now()
	return action
}

// SetValidationError records a user-facing validation message for a field.
func SetValidationError(s *models.SessionState, fieldID, message string) {
	if s.ValidationErrors == nil {
		s.ValidationErrors = make(map[string]string)
	}
	s.ValidationErrors[fieldID] = message
}

// AddMessage appends one conversation turn, trimming the history to the
// most recent entries so long-lived sessions stay bounded.
func AddMessage(s *models.SessionState, role, content string) {
	s.History = append(s.History, models.ConversationMessage{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	})
	if len(s.History) > models.MaxHistoryEntries {
		s.History = s.History[len(s.History)-models.MaxHistoryEntries:]
	}
	s.UpdatedAt = time.Now()
}

// RecentHistory returns up to n most recent conversation turns.
func RecentHistory(s *models.SessionState, n int) []models.ConversationMessage {
	if len(s.History) <= n {
		return s.History
	}
	return s.History[len(s.History)-n:]
}

// SetDocument records an upload for a document field, incrementing the
// per-field file count on repeat uploads, and mirrors the reference into
// the field value map so completion math sees the document.
func SetDocument(s *models.SessionState, fieldID, fileRef, filename, batchID string) models.DocumentUpload {
	if s.Documents == nil {
		s.Documents = make(map[string]models.DocumentUpload)
	}
	doc, existed := s.Documents[fieldID]
	if !existed {
		doc = models.DocumentUpload{FieldID: fieldID}
	}
	doc.FileRef = fileRef
	doc.Filename = filename
	doc.BatchID = batchID
	doc.FileCount++
	doc.UploadedAt = time.Now()
	s.Documents[fieldID] = doc

	SetField(s, fieldID, models.FileRefValue(fileRef))
	return doc
}

// ResetData clears collected values, validation errors, and uploaded
// documents, returning the session to the first step of collection.
// History and identity are preserved.
func ResetData(s *models.SessionState, firstStep string) {
	s.Values = make(map[string]models.FieldValue)
	s.ValidationErrors = nil
	s.Documents = make(map[string]models.DocumentUpload)
	s.CurrentStep = firstStep
	s.DocumentIndex = 0
	s.Phase = models.PhaseCollecting
	s.Status = models.SessionStatusActive
	s.RegistrationNumber = ""
	s.UpdatedAt = time.Now()
}

// Extend pushes the session's expiry forward by the TTL.
func Extend(s *models.SessionState, ttl time.Duration) {
	s.ExpiresAt = time.Now().Add(ttl)
}
