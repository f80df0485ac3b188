// Package models defines the session entity and its history structures.
package models

import (
	"strconv"
	"time"
)

// FieldValueKind tags the variant held by a FieldValue.
type FieldValueKind string

const (
	FieldValueText    FieldValueKind = "text"
	FieldValueNumber  FieldValueKind = "number"
	FieldValueDate    FieldValueKind = "date"
	FieldValueBool    FieldValueKind = "bool"
	FieldValueFileRef FieldValueKind = "file_ref"
)

// FieldValue is a typed value union for collected form data, keyed by field
// id in SessionState.Values. Values are built at the boundary where
// extraction output is merged into session state, so a malformed extractor
// response cannot corrupt downstream logic silently.
type FieldValue struct {
	Kind    FieldValueKind `json:"kind"`
	Text    string         `json:"text,omitempty"`
	Number  float64        `json:"number,omitempty"`
	Date    string         `json:"date,omitempty"` // canonical DD/MM/YYYY
	Bool    bool           `json:"bool,omitempty"`
	FileRef string         `json:"file_ref,omitempty"`
}

// TextValue builds a text-kind FieldValue.
func TextValue(s string) FieldValue { return FieldValue{Kind: FieldValueText, Text: s} }

// NumberValue builds a number-kind FieldValue.
func NumberValue(n float64) FieldValue { return FieldValue{Kind: FieldValueNumber, Number: n} }

// DateValue builds a date-kind FieldValue holding a canonical DD/MM/YYYY string.
func DateValue(s string) FieldValue { return FieldValue{Kind: FieldValueDate, Date: s} }

// BoolValue builds a bool-kind FieldValue.
func BoolValue(b bool) FieldValue { return FieldValue{Kind: FieldValueBool, Bool: b} }

// FileRefValue builds a file-reference FieldValue.
func FileRefValue(ref string) FieldValue { return FieldValue{Kind: FieldValueFileRef, FileRef: ref} }

// String renders the value the way it is shown to the user in summaries.
func (v FieldValue) String() string {
	switch v.Kind {
	case FieldValueText:
		return v.Text
	case FieldValueNumber:
		return trimFloat(v.Number)
	case FieldValueDate:
		return v.Date
	case FieldValueBool:
		if v.Bool {
			return "ya"
		}
		return "tidak"
	case FieldValueFileRef:
		return v.FileRef
	default:
		return ""
	}
}

// IsZero reports whether the value is empty for completion purposes.
func (v FieldValue) IsZero() bool {
	switch v.Kind {
	case FieldValueText:
		return v.Text == ""
	case FieldValueDate:
		return v.Date == ""
	case FieldValueFileRef:
		return v.FileRef == ""
	case "":
		return true
	default:
		return false
	}
}

func trimFloat(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ConversationMessage is one turn of the conversation history.
type ConversationMessage struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// EditEntry records a single field mutation for audit and undo context.
type EditEntry struct {
	FieldID   string    `json:"field_id"`
	OldValue  string    `json:"old_value"`
	NewValue  string    `json:"new_value"`
	Action    string    `json:"action"` // "create" or "update"
	Timestamp time.Time `json:"timestamp"`
}

// DocumentUpload records the upload state for one document field. FileCount
// supports multi-file fields such as multiple pages of one document.
type DocumentUpload struct {
	FieldID    string    `json:"field_id"`
	FileRef    string    `json:"file_ref"`
	Filename   string    `json:"filename"`
	BatchID    string    `json:"batch_id,omitempty"`
	FileCount  int       `json:"file_count"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// SessionState is the per-user conversation state. A session is created on
// the first message for an unseen session id, mutated by every handled
// message, and expires after a TTL unless extended. The engine never hard
// deletes sessions; that is an administrative action.
//
// Invariant: Status == completed implies RegistrationNumber != "" and
// Phase == confirmed (or ask_new_registration immediately after).
type SessionState struct {
	SessionID          string                    `json:"session_id"`
	UserID             string                    `json:"user_id,omitempty"`
	CurrentStep        string                    `json:"current_step"`
	Phase              Phase                     `json:"phase"`
	Status             SessionStatus             `json:"status"`
	Values             map[string]FieldValue     `json:"values"`
	ValidationErrors   map[string]string         `json:"validation_errors,omitempty"`
	History            []ConversationMessage     `json:"history,omitempty"`
	EditHistory        []EditEntry               `json:"edit_history,omitempty"`
	Documents          map[string]DocumentUpload `json:"documents,omitempty"`
	DocumentIndex      int                       `json:"document_index"` // position within the documents step
	RegistrationNumber string                    `json:"registration_number,omitempty"`
	CreatedAt          time.Time                 `json:"created_at"`
	UpdatedAt          time.Time                 `json:"updated_at"`
	ExpiresAt          time.Time                 `json:"expires_at"`
}

// IsExpired reports whether the session has passed its TTL.
func (s *SessionState) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Clone returns a deep copy that shares no maps or slices with the
// original. Snapshot readers hold the copy without the session lock, so
// aliased containers would race with concurrent mutation.
func (s *SessionState) Clone() *SessionState {
	dup := *s
	if s.Values != nil {
		dup.Values = make(map[string]FieldValue, len(s.Values))
		for k, v := range s.Values {
			dup.Values[k] = v
		}
	}
	if s.ValidationErrors != nil {
		dup.ValidationErrors = make(map[string]string, len(s.ValidationErrors))
		for k, v := range s.ValidationErrors {
			dup.ValidationErrors[k] = v
		}
	}
	if s.Documents != nil {
		dup.Documents = make(map[string]DocumentUpload, len(s.Documents))
		for k, v := range s.Documents {
			dup.Documents[k] = v
		}
	}
	dup.History = append([]ConversationMessage(nil), s.History...)
	dup.EditHistory = append([]EditEntry(nil), s.EditHistory...)
	return &dup
}

// SessionActivity is a lightweight projection of SessionState maintained for
// time-based trigger evaluation. It is updated on every message and read by
// the background trigger checker.
type SessionActivity struct {
	SessionID         string    `json:"session_id"`
	UserID            string    `json:"user_id,omitempty"`
	LastActivityAt    time.Time `json:"last_activity_at"`
	LastMessageAt     time.Time `json:"last_message_at"`
	CurrentStep       string    `json:"current_step"`
	StepEnteredAt     time.Time `json:"step_entered_at"`
	CompletionPercent float64   `json:"completion_percent"`
	IsIdle            bool      `json:"is_idle"`
	IdleSince         time.Time `json:"idle_since,omitempty"`
	TriggersFired     int       `json:"triggers_fired"`
}

// IdleMinutes returns the whole minutes elapsed since the last activity.
func (a *SessionActivity) IdleMinutes(now time.Time) int {
	if a.LastActivityAt.IsZero() {
		return 0
	}
	return int(now.Sub(a.LastActivityAt).Minutes())
}

// StepMinutes returns the whole minutes the session has spent on its current step.
func (a *SessionActivity) StepMinutes(now time.Time) int {
	if a.StepEnteredAt.IsZero() {
		return 0
	}
	return int(now.Sub(a.StepEnteredAt).Minutes())
}
