// Package models defines the inbound message contract and result envelope.
package models

// FileUpload carries one uploaded file alongside a message.
type FileUpload struct {
	Name string `json:"name"`
	Data []byte `json:"data"`
}

// ChatRequest is the inbound message contract consumed by the conversation
// engine. SessionID may be empty, in which case a new session is created.
type ChatRequest struct {
	SessionID string       `json:"session_id,omitempty"`
	UserID    string       `json:"user_id,omitempty"`
	Message   string       `json:"message"`
	Files     []FileUpload `json:"files,omitempty"`
}

// Validate performs basic validation on a ChatRequest.
func (r *ChatRequest) Validate() error {
	if r.Message == "" && len(r.Files) == 0 {
		return ErrEmptyMessage
	}
	if len(r.Message) > MaxMessageLength {
		return ErrMessageTooLong
	}
	if len(r.Files) > MaxBatchFiles {
		return ErrTooManyFiles
	}
	return nil
}

// StepSummary describes one schema step for the client.
type StepSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon,omitempty"`
}

// StepInfo reports the session's position within the schema.
type StepInfo struct {
	Current    string        `json:"current"`
	TotalSteps int           `json:"total_steps"`
	Steps      []StepSummary `json:"steps"`
}

// DocumentStatusEntry reports upload state for one document field.
type DocumentStatusEntry struct {
	FieldID     string `json:"field_id"`
	Label       string `json:"label"`
	IsMandatory bool   `json:"is_mandatory"`
	IsUploaded  bool   `json:"is_uploaded"`
	FileCount   int    `json:"file_count"`
}

// DocumentsStatus aggregates upload state across all document fields.
type DocumentsStatus struct {
	Total     int                   `json:"total"`
	Mandatory int                   `json:"mandatory"`
	Uploaded  int                   `json:"uploaded"`
	Documents []DocumentStatusEntry `json:"documents"`
}

// ChatResult is the engine's reply envelope for one handled message.
type ChatResult struct {
	SessionID          string          `json:"session_id"`
	Reply              string          `json:"reply"`
	CurrentStep        string          `json:"current_step"`
	Phase              Phase           `json:"phase"`
	CompletionPercent  float64         `json:"completion_percent"`
	CanAdvance         bool            `json:"can_advance"`
	CanConfirm         bool            `json:"can_confirm"`
	CanGoBack          bool            `json:"can_go_back"`
	IsComplete         bool            `json:"is_complete"`
	RegistrationNumber string          `json:"registration_number,omitempty"`
	RegistrationStatus string          `json:"registration_status,omitempty"`
	StepInfo           StepInfo        `json:"step_info"`
	DocumentsStatus    DocumentsStatus `json:"documents_status"`
}
