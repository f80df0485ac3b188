// Package models defines phase and status enumerations for the conversation lifecycle.
package models

// Phase represents the conversation's position in the registration lifecycle.
// It is distinct from the form step, which is a position within the
// data-collection schema.
type Phase string

const (
	// PhaseCollecting is the default phase: free-form data collection.
	PhaseCollecting Phase = "collecting"
	// PhaseUploadingDocuments routes every message to the document upload handler.
	PhaseUploadingDocuments Phase = "uploading_documents"
	// PhasePreConfirm means all steps are done and a summary has been shown.
	PhasePreConfirm Phase = "pre_confirm"
	// PhaseAwaitingConfirm waits for an explicit yes/no after a confirm command.
	PhaseAwaitingConfirm Phase = "awaiting_confirm"
	// PhaseAwaitingReset waits for an explicit yes/no after a reset command.
	PhaseAwaitingReset Phase = "awaiting_reset"
	// PhaseConfirmed means a registration number has been issued.
	PhaseConfirmed Phase = "confirmed"
	// PhaseAskNewRegistration offers a completed session a fresh registration.
	PhaseAskNewRegistration Phase = "ask_new_registration"
)

// phaseTransitions enumerates the legal phase moves. Transitions not listed
// here indicate a handler bug, not a user error.
var phaseTransitions = map[Phase][]Phase{
	PhaseCollecting:         {PhaseCollecting, PhaseUploadingDocuments, PhasePreConfirm, PhaseAwaitingConfirm, PhaseAwaitingReset},
	PhaseUploadingDocuments: {PhaseUploadingDocuments, PhasePreConfirm, PhaseCollecting},
	PhasePreConfirm:         {PhasePreConfirm, PhaseCollecting, PhaseAwaitingConfirm, PhaseAwaitingReset},
	PhaseAwaitingConfirm:    {PhaseConfirmed, PhaseCollecting},
	PhaseAwaitingReset:      {PhaseCollecting},
	PhaseConfirmed:          {PhaseAskNewRegistration},
	PhaseAskNewRegistration: {PhaseAskNewRegistration, PhaseCollecting},
}

// CanTransition reports whether moving from p to next is a legal phase change.
func (p Phase) CanTransition(next Phase) bool {
	for _, allowed := range phaseTransitions[p] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsValidPhase checks if the given phase is a known lifecycle phase.
func IsValidPhase(p Phase) bool {
	switch p {
	case PhaseCollecting, PhaseUploadingDocuments, PhasePreConfirm,
		PhaseAwaitingConfirm, PhaseAwaitingReset, PhaseConfirmed, PhaseAskNewRegistration:
		return true
	default:
		return false
	}
}

// SessionStatus represents the administrative status of a session.
type SessionStatus string

const (
	// SessionStatusActive indicates an in-flight conversation.
	SessionStatusActive SessionStatus = "active"
	// SessionStatusCompleted indicates a confirmed registration.
	SessionStatusCompleted SessionStatus = "completed"
	// SessionStatusExpired indicates the session passed its TTL.
	SessionStatusExpired SessionStatus = "expired"
	// SessionStatusAbandoned indicates the session was marked abandoned externally.
	SessionStatusAbandoned SessionStatus = "abandoned"
)

// RegistrationStatus represents the review status of a confirmed registration.
type RegistrationStatus string

const (
	RegistrationStatusSubmitted RegistrationStatus = "submitted"
	RegistrationStatusReview    RegistrationStatus = "review"
	RegistrationStatusAccepted  RegistrationStatus = "accepted"
	RegistrationStatusRejected  RegistrationStatus = "rejected"
)

// RegistrationStatusLabels maps registration statuses to user-facing
// Indonesian labels used in status-lookup replies.
var RegistrationStatusLabels = map[RegistrationStatus]string{
	RegistrationStatusSubmitted: "Terdaftar - menunggu verifikasi",
	RegistrationStatusReview:    "Sedang diverifikasi",
	RegistrationStatusAccepted:  "Diterima",
	RegistrationStatusRejected:  "Ditolak",
}
