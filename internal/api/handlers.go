package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/azhar-edu/regbot/internal/models"
)

// chatHandler handles POST /chat, the single inbound message endpoint.
func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.chatHandler: processing chat request", "method", r.Method)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.chatHandler: failed to decode JSON", "error", err)
		writeJSON(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	result, err := s.engine.HandleMessage(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrEmptyMessage),
			errors.Is(err, models.ErrMessageTooLong),
			errors.Is(err, models.ErrTooManyFiles):
			writeJSON(w, http.StatusBadRequest, models.Error(err.Error()))
		default:
			slog.Error("Server.chatHandler: engine failure", "error", err, "sessionID", req.SessionID)
			writeJSON(w, http.StatusInternalServerError, models.Error("Failed to handle message"))
		}
		return
	}

	slog.Info("Server.chatHandler: message handled", "sessionID", result.SessionID, "phase", result.Phase)
	writeJSON(w, http.StatusOK, models.Success(result))
}

// registrationsHandler handles GET /registrations/{number}.
func (s *Server) registrationsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeJSON(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}

	number := strings.Trim(strings.TrimPrefix(r.URL.Path, "/registrations/"), "/")
	if number == "" || strings.Contains(number, "/") {
		writeJSON(w, http.StatusBadRequest, models.Error("Registration number required"))
		return
	}
	number = strings.ToUpper(strings.TrimSpace(number))

	reg, err := s.store.GetRegistration(number)
	if err != nil {
		slog.Error("Server.registrationsHandler: lookup failed", "error", err, "number", number)
		writeJSON(w, http.StatusInternalServerError, models.Error("Failed to look up registration"))
		return
	}
	if reg == nil {
		writeJSON(w, http.StatusNotFound, models.Error("Registration not found"))
		return
	}

	writeJSON(w, http.StatusOK, models.Success(map[string]interface{}{
		"number":       reg.Number,
		"status":       reg.Status,
		"status_label": models.RegistrationStatusLabels[reg.Status],
		"created_at":   reg.CreatedAt,
	}))
}

// sessionsHandler routes /sessions/{id} and /sessions/{id}/rating.
func (s *Server) sessionsHandler(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/sessions/"), "/")
	segments := strings.Split(path, "/")
	if len(segments) == 0 || segments[0] == "" {
		writeJSON(w, http.StatusBadRequest, models.Error("Session id required"))
		return
	}
	sessionID := segments[0]

	if len(segments) == 1 {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			writeJSON(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
			return
		}
		s.getSessionHandler(w, r, sessionID)
		return
	}

	if len(segments) == 2 && segments[1] == "rating" {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeJSON(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
			return
		}
		s.startRatingHandler(w, r, sessionID)
		return
	}

	writeJSON(w, http.StatusNotFound, models.Error("Unknown session endpoint"))
}

// getSessionHandler handles GET /sessions/{id}.
func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request, sessionID string) {
	slog.Debug("Server.getSessionHandler: snapshot requested", "sessionID", sessionID)

	state := s.sessions.Peek(sessionID)
	if state == nil {
		writeJSON(w, http.StatusNotFound, models.Error("Session not found"))
		return
	}

	writeJSON(w, http.StatusOK, models.Success(map[string]interface{}{
		"session_id":          state.SessionID,
		"phase":               state.Phase,
		"status":              state.Status,
		"current_step":        state.CurrentStep,
		"completion_percent":  s.forms.CalculateCompletion(state.Values),
		"registration_number": state.RegistrationNumber,
		"updated_at":          state.UpdatedAt,
	}))
}

// startRatingRequest is the body of POST /sessions/{id}/rating.
type startRatingRequest struct {
	PromptType models.RatingPromptType `json:"prompt_type,omitempty"`
}

// startRatingHandler handles POST /sessions/{id}/rating.
func (s *Server) startRatingHandler(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Body != nil {
		defer r.Body.Close()
	}

	// An empty body means the default prompt type.
	var req startRatingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.PromptType == "" {
		req.PromptType = models.RatingPromptPostCompletion
	}

	question, err := s.ratings.Start(sessionID, req.PromptType)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrRatingFlowActive):
			writeJSON(w, http.StatusConflict, models.Error("A rating flow is already active for this session"))
		case errors.Is(err, models.ErrEmptySessionID):
			writeJSON(w, http.StatusBadRequest, models.Error(err.Error()))
		default:
			writeJSON(w, http.StatusBadRequest, models.Error(err.Error()))
		}
		return
	}

	slog.Info("Server.startRatingHandler: rating flow opened", "sessionID", sessionID, "promptType", req.PromptType)
	writeJSON(w, http.StatusOK, models.Success(map[string]interface{}{
		"session_id": sessionID,
		"question":   question,
	}))
}

// healthHandler provides a health check endpoint for monitoring and load balancing.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
