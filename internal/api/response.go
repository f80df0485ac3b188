package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/azhar-edu/regbot/internal/models"
)

// fallbackErrorBody is served when an envelope fails to marshal, so the
// client always receives valid JSON. Marshaled once at startup; a failure
// here means models.APIResponse itself is broken.
var fallbackErrorBody = mustMarshal(models.Error("Internal server error"))

func mustMarshal(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("api: fallback response does not marshal: %v", err))
	}
	return data
}

// writeJSON marshals before touching the ResponseWriter so an encoding
// failure can still downgrade the status to 500.
func writeJSON(w http.ResponseWriter, statusCode int, envelope interface{}) {
	body, err := json.Marshal(envelope)
	if err != nil {
		slog.Error("Server.writeJSON: failed to marshal response", "error", err)
		body = fallbackErrorBody
		statusCode = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, err := w.Write(body); err != nil {
		slog.Error("Server.writeJSON: failed to write response", "error", err)
	}
}
