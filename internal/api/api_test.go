package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azhar-edu/regbot/internal/classifier"
	"github.com/azhar-edu/regbot/internal/engine"
	"github.com/azhar-edu/regbot/internal/form"
	"github.com/azhar-edu/regbot/internal/models"
	"github.com/azhar-edu/regbot/internal/rating"
	"github.com/azhar-edu/regbot/internal/session"
	"github.com/azhar-edu/regbot/internal/store"
)

func newTestServer(t *testing.T) (*Server, *store.InMemoryStore) {
	t.Helper()
	st := store.NewInMemoryStore()
	forms := form.NewManager(form.DefaultSchema())
	sessions := session.NewManager(st, time.Hour)
	ratings := rating.NewManager(st)
	eng := engine.NewEngine(forms, sessions, st,
		engine.WithYear(2025),
		engine.WithClassifier(classifier.NewClassifier(nil)),
		engine.WithRatings(ratings),
	)
	return NewServer(eng, forms, sessions, ratings, st, Opts{Addr: ":0"}), st
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, models.APIResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var envelope models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("response is not valid JSON: %v (%s)", err, rec.Body.String())
	}
	return rec, envelope
}

func TestChatEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()

	rec, envelope := doJSON(t, handler, http.MethodPost, "/chat", map[string]string{
		"session_id": "s1",
		"message":    "halo",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "ok", envelope.Status)

	result, ok := envelope.Result.(map[string]interface{})
	require.True(t, ok, "result must be an object")
	assert.Equal(t, "s1", result["session_id"])
	assert.NotEmpty(t, result["reply"])
	assert.Equal(t, string(models.PhaseCollecting), result["phase"])
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	srv, _ := newTestServer(t)
	rec, envelope := doJSON(t, srv.Handler(), http.MethodPost, "/chat", map[string]string{
		"session_id": "s1",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "error", envelope.Status)
}

func TestChatRejectsInvalidJSON(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)
	rec, _ := doJSON(t, srv.Handler(), http.MethodGet, "/chat", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRegistrationLookup(t *testing.T) {
	srv, st := newTestServer(t)
	require.NoError(t, st.SaveRegistration(models.Registration{
		Number:    "AZHAR-2025-SD-AB12CD34",
		SessionID: "s1",
		Status:    models.RegistrationStatusSubmitted,
		CreatedAt: time.Now(),
	}))

	// Lookup is case-insensitive on the number.
	rec, envelope := doJSON(t, srv.Handler(), http.MethodGet, "/registrations/azhar-2025-sd-ab12cd34", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	result := envelope.Result.(map[string]interface{})
	assert.Equal(t, "AZHAR-2025-SD-AB12CD34", result["number"])
	assert.Equal(t, "Terdaftar - menunggu verifikasi", result["status_label"])

	rec, envelope = doJSON(t, srv.Handler(), http.MethodGet, "/registrations/AZHAR-2025-SD-ZZZZZZZZ", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "error", envelope.Status)
}

func TestRegistrationNumberRequired(t *testing.T) {
	srv, _ := newTestServer(t)
	rec, _ := doJSON(t, srv.Handler(), http.MethodGet, "/registrations/", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionSnapshot(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()

	rec, _ := doJSON(t, handler, http.MethodPost, "/chat", map[string]string{
		"session_id": "s1",
		"message":    "halo",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, envelope := doJSON(t, handler, http.MethodGet, "/sessions/s1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	result := envelope.Result.(map[string]interface{})
	assert.Equal(t, "s1", result["session_id"])
	assert.Equal(t, string(models.PhaseCollecting), result["phase"])
	assert.Equal(t, "data_siswa", result["current_step"])

	rec, _ = doJSON(t, handler, http.MethodGet, "/sessions/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartRatingFlow(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()

	rec, envelope := doJSON(t, handler, http.MethodPost, "/sessions/s1/rating", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := envelope.Result.(map[string]interface{})
	assert.Contains(t, result["question"], "Bagaimana pengalaman kamu?")

	// Second start without completing the first is refused.
	rec, envelope = doJSON(t, handler, http.MethodPost, "/sessions/s1/rating", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "error", envelope.Status)
}

func TestUnknownSessionEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	rec, _ := doJSON(t, srv.Handler(), http.MethodGet, "/sessions/s1/documents/extra", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}
