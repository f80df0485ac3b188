// Package engine implements the conversation state machine that drives a
// registration from first message to confirmed registration number. It owns
// message dispatch across phases and delegates field semantics to the form
// manager, persistence to the session manager and store, and document
// detection to the classifier.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/azhar-edu/regbot/internal/form"
	"github.com/azhar-edu/regbot/internal/genai"
	"github.com/azhar-edu/regbot/internal/models"
	"github.com/azhar-edu/regbot/internal/session"
	"github.com/azhar-edu/regbot/internal/store"
	"github.com/azhar-edu/regbot/internal/util"
)

// registrationNumberRe matches registration numbers anywhere in a message so
// status lookup stays available in every phase.
var registrationNumberRe = regexp.MustCompile(`AZHAR-\d{4}-[A-Z]{2,3}-[A-Z0-9]{8}`)

// confirmAffirmatives accept the final yes in AWAITING_CONFIRM. Matching is
// substring-based on the lowercased message.
var confirmAffirmatives = []string{"ya saya yakin", "ya yakin", "yakin", "ya", "iya"}

// resetAffirmatives accept the destructive yes in AWAITING_RESET.
var resetAffirmatives = []string{"ya hapus", "ya reset", "hapus"}

// levelCodes maps the collected education level onto the short code embedded
// in registration numbers.
var levelCodes = map[string]string{
	"TK":  "TK",
	"SD":  "SD",
	"SMP": "SMP",
	"SMA": "SMA",
}

// Extractor turns free text into candidate field values. *genai.Client
// satisfies this; the engine falls back to the deterministic extractor when
// it is absent, errors, or returns nothing.
type Extractor interface {
	ExtractFields(ctx context.Context, message string, recentContext []models.ConversationMessage, fields []genai.FieldHint) (map[string]string, error)
}

// DocumentClassifier detects document types for a batch of uploads.
type DocumentClassifier interface {
	ClassifyBatch(ctx context.Context, files []models.FileUpload) ([]models.ClassificationResult, error)
}

// RatingFlow is the in-flight rating conversation the engine may need to
// route replies into or cancel when the user issues a command instead.
type RatingFlow interface {
	Active(sessionID string) bool
	ProcessInput(sessionID, text string) (reply string, done bool, err error)
	Cancel(sessionID string)
}

// Opts holds engine configuration.
type Opts struct {
	Extractor  Extractor
	Classifier DocumentClassifier
	Ratings    RatingFlow
	Year       int              // registration number year; 0 means current year
	Now        func() time.Time // test hook
}

// Option configures the engine.
type Option func(*Opts)

// WithExtractor sets the extraction collaborator.
func WithExtractor(x Extractor) Option { return func(o *Opts) { o.Extractor = x } }

// WithClassifier sets the document classifier.
func WithClassifier(c DocumentClassifier) Option { return func(o *Opts) { o.Classifier = c } }

// WithRatings connects an in-flight rating flow manager.
func WithRatings(r RatingFlow) Option { return func(o *Opts) { o.Ratings = r } }

// WithYear pins the registration number year.
func WithYear(year int) Option { return func(o *Opts) { o.Year = year } }

// WithClock overrides the engine clock.
func WithClock(now func() time.Time) Option { return func(o *Opts) { o.Now = now } }

// Engine is the conversation state machine.
type Engine struct {
	forms      *form.Manager
	sessions   *session.Manager
	store      store.Store
	extractor  Extractor
	classifier DocumentClassifier
	ratings    RatingFlow
	year       int
	now        func() time.Time
}

// NewEngine builds an engine around the form manager, session manager, and
// durable store.
func NewEngine(forms *form.Manager, sessions *session.Manager, st store.Store, options ...Option) *Engine {
	cfg := Opts{Now: time.Now}
	for _, opt := range options {
		opt(&cfg)
	}
	if cfg.Year == 0 {
		cfg.Year = cfg.Now().Year()
	}
	if schema := forms.Schema(); schema.RegistrationYear != 0 {
		cfg.Year = schema.RegistrationYear
	}
	return &Engine{
		forms:      forms,
		sessions:   sessions,
		store:      st,
		extractor:  cfg.Extractor,
		classifier: cfg.Classifier,
		ratings:    cfg.Ratings,
		year:       cfg.Year,
		now:        cfg.Now,
	}
}

// HandleMessage processes one inbound message end to end: it serializes on
// the session, dispatches by phase, persists the draft, and returns the
// result envelope. Persistence failures are logged but never end the
// conversation.
func (e *Engine) HandleMessage(ctx context.Context, req *models.ChatRequest) (*models.ChatResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	slog.Debug("Engine.HandleMessage: dispatching", "sessionID", sessionID, "files", len(req.Files))

	var result *models.ChatResult
	err := e.sessions.WithLock(sessionID, req.UserID, e.forms.FirstStep(), func(s *models.SessionState) error {
		if req.Message != "" {
			session.AddMessage(s, "user", req.Message)
		}
		result = e.dispatch(ctx, s, req)
		session.AddMessage(s, "assistant", result.Reply)
		// Shadow-write; the in-memory session stays authoritative on failure.
		if err := e.sessions.Save(s); err != nil {
			slog.Warn("Engine.HandleMessage: draft not persisted", "error", err, "sessionID", sessionID)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to handle message for %s: %w", sessionID, err)
	}
	e.sessions.RecordActivity(sessionID, result.CompletionPercent)
	return result, nil
}

// dispatch routes one message by phase. Registration number lookup always
// short-circuits, then an open rating flow claims the reply regardless of
// phase (the post-completion prompt arrives while the session sits in
// ask_new_registration); document, confirmation, reset, and post-completion
// phases accept only their own vocabulary; everything else is the
// collecting path.
func (e *Engine) dispatch(ctx context.Context, s *models.SessionState, req *models.ChatRequest) *models.ChatResult {
	if number := extractRegistrationNumber(req.Message); number != "" {
		return e.handleStatusLookup(s, number)
	}

	if e.ratings != nil && e.ratings.Active(s.SessionID) {
		if cmd := e.forms.DetectCommand(req.Message); cmd != form.CommandNone {
			// An explicit command abandons the flow; normal routing resumes.
			e.ratings.Cancel(s.SessionID)
		} else {
			reply, _, err := e.ratings.ProcessInput(s.SessionID, req.Message)
			if err == nil {
				return e.result(s, reply)
			}
			slog.Warn("Engine.dispatch: rating input failed, falling through", "error", err, "sessionID", s.SessionID)
		}
	}

	switch s.Phase {
	case models.PhaseUploadingDocuments:
		return e.handleDocumentPhase(ctx, s, req)
	case models.PhaseAwaitingConfirm:
		return e.handleConfirmReply(s, req.Message)
	case models.PhaseAwaitingReset:
		return e.handleResetReply(s, req.Message)
	case models.PhaseConfirmed, models.PhaseAskNewRegistration:
		return e.handlePostCompletion(s, req.Message)
	}

	if isEditRequest(req.Message) {
		return e.handleEdit(ctx, s, req.Message)
	}
	if cmd := e.forms.DetectCommand(req.Message); cmd != form.CommandNone {
		return e.handleCommand(ctx, s, cmd, req)
	}
	return e.handleDataInput(ctx, s, req.Message)
}

// setPhase applies a phase transition, logging transitions outside the
// documented table. Such a transition indicates a handler bug.
func (e *Engine) setPhase(s *models.SessionState, next models.Phase) {
	if !s.Phase.CanTransition(next) {
		slog.Error("Engine.setPhase: undeclared phase transition", "from", s.Phase, "to", next, "sessionID", s.SessionID)
	}
	s.Phase = next
}

func extractRegistrationNumber(message string) string {
	return registrationNumberRe.FindString(strings.ToUpper(message))
}

func matchesAny(message string, keywords []string) bool {
	lower := strings.ToLower(strings.TrimSpace(message))
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// registrationLevelCode derives the short level code embedded in the
// registration number from the collected education level.
func registrationLevelCode(values map[string]models.FieldValue) string {
	v, ok := values["jenjang_pendidikan"]
	if !ok {
		return "XX"
	}
	if code, ok := levelCodes[strings.ToUpper(strings.TrimSpace(v.String()))]; ok {
		return code
	}
	return "XX"
}

// newRegistrationNumber builds AZHAR-YEAR-LEVEL-XXXXXXXX.
func (e *Engine) newRegistrationNumber(values map[string]models.FieldValue) string {
	return fmt.Sprintf("AZHAR-%d-%s-%s", e.year, registrationLevelCode(values), util.GenerateRegistrationSuffix())
}
