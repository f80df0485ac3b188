// Package rating implements the two-step rating conversation: a 1-5 score
// followed by optional free-text feedback. Flow state is transient and held
// in memory; completed ratings are persisted through the store.
package rating

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/azhar-edu/regbot/internal/models"
	"github.com/azhar-edu/regbot/internal/store"
	"github.com/azhar-edu/regbot/internal/util"
)

// skipKeywords end the feedback step without capturing text.
var skipKeywords = map[string]bool{
	"skip":   true,
	"lewati": true,
	"tidak":  true,
	"no":     true,
	"-":      true,
}

var ratingEmojis = map[int]string{
	1: "😞",
	2: "😕",
	3: "😐",
	4: "🙂",
	5: "😄",
}

var ratingLabels = map[int]string{
	1: "Sangat Tidak Puas",
	2: "Tidak Puas",
	3: "Cukup",
	4: "Puas",
	5: "Sangat Puas",
}

// scoreWords maps rating vocabulary to scores. Longer phrases come first
// so "sangat tidak puas" resolves before "tidak puas" and that before
// "puas"; matching scans in order and takes the first hit.
var scoreWords = []struct {
	word  string
	score int
}{
	{"sangat tidak puas", 1},
	{"sangat buruk", 1},
	{"tidak puas", 2},
	{"sangat bagus", 5},
	{"sangat puas", 5},
	{"satu", 1},
	{"one", 1},
	{"dua", 2},
	{"two", 2},
	{"tiga", 3},
	{"three", 3},
	{"empat", 4},
	{"four", 4},
	{"lima", 5},
	{"five", 5},
	{"buruk", 1},
	{"kurang", 2},
	{"cukup", 3},
	{"biasa", 3},
	{"bagus", 4},
	{"puas", 4},
	{"excellent", 5},
}

const (
	retryReply      = "Mohon masukkan angka 1-5 untuk rating."
	skipThankYou    = "Terima kasih atas rating-nya! 🙏"
	defaultCategory = "overall"
)

// DefaultPrompts returns the built-in rating prompt set.
func DefaultPrompts() []models.RatingPrompt {
	return []models.RatingPrompt{
		{
			ID:   "rp_post_completion",
			Type: models.RatingPromptPostCompletion,
			Question: "🌟 **Bagaimana pengalaman kamu?**\n\n" +
				"Berikan rating untuk pelayanan chatbot pendaftaran kami:\n\n" +
				"⭐ 1 - Sangat Tidak Puas\n" +
				"⭐⭐ 2 - Tidak Puas\n" +
				"⭐⭐⭐ 3 - Cukup\n" +
				"⭐⭐⭐⭐ 4 - Puas\n" +
				"⭐⭐⭐⭐⭐ 5 - Sangat Puas\n\n" +
				"Ketik angka 1-5 untuk memberikan rating.",
			FollowUp: "Terima kasih atas rating-nya! Ada saran atau masukan lain? (Ketik 'skip' untuk lewati)",
			ThankYou: "Terima kasih atas feedback-nya! Masukan kamu sangat berharga bagi kami. 🙏",
			Category: defaultCategory,
			Active:   true,
		},
		{
			ID:   "rp_abandonment",
			Type: models.RatingPromptAbandonment,
			Question: "Sepertinya kamu akan pergi. Boleh berikan rating sebelum pergi?\n\n" +
				"Ketik angka 1-5:\n" +
				"1️⃣ Buruk | 2️⃣ Kurang | 3️⃣ Cukup | 4️⃣ Bagus | 5️⃣ Sangat Bagus",
			FollowUp: "Terima kasih! Ada saran atau masukan lain? (Ketik 'skip' untuk lewati)",
			ThankYou: "Terima kasih! 🙏",
			Category: defaultCategory,
			Active:   true,
		},
	}
}

type flow struct {
	ctx    models.RatingFlowContext
	prompt models.RatingPrompt
}

// Manager owns every in-flight rating conversation.
type Manager struct {
	store   store.Store
	prompts []models.RatingPrompt
	now     func() time.Time

	mu    sync.Mutex
	flows map[string]*flow
}

// Option configures a Manager.
type Option func(*Manager)

// WithPrompts replaces the default prompt set.
func WithPrompts(prompts []models.RatingPrompt) Option {
	return func(m *Manager) { m.prompts = prompts }
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a rating manager backed by the given store.
func NewManager(st store.Store, opts ...Option) *Manager {
	m := &Manager{
		store:   st,
		prompts: DefaultPrompts(),
		now:     time.Now,
		flows:   make(map[string]*flow),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start opens a rating flow for the session and returns the prompt question.
// A session with an unfinished flow keeps it; the second start is refused.
func (m *Manager) Start(sessionID string, promptType models.RatingPromptType) (string, error) {
	if sessionID == "" {
		return "", models.ErrEmptySessionID
	}
	var prompt *models.RatingPrompt
	for i := range m.prompts {
		if m.prompts[i].Type == promptType && m.prompts[i].Active {
			prompt = &m.prompts[i]
			break
		}
	}
	if prompt == nil {
		return "", fmt.Errorf("no active rating prompt of type %q", promptType)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.flows[sessionID]; ok {
		return "", models.ErrRatingFlowActive
	}
	m.flows[sessionID] = &flow{
		ctx: models.RatingFlowContext{
			SessionID: sessionID,
			PromptID:  prompt.ID,
			State:     models.RatingStateAwaitingRating,
			StartedAt: m.now(),
		},
		prompt: *prompt,
	}
	slog.Info("RatingManager.Start: rating flow opened", "sessionID", sessionID, "promptID", prompt.ID)
	return prompt.Question, nil
}

// Active reports whether the session has a rating flow in progress.
func (m *Manager) Active(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.flows[sessionID]
	return ok
}

// State returns the flow state for the session, or empty when none exists.
func (m *Manager) State(sessionID string) models.RatingState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.flows[sessionID]; ok {
		return f.ctx.State
	}
	return ""
}

// ProcessInput routes one user reply into the session's rating flow. The
// returned done flag is true once the rating has been persisted and the
// flow discarded.
func (m *Manager) ProcessInput(sessionID, text string) (string, bool, error) {
	m.mu.Lock()
	f, ok := m.flows[sessionID]
	if !ok {
		m.mu.Unlock()
		return "", false, models.ErrNoRatingFlow
	}

	input := strings.ToLower(strings.TrimSpace(text))

	switch f.ctx.State {
	case models.RatingStateAwaitingRating:
		score, ok := ParseScore(input)
		if !ok {
			m.mu.Unlock()
			return retryReply, false, nil
		}
		f.ctx.Rating = score
		f.ctx.State = models.RatingStateAwaitingFeedback
		reply := fmt.Sprintf("%s Rating: %d/5 (%s)\n\n%s",
			ratingEmojis[score], score, ratingLabels[score], f.prompt.FollowUp)
		m.mu.Unlock()
		return reply, false, nil

	case models.RatingStateAwaitingFeedback:
		feedback := ""
		if !skipKeywords[input] {
			feedback = strings.TrimSpace(text)
		}
		rec := models.Rating{
			ID:        util.GenerateRatingID(),
			SessionID: sessionID,
			PromptID:  f.ctx.PromptID,
			Category:  f.prompt.Category,
			Score:     f.ctx.Rating,
			Feedback:  feedback,
			CreatedAt: m.now(),
		}
		delete(m.flows, sessionID)
		m.mu.Unlock()

		if err := m.store.SaveRating(rec); err != nil {
			slog.Error("RatingManager.ProcessInput: failed to persist rating", "error", err, "sessionID", sessionID, "ratingID", rec.ID)
		} else {
			slog.Info("RatingManager.ProcessInput: rating recorded", "sessionID", sessionID, "score", rec.Score, "hasFeedback", feedback != "")
		}

		if feedback != "" {
			return f.prompt.ThankYou, true, nil
		}
		return skipThankYou, true, nil
	}

	m.mu.Unlock()
	return "", false, fmt.Errorf("rating flow for %s in unknown state %q", sessionID, f.ctx.State)
}

// Cancel discards the session's rating flow without persisting anything.
func (m *Manager) Cancel(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.flows[sessionID]; ok {
		delete(m.flows, sessionID)
		slog.Info("RatingManager.Cancel: rating flow discarded", "sessionID", sessionID)
	}
}

// Submit records a rating directly, bypassing the conversational flow.
func (m *Manager) Submit(sessionID string, score int, feedback string) (models.Rating, error) {
	if sessionID == "" {
		return models.Rating{}, models.ErrEmptySessionID
	}
	if score < 1 || score > 5 {
		return models.Rating{}, fmt.Errorf("rating must be between 1 and 5, got %d", score)
	}
	rec := models.Rating{
		ID:        util.GenerateRatingID(),
		SessionID: sessionID,
		Category:  defaultCategory,
		Score:     score,
		Feedback:  strings.TrimSpace(feedback),
		CreatedAt: m.now(),
	}
	if err := m.store.SaveRating(rec); err != nil {
		return models.Rating{}, fmt.Errorf("failed to save rating for %s: %w", sessionID, err)
	}
	return rec, nil
}

// ParseScore extracts a 1-5 score from free-form input: a bare digit, a
// known Indonesian or English rating word, or a run of star glyphs.
func ParseScore(input string) (int, bool) {
	input = strings.ToLower(strings.TrimSpace(input))
	if input == "" {
		return 0, false
	}

	if n, err := strconv.Atoi(input); err == nil {
		if n >= 1 && n <= 5 {
			return n, true
		}
		return 0, false
	}

	for _, sw := range scoreWords {
		if strings.Contains(input, sw.word) {
			return sw.score, true
		}
	}

	stars := strings.Count(input, "⭐")
	if stars == 0 {
		stars = strings.Count(input, "*")
	}
	if stars >= 1 && stars <= 5 {
		return stars, true
	}
	return 0, false
}
