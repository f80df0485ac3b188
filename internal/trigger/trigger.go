// Package trigger evaluates time-based rules against session activity and
// proactively messages users who have gone quiet. Firings are throttled per
// (session, trigger) pair through the durable trigger log.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/azhar-edu/regbot/internal/models"
	"github.com/azhar-edu/regbot/internal/session"
	"github.com/azhar-edu/regbot/internal/store"
	"github.com/azhar-edu/regbot/internal/util"
)

// DefaultIdleMinutes is the threshold past which a session is flagged idle
// regardless of any configured trigger.
const DefaultIdleMinutes = 5

// Sender delivers a proactive message to the user behind a session.
type Sender interface {
	SendMessage(ctx context.Context, sessionID, message string, metadata map[string]string) error
}

// RatingStarter opens a rating conversation so the user's next reply is
// routed into the rating flow instead of the form.
type RatingStarter interface {
	Start(sessionID string, promptType models.RatingPromptType) (string, error)
}

// DefaultTriggers returns the built-in trigger rule set.
func DefaultTriggers() []models.TriggerConfig {
	return []models.TriggerConfig{
		{
			ID:          "tg_idle_reminder",
			Name:        "idle_reminder",
			Type:        models.TriggerIdle,
			IdleMinutes: 5,
			MessageTemplate: "Hai! Sepertinya kamu sedang sibuk. Jangan lupa lanjutkan pendaftaran ya! 😊\n\n" +
				"Kamu sudah mengisi {completion}% data.",
			Priority:        10,
			MaxPerSession:   2,
			CooldownMinutes: 10,
			Active:          true,
		},
		{
			ID:           "tg_document_stuck",
			Name:         "document_stuck",
			Type:         models.TriggerStepStuck,
			StuckStepID:  "dokumen",
			StuckMinutes: 10,
			MessageTemplate: "Butuh bantuan upload dokumen? 📄\n\n" +
				"Kamu bisa upload beberapa file sekaligus lho! Cukup pilih beberapa file dan kirim.",
			Priority:        8,
			MaxPerSession:   1,
			CooldownMinutes: 15,
			Active:          true,
		},
		{
			ID:            "tg_incomplete_reminder",
			Name:          "incomplete_reminder",
			Type:          models.TriggerIncomplete,
			MaxCompletion: 50,
			IdleMinutes:   15,
			MessageTemplate: "Data pendaftaran kamu baru {completion}% lengkap.\n\n" +
				"Yuk selesaikan! Ketik 'lanjut' untuk melanjutkan. 💪",
			Priority:        5,
			MaxPerSession:   1,
			CooldownMinutes: 30,
			Active:          true,
		},
		{
			ID:   "tg_rating_after_complete",
			Name: "rating_after_complete",
			Type: models.TriggerRatingPrompt,
			MessageTemplate: "Terima kasih telah menyelesaikan pendaftaran! 🎉\n\n" +
				"Boleh minta waktu sebentar untuk memberikan rating pengalaman kamu?\n\n" +
				"⭐ Ketik angka 1-5 (5 = sangat puas)",
			Priority:        15,
			MaxPerSession:   1,
			CooldownMinutes: 60,
			Active:          true,
		},
	}
}

// Engine scans session activity and fires at most one trigger per session
// per check. It never mutates session data beyond the activity projection.
type Engine struct {
	triggers []models.TriggerConfig
	sessions *session.Manager
	store    store.Store
	sender   Sender
	ratings  RatingStarter
	idleMin  int
	now      func() time.Time
}

// Option configures a trigger engine.
type Option func(*Engine)

// WithTriggers replaces the default trigger set.
func WithTriggers(triggers []models.TriggerConfig) Option {
	return func(e *Engine) { e.triggers = triggers }
}

// WithRatingStarter wires the rating flow opened by rating_prompt triggers.
func WithRatingStarter(r RatingStarter) Option {
	return func(e *Engine) { e.ratings = r }
}

// WithIdleThreshold overrides the idle-flag threshold in minutes.
func WithIdleThreshold(minutes int) Option {
	return func(e *Engine) { e.idleMin = minutes }
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a trigger engine. Triggers are sorted once by
// descending priority; evaluation order is fixed after construction.
func NewEngine(sessions *session.Manager, st store.Store, sender Sender, opts ...Option) *Engine {
	e := &Engine{
		triggers: DefaultTriggers(),
		sessions: sessions,
		store:    st,
		sender:   sender,
		idleMin:  DefaultIdleMinutes,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	sort.SliceStable(e.triggers, func(i, j int) bool {
		return e.triggers[i].Priority > e.triggers[j].Priority
	})
	return e
}

// CheckAll runs one scan over every tracked session. Returns the number of
// messages fired.
func (e *Engine) CheckAll(ctx context.Context) int {
	fired := 0
	for _, activity := range e.sessions.Activities() {
		if msg, ok := e.CheckSession(ctx, activity); ok {
			fired++
			slog.Debug("TriggerEngine.CheckAll: trigger fired", "sessionID", activity.SessionID, "messageLength", len(msg))
		}
	}
	if fired > 0 {
		slog.Info("TriggerEngine.CheckAll: scan complete", "fired", fired)
	}
	return fired
}

// CheckSession evaluates all triggers for one session and fires the first
// eligible one. Returns the rendered message and whether anything fired.
func (e *Engine) CheckSession(ctx context.Context, activity models.SessionActivity) (string, bool) {
	now := e.now()
	if activity.IdleMinutes(now) >= e.idleMin {
		e.sessions.MarkIdle(activity.SessionID, now)
	}

	for i := range e.triggers {
		trig := &e.triggers[i]
		if !trig.Active {
			continue
		}
		eligible, err := e.eligible(trig, activity.SessionID, now)
		if err != nil {
			slog.Error("TriggerEngine.CheckSession: trigger log lookup failed", "error", err, "sessionID", activity.SessionID, "triggerID", trig.ID)
			continue
		}
		if !eligible || !e.conditionMet(trig, &activity, now) {
			continue
		}
		return e.fire(ctx, trig, &activity, now)
	}
	return "", false
}

// eligible enforces the per-session fire cap and the cooldown window from
// the durable trigger log.
func (e *Engine) eligible(trig *models.TriggerConfig, sessionID string, now time.Time) (bool, error) {
	logs, err := e.store.ListTriggerLogs(sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to list trigger logs for %s: %w", sessionID, err)
	}
	count := 0
	cooldownUntil := time.Time{}
	for _, l := range logs {
		if l.TriggerID != trig.ID {
			continue
		}
		count++
		until := l.FiredAt.Add(time.Duration(trig.CooldownMinutes) * time.Minute)
		if until.After(cooldownUntil) {
			cooldownUntil = until
		}
	}
	if trig.MaxPerSession > 0 && count >= trig.MaxPerSession {
		return false, nil
	}
	if now.Before(cooldownUntil) {
		return false, nil
	}
	return true, nil
}

func (e *Engine) conditionMet(trig *models.TriggerConfig, activity *models.SessionActivity, now time.Time) bool {
	switch trig.Type {
	case models.TriggerIdle:
		threshold := trig.IdleMinutes
		if threshold <= 0 {
			threshold = e.idleMin
		}
		return activity.IdleMinutes(now) >= threshold
	case models.TriggerStepStuck:
		if trig.StuckStepID != "" && activity.CurrentStep != trig.StuckStepID {
			return false
		}
		return activity.StepMinutes(now) >= trig.StuckMinutes
	case models.TriggerIncomplete:
		return activity.CompletionPercent < trig.MaxCompletion &&
			activity.IdleMinutes(now) >= trig.IdleMinutes
	case models.TriggerRatingPrompt:
		return activity.CompletionPercent >= 100
	}
	return false
}

// fire renders and delivers the trigger message, logging the firing for
// cap and cooldown enforcement. rating_prompt triggers additionally open a
// rating flow so the next reply lands in it; a session already rating is
// skipped entirely.
func (e *Engine) fire(ctx context.Context, trig *models.TriggerConfig, activity *models.SessionActivity, now time.Time) (string, bool) {
	if trig.Type == models.TriggerRatingPrompt && e.ratings != nil {
		if _, err := e.ratings.Start(activity.SessionID, models.RatingPromptPostCompletion); err != nil {
			if !errors.Is(err, models.ErrRatingFlowActive) {
				slog.Error("TriggerEngine.fire: failed to open rating flow", "error", err, "sessionID", activity.SessionID)
			}
			return "", false
		}
	}

	message := RenderTemplate(trig.MessageTemplate, activity, now)

	logEntry := models.TriggerLog{
		ID:        util.GenerateTriggerLogID(),
		TriggerID: trig.ID,
		SessionID: activity.SessionID,
		Message:   message,
		FiredAt:   now,
	}
	if err := e.store.AddTriggerLog(logEntry); err != nil {
		slog.Error("TriggerEngine.fire: failed to persist trigger log", "error", err, "sessionID", activity.SessionID, "triggerID", trig.ID)
	}
	e.sessions.IncrementTriggerCount(activity.SessionID)

	if e.sender != nil {
		meta := map[string]string{
			"trigger_type": string(trig.Type),
			"trigger_name": trig.Name,
		}
		if err := e.sender.SendMessage(ctx, activity.SessionID, message, meta); err != nil {
			slog.Error("TriggerEngine.fire: message delivery failed", "error", err, "sessionID", activity.SessionID, "triggerID", trig.ID)
		}
	}

	slog.Info("TriggerEngine.fire: trigger fired", "sessionID", activity.SessionID, "trigger", trig.Name)
	return message, true
}

// RenderTemplate interpolates session placeholders into a message template.
func RenderTemplate(template string, activity *models.SessionActivity, now time.Time) string {
	userID := activity.UserID
	if userID == "" {
		userID = "User"
	}
	step := activity.CurrentStep
	if step == "" {
		step = "langkah saat ini"
	}
	r := strings.NewReplacer(
		"{session_id}", activity.SessionID,
		"{user_id}", userID,
		"{current_step}", step,
		"{completion}", strconv.FormatFloat(activity.CompletionPercent, 'f', 0, 64),
		"{idle_minutes}", strconv.Itoa(activity.IdleMinutes(now)),
	)
	return r.Replace(template)
}
