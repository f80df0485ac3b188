package session

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/azhar-edu/regbot/internal/models"
	"github.com/azhar-edu/regbot/internal/store"
)

// saveRetries is how many times a failed draft write is retried before the
// in-memory copy is left authoritative until the next save.
const saveRetries = 3

// entry pairs a session with its lock and activity projection. The
// per-session lock serializes message handling, trigger evaluation, and
// rating input for one session id.
type entry struct {
	mu       sync.Mutex
	state    *models.SessionState
	activity models.SessionActivity
}

// Manager owns all in-flight sessions. Lookups and creation are guarded by
// the manager mutex; everything touching one session's data goes through
// that session's own lock via WithLock.
type Manager struct {
	store    store.Store
	ttl      time.Duration
	mu       sync.Mutex
	sessions map[string]*entry
}

// NewManager creates a session manager backed by the given store. A zero
// ttl falls back to DefaultTTL.
func NewManager(st store.Store, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		store:    st,
		ttl:      ttl,
		sessions: make(map[string]*entry),
	}
}

// TTL returns the configured session lifetime.
func (m *Manager) TTL() time.Duration { return m.ttl }

// getOrCreateEntry looks up a session entry, re-hydrating from the durable
// draft store on a cache miss. Expired sessions are treated as absent.
func (m *Manager) getOrCreateEntry(sessionID, userID, firstStep string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if e, ok := m.sessions[sessionID]; ok {
		if !e.state.IsExpired(now) {
			return e
		}
		slog.Info("SessionManager.getOrCreateEntry: session expired, discarding", "sessionID", sessionID)
		delete(m.sessions, sessionID)
	}

	// Cache miss: try crash recovery from the durable draft first.
	if draft, err := m.store.GetDraft(sessionID); err != nil {
		slog.Error("SessionManager.getOrCreateEntry: draft lookup failed", "error", err, "sessionID", sessionID)
	} else if draft != nil && !draft.IsExpired(now) {
		slog.Info("SessionManager.getOrCreateEntry: session recovered from draft", "sessionID", sessionID, "phase", draft.Phase)
		e := &entry{state: draft}
		e.activity = buildActivity(draft, now)
		m.sessions[sessionID] = e
		return e
	}

	slog.Debug("SessionManager.getOrCreateEntry: creating new session", "sessionID", sessionID)
	state := New(sessionID, userID, firstStep, m.ttl)
	e := &entry{state: state}
	e.activity = buildActivity(state, now)
	m.sessions[sessionID] = e
	return e
}

func buildActivity(s *models.SessionState, now time.Time) models.SessionActivity {
	return models.SessionActivity{
		SessionID:      s.SessionID,
		UserID:         s.UserID,
		LastActivityAt: now,
		LastMessageAt:  s.UpdatedAt,
		CurrentStep:    s.CurrentStep,
		StepEnteredAt:  now,
	}
}

// WithLock runs fn while holding the per-session lock, creating or
// recovering the session as needed. All session mutation goes through here:
// message handlers, the trigger scanner, and the rating engine never touch
// a session concurrently.
func (m *Manager) WithLock(sessionID, userID, firstStep string, fn func(*models.SessionState) error) error {
	e := m.getOrCreateEntry(sessionID, userID, firstStep)
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.state)
}

// Peek returns a deep copy of the session state, or nil when the session is
// not in flight and has no recoverable draft. The copy is safe to read
// while handlers keep mutating the live session under its lock.
func (m *Manager) Peek(sessionID string) *models.SessionState {
	m.mu.Lock()
	e, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		draft, err := m.store.GetDraft(sessionID)
		if err != nil || draft == nil || draft.IsExpired(time.Now()) {
			return nil
		}
		return draft.Clone()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// Save shadow-writes the session draft to the durable store with a short
// retry backoff. On total failure the in-memory session stays authoritative
// until the next successful save; the conversation is never aborted.
func (m *Manager) Save(s *models.SessionState) error {
	var err error
	for attempt := 0; attempt < saveRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
		}
		if err = m.store.SaveDraft(*s); err == nil {
			slog.Debug("SessionManager.Save: draft persisted", "sessionID", s.SessionID)
			return nil
		}
		slog.Warn("SessionManager.Save: draft write failed, retrying", "error", err, "sessionID", s.SessionID, "attempt", attempt+1)
	}
	slog.Error("SessionManager.Save: draft write failed, continuing from memory", "error", err, "sessionID", s.SessionID)
	return fmt.Errorf("failed to persist draft for %s: %w", s.SessionID, err)
}

// Delete removes a session from memory and deletes its durable draft.
func (m *Manager) Delete(sessionID string) error {
	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()
	if err := m.store.DeleteDraft(sessionID); err != nil {
		return fmt.Errorf("failed to delete draft for %s: %w", sessionID, err)
	}
	slog.Info("SessionManager.Delete: session removed", "sessionID", sessionID)
	return nil
}

// RecordActivity refreshes the session's activity projection after a
// handled message. Step changes reset the step timer; any message clears
// the idle flag.
func (m *Manager) RecordActivity(sessionID string, completion float64) {
	m.mu.Lock()
	e, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now()
	a := &e.activity
	if a.CurrentStep != e.state.CurrentStep {
		a.CurrentStep = e.state.CurrentStep
		a.StepEnteredAt = now
	}
	a.LastActivityAt = now
	a.LastMessageAt = now
	a.CompletionPercent = completion
	a.IsIdle = false
	a.IdleSince = time.Time{}
}

// MarkIdle flags a session as idle from the given time. Called by the
// trigger scanner, never by message handlers.
func (m *Manager) MarkIdle(sessionID string, since time.Time) {
	m.mu.Lock()
	e, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.activity.IsIdle {
		e.activity.IsIdle = true
		e.activity.IdleSince = since
	}
}

// IncrementTriggerCount bumps the session's fired-trigger counter.
func (m *Manager) IncrementTriggerCount(sessionID string) {
	m.mu.Lock()
	e, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.activity.TriggersFired++
}

// Activities returns a snapshot of every tracked session's activity
// projection for the background trigger scan.
func (m *Manager) Activities() []models.SessionActivity {
	m.mu.Lock()
	entries := make([]*entry, 0, len(m.sessions))
	for _, e := range m.sessions {
		entries = append(entries, e)
	}
	m.mu.Unlock()

	out := make([]models.SessionActivity, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.activity)
		e.mu.Unlock()
	}
	return out
}

// SweepExpired drops expired sessions from memory, marking their status.
// Durable drafts are kept; deletion is an administrative action.
func (m *Manager) SweepExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	removed := 0
	for id, e := range m.sessions {
		if e.state.IsExpired(now) {
			e.state.Status = models.SessionStatusExpired
			if err := m.store.SaveDraft(*e.state); err != nil {
				slog.Warn("SessionManager.SweepExpired: final draft write failed", "error", err, "sessionID", id)
			}
			delete(m.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		slog.Info("SessionManager.SweepExpired: expired sessions removed", "count", removed)
	}
	return removed
}
