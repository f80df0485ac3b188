package trigger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azhar-edu/regbot/internal/models"
	"github.com/azhar-edu/regbot/internal/session"
	"github.com/azhar-edu/regbot/internal/store"
)

type sentMessage struct {
	sessionID string
	message   string
	metadata  map[string]string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (f *fakeSender) SendMessage(_ context.Context, sessionID, message string, metadata map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{sessionID, message, metadata})
	return f.err
}

type fakeStarter struct {
	calls []string
	err   error
}

func (f *fakeStarter) Start(sessionID string, _ models.RatingPromptType) (string, error) {
	f.calls = append(f.calls, sessionID)
	return "prompt", f.err
}

// testClock lets a test move time forward between checks.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newSession(t *testing.T, sessions *session.Manager, sessionID string, completion float64) {
	t.Helper()
	err := sessions.WithLock(sessionID, "", "data_siswa", func(*models.SessionState) error { return nil })
	require.NoError(t, err)
	sessions.RecordActivity(sessionID, completion)
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *session.Manager, *store.InMemoryStore, *fakeSender, *testClock) {
	t.Helper()
	st := store.NewInMemoryStore()
	sessions := session.NewManager(st, time.Hour)
	sender := &fakeSender{}
	clock := &testClock{now: time.Now()}
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return NewEngine(sessions, st, sender, opts...), sessions, st, sender, clock
}

func TestNoTriggerWhileRecentlyActive(t *testing.T) {
	eng, sessions, _, sender, clock := newTestEngine(t)
	newSession(t, sessions, "s1", 30)

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 0, eng.CheckAll(context.Background()))
	assert.Empty(t, sender.sent)
}

func TestIdleReminderFiresWithCompletion(t *testing.T) {
	eng, sessions, st, sender, clock := newTestEngine(t)
	newSession(t, sessions, "s1", 30)

	clock.Advance(7 * time.Minute)
	msg, fired := eng.CheckSession(context.Background(), sessions.Activities()[0])
	require.True(t, fired)
	assert.Contains(t, msg, "mengisi 30% data")

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "s1", sender.sent[0].sessionID)
	assert.Equal(t, "idle", sender.sent[0].metadata["trigger_type"])
	assert.Equal(t, "idle_reminder", sender.sent[0].metadata["trigger_name"])

	logs, err := st.ListTriggerLogs("s1")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "tg_idle_reminder", logs[0].TriggerID)
	assert.NotEmpty(t, logs[0].ID)
}

func TestCooldownBlocksRefire(t *testing.T) {
	eng, sessions, _, sender, clock := newTestEngine(t)
	newSession(t, sessions, "s1", 30)

	clock.Advance(7 * time.Minute)
	require.Equal(t, 1, eng.CheckAll(context.Background()))

	// Within the 10 minute cooldown nothing new fires.
	clock.Advance(5 * time.Minute)
	assert.Equal(t, 0, eng.CheckAll(context.Background()))
	assert.Len(t, sender.sent, 1)
}

func TestMaxFiresPerSessionNeverExceeded(t *testing.T) {
	eng, sessions, _, sender, clock := newTestEngine(t, WithTriggers([]models.TriggerConfig{
		{
			ID:              "tg_idle_reminder",
			Name:            "idle_reminder",
			Type:            models.TriggerIdle,
			IdleMinutes:     5,
			MessageTemplate: "Masih di sana? Sudah {completion}% terisi.",
			Priority:        10,
			MaxPerSession:   2,
			CooldownMinutes: 10,
			Active:          true,
		},
	}))
	newSession(t, sessions, "s1", 30)

	clock.Advance(7 * time.Minute)
	require.Equal(t, 1, eng.CheckAll(context.Background()))

	clock.Advance(15 * time.Minute)
	require.Equal(t, 1, eng.CheckAll(context.Background()))

	// Cap reached. No third fire no matter how long the session idles.
	for i := 0; i < 5; i++ {
		clock.Advance(time.Hour)
		assert.Equal(t, 0, eng.CheckAll(context.Background()))
	}
	assert.Len(t, sender.sent, 2)
}

func TestInactiveTriggerNeverFires(t *testing.T) {
	eng, sessions, _, sender, clock := newTestEngine(t, WithTriggers([]models.TriggerConfig{
		{
			ID:              "tg_idle_reminder",
			Name:            "idle_reminder",
			Type:            models.TriggerIdle,
			IdleMinutes:     5,
			MessageTemplate: "halo",
			MaxPerSession:   5,
			CooldownMinutes: 1,
			Active:          false,
		},
	}))
	newSession(t, sessions, "s1", 10)

	clock.Advance(time.Hour)
	assert.Equal(t, 0, eng.CheckAll(context.Background()))
	assert.Empty(t, sender.sent)
}

func TestStepStuckRequiresMatchingStep(t *testing.T) {
	stuck := models.TriggerConfig{
		ID:              "tg_document_stuck",
		Name:            "document_stuck",
		Type:            models.TriggerStepStuck,
		StuckStepID:     "dokumen",
		StuckMinutes:    10,
		MessageTemplate: "Butuh bantuan upload dokumen?",
		Priority:        8,
		MaxPerSession:   1,
		CooldownMinutes: 15,
		Active:          true,
	}
	eng, _, _, sender, clock := newTestEngine(t, WithTriggers([]models.TriggerConfig{stuck}))

	base := clock.Now()
	activity := models.SessionActivity{
		SessionID:      "s1",
		CurrentStep:    "data_siswa",
		StepEnteredAt:  base,
		LastActivityAt: base,
	}
	clock.Advance(12 * time.Minute)

	_, fired := eng.CheckSession(context.Background(), activity)
	assert.False(t, fired, "wrong step must not fire")

	activity.CurrentStep = "dokumen"
	msg, fired := eng.CheckSession(context.Background(), activity)
	require.True(t, fired)
	assert.Contains(t, msg, "upload dokumen")
	assert.Len(t, sender.sent, 1)
}

func TestIncompleteReminder(t *testing.T) {
	eng, _, _, _, clock := newTestEngine(t, WithTriggers([]models.TriggerConfig{
		{
			ID:              "tg_incomplete_reminder",
			Name:            "incomplete_reminder",
			Type:            models.TriggerIncomplete,
			MaxCompletion:   50,
			IdleMinutes:     15,
			MessageTemplate: "Data pendaftaran kamu baru {completion}% lengkap.",
			MaxPerSession:   1,
			CooldownMinutes: 30,
			Active:          true,
		},
	}))

	base := clock.Now()
	clock.Advance(20 * time.Minute)

	highCompletion := models.SessionActivity{SessionID: "s1", LastActivityAt: base, CompletionPercent: 80}
	_, fired := eng.CheckSession(context.Background(), highCompletion)
	assert.False(t, fired, "completion above threshold must not fire")

	lowCompletion := models.SessionActivity{SessionID: "s2", LastActivityAt: base, CompletionPercent: 30}
	msg, fired := eng.CheckSession(context.Background(), lowCompletion)
	require.True(t, fired)
	assert.Contains(t, msg, "baru 30% lengkap")
}

func TestRatingPromptWinsOnPriorityAndOpensFlow(t *testing.T) {
	starter := &fakeStarter{}
	eng, sessions, st, sender, clock := newTestEngine(t, WithRatingStarter(starter))
	newSession(t, sessions, "s1", 100)

	clock.Advance(7 * time.Minute)
	msg, fired := eng.CheckSession(context.Background(), sessions.Activities()[0])
	require.True(t, fired)

	// Both idle_reminder and rating_after_complete are eligible; the
	// rating prompt has the higher priority and only one fires per check.
	assert.Contains(t, msg, "memberikan rating")
	assert.Equal(t, []string{"s1"}, starter.calls)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "rating_prompt", sender.sent[0].metadata["trigger_type"])

	logs, err := st.ListTriggerLogs("s1")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "tg_rating_after_complete", logs[0].TriggerID)
}

func TestRatingPromptSkippedWhileFlowActive(t *testing.T) {
	starter := &fakeStarter{err: models.ErrRatingFlowActive}
	eng, _, st, sender, clock := newTestEngine(t, WithRatingStarter(starter), WithTriggers([]models.TriggerConfig{
		{
			ID:              "tg_rating_after_complete",
			Name:            "rating_after_complete",
			Type:            models.TriggerRatingPrompt,
			MessageTemplate: "rating?",
			MaxPerSession:   1,
			CooldownMinutes: 60,
			Active:          true,
		},
	}))

	activity := models.SessionActivity{SessionID: "s1", LastActivityAt: clock.Now(), CompletionPercent: 100}
	_, fired := eng.CheckSession(context.Background(), activity)
	assert.False(t, fired)
	assert.Empty(t, sender.sent)

	logs, err := st.ListTriggerLogs("s1")
	require.NoError(t, err)
	assert.Empty(t, logs, "a skipped firing must not consume the fire cap")
}

func TestIdleFlagSetOnThreshold(t *testing.T) {
	eng, sessions, _, _, clock := newTestEngine(t)
	newSession(t, sessions, "s1", 100)
	// Completion 100 keeps the default rating trigger out of the way.
	eng.triggers = nil

	clock.Advance(7 * time.Minute)
	eng.CheckAll(context.Background())

	activities := sessions.Activities()
	require.Len(t, activities, 1)
	assert.True(t, activities[0].IsIdle)
	assert.False(t, activities[0].IdleSince.IsZero())
}

func TestSenderFailureStillLogsFiring(t *testing.T) {
	eng, sessions, st, sender, clock := newTestEngine(t)
	sender.err = errors.New("connection reset")
	newSession(t, sessions, "s1", 30)

	clock.Advance(7 * time.Minute)
	assert.Equal(t, 1, eng.CheckAll(context.Background()))

	logs, err := st.ListTriggerLogs("s1")
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestRenderTemplate(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	activity := &models.SessionActivity{
		SessionID:         "sess-9",
		UserID:            "628111",
		CurrentStep:       "data_kontak",
		LastActivityAt:    base,
		CompletionPercent: 42,
	}
	got := RenderTemplate(
		"{user_id} di {current_step}: {completion}% setelah {idle_minutes} menit ({session_id})",
		activity, base.Add(9*time.Minute),
	)
	assert.Equal(t, "628111 di data_kontak: 42% setelah 9 menit (sess-9)", got)

	anon := &models.SessionActivity{SessionID: "s1", LastActivityAt: base}
	got = RenderTemplate("{user_id} / {current_step}", anon, base)
	assert.Equal(t, "User / langkah saat ini", got)
}
