package rating

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azhar-edu/regbot/internal/models"
	"github.com/azhar-edu/regbot/internal/store"
)

func newTestManager(t *testing.T) (*Manager, *store.InMemoryStore) {
	t.Helper()
	st := store.NewInMemoryStore()
	fixed := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	return NewManager(st, WithClock(func() time.Time { return fixed })), st
}

func TestStartReturnsPromptQuestion(t *testing.T) {
	m, _ := newTestManager(t)

	question, err := m.Start("s1", models.RatingPromptPostCompletion)
	require.NoError(t, err)
	assert.Contains(t, question, "Bagaimana pengalaman kamu?")
	assert.Contains(t, question, "Ketik angka 1-5")
	assert.True(t, m.Active("s1"))
	assert.Equal(t, models.RatingStateAwaitingRating, m.State("s1"))
}

func TestSecondStartIsRefused(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.Start("s1", models.RatingPromptPostCompletion)
	require.NoError(t, err)

	question, err := m.Start("s1", models.RatingPromptPostCompletion)
	assert.True(t, errors.Is(err, models.ErrRatingFlowActive))
	assert.Empty(t, question)
	assert.Equal(t, models.RatingStateAwaitingRating, m.State("s1"))
}

func TestStartUnknownPromptType(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.Start("s1", models.RatingPromptType("nonexistent"))
	require.Error(t, err)
	assert.False(t, m.Active("s1"))
}

func TestFullFlowWithFeedback(t *testing.T) {
	m, st := newTestManager(t)

	_, err := m.Start("s1", models.RatingPromptPostCompletion)
	require.NoError(t, err)

	reply, done, err := m.ProcessInput("s1", "5")
	require.NoError(t, err)
	assert.False(t, done)
	assert.Contains(t, reply, "Rating: 5/5 (Sangat Puas)")
	assert.Contains(t, reply, "Ada saran atau masukan lain?")
	assert.Equal(t, models.RatingStateAwaitingFeedback, m.State("s1"))

	reply, done, err = m.ProcessInput("s1", "Prosesnya mudah diikuti")
	require.NoError(t, err)
	assert.True(t, done)
	assert.Contains(t, reply, "Terima kasih atas feedback-nya")
	assert.False(t, m.Active("s1"))

	ratings, err := st.ListRatings("s1")
	require.NoError(t, err)
	require.Len(t, ratings, 1)
	assert.Equal(t, 5, ratings[0].Score)
	assert.Equal(t, "Prosesnya mudah diikuti", ratings[0].Feedback)
	assert.Equal(t, "rp_post_completion", ratings[0].PromptID)
	assert.Equal(t, "overall", ratings[0].Category)
	assert.NotEmpty(t, ratings[0].ID)
}

func TestFeedbackSkipKeywords(t *testing.T) {
	for _, word := range []string{"skip", "lewati", "tidak", "no", "-", "  SKIP  "} {
		t.Run(word, func(t *testing.T) {
			m, st := newTestManager(t)
			_, err := m.Start("s1", models.RatingPromptPostCompletion)
			require.NoError(t, err)

			_, _, err = m.ProcessInput("s1", "4")
			require.NoError(t, err)

			reply, done, err := m.ProcessInput("s1", word)
			require.NoError(t, err)
			assert.True(t, done)
			assert.Contains(t, reply, "Terima kasih atas rating-nya")

			ratings, err := st.ListRatings("s1")
			require.NoError(t, err)
			require.Len(t, ratings, 1)
			assert.Equal(t, 4, ratings[0].Score)
			assert.Empty(t, ratings[0].Feedback)
		})
	}
}

func TestUnparseableScoreReprompts(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.Start("s1", models.RatingPromptPostCompletion)
	require.NoError(t, err)

	for _, input := range []string{"mantap sekali pokoknya", "0", "6", "sepuluh"} {
		reply, done, err := m.ProcessInput("s1", input)
		require.NoError(t, err)
		assert.False(t, done)
		assert.Equal(t, "Mohon masukkan angka 1-5 untuk rating.", reply)
		assert.Equal(t, models.RatingStateAwaitingRating, m.State("s1"))
	}
}

func TestProcessInputWithoutFlow(t *testing.T) {
	m, _ := newTestManager(t)

	_, _, err := m.ProcessInput("s1", "5")
	assert.True(t, errors.Is(err, models.ErrNoRatingFlow))
}

func TestCancelDiscardsWithoutPersisting(t *testing.T) {
	m, st := newTestManager(t)

	_, err := m.Start("s1", models.RatingPromptPostCompletion)
	require.NoError(t, err)
	_, _, err = m.ProcessInput("s1", "3")
	require.NoError(t, err)

	m.Cancel("s1")
	assert.False(t, m.Active("s1"))

	ratings, err := st.ListRatings("s1")
	require.NoError(t, err)
	assert.Empty(t, ratings)

	// Cancelling an absent flow is a no-op.
	m.Cancel("s1")
}

func TestCancelledFlowCanRestart(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.Start("s1", models.RatingPromptPostCompletion)
	require.NoError(t, err)
	m.Cancel("s1")

	question, err := m.Start("s1", models.RatingPromptAbandonment)
	require.NoError(t, err)
	assert.Contains(t, question, "sebelum pergi")
}

func TestSubmitDirect(t *testing.T) {
	m, st := newTestManager(t)

	rec, err := m.Submit("s1", 5, "  bagus  ")
	require.NoError(t, err)
	assert.Equal(t, 5, rec.Score)
	assert.Equal(t, "bagus", rec.Feedback)

	_, err = m.Submit("s1", 0, "")
	require.Error(t, err)
	_, err = m.Submit("s1", 6, "")
	require.Error(t, err)
	_, err = m.Submit("", 3, "")
	assert.True(t, errors.Is(err, models.ErrEmptySessionID))

	ratings, err := st.ListRatings("s1")
	require.NoError(t, err)
	assert.Len(t, ratings, 1)
}

func TestParseScore(t *testing.T) {
	cases := []struct {
		input string
		score int
		ok    bool
	}{
		{"1", 1, true},
		{"5", 5, true},
		{" 3 ", 3, true},
		{"0", 0, false},
		{"6", 0, false},
		{"satu", 1, true},
		{"lima", 5, true},
		{"three", 3, true},
		{"sangat puas", 5, true},
		{"tidak puas", 2, true},
		{"sangat tidak puas", 1, true},
		{"sangat bagus", 5, true},
		{"bagus", 4, true},
		{"kurang", 2, true},
		{"⭐⭐⭐", 3, true},
		{"***", 3, true},
		{"⭐⭐⭐⭐⭐⭐", 0, false},
		{"", 0, false},
		{"entahlah", 0, false},
	}

	for _, tc := range cases {
		score, ok := ParseScore(tc.input)
		assert.Equal(t, tc.ok, ok, "input %q", tc.input)
		if tc.ok {
			assert.Equal(t, tc.score, score, "input %q", tc.input)
		}
	}
}
