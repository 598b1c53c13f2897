package service

import (
	"context"
	"testing"
	"time"

	"mocktest_backend/internal/model"
	"mocktest_backend/internal/scoring"
	"mocktest_backend/internal/util"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResults(store *memStore) *ResultService {
	return NewResultService(NewTestService(store), store, sessionConfig)
}

func storedHandoff(store *memStore, test model.MockTest) Handoff {
	qs, _ := store.ListQuestions(context.Background(), test.ID)
	h := Handoff{
		UserAnswers: map[string]string{
			qs[0].ID: "4",
			qs[1].ID: "Joule",
		},
		Title: "Client title",
		ID:    test.ID,
	}
	for _, q := range qs {
		h.Questions = append(h.Questions, handoffQuestion(q))
	}
	return h
}

func TestPresentRecomputesIgnoringAdvisoryCounts(t *testing.T) {
	store := newMemStore()
	test := seedTest(t, store)
	svc := newResults(store)

	h := storedHandoff(store, test)
	h.Correct, h.Total, h.Unattempted = 3, 3, 0

	p, err := svc.Present(context.Background(), h)
	require.NoError(t, err)
	assert.False(t, p.MetadataFallback)
	assert.Equal(t, "Physics Mock", p.Title, "stored metadata wins over the handoff title")
	assert.Equal(t, 1, p.Duration)
	assert.Equal(t, 3, p.Total)
	assert.Equal(t, 1, p.Correct)
	assert.Equal(t, 1, p.Wrong)
	assert.Equal(t, 1, p.Unattempted)
	assert.True(t, decimal.NewFromInt(3).Equal(p.Score))
	assert.True(t, decimal.NewFromInt(12).Equal(p.MaxScore))
	assert.Equal(t, "25", p.Percentage.String())

	require.Len(t, p.Questions, 3)
	assert.Equal(t, scoring.StatusCorrect, p.Questions[0].Status)
	assert.Equal(t, scoring.StatusIncorrect, p.Questions[1].Status)
	assert.Equal(t, "Newton", p.Questions[1].CorrectOption)
	assert.Equal(t, scoring.StatusSkipped, p.Questions[2].Status)
	assert.Nil(t, p.Questions[2].Selected)
}

func TestPresentUsesStoredAnswerKey(t *testing.T) {
	store := newMemStore()
	test := seedTest(t, store)
	svc := newResults(store)

	h := storedHandoff(store, test)
	// A tampered key claiming "Joule" is right.
	h.Questions[1].Answer = 1

	p, err := svc.Present(context.Background(), h)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Correct)
	assert.Equal(t, scoring.StatusIncorrect, p.Questions[1].Status)
}

func TestPresentFallsBackWithoutMetadata(t *testing.T) {
	store := newMemStore()
	svc := newResults(store)

	h := Handoff{
		ID:    "gone",
		Title: "Offline test",
		Questions: []HandoffQuestion{
			{ID: "q1", Question: "?", Options: []string{"a", "b", "c", "d"}, Answer: 2},
			{ID: "q2", Question: "?", Options: []string{"a", "b", "c", "d"}, Answer: 0},
		},
		UserAnswers: map[string]string{"q1": "c", "q2": "b"},
	}
	p, err := svc.Present(context.Background(), h)
	require.NoError(t, err)
	assert.True(t, p.MetadataFallback)
	assert.Equal(t, "Offline test", p.Title)
	assert.Equal(t, 30, p.Duration)
	assert.Equal(t, 1.0, p.IndividualMarks)
	assert.Equal(t, 1, p.Correct)
	assert.Equal(t, 1, p.Wrong)
	assert.True(t, decimal.NewFromInt(1).Equal(p.Score))

	h.Title = ""
	p, err = svc.Present(context.Background(), h)
	require.NoError(t, err)
	assert.Equal(t, "Mock Test", p.Title)
}

func TestPresentAttempt(t *testing.T) {
	store := newMemStore()
	test := seedTest(t, store)
	svc := newResults(store)
	ctx := context.Background()

	qs, _ := store.ListQuestions(ctx, test.ID)
	attempt := &model.TestAttempt{
		TestID:          test.ID,
		CandidateID:     "cand-1",
		Title:           "Physics Mock",
		QuestionIDs:     []string{qs[2].ID, qs[0].ID, "deleted"},
		Answers:         map[string]interface{}{qs[2].ID: "Water", qs[0].ID: "3"},
		IndividualMarks: 2,
		NegativeMarking: -0.5,
		SubmittedAt:     time.Now(),
	}
	require.NoError(t, store.CreateAttempt(ctx, attempt))

	p, err := svc.PresentAttempt(ctx, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, attempt.ID, p.AttemptID)
	require.Len(t, p.Questions, 2)
	assert.Equal(t, qs[2].ID, p.Questions[0].ID)
	assert.Equal(t, 1, p.Correct)
	assert.Equal(t, 1, p.Wrong)
	assert.Equal(t, "1.5", p.Score.String())

	_, err = svc.PresentAttempt(ctx, "missing")
	assert.ErrorIs(t, err, util.ErrAttemptNotFound)
}

func TestListAttemptsClampsPaging(t *testing.T) {
	store := newMemStore()
	svc := newResults(store)
	list, total, err := svc.ListAttempts(context.Background(), "", 0, 1000)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Zero(t, total)
}
