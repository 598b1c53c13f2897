package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"mocktest_backend/internal/config"
	"mocktest_backend/internal/model"
	"mocktest_backend/internal/repository"
	"mocktest_backend/internal/session"
	"mocktest_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sessionConfig() config.SessionConfig {
	return config.SessionConfig{
		DefaultDurationMinutes: 30,
		DefaultMarks:           1,
		DefaultNegativeMarks:   0,
		SubjectOrder:           session.DefaultSubjectOrder,
		RetentionMinutes:       10,
	}
}

type managerFixture struct {
	store     *memStore
	snapshots *repository.MemorySnapshotStore
	events    *recordingPublisher
	ticks     chan time.Time
	manager   *SessionManager
}

func newManagerFixture(t *testing.T, cfg config.SessionConfig) *managerFixture {
	f := &managerFixture{
		store:     newMemStore(),
		snapshots: repository.NewMemorySnapshotStore(),
		events:    &recordingPublisher{},
		ticks:     make(chan time.Time),
	}
	f.manager = NewSessionManager(cfg, NewTestService(f.store), f.store, f.snapshots, f.events)
	f.manager.ticks = func() <-chan time.Time { return f.ticks }
	t.Cleanup(f.manager.Shutdown)
	return f
}

func verified(id string) Candidate {
	return Candidate{ID: id, Verified: true}
}

func correctOption(q model.PublicQuestion, store *memStore) string {
	for _, sq := range store.questions {
		if sq.ID == q.ID {
			return sq.Options[sq.Answer]
		}
	}
	return ""
}

func TestSessionManagerSubmitPersistsAndPublishes(t *testing.T) {
	f := newManagerFixture(t, sessionConfig())
	test := seedTest(t, f.store)
	ctx := context.Background()

	view, err := f.manager.Start(ctx, test.ID, verified("cand-1"))
	require.NoError(t, err)
	require.Len(t, view.Questions, 3)
	assert.Equal(t, 60, view.TimeLeft)
	assert.Equal(t, "Physics Mock", view.Title)
	assert.False(t, view.Resumed)

	first, second := view.Questions[0], view.Questions[1]
	_, err = f.manager.Select(ctx, view.SessionID, first.ID, correctOption(first, f.store))
	require.NoError(t, err)
	wrong := second.Options[0]
	if wrong == correctOption(second, f.store) {
		wrong = second.Options[1]
	}
	_, err = f.manager.Select(ctx, view.SessionID, second.ID, wrong)
	require.NoError(t, err)

	snap, err := f.snapshots.Load(ctx, "cand-1", test.ID)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Len(t, snap.Answers, 2)

	handoff, err := f.manager.Submit(ctx, view.SessionID)
	require.NoError(t, err)
	assert.Equal(t, test.ID, handoff.ID)
	assert.Equal(t, "Physics Mock", handoff.Title)
	assert.Equal(t, 1, handoff.Correct)
	assert.Equal(t, 3, handoff.Total)
	assert.Equal(t, 1, handoff.Unattempted)
	require.NotEmpty(t, handoff.AttemptID)
	for i, q := range handoff.Questions {
		assert.Equal(t, view.Questions[i].ID, q.ID, "handoff keeps session order")
	}

	attempt, err := f.store.FindAttemptByID(ctx, handoff.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, 3.0, attempt.Score)
	assert.Equal(t, model.SubmitManual, attempt.Reason)
	assert.Equal(t, "cand-1", attempt.CandidateID)

	events := f.events.all()
	require.Len(t, events, 1)
	assert.Equal(t, EventAttemptSubmitted, events[0].Type)
	assert.Equal(t, handoff.AttemptID, events[0].AttemptID)

	snap, err = f.snapshots.Load(ctx, "cand-1", test.ID)
	require.NoError(t, err)
	assert.Nil(t, snap, "submission clears the snapshot")

	again, err := f.manager.Submit(ctx, view.SessionID)
	assert.ErrorIs(t, err, session.ErrSubmitted)
	assert.Equal(t, handoff.AttemptID, again.AttemptID)
	assert.Equal(t, 1, f.store.attemptCount())

	_, err = f.manager.Advance(ctx, view.SessionID)
	assert.ErrorIs(t, err, session.ErrSubmitted)
}

func TestSessionManagerTimeoutSubmitsOnce(t *testing.T) {
	f := newManagerFixture(t, sessionConfig())
	test := seedTest(t, f.store)

	view, err := f.manager.Start(context.Background(), test.ID, verified("cand-1"))
	require.NoError(t, err)

	for i := 0; i < view.TimeLeft; i++ {
		f.ticks <- time.Now()
	}

	require.Eventually(t, func() bool { return len(f.events.all()) == 1 }, 2*time.Second, 10*time.Millisecond)
	got, err := f.manager.Get(view.SessionID)
	require.NoError(t, err)
	assert.True(t, got.Submitted)
	assert.Equal(t, 0, got.TimeLeft)

	events := f.events.all()
	require.Len(t, events, 1)
	assert.Equal(t, string(model.SubmitTimeout), events[0].Reason)

	_, err = f.manager.Submit(context.Background(), view.SessionID)
	assert.ErrorIs(t, err, session.ErrSubmitted)
	assert.Equal(t, 1, f.store.attemptCount())
}

func TestSessionManagerStartDefaults(t *testing.T) {
	cfg := sessionConfig()
	f := newManagerFixture(t, cfg)
	ctx := context.Background()

	_, err := f.manager.Start(ctx, "", Candidate{})
	assert.ErrorIs(t, err, util.ErrTestIDRequired)

	_, err = f.manager.Start(ctx, "empty-test", Candidate{})
	assert.ErrorIs(t, err, util.ErrNoQuestions)

	// Questions without a stored test fall back to the configured defaults.
	require.NoError(t, f.store.CreateQuestion(ctx, &model.Question{
		TestID: "orphan", Question: "q", Options: []string{"a", "b", "c", "d"}, Answer: 0, Difficulty: model.DifficultyEasy,
	}))
	cfg.FixedTestID = "orphan"
	f.manager.UpdateDefaults(cfg)

	view, err := f.manager.Start(ctx, "", Candidate{})
	require.NoError(t, err)
	assert.Equal(t, "orphan", view.TestID)
	assert.Equal(t, AnonymousCandidate, view.CandidateID)
	assert.Equal(t, 30*60, view.TimeLeft)

	f.store.listErr = assert.AnError
	_, err = f.manager.Start(ctx, "orphan", verified("cand-2"))
	assert.ErrorIs(t, err, util.ErrStoreUnavailable)
}

func TestSessionManagerResumesAndReusesLiveSession(t *testing.T) {
	f := newManagerFixture(t, sessionConfig())
	test := seedTest(t, f.store)
	ctx := context.Background()

	view, err := f.manager.Start(ctx, test.ID, verified("cand-1"))
	require.NoError(t, err)
	_, err = f.manager.Jump(ctx, view.SessionID, 2)
	require.NoError(t, err)
	_, err = f.manager.ToggleReview(ctx, view.SessionID, view.Questions[2].ID)
	require.NoError(t, err)

	again, err := f.manager.Start(ctx, test.ID, verified("cand-1"))
	require.NoError(t, err)
	assert.Equal(t, view.SessionID, again.SessionID, "a live session is reused")

	_, err = f.manager.Jump(ctx, view.SessionID, 3)
	assert.ErrorIs(t, err, session.ErrIndexOutOfRange)

	// A restart loses live sessions but keeps the snapshot.
	restarted := NewSessionManager(sessionConfig(), NewTestService(f.store), f.store, f.snapshots, f.events)
	restarted.ticks = func() <-chan time.Time { return make(chan time.Time) }
	defer restarted.Shutdown()

	resumed, err := restarted.Start(ctx, test.ID, verified("cand-1"))
	require.NoError(t, err)
	assert.True(t, resumed.Resumed)
	assert.NotEqual(t, view.SessionID, resumed.SessionID)
	assert.Equal(t, 2, resumed.CurrentIndex)
	assert.True(t, resumed.VisitMarks[view.Questions[2].ID])
	for i := range view.Questions {
		assert.Equal(t, view.Questions[i].ID, resumed.Questions[i].ID)
	}
}

func TestSessionManagerEvictsFinishedSessions(t *testing.T) {
	f := newManagerFixture(t, sessionConfig())
	test := seedTest(t, f.store)
	ctx := context.Background()

	view, err := f.manager.Start(ctx, test.ID, verified("cand-1"))
	require.NoError(t, err)
	live, err := f.manager.Start(ctx, test.ID, verified("cand-2"))
	require.NoError(t, err)

	_, err = f.manager.Submit(ctx, view.SessionID)
	require.NoError(t, err)

	assert.Equal(t, 0, f.manager.evict(time.Now()))
	assert.Equal(t, 1, f.manager.evict(time.Now().Add(11*time.Minute)))

	_, err = f.manager.Get(view.SessionID)
	assert.ErrorIs(t, err, util.ErrSessionNotFound)
	_, err = f.manager.Get(live.SessionID)
	assert.NoError(t, err, "unfinished sessions are never evicted")
}

func TestSessionManagerAnonymousSessionsAreIsolated(t *testing.T) {
	f := newManagerFixture(t, sessionConfig())
	test := seedTest(t, f.store)
	ctx := context.Background()

	a, err := f.manager.Start(ctx, test.ID, Candidate{})
	require.NoError(t, err)
	q := a.Questions[0]
	_, err = f.manager.Select(ctx, a.SessionID, q.ID, q.Options[2])
	require.NoError(t, err)

	b, err := f.manager.Start(ctx, test.ID, Candidate{})
	require.NoError(t, err)
	assert.NotEqual(t, a.SessionID, b.SessionID)
	assert.False(t, b.Resumed)
	assert.Empty(t, b.Answers)

	_, err = f.manager.Submit(ctx, a.SessionID)
	require.NoError(t, err)
	_, err = f.manager.Select(ctx, b.SessionID, q.ID, q.Options[1])
	require.NoError(t, err)

	snapA, err := f.snapshots.Load(ctx, AnonymousCandidate+"-"+a.SessionID, test.ID)
	require.NoError(t, err)
	assert.Nil(t, snapA, "submitting A leaves no snapshot behind")
	snapB, err := f.snapshots.Load(ctx, AnonymousCandidate+"-"+b.SessionID, test.ID)
	require.NoError(t, err)
	require.NotNil(t, snapB)
	assert.Equal(t, map[string]string{q.ID: q.Options[1]}, snapB.Answers)

	shared, err := f.snapshots.Load(ctx, AnonymousCandidate, test.ID)
	require.NoError(t, err)
	assert.Nil(t, shared)
}

func TestSessionManagerUnverifiedCandidateCannotAttach(t *testing.T) {
	f := newManagerFixture(t, sessionConfig())
	test := seedTest(t, f.store)
	ctx := context.Background()

	owned, err := f.manager.Start(ctx, test.ID, verified("cand-1"))
	require.NoError(t, err)
	_, err = f.manager.Jump(ctx, owned.SessionID, 1)
	require.NoError(t, err)

	claimed, err := f.manager.Start(ctx, test.ID, Candidate{ID: "cand-1"})
	require.NoError(t, err)
	assert.NotEqual(t, owned.SessionID, claimed.SessionID)
	assert.False(t, claimed.Resumed, "a body-supplied id does not resume the owner's snapshot")
	assert.Equal(t, 0, claimed.CurrentIndex)
	assert.Equal(t, "cand-1", claimed.CandidateID)

	again, err := f.manager.Start(ctx, test.ID, verified("cand-1"))
	require.NoError(t, err)
	assert.Equal(t, owned.SessionID, again.SessionID, "unverified sessions are never handed to the owner")
}

func TestSessionManagerConcurrentStartsShareOneSession(t *testing.T) {
	f := newManagerFixture(t, sessionConfig())
	test := seedTest(t, f.store)
	ctx := context.Background()

	const n = 8
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			view, err := f.manager.Start(ctx, test.ID, verified("cand-1"))
			if assert.NoError(t, err) {
				ids[i] = view.SessionID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids[1:] {
		assert.Equal(t, ids[0], id)
	}
	f.manager.mu.RLock()
	assert.Len(t, f.manager.sessions, 1)
	assert.Empty(t, f.manager.starting)
	f.manager.mu.RUnlock()
}

func TestSessionManagerShutdownWaitsForClocks(t *testing.T) {
	f := newManagerFixture(t, sessionConfig())
	test := seedTest(t, f.store)
	ctx := context.Background()

	view, err := f.manager.Start(ctx, test.ID, verified("cand-1"))
	require.NoError(t, err)
	_, err = f.manager.Advance(ctx, view.SessionID)
	require.NoError(t, err)
	f.ticks <- time.Now()

	f.manager.Shutdown()

	select {
	case f.ticks <- time.Now():
		t.Fatal("a clock goroutine outlived shutdown")
	case <-time.After(50 * time.Millisecond):
	}
	_, err = f.manager.Get(view.SessionID)
	assert.ErrorIs(t, err, util.ErrSessionNotFound)
	assert.Empty(t, f.events.all(), "shutdown does not submit")

	snap, err := f.snapshots.Load(ctx, "cand-1", test.ID)
	require.NoError(t, err)
	assert.NotNil(t, snap, "the snapshot survives for a later resume")
}
