package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"mocktest_backend/internal/config"
	"mocktest_backend/internal/model"
	"mocktest_backend/internal/repository"
	"mocktest_backend/internal/session"
	"mocktest_backend/internal/util"
	"mocktest_backend/pkg/logger"
	"mocktest_backend/pkg/monitoring"

	"go.uber.org/zap"
)

// AnonymousCandidate owns sessions started without a candidate id.
const AnonymousCandidate = "anonymous"

// Candidate identifies who starts a session. Only a Verified candidate
// (one taken from a token) may resume an earlier snapshot or reattach to a
// running session; any other id just labels the attempt.
type Candidate struct {
	ID       string
	Verified bool
}

// SessionManager owns every live session and the clock goroutines behind
// them. Sessions live in memory; only snapshots and attempts are stored.
type SessionManager struct {
	Tests     *TestService
	Attempts  repository.AttemptStore
	Snapshots session.SnapshotStore
	Events    EventPublisher

	// ticks overrides the per-session clock; tests only.
	ticks func() <-chan time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	cfgMu sync.RWMutex
	cfg   config.SessionConfig

	mu       sync.RWMutex
	sessions map[string]*entry
	starting map[string]*startLock
}

// startLock serialises starts of one candidate on one test.
type startLock struct {
	mu   sync.Mutex
	refs int
}

type entry struct {
	ctrl       *session.Controller
	verified   bool
	finishedAt time.Time
}

func NewSessionManager(cfg config.SessionConfig, tests *TestService, attempts repository.AttemptStore,
	snapshots session.SnapshotStore, events EventPublisher) *SessionManager {
	if events == nil {
		events = NopPublisher{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &SessionManager{
		Tests:     tests,
		Attempts:  attempts,
		Snapshots: snapshots,
		Events:    events,
		ctx:       ctx,
		cancel:    cancel,
		cfg:       cfg,
		sessions:  make(map[string]*entry),
		starting:  make(map[string]*startLock),
	}
	m.wg.Add(1)
	go m.janitor()
	return m
}

// UpdateDefaults swaps the session settings used by sessions started later.
func (m *SessionManager) UpdateDefaults(cfg config.SessionConfig) {
	m.cfgMu.Lock()
	m.cfg = cfg
	m.cfgMu.Unlock()
	logger.Log.Info("session defaults reloaded",
		zap.Int("duration_minutes", cfg.DefaultDurationMinutes),
		zap.String("fixed_test_id", cfg.FixedTestID),
	)
}

// Settings returns the current session settings.
func (m *SessionManager) Settings() config.SessionConfig {
	m.cfgMu.RLock()
	defer m.cfgMu.RUnlock()
	return m.cfg
}

// resolveTest loads the test definition. A missing or unreadable test still
// yields a playable definition built from the configured defaults.
func (m *SessionManager) resolveTest(ctx context.Context, testID string, cfg config.SessionConfig) model.MockTest {
	test, err := m.Tests.GetTest(ctx, testID)
	if err != nil {
		logger.Log.Warn("test metadata unavailable, using defaults", zap.String("test_id", testID), zap.Error(err))
		t := model.MockTest{
			Name:            "Mock Test",
			IndividualMarks: cfg.DefaultMarks,
			NegativeMarking: cfg.DefaultNegativeMarks,
			Duration:        cfg.DefaultDurationMinutes,
		}
		t.ID = testID
		return t
	}
	out := *test
	if out.Duration <= 0 {
		out.Duration = cfg.DefaultDurationMinutes
	}
	return out
}

// Start fetches the question set once and begins a timed attempt. A verified
// candidate gets a running session back, or resumes a saved snapshot.
func (m *SessionManager) Start(ctx context.Context, testID string, who Candidate) (session.View, error) {
	cfg := m.Settings()
	testID = strings.TrimSpace(testID)
	if testID == "" {
		testID = cfg.FixedTestID
	}
	if testID == "" {
		return session.View{}, util.ErrTestIDRequired
	}
	candidateID := strings.TrimSpace(who.ID)
	if candidateID == "" {
		candidateID = AnonymousCandidate
		who.Verified = false
	}

	sessionID := model.GenerateUUID()
	owner := candidateID
	if who.Verified {
		unlock := m.lockStart(testID, candidateID)
		defer unlock()
		if view, ok := m.live(testID, candidateID); ok {
			return view, nil
		}
	} else {
		// Unverified attempts keep their snapshot to themselves.
		owner = candidateID + "-" + sessionID
	}

	questions, err := m.Tests.Questions(ctx, testID)
	if err != nil {
		return session.View{}, err
	}
	test := m.resolveTest(ctx, testID, cfg)

	opts := session.Options{
		ID:            sessionID,
		CandidateID:   candidateID,
		SnapshotOwner: owner,
		Test:          test,
		Questions:     questions,
		SubjectOrder:  cfg.SubjectOrder,
		Snapshots:     m.Snapshots,
		OnSubmit:      m.persist,
	}
	if m.ticks != nil {
		opts.Ticks = m.ticks()
	}
	ctrl, err := session.New(ctx, opts)
	if err != nil {
		if errors.Is(err, session.ErrNoQuestions) {
			return session.View{}, util.ErrNoQuestions
		}
		return session.View{}, err
	}

	m.mu.Lock()
	m.sessions[ctrl.ID()] = &entry{ctrl: ctrl, verified: who.Verified}
	m.mu.Unlock()

	ctrl.Start(m.ctx)
	view := ctrl.View()

	monitoring.SessionsStarted.WithLabelValues(fmt.Sprint(view.Resumed)).Inc()
	monitoring.SessionsActive.Inc()
	logger.Log.Info("session started",
		zap.String("session_id", view.SessionID),
		zap.String("test_id", testID),
		zap.String("candidate_id", candidateID),
		zap.Bool("resumed", view.Resumed),
		zap.Int("questions", len(view.Questions)),
	)
	return view, nil
}

// lockStart holds off a second start of the same candidate on the same test
// until the first one is registered.
func (m *SessionManager) lockStart(testID, candidateID string) func() {
	key := candidateID + "\x00" + testID
	m.mu.Lock()
	l, ok := m.starting[key]
	if !ok {
		l = &startLock{}
		m.starting[key] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.mu.Lock()
		if l.refs--; l.refs == 0 {
			delete(m.starting, key)
		}
		m.mu.Unlock()
	}
}

// live finds a running session of the same candidate on the same test, so a
// second start does not run a second clock.
func (m *SessionManager) live(testID, candidateID string) (session.View, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.sessions {
		if !e.verified || !e.finishedAt.IsZero() {
			continue
		}
		if v := e.ctrl.View(); !v.Submitted && v.TestID == testID && v.CandidateID == candidateID {
			return v, true
		}
	}
	return session.View{}, false
}

func (m *SessionManager) lookup(id string) (*session.Controller, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, util.ErrSessionNotFound
	}
	return e.ctrl, nil
}

// Controller exposes a live session, for event feeds.
func (m *SessionManager) Controller(id string) (*session.Controller, error) {
	return m.lookup(id)
}

func (m *SessionManager) Get(id string) (session.View, error) {
	ctrl, err := m.lookup(id)
	if err != nil {
		return session.View{}, err
	}
	return ctrl.View(), nil
}

func (m *SessionManager) Select(ctx context.Context, id, questionID, option string) (session.View, error) {
	ctrl, err := m.lookup(id)
	if err != nil {
		return session.View{}, err
	}
	return ctrl.Select(ctx, questionID, option)
}

func (m *SessionManager) Clear(ctx context.Context, id, questionID string) (session.View, error) {
	ctrl, err := m.lookup(id)
	if err != nil {
		return session.View{}, err
	}
	return ctrl.Clear(ctx, questionID)
}

func (m *SessionManager) ToggleReview(ctx context.Context, id, questionID string) (session.View, error) {
	ctrl, err := m.lookup(id)
	if err != nil {
		return session.View{}, err
	}
	return ctrl.ToggleReview(ctx, questionID)
}

func (m *SessionManager) Advance(ctx context.Context, id string) (session.View, error) {
	ctrl, err := m.lookup(id)
	if err != nil {
		return session.View{}, err
	}
	return ctrl.Advance(ctx)
}

func (m *SessionManager) Retreat(ctx context.Context, id string) (session.View, error) {
	ctrl, err := m.lookup(id)
	if err != nil {
		return session.View{}, err
	}
	return ctrl.Retreat(ctx)
}

func (m *SessionManager) Jump(ctx context.Context, id string, index int) (session.View, error) {
	ctrl, err := m.lookup(id)
	if err != nil {
		return session.View{}, err
	}
	return ctrl.Jump(ctx, index)
}

// Submit ends the attempt and returns the result handoff. Submitting twice
// returns the same handoff together with session.ErrSubmitted.
func (m *SessionManager) Submit(ctx context.Context, id string) (*Handoff, error) {
	ctrl, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	out, err := ctrl.Submit(ctx)
	h := NewHandoff(out)
	return &h, err
}

// persist is the submit hook of every session: store the attempt, then
// announce it. Failures are logged; the candidate still gets a result.
func (m *SessionManager) persist(ctx context.Context, out session.Outcome) string {
	monitoring.SessionsSubmitted.WithLabelValues(string(out.Reason)).Inc()
	monitoring.SessionsActive.Dec()

	m.mu.Lock()
	if e, ok := m.sessions[out.SessionID]; ok {
		e.finishedAt = out.SubmittedAt
	}
	m.mu.Unlock()

	ids := make([]string, len(out.Questions))
	for i, q := range out.Questions {
		ids[i] = q.ID
	}
	answers := make(map[string]interface{}, len(out.State.Answers))
	for k, v := range out.State.Answers {
		answers[k] = v
	}
	score, _ := out.Result.Obtained.Float64()

	attempt := &model.TestAttempt{
		TestID:          out.Test.ID,
		CandidateID:     out.CandidateID,
		Title:           out.Test.Name,
		QuestionIDs:     ids,
		Answers:         answers,
		IndividualMarks: out.Test.IndividualMarks,
		NegativeMarking: out.Test.NegativeMarking,
		Correct:         out.Result.Correct,
		Wrong:           out.Result.Wrong,
		Skipped:         out.Result.Skipped,
		Score:           score,
		Reason:          out.Reason,
		StartedAt:       out.StartedAt,
		SubmittedAt:     out.SubmittedAt,
	}
	if m.Attempts != nil {
		if err := m.Attempts.CreateAttempt(ctx, attempt); err != nil {
			logger.Log.Error("attempt not stored",
				zap.String("session_id", out.SessionID),
				zap.String("test_id", out.Test.ID),
				zap.Error(err),
			)
			attempt.ID = ""
		}
	}

	ev := AttemptEvent{
		Type:        EventAttemptSubmitted,
		AttemptID:   attempt.ID,
		SessionID:   out.SessionID,
		TestID:      out.Test.ID,
		CandidateID: out.CandidateID,
		Reason:      string(out.Reason),
		Correct:     out.Result.Correct,
		Wrong:       out.Result.Wrong,
		Skipped:     out.Result.Skipped,
		Score:       score,
		SubmittedAt: out.SubmittedAt,
	}
	if err := m.Events.Publish(ctx, ev); err != nil {
		logger.Log.Warn("attempt event not published", zap.String("session_id", out.SessionID), zap.Error(err))
	}

	logger.Log.Info("session submitted",
		zap.String("session_id", out.SessionID),
		zap.String("reason", string(out.Reason)),
		zap.Int("correct", out.Result.Correct),
		zap.Int("wrong", out.Result.Wrong),
		zap.Int("skipped", out.Result.Skipped),
		zap.String("score", out.Result.Obtained.String()),
	)
	return attempt.ID
}

func (m *SessionManager) janitor() {
	defer m.wg.Done()
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-m.ctx.Done():
			return
		case now := <-ticker.C:
			m.evict(now)
		}
	}
}

// evict drops sessions finished longer than the retention window ago.
func (m *SessionManager) evict(now time.Time) int {
	retention := m.Settings().Retention()
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, e := range m.sessions {
		if e.finishedAt.IsZero() || now.Sub(e.finishedAt) < retention {
			continue
		}
		e.ctrl.Close()
		delete(m.sessions, id)
		n++
	}
	if n > 0 {
		logger.Log.Debug("finished sessions evicted", zap.Int("count", n))
	}
	return n
}

// Shutdown stops every clock without submitting and waits for the clock
// goroutines to exit. Saved snapshots let the candidates resume after a
// restart.
func (m *SessionManager) Shutdown() {
	m.cancel()
	m.wg.Wait()

	m.mu.Lock()
	ctrls := make([]*session.Controller, 0, len(m.sessions))
	for id, e := range m.sessions {
		e.ctrl.Close()
		if e.finishedAt.IsZero() {
			monitoring.SessionsActive.Dec()
		}
		ctrls = append(ctrls, e.ctrl)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, c := range ctrls {
		c.Wait()
	}
}
