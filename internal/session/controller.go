package session

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"mocktest_backend/internal/model"
	"mocktest_backend/internal/scoring"
	"mocktest_backend/pkg/logger"

	"go.uber.org/zap"
)

const (
	EventTick      = "tick"
	EventSubmitted = "submitted"
)

// Event is pushed to subscribers on every tick and once on submission.
type Event struct {
	Type     string             `json:"type"`
	TimeLeft int                `json:"timeLeft"`
	Reason   model.SubmitReason `json:"reason,omitempty"`
}

// Outcome is the terminal handoff of a submitted session.
type Outcome struct {
	SessionID   string
	CandidateID string
	Test        model.MockTest
	Questions   []model.Question
	State       State
	Result      scoring.Result
	Reason      model.SubmitReason
	StartedAt   time.Time
	SubmittedAt time.Time
	AttemptID   string
}

// SubmitHook runs once per session after submission and returns the id of
// the stored attempt, or "" if it was not stored.
type SubmitHook func(ctx context.Context, out Outcome) string

type Options struct {
	ID          string
	CandidateID string
	// SnapshotOwner scopes saved snapshots; CandidateID when empty.
	SnapshotOwner string
	Test          model.MockTest
	Questions     []model.Question
	SubjectOrder  []string
	Rand          *rand.Rand
	Snapshots     SnapshotStore
	OnSubmit      SubmitHook
	// Ticks replaces the one-second ticker, mainly for tests.
	Ticks <-chan time.Time
	Now   func() time.Time
}

type View struct {
	SessionID    string                 `json:"sessionId"`
	CandidateID  string                 `json:"candidateId"`
	TestID       string                 `json:"testId"`
	Title        string                 `json:"title"`
	Questions    []model.PublicQuestion `json:"questions"`
	Sections     []Section              `json:"sections"`
	CurrentIndex int                    `json:"currentIndex"`
	Answers      map[string]string      `json:"answers"`
	VisitMarks   map[string]bool        `json:"visitMarks"`
	TimeLeft     int                    `json:"timeLeft"`
	Submitted    bool                   `json:"submitted"`
	Resumed      bool                   `json:"resumed"`
	AttemptID    string                 `json:"attemptId,omitempty"`
}

type Controller struct {
	id          string
	candidateID string
	owner       string
	test        model.MockTest
	byID        map[string]*model.Question
	sections    []Section
	marks       scoring.Marks
	snapshots   SnapshotStore
	onSubmit    SubmitHook
	ticks       <-chan time.Time
	now         func() time.Time
	startedAt   time.Time
	resumed     bool

	mu        sync.Mutex
	state     State
	outcome   *Outcome
	countdown *Countdown
	subs      map[chan Event]struct{}
	closed    bool
}

// New orders the questions, restores any saved snapshot and returns a
// controller whose clock is not yet running.
func New(ctx context.Context, opts Options) (*Controller, error) {
	if len(opts.Questions) == 0 {
		return nil, ErrNoQuestions
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	byID := make(map[string]*model.Question, len(opts.Questions))
	for i := range opts.Questions {
		byID[opts.Questions[i].ID] = &opts.Questions[i]
	}

	order, sections := BuildOrder(opts.Questions, opts.SubjectOrder, rng)
	state := NewState(opts.Test.ID, order, opts.Test.Duration*60)

	c := &Controller{
		id:          opts.ID,
		candidateID: opts.CandidateID,
		owner:       opts.SnapshotOwner,
		test:        opts.Test,
		byID:        byID,
		sections:    sections,
		marks:       scoring.NewMarks(opts.Test.IndividualMarks, opts.Test.NegativeMarking),
		snapshots:   opts.Snapshots,
		onSubmit:    opts.OnSubmit,
		ticks:       opts.Ticks,
		now:         now,
		startedAt:   now(),
		subs:        make(map[chan Event]struct{}),
	}

	if c.owner == "" {
		c.owner = c.candidateID
	}
	if c.snapshots != nil {
		snap, err := c.snapshots.Load(ctx, c.owner, c.test.ID)
		if err != nil {
			logger.Log.Warn("session snapshot load failed", zap.String("test_id", c.test.ID), zap.Error(err))
		} else if snap != nil {
			state = state.Resume(*snap)
			c.sections = SectionsFor(state.Order, byID)
			c.resumed = true
		}
	}
	c.state = state
	return c, nil
}

func (c *Controller) ID() string { return c.id }

// Start runs the countdown until submission or until ctx ends.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.countdown != nil || c.state.Submitted {
		return
	}
	c.countdown = StartCountdown(ctx, c.ticks, func() bool { return c.tick(ctx) })
}

func (c *Controller) Select(ctx context.Context, questionID, option string) (View, error) {
	return c.mutate(ctx, func(s State) (State, error) { return s.Select(questionID, option) })
}

func (c *Controller) Clear(ctx context.Context, questionID string) (View, error) {
	return c.mutate(ctx, func(s State) (State, error) { return s.Clear(questionID) })
}

func (c *Controller) ToggleReview(ctx context.Context, questionID string) (View, error) {
	return c.mutate(ctx, func(s State) (State, error) { return s.ToggleReview(questionID) })
}

func (c *Controller) Advance(ctx context.Context) (View, error) {
	return c.mutate(ctx, State.Advance)
}

func (c *Controller) Retreat(ctx context.Context) (View, error) {
	return c.mutate(ctx, State.Retreat)
}

func (c *Controller) Jump(ctx context.Context, index int) (View, error) {
	return c.mutate(ctx, func(s State) (State, error) { return s.Jump(index) })
}

func (c *Controller) mutate(ctx context.Context, fn func(State) (State, error)) (View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := fn(c.state)
	if err != nil {
		return c.viewLocked(), err
	}
	c.state = next
	c.saveLocked(ctx)
	return c.viewLocked(), nil
}

func (c *Controller) saveLocked(ctx context.Context) {
	if c.snapshots == nil {
		return
	}
	if err := c.snapshots.Save(ctx, c.owner, c.test.ID, c.state.Snapshot()); err != nil {
		logger.Log.Warn("session snapshot save failed", zap.String("session_id", c.id), zap.Error(err))
	}
}

// Submit ends the attempt. A second call returns the first outcome with
// ErrSubmitted.
func (c *Controller) Submit(ctx context.Context) (Outcome, error) {
	c.mu.Lock()
	next, changed := c.state.Submit()
	if !changed {
		out := *c.outcome
		c.mu.Unlock()
		return out, ErrSubmitted
	}
	c.state = next
	out := c.finishLocked(ctx, model.SubmitManual)
	c.mu.Unlock()

	return c.runHook(ctx, out), nil
}

func (c *Controller) tick(ctx context.Context) bool {
	c.mu.Lock()
	next, fired := c.state.Tick()
	if next.Submitted && !fired {
		c.mu.Unlock()
		return false
	}
	c.state = next
	if !fired {
		c.publishLocked(Event{Type: EventTick, TimeLeft: next.TimeLeft})
		c.mu.Unlock()
		return true
	}

	hookCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	out := c.finishLocked(hookCtx, model.SubmitTimeout)
	c.mu.Unlock()

	logger.Log.Info("session timed out", zap.String("session_id", c.id), zap.String("test_id", c.test.ID))
	c.runHook(hookCtx, out)
	return false
}

// finishLocked scores the attempt, clears the snapshot, releases the clock and
// notifies subscribers. The caller must have just flipped Submitted.
func (c *Controller) finishLocked(ctx context.Context, reason model.SubmitReason) Outcome {
	if c.countdown != nil {
		c.countdown.Stop()
	}
	if c.snapshots != nil {
		if err := c.snapshots.Clear(ctx, c.owner, c.test.ID); err != nil {
			logger.Log.Warn("session snapshot clear failed", zap.String("session_id", c.id), zap.Error(err))
		}
	}

	questions := c.orderedLocked()
	items := make([]scoring.Item, len(questions))
	for i, q := range questions {
		items[i] = scoring.Item{ID: q.ID, Options: q.Options, Answer: q.Answer}
	}

	out := Outcome{
		SessionID:   c.id,
		CandidateID: c.candidateID,
		Test:        c.test,
		Questions:   questions,
		State:       c.state.clone(),
		Result:      scoring.Score(items, c.state.Answers, c.marks),
		Reason:      reason,
		StartedAt:   c.startedAt,
		SubmittedAt: c.now(),
	}
	c.outcome = &out
	c.publishLocked(Event{Type: EventSubmitted, TimeLeft: c.state.TimeLeft, Reason: reason})
	return out
}

func (c *Controller) runHook(ctx context.Context, out Outcome) Outcome {
	if c.onSubmit == nil {
		return out
	}
	id := c.onSubmit(ctx, out)
	c.mu.Lock()
	c.outcome.AttemptID = id
	c.mu.Unlock()
	out.AttemptID = id
	return out
}

func (c *Controller) orderedLocked() []model.Question {
	out := make([]model.Question, 0, len(c.state.Order))
	for _, id := range c.state.Order {
		if q, ok := c.byID[id]; ok {
			out = append(out, *q)
		}
	}
	return out
}

func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

func (c *Controller) viewLocked() View {
	st := c.state.clone()
	questions := make([]model.PublicQuestion, 0, len(st.Order))
	for _, id := range st.Order {
		if q, ok := c.byID[id]; ok {
			questions = append(questions, q.Public())
		}
	}
	v := View{
		SessionID:    c.id,
		CandidateID:  c.candidateID,
		TestID:       c.test.ID,
		Title:        c.test.Name,
		Questions:    questions,
		Sections:     c.sections,
		CurrentIndex: st.Position,
		Answers:      st.Answers,
		VisitMarks:   st.Marks,
		TimeLeft:     st.TimeLeft,
		Submitted:    st.Submitted,
		Resumed:      c.resumed,
	}
	if c.outcome != nil {
		v.AttemptID = c.outcome.AttemptID
	}
	return v
}

// Outcome returns the submission result once there is one.
func (c *Controller) Outcome() (Outcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.outcome == nil {
		return Outcome{}, false
	}
	return *c.outcome, true
}

// Subscribe returns a feed of events and a function that ends it. Slow
// readers miss ticks rather than blocking the clock.
func (c *Controller) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)
	c.mu.Lock()
	if c.closed {
		close(ch)
		c.mu.Unlock()
		return ch, func() {}
	}
	c.subs[ch] = struct{}{}
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if _, ok := c.subs[ch]; ok {
				delete(c.subs, ch)
				close(ch)
			}
		})
	}
}

func (c *Controller) publishLocked(ev Event) {
	for ch := range c.subs {
		select {
		case ch <- ev:
			continue
		default:
		}
		if ev.Type != EventSubmitted {
			continue
		}
		// The final event must not be lost: evict the oldest tick.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close stops the clock without submitting and ends all feeds.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.countdown != nil {
		c.countdown.Stop()
	}
	for ch := range c.subs {
		delete(c.subs, ch)
		close(ch)
	}
	c.closed = true
}

// Wait blocks until the clock goroutine has exited. It returns at once when
// the clock never started.
func (c *Controller) Wait() {
	c.mu.Lock()
	cd := c.countdown
	c.mu.Unlock()
	if cd != nil {
		<-cd.Done()
	}
}
