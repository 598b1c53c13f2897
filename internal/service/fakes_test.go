package service

import (
	"context"
	"sort"
	"sync"
	"testing"

	"mocktest_backend/internal/model"
	"mocktest_backend/internal/repository"
)

// memStore backs every store interface with maps.
type memStore struct {
	mu        sync.Mutex
	tests     map[string]model.MockTest
	questions []model.Question
	attempts  map[string]model.TestAttempt
	users     map[string]model.User

	listErr error
}

func newMemStore() *memStore {
	return &memStore{
		tests:    map[string]model.MockTest{},
		attempts: map[string]model.TestAttempt{},
		users:    map[string]model.User{},
	}
}

func (m *memStore) CreateTest(_ context.Context, t *model.MockTest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.EnsureID()
	m.tests[t.ID] = *t
	return nil
}

func (m *memStore) FindTestByID(_ context.Context, id string) (*model.MockTest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (m *memStore) ListTests(_ context.Context) ([]model.MockTest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.MockTest, 0, len(m.tests))
	for _, t := range m.tests {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) CreateQuestion(_ context.Context, q *model.Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q.EnsureID()
	m.questions = append(m.questions, *q)
	return nil
}

func (m *memStore) CreateQuestions(_ context.Context, qs []model.Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range qs {
		qs[i].EnsureID()
		m.questions = append(m.questions, qs[i])
	}
	return nil
}

func (m *memStore) ListQuestions(_ context.Context, testID string) ([]model.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []model.Question
	for _, q := range m.questions {
		if q.TestID == testID {
			out = append(out, q)
		}
	}
	return out, nil
}

func (m *memStore) ListAllQuestions(_ context.Context) ([]model.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Question(nil), m.questions...), nil
}

func (m *memStore) CreateAttempt(_ context.Context, a *model.TestAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.EnsureID()
	m.attempts[a.ID] = *a
	return nil
}

func (m *memStore) FindAttemptByID(_ context.Context, id string) (*model.TestAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (m *memStore) ListAttempts(_ context.Context, testID string, page, limit int) ([]model.TestAttempt, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.TestAttempt
	for _, a := range m.attempts {
		if testID == "" || a.TestID == testID {
			out = append(out, a)
		}
	}
	return out, int64(len(out)), nil
}

func (m *memStore) attemptCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.attempts)
}

func (m *memStore) FindByUsername(_ context.Context, username string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (m *memStore) CreateUser(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.EnsureID()
	m.users[u.Username] = *u
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []AttemptEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev AttemptEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) all() []AttemptEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]AttemptEvent(nil), p.events...)
}

// seedTest stores a one-minute test worth 4 per correct and -1 per wrong
// answer, with three questions.
func seedTest(t testing.TB, store *memStore) model.MockTest {
	t.Helper()
	test := model.MockTest{Name: "Physics Mock", IndividualMarks: 4, NegativeMarking: -1, Duration: 1}
	_ = store.CreateTest(context.Background(), &test)
	qs := []model.Question{
		{TestID: test.ID, Question: "2+2?", Options: []string{"3", "4", "5", "6"}, Answer: 1, Difficulty: model.DifficultyEasy, Subjects: []string{"Maths"}},
		{TestID: test.ID, Question: "Unit of force?", Options: []string{"Newton", "Joule", "Watt", "Pascal"}, Answer: 0, Difficulty: model.DifficultyEasy, Subjects: []string{"Physics"}},
		{TestID: test.ID, Question: "H2O is?", Options: []string{"Salt", "Water", "Acid", "Base"}, Answer: 1, Difficulty: model.DifficultyMedium, Subjects: []string{"Chemistry"}},
	}
	_ = store.CreateQuestions(context.Background(), qs)
	return test
}
