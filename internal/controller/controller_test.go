package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"mocktest_backend/internal/config"
	"mocktest_backend/internal/middleware"
	"mocktest_backend/internal/model"
	"mocktest_backend/internal/repository"
	"mocktest_backend/internal/service"
	"mocktest_backend/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "controller-test-secret-0123456789abcdef"

type store struct {
	mu        sync.Mutex
	tests     map[string]model.MockTest
	questions []model.Question
	attempts  map[string]model.TestAttempt
}

func newStore() *store {
	return &store{tests: map[string]model.MockTest{}, attempts: map[string]model.TestAttempt{}}
}

func (s *store) CreateTest(_ context.Context, t *model.MockTest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.EnsureID()
	s.tests[t.ID] = *t
	return nil
}

func (s *store) FindTestByID(_ context.Context, id string) (*model.MockTest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (s *store) ListTests(context.Context) ([]model.MockTest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.MockTest
	for _, t := range s.tests {
		out = append(out, t)
	}
	return out, nil
}

func (s *store) CreateQuestion(ctx context.Context, q *model.Question) error {
	return s.CreateQuestions(ctx, []model.Question{*q})
}

func (s *store) CreateQuestions(_ context.Context, qs []model.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range qs {
		qs[i].EnsureID()
		s.questions = append(s.questions, qs[i])
	}
	return nil
}

func (s *store) ListQuestions(_ context.Context, testID string) ([]model.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Question
	for _, q := range s.questions {
		if q.TestID == testID {
			out = append(out, q)
		}
	}
	return out, nil
}

func (s *store) ListAllQuestions(context.Context) ([]model.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Question(nil), s.questions...), nil
}

func (s *store) CreateAttempt(_ context.Context, a *model.TestAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.EnsureID()
	s.attempts[a.ID] = *a
	return nil
}

func (s *store) FindAttemptByID(_ context.Context, id string) (*model.TestAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (s *store) ListAttempts(context.Context, string, int, int) ([]model.TestAttempt, int64, error) {
	return nil, 0, nil
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type harness struct {
	router   *gin.Engine
	store    *store
	sessions *service.SessionManager
}

func newHarness(t *testing.T) *harness {
	gin.SetMode(gin.TestMode)
	st := newStore()
	cfg := config.SessionConfig{DefaultDurationMinutes: 30, DefaultMarks: 1, RetentionMinutes: 10}

	tests := service.NewTestService(st)
	sessions := service.NewSessionManager(cfg, tests, st, repository.NewMemorySnapshotStore(), nil)
	t.Cleanup(sessions.Shutdown)

	testCtrl := NewTestController(tests)
	questionCtrl := NewQuestionController(service.NewIngestionService(st, nil), tests)
	sessionCtrl := NewSessionController(sessions)
	resultCtrl := NewResultController(service.NewResultService(tests, st, sessions.Settings))

	r := gin.New()
	api := r.Group("/api")
	api.GET("/tests/:testId", testCtrl.GetTest)
	api.GET("/tests/:testId/questions", testCtrl.GetTestQuestions)
	api.POST("/sessions", sessionCtrl.StartSession)
	api.GET("/sessions/:id", sessionCtrl.GetSession)
	api.POST("/sessions/:id/select", sessionCtrl.Select)
	api.POST("/sessions/:id/jump", sessionCtrl.Jump)
	api.POST("/sessions/:id/next", sessionCtrl.Next)
	api.POST("/sessions/:id/submit", sessionCtrl.Submit)
	api.POST("/results", resultCtrl.PresentResult)
	api.GET("/attempts/:id", resultCtrl.GetAttempt)

	admin := api.Group("")
	admin.Use(middleware.AuthMiddleware(secret), middleware.RoleMiddleware(model.Admin))
	admin.POST("/tests", testCtrl.CreateTest)
	admin.POST("/questions/upload-json", questionCtrl.UploadJSON)

	return &harness{router: r, store: st, sessions: sessions}
}

func (h *harness) do(t *testing.T, method, path string, body interface{}, token string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func token(t *testing.T, role model.UserRole) string {
	u := &model.User{Username: string(role), Role: role}
	u.ID = "u-" + string(role)
	tok, err := util.GenerateJWT(u, secret, time.Hour)
	require.NoError(t, err)
	return tok
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	h := newHarness(t)
	body := map[string]interface{}{"name": "Mock 1", "duration": 20}

	w, _ := h.do(t, http.MethodPost, "/api/tests", body, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = h.do(t, http.MethodPost, "/api/tests", body, token(t, model.Candidate))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env := h.do(t, http.MethodPost, "/api/tests", body, token(t, model.Admin))
	assert.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		TestID string `json:"testId"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.NotEmpty(t, created.TestID)

	w, env = h.do(t, http.MethodGet, "/api/tests/"+created.TestID, nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	var test model.MockTest
	require.NoError(t, json.Unmarshal(env.Data, &test))
	assert.Equal(t, 1.0, test.IndividualMarks)
}

func TestMissingTestAndEmptyQuestions(t *testing.T) {
	h := newHarness(t)

	w, env := h.do(t, http.MethodGet, "/api/tests/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Mock test not found.", env.Message)

	w, env = h.do(t, http.MethodGet, "/api/tests/nope/questions", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "No questions found for this test.", env.Message)
}

func TestUploadJSONErrors(t *testing.T) {
	h := newHarness(t)
	admin := token(t, model.Admin)

	w, env := h.do(t, http.MethodPost, "/api/questions/upload-json", `{"question":"x"}`, admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid JSON format. Expected an array of questions.", env.Message)

	w, env = h.do(t, http.MethodPost, "/api/questions/upload-json", `[{"testId":"t","question":"q","options":["a"],"answer":0}]`, admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var details struct {
		Errors []service.RowError `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &details))
	require.NotEmpty(t, details.Errors)
	assert.Equal(t, 1, details.Errors[0].Row)
}

func TestSessionFlowOverHTTP(t *testing.T) {
	h := newHarness(t)
	test := model.MockTest{Name: "HTTP Mock", IndividualMarks: 2, NegativeMarking: -1, Duration: 5}
	require.NoError(t, h.store.CreateTest(context.Background(), &test))
	var qs []model.Question
	for i := 0; i < 3; i++ {
		qs = append(qs, model.Question{
			TestID: test.ID, Question: fmt.Sprintf("Q%d", i), Options: []string{"a", "b", "c", "d"},
			Answer: i, Difficulty: model.DifficultyEasy,
		})
	}
	require.NoError(t, h.store.CreateQuestions(context.Background(), qs))

	w, env := h.do(t, http.MethodPost, "/api/sessions", map[string]string{"testId": test.ID, "candidateId": "c-1"}, "")
	require.Equal(t, http.StatusCreated, w.Code, env.Message)
	var view struct {
		SessionID string `json:"sessionId"`
		TimeLeft  int    `json:"timeLeft"`
		Questions []struct {
			ID      string   `json:"_id"`
			Options []string `json:"options"`
		} `json:"questions"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, 300, view.TimeLeft)
	require.Len(t, view.Questions, 3)
	assert.NotContains(t, string(env.Data), `"answer"`, "the public view hides the key")

	base := "/api/sessions/" + view.SessionID
	w, _ = h.do(t, http.MethodPost, base+"/select", map[string]string{"questionId": view.Questions[0].ID, "option": "a"}, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = h.do(t, http.MethodPost, base+"/jump", map[string]int{"index": 7}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = h.do(t, http.MethodPost, base+"/select", map[string]string{"questionId": "stranger", "option": "a"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = h.do(t, http.MethodPost, base+"/submit", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var handoff service.Handoff
	require.NoError(t, json.Unmarshal(env.Data, &handoff))
	assert.Equal(t, 3, handoff.Total)
	assert.NotEmpty(t, handoff.AttemptID)

	w, _ = h.do(t, http.MethodPost, base+"/submit", nil, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	w, _ = h.do(t, http.MethodPost, base+"/next", nil, "")
	assert.Equal(t, http.StatusConflict, w.Code)

	// Inflated advisory counts change nothing.
	handoff.Correct, handoff.Unattempted = 3, 0
	w, env = h.do(t, http.MethodPost, "/api/results", handoff, "")
	require.Equal(t, http.StatusOK, w.Code)
	var p service.Presentation
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, 2, p.Unattempted)
	assert.Equal(t, 1, p.Attempted)

	w, env = h.do(t, http.MethodGet, "/api/attempts/"+handoff.AttemptID, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var stored service.Presentation
	require.NoError(t, json.Unmarshal(env.Data, &stored))
	assert.True(t, p.Score.Equal(stored.Score))

	w, _ = h.do(t, http.MethodGet, "/api/sessions/unknown", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStartSessionReattachesOnlyFromToken(t *testing.T) {
	h := newHarness(t)
	test := model.MockTest{Name: "Owned Mock", IndividualMarks: 1, Duration: 5}
	require.NoError(t, h.store.CreateTest(context.Background(), &test))
	require.NoError(t, h.store.CreateQuestions(context.Background(), []model.Question{{
		TestID: test.ID, Question: "Q", Options: []string{"a", "b", "c", "d"}, Difficulty: model.DifficultyEasy,
	}}))

	sessionID := func(env envelope) string {
		var view struct {
			SessionID string `json:"sessionId"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &view))
		return view.SessionID
	}
	tok := token(t, model.Candidate)
	body := map[string]string{"testId": test.ID}

	w, env := h.do(t, http.MethodPost, "/api/sessions", body, tok)
	require.Equal(t, http.StatusCreated, w.Code, env.Message)
	owned := sessionID(env)

	w, env = h.do(t, http.MethodPost, "/api/sessions", body, tok)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, owned, sessionID(env))

	spoofed := map[string]string{"testId": test.ID, "candidateId": string(model.Candidate)}
	w, env = h.do(t, http.MethodPost, "/api/sessions", spoofed, "")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotEqual(t, owned, sessionID(env))
}
