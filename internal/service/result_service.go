package service

import (
	"context"
	"errors"

	"mocktest_backend/internal/config"
	"mocktest_backend/internal/model"
	"mocktest_backend/internal/repository"
	"mocktest_backend/internal/scoring"
	"mocktest_backend/internal/session"
	"mocktest_backend/internal/util"
	"mocktest_backend/pkg/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultTitle = "Mock Test"

type HandoffQuestion struct {
	ID         string           `json:"_id"`
	Question   string           `json:"question"`
	Options    []string         `json:"options"`
	Answer     int              `json:"answer"`
	Difficulty model.Difficulty `json:"difficulty,omitempty"`
	Subjects   []string         `json:"subjects,omitempty"`
	ImageURL   *string          `json:"imageUrl,omitempty"`
}

// Handoff is what a submitted session passes on to the result page.
// Correct, Total and Unattempted are informational only and never used
// for scoring.
type Handoff struct {
	UserAnswers map[string]string `json:"userAnswers"`
	Questions   []HandoffQuestion `json:"questions"`
	Title       string            `json:"title"`
	ID          string            `json:"id"`
	Correct     int               `json:"correct"`
	Total       int               `json:"total"`
	Unattempted int               `json:"unattempted"`
	AttemptID   string            `json:"attemptId,omitempty"`
}

func handoffQuestion(q model.Question) HandoffQuestion {
	return HandoffQuestion{
		ID:         q.ID,
		Question:   q.Question,
		Options:    append([]string(nil), q.Options...),
		Answer:     q.Answer,
		Difficulty: q.Difficulty,
		Subjects:   append([]string(nil), q.Subjects...),
		ImageURL:   q.ImageURL,
	}
}

func NewHandoff(out session.Outcome) Handoff {
	qs := make([]HandoffQuestion, len(out.Questions))
	for i, q := range out.Questions {
		qs[i] = handoffQuestion(q)
	}
	answers := out.State.Answers
	if answers == nil {
		answers = map[string]string{}
	}
	return Handoff{
		UserAnswers: answers,
		Questions:   qs,
		Title:       out.Test.Name,
		ID:          out.Test.ID,
		Correct:     out.Result.Correct,
		Total:       out.Result.Total,
		Unattempted: out.Result.Skipped,
		AttemptID:   out.AttemptID,
	}
}

type ResultQuestion struct {
	ID            string          `json:"_id"`
	Question      string          `json:"question"`
	Options       []string        `json:"options"`
	Subjects      []string        `json:"subjects,omitempty"`
	ImageURL      *string         `json:"imageUrl,omitempty"`
	Selected      *string         `json:"selected"`
	CorrectOption string          `json:"correctOption"`
	Status        scoring.Status  `json:"status"`
	ScoreImpact   decimal.Decimal `json:"scoreImpact"`
}

// Presentation is a rendered result. Every number in it is recomputed.
type Presentation struct {
	TestID           string           `json:"testId"`
	AttemptID        string           `json:"attemptId,omitempty"`
	Title            string           `json:"title"`
	Duration         int              `json:"duration"`
	IndividualMarks  float64          `json:"individualMarks"`
	NegativeMarking  float64          `json:"negativeMarking"`
	MetadataFallback bool             `json:"metadataFallback"`
	Total            int              `json:"total"`
	Attempted        int              `json:"attempted"`
	Correct          int              `json:"correct"`
	Wrong            int              `json:"wrong"`
	Unattempted      int              `json:"unattempted"`
	Score            decimal.Decimal  `json:"score"`
	MaxScore         decimal.Decimal  `json:"maxScore"`
	Percentage       decimal.Decimal  `json:"percentage"`
	Questions        []ResultQuestion `json:"questions"`
}

type ResultService struct {
	Tests    *TestService
	Attempts repository.AttemptStore
	Defaults func() config.SessionConfig
}

func NewResultService(tests *TestService, attempts repository.AttemptStore, defaults func() config.SessionConfig) *ResultService {
	return &ResultService{Tests: tests, Attempts: attempts, Defaults: defaults}
}

// metadata fetches display data for a test. When the test cannot be read
// the handoff title and the configured default marks stand in.
func (s *ResultService) metadata(ctx context.Context, testID, title string) (model.MockTest, bool) {
	if testID != "" {
		test, err := s.Tests.GetTest(ctx, testID)
		if err == nil {
			return *test, false
		}
		logger.Log.Warn("result metadata unavailable", zap.String("test_id", testID), zap.Error(err))
	}
	d := s.Defaults()
	if title == "" {
		title = defaultTitle
	}
	test := model.MockTest{
		Name:            title,
		IndividualMarks: d.DefaultMarks,
		NegativeMarking: d.DefaultNegativeMarks,
		Duration:        d.DefaultDurationMinutes,
	}
	test.ID = testID
	return test, true
}

// answerKey returns the stored questions of a test by id. Errors leave the
// caller with the key it was handed.
func (s *ResultService) answerKey(ctx context.Context, testID string) map[string]model.Question {
	if testID == "" {
		return nil
	}
	qs, err := s.Tests.Store.ListQuestions(ctx, testID)
	if err != nil {
		logger.Log.Debug("stored answer key unavailable", zap.String("test_id", testID), zap.Error(err))
		return nil
	}
	out := make(map[string]model.Question, len(qs))
	for _, q := range qs {
		out[q.ID] = q
	}
	return out
}

// Present renders a handoff. The score is recomputed from its questions and
// answers; where the store still holds a question, the stored answer key wins.
func (s *ResultService) Present(ctx context.Context, h Handoff) (*Presentation, error) {
	test, fallback := s.metadata(ctx, h.ID, h.Title)

	qs := h.Questions
	if key := s.answerKey(ctx, h.ID); len(key) > 0 {
		qs = make([]HandoffQuestion, len(h.Questions))
		for i, q := range h.Questions {
			if stored, ok := key[q.ID]; ok {
				q.Options = append([]string(nil), stored.Options...)
				q.Answer = stored.Answer
			}
			qs[i] = q
		}
	}

	p := render(test, qs, h.UserAnswers, scoring.NewMarks(test.IndividualMarks, test.NegativeMarking))
	p.MetadataFallback = fallback
	p.AttemptID = h.AttemptID

	if len(h.Questions) > 0 && (h.Correct != p.Correct || h.Total != p.Total || h.Unattempted != p.Unattempted) {
		logger.Log.Warn("handoff totals disagree with recomputed result",
			zap.String("test_id", h.ID),
			zap.Int("handoff_correct", h.Correct),
			zap.Int("correct", p.Correct),
		)
	}
	return p, nil
}

// PresentAttempt re-renders a stored attempt using the marks it was taken
// with.
func (s *ResultService) PresentAttempt(ctx context.Context, id string) (*Presentation, error) {
	attempt, err := s.Attempts.FindAttemptByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, util.ErrAttemptNotFound
	}
	if err != nil {
		return nil, err
	}

	test, fallback := s.metadata(ctx, attempt.TestID, attempt.Title)
	if attempt.Title != "" {
		test.Name = attempt.Title
	}
	key := s.answerKey(ctx, attempt.TestID)
	qs := make([]HandoffQuestion, 0, len(attempt.QuestionIDs))
	for _, qid := range attempt.QuestionIDs {
		q, ok := key[qid]
		if !ok {
			logger.Log.Warn("attempt question no longer stored", zap.String("attempt_id", id), zap.String("question_id", qid))
			continue
		}
		qs = append(qs, handoffQuestion(q))
	}

	test.IndividualMarks = attempt.IndividualMarks
	test.NegativeMarking = attempt.NegativeMarking
	p := render(test, qs, attempt.AnswerMap(), scoring.NewMarks(attempt.IndividualMarks, attempt.NegativeMarking))
	p.MetadataFallback = fallback
	p.AttemptID = attempt.ID
	return p, nil
}

func (s *ResultService) ListAttempts(ctx context.Context, testID string, page, limit int) ([]model.TestAttempt, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.Attempts.ListAttempts(ctx, testID, page, limit)
}

func render(test model.MockTest, qs []HandoffQuestion, answers map[string]string, marks scoring.Marks) *Presentation {
	items := make([]scoring.Item, len(qs))
	for i, q := range qs {
		items[i] = scoring.Item{ID: q.ID, Options: q.Options, Answer: q.Answer}
	}
	res := scoring.Score(items, answers, marks)

	out := make([]ResultQuestion, len(qs))
	for i, q := range qs {
		ir := res.Items[i]
		out[i] = ResultQuestion{
			ID:            q.ID,
			Question:      q.Question,
			Options:       q.Options,
			Subjects:      q.Subjects,
			ImageURL:      q.ImageURL,
			Selected:      ir.Selected,
			CorrectOption: ir.CorrectOption,
			Status:        ir.Status,
			ScoreImpact:   ir.ScoreImpact,
		}
	}

	return &Presentation{
		TestID:          test.ID,
		Title:           test.Name,
		Duration:        test.Duration,
		IndividualMarks: test.IndividualMarks,
		NegativeMarking: test.NegativeMarking,
		Total:           res.Total,
		Attempted:       res.Attempted,
		Correct:         res.Correct,
		Wrong:           res.Wrong,
		Unattempted:     res.Skipped,
		Score:           res.Obtained,
		MaxScore:        res.MaxScore,
		Percentage:      res.Percentage,
		Questions:       out,
	}
}
