package service

import (
	"context"
	"errors"
	"fmt"

	"mocktest_backend/internal/model"
	"mocktest_backend/internal/repository"
	"mocktest_backend/internal/util"
)

// TestService is the read and create side of the test catalogue.
type TestService struct {
	Store repository.TestStore
}

func NewTestService(store repository.TestStore) *TestService {
	return &TestService{Store: store}
}

type CreateTestReq struct {
	Name            string   `json:"name" binding:"required"`
	IndividualMarks *float64 `json:"individualMarks" binding:"omitempty,gte=0"`
	NegativeMarking *float64 `json:"negativeMarking"`
	Duration        int      `json:"duration" binding:"required,gt=0"`
}

func (s *TestService) CreateTest(ctx context.Context, req CreateTestReq) (*model.MockTest, error) {
	test := &model.MockTest{
		Name:            req.Name,
		IndividualMarks: 1,
		Duration:        req.Duration,
	}
	if req.IndividualMarks != nil {
		test.IndividualMarks = *req.IndividualMarks
	}
	if req.NegativeMarking != nil {
		test.NegativeMarking = *req.NegativeMarking
	}
	if err := s.Store.CreateTest(ctx, test); err != nil {
		return nil, err
	}
	return test, nil
}

func (s *TestService) ListTests(ctx context.Context) ([]model.MockTest, error) {
	return s.Store.ListTests(ctx)
}

func (s *TestService) GetTest(ctx context.Context, id string) (*model.MockTest, error) {
	test, err := s.Store.FindTestByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, util.ErrTestNotFound
	}
	return test, err
}

// Questions returns a test's questions, or ErrNoQuestions when there are none.
func (s *TestService) Questions(ctx context.Context, testID string) ([]model.Question, error) {
	qs, err := s.Store.ListQuestions(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrStoreUnavailable, err)
	}
	if len(qs) == 0 {
		return nil, util.ErrNoQuestions
	}
	return qs, nil
}

// PublicQuestions is Questions with the answer key removed.
func (s *TestService) PublicQuestions(ctx context.Context, testID string) ([]model.PublicQuestion, error) {
	qs, err := s.Questions(ctx, testID)
	if err != nil {
		return nil, err
	}
	out := make([]model.PublicQuestion, len(qs))
	for i := range qs {
		out[i] = qs[i].Public()
	}
	return out, nil
}

func (s *TestService) AllQuestions(ctx context.Context) ([]model.Question, error) {
	return s.Store.ListAllQuestions(ctx)
}
