package repository

import (
	"context"
	"errors"

	"mocktest_backend/internal/model"
)

// ErrNotFound is returned by every store when a lookup matches nothing.
var ErrNotFound = errors.New("record not found")

type TestStore interface {
	CreateTest(ctx context.Context, test *model.MockTest) error
	FindTestByID(ctx context.Context, id string) (*model.MockTest, error)
	ListTests(ctx context.Context) ([]model.MockTest, error)
	CreateQuestion(ctx context.Context, q *model.Question) error
	CreateQuestions(ctx context.Context, qs []model.Question) error
	ListQuestions(ctx context.Context, testID string) ([]model.Question, error)
	ListAllQuestions(ctx context.Context) ([]model.Question, error)
}

type AttemptStore interface {
	CreateAttempt(ctx context.Context, a *model.TestAttempt) error
	FindAttemptByID(ctx context.Context, id string) (*model.TestAttempt, error)
	ListAttempts(ctx context.Context, testID string, page, limit int) ([]model.TestAttempt, int64, error)
}

type UserStore interface {
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	CreateUser(ctx context.Context, u *model.User) error
}

// Pinger is implemented by stores that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}
