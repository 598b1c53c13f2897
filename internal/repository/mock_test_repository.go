package repository

import (
	"context"
	"errors"

	"mocktest_backend/internal/model"

	"gorm.io/gorm"
)

// MockTestRepository is the relational TestStore.
type MockTestRepository struct {
	DB *gorm.DB
}

func NewMockTestRepository(db *gorm.DB) *MockTestRepository {
	return &MockTestRepository{DB: db}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (r *MockTestRepository) CreateTest(ctx context.Context, test *model.MockTest) error {
	return r.DB.WithContext(ctx).Create(test).Error
}

func (r *MockTestRepository) FindTestByID(ctx context.Context, id string) (*model.MockTest, error) {
	var test model.MockTest
	if err := r.DB.WithContext(ctx).First(&test, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &test, nil
}

func (r *MockTestRepository) ListTests(ctx context.Context) ([]model.MockTest, error) {
	var tests []model.MockTest
	err := r.DB.WithContext(ctx).Order("created_at desc").Find(&tests).Error
	return tests, err
}

func (r *MockTestRepository) CreateQuestion(ctx context.Context, q *model.Question) error {
	return r.DB.WithContext(ctx).Create(q).Error
}

// CreateQuestions inserts the whole batch or nothing.
func (r *MockTestRepository) CreateQuestions(ctx context.Context, qs []model.Question) error {
	if len(qs) == 0 {
		return nil
	}
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(&qs, 100).Error
	})
}

func (r *MockTestRepository) ListQuestions(ctx context.Context, testID string) ([]model.Question, error) {
	var qs []model.Question
	err := r.DB.WithContext(ctx).Where("test_id = ?", testID).Order("created_at asc").Find(&qs).Error
	return qs, err
}

func (r *MockTestRepository) ListAllQuestions(ctx context.Context) ([]model.Question, error) {
	var qs []model.Question
	err := r.DB.WithContext(ctx).Order("created_at asc").Find(&qs).Error
	return qs, err
}

func (r *MockTestRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
