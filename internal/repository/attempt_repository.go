package repository

import (
	"context"

	"mocktest_backend/internal/model"

	"gorm.io/gorm"
)

type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

func (r *AttemptRepository) CreateAttempt(ctx context.Context, a *model.TestAttempt) error {
	return r.DB.WithContext(ctx).Create(a).Error
}

func (r *AttemptRepository) FindAttemptByID(ctx context.Context, id string) (*model.TestAttempt, error) {
	var a model.TestAttempt
	if err := r.DB.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

// ListAttempts pages through attempts, newest first. An empty testID lists all.
func (r *AttemptRepository) ListAttempts(ctx context.Context, testID string, page, limit int) ([]model.TestAttempt, int64, error) {
	query := r.DB.WithContext(ctx).Model(&model.TestAttempt{})
	if testID != "" {
		query = query.Where("test_id = ?", testID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var attempts []model.TestAttempt
	offset := (page - 1) * limit
	err := query.Order("submitted_at desc").Offset(offset).Limit(limit).Find(&attempts).Error
	return attempts, total, err
}
