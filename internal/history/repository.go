package history

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, attempt *BookingAttempt) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]BookingAttempt, int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, attempt *BookingAttempt) error {
	return r.db.WithContext(ctx).Create(attempt).Error
}

func (r *repository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]BookingAttempt, int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&BookingAttempt{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	var attempts []BookingAttempt
	err = r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&attempts).Error
	if err != nil {
		return nil, 0, err
	}
	return attempts, total, nil
}
