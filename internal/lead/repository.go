package lead

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type Repository interface {
	Upsert(ctx context.Context, db *gorm.DB, l *Lead) error
	FindByTelegramID(ctx context.Context, db *gorm.DB, telegramID int64) (*Lead, error)
	Update(ctx context.Context, db *gorm.DB, l *Lead) error
}

type repo struct{}

func NewRepository() Repository {
	return &repo{}
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, l *Lead) error {
	existing, err := r.FindByTelegramID(ctx, db, l.TelegramID)
	if err != nil {
		return err
	}
	if existing == nil {
		return db.WithContext(ctx).Create(l).Error
	}
	l.ID = existing.ID
	l.CreatedAt = existing.CreatedAt
	return db.WithContext(ctx).Save(l).Error
}

func (r *repo) FindByTelegramID(ctx context.Context, db *gorm.DB, telegramID int64) (*Lead, error) {
	var l Lead
	err := db.WithContext(ctx).First(&l, "telegram_id = ?", telegramID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, l *Lead) error {
	return db.WithContext(ctx).Save(l).Error
}
