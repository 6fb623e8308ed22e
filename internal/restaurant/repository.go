package restaurant

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, rest *Restaurant) error
	Update(ctx context.Context, db *gorm.DB, rest *Restaurant) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Restaurant, error)
	FindByChatID(ctx context.Context, db *gorm.DB, chatID int64) (*Restaurant, error)
	ListScheduled(ctx context.Context, db *gorm.DB) ([]*Restaurant, error)
	BindChat(ctx context.Context, db *gorm.DB, id snowflake.ID, chatID int64, title string) error
}

type repo struct{}

func NewRepository() Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, rest *Restaurant) error {
	return db.WithContext(ctx).Create(rest).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, rest *Restaurant) error {
	return db.WithContext(ctx).Save(rest).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Restaurant, error) {
	var rest Restaurant
	err := db.WithContext(ctx).First(&rest, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rest, nil
}

func (r *repo) FindByChatID(ctx context.Context, db *gorm.DB, chatID int64) (*Restaurant, error) {
	var rest Restaurant
	err := db.WithContext(ctx).First(&rest, "chat_id = ?", chatID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rest, nil
}

// ListScheduled returns restaurants with any schedule payload. The schedule
// itself is re-validated by the caller; this only prunes the obvious
// non-candidates server-side.
func (r *repo) ListScheduled(ctx context.Context, db *gorm.DB) ([]*Restaurant, error) {
	var rests []*Restaurant
	err := db.WithContext(ctx).
		Where("schedule IS NOT NULL AND schedule != '' AND schedule != 'null'").
		Find(&rests).Error
	if err != nil {
		return nil, err
	}
	return rests, nil
}

func (r *repo) BindChat(ctx context.Context, db *gorm.DB, id snowflake.ID, chatID int64, title string) error {
	return db.WithContext(ctx).
		Model(&Restaurant{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"chat_id":    chatID,
			"chat_title": title,
		}).Error
}
