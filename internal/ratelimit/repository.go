package ratelimit

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	Append(ctx context.Context, db *gorm.DB, log *RateLimitLog) error

	// LastAction returns the newest log row for the actor and action, or
	// nil when the actor has never performed it.
	LastAction(ctx context.Context, db *gorm.DB, actorID int64, action string) (*RateLimitLog, error)

	CountSince(ctx context.Context, db *gorm.DB, actorID int64, action string, since time.Time) (int64, error)

	// CountGlobalSince counts the action across all actors.
	CountGlobalSince(ctx context.Context, db *gorm.DB, action string, since time.Time) (int64, error)

	// RecentActions returns up to limit newest rows for the actor and
	// action since the given time, newest first.
	RecentActions(ctx context.Context, db *gorm.DB, actorID int64, action string, since time.Time, limit int) ([]RateLimitLog, error)

	InsertSuspicious(ctx context.Context, db *gorm.DB, s *SuspiciousActivity) error
}

type repo struct{}

func NewRepository() Repository {
	return &repo{}
}

func (r *repo) Append(ctx context.Context, db *gorm.DB, log *RateLimitLog) error {
	return db.WithContext(ctx).Create(log).Error
}

func (r *repo) LastAction(ctx context.Context, db *gorm.DB, actorID int64, action string) (*RateLimitLog, error) {
	var row RateLimitLog
	err := db.WithContext(ctx).
		Where("actor_id = ? AND action = ?", actorID, action).
		Order("created_at desc").
		First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *repo) CountSince(ctx context.Context, db *gorm.DB, actorID int64, action string, since time.Time) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&RateLimitLog{}).
		Where("actor_id = ? AND action = ? AND created_at >= ?", actorID, action, since).
		Count(&n).Error
	return n, err
}

func (r *repo) CountGlobalSince(ctx context.Context, db *gorm.DB, action string, since time.Time) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&RateLimitLog{}).
		Where("action = ? AND created_at >= ?", action, since).
		Count(&n).Error
	return n, err
}

func (r *repo) RecentActions(ctx context.Context, db *gorm.DB, actorID int64, action string, since time.Time, limit int) ([]RateLimitLog, error) {
	var rows []RateLimitLog
	err := db.WithContext(ctx).
		Where("actor_id = ? AND action = ? AND created_at >= ?", actorID, action, since).
		Order("created_at desc").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repo) InsertSuspicious(ctx context.Context, db *gorm.DB, s *SuspiciousActivity) error {
	return db.WithContext(ctx).Create(s).Error
}
