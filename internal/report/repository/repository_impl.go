package repository

import (
	"context"
	"time"

	"github.com/Stugi/resto-worker/internal/report/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertReport(ctx context.Context, db *gorm.DB, rep *domain.Report) error {
	return db.WithContext(ctx).Create(rep).Error
}

func (r *repo) UpdateReport(ctx context.Context, db *gorm.DB, rep *domain.Report) error {
	return db.WithContext(ctx).Save(rep).Error
}

func (r *repo) FindReportByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Report, error) {
	var rep domain.Report
	err := db.WithContext(ctx).First(&rep, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &rep, nil
}

func (r *repo) LastCompletedScheduled(ctx context.Context, db *gorm.DB, restaurantID snowflake.ID) (*domain.Report, error) {
	var rep domain.Report
	err := db.WithContext(ctx).
		Where("restaurant_id = ? AND status = ? AND triggered_by = ?",
			restaurantID, domain.ReportCompleted, domain.TriggerScheduler).
		Order("period_end desc").
		First(&rep).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &rep, nil
}

func (r *repo) HasReportSince(ctx context.Context, db *gorm.DB, restaurantID snowflake.ID, since time.Time) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Report{}).
		Where("restaurant_id = ? AND status = ? AND triggered_by = ? AND created_at >= ?",
			restaurantID, domain.ReportCompleted, domain.TriggerScheduler, since).
		Count(&n).Error
	return n > 0, err
}

func (r *repo) LinkTranscripts(ctx context.Context, db *gorm.DB, links []domain.ReportTranscript) error {
	if len(links) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&links).Error
}

func (r *repo) ActivePrompt(ctx context.Context, db *gorm.DB, restaurantID snowflake.ID) (*domain.ReportPrompt, error) {
	var p domain.ReportPrompt
	err := db.WithContext(ctx).
		Where("is_active = ? AND (restaurant_id = ? OR restaurant_id IS NULL)", true, restaurantID).
		Order("restaurant_id IS NULL").
		Order("updated_at desc").
		First(&p).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}
