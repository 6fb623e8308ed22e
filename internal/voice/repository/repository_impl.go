package repository

import (
	"context"
	"time"

	"github.com/Stugi/resto-worker/internal/voice/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertVoiceMessage(ctx context.Context, db *gorm.DB, vm *domain.VoiceMessage) error {
	return db.WithContext(ctx).Create(vm).Error
}

func (r *repo) UpdateVoiceMessage(ctx context.Context, db *gorm.DB, vm *domain.VoiceMessage) error {
	return db.WithContext(ctx).Save(vm).Error
}

func (r *repo) FindVoiceMessageByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.VoiceMessage, error) {
	var vm domain.VoiceMessage
	err := db.WithContext(ctx).First(&vm, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &vm, nil
}

func (r *repo) InsertTranscript(ctx context.Context, db *gorm.DB, t *domain.Transcript) error {
	return db.WithContext(ctx).Create(t).Error
}

func (r *repo) UpdateTranscript(ctx context.Context, db *gorm.DB, t *domain.Transcript) error {
	return db.WithContext(ctx).Save(t).Error
}

func (r *repo) TranscriptsInWindow(ctx context.Context, db *gorm.DB, restaurantID snowflake.ID, from, to time.Time) ([]domain.Transcript, error) {
	var out []domain.Transcript
	err := db.WithContext(ctx).
		Where("restaurant_id = ?", restaurantID).
		Where("created_at >= ? AND created_at < ?", from, to).
		Where("id NOT IN (SELECT transcript_id FROM report_transcripts)").
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

func (r *repo) Unclassified(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]domain.Transcript, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []domain.Transcript
	err := db.WithContext(ctx).
		Where("id IN ?", ids).
		Where("classified_at IS NULL").
		Find(&out).Error
	return out, err
}
