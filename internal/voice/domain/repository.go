package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertVoiceMessage(ctx context.Context, db *gorm.DB, vm *VoiceMessage) error
	UpdateVoiceMessage(ctx context.Context, db *gorm.DB, vm *VoiceMessage) error
	FindVoiceMessageByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*VoiceMessage, error)

	InsertTranscript(ctx context.Context, db *gorm.DB, t *Transcript) error
	UpdateTranscript(ctx context.Context, db *gorm.DB, t *Transcript) error

	// TranscriptsInWindow returns transcripts for a restaurant created
	// inside [from, to) that are not yet linked to any report.
	TranscriptsInWindow(ctx context.Context, db *gorm.DB, restaurantID snowflake.ID, from, to time.Time) ([]Transcript, error)

	// Unclassified returns transcripts from the given set that still lack
	// a classification.
	Unclassified(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]Transcript, error)
}
