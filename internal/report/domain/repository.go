package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertReport(ctx context.Context, db *gorm.DB, r *Report) error
	UpdateReport(ctx context.Context, db *gorm.DB, r *Report) error
	FindReportByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Report, error)

	// LastCompletedScheduled returns the newest COMPLETED scheduler-run
	// report for a restaurant, or nil.
	LastCompletedScheduled(ctx context.Context, db *gorm.DB, restaurantID snowflake.ID) (*Report, error)

	// HasReportSince reports whether a COMPLETED scheduler-run report for
	// the restaurant was created at or after the given time. Failed passes
	// do not count, so the next tick retries the same period.
	HasReportSince(ctx context.Context, db *gorm.DB, restaurantID snowflake.ID, since time.Time) (bool, error)

	// LinkTranscripts records which transcripts a report consumed.
	LinkTranscripts(ctx context.Context, db *gorm.DB, links []ReportTranscript) error

	// ActivePrompt returns the active prompt for a restaurant. A prompt
	// bound to the restaurant wins over the shared default.
	ActivePrompt(ctx context.Context, db *gorm.DB, restaurantID snowflake.ID) (*ReportPrompt, error)
}
