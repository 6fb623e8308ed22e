package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type ReportStatus string

const (
	ReportPending   ReportStatus = "PENDING"
	ReportCompleted ReportStatus = "COMPLETED"
	ReportFailed    ReportStatus = "FAILED"
)

type Trigger string

const (
	TriggerScheduler Trigger = "SCHEDULER"
	TriggerManual    Trigger = "MANUAL"
)

// Report is one generated digest of guest feedback for a restaurant over a
// period. Period boundaries chain: the next scheduled report starts where
// the last completed one ended.
type Report struct {
	ID             snowflake.ID  `gorm:"primarykey" json:"id"`
	RestaurantID   snowflake.ID  `gorm:"index;not null" json:"restaurant_id"`
	OrganizationID snowflake.ID  `gorm:"index;not null" json:"organization_id"`
	PromptID       *snowflake.ID `gorm:"index" json:"prompt_id,omitempty"`
	Title          string        `json:"title,omitempty"`
	PeriodStart    time.Time     `gorm:"not null" json:"period_start"`
	PeriodEnd      time.Time     `gorm:"not null" json:"period_end"`
	Status         ReportStatus  `gorm:"not null;default:'PENDING';index" json:"status"`
	TriggeredBy    Trigger       `gorm:"not null;default:'SCHEDULER'" json:"triggered_by"`
	Content        string        `json:"content,omitempty"`
	Summary        string        `json:"summary,omitempty"`
	Model          string        `json:"model,omitempty"`
	TokensUsed     int           `json:"tokens_used"`
	GenerationMs   int64         `json:"generation_ms"`
	Error          string        `json:"error,omitempty"`
	CreatedAt      time.Time     `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// ReportPrompt is the template a report is compiled from. Placeholders
// {restaurant_name}, {period_start}, {period_end} and {transcripts} are
// substituted at generation time. A row with a RestaurantID overrides the
// default prompt for that restaurant only.
type ReportPrompt struct {
	ID           snowflake.ID  `gorm:"primarykey" json:"id"`
	Name         string        `gorm:"not null" json:"name"`
	Template     string        `gorm:"not null" json:"template"`
	RestaurantID *snowflake.ID `gorm:"index" json:"restaurant_id,omitempty"`
	IsDefault    bool          `gorm:"not null;default:false" json:"is_default"`
	IsActive     bool          `gorm:"not null;default:false;index" json:"is_active"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// ReportTranscript links a transcript to the report that consumed it. The
// unique index on transcript_id is what makes reports non-overlapping.
type ReportTranscript struct {
	ID           snowflake.ID `gorm:"primarykey" json:"id"`
	ReportID     snowflake.ID `gorm:"index;not null" json:"report_id"`
	TranscriptID snowflake.ID `gorm:"uniqueIndex;not null" json:"transcript_id"`
	CreatedAt    time.Time    `json:"created_at"`
}
