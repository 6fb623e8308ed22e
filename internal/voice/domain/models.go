package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type VoiceStatus string

const (
	VoiceReceived     VoiceStatus = "RECEIVED"
	VoiceTranscribing VoiceStatus = "TRANSCRIBING"
	VoiceTranscribed  VoiceStatus = "TRANSCRIBED"
	VoiceFailed       VoiceStatus = "FAILED"
)

// VoiceMessage tracks one voice recording through the pipeline. Rows stay
// after completion so failed messages can be inspected.
type VoiceMessage struct {
	ID                snowflake.ID `gorm:"primarykey" json:"id"`
	RestaurantID      snowflake.ID `gorm:"index;not null" json:"restaurant_id"`
	OrganizationID    snowflake.ID `gorm:"index;not null" json:"organization_id"`
	ChatID            int64        `gorm:"not null;uniqueIndex:idx_voice_chat_msg" json:"chat_id"`
	TelegramMessageID int          `gorm:"not null;uniqueIndex:idx_voice_chat_msg" json:"telegram_message_id"`
	TelegramFileID    string       `gorm:"not null" json:"telegram_file_id"`
	SenderID          int64        `json:"sender_id"`
	Duration          int          `json:"duration"`
	FileSize          int64        `json:"file_size"`
	MimeType          string       `json:"mime_type,omitempty"`
	Status            VoiceStatus  `gorm:"not null;default:'RECEIVED';index" json:"status"`
	Error             string       `json:"error,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// Transcript is text produced from a voice message. Classification fields
// stay empty until a report pass picks the row up; ClassifiedAt is the
// marker that separates the two phases.
type Transcript struct {
	ID             snowflake.ID                 `gorm:"primarykey" json:"id"`
	VoiceMessageID snowflake.ID                 `gorm:"uniqueIndex;not null" json:"voice_message_id"`
	RestaurantID   snowflake.ID                 `gorm:"index;not null" json:"restaurant_id"`
	OrganizationID snowflake.ID                 `gorm:"index;not null" json:"organization_id"`
	Text           string                       `gorm:"not null" json:"text"`
	Sentiment      string                       `json:"sentiment,omitempty"`
	Category       string                       `json:"category,omitempty"`
	Subcategory    string                       `json:"subcategory,omitempty"`
	Dishes         datatypes.JSONSlice[string]  `json:"dishes,omitempty"`
	Severity       int                          `json:"severity,omitempty"`
	ProblemTypes   datatypes.JSONSlice[string]  `json:"problem_types,omitempty"`
	ClassifiedAt   *time.Time                   `gorm:"index" json:"classified_at,omitempty"`
	CreatedAt      time.Time                    `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time                    `json:"updated_at"`
}
