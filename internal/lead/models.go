package lead

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Onboarding conversation states, in flow order.
const (
	StateWaitingStart   = "WAITING_START"
	StateWaitingContact = "WAITING_CONTACT"
	StateWaitingName    = "WAITING_NAME"
	StateWaitingScale   = "WAITING_SCALE"
	StateWaitingConfirm = "WAITING_CONFIRM"
	StateCompleted      = "COMPLETED"
)

// Lead is a contact that began onboarding. Leads are never hard-deleted:
// unconverted rows feed funnel analytics.
type Lead struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	TelegramID int64        `gorm:"not null;uniqueIndex" json:"telegram_id"`
	FirstName  string       `json:"first_name"`
	Phone      string       `json:"phone"`
	OrgName    string       `json:"org_name"`
	ScaleTier  string       `json:"scale_tier"`
	State      string       `gorm:"not null;default:'WAITING_START'" json:"state"`
	Converted  bool         `gorm:"not null;default:false" json:"converted"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}
