package restaurant

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ReportSchedule configures automatic report generation for one restaurant.
// Days use ISO numbering: 1=Monday .. 7=Sunday. Time is "HH:MM" local to the
// deployment timezone.
type ReportSchedule struct {
	Days []int  `json:"days"`
	Time string `json:"time"`
}

// Matches reports whether the schedule fires at now, given the trigger
// cadence as tolerance. The window check must be at least as wide as the
// cadence or eligible runs get missed between ticks.
func (s ReportSchedule) Matches(now time.Time, tolerance time.Duration) bool {
	if len(s.Days) == 0 || s.Time == "" {
		return false
	}

	dow := int(now.Weekday())
	if dow == 0 {
		dow = 7
	}
	dayOK := false
	for _, d := range s.Days {
		if d == dow {
			dayOK = true
			break
		}
	}
	if !dayOK {
		return false
	}

	var hour, minute int
	if _, err := fmt.Sscanf(s.Time, "%d:%d", &hour, &minute); err != nil {
		return false
	}
	target := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	diff := now.Sub(target)
	return diff >= 0 && diff < tolerance
}

// Restaurant belongs to exactly one organization. A restaurant without a
// bound chat cannot receive voice messages.
type Restaurant struct {
	ID             snowflake.ID                         `gorm:"primaryKey" json:"id"`
	OrganizationID snowflake.ID                         `gorm:"not null;index" json:"organization_id"`
	Name           string                               `gorm:"not null" json:"name"`
	ChatID         *int64                               `gorm:"uniqueIndex" json:"chat_id,omitempty"`
	ChatTitle      string                               `json:"chat_title,omitempty"`
	Schedule       datatypes.JSONType[ReportSchedule]   `json:"schedule"`
	Address        string                               `json:"address,omitempty"`
	Phone          string                               `json:"phone,omitempty"`
	WorkingHours   string                               `json:"working_hours,omitempty"`
	CreatedBy      int64                                `gorm:"not null" json:"created_by"`
	CreatedAt      time.Time                            `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time                            `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt      gorm.DeletedAt                       `gorm:"index" json:"-"`
}

// Bound reports whether a chat group is attached.
func (r *Restaurant) Bound() bool {
	return r != nil && r.ChatID != nil && *r.ChatID != 0
}
