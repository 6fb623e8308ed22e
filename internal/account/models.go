package account

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

const (
	RoleOwner      = "OWNER"
	RoleManager    = "MANAGER"
	RoleSuperAdmin = "SUPER_ADMIN"
)

// Account is a fully onboarded actor. The conversation state field is reused
// after onboarding for support-ticket sub-flows.
type Account struct {
	ID             snowflake.ID   `gorm:"primaryKey" json:"id"`
	TelegramID     int64          `gorm:"not null;uniqueIndex" json:"telegram_id"`
	Phone          string         `gorm:"index" json:"phone"`
	Name           string         `json:"name"`
	Role           string         `gorm:"not null;default:'OWNER'" json:"role"`
	State          string         `gorm:"not null;default:'COMPLETED'" json:"state"`
	OrganizationID *snowflake.ID  `gorm:"index" json:"organization_id,omitempty"`
	RestaurantID   *snowflake.ID  `gorm:"index" json:"restaurant_id,omitempty"`
	CreatedAt      time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}
