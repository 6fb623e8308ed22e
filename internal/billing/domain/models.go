package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type BillingStatus string

const (
	StatusTrial    BillingStatus = "TRIAL"
	StatusActive   BillingStatus = "ACTIVE"
	StatusDisabled BillingStatus = "DISABLED"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentRefunded  PaymentStatus = "REFUNDED"
)

// Tariff is a subscription plan. Price is in minor currency units.
type Tariff struct {
	ID                snowflake.ID   `gorm:"primaryKey" json:"id"`
	Name              string         `gorm:"not null" json:"name"`
	Description       string         `json:"description"`
	Price             int64          `gorm:"not null;default:0" json:"price"`
	PeriodDays        int            `gorm:"not null;default:30" json:"period_days"`
	MaxRestaurants    int            `gorm:"not null;default:1" json:"max_restaurants"`
	MaxUsers          int            `gorm:"not null;default:5" json:"max_users"`
	MaxTranscriptions int            `gorm:"not null;default:100" json:"max_transcriptions"`
	IsActive          bool           `gorm:"not null;default:true" json:"is_active"`
	SortOrder         int            `gorm:"not null;default:0" json:"sort_order"`
	CreatedAt         time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`
}

// Billing is the 1:1 subscription state of an organization. Status plus the
// matching timestamp decide whether ingestion is permitted; the usage counter
// resets only on confirmed payment.
type Billing struct {
	ID                 snowflake.ID  `gorm:"primaryKey" json:"id"`
	OrganizationID     snowflake.ID  `gorm:"not null;uniqueIndex" json:"organization_id"`
	Status             BillingStatus `gorm:"not null;default:'TRIAL'" json:"status"`
	TariffID           *snowflake.ID `gorm:"index" json:"tariff_id,omitempty"`
	TrialStartsAt      *time.Time    `json:"trial_starts_at,omitempty"`
	TrialEndsAt        *time.Time    `json:"trial_ends_at,omitempty"`
	ActiveUntil        *time.Time    `json:"active_until,omitempty"`
	TranscriptionsUsed int           `gorm:"not null;default:0" json:"transcriptions_used"`
	CreatedAt          time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt          time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// Payment records one purchase attempt against a tariff.
type Payment struct {
	ID             snowflake.ID  `gorm:"primaryKey" json:"id"`
	OrganizationID snowflake.ID  `gorm:"not null;index" json:"organization_id"`
	TariffID       snowflake.ID  `gorm:"not null" json:"tariff_id"`
	Amount         int64         `gorm:"not null" json:"amount"`
	Status         PaymentStatus `gorm:"not null;default:'PENDING'" json:"status"`
	PeriodStart    time.Time     `gorm:"not null" json:"period_start"`
	PeriodEnd      time.Time     `gorm:"not null" json:"period_end"`
	GatewayOrderID string        `gorm:"index" json:"gateway_order_id,omitempty"`
	GatewayStatus  string        `json:"gateway_status,omitempty"`
	Error          string        `json:"error,omitempty"`
	CompletedAt    *time.Time    `json:"completed_at,omitempty"`
	CreatedAt      time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}
