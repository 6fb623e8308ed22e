package ratelimit

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// RateLimitLog is one recorded action. Counting rows in sliding windows is
// the whole limiter state, so rows must never be updated in place.
type RateLimitLog struct {
	ID        snowflake.ID `gorm:"primarykey" json:"id"`
	ActorID   int64        `gorm:"index:idx_rl_actor_action;not null" json:"actor_id"`
	Action    string       `gorm:"index:idx_rl_actor_action;not null" json:"action"`
	CreatedAt time.Time    `gorm:"index" json:"created_at"`
}

const (
	ReasonUniformIntervals = "UNIFORM_INTERVALS"
	ReasonTooFast          = "TOO_FAST"
)

// SuspiciousActivity records a heuristic hit for later review. Detection
// never blocks the action itself.
type SuspiciousActivity struct {
	ID        snowflake.ID `gorm:"primarykey" json:"id"`
	ActorID   int64        `gorm:"index;not null" json:"actor_id"`
	Action    string       `gorm:"not null" json:"action"`
	Reason    string       `gorm:"not null" json:"reason"`
	Details   string       `json:"details,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}
