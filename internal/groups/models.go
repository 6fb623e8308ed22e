package groups

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ActionType string

const (
	ActionCreateGroup  ActionType = "CREATE_GROUP"
	ActionAddUser      ActionType = "ADD_USER"
	ActionPromoteAdmin ActionType = "PROMOTE_ADMIN"
)

type ActionStatus string

const (
	ActionOK     ActionStatus = "OK"
	ActionFailed ActionStatus = "FAILED"
)

// GroupAction is one audited step of group provisioning. Rows are written
// for successes and failures alike so provisioning can be replayed by hand.
type GroupAction struct {
	ID           snowflake.ID `gorm:"primarykey" json:"id"`
	RestaurantID snowflake.ID `gorm:"index;not null" json:"restaurant_id"`
	Action       ActionType   `gorm:"not null" json:"action"`
	Target       string       `json:"target,omitempty"`
	Status       ActionStatus `gorm:"not null" json:"status"`
	Error        string       `json:"error,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

type Repository interface {
	InsertAction(ctx context.Context, db *gorm.DB, a *GroupAction) error
	ListActions(ctx context.Context, db *gorm.DB, restaurantID snowflake.ID) ([]GroupAction, error)
}

type repo struct{}

func NewRepository() Repository {
	return &repo{}
}

func (r *repo) InsertAction(ctx context.Context, db *gorm.DB, a *GroupAction) error {
	return db.WithContext(ctx).Create(a).Error
}

func (r *repo) ListActions(ctx context.Context, db *gorm.DB, restaurantID snowflake.ID) ([]GroupAction, error) {
	var out []GroupAction
	err := db.WithContext(ctx).
		Where("restaurant_id = ?", restaurantID).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}
