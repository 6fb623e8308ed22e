package account

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, a *Account) error
	FindByTelegramID(ctx context.Context, db *gorm.DB, telegramID int64) (*Account, error)
	// FindByPhoneWithOrg returns an account holding the phone with a non-nil
	// organization, or nil. This backs the "one phone funds one organization"
	// pre-provisioning check.
	FindByPhoneWithOrg(ctx context.Context, db *gorm.DB, phone string) (*Account, error)
	FindOwnerByOrganization(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (*Account, error)
}

type repo struct{}

func NewRepository() Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, a *Account) error {
	return db.WithContext(ctx).Create(a).Error
}

func (r *repo) FindByTelegramID(ctx context.Context, db *gorm.DB, telegramID int64) (*Account, error) {
	var a Account
	err := db.WithContext(ctx).First(&a, "telegram_id = ?", telegramID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *repo) FindByPhoneWithOrg(ctx context.Context, db *gorm.DB, phone string) (*Account, error) {
	var a Account
	err := db.WithContext(ctx).
		Where("phone = ? AND organization_id IS NOT NULL", phone).
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *repo) FindOwnerByOrganization(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (*Account, error) {
	var a Account
	err := db.WithContext(ctx).
		Where("organization_id = ? AND role = ?", orgID, RoleOwner).
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}
