package repository

import (
	"context"
	"errors"

	"github.com/Stugi/resto-worker/internal/billing/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertBilling(ctx context.Context, db *gorm.DB, b *domain.Billing) error {
	return db.WithContext(ctx).Create(b).Error
}

func (r *repo) FindBillingByOrg(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (*domain.Billing, error) {
	var b domain.Billing
	err := db.WithContext(ctx).First(&b, "organization_id = ?", orgID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *repo) UpdateBilling(ctx context.Context, db *gorm.DB, b *domain.Billing) error {
	return db.WithContext(ctx).Save(b).Error
}

func (r *repo) IncrementUsage(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE billings
		 SET transcriptions_used = transcriptions_used + 1,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE organization_id = ?
		   AND transcriptions_used < (
		     SELECT max_transcriptions FROM tariffs WHERE tariffs.id = billings.tariff_id
		   )`,
		orgID,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *repo) FindTariffByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Tariff, error) {
	var t domain.Tariff
	err := db.WithContext(ctx).First(&t, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *repo) CheapestActiveTariff(ctx context.Context, db *gorm.DB) (*domain.Tariff, error) {
	var t domain.Tariff
	err := db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("price asc, sort_order asc").
		First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *repo) FindPaymentByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Payment, error) {
	var p domain.Payment
	err := db.WithContext(ctx).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repo) UpdatePayment(ctx context.Context, db *gorm.DB, p *domain.Payment) error {
	return db.WithContext(ctx).Save(p).Error
}
