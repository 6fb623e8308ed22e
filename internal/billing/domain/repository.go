package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertBilling(ctx context.Context, db *gorm.DB, b *Billing) error
	FindBillingByOrg(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (*Billing, error)
	UpdateBilling(ctx context.Context, db *gorm.DB, b *Billing) error
	// IncrementUsage bumps transcriptions_used by one iff it is still below
	// the tariff ceiling. Returns the number of rows affected.
	IncrementUsage(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (int64, error)

	FindTariffByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Tariff, error)
	CheapestActiveTariff(ctx context.Context, db *gorm.DB) (*Tariff, error)

	FindPaymentByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Payment, error)
	UpdatePayment(ctx context.Context, db *gorm.DB, p *Payment) error
}
