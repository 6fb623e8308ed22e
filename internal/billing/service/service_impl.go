package service

import (
	"context"
	"fmt"

	"github.com/Stugi/resto-worker/internal/billing/domain"
	"github.com/Stugi/resto-worker/internal/clock"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("billing.service"),
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Gate(ctx context.Context, orgID snowflake.ID) error {
	b, err := s.repo.FindBillingByOrg(ctx, s.db, orgID)
	if err != nil {
		return fmt.Errorf("load billing: %w", err)
	}
	if b == nil {
		return domain.ErrNoBilling
	}

	now := s.clock.Now()

	switch b.Status {
	case domain.StatusDisabled:
		return domain.ErrBillingDisabled
	case domain.StatusTrial:
		if b.TrialEndsAt != nil && now.After(*b.TrialEndsAt) {
			return domain.ErrTrialExpired
		}
	case domain.StatusActive:
		if b.ActiveUntil != nil && now.After(*b.ActiveUntil) {
			return domain.ErrSubscriptionExpired
		}
	}

	if b.TariffID != nil {
		tariff, err := s.repo.FindTariffByID(ctx, s.db, *b.TariffID)
		if err != nil {
			return fmt.Errorf("load tariff: %w", err)
		}
		if tariff != nil && b.TranscriptionsUsed >= tariff.MaxTranscriptions {
			return domain.ErrQuotaExhausted
		}
	}

	return nil
}

func (s *Service) ConsumeTranscription(ctx context.Context, orgID snowflake.ID) error {
	affected, err := s.repo.IncrementUsage(ctx, s.db, orgID)
	if err != nil {
		return fmt.Errorf("increment usage: %w", err)
	}
	if affected == 0 {
		return domain.ErrQuotaExhausted
	}
	return nil
}

func (s *Service) CheapestActiveTariff(ctx context.Context) (*domain.Tariff, error) {
	tariff, err := s.repo.CheapestActiveTariff(ctx, s.db)
	if err != nil {
		return nil, err
	}
	if tariff == nil {
		return nil, domain.ErrNoActiveTariff
	}
	return tariff, nil
}

func (s *Service) ConfirmPayment(ctx context.Context, paymentID snowflake.ID) (*domain.Payment, error) {
	payment, err := s.repo.FindPaymentByID(ctx, s.db, paymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, domain.ErrPaymentNotFound
	}
	if payment.Status != domain.PaymentPending {
		return nil, domain.ErrPaymentProcessed
	}

	now := s.clock.Now()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payment.Status = domain.PaymentCompleted
		payment.CompletedAt = &now
		if err := s.repo.UpdatePayment(ctx, tx, payment); err != nil {
			return err
		}

		b, err := s.repo.FindBillingByOrg(ctx, tx, payment.OrganizationID)
		if err != nil {
			return err
		}
		if b == nil {
			return domain.ErrNoBilling
		}

		b.Status = domain.StatusActive
		b.TariffID = &payment.TariffID
		b.ActiveUntil = &payment.PeriodEnd
		b.TranscriptionsUsed = 0 // the only place usage resets
		return s.repo.UpdateBilling(ctx, tx, b)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("payment confirmed",
		zap.String("payment_id", payment.ID.String()),
		zap.String("org_id", payment.OrganizationID.String()),
		zap.Time("active_until", payment.PeriodEnd),
	)
	return payment, nil
}
