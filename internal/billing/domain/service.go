package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrNoBilling           = errors.New("no_billing")
	ErrQuotaExhausted      = errors.New("quota_exhausted")
	ErrTrialExpired        = errors.New("trial_expired")
	ErrSubscriptionExpired = errors.New("subscription_expired")
	ErrBillingDisabled     = errors.New("billing_disabled")
	ErrNoActiveTariff      = errors.New("no_active_tariff")
	ErrPaymentNotFound     = errors.New("payment_not_found")
	ErrPaymentProcessed    = errors.New("payment_already_processed")
)

// NeedsPurchaseAction reports whether the gate denial should carry a
// purchase remediation in the user-facing reply.
func NeedsPurchaseAction(err error) bool {
	return errors.Is(err, ErrTrialExpired) ||
		errors.Is(err, ErrSubscriptionExpired) ||
		errors.Is(err, ErrQuotaExhausted)
}

type Service interface {
	// Gate decides whether ingestion/reporting may proceed for the
	// organization. A denial is one of the sentinel errors above.
	Gate(ctx context.Context, orgID snowflake.ID) error

	// ConsumeTranscription increments the usage counter with a ceiling:
	// the increment and the quota check happen in one statement, so two
	// concurrent messages cannot both pass a near-exhausted quota.
	ConsumeTranscription(ctx context.Context, orgID snowflake.ID) error

	// CheapestActiveTariff resolves the trial default.
	CheapestActiveTariff(ctx context.Context) (*Tariff, error)

	// ConfirmPayment applies a completed payment: billing goes ACTIVE,
	// active-until moves to the paid period end, usage resets to zero.
	ConfirmPayment(ctx context.Context, paymentID snowflake.ID) (*Payment, error)
}
