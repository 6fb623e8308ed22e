package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/Stugi/resto-worker/internal/clock"
	"github.com/Stugi/resto-worker/internal/config"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	DenyCooldown  = "COOLDOWN"
	DenyPerMinute = "PER_MINUTE"
	DenyPerHour   = "PER_HOUR"
	DenyPerDay    = "PER_DAY"
	DenyGlobal    = "GLOBAL"
)

// Decision is the outcome of one limiter check. RetryAfter is only set for
// cooldown denials where the wait is known exactly.
type Decision struct {
	Allowed    bool
	Reason     string
	RetryAfter time.Duration
}

type LimiterParams struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Clock  clock.Clock
	GenID  *snowflake.Node
	Repo   Repository
	Limits *config.LimitsConfigHolder
}

// Limiter enforces sliding-window caps per actor and action on top of the
// append-only log.
type Limiter struct {
	db     *gorm.DB
	log    *zap.Logger
	clock  clock.Clock
	genID  *snowflake.Node
	repo   Repository
	limits *config.LimitsConfigHolder
}

func NewLimiter(p LimiterParams) *Limiter {
	return &Limiter{
		db:     p.DB,
		log:    p.Log.Named("ratelimit"),
		clock:  p.Clock,
		genID:  p.GenID,
		repo:   p.Repo,
		limits: p.Limits,
	}
}

// CheckAndIncrement verifies every window for the actor and action and, when
// all pass, appends the action to the log. Checks run cheapest first: a
// cooldown denial costs one indexed lookup.
func (l *Limiter) CheckAndIncrement(ctx context.Context, actorID int64, action string) (Decision, error) {
	cfg := l.limits.Get()
	now := l.clock.Now()

	last, err := l.repo.LastAction(ctx, l.db, actorID, action)
	if err != nil {
		return Decision{}, fmt.Errorf("last action: %w", err)
	}
	cooldown := time.Duration(cfg.CooldownSeconds) * time.Second
	if last != nil && now.Sub(last.CreatedAt) < cooldown {
		return Decision{
			Reason:     DenyCooldown,
			RetryAfter: cooldown - now.Sub(last.CreatedAt),
		}, nil
	}

	windows := []struct {
		span   time.Duration
		max    int
		reason string
	}{
		{time.Minute, cfg.PerMinute, DenyPerMinute},
		{time.Hour, cfg.PerHour, DenyPerHour},
		{24 * time.Hour, cfg.PerDay, DenyPerDay},
	}
	for _, w := range windows {
		n, err := l.repo.CountSince(ctx, l.db, actorID, action, now.Add(-w.span))
		if err != nil {
			return Decision{}, fmt.Errorf("count window: %w", err)
		}
		if n >= int64(w.max) {
			l.log.Info("rate limit hit",
				zap.Int64("actor_id", actorID),
				zap.String("action", action),
				zap.String("reason", w.reason),
			)
			return Decision{Reason: w.reason}, nil
		}
	}

	global, err := l.repo.CountGlobalSince(ctx, l.db, action, now.Add(-time.Minute))
	if err != nil {
		return Decision{}, fmt.Errorf("count global: %w", err)
	}
	if global >= int64(cfg.GlobalPerMinute) {
		l.log.Warn("global rate limit hit", zap.String("action", action))
		return Decision{Reason: DenyGlobal}, nil
	}

	err = l.repo.Append(ctx, l.db, &RateLimitLog{
		ID:        l.genID.Generate(),
		ActorID:   actorID,
		Action:    action,
		CreatedAt: now,
	})
	if err != nil {
		return Decision{}, fmt.Errorf("append: %w", err)
	}
	return Decision{Allowed: true}, nil
}
