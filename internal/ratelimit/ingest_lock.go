package ratelimit

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Stugi/resto-worker/internal/config"
	redis "github.com/redis/go-redis/v9"
)

const keyGroupCreateFlood = "groups:create:flood"

// IngestGuard serializes voice processing per chat and throttles group
// creation across the whole deployment. Both guards sit on redis; a nil
// guard (redis not configured) allows everything.
type IngestGuard struct {
	enabled bool

	bucket *TokenBucket
	locker *chatLocker

	groupRate  float64
	groupBurst int
}

func NewIngestGuard(cfg config.Config) (*IngestGuard, error) {
	if !cfg.IngestLockEnabled {
		return nil, nil
	}

	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("ingest lock requires REDIS_ADDR")
	}
	if cfg.IngestLockTTLSeconds <= 0 {
		return nil, errors.New("ingest lock ttl must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.RedisDB,
	})

	ttl := time.Duration(cfg.IngestLockTTLSeconds) * time.Second
	return &IngestGuard{
		enabled: true,
		bucket:  NewTokenBucket(client),
		locker:  newChatLocker(client, ttl),
		// one group per 30s sustained, bursts of two
		groupRate:  1.0 / 30.0,
		groupBurst: 2,
	}, nil
}

func (g *IngestGuard) Enabled() bool {
	return g != nil && g.enabled
}

// TryLockChat takes the per-chat processing lock. When redis is not
// configured the lock is a no-op and processing proceeds unserialized.
func (g *IngestGuard) TryLockChat(ctx context.Context, chatID int64) (string, bool, error) {
	if !g.Enabled() {
		return "", true, nil
	}
	return g.locker.Acquire(ctx, chatID)
}

func (g *IngestGuard) ReleaseChat(ctx context.Context, chatID int64, token string) error {
	if !g.Enabled() {
		return nil
	}
	return g.locker.Release(ctx, chatID, token)
}

// AllowGroupCreation throttles chat-group provisioning deployment-wide, on
// top of the per-actor log windows.
func (g *IngestGuard) AllowGroupCreation(ctx context.Context) (bool, error) {
	if !g.Enabled() {
		return true, nil
	}
	res, err := g.bucket.Allow(ctx, keyGroupCreateFlood, g.groupRate, g.groupBurst)
	if err != nil {
		return false, err
	}
	return res.Allowed, nil
}
