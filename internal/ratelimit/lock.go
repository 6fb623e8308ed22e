package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// releaseIfOwner deletes the lock key only when the stored token matches,
// so a slow holder cannot release a lock that already expired and was
// re-acquired by someone else.
const releaseIfOwner = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// chatLocker serializes voice processing per chat. One recording per chat
// is in flight at a time; the TTL bounds how long a crashed worker can
// hold the slot.
type chatLocker struct {
	client  *redis.Client
	release *redis.Script
	ttl     time.Duration
}

func newChatLocker(client *redis.Client, ttl time.Duration) *chatLocker {
	return &chatLocker{
		client:  client,
		release: redis.NewScript(releaseIfOwner),
		ttl:     ttl,
	}
}

func chatLockKey(chatID int64) string {
	return fmt.Sprintf("voice:ingest:lock:%d", chatID)
}

// Acquire attempts to take the chat's processing slot. The returned token
// must be passed back to Release; it proves ownership across the TTL.
func (l *chatLocker) Acquire(ctx context.Context, chatID int64) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, chatLockKey(chatID), token, l.ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (l *chatLocker) Release(ctx context.Context, chatID int64, token string) error {
	if token == "" {
		return nil
	}
	return l.release.Run(ctx, l.client, []string{chatLockKey(chatID)}, token).Err()
}
