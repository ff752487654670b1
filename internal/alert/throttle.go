package alert

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces throttle keys in Redis.
const keyPrefix = "cg-etl:alert:"

// throttleStore is the part of *redis.Client used for throttling.
type throttleStore interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Throttled forwards an alert only if the same subject has not been sent
// within the throttle window, across runs and hosts sharing the Redis.
type Throttled struct {
	next   Notifier
	rdb    throttleStore
	ttl    time.Duration
	logger *slog.Logger
}

// NewThrottled wraps next with Redis-backed throttling.
func NewThrottled(next Notifier, rdb throttleStore, ttl time.Duration, logger *slog.Logger) *Throttled {
	if logger == nil {
		logger = slog.Default()
	}
	return &Throttled{
		next:   next,
		rdb:    rdb,
		ttl:    ttl,
		logger: logger,
	}
}

// Notify claims the subject's throttle key and forwards the alert if the
// claim succeeds. If Redis is unreachable the alert is sent anyway. A failed
// delivery releases the claim so the next alert with that subject is sent.
func (t *Throttled) Notify(ctx context.Context, a Alert) error {
	key := throttleKey(a.Subject)

	claimed, err := t.rdb.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), t.ttl).Result()
	if err != nil {
		t.logger.Warn("alert throttle unavailable, sending anyway",
			"key", key,
			"error", err,
		)
		return t.next.Notify(ctx, a)
	}

	if !claimed {
		t.logger.Info("alert suppressed by throttle",
			"subject", a.Subject,
			"ttl", t.ttl,
		)
		return nil
	}

	if err := t.next.Notify(ctx, a); err != nil {
		if delErr := t.rdb.Del(context.WithoutCancel(ctx), key).Err(); delErr != nil {
			t.logger.Warn("failed to release alert throttle",
				"key", key,
				"error", delErr,
			)
		}
		return err
	}
	return nil
}

func throttleKey(subject string) string {
	sum := sha1.Sum([]byte(subject))
	return keyPrefix + hex.EncodeToString(sum[:])
}
