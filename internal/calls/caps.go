package calls

import (
	"context"
	"log/slog"
	"time"

	"callbridge/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// CapLimiter bounds concurrent outbound calls per user.
type CapLimiter interface {
	Acquire(ctx context.Context, userID string) (bool, error)
	Release(ctx context.Context, userID string)
}

// RedisCapLimiter implements CapLimiter on the shared redis concurrency-cap
// scripts. The TTL protects against leaked slots if the process dies while a
// call is active.
type RedisCapLimiter struct {
	rdb   *redis.Client
	limit int
	ttl   time.Duration
	log   *slog.Logger
}

func NewRedisCapLimiter(rdb *redis.Client, limit int, log *slog.Logger) *RedisCapLimiter {
	if log == nil {
		log = slog.Default()
	}
	return &RedisCapLimiter{rdb: rdb, limit: limit, ttl: time.Hour, log: log}
}

func (l *RedisCapLimiter) Acquire(ctx context.Context, userID string) (bool, error) {
	return utils.AcquireConcurrencyCap(ctx, l.rdb, capKey(userID), l.limit, l.ttl)
}

func (l *RedisCapLimiter) Release(ctx context.Context, userID string) {
	if err := utils.ReleaseConcurrencyCap(ctx, l.rdb, capKey(userID)); err != nil {
		l.log.Warn("call cap release failed", "user_id", userID, "err", err)
	}
}

func capKey(userID string) string {
	return "callcap:" + userID
}

// NoopCapLimiter disables the cap.
type NoopCapLimiter struct{}

func (NoopCapLimiter) Acquire(ctx context.Context, userID string) (bool, error) { return true, nil }
func (NoopCapLimiter) Release(ctx context.Context, userID string)               {}
