package tracking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Visitors decides whether a visitor is new to a link within a window.
// FirstVisit must record the visit as part of the same check.
type Visitors interface {
	FirstVisit(ctx context.Context, linkID uuid.UUID, visitorHash string, window time.Duration) (bool, error)
}

// RedisVisitors keeps one expiring key per (link, visitor). SET NX makes the
// check and the record a single atomic step.
type RedisVisitors struct {
	rdb    redis.Cmdable
	prefix string
}

func NewRedisVisitors(rdb redis.Cmdable, prefix string) *RedisVisitors {
	if prefix == "" {
		prefix = "linkshield:visitor"
	}
	return &RedisVisitors{rdb: rdb, prefix: prefix}
}

func (v *RedisVisitors) FirstVisit(ctx context.Context, linkID uuid.UUID, visitorHash string, window time.Duration) (bool, error) {
	key := fmt.Sprintf("%s:%s:%s", v.prefix, linkID, visitorHash)
	ok, err := v.rdb.SetNX(ctx, key, 1, window).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	return ok, nil
}
