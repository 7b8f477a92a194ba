package credential

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const touchKeyPrefix = "credential:touch:"

// TouchGate is the subset of the Redis client used to rate-limit last-used
// writes.
type TouchGate interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// ThrottledToucher writes last-used timestamps at most once per interval per
// credential. When Redis cannot answer, the write goes straight to the store.
type ThrottledToucher struct {
	next     Toucher
	gate     TouchGate
	interval time.Duration
}

func NewThrottledToucher(next Toucher, gate TouchGate, interval time.Duration) *ThrottledToucher {
	return &ThrottledToucher{next: next, gate: gate, interval: interval}
}

func (t *ThrottledToucher) TouchLastUsed(ctx context.Context, secretHash string, at time.Time) error {
	if t.gate != nil && t.interval > 0 {
		acquired, err := t.gate.SetNX(ctx, touchKeyPrefix+secretHash, at.Unix(), t.interval).Result()
		if err == nil && !acquired {
			return nil
		}
	}
	return t.next.TouchLastUsed(ctx, secretHash, at)
}
