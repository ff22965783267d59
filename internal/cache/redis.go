// Package cache holds the Redis backed helpers of the API: the per-loan payment lock
// and the loan schedule cache.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/segyhp/lease-billing/internal/domain"
	customError "github.com/segyhp/lease-billing/pkg/errors"
)

// NewClient connects to the Redis URL and pings it
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// releaseScript deletes the lock only while it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LoanLocker lets one payment flow at a time run against a loan
type LoanLocker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLoanLocker(client *redis.Client, ttl time.Duration) *LoanLocker {
	return &LoanLocker{client: client, ttl: ttl}
}

func lockKey(loanID uuid.UUID) string {
	return "lock:loan:" + loanID.String()
}

// Acquire takes the lock of loanID or fails with ErrLoanBusy. The returned func releases it.
func (l *LoanLocker) Acquire(ctx context.Context, loanID uuid.UUID) (func(), error) {
	token := uuid.NewString()
	key := lockKey(loanID)

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, customError.WrapCacheError(err)
	}
	if !ok {
		return nil, customError.WrapLoanBusy(loanID.String())
	}

	return func() {
		// the request context may already be cancelled
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err()
	}, nil
}

// ScheduleCache stores one rendered schedule per loan together with the stamp it was
// rendered for
type ScheduleCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewScheduleCache(client *redis.Client, ttl time.Duration) *ScheduleCache {
	return &ScheduleCache{client: client, ttl: ttl}
}

type cachedSchedule struct {
	Stamp    string                   `json:"stamp"`
	Schedule *domain.ScheduleResponse `json:"schedule"`
}

func scheduleKey(loanID uuid.UUID) string {
	return "schedule:loan:" + loanID.String()
}

// Get returns the cached schedule of loanID when it was stored under stamp. Entries of
// another stamp, or ones that do not decode, are misses.
func (c *ScheduleCache) Get(ctx context.Context, loanID uuid.UUID, stamp string) (*domain.ScheduleResponse, bool, error) {
	raw, err := c.client.Get(ctx, scheduleKey(loanID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, customError.WrapCacheError(err)
	}

	var cached cachedSchedule
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil, false, nil
	}
	if cached.Stamp != stamp {
		return nil, false, nil
	}
	return cached.Schedule, true, nil
}

func (c *ScheduleCache) Set(ctx context.Context, loanID uuid.UUID, stamp string, schedule *domain.ScheduleResponse) error {
	raw, err := json.Marshal(cachedSchedule{Stamp: stamp, Schedule: schedule})
	if err != nil {
		return customError.WrapCacheError(err)
	}
	if err := c.client.Set(ctx, scheduleKey(loanID), raw, c.ttl).Err(); err != nil {
		return customError.WrapCacheError(err)
	}
	return nil
}

func (c *ScheduleCache) Invalidate(ctx context.Context, loanID uuid.UUID) error {
	if err := c.client.Del(ctx, scheduleKey(loanID)).Err(); err != nil {
		return customError.WrapCacheError(err)
	}
	return nil
}
