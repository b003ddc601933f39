package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	fieldFailures    = "failures"
	fieldLockedUntil = "locked_until_ms"
)

// LockoutState describes failed-login bookkeeping for one username.
type LockoutState struct {
	FailedCount int
	LockedUntil *time.Time
}

// Locked reports whether the state blocks a login at now.
func (s LockoutState) Locked(now time.Time) bool {
	return s.LockedUntil != nil && now.Before(*s.LockedUntil)
}

// RedisLockoutStore counts failed logins per username. Each hash lives for one
// lockout window after the latest failure, so counters and locks expire together.
type RedisLockoutStore struct {
	client redis.Cmdable
	prefix string
}

// NewRedisLockoutStore stores counters under prefix + "lockout:".
func NewRedisLockoutStore(client redis.Cmdable, prefix string) *RedisLockoutStore {
	return &RedisLockoutStore{client: client, prefix: prefix + "lockout:"}
}

func (s *RedisLockoutStore) key(username string) string {
	return s.prefix + username
}

// Get returns the current state; a missing hash is the zero state.
func (s *RedisLockoutStore) Get(ctx context.Context, username string) (LockoutState, error) {
	values, err := s.client.HMGet(ctx, s.key(username), fieldFailures, fieldLockedUntil).Result()
	if err != nil {
		return LockoutState{}, err
	}
	return lockoutFromFields(values), nil
}

// lockoutFromFields decodes an HMGET reply of failures and locked_until_ms.
// Missing or malformed fields read as zero.
func lockoutFromFields(values []any) LockoutState {
	var state LockoutState
	if len(values) != 2 {
		return state
	}
	if raw, ok := values[0].(string); ok {
		state.FailedCount, _ = strconv.Atoi(raw)
	}
	if raw, ok := values[1].(string); ok {
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil && ms > 0 {
			until := time.UnixMilli(ms).UTC()
			state.LockedUntil = &until
		}
	}
	return state
}

// RecordFailure bumps the counter, slides the expiry and locks the username
// once threshold failures fall within one window.
func (s *RedisLockoutStore) RecordFailure(ctx context.Context, username string, now time.Time, threshold int, window time.Duration) (LockoutState, error) {
	key := s.key(username)

	var failures *redis.IntCmd
	if _, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		failures = p.HIncrBy(ctx, key, fieldFailures, 1)
		p.PExpire(ctx, key, window)
		return nil
	}); err != nil {
		return LockoutState{}, err
	}

	state := LockoutState{FailedCount: int(failures.Val())}
	if threshold <= 0 || state.FailedCount < threshold {
		return state, nil
	}
	until := now.Add(window).UTC()
	if err := s.client.HSet(ctx, key, fieldLockedUntil, until.UnixMilli()).Err(); err != nil {
		return LockoutState{}, err
	}
	state.LockedUntil = &until
	return state, nil
}

// Clear forgets all failures for username.
func (s *RedisLockoutStore) Clear(ctx context.Context, username string) error {
	return s.client.Del(ctx, s.key(username)).Err()
}
