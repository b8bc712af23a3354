package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jdavido74/medical-pro/internal/scheduling"
)

var ErrLockNotAcquired = errors.New("appointments: slot lock not acquired")

// Locker serialises writes to one practitioner's day.
type Locker interface {
	WithDayLock(ctx context.Context, practitionerID uuid.UUID, d scheduling.Date, fn func(ctx context.Context) error) error
}

// RedisLocker holds a SET NX key per (practitioner, day) and releases it
// only if the stored token is still its own.
type RedisLocker struct {
	client   *redis.Client
	ttl      time.Duration
	attempts int
	backoff  time.Duration
}

func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisLocker{client: client, ttl: ttl, attempts: 5, backoff: 50 * time.Millisecond}
}

// WithRetry sets how often a busy lock is retried before giving up.
func (l *RedisLocker) WithRetry(attempts int, backoff time.Duration) *RedisLocker {
	if attempts > 0 {
		l.attempts = attempts
	}
	if backoff >= 0 {
		l.backoff = backoff
	}
	return l
}

func lockKey(practitionerID uuid.UUID, d scheduling.Date) string {
	return fmt.Sprintf("lock:schedule:%s:%s", practitionerID, d)
}

func (l *RedisLocker) WithDayLock(ctx context.Context, practitionerID uuid.UUID, d scheduling.Date, fn func(ctx context.Context) error) error {
	key := lockKey(practitionerID, d)
	token := uuid.NewString()

	if err := l.acquire(ctx, key, token); err != nil {
		return err
	}
	defer func() {
		// The caller's context may already be done; release regardless.
		_ = l.release(context.WithoutCancel(ctx), key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

func (l *RedisLocker) acquire(ctx context.Context, key, token string) error {
	for attempt := 0; attempt < l.attempts; attempt++ {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("appointments: acquire slot lock: %w", err)
		}
		if ok {
			return nil
		}
		if attempt == l.attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.backoff):
		}
	}
	return ErrLockNotAcquired
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *RedisLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("appointments: release slot lock: %w", err)
	}
	return nil
}
