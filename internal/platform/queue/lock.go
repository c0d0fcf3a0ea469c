package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockNotAcquired = errors.New("lock is held by another owner")

// Only the owner that set the value may delete the key.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Locker hands out short-lived exclusive locks keyed by name.
type Locker struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewLocker(rdb *redis.Client, prefix string, ttl time.Duration) *Locker {
	return &Locker{rdb: rdb, prefix: prefix, ttl: ttl}
}

type Lock struct {
	locker *Locker
	key    string
	value  string
}

func (l *Locker) Acquire(ctx context.Context, name string) (*Lock, error) {
	key := l.prefix + name
	value := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, key, value, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("Locker.Acquire %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLockNotAcquired
	}
	return &Lock{locker: l, key: key, value: value}, nil
}

// Release reports false when the lock expired or was taken over before release.
func (lk *Lock) Release(ctx context.Context) (bool, error) {
	deleted, err := releaseScript.Run(ctx, lk.locker.rdb, []string{lk.key}, lk.value).Int64()
	if err != nil {
		return false, fmt.Errorf("Lock.Release %s: %w", lk.key, err)
	}
	return deleted == 1, nil
}

// Deduper remembers delivery ids for a bounded time.
type Deduper struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewDeduper(rdb *redis.Client, prefix string, ttl time.Duration) *Deduper {
	return &Deduper{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (d *Deduper) Seen(ctx context.Context, id string) (bool, error) {
	n, err := d.rdb.Exists(ctx, d.prefix+id).Result()
	if err != nil {
		return false, fmt.Errorf("Deduper.Seen: %w", err)
	}
	return n > 0, nil
}

func (d *Deduper) Mark(ctx context.Context, id string) error {
	if err := d.rdb.SetNX(ctx, d.prefix+id, 1, d.ttl).Err(); err != nil {
		return fmt.Errorf("Deduper.Mark: %w", err)
	}
	return nil
}
