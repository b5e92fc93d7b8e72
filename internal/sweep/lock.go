package sweep

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// LockKey — ключ блокировки обхода просрочек в Redis.
const LockKey = "marketplace:overdue-sweep:lock"

// Lock обеспечивает эксклюзивный запуск обхода между репликами.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type store interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	DeleteIfEquals(ctx context.Context, key, value string) (bool, error)
}

// releaseScript удаляет ключ, только если в нём лежит значение владельца.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisStore struct {
	client redis.UniversalClient
}

func (s redisStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, key, value, ttl).Result()
}

func (s redisStore) DeleteIfEquals(ctx context.Context, key, value string) (bool, error) {
	n, err := releaseScript.Run(ctx, s.client, []string{key}, value).Int()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// RedisLock реализует Lock через SETNX с TTL. Снимается только владельцем.
type RedisLock struct {
	store store
	key   string
	ttl   time.Duration
	owner string
}

// NewRedisLock создаёт блокировку поверх клиента Redis.
func NewRedisLock(client redis.UniversalClient, key string, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	return newLock(redisStore{client: client}, key, ttl)
}

func newLock(s store, key string, ttl time.Duration) (*RedisLock, error) {
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		return nil, errors.New("lock ttl must be positive")
	}
	return &RedisLock{store: s, key: key, ttl: ttl}, nil
}

// Acquire пытается захватить блокировку на ttl.
func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	owner := uuid.NewString()
	ok, err := l.store.SetNX(ctx, l.key, owner, l.ttl)
	if err != nil {
		return false, fmt.Errorf("setnx: %w", err)
	}
	if ok {
		l.owner = owner
	}
	return ok, nil
}

// Release снимает блокировку, если она всё ещё принадлежит этому экземпляру.
// Сравнение и удаление выполняются одним скриптом на стороне Redis.
func (l *RedisLock) Release(ctx context.Context) error {
	if l.owner == "" {
		return nil
	}
	defer func() { l.owner = "" }()

	if _, err := l.store.DeleteIfEquals(ctx, l.key, l.owner); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

type noLock struct{}

func (noLock) Acquire(context.Context) (bool, error) { return true, nil }
func (noLock) Release(context.Context) error         { return nil }
