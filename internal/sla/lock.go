package sla

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Locker guards a pass so that at most one runs at a time. Acquire returns
// ErrPassInProgress when the guard is already held; the release func must be called
// once the pass finishes.
type Locker interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// NoopLocker never blocks a pass.
type NoopLocker struct{}

func (NoopLocker) Acquire(context.Context) (func(), error) { return func() {}, nil }

// LocalLocker serialises passes inside one process.
type LocalLocker struct {
	mu sync.Mutex
}

func (l *LocalLocker) Acquire(context.Context) (func(), error) {
	if !l.mu.TryLock() {
		return nil, ErrPassInProgress
	}
	return l.mu.Unlock, nil
}

// Only the holder's token may delete the key.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a lease shared by every process talking to the same Redis. The TTL
// bounds how long a crashed holder can block later passes.
type RedisLocker struct {
	client redis.Cmdable
	key    string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisLocker constructs a Redis-backed lease.
func NewRedisLocker(client redis.Cmdable, key string, ttl time.Duration, logger *zap.Logger) *RedisLocker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLocker{client: client, key: key, ttl: ttl, logger: logger}
}

func (l *RedisLocker) Acquire(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPassInProgress
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil {
			l.logger.Warn("release sla check lease", zap.String("key", l.key), zap.Error(err))
		}
	}, nil
}
