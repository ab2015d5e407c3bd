package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueue is a FIFO list: LPUSH on the head, BRPOP from the tail.
type RedisQueue struct {
	client  redis.Cmdable
	key     string
	timeout time.Duration
}

// NewRedisQueue builds a queue on the given list key.
func NewRedisQueue(client redis.Cmdable, key string, timeout time.Duration) *RedisQueue {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RedisQueue{client: client, key: key, timeout: timeout}
}

func (q *RedisQueue) Push(ctx context.Context, job Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("push job: %w", err)
	}
	return nil
}

func (q *RedisQueue) Pop(ctx context.Context) (*Job, error) {
	res, err := q.client.BRPop(ctx, q.timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrEmpty
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("pop job: %w", err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("pop job: unexpected reply %v", res)
	}
	return decodeJob(res[1])
}

// Len reports how many jobs are waiting.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

func decodeJob(raw string) (*Job, error) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	return &job, nil
}
