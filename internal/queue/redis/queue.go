// Package redis provides a Redis-list-backed task queue. Producers
// LPUSH JSON-encoded tasks and workers BRPOP them, giving the same
// broker shape most Celery deployments use.
package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/crawlkit/crawld/internal/crawl"
)

// Config holds connection settings for the queue.
type Config struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// Queue implements crawl.Queue on top of a Redis list.
type Queue struct {
	client *redis.Client
	key    string
}

// NewQueue connects to Redis and verifies the connection.
func NewQueue(ctx context.Context, cfg Config) (*Queue, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("queue.redis.addr is required")
	}
	key := cfg.Key
	if key == "" {
		key = "crawld:tasks"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		if closeErr := client.Close(); closeErr != nil {
			return nil, fmt.Errorf("ping redis: %w (close client: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Queue{client: client, key: key}, nil
}

// NewQueueWithClient constructs a queue from an existing client (primarily for testing).
func NewQueueWithClient(client *redis.Client, key string) *Queue {
	if key == "" {
		key = "crawld:tasks"
	}
	return &Queue{client: client, key: key}
}

// Enqueue pushes a JSON-encoded task onto the list.
func (q *Queue) Enqueue(ctx context.Context, task crawl.Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("lpush task: %w", err)
	}
	return nil
}

// Dequeue blocks until a task is available or the context ends.
func (q *Queue) Dequeue(ctx context.Context) (crawl.Task, error) {
	res, err := q.client.BRPop(ctx, 0, q.key).Result()
	if err != nil {
		return crawl.Task{}, fmt.Errorf("brpop task: %w", err)
	}
	// BRPop returns [key, value].
	if len(res) != 2 {
		return crawl.Task{}, fmt.Errorf("unexpected brpop reply of length %d", len(res))
	}
	var task crawl.Task
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		return crawl.Task{}, fmt.Errorf("unmarshal task: %w", err)
	}
	return task, nil
}

// Close releases the underlying client.
func (q *Queue) Close() error {
	if err := q.client.Close(); err != nil {
		return fmt.Errorf("close redis client: %w", err)
	}
	return nil
}
