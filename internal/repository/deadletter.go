// Package repository holds the dead-letter sinks for queue items whose
// retry budget is spent. Redis is preferred when configured; the memory
// sink is the fallback for redis-less deployments.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"planik/internal/config"
	"planik/internal/models"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient creates a redis client from configuration.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

// Ping verifies the redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	return nil
}

// RedisDeadLetter keeps exhausted items in a redis list so an operator
// can inspect or replay them out of band.
type RedisDeadLetter struct {
	client *redis.Client
	key    string
}

func NewRedisDeadLetter(client *redis.Client, key string) *RedisDeadLetter {
	if key == "" {
		key = models.DefaultDeadLetterKey
	}
	return &RedisDeadLetter{client: client, key: key}
}

func (r *RedisDeadLetter) Push(ctx context.Context, item *models.QueueItem) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode dead letter %s: %w", item.ID, err)
	}
	if err := r.client.LPush(ctx, r.key, data).Err(); err != nil {
		return fmt.Errorf("dead letter push %s: %w", item.ID, err)
	}
	return nil
}

// List returns the newest n dead-lettered items.
func (r *RedisDeadLetter) List(ctx context.Context, n int64) ([]*models.QueueItem, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	raw, err := r.client.LRange(ctx, r.key, 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("dead letter list: %w", err)
	}

	items := make([]*models.QueueItem, 0, len(raw))
	for _, entry := range raw {
		var item models.QueueItem
		if err := json.Unmarshal([]byte(entry), &item); err != nil {
			return nil, fmt.Errorf("decode dead letter: %w", err)
		}
		items = append(items, &item)
	}
	return items, nil
}

// Clear drops the dead-letter list.
func (r *RedisDeadLetter) Clear(ctx context.Context) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("dead letter clear: %w", err)
	}
	return nil
}

// MemoryDeadLetter is the in-process fallback sink.
type MemoryDeadLetter struct {
	mu    sync.Mutex
	items []*models.QueueItem
}

func NewMemoryDeadLetter() *MemoryDeadLetter {
	return &MemoryDeadLetter{}
}

func (m *MemoryDeadLetter) Push(_ context.Context, item *models.QueueItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *item
	m.items = append([]*models.QueueItem{&copied}, m.items...)
	return nil
}

func (m *MemoryDeadLetter) List(_ context.Context, n int64) ([]*models.QueueItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n > int64(len(m.items)) {
		n = int64(len(m.items))
	}
	out := make([]*models.QueueItem, n)
	copy(out, m.items[:n])
	return out, nil
}

func (m *MemoryDeadLetter) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = nil
	return nil
}
