package report

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Skufu/medipredict/internal/predict"
)

// Cache keeps the latest result per browser session. Get returns nil, nil
// when the session has no live result.
type Cache interface {
	Put(ctx context.Context, session string, res *predict.Result) error
	Get(ctx context.Context, session string) (*predict.Result, error)
}

type memoryEntry struct {
	result  *predict.Result
	expires time.Time
}

// MemoryCache is a process-local Cache with per-entry expiry.
type MemoryCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (c *MemoryCache) Put(_ context.Context, session string, res *predict.Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for id, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, id)
		}
	}
	c.entries[session] = memoryEntry{result: res, expires: now.Add(c.ttl)}
	return nil
}

func (c *MemoryCache) Get(_ context.Context, session string) (*predict.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[session]
	if !ok {
		return nil, nil
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, session)
		return nil, nil
	}
	return e.result, nil
}

// Len reports live and not yet swept entries.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// RedisCache shares results across server replicas.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) key(session string) string {
	return fmt.Sprintf("session:%s:report", session)
}

func (c *RedisCache) Put(ctx context.Context, session string, res *predict.Result) error {
	data, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(session), data, c.ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, session string) (*predict.Result, error) {
	data, err := c.client.Get(ctx, c.key(session)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var res predict.Result
	if err := json.Unmarshal([]byte(data), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Ping checks the redis connection for readiness probes.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
