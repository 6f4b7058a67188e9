package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// PageCachePrefix is the key prefix for rendered pages in Redis.
const PageCachePrefix = "page:"

// CachedPage is a rendered response.
type CachedPage struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// PageCache stores rendered pages for a short time.
type PageCache interface {
	// Get reports found=false on a miss or expired entry.
	Get(ctx context.Context, key string) (page *CachedPage, found bool, err error)
	Put(ctx context.Context, key string, page *CachedPage, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
	InvalidateAll(ctx context.Context) error
}

// RedisPageCache keeps pages as JSON strings under PageCachePrefix.
type RedisPageCache struct {
	client *redis.Client
}

func NewRedisPageCache(client *redis.Client) PageCache {
	return &RedisPageCache{client: client}
}

func (c *RedisPageCache) Get(ctx context.Context, key string) (*CachedPage, bool, error) {
	raw, err := c.client.Get(ctx, PageCachePrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get page: %w", err)
	}

	var page CachedPage
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, false, fmt.Errorf("decode page: %w", err)
	}
	return &page, true, nil
}

func (c *RedisPageCache) Put(ctx context.Context, key string, page *CachedPage, ttl time.Duration) error {
	raw, err := json.Marshal(page)
	if err != nil {
		return fmt.Errorf("encode page: %w", err)
	}
	if err := c.client.Set(ctx, PageCachePrefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("set page: %w", err)
	}
	return nil
}

func (c *RedisPageCache) Invalidate(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, PageCachePrefix+key).Err(); err != nil {
		return fmt.Errorf("delete page: %w", err)
	}
	return nil
}

// InvalidateAll walks the keyspace with SCAN so Redis is never blocked by KEYS.
func (c *RedisPageCache) InvalidateAll(ctx context.Context) error {
	var cursor uint64
	deleted := 0
	for {
		keys, next, err := c.client.Scan(ctx, cursor, PageCachePrefix+"*", 100).Result()
		if err != nil {
			return fmt.Errorf("scan pages: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("delete pages: %w", err)
			}
			deleted += len(keys)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	log.Debugf("[PageCache] InvalidateAll: deleted=%d", deleted)
	return nil
}

type memoryEntry struct {
	page      CachedPage
	expiresAt time.Time
}

// MemoryPageCache is a process-local PageCache used when Redis is not configured.
type MemoryPageCache struct {
	lru *expirable.LRU[string, memoryEntry]
	now func() time.Time
}

// NewMemoryPageCache keeps up to size pages. maxTTL bounds every entry's lifetime.
func NewMemoryPageCache(size int, maxTTL time.Duration) *MemoryPageCache {
	return &MemoryPageCache{
		lru: expirable.NewLRU[string, memoryEntry](size, nil, maxTTL),
		now: time.Now,
	}
}

func (c *MemoryPageCache) Get(_ context.Context, key string) (*CachedPage, bool, error) {
	e, ok := c.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(e.expiresAt) {
		c.lru.Remove(key)
		return nil, false, nil
	}
	page := e.page
	return &page, true, nil
}

func (c *MemoryPageCache) Put(_ context.Context, key string, page *CachedPage, ttl time.Duration) error {
	c.lru.Add(key, memoryEntry{page: *page, expiresAt: c.now().Add(ttl)})
	return nil
}

func (c *MemoryPageCache) Invalidate(_ context.Context, key string) error {
	c.lru.Remove(key)
	return nil
}

func (c *MemoryPageCache) InvalidateAll(_ context.Context) error {
	c.lru.Purge()
	return nil
}
