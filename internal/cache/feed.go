package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"yatube/internal/model"
)

const (
	// FeedCachePrefix is the key prefix for user feed caches
	FeedCachePrefix = "feed:user:"

	// FeedCacheCap is the maximum number of posts to cache per user
	FeedCacheCap = 500

	// FeedCacheTTL is the TTL for feed cache (7 days)
	FeedCacheTTL = 7 * 24 * time.Hour
)

// FeedCache holds, per viewer, the ids of posts by the authors they follow,
// scored by creation time.
type FeedCache interface {
	// AddPostIfWarm inserts a post into a feed that already exists, trims it
	// to FeedCacheCap and refreshes the TTL, all in one step. A missing feed
	// is left missing and added is false.
	AddPostIfWarm(ctx context.Context, userID, postID, score int64) (added bool, err error)

	RemovePost(ctx context.Context, userID, postID int64) error

	// GetRange returns post ids newest first, skipping offset entries.
	GetRange(ctx context.Context, userID int64, offset, limit int) ([]int64, error)

	// WarmCache bulk-inserts posts into a user's feed cache.
	WarmCache(ctx context.Context, userID int64, posts []model.PostScore) error

	Size(ctx context.Context, userID int64) (int64, error)

	// Exists is false for users never warmed or whose TTL expired.
	Exists(ctx context.Context, userID int64) (bool, error)

	// Invalidate drops a user's feed so the next read rebuilds it.
	Invalidate(ctx context.Context, userID int64) error
}

// RedisFeedCache implements FeedCache using Redis Sorted Sets.
type RedisFeedCache struct {
	client *redis.Client
}

// NewFeedCache creates a new FeedCache backed by Redis.
func NewFeedCache(client *redis.Client) FeedCache {
	return &RedisFeedCache{client: client}
}

func feedKey(userID int64) string {
	return FeedCachePrefix + strconv.FormatInt(userID, 10)
}

// feedMember zero-pads post ids so members with equal scores sort like
// "ORDER BY id DESC" under ZREVRANGE.
func feedMember(postID int64) string {
	return fmt.Sprintf("%019d", postID)
}

// addIfWarmScript: KEYS[1] feed, ARGV score, member, cap, ttl seconds.
// Rank 0 is the oldest; the newest cap entries are kept.
var addIfWarmScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
redis.call('ZADD', KEYS[1], ARGV[1], ARGV[2])
redis.call('ZREMRANGEBYRANK', KEYS[1], 0, -(tonumber(ARGV[3]) + 1))
redis.call('EXPIRE', KEYS[1], ARGV[4])
return 1
`)

func (c *RedisFeedCache) AddPostIfWarm(ctx context.Context, userID, postID, score int64) (bool, error) {
	n, err := addIfWarmScript.Run(ctx, c.client, []string{feedKey(userID)},
		score, feedMember(postID), FeedCacheCap, int64(FeedCacheTTL/time.Second)).Int()
	if err != nil {
		log.Errorf("[FeedCache] AddPostIfWarm FAILED: user=%d post=%d err=%v", userID, postID, err)
		return false, fmt.Errorf("add post to feed: %w", err)
	}

	log.Debugf("[FeedCache] AddPostIfWarm: user=%d post=%d score=%d added=%t", userID, postID, score, n == 1)
	return n == 1, nil
}

func (c *RedisFeedCache) RemovePost(ctx context.Context, userID, postID int64) error {
	removed, err := c.client.ZRem(ctx, feedKey(userID), feedMember(postID)).Result()
	if err != nil {
		log.Errorf("[FeedCache] RemovePost FAILED: user=%d post=%d err=%v", userID, postID, err)
		return fmt.Errorf("remove post from feed: %w", err)
	}

	log.Debugf("[FeedCache] RemovePost OK: user=%d post=%d removed=%d", userID, postID, removed)
	return nil
}

func (c *RedisFeedCache) GetRange(ctx context.Context, userID int64, offset, limit int) ([]int64, error) {
	if limit <= 0 {
		return []int64{}, nil
	}
	key := feedKey(userID)
	startTime := time.Now()

	members, err := c.client.ZRevRange(ctx, key, int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		log.Errorf("[FeedCache] GetRange FAILED: user=%d err=%v", userID, err)
		return nil, fmt.Errorf("get feed range: %w", err)
	}

	// Refresh TTL on access
	c.client.Expire(ctx, key, FeedCacheTTL)

	ids := make([]int64, len(members))
	for i, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse post id %q: %w", m, err)
		}
		ids[i] = id
	}

	log.Debugf("[FeedCache] GetRange OK: user=%d offset=%d returned=%d duration=%v",
		userID, offset, len(ids), time.Since(startTime))
	return ids, nil
}

func (c *RedisFeedCache) WarmCache(ctx context.Context, userID int64, posts []model.PostScore) error {
	if len(posts) == 0 {
		return nil
	}

	key := feedKey(userID)
	startTime := time.Now()

	members := make([]redis.Z, len(posts))
	for i, p := range posts {
		members[i] = redis.Z{
			Score:  float64(p.Score),
			Member: feedMember(p.PostID),
		}
	}

	pipe := c.client.Pipeline()
	pipe.ZAdd(ctx, key, members...)
	pipe.ZRemRangeByRank(ctx, key, 0, int64(-FeedCacheCap-1))
	pipe.Expire(ctx, key, FeedCacheTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Errorf("[FeedCache] WarmCache FAILED: user=%d posts=%d err=%v", userID, len(posts), err)
		return fmt.Errorf("warm cache: %w", err)
	}

	log.Infof("[FeedCache] WarmCache OK: user=%d posts=%d duration=%v", userID, len(posts), time.Since(startTime))
	return nil
}

func (c *RedisFeedCache) Size(ctx context.Context, userID int64) (int64, error) {
	size, err := c.client.ZCard(ctx, feedKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("get cache size: %w", err)
	}
	return size, nil
}

func (c *RedisFeedCache) Exists(ctx context.Context, userID int64) (bool, error) {
	n, err := c.client.Exists(ctx, feedKey(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("check cache exists: %w", err)
	}
	return n > 0, nil
}

func (c *RedisFeedCache) Invalidate(ctx context.Context, userID int64) error {
	if err := c.client.Del(ctx, feedKey(userID)).Err(); err != nil {
		log.Errorf("[FeedCache] Invalidate FAILED: user=%d err=%v", userID, err)
		return fmt.Errorf("invalidate feed: %w", err)
	}
	log.Debugf("[FeedCache] Invalidate OK: user=%d", userID)
	return nil
}
