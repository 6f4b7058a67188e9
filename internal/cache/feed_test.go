package cache

import (
	"context"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"yatube/internal/model"
)

// testRedis connects to TEST_REDIS_URL or skips the test.
func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("parse TEST_REDIS_URL: %v", err)
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unreachable: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisFeedCache_WarmAndRange(t *testing.T) {
	client := testRedis(t)
	ctx := context.Background()
	c := NewFeedCache(client)
	const user = int64(987654321)
	t.Cleanup(func() { _ = c.Invalidate(ctx, user) })

	// ARRANGE
	_ = c.Invalidate(ctx, user)
	err := c.WarmCache(ctx, user, []model.PostScore{
		{PostID: 1, Score: 100},
		{PostID: 2, Score: 200},
		{PostID: 3, Score: 300},
	})
	if err != nil {
		t.Fatalf("WarmCache() error = %v", err)
	}

	// ACT
	first, err := c.GetRange(ctx, user, 0, 2)
	if err != nil {
		t.Fatalf("GetRange() error = %v", err)
	}
	second, _ := c.GetRange(ctx, user, 2, 2)

	// ASSERT
	if !reflect.DeepEqual(first, []int64{3, 2}) {
		t.Errorf("first page = %v, want [3 2]", first)
	}
	if !reflect.DeepEqual(second, []int64{1}) {
		t.Errorf("second page = %v, want [1]", second)
	}

	_ = c.RemovePost(ctx, user, 3)
	if size, _ := c.Size(ctx, user); size != 2 {
		t.Errorf("Size() after RemovePost = %d, want 2", size)
	}

	_ = c.Invalidate(ctx, user)
	if ok, _ := c.Exists(ctx, user); ok {
		t.Error("Exists() = true after Invalidate")
	}
}

func TestRedisFeedCache_AddPostIfWarm(t *testing.T) {
	client := testRedis(t)
	ctx := context.Background()
	c := NewFeedCache(client)
	const user = int64(987654322)
	t.Cleanup(func() { _ = c.Invalidate(ctx, user) })
	_ = c.Invalidate(ctx, user)

	// Cold feed stays cold.
	added, err := c.AddPostIfWarm(ctx, user, 200, 2000)
	if err != nil {
		t.Fatalf("AddPostIfWarm() error = %v", err)
	}
	if added {
		t.Error("AddPostIfWarm() on a missing feed = true, want false")
	}
	if ok, _ := c.Exists(ctx, user); ok {
		t.Fatal("AddPostIfWarm() created a feed that was never warmed")
	}

	// Warm feed takes the post.
	if err := c.WarmCache(ctx, user, []model.PostScore{{PostID: 100, Score: 1000}}); err != nil {
		t.Fatalf("WarmCache() error = %v", err)
	}
	added, err = c.AddPostIfWarm(ctx, user, 200, 2000)
	if err != nil || !added {
		t.Fatalf("AddPostIfWarm() = %t, %v; want true, nil", added, err)
	}
	ids, _ := c.GetRange(ctx, user, 0, 10)
	if !reflect.DeepEqual(ids, []int64{200, 100}) {
		t.Errorf("GetRange() = %v, want [200 100]", ids)
	}
}

func TestRedisFeedCache_EqualScoresOrderByIDDesc(t *testing.T) {
	client := testRedis(t)
	ctx := context.Background()
	c := NewFeedCache(client)
	const user = int64(987654323)
	t.Cleanup(func() { _ = c.Invalidate(ctx, user) })
	_ = c.Invalidate(ctx, user)

	err := c.WarmCache(ctx, user, []model.PostScore{
		{PostID: 9, Score: 500},
		{PostID: 10, Score: 500},
		{PostID: 100, Score: 500},
	})
	if err != nil {
		t.Fatalf("WarmCache() error = %v", err)
	}

	ids, err := c.GetRange(ctx, user, 0, 10)
	if err != nil {
		t.Fatalf("GetRange() error = %v", err)
	}
	if !reflect.DeepEqual(ids, []int64{100, 10, 9}) {
		t.Errorf("GetRange() = %v, want [100 10 9]", ids)
	}
}
