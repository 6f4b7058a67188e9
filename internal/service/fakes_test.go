package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"yatube/internal/model"
	"yatube/internal/queue"
)

// =============================================================================
// FAKES shared by the service tests
// =============================================================================

// memFeedCache is an in-memory FeedCache. failAll makes every call fail.
type memFeedCache struct {
	mu          sync.Mutex
	feeds       map[int64]map[int64]int64
	failAll     bool
	invalidated []int64
}

func newMemFeedCache() *memFeedCache {
	return &memFeedCache{feeds: map[int64]map[int64]int64{}}
}

var errCacheDown = errors.New("cache down")

func (c *memFeedCache) AddPost(_ context.Context, userID, postID, score int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failAll {
		return errCacheDown
	}
	if c.feeds[userID] == nil {
		c.feeds[userID] = map[int64]int64{}
	}
	c.feeds[userID][postID] = score
	return nil
}

func (c *memFeedCache) AddPostIfWarm(ctx context.Context, userID, postID, score int64) (bool, error) {
	c.mu.Lock()
	_, warm := c.feeds[userID]
	c.mu.Unlock()
	if !warm {
		return false, nil
	}
	return true, c.AddPost(ctx, userID, postID, score)
}

func (c *memFeedCache) RemovePost(_ context.Context, userID, postID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.feeds[userID], postID)
	return nil
}

func (c *memFeedCache) GetRange(_ context.Context, userID int64, offset, limit int) ([]int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failAll {
		return nil, errCacheDown
	}
	feed := c.feeds[userID]
	ids := make([]int64, 0, len(feed))
	for id := range feed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return feed[ids[i]] > feed[ids[j]] })
	if offset >= len(ids) {
		return []int64{}, nil
	}
	return ids[offset:min(offset+limit, len(ids))], nil
}

func (c *memFeedCache) WarmCache(ctx context.Context, userID int64, posts []model.PostScore) error {
	for _, p := range posts {
		if err := c.AddPost(ctx, userID, p.PostID, p.Score); err != nil {
			return err
		}
	}
	return nil
}

func (c *memFeedCache) Size(_ context.Context, userID int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failAll {
		return 0, errCacheDown
	}
	return int64(len(c.feeds[userID])), nil
}

func (c *memFeedCache) Exists(_ context.Context, userID int64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failAll {
		return false, errCacheDown
	}
	_, ok := c.feeds[userID]
	return ok, nil
}

func (c *memFeedCache) Invalidate(_ context.Context, userID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, userID)
	delete(c.feeds, userID)
	return nil
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	events []queue.FeedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, e queue.FeedEvent) (string, error) {
	p.events = append(p.events, e)
	return "1-0", nil
}

// fakeImageStore returns uploadErr or a fixed key, and records deletions.
type fakeImageStore struct {
	uploadErr error
	uploads   int
	deleted   []string
}

func (s *fakeImageStore) UploadPostImage(context.Context, *model.ImageUpload) (*model.UploadResult, error) {
	if s.uploadErr != nil {
		return nil, s.uploadErr
	}
	s.uploads++
	key := fmt.Sprintf("posts/img%d.jpg", s.uploads)
	return &model.UploadResult{URL: "https://cdn.example/" + key, Key: key}, nil
}

func (s *fakeImageStore) DeleteObject(_ context.Context, key string) error {
	s.deleted = append(s.deleted, key)
	return nil
}
