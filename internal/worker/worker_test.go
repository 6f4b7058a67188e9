package worker_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"yatube/internal/model"
	"yatube/internal/queue"
	"yatube/internal/worker"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeFeedCache struct {
	mu    sync.Mutex
	feeds map[int64]map[int64]int64 // user -> post -> score
}

func newFakeFeedCache() *fakeFeedCache {
	return &fakeFeedCache{feeds: map[int64]map[int64]int64{}}
}

func (f *fakeFeedCache) warm(userID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feeds[userID] = map[int64]int64{}
}

func (f *fakeFeedCache) has(userID, postID int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.feeds[userID][postID]
	return ok
}

func (f *fakeFeedCache) AddPost(_ context.Context, userID, postID, score int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.feeds[userID] == nil {
		f.feeds[userID] = map[int64]int64{}
	}
	f.feeds[userID][postID] = score
	return nil
}

func (f *fakeFeedCache) AddPostIfWarm(_ context.Context, userID, postID, score int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	feed, ok := f.feeds[userID]
	if !ok {
		return false, nil
	}
	feed[postID] = score
	return true, nil
}

func (f *fakeFeedCache) RemovePost(_ context.Context, userID, postID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.feeds[userID], postID)
	return nil
}

func (f *fakeFeedCache) GetRange(_ context.Context, userID int64, offset, limit int) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]int64, 0, len(f.feeds[userID]))
	for id := range f.feeds[userID] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return f.feeds[userID][ids[i]] > f.feeds[userID][ids[j]] })
	if offset >= len(ids) {
		return []int64{}, nil
	}
	return ids[offset:min(offset+limit, len(ids))], nil
}

func (f *fakeFeedCache) WarmCache(ctx context.Context, userID int64, posts []model.PostScore) error {
	for _, p := range posts {
		_ = f.AddPost(ctx, userID, p.PostID, p.Score)
	}
	return nil
}

func (f *fakeFeedCache) Size(_ context.Context, userID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.feeds[userID])), nil
}

func (f *fakeFeedCache) Exists(_ context.Context, userID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.feeds[userID]
	return ok, nil
}

func (f *fakeFeedCache) Invalidate(_ context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.feeds, userID)
	return nil
}

type fakeFollowers map[int64][]int64

func (f fakeFollowers) GetFollowerIDs(_ context.Context, authorID int64) ([]int64, error) {
	return f[authorID], nil
}

type fakePages struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (p *fakePages) InvalidateAll(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.err
}

// =============================================================================
// Handler
// =============================================================================

func TestHandler_PostCreated_FansOutToWarmFeedsOnly(t *testing.T) {
	// ARRANGE
	feeds := newFakeFeedCache()
	feeds.warm(2)
	feeds.warm(3)
	pages := &fakePages{}
	h := worker.NewHandler(feeds, fakeFollowers{1: {2, 3, 4}}, pages)

	// ACT
	err := h.HandleEvent(context.Background(), queue.NewPostCreatedEvent(100, 1, time.Now()))

	// ASSERT
	if err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	for _, u := range []int64{2, 3} {
		if !feeds.has(u, 100) {
			t.Errorf("post 100 missing from warm feed of user %d", u)
		}
	}
	if ok, _ := feeds.Exists(context.Background(), 4); ok {
		t.Error("cold feed of user 4 was created by fan-out")
	}
	if ok, _ := feeds.Exists(context.Background(), 1); ok {
		t.Error("author's own feed received the post")
	}
	if pages.calls != 1 {
		t.Errorf("page cache invalidations = %d, want 1", pages.calls)
	}
}

// racingFeedCache drops the feed right after reporting it exists, as a
// follow committed between a check and a write would.
type racingFeedCache struct {
	*fakeFeedCache
}

func (c racingFeedCache) Exists(ctx context.Context, userID int64) (bool, error) {
	ok, err := c.fakeFeedCache.Exists(ctx, userID)
	_ = c.fakeFeedCache.Invalidate(ctx, userID)
	return ok, err
}

func TestHandler_PostCreated_NeverLeavesPartialFeed(t *testing.T) {
	// ARRANGE
	ctx := context.Background()
	inner := newFakeFeedCache()
	inner.warm(7)
	_ = inner.AddPost(ctx, 7, 100, 1)
	h := worker.NewHandler(racingFeedCache{inner}, fakeFollowers{1: {7}}, &fakePages{})

	// ACT
	err := h.HandleEvent(ctx, queue.NewPostCreatedEvent(200, 1, time.Now()))

	// ASSERT
	if err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	if ok, _ := inner.Exists(ctx, 7); ok && !(inner.has(7, 100) && inner.has(7, 200)) {
		t.Errorf("feed of user 7 exists but is partial: has100=%t has200=%t", inner.has(7, 100), inner.has(7, 200))
	}
}

func TestHandler_PostDeleted_RemovesFromFeeds(t *testing.T) {
	feeds := newFakeFeedCache()
	ctx := context.Background()
	_ = feeds.AddPost(ctx, 2, 100, 1)
	_ = feeds.AddPost(ctx, 2, 101, 2)
	pages := &fakePages{}
	h := worker.NewHandler(feeds, fakeFollowers{1: {2}}, pages)

	if err := h.HandleEvent(ctx, queue.NewPostDeletedEvent(100, 1)); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}

	if feeds.has(2, 100) {
		t.Error("deleted post still in follower feed")
	}
	if !feeds.has(2, 101) {
		t.Error("unrelated post removed")
	}
	if pages.calls != 1 {
		t.Errorf("page cache invalidations = %d, want 1", pages.calls)
	}
}

func TestHandler_UnknownEvent(t *testing.T) {
	h := worker.NewHandler(newFakeFeedCache(), fakeFollowers{}, nil)

	if err := h.HandleEvent(context.Background(), queue.FeedEvent{Type: "bogus"}); err == nil {
		t.Error("HandleEvent(bogus) error = nil, want error")
	}
}

func TestHandler_PageInvalidationErrorSurfaces(t *testing.T) {
	pages := &fakePages{err: errors.New("redis down")}
	h := worker.NewHandler(newFakeFeedCache(), fakeFollowers{}, pages)

	if err := h.HandleEvent(context.Background(), queue.NewPostCreatedEvent(1, 1, time.Now())); err == nil {
		t.Error("HandleEvent() error = nil, want invalidation error")
	}
}

// =============================================================================
// Manager
// =============================================================================

type fakeConsumer struct {
	mu      sync.Mutex
	pending []queue.Message
	fresh   []queue.Message
	acked   []string

	// ackErr fails every Ack; acks that fail leave pending messages in place.
	ackErr error
}

func (c *fakeConsumer) EnsureGroup(context.Context, string, string) error { return nil }

func (c *fakeConsumer) Read(ctx context.Context, _, _, _ string, _ int64, block time.Duration) ([]queue.Message, error) {
	c.mu.Lock()
	if len(c.fresh) > 0 {
		msgs := c.fresh
		c.fresh = nil
		c.mu.Unlock()
		return msgs, nil
	}
	c.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(block):
		return nil, nil
	}
}

func (c *fakeConsumer) ReadPending(context.Context, string, string, string, int64) ([]queue.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs := c.pending
	if c.ackErr == nil {
		c.pending = nil
	}
	return msgs, nil
}

func (c *fakeConsumer) Ack(_ context.Context, _, _ string, ids ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ackErr != nil {
		return c.ackErr
	}
	c.acked = append(c.acked, ids...)
	return nil
}

func (c *fakeConsumer) ackedIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := append([]string(nil), c.acked...)
	sort.Strings(out)
	return out
}

type recordingHandler struct {
	mu   sync.Mutex
	seen []int64
}

func (h *recordingHandler) handled(postID int64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, id := range h.seen {
		if id == postID {
			return true
		}
	}
	return false
}

func (h *recordingHandler) HandleEvent(_ context.Context, e queue.FeedEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, e.PostID)
	if e.PostID == 2 {
		return errors.New("boom")
	}
	return nil
}

func TestManager_ProcessesPendingThenNewAndAcksAll(t *testing.T) {
	// ARRANGE
	consumer := &fakeConsumer{
		pending: []queue.Message{{ID: "1-0", Event: queue.FeedEvent{Type: queue.EventPostCreated, PostID: 1}}},
		fresh: []queue.Message{
			{ID: "2-0", Event: queue.FeedEvent{Type: queue.EventPostCreated, PostID: 2}},
			{ID: "3-0", Event: queue.FeedEvent{Type: queue.EventPostDeleted, PostID: 3}},
		},
	}
	handler := &recordingHandler{}
	m := worker.NewManager(consumer, handler, worker.ManagerConfig{
		WorkerCount:  1,
		BlockTimeout: 10 * time.Millisecond,
		ConsumerName: "test",
	})

	// ACT
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for len(consumer.ackedIDs()) < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	m.Stop()

	// ASSERT
	got := consumer.ackedIDs()
	want := []string{"1-0", "2-0", "3-0"}
	if len(got) != len(want) {
		t.Fatalf("acked = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("acked[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if len(handler.seen) != 3 || handler.seen[0] != 1 {
		t.Errorf("handled = %v, want pending post 1 first then 2, 3", handler.seen)
	}
}

func TestManager_MovesPastPendingWhenAcksFail(t *testing.T) {
	// ARRANGE
	consumer := &fakeConsumer{
		pending: []queue.Message{{ID: "1-0", Event: queue.FeedEvent{Type: queue.EventPostCreated, PostID: 1}}},
		fresh:   []queue.Message{{ID: "5-0", Event: queue.FeedEvent{Type: queue.EventPostCreated, PostID: 5}}},
		ackErr:  errors.New("redis down"),
	}
	handler := &recordingHandler{}
	m := worker.NewManager(consumer, handler, worker.ManagerConfig{
		WorkerCount:  1,
		BlockTimeout: 10 * time.Millisecond,
		ConsumerName: "test",
	})

	// ACT
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for !handler.handled(5) && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	m.Stop()

	// ASSERT
	if !handler.handled(5) {
		t.Error("new message never handled; worker stuck re-reading pending messages")
	}
}

// =============================================================================
// Inline publisher
// =============================================================================

func TestInlinePublisher_InvalidatesPagesWithoutFeedCache(t *testing.T) {
	pages := &fakePages{}
	pub := worker.InlinePublisher{Handler: worker.NewHandler(nil, fakeFollowers{1: {2}}, pages)}

	id, err := pub.Publish(context.Background(), queue.StreamFeed, queue.NewPostCreatedEvent(7, 1, time.Now()))

	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if id != "inline" {
		t.Errorf("id = %q, want %q", id, "inline")
	}
	if pages.calls != 1 {
		t.Errorf("page cache invalidations = %d, want 1", pages.calls)
	}
}
