package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types for the feed stream
const (
	EventPostCreated = "post_created"
	EventPostDeleted = "post_deleted"
)

// StreamFeed carries post lifecycle events to the feed workers.
const StreamFeed = "stream:feed"

// ConsumerGroupFeed is the consumer group shared by all feed workers.
const ConsumerGroupFeed = "feed_workers"

// FeedEvent is a post lifecycle event.
type FeedEvent struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"` // Unix seconds when the event was published

	PostID   int64 `json:"post_id"`
	AuthorID int64 `json:"author_id"`
	// Score is the post's created_at in Unix microseconds, the feed cache ordering key.
	Score int64 `json:"score,omitempty"`
}

// NewPostCreatedEvent is fanned out to the author's followers' cached feeds.
func NewPostCreatedEvent(postID, authorID int64, createdAt time.Time) FeedEvent {
	return FeedEvent{
		Type:      EventPostCreated,
		Timestamp: time.Now().Unix(),
		PostID:    postID,
		AuthorID:  authorID,
		Score:     createdAt.UnixMicro(),
	}
}

// NewPostDeletedEvent removes the post from the author's followers' cached feeds.
func NewPostDeletedEvent(postID, authorID int64) FeedEvent {
	return FeedEvent{
		Type:      EventPostDeleted,
		Timestamp: time.Now().Unix(),
		PostID:    postID,
		AuthorID:  authorID,
	}
}

// ToMap converts the event to XADD field-value pairs. The payload is JSON in "data".
func (e FeedEvent) ToMap() (map[string]any, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return map[string]any{
		"type": e.Type,
		"data": string(data),
	}, nil
}

// ParseFeedEvent parses a FeedEvent from Redis stream message values.
func ParseFeedEvent(values map[string]any) (FeedEvent, error) {
	data, ok := values["data"].(string)
	if !ok {
		return FeedEvent{}, fmt.Errorf("missing or invalid 'data' field")
	}

	var event FeedEvent
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return FeedEvent{}, fmt.Errorf("unmarshal event: %w", err)
	}
	if event.Type == "" {
		return FeedEvent{}, fmt.Errorf("event without type")
	}
	return event, nil
}
