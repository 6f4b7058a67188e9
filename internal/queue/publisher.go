package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Publisher adds events to a stream.
type Publisher interface {
	// Publish returns the message ID assigned by Redis.
	Publish(ctx context.Context, stream string, event FeedEvent) (messageID string, err error)
}

// RedisPublisher implements Publisher using Redis Streams.
type RedisPublisher struct {
	client *redis.Client
	maxLen int64
}

// NewPublisher creates a Publisher that trims the stream to roughly maxLen entries.
func NewPublisher(client *redis.Client, maxLen int64) Publisher {
	return &RedisPublisher{client: client, maxLen: maxLen}
}

func (p *RedisPublisher) Publish(ctx context.Context, stream string, event FeedEvent) (string, error) {
	startTime := time.Now()

	values, err := event.ToMap()
	if err != nil {
		return "", fmt.Errorf("serialize event: %w", err)
	}

	messageID, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: p.maxLen,
		Approx: p.maxLen > 0,
		Values: values,
	}).Result()
	if err != nil {
		log.Errorf("[Publisher] Publish FAILED: stream=%s type=%s err=%v", stream, event.Type, err)
		return "", fmt.Errorf("xadd to stream: %w", err)
	}

	log.WithFields(log.Fields{
		"stream":   stream,
		"type":     event.Type,
		"msg_id":   messageID,
		"post":     event.PostID,
		"author":   event.AuthorID,
		"duration": time.Since(startTime),
	}).Debug("[Publisher] Publish OK")

	return messageID, nil
}
