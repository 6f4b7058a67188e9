package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Message is a parsed stream entry.
type Message struct {
	ID    string
	Event FeedEvent
}

// Consumer reads events from a stream as part of a consumer group.
type Consumer interface {
	// EnsureGroup creates the consumer group (and stream) if missing.
	EnsureGroup(ctx context.Context, stream, group string) error

	// Read returns messages never delivered to any consumer, blocking up to block.
	Read(ctx context.Context, stream, group, consumer string, count int64, block time.Duration) ([]Message, error)

	// ReadPending returns messages delivered to consumer but never acknowledged.
	ReadPending(ctx context.Context, stream, group, consumer string, count int64) ([]Message, error)

	Ack(ctx context.Context, stream, group string, messageIDs ...string) error
}

// RedisConsumer implements Consumer using Redis Streams.
type RedisConsumer struct {
	client *redis.Client
}

func NewConsumer(client *redis.Client) Consumer {
	return &RedisConsumer{client: client}
}

// EnsureGroup starts a new group at "0" so events published before the first
// worker came up are still handled.
func (c *RedisConsumer) EnsureGroup(ctx context.Context, stream, group string) error {
	err := c.client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil {
		if strings.HasPrefix(err.Error(), "BUSYGROUP") {
			log.Debugf("[Consumer] EnsureGroup: stream=%s group=%s (already exists)", stream, group)
			return nil
		}
		return fmt.Errorf("create consumer group: %w", err)
	}

	log.Infof("[Consumer] EnsureGroup OK: stream=%s group=%s (created)", stream, group)
	return nil
}

func (c *RedisConsumer) Read(ctx context.Context, stream, group, consumer string, count int64, block time.Duration) ([]Message, error) {
	return c.read(ctx, stream, group, consumer, ">", count, block)
}

func (c *RedisConsumer) ReadPending(ctx context.Context, stream, group, consumer string, count int64) ([]Message, error) {
	// A negative block omits BLOCK so the pending read returns immediately.
	return c.read(ctx, stream, group, consumer, "0", count, -1)
}

func (c *RedisConsumer) read(ctx context.Context, stream, group, consumer, id string, count int64, block time.Duration) ([]Message, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, id},
		Count:    count,
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("xreadgroup %s: %w", id, err)
	}

	var messages []Message
	var malformed []string
	for _, s := range streams {
		for _, msg := range s.Messages {
			event, err := ParseFeedEvent(msg.Values)
			if err != nil {
				log.Warnf("[Consumer] dropping malformed message: msgID=%s err=%v", msg.ID, err)
				malformed = append(malformed, msg.ID)
				continue
			}
			messages = append(messages, Message{ID: msg.ID, Event: event})
		}
	}

	// Malformed entries can never be handled; ack them so they leave the pending list.
	if len(malformed) > 0 {
		_ = c.Ack(ctx, stream, group, malformed...)
	}

	return messages, nil
}

func (c *RedisConsumer) Ack(ctx context.Context, stream, group string, messageIDs ...string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	if err := c.client.XAck(ctx, stream, group, messageIDs...).Err(); err != nil {
		return fmt.Errorf("xack: %w", err)
	}
	return nil
}
