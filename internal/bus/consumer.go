package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/nexus-trading/scout/internal/feed"
	"github.com/nexus-trading/scout/internal/snapshot"
)

// MessageHandler processes a consumed message. Errors are logged; the
// offset is committed regardless.
type MessageHandler func(ctx context.Context, msg Message) error

// Consumer reads messages from Kafka/RedPanda topics.
type Consumer interface {
	// Consume runs the poll loop until ctx is cancelled.
	Consume(ctx context.Context, handler MessageHandler) error
	Close()
}

// KafkaConsumer is a franz-go group consumer with auto-commit.
type KafkaConsumer struct {
	client  *kgo.Client
	groupID string
	topics  []string
	mu      sync.Mutex
	closed  bool
}

var _ Consumer = (*KafkaConsumer)(nil)

// NewConsumer joins groupID and subscribes to topics. New groups start at
// the earliest offset.
func NewConsumer(brokers []string, groupID string, topics []string) (*KafkaConsumer, error) {
	if len(topics) == 0 {
		return nil, errors.New("bus: at least one topic is required")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(groupID),
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeTopics(topics...),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}

	log.Info().
		Strs("brokers", brokers).
		Str("group_id", groupID).
		Strs("topics", topics).
		Msg("bus: kafka consumer created")

	return &KafkaConsumer{client: client, groupID: groupID, topics: topics}, nil
}

// Consume polls until ctx is cancelled, passing every record to handler.
func (c *KafkaConsumer) Consume(ctx context.Context, handler MessageHandler) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}

	for {
		fetches := c.client.PollFetches(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		for _, fe := range fetches.Errors() {
			log.Error().
				Err(fe.Err).
				Str("topic", fe.Topic).
				Int32("partition", fe.Partition).
				Msg("bus: fetch error")
		}

		fetches.EachRecord(func(record *kgo.Record) {
			if err := handler(ctx, recordToMessage(record)); err != nil {
				log.Warn().Err(err).
					Str("topic", record.Topic).
					Int32("partition", record.Partition).
					Int64("offset", record.Offset).
					Msg("bus: message handler error")
			}
		})

		c.client.AllowRebalance()
	}
}

// Close leaves the group, committing final offsets.
func (c *KafkaConsumer) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.client.Close()
	log.Info().Str("group", c.groupID).Msg("bus: kafka consumer closed")
}

func recordToMessage(r *kgo.Record) Message {
	headers := make(map[string]string, len(r.Headers))
	for _, h := range r.Headers {
		headers[h.Key] = string(h.Value)
	}
	return Message{
		Topic:     r.Topic,
		Key:       string(r.Key),
		Value:     r.Value,
		Headers:   headers,
		Timestamp: r.Timestamp,
	}
}

// Snapshots consumes snapshot messages into a channel that closes when ctx
// ends. Values use the websocket frame format; malformed ones are dropped
// and reported to observe.
func Snapshots(ctx context.Context, c Consumer, buffer int, observe func(accepted bool)) <-chan snapshot.Snapshot {
	out := make(chan snapshot.Snapshot, buffer)
	go func() {
		defer close(out)
		if err := c.Consume(ctx, snapshotHandler(out, observe)); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("bus: snapshot consumer stopped")
		}
	}()
	return out
}

func snapshotHandler(out chan<- snapshot.Snapshot, observe func(accepted bool)) MessageHandler {
	if observe == nil {
		observe = func(bool) {}
	}
	return func(ctx context.Context, msg Message) error {
		s, err := feed.DecodeFrame(msg.Value)
		if err != nil {
			observe(false)
			return err
		}
		observe(true)
		select {
		case out <- s:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
