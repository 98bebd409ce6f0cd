package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is a record published to or consumed from Kafka.
type Message struct {
	Topic     string
	Key       string // partition key
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// Producer publishes messages to Kafka/RedPanda.
type Producer interface {
	// Publish sends msg synchronously, waiting for broker acknowledgement.
	Publish(ctx context.Context, msg Message) error
	// PublishJSON marshals value as JSON and publishes synchronously.
	PublishJSON(ctx context.Context, topic, key string, value any) error
	// Close flushes pending records and shuts down the producer.
	Close()
}

// ProducerOption configures a KafkaProducer.
type ProducerOption func(*producerConfig)

type producerConfig struct {
	instanceID    string
	schemaVersion string
	linger        time.Duration
}

// WithInstanceID sets the client id, also stamped into message headers.
func WithInstanceID(id string) ProducerOption {
	return func(c *producerConfig) { c.instanceID = id }
}

// WithSchemaVersion sets the schema version header.
func WithSchemaVersion(v string) ProducerOption {
	return func(c *producerConfig) { c.schemaVersion = v }
}

// WithLinger sets how long records wait for batching.
func WithLinger(d time.Duration) ProducerOption {
	return func(c *producerConfig) { c.linger = d }
}

// KafkaProducer is a Producer backed by franz-go.
type KafkaProducer struct {
	client         *kgo.Client
	defaultHeaders map[string]string
	mu             sync.RWMutex
	closed         bool
}

var _ Producer = (*KafkaProducer)(nil)

// NewProducer creates a franz-go producer with snappy compression that
// waits for all in-sync replicas.
func NewProducer(brokers []string, opts ...ProducerOption) (*KafkaProducer, error) {
	cfg := &producerConfig{
		instanceID:    "scout",
		schemaVersion: SchemaVersion,
		linger:        5 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(cfg.instanceID),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerLinger(cfg.linger),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	log.Info().
		Strs("brokers", brokers).
		Str("instance_id", cfg.instanceID).
		Msg("bus: kafka producer created")

	return &KafkaProducer{
		client: client,
		defaultHeaders: map[string]string{
			"producer":       cfg.instanceID,
			"schema_version": cfg.schemaVersion,
		},
	}, nil
}

// toRecord converts msg to a kgo.Record, filling default headers and an event id.
func toRecord(msg Message, defaults map[string]string) *kgo.Record {
	headers := make(map[string]string, len(msg.Headers)+len(defaults)+1)
	for k, v := range defaults {
		headers[k] = v
	}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	if _, ok := headers["event_id"]; !ok {
		headers["event_id"] = uuid.New().String()
	}

	rh := make([]kgo.RecordHeader, 0, len(headers))
	for k, v := range headers {
		rh = append(rh, kgo.RecordHeader{Key: k, Value: []byte(v)})
	}

	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return &kgo.Record{
		Topic:     msg.Topic,
		Key:       []byte(msg.Key),
		Value:     msg.Value,
		Headers:   rh,
		Timestamp: ts,
	}
}

// Publish sends msg and waits for the broker acknowledgement.
func (p *KafkaProducer) Publish(ctx context.Context, msg Message) error {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	results := p.client.ProduceSync(ctx, toRecord(msg, p.defaultHeaders))
	if err := results.FirstErr(); err != nil {
		return fmt.Errorf("publish to %s: %w", msg.Topic, err)
	}

	r := results[0].Record
	log.Debug().
		Str("topic", r.Topic).
		Int32("partition", r.Partition).
		Int64("offset", r.Offset).
		Msg("bus: message published")
	return nil
}

// PublishJSON marshals value as JSON and publishes it synchronously.
func (p *KafkaProducer) PublishJSON(ctx context.Context, topic, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	return p.Publish(ctx, Message{Topic: topic, Key: key, Value: data})
}

// Close flushes buffered records and shuts the client down.
func (p *KafkaProducer) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.client.Flush(ctx); err != nil {
		log.Warn().Err(err).Msg("bus: flush on close failed")
	}
	p.client.Close()
	log.Info().Msg("bus: kafka producer closed")
}

// MemoryProducer buffers messages in memory. Used when no brokers are
// configured and in tests.
type MemoryProducer struct {
	mu       sync.Mutex
	messages []Message
}

var _ Producer = (*MemoryProducer)(nil)

// NewMemoryProducer creates an empty in-memory producer.
func NewMemoryProducer() *MemoryProducer {
	return &MemoryProducer{}
}

func (p *MemoryProducer) Publish(_ context.Context, msg Message) error {
	p.mu.Lock()
	p.messages = append(p.messages, msg)
	p.mu.Unlock()
	return nil
}

func (p *MemoryProducer) PublishJSON(ctx context.Context, topic, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	return p.Publish(ctx, Message{Topic: topic, Key: key, Value: data})
}

// Messages returns a copy of everything published so far.
func (p *MemoryProducer) Messages() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Message, len(p.messages))
	copy(out, p.messages)
	return out
}

func (p *MemoryProducer) Close() {}
