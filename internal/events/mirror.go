// Package events mirrors verified webhook events to a Kafka topic for
// downstream consumers. Mirroring is best effort: the inbox is a bounded
// buffer, events are dropped when it is full or the broker circuit is open,
// and the webhook path never blocks on the broker.
package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"orgkit/pkg/platform/circuit"
)

const defaultInboxSize = 256

type message struct {
	eventType string
	payload   []byte
}

// Mirror publishes events asynchronously through a worker goroutine.
type Mirror struct {
	client  *kgo.Client
	topic   string
	inbox   chan message
	breaker *circuit.Breaker
	logger  *slog.Logger
}

// Option configures the mirror.
type Option func(*Mirror)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Mirror) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func WithInboxSize(size int) Option {
	return func(m *Mirror) {
		if size > 0 {
			m.inbox = make(chan message, size)
		}
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(m *Mirror) {
		if b != nil {
			m.breaker = b
		}
	}
}

// New connects to the brokers and ensures the topic exists.
func New(ctx context.Context, brokers []string, topic string, opts ...Option) (*Mirror, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	m := &Mirror{
		client:  client,
		topic:   topic,
		inbox:   make(chan message, defaultInboxSize),
		breaker: circuit.New("kafka-mirror"),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}

	if err := ensureTopic(ctx, client, topic); err != nil {
		client.Close()
		return nil, err
	}
	return m, nil
}

// ensureTopic creates the topic if it does not exist yet.
func ensureTopic(ctx context.Context, client *kgo.Client, topic string) error {
	admin := kadm.NewClient(client)
	resp, err := admin.CreateTopics(ctx, 1, 1, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %q: %w", topic, err)
	}
	for _, result := range resp {
		if result.Err != nil && !isTopicExists(result.Err) {
			return fmt.Errorf("create topic %q: %w", topic, result.Err)
		}
	}
	return nil
}

func isTopicExists(err error) bool {
	return errors.Is(err, kerr.TopicAlreadyExists)
}

// Publish enqueues an event for mirroring. It never blocks: when the inbox is
// full the event is dropped and logged.
func (m *Mirror) Publish(ctx context.Context, eventType string, payload []byte) {
	select {
	case m.inbox <- message{eventType: eventType, payload: append([]byte(nil), payload...)}:
	default:
		m.logger.WarnContext(ctx, "event mirror inbox full, dropping event",
			"event_type", eventType,
			"topic", m.topic,
		)
	}
}

// Run consumes the inbox and produces to Kafka until ctx is canceled.
// Cancellation is the normal shutdown path and is not reported as an error.
func (m *Mirror) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			m.client.Close()
			return nil
		case msg := <-m.inbox:
			m.produce(ctx, msg)
		}
	}
}

func (m *Mirror) produce(ctx context.Context, msg message) {
	if !m.breaker.Allow() {
		m.logger.WarnContext(ctx, "event mirror circuit open, dropping event",
			"event_type", msg.eventType,
		)
		return
	}

	record := &kgo.Record{
		Topic: m.topic,
		Key:   []byte(msg.eventType),
		Value: msg.payload,
	}
	if err := m.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		if _, change := m.breaker.RecordFailure(); change.Opened {
			m.logger.ErrorContext(ctx, "event mirror circuit opened",
				"topic", m.topic,
				"error", err,
			)
		}
		return
	}
	if _, change := m.breaker.RecordSuccess(); change.Closed {
		m.logger.InfoContext(ctx, "event mirror circuit closed", "topic", m.topic)
	}
}
