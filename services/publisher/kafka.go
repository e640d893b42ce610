package publisher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// ErrNoTopic is returned when no Kafka topic is configured
var ErrNoTopic = errors.New("topic is required")

// Writer is the subset of kafka.Writer the publisher uses
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// WriterFactory creates a writer for a topic
type WriterFactory func(topic string) (Writer, error)

// KafkaPublisher writes outcomes to a Kafka topic keyed by task id
type KafkaPublisher struct {
	ctx    context.Context
	topic  string
	writer Writer
	now    func() time.Time
}

// NewKafkaPublisher creates a publisher for topic. Cancelling ctx does not
// stop publishing.
func NewKafkaPublisher(ctx context.Context, topic string, factory WriterFactory) (*KafkaPublisher, error) {
	if topic == "" {
		return nil, ErrNoTopic
	}
	w, err := factory(topic)
	if err != nil {
		return nil, fmt.Errorf("create writer for topic %s: %w", topic, err)
	}
	return &KafkaPublisher{ctx: context.WithoutCancel(ctx), topic: topic, writer: w, now: time.Now}, nil
}

func (p *KafkaPublisher) Publish(key string, message []byte) error {
	msg := kafka.Message{
		Key:   []byte(key),
		Value: message,
		Time:  p.now(),
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
		},
	}
	ctx, cancel := context.WithTimeout(p.ctx, PublishTimeout)
	defer cancel()
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write kafka message: %w", err)
	}
	return nil
}

// TrimStreams leaves retention to the broker
func (p *KafkaPublisher) TrimStreams() error {
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NewKafkaWriterFactory builds a writer factory for brokers
func NewKafkaWriterFactory(brokers []string) WriterFactory {
	b := append([]string(nil), brokers...)
	return func(topic string) (Writer, error) {
		if len(b) == 0 {
			return nil, errors.New("no kafka brokers configured")
		}
		return &kafka.Writer{
			Addr:                   kafka.TCP(b...),
			Topic:                  topic,
			AllowAutoTopicCreation: true,
			RequiredAcks:           kafka.RequireAll,
			Balancer:               &kafka.Hash{},
		}, nil
	}
}
