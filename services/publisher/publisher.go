package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"sjsage522/bidsniper/internal/model"
	bserrors "sjsage522/bidsniper/pkg/errors"
)

// Publisher represents a service for publishing task outcome events
type Publisher interface {
	// Publish publishes a message under key
	Publish(key string, message []byte) error

	// TrimStreams trims retained events to the configured maximum length
	TrimStreams() error

	// Close closes the publisher connection
	Close() error
}

// PublishTimeout bounds a single publish
const PublishTimeout = 5 * time.Second

// Sink names accepted by New
const (
	SinkRedis = "redis"
	SinkNATS  = "nats"
	SinkKafka = "kafka"
	SinkNone  = "none"
)

// Settings selects and configures the outcome sink
type Settings struct {
	Sink string

	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int

	NATSURL     string
	NATSSubject string

	KafkaBrokers []string
	KafkaTopic   string
}

// New creates the publisher named by s.Sink. The none sink returns a nil
// publisher and no error.
func New(ctx context.Context, s Settings) (Publisher, error) {
	switch strings.ToLower(s.Sink) {
	case SinkRedis:
		return NewRedisPublisher(ctx, s.RedisAddr, s.RedisDB, s.RedisStream, s.RedisStreamCount, s.RedisStreamMaxLength), nil
	case SinkNATS:
		p, err := NewNATSPublisher(s.NATSURL, s.NATSSubject)
		if err != nil {
			return nil, bserrors.NewConfiguration("failed to connect to nats", err)
		}
		return p, nil
	case SinkKafka:
		p, err := NewKafkaPublisher(ctx, s.KafkaTopic, NewKafkaWriterFactory(s.KafkaBrokers))
		if err != nil {
			return nil, bserrors.NewConfiguration("failed to create kafka writer", err)
		}
		return p, nil
	case SinkNone, "":
		return nil, nil
	default:
		return nil, bserrors.NewConfiguration(fmt.Sprintf("unknown event sink %q", s.Sink), nil)
	}
}

// PublishOutcome publishes o as JSON keyed by its task id
func PublishOutcome(p Publisher, o model.Outcome) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}
	return p.Publish(o.TaskID, data)
}
