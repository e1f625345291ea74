package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/okian/trustmatch/pkg/metrics"
)

const (
	defaultWriteTimeout = 5 * time.Second
	defaultBatchTimeout = 10 * time.Millisecond
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Option applies a configuration option to the KafkaPublisher.
type Option func(*KafkaPublisher)

// WithWriteTimeout bounds one Publish call.
func WithWriteTimeout(d time.Duration) Option {
	return func(p *KafkaPublisher) {
		if d > 0 {
			p.writeTimeout = d
		}
	}
}

func withWriter(w messageWriter) Option {
	return func(p *KafkaPublisher) {
		p.writer = w
	}
}

// KafkaPublisher writes notifications as JSON values keyed by subject id, so
// every notification about one subject lands on the same partition.
type KafkaPublisher struct {
	writer       messageWriter
	topic        string
	writeTimeout time.Duration
	closed       atomic.Bool
}

var _ Publisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher builds a publisher for topic on brokers.
func NewKafkaPublisher(brokers []string, topic string, opts ...Option) (*KafkaPublisher, error) {
	var addrs []string
	for _, b := range brokers {
		if b = strings.TrimSpace(b); b != "" {
			addrs = append(addrs, b)
		}
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w: at least one broker is required", ErrInvalidConfig)
	}
	if strings.TrimSpace(topic) == "" {
		return nil, fmt.Errorf("%w: topic must not be empty", ErrInvalidConfig)
	}

	p := &KafkaPublisher{topic: topic, writeTimeout: defaultWriteTimeout}
	for _, opt := range opts {
		opt(p)
	}
	if p.writer == nil {
		p.writer = &kafka.Writer{
			Addr:                   kafka.TCP(addrs...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			BatchTimeout:           defaultBatchTimeout,
			AllowAutoTopicCreation: true,
		}
	}
	return p, nil
}

// Publish writes ns in one batch.
func (p *KafkaPublisher) Publish(ctx context.Context, ns ...Notification) error {
	if len(ns) == 0 {
		return nil
	}
	if p.closed.Load() {
		return ErrClosed
	}

	msgs := make([]kafka.Message, 0, len(ns))
	for _, n := range ns {
		b, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("%w: encode %s: %v", ErrPublish, n.Kind, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(n.SubjectID),
			Value: b,
			Time:  n.OccurredAt,
			Headers: []kafka.Header{
				{Key: "kind", Value: []byte(n.Kind)},
			},
		})
	}

	ctx, cancel := context.WithTimeout(ctx, p.writeTimeout)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		for _, n := range ns {
			metrics.RecordNotification(string(n.Kind), "error")
		}
		return fmt.Errorf("%w: topic %s: %v", ErrPublish, p.topic, err)
	}
	for _, n := range ns {
		metrics.RecordNotification(string(n.Kind), "ok")
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	return p.writer.Close()
}
