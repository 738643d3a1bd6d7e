package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaConfig holds the broker settings for the signal topic
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	Compression  string
	WriteTimeout time.Duration
	Enabled      bool
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes each message as JSON keyed by its title, so
// downstream consumers see every symbol/timeframe on one partition.
type KafkaNotifier struct {
	writer  messageWriter
	topic   string
	enabled bool
	now     func() time.Time
}

type kafkaPayload struct {
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// NewKafkaNotifier creates a producer for cfg.Topic. It does not dial;
// connection errors surface on the first Send.
func NewKafkaNotifier(cfg KafkaConfig) *KafkaNotifier {
	enabled := cfg.Enabled && len(cfg.Brokers) > 0 && cfg.Topic != ""
	n := &KafkaNotifier{topic: cfg.Topic, enabled: enabled, now: time.Now}
	if !enabled {
		return n
	}

	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	n.writer = &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  parseCompression(cfg.Compression),
		MaxAttempts:  3,
		WriteTimeout: timeout,
		BatchTimeout: 50 * time.Millisecond,
	}
	return n
}

func (k *KafkaNotifier) Name() string {
	return "kafka"
}

func (k *KafkaNotifier) IsEnabled() bool {
	return k.enabled
}

func (k *KafkaNotifier) Send(ctx context.Context, title, content string) error {
	if !k.enabled {
		return nil
	}
	value, err := json.Marshal(kafkaPayload{Title: title, Content: content, Timestamp: k.now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal kafka payload: %w", err)
	}
	msg := kafka.Message{Key: []byte(title), Value: value, Time: k.now()}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", k.topic, err)
	}
	return nil
}

// Close flushes and closes the underlying writer
func (k *KafkaNotifier) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}

func parseCompression(s string) kafka.Compression {
	switch s {
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return kafka.Gzip
	}
}
