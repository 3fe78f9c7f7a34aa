package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"

	"firestige.xyz/grbr/internal/metrics"
)

const (
	defaultBatchSize    = 100
	defaultBatchTimeout = 100 * time.Millisecond
	defaultCompression  = "snappy"
	defaultMaxAttempts  = 3
)

// KafkaConfig configures the Kafka event sink.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	Compression  string // none|gzip|snappy|lz4|zstd
	MaxAttempts  int
}

// messageWriter is the part of kafka.Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes events as JSON, keyed by product key so every event of
// one product lands on the same partition.
type Kafka struct {
	writer messageWriter
	config KafkaConfig
}

// NewKafka creates a Kafka sink.
func NewKafka(cfg KafkaConfig) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = defaultBatchTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.Compression == "" {
		cfg.Compression = defaultCompression
	}

	writerConfig := kafka.WriterConfig{
		Brokers:      cfg.Brokers,
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		MaxAttempts:  cfg.MaxAttempts,
	}

	switch cfg.Compression {
	case "none":
		writerConfig.CompressionCodec = nil
	case "gzip":
		writerConfig.CompressionCodec = compress.Gzip.Codec()
	case "snappy":
		writerConfig.CompressionCodec = compress.Snappy.Codec()
	case "lz4":
		writerConfig.CompressionCodec = compress.Lz4.Codec()
	case "zstd":
		writerConfig.CompressionCodec = compress.Zstd.Codec()
	default:
		return nil, fmt.Errorf("invalid compression type: %s", cfg.Compression)
	}

	slog.Info("kafka event sink configured",
		"brokers", cfg.Brokers,
		"topic", cfg.Topic,
		"compression", cfg.Compression)

	return &Kafka{writer: kafka.NewWriter(writerConfig), config: cfg}, nil
}

// Message builds the Kafka message for e.
func Message(e Event) (kafka.Message, error) {
	value, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("serialize event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(e.Key),
		Value: value,
		Time:  e.Time,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(e.Kind)},
		},
	}, nil
}

func (k *Kafka) Record(ctx context.Context, e Event) error {
	msg, err := Message(e)
	if err != nil {
		metrics.EventsPublishedTotal.WithLabelValues("kafka", "error").Inc()
		return err
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		metrics.EventsPublishedTotal.WithLabelValues("kafka", "error").Inc()
		return fmt.Errorf("publish event to %s: %w", k.config.Topic, err)
	}
	metrics.EventsPublishedTotal.WithLabelValues("kafka", "ok").Inc()
	return nil
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}
