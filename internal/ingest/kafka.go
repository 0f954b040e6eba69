package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
)

// MessageReader is the subset of *kafka.Reader used by KafkaSource.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaConfig holds configuration for the Kafka event source.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
	Applier Applier
	Logger  zerolog.Logger

	// Reader overrides the consumer built from Brokers/Topic/GroupID.
	Reader MessageReader
}

// KafkaSource consumes JSON hazard events from a Kafka consumer group.
// Offsets are committed after each message is handled.
type KafkaSource struct {
	reader  MessageReader
	topic   string
	applier Applier
	logger  zerolog.Logger
}

// NewKafkaSource creates a Kafka event source.
func NewKafkaSource(cfg KafkaConfig) *KafkaSource {
	reader := cfg.Reader
	if reader == nil {
		reader = kafkago.NewReader(kafkago.ReaderConfig{
			Brokers:  cfg.Brokers,
			Topic:    cfg.Topic,
			GroupID:  cfg.GroupID,
			MinBytes: 1,
			MaxBytes: 1 << 20,
			MaxWait:  time.Second,
		})
	}

	return &KafkaSource{
		reader:  reader,
		topic:   cfg.Topic,
		applier: cfg.Applier,
		logger:  cfg.Logger,
	}
}

// Run consumes messages until ctx is cancelled.
// A transient apply failure stops the loop without committing so the message is redelivered.
func (s *KafkaSource) Run(ctx context.Context) error {
	s.logger.Info().Str("topic", s.topic).Msg("starting kafka hazard event source")

	for {
		msg, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("fetching message: %w", err)
		}

		logger := s.logger.With().
			Int("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Logger()

		result, err := Handle(ctx, s.applier, msg.Value)
		switch {
		case err == nil:
			logger.Info().Str("event", result.Event).Msg("hazard event received")
		case Permanent(err):
			logger.Warn().Err(err).Msg("discarding invalid hazard event")
		default:
			logger.Error().Err(err).Msg("hazard event failed")
			return fmt.Errorf("handling offset %d: %w", msg.Offset, err)
		}

		if err := s.reader.CommitMessages(ctx, msg); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			return fmt.Errorf("committing offset %d: %w", msg.Offset, err)
		}
	}
}

// Close closes the consumer.
func (s *KafkaSource) Close() error {
	return s.reader.Close()
}
