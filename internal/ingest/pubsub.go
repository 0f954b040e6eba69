package ingest

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// PubSubConfig holds configuration for the Pub/Sub event source.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Applier          Applier
	Logger           zerolog.Logger
}

// PubSubSource receives JSON hazard events from a Pub/Sub subscription.
type PubSubSource struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	applier          Applier
	logger           zerolog.Logger
}

// NewPubSubSource creates a Pub/Sub event source.
func NewPubSubSource(ctx context.Context, cfg PubSubConfig) (*PubSubSource, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// One event in flight at a time.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 1
	subscriber.ReceiveSettings.MaxExtension = time.Minute

	return &PubSubSource{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		applier:          cfg.Applier,
		logger:           cfg.Logger,
	}, nil
}

// Run receives messages until ctx is cancelled.
func (s *PubSubSource) Run(ctx context.Context) error {
	s.logger.Info().
		Str("subscription", s.subscriptionName).
		Msg("starting pubsub hazard event source")

	return s.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		s.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (s *PubSubSource) Close() error {
	return s.client.Close()
}

func (s *PubSubSource) handleMessage(ctx context.Context, msg *pubsub.Message) {
	logger := s.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	result, err := Handle(ctx, s.applier, msg.Data)
	switch {
	case err == nil:
		logger.Info().Str("event", result.Event).Msg("hazard event received")
		msg.Ack()
	case Permanent(err):
		// Redelivery cannot fix a malformed or unknown event.
		logger.Warn().Err(err).Msg("discarding invalid hazard event")
		msg.Ack()
	default:
		logger.Error().Err(err).Msg("hazard event failed")
		msg.Nack()
	}
}
