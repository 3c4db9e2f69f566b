package sinks

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/scrollprobe/internal/progress"
)

// Publisher sends a payload to a topic and returns the broker message ID.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// BatchMessage is the payload published for every flushed batch.
type BatchMessage struct {
	Events []progress.Record `json:"events"`
}

// PublishSink publishes each batch as a single message.
type PublishSink struct {
	publisher Publisher
	topic     string
	logger    *zap.Logger
}

// NewPublishSink constructs a PublishSink for topic.
func NewPublishSink(publisher Publisher, topic string, logger *zap.Logger) *PublishSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PublishSink{publisher: publisher, topic: topic, logger: logger}
}

// Consume publishes the batch. Empty batches are skipped.
func (s *PublishSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.publisher == nil || len(batch) == 0 {
		return nil
	}
	msg := BatchMessage{Events: make([]progress.Record, 0, len(batch))}
	for _, evt := range batch {
		msg.Events = append(msg.Events, evt.Record())
	}
	id, err := s.publisher.Publish(ctx, s.topic, msg)
	if err != nil {
		return fmt.Errorf("publish progress batch: %w", err)
	}
	s.logger.Debug("progress batch published", zap.String("topic", s.topic), zap.String("message_id", id),
		zap.Int("events", len(batch)))
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *PublishSink) Close(context.Context) error {
	return nil
}
