package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/iftarinuae/location-resolver/internal/config"
	"github.com/iftarinuae/location-resolver/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer publishes confirmed locations to a Kafka topic.
// It implements locator.Publisher and outbox.BatchLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish writes one confirmation synchronously.
func (w *Writer) Publish(ctx context.Context, evt domain.LocationConfirmed) error {
	return w.LoadBatch(ctx, []domain.LocationConfirmed{evt})
}

// LoadBatch serializes and publishes confirmations in a single WriteMessages
// call. Messages are keyed by session so a session's confirmations stay
// ordered on one partition.
func (w *Writer) LoadBatch(ctx context.Context, events []domain.LocationConfirmed) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(events))
	for i := range events {
		msg, err := serializeToMessage(events[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d confirmed locations: %w", len(msgs), err)
	}
	w.logger.Debug("confirmed locations published", "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a LocationConfirmed into a Kafka message.
func serializeToMessage(evt domain.LocationConfirmed) (kafkago.Message, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize confirmed location: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(evt.SessionID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "mode", Value: []byte(evt.Mode)},
			{Key: "confirmed_at", Value: []byte(evt.ConfirmedAt.Format(time.RFC3339))},
		},
	}, nil
}
