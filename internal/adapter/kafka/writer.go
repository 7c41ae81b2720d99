package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/alarm-display/internal/config"
	"github.com/couchcryptid/alarm-display/internal/domain"
)

// Writer publishes incident snapshots to a Kafka topic, keyed by incident ID
// so that all updates of one incident land on the same partition.
// It implements pipeline.Loader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured incident topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchFlushInterval,
	}
	return &Writer{writer: w, logger: logger}
}

// Load serializes the incident view and publishes it.
func (w *Writer) Load(ctx context.Context, update domain.Update) error {
	msg, err := serializeToMessage(update)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish incident %s: %w", update.Incident.ID, err)
	}
	w.logger.Debug("incident published", "incident", update.Incident.ID, "topic", w.writer.Topic)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an incident update into a Kafka message.
func serializeToMessage(update domain.Update) (kafkago.Message, error) {
	data, err := json.Marshal(update.View)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize incident: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(update.Incident.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "source", Value: []byte(update.Payload.Kind)},
			{Key: "new_incident", Value: []byte(fmt.Sprint(update.New))},
			{Key: "updated_at", Value: []byte(update.Incident.Updated.Format(time.RFC3339))},
		},
	}, nil
}
