package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/dvrpc/traffic-counts-sub000/internal/config"
	"github.com/dvrpc/traffic-counts-sub000/internal/domain"
)

// Writer publishes import events to a Kafka topic.
// It implements pipeline.EventPublisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured import event topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish serializes and writes one import event.
func (w *Writer) Publish(ctx context.Context, event domain.ImportEvent) error {
	msg, err := serializeToMessage(event)
	if err != nil {
		return err
	}
	return w.writer.WriteMessages(ctx, msg)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an ImportEvent into a Kafka message keyed by
// recordnum so all events for a count land on the same partition.
func serializeToMessage(event domain.ImportEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize import event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(strconv.Itoa(event.Recordnum)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "kind", Value: []byte(event.Kind)},
			{Key: "imported_at", Value: []byte(event.ImportedAt.Format(time.RFC3339))},
		},
	}, nil
}
