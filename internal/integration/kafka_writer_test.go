//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/dvrpc/traffic-counts-sub000/internal/adapter/kafka"
	"github.com/dvrpc/traffic-counts-sub000/internal/config"
	"github.com/dvrpc/traffic-counts-sub000/internal/domain"
)

const testEventTopic = "test-count-imports"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node Kafka broker in a container and returns its
// bootstrap address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := tckafka.Run(ctx,
		"confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("test-cluster"),
	)
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err, "resolve kafka brokers")
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// createTopic creates a topic on the broker so the first produce does not race
// auto-creation.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err, "dial broker")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "find controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err, "dial controller")
	defer controllerConn.Close()

	require.NoError(t, controllerConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// receivedEvent holds a deserialized message read from the event topic.
type receivedEvent struct {
	Event   domain.ImportEvent
	Key     string
	Headers map[string]string
}

// readEvent reads a single message from the consumer and deserializes it.
func readEvent(ctx context.Context, t *testing.T, consumer *kafkago.Reader) receivedEvent {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from event topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var event domain.ImportEvent
	require.NoError(t, json.Unmarshal(msg.Value, &event), "unmarshal event message")

	return receivedEvent{
		Event:   event,
		Key:     string(msg.Key),
		Headers: headers,
	}
}

// TestWriterPublish verifies that kafka.Writer round-trips an import event
// through a real broker with the recordnum key and metadata headers intact.
func TestWriterPublish(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testEventTopic)

	cfg := &config.Config{
		KafkaBrokers: []string{broker},
		KafkaTopic:   testEventTopic,
	}

	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	importedAt := time.Date(2023, time.November, 7, 15, 30, 0, 0, time.UTC)
	events := []domain.ImportEvent{
		{
			Recordnum:  166905,
			Kind:       domain.IndividualVehicleKind.String(),
			Status:     domain.ImportStatusImported,
			Rows:       9024,
			Warnings:   1,
			ImportedAt: importedAt,
		},
		{
			Recordnum:  160252,
			Kind:       domain.FifteenMinuteBicycleKind.String(),
			Status:     domain.ImportStatusFailed,
			ImportedAt: importedAt.Add(time.Minute),
		},
	}
	for _, event := range events {
		require.NoError(t, writer.Publish(ctx, event))
	}

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testEventTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	first := readEvent(ctx, t, consumer)
	assert.Equal(t, "166905", first.Key)
	assert.Equal(t, events[0], first.Event)
	assert.Equal(t, domain.IndividualVehicleKind.String(), first.Headers["kind"])
	assert.Equal(t, "2023-11-07T15:30:00Z", first.Headers["imported_at"])

	second := readEvent(ctx, t, consumer)
	assert.Equal(t, "160252", second.Key)
	assert.Equal(t, domain.ImportStatusFailed, second.Event.Status)
	assert.Equal(t, domain.FifteenMinuteBicycleKind.String(), second.Headers["kind"])
}
