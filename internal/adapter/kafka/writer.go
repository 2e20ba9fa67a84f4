package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/buienradar-exporter/internal/config"
	"github.com/couchcryptid/buienradar-exporter/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer produces station snapshots to a Kafka topic.
// It implements pipeline.Sink.
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

func (w *Writer) Name() string { return "kafka" }

// Publish writes one message per station in a single WriteMessages call.
// Messages are keyed by station so a station always lands on the same partition.
func (w *Writer) Publish(ctx context.Context, stations []domain.StationMeasurement) error {
	if len(stations) == 0 {
		return nil
	}
	snapshots := domain.NewSnapshots(stations)
	msgs := make([]kafkago.Message, len(snapshots))
	for i := range snapshots {
		msg, err := serializeToMessage(snapshots[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d messages to %s: %w", len(msgs), w.writer.Topic, err)
	}
	w.logger.Debug("published snapshots", "sink", w.Name(), "messages", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a snapshot into a Kafka message.
func serializeToMessage(snap domain.StationSnapshot) (kafkago.Message, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize station snapshot: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(snap.Key()),
		Value: data,
		Time:  snap.PublishedAt,
		Headers: []kafkago.Header{
			{Key: "station", Value: []byte(snap.Name)},
			{Key: "regio", Value: []byte(snap.Regio)},
			{Key: "published_at", Value: []byte(snap.PublishedAt.Format(time.RFC3339))},
		},
	}, nil
}
