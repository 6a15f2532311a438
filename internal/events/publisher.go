package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/UnknownOlympus/cartograph/internal/config"
	"github.com/UnknownOlympus/cartograph/internal/models"
	kafkago "github.com/segmentio/kafka-go"
)

// Type identifies what happened to a task.
type Type string

const (
	// TypeGeocoded is emitted when a task received coordinates.
	TypeGeocoded Type = "task.geocoded"
	// TypeUnresolved is emitted when a batch job found no coordinates for a task.
	TypeUnresolved Type = "task.unresolved"
)

// TaskEvent describes the geocoding outcome of one task.
type TaskEvent struct {
	TaskID      int                 `json:"task_id"`
	Type        Type                `json:"type"`
	BatchID     string              `json:"batch_id"`
	JobID       string              `json:"job_id,omitempty"`
	Coordinates *models.Coordinates `json:"coordinates,omitempty"`
	OccurredAt  time.Time           `json:"occurred_at"`
}

// Publisher delivers task events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, events ...TaskEvent) error
	Close() error
}

// messageWriter is the part of *kafkago.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaPublisher produces task events to a Kafka topic.
type KafkaPublisher struct {
	writer messageWriter
	log    *slog.Logger
}

// NewPublisher returns a Kafka publisher, or a NopPublisher when no brokers are configured.
func NewPublisher(cfg config.KafkaConfig, log *slog.Logger) Publisher {
	if len(cfg.Brokers) == 0 {
		log.Info("Kafka brokers are not configured, task events are disabled")
		return NopPublisher{}
	}

	return NewKafkaPublisher(cfg, log)
}

// NewKafkaPublisher creates a Kafka producer for the configured topic.
func NewKafkaPublisher(cfg config.KafkaConfig, log *slog.Logger) *KafkaPublisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}

	return &KafkaPublisher{writer: w, log: log}
}

// Publish serializes and writes events in a single WriteMessages call.
// Events of one task share a key and therefore a partition.
func (p *KafkaPublisher) Publish(ctx context.Context, events ...TaskEvent) error {
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

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to publish %d task events: %w", len(msgs), err)
	}
	p.log.DebugContext(ctx, "Task events published", "count", len(msgs))

	return nil
}

// Close flushes pending messages and closes the producer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher discards every event.
type NopPublisher struct{}

// Publish does nothing.
func (NopPublisher) Publish(context.Context, ...TaskEvent) error { return nil }

// Close does nothing.
func (NopPublisher) Close() error { return nil }

func serializeToMessage(event TaskEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize task event: %w", err)
	}

	return kafkago.Message{
		Key:   []byte(strconv.Itoa(event.TaskID)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "batch_id", Value: []byte(event.BatchID)},
		},
	}, nil
}
