package events

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/UnknownOlympus/cartograph/internal/config"
	"github.com/UnknownOlympus/cartograph/internal/models"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC)
	event := TaskEvent{
		TaskID:      42,
		Type:        TypeGeocoded,
		BatchID:     "batch-1",
		JobID:       "job-1",
		Coordinates: &models.Coordinates{Latitude: 45.42, Longitude: -75.69},
		OccurredAt:  now,
	}

	msg, err := serializeToMessage(event)
	require.NoError(t, err)

	assert.Equal(t, []byte("42"), msg.Key)
	assert.JSONEq(t, `{
		"task_id": 42,
		"type": "task.geocoded",
		"batch_id": "batch-1",
		"job_id": "job-1",
		"coordinates": {"latitude": 45.42, "longitude": -75.69},
		"occurred_at": "2024-04-26T15:10:00Z"
	}`, string(msg.Value))
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, []byte("task.geocoded"), msg.Headers[0].Value)
	assert.Equal(t, "batch_id", msg.Headers[1].Key)
}

func TestKafkaPublisher_Publish(t *testing.T) {
	ctx := t.Context()

	t.Run("writes all events at once", func(t *testing.T) {
		writer := &fakeWriter{}
		publisher := &KafkaPublisher{writer: writer, log: discardLogger()}

		err := publisher.Publish(ctx,
			TaskEvent{TaskID: 1, Type: TypeGeocoded},
			TaskEvent{TaskID: 2, Type: TypeUnresolved},
		)

		require.NoError(t, err)
		require.Len(t, writer.msgs, 2)
		assert.Equal(t, []byte("1"), writer.msgs[0].Key)
		assert.Equal(t, []byte("2"), writer.msgs[1].Key)
	})

	t.Run("no events", func(t *testing.T) {
		writer := &fakeWriter{err: assert.AnError}
		publisher := &KafkaPublisher{writer: writer, log: discardLogger()}

		require.NoError(t, publisher.Publish(ctx))
	})

	t.Run("write error", func(t *testing.T) {
		writer := &fakeWriter{err: assert.AnError}
		publisher := &KafkaPublisher{writer: writer, log: discardLogger()}

		err := publisher.Publish(ctx, TaskEvent{TaskID: 1, Type: TypeGeocoded})

		require.ErrorIs(t, err, assert.AnError)
	})

	t.Run("close", func(t *testing.T) {
		writer := &fakeWriter{}
		publisher := &KafkaPublisher{writer: writer, log: discardLogger()}

		require.NoError(t, publisher.Close())
		assert.True(t, writer.closed)
	})
}

func TestNewPublisher(t *testing.T) {
	t.Run("disabled without brokers", func(t *testing.T) {
		publisher := NewPublisher(config.KafkaConfig{Topic: "tasks"}, discardLogger())

		assert.IsType(t, NopPublisher{}, publisher)
		require.NoError(t, publisher.Publish(t.Context(), TaskEvent{TaskID: 1}))
		require.NoError(t, publisher.Close())
	})

	t.Run("kafka with brokers", func(t *testing.T) {
		publisher := NewPublisher(config.KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "tasks"}, discardLogger())

		assert.IsType(t, &KafkaPublisher{}, publisher)
	})
}
