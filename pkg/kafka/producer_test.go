package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestPublishAccountEvent(t *testing.T) {
	writer := &recordingWriter{}
	producer := newProducer(writer, "clover.accounts", testLogger())

	err := producer.PublishAccountEvent(context.Background(), &AccountEvent{
		EventType: "account.merged",
		AccountID: "target",
		Data:      json.RawMessage(`{"source_id":"source"}`),
	})
	require.NoError(t, err)
	require.Len(t, writer.messages, 1)

	msg := writer.messages[0]
	assert.Equal(t, "target", string(msg.Key))
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, "account.merged", string(msg.Headers[0].Value))

	var decoded AccountEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "target", decoded.AccountID)
	assert.False(t, decoded.Timestamp.IsZero())
	assert.JSONEq(t, `{"source_id":"source"}`, string(decoded.Data))

	require.NoError(t, producer.Close())
	assert.True(t, writer.closed)
}

func TestPublishAccountEvent_WriteError(t *testing.T) {
	writer := &recordingWriter{err: errors.New("broker unavailable")}
	producer := newProducer(writer, "clover.accounts", testLogger())

	err := producer.PublishAccountEvent(context.Background(), &AccountEvent{EventType: "account.merged", AccountID: "target"})
	assert.EqualError(t, err, "broker unavailable")
}
