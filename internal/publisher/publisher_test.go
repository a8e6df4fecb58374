package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (m *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, msgs...)
	return nil
}

func (m *mockWriter) Close() error {
	m.closed = true
	return nil
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &mockWriter{}
	p := newKafkaPublisher(w, nil)

	err := p.Publish(context.Background(), Event{
		Type:    EventOrderSubmitted,
		OrderID: "ord-1",
		UserID:  "u-1",
		Payload: map[string]any{"order_number": "WSH-0001"},
	})
	require.NoError(t, err)
	require.Len(t, w.messages, 1)

	msg := w.messages[0]
	assert.Equal(t, "ord-1", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, EventOrderSubmitted, string(msg.Headers[0].Value))

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "u-1", decoded.UserID)
	assert.Equal(t, "WSH-0001", decoded.Payload["order_number"])
	assert.False(t, decoded.OccurredAt.IsZero())
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	w := &mockWriter{err: errors.New("broker unreachable")}
	p := newKafkaPublisher(w, nil)

	err := p.Publish(context.Background(), Event{Type: EventPaymentVerified, OrderID: "ord-1"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker unreachable")
}

func TestKafkaPublisher_Close(t *testing.T) {
	w := &mockWriter{}
	p := newKafkaPublisher(w, nil)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = NoopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), Event{Type: EventOrderSubmitted}))
	assert.NoError(t, p.Close())
}
