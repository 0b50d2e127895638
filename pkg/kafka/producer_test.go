package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return f.err
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestNewProducerRequiresBrokersAndTopic(t *testing.T) {
	_, err := NewProducer(WithTopic("predictions"))
	assert.ErrorIs(t, err, ErrNoBrokers)

	_, err = NewProducer(WithBrokers([]string{"localhost:9092"}))
	assert.Error(t, err)

	p, err := NewProducer(WithBrokers([]string{"localhost:9092"}), WithTopic("predictions"), WithAsync(true, nil))
	require.NoError(t, err)
	assert.Equal(t, "predictions", p.Topic())
	require.NoError(t, p.Close())
}

func TestPublishEncodesJSONUnderKey(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, &ProducerConfig{Topic: "predictions", Compression: "gzip"})

	require.NoError(t, p.Publish(context.Background(), "AAPL", map[string]any{"direction": "bullish"}))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, []byte("AAPL"), w.msgs[0].Key)
	assert.JSONEq(t, `{"direction":"bullish"}`, string(w.msgs[0].Value))
	assert.False(t, w.msgs[0].Time.IsZero())

	require.NoError(t, p.Publish(context.Background(), "k", "raw"))
	assert.Equal(t, []byte("raw"), w.msgs[1].Value)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublishErrors(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	p := newProducer(w, &ProducerConfig{Topic: "predictions"})

	err := p.Publish(context.Background(), "AAPL", struct{}{})
	assert.ErrorContains(t, err, "leader not available")

	err = p.Publish(context.Background(), "AAPL", func() {})
	assert.ErrorContains(t, err, "marshal value")
}

func TestParseCompression(t *testing.T) {
	assert.Equal(t, kafka.Snappy, parseCompression("snappy"))
	assert.Equal(t, kafka.Zstd, parseCompression("zstd"))
	assert.Equal(t, kafka.Gzip, parseCompression("bogus"))
}
