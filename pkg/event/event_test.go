package event

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNATS struct {
	subject  string
	data     []byte
	flushed  int
	drained  bool
	pubErr   error
	flushErr error
}

func (f *fakeNATS) Publish(subj string, data []byte) error {
	f.subject = subj
	f.data = data
	return f.pubErr
}

func (f *fakeNATS) FlushWithContext(ctx context.Context) error {
	f.flushed++
	return f.flushErr
}

func (f *fakeNATS) Drain() error {
	f.drained = true
	return nil
}

type fakeRedis struct {
	channel string
	message interface{}
	err     error
	closed  bool
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.channel = channel
	f.message = message
	return redis.NewIntResult(1, f.err)
}

func (f *fakeRedis) Close() error {
	f.closed = true
	return nil
}

func sampleEvent() Event {
	return New(TriggerNotification, map[string]any{
		PropertyUsername:     "alice",
		PropertyTemplateType: TemplateTypeOTP,
	})
}

// TestNew tests that New stamps an identifier and timestamp.
func TestNew(t *testing.T) {
	a := sampleEvent()
	b := sampleEvent()

	assert.NotEqual(t, uuid.Nil, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.False(t, a.OccurredAt.IsZero())
	assert.Equal(t, TriggerNotification, a.Name)
}

// TestNATSPublisher tests publishing through the NATS seam.
func TestNATSPublisher(t *testing.T) {
	conn := &fakeNATS{}
	p := newNATSPublisher(conn, "otp.events")

	e := sampleEvent()
	require.NoError(t, p.Publish(context.Background(), e))
	assert.Equal(t, "otp.events", conn.subject)
	assert.Equal(t, 1, conn.flushed)

	var got Event
	require.NoError(t, json.Unmarshal(conn.data, &got))
	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, "alice", got.Properties[PropertyUsername])

	require.NoError(t, p.Close())
	assert.True(t, conn.drained)
}

// TestNATSPublisherErrors tests error propagation from the connection.
func TestNATSPublisherErrors(t *testing.T) {
	boom := errors.New("boom")

	p := newNATSPublisher(&fakeNATS{pubErr: boom}, "otp.events")
	assert.ErrorIs(t, p.Publish(context.Background(), sampleEvent()), boom)

	p = newNATSPublisher(&fakeNATS{flushErr: boom}, "otp.events")
	assert.ErrorIs(t, p.Publish(context.Background(), sampleEvent()), boom)

	conn := &fakeNATS{}
	p = newNATSPublisher(conn, "otp.events")
	assert.ErrorIs(t, p.Publish(context.Background(), Event{}), ErrMissingName)
	assert.Nil(t, conn.data)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Publish(ctx, sampleEvent()), context.Canceled)
}

// TestRedisPublisher tests publishing through the Redis seam.
func TestRedisPublisher(t *testing.T) {
	client := &fakeRedis{}
	p := newRedisPublisher(client, "otp-events")

	e := sampleEvent()
	require.NoError(t, p.Publish(context.Background(), e))
	assert.Equal(t, "otp-events", client.channel)

	data, ok := client.message.([]byte)
	require.True(t, ok)
	var got Event
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, e.Name, got.Name)

	require.NoError(t, p.Close())
	assert.True(t, client.closed)
}

// TestRedisPublisherError tests error propagation from the client.
func TestRedisPublisherError(t *testing.T) {
	boom := errors.New("boom")
	p := newRedisPublisher(&fakeRedis{err: boom}, "otp-events")
	assert.ErrorIs(t, p.Publish(context.Background(), sampleEvent()), boom)
}

// TestConstructorsRequireDestination tests config validation before dialing.
func TestConstructorsRequireDestination(t *testing.T) {
	_, err := NewNATSPublisher(NATSConfig{URL: "nats://127.0.0.1:4222"})
	assert.ErrorIs(t, err, ErrMissingDestination)

	_, err = NewRedisPublisher(context.Background(), RedisConfig{Channel: "otp-events"})
	assert.ErrorIs(t, err, ErrMissingDestination)
}
