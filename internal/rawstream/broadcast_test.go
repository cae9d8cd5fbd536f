package rawstream

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscriptionReportsLagThenResumesInOrder(t *testing.T) {
	b := NewBroadcast(4)
	sub := b.Subscribe()

	for i := byte(0); i < 10; i++ {
		b.Publish([]byte{i})
	}

	ctx := context.Background()

	_, err := sub.Recv(ctx)
	require.Error(t, err)
	lagged, ok := err.(*LaggedError)
	require.True(t, ok, "expected *LaggedError, got %T: %v", err, err)
	assert.Equal(t, uint64(6), lagged.Skipped)

	for _, want := range []byte{6, 7, 8, 9} {
		data, err := sub.Recv(ctx)
		require.NoError(t, err)
		assert.Equal(t, []byte{want}, data)
	}
}

func TestPublishFansOutToEverySubscriber(t *testing.T) {
	b := NewBroadcast(4)
	subA := b.Subscribe()
	subB := b.Subscribe()

	b.Publish([]byte("hello"))

	ctx := context.Background()
	for _, s := range []*Subscription{subA, subB} {
		data, err := s.Recv(ctx)
		require.NoError(t, err)
		assert.Equal(t, []byte("hello"), data)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := NewBroadcast(4)
	sub := b.Subscribe()
	b.Unsubscribe(sub)

	b.Publish([]byte("after unsubscribe"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := sub.Recv(ctx)
	assert.Error(t, err)
}

func TestCloseDrainsPendingSubscribers(t *testing.T) {
	b := NewBroadcast(4)
	sub := b.Subscribe()
	b.Publish([]byte("last"))
	b.Close()

	ctx := context.Background()
	data, err := sub.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("last"), data)

	_, err = sub.Recv(ctx)
	assert.ErrorIs(t, err, io.EOF)
}
