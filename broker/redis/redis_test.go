package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zlnvch/sketchroom/broker"
	redisbroker "github.com/zlnvch/sketchroom/broker/redis"
)

const receiveTimeout = 2 * time.Second

func setupBroker(t *testing.T) (*redisbroker.RedisBroker, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return redisbroker.NewRedisBrokerFromClient(client, zerolog.Nop()), mr
}

func subscribe(t *testing.T, ctx context.Context, b *redisbroker.RedisBroker, channel string) chan []byte {
	t.Helper()
	received := make(chan []byte, 16)
	err := b.Subscribe(ctx, channel, func(message []byte) {
		received <- message
	})
	require.NoError(t, err)
	return received
}

func TestNewRedisBroker(t *testing.T) {
	mr := miniredis.RunT(t)

	b, err := redisbroker.NewRedisBroker(context.Background(), false, mr.Addr(), zerolog.Nop())
	require.NoError(t, err)
	assert.NoError(t, b.Close())

	mr.Close()
	_, err = redisbroker.NewRedisBroker(context.Background(), false, mr.Addr(), zerolog.Nop())
	assert.Error(t, err)
}

func TestPublishReachesRoomSubscribers(t *testing.T) {
	b, _ := setupBroker(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	room1 := subscribe(t, ctx, b, broker.RoomChannel("room1"))
	room2 := subscribe(t, ctx, b, broker.RoomChannel("room2"))

	frame := []byte(`{"origin":"gw-1","frame":{"event":"draw","data":{}}}`)
	require.NoError(t, b.Publish(ctx, broker.RoomChannel("room1"), frame))

	select {
	case got := <-room1:
		assert.Equal(t, frame, got)
	case <-time.After(receiveTimeout):
		require.FailNow(t, "room1 subscriber got nothing")
	}

	select {
	case got := <-room2:
		assert.Failf(t, "frame leaked into another room", "%s", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCancelledSubscriptionIsReleased(t *testing.T) {
	b, mr := setupBroker(t)
	channel := broker.RoomChannel("room1")

	ctx, cancel := context.WithCancel(context.Background())
	subscribe(t, ctx, b, channel)
	assert.Equal(t, 1, mr.PubSubNumSub(channel)[channel])

	cancel()
	assert.Eventually(t, func() bool {
		return mr.PubSubNumSub(channel)[channel] == 0
	}, receiveTimeout, 10*time.Millisecond)
}
