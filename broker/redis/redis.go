package redis

import (
	"context"
	"crypto/tls"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type RedisBroker struct {
	client redis.UniversalClient
	logger zerolog.Logger
}

func NewRedisBroker(ctx context.Context, useTLS bool, endpoint string, logger zerolog.Logger) (*RedisBroker, error) {
	opts := &redis.Options{Addr: endpoint}
	if useTLS {
		// Managed redis endpoints require TLS
		opts.TLSConfig = &tls.Config{}
	}
	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return NewRedisBrokerFromClient(client, logger), nil
}

func NewRedisBrokerFromClient(client redis.UniversalClient, logger zerolog.Logger) *RedisBroker {
	return &RedisBroker{
		client: client,
		logger: logger.With().Str("component", "broker").Logger(),
	}
}

func (b *RedisBroker) Close() error {
	return b.client.Close()
}

func (b *RedisBroker) Publish(ctx context.Context, channel string, message []byte) error {
	return b.client.Publish(ctx, channel, message).Err()
}

func (b *RedisBroker) Subscribe(ctx context.Context, channel string, handler func(message []byte)) error {
	pubsub := b.client.Subscribe(ctx, channel)
	// Ensure subscription is established
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return err
	}

	ch := pubsub.Channel()

	go func() {
		defer func() {
			pubsub.Close()
			b.logger.Debug().Str("channel", channel).Msg("pubsub channel closed")
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handler([]byte(msg.Payload))
			}
		}
	}()

	return nil
}
