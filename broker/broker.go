// Package broker carries room frames between gateway instances that share a
// registry.
package broker

import "context"

type Broker interface {
	Publish(ctx context.Context, channel string, message []byte) error
	// Subscribe delivers every message on channel to handler until ctx is
	// cancelled. The subscription is live when Subscribe returns.
	Subscribe(ctx context.Context, channel string, handler func(message []byte)) error
}

func RoomChannel(roomId string) string {
	return "room:{" + roomId + "}:frames"
}
