// Package registry is the authoritative table of rooms, their members and
// their chat logs.
package registry

import (
	"context"
	"errors"
	"strings"

	"github.com/gofrs/uuid/v5"
	"github.com/zlnvch/sketchroom/models"
)

// RoomRegistry is implemented by every room backing store. Calls for the same
// room must not interleave; the gateway guarantees this by running all of its
// registry calls on one dispatcher goroutine and the backends guard the calls
// made from HTTP handlers.
type RoomRegistry interface {
	CreateRoom(ctx context.Context, creatorId, roomName, password, creatorUsername string) (string, error)
	JoinRoom(ctx context.Context, roomId, userId, password, username string) ([]models.Member, error)
	GetRoomMembers(ctx context.Context, roomId string) ([]models.Member, error)
	// RemoveMember deletes the room, chat log included, once its last member
	// is gone.
	RemoveMember(ctx context.Context, roomId, userId string) error

	GetRoom(ctx context.Context, roomId string) (models.Room, error)
	AppendMessage(ctx context.Context, roomId string, msg models.ChatMessage) error
}

var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrIncorrectPassword = errors.New("incorrect password")
	// ErrNotJoined is returned for operations from a connection that is not in
	// any room. The gateway drops these without telling the sender.
	ErrNotJoined = errors.New("connection not joined to a room")
)

const roomIdLength = 8

// NewRoomId returns a short random room id.
func NewRoomId() (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(id.String(), "-", "")[:roomIdLength], nil
}

// PasswordMatches is a plain equality check. An empty stored password means
// the room is open.
func PasswordMatches(stored, supplied string) bool {
	return stored == "" || stored == supplied
}
