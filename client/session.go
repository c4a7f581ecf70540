package client

import (
	"context"
	"errors"
	"slices"

	"github.com/zlnvch/sketchroom/canvas"
	"github.com/zlnvch/sketchroom/models"
	"github.com/zlnvch/sketchroom/protocol"
)

func (c *Client) CreateRoom(ctx context.Context, user models.Member, roomName, password string) (string, error) {
	var ack protocol.CreateRoomAck
	err := c.Request(ctx, protocol.EventRoomCreate, protocol.CreateRoomRequest{
		UserId:   user.UserId,
		RoomName: roomName,
		Password: password,
		Username: user.Username,
	}, &ack)
	if err != nil {
		return "", err
	}
	if !ack.Success {
		return "", errors.New(ack.Message)
	}

	c.mu.Lock()
	c.roomId = ack.RoomId
	c.user = user
	c.members = []models.Member{user}
	c.chat = nil
	c.mu.Unlock()
	return ack.RoomId, nil
}

// JoinRoom returns the full acknowledgement. A rejected join is reported in
// the ack, not as an error.
func (c *Client) JoinRoom(ctx context.Context, user models.Member, roomId, password string) (protocol.JoinRoomAck, error) {
	var ack protocol.JoinRoomAck
	err := c.Request(ctx, protocol.EventRoomJoin, protocol.JoinRoomRequest{
		RoomId:   roomId,
		UserId:   user.UserId,
		Username: user.Username,
		Password: password,
	}, &ack)
	if err != nil || !ack.Success {
		return ack, err
	}

	c.mu.Lock()
	c.roomId = roomId
	c.user = user
	c.members = ack.Users
	c.chat = slices.Clone(ack.History)
	c.mu.Unlock()
	return ack, nil
}

func (c *Client) Members(ctx context.Context, roomId string) (protocol.MembersAck, error) {
	var ack protocol.MembersAck
	err := c.Request(ctx, protocol.EventRoomMembers, protocol.MembersRequest{RoomId: roomId}, &ack)
	return ack, err
}

func (c *Client) LeaveRoom() error {
	c.mu.Lock()
	roomId, userId := c.roomId, c.user.UserId
	c.roomId = ""
	c.members = nil
	c.chat = nil
	c.mu.Unlock()

	return c.Emit(protocol.EventLeaveRoom, protocol.LeaveRoomRequest{RoomId: roomId, UserId: userId})
}

func (c *Client) SendMessage(text string, timestamp int64) error {
	c.mu.Lock()
	req := protocol.ChatRequest{
		RoomId:  c.roomId,
		Message: models.ChatMessage{Username: c.user.Username, Text: text, Timestamp: timestamp},
	}
	c.mu.Unlock()

	return c.Emit(protocol.EventRoomMessage, req)
}

func (c *Client) RoomId() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomId
}

func (c *Client) RoomMembers() []models.Member {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.members)
}

func (c *Client) Chat() []models.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.chat)
}

// Document runs fn against the local document while holding the client lock.
// fn must not call back into the client.
func (c *Client) Document(fn func(doc *canvas.Document)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.doc)
}
