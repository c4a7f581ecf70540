package registry_test

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zlnvch/sketchroom/models"
	"github.com/zlnvch/sketchroom/registry"
)

func newRegistry() *registry.MemoryRegistry {
	return registry.NewMemoryRegistry(zerolog.Nop())
}

func TestCreateRoom_CreatorIsFirstMember(t *testing.T) {
	reg := newRegistry()
	ctx := context.Background()

	roomId, err := reg.CreateRoom(ctx, "u1", "sketch", "abc", "alice")
	require.NoError(t, err)
	assert.Len(t, roomId, 8)

	room, err := reg.GetRoom(ctx, roomId)
	require.NoError(t, err)
	assert.Equal(t, "sketch", room.Name)
	assert.Equal(t, "u1", room.CreatorId)
	assert.Equal(t, "alice", room.CreatorUsername)
	assert.Equal(t, []models.Member{{UserId: "u1", Username: "alice"}}, room.Members)
	assert.Empty(t, room.Chat)
}

func TestCreateRoom_IdsUniqueAmongLiveRooms(t *testing.T) {
	reg := newRegistry()
	ctx := context.Background()

	seen := make(map[string]struct{})
	for i := 0; i < 500; i++ {
		roomId, err := reg.CreateRoom(ctx, "u1", "r", "", "alice")
		require.NoError(t, err)
		require.NotEmpty(t, roomId)
		_, dup := seen[roomId]
		require.False(t, dup, "duplicate room id %s", roomId)
		seen[roomId] = struct{}{}
	}
}

func TestCreateRoom_RetriesOnCollision(t *testing.T) {
	ids := []string{"aaaaaaaa", "aaaaaaaa", "", "bbbbbbbb"}
	reg := newRegistry().WithIdGenerator(func() (string, error) {
		id := ids[0]
		ids = ids[1:]
		return id, nil
	})
	ctx := context.Background()

	first, err := reg.CreateRoom(ctx, "u1", "one", "", "alice")
	require.NoError(t, err)
	second, err := reg.CreateRoom(ctx, "u2", "two", "", "bob")
	require.NoError(t, err)

	assert.Equal(t, "aaaaaaaa", first)
	assert.Equal(t, "bbbbbbbb", second)
}

func TestJoinRoom_UnknownRoom(t *testing.T) {
	reg := newRegistry()

	_, err := reg.JoinRoom(context.Background(), "nope", "u2", "", "bob")
	assert.ErrorIs(t, err, registry.ErrRoomNotFound)
}

func TestJoinRoom_Password(t *testing.T) {
	reg := newRegistry()
	ctx := context.Background()
	roomId, _ := reg.CreateRoom(ctx, "u1", "sketch", "abc", "alice")

	_, err := reg.JoinRoom(ctx, roomId, "u2", "wrong", "bob")
	assert.ErrorIs(t, err, registry.ErrIncorrectPassword)

	_, err = reg.JoinRoom(ctx, roomId, "u2", "", "bob")
	assert.ErrorIs(t, err, registry.ErrIncorrectPassword)

	members, err := reg.JoinRoom(ctx, roomId, "u2", "abc", "bob")
	require.NoError(t, err)
	assert.Equal(t, []models.Member{
		{UserId: "u1", Username: "alice"},
		{UserId: "u2", Username: "bob"},
	}, members)
}

func TestJoinRoom_OpenRoomAcceptsAnyPassword(t *testing.T) {
	reg := newRegistry()
	ctx := context.Background()
	roomId, _ := reg.CreateRoom(ctx, "u1", "open", "", "alice")

	_, err := reg.JoinRoom(ctx, roomId, "u2", "whatever", "bob")
	assert.NoError(t, err)
}

func TestJoinRoom_Idempotent(t *testing.T) {
	reg := newRegistry()
	ctx := context.Background()
	roomId, _ := reg.CreateRoom(ctx, "u1", "sketch", "", "alice")

	_, err := reg.JoinRoom(ctx, roomId, "u2", "", "bob")
	require.NoError(t, err)
	members, err := reg.JoinRoom(ctx, roomId, "u2", "", "bobby")
	require.NoError(t, err)

	assert.Len(t, members, 2)
	assert.Equal(t, "bob", members[1].Username)
}

func TestRemoveMember_LastMemberDeletesRoom(t *testing.T) {
	reg := newRegistry()
	ctx := context.Background()
	roomId, _ := reg.CreateRoom(ctx, "u1", "sketch", "", "alice")
	_, _ = reg.JoinRoom(ctx, roomId, "u2", "", "bob")
	require.NoError(t, reg.AppendMessage(ctx, roomId, models.ChatMessage{Username: "bob", Text: "hi"}))

	require.NoError(t, reg.RemoveMember(ctx, roomId, "u1"))
	members, err := reg.GetRoomMembers(ctx, roomId)
	require.NoError(t, err)
	assert.Equal(t, []models.Member{{UserId: "u2", Username: "bob"}}, members)

	require.NoError(t, reg.RemoveMember(ctx, roomId, "u2"))
	_, err = reg.GetRoomMembers(ctx, roomId)
	assert.ErrorIs(t, err, registry.ErrRoomNotFound)
	_, err = reg.GetRoom(ctx, roomId)
	assert.ErrorIs(t, err, registry.ErrRoomNotFound)
}

func TestRemoveMember_UnknownRoom(t *testing.T) {
	reg := newRegistry()
	assert.ErrorIs(t, reg.RemoveMember(context.Background(), "nope", "u1"), registry.ErrRoomNotFound)
}

func TestAppendMessage_ArrivalOrder(t *testing.T) {
	reg := newRegistry()
	ctx := context.Background()
	roomId, _ := reg.CreateRoom(ctx, "u1", "sketch", "", "alice")

	require.NoError(t, reg.AppendMessage(ctx, roomId, models.ChatMessage{Username: "alice", Text: "one", Timestamp: 1}))
	require.NoError(t, reg.AppendMessage(ctx, roomId, models.ChatMessage{Username: "alice", Text: "two", Timestamp: 2}))

	room, err := reg.GetRoom(ctx, roomId)
	require.NoError(t, err)
	require.Len(t, room.Chat, 2)
	assert.Equal(t, "one", room.Chat[0].Text)
	assert.Equal(t, "two", room.Chat[1].Text)

	assert.ErrorIs(t, reg.AppendMessage(ctx, "nope", models.ChatMessage{}), registry.ErrRoomNotFound)
}

func TestGetRoom_ReturnsCopy(t *testing.T) {
	reg := newRegistry()
	ctx := context.Background()
	roomId, _ := reg.CreateRoom(ctx, "u1", "sketch", "", "alice")

	room, _ := reg.GetRoom(ctx, roomId)
	room.Members[0].Username = "mallory"

	members, _ := reg.GetRoomMembers(ctx, roomId)
	assert.Equal(t, "alice", members[0].Username)
}

func TestConcurrentJoinsSameRoom(t *testing.T) {
	reg := newRegistry()
	ctx := context.Background()
	roomId, _ := reg.CreateRoom(ctx, "u1", "sketch", "", "alice")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = reg.JoinRoom(ctx, roomId, "u2", "", "bob")
		}()
	}
	wg.Wait()

	members, err := reg.GetRoomMembers(ctx, roomId)
	require.NoError(t, err)
	assert.Len(t, members, 2)
}
