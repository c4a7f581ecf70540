package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/zlnvch/sketchroom/models"
)

type MockRegistry struct {
	mock.Mock
}

func (m *MockRegistry) CreateRoom(ctx context.Context, creatorId, roomName, password, creatorUsername string) (string, error) {
	args := m.Called(ctx, creatorId, roomName, password, creatorUsername)
	return args.String(0), args.Error(1)
}

func (m *MockRegistry) JoinRoom(ctx context.Context, roomId, userId, password, username string) ([]models.Member, error) {
	args := m.Called(ctx, roomId, userId, password, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Member), args.Error(1)
}

func (m *MockRegistry) GetRoomMembers(ctx context.Context, roomId string) ([]models.Member, error) {
	args := m.Called(ctx, roomId)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Member), args.Error(1)
}

func (m *MockRegistry) RemoveMember(ctx context.Context, roomId, userId string) error {
	args := m.Called(ctx, roomId, userId)
	return args.Error(0)
}

func (m *MockRegistry) GetRoom(ctx context.Context, roomId string) (models.Room, error) {
	args := m.Called(ctx, roomId)
	return args.Get(0).(models.Room), args.Error(1)
}

func (m *MockRegistry) AppendMessage(ctx context.Context, roomId string, msg models.ChatMessage) error {
	args := m.Called(ctx, roomId, msg)
	return args.Error(0)
}
