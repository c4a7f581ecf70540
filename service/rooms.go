package service

import (
	"context"
	"fmt"

	"github.com/zlnvch/sketchroom/metrics"
	"github.com/zlnvch/sketchroom/models"
)

func (s *Service) CreateRoom(ctx context.Context, user models.User, roomName, password string) (string, error) {
	roomId, err := s.Registry.CreateRoom(ctx, user.Id, roomName, password, user.Username)
	if err != nil {
		return "", fmt.Errorf("create room: %w", err)
	}
	metrics.RoomsCreated.Inc()
	return roomId, nil
}

// JoinRoom returns the membership after the join. Registry errors are passed
// through unwrapped so callers can map them to a status.
func (s *Service) JoinRoom(ctx context.Context, user models.User, roomId, password string) ([]models.Member, error) {
	members, err := s.Registry.JoinRoom(ctx, roomId, user.Id, password, user.Username)
	if err != nil {
		metrics.JoinFailures.WithLabelValues(metrics.JoinFailureReason(err)).Inc()
		return nil, err
	}
	return members, nil
}

func (s *Service) RoomMembers(ctx context.Context, roomId string) ([]models.Member, error) {
	return s.Registry.GetRoomMembers(ctx, roomId)
}

func (s *Service) LeaveRoom(ctx context.Context, user models.User, roomId string) error {
	return s.Registry.RemoveMember(ctx, roomId, user.Id)
}
