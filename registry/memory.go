package registry

import (
	"context"
	"slices"
	"sync"

	"github.com/rs/zerolog"
	"github.com/zlnvch/sketchroom/models"
)

type MemoryRegistry struct {
	mu     sync.Mutex
	rooms  map[string]*models.Room
	newId  func() (string, error)
	logger zerolog.Logger
}

func NewMemoryRegistry(logger zerolog.Logger) *MemoryRegistry {
	return &MemoryRegistry{
		rooms:  make(map[string]*models.Room),
		newId:  NewRoomId,
		logger: logger.With().Str("component", "registry").Logger(),
	}
}

// WithIdGenerator swaps the room id source. Used by tests to force collisions.
func (r *MemoryRegistry) WithIdGenerator(gen func() (string, error)) *MemoryRegistry {
	r.newId = gen
	return r
}

func (r *MemoryRegistry) CreateRoom(ctx context.Context, creatorId, roomName, password, creatorUsername string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var roomId string
	for {
		id, err := r.newId()
		if err != nil {
			return "", err
		}
		if _, taken := r.rooms[id]; !taken && id != "" {
			roomId = id
			break
		}
	}

	r.rooms[roomId] = &models.Room{
		Id:              roomId,
		Name:            roomName,
		Password:        password,
		CreatorId:       creatorId,
		CreatorUsername: creatorUsername,
		Members:         []models.Member{{UserId: creatorId, Username: creatorUsername}},
		Chat:            []models.ChatMessage{},
	}
	r.logger.Info().Str("room", roomId).Str("creator", creatorId).Msg("room created")
	return roomId, nil
}

func (r *MemoryRegistry) JoinRoom(ctx context.Context, roomId, userId, password, username string) ([]models.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomId]
	if !ok {
		return nil, ErrRoomNotFound
	}
	if !PasswordMatches(room.Password, password) {
		return nil, ErrIncorrectPassword
	}

	alreadyInRoom := slices.ContainsFunc(room.Members, func(m models.Member) bool {
		return m.UserId == userId
	})
	if !alreadyInRoom {
		room.Members = append(room.Members, models.Member{UserId: userId, Username: username})
	}

	return slices.Clone(room.Members), nil
}

func (r *MemoryRegistry) GetRoomMembers(ctx context.Context, roomId string) ([]models.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomId]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return slices.Clone(room.Members), nil
}

func (r *MemoryRegistry) RemoveMember(ctx context.Context, roomId, userId string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomId]
	if !ok {
		return ErrRoomNotFound
	}

	room.Members = slices.DeleteFunc(room.Members, func(m models.Member) bool {
		return m.UserId == userId
	})
	if len(room.Members) == 0 {
		delete(r.rooms, roomId)
		r.logger.Info().Str("room", roomId).Msg("room deleted")
	}
	return nil
}

func (r *MemoryRegistry) GetRoom(ctx context.Context, roomId string) (models.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomId]
	if !ok {
		return models.Room{}, ErrRoomNotFound
	}
	out := *room
	out.Members = slices.Clone(room.Members)
	out.Chat = slices.Clone(room.Chat)
	return out, nil
}

func (r *MemoryRegistry) AppendMessage(ctx context.Context, roomId string, msg models.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomId]
	if !ok {
		return ErrRoomNotFound
	}
	if room.Chat == nil {
		room.Chat = []models.ChatMessage{}
	}
	room.Chat = append(room.Chat, msg)
	return nil
}
