package redis

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/zlnvch/sketchroom/models"
	"github.com/zlnvch/sketchroom/registry"
)

// RedisRoomRegistry keeps rooms in Redis so several gateway processes can
// share one room table. Each room lives under three keys sharing a hash tag:
//
//	room:{id}          hash  name, password, creatorId, creatorUsername
//	room:{id}:members  list  JSON models.Member, join order
//	room:{id}:chat     list  JSON models.ChatMessage, arrival order
//
// Mutations run inside WATCH/MULTI so concurrent writers to the same room
// retry instead of interleaving.
type RedisRoomRegistry struct {
	client redis.UniversalClient
	logger zerolog.Logger
}

const maxTxRetries = 10

func NewRedisRoomRegistry(ctx context.Context, useTLS bool, endpoint string, logger zerolog.Logger) (*RedisRoomRegistry, error) {
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

	return NewRedisRoomRegistryFromClient(client, logger), nil
}

func NewRedisRoomRegistryFromClient(client redis.UniversalClient, logger zerolog.Logger) *RedisRoomRegistry {
	return &RedisRoomRegistry{
		client: client,
		logger: logger.With().Str("component", "registry").Str("backend", "redis").Logger(),
	}
}

func (r *RedisRoomRegistry) Close() error {
	return r.client.Close()
}

func buildRoomKey(roomId string) string {
	return "room:{" + roomId + "}"
}

func buildMembersKey(roomId string) string {
	return "room:{" + roomId + "}:members"
}

func buildChatKey(roomId string) string {
	return "room:{" + roomId + "}:chat"
}

// watch retries fn while another client keeps touching the watched keys.
func (r *RedisRoomRegistry) watch(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	for i := 0; i < maxTxRetries; i++ {
		err := r.client.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("redis transaction on %v: too many retries", keys)
}

func (r *RedisRoomRegistry) CreateRoom(ctx context.Context, creatorId, roomName, password, creatorUsername string) (string, error) {
	creator, err := json.Marshal(models.Member{UserId: creatorId, Username: creatorUsername})
	if err != nil {
		return "", err
	}

	for {
		roomId, err := registry.NewRoomId()
		if err != nil {
			return "", err
		}
		key := buildRoomKey(roomId)

		taken := false
		err = r.watch(ctx, func(tx *redis.Tx) error {
			n, err := tx.Exists(ctx, key).Result()
			if err != nil {
				return err
			}
			if n > 0 {
				taken = true
				return nil
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.HSet(ctx, key,
					"name", roomName,
					"password", password,
					"creatorId", creatorId,
					"creatorUsername", creatorUsername,
				)
				pipe.RPush(ctx, buildMembersKey(roomId), creator)
				return nil
			})
			return err
		}, key)
		if err != nil {
			return "", fmt.Errorf("create room: %w", err)
		}
		if taken {
			continue
		}

		r.logger.Info().Str("room", roomId).Str("creator", creatorId).Msg("room created")
		return roomId, nil
	}
}

func (r *RedisRoomRegistry) JoinRoom(ctx context.Context, roomId, userId, password, username string) ([]models.Member, error) {
	key := buildRoomKey(roomId)
	membersKey := buildMembersKey(roomId)

	var members []models.Member
	err := r.watch(ctx, func(tx *redis.Tx) error {
		stored, err := tx.HGet(ctx, key, "password").Result()
		if errors.Is(err, redis.Nil) {
			return registry.ErrRoomNotFound
		}
		if err != nil {
			return err
		}
		if !registry.PasswordMatches(stored, password) {
			return registry.ErrIncorrectPassword
		}

		members, err = readMembers(ctx, tx, membersKey)
		if err != nil {
			return err
		}
		for _, m := range members {
			if m.UserId == userId {
				return nil
			}
		}

		member := models.Member{UserId: userId, Username: username}
		memberBytes, err := json.Marshal(member)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.RPush(ctx, membersKey, memberBytes)
			return nil
		})
		if err == nil {
			members = append(members, member)
		}
		return err
	}, key, membersKey)
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (r *RedisRoomRegistry) GetRoomMembers(ctx context.Context, roomId string) ([]models.Member, error) {
	n, err := r.client.Exists(ctx, buildRoomKey(roomId)).Result()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, registry.ErrRoomNotFound
	}
	return readMembers(ctx, r.client, buildMembersKey(roomId))
}

func (r *RedisRoomRegistry) RemoveMember(ctx context.Context, roomId, userId string) error {
	key := buildRoomKey(roomId)
	membersKey := buildMembersKey(roomId)

	deleted := false
	err := r.watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return registry.ErrRoomNotFound
		}

		raw, err := tx.LRange(ctx, membersKey, 0, -1).Result()
		if err != nil {
			return err
		}

		var toRemove []string
		for _, item := range raw {
			var m models.Member
			if err := json.Unmarshal([]byte(item), &m); err == nil && m.UserId == userId {
				toRemove = append(toRemove, item)
			}
		}
		deleted = len(raw)-len(toRemove) == 0

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if deleted {
				pipe.Del(ctx, key, membersKey, buildChatKey(roomId))
				return nil
			}
			for _, item := range toRemove {
				pipe.LRem(ctx, membersKey, 0, item)
			}
			return nil
		})
		return err
	}, key, membersKey)
	if err != nil {
		return err
	}

	if deleted {
		r.logger.Info().Str("room", roomId).Msg("room deleted")
	}
	return nil
}

func (r *RedisRoomRegistry) GetRoom(ctx context.Context, roomId string) (models.Room, error) {
	fields, err := r.client.HGetAll(ctx, buildRoomKey(roomId)).Result()
	if err != nil {
		return models.Room{}, err
	}
	if len(fields) == 0 {
		return models.Room{}, registry.ErrRoomNotFound
	}

	members, err := readMembers(ctx, r.client, buildMembersKey(roomId))
	if err != nil {
		return models.Room{}, err
	}

	rawChat, err := r.client.LRange(ctx, buildChatKey(roomId), 0, -1).Result()
	if err != nil {
		return models.Room{}, err
	}
	chat := make([]models.ChatMessage, 0, len(rawChat))
	for _, item := range rawChat {
		var msg models.ChatMessage
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			r.logger.Warn().Err(err).Str("room", roomId).Msg("skipping malformed chat entry")
			continue
		}
		chat = append(chat, msg)
	}

	return models.Room{
		Id:              roomId,
		Name:            fields["name"],
		Password:        fields["password"],
		CreatorId:       fields["creatorId"],
		CreatorUsername: fields["creatorUsername"],
		Members:         members,
		Chat:            chat,
	}, nil
}

func (r *RedisRoomRegistry) AppendMessage(ctx context.Context, roomId string, msg models.ChatMessage) error {
	key := buildRoomKey(roomId)
	msgBytes, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return r.watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return registry.ErrRoomNotFound
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.RPush(ctx, buildChatKey(roomId), msgBytes)
			return nil
		})
		return err
	}, key)
}

type listReader interface {
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
}

func readMembers(ctx context.Context, c listReader, membersKey string) ([]models.Member, error) {
	raw, err := c.LRange(ctx, membersKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	members := make([]models.Member, 0, len(raw))
	for _, item := range raw {
		var m models.Member
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			continue
		}
		members = append(members, m)
	}
	return members, nil
}
