package service

import (
	"github.com/rs/zerolog"
	"github.com/zlnvch/sketchroom/registry"
)

type Service struct {
	Registry  registry.RoomRegistry
	JWTSecret []byte
	Logger    zerolog.Logger
}

func NewService(roomRegistry registry.RoomRegistry, jwtSecret []byte, logger zerolog.Logger) *Service {
	return &Service{
		Registry:  roomRegistry,
		JWTSecret: jwtSecret,
		Logger:    logger.With().Str("component", "service").Logger(),
	}
}
