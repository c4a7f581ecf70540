package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/zlnvch/sketchroom/api"
	"github.com/zlnvch/sketchroom/api/ws"
	"github.com/zlnvch/sketchroom/broker"
	redisbroker "github.com/zlnvch/sketchroom/broker/redis"
	"github.com/zlnvch/sketchroom/config"
	"github.com/zlnvch/sketchroom/registry"
	redisregistry "github.com/zlnvch/sketchroom/registry/redis"
)

func main() {
	var logger zerolog.Logger

	cfg, err := config.Load()
	if err != nil {
		logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	shutdownCtx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	var roomRegistry registry.RoomRegistry
	var roomBroker broker.Broker

	switch cfg.RegistryBackend {
	case config.RegistryRedis:
		redisRegistry, err := redisregistry.NewRedisRoomRegistry(shutdownCtx, cfg.RedisTLS, cfg.RedisEndpoint, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis registry connection failed")
		}
		defer redisRegistry.Close()
		roomRegistry = redisRegistry

		// Gateways sharing a redis registry also share room traffic
		redisBroker, err := redisbroker.NewRedisBroker(shutdownCtx, cfg.RedisTLS, cfg.RedisEndpoint, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis broker connection failed")
		}
		defer redisBroker.Close()
		roomBroker = redisBroker

		logger.Info().Str("endpoint", cfg.RedisEndpoint).Msg("connected to Redis")
	default:
		roomRegistry = registry.NewMemoryRegistry(logger)
	}

	sketchroomAPI := api.NewSketchroomAPI(roomRegistry, roomBroker, api.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		JWTSecret:      cfg.JWTSecret,
		Client: ws.ClientOptions{
			MessagesPerSecond: cfg.WSMessagesPerSecond,
			Burst:             cfg.WSBurst,
			MaxMessageBytes:   cfg.WSMaxMessageBytes,
		},
	}, logger, shutdownCtx)

	// No write timeout: websocket connections are long-lived
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           sketchroomAPI.Router(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Str("registry", cfg.RegistryBackend).
			Msg("starting sketchroom server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	<-shutdownCtx.Done()
	logger.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}
