package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/zlnvch/sketchroom/api/middleware"
	"github.com/zlnvch/sketchroom/api/rest"
	"github.com/zlnvch/sketchroom/api/ws"
	"github.com/zlnvch/sketchroom/broker"
	"github.com/zlnvch/sketchroom/registry"
	"github.com/zlnvch/sketchroom/service"
)

type Options struct {
	AllowedOrigins []string
	JWTSecret      []byte
	Client         ws.ClientOptions
}

type SketchroomAPI struct {
	restHandler *rest.Handler
	wsHandler   *ws.Handler
	wsUpgrader  websocket.Upgrader
	opts        Options
	logger      zerolog.Logger
	shutdownCtx context.Context
}

// NewSketchroomAPI starts the gateway hub; it stops when shutdownCtx is
// cancelled. roomBroker may be nil for a single gateway.
func NewSketchroomAPI(
	roomRegistry registry.RoomRegistry,
	roomBroker broker.Broker,
	opts Options,
	logger zerolog.Logger,
	shutdownCtx context.Context,
) *SketchroomAPI {
	wsHub := ws.NewHub(roomRegistry, roomBroker, logger)
	go wsHub.Run(shutdownCtx)

	svc := service.NewService(roomRegistry, opts.JWTSecret, logger)

	wsHandler := ws.NewHandler(svc, wsHub, opts.Client, logger)

	return &SketchroomAPI{
		restHandler: rest.NewHandler(svc, logger),
		wsHandler:   wsHandler,
		wsUpgrader:  wsHandler.NewWsUpgrader(opts.AllowedOrigins),
		opts:        opts,
		logger:      logger,
		shutdownCtx: shutdownCtx,
	}
}

func (a *SketchroomAPI) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Metrics)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(a.logger))
	r.Use(chimw.Recoverer)

	allowedOrigins := a.opts.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health check endpoint (no auth required)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/rooms", func(r chi.Router) {
		r.Post("/create", a.restHandler.HandleCreateRoom)
		r.Post("/join", a.restHandler.HandleJoinRoom)
		r.Post("/leave", a.restHandler.HandleLeaveRoom)
		r.Get("/{roomId}/members", a.restHandler.HandleRoomMembers)
	})

	r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		a.wsHandler.ServeWS(a.wsUpgrader, w, r, a.shutdownCtx)
	})

	return r
}
