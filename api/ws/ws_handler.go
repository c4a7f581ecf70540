package ws

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/zlnvch/sketchroom/models"
	"github.com/zlnvch/sketchroom/service"
)

const Subprotocol = "sketchroom-v1"

type Handler struct {
	Service *service.Service
	Hub     *Hub
	Options ClientOptions
	logger  zerolog.Logger
}

func NewHandler(svc *service.Service, hub *Hub, opts ClientOptions, logger zerolog.Logger) *Handler {
	return &Handler{
		Service: svc,
		Hub:     hub,
		Options: opts,
		logger:  logger.With().Str("component", "ws").Logger(),
	}
}

// NewWsUpgrader accepts any origin when allowedOrigins is empty. Requests
// without an Origin header come from non-browser participants and pass.
func (h *Handler) NewWsUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(allowedOrigins, origin)
		},
		Subprotocols: []string{Subprotocol},
	}
}

// Browsers cannot set headers on a websocket handshake, so the token rides in
// the subprotocol list after the protocol name. Other clients may use ?token=.
func tokenFromRequest(r *http.Request) string {
	protocols := strings.Split(r.Header.Get("Sec-WebSocket-Protocol"), ",")
	if len(protocols) == 2 {
		return strings.TrimSpace(protocols[1])
	}
	return r.URL.Query().Get("token")
}

// ServeWS handles websocket requests from the peer. A connection without a
// token is anonymous and takes its identity from event payloads.
func (h *Handler) ServeWS(wsUpgrader websocket.Upgrader, w http.ResponseWriter, r *http.Request, shutdownCtx context.Context) {
	var user models.User
	var authErr error
	if token := tokenFromRequest(r); token != "" {
		user, authErr = h.Service.AuthenticateToken(r.Context(), token)
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to upgrade ws connection")
		return
	}

	// Must upgrade the connection in order to be able to send custom close message
	if authErr != nil {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "Unauthenticated"),
		)
		conn.Close()
		return
	}

	client := NewClient(h.Hub, conn, user, h.Options, h.logger)
	if !h.Hub.Register(client) {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "Websocket service shutting down"),
		)
		conn.Close()
		return
	}

	go client.ReadPump()
	go client.WritePump(shutdownCtx)
}
