package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/zlnvch/sketchroom/metrics"
	"github.com/zlnvch/sketchroom/models"
	"github.com/zlnvch/sketchroom/protocol"
	"golang.org/x/time/rate"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	defaultMaxMessageSize = 1024 * 1024

	sendBufferSize = 256
)

// ClientOptions bounds what a single connection may push at the gateway.
// A zero MessagesPerSecond turns the limiter off.
type ClientOptions struct {
	MessagesPerSecond float64
	Burst             int
	MaxMessageBytes   int64
}

func NewClient(hub *Hub, conn *websocket.Conn, user models.User, opts ClientOptions, logger zerolog.Logger) *Client {
	var limiter *rate.Limiter
	if opts.MessagesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.MessagesPerSecond), max(opts.Burst, 1))
	}
	maxMessageSize := opts.MaxMessageBytes
	if maxMessageSize <= 0 {
		maxMessageSize = defaultMaxMessageSize
	}

	return &Client{
		hub:            hub,
		conn:           conn,
		user:           user,
		Send:           make(chan []byte, sendBufferSize),
		limiter:        limiter,
		maxMessageSize: maxMessageSize,
		logger:         logger.With().Str("userId", user.Id).Logger(),
	}
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub            *Hub
	conn           *websocket.Conn
	user           models.User // zero for anonymous connections
	Send           chan []byte // Buffered channel of outbound messages.
	limiter        *rate.Limiter
	maxMessageSize int64
	logger         zerolog.Logger

	// Owned by the hub goroutine.
	roomId string
	member models.Member
	closed bool
}

func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn().Err(err).Msg("ws close error")
			}
			break
		}

		if c.limiter != nil && !c.limiter.Allow() {
			c.logger.Warn().Msg("closing connection: message rate limit exceeded")
			metrics.OperationsDropped.WithLabelValues("rate_limited").Inc()
			break
		}

		var env protocol.Envelope
		if err := json.Unmarshal(messageBytes, &env); err != nil || env.Event == "" {
			c.logger.Warn().Err(err).Msg("invalid frame")
			metrics.OperationsDropped.WithLabelValues("malformed").Inc()
			continue
		}

		c.hub.Dispatch(c, env)
	}
}

func (c *Client) WritePump(shutdownCtx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug().Err(err).Msg("ws send error")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-shutdownCtx.Done():
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "Websocket service shutting down"),
			)
			return
		}
	}
}
