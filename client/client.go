// Package client is a participant in a drawing session. It keeps its own
// document and history, sends local operations to the gateway and applies
// operations from peers as they arrive.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/zlnvch/sketchroom/canvas"
	"github.com/zlnvch/sketchroom/models"
	"github.com/zlnvch/sketchroom/protocol"
)

const (
	writeWait        = 10 * time.Second
	eventsBufferSize = 256
)

var ErrClosed = errors.New("client closed")

type Client struct {
	conn   *websocket.Conn
	logger zerolog.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	doc     *canvas.Document
	roomId  string
	user    models.Member
	members []models.Member
	chat    []models.ChatMessage
	nextAck int64
	pending map[int64]chan json.RawMessage

	events chan protocol.Envelope
	done   chan struct{}
}

type Options struct {
	// Token is sent in the subprotocol list. Empty means anonymous.
	Token  string
	Header http.Header
	Logger zerolog.Logger
}

// Dial connects to the gateway websocket at rawURL.
func Dial(ctx context.Context, rawURL string, opts Options) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse gateway url: %w", err)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		Subprotocols:     []string{"sketchroom-v1"},
	}
	if opts.Token != "" {
		dialer.Subprotocols = append(dialer.Subprotocols, opts.Token)
	}

	conn, _, err := dialer.DialContext(ctx, u.String(), opts.Header)
	if err != nil {
		return nil, fmt.Errorf("dial gateway: %w", err)
	}

	c := &Client{
		conn:    conn,
		logger:  opts.Logger,
		doc:     canvas.NewDocument(),
		pending: make(map[int64]chan json.RawMessage),
		events:  make(chan protocol.Envelope, eventsBufferSize),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Events yields every non-ack frame after it has been applied locally. Frames
// are dropped when nobody keeps up with the channel.
func (c *Client) Events() <-chan protocol.Envelope {
	return c.events
}

// Done is closed once the connection is gone.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) Close() error {
	c.writeMu.Lock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
	c.writeMu.Unlock()
	return c.conn.Close()
}

func (c *Client) readLoop() {
	defer func() {
		close(c.done)
		close(c.events)
		c.conn.Close()
	}()

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug().Err(err).Msg("gateway connection closed")
			}
			return
		}

		var env protocol.Envelope
		if err := json.Unmarshal(messageBytes, &env); err != nil {
			c.logger.Warn().Err(err).Msg("invalid frame from gateway")
			continue
		}

		if env.Event == protocol.EventAck {
			c.resolve(env.Ack, env.Data)
			continue
		}

		c.apply(env)

		select {
		case c.events <- env:
		default:
		}
	}
}

func (c *Client) resolve(ackId int64, data json.RawMessage) {
	c.mu.Lock()
	ch, ok := c.pending[ackId]
	delete(c.pending, ackId)
	c.mu.Unlock()

	if ok {
		ch <- data
	}
}

func (c *Client) apply(env protocol.Envelope) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch env.Event {
	case protocol.EventRoomMembers:
		var b protocol.MembersBroadcast
		if err := json.Unmarshal(env.Data, &b); err == nil {
			c.members = b.Members
		}
	case protocol.EventRoomMessage:
		var b protocol.ChatBroadcast
		if err := json.Unmarshal(env.Data, &b); err == nil {
			c.chat = append(c.chat, b.Message)
		}
	case protocol.EventUserJoined, protocol.EventUserLeft:
	default:
		if err := c.doc.ApplyRemote(env.Event, env.Data); err != nil {
			c.logger.Warn().Err(err).Str("event", env.Event).Msg("apply remote operation failed")
		}
	}
}

func (c *Client) write(env protocol.Envelope) error {
	frame, err := json.Marshal(env)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

// Emit sends a fire-and-forget event.
func (c *Client) Emit(event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return c.write(protocol.Envelope{Event: event, Data: raw})
}

// Request sends event and waits for its acknowledgement, decoding the body
// into out.
func (c *Client) Request(ctx context.Context, event string, data, out any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}

	ch := make(chan json.RawMessage, 1)
	c.mu.Lock()
	c.nextAck++
	ackId := c.nextAck
	c.pending[ackId] = ch
	c.mu.Unlock()

	cleanup := func() {
		c.mu.Lock()
		delete(c.pending, ackId)
		c.mu.Unlock()
	}

	if err := c.write(protocol.Envelope{Event: event, Data: raw, Ack: ackId}); err != nil {
		cleanup()
		return err
	}

	select {
	case body := <-ch:
		if out == nil {
			return nil
		}
		return json.Unmarshal(body, out)
	case <-ctx.Done():
		cleanup()
		return ctx.Err()
	case <-c.done:
		cleanup()
		return ErrClosed
	}
}
