package ws

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog"
	"github.com/zlnvch/sketchroom/broker"
	"github.com/zlnvch/sketchroom/metrics"
	"github.com/zlnvch/sketchroom/models"
	"github.com/zlnvch/sketchroom/protocol"
	"github.com/zlnvch/sketchroom/registry"
)

const (
	registryTimeout = 5 * time.Second
	publishTimeout  = 2 * time.Second
)

type inbound struct {
	client *Client
	env    protocol.Envelope
}

type remoteFrame struct {
	roomId string
	frame  []byte
}

// brokerFrame is what travels between gateway instances. Origin lets an
// instance skip its own publications, which it has already delivered locally.
type brokerFrame struct {
	Origin string          `json:"origin"`
	Frame  json.RawMessage `json:"frame"`
}

// Hub owns every connection and room binding on this gateway. All room
// lifecycle and relay work happens on the Run goroutine, so events from all
// connections are handled one at a time in arrival order.
type Hub struct {
	registry   registry.RoomRegistry
	broker     broker.Broker
	instanceId string
	logger     zerolog.Logger

	OpenCh   chan *Client
	CloseCh  chan *Client
	EventCh  chan inbound
	remoteCh chan remoteFrame
	done     chan struct{}

	ctx                    context.Context
	clients                map[*Client]struct{}
	roomToClients          map[string]map[*Client]struct{}
	roomToSubscriberCancel map[string]context.CancelFunc
	slow                   []*Client
}

// NewHub builds a hub over roomRegistry. roomBroker may be nil when a single
// gateway serves every room.
func NewHub(roomRegistry registry.RoomRegistry, roomBroker broker.Broker, logger zerolog.Logger) *Hub {
	instanceId := "local"
	if id, err := uuid.NewV4(); err == nil {
		instanceId = id.String()
	}

	return &Hub{
		registry:               roomRegistry,
		broker:                 roomBroker,
		instanceId:             instanceId,
		logger:                 logger.With().Str("component", "hub").Logger(),
		OpenCh:                 make(chan *Client),
		CloseCh:                make(chan *Client, 256),
		EventCh:                make(chan inbound, 1024),
		remoteCh:               make(chan remoteFrame, 1024),
		done:                   make(chan struct{}),
		ctx:                    context.Background(),
		clients:                make(map[*Client]struct{}),
		roomToClients:          make(map[string]map[*Client]struct{}),
		roomToSubscriberCancel: make(map[string]context.CancelFunc),
	}
}

// Register hands a new connection to the hub. OpenCh is unbuffered so the hub
// has seen the connection before its pumps start. It reports false once the
// hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.OpenCh <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.CloseCh <- c:
	case <-h.done:
	}
}

func (h *Hub) Dispatch(c *Client, env protocol.Envelope) {
	select {
	case h.EventCh <- inbound{client: c, env: env}:
	case <-h.done:
	}
}

func (h *Hub) Run(ctx context.Context) {
	h.ctx = ctx
	defer func() {
		for roomId, cancel := range h.roomToSubscriberCancel {
			cancel()
			delete(h.roomToSubscriberCancel, roomId)
		}
		close(h.done)
	}()

	for {
		select {
		case client := <-h.OpenCh:
			h.clients[client] = struct{}{}
			metrics.ConnectionsActive.Inc()

		case client := <-h.CloseCh:
			if _, ok := h.clients[client]; !ok {
				continue
			}
			h.leave(client)
			delete(h.clients, client)
			h.closeSend(client)
			metrics.ConnectionsActive.Dec()

		case in := <-h.EventCh:
			if _, ok := h.clients[in.client]; !ok {
				continue
			}
			h.handle(in.client, in.env)

		case rf := <-h.remoteCh:
			for client := range h.roomToClients[rf.roomId] {
				h.send(client, rf.frame)
			}

		case <-ctx.Done():
			return
		}

		h.evictSlow()
	}
}

func (h *Hub) handle(c *Client, env protocol.Envelope) {
	switch env.Event {
	case protocol.EventRoomCreate:
		h.handleCreate(c, env)
	case protocol.EventRoomJoin:
		h.handleJoin(c, env)
	case protocol.EventRoomMembers:
		h.handleMembers(c, env)
	case protocol.EventLeaveRoom:
		h.handleLeave(c, env)
	case protocol.EventRoomMessage:
		h.handleChat(c, env)
	default:
		if !protocol.IsRelayed(env.Event) {
			h.logger.Warn().Str("event", env.Event).Msg("unknown event")
			metrics.OperationsDropped.WithLabelValues("unknown_event").Inc()
			return
		}
		h.relay(c, env)
	}
}

func (h *Hub) callCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(h.ctx, registryTimeout)
}

// identity prefers the token identity over whatever the payload claims.
func identity(c *Client, userId, username string) models.Member {
	if c.user.Id != "" {
		return models.Member{UserId: c.user.Id, Username: c.user.Username}
	}
	return models.Member{UserId: userId, Username: username}
}

func (h *Hub) handleCreate(c *Client, env protocol.Envelope) {
	var req protocol.CreateRoomRequest
	if err := json.Unmarshal(env.Data, &req); err != nil {
		h.logger.Warn().Err(err).Msg("invalid room:create data")
		h.ack(c, env.Ack, protocol.CreateRoomAck{Success: false, Message: "invalid request"})
		return
	}

	member := identity(c, req.UserId, req.Username)

	ctx, cancel := h.callCtx()
	defer cancel()

	roomId, err := h.registry.CreateRoom(ctx, member.UserId, req.RoomName, req.Password, member.Username)
	if err != nil {
		h.logger.Error().Err(err).Msg("create room failed")
		h.ack(c, env.Ack, protocol.CreateRoomAck{Success: false, Message: ackMessage(err)})
		return
	}
	metrics.RoomsCreated.Inc()

	h.bind(c, roomId, member)
	h.ack(c, env.Ack, protocol.CreateRoomAck{Success: true, RoomId: roomId})
}

func (h *Hub) handleJoin(c *Client, env protocol.Envelope) {
	var req protocol.JoinRoomRequest
	if err := json.Unmarshal(env.Data, &req); err != nil {
		h.logger.Warn().Err(err).Msg("invalid room:join data")
		h.ack(c, env.Ack, protocol.JoinRoomAck{Success: false, Message: "invalid request"})
		return
	}

	member := identity(c, req.UserId, req.Username)

	ctx, cancel := h.callCtx()
	defer cancel()

	if _, err := h.registry.JoinRoom(ctx, req.RoomId, member.UserId, req.Password, member.Username); err != nil {
		metrics.JoinFailures.WithLabelValues(metrics.JoinFailureReason(err)).Inc()
		h.logger.Info().Err(err).Str("roomId", req.RoomId).Str("userId", member.UserId).Msg("join rejected")
		h.ack(c, env.Ack, protocol.JoinRoomAck{Success: false, Message: ackMessage(err)})
		return
	}

	h.bind(c, req.RoomId, member)

	// Read back after bind: a rejoin under a new identity has dropped the old one
	room, err := h.registry.GetRoom(ctx, req.RoomId)
	if err != nil {
		h.logger.Error().Err(err).Str("roomId", req.RoomId).Msg("room vanished during join")
		h.leave(c)
		h.ack(c, env.Ack, protocol.JoinRoomAck{Success: false, Message: ackMessage(err)})
		return
	}
	members := room.Members

	history := room.Chat
	if history == nil {
		history = []models.ChatMessage{}
	}
	h.ack(c, env.Ack, protocol.JoinRoomAck{
		Success:   true,
		Users:     members,
		CreatedBy: room.CreatorUsername,
		History:   history,
	})

	h.emit(req.RoomId, protocol.EventUserJoined, protocol.Presence{UserId: member.UserId, Username: member.Username}, c)
	h.emit(req.RoomId, protocol.EventRoomMembers, protocol.MembersBroadcast{Members: members, CreatedBy: room.CreatorUsername}, nil)
}

func (h *Hub) handleMembers(c *Client, env protocol.Envelope) {
	var req protocol.MembersRequest
	if err := json.Unmarshal(env.Data, &req); err != nil {
		h.logger.Warn().Err(err).Msg("invalid room:members data")
		h.ack(c, env.Ack, protocol.MembersAck{Success: false, Message: "invalid request"})
		return
	}

	ctx, cancel := h.callCtx()
	defer cancel()

	members, err := h.registry.GetRoomMembers(ctx, req.RoomId)
	if err != nil {
		h.ack(c, env.Ack, protocol.MembersAck{Success: false, Message: ackMessage(err)})
		return
	}
	h.ack(c, env.Ack, protocol.MembersAck{Success: true, Members: members})
}

func (h *Hub) handleLeave(c *Client, env protocol.Envelope) {
	var req protocol.LeaveRoomRequest
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &req); err != nil {
			h.logger.Warn().Err(err).Msg("invalid leave-room data")
			return
		}
	}

	if c.roomId == "" || (req.RoomId != "" && req.RoomId != c.roomId) {
		return
	}
	h.leave(c)
}

func (h *Hub) handleChat(c *Client, env protocol.Envelope) {
	roomId, err := boundRoom(c)
	if err != nil {
		h.dropUnjoined(env.Event, err)
		return
	}

	var req protocol.ChatRequest
	if err := json.Unmarshal(env.Data, &req); err != nil {
		h.logger.Warn().Err(err).Msg("invalid room:message data")
		return
	}
	if req.RoomId != "" && req.RoomId != roomId {
		metrics.OperationsDropped.WithLabelValues("room_mismatch").Inc()
		return
	}

	msg := req.Message
	if c.user.Id != "" {
		msg.Username = c.user.Username
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}

	ctx, cancel := h.callCtx()
	defer cancel()

	if err := h.registry.AppendMessage(ctx, roomId, msg); err != nil {
		h.logger.Warn().Err(err).Str("roomId", roomId).Msg("append message failed")
		return
	}
	metrics.ChatMessages.Inc()

	h.emit(roomId, protocol.EventRoomMessage, protocol.ChatBroadcast{Message: msg}, nil)
}

// relay forwards a drawing operation verbatim to the rest of the sender's
// room. The gateway never looks inside the payload.
func (h *Hub) relay(c *Client, env protocol.Envelope) {
	roomId, err := boundRoom(c)
	if err != nil {
		h.dropUnjoined(env.Event, err)
		return
	}

	frame, err := protocol.EncodeRaw(env.Event, env.Data)
	if err != nil {
		h.logger.Warn().Err(err).Str("event", env.Event).Msg("encode relay frame failed")
		metrics.OperationsDropped.WithLabelValues("malformed").Inc()
		return
	}

	h.broadcast(roomId, frame, c)
	metrics.OperationsRelayed.WithLabelValues(env.Event).Inc()
}

// boundRoom reports the room c is in, or ErrNotJoined.
func boundRoom(c *Client) (string, error) {
	if c.roomId == "" {
		return "", registry.ErrNotJoined
	}
	return c.roomId, nil
}

// dropUnjoined discards an event from a connection outside any room. The
// sender is not told.
func (h *Hub) dropUnjoined(event string, err error) {
	h.logger.Debug().Err(err).Str("event", event).Msg("dropping event")
	metrics.OperationsDropped.WithLabelValues("not_joined").Inc()
}

// bind attaches c to roomId as member, leaving its previous room first.
func (h *Hub) bind(c *Client, roomId string, member models.Member) {
	// A connection holds one member, so rejoining the same room under another
	// identity gives up the old one too.
	if c.roomId != "" && (c.roomId != roomId || c.member.UserId != member.UserId) {
		h.leave(c)
	}

	c.roomId = roomId
	c.member = member

	if _, ok := h.roomToClients[roomId]; !ok {
		h.roomToClients[roomId] = make(map[*Client]struct{})
		metrics.RoomsActive.Inc()
		h.subscribe(roomId)
	}
	h.roomToClients[roomId][c] = struct{}{}
}

func (h *Hub) unbind(c *Client) {
	roomId := c.roomId
	c.roomId = ""
	c.member = models.Member{}

	delete(h.roomToClients[roomId], c)
	if len(h.roomToClients[roomId]) == 0 {
		delete(h.roomToClients, roomId)
		metrics.RoomsActive.Dec()
		if cancel, ok := h.roomToSubscriberCancel[roomId]; ok {
			cancel()
			delete(h.roomToSubscriberCancel, roomId)
		}
	}
}

// leave removes c's member from its room and tells whoever is left.
func (h *Hub) leave(c *Client) {
	roomId := c.roomId
	if roomId == "" {
		return
	}
	member := c.member
	h.unbind(c)

	ctx, cancel := h.callCtx()
	defer cancel()

	if err := h.registry.RemoveMember(ctx, roomId, member.UserId); err != nil && !errors.Is(err, registry.ErrRoomNotFound) {
		h.logger.Warn().Err(err).Str("roomId", roomId).Str("userId", member.UserId).Msg("remove member failed")
	}

	room, err := h.registry.GetRoom(ctx, roomId)
	if errors.Is(err, registry.ErrRoomNotFound) {
		// Connections still bound to a deleted room have nothing to relay to
		for other := range h.roomToClients[roomId] {
			h.unbind(other)
		}
		return
	}
	if err != nil {
		h.logger.Warn().Err(err).Str("roomId", roomId).Msg("reload room after leave failed")
		return
	}

	h.emit(roomId, protocol.EventUserLeft, protocol.Presence{UserId: member.UserId, Username: member.Username}, nil)
	h.emit(roomId, protocol.EventRoomMembers, protocol.MembersBroadcast{Members: room.Members, CreatedBy: room.CreatorUsername}, nil)
}

func (h *Hub) subscribe(roomId string) {
	if h.broker == nil {
		return
	}

	ctx, cancel := context.WithCancel(h.ctx)
	err := h.broker.Subscribe(ctx, broker.RoomChannel(roomId), func(message []byte) {
		var bf brokerFrame
		if err := json.Unmarshal(message, &bf); err != nil || bf.Origin == h.instanceId {
			return
		}
		select {
		case h.remoteCh <- remoteFrame{roomId: roomId, frame: bf.Frame}:
		case <-ctx.Done():
		}
	})
	if err != nil {
		cancel()
		h.logger.Error().Err(err).Str("roomId", roomId).Msg("room subscription failed")
		return
	}
	h.roomToSubscriberCancel[roomId] = cancel
}

func (h *Hub) emit(roomId, event string, data any, except *Client) {
	frame, err := protocol.Encode(event, data)
	if err != nil {
		h.logger.Error().Err(err).Str("event", event).Msg("encode broadcast failed")
		return
	}
	h.broadcast(roomId, frame, except)
}

// broadcast delivers frame to every local connection in roomId except one,
// then hands it to the other gateways.
func (h *Hub) broadcast(roomId string, frame []byte, except *Client) {
	for client := range h.roomToClients[roomId] {
		if client != except {
			h.send(client, frame)
		}
	}

	if h.broker == nil {
		return
	}
	payload, err := json.Marshal(brokerFrame{Origin: h.instanceId, Frame: frame})
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(h.ctx, publishTimeout)
	defer cancel()
	if err := h.broker.Publish(ctx, broker.RoomChannel(roomId), payload); err != nil {
		h.logger.Warn().Err(err).Str("roomId", roomId).Msg("publish room frame failed")
	}
}

// ackMessage turns a registry error into the text a failed ack carries.
func ackMessage(err error) string {
	switch {
	case errors.Is(err, registry.ErrRoomNotFound):
		return protocol.MessageRoomNotFound
	case errors.Is(err, registry.ErrIncorrectPassword):
		return protocol.MessageIncorrectPassword
	default:
		return err.Error()
	}
}

func (h *Hub) ack(c *Client, ackId int64, body any) {
	if ackId == 0 {
		return
	}
	frame, err := protocol.EncodeAck(ackId, body)
	if err != nil {
		h.logger.Error().Err(err).Msg("encode ack failed")
		return
	}
	h.send(c, frame)
}

// send never blocks the hub. A connection whose buffer is full is evicted
// once the current event is done.
func (h *Hub) send(c *Client, frame []byte) {
	if c.closed {
		return
	}
	select {
	case c.Send <- frame:
	default:
		h.slow = append(h.slow, c)
	}
}

func (h *Hub) evictSlow() {
	for _, c := range h.slow {
		if c.closed {
			continue
		}
		h.logger.Warn().Str("userId", c.member.UserId).Str("roomId", c.roomId).Msg("evicting slow connection")
		metrics.OperationsDropped.WithLabelValues("slow_consumer").Inc()
		h.closeSend(c)
	}
	h.slow = h.slow[:0]
}

func (h *Hub) closeSend(c *Client) {
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}
