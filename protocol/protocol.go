// Package protocol holds the event vocabulary shared by the gateway and the
// participant clients, plus the JSON shapes that travel with each event.
package protocol

import (
	"encoding/json"

	"github.com/zlnvch/sketchroom/models"
)

// Lifecycle and chat events.
const (
	EventRoomCreate  = "room:create"
	EventRoomJoin    = "room:join"
	EventRoomMembers = "room:members"
	EventLeaveRoom   = "leave-room"
	EventRoomMessage = "room:message"
	EventUserJoined  = "user:joined"
	EventUserLeft    = "user:left"
	EventAck         = "ack"
)

// Drawing events.
const (
	EventDraw        = "draw"
	EventDrawLive    = "draw:live"
	EventDrawShape   = "drawShape"
	EventShapeLive   = "shape:live"
	EventShapeUpdate = "shape:update"
	EventShapeFill   = "shape:fill"
	EventErase       = "erase"
	EventColorChange = "color:change"
)

// Text events.
const (
	EventTextStart            = "text:start"
	EventTextUpdate           = "text:update"
	EventTextCommit           = "text:commit"
	EventTextUpdateFontFamily = "text:updateFontFamily"
	EventTextUpdateFontStyle  = "text:updateFontStyle"
	EventTextUpdateFontSize   = "text:updateFontSize"
	EventTextFill             = "text:fill"
)

// Global events. Receivers apply them to their own history.
const (
	EventUndo  = "undo"
	EventRedo  = "redo"
	EventClear = "clear"
)

// Messages carried by failed acks and shown to the user as is.
const (
	MessageRoomNotFound      = "Room not found"
	MessageIncorrectPassword = "Incorrect password"
)

var relayed = map[string]struct{}{
	EventDraw:                 {},
	EventDrawLive:             {},
	EventDrawShape:            {},
	EventShapeLive:            {},
	EventShapeUpdate:          {},
	EventShapeFill:            {},
	EventErase:                {},
	EventColorChange:          {},
	EventTextStart:            {},
	EventTextUpdate:           {},
	EventTextCommit:           {},
	EventTextUpdateFontFamily: {},
	EventTextUpdateFontStyle:  {},
	EventTextUpdateFontSize:   {},
	EventTextFill:             {},
	EventUndo:                 {},
	EventRedo:                 {},
	EventClear:                {},
}

// IsRelayed reports whether the gateway forwards event verbatim to the other
// connections of the sender's room.
func IsRelayed(event string) bool {
	_, ok := relayed[event]
	return ok
}

// IsGlobal reports whether event is one of undo, redo or clear.
func IsGlobal(event string) bool {
	return event == EventUndo || event == EventRedo || event == EventClear
}

// Envelope is a single websocket frame. Ack is set by a requester that wants
// an acknowledgement and echoed back on the "ack" frame.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	Ack   int64           `json:"ack,omitempty"`
}

func Encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// EncodeRaw wraps already-encoded data without touching it.
func EncodeRaw(event string, data json.RawMessage) ([]byte, error) {
	return json.Marshal(Envelope{Event: event, Data: data})
}

func EncodeAck(ackId int64, body any) ([]byte, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: EventAck, Data: raw, Ack: ackId})
}

// Requester -> gateway lifecycle payloads

type CreateRoomRequest struct {
	UserId   string `json:"userId"`
	RoomName string `json:"roomName"`
	Password string `json:"password"`
	Username string `json:"username"`
}

type JoinRoomRequest struct {
	RoomId   string `json:"roomId"`
	UserId   string `json:"userId"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type MembersRequest struct {
	RoomId string `json:"roomId"`
}

type LeaveRoomRequest struct {
	RoomId string `json:"roomId"`
	UserId string `json:"userId"`
}

type ChatRequest struct {
	RoomId  string             `json:"roomId"`
	Message models.ChatMessage `json:"message"`
}

// Acknowledgement bodies

type CreateRoomAck struct {
	Success bool   `json:"success"`
	RoomId  string `json:"roomId,omitempty"`
	Message string `json:"message,omitempty"`
}

type JoinRoomAck struct {
	Success   bool                 `json:"success"`
	Users     []models.Member      `json:"users,omitempty"`
	CreatedBy string               `json:"createdBy,omitempty"`
	History   []models.ChatMessage `json:"history"`
	Message   string               `json:"message,omitempty"`
}

type MembersAck struct {
	Success bool            `json:"success"`
	Members []models.Member `json:"members,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Gateway -> room broadcasts

type MembersBroadcast struct {
	Members   []models.Member `json:"members"`
	CreatedBy string          `json:"createdBy"`
}

type ChatBroadcast struct {
	Message models.ChatMessage `json:"message"`
}

type Presence struct {
	UserId   string `json:"userId"`
	Username string `json:"username"`
}

// Drawing payloads

type DrawLive struct {
	Points []float64 `json:"points"`
	Tool   string    `json:"tool"`
}

// ShapePatch carries the fields of a move/resize/rotate/fill. Nil fields are
// left untouched on the target shape.
type ShapePatch struct {
	X           *float64 `json:"x,omitempty"`
	Y           *float64 `json:"y,omitempty"`
	Width       *float64 `json:"width,omitempty"`
	Height      *float64 `json:"height,omitempty"`
	Radius      *float64 `json:"radius,omitempty"`
	Rotation    *float64 `json:"rotation,omitempty"`
	Fill        *string  `json:"fill,omitempty"`
	Stroke      *string  `json:"stroke,omitempty"`
	StrokeWidth *float64 `json:"strokeWidth,omitempty"`
}

type ShapeUpdate struct {
	Id           string     `json:"id"`
	UpdatedShape ShapePatch `json:"updatedShape"`
}

type ShapeFill struct {
	Id   string `json:"id"`
	Fill string `json:"fill"`
}

type Erase struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type ColorChange struct {
	Color string `json:"color"`
}

// Text payloads

// TextPatch is the body of text:update and of the font/fill variants. Only
// the non-nil fields are merged into the target text.
type TextPatch struct {
	Id         string   `json:"id"`
	Text       *string  `json:"text,omitempty"`
	X          *float64 `json:"x,omitempty"`
	Y          *float64 `json:"y,omitempty"`
	FontSize   *float64 `json:"fontSize,omitempty"`
	FontFamily *string  `json:"fontFamily,omitempty"`
	FontStyle  *string  `json:"fontStyle,omitempty"`
	Fill       *string  `json:"fill,omitempty"`
	Draggable  *bool    `json:"draggable,omitempty"`
}
