package models

// User is the identity bound to a connection or HTTP request. It is resolved
// by the authentication layer and never created here.
type User struct {
	Id       string
	Username string
}

type Member struct {
	UserId   string `json:"userId"`
	Username string `json:"username"`
}

type ChatMessage struct {
	Username  string `json:"username"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

type Room struct {
	Id              string
	Name            string
	Password        string
	CreatorId       string
	CreatorUsername string
	Members         []Member
	Chat            []ChatMessage
}

// Line is a freehand stroke. Points is a flat list of x,y pairs.
type Line struct {
	Points      []float64 `json:"points"`
	Tool        string    `json:"tool"`
	Stroke      string    `json:"stroke,omitempty"`
	StrokeWidth float64   `json:"strokeWidth,omitempty"`
	Opacity     float64   `json:"opacity,omitempty"`
	Dash        []float64 `json:"dash,omitempty"`
	Tension     float64   `json:"tension,omitempty"`
}

type ShapeType string

const (
	ShapeRectangle ShapeType = "rectangle"
	ShapeSquare    ShapeType = "square"
	ShapeCircle    ShapeType = "circle"
)

const (
	DefaultFill     = "transparent"
	DefaultTextFill = "black"
)

type Shape struct {
	Id          string    `json:"id"`
	Type        ShapeType `json:"type,omitempty"`
	Tool        string    `json:"tool,omitempty"`
	X           float64   `json:"x"`
	Y           float64   `json:"y"`
	Width       float64   `json:"width,omitempty"`
	Height      float64   `json:"height,omitempty"`
	Radius      float64   `json:"radius,omitempty"`
	Rotation    float64   `json:"rotation,omitempty"`
	Fill        string    `json:"fill,omitempty"`
	Stroke      string    `json:"stroke,omitempty"`
	StrokeWidth float64   `json:"strokeWidth,omitempty"`
}

type TextObject struct {
	Id         string  `json:"id"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Text       string  `json:"text"`
	FontSize   float64 `json:"fontSize"`
	FontFamily string  `json:"fontFamily,omitempty"`
	FontStyle  string  `json:"fontStyle,omitempty"`
	Fill       string  `json:"fill,omitempty"`
	Draggable  bool    `json:"draggable"`
}

// Snapshot is a memento of the canonical collections. Values stored in a
// Snapshot share no backing arrays with the live document.
type Snapshot struct {
	Lines  []Line
	Shapes []Shape
	Texts  []TextObject
}
