package canvas

import (
	"slices"

	"github.com/zlnvch/sketchroom/models"
)

type LineStyle struct {
	Stroke      string
	StrokeWidth float64
	Opacity     float64
	Dash        []float64
	Tension     float64
}

const (
	ToolPen    = "pen"
	ToolPencil = "pencil"
	ToolEraser = "eraser"
)

var lineStyles = map[string]LineStyle{
	ToolPen:    {Stroke: "black", StrokeWidth: 3, Opacity: 1, Tension: 0.5},
	ToolPencil: {Stroke: "#353839", StrokeWidth: 1.8, Opacity: 0.6, Dash: []float64{5, 5}, Tension: 0.2},
	ToolEraser: {Stroke: "white", StrokeWidth: 20, Opacity: 1, Tension: 0.5},
}

// StyleFor returns the style a stroke drawn with tool gets. Unknown tools draw
// like a pen.
func StyleFor(tool string) LineStyle {
	style, ok := lineStyles[tool]
	if !ok {
		style = lineStyles[ToolPen]
	}
	style.Dash = slices.Clone(style.Dash)
	return style
}

// NewLine builds a committed stroke from raw points, styled by tool.
func NewLine(points []float64, tool string) models.Line {
	style := StyleFor(tool)
	return models.Line{
		Points:      slices.Clone(points),
		Tool:        tool,
		Stroke:      style.Stroke,
		StrokeWidth: style.StrokeWidth,
		Opacity:     style.Opacity,
		Dash:        style.Dash,
		Tension:     style.Tension,
	}
}
