package client

import (
	"github.com/zlnvch/sketchroom/canvas"
	"github.com/zlnvch/sketchroom/models"
	"github.com/zlnvch/sketchroom/protocol"
)

// Local operations. Each one changes the local document first and then tells
// the room; the gateway does not echo it back.

type empty struct{}

func (c *Client) PenDown(x, y float64) {
	c.Document(func(doc *canvas.Document) { doc.StartLine(x, y) })
}

// PenMove extends the stroke in progress and streams it as a live preview.
func (c *Client) PenMove(x, y float64, tool string) error {
	var points []float64
	c.Document(func(doc *canvas.Document) { points = doc.ExtendLine(x, y) })
	if points == nil {
		return nil
	}
	return c.Emit(protocol.EventDrawLive, protocol.DrawLive{Points: points, Tool: tool})
}

func (c *Client) PenUp(tool string) error {
	var line models.Line
	var ok bool
	c.Document(func(doc *canvas.Document) { line, ok = doc.CommitCurrentLine(tool) })
	if !ok {
		return nil
	}
	return c.Emit(protocol.EventDraw, line)
}

// Draw commits a whole stroke at once.
func (c *Client) Draw(points []float64, tool string) error {
	line := canvas.NewLine(points, tool)
	c.Document(func(doc *canvas.Document) { doc.AddLine(line) })
	return c.Emit(protocol.EventDraw, line)
}

func (c *Client) Erase(x, y float64) error {
	c.Document(func(doc *canvas.Document) { doc.RemoveLineAt(x, y) })
	return c.Emit(protocol.EventErase, protocol.Erase{X: x, Y: y})
}

func (c *Client) ShapeDown(kind models.ShapeType, x, y float64) {
	c.Document(func(doc *canvas.Document) { doc.StartShape(kind, x, y) })
}

func (c *Client) ShapeMove(x, y float64) error {
	var shape models.Shape
	var ok bool
	c.Document(func(doc *canvas.Document) { shape, ok = doc.ExtendShape(x, y) })
	if !ok {
		return nil
	}
	return c.Emit(protocol.EventShapeLive, shape)
}

func (c *Client) ShapeUp() (models.Shape, error) {
	var shape models.Shape
	var ok bool
	c.Document(func(doc *canvas.Document) { shape, ok = doc.CommitCurrentShape() })
	if !ok {
		return models.Shape{}, nil
	}
	return shape, c.Emit(protocol.EventDrawShape, shape)
}

func (c *Client) DrawShape(shape models.Shape) (models.Shape, error) {
	c.Document(func(doc *canvas.Document) { shape = doc.DrawShape(shape) })
	return shape, c.Emit(protocol.EventDrawShape, shape)
}

func (c *Client) UpdateShape(id string, patch protocol.ShapePatch) error {
	var ok bool
	c.Document(func(doc *canvas.Document) { ok = doc.UpdateShapeTransform(id, patch) })
	if !ok {
		return nil
	}
	return c.Emit(protocol.EventShapeUpdate, protocol.ShapeUpdate{Id: id, UpdatedShape: patch})
}

func (c *Client) FillShape(id, fill string) error {
	var ok bool
	c.Document(func(doc *canvas.Document) { ok = doc.UpdateShapeFill(id, fill) })
	if !ok {
		return nil
	}
	return c.Emit(protocol.EventShapeFill, protocol.ShapeFill{Id: id, Fill: fill})
}

func (c *Client) SetFillColor(color string) error {
	c.Document(func(doc *canvas.Document) { doc.SetFillColor(color) })
	return c.Emit(protocol.EventColorChange, protocol.ColorChange{Color: color})
}

func (c *Client) StartText(x, y float64) (models.TextObject, bool, error) {
	var text models.TextObject
	var ok bool
	c.Document(func(doc *canvas.Document) { text, ok = doc.StartText(x, y) })
	if !ok {
		return models.TextObject{}, false, nil
	}
	return text, true, c.Emit(protocol.EventTextStart, text)
}

// EditText patches a text or the open draft. event picks which text event
// the peers see and must be text:update or one of its font/fill variants.
func (c *Client) EditText(event string, patch protocol.TextPatch) error {
	var ok bool
	c.Document(func(doc *canvas.Document) { ok = doc.UpdateText(patch) })
	if !ok {
		return nil
	}
	return c.Emit(event, patch)
}

func (c *Client) CommitText() (models.TextObject, error) {
	var text models.TextObject
	var ok bool
	c.Document(func(doc *canvas.Document) { text, ok = doc.CommitCurrentText() })
	if !ok {
		return models.TextObject{}, nil
	}
	return text, c.Emit(protocol.EventTextCommit, text)
}

func (c *Client) Undo() error {
	c.Document(func(doc *canvas.Document) { doc.UndoAction() })
	return c.Emit(protocol.EventUndo, empty{})
}

func (c *Client) Redo() error {
	c.Document(func(doc *canvas.Document) { doc.RedoAction() })
	return c.Emit(protocol.EventRedo, empty{})
}

func (c *Client) Clear() error {
	c.Document(func(doc *canvas.Document) { doc.ClearCanvas() })
	return c.Emit(protocol.EventClear, empty{})
}
