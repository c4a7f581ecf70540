package canvas

import (
	"encoding/json"
	"fmt"

	"github.com/zlnvch/sketchroom/models"
	"github.com/zlnvch/sketchroom/protocol"
)

// ApplyRemote applies an operation relayed from another participant. Final
// operations land in the canonical collections without a history snapshot;
// live operations only replace the preview buffers. Undo, redo and clear run
// against this document's own history, which may differ from the sender's.
//
// Events that carry no document change (chat, membership) are ignored.
func (d *Document) ApplyRemote(event string, data json.RawMessage) error {
	switch event {
	case protocol.EventDraw:
		var line models.Line
		if err := decode(event, data, &line); err != nil {
			return err
		}
		d.addLine(line, false)
		d.SetLiveLines(nil)

	case protocol.EventDrawLive:
		var live protocol.DrawLive
		if err := decode(event, data, &live); err != nil {
			return err
		}
		d.SetLiveLines([]models.Line{NewLine(live.Points, live.Tool)})

	case protocol.EventDrawShape:
		var shape models.Shape
		if err := decode(event, data, &shape); err != nil {
			return err
		}
		d.drawShape(shape, false)
		d.ClearCurrentShape()
		d.SetLiveShapes(nil)

	case protocol.EventShapeLive:
		var shape models.Shape
		if err := decode(event, data, &shape); err != nil {
			return err
		}
		d.SetLiveShapes([]models.Shape{shape})

	case protocol.EventShapeUpdate:
		var update protocol.ShapeUpdate
		if err := decode(event, data, &update); err != nil {
			return err
		}
		d.updateShapeTransform(update.Id, update.UpdatedShape, false)

	case protocol.EventShapeFill:
		var fill protocol.ShapeFill
		if err := decode(event, data, &fill); err != nil {
			return err
		}
		d.updateShapeTransform(fill.Id, protocol.ShapePatch{Fill: &fill.Fill}, false)

	case protocol.EventErase:
		var erase protocol.Erase
		if err := decode(event, data, &erase); err != nil {
			return err
		}
		d.removeLineAt(erase.X, erase.Y, false)

	case protocol.EventColorChange:
		var change protocol.ColorChange
		if err := decode(event, data, &change); err != nil {
			return err
		}
		d.SetFillColor(change.Color)

	case protocol.EventTextStart:
		var text models.TextObject
		if err := decode(event, data, &text); err != nil {
			return err
		}
		d.UpdateCurrentText(&text)

	case protocol.EventTextCommit:
		var text models.TextObject
		if err := decode(event, data, &text); err != nil {
			return err
		}
		d.UpdateCurrentText(&text)
		d.commitCurrentText(false)

	case protocol.EventTextUpdate,
		protocol.EventTextUpdateFontFamily,
		protocol.EventTextUpdateFontStyle,
		protocol.EventTextUpdateFontSize,
		protocol.EventTextFill:
		var patch protocol.TextPatch
		if err := decode(event, data, &patch); err != nil {
			return err
		}
		d.updateText(patch, false)

	case protocol.EventUndo:
		d.UndoAction()
		d.resetDrafts()

	case protocol.EventRedo:
		d.RedoAction()
		d.resetDrafts()

	case protocol.EventClear:
		d.ClearCanvas()
		d.resetDrafts()
	}
	return nil
}

func (d *Document) resetDrafts() {
	d.currentLine = nil
	d.currentShape = nil
}

func decode(event string, data json.RawMessage, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", event, err)
	}
	return nil
}
