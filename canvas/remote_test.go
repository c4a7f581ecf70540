package canvas_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zlnvch/sketchroom/canvas"
	"github.com/zlnvch/sketchroom/models"
	"github.com/zlnvch/sketchroom/protocol"
)

func raw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestApplyRemote_FinalOpsDoNotTouchHistory(t *testing.T) {
	doc := newDoc()

	require.NoError(t, doc.ApplyRemote(protocol.EventDraw, raw(t, canvas.NewLine([]float64{0, 0, 1, 1}, "pen"))))
	require.NoError(t, doc.ApplyRemote(protocol.EventDrawShape, raw(t, models.Shape{Id: "s1", Type: models.ShapeCircle, Radius: 4})))
	require.NoError(t, doc.ApplyRemote(protocol.EventTextCommit, raw(t, models.TextObject{Id: "t1", Text: "hi", FontSize: 17})))
	require.NoError(t, doc.ApplyRemote(protocol.EventShapeFill, raw(t, protocol.ShapeFill{Id: "s1", Fill: "red"})))
	require.NoError(t, doc.ApplyRemote(protocol.EventTextUpdate, json.RawMessage(`{"id":"t1","text":"hey"}`)))
	require.NoError(t, doc.ApplyRemote(protocol.EventErase, raw(t, protocol.Erase{X: 500, Y: 500})))

	assert.False(t, doc.CanUndo())
	assert.Len(t, doc.Lines(), 1)
	shape, ok := doc.Shape("s1")
	require.True(t, ok)
	assert.Equal(t, "red", shape.Fill)
	text, ok := doc.Text("t1")
	require.True(t, ok)
	assert.Equal(t, "hey", text.Text)
	_, hasDraft := doc.CurrentText()
	assert.False(t, hasDraft)
}

func TestApplyRemote_LivePreviews(t *testing.T) {
	doc := newDoc()

	require.NoError(t, doc.ApplyRemote(protocol.EventDrawLive, raw(t, protocol.DrawLive{Points: []float64{0, 0, 1, 1}, Tool: "pencil"})))
	require.NoError(t, doc.ApplyRemote(protocol.EventDrawLive, raw(t, protocol.DrawLive{Points: []float64{0, 0, 1, 1, 2, 2}, Tool: "pencil"})))

	live := doc.LiveLines()
	require.Len(t, live, 1)
	assert.Equal(t, []float64{0, 0, 1, 1, 2, 2}, live[0].Points)
	assert.Equal(t, "#353839", live[0].Stroke)
	assert.Empty(t, doc.Lines())

	require.NoError(t, doc.ApplyRemote(protocol.EventDraw, raw(t, canvas.NewLine([]float64{0, 0, 1, 1, 2, 2}, "pencil"))))
	assert.Empty(t, doc.LiveLines())

	require.NoError(t, doc.ApplyRemote(protocol.EventShapeLive, raw(t, models.Shape{Type: models.ShapeRectangle, Width: 3})))
	require.Len(t, doc.LiveShapes(), 1)
	require.NoError(t, doc.ApplyRemote(protocol.EventDrawShape, raw(t, models.Shape{Id: "s", Type: models.ShapeRectangle, Width: 3})))
	assert.Empty(t, doc.LiveShapes())
}

func TestApplyRemote_ShapeUpdate(t *testing.T) {
	doc := newDoc()
	doc.DrawShape(models.Shape{Id: "s1", Type: models.ShapeRectangle, X: 1, Y: 1, Width: 2, Height: 2})

	err := doc.ApplyRemote(protocol.EventShapeUpdate, json.RawMessage(`{"id":"s1","updatedShape":{"x":10,"width":8}}`))
	require.NoError(t, err)

	shape, _ := doc.Shape("s1")
	assert.Equal(t, 10.0, shape.X)
	assert.Equal(t, 1.0, shape.Y)
	assert.Equal(t, 8.0, shape.Width)
	undo, _ := doc.History()
	assert.Equal(t, 1, undo)
}

func TestApplyRemote_GlobalOpsUseOwnHistory(t *testing.T) {
	doc := newDoc()
	doc.AddLine(canvas.NewLine([]float64{0, 0, 1, 1}, "pen"))
	doc.StartLine(5, 5)
	doc.StartShape(models.ShapeCircle, 1, 1)

	require.NoError(t, doc.ApplyRemote(protocol.EventUndo, nil))
	assert.Empty(t, doc.Lines())
	assert.Empty(t, doc.CurrentLine())
	_, drafting := doc.CurrentShape()
	assert.False(t, drafting)

	require.NoError(t, doc.ApplyRemote(protocol.EventRedo, json.RawMessage(`{}`)))
	assert.Len(t, doc.Lines(), 1)

	require.NoError(t, doc.ApplyRemote(protocol.EventClear, nil))
	assert.Empty(t, doc.Lines())
	assert.True(t, doc.CanUndo())
}

func TestApplyRemote_UndoWithEmptyHistoryIsNoOp(t *testing.T) {
	doc := newDoc()
	require.NoError(t, doc.ApplyRemote(protocol.EventDraw, raw(t, canvas.NewLine([]float64{0, 0, 1, 1}, "pen"))))

	require.NoError(t, doc.ApplyRemote(protocol.EventUndo, nil))
	assert.Len(t, doc.Lines(), 1, "remote final ops leave nothing on this client's stack")
}

func TestApplyRemote_TextStartReplacesDraft(t *testing.T) {
	doc := newDoc()
	doc.StartText(0, 0)

	require.NoError(t, doc.ApplyRemote(protocol.EventTextStart, raw(t, models.TextObject{Id: "remote", Text: "Type here..."})))
	draft, ok := doc.CurrentText()
	require.True(t, ok)
	assert.Equal(t, "remote", draft.Id)
}

func TestApplyRemote_FontAndColor(t *testing.T) {
	doc := newDoc()
	doc.AddText(models.TextObject{Id: "t1", Text: "x", FontSize: 12})

	require.NoError(t, doc.ApplyRemote(protocol.EventTextUpdateFontSize, json.RawMessage(`{"id":"t1","fontSize":30}`)))
	require.NoError(t, doc.ApplyRemote(protocol.EventTextUpdateFontFamily, json.RawMessage(`{"id":"t1","fontFamily":"Georgia"}`)))
	require.NoError(t, doc.ApplyRemote(protocol.EventTextUpdateFontStyle, json.RawMessage(`{"id":"t1","fontStyle":"italic"}`)))
	require.NoError(t, doc.ApplyRemote(protocol.EventTextFill, json.RawMessage(`{"id":"t1","fill":"blue"}`)))
	require.NoError(t, doc.ApplyRemote(protocol.EventColorChange, json.RawMessage(`{"color":"#abcdef"}`)))

	text, _ := doc.Text("t1")
	assert.Equal(t, 30.0, text.FontSize)
	assert.Equal(t, "Georgia", text.FontFamily)
	assert.Equal(t, "italic", text.FontStyle)
	assert.Equal(t, "blue", text.Fill)
	assert.Equal(t, "#abcdef", doc.FillColor())
}

func TestApplyRemote_MalformedPayload(t *testing.T) {
	doc := newDoc()
	err := doc.ApplyRemote(protocol.EventErase, json.RawMessage(`{"x":"left"}`))
	assert.Error(t, err)
}

func TestApplyRemote_IgnoresNonDocumentEvents(t *testing.T) {
	doc := newDoc()
	assert.NoError(t, doc.ApplyRemote(protocol.EventRoomMessage, json.RawMessage(`{"message":{"text":"hi"}}`)))
	assert.False(t, doc.CanUndo())
}
