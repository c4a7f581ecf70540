// Package canvas is a participant's local copy of the shared drawing: the
// canonical strokes, shapes and texts, the in-progress and live-preview
// slots, and the undo/redo history layered over them.
//
// A Document is not safe for concurrent use. Local input and relayed
// operations must be applied from one goroutine or under one lock.
package canvas

import (
	"math"
	"slices"

	"github.com/gofrs/uuid/v5"
	"github.com/zlnvch/sketchroom/models"
	"github.com/zlnvch/sketchroom/protocol"
)

const (
	// Axis distance under which the eraser removes a point.
	eraseThreshold = 10

	defaultTextContent  = "Type here..."
	defaultTextFontSize = 17
	// Rough glyph width as a fraction of font size, used for text hit tests.
	glyphWidthRatio = 0.6
)

type Document struct {
	lines []models.Line

	// Shapes and texts are kept as arenas plus an id index so that
	// id-addressed edits do not scan.
	shapes     []models.Shape
	shapeIndex map[string]int
	texts      []models.TextObject
	textIndex  map[string]int

	currentLine  []float64
	currentShape *models.Shape
	currentText  *models.TextObject

	liveLines  []models.Line
	liveShapes []models.Shape

	fillColor string
	history   History
	newId     func() string
}

func NewDocument() *Document {
	return &Document{
		shapeIndex: make(map[string]int),
		textIndex:  make(map[string]int),
		fillColor:  models.DefaultFill,
		newId:      newUUID,
	}
}

func newUUID() string {
	id, err := uuid.NewV4()
	if err != nil {
		// crypto/rand failure; nothing sensible to fall back on
		panic(err)
	}
	return id.String()
}

// WithIdGenerator replaces the shape/text id source.
func (d *Document) WithIdGenerator(gen func() string) *Document {
	d.newId = gen
	return d
}

// Snapshot returns a deep copy of the canonical collections.
func (d *Document) Snapshot() models.Snapshot {
	return models.Snapshot{
		Lines:  cloneLines(d.lines),
		Shapes: slices.Clone(d.shapes),
		Texts:  slices.Clone(d.texts),
	}
}

func (d *Document) Lines() []models.Line { return cloneLines(d.lines) }
func (d *Document) Shapes() []models.Shape { return slices.Clone(d.shapes) }
func (d *Document) Texts() []models.TextObject { return slices.Clone(d.texts) }
func (d *Document) LiveLines() []models.Line { return cloneLines(d.liveLines) }
func (d *Document) LiveShapes() []models.Shape { return slices.Clone(d.liveShapes) }
func (d *Document) CurrentLine() []float64 { return slices.Clone(d.currentLine) }
func (d *Document) FillColor() string { return d.fillColor }
func (d *Document) CanUndo() bool { return d.history.CanUndo() }
func (d *Document) CanRedo() bool { return d.history.CanRedo() }
func (d *Document) History() (undo, redo int) { return d.history.UndoDepth(), d.history.RedoDepth() }

func (d *Document) CurrentShape() (models.Shape, bool) {
	if d.currentShape == nil {
		return models.Shape{}, false
	}
	return *d.currentShape, true
}

func (d *Document) CurrentText() (models.TextObject, bool) {
	if d.currentText == nil {
		return models.TextObject{}, false
	}
	return *d.currentText, true
}

func (d *Document) Shape(id string) (models.Shape, bool) {
	idx, ok := d.shapeIndex[id]
	if !ok {
		return models.Shape{}, false
	}
	return d.shapes[idx], true
}

func (d *Document) Text(id string) (models.TextObject, bool) {
	idx, ok := d.textIndex[id]
	if !ok {
		return models.TextObject{}, false
	}
	return d.texts[idx], true
}

// record pushes the pre-mutation state when the change is undoable.
func (d *Document) record(undoable bool) {
	if undoable {
		d.history.Push(d.Snapshot())
	}
}

func (d *Document) restore(s models.Snapshot) {
	d.lines = s.Lines
	d.shapes = s.Shapes
	d.texts = s.Texts
	d.reindex()
}

func (d *Document) reindex() {
	clear(d.shapeIndex)
	for i, s := range d.shapes {
		d.shapeIndex[s.Id] = i
	}
	clear(d.textIndex)
	for i, t := range d.texts {
		d.textIndex[t.Id] = i
	}
}

// Canonical mutations. Each exported method is the local, undoable form; the
// lower-case variants are shared with ApplyRemote, which never records.

func (d *Document) AddLine(line models.Line) {
	d.addLine(line, true)
}

func (d *Document) addLine(line models.Line, undoable bool) {
	d.record(undoable)
	d.lines = append(d.lines, cloneLine(line))
}

// DrawShape commits shape, filling in a fresh id and the default fill when
// they are missing, and returns what was stored.
func (d *Document) DrawShape(shape models.Shape) models.Shape {
	return d.drawShape(shape, true)
}

func (d *Document) drawShape(shape models.Shape, undoable bool) models.Shape {
	if shape.Id == "" {
		shape.Id = d.newId()
	}
	if shape.Fill == "" {
		shape.Fill = models.DefaultFill
	}
	d.record(undoable)
	d.shapes = append(d.shapes, shape)
	d.shapeIndex[shape.Id] = len(d.shapes) - 1
	return shape
}

func (d *Document) AddText(text models.TextObject) models.TextObject {
	return d.addText(text, true)
}

func (d *Document) addText(text models.TextObject, undoable bool) models.TextObject {
	if text.Id == "" {
		text.Id = d.newId()
	}
	if text.Fill == "" {
		text.Fill = models.DefaultTextFill
	}
	d.record(undoable)
	d.texts = append(d.texts, text)
	d.textIndex[text.Id] = len(d.texts) - 1
	return text
}

// CommitCurrentText moves the draft into the canonical texts. It reports
// false when there is no draft.
func (d *Document) CommitCurrentText() (models.TextObject, bool) {
	return d.commitCurrentText(true)
}

func (d *Document) commitCurrentText(undoable bool) (models.TextObject, bool) {
	if d.currentText == nil {
		return models.TextObject{}, false
	}
	committed := d.addText(*d.currentText, undoable)
	d.currentText = nil
	return committed, true
}

// RemoveLineAt erases every stroke point within eraseThreshold of (x, y) on
// both axes. Strokes left with a single point or none are dropped.
func (d *Document) RemoveLineAt(x, y float64) {
	d.removeLineAt(x, y, true)
}

func (d *Document) removeLineAt(x, y float64, undoable bool) {
	d.record(undoable)

	kept := d.lines[:0]
	for _, line := range d.lines {
		points := make([]float64, 0, len(line.Points))
		for i := 0; i+1 < len(line.Points); i += 2 {
			px, py := line.Points[i], line.Points[i+1]
			if math.Abs(px-x) >= eraseThreshold || math.Abs(py-y) >= eraseThreshold {
				points = append(points, px, py)
			}
		}
		if len(points) > 2 {
			line.Points = points
			kept = append(kept, line)
		}
	}
	clear(d.lines[len(kept):])
	d.lines = kept
}

// UpdateShapeTransform merges patch into the shape with id. Unknown ids are
// ignored and leave history untouched.
func (d *Document) UpdateShapeTransform(id string, patch protocol.ShapePatch) bool {
	return d.updateShapeTransform(id, patch, true)
}

func (d *Document) updateShapeTransform(id string, patch protocol.ShapePatch, undoable bool) bool {
	idx, ok := d.shapeIndex[id]
	if !ok {
		return false
	}
	d.record(undoable)
	applyShapePatch(&d.shapes[idx], patch)
	return true
}

func (d *Document) UpdateShapeFill(id, fill string) bool {
	return d.updateShapeTransform(id, protocol.ShapePatch{Fill: &fill}, true)
}

func applyShapePatch(s *models.Shape, p protocol.ShapePatch) {
	if p.X != nil {
		s.X = *p.X
	}
	if p.Y != nil {
		s.Y = *p.Y
	}
	if p.Width != nil {
		s.Width = *p.Width
	}
	if p.Height != nil {
		s.Height = *p.Height
	}
	if p.Radius != nil {
		s.Radius = *p.Radius
	}
	if p.Rotation != nil {
		s.Rotation = *p.Rotation
	}
	if p.Fill != nil {
		s.Fill = *p.Fill
	}
	if p.Stroke != nil {
		s.Stroke = *p.Stroke
	}
	if p.StrokeWidth != nil {
		s.StrokeWidth = *p.StrokeWidth
	}
}

// UpdateText merges patch into the committed text with patch.Id. When the id
// names the uncommitted draft instead, the draft is edited without touching
// history.
func (d *Document) UpdateText(patch protocol.TextPatch) bool {
	return d.updateText(patch, true)
}

func (d *Document) updateText(patch protocol.TextPatch, undoable bool) bool {
	if idx, ok := d.textIndex[patch.Id]; ok {
		d.record(undoable)
		applyTextPatch(&d.texts[idx], patch)
		return true
	}
	if d.currentText != nil && d.currentText.Id == patch.Id {
		applyTextPatch(d.currentText, patch)
		return true
	}
	return false
}

func (d *Document) UpdateTextContent(id, text string) bool {
	return d.UpdateText(protocol.TextPatch{Id: id, Text: &text})
}

func (d *Document) UpdateTextFontFamily(id, fontFamily string) bool {
	return d.UpdateText(protocol.TextPatch{Id: id, FontFamily: &fontFamily})
}

func (d *Document) UpdateTextFontStyle(id, fontStyle string) bool {
	return d.UpdateText(protocol.TextPatch{Id: id, FontStyle: &fontStyle})
}

func (d *Document) UpdateTextFontSize(id string, fontSize float64) bool {
	return d.UpdateText(protocol.TextPatch{Id: id, FontSize: &fontSize})
}

func (d *Document) UpdateTextFill(id, fill string) bool {
	return d.UpdateText(protocol.TextPatch{Id: id, Fill: &fill})
}

func applyTextPatch(t *models.TextObject, p protocol.TextPatch) {
	if p.Text != nil {
		t.Text = *p.Text
	}
	if p.X != nil {
		t.X = *p.X
	}
	if p.Y != nil {
		t.Y = *p.Y
	}
	if p.FontSize != nil {
		t.FontSize = *p.FontSize
	}
	if p.FontFamily != nil {
		t.FontFamily = *p.FontFamily
	}
	if p.FontStyle != nil {
		t.FontStyle = *p.FontStyle
	}
	if p.Fill != nil {
		t.Fill = *p.Fill
	}
	if p.Draggable != nil {
		t.Draggable = *p.Draggable
	}
}

// UndoAction restores the previous snapshot. No-op on an empty undo stack.
func (d *Document) UndoAction() bool {
	prev, ok := d.history.Undo(d.Snapshot())
	if !ok {
		return false
	}
	d.restore(prev)
	return true
}

func (d *Document) RedoAction() bool {
	next, ok := d.history.Redo(d.Snapshot())
	if !ok {
		return false
	}
	d.restore(next)
	return true
}

func (d *Document) ClearCanvas() {
	d.record(true)
	d.lines = nil
	d.shapes = nil
	d.texts = nil
	d.reindex()
}

// Transient slots. None of these are undoable.

func (d *Document) UpdateCurrentLine(points []float64) {
	d.currentLine = slices.Clone(points)
}

func (d *Document) UpdateCurrentShape(shape *models.Shape) {
	if shape == nil {
		d.currentShape = nil
		return
	}
	s := *shape
	d.currentShape = &s
}

func (d *Document) ClearCurrentShape() {
	d.currentShape = nil
}

func (d *Document) UpdateCurrentText(text *models.TextObject) {
	if text == nil {
		d.currentText = nil
		return
	}
	t := *text
	d.currentText = &t
}

// SetLiveLines replaces the remote stroke preview. At most one entry is kept.
func (d *Document) SetLiveLines(lines []models.Line) {
	if len(lines) > 1 {
		lines = lines[len(lines)-1:]
	}
	d.liveLines = cloneLines(lines)
}

func (d *Document) SetLiveShapes(shapes []models.Shape) {
	if len(shapes) > 1 {
		shapes = shapes[len(shapes)-1:]
	}
	d.liveShapes = slices.Clone(shapes)
}

func (d *Document) SetFillColor(color string) {
	d.fillColor = color
}

// Pointer-driven drafting helpers. They return what the caller should emit as
// the matching live or final operation.

func (d *Document) StartLine(x, y float64) {
	d.currentLine = []float64{x, y}
}

// ExtendLine appends a sample to the in-progress stroke and returns the full
// point list. It returns nil when no stroke is in progress.
func (d *Document) ExtendLine(x, y float64) []float64 {
	if len(d.currentLine) == 0 {
		return nil
	}
	d.currentLine = append(d.currentLine, x, y)
	return slices.Clone(d.currentLine)
}

// CommitCurrentLine turns the in-progress stroke into a styled line.
func (d *Document) CommitCurrentLine(tool string) (models.Line, bool) {
	if len(d.currentLine) == 0 {
		return models.Line{}, false
	}
	line := NewLine(d.currentLine, tool)
	d.AddLine(line)
	d.currentLine = nil
	return line, true
}

func (d *Document) StartShape(kind models.ShapeType, x, y float64) models.Shape {
	d.currentShape = &models.Shape{Type: kind, Tool: string(kind), X: x, Y: y}
	return *d.currentShape
}

// ExtendShape resizes the in-progress shape towards (x, y). Squares keep equal
// sides, circles take the distance as radius.
func (d *Document) ExtendShape(x, y float64) (models.Shape, bool) {
	s := d.currentShape
	if s == nil {
		return models.Shape{}, false
	}
	switch s.Type {
	case models.ShapeSquare:
		size := math.Max(math.Abs(x-s.X), math.Abs(y-s.Y))
		s.Width, s.Height = size, size
	case models.ShapeCircle:
		s.Radius = math.Hypot(x-s.X, y-s.Y)
	default:
		s.Width, s.Height = x-s.X, y-s.Y
	}
	return *s, true
}

// CommitCurrentShape stores the in-progress shape with a fresh id and the
// current fill colour.
func (d *Document) CommitCurrentShape() (models.Shape, bool) {
	if d.currentShape == nil {
		return models.Shape{}, false
	}
	shape := *d.currentShape
	shape.Id = ""
	shape.Fill = d.fillColor
	committed := d.DrawShape(shape)
	d.currentShape = nil
	return committed, true
}

// StartText opens a new text draft at (x, y). Only one draft may exist: the
// call is suppressed while a non-empty draft is open or when the point falls
// on an existing text.
func (d *Document) StartText(x, y float64) (models.TextObject, bool) {
	if d.currentText != nil && d.currentText.Text != "" {
		return models.TextObject{}, false
	}
	if d.hitText(x, y) {
		return models.TextObject{}, false
	}
	d.currentText = &models.TextObject{
		Id:        d.newId(),
		X:         x,
		Y:         y,
		Text:      defaultTextContent,
		FontSize:  defaultTextFontSize,
		Fill:      models.DefaultTextFill,
		Draggable: true,
	}
	return *d.currentText, true
}

func (d *Document) hitText(x, y float64) bool {
	for _, t := range d.texts {
		width := float64(len(t.Text)) * t.FontSize * glyphWidthRatio
		if x >= t.X && x <= t.X+width && y >= t.Y && y <= t.Y+t.FontSize {
			return true
		}
	}
	return false
}
