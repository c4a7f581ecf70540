package canvas

import (
	"slices"

	"github.com/zlnvch/sketchroom/models"
)

// History is a pair of memento stacks. Every snapshot holds the full canonical
// state, so memory grows with document size times history depth; fine for
// whiteboard sessions, not for large documents.
type History struct {
	undo []models.Snapshot
	redo []models.Snapshot
}

// Push records the pre-mutation state of an undoable operation and drops the
// redo stack.
func (h *History) Push(s models.Snapshot) {
	h.undo = append(h.undo, s)
	h.redo = nil
}

// Undo pops the most recent snapshot and parks current on the redo stack.
func (h *History) Undo(current models.Snapshot) (models.Snapshot, bool) {
	if len(h.undo) == 0 {
		return models.Snapshot{}, false
	}
	prev := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, current)
	return prev, true
}

func (h *History) Redo(current models.Snapshot) (models.Snapshot, bool) {
	if len(h.redo) == 0 {
		return models.Snapshot{}, false
	}
	next := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = append(h.undo, current)
	return next, true
}

func (h *History) CanUndo() bool { return len(h.undo) > 0 }
func (h *History) CanRedo() bool { return len(h.redo) > 0 }

func (h *History) UndoDepth() int { return len(h.undo) }
func (h *History) RedoDepth() int { return len(h.redo) }

func cloneLines(lines []models.Line) []models.Line {
	if lines == nil {
		return nil
	}
	out := make([]models.Line, len(lines))
	for i, l := range lines {
		out[i] = cloneLine(l)
	}
	return out
}

func cloneLine(l models.Line) models.Line {
	l.Points = slices.Clone(l.Points)
	l.Dash = slices.Clone(l.Dash)
	return l
}
