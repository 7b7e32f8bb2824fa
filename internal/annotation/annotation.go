// Package annotation implements the stroke overlay of a single frame and its
// bounded redo history.
//
// A Layer is a value: every operation returns a new Layer and never touches
// the slices of the receiver, so layers can live inside published snapshots.
package annotation

import (
	"slices"

	"github.com/lineupkit/tacticboard/internal/geo"
	"github.com/lineupkit/tacticboard/pkg/core"
)

// DefaultMaxHistory bounds the history when no limit is configured.
const DefaultMaxHistory = 50

// Batch is a group of strokes removed by one operation, with the positions
// they occupied before removal (ascending).
type Batch struct {
	Strokes []core.DrawingStroke
	Indices []int
}

// History is a stack of removal batches; the most recent batch is last.
type History struct {
	batches []Batch
	limit   int
}

// NewHistory returns an empty history holding at most limit batches.
func NewHistory(limit int) History {
	if limit <= 0 {
		limit = DefaultMaxHistory
	}
	return History{limit: limit}
}

// Len returns the number of batches that Redo can restore.
func (h History) Len() int {
	return len(h.batches)
}

// Reset drops every batch and keeps the depth limit.
func (h History) Reset() History {
	return History{limit: h.limit}
}

func (h History) push(b Batch) History {
	limit := h.limit
	if limit <= 0 {
		limit = DefaultMaxHistory
	}
	start := max(0, len(h.batches)+1-limit)
	next := make([]Batch, 0, len(h.batches)+1-start)
	next = append(next, h.batches[start:]...)
	next = append(next, b)
	return History{batches: next, limit: limit}
}

func (h History) pop() (Batch, History, bool) {
	if len(h.batches) == 0 {
		return Batch{}, h, false
	}
	last := h.batches[len(h.batches)-1]
	n := len(h.batches) - 1
	return last, History{batches: h.batches[:n:n], limit: h.limit}, true
}

// Layer is a stroke list plus the history scoped to it.
type Layer struct {
	Strokes []core.DrawingStroke
	History History
}

// AddStroke appends a stroke and clears the history. Eraser strokes are
// never stored; use EraseAt for them. Empty strokes are refused.
func (l Layer) AddStroke(s core.DrawingStroke) (Layer, bool) {
	if s.Tool == core.ToolEraser || len(s.Points) == 0 {
		return l, false
	}
	s = s.Normalize()
	if s.ID == "" {
		s.ID = core.NewID()
	}
	strokes := make([]core.DrawingStroke, 0, len(l.Strokes)+1)
	strokes = append(strokes, l.Strokes...)
	strokes = append(strokes, s)
	return Layer{Strokes: strokes, History: l.History.Reset()}, true
}

// EraseStroke removes the stroke with the given id and records it so Redo
// can bring it back.
func (l Layer) EraseStroke(id string) (Layer, bool) {
	idx := slices.IndexFunc(l.Strokes, func(s core.DrawingStroke) bool { return s.ID == id })
	if idx < 0 {
		return l, false
	}
	return l.removeIndices([]int{idx}), true
}

// EraseAt removes every stroke the eraser path passes within radius of, as
// one batch.
func (l Layer) EraseAt(path []core.Point, radius float64) (Layer, bool) {
	var hit []int
	for i, s := range l.Strokes {
		if geo.Touches(s, path, radius) {
			hit = append(hit, i)
		}
	}
	if len(hit) == 0 {
		return l, false
	}
	return l.removeIndices(hit), true
}

// Undo pops the last stroke onto the history.
func (l Layer) Undo() (Layer, bool) {
	if len(l.Strokes) == 0 {
		return l, false
	}
	return l.removeIndices([]int{len(l.Strokes) - 1}), true
}

// Redo restores the most recent batch at its original positions.
func (l Layer) Redo() (Layer, bool) {
	b, rest, ok := l.History.pop()
	if !ok {
		return l, false
	}
	strokes := slices.Clone(l.Strokes)
	for i, idx := range b.Indices {
		if idx > len(strokes) {
			idx = len(strokes)
		}
		strokes = slices.Insert(strokes, idx, b.Strokes[i])
	}
	return Layer{Strokes: strokes, History: rest}, true
}

// Clear removes all strokes as a single batch.
func (l Layer) Clear() (Layer, bool) {
	if len(l.Strokes) == 0 {
		return l, false
	}
	all := make([]int, len(l.Strokes))
	for i := range all {
		all[i] = i
	}
	return l.removeIndices(all), true
}

// CanUndo reports whether Undo would change the layer.
func (l Layer) CanUndo() bool {
	return len(l.Strokes) > 0
}

// CanRedo reports whether Redo would change the layer.
func (l Layer) CanRedo() bool {
	return l.History.Len() > 0
}

// removeIndices expects ascending, unique indices.
func (l Layer) removeIndices(indices []int) Layer {
	removed := make([]core.DrawingStroke, 0, len(indices))
	kept := make([]core.DrawingStroke, 0, len(l.Strokes)-len(indices))
	next := 0
	for i, s := range l.Strokes {
		if next < len(indices) && indices[next] == i {
			removed = append(removed, s)
			next++
			continue
		}
		kept = append(kept, s)
	}
	return Layer{
		Strokes: kept,
		History: l.History.push(Batch{Strokes: removed, Indices: slices.Clone(indices)}),
	}
}
