package timeline

import (
	"maps"
	"slices"
	"strings"

	"github.com/lineupkit/tacticboard/internal/annotation"
	"github.com/lineupkit/tacticboard/pkg/core"
)

// CreateNewTactic replaces the session with an empty tactic in Preview mode,
// seeded from the given formation.
func (s *Store) CreateNewTactic(name string, seeds []core.SeedPosition) bool {
	return s.apply("createNewTactic", func(st State) (State, bool) {
		return newTactic(st, s.rules, name, seeds), true
	})
}

// AddFrame commits the preview configuration as a new last frame.
func (s *Store) AddFrame() bool {
	return s.apply("addFrame", func(st State) (State, bool) {
		pm, ok := st.Mode.(PreviewMode)
		if !ok || st.Playback.IsPlaying {
			return st, false
		}
		ball := pm.Ball
		frame := core.TacticFrame{
			ID:              core.NewID(),
			Index:           len(st.Tactic.Frames),
			PlayerPositions: maps.Clone(pm.Positions),
			Ball:            &ball,
			Strokes:         []core.DrawingStroke{},
			DurationMs:      s.rules.defaultDuration,
		}
		if frame.PlayerPositions == nil {
			frame.PlayerPositions = map[int]core.FramePosition{}
		}
		st.Tactic.Frames = append(slices.Clip(st.Tactic.Frames), frame)
		st.Tactic.UpdatedAt = s.rules.now()
		return st, true
	})
}

// DuplicateFrame appends a deep copy of frame i and opens it for editing.
func (s *Store) DuplicateFrame(i int) bool {
	return s.apply("duplicateFrame", func(st State) (State, bool) {
		if !st.CanDuplicate(i) {
			return st, false
		}
		dup := st.Tactic.Frames[i].Duplicate()
		dup.Index = len(st.Tactic.Frames)
		st.Tactic.Frames = append(slices.Clip(st.Tactic.Frames), dup)
		st.Tactic.UpdatedAt = s.rules.now()
		return selectIndex(st, dup.Index), true
	})
}

// DeleteFrame removes frame i. The last remaining frame cannot be deleted.
func (s *Store) DeleteFrame(i int) bool {
	return s.apply("deleteFrame", func(st State) (State, bool) {
		if !st.CanDelete() || !st.ValidIndex(i) {
			return st, false
		}
		frames := slices.Delete(slices.Clone(st.Tactic.Frames), i, i+1)
		st.Tactic.Frames = core.Reindex(frames)
		st.Tactic.UpdatedAt = s.rules.now()

		sel := min(i, len(frames)-1)
		if _, editing := st.Mode.(EditMode); editing {
			return selectIndex(st, sel), true
		}
		st.Playback.CurrentFrameIndex = sel
		return st, true
	})
}

// SelectFrame opens frame i for editing.
func (s *Store) SelectFrame(i int) bool {
	return s.apply("selectFrame", func(st State) (State, bool) {
		if !st.CanSelect(i) {
			return st, false
		}
		return selectIndex(st, i), true
	})
}

// EnterPreviewMode leaves Edit mode, seeding the preview from the last
// frame.
func (s *Store) EnterPreviewMode() bool {
	return s.apply("enterPreviewMode", func(st State) (State, bool) {
		if !st.CanEnterPreview() {
			return st, false
		}
		st.History = st.History.Reset()
		n := len(st.Tactic.Frames)
		if n == 0 {
			if _, ok := st.Mode.(PreviewMode); !ok {
				st.Mode = PreviewMode{Positions: map[int]core.FramePosition{}, Ball: core.CenteredBall()}
			}
			return st, true
		}

		last := st.Tactic.Frames[n-1]
		pm := PreviewMode{Positions: maps.Clone(last.PlayerPositions), Ball: core.CenteredBall()}
		if pm.Positions == nil {
			pm.Positions = map[int]core.FramePosition{}
		}
		if last.Ball != nil {
			pm.Ball = *last.Ball
		} else if prev, ok := st.Mode.(PreviewMode); ok {
			pm.Ball = prev.Ball
		}
		if prev, ok := st.Mode.(PreviewMode); ok {
			pm.Strokes = prev.Strokes
		}
		st.Mode = pm
		return st, true
	})
}

// MovePlayer moves an existing slot on the current frame.
func (s *Store) MovePlayer(slot int, x, y float64) bool {
	return s.edit("movePlayer", func(e editable) (editable, bool) {
		if _, ok := e.positions[slot]; !ok {
			return e, false
		}
		positions := maps.Clone(e.positions)
		positions[slot] = core.NewFramePosition(slot, x, y)
		e.positions = positions
		return e, true
	})
}

// MoveBall moves the ball on the current frame. A frame without a ball gets
// a visible one.
func (s *Store) MoveBall(x, y float64) bool {
	return s.edit("moveBall", func(e editable) (editable, bool) {
		visible := true
		if e.ball != nil {
			visible = e.ball.Visible
		}
		b := core.NewBallPosition(x, y, visible)
		e.ball = &b
		return e, true
	})
}

// SetBallVisible shows or hides the ball on the current frame.
func (s *Store) SetBallVisible(visible bool) bool {
	return s.edit("setBallVisible", func(e editable) (editable, bool) {
		var b core.BallPosition
		switch {
		case e.ball == nil && !visible:
			return e, false
		case e.ball == nil:
			b = core.CenteredBall()
		case e.ball.Visible == visible:
			return e, false
		default:
			b = *e.ball
		}
		b.Visible = visible
		e.ball = &b
		return e, true
	})
}

// AddStroke appends a stroke to the current frame. Eraser strokes erase
// along their path instead of being stored.
func (s *Store) AddStroke(stroke core.DrawingStroke) bool {
	if stroke.Tool == core.ToolEraser {
		return s.EraseAt(stroke.Points)
	}
	if stroke.CreatedAt.IsZero() {
		stroke.CreatedAt = s.rules.now()
	}
	return s.annotate("addStroke", func(l annotation.Layer) (annotation.Layer, bool) {
		return l.AddStroke(stroke)
	})
}

// EraseStroke removes one stroke by id; Redo restores it.
func (s *Store) EraseStroke(id string) bool {
	return s.annotate("eraseStroke", func(l annotation.Layer) (annotation.Layer, bool) {
		return l.EraseStroke(id)
	})
}

// EraseAt removes every stroke within the eraser radius of path.
func (s *Store) EraseAt(path []core.Point) bool {
	return s.annotate("eraseAt", func(l annotation.Layer) (annotation.Layer, bool) {
		return l.EraseAt(path, s.rules.eraserRadius)
	})
}

// Undo removes the last stroke of the current frame.
func (s *Store) Undo() bool {
	return s.annotate("undo", annotation.Layer.Undo)
}

// Redo restores the most recently removed batch of strokes.
func (s *Store) Redo() bool {
	return s.annotate("redo", annotation.Layer.Redo)
}

// ClearStrokes removes every stroke of the current frame as one batch.
func (s *Store) ClearStrokes() bool {
	return s.annotate("clearStrokes", annotation.Layer.Clear)
}

// SetFrameDuration changes how long the transition out of frame i takes.
func (s *Store) SetFrameDuration(i, ms int) bool {
	return s.apply("setFrameDuration", func(st State) (State, bool) {
		if st.Playback.IsPlaying || !st.ValidIndex(i) {
			return st, false
		}
		ms = core.ClampDuration(ms)
		if st.Tactic.Frames[i].DurationMs == ms {
			return st, false
		}
		frames := slices.Clone(st.Tactic.Frames)
		frames[i].DurationMs = ms
		st.Tactic.Frames = frames
		st.Tactic.UpdatedAt = s.rules.now()
		return st, true
	})
}

// MoveFrame reorders frame from to position to. An open frame stays open.
func (s *Store) MoveFrame(from, to int) bool {
	return s.apply("moveFrame", func(st State) (State, bool) {
		if st.Playback.IsPlaying || !st.ValidIndex(from) || !st.ValidIndex(to) || from == to {
			return st, false
		}
		var selectedID string
		if m, ok := st.Mode.(EditMode); ok {
			selectedID = st.Tactic.Frames[m.FrameIndex].ID
		}

		frames := slices.Clone(st.Tactic.Frames)
		moved := frames[from]
		frames = slices.Delete(frames, from, from+1)
		frames = slices.Insert(frames, to, moved)
		st.Tactic.Frames = core.Reindex(frames)
		st.Tactic.UpdatedAt = s.rules.now()

		if selectedID != "" {
			idx := slices.IndexFunc(st.Tactic.Frames, func(f core.TacticFrame) bool { return f.ID == selectedID })
			st.Mode = EditMode{FrameIndex: idx}
			st.Playback.CurrentFrameIndex = idx
		}
		return st, true
	})
}

// Rename sets the tactic name. Blank names are refused.
func (s *Store) Rename(name string) bool {
	name = strings.TrimSpace(name)
	return s.apply("rename", func(st State) (State, bool) {
		if name == "" || name == st.Tactic.Name {
			return st, false
		}
		st.Tactic.Name = name
		st.Tactic.UpdatedAt = s.rules.now()
		return st, true
	})
}

// SetSpeed snaps and stores the playback multiplier. It may change during
// playback and takes effect on the next tick.
func (s *Store) SetSpeed(speed float64) bool {
	speed = SnapSpeed(speed)
	return s.apply("setSpeed", func(st State) (State, bool) {
		if st.Playback.Speed == speed {
			return st, false
		}
		st.Playback.Speed = speed
		return st, true
	})
}

// SeekFrame moves the play-head without changing mode.
func (s *Store) SeekFrame(i int) bool {
	return s.apply("seekFrame", func(st State) (State, bool) {
		if st.Playback.IsPlaying || !st.ValidIndex(i) {
			return st, false
		}
		if st.Playback.CurrentFrameIndex == i && st.Playback.Progress == 0 {
			return st, false
		}
		st.Playback.CurrentFrameIndex = i
		st.Playback.Progress = 0
		return st, true
	})
}

// Load replaces the session with a copy of t. It opens the first frame, or
// Preview when t has no frames. Stored values are kept as they are.
func (s *Store) Load(t core.Tactic) bool {
	return s.apply("load", func(st State) (State, bool) {
		next := State{
			Tactic:   t.Clone(),
			History:  annotation.NewHistory(s.rules.maxHistory),
			Playback: PlaybackState{Speed: st.Playback.Speed},
		}
		next.Tactic.Frames = core.Reindex(next.Tactic.Frames)
		if len(next.Tactic.Frames) == 0 {
			next.Mode = PreviewMode{Positions: map[int]core.FramePosition{}, Ball: core.CenteredBall()}
			return next, true
		}
		next.Mode = EditMode{FrameIndex: 0}
		return next, true
	})
}

// Export returns a deep copy of the tactic as it would be persisted.
func (s *Store) Export() core.Tactic {
	return s.State().Tactic.Clone()
}

// edit routes a position or ball change to the current editable target.
func (s *Store) edit(op string, fn func(editable) (editable, bool)) bool {
	return s.apply(op, func(st State) (State, bool) {
		e, ok := currentEditable(st)
		if !ok {
			return st, false
		}
		next, changed := fn(e)
		if !changed {
			return st, false
		}
		st = withEditable(st, next)
		if !st.IsPreview() {
			st.Tactic.UpdatedAt = s.rules.now()
		}
		return st, true
	})
}

// annotate routes a stroke operation to the current editable target,
// carrying the session's history through the layer.
func (s *Store) annotate(op string, fn func(annotation.Layer) (annotation.Layer, bool)) bool {
	return s.apply(op, func(st State) (State, bool) {
		e, ok := currentEditable(st)
		if !ok {
			return st, false
		}
		layer, changed := fn(annotation.Layer{Strokes: e.strokes, History: st.History})
		if !changed {
			return st, false
		}
		e.strokes = layer.Strokes
		st = withEditable(st, e)
		st.History = layer.History
		if !st.IsPreview() {
			st.Tactic.UpdatedAt = s.rules.now()
		}
		return st, true
	})
}

func newTactic(st State, r rules, name string, seeds []core.SeedPosition) State {
	now := r.now()
	speed := st.Playback.Speed
	if speed == 0 {
		speed = 1
	}
	return State{
		Tactic: core.Tactic{
			ID:        core.NewID(),
			Name:      strings.TrimSpace(name),
			Frames:    []core.TacticFrame{},
			CreatedAt: now,
			UpdatedAt: now,
		},
		Mode: PreviewMode{
			Positions: core.PositionsFromSeeds(seeds),
			Ball:      core.CenteredBall(),
		},
		History:  annotation.NewHistory(r.maxHistory),
		Playback: PlaybackState{Speed: speed},
	}
}

// selectIndex opens frame i and resets the history, even when i is
// already open.
func selectIndex(st State, i int) State {
	st.Mode = EditMode{FrameIndex: i}
	st.History = st.History.Reset()
	st.Playback.CurrentFrameIndex = i
	st.Playback.Progress = 0
	return st
}
