package timeline

import (
	"math"

	"github.com/lineupkit/tacticboard/internal/annotation"
	"github.com/lineupkit/tacticboard/pkg/core"
)

// Mode is either PreviewMode or EditMode.
type Mode interface {
	modeName() string
}

// PreviewMode configures the next, not yet committed, frame.
type PreviewMode struct {
	Positions map[int]core.FramePosition
	Ball      core.BallPosition
	// Strokes is a scratch overlay drawn while previewing. It is never
	// committed by AddFrame.
	Strokes []core.DrawingStroke
}

// EditMode mutates an existing frame.
type EditMode struct {
	FrameIndex int
}

func (PreviewMode) modeName() string { return "preview" }
func (EditMode) modeName() string    { return "edit" }

// ModeName returns "preview", "edit" or "" for a nil mode.
func ModeName(m Mode) string {
	if m == nil {
		return ""
	}
	return m.modeName()
}

// Playback speed multipliers.
var Speeds = []float64{0.5, 1, 2}

// SnapSpeed maps a requested multiplier onto the nearest supported speed.
func SnapSpeed(s float64) float64 {
	best := 1.0
	bestDiff := math.Inf(1)
	for _, v := range Speeds {
		if d := math.Abs(v - s); d < bestDiff {
			best, bestDiff = v, d
		}
	}
	return best
}

// PlaybackState is the transient play-head. It is reset whenever playback
// stops, except for CurrentFrameIndex.
type PlaybackState struct {
	IsPlaying         bool    `json:"isPlaying"`
	CurrentFrameIndex int     `json:"currentFrameIndex"`
	Speed             float64 `json:"speedMultiplier"`
	Progress          float64 `json:"progress"`
}

// PlaybackView is what the board shows during a transition. It is computed
// per tick and never stored in a frame.
type PlaybackView struct {
	Players     map[int]core.FramePosition `json:"players"`
	Ball        *core.BallPosition         `json:"ball"`
	Strokes     []core.DrawingStroke       `json:"strokes"`
	SourceIndex int                        `json:"sourceIndex"`
}

// State is one immutable snapshot of an editing session. Values obtained
// from a Store must be treated as read-only.
type State struct {
	Tactic   core.Tactic
	Mode     Mode
	History  annotation.History
	Playback PlaybackState
	View     *PlaybackView
	Version  uint64
}

// FrameCount returns the number of committed frames.
func (s State) FrameCount() int {
	return len(s.Tactic.Frames)
}

// ValidIndex reports whether i addresses a committed frame.
func (s State) ValidIndex(i int) bool {
	return i >= 0 && i < len(s.Tactic.Frames)
}

// IsPreview reports whether the session is configuring the next frame.
func (s State) IsPreview() bool {
	_, ok := s.Mode.(PreviewMode)
	return ok
}

// SelectedIndex returns the frame open for editing, or -1 in Preview.
func (s State) SelectedIndex() int {
	if m, ok := s.Mode.(EditMode); ok {
		return m.FrameIndex
	}
	return -1
}

// Current returns what the board should display right now: the
// interpolated view while a transition is running, otherwise exact data
// from the preview or the relevant frame.
func (s State) Current() PlaybackView {
	if s.View != nil {
		return *s.View
	}
	idx := s.Playback.CurrentFrameIndex
	if !s.Playback.IsPlaying {
		switch m := s.Mode.(type) {
		case PreviewMode:
			b := m.Ball
			return PlaybackView{Players: m.Positions, Ball: &b, Strokes: m.Strokes, SourceIndex: -1}
		case EditMode:
			idx = m.FrameIndex
		}
	}
	if !s.ValidIndex(idx) {
		return PlaybackView{SourceIndex: -1}
	}
	f := s.Tactic.Frames[idx]
	return PlaybackView{Players: f.PlayerPositions, Ball: f.Ball, Strokes: f.Strokes, SourceIndex: idx}
}

// editable is the backing storage a "current frame" gesture writes to.
type editable struct {
	positions map[int]core.FramePosition
	ball      *core.BallPosition
	strokes   []core.DrawingStroke
}

// currentEditable resolves the target of every routed edit: the preview
// configuration in Preview mode, frames[i] in Edit(i). Nothing is editable
// while playing.
func currentEditable(s State) (editable, bool) {
	if s.Playback.IsPlaying {
		return editable{}, false
	}
	switch m := s.Mode.(type) {
	case PreviewMode:
		b := m.Ball
		return editable{positions: m.Positions, ball: &b, strokes: m.Strokes}, true
	case EditMode:
		if !s.ValidIndex(m.FrameIndex) {
			return editable{}, false
		}
		f := s.Tactic.Frames[m.FrameIndex]
		return editable{positions: f.PlayerPositions, ball: f.Ball, strokes: f.Strokes}, true
	}
	return editable{}, false
}

// withEditable writes e back to whatever currentEditable read it from.
func withEditable(s State, e editable) State {
	switch m := s.Mode.(type) {
	case PreviewMode:
		ball := m.Ball
		if e.ball != nil {
			ball = *e.ball
		}
		s.Mode = PreviewMode{Positions: e.positions, Ball: ball, Strokes: e.strokes}
	case EditMode:
		frames := make([]core.TacticFrame, len(s.Tactic.Frames))
		copy(frames, s.Tactic.Frames)
		f := frames[m.FrameIndex]
		f.PlayerPositions = e.positions
		f.Ball = e.ball
		f.Strokes = e.strokes
		frames[m.FrameIndex] = f
		s.Tactic.Frames = frames
	}
	return s
}
