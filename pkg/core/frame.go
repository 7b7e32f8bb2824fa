// pkg/core/frame.go
package core

import (
	"maps"
	"math"
	"slices"
)

// Safe bands for coordinates, expressed as fractions of pitch width/height.
const (
	PlayerMin = 0.05
	PlayerMax = 0.95
	BallMin   = 0.02
	BallMax   = 0.98
)

// Frame duration limits in milliseconds.
const (
	DefaultFrameDurationMs = 1000
	MinFrameDurationMs     = 100
	MaxFrameDurationMs     = 10000
)

// FramePosition is a role slot's location on the pitch.
type FramePosition struct {
	SlotID int     `json:"slotId" yaml:"slotId"`
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
}

// NewFramePosition builds a position clamped to the player band.
func NewFramePosition(slotID int, x, y float64) FramePosition {
	return FramePosition{
		SlotID: slotID,
		X:      clamp(x, PlayerMin, PlayerMax),
		Y:      clamp(y, PlayerMin, PlayerMax),
	}
}

// BallPosition is the ball's location and visibility.
type BallPosition struct {
	X       float64 `json:"x" yaml:"x"`
	Y       float64 `json:"y" yaml:"y"`
	Visible bool    `json:"visible" yaml:"visible"`
}

// NewBallPosition builds a ball position clamped to the ball band.
func NewBallPosition(x, y float64, visible bool) BallPosition {
	return BallPosition{
		X:       clamp(x, BallMin, BallMax),
		Y:       clamp(y, BallMin, BallMax),
		Visible: visible,
	}
}

// CenteredBall is a visible ball on the centre spot.
func CenteredBall() BallPosition {
	return BallPosition{X: 0.5, Y: 0.5, Visible: true}
}

// SeedPosition is one entry of an externally supplied base formation.
type SeedPosition struct {
	SlotID int     `json:"slotId" yaml:"slotId"`
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
}

// PositionsFromSeeds converts seeds into a clamped slot map. Later seeds win
// on duplicate slot ids.
func PositionsFromSeeds(seeds []SeedPosition) map[int]FramePosition {
	out := make(map[int]FramePosition, len(seeds))
	for _, s := range seeds {
		out[s.SlotID] = NewFramePosition(s.SlotID, s.X, s.Y)
	}
	return out
}

// TacticFrame is one pose of the tactic.
type TacticFrame struct {
	ID              string                `json:"id" yaml:"id"`
	Index           int                   `json:"index" yaml:"index"`
	PlayerPositions map[int]FramePosition `json:"playerPositions" yaml:"playerPositions"`
	Ball            *BallPosition         `json:"ball" yaml:"ball"`
	Strokes         []DrawingStroke       `json:"strokes" yaml:"strokes"`
	DurationMs      int                   `json:"durationMs" yaml:"durationMs"`
}

// Clone returns a deep copy that keeps every id.
func (f TacticFrame) Clone() TacticFrame {
	out := f
	out.PlayerPositions = maps.Clone(f.PlayerPositions)
	if out.PlayerPositions == nil {
		out.PlayerPositions = map[int]FramePosition{}
	}
	if f.Ball != nil {
		b := *f.Ball
		out.Ball = &b
	}
	out.Strokes = cloneStrokes(f.Strokes)
	return out
}

// Duplicate returns a deep copy with a fresh frame id and fresh stroke ids.
func (f TacticFrame) Duplicate() TacticFrame {
	out := f.Clone()
	out.ID = NewID()
	for i := range out.Strokes {
		out.Strokes[i].ID = NewID()
	}
	return out
}

// SortedSlots returns the frame's slot ids in ascending order.
func (f TacticFrame) SortedSlots() []int {
	return slices.Sorted(maps.Keys(f.PlayerPositions))
}

// ClampDuration maps a requested duration onto the supported range.
// Non-positive values fall back to the default.
func ClampDuration(ms int) int {
	if ms <= 0 {
		return DefaultFrameDurationMs
	}
	if ms < MinFrameDurationMs {
		return MinFrameDurationMs
	}
	if ms > MaxFrameDurationMs {
		return MaxFrameDurationMs
	}
	return ms
}

// Reindex rewrites Index so that frames[i].Index == i. The input slice is
// not modified.
func Reindex(frames []TacticFrame) []TacticFrame {
	out := slices.Clone(frames)
	for i := range out {
		out[i].Index = i
	}
	return out
}

// clamp pins v into [lo, hi]. NaN lands on the middle of the band.
func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return (lo + hi) / 2
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// inBand is false for NaN as well as for values outside [lo, hi].
func inBand(v, lo, hi float64) bool {
	return v >= lo && v <= hi
}
