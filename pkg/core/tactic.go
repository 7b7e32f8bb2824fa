// pkg/core/tactic.go
package core

import (
	"errors"
	"fmt"
	"time"
)

// ErrTacticNotFound is returned by stores asked for an unknown tactic id.
var ErrTacticNotFound = errors.New("tactic not found")

// Tactic is a named, ordered sequence of frames.
type Tactic struct {
	ID        string        `json:"id" yaml:"id"`
	Name      string        `json:"name" yaml:"name"`
	Frames    []TacticFrame `json:"frames" yaml:"frames"`
	CreatedAt time.Time     `json:"createdAt" yaml:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt" yaml:"updatedAt"`
}

// TacticSummary is the listing view of a stored tactic.
type TacticSummary struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	FrameCount int       `json:"frameCount"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Clone returns a deep copy of the tactic.
func (t Tactic) Clone() Tactic {
	out := t
	if t.Frames != nil {
		out.Frames = make([]TacticFrame, len(t.Frames))
		for i, f := range t.Frames {
			out.Frames[i] = f.Clone()
		}
	}
	return out
}

// Summary returns the listing view of the tactic.
func (t Tactic) Summary() TacticSummary {
	return TacticSummary{
		ID:         t.ID,
		Name:       t.Name,
		FrameCount: len(t.Frames),
		UpdatedAt:  t.UpdatedAt,
	}
}

// TotalDuration is the sum of all frame durations.
func (t Tactic) TotalDuration() time.Duration {
	var total time.Duration
	for _, f := range t.Frames {
		total += time.Duration(f.DurationMs) * time.Millisecond
	}
	return total
}

// Check reports every stored value that violates the timeline invariants.
// Loaded files are checked before they are handed to an editing session.
func (t Tactic) Check() error {
	var errs []error
	for i, f := range t.Frames {
		if f.Index != i {
			errs = append(errs, fmt.Errorf("frame %d: index is %d", i, f.Index))
		}
		if f.DurationMs < MinFrameDurationMs || f.DurationMs > MaxFrameDurationMs {
			errs = append(errs, fmt.Errorf("frame %d: duration %dms out of range", i, f.DurationMs))
		}
		for _, slot := range f.SortedSlots() {
			p := f.PlayerPositions[slot]
			if !inBand(p.X, PlayerMin, PlayerMax) || !inBand(p.Y, PlayerMin, PlayerMax) {
				errs = append(errs, fmt.Errorf("frame %d: slot %d outside the player band", i, slot))
			}
		}
		if b := f.Ball; b != nil && (!inBand(b.X, BallMin, BallMax) || !inBand(b.Y, BallMin, BallMax)) {
			errs = append(errs, fmt.Errorf("frame %d: ball outside the ball band", i))
		}
		for _, s := range f.Strokes {
			if s.Tool == ToolEraser {
				errs = append(errs, fmt.Errorf("frame %d: eraser stroke %s persisted", i, s.ID))
			}
			if len(s.Points) == 0 {
				errs = append(errs, fmt.Errorf("frame %d: stroke %s has no points", i, s.ID))
			}
			for _, pt := range s.Points {
				if !inBand(pt.X, 0, 1) || !inBand(pt.Y, 0, 1) {
					errs = append(errs, fmt.Errorf("frame %d: stroke %s leaves the pitch", i, s.ID))
					break
				}
			}
		}
	}
	return errors.Join(errs...)
}
