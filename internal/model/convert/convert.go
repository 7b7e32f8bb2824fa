// Package convert maps tactics between the domain types in pkg/core and
// the GORM models in internal/model.
package convert

import (
	"encoding/json"
	"fmt"

	"github.com/lineupkit/tacticboard/internal/model"
	"github.com/lineupkit/tacticboard/pkg/core"
	"gorm.io/datatypes"
)

// CoreToTactic converts a core.Tactic to a GORM model.Tactic. Frames are
// stored with their slice position as FrameIndex and strokes with their
// slice position as Ordinal. Times are stored in UTC.
func CoreToTactic(t core.Tactic) (model.Tactic, error) {
	out := model.Tactic{
		ID:        t.ID,
		Name:      t.Name,
		CreatedAt: t.CreatedAt.UTC(),
		UpdatedAt: t.UpdatedAt.UTC(),
		Frames:    make([]model.Frame, 0, len(t.Frames)),
	}
	for i, f := range t.Frames {
		frame, err := CoreToFrame(t.ID, i, f)
		if err != nil {
			return model.Tactic{}, fmt.Errorf("frame %d: %w", i, err)
		}
		out.Frames = append(out.Frames, frame)
	}
	return out, nil
}

// CoreToFrame converts one frame of the tactic identified by tacticID.
func CoreToFrame(tacticID string, index int, f core.TacticFrame) (model.Frame, error) {
	positions := make([]core.FramePosition, 0, len(f.PlayerPositions))
	for _, slot := range f.SortedSlots() {
		positions = append(positions, f.PlayerPositions[slot])
	}
	posData, err := json.Marshal(positions)
	if err != nil {
		return model.Frame{}, fmt.Errorf("marshal positions: %w", err)
	}

	// a JSON null rather than SQL NULL keeps the column scannable
	ball := datatypes.JSON("null")
	if f.Ball != nil {
		data, err := json.Marshal(f.Ball)
		if err != nil {
			return model.Frame{}, fmt.Errorf("marshal ball: %w", err)
		}
		ball = datatypes.JSON(data)
	}

	out := model.Frame{
		UID:        f.ID,
		TacticID:   tacticID,
		FrameIndex: index,
		DurationMs: f.DurationMs,
		Positions:  datatypes.JSON(posData),
		Ball:       ball,
		Strokes:    make([]model.Stroke, 0, len(f.Strokes)),
	}
	for i, s := range f.Strokes {
		stroke, err := CoreToStroke(i, s)
		if err != nil {
			return model.Frame{}, fmt.Errorf("stroke %s: %w", s.ID, err)
		}
		out.Strokes = append(out.Strokes, stroke)
	}
	return out, nil
}

// CoreToStroke converts a core.DrawingStroke to a GORM model.Stroke.
func CoreToStroke(ordinal int, s core.DrawingStroke) (model.Stroke, error) {
	points := s.Points
	if points == nil {
		points = []core.Point{}
	}
	data, err := json.Marshal(points)
	if err != nil {
		return model.Stroke{}, fmt.Errorf("marshal points: %w", err)
	}
	return model.Stroke{
		UID:         s.ID,
		Ordinal:     ordinal,
		Tool:        string(s.Tool),
		Color:       s.Color,
		StrokeWidth: s.StrokeWidth,
		Points:      datatypes.JSON(data),
		CreatedAt:   s.CreatedAt.UTC(),
	}, nil
}

// TacticToCore converts a GORM model.Tactic back to a core.Tactic. Frames
// and strokes are expected in stored order; indices are rewritten from
// slice position.
func TacticToCore(m model.Tactic) (core.Tactic, error) {
	out := core.Tactic{
		ID:        m.ID,
		Name:      m.Name,
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
		Frames:    make([]core.TacticFrame, 0, len(m.Frames)),
	}
	for i, f := range m.Frames {
		frame, err := FrameToCore(f)
		if err != nil {
			return core.Tactic{}, fmt.Errorf("frame %d: %w", i, err)
		}
		frame.Index = i
		out.Frames = append(out.Frames, frame)
	}
	return out, nil
}

// FrameToCore converts a GORM model.Frame to a core.TacticFrame.
func FrameToCore(f model.Frame) (core.TacticFrame, error) {
	var positions []core.FramePosition
	if len(f.Positions) > 0 {
		if err := json.Unmarshal(f.Positions, &positions); err != nil {
			return core.TacticFrame{}, fmt.Errorf("unmarshal positions: %w", err)
		}
	}

	out := core.TacticFrame{
		ID:              f.UID,
		Index:           f.FrameIndex,
		PlayerPositions: make(map[int]core.FramePosition, len(positions)),
		DurationMs:      f.DurationMs,
		Strokes:         make([]core.DrawingStroke, 0, len(f.Strokes)),
	}
	for _, p := range positions {
		out.PlayerPositions[p.SlotID] = p
	}

	if len(f.Ball) > 0 && string(f.Ball) != "null" {
		var ball core.BallPosition
		if err := json.Unmarshal(f.Ball, &ball); err != nil {
			return core.TacticFrame{}, fmt.Errorf("unmarshal ball: %w", err)
		}
		out.Ball = &ball
	}

	for _, s := range f.Strokes {
		stroke, err := StrokeToCore(s)
		if err != nil {
			return core.TacticFrame{}, fmt.Errorf("stroke %s: %w", s.UID, err)
		}
		out.Strokes = append(out.Strokes, stroke)
	}
	return out, nil
}

// StrokeToCore converts a GORM model.Stroke to a core.DrawingStroke.
func StrokeToCore(s model.Stroke) (core.DrawingStroke, error) {
	var points []core.Point
	if len(s.Points) > 0 {
		if err := json.Unmarshal(s.Points, &points); err != nil {
			return core.DrawingStroke{}, fmt.Errorf("unmarshal points: %w", err)
		}
	}
	tool, err := core.ParseTool(s.Tool)
	if err != nil {
		return core.DrawingStroke{}, err
	}
	return core.DrawingStroke{
		ID:          s.UID,
		Tool:        tool,
		Points:      points,
		Color:       s.Color,
		StrokeWidth: s.StrokeWidth,
		CreatedAt:   s.CreatedAt.UTC(),
	}, nil
}
