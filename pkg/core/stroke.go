// pkg/core/stroke.go
package core

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Tool identifies how a stroke was drawn.
type Tool string

const (
	ToolPen        Tool = "pen"
	ToolArrow      Tool = "arrow"
	ToolLine       Tool = "line"
	ToolDashedLine Tool = "dashed_line"
	ToolEraser     Tool = "eraser"
)

// ParseTool accepts the canonical names plus a few UI spellings.
func ParseTool(s string) (Tool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pen", "freehand":
		return ToolPen, nil
	case "arrow":
		return ToolArrow, nil
	case "line":
		return ToolLine, nil
	case "dashed_line", "dashedline", "dashed":
		return ToolDashedLine, nil
	case "eraser":
		return ToolEraser, nil
	default:
		return "", fmt.Errorf("unknown drawing tool: %q", s)
	}
}

// IsTwoPoint reports whether strokes of this tool keep only start and end.
func (t Tool) IsTwoPoint() bool {
	return t == ToolArrow || t == ToolLine || t == ToolDashedLine
}

// Point is a stroke sample in pitch fractions.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// DrawingStroke is one annotation drawn on a frame.
type DrawingStroke struct {
	ID          string    `json:"id" yaml:"id"`
	Tool        Tool      `json:"tool" yaml:"tool"`
	Points      []Point   `json:"points" yaml:"points"`
	Color       string    `json:"color" yaml:"color"`
	StrokeWidth float64   `json:"strokeWidth" yaml:"strokeWidth"`
	CreatedAt   time.Time `json:"createdAt" yaml:"createdAt"`
}

// NewStroke builds a normalized stroke with a fresh id.
func NewStroke(tool Tool, points []Point, color string, width float64, createdAt time.Time) DrawingStroke {
	return DrawingStroke{
		ID:          NewID(),
		Tool:        tool,
		Points:      points,
		Color:       color,
		StrokeWidth: width,
		CreatedAt:   createdAt,
	}.Normalize()
}

// Normalize clamps points to the pitch and reduces line-like tools to
// their two end points. The receiver's slice is not modified.
func (s DrawingStroke) Normalize() DrawingStroke {
	pts := make([]Point, 0, len(s.Points))
	for _, p := range s.Points {
		pts = append(pts, Point{X: clamp(p.X, 0, 1), Y: clamp(p.Y, 0, 1)})
	}
	if s.Tool.IsTwoPoint() && len(pts) > 2 {
		pts = []Point{pts[0], pts[len(pts)-1]}
	}
	s.Points = pts
	if s.StrokeWidth < 0 {
		s.StrokeWidth = 0
	}
	return s
}

// Clone returns a copy that does not share the point slice.
func (s DrawingStroke) Clone() DrawingStroke {
	s.Points = slices.Clone(s.Points)
	return s
}

func cloneStrokes(in []DrawingStroke) []DrawingStroke {
	if in == nil {
		return nil
	}
	out := make([]DrawingStroke, len(in))
	for i, s := range in {
		out[i] = s.Clone()
	}
	return out
}

// NewID returns a random identifier for tactics, frames and strokes.
func NewID() string {
	return uuid.NewString()
}
