// Package geo turns stroke point lists into planar geometries so the eraser
// can hit-test them. Coordinates stay in pitch fractions; no projection is
// applied.
package geo

import (
	"errors"
	"math"

	"github.com/lineupkit/tacticboard/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// ErrInvalidStroke is returned when a stroke has no points to build a geometry from
var ErrInvalidStroke = errors.New("stroke has no points")

// PathGeometry builds a geometry from an ordered point list.
// A single distinct point yields a Point, anything longer a LineString.
func PathGeometry(points []core.Point) (geom.Geometry, error) {
	pts := dedupe(points)
	if len(pts) == 0 {
		return geom.Geometry{}, ErrInvalidStroke
	}
	if len(pts) == 1 {
		return pointGeometry(pts[0]), nil
	}

	flat := make([]float64, 0, len(pts)*2)
	for _, p := range pts {
		flat = append(flat, p.X, p.Y)
	}
	seq := geom.NewSequence(flat, geom.DimXY)
	return geom.NewLineString(seq).AsGeometry(), nil
}

// StrokeGeometry builds the geometry of a drawn stroke.
func StrokeGeometry(s core.DrawingStroke) (geom.Geometry, error) {
	return PathGeometry(s.Points)
}

// Distance returns the planar distance between a stroke and a path, or +Inf
// when either is empty.
func Distance(s core.DrawingStroke, path []core.Point) float64 {
	a, err := StrokeGeometry(s)
	if err != nil {
		return math.Inf(1)
	}
	b, err := PathGeometry(path)
	if err != nil {
		return math.Inf(1)
	}
	d, ok := geom.Distance(a, b)
	if !ok {
		return math.Inf(1)
	}
	return d
}

// Touches reports whether the eraser path passes within radius of the stroke.
func Touches(s core.DrawingStroke, path []core.Point, radius float64) bool {
	return Distance(s, path) <= radius
}

func pointGeometry(p core.Point) geom.Geometry {
	return geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: p.X, Y: p.Y},
		Type: geom.DimXY,
	}).AsGeometry()
}

// dedupe drops consecutive repeats, zero-length segments carry no shape
func dedupe(points []core.Point) []core.Point {
	out := make([]core.Point, 0, len(points))
	for i, p := range points {
		if i > 0 && p == points[i-1] {
			continue
		}
		out = append(out, p)
	}
	return out
}
