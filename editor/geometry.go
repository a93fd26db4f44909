package editor

import (
	"fmt"
	"math"

	"github.com/BaSui01/flowedit/types"
)

// Point is a position in workspace or screen space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Orientation is the flow axis of a node.
type Orientation string

const (
	Horizontal Orientation = types.FlowHorizontal
	Vertical   Orientation = types.FlowVertical
)

// ParseOrientation maps a persisted flow direction to an Orientation.
// Anything other than "vertical" is horizontal.
func ParseOrientation(s string) Orientation {
	if s == types.FlowVertical {
		return Vertical
	}
	return Horizontal
}

// Toggle returns the other orientation.
func (o Orientation) Toggle() Orientation {
	if o == Vertical {
		return Horizontal
	}
	return Vertical
}

// Control-point offset bounds for link curves.
const (
	curveFactor    = 0.6
	minCurveOffset = 50.0
	maxCurveOffset = 200.0
)

// Curve is a cubic Bézier segment.
type Curve struct {
	Start Point `json:"start"`
	C1    Point `json:"c1"`
	C2    Point `json:"c2"`
	End   Point `json:"end"`
}

// ComputePath returns the curve from start to end. Each control point is
// pushed along its own endpoint's flow axis by clamp(0.6*|delta|, 50, 200),
// where delta is measured on that axis.
func ComputePath(start, end Point, startOrientation, endOrientation Orientation) Curve {
	dx := end.X - start.X
	dy := end.Y - start.Y

	c := Curve{Start: start, End: end}
	if startOrientation == Vertical {
		c.C1 = Point{X: start.X, Y: start.Y + curveOffset(dy)}
	} else {
		c.C1 = Point{X: start.X + curveOffset(dx), Y: start.Y}
	}
	if endOrientation == Vertical {
		c.C2 = Point{X: end.X, Y: end.Y - curveOffset(dy)}
	} else {
		c.C2 = Point{X: end.X - curveOffset(dx), Y: end.Y}
	}
	return c
}

func curveOffset(delta float64) float64 {
	return math.Min(math.Max(math.Abs(delta)*curveFactor, minCurveOffset), maxCurveOffset)
}

// D renders the curve as SVG path data.
func (c Curve) D() string {
	return fmt.Sprintf("M %s %s C %s %s, %s %s, %s %s",
		fmtFloat(c.Start.X), fmtFloat(c.Start.Y),
		fmtFloat(c.C1.X), fmtFloat(c.C1.Y),
		fmtFloat(c.C2.X), fmtFloat(c.C2.Y),
		fmtFloat(c.End.X), fmtFloat(c.End.Y))
}
