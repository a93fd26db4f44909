package editor

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestComputePath_HorizontalOffsets(t *testing.T) {
	c := ComputePath(Point{0, 0}, Point{300, 0}, Horizontal, Horizontal)

	assert.Equal(t, Point{X: 180, Y: 0}, c.C1)
	assert.Equal(t, Point{X: 120, Y: 0}, c.C2)
	assert.Equal(t, "M 0 0 C 180 0, 120 0, 300 0", c.D())
}

func TestComputePath_Clamping(t *testing.T) {
	short := ComputePath(Point{0, 0}, Point{10, 0}, Horizontal, Horizontal)
	assert.Equal(t, 50.0, short.C1.X)
	assert.Equal(t, -40.0, short.C2.X)

	long := ComputePath(Point{0, 0}, Point{1000, 0}, Horizontal, Horizontal)
	assert.Equal(t, 200.0, long.C1.X)
	assert.Equal(t, 800.0, long.C2.X)
}

func TestComputePath_MixedOrientations(t *testing.T) {
	c := ComputePath(Point{0, 0}, Point{100, 400}, Vertical, Horizontal)

	// The vertical start bends along y using |dy|=400, the horizontal end along x using |dx|=100.
	assert.Equal(t, Point{X: 0, Y: 200}, c.C1)
	assert.Equal(t, Point{X: 40, Y: 400}, c.C2)
}

func TestOrientation(t *testing.T) {
	assert.Equal(t, Vertical, Horizontal.Toggle())
	assert.Equal(t, Horizontal, Vertical.Toggle())
	assert.Equal(t, Vertical, ParseOrientation("vertical"))
	assert.Equal(t, Horizontal, ParseOrientation(""))
	assert.Equal(t, Horizontal, ParseOrientation("diagonal"))
}

func TestProperty_ControlOffsetsStayInRange(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("control points sit 50..200 along their endpoint's axis", prop.ForAll(
		func(sx, sy, ex, ey float64, startVertical, endVertical bool) bool {
			so, eo := Horizontal, Horizontal
			if startVertical {
				so = Vertical
			}
			if endVertical {
				eo = Vertical
			}
			c := ComputePath(Point{sx, sy}, Point{ex, ey}, so, eo)

			var off1, off2 float64
			if so == Vertical {
				off1 = c.C1.Y - sy
				if c.C1.X != sx {
					return false
				}
			} else {
				off1 = c.C1.X - sx
				if c.C1.Y != sy {
					return false
				}
			}
			if eo == Vertical {
				off2 = ey - c.C2.Y
				if c.C2.X != ex {
					return false
				}
			} else {
				off2 = ex - c.C2.X
				if c.C2.Y != ey {
					return false
				}
			}
			inRange := func(v float64) bool { return v >= 50-1e-9 && v <= 200+1e-9 }
			return inRange(off1) && inRange(off2) && c.Start == (Point{sx, sy}) && c.End == (Point{ex, ey})
		},
		gen.Float64Range(-5000, 5000),
		gen.Float64Range(-5000, 5000),
		gen.Float64Range(-5000, 5000),
		gen.Float64Range(-5000, 5000),
		gen.Bool(),
		gen.Bool(),
	))

	properties.Property("offset grows with distance until the cap", prop.ForAll(
		func(dx float64) bool {
			c := ComputePath(Point{0, 0}, Point{dx, 0}, Horizontal, Horizontal)
			want := math.Min(math.Max(math.Abs(dx)*0.6, 50), 200)
			return math.Abs(c.C1.X-want) < 1e-9
		},
		gen.Float64Range(-1000, 1000),
	))

	properties.TestingRun(t)
}
