package utils

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rectangleRing returns every integer point on the border of an axis-aligned
// rectangle, clockwise, starting at an arbitrary offset along the ring.
func rectangleRing(x0, y0, w, h, start int) []Point {
	var ring []Point
	for x := x0; x < x0+w; x++ {
		ring = append(ring, Point{X: float64(x), Y: float64(y0)})
	}
	for y := y0; y < y0+h; y++ {
		ring = append(ring, Point{X: float64(x0 + w), Y: float64(y)})
	}
	for x := x0 + w; x > x0; x-- {
		ring = append(ring, Point{X: float64(x), Y: float64(y0 + h)})
	}
	for y := y0 + h; y > y0; y-- {
		ring = append(ring, Point{X: float64(x0), Y: float64(y)})
	}
	start %= len(ring)
	return append(ring[start:], ring[:start]...)
}

func TestSimplifyPolygon_Open(t *testing.T) {
	line := []Point{{X: 0, Y: 0}, {X: 1, Y: 0.1}, {X: 2, Y: -0.1}, {X: 3, Y: 5}, {X: 4, Y: 6}}
	out := SimplifyPolygon(line, 0.5)
	require.GreaterOrEqual(t, len(out), 3)
	assert.Equal(t, line[0], out[0])
	assert.Equal(t, line[len(line)-1], out[len(out)-1])

	assert.Equal(t, line, SimplifyPolygon(line, 0))
}

func TestSimplifyClosedPolygon_RectangleHasFourVertices(t *testing.T) {
	for _, start := range []int{0, 7, 55, 140, 301} {
		ring := rectangleRing(20, 30, 150, 90, start)
		eps := 0.02 * ArcLength(ring, true)
		out := SimplifyClosedPolygon(ring, eps)
		require.Len(t, out, 4, "start offset %d", start)

		q := OrderCorners([4]Point{out[0], out[1], out[2], out[3]})
		assert.Equal(t, Point{X: 20, Y: 30}, q.TopLeft)
		assert.Equal(t, Point{X: 170, Y: 30}, q.TopRight)
		assert.Equal(t, Point{X: 20, Y: 120}, q.BottomLeft)
		assert.Equal(t, Point{X: 170, Y: 120}, q.BottomRight)
	}
}

func TestSimplifyClosedPolygon_Degenerate(t *testing.T) {
	same := []Point{{X: 1, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 1}}
	assert.Len(t, SimplifyClosedPolygon(same, 1), 1)

	tri := []Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}}
	assert.Equal(t, tri, SimplifyClosedPolygon(tri, 1))
}

func TestSimplifyClosedPolygon_OutputNonIncreasing(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("closed simplification never adds points", prop.ForAll(
		func(w, h, start int, coeff float64) bool {
			ring := rectangleRing(0, 0, w, h, start)
			out := SimplifyClosedPolygon(ring, coeff*ArcLength(ring, true))
			return len(out) <= len(ring) && len(out) >= 2
		},
		gen.IntRange(5, 80),
		gen.IntRange(5, 80),
		gen.IntRange(0, 400),
		gen.Float64Range(0.001, 0.2),
	))

	properties.TestingRun(t)
}

func TestPolygonAreaAndArcLength(t *testing.T) {
	sq := []Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}}
	assert.InDelta(t, 100.0, PolygonArea(sq), 1e-9)

	// Orientation does not change the absolute area.
	rev := []Point{sq[3], sq[2], sq[1], sq[0]}
	assert.InDelta(t, 100.0, PolygonArea(rev), 1e-9)

	assert.InDelta(t, 40.0, ArcLength(sq, true), 1e-9)
	assert.InDelta(t, 30.0, ArcLength(sq, false), 1e-9)
	assert.Zero(t, PolygonArea(sq[:2]))
	assert.Zero(t, ArcLength(sq[:1], true))
}

func TestPerpendicularDistance(t *testing.T) {
	a := Point{X: 0, Y: 0}
	b := Point{X: 10, Y: 0}
	assert.InDelta(t, 3.0, perpendicularDistance(Point{X: 5, Y: 3}, a, b), 1e-9)
	assert.InDelta(t, math.Sqrt2, perpendicularDistance(Point{X: 1, Y: 1}, a, a), 1e-9)
}
