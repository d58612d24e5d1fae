package utils

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestOrderCorners_AxisAligned(t *testing.T) {
	q := OrderCorners([4]Point{{X: 90, Y: 10}, {X: 10, Y: 80}, {X: 10, Y: 10}, {X: 90, Y: 80}})
	assert.Equal(t, Point{X: 10, Y: 10}, q.TopLeft)
	assert.Equal(t, Point{X: 90, Y: 10}, q.TopRight)
	assert.Equal(t, Point{X: 10, Y: 80}, q.BottomLeft)
	assert.Equal(t, Point{X: 90, Y: 80}, q.BottomRight)
}

func TestOrderCorners_Perspective(t *testing.T) {
	// Trapezoid seen from below: top edge shorter than bottom edge.
	tl := Point{X: 120, Y: 40}
	tr := Point{X: 280, Y: 50}
	bl := Point{X: 30, Y: 380}
	br := Point{X: 370, Y: 390}
	q := OrderCorners([4]Point{br, tl, bl, tr})
	assert.Equal(t, Quad{TopLeft: tl, TopRight: tr, BottomLeft: bl, BottomRight: br}, q)
}

// TestOrderCorners_PermutationInvariant checks that every ordering of the
// same four corners yields the same labelling.
func TestOrderCorners_PermutationInvariant(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("labels do not depend on input order", prop.ForAll(
		func(x0, y0, w, h, jitter float64, perm int) bool {
			pts := [4]Point{
				{X: x0 + jitter, Y: y0},
				{X: x0 + w, Y: y0 + jitter},
				{X: x0, Y: y0 + h - jitter},
				{X: x0 + w - jitter, Y: y0 + h},
			}
			want := OrderCorners(pts)

			shuffled := pts
			for i := range 4 {
				j := (perm >> (2 * i)) & 3
				shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
			}
			return OrderCorners(shuffled) == want
		},
		gen.Float64Range(0, 500),
		gen.Float64Range(0, 500),
		gen.Float64Range(100, 800),
		gen.Float64Range(100, 800),
		gen.Float64Range(0, 20),
		gen.IntRange(0, 255),
	))

	properties.TestingRun(t)
}

func TestOrderCorners_Diamond(t *testing.T) {
	top := Point{X: 50, Y: 0}
	right := Point{X: 100, Y: 50}
	bottom := Point{X: 50, Y: 100}
	left := Point{X: 0, Y: 50}
	want := Quad{TopLeft: top, TopRight: right, BottomRight: bottom, BottomLeft: left}

	for _, perm := range permutations([4]Point{top, right, bottom, left}) {
		assert.Equal(t, want, OrderCorners(perm), "input %v", perm)
	}
}

// permutations returns all 24 orderings of pts.
func permutations(pts [4]Point) [][4]Point {
	var out [][4]Point
	var rec func(k int, cur [4]Point)
	rec = func(k int, cur [4]Point) {
		if k == 4 {
			out = append(out, cur)
			return
		}
		for i := k; i < 4; i++ {
			cur[k], cur[i] = cur[i], cur[k]
			rec(k+1, cur)
			cur[k], cur[i] = cur[i], cur[k]
		}
	}
	rec(0, pts)
	return out
}

func distinctCorners(q Quad) bool {
	pts := q.Points()
	for i := range pts {
		for j := i + 1; j < len(pts); j++ {
			if pts[i] == pts[j] {
				return false
			}
		}
	}
	return true
}

// TestOrderCorners_RotatedRectangles turns rectangles through the full
// circle, including the exact diagonal cases where the x+y and y-x extremes
// tie.
func TestOrderCorners_RotatedRectangles(t *testing.T) {
	properties := gopter.NewProperties(nil)

	rotated := func(w, h, deg float64) [4]Point {
		s, c := math.Sincos(deg * math.Pi / 180)
		var pts [4]Point
		for i, v := range [4]Point{{X: -w, Y: -h}, {X: w, Y: -h}, {X: w, Y: h}, {X: -w, Y: h}} {
			pts[i] = Point{X: 400 + v.X*c - v.Y*s, Y: 400 + v.X*s + v.Y*c}
		}
		return pts
	}

	properties.Property("labels are distinct and order independent", prop.ForAll(
		func(w, h float64, step int) bool {
			pts := rotated(w, h, float64(step)*7.5)
			want := OrderCorners(pts)
			if !distinctCorners(want) {
				return false
			}
			for _, perm := range permutations(pts) {
				if OrderCorners(perm) != want {
					return false
				}
			}
			return true
		},
		gen.Float64Range(20, 300),
		gen.Float64Range(20, 300),
		gen.IntRange(0, 47),
	))

	properties.Property("squares at 45 degrees", prop.ForAll(
		func(r float64) bool {
			pts := [4]Point{{X: 400, Y: 400 - r}, {X: 400 + r, Y: 400}, {X: 400, Y: 400 + r}, {X: 400 - r, Y: 400}}
			want := OrderCorners(pts)
			if want.TopLeft != pts[0] || !distinctCorners(want) {
				return false
			}
			for _, perm := range permutations(pts) {
				if OrderCorners(perm) != want {
					return false
				}
			}
			return true
		},
		gen.Float64Range(1, 300),
	))

	properties.TestingRun(t)
}

func TestQuadScaleAndPoints(t *testing.T) {
	q := Quad{
		TopLeft:     Point{X: 1, Y: 2},
		TopRight:    Point{X: 3, Y: 2},
		BottomLeft:  Point{X: 1, Y: 4},
		BottomRight: Point{X: 3, Y: 4},
	}
	s := q.Scale(2, 10)
	assert.Equal(t, Point{X: 6, Y: 40}, s.BottomRight)

	pts := q.Points()
	assert.Equal(t, []Point{q.TopLeft, q.TopRight, q.BottomRight, q.BottomLeft}, pts)
	assert.Contains(t, q.String(), "tl=(1,2)")
	assert.InDelta(t, 2.0, Distance(q.TopLeft, q.TopRight), 1e-9)
}
