package utils

import (
	"cmp"
	"fmt"
	"math"
	"slices"
)

// Point represents a 2D coordinate in float space. Contour points carry
// integer pixel coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// ScalePoint multiplies coordinates by the given factors.
func ScalePoint(p Point, sx, sy float64) Point {
	return Point{X: p.X * sx, Y: p.Y * sy}
}

// Quad is a document quadrilateral with corners labelled by position.
type Quad struct {
	TopLeft     Point `json:"top_left"`
	TopRight    Point `json:"top_right"`
	BottomLeft  Point `json:"bottom_left"`
	BottomRight Point `json:"bottom_right"`
}

// Points returns the corners in drawing order (clockwise from top-left).
func (q Quad) Points() []Point {
	return []Point{q.TopLeft, q.TopRight, q.BottomRight, q.BottomLeft}
}

// Scale returns the quad with every corner scaled by the given factors.
func (q Quad) Scale(sx, sy float64) Quad {
	return Quad{
		TopLeft:     ScalePoint(q.TopLeft, sx, sy),
		TopRight:    ScalePoint(q.TopRight, sx, sy),
		BottomLeft:  ScalePoint(q.BottomLeft, sx, sy),
		BottomRight: ScalePoint(q.BottomRight, sx, sy),
	}
}

func (q Quad) String() string {
	return fmt.Sprintf("tl=(%.0f,%.0f) tr=(%.0f,%.0f) bl=(%.0f,%.0f) br=(%.0f,%.0f)",
		q.TopLeft.X, q.TopLeft.Y, q.TopRight.X, q.TopRight.Y,
		q.BottomLeft.X, q.BottomLeft.Y, q.BottomRight.X, q.BottomRight.Y)
}

// OrderCorners labels four points by their position in image coordinates
// (y grows downwards): top-left has the smallest x+y, bottom-right the
// largest; top-right has the smallest y-x, bottom-left the largest. Ties
// go to the point lying further toward that corner, first along y, then
// along x. When two labels still land on the same point (a page turned by
// about 45 degrees) the corners are taken clockwise around the centroid
// starting from top-left. The result does not depend on the order of pts.
func OrderCorners(pts [4]Point) Quad {
	tl := pickCorner(pts, func(p Point) [3]float64 { return [3]float64{p.X + p.Y, p.Y, p.X} })
	br := pickCorner(pts, func(p Point) [3]float64 { return [3]float64{-(p.X + p.Y), -p.Y, -p.X} })
	tr := pickCorner(pts, func(p Point) [3]float64 { return [3]float64{p.Y - p.X, p.Y, -p.X} })
	bl := pickCorner(pts, func(p Point) [3]float64 { return [3]float64{p.X - p.Y, -p.Y, p.X} })

	if tl == tr || tl == br || tl == bl || tr == br || tr == bl || br == bl {
		idx := clockwise(pts, tl)
		tr, br, bl = idx[1], idx[2], idx[3]
	}
	return Quad{TopLeft: pts[tl], TopRight: pts[tr], BottomLeft: pts[bl], BottomRight: pts[br]}
}

// pickCorner returns the index of the point with the lexicographically
// smallest key.
func pickCorner(pts [4]Point, key func(Point) [3]float64) int {
	best, bestKey := 0, key(pts[0])
	for i := 1; i < 4; i++ {
		k := key(pts[i])
		if k[0] < bestKey[0] ||
			k[0] == bestKey[0] && (k[1] < bestKey[1] || k[1] == bestKey[1] && k[2] < bestKey[2]) {
			best, bestKey = i, k
		}
	}
	return best
}

// clockwise returns the indices of pts in clockwise order on screen,
// starting at start. Points at equal angles are ordered by distance from
// the centroid.
func clockwise(pts [4]Point, start int) [4]int {
	// summed in sorted order so the centroid is bit-identical for any
	// ordering of pts
	xs := []float64{pts[0].X, pts[1].X, pts[2].X, pts[3].X}
	ys := []float64{pts[0].Y, pts[1].Y, pts[2].Y, pts[3].Y}
	slices.Sort(xs)
	slices.Sort(ys)
	c := Point{X: (xs[0] + xs[1] + xs[2] + xs[3]) / 4, Y: (ys[0] + ys[1] + ys[2] + ys[3]) / 4}
	angle := func(i int) float64 { return math.Atan2(pts[i].Y-c.Y, pts[i].X-c.X) }

	idx := [4]int{0, 1, 2, 3}
	slices.SortFunc(idx[:], func(a, b int) int {
		if d := cmp.Compare(angle(a), angle(b)); d != 0 {
			return d
		}
		return cmp.Compare(Distance(pts[a], c), Distance(pts[b], c))
	})

	var out [4]int
	k := slices.Index(idx[:], start)
	for i := range 4 {
		out[i] = idx[(k+i)%4]
	}
	return out
}
