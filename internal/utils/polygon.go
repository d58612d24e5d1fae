package utils

import "math"

// SimplifyPolygon reduces an open polyline using the Douglas–Peucker
// algorithm with tolerance epsilon. Both endpoints are always kept.
func SimplifyPolygon(pts []Point, epsilon float64) []Point {
	if len(pts) <= 2 || epsilon <= 0 {
		return append([]Point(nil), pts...)
	}
	keep := make([]bool, len(pts))
	dpSimplify(pts, 0, len(pts)-1, epsilon, keep)
	keep[0] = true
	keep[len(pts)-1] = true
	out := make([]Point, 0, len(pts))
	for i, k := range keep {
		if k {
			out = append(out, pts[i])
		}
	}
	return out
}

// SimplifyClosedPolygon reduces a closed contour with Douglas–Peucker.
// The ring is split at two mutually distant vertices and each half is
// simplified independently, so the result does not depend on which
// boundary pixel the contour happened to start at.
func SimplifyClosedPolygon(pts []Point, epsilon float64) []Point {
	n := len(pts)
	if n <= 3 || epsilon <= 0 {
		return append([]Point(nil), pts...)
	}

	a := farthestFrom(pts, pts[0])
	b := farthestFrom(pts, pts[a])
	if a == b {
		return []Point{pts[a]}
	}

	// Rotate so the ring starts at b, then close it back onto b.
	ring := make([]Point, 0, n+1)
	ring = append(ring, pts[b:]...)
	ring = append(ring, pts[:b]...)
	ring = append(ring, pts[b])
	split := (a - b + n) % n

	keep := make([]bool, len(ring))
	keep[0] = true
	keep[split] = true
	dpSimplify(ring, 0, split, epsilon, keep)
	dpSimplify(ring, split, n, epsilon, keep)

	out := make([]Point, 0, 8)
	for i := range n {
		if keep[i] {
			out = append(out, ring[i])
		}
	}
	return out
}

func farthestFrom(pts []Point, p Point) int {
	best, bestD := 0, -1.0
	for i, q := range pts {
		d := (q.X-p.X)*(q.X-p.X) + (q.Y-p.Y)*(q.Y-p.Y)
		if d > bestD {
			best, bestD = i, d
		}
	}
	return best
}

func dpSimplify(pts []Point, start, end int, eps float64, keep []bool) {
	if end <= start+1 {
		return
	}
	maxDist := -1.0
	index := -1
	a := pts[start]
	b := pts[end]
	for i := start + 1; i < end; i++ {
		d := perpendicularDistance(pts[i], a, b)
		if d > maxDist {
			maxDist = d
			index = i
		}
	}
	if maxDist > eps {
		keep[index] = true
		dpSimplify(pts, start, index, eps, keep)
		dpSimplify(pts, index, end, eps, keep)
	}
}

func perpendicularDistance(p, a, b Point) float64 {
	// Distance from point p to the line through a and b
	vx, vy := b.X-a.X, b.Y-a.Y
	if vx == 0 && vy == 0 {
		return math.Hypot(p.X-a.X, p.Y-a.Y)
	}
	// Area of parallelogram / base length
	num := math.Abs((p.X-a.X)*vy - (p.Y-a.Y)*vx)
	return num / math.Hypot(vx, vy)
}

// PolygonArea returns the absolute enclosed area using the shoelace formula.
func PolygonArea(pts []Point) float64 {
	n := len(pts)
	if n < 3 {
		return 0
	}
	s := 0.0
	for i := range n {
		j := (i + 1) % n
		s += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	return math.Abs(s) / 2
}

// ArcLength returns the length of the polyline, including the closing
// segment when closed is set.
func ArcLength(pts []Point, closed bool) float64 {
	if len(pts) < 2 {
		return 0
	}
	l := 0.0
	for i := 1; i < len(pts); i++ {
		l += Distance(pts[i-1], pts[i])
	}
	if closed {
		l += Distance(pts[len(pts)-1], pts[0])
	}
	return l
}
