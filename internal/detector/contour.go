package detector

import (
	"sort"

	"github.com/MeKo-Tech/flatdoc/internal/utils"
)

// Contour is the closed outer boundary of one connected edge component, as
// the ordered list of boundary pixel coordinates.
type Contour struct {
	Points []utils.Point
}

// Area returns the enclosed area of the boundary polygon.
func (c Contour) Area() float64 {
	return utils.PolygonArea(c.Points)
}

// Perimeter returns the closed arc length of the boundary.
func (c Contour) Perimeter() float64 {
	return utils.ArcLength(c.Points, true)
}

// findContours traces the outer boundary of every connected component in
// the mask. Contours come back in label order (raster order of their first
// pixel).
func findContours(mask []bool, w, h int) []Contour {
	comps, labels := connectedComponents(mask, w, h)
	contours := make([]Contour, 0, len(comps))
	for i, st := range comps {
		pts := traceContourMoore(labels, w, h, i+1, st)
		if len(pts) > 0 {
			contours = append(contours, Contour{Points: pts})
		}
	}
	return contours
}

// largestContours sorts contours by descending area and keeps at most n.
// Equal areas keep their discovery order.
func largestContours(contours []Contour, n int) []Contour {
	type ranked struct {
		c    Contour
		area float64
	}
	rs := make([]ranked, len(contours))
	for i, c := range contours {
		rs[i] = ranked{c: c, area: c.Area()}
	}
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].area > rs[j].area })
	if len(rs) > n {
		rs = rs[:n]
	}
	out := make([]Contour, len(rs))
	for i, r := range rs {
		out[i] = r.c
	}
	return out
}

// 8-neighbourhood in clockwise order (y grows downwards): E, SE, S, SW, W, NW, N, NE
var (
	ndx = [8]int{1, 1, 0, -1, -1, -1, 0, 1}
	ndy = [8]int{0, 1, 1, 1, 0, -1, -1, -1}
)

func dirIndex(dx, dy int) int {
	for i := range 8 {
		if ndx[i] == dx && ndy[i] == dy {
			return i
		}
	}
	return 0
}

// traceContourMoore walks the outer boundary of the labelled component with
// Moore-neighbour tracing. It starts at the component's first pixel in raster
// order, whose west neighbour is known to be outside the component, and stops
// by Jacob's criterion: back at the start pixel about to repeat the first move.
func traceContourMoore(labels []int, w, h, label int, st compStats) []utils.Point {
	sx, sy := findStartingPixel(labels, w, label, st)
	if sx < 0 {
		return nil
	}

	isLabel := func(x, y int) bool {
		return x >= 0 && y >= 0 && x < w && y < h && labels[y*w+x] == label
	}

	pts := []utils.Point{{X: float64(sx), Y: float64(sy)}}
	cx, cy := sx, sy
	back := 4 // backtrack neighbour lies to the west
	firstX, firstY := -1, -1
	maxSteps := 4*st.count + 8

	for range maxSteps {
		nx, ny, found := -1, -1, false
		for k := 1; k <= 8; k++ {
			i := (back + k) % 8
			tx, ty := cx+ndx[i], cy+ndy[i]
			if isLabel(tx, ty) {
				// The neighbour examined just before is outside; it becomes
				// the backtrack of the new pixel.
				prev := (i + 7) % 8
				back = dirIndex(cx+ndx[prev]-tx, cy+ndy[prev]-ty)
				nx, ny, found = tx, ty, true
				break
			}
		}
		if !found {
			break // isolated pixel
		}

		if cx == sx && cy == sy {
			if firstX < 0 {
				firstX, firstY = nx, ny
			} else if nx == firstX && ny == firstY {
				break
			}
		}

		cx, cy = nx, ny
		pts = append(pts, utils.Point{X: float64(cx), Y: float64(cy)})
	}

	// Drop the closing repetition of the start pixel
	if n := len(pts); n > 1 && pts[n-1] == pts[0] {
		pts = pts[:n-1]
	}
	return pts
}

// findStartingPixel returns the first pixel of label in raster order.
func findStartingPixel(labels []int, w, label int, st compStats) (int, int) {
	for y := st.minY; y <= st.maxY; y++ {
		for x := st.minX; x <= st.maxX; x++ {
			if labels[y*w+x] == label {
				return x, y
			}
		}
	}
	return -1, -1
}
