package rectify

import (
	"math"

	"github.com/MeKo-Tech/flatdoc/internal/utils"
)

// homography is a row-major 3x3 projective transform with h[8] == 1.
type homography [9]float64

const singularEps = 1e-10

// computeHomography finds the transform taking from[i] to to[i]. Each
// correspondence contributes two rows of the 8-unknown linear system; the
// solve fails for coincident points and the result is rejected when it
// collapses the plane (collinear targets).
func computeHomography(from, to [4]utils.Point) (homography, bool) {
	var a [8][8]float64
	var b [8]float64
	for i, p := range from {
		u, v := to[i].X, to[i].Y
		a[2*i] = [8]float64{p.X, p.Y, 1, 0, 0, 0, -p.X * u, -p.Y * u}
		a[2*i+1] = [8]float64{0, 0, 0, p.X, p.Y, 1, -p.X * v, -p.Y * v}
		b[2*i], b[2*i+1] = u, v
	}

	x, ok := solve8x8(a, b)
	if !ok {
		return homography{}, false
	}
	var h homography
	copy(h[:8], x[:])
	h[8] = 1
	if math.Abs(h.det()) < singularEps {
		return homography{}, false
	}
	return h, true
}

// solve8x8 solves a*x = b by Gaussian elimination with partial pivoting
// followed by back substitution.
func solve8x8(a [8][8]float64, b [8]float64) ([8]float64, bool) {
	const n = 8
	for col := range n {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) < singularEps {
			return [8]float64{}, false
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		for r := col + 1; r < n; r++ {
			f := a[r][col] / a[col][col]
			if f == 0 {
				continue
			}
			for c := col; c < n; c++ {
				a[r][c] -= f * a[col][c]
			}
			b[r] -= f * b[col]
		}
	}

	var x [8]float64
	for r := n - 1; r >= 0; r-- {
		sum := b[r]
		for c := r + 1; c < n; c++ {
			sum -= a[r][c] * x[c]
		}
		x[r] = sum / a[r][r]
	}
	return x, true
}

func (h homography) det() float64 {
	return h[0]*(h[4]*h[8]-h[5]*h[7]) -
		h[1]*(h[3]*h[8]-h[5]*h[6]) +
		h[2]*(h[3]*h[7]-h[4]*h[6])
}

// applyHomography maps (x, y) through h. Points sent to infinity land far
// outside any image so sampling yields black.
func applyHomography(h homography, x, y float64) (float64, float64) {
	w := h[6]*x + h[7]*y + h[8]
	if w == 0 {
		return -1e9, -1e9
	}
	return (h[0]*x + h[1]*y + h[2]) / w, (h[3]*x + h[4]*y + h[5]) / w
}
