package edges

import (
	"fmt"
	"image"
	"math"

	"github.com/MeKo-Tech/flatdoc/internal/common"
)

const (
	edgeOn  = 255
	edgeOff = 0
)

// Canny runs Sobel gradients, non-maximum suppression and hysteresis on a
// grayscale image. Gradient magnitude is |gx|+|gy|; pixels above upper seed
// edges that grow through 8-connected pixels above lower. The result holds
// only 0 and 255.
func Canny(gray *image.Gray, lower, upper int) (*image.Gray, error) {
	if lower < 0 || lower > upper {
		return nil, common.NewError(common.KindInvalidConfig, "edges",
			fmt.Errorf("%w: lower=%d upper=%d", ErrInvalidThresholds, lower, upper))
	}

	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	if w < 3 || h < 3 {
		return out, nil
	}

	mag, dir := sobel(gray, w, h)
	thin := suppressNonMaxima(mag, dir, w, h)
	hysteresis(thin, out.Pix, w, h, float64(lower), float64(upper))
	return out, nil
}

// AutoCanny derives thresholds from the median intensity:
// lower = max(0, (1-sigma)*median), upper = min(255, (1+sigma)*median).
func AutoCanny(gray *image.Gray, sigma float64) (*image.Gray, float64, int, int) {
	m := Median(gray)
	lower := int(math.Max(0, (1.0-sigma)*m))
	upper := int(math.Min(255, (1.0+sigma)*m))
	// lower <= upper holds for any sigma >= 0, so Canny cannot fail here.
	out, err := Canny(gray, lower, upper)
	if err != nil {
		b := gray.Bounds()
		out = image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	}
	return out, m, lower, upper
}

// Median returns the median pixel intensity. For an even pixel count it is
// the mean of the two middle values.
func Median(gray *image.Gray) float64 {
	b := gray.Bounds()
	n := b.Dx() * b.Dy()
	if n == 0 {
		return 0
	}
	var hist [256]int
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := gray.Pix[gray.PixOffset(b.Min.X, y):]
		for x := range b.Dx() {
			hist[row[x]]++
		}
	}

	// 0-based ranks of the middle element(s)
	lo, hi := (n-1)/2, n/2
	loV, hiV := -1, -1
	seen := 0
	for v, c := range hist {
		seen += c
		if loV < 0 && seen > lo {
			loV = v
		}
		if seen > hi {
			hiV = v
			break
		}
	}
	return float64(loV+hiV) / 2
}

// sobel computes L1 gradient magnitude and a quantised direction
// (0: horizontal, 1: 45°, 2: vertical, 3: 135°) for interior pixels.
func sobel(gray *image.Gray, w, h int) ([]float64, []uint8) {
	mag := make([]float64, w*h)
	dir := make([]uint8, w*h)
	px := func(x, y int) float64 {
		return float64(gray.Pix[gray.PixOffset(gray.Rect.Min.X+x, gray.Rect.Min.Y+y)])
	}

	const tan22 = 0.41421356 // tan(22.5°)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			gx := -px(x-1, y-1) - 2*px(x-1, y) - px(x-1, y+1) +
				px(x+1, y-1) + 2*px(x+1, y) + px(x+1, y+1)
			gy := -px(x-1, y-1) - 2*px(x, y-1) - px(x+1, y-1) +
				px(x-1, y+1) + 2*px(x, y+1) + px(x+1, y+1)

			i := y*w + x
			mag[i] = math.Abs(gx) + math.Abs(gy)

			ax, ay := math.Abs(gx), math.Abs(gy)
			switch {
			case ay <= ax*tan22:
				dir[i] = 0
			case ax <= ay*tan22:
				dir[i] = 2
			case (gx > 0) == (gy > 0):
				dir[i] = 1
			default:
				dir[i] = 3
			}
		}
	}
	return mag, dir
}

// suppressNonMaxima keeps a pixel only if its magnitude is a local maximum
// across the gradient direction.
func suppressNonMaxima(mag []float64, dir []uint8, w, h int) []float64 {
	out := make([]float64, w*h)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			m := mag[i]
			if m == 0 {
				continue
			}
			var a, b float64
			switch dir[i] {
			case 0: // gradient along x, compare left/right
				a, b = mag[i-1], mag[i+1]
			case 2: // gradient along y, compare up/down
				a, b = mag[i-w], mag[i+w]
			case 1: // gradient along the main diagonal (y grows with x)
				a, b = mag[i-w-1], mag[i+w+1]
			default:
				a, b = mag[i-w+1], mag[i+w-1]
			}
			// Ties break towards the earlier neighbour so plateaus stay one pixel wide.
			if m > a && m >= b {
				out[i] = m
			}
		}
	}
	return out
}

// hysteresis marks strong pixels and every weak pixel 8-connected to one.
func hysteresis(mag []float64, dst []uint8, w, h int, lower, upper float64) {
	stack := make([]int, 0, 1024)
	for i, m := range mag {
		if m > upper && dst[i] == edgeOff {
			dst[i] = edgeOn
			stack = append(stack, i)
		}
		for len(stack) > 0 {
			c := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			cx, cy := c%w, c/w
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := cx+dx, cy+dy
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					j := ny*w + nx
					if dst[j] == edgeOff && mag[j] > lower {
						dst[j] = edgeOn
						stack = append(stack, j)
					}
				}
			}
		}
	}
}
