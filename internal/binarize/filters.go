package binarize

import (
	"math"

	"github.com/MeKo-Tech/flatdoc/internal/mempool"
)

// reflect maps an out-of-range index back into [0, n) by mirroring about
// the edge, repeating the edge sample (d c b a | a b c d | d c b a).
func reflect(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * n
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - i - 1
	}
	return i
}

// separable runs a 1-D kernel along rows and then along columns.
func separable(px []float64, w, h int, kernel []float64) []float64 {
	r := len(kernel) / 2
	tmp := mempool.Float64.Get(len(px))
	defer mempool.Float64.Put(tmp)
	for y := range h {
		row := px[y*w : (y+1)*w]
		for x := range w {
			var s float64
			for k, kv := range kernel {
				s += kv * row[reflect(x+k-r, w)]
			}
			tmp[y*w+x] = s
		}
	}

	out := make([]float64, len(px))
	for y := range h {
		for x := range w {
			var s float64
			for k, kv := range kernel {
				s += kv * tmp[reflect(y+k-r, h)*w+x]
			}
			out[y*w+x] = s
		}
	}
	return out
}

func boxFilter(px []float64, w, h, size int) []float64 {
	kernel := make([]float64, size)
	for i := range kernel {
		kernel[i] = 1 / float64(size)
	}
	return separable(px, w, h, kernel)
}

// gaussianFilter truncates the kernel at four standard deviations.
func gaussianFilter(px []float64, w, h int, sigma float64) []float64 {
	radius := int(4*sigma + 0.5)
	kernel := make([]float64, 2*radius+1)
	var sum float64
	for i := -radius; i <= radius; i++ {
		v := math.Exp(-float64(i*i) / (2 * sigma * sigma))
		kernel[i+radius] = v
		sum += v
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return separable(px, w, h, kernel)
}

// medianFilter computes the exact median of every size x size window with
// a histogram that slides along each row.
func medianFilter(px []float64, w, h, size int) []float64 {
	r := size / 2
	half := (size*size)/2 + 1
	out := make([]float64, len(px))

	var hist [256]int
	for y := range h {
		hist = [256]int{}
		for dy := -r; dy <= r; dy++ {
			yy := reflect(y+dy, h)
			for dx := -r; dx <= r; dx++ {
				hist[int(px[yy*w+reflect(dx, w)])]++
			}
		}
		out[y*w] = histMedian(&hist, half)

		for x := 1; x < w; x++ {
			xOut := reflect(x-r-1, w)
			xIn := reflect(x+r, w)
			for dy := -r; dy <= r; dy++ {
				yy := reflect(y+dy, h)
				hist[int(px[yy*w+xOut])]--
				hist[int(px[yy*w+xIn])]++
			}
			out[y*w+x] = histMedian(&hist, half)
		}
	}
	return out
}

// histMedian returns the value at which the cumulative count reaches rank.
func histMedian(hist *[256]int, rank int) float64 {
	acc := 0
	for v, c := range hist {
		acc += c
		if acc >= rank {
			return float64(v)
		}
	}
	return 255
}
