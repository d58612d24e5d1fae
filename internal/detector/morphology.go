package detector

import "github.com/MeKo-Tech/flatdoc/internal/mempool"

// closeMask applies a 3x3 morphological closing (dilate then erode)
// iterations times. It bridges one- and two-pixel gaps in edge lines,
// typically at corners where non-maximum suppression broke the outline.
func closeMask(mask []bool, w, h, iterations int) []bool {
	if iterations <= 0 {
		return mask
	}
	tmp := mempool.Bool.Get(len(mask))
	defer mempool.Bool.Put(tmp)
	out := mask
	for range iterations {
		dilate(tmp, out, w, h)
		out = erode(tmp, w, h)
	}
	return out
}

// dilate sets a pixel of dst if any pixel of its 3x3 neighbourhood in mask
// is set.
func dilate(dst, mask []bool, w, h int) {
	for y := range h {
		for x := range w {
			dst[y*w+x] = anyNeighbour(mask, w, h, x, y, true)
		}
	}
}

// erode keeps a pixel only if its whole 3x3 neighbourhood is set. Pixels
// outside the image count as set so borders do not erode inwards.
func erode(mask []bool, w, h int) []bool {
	out := make([]bool, len(mask))
	for y := range h {
		for x := range w {
			out[y*w+x] = !anyNeighbour(mask, w, h, x, y, false)
		}
	}
	return out
}

// anyNeighbour reports whether some in-bounds pixel of the 3x3
// neighbourhood around (x, y) equals want.
func anyNeighbour(mask []bool, w, h, x, y int, want bool) bool {
	for ky := -1; ky <= 1; ky++ {
		for kx := -1; kx <= 1; kx++ {
			nx, ny := x+kx, y+ky
			if nx < 0 || ny < 0 || nx >= w || ny >= h {
				continue
			}
			if mask[ny*w+nx] == want {
				return true
			}
		}
	}
	return false
}
