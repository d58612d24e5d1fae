package rectify

import (
	"image"

	"github.com/MeKo-Tech/flatdoc/internal/utils"
)

// warpPerspective warps the quadrilateral srcQuad (TL, TR, BR, BL) of src
// into a dstW x dstH rectangle using the inverse homography and bilinear
// sampling. It reports false when the homography is singular.
func warpPerspective(src *image.Gray, srcQuad [4]utils.Point, dstW, dstH int) (*image.Gray, bool) {
	// dst corners in the same order as srcQuad: (0,0),(W-1,0),(W-1,H-1),(0,H-1)
	dstQuad := [4]utils.Point{
		{X: 0, Y: 0},
		{X: float64(dstW - 1), Y: 0},
		{X: float64(dstW - 1), Y: float64(dstH - 1)},
		{X: 0, Y: float64(dstH - 1)},
	}
	H, ok := computeHomography(dstQuad, srcQuad)
	if !ok {
		return nil, false
	}

	out := image.NewGray(image.Rect(0, 0, dstW, dstH))
	for y := range dstH {
		row := out.Pix[y*out.Stride:]
		for x := range dstW {
			sx, sy := applyHomography(H, float64(x), float64(y))
			row[x] = bilinearSample(src, sx, sy)
		}
	}
	return out, true
}

// bilinearSample interpolates src at (x, y), relative to its bounds origin.
// Samples outside the image are black; rounding noise at the border is
// absorbed by sampleEps.
func bilinearSample(src *image.Gray, x, y float64) uint8 {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if x < -sampleEps || y < -sampleEps || x > float64(w-1)+sampleEps || y > float64(h-1)+sampleEps {
		return 0
	}
	x = min(max(x, 0), float64(w-1))
	y = min(max(y, 0), float64(h-1))
	x0, y0 := int(x), int(y)
	x1, y1 := min(x0+1, w-1), min(y0+1, h-1)
	fx := x - float64(x0)
	fy := y - float64(y0)

	at := func(px, py int) float64 {
		return float64(src.Pix[src.PixOffset(b.Min.X+px, b.Min.Y+py)])
	}
	top := lerp(at(x0, y0), at(x1, y0), fx)
	bottom := lerp(at(x0, y1), at(x1, y1), fx)
	return uint8(lerp(top, bottom, fy) + 0.5)
}

const sampleEps = 1e-6

func lerp(a, b, t float64) float64 { return a + (b-a)*t }
