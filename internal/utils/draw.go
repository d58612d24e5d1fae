package utils

import (
	"image"
	"image/color"
	"image/draw"
	"math"
)

// ToNRGBA returns a drawable copy of img with its origin moved to (0, 0).
func ToNRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// DrawPolygon strokes the closed outline through pts with a square brush
// of the given thickness (at least one pixel). Drawing is clipped to dst.
func DrawPolygon(dst draw.Image, pts []Point, col color.Color, thickness int) {
	if len(pts) < 2 {
		return
	}
	brush := &image.Uniform{C: col}
	r := max(thickness-1, 0) / 2
	for i, a := range pts {
		b := pts[(i+1)%len(pts)]
		strokeSegment(a, b, func(x, y int) {
			area := image.Rect(x-r, y-r, x+r+1, y+r+1).Intersect(dst.Bounds())
			if !area.Empty() {
				draw.Draw(dst, area, brush, image.Point{}, draw.Src)
			}
		})
	}
}

// strokeSegment visits the 8-connected pixel run from a to b, both ends
// included, stepping one pixel along the major axis at a time.
func strokeSegment(a, b Point, plot func(x, y int)) {
	x0, y0 := math.Round(a.X), math.Round(a.Y)
	x1, y1 := math.Round(b.X), math.Round(b.Y)
	steps := int(math.Max(math.Abs(x1-x0), math.Abs(y1-y0)))
	if steps == 0 {
		plot(int(x0), int(y0))
		return
	}
	sx, sy := (x1-x0)/float64(steps), (y1-y0)/float64(steps)
	for i := 0; i <= steps; i++ {
		plot(int(math.Round(x0+sx*float64(i))), int(math.Round(y0+sy*float64(i))))
	}
}
