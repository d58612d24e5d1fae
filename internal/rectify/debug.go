package rectify

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"path/filepath"
	"time"

	"github.com/MeKo-Tech/flatdoc/internal/utils"
)

// dumpComparePNG writes the source with the quad outlined next to the
// rectified result and returns the file path.
func dumpComparePNG(dir string, src image.Image, q utils.Quad, dst image.Image) (string, error) {
	path := filepath.Join(dir, fmt.Sprintf("rect_compare_%d.png", time.Now().UnixNano()))

	sb := src.Bounds()
	db := dst.Bounds()
	gap := 10
	canvas := image.NewNRGBA(image.Rect(0, 0, sb.Dx()+gap+db.Dx(), max(sb.Dy(), db.Dy())))

	draw.Draw(canvas, image.Rect(0, 0, sb.Dx(), sb.Dy()), src, sb.Min, draw.Src)
	xoff := sb.Dx() + gap
	draw.Draw(canvas, image.Rect(xoff, 0, xoff+db.Dx(), db.Dy()), dst, db.Min, draw.Src)

	utils.DrawPolygon(canvas, q.Points(), color.NRGBA{R: 255, A: 255}, 2)
	border := []utils.Point{
		{X: float64(xoff), Y: 0},
		{X: float64(xoff + db.Dx() - 1), Y: 0},
		{X: float64(xoff + db.Dx() - 1), Y: float64(db.Dy() - 1)},
		{X: float64(xoff), Y: float64(db.Dy() - 1)},
	}
	utils.DrawPolygon(canvas, border, color.NRGBA{G: 255, A: 255}, 2)

	if err := utils.SaveImage(canvas, path); err != nil {
		return "", err
	}
	return path, nil
}
