package testutil

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/MeKo-Tech/flatdoc/internal/utils"
)

// DocumentConfig describes a synthetic photo of a document: a light page
// with a dark border lying on a background.
type DocumentConfig struct {
	Width       int
	Height      int
	Margin      float64     // fraction of each side left free around an upright page
	Corners     *utils.Quad // explicit page corners; overrides Margin
	BorderWidth float64
	Background  color.Gray
	Paper       color.Gray
	Ink         color.Gray
	Lines       []string
}

// DefaultDocumentConfig returns a 1000x1400 canvas with an upright page
// covering the central 80% of each dimension.
func DefaultDocumentConfig() DocumentConfig {
	return DocumentConfig{
		Width:       1000,
		Height:      1400,
		Margin:      0.1,
		BorderWidth: 12,
		Background:  color.Gray{Y: 255},
		Paper:       color.Gray{Y: 235},
		Ink:         color.Gray{Y: 20},
		Lines:       []string{"INVOICE 2024-117", "Total due: 42.00", "Thank you"},
	}
}

// PageQuad returns the page corners the config produces.
func (c DocumentConfig) PageQuad() utils.Quad {
	if c.Corners != nil {
		return *c.Corners
	}
	mx := math.Round(float64(c.Width) * c.Margin)
	my := math.Round(float64(c.Height) * c.Margin)
	x1 := float64(c.Width) - mx - 1
	y1 := float64(c.Height) - my - 1
	return utils.Quad{
		TopLeft:     utils.Point{X: mx, Y: my},
		TopRight:    utils.Point{X: x1, Y: my},
		BottomLeft:  utils.Point{X: mx, Y: y1},
		BottomRight: utils.Point{X: x1, Y: y1},
	}
}

// GenerateDocument renders the synthetic photo and returns it with the
// page corners.
func GenerateDocument(cfg DocumentConfig) (*image.Gray, utils.Quad) {
	q := cfg.PageQuad()
	img := image.NewGray(image.Rect(0, 0, cfg.Width, cfg.Height))
	ring := q.Points()

	for y := range cfg.Height {
		for x := range cfg.Width {
			p := utils.Point{X: float64(x), Y: float64(y)}
			v := cfg.Background
			if insideConvex(ring, p) {
				v = cfg.Paper
				if edgeDistance(ring, p) < cfg.BorderWidth {
					v = cfg.Ink
				}
			}
			img.SetGray(x, y, v)
		}
	}

	drawLines(img, cfg, q)
	return img, q
}

// drawLines writes the text lines around the page centre.
func drawLines(img *image.Gray, cfg DocumentConfig, q utils.Quad) {
	if len(cfg.Lines) == 0 {
		return
	}
	face := basicfont.Face7x13
	cx := (q.TopLeft.X + q.TopRight.X + q.BottomLeft.X + q.BottomRight.X) / 4
	cy := (q.TopLeft.Y + q.TopRight.Y + q.BottomLeft.Y + q.BottomRight.Y) / 4
	lineHeight := face.Metrics().Height.Ceil() * 2

	drawer := &font.Drawer{Dst: img, Src: image.NewUniform(cfg.Ink), Face: face}
	startY := int(cy) - len(cfg.Lines)*lineHeight/2
	for i, line := range cfg.Lines {
		w := font.MeasureString(face, line).Ceil()
		drawer.Dot = fixed.P(int(cx)-w/2, startY+(i+1)*lineHeight)
		drawer.DrawString(line)
	}
}

// insideConvex reports whether p lies inside the convex ring (either winding).
func insideConvex(ring []utils.Point, p utils.Point) bool {
	sign := 0
	for i := range ring {
		a, b := ring[i], ring[(i+1)%len(ring)]
		c := (b.X-a.X)*(p.Y-a.Y) - (b.Y-a.Y)*(p.X-a.X)
		switch {
		case c > 0:
			if sign < 0 {
				return false
			}
			sign = 1
		case c < 0:
			if sign > 0 {
				return false
			}
			sign = -1
		}
	}
	return true
}

// edgeDistance is the distance from p to the nearest ring segment.
func edgeDistance(ring []utils.Point, p utils.Point) float64 {
	best := math.Inf(1)
	for i := range ring {
		a, b := ring[i], ring[(i+1)%len(ring)]
		dx, dy := b.X-a.X, b.Y-a.Y
		t := 0.0
		if l2 := dx*dx + dy*dy; l2 > 0 {
			t = math.Max(0, math.Min(1, ((p.X-a.X)*dx+(p.Y-a.Y)*dy)/l2))
		}
		best = math.Min(best, math.Hypot(p.X-(a.X+t*dx), p.Y-(a.Y+t*dy)))
	}
	return best
}

// Blank returns a uniform image without any document in it.
func Blank(w, h int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Gray{Y: v}), image.Point{}, draw.Src)
	return img
}

// WriteImage saves img as dir/name and returns the path.
func WriteImage(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, utils.SaveImage(img, path), "failed to write %s", path)
	return path
}

// LightFraction returns the share of pixels inside r brighter than 127.
func LightFraction(img *image.Gray, r image.Rectangle) float64 {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return 0
	}
	light := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if img.GrayAt(x, y).Y > 127 {
				light++
			}
		}
	}
	return float64(light) / float64(r.Dx()*r.Dy())
}
