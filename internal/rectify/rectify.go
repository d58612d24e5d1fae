// Package rectify removes perspective distortion: it maps a detected
// document quadrilateral onto an upright rectangle whose size follows the
// quadrilateral's longest edges.
package rectify

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"

	"github.com/MeKo-Tech/flatdoc/internal/common"
	"github.com/MeKo-Tech/flatdoc/internal/edges"
	"github.com/MeKo-Tech/flatdoc/internal/utils"
)

const stage = "rectify"

// ErrDegenerateQuad is returned when the quadrilateral cannot be mapped to a
// rectangle of at least 2x2 pixels.
var ErrDegenerateQuad = errors.New("degenerate quadrilateral")

// Params describes the geometry of one rectification.
type Params struct {
	Deform      float64 `json:"deform"` // ratio of the two diagonals, 1 for a parallelogram
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	TopWidth    float64 `json:"top_width"`
	BottomWidth float64 `json:"bottom_width"`
	LeftHeight  float64 `json:"left_height"`
	RightHeight float64 `json:"right_height"`
}

// ComputeParams measures the quadrilateral and derives the output size.
func ComputeParams(q utils.Quad) Params {
	p := Params{
		TopWidth:    utils.Distance(q.TopLeft, q.TopRight),
		BottomWidth: utils.Distance(q.BottomLeft, q.BottomRight),
		LeftHeight:  utils.Distance(q.TopLeft, q.BottomLeft),
		RightHeight: utils.Distance(q.TopRight, q.BottomRight),
	}
	if d := utils.Distance(q.TopRight, q.BottomLeft); d > 0 {
		p.Deform = utils.Distance(q.TopLeft, q.BottomRight) / d
	} else {
		p.Deform = math.Inf(1)
	}
	p.Width = int(math.Round(max(p.TopWidth, p.BottomWidth)))
	p.Height = int(math.Round(max(p.LeftHeight, p.RightHeight)))
	return p
}

// Rectify warps the quadrilateral region of img onto a Width x Height
// grayscale image. Corners map TL->(0,0), TR->(W-1,0), BL->(0,H-1) and
// BR->(W-1,H-1); pixels that fall outside img are black.
func Rectify(img image.Image, q utils.Quad) (*image.Gray, Params, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, Params{}, common.NewError(common.KindInvalidImage, stage, utils.ErrEmptyImage)
	}

	p := ComputeParams(q)
	if p.Width <= 1 || p.Height <= 1 {
		return nil, p, common.NewError(common.KindDegenerateQuad, stage,
			fmt.Errorf("%w: output %dx%d for %s", ErrDegenerateQuad, p.Width, p.Height, q))
	}

	gray, ok := img.(*image.Gray)
	if !ok {
		gray = edges.Grayscale(img)
	}

	src := [4]utils.Point{q.TopLeft, q.TopRight, q.BottomRight, q.BottomLeft}
	out, ok := warpPerspective(gray, src, p.Width, p.Height)
	if !ok {
		return nil, p, common.NewError(common.KindDegenerateQuad, stage,
			fmt.Errorf("%w: singular homography for %s", ErrDegenerateQuad, q))
	}
	return out, p, nil
}

// Config holds rectifier options.
type Config struct {
	DebugDir string // if non-empty, writes a source/result comparison PNG here
}

// Rectifier applies Rectify with logging and optional debug dumps.
type Rectifier struct {
	cfg Config
}

// New creates a rectifier.
func New(cfg Config) *Rectifier {
	return &Rectifier{cfg: cfg}
}

// Apply rectifies the quadrilateral region of img.
func (r *Rectifier) Apply(img image.Image, q utils.Quad) (*image.Gray, Params, error) {
	out, p, err := Rectify(img, q)
	if err != nil {
		return nil, p, err
	}

	slog.Debug("rectified document",
		"quad", q.String(),
		"width", p.Width, "height", p.Height,
		"deform", p.Deform,
		"top_width", p.TopWidth, "bottom_width", p.BottomWidth,
		"left_height", p.LeftHeight, "right_height", p.RightHeight)

	if r.cfg.DebugDir != "" {
		if path, derr := dumpComparePNG(r.cfg.DebugDir, img, q, out); derr != nil {
			slog.Warn("failed to write rectification debug image", "error", derr)
		} else {
			slog.Debug("wrote rectification debug image", "path", path)
		}
	}
	return out, p, nil
}
