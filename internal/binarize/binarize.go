// Package binarize turns a grayscale document into black text on white
// paper with a locally adaptive threshold.
package binarize

import (
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/MeKo-Tech/flatdoc/internal/common"
)

const stage = "binarize"

// Method selects the local statistic a pixel is compared against.
type Method string

const (
	MethodMean     Method = "mean"
	MethodGaussian Method = "gaussian"
	MethodMedian   Method = "median"
)

var (
	ErrInvalidBlockSize = errors.New("block size must be odd and >= 3")
	ErrInvalidMethod    = errors.New("unknown threshold method")
)

// Methods lists the supported methods.
func Methods() []Method {
	return []Method{MethodMean, MethodGaussian, MethodMedian}
}

// ParseMethod converts a configuration value into a Method.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Methods() {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMethod, s)
}

// Params bundles the threshold settings.
type Params struct {
	BlockSize int
	Method    Method
	Offset    float64
}

// DefaultParams returns an 11 pixel gaussian window with offset 10.
func DefaultParams() Params {
	return Params{BlockSize: 11, Method: MethodGaussian, Offset: 10}
}

// Validate checks block size and method.
func (p Params) Validate() error {
	if p.BlockSize < 3 || p.BlockSize%2 == 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidBlockSize, p.BlockSize)
	}
	if _, err := ParseMethod(string(p.Method)); err != nil {
		return err
	}
	return nil
}

// Apply is Binarize with p's settings.
func (p Params) Apply(gray *image.Gray) (*image.Gray, error) {
	return Binarize(gray, p.BlockSize, p.Method, p.Offset)
}

// Binarize thresholds every pixel against the local statistic of its
// blockSize x blockSize neighbourhood minus offset. The threshold is
// clamped to [0, 254], so 255 always stays white and 0 always stays black;
// a pure black and white image is therefore returned unchanged.
func Binarize(gray *image.Gray, blockSize int, method Method, offset float64) (*image.Gray, error) {
	thr, err := Thresholds(gray, blockSize, method, offset)
	if err != nil {
		return nil, err
	}

	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := range h {
		src := gray.Pix[gray.PixOffset(b.Min.X, b.Min.Y+y):]
		dst := out.Pix[y*out.Stride:]
		for x := range w {
			if float64(src[x]) > thr[y*w+x] {
				dst[x] = 255
			}
		}
	}
	return out, nil
}

// Thresholds returns the clamped threshold surface in row-major order.
func Thresholds(gray *image.Gray, blockSize int, method Method, offset float64) ([]float64, error) {
	if gray == nil || gray.Bounds().Empty() {
		return nil, common.NewError(common.KindInvalidImage, stage, errors.New("empty image"))
	}
	p := Params{BlockSize: blockSize, Method: method, Offset: offset}
	if err := p.Validate(); err != nil {
		return nil, common.NewError(common.KindInvalidConfig, stage, err)
	}
	m, _ := ParseMethod(string(method))

	w, h, px := pixels(gray)
	var stat []float64
	switch m {
	case MethodMean:
		stat = boxFilter(px, w, h, blockSize)
	case MethodGaussian:
		stat = gaussianFilter(px, w, h, float64(blockSize-1)/6)
	case MethodMedian:
		stat = medianFilter(px, w, h, blockSize)
	}

	for i, v := range stat {
		stat[i] = min(max(v-offset, 0), 254)
	}
	return stat, nil
}

func pixels(gray *image.Gray) (int, int, []float64) {
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	px := make([]float64, w*h)
	for y := range h {
		row := gray.Pix[gray.PixOffset(b.Min.X, b.Min.Y+y):]
		for x := range w {
			px[y*w+x] = float64(row[x])
		}
	}
	return w, h, px
}
