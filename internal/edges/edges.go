// Package edges turns a photograph into the edge maps used to find the
// document boundary: resize, grayscale, Gaussian blur and Canny edges with
// fixed or median-derived thresholds.
package edges

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"

	"github.com/MeKo-Tech/flatdoc/internal/common"
	"github.com/disintegration/imaging"
)

var (
	// ErrInvalidKernel is returned for blur kernels that are even or < 1.
	ErrInvalidKernel = errors.New("blur kernel size must be odd and >= 1")
	// ErrInvalidThresholds is returned when lower > upper or either is negative.
	ErrInvalidThresholds = errors.New("canny thresholds must satisfy 0 <= lower <= upper")
	// ErrInvalidHeight is returned for a non-positive resize target.
	ErrInvalidHeight = errors.New("resize height must be positive")
	// ErrEmptyImage is returned for a source with a zero dimension.
	ErrEmptyImage = errors.New("image has zero width or height")
)

// Params holds the edge-map stage parameters.
type Params struct {
	ResizeHeight int     // target height in pixels; width follows the aspect ratio
	BlurKernel   int     // odd Gaussian kernel size
	CannyLower   int     // fixed lower hysteresis threshold (diagnostic map)
	CannyUpper   int     // fixed upper hysteresis threshold (diagnostic map)
	AutoSigma    float64 // spread around the median for the adaptive map
}

// DefaultParams returns the defaults used by the document pipeline.
func DefaultParams() Params {
	return Params{
		ResizeHeight: 500,
		BlurKernel:   5,
		CannyLower:   75,
		CannyUpper:   200,
		AutoSigma:    0.33,
	}
}

// EdgeMap holds every intermediate image of the edge stage. Each field is a
// separate buffer.
type EdgeMap struct {
	Resized   *image.NRGBA
	Gray      *image.Gray
	Blurred   *image.Gray
	Edges     *image.Gray // fixed thresholds, diagnostics only
	AutoEdges *image.Gray // median-adaptive thresholds, fed to contour search
	Median    float64
	AutoLower int
	AutoUpper int
}

// Build runs resize, grayscale, blur and both edge detectors. Failures carry
// a common.Kind and the stage name.
func Build(img image.Image, p Params) (*EdgeMap, error) {
	resized, err := Resize(img, p.ResizeHeight)
	if err != nil {
		return nil, err
	}
	gray := Grayscale(resized)

	blurred, err := GaussianBlur(gray, p.BlurKernel)
	if err != nil {
		return nil, err
	}

	fixed, err := Canny(blurred, p.CannyLower, p.CannyUpper)
	if err != nil {
		return nil, err
	}

	auto, median, lower, upper := AutoCanny(blurred, p.AutoSigma)
	slog.Debug("Edge map built",
		"width", resized.Bounds().Dx(), "height", resized.Bounds().Dy(),
		"median", median, "auto_lower", lower, "auto_upper", upper)

	return &EdgeMap{
		Resized:   resized,
		Gray:      gray,
		Blurred:   blurred,
		Edges:     fixed,
		AutoEdges: auto,
		Median:    median,
		AutoLower: lower,
		AutoUpper: upper,
	}, nil
}

// Resize scales img so its height equals height, keeping the aspect ratio.
func Resize(img image.Image, height int) (*image.NRGBA, error) {
	if img == nil {
		return nil, common.NewError(common.KindInvalidImage, "resize", ErrEmptyImage)
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, common.NewError(common.KindInvalidImage, "resize",
			fmt.Errorf("%w: %dx%d", ErrEmptyImage, b.Dx(), b.Dy()))
	}
	if height <= 0 {
		return nil, common.NewError(common.KindInvalidConfig, "resize",
			fmt.Errorf("%w: %d", ErrInvalidHeight, height))
	}

	width := int(math.Round(float64(b.Dx()) * float64(height) / float64(b.Dy())))
	if width < 1 {
		width = 1
	}
	if width == b.Dx() && height == b.Dy() {
		return imaging.Clone(img), nil
	}
	return imaging.Resize(img, width, height, imaging.Lanczos), nil
}

// Grayscale converts img to 8-bit luma (0.299 R + 0.587 G + 0.114 B).
func Grayscale(img image.Image) *image.Gray {
	return toGray(imaging.Grayscale(img))
}

// GaussianBlur blurs a grayscale image with a square kernel of odd size k.
// Sigma is derived from k the same way common vision libraries do when no
// explicit sigma is given.
func GaussianBlur(gray *image.Gray, k int) (*image.Gray, error) {
	if k < 1 || k%2 == 0 {
		return nil, common.NewError(common.KindInvalidConfig, "blur",
			fmt.Errorf("%w: got %d", ErrInvalidKernel, k))
	}
	if k == 1 {
		return cloneGray(gray), nil
	}
	return toGray(imaging.Blur(gray, KernelSigma(k))), nil
}

// KernelSigma returns the Gaussian sigma implied by kernel size k.
func KernelSigma(k int) float64 {
	return 0.3*((float64(k)-1)*0.5-1) + 0.8
}

// toGray copies the red channel of an already-gray NRGBA image.
func toGray(src *image.NRGBA) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := range b.Dy() {
		row := src.Pix[y*src.Stride:]
		out := dst.Pix[y*dst.Stride:]
		for x := range b.Dx() {
			out[x] = row[x*4]
		}
	}
	return dst
}

func cloneGray(src *image.Gray) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := range b.Dy() {
		copy(dst.Pix[y*dst.Stride:y*dst.Stride+b.Dx()], src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):])
	}
	return dst
}
