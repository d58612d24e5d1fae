package utils

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImageProcessingError represents errors that can occur while decoding,
// encoding or transforming images.
type ImageProcessingError struct {
	Operation string
	Err       error
}

func (e *ImageProcessingError) Error() string {
	return fmt.Sprintf("image processing error in %s: %v", e.Operation, e.Err)
}

func (e *ImageProcessingError) Unwrap() error {
	return e.Err
}

// ErrEmptyImage is returned for images with a zero dimension.
var ErrEmptyImage = errors.New("image has zero width or height")

// SupportedImageExtensions lists supported file extensions for loading.
var SupportedImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".tif", ".tiff", ".webp"}

// IsSupportedImage reports whether the path has a supported image extension.
func IsSupportedImage(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedImageExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// ImageMetadata captures lightweight file and pixel information.
type ImageMetadata struct {
	Path      string
	Format    string
	SizeBytes int64
	Width     int
	Height    int
}

// LoadImage opens and decodes an image file, returning the image and metadata.
func LoadImage(path string) (image.Image, ImageMetadata, error) {
	if path == "" {
		err := &ImageProcessingError{Operation: "load", Err: errors.New("empty path")}
		return nil, ImageMetadata{}, err
	}
	if !IsSupportedImage(path) {
		err := &ImageProcessingError{Operation: "load", Err: fmt.Errorf("unsupported format: %s", filepath.Ext(path))}
		return nil, ImageMetadata{}, err
	}

	f, err := os.Open(path) //nolint:gosec // G304: image paths come from configured directories
	if err != nil {
		return nil, ImageMetadata{}, &ImageProcessingError{Operation: "load", Err: err}
	}
	defer func() { _ = f.Close() }()

	fi, err := f.Stat()
	if err != nil {
		return nil, ImageMetadata{}, &ImageProcessingError{Operation: "load", Err: err}
	}

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, ImageMetadata{}, &ImageProcessingError{Operation: "decode", Err: err}
	}

	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, ImageMetadata{}, &ImageProcessingError{Operation: "decode", Err: ErrEmptyImage}
	}

	meta := ImageMetadata{
		Path:      path,
		Format:    format,
		SizeBytes: fi.Size(),
		Width:     b.Dx(),
		Height:    b.Dy(),
	}
	return img, meta, nil
}

// SaveImage encodes img to path, choosing the encoder from the extension.
// Parent directories are created as needed.
func SaveImage(img image.Image, path string) error {
	if img == nil {
		return &ImageProcessingError{Operation: "encode", Err: errors.New("nil image")}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return &ImageProcessingError{Operation: "encode", Err: err}
	}

	f, err := os.Create(path) //nolint:gosec // G304: output path is built from the configured output dir
	if err != nil {
		return &ImageProcessingError{Operation: "encode", Err: err}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		err = png.Encode(f, img)
	case ".jpg", ".jpeg":
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: 95})
	case ".bmp":
		err = bmp.Encode(f, img)
	case ".tif", ".tiff":
		err = tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		err = fmt.Errorf("no encoder for %q", filepath.Ext(path))
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return &ImageProcessingError{Operation: "encode", Err: err}
	}
	return nil
}

// EncodableExt returns ext if images can be written with it, or ".png".
func EncodableExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff":
		return ext
	default:
		return ".png"
	}
}
