//go:build !tesseract

package ocr

const tesseractBuilt = false

func newTesseractEngine() (Engine, error) {
	return nil, ErrNoBackend
}
