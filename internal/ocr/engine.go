// Package ocr is the boundary to the text recognition engine. It defines
// the Engine interface the pipeline talks to, the available backends and
// the timeout wrapper around a recognition call.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/MeKo-Tech/flatdoc/internal/common"
)

const stage = "ocr"

// Backend names accepted by NewEngine.
const (
	EngineTesseract = "tesseract"
	EngineNone      = "none"
)

var (
	// ErrNoBackend is returned by the "none" engine and by the tesseract
	// engine when the binary was built without the tesseract tag.
	ErrNoBackend = errors.New("no recognition backend available")
	// ErrUnknownEngine is returned by NewEngine for unsupported names.
	ErrUnknownEngine = errors.New("unknown recognition engine")
)

// Engines lists the backend names accepted by NewEngine.
func Engines() []string {
	return []string{EngineTesseract, EngineNone}
}

// Available lists the backends compiled into this binary.
func Available() []string {
	if tesseractBuilt {
		return Engines()
	}
	return []string{EngineNone}
}

// Options carries per-call recognition settings.
type Options struct {
	Language    string // e.g. "eng" or "eng+deu"
	EngineMode  string // --oem
	PageSegMode string // --psm
	UserWords   string // path to a user word list
	ConfigFile  string // path to an engine config file
	DataDir     string // traineddata directory; empty uses the library default
}

// Engine recognizes text in a binarized document image.
type Engine interface {
	Recognize(ctx context.Context, img image.Image, opts Options) (string, error)
	Close() error
}

// NewEngine creates the named backend.
func NewEngine(name string) (Engine, error) {
	switch name {
	case EngineTesseract:
		return newTesseractEngine()
	case EngineNone:
		return noneEngine{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, name)
	}
}

type noneEngine struct{}

func (noneEngine) Recognize(context.Context, image.Image, Options) (string, error) {
	return "", ErrNoBackend
}

func (noneEngine) Close() error { return nil }

type recognition struct {
	text string
	err  error
}

// Recognize runs engine on img with a deadline. The engine call runs in its
// own goroutine; when ctx is cancelled or timeout expires first, Recognize
// returns immediately and the engine result is discarded. Every failure is
// classified as a recognition failure.
func Recognize(ctx context.Context, engine Engine, img image.Image, opts Options, timeout time.Duration) (string, error) {
	if engine == nil {
		return "", common.NewError(common.KindRecognitionFailure, stage, ErrNoBackend)
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	done := make(chan recognition, 1)
	go func() {
		text, err := engine.Recognize(ctx, img, opts)
		done <- recognition{text: text, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return "", common.NewError(common.KindRecognitionFailure, stage, r.err)
		}
		return r.text, nil
	case <-ctx.Done():
		return "", common.NewError(common.KindRecognitionFailure, stage,
			fmt.Errorf("recognition aborted: %w", ctx.Err()))
	}
}
