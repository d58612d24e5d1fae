// Package pipeline runs one document request through every stage: decode,
// edge map, quadrilateral detection, rectification, binarization and text
// recognition, and persists the results.
package pipeline

import (
	"errors"
	"fmt"
	"image/color"
	"time"

	"github.com/MeKo-Tech/flatdoc/internal/binarize"
	"github.com/MeKo-Tech/flatdoc/internal/detector"
	"github.com/MeKo-Tech/flatdoc/internal/edges"
	"github.com/MeKo-Tech/flatdoc/internal/ocr"
)

// Config holds everything a run needs. It is built once and only read.
type Config struct {
	InputDir  string
	OutputDir string

	Edges    edges.Params
	Detector detector.Params
	Binarize binarize.Params

	OCR           ocr.Options
	OCRTimeout    time.Duration
	NormalizeText bool

	StepByStep bool // write one image per stage
	Overlay    OverlayStyle
	Verbosity  Verbosity
	DebugDir   string // rectification comparison dumps
}

// OverlayStyle is how the detected quad is drawn on the -cnt artifact.
type OverlayStyle struct {
	Color     color.NRGBA
	Thickness int
}

// Verbosity gates debug events per area.
type Verbosity struct {
	Preprocess bool
	Write      bool
	OCR        bool
	Timing     bool
}

// DefaultConfig returns a pipeline config with component defaults.
func DefaultConfig() Config {
	return Config{
		InputDir:      "./input",
		OutputDir:     "./output",
		Edges:         edges.DefaultParams(),
		Detector:      detector.DefaultParams(),
		Binarize:      binarize.DefaultParams(),
		OCR:           ocr.Options{Language: "eng", EngineMode: "3", PageSegMode: "3"},
		OCRTimeout:    60 * time.Second,
		NormalizeText: true,
		Overlay:       OverlayStyle{Color: color.NRGBA{G: 255, A: 255}, Thickness: 2},
		Verbosity:     Verbosity{Timing: true},
	}
}

// Validate checks the stage parameters up front so a bad value fails at
// startup instead of on the first request.
func (c Config) Validate() error {
	if c.OutputDir == "" {
		return errors.New("output directory must not be empty")
	}
	e := c.Edges
	switch {
	case e.ResizeHeight <= 0:
		return fmt.Errorf("%w: %d", edges.ErrInvalidHeight, e.ResizeHeight)
	case e.BlurKernel < 1 || e.BlurKernel%2 == 0:
		return fmt.Errorf("%w: got %d", edges.ErrInvalidKernel, e.BlurKernel)
	case e.CannyLower < 0 || e.CannyLower > e.CannyUpper:
		return fmt.Errorf("%w: lower=%d upper=%d", edges.ErrInvalidThresholds, e.CannyLower, e.CannyUpper)
	case e.AutoSigma < 0 || e.AutoSigma > 1:
		return fmt.Errorf("auto canny sigma %.2f outside [0,1]", e.AutoSigma)
	}
	if err := c.Detector.Validate(); err != nil {
		return err
	}
	if err := c.Binarize.Validate(); err != nil {
		return err
	}
	if c.OCRTimeout <= 0 {
		return fmt.Errorf("recognition timeout must be positive, got %v", c.OCRTimeout)
	}
	return nil
}

// Builder constructs a Dispatcher with fluent configuration.
type Builder struct {
	cfg Config
}

// NewBuilder creates a new builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

// WithInputDir sets where request filenames are resolved.
func (b *Builder) WithInputDir(dir string) *Builder {
	if dir != "" {
		b.cfg.InputDir = dir
	}
	return b
}

// WithOutputDir sets the root of the per-document output directories.
func (b *Builder) WithOutputDir(dir string) *Builder {
	if dir != "" {
		b.cfg.OutputDir = dir
	}
	return b
}

// WithStepByStep toggles per-stage artifacts.
func (b *Builder) WithStepByStep(on bool) *Builder {
	b.cfg.StepByStep = on
	return b
}

// WithOCRTimeout bounds the recognition call.
func (b *Builder) WithOCRTimeout(d time.Duration) *Builder {
	if d > 0 {
		b.cfg.OCRTimeout = d
	}
	return b
}

// WithLanguage sets the recognition language.
func (b *Builder) WithLanguage(lang string) *Builder {
	if lang != "" {
		b.cfg.OCR.Language = lang
	}
	return b
}

// WithDebugDir enables rectification comparison dumps.
func (b *Builder) WithDebugDir(dir string) *Builder {
	b.cfg.DebugDir = dir
	return b
}

// Config returns the current configuration.
func (b *Builder) Config() Config { return b.cfg }

// Build validates the configuration and creates the dispatcher.
func (b *Builder) Build(engine ocr.Engine) (*Dispatcher, error) {
	return NewDispatcher(b.cfg, engine)
}
