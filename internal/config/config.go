// Package config loads the process-wide flatdoc configuration. A Config is
// built once at startup, validated, and afterwards only read.
package config

import (
	"errors"
	"fmt"
	"image/color"
	"time"

	"github.com/MeKo-Tech/flatdoc/internal/binarize"
	"github.com/MeKo-Tech/flatdoc/internal/detector"
	"github.com/MeKo-Tech/flatdoc/internal/edges"
	"github.com/MeKo-Tech/flatdoc/internal/models"
	"github.com/MeKo-Tech/flatdoc/internal/ocr"
	"github.com/MeKo-Tech/flatdoc/internal/pipeline"
)

// Config represents the complete configuration for flatdoc. It covers all
// commands (rectify, batch, serve) and is populated from configuration files,
// environment variables and command-line flags.
type Config struct {
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Path       PathConfig       `mapstructure:"path" yaml:"path" json:"path"`
	Preprocess PreprocessConfig `mapstructure:"preprocess" yaml:"preprocess" json:"preprocess"`
	OCR        OCRConfig        `mapstructure:"ocr" yaml:"ocr" json:"ocr"`
	Output     OutputConfig     `mapstructure:"output" yaml:"output" json:"output"`
	Verbosity  VerbosityConfig  `mapstructure:"verbosity" yaml:"verbosity" json:"verbosity"`
	Server     ServerConfig     `mapstructure:"server" yaml:"server" json:"server"`
	Journal    JournalConfig    `mapstructure:"journal" yaml:"journal" json:"journal"`
}

// PathConfig locates request inputs and per-document outputs.
type PathConfig struct {
	InputDir  string `mapstructure:"input_dir" yaml:"input_dir" json:"input_dir"`
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir" json:"output_dir"`
}

// PreprocessConfig holds the parameters of every image stage.
type PreprocessConfig struct {
	Resize        ResizeConfig    `mapstructure:"resize" yaml:"resize" json:"resize"`
	GaussianBlur  BlurConfig      `mapstructure:"gaussian_blur" yaml:"gaussian_blur" json:"gaussian_blur"`
	CannyEdge     CannyConfig     `mapstructure:"canny_edge" yaml:"canny_edge" json:"canny_edge"`
	AutoCannyEdge AutoCannyConfig `mapstructure:"auto_canny_edge" yaml:"auto_canny_edge" json:"auto_canny_edge"`
	Contour       ContourConfig   `mapstructure:"contour" yaml:"contour" json:"contour"`
	Threshold     ThresholdConfig `mapstructure:"threshold" yaml:"threshold" json:"threshold"`
}

type ResizeConfig struct {
	Height int `mapstructure:"height" yaml:"height" json:"height"`
}

type BlurConfig struct {
	KernelSize int `mapstructure:"kernel_size" yaml:"kernel_size" json:"kernel_size"`
}

type CannyConfig struct {
	Lower int `mapstructure:"lower" yaml:"lower" json:"lower"`
	Upper int `mapstructure:"upper" yaml:"upper" json:"upper"`
}

type AutoCannyConfig struct {
	Sigma float64 `mapstructure:"sigma" yaml:"sigma" json:"sigma"`
}

// ContourConfig controls contour search and the diagnostic overlay.
type ContourConfig struct {
	FindMode        string      `mapstructure:"find_mode" yaml:"find_mode" json:"find_mode"`
	FindMethod      string      `mapstructure:"find_method" yaml:"find_method" json:"find_method"`
	EpsilonCoeff    float64     `mapstructure:"epsilon_coeff" yaml:"epsilon_coeff" json:"epsilon_coeff"`
	ClosedContour   bool        `mapstructure:"closed_contour" yaml:"closed_contour" json:"closed_contour"`
	MaxCandidates   int         `mapstructure:"max_candidates" yaml:"max_candidates" json:"max_candidates"`
	CloseIterations int         `mapstructure:"close_iterations" yaml:"close_iterations" json:"close_iterations"`
	LineThickness   int         `mapstructure:"line_thickness" yaml:"line_thickness" json:"line_thickness"`
	Color           ColorConfig `mapstructure:"color" yaml:"color" json:"color"`
}

type ColorConfig struct {
	R int `mapstructure:"r" yaml:"r" json:"r"`
	G int `mapstructure:"g" yaml:"g" json:"g"`
	B int `mapstructure:"b" yaml:"b" json:"b"`
}

type ThresholdConfig struct {
	BlockSize int     `mapstructure:"blocksize" yaml:"blocksize" json:"blocksize"`
	Method    string  `mapstructure:"method" yaml:"method" json:"method"`
	Offset    float64 `mapstructure:"offset" yaml:"offset" json:"offset"`
}

// OCRConfig selects the recognition backend and its options.
type OCRConfig struct {
	Engine      string `mapstructure:"engine" yaml:"engine" json:"engine"`
	Lang        string `mapstructure:"lang" yaml:"lang" json:"lang"`
	EngineMode  string `mapstructure:"ocr_engine_modes" yaml:"ocr_engine_modes" json:"ocr_engine_modes"`
	PageSegMode string `mapstructure:"page_segmentation_method" yaml:"page_segmentation_method" json:"page_segmentation_method"`
	UserWords   string `mapstructure:"user_words" yaml:"user_words" json:"user_words"`
	ConfigFile  string `mapstructure:"configfile" yaml:"configfile" json:"configfile"`
	TessdataDir string `mapstructure:"tessdata_dir" yaml:"tessdata_dir" json:"tessdata_dir"`
	TimeoutSec  int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	Normalize   bool   `mapstructure:"normalize" yaml:"normalize" json:"normalize"`
}

type OutputConfig struct {
	StepByStep bool   `mapstructure:"step_by_step" yaml:"step_by_step" json:"step_by_step"`
	DebugDir   string `mapstructure:"debug_dir" yaml:"debug_dir" json:"debug_dir"`
}

// VerbosityConfig enables debug events per area.
type VerbosityConfig struct {
	Preprocess bool `mapstructure:"preprocess" yaml:"preprocess" json:"preprocess"`
	Write      bool `mapstructure:"write" yaml:"write" json:"write"`
	OCR        bool `mapstructure:"ocr" yaml:"ocr" json:"ocr"`
	Timing     bool `mapstructure:"timing" yaml:"timing" json:"timing"`
}

// ServerConfig contains request server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	ReadTimeout     int    `mapstructure:"read_timeout" yaml:"read_timeout" json:"read_timeout"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// JournalConfig points at the request history database. An empty path
// disables the journal.
type JournalConfig struct {
	Path string `mapstructure:"path" yaml:"path" json:"path"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() Config {
	ep := edges.DefaultParams()
	dp := detector.DefaultParams()
	bp := binarize.DefaultParams()
	return Config{
		LogLevel: "info",
		Verbose:  false,
		Path: PathConfig{
			InputDir:  "./input",
			OutputDir: "./output",
		},
		Preprocess: PreprocessConfig{
			Resize:        ResizeConfig{Height: ep.ResizeHeight},
			GaussianBlur:  BlurConfig{KernelSize: ep.BlurKernel},
			CannyEdge:     CannyConfig{Lower: ep.CannyLower, Upper: ep.CannyUpper},
			AutoCannyEdge: AutoCannyConfig{Sigma: ep.AutoSigma},
			Contour: ContourConfig{
				FindMode:        "list",
				FindMethod:      "none",
				EpsilonCoeff:    dp.EpsilonCoeff,
				ClosedContour:   dp.Closed,
				MaxCandidates:   dp.MaxCandidates,
				CloseIterations: dp.CloseIterations,
				LineThickness:   2,
				Color:           ColorConfig{R: 0, G: 255, B: 0},
			},
			Threshold: ThresholdConfig{
				BlockSize: bp.BlockSize,
				Method:    string(bp.Method),
				Offset:    bp.Offset,
			},
		},
		OCR: OCRConfig{
			Engine:      ocr.EngineTesseract,
			Lang:        "eng",
			EngineMode:  "3",
			PageSegMode: "3",
			TimeoutSec:  60,
			Normalize:   true,
		},
		Verbosity: VerbosityConfig{Timing: true},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            5555,
			CORSOrigin:      "*",
			MaxUploadMB:     20,
			ReadTimeout:     120,
			ShutdownTimeout: 10,
		},
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %v)", c.LogLevel, validLogLevels)
	}

	if c.Path.OutputDir == "" {
		return errors.New("path.output_dir must not be empty")
	}

	p := c.Preprocess
	if p.Resize.Height <= 0 {
		return fmt.Errorf("invalid preprocess.resize.height: %d (must be positive)", p.Resize.Height)
	}
	if p.GaussianBlur.KernelSize < 1 || p.GaussianBlur.KernelSize%2 == 0 {
		return fmt.Errorf("invalid preprocess.gaussian_blur.kernel_size: %d (must be odd and >= 1)", p.GaussianBlur.KernelSize)
	}
	if p.CannyEdge.Lower < 0 || p.CannyEdge.Lower > p.CannyEdge.Upper {
		return fmt.Errorf("invalid preprocess.canny_edge: lower=%d upper=%d (need 0 <= lower <= upper)",
			p.CannyEdge.Lower, p.CannyEdge.Upper)
	}
	if err := validateUnit(p.AutoCannyEdge.Sigma, "preprocess.auto_canny_edge.sigma"); err != nil {
		return err
	}
	if err := validateContour(p.Contour); err != nil {
		return err
	}
	if p.Threshold.BlockSize < 3 || p.Threshold.BlockSize%2 == 0 {
		return fmt.Errorf("invalid preprocess.threshold.blocksize: %d (must be odd and >= 3)", p.Threshold.BlockSize)
	}
	if _, err := binarize.ParseMethod(p.Threshold.Method); err != nil {
		return fmt.Errorf("invalid preprocess.threshold.method: %w", err)
	}

	if !contains(ocr.Engines(), c.OCR.Engine) {
		return fmt.Errorf("invalid ocr.engine: %s (must be one of: %v)", c.OCR.Engine, ocr.Engines())
	}
	if c.OCR.TimeoutSec <= 0 {
		return fmt.Errorf("invalid ocr.timeout_sec: %d (must be positive)", c.OCR.TimeoutSec)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid server.max_upload_mb: %d (must be positive)", c.Server.MaxUploadMB)
	}

	return nil
}

func validateContour(c ContourConfig) error {
	if c.FindMode != "list" {
		return fmt.Errorf("unsupported preprocess.contour.find_mode: %q (only \"list\")", c.FindMode)
	}
	if c.FindMethod != "none" {
		return fmt.Errorf("unsupported preprocess.contour.find_method: %q (only \"none\")", c.FindMethod)
	}
	if c.EpsilonCoeff <= 0 || c.EpsilonCoeff >= 1 {
		return fmt.Errorf("invalid preprocess.contour.epsilon_coeff: %.4f (must be in (0, 1))", c.EpsilonCoeff)
	}
	if c.MaxCandidates < 1 {
		return fmt.Errorf("invalid preprocess.contour.max_candidates: %d (must be >= 1)", c.MaxCandidates)
	}
	if c.CloseIterations < 0 {
		return fmt.Errorf("invalid preprocess.contour.close_iterations: %d", c.CloseIterations)
	}
	for name, v := range map[string]int{"r": c.Color.R, "g": c.Color.G, "b": c.Color.B} {
		if v < 0 || v > 255 {
			return fmt.Errorf("invalid preprocess.contour.color.%s: %d (must be 0..255)", name, v)
		}
	}
	return nil
}

// ToPipelineConfig converts the centralized configuration to pipeline.Config.
func (c *Config) ToPipelineConfig() pipeline.Config {
	p := c.Preprocess
	return pipeline.Config{
		InputDir:  c.Path.InputDir,
		OutputDir: c.Path.OutputDir,
		Edges: edges.Params{
			ResizeHeight: p.Resize.Height,
			BlurKernel:   p.GaussianBlur.KernelSize,
			CannyLower:   p.CannyEdge.Lower,
			CannyUpper:   p.CannyEdge.Upper,
			AutoSigma:    p.AutoCannyEdge.Sigma,
		},
		Detector: detector.Params{
			EpsilonCoeff:    p.Contour.EpsilonCoeff,
			Closed:          p.Contour.ClosedContour,
			MaxCandidates:   p.Contour.MaxCandidates,
			CloseIterations: p.Contour.CloseIterations,
		},
		Binarize: binarize.Params{
			BlockSize: p.Threshold.BlockSize,
			Method:    binarize.Method(p.Threshold.Method),
			Offset:    p.Threshold.Offset,
		},
		OCR: ocr.Options{
			Language:    c.OCR.Lang,
			EngineMode:  c.OCR.EngineMode,
			PageSegMode: c.OCR.PageSegMode,
			UserWords:   c.OCR.UserWords,
			ConfigFile:  c.OCR.ConfigFile,
			DataDir:     models.GetDataDir(c.OCR.TessdataDir),
		},
		OCRTimeout:    time.Duration(c.OCR.TimeoutSec) * time.Second,
		NormalizeText: c.OCR.Normalize,
		StepByStep:    c.Output.StepByStep,
		DebugDir:      c.Output.DebugDir,
		Overlay: pipeline.OverlayStyle{
			Color:     color.NRGBA{R: uint8(p.Contour.Color.R), G: uint8(p.Contour.Color.G), B: uint8(p.Contour.Color.B), A: 255},
			Thickness: p.Contour.LineThickness,
		},
		Verbosity: pipeline.Verbosity{
			Preprocess: c.Verbosity.Preprocess,
			Write:      c.Verbosity.Write,
			OCR:        c.Verbosity.OCR,
			Timing:     c.Verbosity.Timing,
		},
	}
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

func validateUnit(value float64, name string) error {
	if value < 0.0 || value > 1.0 {
		return fmt.Errorf("invalid %s: %.2f (must be between 0.0 and 1.0)", name, value)
	}
	return nil
}
