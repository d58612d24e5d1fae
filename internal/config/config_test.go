package config

import (
	"strings"
	"testing"
	"time"

	"github.com/MeKo-Tech/flatdoc/internal/binarize"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() = %v", err)
	}
	if cfg.Preprocess.GaussianBlur.KernelSize%2 == 0 {
		t.Errorf("default blur kernel must be odd, got %d", cfg.Preprocess.GaussianBlur.KernelSize)
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "log level"},
		{"empty output dir", func(c *Config) { c.Path.OutputDir = "" }, "output_dir"},
		{"resize height", func(c *Config) { c.Preprocess.Resize.Height = 0 }, "resize.height"},
		{"even blur kernel", func(c *Config) { c.Preprocess.GaussianBlur.KernelSize = 4 }, "kernel_size"},
		{"canny order", func(c *Config) { c.Preprocess.CannyEdge.Lower = 300 }, "canny_edge"},
		{"sigma range", func(c *Config) { c.Preprocess.AutoCannyEdge.Sigma = 1.5 }, "sigma"},
		{"find mode", func(c *Config) { c.Preprocess.Contour.FindMode = "external" }, "find_mode"},
		{"find method", func(c *Config) { c.Preprocess.Contour.FindMethod = "simple" }, "find_method"},
		{"epsilon", func(c *Config) { c.Preprocess.Contour.EpsilonCoeff = 0 }, "epsilon_coeff"},
		{"candidates", func(c *Config) { c.Preprocess.Contour.MaxCandidates = 0 }, "max_candidates"},
		{"color", func(c *Config) { c.Preprocess.Contour.Color.G = 256 }, "color.g"},
		{"even block size", func(c *Config) { c.Preprocess.Threshold.BlockSize = 10 }, "blocksize"},
		{"tiny block size", func(c *Config) { c.Preprocess.Threshold.BlockSize = 1 }, "blocksize"},
		{"threshold method", func(c *Config) { c.Preprocess.Threshold.Method = "otsu" }, "threshold.method"},
		{"ocr engine", func(c *Config) { c.OCR.Engine = "cloud" }, "ocr.engine"},
		{"ocr timeout", func(c *Config) { c.OCR.TimeoutSec = 0 }, "timeout_sec"},
		{"port", func(c *Config) { c.Server.Port = 70000 }, "port"},
		{"upload size", func(c *Config) { c.Server.MaxUploadMB = 0 }, "max_upload_mb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() returned nil, want error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %q, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestToPipelineConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Preprocess.Resize.Height = 640
	cfg.Preprocess.Threshold.Method = "mean"
	cfg.Preprocess.Contour.Color = ColorConfig{R: 10, G: 20, B: 30}
	cfg.OCR.TimeoutSec = 7
	cfg.OCR.UserWords = "invoice total"
	cfg.Output.StepByStep = true
	cfg.Verbosity.Write = true

	pc := cfg.ToPipelineConfig()
	if pc.Edges.ResizeHeight != 640 {
		t.Errorf("ResizeHeight = %d, want 640", pc.Edges.ResizeHeight)
	}
	if pc.Binarize.Method != binarize.MethodMean {
		t.Errorf("Binarize.Method = %q, want mean", pc.Binarize.Method)
	}
	if pc.Overlay.Color.R != 10 || pc.Overlay.Color.B != 30 || pc.Overlay.Color.A != 255 {
		t.Errorf("Overlay.Color = %+v", pc.Overlay.Color)
	}
	if pc.OCRTimeout != 7*time.Second {
		t.Errorf("OCRTimeout = %v, want 7s", pc.OCRTimeout)
	}
	if pc.OCR.UserWords != "invoice total" || pc.OCR.Language != "eng" {
		t.Errorf("OCR options = %+v", pc.OCR)
	}
	if !pc.StepByStep || !pc.Verbosity.Write || !pc.Verbosity.Timing {
		t.Errorf("flags not carried over: %+v %+v", pc.StepByStep, pc.Verbosity)
	}
	if pc.OutputDir != cfg.Path.OutputDir {
		t.Errorf("OutputDir = %q", pc.OutputDir)
	}
}
