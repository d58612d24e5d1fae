package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/flatdoc/internal/testutil"
	"github.com/MeKo-Tech/flatdoc/internal/utils"
)

// sample is one generated photo and its ground truth.
type sample struct {
	File     string      `json:"file"`
	Document bool        `json:"document"`
	Corners  *utils.Quad `json:"corners,omitempty"`
	Width    int         `json:"width"`
	Height   int         `json:"height"`
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var (
		outDir  = flag.String("out", "", "output directory (default <project>/testdata/documents)")
		verbose = flag.Bool("v", false, "Verbose output")
		help    = flag.Bool("h", false, "Show help")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Generate synthetic document photos with known page corners.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEXAMPLES:\n")
		fmt.Fprintf(os.Stderr, "  %s                  # Write into testdata/documents\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -out ./input     # Fill a server input directory\n", os.Args[0])
	}
	flag.Parse()

	if *help {
		flag.Usage()
		return
	}

	dir := *outDir
	if dir == "" {
		root, err := testutil.GetProjectRoot()
		if err != nil {
			slog.Error("Failed to find project root", "error", err)
			os.Exit(1)
		}
		dir = filepath.Join(root, "testdata", "documents")
	}

	samples, err := generate(dir, *verbose)
	if err != nil {
		slog.Error("Failed to generate test data", "error", err)
		os.Exit(1)
	}
	if err := writeManifest(filepath.Join(dir, "manifest.json"), samples); err != nil {
		slog.Error("Failed to write manifest", "error", err)
		os.Exit(1)
	}
	slog.Info("Generated test data", "dir", dir, "samples", len(samples))
}

func quad(tl, tr, br, bl utils.Point) *utils.Quad {
	return &utils.Quad{TopLeft: tl, TopRight: tr, BottomRight: br, BottomLeft: bl}
}

func generate(dir string, verbose bool) ([]sample, error) {
	variants := []struct {
		name    string
		corners *utils.Quad
		margin  float64
	}{
		{name: "upright.png", margin: 0.1},
		{name: "wide_margin.png", margin: 0.2},
		{name: "tilted_left.png", corners: quad(
			utils.Point{X: 160, Y: 120}, utils.Point{X: 860, Y: 200},
			utils.Point{X: 820, Y: 1280}, utils.Point{X: 100, Y: 1200})},
		{name: "tilted_right.png", corners: quad(
			utils.Point{X: 120, Y: 210}, utils.Point{X: 840, Y: 130},
			utils.Point{X: 900, Y: 1190}, utils.Point{X: 170, Y: 1270})},
		{name: "keystone.png", corners: quad(
			utils.Point{X: 250, Y: 180}, utils.Point{X: 750, Y: 180},
			utils.Point{X: 900, Y: 1250}, utils.Point{X: 100, Y: 1250})},
	}

	var samples []sample
	for _, v := range variants {
		cfg := testutil.DefaultDocumentConfig()
		cfg.Margin = v.margin
		cfg.Corners = v.corners
		img, q := testutil.GenerateDocument(cfg)
		if err := save(dir, v.name, img); err != nil {
			return nil, err
		}
		if verbose {
			slog.Info("Generated document", "file", v.name, "corners", q.String())
		}
		samples = append(samples, sample{File: v.name, Document: true, Corners: &q, Width: cfg.Width, Height: cfg.Height})
	}

	blank := testutil.Blank(800, 1100, 255)
	if err := save(dir, "blank.png", blank); err != nil {
		return nil, err
	}
	samples = append(samples, sample{File: "blank.png", Width: 800, Height: 1100})
	return samples, nil
}

func save(dir, name string, img image.Image) error {
	path := filepath.Join(dir, name)
	if err := utils.SaveImage(img, path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

func writeManifest(path string, samples []sample) error {
	data, err := json.MarshalIndent(samples, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
