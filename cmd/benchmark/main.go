package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/flatdoc/internal/benchmark"
	"github.com/MeKo-Tech/flatdoc/internal/ocr"
	"github.com/MeKo-Tech/flatdoc/internal/pipeline"
	"github.com/MeKo-Tech/flatdoc/internal/testutil"
	"github.com/MeKo-Tech/flatdoc/internal/utils"
)

func main() {
	var (
		inputDir   = flag.String("input", "", "Directory with photos to benchmark (default: synthetic documents)")
		iterations = flag.Int("iterations", 5, "Number of passes over the input")
		engine     = flag.String("engine", ocr.EngineNone, "OCR engine")
		outputFile = flag.String("output", "", "Write the report as JSON to this file")
		verbose    = flag.Bool("verbose", false, "Verbose output")
	)
	flag.Parse()

	fmt.Println("flatdoc pipeline benchmark")
	fmt.Println("==========================")

	work, err := os.MkdirTemp("", "flatdoc-bench-")
	if err != nil {
		log.Fatalf("Failed to create work dir: %v", err)
	}
	defer func() { _ = os.RemoveAll(work) }()

	dir := *inputDir
	if dir == "" {
		dir = filepath.Join(work, "input")
		if err := writeSynthetic(dir); err != nil {
			log.Fatalf("Failed to generate documents: %v", err)
		}
	}

	reqs, err := collect(dir)
	if err != nil {
		log.Fatalf("Failed to list %s: %v", dir, err)
	}
	if *verbose {
		fmt.Printf("Benchmarking %d images from %s\n", len(reqs), dir)
	}

	eng, err := ocr.NewEngine(*engine)
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}
	cfg := pipeline.DefaultConfig()
	cfg.InputDir = dir
	cfg.OutputDir = filepath.Join(work, "output")
	d, err := pipeline.NewDispatcher(cfg, eng)
	if err != nil {
		log.Fatalf("Failed to create pipeline: %v", err)
	}
	defer func() { _ = d.Close() }()

	rep, err := benchmark.Run(context.Background(), d, reqs, *iterations)
	if err != nil {
		log.Fatalf("Benchmark failed: %v", err)
	}
	rep.Print(os.Stdout)

	if *outputFile != "" {
		data, err := json.MarshalIndent(rep, "", "  ")
		if err == nil {
			err = os.WriteFile(*outputFile, data, 0o644)
		}
		if err != nil {
			log.Printf("Failed to save results to file: %v", err)
		} else {
			fmt.Printf("Results saved to: %s\n", *outputFile)
		}
	}
}

func writeSynthetic(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tilted := testutil.DefaultDocumentConfig()
	tilted.Corners = &utils.Quad{
		TopLeft:     utils.Point{X: 160, Y: 120},
		TopRight:    utils.Point{X: 860, Y: 200},
		BottomRight: utils.Point{X: 820, Y: 1280},
		BottomLeft:  utils.Point{X: 100, Y: 1200},
	}
	for name, dc := range map[string]testutil.DocumentConfig{
		"upright.png": testutil.DefaultDocumentConfig(),
		"tilted.png":  tilted,
	} {
		img, _ := testutil.GenerateDocument(dc)
		if err := utils.SaveImage(img, filepath.Join(dir, name)); err != nil {
			return err
		}
	}
	return nil
}

func collect(dir string) ([]pipeline.Request, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var reqs []pipeline.Request
	for _, e := range entries {
		if e.IsDir() || !utils.IsSupportedImage(e.Name()) {
			continue
		}
		reqs = append(reqs, pipeline.Request{Filename: e.Name()})
	}
	return reqs, nil
}
