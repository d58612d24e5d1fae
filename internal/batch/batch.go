// Package batch runs many documents through the pipeline one after another
// and reports the outcomes in text, JSON or CSV.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/MeKo-Tech/flatdoc/internal/pipeline"
)

// ErrNoImages is returned when discovery finds nothing to process.
var ErrNoImages = errors.New("no image files found")

// Runner processes one request. *pipeline.Dispatcher implements it.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// Item is the outcome for one input file. Result may be partial when Err
// is set.
type Item struct {
	Path   string
	Result *pipeline.Result
	Err    error
}

// ProcessBatch discovers the images named by paths and runs them
// sequentially. A failed document is recorded and the batch continues
// unless cfg.FailFast is set.
func ProcessBatch(ctx context.Context, runner Runner, paths []string, cfg *Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	files, err := discover(paths, cfg.Recursive, newSelector(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to discover image files: %w", err)
	}
	if len(files) == 0 {
		return nil, ErrNoImages
	}

	start := time.Now()
	out := &Result{Items: make([]Item, 0, len(files))}
	for i, path := range files {
		if err := ctx.Err(); err != nil {
			out.Duration = time.Since(start)
			return out, err
		}
		res, err := runner.Run(ctx, pipeline.Request{Filename: filepath.Base(path), SourcePath: path})
		out.Items = append(out.Items, Item{Path: path, Result: res, Err: err})
		if err != nil {
			slog.Warn("document failed", "file", path, "index", i, "error", err)
			if cfg.FailFast {
				out.Duration = time.Since(start)
				return out, fmt.Errorf("processing %s: %w", path, err)
			}
			continue
		}
		slog.Debug("document processed", "file", path, "index", i, "output", res.ImageOutputPath)
	}
	out.Duration = time.Since(start)
	return out, nil
}
