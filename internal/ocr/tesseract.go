//go:build tesseract

package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"strconv"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

const tesseractBuilt = true

// tesseractEngine drives libtesseract through gosseract. A single client is
// reused across calls; calls are serialized by a gate. A call that outlives
// its deadline keeps the gate until libtesseract returns, since the C call
// cannot be interrupted; later calls time out while waiting.
type tesseractEngine struct {
	gate   gate
	client *gosseract.Client
}

func newTesseractEngine() (Engine, error) {
	return &tesseractEngine{gate: newGate(), client: gosseract.NewClient()}, nil
}

func (e *tesseractEngine) Recognize(ctx context.Context, img image.Image, opts Options) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode image: %w", err)
	}
	if err := e.gate.enter(ctx); err != nil {
		return "", err
	}
	defer e.gate.leave()

	if err := e.configure(opts); err != nil {
		return "", err
	}
	if err := e.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	text, err := e.client.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return text, nil
}

func (e *tesseractEngine) configure(opts Options) error {
	if opts.DataDir != "" {
		if err := e.client.SetTessdataPrefix(opts.DataDir); err != nil {
			return fmt.Errorf("set tessdata prefix: %w", err)
		}
	}
	if opts.Language != "" {
		if err := e.client.SetLanguage(strings.Split(opts.Language, "+")...); err != nil {
			return fmt.Errorf("set languages: %w", err)
		}
	}
	if opts.PageSegMode != "" {
		psm, err := strconv.Atoi(opts.PageSegMode)
		if err != nil {
			return fmt.Errorf("invalid page segmentation mode %q: %w", opts.PageSegMode, err)
		}
		if err := e.client.SetPageSegMode(gosseract.PageSegMode(psm)); err != nil {
			return fmt.Errorf("set page segmentation mode: %w", err)
		}
	}
	if opts.EngineMode != "" && opts.EngineMode != "3" {
		// gosseract initializes with the default engine mode only
		slog.Debug("ignoring tesseract engine mode", "oem", opts.EngineMode)
	}
	if opts.UserWords != "" {
		if err := e.client.SetVariable("user_words_file", opts.UserWords); err != nil {
			return fmt.Errorf("set user words: %w", err)
		}
	}
	if opts.ConfigFile != "" {
		if err := e.client.SetConfigFile(opts.ConfigFile); err != nil {
			return fmt.Errorf("set config file: %w", err)
		}
	}
	return nil
}

func (e *tesseractEngine) Close() error {
	if err := e.gate.enter(context.Background()); err != nil {
		return err
	}
	defer e.gate.leave()
	return e.client.Close()
}
