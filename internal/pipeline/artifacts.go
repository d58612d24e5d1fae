package pipeline

import (
	"encoding/json"
	"image"
	"os"
	"path/filepath"
	"strconv"

	"github.com/MeKo-Tech/flatdoc/internal/utils"
)

// artifact writes one intermediate image when step-by-step output is on.
// A failed write is logged and never aborts the run.
func (d *Dispatcher) artifact(r *run, descriptor string, img image.Image) {
	if !d.cfg.StepByStep {
		return
	}
	path := filepath.Join(r.req.OutputDir, r.name+descriptor+r.ext)
	if err := utils.SaveImage(img, path); err != nil {
		r.log.Warn("failed to write stage image", "path", path, "error", err)
		return
	}
	r.res.Artifacts = append(r.res.Artifacts, path)
	d.debugWrite(r, "stage image", path)
}

// overlay draws the quad on a copy of the resized image.
func (d *Dispatcher) overlay(img image.Image, q utils.Quad) *image.NRGBA {
	canvas := utils.ToNRGBA(img)
	thickness := max(d.cfg.Overlay.Thickness, 1)
	utils.DrawPolygon(canvas, q.Points(), d.cfg.Overlay.Color, thickness)
	return canvas
}

// formatOffset renders the threshold offset without a trailing ".0".
func formatOffset(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}

// ReadOutput loads a per-document result JSON written by Run.
func ReadOutput(path string) (OCROutput, error) {
	var out OCROutput
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from a completed run
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(data, &out)
	return out, err
}
