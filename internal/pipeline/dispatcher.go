package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/MeKo-Tech/flatdoc/internal/binarize"
	"github.com/MeKo-Tech/flatdoc/internal/common"
	"github.com/MeKo-Tech/flatdoc/internal/detector"
	"github.com/MeKo-Tech/flatdoc/internal/edges"
	"github.com/MeKo-Tech/flatdoc/internal/ocr"
	"github.com/MeKo-Tech/flatdoc/internal/rectify"
	"github.com/MeKo-Tech/flatdoc/internal/utils"
)

// Stage names as they appear in timings, logs and classified errors.
const (
	StageRequest   = "request"
	StageDecode    = "decode"
	StageResize    = "resize"
	StageGrayscale = "grayscale"
	StageBlur      = "blur"
	StageEdge      = "edge"
	StageAutoEdge  = "autoedge"
	StageDetect    = "detect"
	StageRectify   = "rectify"
	StageBinarize  = "binarize"
	StageWrite     = "write"
	StageRecognize = "ocr"
	StageAssemble  = "assemble"
)

var (
	ErrMissingFilename = errors.New("filename is required")
	ErrUnsafeFilename  = errors.New("filename must not leave the input directory")
)

// Dispatcher runs requests through the stage sequence. It keeps no state
// between runs; the caller serializes calls to Run.
type Dispatcher struct {
	cfg       Config
	engine    ocr.Engine
	rectifier *rectify.Rectifier
}

// NewDispatcher validates cfg and creates a dispatcher that recognizes text
// with engine.
func NewDispatcher(cfg Config, engine ocr.Engine) (*Dispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, common.NewError(common.KindInvalidConfig, "", err)
	}
	if engine == nil {
		return nil, common.NewError(common.KindInvalidConfig, "", errors.New("recognition engine is required"))
	}
	return &Dispatcher{
		cfg:       cfg,
		engine:    engine,
		rectifier: rectify.New(rectify.Config{DebugDir: cfg.DebugDir}),
	}, nil
}

// Config returns the dispatcher's configuration.
func (d *Dispatcher) Config() Config { return d.cfg }

// Close releases the recognition engine.
func (d *Dispatcher) Close() error {
	return d.engine.Close()
}

// ResolveRequest fills in the request defaults: a generated ID, the source
// path under the input directory and the per-document output directory.
func (d *Dispatcher) ResolveRequest(req Request) (Request, error) {
	name := strings.TrimSpace(req.Filename)
	if name == "" {
		return req, common.NewError(common.KindInvalidRequest, StageRequest, ErrMissingFilename)
	}
	if !filepath.IsLocal(name) {
		return req, common.NewError(common.KindInvalidRequest, StageRequest,
			fmt.Errorf("%w: %q", ErrUnsafeFilename, name))
	}
	req.Filename = name
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.SourcePath == "" {
		req.SourcePath = filepath.Join(d.cfg.InputDir, name)
	}
	if req.OutputDir == "" {
		req.OutputDir = filepath.Join(d.cfg.OutputDir, docStem(name))
	}
	return req, nil
}

// docStem is the filename without its extension, directories kept, so
// nested inputs with the same base name get separate output directories.
func docStem(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}

// docName is the file name without directory and extension.
func docName(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// run holds the intermediate buffers of one request.
type run struct {
	req  Request
	name string
	ext  string
	log  *slog.Logger
	sw   common.Stopwatch
	res  *Result

	src     image.Image
	resized *image.NRGBA
	gray    *image.Gray
	blurred *image.Gray
	auto    *image.Gray
	warped  *image.Gray
}

// Run processes one request. The first failing stage aborts the run and its
// classified error is returned together with the partial result. Run never
// reuses state from an earlier request.
func (d *Dispatcher) Run(ctx context.Context, req Request) (*Result, error) {
	req, err := d.ResolveRequest(req)
	if err != nil {
		return &Result{RequestID: req.ID, Filename: req.Filename, PID: os.Getpid()}, err
	}

	r := &run{
		req:  req,
		name: docName(req.Filename),
		ext:  utils.EncodableExt(filepath.Ext(req.Filename)),
		log:  slog.With("request_id", req.ID, "filename", req.Filename),
		res: &Result{
			RequestID:  req.ID,
			Filename:   req.Filename,
			SourcePath: req.SourcePath,
			OutputDir:  req.OutputDir,
			PID:        os.Getpid(),
		},
	}
	r.log.Info("processing request", "source", req.SourcePath, "output_dir", req.OutputDir)

	pre := common.NewNamedTimer("preprocess")
	err = d.preprocess(r)
	r.res.Preprocess = pre.Stop()
	r.res.Stages = r.sw.Stages()
	if err != nil {
		d.logFailure(r, err)
		return r.res, err
	}

	rec := common.NewNamedTimer("recognition")
	err = d.recognize(ctx, r)
	r.res.Recognition = rec.Stop()
	r.res.Stages = r.sw.Stages()
	if err != nil {
		d.logFailure(r, err)
		return r.res, err
	}

	if d.cfg.Verbosity.Timing {
		r.log.Info("request timing",
			"preprocess", r.res.Preprocess,
			"recognition", r.res.Recognition,
			"longest_stage", r.sw.Longest())
	}
	r.log.Info("request done", "output", r.res.ImageOutputPath, "chars", len(r.res.Text))
	return r.res, nil
}

func (d *Dispatcher) logFailure(r *run, err error) {
	r.log.Warn("request failed",
		"stage", common.StageOf(err),
		"kind", string(common.KindOf(err)),
		"error", err)
}

// classify wraps err with kind unless a stage already classified it.
func classify(kind common.Kind, stage string, err error) error {
	if err == nil {
		return nil
	}
	var ce *common.Error
	if errors.As(err, &ce) {
		return err
	}
	return common.NewError(kind, stage, err)
}

// preprocess covers decode through binarize plus persisting the final image.
func (d *Dispatcher) preprocess(r *run) error {
	p := d.cfg.Edges
	steps := []struct {
		stage string
		fn    func() error
	}{
		{StageDecode, func() error {
			img, meta, err := utils.LoadImage(r.req.SourcePath)
			if err != nil {
				return classify(common.KindInvalidImage, StageDecode, err)
			}
			r.src = img
			d.debugPreprocess(r, StageDecode, "format", meta.Format, "width", meta.Width, "height", meta.Height)
			return nil
		}},
		{StageResize, func() error {
			img, err := edges.Resize(r.src, p.ResizeHeight)
			if err != nil {
				return err
			}
			r.resized = img
			d.artifact(r, fmt.Sprintf("-resized-h%dpx", p.ResizeHeight), img)
			return nil
		}},
		{StageGrayscale, func() error {
			r.gray = edges.Grayscale(r.resized)
			d.artifact(r, "-grayscaled", r.gray)
			return nil
		}},
		{StageBlur, func() error {
			img, err := edges.GaussianBlur(r.gray, p.BlurKernel)
			if err != nil {
				return err
			}
			r.blurred = img
			d.artifact(r, fmt.Sprintf("-gaussBlur-ksize%d", p.BlurKernel), img)
			return nil
		}},
		{StageEdge, func() error {
			img, err := edges.Canny(r.blurred, p.CannyLower, p.CannyUpper)
			if err != nil {
				return err
			}
			d.artifact(r, fmt.Sprintf("-edged-lower%d-upper%d", p.CannyLower, p.CannyUpper), img)
			return nil
		}},
		{StageAutoEdge, func() error {
			img, median, lower, upper := edges.AutoCanny(r.blurred, p.AutoSigma)
			r.auto = img
			r.res.Median, r.res.AutoLower, r.res.AutoUpper = median, lower, upper
			d.debugPreprocess(r, StageAutoEdge, "median", median, "lower", lower, "upper", upper)
			d.artifact(r, fmt.Sprintf("-autoedged-low%d-up%d-sigma%d", lower, upper, int(p.AutoSigma*100)), img)
			return nil
		}},
		{StageDetect, func() error {
			quad, det, err := detector.DetectQuad(r.auto, d.cfg.Detector)
			if err != nil {
				return err
			}
			r.res.Quad, r.res.Detection = quad, det
			d.debugPreprocess(r, StageDetect,
				"contours", det.ContoursFound, "candidate", det.Candidate,
				"area", det.Area, "epsilon", det.Epsilon, "quad", quad.String())
			if d.cfg.StepByStep {
				d.artifact(r, "-cnt", d.overlay(r.resized, quad))
			}
			return nil
		}},
		{StageRectify, func() error {
			img, params, err := d.rectifier.Apply(r.resized, r.res.Quad)
			if err != nil {
				return err
			}
			r.warped, r.res.Rectification = img, params
			d.artifact(r, "-warped", img)
			return nil
		}},
		{StageBinarize, func() error {
			b := d.cfg.Binarize
			img, err := binarize.Binarize(r.warped, b.BlockSize, b.Method, b.Offset)
			if err != nil {
				return err
			}
			r.res.Binary = img
			d.artifact(r, fmt.Sprintf("-threshold-bsize%d-method_%s-offset%s", b.BlockSize, b.Method, formatOffset(b.Offset)), img)
			return nil
		}},
		{StageWrite, func() error {
			path := filepath.Join(r.req.OutputDir, r.name+"-done"+r.ext)
			if err := utils.SaveImage(r.res.Binary, path); err != nil {
				return common.NewError(common.KindIOFailure, StageWrite, err)
			}
			r.res.ImageOutputPath = path
			d.debugWrite(r, "final image", path)
			return nil
		}},
	}

	for _, s := range steps {
		err := r.sw.Time(s.stage, s.fn)
		if err != nil {
			return classify(common.KindInternal, s.stage, err)
		}
		if d.cfg.Verbosity.Timing {
			r.log.Debug("stage timing", "stage", s.stage, "duration", r.sw.Last().Duration)
		}
	}
	return nil
}

// recognize covers text recognition through writing the result JSON.
func (d *Dispatcher) recognize(ctx context.Context, r *run) error {
	err := r.sw.Time(StageRecognize, func() error {
		text, err := ocr.Recognize(ctx, d.engine, r.res.Binary, d.cfg.OCR, d.cfg.OCRTimeout)
		if err != nil {
			return err
		}
		if d.cfg.NormalizeText {
			text = ocr.NormalizeText(text)
		}
		r.res.Text = text
		if d.cfg.Verbosity.OCR {
			r.log.Debug("recognized text", "stage", StageRecognize, "chars", len(text), "lines", strings.Count(text, "\n")+1)
		}
		return nil
	})
	if err != nil {
		return classify(common.KindRecognitionFailure, StageRecognize, err)
	}

	err = r.sw.Time(StageAssemble, func() error {
		path := filepath.Join(r.req.OutputDir, r.name+".json")
		if err := writeJSON(path, r.res.Output()); err != nil {
			return common.NewError(common.KindIOFailure, StageAssemble, err)
		}
		r.res.ResultPath = path
		d.debugWrite(r, "result json", path)
		return nil
	})
	return classify(common.KindInternal, StageAssemble, err)
}

func (d *Dispatcher) debugPreprocess(r *run, stage string, args ...any) {
	if !d.cfg.Verbosity.Preprocess {
		return
	}
	r.log.Debug("stage", append([]any{"stage", stage}, args...)...)
}

func (d *Dispatcher) debugWrite(r *run, what, path string) {
	if d.cfg.Verbosity.Write {
		r.log.Debug("wrote "+what, "stage", StageWrite, "path", path)
	}
}
