package pipeline

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/flatdoc/internal/common"
	"github.com/MeKo-Tech/flatdoc/internal/ocr"
	"github.com/MeKo-Tech/flatdoc/internal/testutil"
	"github.com/MeKo-Tech/flatdoc/internal/utils"
)

type fakeEngine struct {
	mu     sync.Mutex
	text   string
	err    error
	delay  time.Duration
	calls  int
	closed bool
}

func (f *fakeEngine) Recognize(_ context.Context, img image.Image, _ ocr.Options) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if img == nil {
		return "", errors.New("nil image")
	}
	return f.text, f.err
}

func (f *fakeEngine) Close() error {
	f.closed = true
	return nil
}

// newTestDispatcher creates a dispatcher over fresh input and output dirs.
func newTestDispatcher(t *testing.T, engine ocr.Engine, mutate func(*Config)) (*Dispatcher, string) {
	t.Helper()
	root := t.TempDir()
	cfg := DefaultConfig()
	cfg.InputDir = filepath.Join(root, "input")
	cfg.OutputDir = filepath.Join(root, "output")
	if mutate != nil {
		mutate(&cfg)
	}
	d, err := NewDispatcher(cfg, engine)
	require.NoError(t, err)
	return d, cfg.InputDir
}

func writeDocument(t *testing.T, dir, name string) utils.Quad {
	t.Helper()
	img, q := testutil.GenerateDocument(testutil.DefaultDocumentConfig())
	testutil.WriteImage(t, dir, name, img)
	return q
}

func TestRun_SyntheticDocument(t *testing.T) {
	engine := &fakeEngine{text: "  Total   due: 42.00 \n"}
	d, in := newTestDispatcher(t, engine, nil)
	page := writeDocument(t, in, "scan.png")

	res, err := d.Run(context.Background(), Request{Filename: "scan.png"})
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.NotEmpty(t, res.RequestID)
	assert.Equal(t, os.Getpid(), res.PID)
	assert.Equal(t, "Total due: 42.00", res.Text)

	// Corners are reported in resized coordinates.
	scale := 500.0 / 1400.0
	want := page.Scale(scale, scale)
	for i, got := range res.Quad.Points() {
		exp := want.Points()[i]
		assert.InDelta(t, exp.X, got.X, 5, "corner %d x", i)
		assert.InDelta(t, exp.Y, got.Y, 5, "corner %d y", i)
	}

	// The rectified page keeps the page's aspect ratio.
	pageAspect := utils.Distance(page.TopLeft, page.TopRight) / utils.Distance(page.TopLeft, page.BottomLeft)
	outAspect := float64(res.Rectification.Width) / float64(res.Rectification.Height)
	assert.InDelta(t, pageAspect, outAspect, 0.03)
	require.NotNil(t, res.Binary)
	assert.Equal(t, res.Rectification.Width, res.Binary.Bounds().Dx())

	b := res.Binary.Bounds()
	interior := image.Rect(b.Dx()/10, b.Dy()/10, b.Dx()*9/10, b.Dy()*9/10)
	assert.Greater(t, testutil.LightFraction(res.Binary, interior), 0.95)

	// Final outputs.
	outDir := filepath.Join(d.Config().OutputDir, "scan")
	assert.Equal(t, filepath.Join(outDir, "scan-done.png"), res.ImageOutputPath)
	assert.True(t, testutil.FileExists(res.ImageOutputPath))
	out, err := ReadOutput(filepath.Join(outDir, "scan.json"))
	require.NoError(t, err)
	assert.Equal(t, OCROutput{ResStr: "Total due: 42.00", SrcImgPath: res.ImageOutputPath}, out)
	assert.Empty(t, res.Artifacts)
}

func TestRun_PerspectiveSkewedPage(t *testing.T) {
	d, in := newTestDispatcher(t, &fakeEngine{text: "skewed"}, nil)
	cfg := testutil.DefaultDocumentConfig()
	cfg.Corners = &utils.Quad{
		TopLeft:     utils.Point{X: 180, Y: 160},
		TopRight:    utils.Point{X: 860, Y: 240},
		BottomLeft:  utils.Point{X: 90, Y: 1250},
		BottomRight: utils.Point{X: 900, Y: 1180},
	}
	img, page := testutil.GenerateDocument(cfg)
	testutil.WriteImage(t, in, "skewed.png", img)

	res, err := d.Run(context.Background(), Request{Filename: "skewed.png"})
	require.NoError(t, err)

	scale := 500.0 / float64(cfg.Height)
	want := page.Scale(scale, scale)
	for i, got := range res.Quad.Points() {
		exp := want.Points()[i]
		assert.InDelta(t, exp.X, got.X, 3, "corner %d x", i)
		assert.InDelta(t, exp.Y, got.Y, 3, "corner %d y", i)
	}
	assert.Greater(t, res.Detection.Area, 0.0)

	// The rectified page is upright: its interior is paper, not background.
	require.NotNil(t, res.Binary)
	b := res.Binary.Bounds()
	interior := image.Rect(b.Dx()/10, b.Dy()/10, b.Dx()*9/10, b.Dy()*9/10)
	assert.Greater(t, testutil.LightFraction(res.Binary, interior), 0.95)
	assert.Greater(t, res.Rectification.Deform, 0.0)
}

func TestRun_PreprocessSpanCoversStages(t *testing.T) {
	d, in := newTestDispatcher(t, &fakeEngine{text: "x"}, nil)
	writeDocument(t, in, "page.png")

	res, err := d.Run(context.Background(), Request{Filename: "page.png"})
	require.NoError(t, err)

	preStages := []string{
		StageDecode, StageResize, StageGrayscale, StageBlur, StageEdge,
		StageAutoEdge, StageDetect, StageRectify, StageBinarize, StageWrite,
	}
	var sum time.Duration
	for _, s := range preStages {
		dur := res.StageDuration(s)
		assert.GreaterOrEqual(t, res.Preprocess, dur, "stage %s", s)
		sum += dur
	}
	assert.GreaterOrEqual(t, res.Preprocess, sum)
	assert.GreaterOrEqual(t, res.Recognition, res.StageDuration(StageRecognize))
	assert.Len(t, res.Stages, len(preStages)+2)
}

func TestRun_StepByStepArtifacts(t *testing.T) {
	d, in := newTestDispatcher(t, &fakeEngine{text: "x"}, func(c *Config) { c.StepByStep = true })
	writeDocument(t, in, "doc.png")

	res, err := d.Run(context.Background(), Request{Filename: "doc.png"})
	require.NoError(t, err)

	outDir := filepath.Join(d.Config().OutputDir, "doc")
	for _, name := range []string{
		"doc-resized-h500px.png",
		"doc-grayscaled.png",
		"doc-gaussBlur-ksize5.png",
		"doc-edged-lower75-upper200.png",
		"doc-cnt.png",
		"doc-warped.png",
		"doc-threshold-bsize11-method_gaussian-offset10.png",
		"doc-done.png",
		"doc.json",
	} {
		assert.True(t, testutil.FileExists(filepath.Join(outDir, name)), name)
	}
	matches, err := filepath.Glob(filepath.Join(outDir, "doc-autoedged-low*-up*-sigma33.png"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
	assert.Len(t, res.Artifacts, 8)
}

func TestRun_BlankImageHasNoDocument(t *testing.T) {
	engine := &fakeEngine{text: "x"}
	d, in := newTestDispatcher(t, engine, nil)
	testutil.WriteImage(t, in, "blank.png", testutil.Blank(600, 800, 255))

	res, err := d.Run(context.Background(), Request{Filename: "blank.png", ID: "req-1"})
	require.Error(t, err)
	assert.Equal(t, common.KindNoDocumentFound, common.KindOf(err))
	assert.Equal(t, StageDetect, common.StageOf(err))
	assert.Equal(t, "req-1", res.RequestID)
	assert.Zero(t, engine.calls)
	assert.Empty(t, res.ImageOutputPath)
}

func TestRun_ErrorClassification(t *testing.T) {
	t.Run("missing source", func(t *testing.T) {
		d, _ := newTestDispatcher(t, &fakeEngine{}, nil)
		_, err := d.Run(context.Background(), Request{Filename: "nope.png"})
		assert.Equal(t, common.KindInvalidImage, common.KindOf(err))
		assert.Equal(t, StageDecode, common.StageOf(err))
	})

	t.Run("unsafe filename", func(t *testing.T) {
		d, _ := newTestDispatcher(t, &fakeEngine{}, nil)
		for _, name := range []string{"", "  ", "../etc/passwd", "/abs/scan.png"} {
			_, err := d.Run(context.Background(), Request{Filename: name})
			assert.Equal(t, common.KindInvalidRequest, common.KindOf(err), name)
		}
	})

	t.Run("recognition failure", func(t *testing.T) {
		d, in := newTestDispatcher(t, &fakeEngine{err: errors.New("tesseract died")}, nil)
		writeDocument(t, in, "scan.png")
		res, err := d.Run(context.Background(), Request{Filename: "scan.png"})
		assert.Equal(t, common.KindRecognitionFailure, common.KindOf(err))
		// The final image is part of preprocessing and already exists.
		assert.True(t, testutil.FileExists(res.ImageOutputPath))
		assert.Empty(t, res.ResultPath)
	})

	t.Run("recognition timeout", func(t *testing.T) {
		d, in := newTestDispatcher(t, &fakeEngine{text: "late", delay: 300 * time.Millisecond},
			func(c *Config) { c.OCRTimeout = 10 * time.Millisecond })
		writeDocument(t, in, "scan.png")
		_, err := d.Run(context.Background(), Request{Filename: "scan.png"})
		assert.Equal(t, common.KindRecognitionFailure, common.KindOf(err))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("unwritable output", func(t *testing.T) {
		d, in := newTestDispatcher(t, &fakeEngine{text: "x"}, nil)
		writeDocument(t, in, "scan.png")
		blocker := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

		_, err := d.Run(context.Background(), Request{Filename: "scan.png", OutputDir: filepath.Join(blocker, "out")})
		assert.Equal(t, common.KindIOFailure, common.KindOf(err))
		assert.Equal(t, StageWrite, common.StageOf(err))
	})
}

func TestRun_IndependentOutputDirectories(t *testing.T) {
	d, in := newTestDispatcher(t, &fakeEngine{text: "x"}, nil)
	writeDocument(t, in, "first.png")
	writeDocument(t, in, "second.jpg")

	a, err := d.Run(context.Background(), Request{Filename: "first.png"})
	require.NoError(t, err)
	b, err := d.Run(context.Background(), Request{Filename: "second.jpg"})
	require.NoError(t, err)

	assert.NotEqual(t, a.RequestID, b.RequestID)
	assert.NotEqual(t, filepath.Dir(a.ImageOutputPath), filepath.Dir(b.ImageOutputPath))
	assert.Equal(t, ".jpg", filepath.Ext(b.ImageOutputPath))

	entries, err := os.ReadDir(filepath.Dir(a.ImageOutputPath))
	require.NoError(t, err)
	assert.Len(t, entries, 2) // first-done.png and first.json
}

func TestRun_NestedNamesDoNotShareOutput(t *testing.T) {
	d, in := newTestDispatcher(t, &fakeEngine{text: "x"}, nil)
	writeDocument(t, in, filepath.Join("a", "doc.png"))
	writeDocument(t, in, filepath.Join("b", "doc.png"))

	a, err := d.Run(context.Background(), Request{Filename: "a/doc.png"})
	require.NoError(t, err)
	b, err := d.Run(context.Background(), Request{Filename: "b/doc.png"})
	require.NoError(t, err)

	out := d.Config().OutputDir
	assert.Equal(t, filepath.Join(out, "a", "doc"), a.OutputDir)
	assert.Equal(t, filepath.Join(out, "b", "doc"), b.OutputDir)
	assert.Equal(t, filepath.Join(out, "a", "doc", "doc-done.png"), a.ImageOutputPath)
	assert.Equal(t, filepath.Join(out, "b", "doc", "doc-done.png"), b.ImageOutputPath)
	assert.True(t, testutil.FileExists(a.ImageOutputPath))
	assert.True(t, testutil.FileExists(filepath.Join(out, "a", "doc", "doc.json")))
	assert.True(t, testutil.FileExists(filepath.Join(out, "b", "doc", "doc.json")))
}

func TestNewDispatcher_Validation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Binarize.BlockSize = 4
	_, err := NewDispatcher(cfg, &fakeEngine{})
	assert.Equal(t, common.KindInvalidConfig, common.KindOf(err))

	_, err = NewDispatcher(DefaultConfig(), nil)
	assert.Equal(t, common.KindInvalidConfig, common.KindOf(err))

	cfg = DefaultConfig()
	cfg.OCRTimeout = 0
	assert.Error(t, cfg.Validate())
}

func TestBuilder(t *testing.T) {
	engine := &fakeEngine{}
	d, err := NewBuilder().
		WithInputDir("in").
		WithOutputDir("out").
		WithStepByStep(true).
		WithOCRTimeout(5 * time.Second).
		WithLanguage("deu").
		WithDebugDir("").
		Build(engine)
	require.NoError(t, err)

	cfg := d.Config()
	assert.Equal(t, "in", cfg.InputDir)
	assert.Equal(t, "out", cfg.OutputDir)
	assert.True(t, cfg.StepByStep)
	assert.Equal(t, 5*time.Second, cfg.OCRTimeout)
	assert.Equal(t, "deu", cfg.OCR.Language)

	req, err := d.ResolveRequest(Request{Filename: "sub/scan.tiff"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("in", "sub", "scan.tiff"), req.SourcePath)
	assert.Equal(t, filepath.Join("out", "scan"), req.OutputDir)
	assert.NotEmpty(t, req.ID)

	require.NoError(t, d.Close())
	assert.True(t, engine.closed)
	assert.Equal(t, "10", formatOffset(10))
	assert.Equal(t, "2.5", formatOffset(2.5))
}
