package benchmark

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/flatdoc/internal/common"
	"github.com/MeKo-Tech/flatdoc/internal/ocr"
	"github.com/MeKo-Tech/flatdoc/internal/pipeline"
	"github.com/MeKo-Tech/flatdoc/internal/testutil"
)

type scriptedRunner struct {
	n int
}

func (s *scriptedRunner) Run(_ context.Context, req pipeline.Request) (*pipeline.Result, error) {
	s.n++
	res := &pipeline.Result{
		Stages: []common.StageTiming{
			{Stage: "decode", Duration: time.Duration(s.n) * time.Millisecond},
			{Stage: "detect", Duration: 2 * time.Millisecond},
		},
		Preprocess: time.Duration(s.n+2) * time.Millisecond,
	}
	if req.Filename == "bad.png" {
		return res, common.NewError(common.KindNoDocumentFound, "detect", errors.New("none"))
	}
	return res, nil
}

func TestRun_Aggregates(t *testing.T) {
	runner := &scriptedRunner{}
	reqs := []pipeline.Request{{Filename: "a.png"}, {Filename: "bad.png"}}

	rep, err := Run(context.Background(), runner, reqs, 5)
	require.NoError(t, err)
	assert.Equal(t, 10, rep.Runs)
	assert.Equal(t, 5, rep.Failures[common.KindNoDocumentFound])

	require.Len(t, rep.Stages, 2)
	decode := rep.Stages[0]
	assert.Equal(t, "decode", decode.Stage)
	assert.Equal(t, 10, decode.Count)
	assert.Equal(t, time.Millisecond, decode.Min)
	assert.Equal(t, 10*time.Millisecond, decode.Max)
	assert.Equal(t, 5500*time.Microsecond, decode.Mean)
	assert.Equal(t, 10*time.Millisecond, decode.P95)
	assert.Equal(t, 2*time.Millisecond, rep.Stages[1].Mean)
	assert.Equal(t, 10, rep.Preprocess.Count)

	var buf bytes.Buffer
	rep.Print(&buf)
	assert.Contains(t, buf.String(), "decode")
	assert.Contains(t, buf.String(), "NoDocumentFound")
}

func TestRun_InvalidInput(t *testing.T) {
	_, err := Run(context.Background(), &scriptedRunner{}, []pipeline.Request{{Filename: "a"}}, 0)
	assert.Error(t, err)
	_, err = Run(context.Background(), &scriptedRunner{}, nil, 1)
	assert.Error(t, err)
}

func TestRun_RealPipeline(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping pipeline benchmark in short mode")
	}
	dir := t.TempDir()
	img, _ := testutil.GenerateDocument(testutil.DefaultDocumentConfig())
	testutil.WriteImage(t, dir, "doc.png", img)

	cfg := pipeline.DefaultConfig()
	cfg.InputDir = dir
	cfg.OutputDir = filepath.Join(dir, "out")
	engine, err := ocr.NewEngine(ocr.EngineNone)
	require.NoError(t, err)
	d, err := pipeline.NewDispatcher(cfg, engine)
	require.NoError(t, err)

	rep, err := Run(context.Background(), d, []pipeline.Request{{Filename: "doc.png"}}, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Failures[common.KindRecognitionFailure])
	require.NotEmpty(t, rep.Stages)
	assert.Equal(t, 2, rep.Stages[0].Count)
	assert.Equal(t, 2, rep.Preprocess.Count)
}

func TestSummarize_Empty(t *testing.T) {
	s := summarize("x", nil)
	assert.Equal(t, 0, s.Count)
	assert.Zero(t, s.Mean)
}
