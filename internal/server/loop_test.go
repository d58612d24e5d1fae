package server

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/flatdoc/internal/common"
	"github.com/MeKo-Tech/flatdoc/internal/pipeline"
)

type stubRunner struct {
	active  atomic.Int32
	maxSeen atomic.Int32
	delay   time.Duration
	fn      func(req pipeline.Request) (*pipeline.Result, error)
}

func (s *stubRunner) Run(_ context.Context, req pipeline.Request) (*pipeline.Result, error) {
	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		m := s.maxSeen.Load()
		if n <= m || s.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	time.Sleep(s.delay)
	if s.fn != nil {
		return s.fn(req)
	}
	return &pipeline.Result{
		RequestID:       req.ID,
		Text:            "text for " + req.Filename,
		ImageOutputPath: "/out/" + req.Filename,
		Preprocess:      120 * time.Millisecond,
		Recognition:     340 * time.Millisecond,
	}, nil
}

func TestLoop_SerializesRuns(t *testing.T) {
	runner := &stubRunner{delay: 5 * time.Millisecond}
	loop := NewLoop(runner)
	defer loop.Close()

	var wg sync.WaitGroup
	replies := make([]Reply, 8)
	for i := range replies {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := loop.Submit(context.Background(), pipeline.Request{ID: string(rune('a' + i)), Filename: "f.png"})
			assert.NoError(t, err)
			replies[i] = r
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), runner.maxSeen.Load())
	for i, r := range replies {
		assert.Equal(t, StatusOK, r.Status)
		assert.Equal(t, string(rune('a'+i)), r.RequestID, "reply %d must belong to its own request", i)
	}
}

func TestLoop_ReplyFields(t *testing.T) {
	loop := NewLoop(&stubRunner{})
	defer loop.Close()

	r, err := loop.Submit(context.Background(), pipeline.Request{ID: "req-1", Filename: "scan.png"})
	require.NoError(t, err)
	assert.Equal(t, "req-1", r.RequestID)
	assert.Equal(t, StatusOK, r.Status)
	assert.Equal(t, "/out/scan.png", r.ImgOutputPath)
	assert.InDelta(t, 0.12, r.PreprocessExecTime, 1e-9)
	assert.InDelta(t, 0.34, r.OCRExecTime, 1e-9)
	require.NotNil(t, r.OCROutput)
	assert.Equal(t, "text for scan.png", r.OCROutput.ResStr)
	assert.Equal(t, "/out/scan.png", r.OCROutput.SrcImgPath)
	assert.Nil(t, r.Error)
	assert.Positive(t, r.PID)
}

func TestLoop_RecoversPanic(t *testing.T) {
	calls := 0
	runner := &stubRunner{fn: func(req pipeline.Request) (*pipeline.Result, error) {
		calls++
		if calls == 1 {
			panic("boom")
		}
		return &pipeline.Result{RequestID: req.ID}, nil
	}}
	loop := NewLoop(runner)
	defer loop.Close()

	r, err := loop.Submit(context.Background(), pipeline.Request{ID: "p"})
	require.NoError(t, err)
	assert.Equal(t, StatusError, r.Status)
	require.NotNil(t, r.Error)
	assert.Equal(t, common.KindInternal, r.Error.Kind)
	assert.Contains(t, r.Error.Message, "boom")

	r, err = loop.Submit(context.Background(), pipeline.Request{ID: "q"})
	require.NoError(t, err)
	assert.Equal(t, StatusOK, r.Status)
}

func TestLoop_ClassifiedFailure(t *testing.T) {
	runner := &stubRunner{fn: func(req pipeline.Request) (*pipeline.Result, error) {
		res := &pipeline.Result{RequestID: req.ID, Preprocess: time.Second}
		return res, common.NewError(common.KindNoDocumentFound, "detect", errors.New("no quad"))
	}}
	loop := NewLoop(runner)
	defer loop.Close()

	r, err := loop.Submit(context.Background(), pipeline.Request{ID: "x"})
	require.NoError(t, err)
	assert.Equal(t, StatusError, r.Status)
	assert.Nil(t, r.OCROutput)
	require.NotNil(t, r.Error)
	assert.Equal(t, common.KindNoDocumentFound, r.Error.Kind)
	assert.Equal(t, "detect", r.Error.Stage)
	assert.InDelta(t, 1.0, r.PreprocessExecTime, 1e-9)
}

func TestLoop_Observer(t *testing.T) {
	var seen []Reply
	loop := NewLoop(&stubRunner{}, WithObserver(func(r Reply, res *pipeline.Result) {
		seen = append(seen, r)
		assert.NotNil(t, res)
	}))

	_, err := loop.Submit(context.Background(), pipeline.Request{ID: "o1"})
	require.NoError(t, err)
	_, err = loop.Submit(context.Background(), pipeline.Request{ID: "o2"})
	require.NoError(t, err)
	loop.Close()

	require.Len(t, seen, 2)
	assert.Equal(t, "o1", seen[0].RequestID)
	assert.Equal(t, "o2", seen[1].RequestID)
}

func TestLoop_Close(t *testing.T) {
	loop := NewLoop(&stubRunner{})
	loop.Close()
	loop.Close()

	_, err := loop.Submit(context.Background(), pipeline.Request{ID: "late"})
	assert.ErrorIs(t, err, ErrLoopClosed)
}

func TestLoop_CloseWaitsForInFlight(t *testing.T) {
	runner := &stubRunner{delay: 50 * time.Millisecond}
	loop := NewLoop(runner)

	got := make(chan Reply, 1)
	go func() {
		r, _ := loop.Submit(context.Background(), pipeline.Request{ID: "slow"})
		got <- r
	}()
	require.Eventually(t, func() bool { return runner.active.Load() == 1 }, time.Second, time.Millisecond)

	loop.Close()
	select {
	case r := <-got:
		assert.Equal(t, "slow", r.RequestID)
		assert.Equal(t, StatusOK, r.Status)
	case <-time.After(time.Second):
		t.Fatal("in-flight request was not answered")
	}
}

func TestLoop_SubmitCanceledBeforeAccept(t *testing.T) {
	runner := &stubRunner{delay: 100 * time.Millisecond}
	loop := NewLoop(runner)
	defer loop.Close()

	go func() { _, _ = loop.Submit(context.Background(), pipeline.Request{ID: "busy"}) }()
	require.Eventually(t, func() bool { return runner.active.Load() == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := loop.Submit(ctx, pipeline.Request{ID: "waiting"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewReply_NilResult(t *testing.T) {
	err := common.NewError(common.KindInvalidRequest, pipeline.StageRequest, pipeline.ErrMissingFilename)
	r := NewReply(pipeline.Request{ID: "id"}, nil, err)
	assert.Equal(t, "id", r.RequestID)
	assert.Equal(t, StatusError, r.Status)
	require.NotNil(t, r.Error)
	assert.Equal(t, common.KindInvalidRequest, r.Error.Kind)
	assert.Equal(t, pipeline.StageRequest, r.Error.Stage)
	assert.Zero(t, r.PreprocessExecTime)
}
