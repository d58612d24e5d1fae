package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/MeKo-Tech/flatdoc/internal/common"
	"github.com/MeKo-Tech/flatdoc/internal/pipeline"
)

// ErrLoopClosed is returned by Submit after Close.
var ErrLoopClosed = errors.New("request loop is closed")

// Runner processes one request. *pipeline.Dispatcher implements it.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

type job struct {
	ctx   context.Context
	req   pipeline.Request
	reply chan Reply
}

// Loop serializes every run through a single worker goroutine. Jobs reach
// the worker on an unbuffered channel, so a new job is only taken once the
// previous reply has been handed back.
type Loop struct {
	runner    Runner
	jobs      chan job
	quit      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	observers []func(Reply, *pipeline.Result)
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithObserver registers fn to be called by the worker after every run,
// before the reply is handed back.
func WithObserver(fn func(Reply, *pipeline.Result)) LoopOption {
	return func(l *Loop) { l.observers = append(l.observers, fn) }
}

// NewLoop starts the worker.
func NewLoop(runner Runner, opts ...LoopOption) *Loop {
	l := &Loop{
		runner: runner,
		jobs:   make(chan job),
		quit:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.wg.Add(1)
	go l.work()
	return l
}

// Submit hands req to the worker and waits for its reply. It fails only if
// the loop is closed or ctx ends before the worker accepted the job; once
// accepted, the reply is always delivered.
func (l *Loop) Submit(ctx context.Context, req pipeline.Request) (Reply, error) {
	j := job{ctx: context.WithoutCancel(ctx), req: req, reply: make(chan Reply, 1)}
	select {
	case <-l.quit:
		return Reply{}, ErrLoopClosed
	default:
	}
	select {
	case l.jobs <- j:
	case <-l.quit:
		return Reply{}, ErrLoopClosed
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	}
	return <-j.reply, nil
}

// Close stops accepting jobs and waits for the in-flight run to finish.
func (l *Loop) Close() {
	l.closeOnce.Do(func() { close(l.quit) })
	l.wg.Wait()
}

func (l *Loop) work() {
	defer l.wg.Done()
	for {
		select {
		case j := <-l.jobs:
			j.reply <- l.process(j)
		case <-l.quit:
			return
		}
	}
}

// process runs one job and turns any outcome, including a panic, into a reply.
func (l *Loop) process(j job) (reply Reply) {
	busyRequests.Set(1)
	defer busyRequests.Set(0)

	start := time.Now()
	var res *pipeline.Result
	var err error
	func() {
		defer func() {
			if p := recover(); p != nil {
				slog.Error("panic while processing request",
					"request_id", j.req.ID, "filename", j.req.Filename,
					"panic", p, "stack", string(debug.Stack()))
				err = common.NewError(common.KindInternal, "", fmt.Errorf("panic: %v", p))
			}
		}()
		res, err = l.runner.Run(j.ctx, j.req)
	}()

	reply = NewReply(j.req, res, err)
	observeRun(reply, res, time.Since(start))
	for _, fn := range l.observers {
		fn(reply, res)
	}
	return reply
}
