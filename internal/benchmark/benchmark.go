// Package benchmark measures per-stage pipeline timings over repeated runs.
package benchmark

import (
	"context"
	"fmt"
	"io"
	"math"
	"runtime"
	"sort"
	"time"

	"github.com/MeKo-Tech/flatdoc/internal/common"
	"github.com/MeKo-Tech/flatdoc/internal/pipeline"
)

// Runner processes one request. *pipeline.Dispatcher implements it.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// MemoryStats holds memory usage statistics.
type MemoryStats struct {
	AllocBytes      uint64 // Currently allocated bytes
	TotalAllocBytes uint64 // Total allocated bytes (cumulative)
	NumGC           uint32 // Number of GC runs
}

// GetMemoryStats returns current memory statistics.
func GetMemoryStats() MemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemoryStats{AllocBytes: m.Alloc, TotalAllocBytes: m.TotalAlloc, NumGC: m.NumGC}
}

// StageStats summarizes the samples of one stage.
type StageStats struct {
	Stage string        `json:"stage"`
	Count int           `json:"count"`
	Min   time.Duration `json:"min_ns"`
	Mean  time.Duration `json:"mean_ns"`
	P95   time.Duration `json:"p95_ns"`
	Max   time.Duration `json:"max_ns"`
}

// Report is the outcome of a benchmark run.
type Report struct {
	Runs       int                 `json:"runs"`
	Failures   map[common.Kind]int `json:"failures,omitempty"`
	Stages     []StageStats        `json:"stages"`
	Preprocess StageStats          `json:"preprocess"`
	Wall       time.Duration       `json:"wall_ns"`
	AllocBytes uint64              `json:"alloc_bytes"`
	NumGC      uint32              `json:"num_gc"`
}

// Run processes every request iterations times and collects the stage
// timings. Failed runs still contribute the stages they completed.
func Run(ctx context.Context, runner Runner, reqs []pipeline.Request, iterations int) (*Report, error) {
	if iterations <= 0 {
		return nil, fmt.Errorf("iterations must be positive, got %d", iterations)
	}
	if len(reqs) == 0 {
		return nil, fmt.Errorf("no requests to benchmark")
	}

	samples := map[string][]time.Duration{}
	var order []string
	var preprocess []time.Duration
	rep := &Report{Failures: map[common.Kind]int{}}

	before := GetMemoryStats()
	start := time.Now()
	for range iterations {
		for _, req := range reqs {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			res, err := runner.Run(ctx, req)
			rep.Runs++
			if err != nil {
				rep.Failures[common.KindOf(err)]++
			}
			if res == nil {
				continue
			}
			for _, st := range res.Stages {
				if _, seen := samples[st.Stage]; !seen {
					order = append(order, st.Stage)
				}
				samples[st.Stage] = append(samples[st.Stage], st.Duration)
			}
			if res.Preprocess > 0 {
				preprocess = append(preprocess, res.Preprocess)
			}
		}
	}
	rep.Wall = time.Since(start)
	after := GetMemoryStats()
	rep.AllocBytes = after.TotalAllocBytes - before.TotalAllocBytes
	rep.NumGC = after.NumGC - before.NumGC

	for _, stage := range order {
		rep.Stages = append(rep.Stages, summarize(stage, samples[stage]))
	}
	rep.Preprocess = summarize("preprocess", preprocess)
	return rep, nil
}

func summarize(stage string, ds []time.Duration) StageStats {
	s := StageStats{Stage: stage, Count: len(ds)}
	if len(ds) == 0 {
		return s
	}
	sorted := append([]time.Duration(nil), ds...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}
	s.Min = sorted[0]
	s.Max = sorted[len(sorted)-1]
	s.Mean = sum / time.Duration(len(sorted))
	idx := int(math.Ceil(0.95*float64(len(sorted)))) - 1
	s.P95 = sorted[max(idx, 0)]
	return s
}

// Print writes a human readable table of rep to w.
func (rep *Report) Print(w io.Writer) {
	_, _ = fmt.Fprintf(w, "Runs: %d  Wall: %v  Allocated: %.1f MB  GC: %d\n",
		rep.Runs, rep.Wall.Round(time.Millisecond), float64(rep.AllocBytes)/(1<<20), rep.NumGC)
	for kind, n := range rep.Failures {
		_, _ = fmt.Fprintf(w, "Failures (%s): %d\n", kind, n)
	}
	_, _ = fmt.Fprintf(w, "%-12s %6s %12s %12s %12s %12s\n", "STAGE", "N", "MIN", "MEAN", "P95", "MAX")
	for _, s := range append(rep.Stages, rep.Preprocess) {
		_, _ = fmt.Fprintf(w, "%-12s %6d %12v %12v %12v %12v\n", s.Stage, s.Count,
			s.Min.Round(time.Microsecond), s.Mean.Round(time.Microsecond),
			s.P95.Round(time.Microsecond), s.Max.Round(time.Microsecond))
	}
}
