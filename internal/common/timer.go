// Package common provides shared utilities: timing and classified errors.
package common

import (
	"fmt"
	"time"
)

// Timer measures one span with the monotonic clock and an optional name.
type Timer struct {
	start    time.Time
	name     string
	duration time.Duration
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// NewNamedTimer creates a new timer with the given name.
func NewNamedTimer(name string) *Timer {
	return &Timer{
		name:  name,
		start: time.Now(),
	}
}

// Stop stops the timer and returns the elapsed duration.
func (t *Timer) Stop() time.Duration {
	t.duration = time.Since(t.start)
	return t.duration
}

// Duration returns the recorded duration (only valid after Stop()).
func (t *Timer) Duration() time.Duration {
	return t.duration
}

// Name returns the timer name (empty string if unnamed).
func (t *Timer) Name() string {
	return t.name
}

// String returns a formatted string representation of the timer.
func (t *Timer) String() string {
	if t.name != "" {
		return fmt.Sprintf("%s: %v", t.name, t.duration)
	}
	return fmt.Sprintf("%v", t.duration)
}

// StageTiming is one named, completed span.
type StageTiming struct {
	Stage    string        `json:"stage"`
	Duration time.Duration `json:"duration_ns"`
}

// Stopwatch records stage spans in the order they ran.
type Stopwatch struct {
	stages []StageTiming
}

// Time runs fn and records how long it took under stage.
func (s *Stopwatch) Time(stage string, fn func() error) error {
	t := NewNamedTimer(stage)
	err := fn()
	s.stages = append(s.stages, StageTiming{Stage: stage, Duration: t.Stop()})
	return err
}

// Stages returns a copy of the recorded spans.
func (s *Stopwatch) Stages() []StageTiming {
	return append([]StageTiming(nil), s.stages...)
}

// Longest returns the largest single recorded span.
func (s *Stopwatch) Longest() time.Duration {
	var m time.Duration
	for _, st := range s.stages {
		if st.Duration > m {
			m = st.Duration
		}
	}
	return m
}

// Last returns the most recent span, or the zero value.
func (s *Stopwatch) Last() StageTiming {
	if len(s.stages) == 0 {
		return StageTiming{}
	}
	return s.stages[len(s.stages)-1]
}
