// Package mempool keeps size-classed pools of scratch slices for the image
// filters, which allocate one full-frame buffer per pass.
package mempool

import "sync"

// Pool hands out []T buffers grouped by size class. The zero value is ready
// to use and safe for concurrent use.
type Pool[T any] struct {
	pools sync.Map // key: size class (int), value: *sync.Pool
}

var (
	// Float64 serves the separable threshold filters.
	Float64 = &Pool[float64]{}
	// Bool serves the morphology passes over edge masks.
	Bool = &Pool[bool]{}
)

// sizeClass rounds n up to the next multiple of 1024.
func sizeClass(n int) int {
	const step = 1024
	if n <= step {
		return step
	}
	return (n + step - 1) / step * step
}

func (p *Pool[T]) class(cls int) *sync.Pool {
	if sp, ok := p.pools.Load(cls); ok {
		return sp.(*sync.Pool)
	}
	sp, _ := p.pools.LoadOrStore(cls, &sync.Pool{New: func() any {
		buf := make([]T, cls)
		return &buf
	}})
	return sp.(*sync.Pool)
}

// Get returns a zeroed buffer of length n. Return it with Put when done.
func (p *Pool[T]) Get(n int) []T {
	if n <= 0 {
		return nil
	}
	cls := sizeClass(n)
	bp := p.class(cls).Get().(*[]T)
	buf := *bp
	if cap(buf) < cls {
		buf = make([]T, cls)
	}
	buf = buf[:n]
	clear(buf)
	return buf
}

// Put returns buf to its pool. Nil slices and slices whose capacity is not
// a size class (not obtained from Get) are ignored.
func (p *Pool[T]) Put(buf []T) {
	c := cap(buf)
	if c == 0 || sizeClass(c) != c {
		return
	}
	buf = buf[:c]
	p.class(c).Put(&buf)
}
