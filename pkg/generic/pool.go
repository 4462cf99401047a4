package generic

import "sync"

// Pool is a typed sync.Pool. When a reset hook is set, values are reset on
// Put so Get always returns a clean value.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T)
	keep  func(T) bool
}

func NewPool[T any](generate func() T) *Pool[T] {
	return &Pool[T]{
		pool: sync.Pool{
			New: func() any {
				return generate()
			},
		},
	}
}

// NewResettablePool returns a pool that calls reset on every value handed back.
// Values for which keep returns false are dropped instead of pooled; keep may
// be nil.
func NewResettablePool[T any](generate func() T, reset func(T), keep func(T) bool) *Pool[T] {
	p := NewPool[T](generate)
	p.reset = reset
	p.keep = keep
	return p
}

func (p *Pool[T]) Get() T {
	return p.pool.Get().(T)
}

func (p *Pool[T]) Put(value T) {
	if p.keep != nil && !p.keep(value) {
		return
	}
	if p.reset != nil {
		p.reset(value)
	}
	p.pool.Put(value)
}
