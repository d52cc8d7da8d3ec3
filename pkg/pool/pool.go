// Package pool provides a generic, type-safe wrapper around sync.Pool.
// Components on the storage hot path (segment encode/decode) use it to
// reuse scratch buffers instead of allocating one per call.
//
// Example usage:
//
//	myPool := pool.New(
//	    func() *MyType { return &MyType{} },
//	    func(obj *MyType) { obj.Reset() },
//	)
//	obj := myPool.Get()
//	defer myPool.Put(obj)
package pool

import "sync"

// Pool wraps sync.Pool with a reset hook applied before an object is
// returned to the pool. T should usually be a pointer type.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T)
}

// New creates a pool whose empty-pool case is served by new, and whose
// Put calls reset (if non-nil) before the object goes back in.
func New[T any](new func() T, reset func(T)) *Pool[T] {
	p := &Pool[T]{reset: reset}
	p.pool.New = func() interface{} { return new() }
	return p
}

// Get retrieves an object from the pool, creating one if the pool is empty.
func (p *Pool[T]) Get() T {
	return p.pool.Get().(T)
}

// Put resets obj (if a reset function was provided) and returns it to the
// pool for reuse.
func (p *Pool[T]) Put(obj T) {
	if p.reset != nil {
		p.reset(obj)
	}
	p.pool.Put(obj)
}
