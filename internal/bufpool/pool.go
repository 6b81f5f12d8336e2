// Package bufpool reuses fixed-size copy buffers across concurrent
// downloads. A windowed batch would otherwise allocate one transfer buffer
// per in-flight file per pass.
package bufpool

import "sync"

// Pool hands out byte slices of exactly one size.
type Pool struct {
	size int
	pool sync.Pool
}

// New creates a pool of size-byte buffers.
func New(size int) *Pool {
	if size <= 0 {
		panic("bufpool: size must be positive")
	}
	p := &Pool{size: size}
	p.pool.New = func() any { return make([]byte, size) }
	return p
}

// Get returns a buffer of exactly the pool's size.
func (p *Pool) Get() []byte {
	return p.pool.Get().([]byte)[:p.size]
}

// Put returns a buffer for reuse. Undersized buffers are discarded.
func (p *Pool) Put(buf []byte) {
	if cap(buf) < p.size {
		return
	}
	p.pool.Put(buf[:cap(buf)])
}
