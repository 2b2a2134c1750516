package bufpool

import (
	"sync"
)

// ReadSize is the default socket read size used by receive engines.
const ReadSize = 4096

// Pool hands out fixed-size read buffers so engines on short-lived
// connections do not each allocate their own.
type Pool struct {
	pool    sync.Pool
	bufSize int
}

// New creates a pool of bufSize-byte buffers.
func New(bufSize int) *Pool {
	if bufSize <= 0 {
		panic("bufSize must be positive")
	}
	p := &Pool{bufSize: bufSize}
	p.pool.New = func() any {
		b := make([]byte, bufSize)
		return &b
	}
	return p
}

// Default is the shared pool of ReadSize buffers.
var Default = New(ReadSize)

// Get returns a buffer of exactly BufSize bytes.
func (p *Pool) Get() []byte {
	bp := p.pool.Get().(*[]byte)
	if cap(*bp) < p.bufSize {
		return make([]byte, p.bufSize)
	}
	return (*bp)[:p.bufSize]
}

// Put returns buf for reuse; undersized buffers are dropped.
func (p *Pool) Put(buf []byte) {
	if cap(buf) < p.bufSize {
		return
	}
	buf = buf[:cap(buf)]
	p.pool.Put(&buf)
}

// BufSize returns the size of buffers in this pool.
func (p *Pool) BufSize() int {
	return p.bufSize
}
