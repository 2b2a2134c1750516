// Package termio serializes terminal output so lines printed by event
// subscribers and by the command shell never interleave mid-line.
package termio

import (
	"io"
	"os"
	"sync"
)

type chunk struct {
	buf  []byte
	done chan struct{}
}

// Writer queues writes to an underlying writer drained by one goroutine.
type Writer struct {
	out io.Writer
	ch  chan chunk
}

// NewWriter starts a queued writer over out.
func NewWriter(out io.Writer) *Writer {
	w := &Writer{
		out: out,
		ch:  make(chan chunk, 1024),
	}
	go func() {
		for c := range w.ch {
			if c.buf != nil {
				_, _ = w.out.Write(c.buf)
			}
			if c.done != nil {
				close(c.done)
			}
		}
	}()
	return w
}

func (w *Writer) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	buf := make([]byte, len(p))
	copy(buf, p)
	w.ch <- chunk{buf: buf}
	return len(p), nil
}

// Flush blocks until everything written before the call reached the
// underlying writer.
func (w *Writer) Flush() {
	done := make(chan struct{})
	w.ch <- chunk{done: done}
	<-done
}

type manager struct {
	once   sync.Once
	stdout *Writer
	stderr *Writer
}

var global manager

func Init() {
	global.once.Do(func() {
		global.stdout = NewWriter(os.Stdout)
		global.stderr = NewWriter(os.Stderr)
	})
}

func Stdout() *Writer {
	Init()
	return global.stdout
}

func Stderr() *Writer {
	Init()
	return global.stderr
}

// Flush drains both standard streams.
func Flush() {
	Init()
	global.stdout.Flush()
	global.stderr.Flush()
}
