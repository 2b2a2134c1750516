package bufpool

import (
	"testing"
)

func TestPool_GetPut(t *testing.T) {
	pool := New(ReadSize)

	buf1 := pool.Get()
	if len(buf1) != ReadSize {
		t.Errorf("expected buffer length %d, got %d", ReadSize, len(buf1))
	}
	pool.Put(buf1)

	buf2 := pool.Get()
	if len(buf2) != ReadSize {
		t.Errorf("expected buffer length %d, got %d", ReadSize, len(buf2))
	}
	if pool.BufSize() != ReadSize {
		t.Errorf("expected BufSize %d, got %d", ReadSize, pool.BufSize())
	}
}

func TestPool_ResliceOnReuse(t *testing.T) {
	pool := New(64)
	buf := pool.Get()
	pool.Put(buf[:3])

	again := pool.Get()
	if len(again) != 64 {
		t.Errorf("expected resliced length 64, got %d", len(again))
	}
}

func TestPool_DropsUndersized(t *testing.T) {
	pool := New(128)
	pool.Put(make([]byte, 16))

	for i := 0; i < 10; i++ {
		if buf := pool.Get(); len(buf) != 128 {
			t.Fatalf("Get() returned %d bytes, want 128", len(buf))
		}
	}
}

func TestPool_Default(t *testing.T) {
	if Default.BufSize() != ReadSize {
		t.Errorf("Default.BufSize() = %d, want %d", Default.BufSize(), ReadSize)
	}
}

func TestNew_PanicsOnZero(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("New(0) should panic")
		}
	}()
	New(0)
}
