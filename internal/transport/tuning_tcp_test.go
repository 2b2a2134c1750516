package transport

import (
	"net"
	"testing"
)

func TestClampTCPBuffer(t *testing.T) {
	if got := clampTCPBuffer(-1); got != minTCPBuffer {
		t.Fatalf("expected clamp to min, got %d", got)
	}
	if got := clampTCPBuffer(minTCPBuffer); got != minTCPBuffer {
		t.Fatalf("expected min to stay, got %d", got)
	}
	if got := clampTCPBuffer(maxTCPBuffer + 1); got != maxTCPBuffer {
		t.Fatalf("expected clamp to max, got %d", got)
	}
}

func TestApplyTCPNotTCP(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	result := ApplyTCP(a, DefaultTCPTuning())
	if result.Status != StatusNA {
		t.Fatalf("expected NA status, got %s", result.Status)
	}
}

func TestApplyTCPLoopback(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			accepted <- nil
			return
		}
		accepted <- c
	}()
	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if peer := <-accepted; peer != nil {
		defer peer.Close()
	}

	tuning := DefaultTCPTuning()
	tuning.BufferSize = 1
	result := ApplyTCP(conn, tuning)
	if result.Status != StatusOK {
		t.Fatalf("expected ok status, got %s (%s)", result.Status, result.Err)
	}
	if result.Buffer != minTCPBuffer {
		t.Fatalf("expected clamped buffer %d, got %d", minTCPBuffer, result.Buffer)
	}
}
