// Package transport applies socket options to peer TCP connections.
package transport

import (
	"net"
	"strings"
	"time"
)

const (
	StatusOK     = "ok"
	StatusNA     = "n/a"
	StatusDenied = "denied"
)

const (
	DefaultKeepAlive = 30 * time.Second
	minTCPBuffer     = 64 * 1024
	maxTCPBuffer     = 16 * 1024 * 1024
)

// TCPTuning is the set of options applied to every peer socket. A zero
// buffer size leaves the kernel default in place.
type TCPTuning struct {
	KeepAlive  time.Duration
	NoDelay    bool
	BufferSize int
}

type TCPTuneResult struct {
	KeepAlive time.Duration
	Buffer    int
	Status    string
	Err       string
}

// DefaultTCPTuning suits short chat lines: no Nagle delay and keepalives so
// a vanished peer is eventually noticed by the read loop.
func DefaultTCPTuning() TCPTuning {
	return TCPTuning{KeepAlive: DefaultKeepAlive, NoDelay: true}
}

// ApplyTCP applies t to conn on a best-effort basis. Connections that are not
// TCP (net.Pipe in tests) report StatusNA.
func ApplyTCP(conn net.Conn, t TCPTuning) TCPTuneResult {
	result := TCPTuneResult{KeepAlive: t.KeepAlive, Buffer: -1, Status: StatusOK}
	tcp, ok := conn.(*net.TCPConn)
	if !ok || tcp == nil {
		result.Status = StatusNA
		result.Err = "not a TCP connection"
		return result
	}

	var errs []string
	if t.KeepAlive > 0 {
		if err := tcp.SetKeepAlive(true); err != nil {
			errs = append(errs, "keepalive: "+err.Error())
		} else if err := tcp.SetKeepAlivePeriod(t.KeepAlive); err != nil {
			errs = append(errs, "keepalive period: "+err.Error())
		}
	}
	if err := tcp.SetNoDelay(t.NoDelay); err != nil {
		errs = append(errs, "nodelay: "+err.Error())
	}
	if t.BufferSize > 0 {
		size := clampTCPBuffer(t.BufferSize)
		result.Buffer = size
		if err := tcp.SetReadBuffer(size); err != nil {
			errs = append(errs, "read: "+err.Error())
		}
		if err := tcp.SetWriteBuffer(size); err != nil {
			errs = append(errs, "write: "+err.Error())
		}
	}
	if len(errs) > 0 {
		result.Status = StatusDenied
		result.Err = strings.Join(errs, "; ")
	}
	return result
}

func clampTCPBuffer(n int) int {
	if n < minTCPBuffer {
		return minTCPBuffer
	}
	if n > maxTCPBuffer {
		return maxTCPBuffer
	}
	return n
}
