package registry

import (
	"net"
	"sync"
)

// Link is the write side of a registered socket. Writes are serialized so a
// file frame and a chat line sent from different goroutines never interleave
// on the wire. Reads belong to the connection's receive engine and do not go
// through Link.
type Link struct {
	mu   sync.Mutex
	conn net.Conn
}

func newLink(conn net.Conn) *Link {
	return &Link{conn: conn}
}

// Write writes p in full or returns an error.
func (l *Link) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn.Write(p)
}

// WriteFrames writes all buffers as one logical write.
func (l *Link) WriteFrames(bufs ...[]byte) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	nb := net.Buffers(bufs)
	return nb.WriteTo(l.conn)
}

// RemoteAddr returns the peer address of the underlying socket.
func (l *Link) RemoteAddr() net.Addr {
	return l.conn.RemoteAddr()
}
