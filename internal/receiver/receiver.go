// Package receiver implements the per-connection receive engine: a state
// machine that splits a TCP byte stream into chat lines and file transfers.
//
// The stream is line oriented until a file header line arrives; the engine
// then consumes exactly the announced number of raw bytes as the file payload
// and goes back to lines. Framing does not depend on how the stream is split
// across reads.
package receiver

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/sheerbytes/peerlink/internal/bufpool"
	"github.com/sheerbytes/peerlink/internal/events"
	"github.com/sheerbytes/peerlink/internal/logging"
	"github.com/sheerbytes/peerlink/internal/transfer"
	"github.com/sheerbytes/peerlink/pkg/protocol"
)

const (
	// DefaultPollInterval bounds each blocking read so a stop request is
	// noticed promptly.
	DefaultPollInterval = 500 * time.Millisecond
	maxPollInterval     = time.Second
)

// Close reasons reported in connection_closed events.
const (
	ReasonPeerClosed  = "peer closed"
	ReasonStopped     = "stopped"
	ReasonClosedLocal = "closed locally"
	ReasonReset       = "connection reset"
	ReasonBrokenPipe  = "broken pipe"
	ReasonInternal    = "internal error"
)

// Retirer removes a connection from the live set. The engine passes only the
// connection id; it never needs the socket to retire itself.
type Retirer interface {
	Remove(id int) bool
}

// Config describes one connection's engine.
type Config struct {
	ID           int
	Peer         events.Peer
	Conn         net.Conn
	Retirer      Retirer
	Events       events.Emitter
	DownloadDir  string
	PollInterval time.Duration
	Buffers      *bufpool.Pool
	Logger       *slog.Logger
}

type mode int

const (
	modeLine mode = iota
	modePayload
)

// Receiver is the receive engine of one connection. Its state is touched only
// by the goroutine running Run.
type Receiver struct {
	id      int
	peer    events.Peer
	conn    net.Conn
	retirer Retirer
	emitter events.Emitter
	dir     string
	poll    time.Duration
	buffers *bufpool.Pool
	logger  *slog.Logger

	buf  []byte
	mode mode
	file *transfer.Incoming

	once sync.Once
	done chan struct{}
}

// New creates an engine; call Run to start it.
func New(cfg Config) *Receiver {
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	if poll > maxPollInterval {
		poll = maxPollInterval
	}
	emitter := cfg.Events
	if emitter == nil {
		emitter = events.Discard
	}
	buffers := cfg.Buffers
	if buffers == nil {
		buffers = bufpool.Default
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	dir := cfg.DownloadDir
	if dir == "" {
		dir = "."
	}
	return &Receiver{
		id:      cfg.ID,
		peer:    cfg.Peer,
		conn:    cfg.Conn,
		retirer: cfg.Retirer,
		emitter: emitter,
		dir:     dir,
		poll:    poll,
		buffers: buffers,
		logger:  logger.With("conn_id", cfg.ID, "peer", cfg.Peer.String()),
		done:    make(chan struct{}),
	}
}

// Done is closed once the engine has exited and retired its connection.
func (r *Receiver) Done() <-chan struct{} {
	return r.done
}

// Run reads until the peer disconnects, an I/O error occurs or ctx is
// cancelled, then cleans up exactly once.
func (r *Receiver) Run(ctx context.Context) {
	reason := ReasonInternal
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("receive engine panic", "panic", p)
		}
		r.shutdown(reason)
	}()
	reason = r.readLoop(ctx)
}

func (r *Receiver) readLoop(ctx context.Context) string {
	buf := r.buffers.Get()
	defer r.buffers.Put(buf)

	for {
		if ctx.Err() != nil {
			return ReasonStopped
		}
		if err := r.conn.SetReadDeadline(time.Now().Add(r.poll)); err != nil {
			// Both ends closing fail here first; the read tells them apart.
			n, rerr := r.conn.Read(buf)
			if n > 0 {
				r.feed(buf[:n])
			}
			if rerr != nil {
				return closeReason(rerr)
			}
			return closeReason(err)
		}
		n, err := r.conn.Read(buf)
		if n > 0 {
			r.feed(buf[:n])
		}
		if err == nil {
			continue
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			continue
		}
		return closeReason(err)
	}
}

func closeReason(err error) string {
	switch {
	case errors.Is(err, io.EOF):
		return ReasonPeerClosed
	case errors.Is(err, net.ErrClosed), errors.Is(err, io.ErrClosedPipe):
		return ReasonClosedLocal
	case errors.Is(err, syscall.ECONNRESET):
		return ReasonReset
	case errors.Is(err, syscall.EPIPE):
		return ReasonBrokenPipe
	default:
		return err.Error()
	}
}

func (r *Receiver) shutdown(reason string) {
	r.once.Do(func() {
		if r.file != nil {
			name := r.file.Name()
			size := r.file.Header().Size
			r.file.Abort()
			r.file = nil
			r.mode = modeLine
			r.logger.Warn("file transfer aborted", "file", name, "reason", reason)
			r.emit(events.Event{
				Kind:   events.KindFileAborted,
				File:   &events.FileInfo{Name: name, Size: size},
				Reason: reason,
			})
		}
		if r.retirer != nil {
			r.retirer.Remove(r.id)
		}
		r.logger.Info("connection closed", "reason", reason)
		r.emit(events.Event{Kind: events.KindConnectionClosed, Reason: reason})
		close(r.done)
	})
}

// feed appends freshly read bytes and processes everything that is complete.
func (r *Receiver) feed(data []byte) {
	r.buf = append(r.buf, data...)
	off := r.process()
	if off > 0 {
		n := copy(r.buf, r.buf[off:])
		r.buf = r.buf[:n]
	}
}

// process consumes as much of r.buf as possible and returns the offset of the
// first unconsumed byte.
func (r *Receiver) process() int {
	off := 0
	for {
		switch r.mode {
		case modeLine:
			i := bytes.IndexByte(r.buf[off:], '\n')
			if i < 0 {
				return off
			}
			line := r.buf[off : off+i]
			off += i + 1
			r.handleLine(string(line))

		case modePayload:
			if r.file.Remaining() > 0 {
				if off == len(r.buf) {
					return off
				}
				off += r.file.Write(r.buf[off:])
			}
			if r.file.Remaining() == 0 {
				r.finishFile()
			}
		}
	}
}

func (r *Receiver) handleLine(line string) {
	h, claimed, err := protocol.ParseHeaderLine(line)
	if claimed {
		if err != nil {
			r.logger.Warn("dropping malformed file header", "line", line, "error", err)
			return
		}
		r.beginFile(h)
		return
	}
	r.emit(events.Event{
		Kind: events.KindChatMessage,
		Text: strings.ToValidUTF8(line, "\uFFFD"),
	})
}

func (r *Receiver) beginFile(h protocol.FileHeader) {
	r.file = transfer.Begin(r.dir, h)
	r.mode = modePayload
	r.logger.Info("receiving file", "file", r.file.Name(), "size", h.Size, "format", h.Format.String())
}

func (r *Receiver) finishFile() {
	res, err := r.file.Finish()
	r.file = nil
	r.mode = modeLine

	info := &events.FileInfo{
		Name:     res.Name,
		Path:     res.Path,
		Size:     res.Size,
		Checksum: res.Checksum,
		Verified: res.Verified,
		Duration: res.Duration,
		RateBps:  res.RateBps,
	}
	switch {
	case err == nil:
		r.logger.Info("file received", "file", res.Name, "size", res.Size, "verified", res.Verified)
		r.emit(events.Event{Kind: events.KindFileReceived, File: info})
	case errors.Is(err, transfer.ErrChecksumMismatch):
		r.logger.Warn("file corrupted", "file", res.Name, "error", err)
		r.emit(events.Event{Kind: events.KindFileCorrupted, File: info, Reason: err.Error()})
	default:
		r.logger.Error("file not stored", "file", res.Name, "error", err)
		r.emit(events.Event{Kind: events.KindFileFailed, File: info, Reason: err.Error()})
	}
}

func (r *Receiver) emit(ev events.Event) {
	ev.ConnID = r.id
	ev.Peer = r.peer
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	r.emitter.Emit(ev)
}
