// Package node ties the listener, the outbound connector and the send path to
// a shared connection registry. Every connection, accepted or dialed, gets a
// receive engine that runs until the peer goes away or the node stops.
package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/net/netutil"

	"github.com/sheerbytes/peerlink/internal/bufpool"
	"github.com/sheerbytes/peerlink/internal/events"
	"github.com/sheerbytes/peerlink/internal/logging"
	"github.com/sheerbytes/peerlink/internal/netinfo"
	"github.com/sheerbytes/peerlink/internal/receiver"
	"github.com/sheerbytes/peerlink/internal/registry"
	"github.com/sheerbytes/peerlink/internal/transport"
)

const (
	DefaultDialTimeout = 5 * time.Second
	shutdownWait       = 2 * time.Second
	acceptBackoff      = 50 * time.Millisecond
)

// Options configures a Node. Port 0 binds an ephemeral port.
type Options struct {
	Port           int
	DownloadDir    string
	MaxConnections int
	PollInterval   time.Duration
	DialTimeout    time.Duration
	TCP            transport.TCPTuning
	Events         events.Emitter
	Logger         *slog.Logger
	// IsLocal reports whether a host names this machine. Defaults to
	// netinfo.IsLocal.
	IsLocal func(host string) bool
}

// Node is one peer: a listener plus any number of live connections.
type Node struct {
	opts    Options
	reg     *registry.Registry
	events  events.Emitter
	logger  *slog.Logger
	buffers *bufpool.Pool

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	ln         net.Listener
	port       int
	acceptDone chan struct{}
	closed     bool
}

// New creates a node. Call Start to begin listening.
func New(opts Options) *Node {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = DefaultDialTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = receiver.DefaultPollInterval
	}
	if opts.DownloadDir == "" {
		opts.DownloadDir = "."
	}
	if opts.TCP == (transport.TCPTuning{}) {
		opts.TCP = transport.DefaultTCPTuning()
	}
	if opts.IsLocal == nil {
		opts.IsLocal = netinfo.IsLocal
	}
	emitter := opts.Events
	if emitter == nil {
		emitter = events.Discard
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Node{
		opts:    opts,
		reg:     registry.New(),
		events:  emitter,
		logger:  logger,
		buffers: bufpool.Default,
		ctx:     ctx,
		cancel:  cancel,
		port:    opts.Port,
	}
}

// Registry exposes the live connection table.
func (n *Node) Registry() *registry.Registry {
	return n.reg
}

// Port returns the bound listening port, or the configured one before Start.
func (n *Node) Port() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.port
}

// Start binds the listening socket and starts accepting peers in the
// background. Cancelling ctx stops the node like Close does, minus the wait.
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return fmt.Errorf("%w: %w", ErrListen, ErrClosed)
	}
	if n.ln != nil {
		return fmt.Errorf("%w: already listening on port %d", ErrListen, n.port)
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", net.JoinHostPort("", strconv.Itoa(n.opts.Port)))
	if err != nil {
		return fmt.Errorf("%w on port %d: %v", ErrListen, n.opts.Port, err)
	}
	raw, ok := ln.(*net.TCPListener)
	if !ok {
		_ = ln.Close()
		return fmt.Errorf("%w: unexpected listener %T", ErrListen, ln)
	}
	n.port = raw.Addr().(*net.TCPAddr).Port

	var accepting net.Listener = tuningListener{TCPListener: raw, tune: n.tune}
	if n.opts.MaxConnections > 0 {
		accepting = netutil.LimitListener(accepting, n.opts.MaxConnections)
	}
	n.ln = accepting
	n.acceptDone = make(chan struct{})
	context.AfterFunc(ctx, n.cancel)

	n.logger.Info("listening", "port", n.port, "max_conns", n.opts.MaxConnections)
	go n.acceptLoop(raw, accepting, n.acceptDone)
	return nil
}

func (n *Node) acceptLoop(raw *net.TCPListener, ln net.Listener, done chan struct{}) {
	defer close(done)
	for {
		if n.ctx.Err() != nil {
			return
		}
		_ = raw.SetDeadline(time.Now().Add(n.opts.PollInterval))
		conn, err := ln.Accept()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if n.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			n.logger.Warn("accept failed", "error", err)
			time.Sleep(acceptBackoff)
			continue
		}
		ip, port := splitRemote(conn.RemoteAddr())
		id := n.register(conn, ip, port)
		n.logger.Info("connection accepted", "conn_id", id, "peer", net.JoinHostPort(ip, strconv.Itoa(port)))
	}
}

// tuningListener applies socket options to each accepted connection while it
// is still a *net.TCPConn, before a limiting listener wraps it.
type tuningListener struct {
	*net.TCPListener
	tune func(net.Conn)
}

func (l tuningListener) Accept() (net.Conn, error) {
	conn, err := l.TCPListener.AcceptTCP()
	if err != nil {
		return nil, err
	}
	l.tune(conn)
	return conn, nil
}

func (n *Node) tune(conn net.Conn) {
	res := transport.ApplyTCP(conn, n.opts.TCP)
	peer := conn.RemoteAddr().String()
	if res.Status != transport.StatusOK {
		n.logger.Warn("tcp tuning not applied", "peer", peer, "status", res.Status, "error", res.Err)
		return
	}
	n.logger.Debug("tcp tuned", "peer", peer, "status", res.Status, "keepalive", res.KeepAlive)
}

// register adds conn to the registry, reports it and starts its engine.
// Sockets must already be tuned.
func (n *Node) register(conn net.Conn, ip string, port int) int {
	peer := events.Peer{IP: ip, Port: port}
	id := n.reg.Add(conn, ip, port)
	r := receiver.New(receiver.Config{
		ID:           id,
		Peer:         peer,
		Conn:         conn,
		Retirer:      n.reg,
		Events:       n.events,
		DownloadDir:  n.opts.DownloadDir,
		PollInterval: n.opts.PollInterval,
		Buffers:      n.buffers,
		Logger:       n.logger,
	})
	n.reg.AttachReceiver(id, r)
	n.events.Emit(events.Event{
		Kind:   events.KindConnectionOpened,
		ConnID: id,
		Peer:   peer,
		At:     time.Now(),
	})
	go r.Run(n.ctx)
	return id
}

// Connections returns a snapshot of the live connections ordered by id.
func (n *Node) Connections() []registry.Info {
	return n.reg.All()
}

// Terminate closes one connection. Its engine reports the close.
func (n *Node) Terminate(idArg string) error {
	id, err := ParseID(idArg)
	if err != nil {
		return err
	}
	return n.TerminateID(id)
}

// TerminateID closes the connection with the given id.
func (n *Node) TerminateID(id int) error {
	if !n.reg.Remove(id) {
		return fmt.Errorf("%w: %d", ErrNoSuchConnection, id)
	}
	n.logger.Info("connection terminated", "conn_id", id)
	return nil
}

// Close stops accepting, closes every connection and waits briefly for the
// receive engines to finish. Safe to call more than once.
func (n *Node) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	ln := n.ln
	acceptDone := n.acceptDone
	n.mu.Unlock()

	n.cancel()
	if ln != nil {
		_ = ln.Close()
		<-acceptDone
	}

	tasks := n.reg.Receivers()
	closed := n.reg.CloseAll()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownWait)
	defer cancel()
	if err := registry.Wait(ctx, tasks); err != nil {
		n.logger.Warn("receive engines still running at shutdown", "error", err)
		return err
	}
	n.logger.Info("node stopped", "connections_closed", closed)
	return nil
}

func splitRemote(addr net.Addr) (string, int) {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.IP.String(), tcp.Port
	}
	host, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String(), 0
	}
	port, _ := strconv.Atoi(portStr)
	return host, port
}
