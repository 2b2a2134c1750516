package registry

import (
	"context"
	"net"
	"sort"
	"sync"
	"time"
)

// Task is a background receiver attached to a connection.
type Task interface {
	Done() <-chan struct{}
}

// Info is a copy of a connection's identifying fields. It stays valid after
// the registry lock is released; Link may fail with net.ErrClosed once the
// connection has been removed.
type Info struct {
	ID       int
	IP       string
	Port     int
	OpenedAt time.Time
	Link     *Link
}

type record struct {
	id       int
	conn     net.Conn
	link     *Link
	ip       string
	port     int
	openedAt time.Time
	receiver Task
}

func (r *record) info() Info {
	return Info{
		ID:       r.id,
		IP:       r.ip,
		Port:     r.port,
		OpenedAt: r.openedAt,
		Link:     r.link,
	}
}

// Registry is the thread-safe table of live connections. It owns id
// allocation: ids start at 1, strictly increase and are never reused.
// Sockets are closed outside the lock.
type Registry struct {
	mu       sync.Mutex
	conns    map[int]*record
	reserved map[endpoint]bool
	nextID   int
	now      func() time.Time
}

type endpoint struct {
	ip   string
	port int
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		conns:    make(map[int]*record),
		reserved: make(map[endpoint]bool),
		nextID:   1,
		now:      time.Now,
	}
}

// Add registers conn and returns its id.
func (r *Registry) Add(conn net.Conn, ip string, port int) int {
	rec := &record{
		conn: conn,
		link: newLink(conn),
		ip:   ip,
		port: port,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	rec.id = r.nextID
	rec.openedAt = r.now()
	r.nextID++
	r.conns[rec.id] = rec
	return rec.id
}

// Remove drops the connection and closes its socket. It reports whether a
// record was removed; calling it again for the same id returns false.
func (r *Registry) Remove(id int) bool {
	r.mu.Lock()
	rec, ok := r.conns[id]
	if ok {
		delete(r.conns, id)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	closeConn(rec.conn)
	return true
}

// Get returns a snapshot of the connection with the given id.
func (r *Registry) Get(id int) (Info, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.conns[id]
	if !ok {
		return Info{}, false
	}
	return rec.info(), true
}

// All returns a snapshot of every live connection ordered by id.
func (r *Registry) All() []Info {
	r.mu.Lock()
	out := make([]Info, 0, len(r.conns))
	for _, rec := range r.conns {
		out = append(out, rec.info())
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Find returns the connection whose peer is ip:port, if any.
func (r *Registry) Find(ip string, port int) (Info, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.conns {
		if rec.ip == ip && rec.port == port {
			return rec.info(), true
		}
	}
	return Info{}, false
}

// Reserve claims ip:port for a dial in progress. It fails when a live
// connection already has that peer, returning it, or when another dial holds
// the claim, returning a zero Info. On success release must be called once
// the connection has been added or the dial has failed.
func (r *Registry) Reserve(ip string, port int) (release func(), existing Info, ok bool) {
	key := endpoint{ip: ip, port: port}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.conns {
		if rec.ip == ip && rec.port == port {
			return nil, rec.info(), false
		}
	}
	if r.reserved[key] {
		return nil, Info{}, false
	}
	r.reserved[key] = true

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.reserved, key)
			r.mu.Unlock()
		})
	}, Info{}, true
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// CloseAll closes and forgets every connection. Intended for shutdown.
func (r *Registry) CloseAll() int {
	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[int]*record)
	r.mu.Unlock()

	for _, rec := range conns {
		closeConn(rec.conn)
	}
	return len(conns)
}

// AttachReceiver records the receive task of a connection so shutdown can
// wait for it. It returns false when the connection is already gone.
func (r *Registry) AttachReceiver(id int, t Task) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.conns[id]
	if !ok {
		return false
	}
	rec.receiver = t
	return true
}

// Receivers returns the attached receive tasks of all live connections.
func (r *Registry) Receivers() []Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	tasks := make([]Task, 0, len(r.conns))
	for _, rec := range r.conns {
		if rec.receiver != nil {
			tasks = append(tasks, rec.receiver)
		}
	}
	return tasks
}

// Wait blocks until every task is done or ctx ends.
func Wait(ctx context.Context, tasks []Task) error {
	for _, t := range tasks {
		select {
		case <-t.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func closeConn(conn net.Conn) {
	if conn == nil {
		return
	}
	// net.ErrClosed is expected when the peer or engine closed it first.
	_ = conn.Close()
}
