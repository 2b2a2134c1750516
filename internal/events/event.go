package events

import (
	"net"
	"strconv"
	"time"
)

// Kind names what happened. The values double as event feed envelope types.
type Kind string

const (
	KindConnectionOpened Kind = "connection_opened"
	KindConnectionClosed Kind = "connection_closed"
	KindChatMessage      Kind = "chat_message"
	KindChatSent         Kind = "chat_sent"
	KindFileReceived     Kind = "file_received"
	KindFileCorrupted    Kind = "file_corrupted"
	KindFileAborted      Kind = "file_aborted"
	KindFileFailed       Kind = "file_failed"
	KindFileSent         Kind = "file_sent"
)

// Peer identifies the remote end of a connection.
type Peer struct {
	IP   string
	Port int
}

func (p Peer) String() string {
	return net.JoinHostPort(p.IP, strconv.Itoa(p.Port))
}

// FileInfo describes a file transfer outcome.
type FileInfo struct {
	Name     string
	Path     string
	Size     int64
	Checksum string
	Verified bool
	Duration time.Duration
	RateBps  float64
}

// Event is emitted by receive engines and the node for every chat line,
// file outcome and connection state change.
type Event struct {
	Kind   Kind
	ConnID int
	Peer   Peer
	Text   string
	File   *FileInfo
	Reason string
	At     time.Time
}

// Emitter receives events. Implementations must not block for long: engines
// call Emit from their read loop.
type Emitter interface {
	Emit(Event)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(Event)

func (f EmitterFunc) Emit(ev Event) { f(ev) }

// Discard drops every event.
var Discard Emitter = EmitterFunc(func(Event) {})
