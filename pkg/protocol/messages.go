package protocol

import "time"

// PeerInfo identifies the remote end of a connection.
type PeerInfo struct {
	IP   string `json:"ip"`
	Port int    `json:"port"`
}

// ConnectionState is the payload of connection_opened and connection_closed.
type ConnectionState struct {
	Peer   PeerInfo `json:"peer"`
	Reason string   `json:"reason,omitempty"`
}

// ChatMessage is the payload of chat_message and chat_sent.
type ChatMessage struct {
	Peer PeerInfo `json:"peer"`
	Text string   `json:"text"`
}

// FileOutcome is the payload of every file_* envelope.
type FileOutcome struct {
	Peer       PeerInfo `json:"peer"`
	Name       string   `json:"name"`
	Path       string   `json:"path,omitempty"`
	Size       int64    `json:"size"`
	Checksum   string   `json:"checksum,omitempty"`
	Verified   bool     `json:"verified"`
	DurationMS int64    `json:"duration_ms,omitempty"`
	RateBps    float64  `json:"rate_bps,omitempty"`
	Reason     string   `json:"reason,omitempty"`
}

// ConnectionInfo is one entry of the /connections listing.
type ConnectionInfo struct {
	ID       int       `json:"id"`
	IP       string    `json:"ip"`
	Port     int       `json:"port"`
	OpenedAt time.Time `json:"opened_at"`
}
