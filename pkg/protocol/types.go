package protocol

// Event feed envelope types.
const (
	TypeConnectionOpened = "connection_opened"
	TypeConnectionClosed = "connection_closed"
	TypeChatMessage      = "chat_message"
	TypeChatSent         = "chat_sent"
	TypeFileReceived     = "file_received"
	TypeFileCorrupted    = "file_corrupted"
	TypeFileAborted      = "file_aborted"
	TypeFileFailed       = "file_failed"
	TypeFileSent         = "file_sent"
)

var knownTypes = map[string]bool{
	TypeConnectionOpened: true,
	TypeConnectionClosed: true,
	TypeChatMessage:      true,
	TypeChatSent:         true,
	TypeFileReceived:     true,
	TypeFileCorrupted:    true,
	TypeFileAborted:      true,
	TypeFileFailed:       true,
	TypeFileSent:         true,
}

// KnownType reports whether t is an envelope type this version publishes.
func KnownType(t string) bool {
	return knownTypes[t]
}
