package eventfeed

import (
	"github.com/sheerbytes/peerlink/internal/events"
	"github.com/sheerbytes/peerlink/pkg/protocol"
)

// EnvelopeFromEvent converts a node event to its feed envelope.
func EnvelopeFromEvent(ev events.Event) (protocol.Envelope, error) {
	peer := protocol.PeerInfo{IP: ev.Peer.IP, Port: ev.Peer.Port}

	var payload any
	switch ev.Kind {
	case events.KindConnectionOpened, events.KindConnectionClosed:
		payload = protocol.ConnectionState{Peer: peer, Reason: ev.Reason}
	case events.KindChatMessage, events.KindChatSent:
		payload = protocol.ChatMessage{Peer: peer, Text: ev.Text}
	default:
		out := protocol.FileOutcome{Peer: peer, Reason: ev.Reason}
		if f := ev.File; f != nil {
			out.Name = f.Name
			out.Path = f.Path
			out.Size = f.Size
			out.Checksum = f.Checksum
			out.Verified = f.Verified
			out.DurationMS = f.Duration.Milliseconds()
			out.RateBps = f.RateBps
		}
		payload = out
	}

	return protocol.NewEnvelope(string(ev.Kind), ev.ConnID, ev.At, payload)
}
