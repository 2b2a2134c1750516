package node

import (
	"fmt"
	"strings"
	"time"

	"github.com/sheerbytes/peerlink/internal/events"
	"github.com/sheerbytes/peerlink/internal/progress"
	"github.com/sheerbytes/peerlink/internal/registry"
	"github.com/sheerbytes/peerlink/internal/transfer"
	"github.com/sheerbytes/peerlink/pkg/protocol"
)

// SendResult describes a file handed to the socket.
type SendResult struct {
	ConnID   int
	Name     string
	Size     int64
	Checksum string
	Duration time.Duration
}

// ValidateMessage checks a chat message before any connection is looked up.
func ValidateMessage(text string) error {
	if len(text) > protocol.MaxMessageLen {
		return fmt.Errorf("%w: %d bytes, limit is %d", ErrMessageTooLong, len(text), protocol.MaxMessageLen)
	}
	if strings.ContainsAny(text, "\r\n") {
		return fmt.Errorf("%w: contains a line break", ErrInvalidMessage)
	}
	if protocol.IsHeaderLike(text) {
		return fmt.Errorf("%w: would be read as a file header", ErrInvalidMessage)
	}
	return nil
}

// Send writes one chat line to the connection named by idArg. The length
// check runs first, so an oversized message is rejected even when the id is
// bad.
func (n *Node) Send(idArg, text string) error {
	if err := ValidateMessage(text); err != nil {
		return err
	}
	id, err := ParseID(idArg)
	if err != nil {
		return err
	}
	return n.SendTo(id, text)
}

// SendTo writes one chat line to connection id.
func (n *Node) SendTo(id int, text string) error {
	if err := ValidateMessage(text); err != nil {
		return err
	}
	info, ok := n.reg.Get(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrNoSuchConnection, id)
	}
	if err := n.write(info, []byte(text+"\n")); err != nil {
		return err
	}
	n.events.Emit(events.Event{
		Kind:   events.KindChatSent,
		ConnID: id,
		Peer:   events.Peer{IP: info.IP, Port: info.Port},
		Text:   text,
		At:     time.Now(),
	})
	return nil
}

// SendFile reads the file at path and sends it as one frame on the
// connection named by idArg.
func (n *Node) SendFile(idArg, path string) (SendResult, error) {
	id, err := ParseID(idArg)
	if err != nil {
		return SendResult{}, err
	}
	return n.SendFileTo(id, path)
}

// SendFileTo sends the file at path on connection id.
func (n *Node) SendFileTo(id int, path string) (SendResult, error) {
	info, ok := n.reg.Get(id)
	if !ok {
		return SendResult{}, fmt.Errorf("%w: %d", ErrNoSuchConnection, id)
	}
	out, err := transfer.LoadFile(path)
	if err != nil {
		return SendResult{}, err
	}

	meter := progress.NewMeter(out.Size())
	if err := n.write(info, out.Header(), out.Data); err != nil {
		return SendResult{}, err
	}
	meter.Add(len(out.Data))
	stats := meter.Snapshot()
	elapsed := stats.Elapsed

	res := SendResult{
		ConnID:   id,
		Name:     out.Name,
		Size:     out.Size(),
		Checksum: out.Checksum,
		Duration: elapsed,
	}
	n.logger.Info("file sent", "conn_id", id, "file", out.Name, "size", res.Size, "elapsed", elapsed)
	n.events.Emit(events.Event{
		Kind:   events.KindFileSent,
		ConnID: id,
		Peer:   events.Peer{IP: info.IP, Port: info.Port},
		File: &events.FileInfo{
			Name:     out.Name,
			Path:     path,
			Size:     res.Size,
			Checksum: out.Checksum,
			Verified: true,
			Duration: elapsed,
			RateBps:  stats.RateBps,
		},
		At: time.Now(),
	})
	return res, nil
}

// write sends frames on the connection's link. A failed write retires the
// connection.
func (n *Node) write(info registry.Info, frames ...[]byte) error {
	if _, err := info.Link.WriteFrames(frames...); err != nil {
		n.reg.Remove(info.ID)
		n.logger.Warn("send failed", "conn_id", info.ID, "error", err)
		return fmt.Errorf("%w to connection %d: %v", ErrSendFailed, info.ID, err)
	}
	return nil
}
