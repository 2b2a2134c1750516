// Package console renders node events, the connection table and the
// transfer journal for a terminal.
package console

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/sheerbytes/peerlink/internal/events"
	"github.com/sheerbytes/peerlink/internal/history"
	"github.com/sheerbytes/peerlink/internal/registry"
)

// Printer writes rendered events to out. It can be subscribed to an
// events.Hub directly through Print.
type Printer struct {
	mu  sync.Mutex
	out io.Writer
}

func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// Print renders ev. Events the console does not show are skipped.
func (p *Printer) Print(ev events.Event) error {
	text := Render(ev)
	if text == "" {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := io.WriteString(p.out, text)
	return err
}

// Render returns the terminal text for ev, newline terminated, or "" for
// events the console does not show.
func Render(ev events.Event) string {
	var b strings.Builder
	switch ev.Kind {
	case events.KindChatMessage:
		fmt.Fprintf(&b, "Message received from %s\n", ev.Peer.IP)
		fmt.Fprintf(&b, "Sender's Port: %d\n", ev.Peer.Port)
		fmt.Fprintf(&b, "Message: \"%s\"\n", ev.Text)
	case events.KindConnectionOpened:
		fmt.Fprintf(&b, "Connection established with %s (ID: %d)\n", ev.Peer, ev.ConnID)
	case events.KindConnectionClosed:
		if ev.Reason != "" {
			fmt.Fprintf(&b, "Connection %d closed (%s)\n", ev.ConnID, ev.Reason)
		} else {
			fmt.Fprintf(&b, "Connection %d closed\n", ev.ConnID)
		}
	case events.KindChatSent:
		fmt.Fprintf(&b, "Message sent to %d\n", ev.ConnID)
	case events.KindFileReceived:
		f := fileOrEmpty(ev.File)
		check := "unverified"
		if f.Verified {
			check = "sha256 verified"
		}
		fmt.Fprintf(&b, "File received from %s: %s (%s, %s)\n", ev.Peer, f.Name, humanize.Bytes(uint64(f.Size)), check)
		if f.Path != "" {
			fmt.Fprintf(&b, "Saved to %s", f.Path)
			if f.RateBps > 0 {
				fmt.Fprintf(&b, " at %s/s", humanize.Bytes(uint64(f.RateBps)))
			}
			b.WriteString("\n")
		}
	case events.KindFileCorrupted:
		f := fileOrEmpty(ev.File)
		fmt.Fprintf(&b, "File %s from %s failed checksum verification and was discarded\n", f.Name, ev.Peer)
	case events.KindFileAborted:
		f := fileOrEmpty(ev.File)
		fmt.Fprintf(&b, "Transfer of %s from %s aborted: %s\n", f.Name, ev.Peer, ev.Reason)
	case events.KindFileFailed:
		f := fileOrEmpty(ev.File)
		fmt.Fprintf(&b, "Could not store %s from %s: %s\n", f.Name, ev.Peer, ev.Reason)
	case events.KindFileSent:
		f := fileOrEmpty(ev.File)
		fmt.Fprintf(&b, "File %s (%s) sent to %d\n", f.Name, humanize.Bytes(uint64(f.Size)), ev.ConnID)
	}
	return b.String()
}

func fileOrEmpty(f *events.FileInfo) events.FileInfo {
	if f == nil {
		return events.FileInfo{}
	}
	return *f
}

// WriteConnections prints the connection table.
func WriteConnections(w io.Writer, infos []registry.Info, now time.Time) error {
	if len(infos) == 0 {
		_, err := io.WriteString(w, "No active connections\n")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "id\tIP address\tPort\tConnected")
	for _, info := range infos {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", info.ID, info.IP, info.Port, humanize.RelTime(info.OpenedAt, now, "ago", "from now"))
	}
	return tw.Flush()
}

// WriteHistory prints journal entries, newest first as given.
func WriteHistory(w io.Writer, entries []history.Entry, now time.Time) error {
	if len(entries) == 0 {
		_, err := io.WriteString(w, "No transfers recorded\n")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "When\tDir\tPeer\tFile\tSize\tOutcome")
	for _, e := range entries {
		peer := events.Peer{IP: e.PeerIP, Port: e.PeerPort}
		outcome := e.Outcome
		if e.Outcome == history.OutcomeReceived && !e.Verified {
			outcome += " (unverified)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			humanize.RelTime(e.At, now, "ago", "from now"),
			e.Direction, peer, e.Name, humanize.Bytes(uint64(e.Size)), outcome)
	}
	return tw.Flush()
}
