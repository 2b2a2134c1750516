package console

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/sheerbytes/peerlink/internal/events"
	"github.com/sheerbytes/peerlink/internal/history"
	"github.com/sheerbytes/peerlink/internal/registry"
)

var peer = events.Peer{IP: "10.0.0.2", Port: 4545}

func TestRender(t *testing.T) {
	cases := []struct {
		name string
		ev   events.Event
		want string
	}{
		{
			name: "chat",
			ev:   events.Event{Kind: events.KindChatMessage, ConnID: 1, Peer: peer, Text: `say "hi"`},
			want: "Message received from 10.0.0.2\nSender's Port: 4545\nMessage: \"say \"hi\"\"\n",
		},
		{
			name: "opened",
			ev:   events.Event{Kind: events.KindConnectionOpened, ConnID: 3, Peer: peer},
			want: "Connection established with 10.0.0.2:4545 (ID: 3)\n",
		},
		{
			name: "closed",
			ev:   events.Event{Kind: events.KindConnectionClosed, ConnID: 3, Peer: peer, Reason: "peer closed"},
			want: "Connection 3 closed (peer closed)\n",
		},
		{
			name: "sent",
			ev:   events.Event{Kind: events.KindChatSent, ConnID: 2, Peer: peer, Text: "x"},
			want: "Message sent to 2\n",
		},
		{
			name: "received unverified",
			ev: events.Event{Kind: events.KindFileReceived, ConnID: 1, Peer: peer,
				File: &events.FileInfo{Name: "a.txt", Size: 4}},
			want: "File received from 10.0.0.2:4545: a.txt (4 B, unverified)\n",
		},
		{
			name: "received verified",
			ev: events.Event{Kind: events.KindFileReceived, ConnID: 1, Peer: peer,
				File: &events.FileInfo{Name: "a.bin", Size: 2048, Verified: true, Path: "downloads/a.bin"}},
			want: "File received from 10.0.0.2:4545: a.bin (2.0 kB, sha256 verified)\nSaved to downloads/a.bin\n",
		},
		{
			name: "corrupted",
			ev: events.Event{Kind: events.KindFileCorrupted, ConnID: 1, Peer: peer,
				File: &events.FileInfo{Name: "bad.bin"}},
			want: "File bad.bin from 10.0.0.2:4545 failed checksum verification and was discarded\n",
		},
		{
			name: "aborted",
			ev: events.Event{Kind: events.KindFileAborted, ConnID: 1, Peer: peer, Reason: "peer closed",
				File: &events.FileInfo{Name: "big.iso"}},
			want: "Transfer of big.iso from 10.0.0.2:4545 aborted: peer closed\n",
		},
		{
			name: "file sent",
			ev: events.Event{Kind: events.KindFileSent, ConnID: 5, Peer: peer,
				File: &events.FileInfo{Name: "out.txt", Size: 4}},
			want: "File out.txt (4 B) sent to 5\n",
		},
	}
	for _, tc := range cases {
		if got := Render(tc.ev); got != tc.want {
			t.Fatalf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestPrinterSkipsUnknown(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	if err := p.Print(events.Event{Kind: "other"}); err != nil {
		t.Fatalf("print: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected nothing printed, got %q", buf.String())
	}
	if err := p.Print(events.Event{Kind: events.KindChatSent, ConnID: 1}); err != nil {
		t.Fatalf("print: %v", err)
	}
	if buf.String() != "Message sent to 1\n" {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestWriteConnections(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	if err := WriteConnections(&buf, nil, now); err != nil {
		t.Fatalf("write: %v", err)
	}
	if buf.String() != "No active connections\n" {
		t.Fatalf("unexpected empty table %q", buf.String())
	}

	buf.Reset()
	infos := []registry.Info{
		{ID: 1, IP: "10.0.0.2", Port: 4545, OpenedAt: now.Add(-3 * time.Minute)},
		{ID: 4, IP: "192.168.1.20", Port: 5000, OpenedAt: now},
	}
	if err := WriteConnections(&buf, infos, now); err != nil {
		t.Fatalf("write: %v", err)
	}
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got %q", buf.String())
	}
	if !strings.HasPrefix(lines[0], "id") || !strings.Contains(lines[1], "10.0.0.2") || !strings.Contains(lines[1], "3 minutes ago") {
		t.Fatalf("unexpected table %q", buf.String())
	}
	if !strings.HasPrefix(lines[2], "4 ") || !strings.Contains(lines[2], "5000") {
		t.Fatalf("unexpected row %q", lines[2])
	}
}

func TestWriteHistory(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	entries := []history.Entry{
		{Direction: history.DirectionIn, PeerIP: "10.0.0.2", PeerPort: 4545, Name: "a.txt", Size: 4,
			Outcome: history.OutcomeReceived, At: now.Add(-time.Hour)},
		{Direction: history.DirectionOut, PeerIP: "10.0.0.3", PeerPort: 5000, Name: "b.bin", Size: 2048,
			Outcome: history.OutcomeSent, Verified: true, At: now.Add(-2 * time.Hour)},
	}
	if err := WriteHistory(&buf, entries, now); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"1 hour ago", "received (unverified)", "10.0.0.3:5000", "2.0 kB", "sent"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}

	buf.Reset()
	if err := WriteHistory(&buf, nil, now); err != nil {
		t.Fatalf("write: %v", err)
	}
	if buf.String() != "No transfers recorded\n" {
		t.Fatalf("unexpected empty history %q", buf.String())
	}
}
