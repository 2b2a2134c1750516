// Package history keeps a journal of file transfers in a sqlite database.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/sheerbytes/peerlink/internal/events"
)

const DefaultLimit = 20

// Direction is the side of the transfer this node was on.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// Outcomes stored with each entry.
const (
	OutcomeReceived  = "received"
	OutcomeCorrupted = "corrupted"
	OutcomeAborted   = "aborted"
	OutcomeFailed    = "failed"
	OutcomeSent      = "sent"
)

// Entry is one finished, failed or abandoned transfer.
type Entry struct {
	ID        string
	ConnID    int
	PeerIP    string
	PeerPort  int
	Direction Direction
	Name      string
	Size      int64
	Checksum  string
	Verified  bool
	Outcome   string
	Reason    string
	At        time.Time
}

// Journal is a sqlite-backed transfer log. It is safe for concurrent use.
type Journal struct {
	db *sql.DB
}

// Open opens or creates the journal at path.
func Open(path string) (*Journal, error) {
	if strings.TrimSpace(path) == "" {
		path = "data/history.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir failed: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite failed: %w", err)
	}
	db.SetMaxOpenConns(1)
	j := &Journal{db: db}
	if err := j.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS transfers (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT UNIQUE NOT NULL,
			conn_id INTEGER NOT NULL,
			peer_ip TEXT NOT NULL,
			peer_port INTEGER NOT NULL,
			direction TEXT NOT NULL,
			name TEXT NOT NULL,
			size INTEGER NOT NULL,
			checksum TEXT,
			verified INTEGER NOT NULL DEFAULT 0,
			outcome TEXT NOT NULL,
			reason TEXT,
			at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_transfers_at ON transfers(at);`,
	}
	for _, stmt := range stmts {
		if _, err := j.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema failed: %w", err)
		}
	}
	return nil
}

// Close releases the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record stores e, assigning an ID and timestamp when missing.
func (j *Journal) Record(ctx context.Context, e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO transfers (id, conn_id, peer_ip, peer_port, direction, name, size, checksum, verified, outcome, reason, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ConnID, e.PeerIP, e.PeerPort, string(e.Direction), e.Name, e.Size,
		e.Checksum, boolToInt(e.Verified), e.Outcome, e.Reason, e.At.UnixNano(),
	)
	if err != nil {
		return Entry{}, fmt.Errorf("insert transfer failed: %w", err)
	}
	return e, nil
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, conn_id, peer_ip, peer_port, direction, name, size, checksum, verified, outcome, reason, at
		FROM transfers ORDER BY at DESC, seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query transfers failed: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e         Entry
			direction string
			checksum  sql.NullString
			reason    sql.NullString
			verified  int
			at        int64
		)
		if err := rows.Scan(&e.ID, &e.ConnID, &e.PeerIP, &e.PeerPort, &direction, &e.Name,
			&e.Size, &checksum, &verified, &e.Outcome, &reason, &at); err != nil {
			return nil, fmt.Errorf("scan transfer failed: %w", err)
		}
		e.Direction = Direction(direction)
		e.Checksum = checksum.String
		e.Reason = reason.String
		e.Verified = verified != 0
		e.At = time.Unix(0, at)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read transfers failed: %w", err)
	}
	return out, nil
}

// Observe records file events and ignores everything else. It matches the
// events.Hub subscriber signature.
func (j *Journal) Observe(ev events.Event) error {
	entry, ok := EntryFromEvent(ev)
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := j.Record(ctx, entry)
	return err
}

// EntryFromEvent converts a file event to a journal entry.
func EntryFromEvent(ev events.Event) (Entry, bool) {
	var (
		outcome   string
		direction = DirectionIn
	)
	switch ev.Kind {
	case events.KindFileReceived:
		outcome = OutcomeReceived
	case events.KindFileCorrupted:
		outcome = OutcomeCorrupted
	case events.KindFileAborted:
		outcome = OutcomeAborted
	case events.KindFileFailed:
		outcome = OutcomeFailed
	case events.KindFileSent:
		outcome = OutcomeSent
		direction = DirectionOut
	default:
		return Entry{}, false
	}
	e := Entry{
		ConnID:    ev.ConnID,
		PeerIP:    ev.Peer.IP,
		PeerPort:  ev.Peer.Port,
		Direction: direction,
		Outcome:   outcome,
		Reason:    ev.Reason,
		At:        ev.At,
	}
	if ev.File != nil {
		e.Name = ev.File.Name
		e.Size = ev.File.Size
		e.Checksum = ev.File.Checksum
		e.Verified = ev.File.Verified
	}
	return e, true
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
