package transfer

import (
	"fmt"
	"hash"
	"os"
	"path/filepath"
	"time"

	"github.com/sheerbytes/peerlink/internal/progress"
	"github.com/sheerbytes/peerlink/pkg/protocol"
)

const maxTempPrefix = 200

// Result describes a finished incoming transfer.
type Result struct {
	Name     string // sanitized name
	Path     string // final location, empty unless the file was kept
	Size     int64
	Checksum string // digest of the bytes actually received
	Verified bool
	Duration time.Duration
	RateBps  float64
}

// Incoming writes one announced payload to disk. Bytes go to a temp file in
// the download directory that is renamed into place only after the payload is
// complete and, when the header carries a checksum, verified.
//
// A failure to create or write the temp file does not stop consumption:
// Write keeps accepting the declared number of bytes so the stream framing
// survives, and Finish reports ErrWriteFailed.
type Incoming struct {
	header    protocol.FileHeader
	name      string
	dir       string
	file      *os.File
	tmpPath   string
	hash      hash.Hash
	remaining int64
	err       error
	meter     *progress.Meter
	closed    bool
}

// Begin starts receiving the payload announced by h into dir.
func Begin(dir string, h protocol.FileHeader) *Incoming {
	in := &Incoming{
		header:    h,
		name:      SanitizeFilename(h.Name),
		dir:       dir,
		hash:      NewChecksum(),
		remaining: h.Size,
		meter:     progress.NewMeter(h.Size),
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		in.err = fmt.Errorf("%w: %v", ErrWriteFailed, err)
		return in
	}
	f, err := os.CreateTemp(dir, tempPattern(in.name))
	if err != nil {
		in.err = fmt.Errorf("%w: %v", ErrWriteFailed, err)
		return in
	}
	in.file = f
	in.tmpPath = f.Name()
	return in
}

// Name returns the sanitized file name.
func (in *Incoming) Name() string {
	return in.name
}

// Header returns the header that announced this transfer.
func (in *Incoming) Header() protocol.FileHeader {
	return in.header
}

// Remaining returns how many payload bytes are still expected.
func (in *Incoming) Remaining() int64 {
	return in.remaining
}

// Write consumes up to Remaining bytes from p and returns how many it took.
func (in *Incoming) Write(p []byte) int {
	n := len(p)
	if int64(n) > in.remaining {
		n = int(in.remaining)
	}
	if n == 0 {
		return 0
	}
	chunk := p[:n]
	in.remaining -= int64(n)
	in.hash.Write(chunk)
	in.meter.Add(n)

	if in.err == nil && in.file != nil {
		if _, err := in.file.Write(chunk); err != nil {
			in.err = fmt.Errorf("%w: %v", ErrWriteFailed, err)
		}
	}
	return n
}

// Finish completes the transfer once Remaining is zero. On checksum mismatch
// or write failure the file is deleted and the error is returned together
// with a Result describing what arrived.
func (in *Incoming) Finish() (Result, error) {
	if in.remaining != 0 {
		return Result{}, fmt.Errorf("transfer of %s incomplete: %d bytes remaining", in.name, in.remaining)
	}
	stats := in.meter.Snapshot()
	res := Result{
		Name:     in.name,
		Size:     in.header.Size,
		Checksum: ChecksumHex(in.hash),
		Duration: stats.Elapsed,
		RateBps:  stats.RateBps,
	}

	if err := in.closeFile(); err != nil && in.err == nil {
		in.err = fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	if in.err != nil {
		in.discard()
		return res, in.err
	}

	if in.header.Verified() && !checksumEqual(res.Checksum, in.header.Checksum) {
		in.discard()
		return res, fmt.Errorf("%w: %s expected %s got %s", ErrChecksumMismatch, in.name, in.header.Checksum, res.Checksum)
	}

	finalPath := filepath.Join(in.dir, in.name)
	if err := os.Rename(in.tmpPath, finalPath); err != nil {
		in.discard()
		return res, fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	in.tmpPath = ""
	res.Path = finalPath
	res.Verified = in.header.Verified()
	return res, nil
}

// Abort drops an unfinished transfer and deletes anything written so far.
func (in *Incoming) Abort() {
	_ = in.closeFile()
	in.discard()
}

// tempPattern keeps the temp name within the usual 255-byte name limit.
func tempPattern(name string) string {
	if len(name) > maxTempPrefix {
		name = name[:maxTempPrefix]
	}
	return "." + name + ".part-*"
}

func (in *Incoming) closeFile() error {
	if in.file == nil || in.closed {
		return nil
	}
	in.closed = true
	return in.file.Close()
}

func (in *Incoming) discard() {
	if in.tmpPath != "" {
		_ = os.Remove(in.tmpPath)
		in.tmpPath = ""
	}
}
