package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// FileHeaderPrefix starts every file header line.
	FileHeaderPrefix = "__FILE__"
	// ColonHeaderPrefix starts the legacy single-shot frame FILE:<name>:<size>.
	ColonHeaderPrefix = "FILE:"
	// MaxMessageLen is the largest chat message a node will send, in bytes.
	// Receivers do not enforce it.
	MaxMessageLen = 100
)

// HeaderFormat identifies which file header variant announced a transfer.
type HeaderFormat int

const (
	// FormatChecksum is the canonical `__FILE__ name size sha256` header.
	FormatChecksum HeaderFormat = iota
	// FormatNoChecksum is `__FILE__ name size`, accepted as unverified.
	FormatNoChecksum
	// FormatColon is `FILE:name:size`, accepted as unverified.
	FormatColon
)

func (f HeaderFormat) String() string {
	switch f {
	case FormatChecksum:
		return "checksum"
	case FormatNoChecksum:
		return "no-checksum"
	case FormatColon:
		return "colon"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

var (
	// ErrMalformedHeader indicates a __FILE__ line with the wrong field count.
	ErrMalformedHeader = errors.New("malformed file header")
	// ErrInvalidSize indicates a header size that is not a non-negative integer.
	ErrInvalidSize = errors.New("invalid file size")
)

// FileHeader announces a file payload of Size raw bytes following the header line.
type FileHeader struct {
	Name     string
	Size     int64
	Checksum string // lowercase hex SHA-256, empty when unverified
	Format   HeaderFormat
}

// Verified reports whether the header carries a checksum to verify against.
func (h FileHeader) Verified() bool {
	return h.Checksum != ""
}

// ParseHeaderLine inspects one line (without its trailing newline).
//
// claimed is true when the line is a file header candidate: such a line must
// never be shown as chat. err is non-nil for a claimed line that cannot be
// used, in which case the caller drops it. Colon frames are only claimed when
// well formed, since "FILE:" is ordinary text too.
func ParseHeaderLine(line string) (h FileHeader, claimed bool, err error) {
	if strings.HasPrefix(line, ColonHeaderPrefix) {
		h, ok := parseColonHeader(line)
		return h, ok, nil
	}
	fields := strings.Fields(line)
	if len(fields) == 0 || fields[0] != FileHeaderPrefix {
		return FileHeader{}, false, nil
	}
	if len(fields) != 3 && len(fields) != 4 {
		return FileHeader{}, true, fmt.Errorf("%w: %d fields", ErrMalformedHeader, len(fields))
	}
	size, err := parseSize(fields[2])
	if err != nil {
		return FileHeader{}, true, err
	}
	h = FileHeader{
		Name:   fields[1],
		Size:   size,
		Format: FormatNoChecksum,
	}
	if len(fields) == 4 {
		h.Checksum = strings.ToLower(fields[3])
		h.Format = FormatChecksum
	}
	return h, true, nil
}

func parseColonHeader(line string) (FileHeader, bool) {
	parts := strings.Split(line, ":")
	if len(parts) != 3 || parts[1] == "" {
		return FileHeader{}, false
	}
	size, err := parseSize(parts[2])
	if err != nil {
		return FileHeader{}, false
	}
	return FileHeader{Name: parts[1], Size: size, Format: FormatColon}, true
}

func parseSize(s string) (int64, error) {
	size, err := strconv.ParseInt(s, 10, 64)
	if err != nil || size < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}
	return size, nil
}

// FormatFileHeader renders the canonical header line, newline included.
func FormatFileHeader(name string, size int64, checksum string) string {
	if checksum == "" {
		return fmt.Sprintf("%s %s %d\n", FileHeaderPrefix, name, size)
	}
	return fmt.Sprintf("%s %s %d %s\n", FileHeaderPrefix, name, size, checksum)
}

// IsHeaderLike reports whether a chat message would be read by a peer as a
// file header instead of chat.
func IsHeaderLike(text string) bool {
	_, claimed, _ := ParseHeaderLine(text)
	return claimed
}
