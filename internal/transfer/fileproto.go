package transfer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sheerbytes/peerlink/pkg/protocol"
)

var (
	// ErrFileNotFound indicates the file to send does not exist.
	ErrFileNotFound = errors.New("file not found")
	// ErrNotRegularFile indicates the path to send is a directory, device or similar.
	ErrNotRegularFile = errors.New("not a regular file")
	// ErrPermissionDenied indicates the file to send cannot be read.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrInvalidFilename indicates a name that cannot be carried in a header line.
	ErrInvalidFilename = errors.New("invalid filename")
	// ErrFilenameTooLong indicates the filename exceeds the maximum length.
	ErrFilenameTooLong = errors.New("filename too long")
	// ErrChecksumMismatch indicates the received payload does not match its header.
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrWriteFailed indicates the payload could not be stored on disk.
	ErrWriteFailed = errors.New("failed to store file")
)

// Outgoing is a file loaded for sending: its header and payload are written
// back to back as one frame.
type Outgoing struct {
	Name     string
	Data     []byte
	Checksum string
}

// Size returns the payload size in bytes.
func (o Outgoing) Size() int64 {
	return int64(len(o.Data))
}

// Header returns the canonical header line announcing the payload.
func (o Outgoing) Header() []byte {
	return []byte(protocol.FormatFileHeader(o.Name, o.Size(), o.Checksum))
}

// LoadFile reads the file at filePath fully and computes its checksum.
// The header carries the base name only.
func LoadFile(filePath string) (Outgoing, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return Outgoing{}, classifyOpenError(filePath, err)
	}
	if !info.Mode().IsRegular() {
		return Outgoing{}, fmt.Errorf("%w: %s", ErrNotRegularFile, filePath)
	}

	name := filepath.Base(filePath)
	if err := validateOutgoingName(name); err != nil {
		return Outgoing{}, fmt.Errorf("%w: %q", err, name)
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return Outgoing{}, classifyOpenError(filePath, err)
	}

	return Outgoing{
		Name:     name,
		Data:     data,
		Checksum: ChecksumBytes(data),
	}, nil
}

func classifyOpenError(filePath string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %s", ErrFileNotFound, filePath)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %s", ErrPermissionDenied, filePath)
	default:
		return fmt.Errorf("failed to read file: %w", err)
	}
}
