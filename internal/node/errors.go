package node

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sheerbytes/peerlink/internal/transfer"
)

var (
	ErrListen              = errors.New("failed to listen")
	ErrClosed              = errors.New("node closed")
	ErrInvalidID           = errors.New("connection id must be an integer")
	ErrNoSuchConnection    = errors.New("no such connection")
	ErrMessageTooLong      = errors.New("message too long")
	ErrInvalidMessage      = errors.New("invalid message")
	ErrInvalidPort         = errors.New("invalid port")
	ErrInvalidAddress      = errors.New("invalid address")
	ErrSelfConnect         = errors.New("cannot connect to self")
	ErrDuplicateConnection = errors.New("already connected")
	ErrConnectTimeout      = errors.New("connection timed out")
	ErrConnectRefused      = errors.New("connection refused")
	ErrSendFailed          = errors.New("send failed")
)

// File errors surface unchanged from the transfer package.
var (
	ErrFileNotFound      = transfer.ErrFileNotFound
	ErrNotRegularFile    = transfer.ErrNotRegularFile
	ErrPermissionDenied  = transfer.ErrPermissionDenied
	ErrInvalidFilename   = transfer.ErrInvalidFilename
	ErrFilenameTooLong   = transfer.ErrFilenameTooLong
	ErrChecksumMismatch  = transfer.ErrChecksumMismatch
	ErrStorageWriteFault = transfer.ErrWriteFailed
)

// Class groups errors by how a caller should react to them.
type Class int

const (
	ClassUnknown Class = iota
	// ClassValidation is input the node refuses; nothing was attempted.
	ClassValidation
	// ClassNotFound is a connection id that is not live.
	ClassNotFound
	// ClassTransient is an I/O failure on one connection or dial.
	ClassTransient
	// ClassCorruption is a payload that failed verification.
	ClassCorruption
	// ClassFatal prevents the node from running at all.
	ClassFatal
)

func (c Class) String() string {
	switch c {
	case ClassValidation:
		return "validation"
	case ClassNotFound:
		return "not-found"
	case ClassTransient:
		return "transient"
	case ClassCorruption:
		return "corruption"
	case ClassFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Classify maps an error returned by the node to its Class.
func Classify(err error) Class {
	switch {
	case err == nil:
		return ClassUnknown
	case errors.Is(err, ErrListen):
		return ClassFatal
	case errors.Is(err, ErrInvalidID), errors.Is(err, ErrInvalidPort), errors.Is(err, ErrInvalidAddress),
		errors.Is(err, ErrMessageTooLong), errors.Is(err, ErrInvalidMessage),
		errors.Is(err, ErrSelfConnect), errors.Is(err, ErrDuplicateConnection),
		errors.Is(err, ErrNotRegularFile), errors.Is(err, ErrInvalidFilename),
		errors.Is(err, ErrFilenameTooLong), errors.Is(err, ErrPermissionDenied),
		errors.Is(err, ErrFileNotFound):
		return ClassValidation
	case errors.Is(err, ErrNoSuchConnection):
		return ClassNotFound
	case errors.Is(err, ErrChecksumMismatch):
		return ClassCorruption
	case errors.Is(err, ErrConnectTimeout), errors.Is(err, ErrConnectRefused),
		errors.Is(err, ErrSendFailed), errors.Is(err, ErrStorageWriteFault),
		errors.Is(err, ErrClosed):
		return ClassTransient
	default:
		return ClassUnknown
	}
}

// ParseID parses a user-supplied connection id.
func ParseID(s string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return id, nil
}

// ParsePort parses a TCP port in 1..65535.
func ParsePort(s string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPort, s)
	}
	return port, nil
}
