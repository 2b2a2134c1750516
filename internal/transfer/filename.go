package transfer

import (
	"path"
	"strings"
	"unicode"
)

const (
	maxFilenameLength = 255
	fallbackFilename  = "received.bin"
)

// SanitizeFilename reduces a peer-supplied name to a bare file name so a
// transfer can never write outside the download directory. Both slash styles
// count as separators.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.ReplaceAll(name, "\x00", "")
	base := path.Base(name)
	switch base {
	case "", ".", "..", "/":
		return fallbackFilename
	}
	if len(base) > maxFilenameLength {
		base = base[:maxFilenameLength]
	}
	return base
}

// validateOutgoingName ensures a name can be framed in a header line:
// non-empty, no whitespace, within the length limit.
func validateOutgoingName(name string) error {
	if name == "" || name == "." || name == ".." {
		return ErrInvalidFilename
	}
	if len(name) > maxFilenameLength {
		return ErrFilenameTooLong
	}
	if strings.IndexFunc(name, unicode.IsSpace) >= 0 {
		return ErrInvalidFilename
	}
	return nil
}
