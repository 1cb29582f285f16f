package jfr

import (
	"errors"
	"fmt"
)

// ErrNotJfr is returned by Open when the file's magic bytes are not
// the JFR chunk magic ("FLR\0").
var ErrNotJfr = errors.New("jfr: not a JFR file")

// ErrUnexpectedEOF is returned when a structural read runs past the
// end of the mapped image.
var ErrUnexpectedEOF = errors.New("jfr: unexpected end of file")

// UnsupportedVersionError reports a chunk whose major version is not
// one this reader understands.
type UnsupportedVersionError struct {
	Major, Minor uint16
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("jfr: unsupported version %d.%d", e.Major, e.Minor)
}

// InvalidFormatError reports a structural inconsistency in an
// otherwise recognizable JFR file: a bad string tag, a symbol pool
// entry with the wrong encoding, a constant-pool entry referencing an
// unknown type, and so on.
type InvalidFormatError struct {
	Reason string
}

func (e *InvalidFormatError) Error() string {
	return "jfr: invalid format: " + e.Reason
}

func invalidFormat(reason string) error {
	return &InvalidFormatError{Reason: reason}
}

func invalidFormatf(format string, args ...interface{}) error {
	return &InvalidFormatError{Reason: fmt.Sprintf(format, args...)}
}
