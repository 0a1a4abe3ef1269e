package iwa

import (
	"errors"
	"io/fs"
)

var (
	ErrNotAZip         = errors.New("iwa: not a zip container")
	ErrTruncated       = errors.New("iwa: truncated container")
	ErrNoSuchEntry     = errors.New("iwa: no such entry")
	ErrCorruptEntry    = errors.New("iwa: corrupt entry")
	ErrTruncatedChunk  = errors.New("iwa: truncated chunk")
	ErrCorruptChunk    = errors.New("iwa: corrupt chunk")
	ErrNotAPackage     = errors.New("iwa: not a document package")
	ErrNoSuchComponent = errors.New("iwa: no such component")
	ErrLimitExceeded   = errors.New("iwa: limit exceeded")

	ErrNeedsPassword = errors.New("iwa: package is encrypted and needs a password")
	ErrWrongPassword = errors.New("iwa: wrong password")
	ErrDecrypt       = errors.New("iwa: decryption failed")
	ErrNotEncrypted  = errors.New("iwa: package is not encrypted")

	ErrUnknownKind        = errors.New("iwa: unknown package kind")
	ErrUnknownMessageType = errors.New("iwa: unknown message type")

	ErrClosed = errors.New("iwa: bundle is closed")
)

// ComponentError reports a failure decoding a single component. Sibling
// components stay decodable.
type ComponentError struct {
	Component string
	Err       error
}

func (e *ComponentError) Error() string {
	return "component " + e.Component + ": " + e.Err.Error()
}

func (e *ComponentError) Unwrap() error { return e.Err }

// Class groups errors the way callers are expected to react to them.
type Class int

const (
	ClassNone Class = iota
	ClassStructural
	ClassCrypto
	ClassSchema
	ClassIO
)

func (c Class) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassStructural:
		return "structural"
	case ClassCrypto:
		return "crypto"
	case ClassSchema:
		return "schema"
	case ClassIO:
		return "io"
	}
	return "unknown"
}

// Classify maps err onto its error class. Anything not produced by this
// package is treated as an I/O failure of the underlying storage.
func Classify(err error) Class {
	switch {
	case err == nil:
		return ClassNone
	case errors.Is(err, ErrNeedsPassword), errors.Is(err, ErrWrongPassword),
		errors.Is(err, ErrDecrypt), errors.Is(err, ErrNotEncrypted):
		return ClassCrypto
	case errors.Is(err, ErrUnknownKind), errors.Is(err, ErrUnknownMessageType):
		return ClassSchema
	case errors.Is(err, ErrNotAZip), errors.Is(err, ErrTruncated),
		errors.Is(err, ErrNoSuchEntry), errors.Is(err, ErrCorruptEntry),
		errors.Is(err, ErrTruncatedChunk), errors.Is(err, ErrCorruptChunk),
		errors.Is(err, ErrNotAPackage), errors.Is(err, ErrNoSuchComponent),
		errors.Is(err, ErrLimitExceeded):
		return ClassStructural
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, fs.ErrPermission):
		return ClassIO
	}
	return ClassIO
}

// IsPasswordError reports whether err can be recovered from by asking the
// user for a (different) password.
func IsPasswordError(err error) bool {
	return errors.Is(err, ErrNeedsPassword) || errors.Is(err, ErrWrongPassword)
}
