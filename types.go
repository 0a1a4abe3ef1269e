package iwa

import (
	"path"
	"strings"

	"github.com/google/uuid"
)

// FormatVersion is the version of the encryption parameter blob this
// package reads and writes.
const FormatVersion uint16 = 2

// Well-known entry names inside a package.
const (
	PropertiesEntry         = "Metadata/Properties.plist"
	DocumentIdentifierEntry = "Metadata/DocumentIdentifier"
	PasswordVerifierEntry   = ".iwpv2"
	PasswordHintEntry       = ".iwph"

	componentPrefix = "Index/"
	componentSuffix = ".iwa"
)

// Kind identifies the document family whose schema governs a package.
type Kind string

const (
	KindKeynote Kind = "com.apple.iwork.keynote.sffkey"
	KindPages   Kind = "com.apple.iwork.pages.sffpages"
	KindNumbers Kind = "com.apple.iwork.numbers.sffnumbers"
)

var kindExtensions = map[string]Kind{
	".key":     KindKeynote,
	".pages":   KindPages,
	".numbers": KindNumbers,
}

// KindForPath derives the package kind from a file name extension.
func KindForPath(p string) (Kind, bool) {
	k, ok := kindExtensions[strings.ToLower(path.Ext(p))]
	return k, ok
}

// ParseKind accepts either a type identifier or a short family name.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "keynote", "key", string(KindKeynote):
		return KindKeynote, nil
	case "pages", string(KindPages):
		return KindPages, nil
	case "numbers", string(KindNumbers):
		return KindNumbers, nil
	}
	return "", ErrUnknownKind
}

// Properties is the package identity read from the properties entry.
type Properties struct {
	DocumentID        uuid.UUID
	VersionID         uuid.UUID
	FileFormatVersion string
	Revision          string
	IsMultiPage       bool
}

// Record is one decoded message of a component.
type Record struct {
	Identifier       uint64
	MessageType      uint32
	TypeName         string
	Contents         string
	ObjectReferences []uint64
}

// UnknownTypeName is the type name of records whose shape could not be
// resolved or applied.
const UnknownTypeName = "unknown"

func componentEntryName(component string) string {
	return componentPrefix + component + componentSuffix
}

func componentNameForEntry(entry string) (string, bool) {
	if !strings.HasPrefix(entry, componentPrefix) || !strings.HasSuffix(entry, componentSuffix) {
		return "", false
	}
	name := strings.TrimSuffix(strings.TrimPrefix(entry, componentPrefix), componentSuffix)
	if validateContainerPath(name) != nil {
		return "", false
	}
	return name, true
}
