package iwa

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"howett.net/plist"
)

type propertiesPlist struct {
	DocumentUUID      string `plist:"documentUUID,omitempty"`
	VersionUUID       string `plist:"versionUUID,omitempty"`
	FileFormatVersion string `plist:"fileFormatVersion,omitempty"`
	Revision          string `plist:"revision,omitempty"`
	IsMultiPage       bool   `plist:"isMultiPage,omitempty"`
}

// DecodeProperties parses the properties entry. documentIdentifier is the
// optional content of the document identifier entry, used when the
// property list carries no document id.
func DecodeProperties(data, documentIdentifier []byte) (Properties, error) {
	var raw propertiesPlist
	if _, err := plist.Unmarshal(data, &raw); err != nil {
		return Properties{}, fmt.Errorf("%w: properties: %v", ErrCorruptEntry, err)
	}
	docID := raw.DocumentUUID
	if docID == "" {
		docID = strings.TrimSpace(string(documentIdentifier))
	}
	if docID == "" {
		return Properties{}, fmt.Errorf("%w: properties carry no document id", ErrCorruptEntry)
	}
	p := Properties{
		FileFormatVersion: raw.FileFormatVersion,
		Revision:          raw.Revision,
		IsMultiPage:       raw.IsMultiPage,
	}
	var err error
	if p.DocumentID, err = uuid.Parse(docID); err != nil {
		return Properties{}, fmt.Errorf("%w: document id %q: %v", ErrCorruptEntry, docID, err)
	}
	if raw.VersionUUID != "" {
		if p.VersionID, err = uuid.Parse(raw.VersionUUID); err != nil {
			return Properties{}, fmt.Errorf("%w: version id %q: %v", ErrCorruptEntry, raw.VersionUUID, err)
		}
	}
	return p, nil
}

// EncodeProperties writes p as a binary property list.
func EncodeProperties(p Properties) ([]byte, error) {
	raw := propertiesPlist{
		FileFormatVersion: p.FileFormatVersion,
		Revision:          p.Revision,
		IsMultiPage:       p.IsMultiPage,
	}
	if p.DocumentID != uuid.Nil {
		raw.DocumentUUID = strings.ToUpper(p.DocumentID.String())
	}
	if p.VersionID != uuid.Nil {
		raw.VersionUUID = strings.ToUpper(p.VersionID.String())
	}
	var buf bytes.Buffer
	enc := plist.NewEncoderForFormat(&buf, plist.BinaryFormat)
	if err := enc.Encode(raw); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func readProperties(c *Container) (Properties, error) {
	data, err := c.DataForEntry(PropertiesEntry)
	if err != nil {
		return Properties{}, err
	}
	var docIdent []byte
	if c.Has(DocumentIdentifierEntry) {
		if docIdent, err = c.DataForEntry(DocumentIdentifierEntry); err != nil {
			return Properties{}, err
		}
	}
	return DecodeProperties(data, docIdent)
}
