// Package fixture builds document packages in memory for tests.
package fixture

import (
	"bytes"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/logicossoftware/go-iwa"
)

// Fixed identities so tests can assert on them.
var (
	DocumentID = uuid.MustParse("5A3F1C2D-8E4B-4F6A-9C1D-2B3E4F5A6B7C")
	VersionID  = uuid.MustParse("0B1C2D3E-4F5A-4B6C-8D7E-8F9A0B1C2D3E")
)

// LowIterations keeps key derivation fast in tests.
const LowIterations = 16

type Component struct {
	Name     string
	Archives []iwa.Archive
	// Raw replaces the chunk stream built from Archives. It is still
	// encrypted when the package has a password.
	Raw []byte
}

type Package struct {
	Properties iwa.Properties
	Components []Component

	// Password encrypts every component when non-empty.
	Password   string
	Iterations uint32
	Hint       string

	// DocumentIdentifier is written to Metadata/DocumentIdentifier when set.
	DocumentIdentifier string
	OmitProperties     bool
	// Extra entries are written verbatim after the components.
	Extra map[string][]byte
}

// Build returns the zip bytes of the package and, for encrypted packages,
// the content key protecting it.
func (p Package) Build() ([]byte, *iwa.ContentKey, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	var key *iwa.ContentKey
	if p.Password != "" {
		it := p.Iterations
		if it == 0 {
			it = LowIterations
		}
		params, k, err := iwa.NewEncryptionParameters(p.Password, it)
		if err != nil {
			return nil, nil, err
		}
		key = k
		raw, err := params.MarshalBinary()
		if err != nil {
			return nil, nil, err
		}
		if err := put(zw, iwa.PasswordVerifierEntry, raw); err != nil {
			return nil, nil, err
		}
		if p.Hint != "" {
			if err := put(zw, iwa.PasswordHintEntry, []byte(p.Hint)); err != nil {
				return nil, nil, err
			}
		}
	}

	if !p.OmitProperties {
		props, err := iwa.EncodeProperties(p.Properties)
		if err != nil {
			return nil, nil, err
		}
		if err := put(zw, iwa.PropertiesEntry, props); err != nil {
			return nil, nil, err
		}
	}
	if p.DocumentIdentifier != "" {
		if err := put(zw, iwa.DocumentIdentifierEntry, []byte(p.DocumentIdentifier)); err != nil {
			return nil, nil, err
		}
	}

	for _, c := range p.Components {
		data := c.Raw
		if data == nil {
			payload, err := ComponentPayload(c.Archives)
			if err != nil {
				return nil, nil, err
			}
			data = iwa.EncodeChunks(payload)
		}
		if key != nil {
			enc, err := iwa.EncryptStream(key, data)
			if err != nil {
				return nil, nil, err
			}
			data = enc
		}
		if err := put(zw, "Index/"+c.Name+".iwa", data); err != nil {
			return nil, nil, err
		}
	}

	for _, name := range slices.Sorted(maps.Keys(p.Extra)) {
		if err := put(zw, name, p.Extra[name]); err != nil {
			return nil, nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, nil, err
	}
	return buf.Bytes(), key, nil
}

// WriteFile builds the package into dir/name and returns its path.
func (p Package) WriteFile(dir, name string) (string, *iwa.ContentKey, error) {
	b, key, err := p.Build()
	if err != nil {
		return "", nil, err
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return "", nil, err
	}
	return path, key, nil
}

// ComponentPayload concatenates the encoded archives.
func ComponentPayload(archives []iwa.Archive) ([]byte, error) {
	var out []byte
	for _, a := range archives {
		var err error
		if out, err = iwa.AppendArchive(out, a); err != nil {
			return nil, fmt.Errorf("archive %d: %w", a.Identifier, err)
		}
	}
	return out, nil
}

func put(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Payload builds message payloads field by field.
type Payload []byte

func (p Payload) Varint(num protowire.Number, v uint64) Payload {
	b := protowire.AppendTag([]byte(p), num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func (p Payload) Text(num protowire.Number, s string) Payload {
	b := protowire.AppendTag([]byte(p), num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func (p Payload) Message(num protowire.Number, m Payload) Payload {
	b := protowire.AppendTag([]byte(p), num, protowire.BytesType)
	return protowire.AppendBytes(b, m)
}

// Ref appends a reference to another object.
func (p Payload) Ref(num protowire.Number, id uint64) Payload {
	return p.Message(num, Payload(nil).Varint(1, id))
}

// Keynote returns a small Keynote package: a document object pointing at a
// show, and a slide component with one named slide.
func Keynote() Package {
	return Package{
		Properties: iwa.Properties{
			DocumentID:        DocumentID,
			VersionID:         VersionID,
			FileFormatVersion: "14.1.1",
			Revision:          "7",
		},
		Components: []Component{
			{Name: "Document", Archives: []iwa.Archive{
				{Identifier: 1, Messages: []iwa.Message{{
					Type: 1,
					Payload: Payload(nil).
						Message(1, Payload(nil).Text(4, "en_US")).
						Ref(2, 2),
					ObjectReferences: []uint64{2},
				}}},
				{Identifier: 2, Messages: []iwa.Message{{
					Type:    2,
					Payload: Payload(nil).Varint(4, 1),
				}}},
			}},
			{Name: "Slide", Archives: []iwa.Archive{
				{Identifier: 10, Messages: []iwa.Message{{
					Type:    5,
					Payload: Payload(nil).Text(6, "Title Slide"),
				}}},
			}},
			{Name: "Metadata", Archives: []iwa.Archive{
				{Identifier: 20, Messages: []iwa.Message{{
					Type:    11006,
					Payload: Payload(nil).Varint(1, 20).Varint(2, 3),
				}}},
			}},
		},
	}
}

// Encrypted returns the Keynote package protected by password.
func Encrypted(password, hint string) Package {
	p := Keynote()
	p.Password = password
	p.Hint = hint
	return p
}
