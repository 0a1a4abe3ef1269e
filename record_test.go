package iwa

import (
	"strings"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

func shape(t *testing.T, kind Kind, typ uint32) *Shape {
	t.Helper()
	reg, err := RegistryFor(kind)
	if err != nil {
		t.Fatal(err)
	}
	s, err := reg.ShapeFor(typ)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func tagged(b []byte, num protowire.Number, typ protowire.Type) []byte {
	return protowire.AppendTag(b, num, typ)
}

func TestDecodeRecordNested(t *testing.T) {
	var super []byte
	super = tagged(super, 4, protowire.BytesType)
	super = protowire.AppendString(super, "en_US")
	var show []byte
	show = tagged(show, 1, protowire.VarintType)
	show = protowire.AppendVarint(show, 2)

	var raw []byte
	raw = tagged(raw, 2, protowire.BytesType) // out of field order on the wire
	raw = protowire.AppendBytes(raw, show)
	raw = tagged(raw, 1, protowire.BytesType)
	raw = protowire.AppendBytes(raw, super)

	r := DecodeRecord(raw, 1, shape(t, KindKeynote, 1))
	want := "super {\n  locale_identifier: \"en_US\"\n}\nshow {\n  identifier: 2\n}\n"
	if r.TypeName != "KN.DocumentArchive" || r.Identifier != 1 || r.MessageType != 1 || r.Contents != want {
		t.Fatalf("unexpected record %#v", r)
	}
}

func TestDecodeRecordScalarsAndUnknownFields(t *testing.T) {
	var raw []byte
	raw = tagged(raw, 1, protowire.VarintType)
	raw = protowire.AppendVarint(raw, 3)
	raw = tagged(raw, 3, protowire.Fixed64Type)
	raw = protowire.AppendFixed64(raw, 0x3ff8000000000000) // 1.5
	raw = tagged(raw, 2, protowire.BytesType)
	raw = protowire.AppendString(raw, "Sheet 1")
	raw = tagged(raw, 2, protowire.BytesType)
	raw = protowire.AppendString(raw, "Sheet 2")
	raw = tagged(raw, 99, protowire.VarintType)
	raw = protowire.AppendVarint(raw, 7)

	r := DecodeRecord(raw, 5, shape(t, KindNumbers, 4))
	want := "active_sheet_index: 3\nselected_sheet_names: \"Sheet 1\"\nselected_sheet_names: \"Sheet 2\"\nsheet_zoom: 1.5\n99: 7\n"
	if r.TypeName != "TN.UIStateArchive" || r.Contents != want {
		t.Fatalf("unexpected record %#v", r)
	}
}

func TestDecodeRecordPlaceholders(t *testing.T) {
	raw := []byte{0x0a, 0x05, 0x01}

	r := DecodeRecord(raw, 3, nil)
	if r.TypeName != UnknownTypeName || r.Contents != "3 bytes: 0a0501" || r.Identifier != 3 {
		t.Fatalf("unexpected placeholder %#v", r)
	}

	r = DecodeRecord(raw, 3, shape(t, KindKeynote, 5))
	if r.TypeName != UnknownTypeName || r.MessageType != 5 {
		t.Fatalf("expected placeholder for undecodable payload, got %#v", r)
	}

	long := DecodeRecord(make([]byte, 100), 0, nil)
	if !strings.HasPrefix(long.Contents, "100 bytes: ") || !strings.HasSuffix(long.Contents, "...") {
		t.Fatalf("unexpected summary %q", long.Contents)
	}
}

func TestRecordsForArchives(t *testing.T) {
	reg, err := RegistryFor(KindKeynote)
	if err != nil {
		t.Fatal(err)
	}
	archives := []Archive{{Identifier: 9, Messages: []Message{
		{Type: 3, Payload: nil, ObjectReferences: []uint64{4}},
		{Type: 424242, Payload: []byte{0x08, 0x01}},
	}}}

	recs := recordsForArchives(archives, reg)
	if len(recs) != 2 {
		t.Fatalf("got %d records", len(recs))
	}
	if recs[0].TypeName != "KN.UIStateArchive" || recs[0].Contents != "" || recs[0].ObjectReferences[0] != 4 {
		t.Fatalf("unexpected record %#v", recs[0])
	}
	if recs[1].TypeName != UnknownTypeName || recs[1].MessageType != 424242 || recs[1].Identifier != 9 {
		t.Fatalf("unexpected record %#v", recs[1])
	}

	for _, r := range recordsForArchives(archives, nil) {
		if r.TypeName != UnknownTypeName {
			t.Fatalf("expected placeholders without a registry, got %#v", r)
		}
	}
}
