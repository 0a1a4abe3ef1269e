package iwa

import (
	"encoding/hex"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

const (
	renderIndent       = "  "
	placeholderPreview = 32
	maxRenderDepth     = 64
)

// DecodeRecord applies shape to raw and renders the result. A nil shape, or
// one that does not fit raw, produces a placeholder record of type
// UnknownTypeName instead of an error.
func DecodeRecord(raw []byte, identifier uint64, shape *Shape) Record {
	if shape == nil {
		return placeholderRecord(raw, identifier, 0)
	}
	m := dynamicpb.NewMessage(shape.Descriptor)
	if err := (proto.UnmarshalOptions{}).Unmarshal(raw, m); err != nil {
		return placeholderRecord(raw, identifier, shape.MessageType)
	}
	var sb strings.Builder
	if err := renderMessage(&sb, m, 0); err != nil {
		return placeholderRecord(raw, identifier, shape.MessageType)
	}
	return Record{
		Identifier:  identifier,
		MessageType: shape.MessageType,
		TypeName:    shape.TypeName(),
		Contents:    sb.String(),
	}
}

func placeholderRecord(raw []byte, identifier uint64, messageType uint32) Record {
	return Record{
		Identifier:  identifier,
		MessageType: messageType,
		TypeName:    UnknownTypeName,
		Contents:    summarizeBytes(raw),
	}
}

func summarizeBytes(b []byte) string {
	n := min(len(b), placeholderPreview)
	s := fmt.Sprintf("%d bytes: %s", len(b), hex.EncodeToString(b[:n]))
	if n < len(b) {
		s += "..."
	}
	return s
}

// renderMessage writes one line per populated field in field number order,
// followed by unknown fields.
func renderMessage(sb *strings.Builder, m protoreflect.Message, depth int) error {
	if depth > maxRenderDepth {
		return fmt.Errorf("message nesting deeper than %d", maxRenderDepth)
	}
	fields := m.Descriptor().Fields()
	ordered := make([]protoreflect.FieldDescriptor, 0, fields.Len())
	for i := 0; i < fields.Len(); i++ {
		ordered = append(ordered, fields.Get(i))
	}
	slices.SortFunc(ordered, func(a, b protoreflect.FieldDescriptor) int {
		return int(a.Number()) - int(b.Number())
	})

	for _, fd := range ordered {
		if !m.Has(fd) {
			continue
		}
		v := m.Get(fd)
		if fd.IsList() {
			l := v.List()
			for i := 0; i < l.Len(); i++ {
				if err := renderField(sb, fd, l.Get(i), depth); err != nil {
					return err
				}
			}
			continue
		}
		if err := renderField(sb, fd, v, depth); err != nil {
			return err
		}
	}
	return renderUnknown(sb, m.GetUnknown(), depth)
}

func renderField(sb *strings.Builder, fd protoreflect.FieldDescriptor, v protoreflect.Value, depth int) error {
	indent := strings.Repeat(renderIndent, depth)
	if fd.Kind() == protoreflect.MessageKind || fd.Kind() == protoreflect.GroupKind {
		sb.WriteString(indent + string(fd.Name()) + " {\n")
		if err := renderMessage(sb, v.Message(), depth+1); err != nil {
			return err
		}
		sb.WriteString(indent + "}\n")
		return nil
	}
	sb.WriteString(indent + string(fd.Name()) + ": " + scalarString(fd, v) + "\n")
	return nil
}

func scalarString(fd protoreflect.FieldDescriptor, v protoreflect.Value) string {
	switch fd.Kind() {
	case protoreflect.BoolKind:
		return strconv.FormatBool(v.Bool())
	case protoreflect.EnumKind:
		if ev := fd.Enum().Values().ByNumber(v.Enum()); ev != nil {
			return string(ev.Name())
		}
		return strconv.FormatInt(int64(v.Enum()), 10)
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind,
		protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		return strconv.FormatInt(v.Int(), 10)
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind,
		protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		return strconv.FormatUint(v.Uint(), 10)
	case protoreflect.FloatKind:
		return strconv.FormatFloat(v.Float(), 'g', -1, 32)
	case protoreflect.DoubleKind:
		return strconv.FormatFloat(v.Float(), 'g', -1, 64)
	case protoreflect.StringKind:
		return strconv.Quote(v.String())
	case protoreflect.BytesKind:
		return strconv.Quote(string(v.Bytes()))
	}
	return v.String()
}

// renderUnknown lists fields the shape does not declare by number.
func renderUnknown(sb *strings.Builder, b []byte, depth int) error {
	indent := strings.Repeat(renderIndent, depth)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		var s string
		switch typ {
		case protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return protowire.ParseError(m)
			}
			s, n = strconv.FormatUint(v, 10), m
		case protowire.Fixed32Type:
			v, m := protowire.ConsumeFixed32(b)
			if m < 0 {
				return protowire.ParseError(m)
			}
			s, n = fmt.Sprintf("0x%08x (%g)", v, math.Float32frombits(v)), m
		case protowire.Fixed64Type:
			v, m := protowire.ConsumeFixed64(b)
			if m < 0 {
				return protowire.ParseError(m)
			}
			s, n = fmt.Sprintf("0x%016x (%g)", v, math.Float64frombits(v)), m
		case protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return protowire.ParseError(m)
			}
			s, n = strconv.Quote(string(v)), m
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return protowire.ParseError(m)
			}
			s, n = summarizeBytes(b[:m]), m
		}
		sb.WriteString(indent + strconv.Itoa(int(num)) + ": " + s + "\n")
		b = b[n:]
	}
	return nil
}

// recordsForArchives resolves and decodes every message. A nil registry
// degrades all records to placeholders.
func recordsForArchives(archives []Archive, reg *Registry) []Record {
	var out []Record
	for _, a := range archives {
		for _, m := range a.Messages {
			var shape *Shape
			if reg != nil {
				shape, _ = reg.ShapeFor(m.Type)
			}
			r := DecodeRecord(m.Payload, a.Identifier, shape)
			r.MessageType = m.Type
			r.ObjectReferences = m.ObjectReferences
			out = append(out, r)
		}
	}
	return out
}
