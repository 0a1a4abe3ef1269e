package iwa

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the archive header messages.
const (
	archiveIdentifierField  protowire.Number = 1
	archiveMessageInfoField protowire.Number = 2

	messageTypeField       protowire.Number = 1
	messageVersionField    protowire.Number = 2
	messageLengthField     protowire.Number = 3
	messageObjectRefsField protowire.Number = 5
	messageDataRefsField   protowire.Number = 6
)

// Message is one serialized message of an archive together with the
// metadata its header declares.
type Message struct {
	Type             uint32
	Versions         []uint32
	ObjectReferences []uint64
	DataReferences   []uint64
	Payload          []byte
}

// Archive is an identified object. Its first message holds the object
// itself; further messages belong to the same identifier.
type Archive struct {
	Identifier uint64
	Messages   []Message
}

// ParseArchives splits a decoded component into its archives.
func ParseArchives(data []byte) ([]Archive, error) {
	return parseArchives(data, defaultLimits())
}

func parseArchives(data []byte, limits Limits) ([]Archive, error) {
	var out []Archive
	for len(data) > 0 {
		hdrLen, n := protowire.ConsumeVarint(data)
		if n < 0 {
			return nil, fmt.Errorf("%w: archive %d header length: %v", ErrCorruptEntry, len(out), protowire.ParseError(n))
		}
		data = data[n:]
		if hdrLen > uint64(len(data)) {
			return nil, fmt.Errorf("%w: archive %d header needs %d bytes, %d left", ErrCorruptEntry, len(out), hdrLen, len(data))
		}
		a, lengths, err := parseArchiveInfo(data[:hdrLen], limits)
		if err != nil {
			return nil, fmt.Errorf("%w: archive %d: %v", ErrCorruptEntry, len(out), err)
		}
		data = data[hdrLen:]
		for i, l := range lengths {
			if l > uint64(len(data)) {
				return nil, fmt.Errorf("%w: archive %d message %d needs %d bytes, %d left", ErrCorruptEntry, len(out), i, l, len(data))
			}
			a.Messages[i].Payload = data[:l:l]
			data = data[l:]
		}
		out = append(out, a)
	}
	return out, nil
}

// parseArchiveInfo reads the header and returns the declared payload length
// of every message in order.
func parseArchiveInfo(b []byte, limits Limits) (Archive, []uint64, error) {
	var a Archive
	var lengths []uint64
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Archive{}, nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch {
		case num == archiveIdentifierField && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Archive{}, nil, protowire.ParseError(n)
			}
			a.Identifier = v
			b = b[n:]
		case num == archiveMessageInfoField && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return Archive{}, nil, protowire.ParseError(n)
			}
			if len(a.Messages) >= limits.MaxMessagesPerArchive {
				return Archive{}, nil, fmt.Errorf("more than %d messages", limits.MaxMessagesPerArchive)
			}
			m, l, err := parseMessageInfo(v)
			if err != nil {
				return Archive{}, nil, fmt.Errorf("message info %d: %w", len(a.Messages), err)
			}
			a.Messages = append(a.Messages, m)
			lengths = append(lengths, l)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Archive{}, nil, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return a, lengths, nil
}

func parseMessageInfo(b []byte) (Message, uint64, error) {
	var m Message
	var length uint64
	var hasType, hasLength bool
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Message{}, 0, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case messageTypeField, messageLengthField:
			if typ != protowire.VarintType {
				return Message{}, 0, fmt.Errorf("field %d has wire type %d", num, typ)
			}
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Message{}, 0, protowire.ParseError(n)
			}
			if v > 1<<32-1 {
				return Message{}, 0, fmt.Errorf("field %d value %d overflows uint32", num, v)
			}
			if num == messageTypeField {
				m.Type, hasType = uint32(v), true
			} else {
				length, hasLength = v, true
			}
			b = b[n:]
		case messageVersionField, messageObjectRefsField, messageDataRefsField:
			vs, n, err := consumeUint64s(typ, b)
			if err != nil {
				return Message{}, 0, fmt.Errorf("field %d: %w", num, err)
			}
			switch num {
			case messageVersionField:
				for _, v := range vs {
					m.Versions = append(m.Versions, uint32(v))
				}
			case messageObjectRefsField:
				m.ObjectReferences = append(m.ObjectReferences, vs...)
			default:
				m.DataReferences = append(m.DataReferences, vs...)
			}
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Message{}, 0, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	if !hasType || !hasLength {
		return Message{}, 0, fmt.Errorf("missing type or length")
	}
	return m, length, nil
}

// consumeUint64s reads a repeated varint field in packed or unpacked form.
func consumeUint64s(typ protowire.Type, b []byte) ([]uint64, int, error) {
	switch typ {
	case protowire.VarintType:
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return nil, 0, protowire.ParseError(n)
		}
		return []uint64{v}, n, nil
	case protowire.BytesType:
		packed, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, 0, protowire.ParseError(n)
		}
		var out []uint64
		for len(packed) > 0 {
			v, m := protowire.ConsumeVarint(packed)
			if m < 0 {
				return nil, 0, protowire.ParseError(m)
			}
			out = append(out, v)
			packed = packed[m:]
		}
		return out, n, nil
	}
	return nil, 0, fmt.Errorf("unexpected wire type %d", typ)
}
