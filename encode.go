package iwa

import (
	"fmt"

	"github.com/klauspost/compress/s2"
	"google.golang.org/protobuf/encoding/protowire"
)

// MaxChunkPayload is the largest uncompressed payload EncodeChunks places in
// one chunk.
const MaxChunkPayload = 64 << 10

// EncodeChunks frames payload as a chunk stream readable by DecodeChunks.
func EncodeChunks(payload []byte) []byte {
	var out []byte
	for len(payload) > 0 {
		n := min(len(payload), MaxChunkPayload)
		block := s2.EncodeSnappy(nil, payload[:n])
		out = appendChunkHeader(out, chunkHeader{Type: chunkTypeSnappy, Length: uint32(len(block))})
		out = append(out, block...)
		payload = payload[n:]
	}
	return out
}

// CompressRaw compresses b into a single snappy block without framing.
func CompressRaw(b []byte) []byte {
	return s2.EncodeSnappy(nil, b)
}

// AppendArchive appends one archive (header plus message payloads) to dst.
// Message lengths are taken from the payloads.
func AppendArchive(dst []byte, a Archive) ([]byte, error) {
	var info []byte
	if a.Identifier != 0 {
		info = protowire.AppendTag(info, archiveIdentifierField, protowire.VarintType)
		info = protowire.AppendVarint(info, a.Identifier)
	}
	for _, m := range a.Messages {
		if uint64(len(m.Payload)) > 1<<32-1 {
			return nil, fmt.Errorf("%w: message payload of %d bytes", ErrLimitExceeded, len(m.Payload))
		}
		var mi []byte
		mi = protowire.AppendTag(mi, messageTypeField, protowire.VarintType)
		mi = protowire.AppendVarint(mi, uint64(m.Type))
		if len(m.Versions) > 0 {
			var packed []byte
			for _, v := range m.Versions {
				packed = protowire.AppendVarint(packed, uint64(v))
			}
			mi = protowire.AppendTag(mi, messageVersionField, protowire.BytesType)
			mi = protowire.AppendBytes(mi, packed)
		}
		mi = protowire.AppendTag(mi, messageLengthField, protowire.VarintType)
		mi = protowire.AppendVarint(mi, uint64(len(m.Payload)))
		mi = appendPackedUint64(mi, messageObjectRefsField, m.ObjectReferences)
		mi = appendPackedUint64(mi, messageDataRefsField, m.DataReferences)

		info = protowire.AppendTag(info, archiveMessageInfoField, protowire.BytesType)
		info = protowire.AppendBytes(info, mi)
	}
	dst = protowire.AppendVarint(dst, uint64(len(info)))
	dst = append(dst, info...)
	for _, m := range a.Messages {
		dst = append(dst, m.Payload...)
	}
	return dst, nil
}

func appendPackedUint64(dst []byte, num protowire.Number, vs []uint64) []byte {
	if len(vs) == 0 {
		return dst
	}
	var packed []byte
	for _, v := range vs {
		packed = protowire.AppendVarint(packed, v)
	}
	dst = protowire.AppendTag(dst, num, protowire.BytesType)
	return protowire.AppendBytes(dst, packed)
}
