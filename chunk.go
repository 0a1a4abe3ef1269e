package iwa

import (
	"fmt"

	"github.com/klauspost/compress/s2"
)

// DecodeChunks decodes a chunk stream using the default limits.
//
// Each chunk is a 4-byte header (type and 24-bit compressed length) followed
// by a snappy block whose uvarint preamble declares the uncompressed size.
// Decoding fails with ErrTruncatedChunk when a chunk runs past the end of
// data and with ErrCorruptChunk when a block does not decompress to exactly
// its declared size.
func DecodeChunks(data []byte) ([]byte, error) {
	return decodeChunks(data, defaultLimits())
}

func decodeChunks(data []byte, limits Limits) ([]byte, error) {
	var out []byte
	for i := 0; len(data) > 0; i++ {
		h, err := readChunkHeader(data)
		if err != nil {
			return nil, fmt.Errorf("%w: chunk %d header", ErrTruncatedChunk, i)
		}
		if h.Type != chunkTypeSnappy {
			return nil, fmt.Errorf("%w: chunk %d has type %#x", ErrCorruptChunk, i, h.Type)
		}
		data = data[chunkHeaderSize:]
		if uint64(h.Length) > uint64(len(data)) {
			return nil, fmt.Errorf("%w: chunk %d needs %d bytes, %d left", ErrTruncatedChunk, i, h.Length, len(data))
		}
		block := data[:h.Length]
		data = data[h.Length:]

		declared, err := s2.DecodedLen(block)
		if err != nil {
			return nil, fmt.Errorf("%w: chunk %d length: %v", ErrCorruptChunk, i, err)
		}
		if uint64(declared) > limits.MaxChunkSize {
			return nil, fmt.Errorf("%w: chunk %d declares %d bytes", ErrLimitExceeded, i, declared)
		}
		if uint64(len(out))+uint64(declared) > limits.MaxComponentSize {
			return nil, fmt.Errorf("%w: decoded stream exceeds %d bytes", ErrLimitExceeded, limits.MaxComponentSize)
		}
		dec, err := s2.Decode(nil, block)
		if err != nil {
			return nil, fmt.Errorf("%w: chunk %d: %v", ErrCorruptChunk, i, err)
		}
		if len(dec) != declared {
			return nil, fmt.Errorf("%w: chunk %d decoded %d bytes, declared %d", ErrCorruptChunk, i, len(dec), declared)
		}
		out = append(out, dec...)
	}
	return out, nil
}

// DecompressRaw decompresses a single snappy block whose boundaries are
// already known to the caller.
func DecompressRaw(block []byte) ([]byte, error) {
	limits := defaultLimits()
	declared, err := s2.DecodedLen(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptChunk, err)
	}
	if uint64(declared) > limits.MaxComponentSize {
		return nil, fmt.Errorf("%w: block declares %d bytes", ErrLimitExceeded, declared)
	}
	out, err := s2.Decode(nil, block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptChunk, err)
	}
	return out, nil
}
