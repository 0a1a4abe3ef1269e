package iwa

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	chunkHeaderSize    = 4
	chunkTypeSnappy    = 0x00
	maxChunkCompressed = 1<<24 - 1

	cipherBlockHeaderSize = 4

	verifierFormatPBKDF2AES128 uint16 = 1

	saltSize       = 16
	contentKeySize = 16
	wrappedKeySize = contentKeySize + 8
	verifierSize   = 32

	verifierBlobSize = 2 + 2 + 4 + saltSize + wrappedKeySize + verifierSize
)

// chunkHeader precedes every compressed block of a chunk stream.
type chunkHeader struct {
	Type   byte
	Length uint32 // compressed length, 24 bits on the wire
}

func readChunkHeader(b []byte) (chunkHeader, error) {
	if len(b) < chunkHeaderSize {
		return chunkHeader{}, io.ErrUnexpectedEOF
	}
	return chunkHeader{
		Type:   b[0],
		Length: uint32(b[1]) | uint32(b[2])<<8 | uint32(b[3])<<16,
	}, nil
}

func appendChunkHeader(dst []byte, h chunkHeader) []byte {
	return append(dst, h.Type, byte(h.Length), byte(h.Length>>8), byte(h.Length>>16))
}

func readCipherBlockHeader(b []byte) (uint32, error) {
	if len(b) < cipherBlockHeaderSize {
		return 0, io.ErrUnexpectedEOF
	}
	return binary.LittleEndian.Uint32(b[:cipherBlockHeaderSize]), nil
}

func appendCipherBlockHeader(dst []byte, n uint32) []byte {
	return binary.LittleEndian.AppendUint32(dst, n)
}

func readEncryptionParameters(b []byte) (EncryptionParameters, error) {
	if len(b) != verifierBlobSize {
		return EncryptionParameters{}, fmt.Errorf("%w: password verifier is %d bytes, expected %d", ErrCorruptEntry, len(b), verifierBlobSize)
	}
	var p EncryptionParameters
	p.Version = binary.LittleEndian.Uint16(b[0:2])
	p.Format = binary.LittleEndian.Uint16(b[2:4])
	p.Iterations = binary.LittleEndian.Uint32(b[4:8])
	off := 8
	p.Salt = append([]byte(nil), b[off:off+saltSize]...)
	off += saltSize
	p.WrappedKey = append([]byte(nil), b[off:off+wrappedKeySize]...)
	off += wrappedKeySize
	p.Verifier = append([]byte(nil), b[off:off+verifierSize]...)
	return p, nil
}

func appendEncryptionParameters(dst []byte, p EncryptionParameters) []byte {
	dst = binary.LittleEndian.AppendUint16(dst, p.Version)
	dst = binary.LittleEndian.AppendUint16(dst, p.Format)
	dst = binary.LittleEndian.AppendUint32(dst, p.Iterations)
	dst = append(dst, p.Salt...)
	dst = append(dst, p.WrappedKey...)
	return append(dst, p.Verifier...)
}

func validateEncryptionParameters(p EncryptionParameters, limits Limits) error {
	if p.Version != FormatVersion {
		return fmt.Errorf("%w: password verifier version %d", ErrCorruptEntry, p.Version)
	}
	if p.Format != verifierFormatPBKDF2AES128 {
		return fmt.Errorf("%w: password verifier format %d", ErrCorruptEntry, p.Format)
	}
	if p.Iterations == 0 {
		return fmt.Errorf("%w: zero key derivation iterations", ErrCorruptEntry)
	}
	if p.Iterations > limits.MaxIterations {
		return fmt.Errorf("%w: %d key derivation iterations", ErrLimitExceeded, p.Iterations)
	}
	if len(p.Salt) != saltSize || len(p.WrappedKey) != wrappedKeySize || len(p.Verifier) != verifierSize {
		return fmt.Errorf("%w: password verifier field sizes", ErrCorruptEntry)
	}
	return nil
}
