package export

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

type Compression uint16

const (
	CompNone Compression = 0x0
	CompZIP  Compression = 0x1
	CompZSTD Compression = 0x2
	CompLZ4  Compression = 0x3
	CompBR   Compression = 0x4
)

var compressionNames = map[Compression]string{
	CompNone: "none",
	CompZIP:  "zip",
	CompZSTD: "zstd",
	CompLZ4:  "lz4",
	CompBR:   "brotli",
}

func (c Compression) String() string {
	if s, ok := compressionNames[c]; ok {
		return s
	}
	return fmt.Sprintf("compression(%d)", uint16(c))
}

// Ext is the file name suffix appended to exported files.
func (c Compression) Ext() string {
	switch c {
	case CompZIP:
		return ".zip"
	case CompZSTD:
		return ".zst"
	case CompLZ4:
		return ".lz4"
	case CompBR:
		return ".br"
	}
	return ""
}

func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return CompNone, nil
	case "zip", "deflate":
		return CompZIP, nil
	case "zstd", "zst":
		return CompZSTD, nil
	case "lz4":
		return CompLZ4, nil
	case "br", "brotli":
		return CompBR, nil
	}
	return 0, fmt.Errorf("%w: unknown compression %q", ErrInvalidOptions, s)
}

// Function variables for testing injection.
var (
	newZstdWriter = func() (*zstd.Encoder, error) { return zstd.NewWriter(nil) }
	newZstdReader = func() (*zstd.Decoder, error) { return zstd.NewReader(nil) }
	zipCreate     = func(zw *zip.Writer, name string) (io.Writer, error) { return zw.Create(name) }
	zipClose      = func(zw *zip.Writer) error { return zw.Close() }
	zipOpen       = func(zf *zip.File) (io.ReadCloser, error) { return zf.Open() }
	readAll       = io.ReadAll
	lz4Close      = func(w *lz4.Writer) error { return w.Close() }
	brotliClose   = func(w *brotli.Writer) error { return w.Close() }
	brotliWrite   = func(w *brotli.Writer, p []byte) (int, error) { return w.Write(p) }
)

// Compress compresses data with comp. name is only used by CompZIP, which
// stores data as a single entry of that name.
func Compress(comp Compression, name string, data []byte) ([]byte, error) {
	switch comp {
	case CompNone:
		return data, nil
	case CompZIP:
		return zipCompress(name, data)
	case CompZSTD:
		return zstdCompress(data)
	case CompLZ4:
		return lz4Compress(data)
	case CompBR:
		return brotliCompress(data)
	}
	return nil, fmt.Errorf("%w: unknown compression %d", ErrInvalidOptions, comp)
}

// Decompress reverses Compress, refusing output larger than maxSize.
func Decompress(comp Compression, data []byte, maxSize uint64) ([]byte, error) {
	var out []byte
	var err error
	switch comp {
	case CompNone:
		out = data
	case CompZIP:
		out, err = zipDecompress(data, maxSize)
	case CompZSTD:
		out, err = zstdDecompress(data, maxSize)
	case CompLZ4:
		out, err = lz4Decompress(data, maxSize)
	case CompBR:
		out, err = brotliDecompress(data, maxSize)
	default:
		return nil, fmt.Errorf("%w: unknown compression %d", ErrInvalidOptions, comp)
	}
	if err != nil {
		return nil, err
	}
	if uint64(len(out)) > maxSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, len(out), maxSize)
	}
	return out, nil
}

// zipCompress creates a ZIP archive containing in as name.
func zipCompress(name string, in []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := zipCompressNamed(&buf, name, in); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// zipCompressNamed creates a ZIP archive with a single entry.
func zipCompressNamed(w io.Writer, name string, in []byte) error {
	zw := zip.NewWriter(w)
	entry, err := zipCreate(zw, name)
	if err != nil {
		_ = zipClose(zw)
		return err
	}
	if _, err := entry.Write(in); err != nil {
		_ = zipClose(zw)
		return err
	}
	return zipClose(zw)
}

// zipDecompress extracts the single file entry of a ZIP archive.
func zipDecompress(zipBytes []byte, maxSize uint64) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(zipBytes), int64(len(zipBytes)))
	if err != nil {
		return nil, err
	}
	if len(zr.File) != 1 {
		return nil, fmt.Errorf("%w: zip must contain exactly one entry", ErrCorrupt)
	}
	zf := zr.File[0]
	if zf.FileInfo().IsDir() {
		return nil, fmt.Errorf("%w: zip entry must be a file", ErrCorrupt)
	}
	if zf.UncompressedSize64 > maxSize {
		return nil, fmt.Errorf("%w: zip entry of %d bytes", ErrTooLarge, zf.UncompressedSize64)
	}
	rc, err := zipOpen(zf)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return readAll(io.LimitReader(rc, int64(maxSize)+1))
}

// zstdCompress compresses in using the Zstandard algorithm.
func zstdCompress(in []byte) ([]byte, error) {
	enc, err := newZstdWriter()
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(in, nil), nil
}

func zstdDecompress(in []byte, maxSize uint64) ([]byte, error) {
	dec, err := newZstdReader()
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	out, err := dec.DecodeAll(in, nil)
	if err != nil {
		return nil, err
	}
	if uint64(len(out)) > maxSize {
		return nil, fmt.Errorf("%w: zstd expanded beyond %d bytes", ErrTooLarge, maxSize)
	}
	return out, nil
}

// lz4Compress compresses in using the LZ4 frame format.
func lz4Compress(in []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := lz4CompressTo(&buf, in); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func lz4CompressTo(w io.Writer, in []byte) error {
	zw := lz4.NewWriter(w)
	if _, err := zw.Write(in); err != nil {
		_ = lz4Close(zw)
		return err
	}
	return lz4Close(zw)
}

// lz4Decompress stops reading one byte past maxSize.
func lz4Decompress(in []byte, maxSize uint64) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(in))
	b, err := readAll(io.LimitReader(r, int64(maxSize)+1))
	if err != nil {
		return nil, err
	}
	if uint64(len(b)) > maxSize {
		return nil, fmt.Errorf("%w: lz4 expanded beyond %d bytes", ErrTooLarge, maxSize)
	}
	return b, nil
}

// brotliCompress compresses in using the Brotli algorithm.
func brotliCompress(in []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := brotliCompressTo(&buf, in); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func brotliCompressTo(w io.Writer, in []byte) error {
	bw := brotli.NewWriter(w)
	if _, err := brotliWrite(bw, in); err != nil {
		_ = brotliClose(bw)
		return err
	}
	return brotliClose(bw)
}

func brotliDecompress(in []byte, maxSize uint64) ([]byte, error) {
	r := brotli.NewReader(bytes.NewReader(in))
	b, err := readAll(io.LimitReader(r, int64(maxSize)+1))
	if err != nil {
		return nil, err
	}
	if uint64(len(b)) > maxSize {
		return nil, fmt.Errorf("%w: brotli expanded beyond %d bytes", ErrTooLarge, maxSize)
	}
	return b, nil
}
