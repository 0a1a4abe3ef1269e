package iwa

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zip"
)

// Function variables for testing injection.
var (
	zipOpen = func(zf *zip.File) (io.ReadCloser, error) { return zf.Open() }
	readAll = io.ReadAll
)

const localHeaderSignature = "PK\x03\x04"

// Container is a read-only view of a zip-structured package. All entry
// offsets are validated against the archive size when it is opened.
type Container struct {
	closer io.Closer
	names  []string
	files  map[string]*zip.File
	limits Limits
}

// OpenContainer opens the zip file at name.
func OpenContainer(name string, limits Limits) (*Container, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	c, err := NewContainer(f, fi.Size(), limits)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	c.closer = f
	return c, nil
}

// NewContainer reads the central directory of the size-byte archive in r.
func NewContainer(r io.ReaderAt, size int64, limits Limits) (*Container, error) {
	limits = limits.withDefaults()
	if size <= 0 {
		return nil, fmt.Errorf("%w: empty file", ErrNotAZip)
	}
	// A reader returned together with an error only flags insecure entry
	// names, which are rejected by the path validation below.
	zr, err := zip.NewReader(r, size)
	if err != nil && zr == nil {
		switch {
		case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
			return nil, fmt.Errorf("%w: %v", ErrTruncated, err)
		case errors.Is(err, zip.ErrFormat) && hasLocalHeader(r):
			return nil, fmt.Errorf("%w: central directory missing: %v", ErrTruncated, err)
		case errors.Is(err, zip.ErrFormat):
			return nil, fmt.Errorf("%w: %v", ErrNotAZip, err)
		}
		return nil, err
	}
	if len(zr.File) > limits.MaxEntries {
		return nil, fmt.Errorf("%w: %d entries", ErrLimitExceeded, len(zr.File))
	}

	c := &Container{
		names:  make([]string, 0, len(zr.File)),
		files:  make(map[string]*zip.File, len(zr.File)),
		limits: limits,
	}
	for _, zf := range zr.File {
		if strings.HasSuffix(zf.Name, "/") {
			if err := validateContainerPath(strings.TrimSuffix(zf.Name, "/")); err != nil {
				return nil, fmt.Errorf("%w: directory %q: %v", ErrNotAZip, zf.Name, err)
			}
			continue
		}
		if err := validateContainerPath(zf.Name); err != nil {
			return nil, fmt.Errorf("%w: entry %q: %v", ErrNotAZip, zf.Name, err)
		}
		if _, ok := c.files[zf.Name]; ok {
			return nil, fmt.Errorf("%w: duplicate entry %q", ErrNotAZip, zf.Name)
		}
		off, err := zf.DataOffset()
		if err != nil {
			return nil, fmt.Errorf("%w: entry %q header: %v", ErrTruncated, zf.Name, err)
		}
		if off < 0 || zf.CompressedSize64 > uint64(size) || uint64(off) > uint64(size)-zf.CompressedSize64 {
			return nil, fmt.Errorf("%w: entry %q extends past end of file", ErrTruncated, zf.Name)
		}
		c.files[zf.Name] = zf
		c.names = append(c.names, zf.Name)
	}
	return c, nil
}

// hasLocalHeader reports whether r starts like a zip file. Such input without
// a readable central directory has been cut short.
func hasLocalHeader(r io.ReaderAt) bool {
	var sig [4]byte
	if _, err := r.ReadAt(sig[:], 0); err != nil {
		return false
	}
	return string(sig[:]) == localHeaderSignature
}

// EntryNames returns the file entries in central directory order.
func (c *Container) EntryNames() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

func (c *Container) Has(name string) bool {
	_, ok := c.files[name]
	return ok
}

// DataForEntry returns the uncompressed bytes of the named entry.
func (c *Container) DataForEntry(name string) ([]byte, error) {
	zf, ok := c.files[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoSuchEntry, name)
	}
	if zf.Method != zip.Store && zf.Method != zip.Deflate {
		return nil, fmt.Errorf("%w: %q uses unsupported method %d", ErrCorruptEntry, name, zf.Method)
	}
	if zf.UncompressedSize64 > c.limits.MaxEntrySize {
		return nil, fmt.Errorf("%w: entry %q is %d bytes", ErrLimitExceeded, name, zf.UncompressedSize64)
	}
	rc, err := zipOpen(zf)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrCorruptEntry, name, err)
	}
	defer rc.Close()
	b, err := readAll(io.LimitReader(rc, int64(zf.UncompressedSize64)+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrCorruptEntry, name, err)
	}
	if uint64(len(b)) != zf.UncompressedSize64 {
		return nil, fmt.Errorf("%w: %q: read %d bytes, expected %d", ErrCorruptEntry, name, len(b), zf.UncompressedSize64)
	}
	return b, nil
}

func (c *Container) Close() error {
	if c.closer == nil {
		return nil
	}
	err := c.closer.Close()
	c.closer = nil
	return err
}
