// Package export writes decoded package components to a directory, either
// as raw decoded bytes or as rendered records, optionally compressed.
package export

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/logicossoftware/go-iwa"
)

// Source is the part of an opened bundle an export reads from.
type Source interface {
	ComponentNames() []string
	DataForComponent(name string) ([]byte, error)
	Records(name string) ([]iwa.Record, error)
}

type Options struct {
	Compression Compression
	// Records writes rendered records (.txt) instead of decoded bytes (.bin).
	Records bool
	Logger  *slog.Logger
}

// Result lists written files and the components that could not be decoded.
type Result struct {
	Written []string
	Failed  map[string]error
}

// ToDir exports every component of src below dir. A component that fails to
// decode is recorded in Result.Failed and does not stop the export.
func ToDir(dir string, src Source, opts Options) (Result, error) {
	if _, ok := compressionNames[opts.Compression]; !ok {
		return Result{}, fmt.Errorf("%w: unknown compression %d", ErrInvalidOptions, opts.Compression)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{}, err
	}

	res := Result{Failed: make(map[string]error)}
	for _, name := range src.ComponentNames() {
		rel, err := outputPath(name, opts)
		if err != nil {
			res.Failed[name] = err
			continue
		}
		payload, err := componentPayload(src, name, opts.Records)
		if err != nil {
			logger.Warn("component skipped", "component", name, "error", err)
			res.Failed[name] = err
			continue
		}
		out, err := Compress(opts.Compression, filepath.Base(strings.TrimSuffix(rel, opts.Compression.Ext())), payload)
		if err != nil {
			return res, fmt.Errorf("compress %s: %w", name, err)
		}
		p := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return res, err
		}
		if err := os.WriteFile(p, out, 0o644); err != nil {
			return res, err
		}
		logger.Debug("component exported", "component", name, "path", p, "bytes", len(out))
		res.Written = append(res.Written, p)
	}
	return res, nil
}

func componentPayload(src Source, name string, records bool) ([]byte, error) {
	if !records {
		return src.DataForComponent(name)
	}
	recs, err := src.Records(name)
	if err != nil {
		return nil, err
	}
	var sb strings.Builder
	if err := WriteRecords(&sb, recs); err != nil {
		return nil, err
	}
	return []byte(sb.String()), nil
}

func outputPath(name string, opts Options) (string, error) {
	rel := filepath.FromSlash(name)
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	ext := ".bin"
	if opts.Records {
		ext = ".txt"
	}
	return rel + ext + opts.Compression.Ext(), nil
}

// WriteRecords renders records in a stable plain-text layout.
func WriteRecords(w io.Writer, recs []iwa.Record) error {
	for _, r := range recs {
		if _, err := fmt.Fprintf(w, "# %d %s (type %d)\n", r.Identifier, r.TypeName, r.MessageType); err != nil {
			return err
		}
		if len(r.ObjectReferences) > 0 {
			if _, err := fmt.Fprintf(w, "# references %v\n", r.ObjectReferences); err != nil {
				return err
			}
		}
		contents := r.Contents
		if contents != "" && !strings.HasSuffix(contents, "\n") {
			contents += "\n"
		}
		if _, err := io.WriteString(w, contents+"\n"); err != nil {
			return err
		}
	}
	return nil
}
