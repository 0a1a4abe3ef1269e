package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/logicossoftware/go-iwa"
	"github.com/logicossoftware/go-iwa/export"
)

type packageInfo struct {
	Path              string `json:"path"`
	Kind              string `json:"kind,omitempty"`
	Encrypted         bool   `json:"encrypted"`
	PasswordHint      string `json:"password_hint,omitempty"`
	Iterations        uint32 `json:"iterations,omitempty"`
	DocumentID        string `json:"document_id"`
	VersionID         string `json:"version_id,omitempty"`
	FileFormatVersion string `json:"file_format_version,omitempty"`
	Revision          string `json:"revision,omitempty"`
	MultiPage         bool   `json:"multi_page,omitempty"`
}

func upperUUID(u uuid.UUID) string {
	if u == uuid.Nil {
		return ""
	}
	return strings.ToUpper(u.String())
}

// runInfo reports what can be learned without a password.
func runInfo(a *app, args []string) error {
	fs := a.flagSet("info")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		return usageError{}
	}
	path := fs.Arg(0)

	opts := a.openOptions()
	props, err := iwa.PropertiesFor(path, opts...)
	if err != nil {
		return err
	}
	info := packageInfo{
		Path:              path,
		DocumentID:        upperUUID(props.DocumentID),
		VersionID:         upperUUID(props.VersionID),
		FileFormatVersion: props.FileFormatVersion,
		Revision:          props.Revision,
		MultiPage:         props.IsMultiPage,
	}
	if a.kind != "" {
		info.Kind = string(a.kind)
	} else if k, ok := iwa.KindForPath(path); ok {
		info.Kind = string(k)
	}
	v, hint, err := iwa.PasswordVerifierFor(path, opts...)
	switch {
	case err == nil:
		info.Encrypted = true
		info.PasswordHint = hint
		info.Iterations = v.Params.Iterations
	case !errors.Is(err, iwa.ErrNotEncrypted):
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintf(a.stdout, "path:         %s\n", info.Path)
	if info.Kind != "" {
		fmt.Fprintf(a.stdout, "kind:         %s\n", info.Kind)
	}
	fmt.Fprintf(a.stdout, "encrypted:    %t\n", info.Encrypted)
	if info.PasswordHint != "" {
		fmt.Fprintf(a.stdout, "hint:         %s\n", info.PasswordHint)
	}
	fmt.Fprintf(a.stdout, "document id:  %s\n", info.DocumentID)
	if info.VersionID != "" {
		fmt.Fprintf(a.stdout, "version id:   %s\n", info.VersionID)
	}
	if info.FileFormatVersion != "" {
		fmt.Fprintf(a.stdout, "format:       %s\n", info.FileFormatVersion)
	}
	if info.Revision != "" {
		fmt.Fprintf(a.stdout, "revision:     %s\n", info.Revision)
	}
	return nil
}

func runList(a *app, args []string) error {
	if len(args) != 1 {
		return usageError{}
	}
	b, err := a.open(args[0])
	if err != nil {
		return err
	}
	defer b.Close()
	for _, name := range b.ComponentNames() {
		fmt.Fprintln(a.stdout, name)
	}
	return nil
}

func runDump(a *app, args []string) error {
	fs := a.flagSet("dump")
	out := fs.String("o", "", "output file (default stdout)")
	if err := fs.Parse(args); err != nil || fs.NArg() != 2 {
		return usageError{}
	}
	b, err := a.open(fs.Arg(0))
	if err != nil {
		return err
	}
	defer b.Close()

	data, err := b.DataForComponent(fs.Arg(1))
	if err != nil {
		return err
	}
	if *out == "" {
		_, err = a.stdout.Write(data)
		return err
	}
	return os.WriteFile(*out, data, 0o644)
}

// runRecords prints records of the named components, or of all of them.
// Components that fail to decode are reported and skipped.
func runRecords(a *app, args []string) error {
	if len(args) < 1 {
		return usageError{}
	}
	b, err := a.open(args[0])
	if err != nil {
		return err
	}
	defer b.Close()

	names := args[1:]
	if len(names) == 0 {
		names = b.ComponentNames()
	}
	failed := 0
	for _, name := range names {
		recs, err := b.Records(name)
		if err != nil {
			fmt.Fprintf(a.stderr, "%v\n", err)
			failed++
			continue
		}
		fmt.Fprintf(a.stdout, "== %s ==\n", name)
		if err := export.WriteRecords(a.stdout, recs); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d components failed to decode", failed, len(names))
	}
	return nil
}

func runExport(a *app, args []string) error {
	fs := a.flagSet("export")
	outDir := fs.String("out", "out", "output directory")
	compression := fs.String("compression", a.cfg.Export.Compression, "none, zip, zstd, lz4 or brotli")
	records := fs.Bool("records", a.cfg.Export.Records, "write rendered records instead of decoded bytes")
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		return usageError{}
	}
	comp, err := export.ParseCompression(*compression)
	if err != nil {
		return err
	}
	b, err := a.open(fs.Arg(0))
	if err != nil {
		return err
	}
	defer b.Close()

	res, err := export.ToDir(*outDir, b, export.Options{Compression: comp, Records: *records, Logger: a.logger})
	for _, p := range res.Written {
		fmt.Fprintf(a.stdout, "wrote %s\n", p)
	}
	if err != nil {
		return err
	}
	for _, name := range slices.Sorted(maps.Keys(res.Failed)) {
		fmt.Fprintf(a.stderr, "skipped %s: %v\n", name, res.Failed[name])
	}
	if len(res.Failed) > 0 {
		return fmt.Errorf("%d components could not be exported", len(res.Failed))
	}
	return nil
}

func runProbe(a *app, args []string) error {
	if len(args) != 1 {
		return usageError{}
	}
	if !iwa.PackageLooksValid(args[0]) {
		fmt.Fprintf(a.stdout, "%s: not a document package\n", args[0])
		return errProbeFailed
	}
	fmt.Fprintf(a.stdout, "%s: ok\n", args[0])
	return nil
}
