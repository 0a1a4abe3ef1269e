package export

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logicossoftware/go-iwa"
	"github.com/logicossoftware/go-iwa/internal/fixture"
)

func openKeynote(t *testing.T) *iwa.Bundle {
	t.Helper()
	p := fixture.Keynote()
	p.Components = append(p.Components, fixture.Component{
		Name: "Tables/Broken",
		Raw:  []byte{0x00, 0xff, 0x00, 0x00, 0x01},
	})
	b, _, err := p.Build()
	require.NoError(t, err)
	bundle, err := iwa.NewBundle(bytes.NewReader(b), int64(len(b)), nil, iwa.WithKind(iwa.KindKeynote))
	require.NoError(t, err)
	t.Cleanup(func() { bundle.Close() })
	return bundle
}

func TestToDirRaw(t *testing.T) {
	bundle := openKeynote(t)
	dir := t.TempDir()

	res, err := ToDir(dir, bundle, Options{Compression: CompZSTD})
	require.NoError(t, err)
	require.Len(t, res.Written, 3)
	require.Contains(t, res.Failed, "Tables/Broken")
	assert.True(t, errors.Is(res.Failed["Tables/Broken"], iwa.ErrTruncatedChunk))

	want, err := bundle.DataForComponent("Document")
	require.NoError(t, err)
	raw, err := os.ReadFile(filepath.Join(dir, "Document.bin.zst"))
	require.NoError(t, err)
	got, err := Decompress(CompZSTD, raw, 1<<20)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestToDirRecords(t *testing.T) {
	bundle := openKeynote(t)
	dir := t.TempDir()

	res, err := ToDir(dir, bundle, Options{Records: true, Compression: CompZIP})
	require.NoError(t, err)
	assert.Len(t, res.Written, 3)

	raw, err := os.ReadFile(filepath.Join(dir, "Slide.txt.zip"))
	require.NoError(t, err)
	text, err := Decompress(CompZIP, raw, 1<<20)
	require.NoError(t, err)
	assert.Equal(t, "# 10 KN.SlideArchive (type 5)\nname: \"Title Slide\"\n\n", string(text))
}

func TestToDirRejectsBadOptions(t *testing.T) {
	_, err := ToDir(t.TempDir(), openKeynote(t), Options{Compression: Compression(42)})
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

type unsafeSource struct{}

func (unsafeSource) ComponentNames() []string                { return []string{"../escape"} }
func (unsafeSource) DataForComponent(string) ([]byte, error) { return []byte("x"), nil }
func (unsafeSource) Records(string) ([]iwa.Record, error)    { return nil, nil }

func TestToDirRejectsEscapingNames(t *testing.T) {
	dir := t.TempDir()
	res, err := ToDir(filepath.Join(dir, "out"), unsafeSource{}, Options{})
	require.NoError(t, err)
	assert.ErrorIs(t, res.Failed["../escape"], ErrUnsafePath)
	_, err = os.Stat(filepath.Join(dir, "escape.bin"))
	assert.True(t, os.IsNotExist(err))
}

func TestWriteRecords(t *testing.T) {
	var sb strings.Builder
	err := WriteRecords(&sb, []iwa.Record{
		{Identifier: 1, MessageType: 1, TypeName: "KN.DocumentArchive", Contents: "show {\n  identifier: 2\n}\n", ObjectReferences: []uint64{2}},
		{Identifier: 9, MessageType: 77, TypeName: iwa.UnknownTypeName, Contents: "2 bytes: 0801"},
	})
	require.NoError(t, err)
	assert.Equal(t, "# 1 KN.DocumentArchive (type 1)\n# references [2]\nshow {\n  identifier: 2\n}\n\n"+
		"# 9 unknown (type 77)\n2 bytes: 0801\n\n", sb.String())
}
