package iwa_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/klauspost/compress/s2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logicossoftware/go-iwa"
	"github.com/logicossoftware/go-iwa/internal/fixture"
)

func writePackage(t *testing.T, p fixture.Package, name string) (string, *iwa.ContentKey) {
	t.Helper()
	path, key, err := p.WriteFile(t.TempDir(), name)
	require.NoError(t, err)
	return path, key
}

func openPackage(t *testing.T, path string, key *iwa.ContentKey, opts ...iwa.Option) *iwa.Bundle {
	t.Helper()
	b, err := iwa.Open(path, key, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}

// corruptSecondChunk is a chunk stream whose first chunk is valid and whose
// second chunk declares more bytes than its block holds.
func corruptSecondChunk() []byte {
	out := iwa.EncodeChunks([]byte("a perfectly good first chunk"))
	block := s2.EncodeSnappy(nil, []byte("second"))
	block[0]++
	out = append(out, 0x00, byte(len(block)), 0x00, 0x00)
	return append(out, block...)
}

func TestOpenUnencrypted(t *testing.T) {
	path, _ := writePackage(t, fixture.Keynote(), "Deck.key")
	b := openPackage(t, path, nil)

	assert.False(t, b.Encrypted())
	assert.Equal(t, iwa.KindKeynote, b.Kind())
	assert.Equal(t, []string{"Document", "Slide", "Metadata"}, b.ComponentNames())

	props := b.Properties()
	assert.Equal(t, fixture.DocumentID, props.DocumentID)
	assert.Equal(t, fixture.VersionID, props.VersionID)
	assert.Equal(t, "14.1.1", props.FileFormatVersion)
	assert.Equal(t, "7", props.Revision)

	recs, err := b.Records("Document")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, iwa.Record{
		Identifier:       1,
		MessageType:      1,
		TypeName:         "KN.DocumentArchive",
		Contents:         "super {\n  locale_identifier: \"en_US\"\n}\nshow {\n  identifier: 2\n}\n",
		ObjectReferences: []uint64{2},
	}, recs[0])
	assert.Equal(t, "KN.ShowArchive", recs[1].TypeName)
	assert.Equal(t, "loop_slideshow: true\n", recs[1].Contents)

	recs, err = b.Records("Metadata")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "TSP.PackageMetadata", recs[0].TypeName)
	assert.Equal(t, "last_object_identifier: 20\nrevision: 3\n", recs[0].Contents)
}

func TestDecodingIsRepeatable(t *testing.T) {
	path, _ := writePackage(t, fixture.Keynote(), "Deck.key")
	b := openPackage(t, path, nil)

	first, err := b.DataForComponent("Slide")
	require.NoError(t, err)
	_, err = b.DataForComponent("Document")
	require.NoError(t, err)
	second, err := b.DataForComponent("Slide")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Callers own the returned slices.
	first[0] ^= 0xff
	third, err := b.DataForComponent("Slide")
	require.NoError(t, err)
	assert.Equal(t, second, third)
}

func TestOpenEncryptedNeedsPassword(t *testing.T) {
	path, _ := writePackage(t, fixture.Encrypted("open sesame", "cave words"), "Secret.key")

	_, err := iwa.Open(path, nil)
	require.ErrorIs(t, err, iwa.ErrNeedsPassword)
	assert.Equal(t, iwa.ClassCrypto, iwa.Classify(err))
	assert.True(t, iwa.IsPasswordError(err))

	v, hint, err := iwa.PasswordVerifierFor(path)
	require.NoError(t, err)
	assert.Equal(t, "cave words", hint)
	assert.Equal(t, uint32(fixture.LowIterations), v.Params.Iterations)
	assert.False(t, v.Validate("open sesame!"))
	assert.True(t, v.Validate("open sesame"))

	_, err = v.CreateKey("nope")
	assert.ErrorIs(t, err, iwa.ErrWrongPassword)

	key, err := v.CreateKey("open sesame")
	require.NoError(t, err)
	b := openPackage(t, path, key)
	assert.True(t, b.Encrypted())

	// Wiping the caller's key does not affect the open bundle.
	key.Wipe()

	plainPath, _ := writePackage(t, fixture.Keynote(), "Plain.key")
	plain := openPackage(t, plainPath, nil)
	for _, name := range plain.ComponentNames() {
		want, err := plain.DataForComponent(name)
		require.NoError(t, err)
		got, err := b.DataForComponent(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
	assert.Equal(t, plain.Properties(), b.Properties())
}

func TestOpenEncryptedWithForeignKey(t *testing.T) {
	path, _ := writePackage(t, fixture.Encrypted("pw", ""), "A.key")
	_, otherKey := writePackage(t, fixture.Encrypted("pw", ""), "B.key")

	_, err := iwa.Open(path, otherKey)
	assert.ErrorIs(t, err, iwa.ErrWrongPassword)

	_, hint, err := iwa.PasswordVerifierFor(path)
	require.NoError(t, err)
	assert.Empty(t, hint)
}

func TestPasswordVerifierForUnencrypted(t *testing.T) {
	path, _ := writePackage(t, fixture.Keynote(), "Deck.key")
	_, _, err := iwa.PasswordVerifierFor(path)
	assert.ErrorIs(t, err, iwa.ErrNotEncrypted)
}

func TestCorruptComponentIsIsolated(t *testing.T) {
	for _, password := range []string{"", "pw"} {
		p := fixture.Keynote()
		p.Password = password
		p.Components = append(p.Components[:1],
			append([]fixture.Component{{Name: "Tables/Broken", Raw: corruptSecondChunk()}}, p.Components[1:]...)...)
		path, key := writePackage(t, p, "Deck.key")
		b := openPackage(t, path, key)

		assert.Equal(t, []string{"Document", "Tables/Broken", "Slide", "Metadata"}, b.ComponentNames())

		_, err := b.DataForComponent("Tables/Broken")
		var ce *iwa.ComponentError
		require.ErrorAs(t, err, &ce, "password %q", password)
		assert.Equal(t, "Tables/Broken", ce.Component)
		assert.ErrorIs(t, err, iwa.ErrCorruptChunk)
		assert.Equal(t, iwa.ClassStructural, iwa.Classify(err))

		_, err = b.Records("Tables/Broken")
		assert.ErrorIs(t, err, iwa.ErrCorruptChunk)

		for _, name := range []string{"Document", "Slide", "Metadata"} {
			_, err := b.Records(name)
			assert.NoError(t, err, name)
		}
	}
}

func TestUndecodableArchivesAreComponentErrors(t *testing.T) {
	p := fixture.Keynote()
	p.Components = append(p.Components, fixture.Component{Name: "Junk", Raw: iwa.EncodeChunks([]byte{0x7f, 0x01})})
	path, _ := writePackage(t, p, "Deck.key")
	b := openPackage(t, path, nil)

	data, err := b.DataForComponent("Junk")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x7f, 0x01}, data)

	_, err = b.Records("Junk")
	var ce *iwa.ComponentError
	require.ErrorAs(t, err, &ce)
	assert.ErrorIs(t, err, iwa.ErrCorruptEntry)
}

func TestUnknownComponents(t *testing.T) {
	p := fixture.Keynote()
	p.Extra = map[string][]byte{
		"Index/Tables/.iwa": iwa.EncodeChunks(nil),
		"Index/.iwa":        iwa.EncodeChunks(nil),
	}
	path, _ := writePackage(t, p, "Deck.key")
	b := openPackage(t, path, nil)

	// Every listed component decodes.
	assert.Equal(t, []string{"Document", "Slide", "Metadata"}, b.ComponentNames())
	for _, name := range b.ComponentNames() {
		_, err := b.DataForComponent(name)
		assert.NoError(t, err, "%q", name)
	}

	for _, name := range []string{"Missing", "", "../Document", "Index/Document", "/Document", "Tables/"} {
		_, err := b.DataForComponent(name)
		assert.ErrorIs(t, err, iwa.ErrNoSuchComponent, "%q", name)
	}
}

func TestOpenRejectsNonPackages(t *testing.T) {
	dir := t.TempDir()

	text := filepath.Join(dir, "notes.key")
	require.NoError(t, os.WriteFile(text, []byte("just some text, definitely not a zip"), 0o644))
	_, err := iwa.Open(text, nil)
	assert.ErrorIs(t, err, iwa.ErrNotAZip)
	assert.False(t, iwa.PackageLooksValid(text))

	p := fixture.Keynote()
	p.OmitProperties = true
	noProps, _ := writePackage(t, p, "Bare.key")
	_, err = iwa.Open(noProps, nil)
	assert.ErrorIs(t, err, iwa.ErrNotAPackage)
	assert.False(t, iwa.PackageLooksValid(noProps))
	_, err = iwa.PropertiesFor(noProps)
	assert.ErrorIs(t, err, iwa.ErrNotAPackage)

	full, _ := writePackage(t, fixture.Keynote(), "Deck.key")
	raw, err := os.ReadFile(full)
	require.NoError(t, err)
	cut := filepath.Join(dir, "cut.key")
	require.NoError(t, os.WriteFile(cut, raw[:len(raw)/2], 0o644))
	_, err = iwa.Open(cut, nil)
	assert.ErrorIs(t, err, iwa.ErrTruncated)

	_, err = iwa.Open(filepath.Join(dir, "absent.key"), nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, iwa.ClassIO, iwa.Classify(err))
}

func TestPackageQueriesWithoutPassword(t *testing.T) {
	path, _ := writePackage(t, fixture.Encrypted("pw", "hint"), "Secret.numbers")
	assert.True(t, iwa.PackageLooksValid(path))

	props, err := iwa.PropertiesFor(path)
	require.NoError(t, err)
	assert.Equal(t, fixture.DocumentID, props.DocumentID)
}

func TestDocumentIdentifierFallback(t *testing.T) {
	p := fixture.Keynote()
	p.Properties.DocumentID = uuid.Nil
	p.DocumentIdentifier = fixture.DocumentID.String()
	path, _ := writePackage(t, p, "Deck.key")

	props, err := iwa.PropertiesFor(path)
	require.NoError(t, err)
	assert.Equal(t, fixture.DocumentID, props.DocumentID)
}

func TestKindSelection(t *testing.T) {
	raw, _, err := fixture.Keynote().Build()
	require.NoError(t, err)

	b, err := iwa.NewBundle(bytes.NewReader(raw), int64(len(raw)), nil)
	require.NoError(t, err)
	defer b.Close()
	recs, err := b.Records("Slide")
	require.NoError(t, err)
	assert.Equal(t, iwa.UnknownTypeName, recs[0].TypeName)

	// Keynote slides are not Numbers types.
	nb, err := iwa.NewBundle(bytes.NewReader(raw), int64(len(raw)), nil, iwa.WithKind(iwa.KindNumbers))
	require.NoError(t, err)
	defer nb.Close()
	recs, err = nb.Records("Slide")
	require.NoError(t, err)
	assert.Equal(t, iwa.UnknownTypeName, recs[0].TypeName)
	assert.Equal(t, uint32(5), recs[0].MessageType)

	// The option wins over the file extension.
	path, _ := writePackage(t, fixture.Keynote(), "Deck.numbers")
	kb := openPackage(t, path, nil, iwa.WithKind(iwa.KindKeynote))
	recs, err = kb.Records("Slide")
	require.NoError(t, err)
	assert.Equal(t, "KN.SlideArchive", recs[0].TypeName)
}

func TestLimitsApplyToBundles(t *testing.T) {
	path, _ := writePackage(t, fixture.Encrypted("pw", ""), "Deck.key")
	v, _, err := iwa.PasswordVerifierFor(path)
	require.NoError(t, err)
	key, err := v.CreateKey("pw")
	require.NoError(t, err)

	limited := iwa.WithLimits(iwa.Limits{MaxIterations: fixture.LowIterations - 1})
	_, err = iwa.Open(path, key, limited)
	assert.ErrorIs(t, err, iwa.ErrLimitExceeded)
	_, _, err = iwa.PasswordVerifierFor(path, limited)
	assert.ErrorIs(t, err, iwa.ErrLimitExceeded)
	_, err = iwa.PropertiesFor(path, iwa.WithLimits(iwa.Limits{MaxEntries: 1}))
	assert.ErrorIs(t, err, iwa.ErrLimitExceeded)
	assert.False(t, iwa.PackageLooksValid(path, iwa.WithLimits(iwa.Limits{MaxEntries: 1})))

	b := openPackage(t, path, key, iwa.WithLimits(iwa.Limits{MaxChunkSize: 4}))
	_, err = b.DataForComponent("Slide")
	assert.ErrorIs(t, err, iwa.ErrLimitExceeded)
}

func TestConcurrentDecodeAndClose(t *testing.T) {
	path, key := writePackage(t, fixture.Encrypted("pw", ""), "Deck.key")
	b, err := iwa.Open(path, key)
	require.NoError(t, err)

	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make(chan error, 64)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for j := 0; j < 20; j++ {
				for _, name := range b.ComponentNames() {
					if _, err := b.Records(name); err != nil && !errors.Is(err, iwa.ErrClosed) {
						errs <- err
						return
					}
				}
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-start
		if err := b.Close(); err != nil {
			errs <- err
		}
	}()
	close(start)
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	require.NoError(t, b.Close())
	_, err = b.DataForComponent("Slide")
	assert.ErrorIs(t, err, iwa.ErrClosed)
	_, err = b.Records("Slide")
	assert.ErrorIs(t, err, iwa.ErrClosed)
}
