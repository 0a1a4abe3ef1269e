//go:build cgo

package main

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logicossoftware/go-iwa/internal/fixture"
)

func TestPackageProperties(t *testing.T) {
	path, _, err := fixture.Encrypted("pw", "usual").WriteFile(t.TempDir(), "Deck.key")
	require.NoError(t, err)

	out, err := packageProperties(path)
	require.NoError(t, err)
	assert.Equal(t, "5A3F1C2D-8E4B-4F6A-9C1D-2B3E4F5A6B7C", out["documentId"])
	assert.Equal(t, upperUUID(fixture.VersionID), out["versionId"])
	assert.NotEmpty(t, out["versionId"])
	assert.Equal(t, true, out["encrypted"])
	assert.Equal(t, "usual", out["passwordHint"])
	assert.Equal(t, "7", out["revision"])
}

func TestPackagePropertiesWithoutVersion(t *testing.T) {
	p := fixture.Keynote()
	p.Properties.VersionID = uuid.Nil
	path, _, err := p.WriteFile(t.TempDir(), "Deck.key")
	require.NoError(t, err)

	out, err := packageProperties(path)
	require.NoError(t, err)
	assert.Equal(t, "", out["versionId"])
	assert.Equal(t, false, out["encrypted"])
}
