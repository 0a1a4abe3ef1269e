package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactsPasswords(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, Config{Level: slog.LevelDebug, Format: FormatJSON})
	l.Info("unlock", "password", "hunter2", "Stored_Password", "x", "component", "Document")

	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	assert.Equal(t, redacted, m["password"])
	assert.Equal(t, redacted, m["Stored_Password"])
	assert.Equal(t, "Document", m["component"])
	assert.NotContains(t, buf.String(), "hunter2")
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, Config{Level: slog.LevelWarn})
	l.Info("quiet")
	l.Warn("loud")
	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "msg=loud")
}

func TestParse(t *testing.T) {
	lvl, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)
	_, err = ParseLevel("chatty")
	assert.Error(t, err)

	f, err := ParseFormat("json")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)
	_, err = ParseFormat("xml")
	assert.Error(t, err)
}
