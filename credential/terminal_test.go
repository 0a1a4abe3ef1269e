package credential

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pipeWith(t *testing.T, input string) *os.File {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	_, err = w.WriteString(input)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	t.Cleanup(func() { r.Close() })
	return r
}

func TestTerminalPrompterReadsPipedLines(t *testing.T) {
	var out bytes.Buffer
	p := &TerminalPrompter{In: pipeWith(t, "first\r\nsecond\n"), Out: &out}

	pw, err := p.Prompt(testDesc, "the usual", 1)
	require.NoError(t, err)
	assert.Equal(t, "first", pw)
	assert.Contains(t, out.String(), "Password for Budget.numbers (hint: the usual): ")

	pw, err = p.Prompt(testDesc, "", 2)
	require.NoError(t, err)
	assert.Equal(t, "second", pw)
	assert.Contains(t, out.String(), "Wrong password.")

	_, err = p.Prompt(testDesc, "", 3)
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestTerminalPrompterFallsBackToService(t *testing.T) {
	var out bytes.Buffer
	p := &TerminalPrompter{In: pipeWith(t, "x\n"), Out: &out}
	_, err := p.Prompt(Descriptor{Service: "iwa", Generic: []byte("g")}, "", 1)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Password for iwa: ")
}
