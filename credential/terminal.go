package credential

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// TerminalPrompter reads passwords from a terminal without echo. When In is
// not a terminal, one line per attempt is read instead so passwords can be
// piped in.
type TerminalPrompter struct {
	In  *os.File
	Out io.Writer

	lines *bufio.Reader
}

func NewTerminalPrompter() *TerminalPrompter {
	return &TerminalPrompter{In: os.Stdin, Out: os.Stderr}
}

func (t *TerminalPrompter) Prompt(d Descriptor, hint string, attempt int) (string, error) {
	if attempt > 1 {
		fmt.Fprintln(t.Out, "Wrong password.")
	}
	label := d.Label
	if label == "" {
		label = d.Service
	}
	if hint != "" {
		fmt.Fprintf(t.Out, "Password for %s (hint: %s): ", label, hint)
	} else {
		fmt.Fprintf(t.Out, "Password for %s: ", label)
	}

	fd := int(t.In.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(t.Out)
		if err != nil {
			return "", err
		}
		if len(b) == 0 {
			return "", ErrCancelled
		}
		return string(b), nil
	}

	if t.lines == nil {
		t.lines = bufio.NewReader(t.In)
	}
	line, err := t.lines.ReadString('\n')
	fmt.Fprintln(t.Out)
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		if err != nil && err != io.EOF {
			return "", err
		}
		return "", ErrCancelled
	}
	return line, nil
}
