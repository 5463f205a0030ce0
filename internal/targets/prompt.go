package targets

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
)

// ErrSelectionAborted indicates that the user closed the prompt without choosing.
var ErrSelectionAborted = errors.New("target selection aborted")

// PromptChooser asks the user to pick a target by number.
type PromptChooser struct {
	In  io.Reader
	Out io.Writer
}

// NewPromptChooser returns a chooser reading from in and writing to out, or
// nil when in is not an interactive terminal.
func NewPromptChooser(in io.Reader, out io.Writer) Chooser {
	f, ok := in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return nil
	}
	return &PromptChooser{In: in, Out: out}
}

// Choose lists entries and reads a 1-based selection until a valid one is entered.
func (p *PromptChooser) Choose(entries []Entry) (Entry, error) {
	if len(entries) == 0 {
		return Entry{}, ErrNoEligibleTarget
	}
	for i, e := range entries {
		_, _ = fmt.Fprintf(p.Out, "  %d) %s (%s)\n", i+1, e.Name(), e.Target.Network)
	}
	scanner := bufio.NewScanner(p.In)
	for {
		_, _ = fmt.Fprintf(p.Out, "Select a target [1-%d]: ", len(entries))
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return Entry{}, fmt.Errorf("read selection: %w", err)
			}
			return Entry{}, ErrSelectionAborted
		}
		n, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
		if err != nil || n < 1 || n > len(entries) {
			_, _ = fmt.Fprintln(p.Out, "invalid selection")
			continue
		}
		return entries[n-1], nil
	}
}
