package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// prompter reads answers one line at a time from the command input.
type prompter struct {
	r *bufio.Reader
	w io.Writer
}

func newPrompter(globals *Globals) *prompter {
	return &prompter{r: bufio.NewReader(globals.in()), w: globals.out()}
}

// valueOr returns v, or prompts for it when empty.
func (p *prompter) valueOr(v, label string) (string, error) {
	if v != "" {
		return v, nil
	}

	fmt.Fprintf(p.w, "%s: ", label)

	line, err := p.r.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read %s: %w", strings.ToLower(label), err)
	}

	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", fmt.Errorf("%s is required", strings.ToLower(label))
	}

	return line, nil
}
