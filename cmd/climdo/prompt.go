package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/x/term"
)

// prompter reads answers from stdin. Secrets are read without echo when
// stdin is a terminal.
type prompter struct {
	in   *bufio.Reader
	file *os.File // set when stdin is a terminal
	out  io.Writer
}

func (c *cli) prompter(out io.Writer) *prompter {
	if c.prompt == nil {
		p := &prompter{in: bufio.NewReader(c.stdin), out: out}
		if f, ok := c.stdin.(*os.File); ok && term.IsTerminal(f.Fd()) {
			p.file = f
		}
		c.prompt = p
	}
	return c.prompt
}

// ask returns value when set, otherwise prompts for it.
func (p *prompter) ask(label, value string) (string, error) {
	if v := strings.TrimSpace(value); v != "" {
		return v, nil
	}
	fmt.Fprintf(p.out, "%s: ", label)
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", fmt.Errorf("%s is required", strings.ToLower(label))
	}
	return line, nil
}

// secret prompts for a password.
func (p *prompter) secret(label string) (string, error) {
	if p.file == nil {
		return p.ask(label, "")
	}
	fmt.Fprintf(p.out, "%s: ", label)
	raw, err := term.ReadPassword(p.file.Fd())
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("%s is required", strings.ToLower(label))
	}
	return string(raw), nil
}
