package terminal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompter reads answers from the user.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
	fd  int
	tty bool
}

// NewPrompter prompts on out and reads from in. When in is a terminal,
// secrets are read without echo.
func NewPrompter(in *os.File, out io.Writer) *Prompter {
	fd := int(in.Fd())
	return &Prompter{in: bufio.NewReader(in), out: out, fd: fd, tty: term.IsTerminal(fd)}
}

// NewReaderPrompter reads plain lines from r; used when input is piped.
func NewReaderPrompter(r io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(r), out: out}
}

// Interactive reports whether answers come from a terminal.
func (p *Prompter) Interactive() bool { return p.tty }

// Line prints label and returns the trimmed answer.
func (p *Prompter) Line(label string) (string, error) {
	fmt.Fprint(p.out, label)
	s, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && s != "") {
		return "", err
	}
	return strings.TrimSpace(s), nil
}

// Secret prints label and reads an answer without echoing it when possible.
func (p *Prompter) Secret(label string) (string, error) {
	if !p.tty {
		return p.Line(label)
	}
	fmt.Fprint(p.out, label)
	b, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
