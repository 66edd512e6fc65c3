package uploader

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompter asks the operator questions on the terminal.
type Prompter interface {
	// Confirm asks a yes/no question; an empty answer picks def.
	Confirm(question string, def bool) (bool, error)
	// Choose asks until the answer is one of options.
	Choose(question string, options []string) (string, error)
	// Ask reads one free-form line.
	Ask(question string) (string, error)
	// Secret reads one line without echo where the terminal allows it.
	Secret(question string) (string, error)
}

// TermPrompter reads answers from In and writes questions to Out.
type TermPrompter struct {
	In  io.Reader
	Out io.Writer

	r *bufio.Reader
}

// NewTermPrompter prompts on stdin and stdout.
func NewTermPrompter() *TermPrompter {
	return &TermPrompter{In: os.Stdin, Out: os.Stdout}
}

func (p *TermPrompter) reader() *bufio.Reader {
	if p.r == nil {
		p.r = bufio.NewReader(p.In)
	}
	return p.r
}

func (p *TermPrompter) readLine() (string, error) {
	line, err := p.reader().ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (p *TermPrompter) Confirm(question string, def bool) (bool, error) {
	hint := "(Y/n)"
	if !def {
		hint = "(y/N)"
	}
	for {
		fmt.Fprintf(p.Out, "%s %s ", question, hint)
		ans, err := p.readLine()
		if err != nil {
			return false, err
		}
		switch strings.ToLower(ans) {
		case "":
			return def, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		fmt.Fprintln(p.Out, "Please answer y or n.")
	}
}

func (p *TermPrompter) Choose(question string, options []string) (string, error) {
	for {
		fmt.Fprintf(p.Out, "%s (%s) ", question, strings.Join(options, "/"))
		ans, err := p.readLine()
		if err != nil {
			return "", err
		}
		for _, o := range options {
			if strings.EqualFold(ans, o) {
				return o, nil
			}
		}
		fmt.Fprintf(p.Out, "Please answer one of %s.\n", strings.Join(options, ", "))
	}
}

func (p *TermPrompter) Ask(question string) (string, error) {
	fmt.Fprintf(p.Out, "%s ", question)
	return p.readLine()
}

func (p *TermPrompter) Secret(question string) (string, error) {
	if f, ok := p.In.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprintf(p.Out, "%s ", question)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(p.Out)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	return p.Ask(question)
}
