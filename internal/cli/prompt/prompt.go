// Package prompt asks the user questions on an interactive terminal.
package prompt

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	appErr "iobot/pkg/errors"

	"github.com/chzyer/readline"
)

// LineReader reads one line per call. *readline.Instance implements it.
type LineReader interface {
	SetPrompt(prompt string)
	Readline() (string, error)
	Close() error
}

// Prompter asks questions through a LineReader.
type Prompter struct {
	rl  LineReader
	out io.Writer
}

// New wraps rl. Messages that are not prompts go to out.
func New(rl LineReader, out io.Writer) *Prompter {
	return &Prompter{rl: rl, out: out}
}

// NewTerminal opens a readline session on stdin and stderr, keeping
// stdout free for command output.
func NewTerminal() (*Prompter, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "? ",
		Stdout:          os.Stderr,
		Stderr:          os.Stderr,
		InterruptPrompt: "^C",
		EOFPrompt:       "",
	})
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.InternalServerError, "open terminal failed")
	}
	return New(rl, os.Stderr), nil
}

// Close releases the terminal.
func (p *Prompter) Close() error {
	return p.rl.Close()
}

func (p *Prompter) readLine(prompt string) (string, error) {
	p.rl.SetPrompt(prompt)
	line, err := p.rl.Readline()
	if err != nil {
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			return "", appErr.Wrapf(err, appErr.Canceled, "input aborted")
		}
		return "", appErr.Wrapf(err, appErr.InternalServerError, "read input failed")
	}
	return strings.TrimSpace(line), nil
}

// Ask returns the answer, or def when the answer is empty.
func (p *Prompter) Ask(label, def string) (string, error) {
	prompt := label + ": "
	if def != "" {
		prompt = fmt.Sprintf("%s [%s]: ", label, def)
	}
	answer, err := p.readLine(prompt)
	if err != nil {
		return "", err
	}
	if answer == "" {
		return def, nil
	}
	return answer, nil
}

// AskRequired repeats the question until the answer is not empty.
func (p *Prompter) AskRequired(label string) (string, error) {
	for {
		answer, err := p.Ask(label, "")
		if err != nil {
			return "", err
		}
		if answer != "" {
			return answer, nil
		}
		p.Printf("a value is required\n")
	}
}

// AskInt asks for a positive integer.
func (p *Prompter) AskInt(label string, def int) (int, error) {
	for {
		answer, err := p.Ask(label, strconv.Itoa(def))
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(answer)
		if err == nil && n > 0 {
			return n, nil
		}
		p.Printf("enter a positive number\n")
	}
}

// Confirm asks a yes/no question.
func (p *Prompter) Confirm(label string, def bool) (bool, error) {
	hint := "y/N"
	if def {
		hint = "Y/n"
	}
	for {
		answer, err := p.readLine(fmt.Sprintf("%s [%s]: ", label, hint))
		if err != nil {
			return false, err
		}
		switch strings.ToLower(answer) {
		case "":
			return def, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		p.Printf("answer y or n\n")
	}
}

// Choose lists options and returns the index of the chosen one. The answer
// may be the option number or its text.
func (p *Prompter) Choose(label string, options []string) (int, error) {
	p.Printf("%s\n", label)
	for i, opt := range options {
		p.Printf("  %d) %s\n", i+1, opt)
	}
	for {
		answer, err := p.readLine("> ")
		if err != nil {
			return 0, err
		}
		if n, err := strconv.Atoi(answer); err == nil && n >= 1 && n <= len(options) {
			return n - 1, nil
		}
		for i, opt := range options {
			if strings.EqualFold(answer, opt) {
				return i, nil
			}
		}
		p.Printf("choose 1-%d\n", len(options))
	}
}

// List splits a comma separated answer, dropping empty items.
func List(answer string) []string {
	raw := strings.Split(answer, ",")
	result := make([]string, 0, len(raw))
	for _, item := range raw {
		item = strings.TrimSpace(item)
		if item != "" {
			result = append(result, item)
		}
	}
	return result
}

// Printf writes a message that is not a question.
func (p *Prompter) Printf(format string, args ...interface{}) {
	if p.out == nil {
		return
	}
	_, _ = fmt.Fprintf(p.out, format, args...)
}
