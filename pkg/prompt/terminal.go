// Package prompt drives the task wizard from an interactive terminal.
package prompt

import (
	"errors"
	"io"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/mattn/go-isatty"
)

// ErrAborted is returned when the user interrupts a prompt.
var ErrAborted = errors.New("prompt: aborted")

// Question is a free-text prompt.
type Question struct {
	Label    string
	Default  string
	Validate func(string) error
}

// Choice is one row of a selection list.
type Choice struct {
	Label  string
	Detail string
}

// Asker asks questions. Terminal implements it with promptui.
type Asker interface {
	Ask(q Question) (string, error)
	Choose(label string, choices []Choice, cursor int) (int, error)
}

// Terminal prompts on a terminal.
type Terminal struct {
	Stdin  io.Reader
	Stdout io.Writer
}

// IsInteractive reports whether both stdin and stdout are terminals.
func IsInteractive() bool {
	return isTerminal(os.Stdin.Fd()) && isTerminal(os.Stdout.Fd())
}

func isTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func (t Terminal) stdin() io.ReadCloser {
	if t.Stdin == nil {
		return nil
	}
	return io.NopCloser(t.Stdin)
}

func (t Terminal) stdout() io.WriteCloser {
	if t.Stdout == nil {
		return nil
	}
	return nopCloser{t.Stdout}
}

func aborted(err error) error {
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) || errors.Is(err, promptui.ErrAbort) {
		return ErrAborted
	}
	return err
}

func (t Terminal) Ask(q Question) (string, error) {
	templates := &promptui.PromptTemplates{
		Prompt:  "{{ . }}: ",
		Valid:   "{{ . | green }}: ",
		Invalid: "{{ . | red }}: ",
		Success: "{{ . | bold }}: ",
	}
	p := promptui.Prompt{
		Label:     q.Label,
		Default:   q.Default,
		AllowEdit: q.Default != "",
		Templates: templates,
		Validate:  promptui.ValidateFunc(q.Validate),
		Stdin:     t.stdin(),
		Stdout:    t.stdout(),
	}
	out, err := p.Run()
	if err != nil {
		return "", aborted(err)
	}
	return strings.TrimSpace(out), nil
}

func (t Terminal) Choose(label string, choices []Choice, cursor int) (int, error) {
	templates := &promptui.SelectTemplates{
		Label:    "{{ . }}?",
		Active:   "➜  {{ .Label | bold }} {{ .Detail | green }}",
		Inactive: "   {{ .Label }} {{ .Detail | cyan }}",
		Selected: "{{ .Label | bold }}",
	}

	searcher := func(input string, index int) bool {
		c := choices[index]
		name := strings.Replace(strings.ToLower(c.Label+c.Detail), " ", "", -1)
		input = strings.Replace(strings.ToLower(input), " ", "", -1)
		return strings.Contains(name, input)
	}

	s := promptui.Select{
		HideHelp:  true,
		Label:     label,
		Items:     choices,
		Templates: templates,
		Size:      10,
		CursorPos: cursor,
		Searcher:  searcher,
		Stdin:     t.stdin(),
		Stdout:    t.stdout(),
	}
	i, _, err := s.Run()
	if err != nil {
		return 0, aborted(err)
	}
	return i, nil
}
