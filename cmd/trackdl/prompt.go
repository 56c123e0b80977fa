package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
)

// surveyChooser shows the quality options as an arrow-key menu.
// Ctrl+C or end of input dismisses it.
type surveyChooser struct {
	in     terminal.FileReader
	out    terminal.FileWriter
	errOut io.Writer
}

func (c *surveyChooser) Choose(ctx context.Context, title, message string, options []string) (int, bool, error) {
	prompt := &survey.Select{
		Message:  fmt.Sprintf("%s: %s", title, message),
		Options:  options,
		Help:     "Ctrl+C cancels the download",
		PageSize: 5,
	}

	type answer struct {
		index int
		err   error
	}
	answers := make(chan answer, 1)
	go func() {
		selectedIndex := 0
		err := survey.AskOne(prompt, &selectedIndex, survey.WithStdio(c.in, c.out, c.errOut))
		answers <- answer{selectedIndex, err}
	}()

	select {
	case a := <-answers:
		switch {
		case a.err == nil:
			return a.index, true, nil
		case errors.Is(a.err, terminal.InterruptErr), errors.Is(a.err, io.EOF):
			return 0, false, nil
		default:
			return 0, false, fmt.Errorf("quality prompt failed: %w", a.err)
		}
	case <-ctx.Done():
		return 0, false, ctx.Err()
	}
}
