// file: cmd/client/menu.go
package client

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/codebridge/internal/assistant"
)

// EndMarker terminates multi-line code input.
const EndMarker = "END"

// Menu is the interactive code assistant loop.
type Menu struct {
	Assistant Assistant
	Saver     Saver
	In        io.Reader
	Out       io.Writer
}

// Run shows the menu until the user picks 0 or input ends. Call failures are
// printed and the loop goes on; only a broken session ends it with an error.
func (m *Menu) Run(ctx context.Context) error {
	p := newPrompter(m.In, m.Out)
	for {
		fmt.Fprintln(m.Out, "\n===== Code Assistant =====")
		fmt.Fprintln(m.Out, "1. Generate code")
		fmt.Fprintln(m.Out, "2. Optimize code")
		fmt.Fprintln(m.Out, "3. Explain code")
		fmt.Fprintln(m.Out, "0. Exit")
		choice, err := p.ask("Choose an option (0-3): ")
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		var (
			reply    assistant.Reply
			language string
			callErr  error
		)
		switch choice {
		case "0":
			return nil
		case "1":
			if language, err = p.ask("Language (for example python, javascript): "); err != nil {
				return ignoreEOF(err)
			}
			description, err := p.ask("Describe what the code should do: ")
			if err != nil {
				return ignoreEOF(err)
			}
			reply, callErr = m.Assistant.GenerateCode(ctx, language, description)
		case "2":
			if language, err = p.ask("Language (for example python, javascript): "); err != nil {
				return ignoreEOF(err)
			}
			code, err := p.askBlock(fmt.Sprintf("Paste the code to optimize, then a line with %s:", EndMarker), EndMarker)
			if err != nil {
				return err
			}
			goal, err := p.ask("Optimization goal (for example performance, readability): ")
			if err != nil {
				return ignoreEOF(err)
			}
			reply, callErr = m.Assistant.OptimizeCode(ctx, language, code, goal)
		case "3":
			if language, err = p.ask("Language (for example python, javascript): "); err != nil {
				return ignoreEOF(err)
			}
			code, err := p.askBlock(fmt.Sprintf("Paste the code to explain, then a line with %s:", EndMarker), EndMarker)
			if err != nil {
				return err
			}
			reply, callErr = m.Assistant.ExplainCode(ctx, language, code)
		default:
			fmt.Fprintln(m.Out, "Invalid choice, please try again.")
			continue
		}

		if callErr != nil {
			fmt.Fprintf(m.Out, "\nError: %v\n", callErr)
			if isFatal(callErr) {
				return callErr
			}
			continue
		}
		fmt.Fprintln(m.Out)
		fmt.Fprintln(m.Out, reply.Text)
		if reply.IsError || m.Saver == nil {
			continue
		}

		answer, err := p.ask("\nSave to file? (y/n): ")
		if err != nil {
			return ignoreEOF(err)
		}
		if strings.EqualFold(answer, "y") {
			path, err := m.Saver.Save(reply.Text, language)
			if err != nil {
				fmt.Fprintf(m.Out, "Save failed: %v\n", err)
				continue
			}
			fmt.Fprintf(m.Out, "Saved to file: %s\n", path)
		}
	}
}

func ignoreEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
