// Package client implements the client front ends: a one-shot action, the
// interactive menu and the search prompt. All of them talk to the server
// through an assistant.
// file: cmd/client/client.go
package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/codebridge/internal/assistant"
)

// Assistant is the set of calls the front ends make.
type Assistant interface {
	GenerateCode(ctx context.Context, language, description string) (assistant.Reply, error)
	OptimizeCode(ctx context.Context, language, code, goal string) (assistant.Reply, error)
	ExplainCode(ctx context.Context, language, code string) (assistant.Reply, error)
	WebSearch(ctx context.Context, query string) (assistant.Reply, error)
}

// Saver persists a result. *output.Saver satisfies it.
type Saver interface {
	Save(content, language string) (string, error)
}

// Actions accepted by RunAction.
const (
	ActionGenerate = "generate"
	ActionOptimize = "optimize"
	ActionExplain  = "explain"
	ActionSearch   = "search"
)

// ActionOptions are the flags of a one-shot client run.
type ActionOptions struct {
	Action      string
	Language    string
	Description string
	Code        string
	CodeFile    string
	Goal        string
	Query       string
	Save        bool
}

// ErrToolFailed is returned by RunAction when the tool reported an error.
var ErrToolFailed = errors.New("tool reported an error")

// Validate checks that the flags needed by the action are present and loads
// CodeFile into Code.
func (o *ActionOptions) Validate() error {
	switch o.Action {
	case ActionGenerate:
		if o.Language == "" || o.Description == "" {
			return errors.New("generate requires -language and -description")
		}
	case ActionOptimize, ActionExplain:
		if o.Code == "" && o.CodeFile != "" {
			data, err := os.ReadFile(o.CodeFile)
			if err != nil {
				return errors.Wrapf(err, "failed to read code file %s", o.CodeFile)
			}
			o.Code = string(data)
		}
		if o.Language == "" || o.Code == "" {
			return errors.Newf("%s requires -language and -code or -code-file", o.Action)
		}
		if o.Action == ActionOptimize && o.Goal == "" {
			return errors.New("optimize requires -goal")
		}
	case ActionSearch:
		if o.Query == "" {
			return errors.New("search requires -query")
		}
	default:
		return errors.Newf("unknown action %q (want generate, optimize, explain or search)", o.Action)
	}
	return nil
}

// RunAction performs one call, prints the result and optionally saves it.
// A tool-reported failure is printed and returned as ErrToolFailed.
func RunAction(ctx context.Context, a Assistant, saver Saver, opts ActionOptions, out io.Writer) error {
	if err := opts.Validate(); err != nil {
		return err
	}

	var (
		reply assistant.Reply
		err   error
	)
	switch opts.Action {
	case ActionGenerate:
		reply, err = a.GenerateCode(ctx, opts.Language, opts.Description)
	case ActionOptimize:
		reply, err = a.OptimizeCode(ctx, opts.Language, opts.Code, opts.Goal)
	case ActionExplain:
		reply, err = a.ExplainCode(ctx, opts.Language, opts.Code)
	case ActionSearch:
		reply, err = a.WebSearch(ctx, opts.Query)
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, reply.Text)
	if reply.IsError {
		return ErrToolFailed
	}
	if opts.Save && saver != nil && opts.Action != ActionSearch {
		path, err := saver.Save(reply.Text, opts.Language)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\nSaved to file: %s\n", path)
	}
	return nil
}

// prompter reads answers from a line-oriented input.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewReader(in), out: out}
}

// ask prints question and returns the trimmed answer. io.EOF is returned
// once input is exhausted and nothing was read.
func (p *prompter) ask(question string) (string, error) {
	fmt.Fprint(p.out, question)
	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// askBlock reads lines until one equals endMarker or input ends.
func (p *prompter) askBlock(question, endMarker string) (string, error) {
	fmt.Fprintln(p.out, question)
	var lines []string
	for {
		line, err := p.in.ReadString('\n')
		trimmed := strings.TrimRight(line, "\r\n")
		if strings.TrimSpace(trimmed) == endMarker {
			break
		}
		if line != "" {
			lines = append(lines, trimmed)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return strings.Join(lines, "\n"), nil
}
