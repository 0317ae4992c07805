// file: cmd/client/client_test.go
package client

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/codebridge/internal/assistant"
	mcperrors "github.com/dkoosis/codebridge/internal/mcp/mcp_errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	op   string
	args []string
}

type fakeAssistant struct {
	calls   []call
	reply   assistant.Reply
	err     error
	replies map[string]assistant.Reply
}

func (f *fakeAssistant) respond(op string, args ...string) (assistant.Reply, error) {
	f.calls = append(f.calls, call{op: op, args: args})
	if f.err != nil {
		return assistant.Reply{}, f.err
	}
	if r, ok := f.replies[op]; ok {
		return r, nil
	}
	return f.reply, nil
}

func (f *fakeAssistant) GenerateCode(_ context.Context, language, description string) (assistant.Reply, error) {
	return f.respond("generate", language, description)
}

func (f *fakeAssistant) OptimizeCode(_ context.Context, language, code, goal string) (assistant.Reply, error) {
	return f.respond("optimize", language, code, goal)
}

func (f *fakeAssistant) ExplainCode(_ context.Context, language, code string) (assistant.Reply, error) {
	return f.respond("explain", language, code)
}

func (f *fakeAssistant) WebSearch(_ context.Context, query string) (assistant.Reply, error) {
	return f.respond("search", query)
}

type fakeSaver struct {
	saved []string
	langs []string
}

func (f *fakeSaver) Save(content, language string) (string, error) {
	f.saved = append(f.saved, content)
	f.langs = append(f.langs, language)
	return "output/code_test.txt", nil
}

func TestActionOptions_Validate(t *testing.T) {
	assert.Error(t, (&ActionOptions{Action: "dance"}).Validate())
	assert.Error(t, (&ActionOptions{Action: ActionGenerate, Language: "go"}).Validate())
	assert.Error(t, (&ActionOptions{Action: ActionOptimize, Language: "go", Code: "x"}).Validate())
	assert.Error(t, (&ActionOptions{Action: ActionSearch}).Validate())
	assert.NoError(t, (&ActionOptions{Action: ActionExplain, Language: "go", Code: "x"}).Validate())
}

func TestActionOptions_Validate_ReadsCodeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main.go")
	require.NoError(t, os.WriteFile(path, []byte("package main"), 0o600))
	opts := ActionOptions{Action: ActionExplain, Language: "go", CodeFile: path}
	require.NoError(t, opts.Validate())
	assert.Equal(t, "package main", opts.Code)
}

func TestRunAction_GenerateAndSave(t *testing.T) {
	a := &fakeAssistant{reply: assistant.Reply{Text: "# go code\n\ncode\n"}}
	saver := &fakeSaver{}
	var out bytes.Buffer

	err := RunAction(context.Background(), a, saver, ActionOptions{
		Action: ActionGenerate, Language: "go", Description: "hello", Save: true,
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, []call{{op: "generate", args: []string{"go", "hello"}}}, a.calls)
	assert.Contains(t, out.String(), "# go code")
	assert.Contains(t, out.String(), "Saved to file: output/code_test.txt")
	assert.Equal(t, []string{"go"}, saver.langs)
}

func TestRunAction_ToolErrorIsNotSaved(t *testing.T) {
	a := &fakeAssistant{reply: assistant.Reply{Text: "Error generating code: quota", IsError: true}}
	saver := &fakeSaver{}
	var out bytes.Buffer

	err := RunAction(context.Background(), a, saver, ActionOptions{
		Action: ActionGenerate, Language: "go", Description: "hello", Save: true,
	}, &out)
	assert.True(t, errors.Is(err, ErrToolFailed))
	assert.Contains(t, out.String(), "quota")
	assert.Empty(t, saver.saved)
}

func TestMenu_GenerateOptimizeExplain(t *testing.T) {
	a := &fakeAssistant{reply: assistant.Reply{Text: "result"}}
	saver := &fakeSaver{}
	input := strings.Join([]string{
		"1", "python", "add two numbers", "y",
		"2", "go", "for {}", "x := 1", "END", "performance", "n",
		"3", "rust", "fn main() {}", "END", "n",
		"9",
		"0",
	}, "\n") + "\n"
	var out bytes.Buffer

	m := &Menu{Assistant: a, Saver: saver, In: strings.NewReader(input), Out: &out}
	require.NoError(t, m.Run(context.Background()))

	require.Len(t, a.calls, 3)
	assert.Equal(t, call{op: "generate", args: []string{"python", "add two numbers"}}, a.calls[0])
	assert.Equal(t, call{op: "optimize", args: []string{"go", "for {}\nx := 1", "performance"}}, a.calls[1])
	assert.Equal(t, call{op: "explain", args: []string{"rust", "fn main() {}"}}, a.calls[2])
	assert.Equal(t, []string{"python"}, saver.langs)
	assert.Contains(t, out.String(), "Invalid choice")
}

func TestMenu_EndOfInputExits(t *testing.T) {
	m := &Menu{Assistant: &fakeAssistant{}, In: strings.NewReader(""), Out: &bytes.Buffer{}}
	assert.NoError(t, m.Run(context.Background()))
}

func TestMenu_TransportFailureEndsLoop(t *testing.T) {
	broken := mcperrors.NewTransportError("server exited", nil, nil)
	a := &fakeAssistant{err: broken}
	var out bytes.Buffer
	m := &Menu{Assistant: a, In: strings.NewReader("1\ngo\nx\n1\ngo\nx\n"), Out: &out}
	err := m.Run(context.Background())
	require.Error(t, err)
	assert.Len(t, a.calls, 1)
	assert.Contains(t, out.String(), "server exited")
}

func TestRunSearchREPL(t *testing.T) {
	a := &fakeAssistant{replies: map[string]assistant.Reply{"search": {Text: "hit one\n\nhit two"}}}
	var out bytes.Buffer
	err := RunSearchREPL(context.Background(), a, strings.NewReader("\ngolang\nQUIT\nignored\n"), &out)
	require.NoError(t, err)
	assert.Equal(t, []call{{op: "search", args: []string{"golang"}}}, a.calls)
	assert.Contains(t, out.String(), "Please enter a query.")
	assert.Contains(t, out.String(), "hit two")
}

func TestRunSearchREPL_EmptyAndErrorReplies(t *testing.T) {
	a := &fakeAssistant{}
	var out bytes.Buffer
	require.NoError(t, RunSearchREPL(context.Background(), a, strings.NewReader("q\n"), &out))
	assert.Contains(t, out.String(), "No results.")

	a = &fakeAssistant{reply: assistant.Reply{Text: "Error searching the web: 503", IsError: true}}
	out.Reset()
	require.NoError(t, RunSearchREPL(context.Background(), a, strings.NewReader("q\nexit\n"), &out))
	assert.Contains(t, out.String(), "Error: Error searching the web: 503")
}
