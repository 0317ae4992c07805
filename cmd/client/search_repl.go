// file: cmd/client/search_repl.go
package client

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	mcperrors "github.com/dkoosis/codebridge/internal/mcp/mcp_errors"
)

// RunSearchREPL reads queries until exit, quit or end of input, printing each
// result. Empty input is rejected with a prompt.
func RunSearchREPL(ctx context.Context, a Assistant, in io.Reader, out io.Writer) error {
	p := newPrompter(in, out)
	fmt.Fprintln(out, "Web search. Type 'exit' or 'quit' to leave.")
	for {
		query, err := p.ask("\nQuery: ")
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		switch strings.ToLower(query) {
		case "exit", "quit":
			return nil
		case "":
			fmt.Fprintln(out, "Please enter a query.")
			continue
		}

		reply, err := a.WebSearch(ctx, query)
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			if isFatal(err) {
				return err
			}
			continue
		}
		if reply.IsError {
			fmt.Fprintf(out, "Error: %s\n", reply.Text)
			continue
		}
		if reply.Text == "" {
			fmt.Fprintln(out, "No results.")
			continue
		}
		fmt.Fprintln(out, reply.Text)
	}
}

// isFatal reports whether err left the session unusable.
func isFatal(err error) bool {
	return mcperrors.IsTransportFailure(err) || mcperrors.IsNotConnected(err)
}
