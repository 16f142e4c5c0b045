package cli

import (
	"context"
	"io"
)

// Execute runs the aeronet CLI with args and returns the process exit code.
// Failures are printed to stderr as "<Kind>: <message>".
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		printError(stderr, err)
		return 1
	}
	return 0
}
