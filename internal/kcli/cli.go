package kcli

import (
	"errors"
	"flag"
	"io"
)

// Command defines a single karva subcommand.
type Command struct {
	Name    string
	Summary string
	// Run receives the flag set's remaining positional args and must
	// return an exit code already resolved via ExitOK/ExitTestFailure/
	// ExitConfigError — Run, not Dispatch, knows which of those applies.
	Run func(args []string, stdout, stderr io.Writer) int
}

// ErrUnknownCommand is returned by Dispatch when args[0] names no
// registered command.
var ErrUnknownCommand = errors.New("unknown command")

// Dispatch picks the Command named by args[0] and runs it with the
// remaining arguments. An empty args slice or an unrecognized name
// prints usage and returns ExitConfigError: a malformed invocation is a
// configuration error, not a test failure.
func Dispatch(prog string, cmds []Command, args []string, stdout, stderr io.Writer, usage func(io.Writer)) int {
	if len(args) == 0 {
		usage(stderr)
		return ExitConfigError
	}
	name := args[0]
	for _, cmd := range cmds {
		if cmd.Name == name {
			return cmd.Run(args[1:], stdout, stderr)
		}
	}
	Writef(stderr, "%s: unknown command %q\n", prog, name)
	usage(stderr)
	return ExitConfigError
}

// NewFlagSet returns a flag.FlagSet in ContinueOnError mode with output
// directed to stderr, the convention every karva subcommand uses.
func NewFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}
